package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// burn address, valid and stable across encodings
const testAddr = "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM9c"

func numEntry(v uint64) stackEntry {
	return stackEntry{
		json.RawMessage(`"num"`),
		json.RawMessage(fmt.Sprintf(`"0x%x"`, v)),
	}
}

func cellEntry(t *testing.T, addr string) stackEntry {
	t.Helper()
	c := cell.BeginCell().MustStoreAddr(address.MustParseAddr(addr)).EndCell()
	payload, err := json.Marshal(map[string]string{
		"bytes": base64.StdEncoding.EncodeToString(c.ToBOC()),
	})
	require.NoError(t, err)
	return stackEntry{json.RawMessage(`"cell"`), json.RawMessage(payload)}
}

func saleStack(t *testing.T) []stackEntry {
	t.Helper()
	return []stackEntry{
		numEntry(0x46495850), // "FIXP"
		numEntry(0),          // not complete
		numEntry(1735689600), // created at
		cellEntry(t, testAddr),
		cellEntry(t, testAddr),
		cellEntry(t, testAddr),
		numEntry(3_500_000_000), // full price
		cellEntry(t, testAddr),  // fee address
		numEntry(175_000_000),   // marketplace fee
		cellEntry(t, testAddr),  // royalty address
		numEntry(250_000_000),   // royalty amount
	}
}

func TestDecodeSaleStack(t *testing.T) {
	data, err := decodeSaleStack(saleStack(t))
	require.NoError(t, err)

	expected := address.MustParseAddr(testAddr).String()
	assert.Equal(t, "FIXP", data.SaleType)
	assert.False(t, data.IsComplete)
	assert.EqualValues(t, 1735689600, data.CreatedAt)
	assert.Equal(t, expected, data.MarketplaceAddress)
	assert.Equal(t, expected, data.NftAddress)
	assert.Equal(t, expected, data.NftOwnerAddress)
	assert.EqualValues(t, 3_500_000_000, data.FullPriceNano)
	assert.EqualValues(t, 175_000_000, data.MarketFeeNano)
	assert.EqualValues(t, 250_000_000, data.RoyaltyAmountNano)
}

func TestDecodeSaleStackShortStack(t *testing.T) {
	_, err := decodeSaleStack(saleStack(t)[:5])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short stack")
}

func TestMagicString(t *testing.T) {
	assert.Equal(t, "FIXP", magicString(0x46495850))
	assert.Equal(t, "0x0", magicString(0))
	// Non-printable magics fall back to hex.
	assert.Equal(t, "0x101", magicString(0x101))
}

func TestGetSaleDataChecksExitCode(t *testing.T) {
	poster := &fakePoster{response: runGetMethodResponse{OK: true}}
	poster.response.Result.ExitCode = -13

	rpc := NewRPCClient(poster, RPCConfig{URL: "https://rpc.test", Method: "get_sale_data"})
	_, err := rpc.GetSaleData(context.Background(), testAddr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code -13")
}

func TestGetSaleDataSendsAPIKey(t *testing.T) {
	poster := &fakePoster{response: runGetMethodResponse{OK: true}}
	poster.response.Result.Stack = saleStack(t)

	rpc := NewRPCClient(poster, RPCConfig{URL: "https://rpc.test", APIKey: "k", Method: "get_sale_data"})
	_, err := rpc.GetSaleData(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "k", poster.headers["x-api-key"])
	assert.Equal(t, testAddr, poster.payload["address"])
	assert.Equal(t, "get_sale_data", poster.payload["method"])
}

type fakePoster struct {
	response runGetMethodResponse
	headers  map[string]string
	payload  map[string]any
}

func (f *fakePoster) PostJSON(ctx context.Context, rawURL string, headers map[string]string, payload, out any) error {
	f.headers = headers
	f.payload = payload.(map[string]any)
	data, err := json.Marshal(f.response)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
