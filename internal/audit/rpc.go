package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Poster posts a JSON payload and decodes the JSON response.
type Poster interface {
	PostJSON(ctx context.Context, rawURL string, headers map[string]string, payload, out any) error
}

// RPCConfig holds the gateway endpoint and getter parameters.
type RPCConfig struct {
	URL    string
	APIKey string
	Method string
}

// RPCClient executes get-method calls against a TON HTTP gateway.
type RPCClient struct {
	poster Poster
	cfg    RPCConfig
}

// NewRPCClient creates an RPCClient over the given HTTP poster.
func NewRPCClient(poster Poster, cfg RPCConfig) *RPCClient {
	return &RPCClient{poster: poster, cfg: cfg}
}

// stackEntry is one element of the returned TVM stack: a ["num", "0x..."]
// pair or a ["cell", {"bytes": base64}] pair.
type stackEntry []json.RawMessage

type runGetMethodResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		ExitCode int          `json:"exit_code"`
		Stack    []stackEntry `json:"stack"`
	} `json:"result"`
}

// SaleData is the decoded get_sale_data stack of a fixed-price sale contract.
type SaleData struct {
	SaleType           string
	IsComplete         bool
	CreatedAt          int64
	MarketplaceAddress string
	NftAddress         string
	NftOwnerAddress    string
	FullPriceNano      uint64
	MarketFeeNano      uint64
	RoyaltyAmountNano  uint64
}

// GetSaleData calls the configured getter on one sale contract and decodes
// the eleven-entry stack it returns.
func (c *RPCClient) GetSaleData(ctx context.Context, contractAddress string) (SaleData, error) {
	payload := map[string]any{
		"address": contractAddress,
		"method":  c.cfg.Method,
		"stack":   []any{},
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["x-api-key"] = c.cfg.APIKey
	}

	var resp runGetMethodResponse
	if err := c.poster.PostJSON(ctx, c.cfg.URL, headers, payload, &resp); err != nil {
		return SaleData{}, fmt.Errorf("audit: run get method: %w", err)
	}
	if !resp.OK {
		return SaleData{}, fmt.Errorf("audit: gateway returned ok=false for %s", contractAddress)
	}
	if resp.Result.ExitCode != 0 {
		return SaleData{}, fmt.Errorf("audit: getter exit code %d for %s", resp.Result.ExitCode, contractAddress)
	}
	return decodeSaleStack(resp.Result.Stack)
}

// decodeSaleStack maps the get_sale_data layout: magic, is_complete,
// created_at, marketplace address, nft address, owner address, full price,
// fee address, fee, royalty address, royalty amount.
func decodeSaleStack(stack []stackEntry) (SaleData, error) {
	if len(stack) < 11 {
		return SaleData{}, fmt.Errorf("audit: short stack: %d entries", len(stack))
	}

	magic, err := stackNum(stack[0])
	if err != nil {
		return SaleData{}, err
	}
	isComplete, err := stackNum(stack[1])
	if err != nil {
		return SaleData{}, err
	}
	createdAt, err := stackNum(stack[2])
	if err != nil {
		return SaleData{}, err
	}
	marketplace, err := stackAddress(stack[3])
	if err != nil {
		return SaleData{}, err
	}
	nft, err := stackAddress(stack[4])
	if err != nil {
		return SaleData{}, err
	}
	owner, err := stackAddress(stack[5])
	if err != nil {
		return SaleData{}, err
	}
	fullPrice, err := stackNum(stack[6])
	if err != nil {
		return SaleData{}, err
	}
	fee, err := stackNum(stack[8])
	if err != nil {
		return SaleData{}, err
	}
	royalty, err := stackNum(stack[10])
	if err != nil {
		return SaleData{}, err
	}

	return SaleData{
		SaleType:           magicString(magic),
		IsComplete:         isComplete != 0,
		CreatedAt:          int64(createdAt),
		MarketplaceAddress: marketplace,
		NftAddress:         nft,
		NftOwnerAddress:    owner,
		FullPriceNano:      fullPrice,
		MarketFeeNano:      fee,
		RoyaltyAmountNano:  royalty,
	}, nil
}

// stackNum decodes a ["num", "0x..."] entry.
func stackNum(e stackEntry) (uint64, error) {
	if len(e) < 2 {
		return 0, fmt.Errorf("audit: malformed stack entry")
	}
	var hex string
	if err := json.Unmarshal(e[1], &hex); err != nil {
		return 0, fmt.Errorf("audit: decode num entry: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("audit: parse num %q: %w", hex, err)
	}
	return v, nil
}

// stackAddress decodes a ["cell", {"bytes": base64 BOC}] entry into a
// friendly address string.
func stackAddress(e stackEntry) (string, error) {
	if len(e) < 2 {
		return "", fmt.Errorf("audit: malformed stack entry")
	}
	var payload struct {
		Bytes string `json:"bytes"`
	}
	if err := json.Unmarshal(e[1], &payload); err != nil {
		return "", fmt.Errorf("audit: decode cell entry: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload.Bytes)
	if err != nil {
		return "", fmt.Errorf("audit: decode cell base64: %w", err)
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return "", fmt.Errorf("audit: parse cell: %w", err)
	}
	addr, err := c.BeginParse().LoadAddr()
	if err != nil {
		return "", fmt.Errorf("audit: load address: %w", err)
	}
	return addr.String(), nil
}

// magicString renders the sale-type magic number as its ASCII tag, e.g.
// 0x46495850 becomes "FIXP". Non-printable magics fall back to hex.
func magicString(magic uint64) string {
	var buf []byte
	for shift := 56; shift >= 0; shift -= 8 {
		b := byte(magic >> shift)
		if b == 0 && len(buf) == 0 {
			continue
		}
		buf = append(buf, b)
	}
	for _, b := range buf {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("0x%x", magic)
		}
	}
	if len(buf) == 0 {
		return "0x0"
	}
	return string(buf)
}
