package marketplace

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexFloat decodes a JSON number that the marketplace serves either as a
// bare number or as a quoted string. Null and absent both leave it zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// searchResponse mirrors the persisted nftSearch query response.
type searchResponse struct {
	Data struct {
		AlphaNftItemSearch struct {
			Edges []struct {
				Node itemNode `json:"node"`
			} `json:"edges"`
		} `json:"alphaNftItemSearch"`
	} `json:"data"`
}

// itemNode is one item summary from the listing response.
type itemNode struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Index        int    `json:"index"`
	OwnerAddress string `json:"ownerAddress"`
	Collection   *struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"collection"`
	Sale *struct {
		Address    string    `json:"address"`
		FullPrice  flexFloat `json:"fullPrice"`
		NetworkFee flexFloat `json:"networkFee"`
		Currency   string    `json:"currency"`
	} `json:"sale"`
	MaxOffer *struct {
		ProfitPrice flexFloat `json:"profitPrice"`
	} `json:"maxOffer"`
	Stats *struct {
		PrevOwnersCount *int `json:"prevOwnersCount"`
	} `json:"stats"`
	LastSale *struct {
		FullPrice flexFloat `json:"fullPrice"`
		Date      int64     `json:"date"`
	} `json:"lastSale"`
}

// nextData is the shape of the embedded __NEXT_DATA__ script on detail pages.
// Cache entries stay raw: keys are dynamic and shapes vary per entry, so only
// the entries whose key matches a configured prefix get decoded.
type nextData struct {
	Props struct {
		PageProps struct {
			GqlCache map[string]json.RawMessage `json:"gqlCache"`
		} `json:"pageProps"`
	} `json:"props"`
}

// gqlCacheEntry is the superset of fields read from NftSale* and NftItem*
// cache objects. Monetary fields arrive in nanotons.
type gqlCacheEntry struct {
	Typename       string    `json:"__typename"`
	Address        string    `json:"address"`
	RoyaltyAddress string    `json:"royaltyAddress"`
	RoyaltyAmount  flexFloat `json:"royaltyAmount"`
	MarketplaceFee flexFloat `json:"marketplaceFee"`
	FullPrice      flexFloat `json:"fullPrice"`
	Currency       string    `json:"currency"`
}
