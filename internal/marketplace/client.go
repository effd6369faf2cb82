// Package marketplace implements the GetGems list and detail contracts: a
// persisted GraphQL query for item summaries and an embedded-JSON scrape of
// detail pages.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkoval/gemwatch/internal/domain"
	"github.com/dkoval/gemwatch/internal/transport"
)

// Config holds the marketplace endpoints and extraction rules.
type Config struct {
	GraphqlURL        string
	SiteURL           string
	CollectionAddress string
	Count             int
	Sha256Hash        string
	XGGClient         string
	SaleKeyPrefix     string
	ItemKeyPrefix     string
	RequestDelayMin   time.Duration
	RequestDelayMax   time.Duration
}

// Client fetches item listings and per-item detail pages.
type Client struct {
	cfg    Config
	http   *transport.Client
	logger *slog.Logger
}

// NewClient creates a marketplace Client on top of the shared transport.
func NewClient(cfg Config, httpClient *transport.Client, logger *slog.Logger) *Client {
	if cfg.SaleKeyPrefix == "" {
		cfg.SaleKeyPrefix = "NftSale"
	}
	if cfg.ItemKeyPrefix == "" {
		cfg.ItemKeyPrefix = "NftItem"
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With(slog.String("component", "marketplace")),
	}
}

// listingURL builds the persisted nftSearch query URL: items of the tracked
// collection with a fix_price sale, sorted ascending by price then index.
func (c *Client) listingURL() string {
	query, _ := json.Marshal(map[string]any{
		"$and": []map[string]any{
			{"collectionAddress": c.cfg.CollectionAddress},
			{"saleType": "fix_price"},
		},
	})
	sortSpec, _ := json.Marshal([]map[string]any{
		{"fixPrice": map[string]string{"order": "asc"}},
		{"index": map[string]string{"order": "asc"}},
	})
	variables, _ := json.Marshal(map[string]any{
		"query":      string(query),
		"attributes": nil,
		"sort":       string(sortSpec),
		"count":      c.cfg.Count,
	})
	extensions, _ := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{
			"version":    1,
			"sha256Hash": c.cfg.Sha256Hash,
		},
	})
	return fmt.Sprintf("%s?operationName=nftSearch&variables=%s&extensions=%s",
		c.cfg.GraphqlURL,
		url.QueryEscape(string(variables)),
		url.QueryEscape(string(extensions)),
	)
}

// FetchListing returns the current batch of item summaries. A malformed or
// empty response yields an empty slice and no error; only transport failures
// propagate.
func (c *Client) FetchListing(ctx context.Context, now time.Time) ([]domain.Offer, []byte, error) {
	headers := map[string]string{
		"Accept":       "*/*",
		"Content-Type": "application/json",
	}
	if c.cfg.XGGClient != "" {
		headers["x-gg-client"] = c.cfg.XGGClient
	}

	start := time.Now()
	_, body, err := c.http.Do(ctx, http.MethodGet, c.listingURL(), headers, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("marketplace: fetch listing: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("listing decode failed, treating as empty",
			slog.String("error", err.Error()),
		)
		return nil, body, nil
	}

	edges := resp.Data.AlphaNftItemSearch.Edges
	offers := make([]domain.Offer, 0, len(edges))
	for _, e := range edges {
		offers = append(offers, c.offerFromNode(e.Node, now))
	}

	c.logger.Info("listing fetched",
		slog.Int("items", len(offers)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return offers, body, nil
}

// offerFromNode maps a listing node to a domain offer, converting nanotons
// and keeping absent values nil.
func (c *Client) offerFromNode(n itemNode, now time.Time) domain.Offer {
	o := domain.Offer{
		TokenAddress: n.Address,
		Name:         n.Name,
		OwnerAddress: n.OwnerAddress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if n.Sale != nil {
		if n.Sale.Address != "" {
			addr := n.Sale.Address
			o.SaleContract = &addr
		}
		o.SalePrice = domain.FromNanotons(float64(n.Sale.FullPrice))
		o.SaleFee = domain.FromNanotons(float64(n.Sale.NetworkFee))
		if n.Sale.Currency != "" {
			cur := n.Sale.Currency
			o.SaleCurrency = &cur
		}
	}
	if n.MaxOffer != nil {
		o.MaxOfferPrice = domain.FromNanotons(float64(n.MaxOffer.ProfitPrice))
	}
	if n.Stats != nil {
		o.PrevOwnersCount = n.Stats.PrevOwnersCount
	}
	if n.LastSale != nil {
		o.LastSalePrice = domain.FromNanotons(float64(n.LastSale.FullPrice))
		if n.LastSale.Date > 0 {
			t := time.Unix(n.LastSale.Date, 0).UTC()
			o.LastSaleDate = &t
		}
	}
	return o
}

// detailURL is the sale-info modal page for one token.
func (c *Client) detailURL(tokenAddress string) string {
	return fmt.Sprintf("%s/collection/%s/%s?modalId=sale_info",
		c.cfg.SiteURL, c.cfg.CollectionAddress, tokenAddress)
}

// ItemURL returns the public page for a token, used in alert messages.
func (c *Client) ItemURL(tokenAddress string) string {
	return c.detailURL(tokenAddress)
}

// FetchDetail fetches and parses one item's detail page. A page without the
// expected structured block returns domain.ErrNoDetail, which callers treat
// as "no detail this cycle" rather than a failure. A uniform random delay in
// the configured window precedes the request to bound per-item request rate.
func (c *Client) FetchDetail(ctx context.Context, tokenAddress string) (domain.Detail, error) {
	if err := c.delay(ctx); err != nil {
		return domain.Detail{}, err
	}

	start := time.Now()
	_, body, err := c.http.Do(ctx, http.MethodGet, c.detailURL(tokenAddress), nil, nil)
	if err != nil {
		return domain.Detail{}, fmt.Errorf("marketplace: fetch detail %s: %w", tokenAddress, err)
	}

	detail, err := c.parseDetail(body)
	if err != nil {
		c.logger.Warn("no structured detail data",
			slog.String("token", tokenAddress),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return domain.Detail{}, domain.ErrNoDetail
	}

	c.logger.Debug("detail parsed",
		slog.String("token", tokenAddress),
		slog.Duration("elapsed", time.Since(start)),
	)
	return detail, nil
}

// parseDetail locates the __NEXT_DATA__ script and extracts the first cache
// entry matching each configured key prefix. First match wins; scan order is
// an upstream property the pipeline cannot enforce.
func (c *Client) parseDetail(html []byte) (domain.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return domain.Detail{}, fmt.Errorf("parse html: %w", err)
	}

	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return domain.Detail{}, fmt.Errorf("__NEXT_DATA__ script absent")
	}

	var nd nextData
	if err := json.Unmarshal([]byte(raw), &nd); err != nil {
		return domain.Detail{}, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}
	cache := nd.Props.PageProps.GqlCache
	if len(cache) == 0 {
		return domain.Detail{}, fmt.Errorf("gql cache empty")
	}

	// Cache keys are scanned in sorted order so the "first" match is stable
	// for a given payload.
	keys := make([]string, 0, len(cache))
	for k := range cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var d domain.Detail
	var haveSale, haveItem bool
	for _, key := range keys {
		rawEntry := cache[key]
		if !haveSale && strings.HasPrefix(key, c.cfg.SaleKeyPrefix) {
			var e gqlCacheEntry
			if err := json.Unmarshal(rawEntry, &e); err != nil {
				continue
			}
			if e.RoyaltyAddress != "" {
				addr := e.RoyaltyAddress
				d.RoyaltyAddress = &addr
			}
			d.RoyaltyAmount = domain.FromNanotons(float64(e.RoyaltyAmount))
			d.FeeTotal = domain.FromNanotons(float64(e.MarketplaceFee))
			d.FullPrice = domain.FromNanotons(float64(e.FullPrice))
			if e.Currency != "" {
				cur := e.Currency
				d.Currency = &cur
			}
			if e.Typename != "" {
				tn := e.Typename
				d.SaleType = &tn
			}
			haveSale = true
		}
		if !haveItem && strings.HasPrefix(key, c.cfg.ItemKeyPrefix) {
			var e gqlCacheEntry
			if err := json.Unmarshal(rawEntry, &e); err != nil {
				continue
			}
			if e.Address != "" {
				addr := e.Address
				d.NftAddress = &addr
				haveItem = true
			}
		}
		if haveSale && haveItem {
			break
		}
	}

	if d.IsZero() {
		return domain.Detail{}, fmt.Errorf("no matching cache entries")
	}
	return d, nil
}

// delay sleeps a uniform random duration inside the configured window.
func (c *Client) delay(ctx context.Context) error {
	min, max := c.cfg.RequestDelayMin, c.cfg.RequestDelayMax
	if max <= 0 || max < min {
		return nil
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
