package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	DefaultTimeout        = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 1 * time.Second
)

// DexScreenerClient implements Provider against the DexScreener public API.
// Mint addresses resolve through /latest/dex/tokens, symbols through /latest/dex/search.
type DexScreenerClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// ClientOption configures DexScreenerClient.
type ClientOption func(*DexScreenerClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *DexScreenerClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets retry attempts for 5xx responses.
func WithMaxRetries(n int) ClientOption {
	return func(c *DexScreenerClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the base delay; attempt n waits n*delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *DexScreenerClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *DexScreenerClient) {
		c.client = client
	}
}

// NewDexScreenerClient creates a client. An empty baseURL uses DefaultDexScreenerURL.
func NewDexScreenerClient(baseURL string, opts ...ClientOption) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	c := &DexScreenerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type dexPair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
	Volume   struct {
		H24 decimal.Decimal `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	FDV       decimal.Decimal `json:"fdv"`
	MarketCap decimal.Decimal `json:"marketCap"`
}

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// Metrics implements Provider.
func (c *DexScreenerClient) Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	start := time.Now()
	m, err := c.metrics(ctx, coin)
	status := "ok"
	switch {
	case errors.Is(err, ErrPriceUnavailable):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	observability.RecordPriceLookup(status, time.Since(start).Seconds())
	return m, err
}

func (c *DexScreenerClient) metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	parsed := ParseCoin(coin)
	if parsed.Raw == "" {
		return nil, ErrPriceUnavailable
	}

	var endpoint string
	if parsed.Kind == CoinMint {
		endpoint = c.baseURL + "/latest/dex/tokens/" + url.PathEscape(parsed.Raw)
	} else {
		endpoint = c.baseURL + "/latest/dex/search?q=" + url.QueryEscape(parsed.Raw)
	}

	var resp dexResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	pairs := resp.Pairs
	if parsed.Kind == CoinSymbol {
		pairs = filterBySymbol(pairs, parsed.Raw)
	}
	if len(pairs) == 0 {
		return nil, ErrPriceUnavailable
	}

	best := mostLiquid(pairs)
	if !best.PriceUSD.IsPositive() {
		return nil, ErrPriceUnavailable
	}
	marketCap := best.MarketCap
	if marketCap.IsZero() {
		marketCap = best.FDV
	}
	price, _ := best.PriceUSD.Float64()
	volume, _ := best.Volume.H24.Float64()
	mc, _ := marketCap.Float64()
	liq, _ := best.Liquidity.USD.Float64()

	return &domain.TokenMetrics{
		Price:      price,
		Volume24h:  volume,
		MarketCap:  mc,
		Liquidity:  liq,
		ObservedAt: c.now().UTC(),
	}, nil
}

func filterBySymbol(pairs []dexPair, symbol string) []dexPair {
	out := make([]dexPair, 0, len(pairs))
	for _, p := range pairs {
		if strings.EqualFold(p.BaseToken.Symbol, symbol) {
			out = append(out, p)
		}
	}
	return out
}

// mostLiquid returns the pair with the highest USD liquidity. Ties keep API order.
func mostLiquid(pairs []dexPair) dexPair {
	sorted := append([]dexPair(nil), pairs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Liquidity.USD.GreaterThan(sorted[j].Liquidity.USD)
	})
	return sorted[0]
}

// get performs a GET with linear backoff retries on 5xx and transport errors.
// 404 maps to ErrPriceUnavailable; other 4xx fail immediately.
func (c *DexScreenerClient) get(ctx context.Context, endpoint string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return ErrPriceUnavailable
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ Provider = (*DexScreenerClient)(nil)
