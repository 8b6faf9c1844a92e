// Package market fetches token prices and pair metadata from DexScreener.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"solana-copy-trader/internal/cache"
	"solana-copy-trader/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const solanaChainID = "solana"

// TokenPriceData is the price snapshot used by the monitor and PnL views
type TokenPriceData struct {
	Price          float64 `json:"price"`
	PriceChange24h float64 `json:"priceChange24h"`
	Volume24h      float64 `json:"volume24h"`
	Liquidity      float64 `json:"liquidity"`
}

// TokenInfo is the market context handed to the risk scorer
type TokenInfo struct {
	Address        string    `json:"address"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	PairAddress    string    `json:"pairAddress"`
	DexID          string    `json:"dexId"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"priceChange24h"`
	PriceChange1h  float64   `json:"priceChange1h"`
	Volume24h      float64   `json:"volume24h"`
	Liquidity      float64   `json:"liquidity"`
	MarketCap      float64   `json:"marketCap"`
	FDV            float64   `json:"fdv"`
	Buys24h        int       `json:"buys24h"`
	Sells24h       int       `json:"sells24h"`
	PairCreatedAt  time.Time `json:"pairCreatedAt"`
}

// PriceData projects the price snapshot out of the pair metadata
func (t *TokenInfo) PriceData() *TokenPriceData {
	return &TokenPriceData{
		Price:          t.Price,
		PriceChange24h: t.PriceChange24h,
		Volume24h:      t.Volume24h,
		Liquidity:      t.Liquidity,
	}
}

// PairAge returns how long the pair has existed, zero when unknown
func (t *TokenInfo) PairAge(now time.Time) time.Duration {
	if t.PairCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(t.PairCreatedAt)
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd string `json:"priceUsd"`
	Txns     struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
}

type dexTokensResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// Config holds DexScreener client settings
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client is the DexScreener API client
type Client struct {
	baseURL    string
	cacheTTL   time.Duration
	httpClient *http.Client
	cache      cache.Cache
	logger     zerolog.Logger
}

// NewClient creates a DexScreener client backed by c
func NewClient(cfg Config, c cache.Cache, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultPriceTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cacheTTL:   cfg.CacheTTL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      c,
		logger:     logger.With().Str("component", "dexscreener").Logger(),
	}
}

// GetTokenPriceData returns the price snapshot of the token's most liquid
// Solana pair, or nil when DexScreener lists no pair.
func (c *Client) GetTokenPriceData(ctx context.Context, tokenAddress string) (*TokenPriceData, error) {
	info, err := c.GetTokenInfo(ctx, tokenAddress)
	if err != nil || info == nil {
		return nil, err
	}
	return info.PriceData(), nil
}

// GetTokenInfo returns pair metadata for the token, or nil when unlisted
func (c *Client) GetTokenInfo(ctx context.Context, tokenAddress string) (*TokenInfo, error) {
	key := cache.TokenInfoKey(tokenAddress)
	if c.cache != nil {
		var cached TokenInfo
		err := cache.GetJSON(ctx, c.cache, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("token", tokenAddress).Msg("Cache read failed")
		}
	}

	start := time.Now()
	info, err := c.fetch(ctx, tokenAddress)
	metrics.ObserveUpstream("dexscreener", start, err)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, info, c.cacheTTL); err != nil {
			c.logger.Debug().Err(err).Str("token", tokenAddress).Msg("Cache write failed")
		}
	}
	return info, nil
}

func (c *Client) fetch(ctx context.Context, tokenAddress string) (*TokenInfo, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener returned status %d", resp.StatusCode)
	}

	var parsed dexTokensResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	pair := bestPair(parsed.Pairs, tokenAddress)
	if pair == nil {
		return nil, nil
	}
	return pairToInfo(tokenAddress, pair), nil
}

// bestPair picks the Solana pair with the deepest liquidity where the
// token is the base asset.
func bestPair(pairs []dexPair, tokenAddress string) *dexPair {
	var best *dexPair
	var bestLiq float64
	for i := range pairs {
		p := &pairs[i]
		if p.ChainID != solanaChainID || !strings.EqualFold(p.BaseToken.Address, tokenAddress) {
			continue
		}
		liq := 0.0
		if p.Liquidity != nil {
			liq = p.Liquidity.Usd
		}
		if best == nil || liq > bestLiq {
			best, bestLiq = p, liq
		}
	}
	return best
}

func pairToInfo(tokenAddress string, p *dexPair) *TokenInfo {
	price := 0.0
	if p.PriceUsd != "" {
		if d, err := decimal.NewFromString(p.PriceUsd); err == nil {
			price = d.InexactFloat64()
		}
	}
	info := &TokenInfo{
		Address:        tokenAddress,
		Name:           p.BaseToken.Name,
		Symbol:         p.BaseToken.Symbol,
		PairAddress:    p.PairAddress,
		DexID:          p.DexID,
		Price:          price,
		PriceChange24h: p.PriceChange.H24,
		PriceChange1h:  p.PriceChange.H1,
		Volume24h:      p.Volume.H24,
		MarketCap:      p.MarketCap,
		FDV:            p.FDV,
		Buys24h:        p.Txns.H24.Buys,
		Sells24h:       p.Txns.H24.Sells,
	}
	if p.Liquidity != nil {
		info.Liquidity = p.Liquidity.Usd
	}
	if p.PairCreatedAt > 0 {
		info.PairCreatedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	return info
}
