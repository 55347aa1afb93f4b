// Package rates caches currency→USD conversion rates for adapters that
// annotate paid messages. Lookups never block: a stale cache triggers one
// background refresh and the current lookup simply reports no rate. A
// refresh that never completes leaves the cache unchanged.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Cache holds the most recent rate table.
type Cache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger *slog.Logger

	mu         sync.Mutex
	rates      map[string]float64
	fetchedAt  time.Time
	refreshing bool
}

// New creates a cache refreshing from url at most once per ttl.
func New(url string, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With(slog.String("component", "rates")),
	}
}

// USDRate returns how many units of code one USD buys, if a fresh rate is
// cached. When the cache is cold or stale it kicks off a background refresh
// and reports ok=false for this call; callers proceed without conversion.
func (c *Cache) USDRate(code string) (float64, bool) {
	code = strings.ToUpper(code)
	if code == "USD" {
		return 1, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl
	if !fresh && !c.refreshing && c.url != "" {
		c.refreshing = true
		go c.refresh()
	}
	if c.rates == nil {
		return 0, false
	}
	r, ok := c.rates[code]
	return r, ok && r > 0
}

// ToUSD converts amount in code to USD using the cached table.
func (c *Cache) ToUSD(amount float64, code string) (float64, bool) {
	r, ok := c.USDRate(code)
	if !ok || r == 0 {
		return 0, false
	}
	return amount / r, true
}

func (c *Cache) refresh() {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	table, err := c.fetch(context.Background())
	if err != nil {
		c.logger.Warn("rate refresh failed", slog.Any("err", err))
		return
	}

	c.mu.Lock()
	c.rates = table
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	c.logger.Debug("rate table refreshed", slog.Int("currencies", len(table)))
}

func (c *Cache) fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rate endpoint returned no rates")
	}

	table := make(map[string]float64, len(body.Rates))
	for code, rate := range body.Rates {
		table[strings.ToUpper(code)] = rate
	}
	return table, nil
}
