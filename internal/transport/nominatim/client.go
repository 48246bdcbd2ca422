// Package nominatim resolves coordinates to place names via the Nominatim reverse API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds reverse geocoder settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RatePerSec caps outgoing requests. Public Nominatim allows one per second.
	RatePerSec float64
}

// Client calls /reverse. Failures never reach the caller: Locality returns "".
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a Nominatim client.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

type reverseResponse struct {
	Address map[string]string `json:"address"`
	Error   string            `json:"error"`
}

// localityKeys are tried in order.
var localityKeys = []string{"city", "town", "village", "state"}

// Locality returns the most specific place name for (lat, lon) in lang, or "".
func (c *Client) Locality(ctx context.Context, lat, lon float64, lang string) string {
	name, err := c.reverse(ctx, lat, lon, lang)
	if err != nil {
		c.logger.Warn("Reverse geocoding failed",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		return ""
	}
	return name
}

func (c *Client) reverse(ctx context.Context, lat, lon float64, lang string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if lang != "" {
		q.Set("accept-language", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse request: status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("nominatim: %s", body.Error)
	}

	for _, k := range localityKeys {
		if v := strings.TrimSpace(body.Address[k]); v != "" {
			return v, nil
		}
	}
	return "", nil
}
