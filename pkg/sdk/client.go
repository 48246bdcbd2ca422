package photodex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Client is the photodex SDK entry point.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	obs       *observer
}

// New creates a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout, userAgent: "photodex-go"}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("photodex: invalid base url %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Upload stores a photo. A photo already known by its EXIF fingerprint fails with ErrDuplicate.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, opts UploadOptions) (img Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upload", start, err) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return Image{}, fmt.Errorf("photodex: create form file: %w", err)
	}
	if _, err = io.Copy(fw, r); err != nil {
		return Image{}, fmt.Errorf("photodex: read upload: %w", err)
	}
	fields := map[string]string{
		"location": opts.Location,
		"tags":     strings.Join(opts.Tags, ","),
	}
	if !opts.Date.IsZero() {
		fields["date"] = opts.Date.Format(dateLayout)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err = mw.WriteField(k, v); err != nil {
			return Image{}, fmt.Errorf("photodex: write field %s: %w", k, err)
		}
	}
	if err = mw.Close(); err != nil {
		return Image{}, fmt.Errorf("photodex: close form: %w", err)
	}

	var resp struct {
		Image Image `json:"image"`
	}
	err = c.do(ctx, http.MethodPost, "/api/v1/images", nil, &body, mw.FormDataContentType(), &resp)
	return resp.Image, err
}

// Get returns an image with its file details.
func (c *Client) Get(ctx context.Context, id int64) (info ImageInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err) }()

	err = c.do(ctx, http.MethodGet, imagePath(id), nil, nil, "", &info)
	return info, err
}

// List returns images newest first. An empty status lists all; limit 0 uses the server default.
func (c *Client) List(ctx context.Context, status Status, limit int) (images []Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list", start, err) }()

	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Items []Image `json:"items"`
	}
	err = c.do(ctx, http.MethodGet, "/api/v1/images", q, nil, "", &resp)
	return resp.Items, err
}

// Delete removes an image and its file.
func (c *Client) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	return c.do(ctx, http.MethodDelete, imagePath(id), nil, nil, "", nil)
}

// Retry re-enqueues the embedding job of a failed image.
func (c *Client) Retry(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("retry", start, err) }()

	return c.do(ctx, http.MethodPost, imagePath(id)+"/retry", nil, nil, "", nil)
}

// RetryFailed re-enqueues every failed image and returns how many were enqueued.
func (c *Client) RetryFailed(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retry_failed", start, err) }()

	var resp struct {
		Enqueued int `json:"enqueued"`
	}
	err = c.do(ctx, http.MethodPost, "/api/v1/images/retry-failed", nil, nil, "", &resp)
	return resp.Enqueued, err
}

// Usage returns storage consumption.
func (c *Client) Usage(ctx context.Context) (u Usage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/v1/usage", nil, nil, "", &u)
	return u, err
}

// Health checks the health of all server components. A degraded server
// answers 503 with a report; the report is returned without an error.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.do(ctx, http.MethodGet, "/health", nil, nil, "", &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && h.Status != "" {
		return h, nil
	}
	return h, err
}

func (c *Client) do(
	ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any,
) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("photodex: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("photodex: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("photodex: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("photodex: decode response: %w", err)
	}
	return nil
}

func imagePath(id int64) string {
	return "/api/v1/images/" + strconv.FormatInt(id, 10)
}
