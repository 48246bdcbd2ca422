package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/metrics"
)

const (
	inputText  = "text"
	inputImage = "image"

	projectHeader = "OpenAI-Project"
)

// Embedder is a multimodal embedding provider using an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxImagePx int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Project    string
	Model      string
	Dimensions int
	// MaxImagePixels bounds the longer image side before upload.
	MaxImagePixels int
	Timeout        time.Duration
	Logger         *zap.Logger
}

// NewEmbedder creates the provider. Missing credentials are reported as
// domain.ErrConfiguration without touching the network.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding.api_key is required: %w", domain.ErrConfiguration)
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("embedding.project is required: %w", domain.ErrConfiguration)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &projectTransport{project: cfg.Project, next: http.DefaultTransport},
	}

	model := cfg.Model
	if model == "" {
		model = domain.DefaultModelID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
		maxImagePx: cfg.MaxImagePixels,
		logger:     logger,
	}, nil
}

// projectTransport stamps the project header on every request.
type projectTransport struct {
	project string
	next    http.RoundTripper
}

func (t *projectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(projectHeader, t.project)
	return t.next.RoundTrip(r) //nolint:wrapcheck // transport passthrough
}

// EmbedText implements domain.TextEmbedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return e.create(ctx, inputText, []string{text})
}

// EmbedImage implements domain.ImageEmbedder. The image is downscaled and
// re-encoded as JPEG before upload.
func (e *Embedder) EmbedImage(ctx context.Context, path string) (domain.EmbeddingResult, error) {
	uri, err := e.imageDataURI(path)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return e.create(ctx, inputImage, []map[string]string{{"image": uri}})
}

func (e *Embedder) imageDataURI(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	if e.maxImagePx > 0 {
		b := img.Bounds()
		if b.Dx() > e.maxImagePx || b.Dy() > e.maxImagePx {
			img = imaging.Fit(img, e.maxImagePx, e.maxImagePx, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (e *Embedder) create(ctx context.Context, input string, payload any) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          payload,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(model, input, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(model, "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	metrics.EmbeddingRequestDuration.WithLabelValues(model, input).Observe(duration.Seconds())

	if resp.Model != "" {
		model = string(resp.Model)
	}

	// An answer without a vector is not a transport error; callers decide.
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(model, input, "empty").Inc()
		return domain.EmbeddingResult{Model: model}, nil
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(model, input, "success").Inc()
	e.logger.Debug("Embedding created",
		zap.String("input", input),
		zap.Int("dims", len(resp.Data[0].Embedding)),
		zap.Duration("duration", duration),
	)

	return domain.EmbeddingResult{
		Model:     model,
		Embedding: resp.Data[0].Embedding,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("embedding request: %w: %w", err, wrap)
	}
	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
