package domain

import "context"

// VectorDim is the fixed embedding dimension for both image and text inputs.
const VectorDim = 1408

// DefaultModelID identifies the multimodal embedding model.
const DefaultModelID = "multimodalembedding@001"

// TextEmbedder vectorizes text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (EmbeddingResult, error)
}

// ImageEmbedder vectorizes an image file on local disk.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector and the model that produced it.
// Embedding is nil when the provider answered without a vector.
type EmbeddingResult struct {
	Model     string
	Embedding []float32
}

// Empty reports whether the provider produced no vector.
func (r EmbeddingResult) Empty() bool { return len(r.Embedding) == 0 }
