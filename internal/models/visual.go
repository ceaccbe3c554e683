package models

import (
	"context"
	"time"

	"fennec/internal/services"
	"fennec/internal/vecmath"
)

// VisualHost encodes text and images into a shared embedding space.
// Outputs are L2-normalized so cosine similarity reduces to dot product.
type VisualHost struct {
	*client
}

// NewVisualHost builds the visual encoder adapter.
func NewVisualHost(baseURL string, timeout time.Duration) *VisualHost {
	return &VisualHost{client: newClient("visual", baseURL, timeout)}
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedImageRequest struct {
	ImageB64 string `json:"image_b64"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// EmbedText encodes a query string.
func (h *VisualHost) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var resp embedResponse
	if err := h.postJSON(ctx, "/embed_text", embedTextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, services.Wrap(services.ErrTransient, h.name, "embed_text", "empty vector", nil)
	}
	return vecmath.Normalize(resp.Vector), nil
}

// EmbedImage encodes the image at the given path.
func (h *VisualHost) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	encoded, err := encodeFile(imagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.name, "embed_image", "read image", err)
	}
	var resp embedResponse
	if err := h.postJSON(ctx, "/embed_image", embedImageRequest{ImageB64: encoded}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, services.Wrap(services.ErrTransient, h.name, "embed_image", "empty vector", nil)
	}
	return vecmath.Normalize(resp.Vector), nil
}
