package models

import (
	"context"
	"time"

	"fennec/internal/services"
	"fennec/internal/vecmath"
)

// SentenceHost encodes text into a semantic embedding space, L2-normalized.
type SentenceHost struct {
	*client
}

// NewSentenceHost builds the sentence encoder adapter.
func NewSentenceHost(baseURL string, timeout time.Duration) *SentenceHost {
	return &SentenceHost{client: newClient("sentence", baseURL, timeout)}
}

// Embed encodes a transcript or query string.
func (h *SentenceHost) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var resp embedResponse
	if err := h.postJSON(ctx, "/embed", embedTextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, services.Wrap(services.ErrTransient, h.name, "embed", "empty vector", nil)
	}
	return vecmath.Normalize(resp.Vector), nil
}
