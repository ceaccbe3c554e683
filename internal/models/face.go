package models

import (
	"context"
	"time"

	"fennec/internal/services"
	"fennec/internal/vecmath"
)

// Detection is one detected face: bounding box in source-image pixels plus
// an L2-normalized embedding.
type Detection struct {
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	W      float64   `json:"w"`
	H      float64   `json:"h"`
	Vector []float32 `json:"vector"`
}

// FaceHost detects and encodes faces in an image.
type FaceHost struct {
	*client
}

// NewFaceHost builds the face detector adapter.
func NewFaceHost(baseURL string, timeout time.Duration) *FaceHost {
	return &FaceHost{client: newClient("face", baseURL, timeout)}
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Detect returns every face found in the image at the given path. No faces
// is a normal outcome, not an error.
func (h *FaceHost) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	encoded, err := encodeFile(imagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.name, "detect", "read image", err)
	}
	var resp detectResponse
	if err := h.postJSON(ctx, "/detect", embedImageRequest{ImageB64: encoded}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Faces {
		vecmath.Normalize(resp.Faces[i].Vector)
	}
	return resp.Faces, nil
}
