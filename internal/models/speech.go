package models

import (
	"context"
	"time"

	"fennec/internal/services"
)

// Segment is one span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeechHost turns audio into timed text segments.
type SpeechHost struct {
	*client
}

// NewSpeechHost builds the speech-to-text adapter.
func NewSpeechHost(baseURL string, timeout time.Duration) *SpeechHost {
	return &SpeechHost{client: newClient("speech", baseURL, timeout)}
}

type transcribeRequest struct {
	AudioB64 string `json:"audio_b64"`
}

type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

// Transcribe runs speech-to-text over a 16 kHz mono WAV file. An empty
// segment list means no speech was detected; that is not an error.
func (h *SpeechHost) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	encoded, err := encodeFile(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, h.name, "transcribe", "read audio", err)
	}
	var resp transcribeResponse
	if err := h.postJSON(ctx, "/transcribe", transcribeRequest{AudioB64: encoded}, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}
