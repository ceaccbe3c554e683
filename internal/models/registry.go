package models

import (
	"time"

	"fennec/internal/config"
)

// Registry owns the process-local model hosts. Hosts are singletons; once
// loaded each is invoked sequentially by its caller, never concurrently.
type Registry struct {
	Visual   *VisualHost
	Speech   *SpeechHost
	Sentence *SentenceHost
	Face     *FaceHost
}

// NewRegistry builds hosts from the configured inference endpoints.
func NewRegistry(cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.Inference.TimeoutSeconds) * time.Second
	return &Registry{
		Visual:   NewVisualHost(cfg.Inference.VisualURL, timeout),
		Speech:   NewSpeechHost(cfg.Inference.SpeechURL, timeout),
		Sentence: NewSentenceHost(cfg.Inference.SentenceURL, timeout),
		Face:     NewFaceHost(cfg.Inference.FaceURL, timeout),
	}
}

// Readiness is the composite load state the query surface gates features on.
type Readiness struct {
	VisualLoaded   bool `json:"clip_loaded"`
	SentenceLoaded bool `json:"sentence_loaded"`
	ModelsReady    bool `json:"models_ready"`
}

// Readiness snapshots which query-side encoders are currently loaded.
func (r *Registry) Readiness() Readiness {
	visual := r.Visual.Ready()
	sentence := r.Sentence.Ready()
	return Readiness{
		VisualLoaded:   visual,
		SentenceLoaded: sentence,
		ModelsReady:    visual && sentence,
	}
}
