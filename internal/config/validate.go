package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Host) == "" {
		return errors.New("database.host must be set")
	}
	if strings.TrimSpace(c.Database.User) == "" {
		return errors.New("database.user must be set")
	}
	if strings.TrimSpace(c.Database.Name) == "" {
		return errors.New("database.name must be set")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port out of range: %d", c.Database.Port)
	}
	return nil
}

func (c *Config) validateInference() error {
	for name, url := range map[string]string{
		"inference.visual_url":   c.Inference.VisualURL,
		"inference.speech_url":   c.Inference.SpeechURL,
		"inference.sentence_url": c.Inference.SentenceURL,
		"inference.face_url":     c.Inference.FaceURL,
	} {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
			return fmt.Errorf("%s must be an http(s) URL", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
