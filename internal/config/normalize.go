package config

import "strings"

// normalize expands paths and fills in zero-valued fields with defaults.
func (c *Config) normalize() error {
	var err error
	if c.Paths.PosterDir, err = expandPath(c.Paths.PosterDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if strings.TrimSpace(c.Paths.IngestBind) == "" {
		c.Paths.IngestBind = defaultIngestBind
	}

	if c.Database.Port == 0 {
		c.Database.Port = defaultDBPort
	}
	if strings.TrimSpace(c.Database.SSLMode) == "" {
		c.Database.SSLMode = defaultDBSSLMode
	}

	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeout
	}

	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.ModelBackoff <= 0 {
		c.Workflow.ModelBackoff = defaultModelBackoff
	}
	if c.Workflow.PauseCheckInterval <= 0 {
		c.Workflow.PauseCheckInterval = defaultPauseCheckInterval
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
