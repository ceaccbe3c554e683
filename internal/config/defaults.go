package config

const (
	defaultPosterDir          = "~/.local/share/fennec/posters"
	defaultLogDir             = "~/.local/share/fennec/logs"
	defaultAPIBind            = "127.0.0.1:8701"
	defaultIngestBind         = "127.0.0.1:8702"
	defaultDBHost             = "localhost"
	defaultDBPort             = 5432
	defaultDBUser             = "fennec"
	defaultDBName             = "fennec"
	defaultDBSSLMode          = "disable"
	defaultInferenceTimeout   = 600
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultModelBackoff       = 60
	defaultPauseCheckInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PosterDir:  defaultPosterDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
			IngestBind: defaultIngestBind,
		},
		Database: Database{
			Host:    defaultDBHost,
			Port:    defaultDBPort,
			User:    defaultDBUser,
			Name:    defaultDBName,
			SSLMode: defaultDBSSLMode,
		},
		Inference: Inference{
			VisualURL:      "http://127.0.0.1:9701",
			SpeechURL:      "http://127.0.0.1:9702",
			SentenceURL:    "http://127.0.0.1:9703",
			FaceURL:        "http://127.0.0.1:9704",
			TimeoutSeconds: defaultInferenceTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			ModelBackoff:       defaultModelBackoff,
			PauseCheckInterval: defaultPauseCheckInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
