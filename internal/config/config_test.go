package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultNormalizeValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !filepath.IsAbs(cfg.Paths.PosterDir) {
		t.Fatalf("poster dir not expanded: %q", cfg.Paths.PosterDir)
	}
	if cfg.Workflow.QueuePollInterval <= 0 {
		t.Fatal("queue poll interval must default positive")
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fennec.toml")
	content := `
[paths]
poster_dir = "` + dir + `/posters"
api_bind = "127.0.0.1:9999"

[database]
host = "db.example"
user = "svc"
name = "fennec_test"

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config at %q", resolved)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Database.Host != "db.example" || cfg.Database.Port != 5432 {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging format = %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fennec.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown log format")
	}
}

func TestEnvOverridesDatabase(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "env-host")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg := Default()
	cfg.applyEnv()
	if cfg.Database.Host != "env-host" {
		t.Fatalf("host = %q", cfg.Database.Host)
	}
	if cfg.Database.Port != 6543 {
		t.Fatalf("port = %d", cfg.Database.Port)
	}
	if cfg.Database.Password != "secret" {
		t.Fatalf("password not applied")
	}
}

func TestDSN(t *testing.T) {
	cfg := Default()
	cfg.Database = Database{Host: "h", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=h user=u password=p dbname=n port=5433 sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestWatchFoldersFromEnv(t *testing.T) {
	t.Setenv("WATCH_FOLDERS", " /mnt/media , /srv/footage ,, ")
	folders := WatchFoldersFromEnv()
	if len(folders) != 2 || folders[0] != "/mnt/media" || folders[1] != "/srv/footage" {
		t.Fatalf("folders = %v", folders)
	}

	t.Setenv("WATCH_FOLDERS", "   ")
	if folders := WatchFoldersFromEnv(); folders != nil {
		t.Fatalf("expected nil for blank env, got %v", folders)
	}
}

func TestValidateInferenceURLs(t *testing.T) {
	cfg := Default()
	cfg.Inference.VisualURL = "ftp://bad"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http inference URL")
	}
}
