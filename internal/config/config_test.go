package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "TGMS_BOT_TOKEN", "REDIS_URL", "LOG_LEVEL", "TGMS_POLL_INTERVAL", "TGMS_RUN_ONCE", "TGMS_CONCURRENCY"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
bot:
  token: "123:abc"
database:
  url: "postgres://localhost/tgms"
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Worker.PollInterval != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.MaxRetries != 3 {
		t.Errorf("expected max retries 3, got %d", cfg.Worker.MaxRetries)
	}
	if cfg.Broadcast.FailureThreshold != 7 {
		t.Errorf("expected failure threshold 7, got %d", cfg.Broadcast.FailureThreshold)
	}
	if cfg.Broadcast.DebounceWindow != 15*time.Second {
		t.Errorf("expected debounce 15s, got %s", cfg.Broadcast.DebounceWindow)
	}
	if cfg.Broadcast.InterGroupDelay != 3*time.Second {
		t.Errorf("expected inter-group delay 3s, got %s", cfg.Broadcast.InterGroupDelay)
	}
	if cfg.Bot.RequestTimeout != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %s", cfg.Bot.RequestTimeout)
	}
}

func TestLoadConfig_ZeroMaxRetriesIsKept(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
bot:
  token: "123:abc"
database:
  url: "postgres://localhost/tgms"
worker:
  max_retries: 0
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Worker.MaxRetries != 0 {
		t.Errorf("expected max retries 0 to disable retries, got %d", cfg.Worker.MaxRetries)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("TGMS_BOT_TOKEN", "env-token")
	t.Setenv("TGMS_POLL_INTERVAL", "5")
	t.Setenv("TGMS_RUN_ONCE", "true")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("expected env-only config to load, got %v", err)
	}
	if cfg.Database.URL != "postgres://env/db" || cfg.Bot.Token != "env-token" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.Worker.PollInterval)
	}
	if !cfg.Worker.RunOnce {
		t.Error("expected run_once from env")
	}
}

func TestLoadConfig_RequiresToken(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  url: "postgres://localhost/tgms"
`)
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected missing token to fail validation")
	}
}

func TestLoadConfig_RejectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TGMS_RUN_ONCE", "maybe")
	if _, err := LoadConfig("", false); err == nil {
		t.Fatal("expected invalid TGMS_RUN_ONCE to fail")
	}
}

func TestParseSecondsOrDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"2":     2 * time.Second,
		"500ms": 500 * time.Millisecond,
		" 1m ":  time.Minute,
	}
	for in, want := range cases {
		got, err := parseSecondsOrDuration(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}
}
