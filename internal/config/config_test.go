package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxPayload != 1<<20 {
		t.Fatalf("default max payload %d", cfg.MaxPayload)
	}
	if cfg.Notify.QueueSize != 1024 || cfg.Notify.SubscriberBuffer != 64 {
		t.Fatalf("notify defaults %+v", cfg.Notify)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "peerchan.json")
	data := []byte(`{"maxPayload":"2MiB","reads":{"sequencedOnly":true},"notify":{"queueSize":16},"allowedContentTypes":["application/json"]}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPayload != 2<<20 {
		t.Fatalf("max payload %d", cfg.MaxPayload)
	}
	if !cfg.Reads.SequencedOnly || cfg.Notify.QueueSize != 16 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Notify.SubscriberBuffer != 64 {
		t.Fatalf("unset field lost its default")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "peerchan.yaml")
	data := []byte(`
maxPayload: 64KB
maxChannelsPerAccount: 10
retention:
  enabled: true
  cron: "*/5 * * * *"
rateLimit:
  rps: 2.5
  burst: 5
log:
  level: debug
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPayload != 64000 || cfg.MaxChannelsPerAccount != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Retention.Cron != "*/5 * * * *" || cfg.RateLimit.RPS != 2.5 || cfg.Log.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"bad cron", func(c *Config) { c.Retention.Cron = "every tuesday" }},
		{"zero payload", func(c *Config) { c.MaxPayload = 0 }},
		{"rps without burst", func(c *Config) { c.RateLimit = RateLimitConfig{RPS: 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	cfg := Default()
	cfg.Retention = RetentionConfig{Enabled: false, Cron: "nonsense"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled retention cron should not be checked: %v", err)
	}
}

func TestContentTypeAllowed(t *testing.T) {
	cfg := Default()
	if !cfg.ContentTypeAllowed("anything/at-all") {
		t.Fatalf("empty allow list should accept")
	}
	cfg.AllowedContentTypes = []string{"application/json", "application/octet-stream"}
	if !cfg.ContentTypeAllowed("application/JSON; charset=utf-8") {
		t.Fatalf("parameters should be ignored")
	}
	if cfg.ContentTypeAllowed("text/plain") {
		t.Fatalf("text/plain allowed")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want SizeBytes
	}{
		{"", 0},
		{"1024", 1024},
		{"1KiB", 1024},
		{"1 MB", 1000000},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseSize(%q) = %d, %v", tt.in, got, err)
		}
	}
	if _, err := ParseSize("lots"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("PEERCHAN_MAX_PAYLOAD", "512KiB")
	t.Setenv("PEERCHAN_READS_SEQUENCED_ONLY", "true")
	t.Setenv("PEERCHAN_ALLOWED_CONTENT_TYPES", "application/json, text/plain")
	t.Setenv("PEERCHAN_RATE_LIMIT_RPS", "7")
	FromEnv(&cfg)
	if cfg.MaxPayload != 512<<10 {
		t.Fatalf("env override payload %d", cfg.MaxPayload)
	}
	if !cfg.Reads.SequencedOnly {
		t.Fatalf("env override bool")
	}
	if len(cfg.AllowedContentTypes) != 2 || cfg.AllowedContentTypes[1] != "text/plain" {
		t.Fatalf("env override list %v", cfg.AllowedContentTypes)
	}
	if cfg.RateLimit.RPS != 7 {
		t.Fatalf("env override rps")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("PEERCHAN_LOG_FORMAT=json\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PEERCHAN_LOG_FORMAT", "")
	os.Unsetenv("PEERCHAN_LOG_FORMAT")
	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), file); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Default()
	FromEnv(&cfg)
	if cfg.Log.Format != "json" {
		t.Fatalf("dotenv not applied: %q", cfg.Log.Format)
	}
}
