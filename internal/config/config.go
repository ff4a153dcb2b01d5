package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// MaxPayload bounds a single message body.
	MaxPayload SizeBytes `json:"maxPayload" yaml:"maxPayload"`
	// MaxChannelsPerAccount is applied to accounts seen for the first time;
	// 0 means unlimited.
	MaxChannelsPerAccount int `json:"maxChannelsPerAccount" yaml:"maxChannelsPerAccount"`
	// AllowedContentTypes restricts message content types; empty allows any.
	AllowedContentTypes []string        `json:"allowedContentTypes" yaml:"allowedContentTypes"`
	Reads               ReadsConfig     `json:"reads" yaml:"reads"`
	Notify              NotifyConfig    `json:"notify" yaml:"notify"`
	Retention           RetentionConfig `json:"retention" yaml:"retention"`
	RateLimit           RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
	Log                 LogConfig       `json:"log" yaml:"log"`
}

// ReadsConfig tunes the read path.
type ReadsConfig struct {
	// SequencedOnly restricts message listing to sequenced channels.
	SequencedOnly bool `json:"sequencedOnly" yaml:"sequencedOnly"`
}

// NotifyConfig sizes the push notification queues.
type NotifyConfig struct {
	QueueSize        int `json:"queueSize" yaml:"queueSize"`
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer"`
}

// RetentionConfig schedules the prune job.
type RetentionConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Cron    string `json:"cron" yaml:"cron"`
}

// RateLimitConfig is the per-token write limit. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `json:"rps" yaml:"rps"`
	Burst int     `json:"burst" yaml:"burst"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		MaxPayload: 1 << 20,
		Notify: NotifyConfig{
			QueueSize:        1024,
			SubscriberBuffer: 64,
		},
		Retention: RetentionConfig{
			Enabled: true,
			Cron:    "0 * * * *",
		},
		RateLimit: RateLimitConfig{RPS: 50, Burst: 100},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed in the type system.
func (c Config) Validate() error {
	if c.MaxPayload <= 0 {
		return fmt.Errorf("config: maxPayload must be positive")
	}
	if c.Retention.Enabled && !gronx.IsValid(c.Retention.Cron) {
		return fmt.Errorf("config: invalid retention cron %q", c.Retention.Cron)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rateLimit.burst must be positive when rps is set")
	}
	if c.Notify.QueueSize < 0 || c.Notify.SubscriberBuffer < 0 {
		return fmt.Errorf("config: notify sizes must not be negative")
	}
	return nil
}

// ContentTypeAllowed reports whether ct passes AllowedContentTypes. Media
// type parameters such as charset are ignored.
func (c Config) ContentTypeAllowed(ct string) bool {
	if len(c.AllowedContentTypes) == 0 {
		return true
	}
	base := strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	for _, a := range c.AllowedContentTypes {
		if strings.EqualFold(a, base) {
			return true
		}
	}
	return false
}

// SizeBytes is a byte count written either as a plain integer or a human
// string like "64MB" or "1MiB".
type SizeBytes int64

// ParseSize parses a human size string.
func ParseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	v, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %q", raw)
	}
	return SizeBytes(v), nil
}

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s *SizeBytes) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*s = SizeBytes(t)
		return nil
	case string:
		v, err := ParseSize(t)
		if err != nil {
			return err
		}
		*s = v
		return nil
	case nil:
		*s = 0
		return nil
	default:
		return fmt.Errorf("invalid size value: %s", b)
	}
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// String renders the size in IEC units.
func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }
