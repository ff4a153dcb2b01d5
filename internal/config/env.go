package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// FromEnv overlays PEERCHAN_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("PEERCHAN_MAX_PAYLOAD"); v != "" {
		if n, err := ParseSize(v); err == nil {
			cfg.MaxPayload = n
		}
	}
	if v := os.Getenv("PEERCHAN_MAX_CHANNELS_PER_ACCOUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxChannelsPerAccount = n
		}
	}
	if v := os.Getenv("PEERCHAN_ALLOWED_CONTENT_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.AllowedContentTypes = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.AllowedContentTypes = append(cfg.AllowedContentTypes, p)
			}
		}
	}
	if v := os.Getenv("PEERCHAN_READS_SEQUENCED_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Reads.SequencedOnly = b
		}
	}
	if v := os.Getenv("PEERCHAN_NOTIFY_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.QueueSize = n
		}
	}
	if v := os.Getenv("PEERCHAN_NOTIFY_SUBSCRIBER_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("PEERCHAN_RETENTION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Retention.Enabled = b
		}
	}
	if v := os.Getenv("PEERCHAN_RETENTION_CRON"); v != "" {
		cfg.Retention.Cron = v
	}
	if v := os.Getenv("PEERCHAN_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("PEERCHAN_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("PEERCHAN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PEERCHAN_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
