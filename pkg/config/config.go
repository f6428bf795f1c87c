// Package config loads server configuration from, in increasing
// precedence: a YAML file, environment variables, then command-line
// flags, with gopkg.in/yaml.v3 as the file format.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every server-side tunable: listen address, document
// retention, the reaper schedule, persistence backend selection, and the
// broadcast/rate-limit knobs that bound resource use per session.
type Config struct {
	Addr                string        `yaml:"addr"`
	ExpiryDays          int           `yaml:"expiry_days"`
	ReaperSchedule      string        `yaml:"reaper_schedule"`
	SQLiteURI           string        `yaml:"sqlite_uri"`
	StorageDir          string        `yaml:"storage_dir"`
	S3Bucket            string        `yaml:"s3_bucket"`
	S3Prefix            string        `yaml:"s3_prefix"`
	MaxDocumentSizeKB   int           `yaml:"max_document_size_kb"`
	BroadcastBufferSize int           `yaml:"broadcast_buffer_size"`
	JoinCompressKB      int           `yaml:"join_compress_kb"`
	SendRatePerSecond   float64       `yaml:"send_rate_per_second"`
	WSReadTimeout       time.Duration `yaml:"ws_read_timeout"`
}

// Default returns a reasonable configuration for a single-process
// deployment.
func Default() Config {
	return Config{
		Addr:                ":3030",
		ExpiryDays:          7,
		ReaperSchedule:      "@hourly",
		MaxDocumentSizeKB:   10 * 1024,
		BroadcastBufferSize: 32,
		JoinCompressKB:      256,
		SendRatePerSecond:   50,
		WSReadTimeout:       30 * time.Minute,
	}
}

// Load builds a Config starting from Default, overlaying a YAML file at
// yamlPath (if non-empty and present), then environment variables.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		}
	}

	cfg.Addr = getEnv("TED_ADDR", cfg.Addr)
	cfg.ExpiryDays = getEnvInt("TED_EXPIRY_DAYS", cfg.ExpiryDays)
	cfg.ReaperSchedule = getEnv("TED_REAPER_SCHEDULE", cfg.ReaperSchedule)
	cfg.SQLiteURI = getEnv("TED_SQLITE_URI", cfg.SQLiteURI)
	cfg.StorageDir = getEnv("TED_STORAGE_DIR", cfg.StorageDir)
	cfg.S3Bucket = getEnv("TED_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("TED_S3_PREFIX", cfg.S3Prefix)
	cfg.MaxDocumentSizeKB = getEnvInt("TED_MAX_DOCUMENT_SIZE_KB", cfg.MaxDocumentSizeKB)
	cfg.BroadcastBufferSize = getEnvInt("TED_BROADCAST_BUFFER_SIZE", cfg.BroadcastBufferSize)
	cfg.JoinCompressKB = getEnvInt("TED_JOIN_COMPRESS_KB", cfg.JoinCompressKB)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
