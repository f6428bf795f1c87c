package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoFileOrEnvReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want Default() %+v", cfg, Default())
	}
}

func TestLoadMissingFilePathIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want Default() %+v", cfg, Default())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ted.yaml")
	yaml := "addr: \":9999\"\nexpiry_days: 3\nsqlite_uri: \"file:test.db\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.ExpiryDays != 3 {
		t.Errorf("ExpiryDays = %d, want 3", cfg.ExpiryDays)
	}
	if cfg.SQLiteURI != "file:test.db" {
		t.Errorf("SQLiteURI = %q, want file:test.db", cfg.SQLiteURI)
	}
	// Fields the YAML did not mention keep their defaults.
	if cfg.ReaperSchedule != Default().ReaperSchedule {
		t.Errorf("ReaperSchedule = %q, want default %q", cfg.ReaperSchedule, Default().ReaperSchedule)
	}
}

func TestEnvVarsOverrideYAMLAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ted.yaml")
	if err := os.WriteFile(path, []byte("addr: \":1111\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("TED_ADDR", ":2222")
	t.Setenv("TED_EXPIRY_DAYS", "14")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":2222" {
		t.Errorf("Addr = %q, want env override :2222", cfg.Addr)
	}
	if cfg.ExpiryDays != 14 {
		t.Errorf("ExpiryDays = %d, want env override 14", cfg.ExpiryDays)
	}
}

func TestGetEnvIntIgnoresUnparsableValue(t *testing.T) {
	t.Setenv("TED_MAX_DOCUMENT_SIZE_KB", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDocumentSizeKB != Default().MaxDocumentSizeKB {
		t.Errorf("MaxDocumentSizeKB = %d, want default %d kept on parse failure",
			cfg.MaxDocumentSizeKB, Default().MaxDocumentSizeKB)
	}
}
