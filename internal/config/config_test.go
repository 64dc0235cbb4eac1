package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ROLOAD_DATA_DIR", "ROLOAD_DB", "ROLOAD_LOG_LEVEL", "ROLOAD_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.DBPath != "repair.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "repair.db")
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ROLOAD_DATA_DIR", "/srv/events")
	t.Setenv("ROLOAD_DB", "/var/lib/repair.db")
	t.Setenv("ROLOAD_LOG_LEVEL", "debug")
	t.Setenv("ROLOAD_WORKERS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "/srv/events" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.DBPath != "/var/lib/repair.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
}

func TestLoadRejectsBadWorkers(t *testing.T) {
	for _, v := range []string{"zero", "0", "-2"} {
		t.Setenv("ROLOAD_WORKERS", v)
		if _, err := Load(); err == nil {
			t.Errorf("Load accepted ROLOAD_WORKERS=%q", v)
		}
	}
}
