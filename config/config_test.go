package config

import (
	"os"
	"testing"
)

// unset clears name for the test while keeping t.Setenv's restore semantics.
func unset(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	os.Unsetenv(name)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dealtrack")
	t.Setenv("JWT_SECRET", "test-secret")
	unset(t, "PORT")
	unset(t, "API_PREFIX")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Port)
	}
	if cfg.APIPrefix != "/api" {
		t.Errorf("api prefix = %s, want /api", cfg.APIPrefix)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	unset(t, "DATABASE_URL")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dealtrack")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "8080")
	t.Setenv("API_PREFIX", "/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Port != 8080 || cfg.APIPrefix != "/v1" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
