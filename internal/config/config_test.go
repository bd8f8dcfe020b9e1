package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{"HTTP_ADDR", "CART_KEY", "CATALOG_TIMEOUT", "CATALOG_API_URL", "SESSION_LIMIT", "SESSION_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.CartKey != "@RocketShoes:cart" || cfg.CatalogTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CatalogAPIURL != "" {
		t.Errorf("expected empty catalog url, got %q", cfg.CatalogAPIURL)
	}
	if cfg.SessionLimit != 10000 || cfg.SessionTTL != 30*time.Minute {
		t.Errorf("unexpected session defaults: %d %s", cfg.SessionLimit, cfg.SessionTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CATALOG_TIMEOUT", "750ms")
	t.Setenv("CATALOG_API_URL", "http://localhost:3333")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.CatalogTimeout != 750*time.Millisecond || cfg.CatalogAPIURL != "http://localhost:3333" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("CART_KEY", "")
	os.Unsetenv("CART_KEY")
	os.WriteFile(filepath.Join(dir, ".env"), []byte("CART_KEY=@Test:cart\n"), 0o644)
	t.Cleanup(func() { os.Unsetenv("CART_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CartKey != "@Test:cart" {
		t.Errorf("expected key from .env, got %q", cfg.CartKey)
	}
}

func TestLoad_BadTimeout(t *testing.T) {
	chdirTemp(t)

	for _, v := range []string{"soon", "-1s"} {
		t.Setenv("CATALOG_TIMEOUT", v)
		if _, err := Load(); err == nil {
			t.Errorf("CATALOG_TIMEOUT=%q: expected error", v)
		}
	}
}

func TestLoad_SessionLimits(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SESSION_LIMIT", "25")
	t.Setenv("SESSION_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionLimit != 25 || cfg.SessionTTL != 90*time.Second {
		t.Errorf("overrides not applied: %d %s", cfg.SessionLimit, cfg.SessionTTL)
	}

	tests := []struct {
		key, value string
	}{
		{"SESSION_LIMIT", "many"},
		{"SESSION_LIMIT", "0"},
		{"SESSION_TTL", "-5m"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("SESSION_LIMIT", "25")
			t.Setenv("SESSION_TTL", "90s")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("debug", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.WithField("product_id", 1).Debug("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q", buf.String())
	}
	if entry["severity"] != "debug" || entry["message"] != "hello" || entry["timestamp"] == nil {
		t.Errorf("unexpected entry %v", entry)
	}

	if _, err := NewLogger("loud", &buf); err == nil {
		t.Error("expected error for unknown level")
	}
}
