package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "ID_LENGTH", "CACHE_ENABLED", "FRONTEND_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != 3004 {
		t.Errorf("Port = %d, want 3004", cfg.Port)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
	if cfg.IDLength != 9 {
		t.Errorf("IDLength = %d, want 9", cfg.IDLength)
	}
	if !cfg.CacheEnabled {
		t.Error("CacheEnabled = false, want true")
	}
	if cfg.FrontendURL != "https://finger-print-clicks.vercel.app" {
		t.Errorf("FrontendURL = %q", cfg.FrontendURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("ID_LENGTH", "not-a-number")

	cfg := Load()
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.StoreDriver != "redis" {
		t.Errorf("StoreDriver = %q, want redis", cfg.StoreDriver)
	}
	if cfg.CacheEnabled {
		t.Error("CacheEnabled = true, want false")
	}
	if cfg.IDLength != 9 {
		t.Errorf("IDLength = %d, want fallback 9", cfg.IDLength)
	}
}
