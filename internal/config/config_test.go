package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "DATABASE_DRIVER", "DATABASE_URL", "DATABASE_MAX_OPEN_CONNS",
		"CONSOLIDATION_TIMEOUT", "CONSOLIDATION_MAX_RETRIES", "CONSOLIDATION_SWEEP",
		"WEB_HOST", "WEB_PORT", "WEB_API_TOKEN", "WEB_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected default driver %q, got %q", DriverPostgres, cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Consolidation.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Consolidation.Timeout)
	}
	if cfg.Consolidation.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Consolidation.MaxRetries)
	}
	if cfg.Consolidation.Sweep != SweepGlobal {
		t.Errorf("expected default sweep %q, got %q", SweepGlobal, cfg.Consolidation.Sweep)
	}
	if cfg.Web.Host != "0.0.0.0" || cfg.Web.Port != 8080 {
		t.Errorf("expected default listen address 0.0.0.0:8080, got %s:%d", cfg.Web.Host, cfg.Web.Port)
	}
	if cfg.Web.AllowedOrigins != nil {
		t.Errorf("expected no allowed origins, got %v", cfg.Web.AllowedOrigins)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production environment by default")
	}
}

func TestLoad_DatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "/tmp/faces.db")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "10")
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "2")

	cfg := Load()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected driver %q, got %q", DriverSQLite, cfg.Database.Driver)
	}
	if cfg.Database.URL != "/tmp/faces.db" {
		t.Errorf("expected URL '/tmp/faces.db', got '%s'", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 10 || cfg.Database.MaxIdleConns != 2 {
		t.Errorf("expected pool 10/2, got %d/%d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
}

func TestLoad_ConsolidationConfig(t *testing.T) {
	tests := []struct {
		name        string
		timeout     string
		retries     string
		sweep       string
		wantTimeout time.Duration
		wantRetries int
		wantSweep   string
	}{
		{"custom values", "5s", "7", "scoped", 5 * time.Second, 7, SweepScoped},
		{"zero retries allowed", "1m", "0", "GLOBAL", time.Minute, 0, SweepGlobal},
		{"invalid falls back", "soon", "-1", "everything", 30 * time.Second, 3, SweepGlobal},
		{"negative timeout falls back", "-5s", "abc", "Scoped", 30 * time.Second, 3, SweepScoped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONSOLIDATION_TIMEOUT", tt.timeout)
			t.Setenv("CONSOLIDATION_MAX_RETRIES", tt.retries)
			t.Setenv("CONSOLIDATION_SWEEP", tt.sweep)

			cfg := Load()

			if cfg.Consolidation.Timeout != tt.wantTimeout {
				t.Errorf("expected timeout %s, got %s", tt.wantTimeout, cfg.Consolidation.Timeout)
			}
			if cfg.Consolidation.MaxRetries != tt.wantRetries {
				t.Errorf("expected retries %d, got %d", tt.wantRetries, cfg.Consolidation.MaxRetries)
			}
			if cfg.Consolidation.Sweep != tt.wantSweep {
				t.Errorf("expected sweep %q, got %q", tt.wantSweep, cfg.Consolidation.Sweep)
			}
		})
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_API_TOKEN", "secret")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg := Load()

	if cfg.Web.Host != "127.0.0.1" || cfg.Web.Port != 9090 {
		t.Errorf("expected 127.0.0.1:9090, got %s:%d", cfg.Web.Host, cfg.Web.Port)
	}
	if cfg.Web.APIToken != "secret" {
		t.Errorf("expected API token 'secret', got '%s'", cfg.Web.APIToken)
	}
	if len(cfg.Web.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 allowed origins, got %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("expected second origin 'https://b.example.com', got '%s'", cfg.Web.AllowedOrigins[1])
	}
}

func TestLoad_InvalidPortFallsBack(t *testing.T) {
	t.Setenv("WEB_PORT", "http")

	cfg := Load()

	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080 for invalid input, got %d", cfg.Web.Port)
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "Development")

	cfg := Load()

	if !cfg.IsDevelopment() {
		t.Error("expected development environment")
	}
}
