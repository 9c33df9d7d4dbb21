package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/storekit/config"
	"github.com/tailored-agentic-units/storekit/persistence"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	want := config.Config{
		Name:        "default",
		Observer:    "slog",
		Persistence: persistence.Config{Prefix: "stores/"},
		Server: config.ServerConfig{
			Addr:            ":8080",
			MetricsPath:     "/metrics",
			ShutdownTimeout: config.Duration(10 * time.Second),
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("DefaultConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Merge(t *testing.T) {
	tests := []struct {
		name   string
		source config.Config
		check  func(t *testing.T, cfg config.Config)
	}{
		{
			name:   "zero values preserve defaults",
			source: config.Config{},
			check: func(t *testing.T, cfg config.Config) {
				if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
					t.Errorf("config changed (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "top-level fields",
			source: config.Config{
				Name:                   "edge",
				Plugins:                []string{"persistence"},
				MaxConcurrentResolvers: 4,
			},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Name != "edge" || cfg.MaxConcurrentResolvers != 4 {
					t.Errorf("got Name %q, MaxConcurrentResolvers %d", cfg.Name, cfg.MaxConcurrentResolvers)
				}
				if diff := cmp.Diff([]string{"persistence"}, cfg.Plugins); diff != "" {
					t.Errorf("Plugins mismatch (-want +got):\n%s", diff)
				}
				if cfg.Observer != "slog" {
					t.Errorf("got Observer %q, want slog", cfg.Observer)
				}
			},
		},
		{
			name: "nested sections",
			source: config.Config{
				Persistence: persistence.Config{Path: "/data"},
				Server:      config.ServerConfig{Addr: ":9000"},
			},
			check: func(t *testing.T, cfg config.Config) {
				if cfg.Persistence.Path != "/data" || cfg.Persistence.Prefix != "stores/" {
					t.Errorf("got Persistence %+v", cfg.Persistence)
				}
				if cfg.Server.Addr != ":9000" || cfg.Server.MetricsPath != "/metrics" {
					t.Errorf("got Server %+v", cfg.Server)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Merge(&tt.source)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"name": "loaded",
		"plugins": ["persistence"],
		"persistence": {"path": "/tmp/state"},
		"server": {"addr": "127.0.0.1:7000", "shutdown_timeout": "3s"}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "loaded" {
		t.Errorf("got Name %q, want loaded", cfg.Name)
	}
	if cfg.Persistence.Path != "/tmp/state" {
		t.Errorf("got Persistence.Path %q", cfg.Persistence.Path)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Server.ShutdownTimeout.Std() != 3*time.Second {
		t.Errorf("got Server %+v", cfg.Server)
	}
	if cfg.Server.MetricsPath != "/metrics" {
		t.Errorf("got MetricsPath %q, want default", cfg.Server.MetricsPath)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := config.LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"server": {"shutdown_timeout": "soon"}}`), 0o644)
	if _, err := config.LoadConfig(bad); err == nil {
		t.Error("LoadConfig(bad duration) should fail")
	}
}

func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: `"1m30s"`, want: 90 * time.Second},
		{in: `1000000`, want: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d config.Duration
			if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if d.Std() != tt.want {
				t.Errorf("got %v, want %v", d.Std(), tt.want)
			}
		})
	}

	out, _ := json.Marshal(config.Duration(2 * time.Second))
	if string(out) != `"2s"` {
		t.Errorf("Marshal = %s, want \"2s\"", out)
	}
}
