package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("ai.apiKey", "test-key")

	cfg, err := LoadConfigFromViper(v)
	if err != nil {
		t.Fatalf("LoadConfigFromViper failed: %v", err)
	}

	if cfg.App.Language != "es" {
		t.Errorf("Expected default language 'es', got %q", cfg.App.Language)
	}
	if cfg.App.SessionTTL != 2*time.Hour {
		t.Errorf("Expected session TTL 2h, got %v", cfg.App.SessionTTL)
	}

	analysis, err := cfg.ForOperation(OpAnalysis)
	if err != nil {
		t.Fatalf("ForOperation failed: %v", err)
	}
	if *analysis.Timeout != 180*time.Second {
		t.Errorf("Expected analysis timeout 180s, got %v", *analysis.Timeout)
	}
	if analysis.APIKey != "test-key" {
		t.Errorf("Expected global API key fallback, got %q", analysis.APIKey)
	}
	if !analysis.CircuitBreaker.Enabled {
		t.Error("Expected circuit breaker enabled by default")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AI:     AIConfig{APIKey: "k", Timeout: time.Minute},
			Server: ServerConfig{Port: "8080", TLS: TLSConfig{Mode: "disabled"}},
			App: AppConfig{
				Language:         "es",
				DefaultFormat:    "json",
				SupportedFormats: []string{"json", "text"},
				SessionTTL:       time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.AI.APIKey = "" }, wantErr: "API key is required"},
		{name: "api key from vault", mutate: func(c *Config) {
			c.AI.APIKey = ""
			c.Vault.Enabled = true
			c.Vault.Secrets.GeminiKey = "secret/data/gemini"
		}},
		{name: "bad timeout", mutate: func(c *Config) { c.AI.Timeout = 0 }, wantErr: "timeout must be positive"},
		{name: "bad format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }, wantErr: "invalid default format"},
		{name: "bad language", mutate: func(c *Config) { c.App.Language = "fr" }, wantErr: "unsupported language"},
		{name: "bad ttl", mutate: func(c *Config) { c.App.SessionTTL = 0 }, wantErr: "session TTL"},
		{name: "bad tls", mutate: func(c *Config) { c.Server.TLS.Mode = "server" }, wantErr: "TLS configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a, b ,,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("Unexpected split result: %v", got)
	}
}
