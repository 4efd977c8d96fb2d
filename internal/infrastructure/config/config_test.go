package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
biocat:
  base_url: "https://appapi.watercryst.com"
  api_key: "test-key"
  device_id: "biocat-cellar"
  poll_interval_seconds: 30
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Biocat.DeviceID != "biocat-cellar" {
		t.Errorf("Biocat.DeviceID = %q, want %q", cfg.Biocat.DeviceID, "biocat-cellar")
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v, want 30s", cfg.PollInterval())
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	// Defaults survive a partial file
	if cfg.Biocat.RequestTimeoutSeconds != 10 {
		t.Errorf("Biocat.RequestTimeoutSeconds = %d, want 10", cfg.Biocat.RequestTimeoutSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	content := `
biocat:
  api_key: "from-file"
  device_id: "biocat"
`
	t.Setenv("BIOCAT_API_KEY", "from-env")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Biocat.APIKey != "from-env" {
		t.Errorf("Biocat.APIKey = %q, want env override", cfg.Biocat.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Biocat.APIKey = "key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Biocat.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Biocat.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "trailing slash in base url",
			mutate:  func(c *Config) { c.Biocat.BaseURL = "https://appapi.watercryst.com/" },
			wantErr: true,
		},
		{
			name:    "interval below floor",
			mutate:  func(c *Config) { c.Biocat.PollIntervalSeconds = 5 },
			wantErr: true,
		},
		{
			name:    "interval at floor",
			mutate:  func(c *Config) { c.Biocat.PollIntervalSeconds = 10 },
			wantErr: false,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name: "api port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name: "history without database path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.History.RetentionDays = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BelowAdvisoryInterval(t *testing.T) {
	cfg := defaultConfig()

	cfg.Biocat.PollIntervalSeconds = 12
	if !cfg.BelowAdvisoryInterval() {
		t.Error("BelowAdvisoryInterval() = false for 12s, want true")
	}

	cfg.Biocat.PollIntervalSeconds = 15
	if cfg.BelowAdvisoryInterval() {
		t.Error("BelowAdvisoryInterval() = true for 15s, want false")
	}

	cfg.Biocat.PollIntervalSeconds = 5
	if cfg.BelowAdvisoryInterval() {
		t.Error("BelowAdvisoryInterval() = true for invalid 5s, want false")
	}
}
