package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  name: "Downstairs"
  host: "192.168.1.50"
  username: "JH1-EU-ABC1234A"
  password: "robot-password"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Name != "Downstairs" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "Downstairs")
	}

	if cfg.Device.Port != 1883 {
		t.Errorf("Device.Port = %d, want default 1883", cfg.Device.Port)
	}

	if cfg.Device.Username != "JH1-EU-ABC1234A" {
		t.Errorf("Device.Username = %q, want %q", cfg.Device.Username, "JH1-EU-ABC1234A")
	}

	if cfg.Device.Identity.Manufacturer != "Dyson" {
		t.Errorf("Device.Identity.Manufacturer = %q, want Dyson", cfg.Device.Identity.Manufacturer)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  host: "192.168.1.50"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for empty device.username, got nil")
	}
	if !strings.Contains(err.Error(), "device.username") {
		t.Errorf("Load() error = %v, want mention of device.username", err)
	}
}

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Device.Host = "192.168.1.50"
	cfg.Device.Username = "JH1-EU-ABC1234A"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
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
			name:    "missing device host",
			mutate:  func(c *Config) { c.Device.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing device username",
			mutate:  func(c *Config) { c.Device.Username = "" },
			wantErr: true,
		},
		{
			name:    "invalid device port",
			mutate:  func(c *Config) { c.Device.Port = 0 },
			wantErr: true,
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.Device.CommandTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid api port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "api port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "database path ignored when history disabled",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Path = ""
			},
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "empty JWT secret disables auth",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: false,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Device: DeviceConfig{CommandTimeout: 7},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{HistoryRetentionDays: 2},
	}

	if got := cfg.GetCommandTimeout(); got != 7*time.Second {
		t.Errorf("GetCommandTimeout() = %v, want 7s", got)
	}

	if got := cfg.GetHistoryRetention(); got != 48*time.Hour {
		t.Errorf("GetHistoryRetention() = %v, want 48h", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("DYSON360_DEVICE_HOST", "robot.lan")
	t.Setenv("DYSON360_DEVICE_USERNAME", "JH1-EU-XYZ")
	t.Setenv("DYSON360_DEVICE_PASSWORD", "testpass")
	t.Setenv("DYSON360_DATABASE_PATH", "/custom/path.db")
	t.Setenv("DYSON360_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("DYSON360_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Device.Host != "robot.lan" {
		t.Errorf("Device.Host = %q, want %q", cfg.Device.Host, "robot.lan")
	}

	if cfg.Device.Username != "JH1-EU-XYZ" {
		t.Errorf("Device.Username = %q, want %q", cfg.Device.Username, "JH1-EU-XYZ")
	}

	if cfg.Device.Password != "testpass" {
		t.Errorf("Device.Password = %q, want %q", cfg.Device.Password, "testpass")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.Port != 1883 {
		t.Errorf("defaultConfig Device.Port = %d, want 1883", cfg.Device.Port)
	}

	if cfg.Device.CommandTimeout != 10 {
		t.Errorf("defaultConfig Device.CommandTimeout = %d, want 10", cfg.Device.CommandTimeout)
	}

	if cfg.MQTT.ClientIDPrefix == "" {
		t.Error("defaultConfig should have non-empty MQTT.ClientIDPrefix")
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
