package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
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
api:
  host: "127.0.0.1"
  port: 3001
  cors:
    allowed_origins:
      - "http://localhost:5173"
websocket:
  path: "/ws"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
grid:
  size: 16
  address_encoding: "base2"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Grid.Size != 16 {
		t.Errorf("Grid.Size = %d, want 16", cfg.Grid.Size)
	}
	if cfg.Grid.AddressEncoding != EncodingBase2 {
		t.Errorf("Grid.AddressEncoding = %q, want %q", cfg.Grid.AddressEncoding, EncodingBase2)
	}
	if len(cfg.API.CORS.AllowedOrigins) != 1 || cfg.API.CORS.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("API.CORS.AllowedOrigins = %v, want [http://localhost:5173]", cfg.API.CORS.AllowedOrigins)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// A minimal file should leave the defaults in place.
	cfg, err := Load(writeConfig(t, "api:\n  host: \"0.0.0.0\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 3001 {
		t.Errorf("API.Port = %d, want default 3001", cfg.API.Port)
	}
	if cfg.Grid.Size != 4 {
		t.Errorf("Grid.Size = %d, want default 4", cfg.Grid.Size)
	}
	if cfg.Grid.AddressEncoding != EncodingBase10 {
		t.Errorf("Grid.AddressEncoding = %q, want default base10", cfg.Grid.AddressEncoding)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want default /ws", cfg.WebSocket.Path)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want default false")
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

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WATCHGRID_API_PORT", "4001")
	t.Setenv("WATCHGRID_GRID_SIZE", "8")
	t.Setenv("WATCHGRID_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load(writeConfig(t, "api:\n  port: 3001\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 4001 {
		t.Errorf("API.Port = %d, want env override 4001", cfg.API.Port)
	}
	if cfg.Grid.Size != 8 {
		t.Errorf("Grid.Size = %d, want env override 8", cfg.Grid.Size)
	}
	want := []string{"http://a.example", "http://b.example"}
	if len(cfg.API.CORS.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.API.CORS.AllowedOrigins, want)
	}
	for i, origin := range want {
		if cfg.API.CORS.AllowedOrigins[i] != origin {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.API.CORS.AllowedOrigins[i], origin)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			modify: func(*Config) {},
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "tls without cert",
			modify:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: "api.tls",
		},
		{
			name: "invalid qos when mqtt enabled",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:   "invalid qos ignored when mqtt disabled",
			modify: func(c *Config) { c.MQTT.QoS = 3 },
		},
		{
			name:    "grid too small",
			modify:  func(c *Config) { c.Grid.Size = 0 },
			wantErr: "grid.size",
		},
		{
			name:    "grid too large",
			modify:  func(c *Config) { c.Grid.Size = maxGridSize + 1 },
			wantErr: "grid.size",
		},
		{
			name:    "unknown encoding",
			modify:  func(c *Config) { c.Grid.AddressEncoding = "base16" },
			wantErr: "address_encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
