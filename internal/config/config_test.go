package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 10767 {
		t.Errorf("http_port: got %d, want 10767", cfg.Server.HTTPPort)
	}
	if cfg.Server.WSPort != 10768 {
		t.Errorf("ws_port: got %d, want 10768", cfg.Server.WSPort)
	}
	if !cfg.Auth.RequireToken {
		t.Error("auth.require_token: got false, want true")
	}
	if !cfg.Discovery.Enabled {
		t.Error("discovery.enabled: got false, want true")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level: got %q, want info", cfg.Log.Level)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9090
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("http_port: got %d, want 9090", cfg.Server.HTTPPort)
	}
	if cfg.Server.WSPort != 10768 {
		t.Errorf("ws_port: got %d, want default 10768", cfg.Server.WSPort)
	}
	if cfg.Server.Name != "Apple Music Remote" {
		t.Errorf("name: got %q, want default", cfg.Server.Name)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "port out of range",
			content: `server:
  http_port: 70000
`,
			wantErr: "out of range",
		},
		{
			name: "equal ports",
			content: `server:
  http_port: 9000
  ws_port: 9000
`,
			wantErr: "must differ",
		},
		{
			name: "blank name",
			content: `server:
  name: "  "
`,
			wantErr: "server.name",
		},
		{
			name: "unknown log level",
			content: `log:
  level: verbose
`,
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeConfig(t, tt.content)
			_, err := Load(p)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a map")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestAuthConfig_TokenEnvResolution(t *testing.T) {
	t.Setenv("TEST_REMOTE_TOKEN", "  supersecret\n")
	a := AuthConfig{TokenEnv: "TEST_REMOTE_TOKEN"}
	if tok := a.Token(); tok != "supersecret" {
		t.Errorf("Token(): got %q, want supersecret", tok)
	}

	a = AuthConfig{}
	if tok := a.Token(); tok != "" {
		t.Errorf("Token() with no env configured: got %q, want empty", tok)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")

	cfg := defaults()
	cfg.Server.Name = "Office Mac"
	cfg.Server.HTTPPort = 8080
	cfg.Log.Level = "debug"

	if err := cfg.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Header comment must survive marshaling
	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# Apple Music Remote") {
		t.Error("saved config missing header comment")
	}

	loaded, err := Load(p)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Server.Name != "Office Mac" {
		t.Errorf("name: got %q, want Office Mac", loaded.Server.Name)
	}
	if loaded.Server.HTTPPort != 8080 {
		t.Errorf("http_port: got %d, want 8080", loaded.Server.HTTPPort)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("log.level: got %q, want debug", loaded.Log.Level)
	}
}

func TestDir_RespectsXDGConfigHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG paths are not used on Windows")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-test", "amremote") {
		t.Errorf("Dir: got %q", dir)
	}
}
