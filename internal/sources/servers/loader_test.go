package servers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `---
servers:
  - id: main
    rcon_addr: 10.0.0.5:28016
    rcon_password: hunter2
    color_online: 0,128,255
  - id: eu2
    rcon_addr: 10.0.0.6:28016
    rcon_password: hunter3
`)

	srvs, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(srvs) != 2 {
		t.Fatalf("Load() returned %d servers, want 2", len(srvs))
	}
	if srvs[0].ID != "main" || srvs[0].RconAddr != "10.0.0.5:28016" {
		t.Errorf("first server = %+v", srvs[0])
	}
	if srvs[0].ColorOnline != "0,128,255" {
		t.Errorf("color_online = %q, want 0,128,255", srvs[0].ColorOnline)
	}
	if srvs[1].ColorOnline != "" {
		t.Errorf("omitted color_online = %q, want empty", srvs[1].ColorOnline)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/servers.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestLoaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "servers: []\n"},
		{"missing id", "servers:\n  - rcon_addr: a:1\n    rcon_password: x\n"},
		{"missing addr", "servers:\n  - id: main\n    rcon_password: x\n"},
		{"missing password", "servers:\n  - id: main\n    rcon_addr: a:1\n"},
		{"duplicate id", "servers:\n  - id: main\n    rcon_addr: a:1\n    rcon_password: x\n  - id: main\n    rcon_addr: b:1\n    rcon_password: y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)
			if _, err := NewLoader(path).Load(); err == nil {
				t.Error("Load() should have failed validation")
			}
		})
	}
}
