package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	raw := `
server:
  base_url: http://game.local:9000
socket:
  max_reconnect_attempts: 3
audio:
  map: [a.mp3, b.mp3]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.BaseURL != "http://game.local:9000" || c.Server.WSURL != "ws://127.0.0.1:8002/ws" {
		t.Fatalf("server=%+v", c.Server)
	}
	if c.Socket.MaxReconnectAttempts != 3 || c.ReconnectInterval() != time.Second {
		t.Fatalf("socket=%+v", c.Socket)
	}
	if len(c.Audio.Map) != 2 || len(c.Audio.Splash) != 1 || c.Audio.Fade() != 2*time.Second {
		t.Fatalf("audio=%+v", c.Audio)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("events:\n  page_limit: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestShippedConfigLoads(t *testing.T) {
	c, err := Load("../../configs/client.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
