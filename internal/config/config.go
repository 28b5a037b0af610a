// Package config loads the client's YAML configuration. Every field has a
// default, so a file only needs the values it changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Socket SocketConfig `yaml:"socket"`
	Events EventsConfig `yaml:"events"`
	Boot   BootConfig   `yaml:"boot"`
	Audio  AudioConfig  `yaml:"audio"`
	Data   DataConfig   `yaml:"data"`
}

type ServerConfig struct {
	BaseURL       string `yaml:"base_url"`
	WSURL         string `yaml:"ws_url"`
	HTTPTimeoutMs int    `yaml:"http_timeout_ms"`
}

type SocketConfig struct {
	ReconnectIntervalMs  int `yaml:"reconnect_interval_ms"`
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
}

type EventsConfig struct {
	PageLimit int `yaml:"page_limit"`
}

type BootConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

type AudioConfig struct {
	Enabled      bool     `yaml:"enabled"`
	BaseURL      string   `yaml:"base_url"`
	Splash       []string `yaml:"splash"`
	Map          []string `yaml:"map"`
	FadeMs       int      `yaml:"fade_ms"`
	StopFadeMs   int      `yaml:"stop_fade_ms"`
	TrackSeconds int      `yaml:"track_seconds"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
	// Record writes every inbound frame to a zstd JSONL log under Dir.
	Record bool `yaml:"record"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8002",
			WSURL:   "ws://127.0.0.1:8002/ws",
		},
		Socket: SocketConfig{
			ReconnectIntervalMs:  1000,
			MaxReconnectAttempts: 10,
		},
		Events: EventsConfig{PageLimit: 100},
		Boot:   BootConfig{PollIntervalMs: 1000},
		Audio: AudioConfig{
			Enabled: true,
			BaseURL: "/bgm/",
			Splash:  []string{"Eastminster.mp3"},
			Map: []string{
				"Healing.mp3",
				"Ishikari_20Lore.mp3",
				"PerituneMaterial_Sakuya2.mp3",
				"PerituneMaterial_Wuxia2_Guzheng_Pipa.mp3",
			},
			FadeMs:       2000,
			StopFadeMs:   1000,
			TrackSeconds: 180,
		},
		Data: DataConfig{Dir: "./data"},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Server.BaseURL == "":
		return fmt.Errorf("server.base_url is required")
	case c.Server.WSURL == "":
		return fmt.Errorf("server.ws_url is required")
	case c.Socket.ReconnectIntervalMs <= 0:
		return fmt.Errorf("socket.reconnect_interval_ms must be > 0")
	case c.Socket.MaxReconnectAttempts < 0:
		return fmt.Errorf("socket.max_reconnect_attempts must be >= 0")
	case c.Events.PageLimit <= 0:
		return fmt.Errorf("events.page_limit must be > 0")
	case c.Boot.PollIntervalMs <= 0:
		return fmt.Errorf("boot.poll_interval_ms must be > 0")
	}
	return nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Server.HTTPTimeoutMs) * time.Millisecond
}

func (c Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Socket.ReconnectIntervalMs) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Boot.PollIntervalMs) * time.Millisecond
}

func (a AudioConfig) Fade() time.Duration { return time.Duration(a.FadeMs) * time.Millisecond }

func (a AudioConfig) StopFade() time.Duration {
	return time.Duration(a.StopFadeMs) * time.Millisecond
}

func (a AudioConfig) TrackLength() time.Duration {
	return time.Duration(a.TrackSeconds) * time.Second
}
