package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TILTBALL_"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Room    RoomConfig    `yaml:"room"`
	Haptics HapticsConfig `yaml:"haptics"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadLimit    int64         `yaml:"read_limit"`
	SendBuffer   int           `yaml:"send_buffer"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongWait     time.Duration `yaml:"pong_wait"`
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

type LogConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // json or console
	Development bool   `yaml:"development"`
}

type RoomConfig struct {
	FrameHz     int `yaml:"frame_hz"`
	BroadcastHz int `yaml:"broadcast_hz"`
}

type HapticsConfig struct {
	PoolSize int `yaml:"pool_size"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadLimit:    1 << 20,
			SendBuffer:   256,
			PingInterval: 25 * time.Second,
			PongWait:     60 * time.Second,
			ShutdownWait: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Room: RoomConfig{
			FrameHz:     60,
			BroadcastHz: 20,
		},
		Haptics: HapticsConfig{
			PoolSize: 64,
		},
	}
}

// Load layers defaults, the YAML file at path (optional), a .env file in the
// working directory (optional) and TILTBALL_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Room.FrameHz <= 0 || c.Room.BroadcastHz <= 0 {
		return fmt.Errorf("room rates must be > 0")
	}
	if c.Room.BroadcastHz > c.Room.FrameHz {
		return fmt.Errorf("room.broadcast_hz (%d) exceeds room.frame_hz (%d)", c.Room.BroadcastHz, c.Room.FrameHz)
	}
	if c.Haptics.PoolSize <= 0 {
		return fmt.Errorf("haptics.pool_size must be > 0")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q: want json or console", c.Log.Format)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookup("ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := lookup("ENV"); ok {
		cfg.Log.Development = strings.ToLower(v) != "production"
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"SEND_BUFFER", &cfg.Server.SendBuffer},
		{"FRAME_HZ", &cfg.Room.FrameHz},
		{"BROADCAST_HZ", &cfg.Room.BroadcastHz},
		{"HAPTICS_POOL_SIZE", &cfg.Haptics.PoolSize},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, e.key, err)
		}
		*e.dst = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, err := GetEnvVariable(envPrefix + key)
	if err != nil {
		return "", false
	}
	return v, true
}

// GetEnvVariable returns a required environment variable.
func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}
	return b, nil
}
