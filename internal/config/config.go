package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RoomConfig tunes the authoritative room.
type RoomConfig struct {
	TickRate           int `yaml:"tick_rate"`
	DefaultPlayerCount int `yaml:"default_player_count"`
	MaxParts           int `yaml:"max_parts"`
}

// StorageConfig selects the board store backend: "nakama" or "postgres".
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

// TicketConfig tunes room join tickets. The signing secret comes from the
// runtime environment, never from this file.
type TicketConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// CameraConfig bounds the client viewport.
type CameraConfig struct {
	CanvasWidth       float64 `yaml:"canvas_width"`
	CanvasHeight      float64 `yaml:"canvas_height"`
	MinScale          float64 `yaml:"min_scale"`
	MaxScale          float64 `yaml:"max_scale"`
	Step              float64 `yaml:"step"`
	WheelStep         float64 `yaml:"wheel_step"`
	BaseRatio         float64 `yaml:"base_ratio"`
	MinScaleForMargin float64 `yaml:"min_scale_for_margin"`
}

// ClientConfig tunes the canvas client.
type ClientConfig struct {
	CreateCooldownMillis int `yaml:"create_cooldown_ms"`
}

// Config is the KIBAKO configuration file.
type Config struct {
	Room    RoomConfig    `yaml:"room"`
	Storage StorageConfig `yaml:"storage"`
	Ticket  TicketConfig  `yaml:"ticket"`
	Camera  CameraConfig  `yaml:"camera"`
	Client  ClientConfig  `yaml:"client"`
}

const (
	StorageBackendNakama   = "nakama"
	StorageBackendPostgres = "postgres"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Room: RoomConfig{
			TickRate:           10,
			DefaultPlayerCount: 4,
			MaxParts:           1000,
		},
		Storage: StorageConfig{
			Backend:    StorageBackendNakama,
			Collection: "kibako_boards",
		},
		Ticket: TicketConfig{TTLSeconds: 60},
		Camera: CameraConfig{
			CanvasWidth:       5000,
			CanvasHeight:      5000,
			MinScale:          0.1,
			MaxScale:          4,
			Step:              1.2,
			WheelStep:         1.05,
			BaseRatio:         0.5,
			MinScaleForMargin: 0.2,
		},
		Client: ClientConfig{CreateCooldownMillis: 500},
	}
}

var (
	cfg      *Config
	loadOnce sync.Once
	loadErr  error
)

// Load loads the configuration from path once. Fields absent from the file
// keep their defaults.
func Load(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read config: %w", err)
			return
		}

		c, err := Parse(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = &c
	})
	return loadErr
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the room and the camera cannot work with.
func (c Config) Validate() error {
	if c.Room.TickRate < 1 || c.Room.TickRate > 60 {
		return fmt.Errorf("room.tick_rate must be within 1..60, got %d", c.Room.TickRate)
	}
	switch c.Storage.Backend {
	case StorageBackendNakama, StorageBackendPostgres:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	cam := c.Camera
	if cam.MinScale <= 0 || cam.MaxScale < cam.MinScale {
		return fmt.Errorf("camera scale range [%v, %v] is invalid", cam.MinScale, cam.MaxScale)
	}
	if cam.Step <= 1 || cam.WheelStep <= 1 {
		return fmt.Errorf("camera zoom steps must be greater than 1")
	}
	if cam.CanvasWidth <= 0 || cam.CanvasHeight <= 0 {
		return fmt.Errorf("camera canvas size must be positive")
	}
	return nil
}

// Get returns the loaded configuration, or the defaults when none was loaded.
func Get() Config {
	if cfg == nil {
		return Default()
	}
	return *cfg
}
