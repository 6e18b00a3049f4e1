// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	APIKey     string `env:"GEMINI_API_KEY"`
	APIBaseURL string `env:"EILO_API_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ChatModel  string `env:"EILO_CHAT_MODEL" envDefault:"gemini-2.5-flash-preview-09-2025"`
	TTSModel   string `env:"EILO_TTS_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	Voice      string `env:"EILO_VOICE" envDefault:"Puck"`
	Audio      bool   `env:"EILO_AUDIO" envDefault:"true"`

	DataDir    string `env:"EILO_DATA_DIR"`
	DBPath     string `env:"EILO_DB_PATH"`
	PersonaDir string `env:"EILO_PERSONA_DIR"`
	LogPath    string `env:"EILO_LOG_PATH"`
	LogLevel   string `env:"EILO_LOG_LEVEL" envDefault:"info"`

	UserID      string `env:"EILO_USER_ID" envDefault:"local"`
	DisplayName string `env:"EILO_USER_NAME" envDefault:"friend"`

	BridgeAddr string `env:"EILO_BRIDGE_ADDR" envDefault:"127.0.0.1:8765"`

	Behavior Behavior `envPrefix:"EILO_"`
}

// Behavior holds the tunable thresholds and durations.
type Behavior struct {
	IdleWindow     time.Duration `env:"IDLE_WINDOW" envDefault:"15s"`
	HappyDuration  time.Duration `env:"HAPPY_DURATION" envDefault:"3s"`
	MadDuration    time.Duration `env:"MAD_DURATION" envDefault:"3s"`
	DizzyDuration  time.Duration `env:"DIZZY_DURATION" envDefault:"5s"`
	ScaredDuration time.Duration `env:"SCARED_DURATION" envDefault:"8s"`
	ShakeThreshold float64       `env:"SHAKE_THRESHOLD" envDefault:"30"`
	TiltThreshold  float64       `env:"TILT_THRESHOLD" envDefault:"60"`
	PanicCooldown  time.Duration `env:"PANIC_COOLDOWN" envDefault:"7s"`
	VisionInterval time.Duration `env:"VISION_INTERVAL" envDefault:"6500ms"`
	TurnTimeout    time.Duration `env:"TURN_TIMEOUT" envDefault:"90s"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom parses configuration from vars only. Used by tests.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) fillPaths() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".config", "eilo")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "eilo.db")
	}
	if c.PersonaDir == "" {
		c.PersonaDir = filepath.Join(c.DataDir, "personas")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(c.DataDir, "eilo.log")
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	b := c.Behavior
	if c.UserID == "" {
		return fmt.Errorf("EILO_USER_ID cannot be empty")
	}
	if b.IdleWindow <= 0 {
		return fmt.Errorf("EILO_IDLE_WINDOW must be > 0")
	}
	if b.HappyDuration <= 0 || b.MadDuration <= 0 || b.DizzyDuration <= 0 || b.ScaredDuration <= 0 {
		return fmt.Errorf("mood durations must be > 0")
	}
	if b.ShakeThreshold <= 0 {
		return fmt.Errorf("EILO_SHAKE_THRESHOLD must be > 0")
	}
	if b.TiltThreshold <= 0 || b.TiltThreshold >= 180 {
		return fmt.Errorf("EILO_TILT_THRESHOLD must be between 0 and 180")
	}
	if b.PanicCooldown < 0 {
		return fmt.Errorf("EILO_PANIC_COOLDOWN cannot be negative")
	}
	if b.VisionInterval < time.Second {
		return fmt.Errorf("EILO_VISION_INTERVAL must be at least 1s")
	}
	return nil
}

// BridgeEnabled reports whether the sensor bridge should listen.
func (c *Config) BridgeEnabled() bool {
	return c.BridgeAddr != "" && c.BridgeAddr != "off"
}

// LocalOnly reports whether no API key is configured, so replies come
// from the canned local brain and speech stays silent.
func (c *Config) LocalOnly() bool {
	return c.APIKey == ""
}
