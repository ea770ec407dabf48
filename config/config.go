package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tuya-switch/internal/domain"
)

const DefaultFile = "switch-tuya-device.yaml"

type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Command  CommandConfig  `yaml:"command"`
	Tuya     TuyaConfig     `yaml:"tuya"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Pushover PushoverConfig `yaml:"pushover"`
	Log      LogConfig      `yaml:"log"`
}

type RegistryConfig struct {
	File string `yaml:"file"`
}

type CommandConfig struct {
	Delay string `yaml:"delay"`
}

type TuyaConfig struct {
	Port     int    `yaml:"port"`
	Timeout  string `yaml:"timeout"`
	Attempts int    `yaml:"attempts"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads path. A missing file maps to domain.ErrConfigNotFound and a
// bad one to domain.ErrConfigInvalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w %s: %w", domain.ErrConfigInvalid, path, err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", domain.ErrConfigInvalid, path, err)
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but returns defaults when path does not
// exist.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) setDefaults() {
	if c.Registry.File == "" {
		c.Registry.File = "tuya-devices.json"
	}
	if c.Command.Delay == "" {
		c.Command.Delay = "0s"
	}
	if c.Tuya.Port == 0 {
		c.Tuya.Port = 6668
	}
	if c.Tuya.Timeout == "" {
		c.Tuya.Timeout = "5s"
	}
	if c.Tuya.Attempts == 0 {
		c.Tuya.Attempts = 3
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "tuya"
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if _, err := c.Delay(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if c.Tuya.Attempts < 0 {
		return fmt.Errorf("tuya.attempts must not be negative, got %d", c.Tuya.Attempts)
	}
	return nil
}

func (c *Config) Delay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Command.Delay)
	if err != nil {
		return 0, fmt.Errorf("command.delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("command.delay must not be negative, got %s", d)
	}
	return d, nil
}

func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Tuya.Timeout)
	if err != nil {
		return 0, fmt.Errorf("tuya.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tuya.timeout must be positive, got %s", d)
	}
	return d, nil
}
