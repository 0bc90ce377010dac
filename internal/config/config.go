package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "dockerhost"
	// EnvPrefix prefixes every environment override, e.g. DOCKERHOST_ENGINE_ADDRESS.
	EnvPrefix = "DOCKERHOST"
)

// Config is the runtime configuration shared by the CLI and the API server.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Host      HostConfig      `mapstructure:"host"`
	Server    ServerConfig    `mapstructure:"server"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Log       LogConfig       `mapstructure:"log"`
}

type EngineConfig struct {
	// base address of the engine's REST API, e.g. tcp://10.0.0.5:2375
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HostConfig names the inventory resource that represents the engine host.
type HostConfig struct {
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	// deadline for each API request, engine calls included; 0 disables it
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type InventoryConfig struct {
	// memory or postgres
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineConfig{Address: "unix:///var/run/docker.sock", Timeout: 30 * time.Second},
		Host:      HostConfig{Name: "docker-host"},
		Server:    ServerConfig{Listen: ":3000", RequestTimeout: time.Minute},
		Inventory: InventoryConfig{Driver: "memory"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads defaults, then the optional config file at path, then
// DOCKERHOST_* environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("engine.address", defaults.Engine.Address)
	v.SetDefault("engine.timeout", defaults.Engine.Timeout)
	v.SetDefault("host.name", defaults.Host.Name)
	v.SetDefault("server.listen", defaults.Server.Listen)
	v.SetDefault("server.request_timeout", defaults.Server.RequestTimeout)
	v.SetDefault("inventory.driver", defaults.Inventory.Driver)
	v.SetDefault("inventory.dsn", defaults.Inventory.DSN)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Inventory.Driver {
	case "memory":
	case "postgres":
		if c.Inventory.DSN == "" {
			return fmt.Errorf("inventory.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown inventory driver %q", c.Inventory.Driver)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative, got %s", c.Server.RequestTimeout)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger() *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
