package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "VPTREE"

// Config holds every setting.
type Config struct {
	Engine           string    `mapstructure:"engine"`
	MemoryLimitBytes int64     `mapstructure:"memory_limit_bytes"`
	Log              LogConfig `mapstructure:"log"`
	Query            Query     `mapstructure:"query"`
	SQL              SQLConfig `mapstructure:"sql"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Query holds query defaults.
type Query struct {
	K        int     `mapstructure:"k"`
	MaxNodes int     `mapstructure:"max_nodes"`
	Radius   float64 `mapstructure:"radius"`
}

// SQLConfig holds the SQLite host settings.
type SQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

const (
	EngineVPTree = "vptree"
	EngineBrute  = "brute"
)

// NewDefaultConfig returns a Config with defaults for all fields.
func NewDefaultConfig() *Config {
	return &Config{
		Engine: EngineVPTree,
		Log:    LogConfig{Level: "info", Format: "text"},
		Query:  Query{K: 5, MaxNodes: 64, Radius: 1000},
		SQL:    SQLConfig{DSN: "file:vptree?mode=memory&cache=shared"},
	}
}

// InitViper creates a viper instance with defaults, the optional config
// file at path and VPTREE_ environment overrides. A missing file is an
// error only when path is set.
func InitViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName("vptree")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("config: reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// BindFlags binds flags to viper keys; keys maps flag name to key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: binding --%s: %w", name, err)
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineVPTree, EngineBrute:
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.MemoryLimitBytes < 0 {
		return fmt.Errorf("config: memory_limit_bytes must be non-negative")
	}
	if c.Query.K < 0 || c.Query.MaxNodes < 0 || c.Query.Radius < 0 {
		return fmt.Errorf("config: query settings must be non-negative")
	}
	return nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("engine", d.Engine)
	v.SetDefault("memory_limit_bytes", d.MemoryLimitBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("query.k", d.Query.K)
	v.SetDefault("query.max_nodes", d.Query.MaxNodes)
	v.SetDefault("query.radius", d.Query.Radius)
	v.SetDefault("sql.dsn", d.SQL.DSN)
}
