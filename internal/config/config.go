// Package config loads application configuration from defaults, an optional
// config file, a .env file and GA_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"b3-genetic-lab/internal/domain"
)

// EnvPrefix prefixes every environment variable, e.g. GA_OPTIMIZER_NUM_POTS.
const EnvPrefix = "GA"

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogPretty bool            `mapstructure:"log_pretty"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Data      DataConfig      `mapstructure:"data"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
}

type OptimizerConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	PopulationSize int     `mapstructure:"population_size"`
	NumGenerations int     `mapstructure:"num_generations"`
	MutationRate   float64 `mapstructure:"mutation_rate"`
	NumPots        int     `mapstructure:"num_pots"`
	Workers        int     `mapstructure:"workers"`
	Seed           int64   `mapstructure:"seed"` // 0 picks a time-based seed
}

type DataConfig struct {
	CSVPath       string `mapstructure:"csv_path"`
	CSVComma      string `mapstructure:"csv_comma"`
	SymbolPattern string `mapstructure:"symbol_pattern"`
}

type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	UseMemory     bool   `mapstructure:"use_memory"`
}

type ServerConfig struct {
	Addr              string `mapstructure:"addr"`
	MaxConcurrentRuns int    `mapstructure:"max_concurrent_runs"`
}

// Domain converts the optimizer section into the domain configuration.
func (o OptimizerConfig) Domain() domain.OptimizerConfig {
	return domain.OptimizerConfig{
		InitialCapital: o.InitialCapital,
		PopulationSize: o.PopulationSize,
		NumGenerations: o.NumGenerations,
		MutationRate:   o.MutationRate,
		NumPots:        o.NumPots,
		Workers:        o.Workers,
	}
}

// Comma returns the CSV separator rune, ';' when unset.
func (d DataConfig) Comma() rune {
	if d.CSVComma == "" {
		return ';'
	}
	return []rune(d.CSVComma)[0]
}

// Load reads .env from the working directory, then config.yaml from ./configs
// or ., then the environment.
func Load() (*Config, error) {
	return load(viper.New(), ".env", "./configs", ".")
}

func load(v *viper.Viper, envFile string, configPaths ...string) (*Config, error) {
	// Existing environment wins over .env values
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed DSN names kept for compatibility with docker-compose setups
	if err := v.BindEnv("storage.postgres_dsn", "GA_STORAGE_POSTGRES_DSN", "POSTGRES_DSN"); err != nil {
		return nil, fmt.Errorf("bind POSTGRES_DSN: %w", err)
	}
	if err := v.BindEnv("storage.clickhouse_dsn", "GA_STORAGE_CLICKHOUSE_DSN", "CLICKHOUSE_DSN"); err != nil {
		return nil, fmt.Errorf("bind CLICKHOUSE_DSN: %w", err)
	}

	if len(configPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the optimizer section and server limits.
func (c *Config) Validate() error {
	if err := c.Optimizer.Domain().Validate(); err != nil {
		return err
	}
	if c.Server.MaxConcurrentRuns < 1 {
		return fmt.Errorf("server.max_concurrent_runs must be >= 1, got %d", c.Server.MaxConcurrentRuns)
	}
	if len([]rune(c.Data.CSVComma)) > 1 {
		return fmt.Errorf("data.csv_comma must be a single character, got %q", c.Data.CSVComma)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	// Optimizer
	d := domain.DefaultOptimizerConfig()
	v.SetDefault("optimizer.initial_capital", d.InitialCapital)
	v.SetDefault("optimizer.population_size", d.PopulationSize)
	v.SetDefault("optimizer.num_generations", d.NumGenerations)
	v.SetDefault("optimizer.mutation_rate", d.MutationRate)
	v.SetDefault("optimizer.num_pots", d.NumPots)
	v.SetDefault("optimizer.workers", d.Workers)
	v.SetDefault("optimizer.seed", 0)

	// Data
	v.SetDefault("data.csv_path", "dados_acoes.csv")
	v.SetDefault("data.csv_comma", ";")
	v.SetDefault("data.symbol_pattern", `^[A-Z0-9]{5}$`)

	// Storage
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.use_memory", false)

	// Server
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_concurrent_runs", 2)
}
