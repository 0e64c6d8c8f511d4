package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"naskahlokal/pkg/logger"
)

const (
	StoreMemory        = "memory"
	StoreIndexedMemory = "indexed-memory"
	StoreIndexedDir    = "indexed-dir"
	StoreSQLite        = "sqlite"
	StorePostgres      = "postgres"
)

type Postgres struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type Config struct {
	Addr             string        `yaml:"addr"`
	Store            string        `yaml:"store"`
	SQLitePath       string        `yaml:"sqlite_path"`
	Dir              string        `yaml:"dir"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	LogLevel         string        `yaml:"log_level"`
	Postgres         Postgres      `yaml:"postgres"`
}

func Default() Config {
	return Config{
		Addr:             ":8080",
		Store:            StoreSQLite,
		SQLitePath:       "naskah.db",
		Dir:              "documents",
		AutosaveInterval: 30 * time.Second,
		LogLevel:         "info",
		Postgres:         Postgres{Port: "5432", SSLMode: "disable"},
	}
}

// Load reads .env, then the YAML file named by NASKAH_CONFIG, then environment
// variables. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Infof("No .env file found, using environment variables from OS")
	}

	cfg := Default()
	if path := env("NASKAH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	set := func(dst *string, key string) {
		if v := env(key); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "NASKAH_ADDR")
	set(&c.Store, "NASKAH_STORE")
	set(&c.SQLitePath, "NASKAH_SQLITE_PATH")
	set(&c.Dir, "NASKAH_DIR")
	set(&c.LogLevel, "NASKAH_LOG_LEVEL")
	set(&c.Postgres.User, "user")
	set(&c.Postgres.Password, "password")
	set(&c.Postgres.Host, "host")
	set(&c.Postgres.Port, "port")
	set(&c.Postgres.DBName, "dbname")
	set(&c.Postgres.SSLMode, "sslmode")

	if v := env("NASKAH_AUTOSAVE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NASKAH_AUTOSAVE: %w", err)
		}
		c.AutosaveInterval = d
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreIndexedMemory, StoreIndexedDir, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("autosave interval must not be negative")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
