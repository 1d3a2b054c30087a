package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Questions struct {
		File string `yaml:"file"`
		TTL  string `yaml:"ttl"`
	} `yaml:"questions"`
	Exam struct {
		TimeLimit string         `yaml:"time_limit"`
		PassScore int            `yaml:"pass_score"`
		Quota     []ChapterQuota `yaml:"quota"`
	} `yaml:"exam"`
}

// ChapterQuota overrides how many questions a random exam draws from a chapter.
type ChapterQuota struct {
	Chapter int `yaml:"chapter"`
	Count   int `yaml:"count"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaultDriver(cfg)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Server.Port, "PORT")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")
	override(&cfg.Store.Driver, "STORE_DRIVER")
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.SQLite.Path, "SQLITE_PATH")
	override(&cfg.Questions.File, "QUESTIONS_FILE")
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func defaultDriver(cfg Config) string {
	switch {
	case cfg.Postgres.URL != "":
		return DriverPostgres
	case cfg.SQLite.Path != "":
		return DriverSQLite
	default:
		return DriverMemory
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
