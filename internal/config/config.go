package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	Review   ReviewConfig   `yaml:"review"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"` // debug, release, test
	CORSOrigins []string `yaml:"cors_origins"`
	// Per-IP limit on upload and bulk export.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig is how the annotator reaches the review API.
type StoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ReviewConfig struct {
	SubmitConcurrency int `yaml:"submit_concurrency"`
	StatusFanout      int `yaml:"status_fanout"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
	// Cron expression for periodic bulk snapshots; empty disables them.
	Schedule string `yaml:"schedule"`
	Format   string `yaml:"format"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives log output instead of stdout when set.
	File string `yaml:"file"`
	// Activity entries older than this are purged daily; 0 keeps them.
	ActivityRetentionDays int `yaml:"activity_retention_days"`
}


// Load reads configPath (config.yaml by default) after loading a .env file
// from the working directory, then applies environment overrides. A missing
// config file yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8000",
			Mode:           "debug",
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "dialog_evaluator.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Store: StoreConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		Review: ReviewConfig{
			SubmitConcurrency: 4,
			StatusFanout:      8,
		},
		Export: ExportConfig{
			Dir:    "exports",
			Format: "json",
		},
		Log: LogConfig{
			Level:                 "info",
			ActivityRetentionDays: 30,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if baseURL := os.Getenv("STORE_BASE_URL"); baseURL != "" {
		c.Store.BaseURL = baseURL
	}
	if timeout := os.Getenv("STORE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Store.Timeout = d
		}
	}
	if n, ok := envInt("REVIEW_SUBMIT_CONCURRENCY"); ok {
		c.Review.SubmitConcurrency = n
	}
	if n, ok := envInt("REVIEW_STATUS_FANOUT"); ok {
		c.Review.StatusFanout = n
	}
	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		c.Export.Dir = dir
	}
	if schedule := os.Getenv("EXPORT_SCHEDULE"); schedule != "" {
		c.Export.Schedule = schedule
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		c.Log.File = file
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	rest := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(rest, "@"); atIdx != -1 {
		authPart := rest[:atIdx]
		rest = rest[atIdx+1:]
		// :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(rest, "/"); slashIdx != -1 {
		dbStr := rest[slashIdx+1:]
		rest = rest[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = rest
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
