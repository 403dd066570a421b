package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	R2         R2Config
	Storage    StorageConfig
	Transcoder TranscoderConfig
	Render     RenderConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig points at the MySQL project/credit store. An empty Host
// disables the store.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// JWTConfig configures bearer token auth. Secret enables HS256 tokens;
// JWKSURL or Issuer enables key-set verification.
type JWTConfig struct {
	Secret   string
	JWKSURL  string
	Issuer   string
	Audience string
}

type RateLimitConfig struct {
	RenderPerHour int
	UploadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// StorageConfig is the local fallback used when R2 is not configured
type StorageConfig struct {
	LocalDir string
}

type TranscoderConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type RenderConfig struct {
	FetchConcurrency  int
	FetchTimeout      time.Duration
	TaskTimeout       time.Duration
	DefaultDuration   float64 // seconds, for tracks without analysis
	WorkerConcurrency int
}

// IsConfigured reports whether a database host was given
func (c DatabaseConfig) IsConfigured() bool {
	return c.Host != ""
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DB_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":               "SERVER_PORT",
		"server.env":                "SERVER_ENV",
		"server.log_level":          "LOG_LEVEL",
		"server.public_url":         "PUBLIC_URL",
		"redis.addr":                "REDIS_ADDR",
		"redis.password":            "REDIS_PASSWORD",
		"redis.db":                  "REDIS_DB",
		"database.host":             "DB_HOST",
		"database.port":             "DB_PORT",
		"database.user":             "DB_USER",
		"database.password":         "DB_PASSWORD",
		"database.name":             "DB_NAME",
		"jwt.secret":                "JWT_SECRET",
		"jwt.jwks_url":              "JWT_JWKS_URL",
		"jwt.issuer":                "JWT_ISSUER",
		"jwt.audience":              "JWT_AUDIENCE",
		"ratelimit.render_per_hour": "RATELIMIT_RENDER_PER_HOUR",
		"ratelimit.upload_per_hour": "RATELIMIT_UPLOAD_PER_HOUR",
		"r2.account_id":             "R2_ACCOUNT_ID",
		"r2.access_key_id":          "R2_ACCESS_KEY_ID",
		"r2.secret_access_key":      "R2_SECRET_ACCESS_KEY",
		"r2.bucket_name":            "R2_BUCKET_NAME",
		"r2.public_url":             "R2_PUBLIC_URL",
		"storage.local_dir":         "STORAGE_LOCAL_DIR",
		"transcoder.service_url":    "TRANSCODER_URL",
		"transcoder.timeout":        "TRANSCODER_TIMEOUT",
		"render.fetch_concurrency":  "RENDER_FETCH_CONCURRENCY",
		"render.fetch_timeout":      "RENDER_FETCH_TIMEOUT",
		"render.task_timeout":       "RENDER_TASK_TIMEOUT",
		"render.worker_concurrency": "RENDER_WORKER_CONCURRENCY",
		"render.default_duration":   "RENDER_DEFAULT_DURATION",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "http://localhost:8000")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "mixrender")
	v.SetDefault("database.name", "mixrender")
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("ratelimit.render_per_hour", 5)
	v.SetDefault("ratelimit.upload_per_hour", 50)
	v.SetDefault("storage.local_dir", "./data/renders")
	v.SetDefault("transcoder.timeout", 120)
	v.SetDefault("render.fetch_concurrency", 4)
	v.SetDefault("render.fetch_timeout", "60s")
	v.SetDefault("render.task_timeout", "30m")
	v.SetDefault("render.default_duration", 240)
	v.SetDefault("render.worker_concurrency", 4)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			PublicURL: strings.TrimRight(v.GetString("server.public_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Name:     v.GetString("database.name"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("jwt.secret"),
			JWKSURL:  v.GetString("jwt.jwks_url"),
			Issuer:   v.GetString("jwt.issuer"),
			Audience: v.GetString("jwt.audience"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: v.GetInt("ratelimit.render_per_hour"),
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Storage: StorageConfig{
			LocalDir: v.GetString("storage.local_dir"),
		},
		Transcoder: TranscoderConfig{
			ServiceURL: v.GetString("transcoder.service_url"),
			Timeout:    v.GetInt("transcoder.timeout"),
		},
		Render: RenderConfig{
			FetchConcurrency:  v.GetInt("render.fetch_concurrency"),
			FetchTimeout:      v.GetDuration("render.fetch_timeout"),
			TaskTimeout:       v.GetDuration("render.task_timeout"),
			DefaultDuration:   v.GetFloat64("render.default_duration"),
			WorkerConcurrency: v.GetInt("render.worker_concurrency"),
		},
	}

	return cfg, nil
}
