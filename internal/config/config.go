// Package config loads runtime settings from .env files and the environment.
//
// LOAD ORDER:
// godotenv.Load never overrides a variable that is already set, so the first
// file that defines a name wins. Files are read most specific first:
//
//	.env.<env>.local   secrets for one environment, never committed
//	.env.local         local overrides for every environment
//	.env.<env>         shared settings for one environment
//	.env               shared defaults
//
// <env> comes from YATUBE_ENV (default "dev"). Real environment variables
// beat every file. Missing files are skipped.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is every setting the server and CLI read at startup.
type Config struct {
	Env       string
	Port      int
	DBPath    string
	MediaRoot string

	// JWTSecret is random per process when JWT_SECRET is unset; sessions
	// then do not survive a restart. EphemeralSecret records that case.
	JWTSecret       string
	EphemeralSecret bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PageCacheTTL  time.Duration

	LogLevel slog.Level
}

// GitHubEnabled reports whether both OAuth credentials are configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads .env files from the working directory, then the environment.
func Load() (Config, error) {
	return load("")
}

// load reads .env files relative to dir ("" for the working directory).
func load(dir string) (Config, error) {
	env := os.Getenv("YATUBE_ENV")
	if env == "" {
		env = "dev"
	}

	for _, name := range []string{".env." + env + ".local", ".env.local", ".env." + env, ".env"} {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := Config{
		Env:                env,
		DBPath:             stringVar("DB_PATH", "data/yatube.db"),
		MediaRoot:          stringVar("MEDIA_ROOT", "data/media"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		CacheBackend:       strings.ToLower(stringVar("CACHE_BACKEND", CacheMemory)),
		RedisAddr:          stringVar("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.Port, err = intVar("PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT %d out of range", cfg.Port)
	}
	if cfg.RedisDB, err = intVar("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.PageCacheTTL, err = durationVar("PAGE_CACHE_TTL", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = levelVar("LOG_LEVEL", slog.LevelInfo); err != nil {
		return Config{}, err
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return Config{}, fmt.Errorf("config: CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, cfg.CacheBackend)
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.JWTSecret = secret
		cfg.EphemeralSecret = true
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

func stringVar(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func intVar(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q", name, v)
	}
	return n, nil
}

func durationVar(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: invalid %s value %q", name, v)
	}
	return d, nil
}

func levelVar(name string, def slog.Level) (slog.Level, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q", name, v)
	}
	return level, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
