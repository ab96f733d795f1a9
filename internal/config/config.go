package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	WorkflowAPI WorkflowAPIConfig `yaml:"workflow_api"`
	Session     SessionConfig     `yaml:"session"`
	Redis       RedisConfig       `yaml:"redis"`
	CORS        CORSConfig        `yaml:"cors"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// WorkflowAPIConfig points at the external invoice-to-cash workflow service.
// A zero Timeout means calls are only bounded by the caller's context.
type WorkflowAPIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server:      ServerConfig{Port: ":8090"},
		WorkflowAPI: WorkflowAPIConfig{BaseURL: "http://localhost:8000", Timeout: 2 * time.Minute},
		Session:     SessionConfig{Backend: SessionBackendMemory, TTL: 24 * time.Hour},
		Redis:       RedisConfig{Addr: "localhost:6379"},
		CORS:        CORSConfig{AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"}},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open %s: %w", path, err)
		default:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	if err := overrideFromEnv(cfg); err != nil {
		return nil, err
	}
	cfg.WorkflowAPI.BaseURL = strings.TrimRight(cfg.WorkflowAPI.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.WorkflowAPI.BaseURL == "" {
		return errors.New("workflow_api.base_url is required")
	}
	if c.WorkflowAPI.Timeout < 0 {
		return errors.New("workflow_api.timeout must not be negative")
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("session.backend %q: want %q or %q", c.Session.Backend, SessionBackendMemory, SessionBackendRedis)
	}
	if c.Session.Backend == SessionBackendRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis session backend")
	}
	return nil
}

func overrideFromEnv(cfg *Config) error {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if url := os.Getenv("WORKFLOW_API_URL"); url != "" {
		cfg.WorkflowAPI.BaseURL = url
	}
	if v := os.Getenv("WORKFLOW_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WORKFLOW_API_TIMEOUT: %w", err)
		}
		cfg.WorkflowAPI.Timeout = d
	}
	if backend := os.Getenv("SESSION_BACKEND"); backend != "" {
		cfg.Session.Backend = backend
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.Session.TTL = d
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEVELOPMENT: %w", err)
		}
		cfg.Log.Development = dev
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
