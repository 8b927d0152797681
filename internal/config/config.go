// Package config provides unified configuration loading for the OCR extractor.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Config holds all configuration for the extractor.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	OCR           OCRConfig           `yaml:"ocr"`
	Render        RenderConfig        `yaml:"render"`
	LLM           LLMConfig           `yaml:"llm"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	JobRetention     time.Duration `yaml:"job_retention"`
}

// OCRConfig holds local recognition settings.
type OCRConfig struct {
	PoolSize         int           `yaml:"pool_size"`
	Languages        []string      `yaml:"languages"`
	MaxFileBytes     int64         `yaml:"max_file_bytes"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	Scale float64 `yaml:"scale"`
	// MaxDimension caps the longer side of a rendered page in pixels; 0 disables the cap.
	MaxDimension int `yaml:"max_dimension"`
}

// LLMConfig holds hosted extraction settings.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	MaxPDFPages int           `yaml:"max_pdf_pages"`
}

// StoreConfig holds result store settings.
type StoreConfig struct {
	Driver string      `yaml:"driver"` // memory, redis or bolt
	Redis  RedisConfig `yaml:"redis"`
	Bolt   BoltConfig  `yaml:"bolt"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BoltConfig holds bbolt-specific settings.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file, a .env file and the
// environment, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	_ = godotenv.Load() // .env is optional

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("validate config", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8085,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     0, // SSE and long extractions
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			JobRetention:     30 * time.Minute,
		},
		OCR: OCRConfig{
			PoolSize:         4,
			Languages:        []string{"chi_sim", "eng"},
			MaxFileBytes:     domain.DefaultMaxBytes,
			ProgressInterval: 500 * time.Millisecond,
		},
		Render: RenderConfig{
			Scale:        1.5,
			MaxDimension: 4000,
		},
		LLM: LLMConfig{
			Model:       "mistralai/pixtral-large-2411",
			BaseURL:     "https://openrouter.ai/api/v1",
			Timeout:     5 * time.Minute,
			MaxRetries:  3,
			MaxPDFPages: 64,
		},
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "ocr",
			},
			Bolt: BoltConfig{
				Path: "ocr-extractor.db",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "ocr-extractor",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.OCR.PoolSize < 1 {
		return fmt.Errorf("ocr pool_size must be at least 1, got %d", c.OCR.PoolSize)
	}

	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr languages must not be empty")
	}

	if c.OCR.MaxFileBytes < 1 {
		return fmt.Errorf("ocr max_file_bytes must be positive")
	}

	if c.OCR.ProgressInterval <= 0 {
		return fmt.Errorf("ocr progress_interval must be positive")
	}

	if c.Render.Scale <= 0 || c.Render.Scale > 8 {
		return fmt.Errorf("render scale must be in (0, 8], got %g", c.Render.Scale)
	}

	switch c.Store.Driver {
	case "memory", "redis", "bolt":
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}

	if c.LLM.MaxPDFPages < 1 {
		return fmt.Errorf("llm max_pdf_pages must be positive")
	}

	return nil
}

// LanguageSpec returns the languages joined the way Tesseract expects them.
func (c *Config) LanguageSpec() string {
	return strings.Join(c.OCR.Languages, "+")
}

// HostedEnabled reports whether the hosted engine can be used.
func (c *Config) HostedEnabled() bool {
	return c.LLM.APIKey != ""
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError("SERVER_PORT", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("OCR_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError("OCR_POOL_SIZE", err)
		}
		cfg.OCR.PoolSize = n
	}

	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		cfg.OCR.Languages = splitLanguages(v)
	}

	if v := os.Getenv("OCR_MAX_FILE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return domain.ConfigError("OCR_MAX_FILE_BYTES", err)
		}
		cfg.OCR.MaxFileBytes = n
	}

	if v := os.Getenv("OCR_RENDER_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.ConfigError("OCR_RENDER_SCALE", err)
		}
		cfg.Render.Scale = f
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.Redis.Addr = strings.TrimPrefix(v, "redis://")
		if os.Getenv("STORE_DRIVER") == "" {
			cfg.Store.Driver = "redis"
		}
	}

	if v := os.Getenv("BOLT_PATH"); v != "" {
		cfg.Store.Bolt.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

// splitLanguages accepts "chi_sim+eng" as well as "chi_sim,eng".
func splitLanguages(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	return fields
}
