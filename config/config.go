// Package config loads the service settings from the environment, with an
// optional YAML file (path in PROMPTHUB_CONFIG) supplying values that the
// environment has not set. Every field has a sensible default so the service
// starts with no configuration at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds every tunable of the service.
type Settings struct {
	// Addr is the listen address of the HTTP server.
	Addr string

	// APIPrefix is the path prefix all API routes live under.
	APIPrefix string

	// DBPath is the SQLite database file path.
	DBPath string

	// CORSOrigins lists the allowed CORS origins. "*" allows any.
	CORSOrigins []string

	// DefaultPageSize is the page size used when a list request omits one.
	DefaultPageSize int

	// RedisAddr enables the version-content cache when non-empty.
	RedisAddr string

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string

	// LLM client settings.
	LLMAPIKey           string
	LLMBaseURL          string
	LLMDefaultModel     string
	LLMTimeout          time.Duration
	LLMMaxTokens        int
	LLMTemperature      float64
	LLMBatchConcurrency int
	LLMRateLimitRPS     float64
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		Addr:                ":8080",
		APIPrefix:           "/api/v1",
		DBPath:              "prompthub.db",
		CORSOrigins:         []string{"*"},
		DefaultPageSize:     20,
		LLMBaseURL:          "https://api.openai.com/v1",
		LLMDefaultModel:     "gpt-4o-mini",
		LLMTimeout:          60 * time.Second,
		LLMMaxTokens:        2048,
		LLMTemperature:      0.7,
		LLMBatchConcurrency: 3,
	}
}

// fileSettings mirrors Settings for the YAML config file. Pointer fields
// distinguish "absent" from zero values.
type fileSettings struct {
	Addr                *string  `yaml:"addr"`
	APIPrefix           *string  `yaml:"api_prefix"`
	DBPath              *string  `yaml:"db_path"`
	CORSOrigins         []string `yaml:"cors_origins"`
	DefaultPageSize     *int     `yaml:"default_page_size"`
	RedisAddr           *string  `yaml:"redis_addr"`
	OTLPEndpoint        *string  `yaml:"otlp_endpoint"`
	LLMAPIKey           *string  `yaml:"llm_api_key"`
	LLMBaseURL          *string  `yaml:"llm_base_url"`
	LLMDefaultModel     *string  `yaml:"llm_default_model"`
	LLMTimeoutSeconds   *int     `yaml:"llm_timeout_seconds"`
	LLMMaxTokens        *int     `yaml:"llm_max_tokens"`
	LLMTemperature      *float64 `yaml:"llm_temperature"`
	LLMBatchConcurrency *int     `yaml:"llm_batch_concurrency"`
	LLMRateLimitRPS     *float64 `yaml:"llm_rate_limit_rps"`
}

// Load builds the effective settings: defaults, then the YAML file named by
// PROMPTHUB_CONFIG (if any), then environment variables, later layers
// winning.
func Load() (Settings, error) {
	s := Default()

	if path := os.Getenv("PROMPTHUB_CONFIG"); path != "" {
		if err := applyFile(&s, path); err != nil {
			return Settings{}, err
		}
	}

	applyEnv(&s)

	if s.DefaultPageSize < 1 {
		return Settings{}, fmt.Errorf("config: default page size must be positive, got %d", s.DefaultPageSize)
	}
	if s.LLMBatchConcurrency < 1 {
		return Settings{}, fmt.Errorf("config: llm batch concurrency must be positive, got %d", s.LLMBatchConcurrency)
	}
	return s, nil
}

func applyFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var f fileSettings
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&s.Addr, f.Addr)
	setString(&s.APIPrefix, f.APIPrefix)
	setString(&s.DBPath, f.DBPath)
	if len(f.CORSOrigins) > 0 {
		s.CORSOrigins = f.CORSOrigins
	}
	setInt(&s.DefaultPageSize, f.DefaultPageSize)
	setString(&s.RedisAddr, f.RedisAddr)
	setString(&s.OTLPEndpoint, f.OTLPEndpoint)
	setString(&s.LLMAPIKey, f.LLMAPIKey)
	setString(&s.LLMBaseURL, f.LLMBaseURL)
	setString(&s.LLMDefaultModel, f.LLMDefaultModel)
	if f.LLMTimeoutSeconds != nil {
		s.LLMTimeout = time.Duration(*f.LLMTimeoutSeconds) * time.Second
	}
	setInt(&s.LLMMaxTokens, f.LLMMaxTokens)
	setFloat(&s.LLMTemperature, f.LLMTemperature)
	setInt(&s.LLMBatchConcurrency, f.LLMBatchConcurrency)
	setFloat(&s.LLMRateLimitRPS, f.LLMRateLimitRPS)
	return nil
}

func applyEnv(s *Settings) {
	envString(&s.Addr, "PROMPTHUB_ADDR")
	envString(&s.APIPrefix, "PROMPTHUB_API_PREFIX")
	envString(&s.DBPath, "PROMPTHUB_DB_PATH")
	if v := os.Getenv("PROMPTHUB_CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		s.CORSOrigins = origins
	}
	envInt(&s.DefaultPageSize, "PROMPTHUB_DEFAULT_PAGE_SIZE")
	envString(&s.RedisAddr, "PROMPTHUB_REDIS_ADDR")
	envString(&s.OTLPEndpoint, "PROMPTHUB_OTLP_ENDPOINT")
	envString(&s.LLMAPIKey, "LLM_API_KEY")
	envString(&s.LLMBaseURL, "LLM_BASE_URL")
	envString(&s.LLMDefaultModel, "LLM_DEFAULT_MODEL")
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.LLMTimeout = time.Duration(n) * time.Second
		}
	}
	envInt(&s.LLMMaxTokens, "LLM_MAX_TOKENS")
	envFloat(&s.LLMTemperature, "LLM_TEMPERATURE")
	envInt(&s.LLMBatchConcurrency, "LLM_BATCH_CONCURRENCY")
	envFloat(&s.LLMRateLimitRPS, "LLM_RATE_LIMIT_RPS")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
