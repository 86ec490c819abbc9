package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// Server Configuration:
// - PORT: HTTP listen port (default: 8080)
// - DB_PATH: SQLite database path (default: ./data/anuvadam.db)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_FILE: log file path, empty logs to stderr only (optional)
//
// Translation Configuration:
// - GLOSSARY_PATH: glossary CSV path (default: ./glossary.csv)
// - SOURCE_LANG: default source language (default: en)
// - TARGET_LANG: default target language (default: te)
// - BATCH_SIZE: segments per remote batch (default: 15)
//
// Engine Configuration:
// - GOOGLE_TRANSLATE_CREDENTIALS: service account JSON path (optional)
// - GOOGLE_TRANSLATE_API_KEY: API key alternative to credentials (optional)
// - GEMINI_API_KEY: Gemini API key (optional)
// - GEMINI_API_URL: Gemini endpoint override (optional)
// - INDICTRANS2_BASE_URL: local inference service URL (optional)
//
// Job Configuration:
// - JOB_TTL: retention for finished jobs (default: 24h)
// - CLEANUP_CRON: cleanup schedule (default: */10 * * * *)
type Config struct {
	Server   ServerConfig   `json:"server"`
	Glossary GlossaryConfig `json:"glossary"`
	Engines  EnginesConfig  `json:"engines"`
	Jobs     JobsConfig     `json:"jobs"`

	SourceLanguage language.Tag `json:"source_language"`
	TargetLanguage language.Tag `json:"target_language"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

type GlossaryConfig struct {
	Path string `json:"path"`
}

type EnginesConfig struct {
	GoogleCredentialsFile string `json:"google_credentials_file"`
	GoogleAPIKey          string `json:"google_api_key"`
	GeminiAPIKey          string `json:"gemini_api_key"`
	GeminiAPIURL          string `json:"gemini_api_url"`
	IndicTransBaseURL     string `json:"indictrans_base_url"`
	BatchSize             int    `json:"batch_size"`
}

type JobsConfig struct {
	TTL         time.Duration `json:"ttl"`
	CleanupCron string        `json:"cleanup_cron"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:     getEnvInt("PORT", 8080),
			DBPath:   getEnvString("DB_PATH", "./data/anuvadam.db"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
			LogFile:  getEnvString("LOG_FILE", ""),
		},
		Glossary: GlossaryConfig{
			Path: getEnvString("GLOSSARY_PATH", "./glossary.csv"),
		},
		Engines: EnginesConfig{
			GoogleCredentialsFile: getEnvString("GOOGLE_TRANSLATE_CREDENTIALS", ""),
			GoogleAPIKey:          getEnvString("GOOGLE_TRANSLATE_API_KEY", ""),
			GeminiAPIKey:          getEnvString("GEMINI_API_KEY", ""),
			GeminiAPIURL:          getEnvString("GEMINI_API_URL", ""),
			IndicTransBaseURL:     getEnvString("INDICTRANS2_BASE_URL", ""),
			BatchSize:             getEnvInt("BATCH_SIZE", 15),
		},
		Jobs: JobsConfig{
			TTL:         getEnvDuration("JOB_TTL", 24*time.Hour),
			CleanupCron: getEnvString("CLEANUP_CRON", "*/10 * * * *"),
		},
		SourceLanguage: getEnvLanguage("SOURCE_LANG", language.English),
		TargetLanguage: getEnvLanguage("TARGET_LANG", language.Telugu),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Engines.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.Jobs.TTL <= 0 {
		return fmt.Errorf("JOB_TTL must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvLanguage gets a language tag from environment variables with default
func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}
