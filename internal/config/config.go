// Copyright 2025 RAG Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Groq      GroqConfig      `mapstructure:"groq"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	SerpAPI   SerpAPIConfig   `mapstructure:"serpapi"`
	Chroma    ChromaConfig    `mapstructure:"chroma"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	WebSearch WebSearchConfig `mapstructure:"websearch"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Session   SessionConfig   `mapstructure:"session"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// GroqConfig contains the generation-service (Groq OpenAI-compatible) configuration
type GroqConfig struct {
	APIKey   string `mapstructure:"apikey"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// OpenAIConfig contains the embedding-service configuration
type OpenAIConfig struct {
	APIKey   string `mapstructure:"apikey"`
	Endpoint string `mapstructure:"endpoint"`
}

// SerpAPIConfig contains the web-search service configuration
type SerpAPIConfig struct {
	APIKey   string `mapstructure:"apikey"`
	Endpoint string `mapstructure:"endpoint"`
}

// ChromaConfig contains ChromaDB configuration
type ChromaConfig struct {
	URL            string `mapstructure:"url"`
	CollectionName string `mapstructure:"collection_name"`
}

// RetrievalConfig contains retrieval-specific settings
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	MaxResults int           `mapstructure:"max_results"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// WorkflowConfig contains workflow engine settings
type WorkflowConfig struct {
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// SessionConfig contains session store configuration
type SessionConfig struct {
	StorageType string        `mapstructure:"storage_type"`
	RedisURL    string        `mapstructure:"redis_url"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// MetadataConfig contains the ingest metadata store configuration
type MetadataConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// FeedbackConfig contains feedback audit-log configuration
type FeedbackConfig struct {
	StorageType string `mapstructure:"storage_type"`
	FilePath    string `mapstructure:"file_path"`
	DBPath      string `mapstructure:"db_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RAG_ASSISTANT")

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Generation service defaults (Groq OpenAI-compatible API)
	v.SetDefault("groq.endpoint", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama3-70b-8192")

	// Embedding service defaults
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")

	// Web search defaults
	v.SetDefault("serpapi.endpoint", "https://serpapi.com/search")
	v.SetDefault("websearch.max_results", 5)
	v.SetDefault("websearch.cache_ttl", 5*time.Minute)

	// ChromaDB defaults
	v.SetDefault("chroma.url", "http://chromadb:8000")
	v.SetDefault("chroma.collection_name", "quickstart")

	// Retrieval defaults
	v.SetDefault("retrieval.top_k", 5)

	// Workflow defaults
	v.SetDefault("workflow.cycle_timeout", 20*time.Second)

	// Session defaults
	v.SetDefault("session.storage_type", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.max_sessions", 1000)

	// Metadata defaults
	v.SetDefault("metadata.db_path", "./metadata.db")

	// Feedback defaults
	v.SetDefault("feedback.storage_type", "file")
	v.SetDefault("feedback.file_path", "./feedback.log")
	v.SetDefault("feedback.db_path", "./feedback.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Server defaults
	v.SetDefault("server.addr", ":8000")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no config file found in default locations (./configs/config.yaml, ./config.yaml)")
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"GROQ_API_KEY":    "groq.apikey",
		"GROQ_ENDPOINT":   "groq.endpoint",
		"OPENAI_API_KEY":  "openai.apikey",
		"OPENAI_ENDPOINT": "openai.endpoint",
		"SERPAPI_KEY":     "serpapi.apikey",
		"CHROMA_URL":      "chroma.url",
		"REDIS_URL":       "session.redis_url",
		"LOG_LEVEL":       "logging.level",
		"LOG_FORMAT":      "logging.format",
		"LOG_OUTPUT":      "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values.
// Missing API keys fail startup here rather than degrading mid-request.
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Groq.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "groq.apikey",
			Message: "generation service API key is required. Set via config file or GROQ_API_KEY environment variable",
		})
	}

	if config.OpenAI.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "openai.apikey",
			Message: "embedding service API key is required. Set via config file or OPENAI_API_KEY environment variable",
		})
	}

	if config.SerpAPI.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "serpapi.apikey",
			Message: "web search API key is required. Set via config file or SERPAPI_KEY environment variable",
		})
	}

	if config.Chroma.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "chroma.url",
			Message: "ChromaDB URL is required",
		})
	}

	if config.Chroma.CollectionName == "" {
		errs = append(errs, ValidationError{
			Field:   "chroma.collection_name",
			Message: "ChromaDB collection name is required",
		})
	}

	if config.Retrieval.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be greater than 0",
		})
	}

	if config.WebSearch.MaxResults <= 0 {
		errs = append(errs, ValidationError{
			Field:   "websearch.max_results",
			Message: "max_results must be greater than 0",
		})
	}

	if config.Workflow.CycleTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "workflow.cycle_timeout",
			Message: "cycle_timeout must be greater than 0",
		})
	}

	validStorageTypes := []string{"memory", "redis"}
	if !contains(validStorageTypes, config.Session.StorageType) {
		errs = append(errs, ValidationError{
			Field:   "session.storage_type",
			Message: fmt.Sprintf("session storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	if config.Session.StorageType == "redis" && config.Session.RedisURL == "" {
		errs = append(errs, ValidationError{
			Field:   "session.redis_url",
			Message: "redis_url is required when session storage type is redis",
		})
	}

	validFeedbackTypes := []string{"file", "sqlite"}
	if !contains(validFeedbackTypes, config.Feedback.StorageType) {
		errs = append(errs, ValidationError{
			Field:   "feedback.storage_type",
			Message: fmt.Sprintf("feedback storage type must be one of: %s", strings.Join(validFeedbackTypes, ", ")),
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.Groq.APIKey != "" {
		masked.Groq.APIKey = maskValue(masked.Groq.APIKey)
	}
	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}
	if masked.SerpAPI.APIKey != "" {
		masked.SerpAPI.APIKey = maskValue(masked.SerpAPI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config after change to %s: %v\n", e.Name, err)
			return
		}
		callback(config)
	})

	return nil
}
