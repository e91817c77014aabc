package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// PricingInfo holds cost details per token for a specific model. Prices are
// kept as strings and parsed into decimals by the pricing package so that
// fractional-cent prices never pass through a float.
type PricingInfo struct {
	InputPerToken  string `mapstructure:"input_per_token"`
	OutputPerToken string `mapstructure:"output_per_token"`
}

type Config struct {
	Provider struct {
		Name            string  `mapstructure:"name"` // "openai", "anthropic" or "gemini"
		OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
		AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
		GeminiAPIKey    string  `mapstructure:"gemini_api_key"`
		DefaultModel    string  `mapstructure:"default_model"`
		MaxTokens       int     `mapstructure:"max_tokens"`
		Temperature     float32 `mapstructure:"temperature"`
	} `mapstructure:"provider"`

	// Pricing: map[model] = struct{input_per_token, output_per_token}
	Pricing map[string]PricingInfo `mapstructure:"pricing"`

	Telemetry struct {
		LogFile string `mapstructure:"log_file"`
	} `mapstructure:"telemetry"`

	Chat struct {
		MaxTurns         int `mapstructure:"max_turns"`
		MaxMessageLength int `mapstructure:"max_message_length"`
	} `mapstructure:"chat"`

	ObjectStore struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"object_store"`

	Query struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"query"`

	Chunking struct {
		MaxTokens int `mapstructure:"max_tokens"`
		Overlap   int `mapstructure:"overlap"`
	} `mapstructure:"chunking"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("provider.name", "anthropic")
	viper.SetDefault("provider.default_model", "claude-3-5-sonnet-latest")
	viper.SetDefault("provider.max_tokens", 4096)
	viper.SetDefault("provider.temperature", 0)
	viper.SetDefault("telemetry.log_file", "metrics.jsonl")
	viper.SetDefault("chat.max_turns", 10)
	viper.SetDefault("chat.max_message_length", 4000)
	viper.SetDefault("query.driver", "sqlite3")
	viper.SetDefault("chunking.max_tokens", 3000)
	viper.SetDefault("chunking.overlap", 2)

	viper.AutomaticEnv()

	// Credentials usually arrive through the environment rather than the
	// config file.
	viper.BindEnv("provider.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("provider.anthropic_api_key", "ANTHROPIC_API_KEY")
	viper.BindEnv("provider.gemini_api_key", "GEMINI_API_KEY")
	viper.BindEnv("object_store.endpoint", "SKALD_S3_ENDPOINT")
	viper.BindEnv("object_store.access_key", "SKALD_S3_ACCESS_KEY")
	viper.BindEnv("object_store.secret_key", "SKALD_S3_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
