package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"env" validate:"required"`
	Port        string          `mapstructure:"port" validate:"required,numeric"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format" validate:"oneof=json text"`
	Inference   InferenceConfig `mapstructure:"inference"`
	Upload      UploadConfig    `mapstructure:"upload"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
}

type InferenceConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=ollama openai"`
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	Model         string        `mapstructure:"model" validate:"required"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	HealthTimeout time.Duration `mapstructure:"health_timeout" validate:"gt=0"`
}

type UploadConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions" validate:"min=1,dive,oneof=pdf docx txt"`
	MaxSizeMB         int64    `mapstructure:"max_size_mb" validate:"gt=0"`
}

// AnalysisConfig is carried for compatibility; no chunking is performed.
type AnalysisConfig struct {
	MaxCharsPerChunk int `mapstructure:"max_chars_per_chunk" validate:"gte=0"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (u UploadConfig) MaxUploadBytes() int64 {
	return u.MaxSizeMB << 20
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("inference.provider", "ollama")
	v.SetDefault("inference.base_url", "http://localhost:11434")
	v.SetDefault("inference.model", "llama3.2")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.timeout", 300*time.Second)
	v.SetDefault("inference.health_timeout", 5*time.Second)

	v.SetDefault("upload.allowed_extensions", []string{"pdf", "docx", "txt"})
	v.SetDefault("upload.max_size_mb", 16)

	v.SetDefault("analysis.max_chars_per_chunk", 3000)
}

// Load reads defaults, the optional YAML file at configPath and the environment,
// in increasing order of precedence, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
	cfg.Inference.BaseURL = strings.TrimRight(cfg.Inference.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
