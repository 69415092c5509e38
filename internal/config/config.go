// Package config loads askcsv settings from flags, environment and
// ~/.askcsv/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/askcsv/internal/ai"
	"github.com/KaramelBytes/askcsv/internal/utils"
)

// EnvPrefix is prepended to every environment override, e.g. ASKCSV_GEMINI_API_KEY.
const EnvPrefix = "ASKCSV"

// Global configuration structure.
type Global struct {
	// Generator backends, tried in this order.
	Providers []string `mapstructure:"providers" yaml:"providers"`

	GeminiAPIKey     string `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	GeminiModel      string `mapstructure:"gemini_model" yaml:"gemini_model"`
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key"`
	OpenRouterModel  string `mapstructure:"openrouter_model" yaml:"openrouter_model"`
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaModel      string `mapstructure:"ollama_model" yaml:"ollama_model"`
	InferenceURL     string `mapstructure:"inference_url" yaml:"inference_url"`
	InferenceToken   string `mapstructure:"inference_token" yaml:"inference_token"`
	ModelsCatalog    string `mapstructure:"models_catalog" yaml:"models_catalog"`

	GenerationTimeoutSec int     `mapstructure:"generation_timeout_sec" yaml:"generation_timeout_sec"`
	MaxTokens            int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature          float64 `mapstructure:"temperature" yaml:"temperature"`
	SampleRows           int     `mapstructure:"sample_rows" yaml:"sample_rows"`
	QueryTimeoutSec      int     `mapstructure:"query_timeout_sec" yaml:"query_timeout_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Server
	ListenAddr   string `mapstructure:"listen_addr" yaml:"listen_addr"`
	UploadTTLMin int    `mapstructure:"upload_ttl_min" yaml:"upload_ttl_min"`
	MaxUploadMB  int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	DatadogEnabled bool   `mapstructure:"datadog_enabled" yaml:"datadog_enabled"`
	DatadogTags    string `mapstructure:"datadog_tags" yaml:"datadog_tags"`
}

// Keys lists every settable key in display order.
var Keys = []string{
	"providers",
	"gemini_api_key", "gemini_model",
	"openrouter_api_key", "openrouter_model",
	"ollama_host", "ollama_model",
	"inference_url", "inference_token",
	"models_catalog",
	"generation_timeout_sec", "max_tokens", "temperature", "sample_rows", "query_timeout_sec",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"listen_addr", "upload_ttl_min", "max_upload_mb",
	"log_level", "datadog_enabled", "datadog_tags",
}

// secretKeys are masked by Masked.
var secretKeys = map[string]bool{
	"gemini_api_key":     true,
	"openrouter_api_key": true,
	"inference_token":    true,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers", []string{ai.ProviderGemini, ai.ProviderOpenRouter, ai.ProviderOllama})
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("openrouter_model", "openai/gpt-4o-mini")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_model", "sqlcoder:7b")
	v.SetDefault("generation_timeout_sec", 30)
	v.SetDefault("max_tokens", 512)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("sample_rows", 3)
	v.SetDefault("query_timeout_sec", 15)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Server defaults
	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("upload_ttl_min", 60)
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("datadog_enabled", false)
	v.SetDefault("datadog_tags", "")
}

// Dir returns ~/.askcsv.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".askcsv"), nil
}

// Path resolves the config file path; cfgFile wins when set.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; command flags are applied on top
// by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// A missing file is fine on first run; a malformed one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// ASKCSV_PROVIDERS=gemini,ollama may arrive as one element.
	c.Providers = ParseList(strings.Join(c.Providers, ","))
	return &c, nil
}

// Save writes c as YAML to cfgFile, or to ~/.askcsv/config.yaml when cfgFile
// is empty, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set assigns one key from its string form.
func (c *Global) Set(key, value string) error {
	switch key {
	case "providers":
		list := ParseList(value)
		for _, p := range list {
			if !knownProvider(p) {
				return fmt.Errorf("unknown provider %q (want one of %s)", p, strings.Join(ai.Providers(), ", "))
			}
		}
		c.Providers = list
	case "gemini_api_key":
		c.GeminiAPIKey = value
	case "gemini_model":
		c.GeminiModel = value
	case "openrouter_api_key":
		c.OpenRouterAPIKey = value
	case "openrouter_model":
		c.OpenRouterModel = value
	case "ollama_host":
		c.OllamaHost = value
	case "ollama_model":
		c.OllamaModel = value
	case "inference_url":
		c.InferenceURL = value
	case "inference_token":
		c.InferenceToken = value
	case "models_catalog":
		c.ModelsCatalog = value
	case "log_level":
		c.LogLevel = value
	case "listen_addr":
		c.ListenAddr = value
	case "datadog_tags":
		c.DatadogTags = value
	case "datadog_enabled":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", key, value)
		}
		c.DatadogEnabled = b
	case "temperature":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%s: invalid number %q", key, value)
		}
		c.Temperature = f
	default:
		dst := c.intField(key)
		if dst == nil {
			return fmt.Errorf("unknown config key %q", key)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive integer, got %q", key, value)
		}
		*dst = n
	}
	return nil
}

func (c *Global) intField(key string) *int {
	switch key {
	case "generation_timeout_sec":
		return &c.GenerationTimeoutSec
	case "max_tokens":
		return &c.MaxTokens
	case "sample_rows":
		return &c.SampleRows
	case "query_timeout_sec":
		return &c.QueryTimeoutSec
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "retry_max_attempts":
		return &c.RetryMaxAttempts
	case "retry_base_delay_ms":
		return &c.RetryBaseDelayMs
	case "retry_max_delay_ms":
		return &c.RetryMaxDelayMs
	case "upload_ttl_min":
		return &c.UploadTTLMin
	case "max_upload_mb":
		return &c.MaxUploadMB
	}
	return nil
}

// Masked returns key/value pairs in Keys order with secrets hidden.
func (c *Global) Masked() [][2]string {
	var m map[string]any
	b, _ := yaml.Marshal(c)
	_ = yaml.Unmarshal(b, &m)
	out := make([][2]string, 0, len(Keys))
	for _, k := range Keys {
		val := fmt.Sprint(m[k])
		if m[k] == nil {
			val = ""
		}
		if k == "providers" {
			val = strings.Join(c.Providers, ",")
		}
		if secretKeys[k] && val != "" {
			val = mask(val)
		}
		out = append(out, [2]string{k, val})
	}
	return out
}

// HTTPTimeout converts http_timeout_sec to a duration.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func (c *Global) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSec) * time.Second
}

func (c *Global) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSec) * time.Second
}

func (c *Global) UploadTTL() time.Duration {
	return time.Duration(c.UploadTTLMin) * time.Minute
}

// ParseList splits a comma separated list, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func knownProvider(p string) bool {
	for _, k := range ai.Providers() {
		if p == k {
			return true
		}
	}
	return false
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
