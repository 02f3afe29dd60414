package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server   Server   `yaml:"server"`
	LLM      LLM      `yaml:"llm"`
	YouTube  YouTube  `yaml:"youtube"`
	Analysis Analysis `yaml:"analysis"`
	Profile  Profile  `yaml:"profile"`
	Training Training `yaml:"training"`
	Cache    Cache    `yaml:"cache"`
	Metrics  Metrics  `yaml:"metrics"`
	Output   Output   `yaml:"output"`
	Logging  Logging  `yaml:"logging"`
}

type Server struct {
	Host           string   `yaml:"host" validate:"required"`
	Port           int      `yaml:"port" validate:"required|min:1|max:65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLM selects the provider used for analysis, discovery queries and generation.
// Keys are never stored in the file; only the names of the env variables holding them.
type LLM struct {
	Provider     string `yaml:"provider" validate:"required|in:anthropic,openai,ollama,gemini"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	OpenAIModel  string `yaml:"openai_model"`
	OpenAIKeyEnv string `yaml:"openai_key_env"`
	OllamaModel  string `yaml:"ollama_model"`
	OllamaURL    string `yaml:"ollama_url"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiKeyEnv string `yaml:"gemini_key_env"`
	MaxTokens    int    `yaml:"max_tokens" validate:"min:1"`
}

type YouTube struct {
	APIKeyEnv     string `yaml:"api_key_env"`
	BaseURL       string `yaml:"base_url"`
	SearchTimeout int    `yaml:"search_timeout_seconds" validate:"min:1"`
}

type Analysis struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	AutoOnSave    bool    `yaml:"auto_on_save"`
}

type Profile struct {
	Eviction string `yaml:"eviction" validate:"required|in:ranked,recency"`
}

type Training struct {
	MinPending int    `yaml:"min_pending" validate:"min:1"`
	BatchSize  int    `yaml:"batch_size" validate:"min:1"`
	ExpiryDays int    `yaml:"expiry_days" validate:"min:1"`
	Feeds      []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Cache struct {
	Enabled bool `yaml:"enabled"`
	SizeMB  int  `yaml:"size_mb"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"required|in:debug,info,warn,error"`
	Format string `yaml:"format" validate:"in:console,json"`
}

// ConfigDir returns the XDG config directory for folio.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "folio")
}

// DataDir returns the XDG data directory for folio.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "folio")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/folio/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'folio init' to create a default config",
		xdgConfig,
	)
}

// Load reads a config YAML file, applies FOLIO_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, viper.New())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:           "127.0.0.1",
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		LLM: LLM{
			Provider:     "anthropic",
			Model:        "claude-sonnet-4-20250514",
			APIKeyEnv:    "ANTHROPIC_API_KEY",
			OpenAIModel:  "gpt-4o-mini",
			OpenAIKeyEnv: "OPENAI_API_KEY",
			OllamaModel:  "qwen2.5:7b",
			OllamaURL:    "http://localhost:11434",
			GeminiModel:  "gemini-2.5-flash",
			GeminiKeyEnv: "GEMINI_API_KEY",
			MaxTokens:    1024,
		},
		YouTube: YouTube{
			APIKeyEnv:     "YOUTUBE_API_KEY",
			BaseURL:       "https://www.googleapis.com/youtube/v3",
			SearchTimeout: 5,
		},
		Analysis: Analysis{RatePerSecond: 5, AutoOnSave: true},
		Profile:  Profile{Eviction: "ranked"},
		Training: Training{MinPending: 6, BatchSize: 30, ExpiryDays: 7},
		Cache:    Cache{Enabled: true, SizeMB: 16},
		Logging:  Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides selected settings from the environment.
func applyEnv(cfg *Config, v *viper.Viper) {
	v.BindEnv("server.host", "FOLIO_SERVER_HOST")
	v.BindEnv("server.port", "FOLIO_SERVER_PORT")
	v.BindEnv("server.allowed_origins", "FOLIO_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")
	v.BindEnv("llm.provider", "FOLIO_LLM_PROVIDER")
	v.BindEnv("llm.model", "FOLIO_LLM_MODEL")
	v.BindEnv("profile.eviction", "FOLIO_PROFILE_EVICTION")
	v.BindEnv("output.data_dir", "FOLIO_DATA_DIR")
	v.BindEnv("logging.level", "FOLIO_LOG_LEVEL")
	v.BindEnv("metrics.enabled", "FOLIO_METRICS_ENABLED")

	if v.IsSet("server.host") {
		cfg.Server.Host = v.GetString("server.host")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.allowed_origins") {
		var origins []string
		for _, o := range strings.Split(v.GetString("server.allowed_origins"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v.IsSet("llm.provider") {
		cfg.LLM.Provider = strings.ToLower(v.GetString("llm.provider"))
	}
	if v.IsSet("llm.model") {
		cfg.LLM.Model = v.GetString("llm.model")
	}
	if v.IsSet("profile.eviction") {
		cfg.Profile.Eviction = v.GetString("profile.eviction")
	}
	if v.IsSet("output.data_dir") {
		cfg.Output.DataDir = v.GetString("output.data_dir")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	}
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
}

// Validate checks the config against its struct rules.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// YouTubeAPIKey returns the YouTube Data API key, or "" when unset.
func (c *Config) YouTubeAPIKey() string {
	if c.YouTube.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.YouTube.APIKeyEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
