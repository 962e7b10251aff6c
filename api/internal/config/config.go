package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName    = "KobERP AI Backend"
	AppVersion = "1.0.0"

	defaultConfigFile = "config.yaml"
	defaultMaxUpload  = 10 * 1024 * 1024
)

type Config struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	Log  LogConfig  `yaml:"log"`
	Auth AuthConfig `yaml:"auth"`

	VisionProvider string            `yaml:"vision_provider"`
	Ollama         OllamaConfig      `yaml:"ollama"`
	Gemini         GeminiConfig      `yaml:"gemini"`
	OpenAI         OpenAIConfig      `yaml:"openai"`
	ChatModels     map[string]string `yaml:"chat_models"`
	ModelTimeout   time.Duration     `yaml:"model_timeout"`

	Download DownloadConfig `yaml:"download"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	Yandex   YandexConfig   `yaml:"yandex"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type AuthConfig struct {
	Domain       string        `yaml:"domain"`
	Audience     string        `yaml:"audience"`
	VerifyIssuer bool          `yaml:"verify_issuer"`
	Algorithms   []string      `yaml:"algorithms"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OpenAIConfig targets any OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type DownloadConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	MaxBytes           int64         `yaml:"max_bytes"`
}

type YandexConfig struct {
	OAuthToken string `yaml:"oauth_token"`
	FolderID   string `yaml:"folder_id"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AllowedChats []int64 `yaml:"allowed_chats"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		Port: "8004",
		Log:  LogConfig{Level: "info"},
		Auth: AuthConfig{
			VerifyIssuer: true,
			Algorithms:   []string{"RS256"},
			FetchTimeout: 10 * time.Second,
		},
		VisionProvider: "ollama",
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-vl:4b",
		},
		Gemini:       GeminiConfig{Model: "gemini-2.5-flash"},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		ChatModels:   map[string]string{"qwen3-vl:4b": "qwen3:4b"},
		ModelTimeout: 120 * time.Second,
		Download: DownloadConfig{
			Timeout:  30 * time.Second,
			MaxBytes: defaultMaxUpload,
		},
		CORSAllowedOrigins: []string{"*"},
	}
}

// Load reads .env, then the optional YAML file at path (CONFIG_FILE or
// config.yaml when path is empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path == "" {
		path = getEnv("CONFIG_FILE", defaultConfigFile)
	}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Auth.Domain = getEnv("AUTH0_DOMAIN", cfg.Auth.Domain)
	cfg.Auth.Audience = getEnv("AUTH0_API_AUDIENCE", cfg.Auth.Audience)
	cfg.VisionProvider = strings.ToLower(getEnv("VISION_PROVIDER", cfg.VisionProvider))
	cfg.Ollama.BaseURL = getEnv("OLLAMA_BASE_URL", cfg.Ollama.BaseURL)
	cfg.Ollama.Model = getEnv("OLLAMA_MODEL", cfg.Ollama.Model)
	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", cfg.Gemini.Model)
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.Yandex.OAuthToken = getEnv("YC_OAUTH_TOKEN", cfg.Yandex.OAuthToken)
	cfg.Yandex.FolderID = getEnv("YC_FOLDER_ID", cfg.Yandex.FolderID)
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)

	var err error
	if cfg.Debug, err = getBool("DEBUG", cfg.Debug); err != nil {
		return err
	}
	if cfg.Log.Pretty, err = getBool("LOG_PRETTY", cfg.Log.Pretty); err != nil {
		return err
	}
	if cfg.Auth.VerifyIssuer, err = getBool("AUTH_VERIFY_ISSUER", cfg.Auth.VerifyIssuer); err != nil {
		return err
	}
	if cfg.Download.InsecureSkipVerify, err = getBool("DOWNLOAD_INSECURE_SKIP_VERIFY", cfg.Download.InsecureSkipVerify); err != nil {
		return err
	}
	if cfg.Auth.FetchTimeout, err = getDuration("JWKS_FETCH_TIMEOUT", cfg.Auth.FetchTimeout); err != nil {
		return err
	}
	if cfg.ModelTimeout, err = getDuration("MODEL_TIMEOUT", cfg.ModelTimeout); err != nil {
		return err
	}
	if cfg.Download.Timeout, err = getDuration("DOWNLOAD_TIMEOUT", cfg.Download.Timeout); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("MAX_UPLOAD_BYTES: invalid value %q", v)
		}
		cfg.Download.MaxBytes = n
	}
	if v := os.Getenv("AUTH_ALGORITHMS"); v != "" {
		cfg.Auth.Algorithms = splitList(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CHAT_MODELS"); v != "" {
		pairs, err := ParseModelPairs(v)
		if err != nil {
			return err
		}
		cfg.ChatModels = pairs
	}
	if v := os.Getenv("TELEGRAM_ALLOWED_CHATS"); v != "" {
		ids := make([]int64, 0)
		for _, s := range splitList(v) {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("TELEGRAM_ALLOWED_CHATS: bad chat id %q", s)
			}
			ids = append(ids, id)
		}
		cfg.Telegram.AllowedChats = ids
	}
	return nil
}

// ChatModel is the text model paired with the vision model, or the vision
// model itself when no pairing is configured.
func (c *Config) ChatModel() string {
	vm := c.VisionModel()
	if m, ok := c.ChatModels[vm]; ok {
		return m
	}
	return vm
}

// Validate reports settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Domain) == "" {
		errs = append(errs, errors.New("AUTH0_DOMAIN is required"))
	}
	if strings.TrimSpace(c.Auth.Audience) == "" {
		errs = append(errs, errors.New("AUTH0_API_AUDIENCE is required"))
	}
	switch c.VisionProvider {
	case "ollama":
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VISION_PROVIDER %q; use ollama, gemini or openai", c.VisionProvider))
	}
	if c.Download.MaxBytes <= 0 {
		errs = append(errs, errors.New("download.max_bytes must be positive"))
	}
	return errors.Join(errs...)
}

// VisionModel is the model identifier of the configured vision provider.
func (c *Config) VisionModel() string {
	switch c.VisionProvider {
	case "gemini":
		return c.Gemini.Model
	case "openai":
		return c.OpenAI.Model
	}
	return c.Ollama.Model
}

// ParseModelPairs parses "vision=text,vision2=text2".
func ParseModelPairs(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range splitList(s) {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("CHAT_MODELS: bad pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid bool %q", k, v)
	}
	return b, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid duration %q", k, v)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
