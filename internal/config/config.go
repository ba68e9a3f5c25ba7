package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	LLM      LLM      `mapstructure:"llm"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	HTTP     HTTP     `mapstructure:"http"`
	Database Database `mapstructure:"database"`
	Email    Email    `mapstructure:"email"`
	Feeds    Feeds    `mapstructure:"feeds"`
	Fetch    Fetch    `mapstructure:"fetch"`
	Keywords Keywords `mapstructure:"keywords"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// LLM holds LLM provider configuration
type LLM struct {
	Provider    string       `mapstructure:"provider"`
	Model       string       `mapstructure:"model"`
	MaxTokens   int          `mapstructure:"max_tokens"`
	Temperature float32      `mapstructure:"temperature"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Gemini      GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Pipeline holds the orchestrator budgets and caps
type Pipeline struct {
	FeedParallelism          int    `mapstructure:"feed_parallelism"`
	ArticleParallelism       int    `mapstructure:"article_parallelism"`
	LLMParallelism           int    `mapstructure:"llm_parallelism"`
	FetchTimeout             string `mapstructure:"fetch_timeout"`
	ExtractTimeout           string `mapstructure:"extract_timeout"`
	LLMTimeout               string `mapstructure:"llm_timeout"`
	RequestDeadline          string `mapstructure:"request_deadline"`
	MaxArticlesHard          int    `mapstructure:"max_articles_hard"`
	BodySoftCap              int    `mapstructure:"body_soft_cap"`
	BodyHardCap              int    `mapstructure:"body_hard_cap"`
	IdempotencyWindow        string `mapstructure:"idempotency_window"`
	RecommendationWindowDays int    `mapstructure:"recommendation_window_days"`
}

// HTTP holds shared HTTP client configuration
type HTTP struct {
	HostRequestInterval string `mapstructure:"host_request_interval"`
	MaxRedirects        int    `mapstructure:"max_redirects"`
	AcceptLanguage      string `mapstructure:"accept_language"`
}

// Database holds history store configuration
type Database struct {
	Path    string `mapstructure:"path"`
	Timeout string `mapstructure:"timeout"`
}

// Email holds email configuration
type Email struct {
	SMTP        SMTPConfig `mapstructure:"smtp"`
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// FeedSourceConfig is one feed source entry in the config file
type FeedSourceConfig struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	RSSURL   string `mapstructure:"rss_url"`
}

// Feeds holds feed registry configuration
type Feeds struct {
	Sources         []FeedSourceConfig `mapstructure:"sources"`
	Disabled        []string           `mapstructure:"disabled"`
	ReplaceDefaults bool               `mapstructure:"replace_defaults"`
	MaxItemsPerFeed int                `mapstructure:"max_items_per_feed"`
}

// Fetch holds article extraction configuration
type Fetch struct {
	BodySelectors []string `mapstructure:"body_selectors"`
	JunkSelectors []string `mapstructure:"junk_selectors"`
}

// Keywords holds query sanitation configuration
type Keywords struct {
	Denylist []string `mapstructure:"denylist"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsly")
		viper.SetConfigType("yaml")
	}

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvironmentVariables()

	// Enable automatic environment variable reading
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into struct
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Apply post-processing
	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".newsly")

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("llm.max_tokens", 1000)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.openai.base_url", "")
	viper.SetDefault("llm.gemini.model", "gemini-1.5-flash-latest")

	// Pipeline defaults
	viper.SetDefault("pipeline.feed_parallelism", 8)
	viper.SetDefault("pipeline.article_parallelism", 6)
	viper.SetDefault("pipeline.llm_parallelism", 3)
	viper.SetDefault("pipeline.fetch_timeout", "15s")
	viper.SetDefault("pipeline.extract_timeout", "20s")
	viper.SetDefault("pipeline.llm_timeout", "60s")
	viper.SetDefault("pipeline.request_deadline", "300s")
	viper.SetDefault("pipeline.max_articles_hard", 50)
	viper.SetDefault("pipeline.body_soft_cap", 4000)
	viper.SetDefault("pipeline.body_hard_cap", 6000)
	viper.SetDefault("pipeline.idempotency_window", "60s")
	viper.SetDefault("pipeline.recommendation_window_days", 30)

	// HTTP defaults
	viper.SetDefault("http.host_request_interval", "500ms")
	viper.SetDefault("http.max_redirects", 5)
	viper.SetDefault("http.accept_language", "ko-KR,ko;q=0.9,en;q=0.8")

	// Database defaults
	viper.SetDefault("database.path", "newsly.db")
	viper.SetDefault("database.timeout", "5s")

	// Email defaults
	viper.SetDefault("email.smtp.port", 587)
	viper.SetDefault("email.smtp.tls_enabled", true)
	viper.SetDefault("email.from_name", "Newsly")

	// Feeds defaults
	viper.SetDefault("feeds.replace_defaults", false)
	viper.SetDefault("feeds.max_items_per_feed", 50)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// LLM provider keys - support multiple formats
	bindEnvKeys("llm.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys("llm.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("llm.provider", []string{
		"LLM_PROVIDER",
	})

	bindEnvKeys("llm.model", []string{
		"LLM_MODEL",
	})

	// Pipeline budgets
	bindEnvKeys("pipeline.feed_parallelism", []string{"FEED_PARALLELISM"})
	bindEnvKeys("pipeline.article_parallelism", []string{"ARTICLE_PARALLELISM"})
	bindEnvKeys("pipeline.llm_parallelism", []string{"LLM_PARALLELISM"})
	bindEnvKeys("pipeline.fetch_timeout", []string{"FETCH_TIMEOUT"})
	bindEnvKeys("pipeline.extract_timeout", []string{"EXTRACT_TIMEOUT"})
	bindEnvKeys("pipeline.llm_timeout", []string{"LLM_TIMEOUT"})
	bindEnvKeys("pipeline.request_deadline", []string{"REQUEST_DEADLINE"})
	bindEnvKeys("pipeline.max_articles_hard", []string{"MAX_ARTICLES_HARD"})
	bindEnvKeys("pipeline.body_soft_cap", []string{"BODY_SOFT_CAP"})
	bindEnvKeys("pipeline.body_hard_cap", []string{"BODY_HARD_CAP"})
	bindEnvKeys("pipeline.idempotency_window", []string{"IDEMPOTENCY_WINDOW"})
	bindEnvKeys("pipeline.recommendation_window_days", []string{"RECOMMENDATION_WINDOW_DAYS"})

	// HTTP client
	bindEnvKeys("http.host_request_interval", []string{"HOST_REQUEST_INTERVAL"})

	// Database
	bindEnvKeys("database.path", []string{
		"DATABASE_PATH",
		"NEWSLY_DB_PATH",
	})

	// Email SMTP
	bindEnvKeys("email.smtp.host", []string{
		"SMTP_HOST",
		"EMAIL_SMTP_HOST",
	})

	bindEnvKeys("email.smtp.port", []string{
		"SMTP_PORT",
	})

	bindEnvKeys("email.smtp.username", []string{
		"SMTP_USERNAME",
		"EMAIL_USERNAME",
	})

	bindEnvKeys("email.smtp.password", []string{
		"SMTP_PASSWORD",
		"EMAIL_PASSWORD",
	})

	bindEnvKeys("email.from_address", []string{
		"EMAIL_FROM",
		"SMTP_FROM",
	})

	// General settings
	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSLY_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})

	bindEnvKeys("logging.pretty", []string{
		"LOG_PRETTY",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	// Expand paths
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Database.Path != "" {
		config.Database.Path = expandPath(config.Database.Path)
	}

	// Validate durations
	durations := map[string]string{
		"pipeline.fetch_timeout":      config.Pipeline.FetchTimeout,
		"pipeline.extract_timeout":    config.Pipeline.ExtractTimeout,
		"pipeline.llm_timeout":        config.Pipeline.LLMTimeout,
		"pipeline.request_deadline":   config.Pipeline.RequestDeadline,
		"pipeline.idempotency_window": config.Pipeline.IdempotencyWindow,
		"http.host_request_interval":  config.HTTP.HostRequestInterval,
		"database.timeout":            config.Database.Timeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	switch config.LLM.Provider {
	case "openai", "gemini":
		// API key presence is checked when the client is constructed, so
		// commands that never call the LLM still run without a key.
	default:
		errors = append(errors, fmt.Sprintf("Unknown LLM provider: %s. Supported: openai, gemini", config.LLM.Provider))
	}

	if config.Pipeline.FeedParallelism < 1 {
		errors = append(errors, "pipeline.feed_parallelism must be at least 1")
	}
	if config.Pipeline.ArticleParallelism < 1 {
		errors = append(errors, "pipeline.article_parallelism must be at least 1")
	}
	if config.Pipeline.LLMParallelism < 1 {
		errors = append(errors, "pipeline.llm_parallelism must be at least 1")
	}
	if config.Pipeline.MaxArticlesHard < 1 {
		errors = append(errors, "pipeline.max_articles_hard must be at least 1")
	}
	if config.Pipeline.BodyHardCap < config.Pipeline.BodySoftCap {
		errors = append(errors, "pipeline.body_hard_cap must not be below pipeline.body_soft_cap")
	}

	// Validate email SMTP configuration if any email settings are provided
	if config.Email.SMTP.Host != "" || config.Email.SMTP.Username != "" {
		if config.Email.SMTP.Host == "" {
			errors = append(errors, "SMTP host is required when email is configured")
		}
		if config.Email.SMTP.Username == "" {
			errors = append(errors, "SMTP username is required when email is configured")
		}
		if config.Email.SMTP.Password == "" {
			errors = append(errors, "SMTP password is required when email is configured")
		}
	}

	for _, src := range config.Feeds.Sources {
		if src.RSSURL == "" {
			errors = append(errors, fmt.Sprintf("feed source %q is missing rss_url", src.Name))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration helpers; values are validated in postProcessConfig, so parse
// failures only happen for empty strings and fall back to the default.

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// FetchTimeoutDuration returns the per-feed fetch budget.
func (p Pipeline) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(p.FetchTimeout, 15*time.Second)
}

// ExtractTimeoutDuration returns the per-article extraction budget.
func (p Pipeline) ExtractTimeoutDuration() time.Duration {
	return parseDurationOr(p.ExtractTimeout, 20*time.Second)
}

// LLMTimeoutDuration returns the per-summary LLM budget.
func (p Pipeline) LLMTimeoutDuration() time.Duration {
	return parseDurationOr(p.LLMTimeout, 60*time.Second)
}

// RequestDeadlineDuration returns the end-to-end request budget.
func (p Pipeline) RequestDeadlineDuration() time.Duration {
	return parseDurationOr(p.RequestDeadline, 300*time.Second)
}

// IdempotencyWindowDuration returns the request-replay cache lifetime.
func (p Pipeline) IdempotencyWindowDuration() time.Duration {
	return parseDurationOr(p.IdempotencyWindow, 60*time.Second)
}

// HostRequestIntervalDuration returns the per-host politeness interval.
func (h HTTP) HostRequestIntervalDuration() time.Duration {
	return parseDurationOr(h.HostRequestInterval, 500*time.Millisecond)
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetLLM() LLM           { return Get().LLM }
func GetPipeline() Pipeline { return Get().Pipeline }
func GetHTTP() HTTP         { return Get().HTTP }
func GetDatabase() Database { return Get().Database }
func GetEmail() Email       { return Get().Email }
func GetFeeds() Feeds       { return Get().Feeds }
func GetLogging() Logging   { return Get().Logging }

// Specific convenience getters for frequently accessed values
func GetOpenAIAPIKey() string { return Get().LLM.OpenAI.APIKey }
func GetGeminiAPIKey() string { return Get().LLM.Gemini.APIKey }
func GetLLMModel() string     { return Get().LLM.Model }
func GetDatabasePath() string { return Get().Database.Path }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
