package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"CRB_ENVIRONMENT"`
	ServiceName string `mapstructure:"CRB_SERVICE_NAME"`
	LogFormat   string `mapstructure:"CRB_LOG_FORMAT"` // text or json
	LogLevel    string `mapstructure:"CRB_LOG_LEVEL"`  // debug, info, warn, error

	DbHost           string `mapstructure:"CRB_DB_HOST"`
	DbPort           int16  `mapstructure:"CRB_DB_PORT"`
	DbSSLMode        string `mapstructure:"CRB_DB_SSL"`
	DbUser           string `mapstructure:"CRB_DB_USER"`
	DbPassword       string `mapstructure:"CRB_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"CRB_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"CRB_DB_MAX_CONNECTIONS"`

	OtlpEndpoint string `mapstructure:"CRB_OTLP_ENDPOINT"`

	// Object storage (local filesystem path contract)
	ObjectsRoot string `mapstructure:"CRB_OBJECTS_ROOT"`

	// OCR configuration
	OCRBackend             string  `mapstructure:"CRB_OCR_BACKEND"` // auto, textract, tesseract
	TextractEnabled        bool    `mapstructure:"CRB_TEXTRACT_ENABLED"`
	TextractRegion         string  `mapstructure:"CRB_TEXTRACT_REGION"`
	TesseractPath          string  `mapstructure:"CRB_TESSERACT_PATH"`
	TesseractMinConfidence float64 `mapstructure:"CRB_TESSERACT_MIN_CONFIDENCE"`
	OCRCallTimeoutSeconds  int     `mapstructure:"CRB_OCR_CALL_TIMEOUT_S"`

	// Anthropic recognizer configuration
	AnthropicAPIKey       string `mapstructure:"CRB_ANTHROPIC_API_KEY"`
	AnthropicModel        string `mapstructure:"CRB_ANTHROPIC_MODEL"`
	AnthropicBaseURL      string `mapstructure:"CRB_ANTHROPIC_BASE_URL"`
	AnthropicMaxTokens    int    `mapstructure:"CRB_ANTHROPIC_MAX_TOKENS"`
	AnthropicInputPer1K   string `mapstructure:"CRB_ANTHROPIC_INPUT_COST_PER_1K"`
	AnthropicOutputPer1K  string `mapstructure:"CRB_ANTHROPIC_OUTPUT_COST_PER_1K"`
	LLMCallTimeoutSeconds int    `mapstructure:"CRB_LLM_CALL_TIMEOUT_S"`

	// Categorization thresholds
	CategorizationReviewThreshold     float64 `mapstructure:"CRB_CATEGORIZATION_REVIEW_THRESHOLD"`
	CategorizationCacheWriteThreshold float64 `mapstructure:"CRB_CATEGORIZATION_CACHE_WRITE_THRESHOLD"`
	CapitalizationThreshold           string  `mapstructure:"CRB_CAPITALIZATION_THRESHOLD"`

	// Web lookup (off by default; vendor sites block automated access)
	WebLookupEnabled        bool `mapstructure:"CRB_WEB_LOOKUP_ENABLED"`
	WebLookupTimeoutSeconds int  `mapstructure:"CRB_WEB_LOOKUP_TIMEOUT_S"`
}

// DefaultConfig generates a config with sane defaults. ConfigFromEnvironment
// registers these values as the viper defaults.
func DefaultConfig() Config {
	return Config{
		Environment: "local",
		ServiceName: "curlys-books",
		LogFormat:   "text",
		LogLevel:    "info",

		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "curlys_admin",
		DbPassword:       "curlys_admin",
		DbDatabaseName:   "curlys_books",
		DbMaxConnections: 100,

		OtlpEndpoint: "localhost:4317",

		ObjectsRoot: "/srv/curlys-books/objects",

		OCRBackend:             "auto",
		TextractEnabled:        true,
		TextractRegion:         "us-east-1",
		TesseractPath:          "",
		TesseractMinConfidence: 0.96,
		OCRCallTimeoutSeconds:  60,

		AnthropicAPIKey:       "",
		AnthropicModel:        "claude-sonnet-4-5",
		AnthropicBaseURL:      "https://api.anthropic.com/v1",
		AnthropicMaxTokens:    1024,
		AnthropicInputPer1K:   "0.003",
		AnthropicOutputPer1K:  "0.015",
		LLMCallTimeoutSeconds: 30,

		CategorizationReviewThreshold:     0.80,
		CategorizationCacheWriteThreshold: 0.80,
		CapitalizationThreshold:           "2500.00",

		WebLookupEnabled:        false,
		WebLookupTimeoutSeconds: 5,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("CRB_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		// Load configuration
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from environment variables.
// The variable names are the mapstructure tags on Config.
func ConfigFromEnvironment() (config Config, err error) {
	// Set defaults
	config = DefaultConfig()
	viper.SetDefault("CRB_ENVIRONMENT", config.Environment)
	viper.SetDefault("CRB_SERVICE_NAME", config.ServiceName)
	viper.SetDefault("CRB_LOG_LEVEL", config.LogLevel)
	viper.SetDefault("CRB_LOG_FORMAT", config.LogFormat)
	viper.SetDefault("CRB_DB_HOST", config.DbHost)
	viper.SetDefault("CRB_DB_PORT", config.DbPort)
	viper.SetDefault("CRB_DB_SSL", config.DbSSLMode)
	viper.SetDefault("CRB_DB_USER", config.DbUser)
	viper.SetDefault("CRB_DB_PASSWORD", config.DbPassword)
	viper.SetDefault("CRB_DB_DATABASE", config.DbDatabaseName)
	viper.SetDefault("CRB_DB_MAX_CONNECTIONS", config.DbMaxConnections)
	viper.SetDefault("CRB_OTLP_ENDPOINT", config.OtlpEndpoint)
	viper.SetDefault("CRB_OBJECTS_ROOT", config.ObjectsRoot)
	viper.SetDefault("CRB_OCR_BACKEND", config.OCRBackend)
	viper.SetDefault("CRB_TEXTRACT_ENABLED", config.TextractEnabled)
	viper.SetDefault("CRB_TEXTRACT_REGION", config.TextractRegion)
	viper.SetDefault("CRB_TESSERACT_PATH", config.TesseractPath)
	viper.SetDefault("CRB_TESSERACT_MIN_CONFIDENCE", config.TesseractMinConfidence)
	viper.SetDefault("CRB_OCR_CALL_TIMEOUT_S", config.OCRCallTimeoutSeconds)
	viper.SetDefault("CRB_ANTHROPIC_API_KEY", config.AnthropicAPIKey)
	viper.SetDefault("CRB_ANTHROPIC_MODEL", config.AnthropicModel)
	viper.SetDefault("CRB_ANTHROPIC_BASE_URL", config.AnthropicBaseURL)
	viper.SetDefault("CRB_ANTHROPIC_MAX_TOKENS", config.AnthropicMaxTokens)
	viper.SetDefault("CRB_ANTHROPIC_INPUT_COST_PER_1K", config.AnthropicInputPer1K)
	viper.SetDefault("CRB_ANTHROPIC_OUTPUT_COST_PER_1K", config.AnthropicOutputPer1K)
	viper.SetDefault("CRB_LLM_CALL_TIMEOUT_S", config.LLMCallTimeoutSeconds)
	viper.SetDefault("CRB_CATEGORIZATION_REVIEW_THRESHOLD", config.CategorizationReviewThreshold)
	viper.SetDefault("CRB_CATEGORIZATION_CACHE_WRITE_THRESHOLD", config.CategorizationCacheWriteThreshold)
	viper.SetDefault("CRB_CAPITALIZATION_THRESHOLD", config.CapitalizationThreshold)
	viper.SetDefault("CRB_WEB_LOOKUP_ENABLED", config.WebLookupEnabled)
	viper.SetDefault("CRB_WEB_LOOKUP_TIMEOUT_S", config.WebLookupTimeoutSeconds)

	// Override config values with environment variables
	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

// ConfigFromFile reads the specified env-format configuration file and initializes
// a Config from it. Values provided by environment variables will override ones found in
// the file. The variable names are the mapstructure tags on Config.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // default fallback
	}
}

// GetOCRConfig converts config values to the OCR factory configuration struct.
func (c Config) GetOCRConfig() OCRConfig {
	return OCRConfig{
		Backend:                c.OCRBackend,
		TextractEnabled:        c.TextractEnabled,
		TextractRegion:         c.TextractRegion,
		TesseractPath:          c.TesseractPath,
		TesseractMinConfidence: c.TesseractMinConfidence,
		CallTimeout:            time.Duration(c.OCRCallTimeoutSeconds) * time.Second,
	}
}

// OCRConfig holds OCR provider configuration
type OCRConfig struct {
	Backend                string // auto, textract, tesseract; auto forces Textract for images
	TextractEnabled        bool
	TextractRegion         string
	TesseractPath          string // path to tesseract binary, auto-detected if empty
	TesseractMinConfidence float64
	CallTimeout            time.Duration
}

// GetRecognizerConfig converts config values to the item recognizer configuration struct.
func (c Config) GetRecognizerConfig() RecognizerConfig {
	inputCost, err := decimal.NewFromString(c.AnthropicInputPer1K)
	if err != nil {
		inputCost = decimal.RequireFromString("0.003")
	}
	outputCost, err := decimal.NewFromString(c.AnthropicOutputPer1K)
	if err != nil {
		outputCost = decimal.RequireFromString("0.015")
	}

	return RecognizerConfig{
		APIKey:              c.AnthropicAPIKey,
		Model:               c.AnthropicModel,
		BaseURL:             c.AnthropicBaseURL,
		MaxTokens:           c.AnthropicMaxTokens,
		InputCostPer1K:      inputCost,
		OutputCostPer1K:     outputCost,
		CallTimeout:         time.Duration(c.LLMCallTimeoutSeconds) * time.Second,
		ReviewThreshold:     c.CategorizationReviewThreshold,
		CacheWriteThreshold: c.CategorizationCacheWriteThreshold,
	}
}

// RecognizerConfig holds Anthropic client and categorization threshold configuration
type RecognizerConfig struct {
	APIKey              string
	Model               string // e.g., "claude-sonnet-4-5"
	BaseURL             string
	MaxTokens           int
	InputCostPer1K      decimal.Decimal
	OutputCostPer1K     decimal.Decimal
	CallTimeout         time.Duration
	ReviewThreshold     float64 // Stage-1 confidence below this flags the line
	CacheWriteThreshold float64 // AI results below this are not written to cache
}

// GetCapitalizationThreshold parses the equipment capitalization threshold.
func (c Config) GetCapitalizationThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.CapitalizationThreshold)
	if err != nil {
		return decimal.RequireFromString("2500.00")
	}
	return d
}
