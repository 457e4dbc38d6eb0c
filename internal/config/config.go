package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/logger"
)

type Config struct {
	// Batch Configuration
	InvoiceDir    string
	RegisterPath  string
	OutputPath    string
	HistoryPath   string
	BatchWorkers  int
	AmountPolicy  string
	PreviewLength int

	// OpenAI Configuration (optional assisted extraction)
	AssistEnabled bool
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Google Sheets Configuration (optional result publishing)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// HTTP Configuration
	HTTPAddr    string
	CORSOrigins []string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	workers, err := getEnvInt("BATCH_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	preview, err := getEnvInt("PREVIEW_LENGTH", extraction.DefaultConfig().PreviewLength)
	if err != nil {
		return nil, err
	}
	assist, err := getEnvBool("ASSIST_ENABLED", false)
	if err != nil {
		return nil, err
	}

	config := &Config{
		InvoiceDir:           getEnv("INVOICE_DIR", "invoices"),
		RegisterPath:         getEnv("PO_REGISTER_PATH", "PO_Register.xlsx"),
		OutputPath:           getEnv("OUTPUT_PATH", "Invoice_Control_Output.xlsx"),
		HistoryPath:          getEnv("HISTORY_PATH", "data/invoice_history.csv"),
		BatchWorkers:         workers,
		AmountPolicy:         getEnv("AMOUNT_POLICY", string(extraction.AmountPolicyFirstLabeled)),
		PreviewLength:        preview,
		AssistEnabled:        assist,
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", extraction.DefaultCompletionConfig().Model),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Invoice_Control"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	if c.PreviewLength < 0 {
		return fmt.Errorf("PREVIEW_LENGTH must not be negative, got %d", c.PreviewLength)
	}
	if _, err := extraction.ParseAmountPolicy(c.AmountPolicy); err != nil {
		return fmt.Errorf("AMOUNT_POLICY: %w", err)
	}
	if c.AssistEnabled && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required when ASSIST_ENABLED is set")
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// ExtractionConfig returns the heuristic extractor settings.
func (c *Config) ExtractionConfig() extraction.Config {
	cfg := extraction.DefaultConfig()
	cfg.PreviewLength = c.PreviewLength
	if policy, err := extraction.ParseAmountPolicy(c.AmountPolicy); err == nil {
		cfg.AmountPolicy = policy
	}
	return cfg
}

// CompletionConfig returns the model settings used by assisted extraction.
func (c *Config) CompletionConfig() extraction.CompletionConfig {
	cfg := extraction.DefaultCompletionConfig()
	cfg.APIKey = c.OpenAIAPIKey
	cfg.BaseURL = c.OpenAIBaseURL
	if c.OpenAIModel != "" {
		cfg.Model = c.OpenAIModel
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
