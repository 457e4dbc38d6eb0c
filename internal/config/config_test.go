package config

import (
	"strings"
	"testing"

	"invoicecontrol/internal/extraction"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"INVOICE_DIR", "PO_REGISTER_PATH", "OUTPUT_PATH", "HISTORY_PATH", "BATCH_WORKERS",
		"AMOUNT_POLICY", "PREVIEW_LENGTH", "ASSIST_ENABLED", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"OPENAI_MODEL", "CORS_ORIGINS", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HistoryPath != "data/invoice_history.csv" {
		t.Errorf("HistoryPath = %q", cfg.HistoryPath)
	}
	if cfg.BatchWorkers != 1 || cfg.PreviewLength != 300 || cfg.AssistEnabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ExtractionConfig().AmountPolicy != extraction.AmountPolicyFirstLabeled {
		t.Errorf("AmountPolicy = %q", cfg.ExtractionConfig().AmountPolicy)
	}
	if cfg.CORSOrigins != nil {
		t.Errorf("CORSOrigins = %v, want none", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "4")
	t.Setenv("AMOUNT_POLICY", "largest")
	t.Setenv("PREVIEW_LENGTH", "120")
	t.Setenv("ASSIST_ENABLED", "true")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OPENAI_MODEL", "llama3.2")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://ops.example.com ,")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BatchWorkers != 4 {
		t.Errorf("BatchWorkers = %d, want 4", cfg.BatchWorkers)
	}
	ext := cfg.ExtractionConfig()
	if ext.AmountPolicy != extraction.AmountPolicyLargest || ext.PreviewLength != 120 {
		t.Errorf("ExtractionConfig() = %+v", ext)
	}
	completion := cfg.CompletionConfig()
	if completion.BaseURL != "http://localhost:11434/v1" || completion.Model != "llama3.2" {
		t.Errorf("CompletionConfig() = %+v", completion)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://ops.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.GetLoggerConfig().Format != "json" {
		t.Errorf("GetLoggerConfig().Format = %q", cfg.GetLoggerConfig().Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "non-numeric workers", key: "BATCH_WORKERS", value: "many", wantErr: "BATCH_WORKERS"},
		{name: "zero workers", key: "BATCH_WORKERS", value: "0", wantErr: "BATCH_WORKERS"},
		{name: "negative preview", key: "PREVIEW_LENGTH", value: "-1", wantErr: "PREVIEW_LENGTH"},
		{name: "unknown policy", key: "AMOUNT_POLICY", value: "smallest", wantErr: "AMOUNT_POLICY"},
		{name: "bad bool", key: "ASSIST_ENABLED", value: "maybe", wantErr: "ASSIST_ENABLED"},
		{name: "assist without endpoint", key: "ASSIST_ENABLED", value: "1", wantErr: "OPENAI_API_KEY"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml", wantErr: "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("OPENAI_BASE_URL", "")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() error = nil, want error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
