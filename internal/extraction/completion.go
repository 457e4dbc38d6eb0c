package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"invoicecontrol/pkg/models"
)

// CompletionConfig configures the model-assisted pass
type CompletionConfig struct {
	APIKey       string        // Bearer token, may be empty for a local Ollama endpoint
	BaseURL      string        // OpenAI compatible endpoint, e.g. http://localhost:11434/v1
	Model        string        // gpt-4o-mini, llama3.2, ...
	Temperature  float32       // Sampling temperature
	MaxRetries   int           // Attempts per document
	Timeout      time.Duration // Per request timeout
	MaxTextChars int           // Characters of document text sent to the model
}

// DefaultCompletionConfig returns conservative settings
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		Model:        "gpt-4o-mini",
		Temperature:  0,
		MaxRetries:   2,
		Timeout:      60 * time.Second,
		MaxTextChars: 8000,
	}
}

// Completer asks a language model for invoice fields
type Completer interface {
	Complete(ctx context.Context, text string) (*CompletionResponse, error)
}

// CompletionResponse is the JSON object the model is asked to return
type CompletionResponse struct {
	PONumber      string `json:"po_number,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	InvoiceAmount string `json:"invoice_amount,omitempty"`
}

// OpenAICompleter implements Completer against any OpenAI compatible API
type OpenAICompleter struct {
	client *openai.Client
	config CompletionConfig
	log    zerolog.Logger
}

// NewOpenAICompleter creates a completer from config
func NewOpenAICompleter(config CompletionConfig, log zerolog.Logger) (*OpenAICompleter, error) {
	const op = "NewOpenAICompleter"

	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("%s: either an API key or a base URL is required", op)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%s: model is required", op)
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.MaxTextChars <= 0 {
		config.MaxTextChars = DefaultCompletionConfig().MaxTextChars
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		log:    log,
	}, nil
}

// Complete sends the document text to the model and parses its JSON answer
func (c *OpenAICompleter) Complete(ctx context.Context, text string) (*CompletionResponse, error) {
	const op = "Complete"

	prompt := buildCompletionPrompt(Preview(text, c.config.MaxTextChars))

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.createCompletion(ctx, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("Completion request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices from model")
			continue
		}

		content := resp.Choices[0].Message.Content
		c.log.Debug().
			Str("response", content).
			Msg("Received completion response")

		parsed, err := parseCompletionResponse(content)
		if err != nil {
			lastErr = err
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Failed to parse completion response, retrying")
			continue
		}
		return parsed, nil
	}

	return nil, WrapExtractionError(op, ErrCompletionFailed, fmt.Sprintf("%d attempt(s), last error: %v", c.config.MaxRetries, lastErr))
}

func (c *OpenAICompleter) createCompletion(ctx context.Context, prompt string) (openai.ChatCompletionResponse, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: completionSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: 300,
	})
}

const completionSystemPrompt = `You read supplier invoices and return their identifiers as JSON.

Return ONLY a JSON object with exactly these keys:
  "po_number": the purchase order number (PO, Purchase Order, Bon de commande, BC), or null
  "invoice_number": the invoice number (Invoice No, Facture N°, INV-...), never the PO number, or null
  "invoice_amount": the total amount to pay including taxes (Total TTC, Net à payer, Amount Due) as a plain number string like "3748.50", or null

Use null when a value is not printed on the invoice. Never guess.`

func buildCompletionPrompt(text string) string {
	var prompt strings.Builder
	prompt.WriteString("Invoice text:\n\n")
	prompt.WriteString(text)
	prompt.WriteString("\n\nReturn the JSON object now.")
	return prompt.String()
}

// parseCompletionResponse accepts strings, numbers or null for every key and
// tolerates prose around the JSON object.
func parseCompletionResponse(content string) (*CompletionResponse, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON response: %w", err)
	}

	return &CompletionResponse{
		PONumber:      getString(raw, "po_number"),
		InvoiceNumber: getString(raw, "invoice_number"),
		InvoiceAmount: getString(raw, "invoice_amount"),
	}, nil
}

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "null") {
			return ""
		}
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// AssistedExtractor runs the rule-based extractor first and asks a model for
// the fields the rules left empty. Model failures never fail the document.
type AssistedExtractor struct {
	base      *Extractor
	completer Completer
	log       zerolog.Logger
}

// NewAssistedExtractor wraps base with a model-assisted pass
func NewAssistedExtractor(base *Extractor, completer Completer, log zerolog.Logger) *AssistedExtractor {
	return &AssistedExtractor{
		base:      base,
		completer: completer,
		log:       log,
	}
}

// Extract implements services.FieldExtractor.
func (a *AssistedExtractor) Extract(ctx context.Context, doc models.InvoiceDocument) models.ExtractedFields {
	fields, text := a.base.Analyze(ctx, doc)
	if text == "" {
		return fields
	}

	missing := fields.Missing()
	if len(missing) == 0 {
		return fields
	}

	a.log.Info().
		Str("file", doc.FileName).
		Strs("missing_fields", missing).
		Msg("Asking model for missing fields")

	resp, err := a.completer.Complete(ctx, text)
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("file", doc.FileName).
			Msg("Model-assisted extraction failed, keeping rule-based fields")
		return fields
	}

	return mergeCompletion(fields, resp, a.base.config.AmountPolicy, a.log)
}

// mergeCompletion fills only the fields the rules did not find. Model
// answers go through the same normalization and guardrails as rule matches.
func mergeCompletion(fields models.ExtractedFields, resp *CompletionResponse, policy AmountPolicy, log zerolog.Logger) models.ExtractedFields {
	if fields.PONumber == "" && hasDigit(resp.PONumber) {
		fields.PONumber = trimCandidate(resp.PONumber)
	}

	if fields.InvoiceNumber == "" {
		canonical := NormalizeIdentifier(resp.InvoiceNumber)
		if hasDigit(canonical) && canonical != NormalizeIdentifier(fields.PONumber) && !looksLikePO(canonical) {
			fields.InvoiceNumber = canonical
		}
	}

	if amount, ok := ParseAmount(resp.InvoiceAmount); ok {
		fields.InvoiceAmount = selectAmount(fields.InvoiceAmount, amount, policy, log)
	}

	return fields
}
