package categorization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/shopspring/decimal"
)

// LLMClient is the recognizer's view of the model API.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (*CompletionResult, error)
}

// CompletionResult carries the model text plus token usage for cost accounting.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

type anthropicClient struct {
	config     config.RecognizerConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// Anthropic Messages API structures
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicClient(cfg config.RecognizerConfig, logger *slog.Logger) LLMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &anthropicClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.CallTimeout,
		},
		logger: logger,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, prompt string) (*CompletionResult, error) {
	reqBody := messagesRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: 0.0, // deterministic for consistency
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make messages request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("anthropic api error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("anthropic api error (%d)", resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, fmt.Errorf("failed to decode messages response: %w", err)
	}

	text := ""
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	c.logger.Debug("anthropic completion",
		"model", msgResp.Model,
		"input_tokens", msgResp.Usage.InputTokens,
		"output_tokens", msgResp.Usage.OutputTokens,
		"stop_reason", msgResp.StopReason)

	return &CompletionResult{
		Text:         text,
		InputTokens:  msgResp.Usage.InputTokens,
		OutputTokens: msgResp.Usage.OutputTokens,
	}, nil
}

// CallCost prices a completion from the configured per-1K token rates.
func CallCost(cfg config.RecognizerConfig, inputTokens, outputTokens int) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)
	inputCost := decimal.NewFromInt(int64(inputTokens)).Div(thousand).Mul(cfg.InputCostPer1K)
	outputCost := decimal.NewFromInt(int64(outputTokens)).Div(thousand).Mul(cfg.OutputCostPer1K)
	return inputCost.Add(outputCost).Round(6)
}
