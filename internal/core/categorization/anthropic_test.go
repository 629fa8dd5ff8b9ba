package categorization

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/shopspring/decimal"
)

func TestAnthropicClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path expected /messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "claude-sonnet-4-5" {
			t.Errorf("model expected claude-sonnet-4-5, got %s", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message")
		}

		resp := messagesResponse{
			ID:         "msg_123",
			Model:      req.Model,
			StopReason: "end_turn",
			Content: []contentBlock{
				{Type: "text", Text: `{"category": "beverage_soda", "confidence": 0.97}`},
			},
			Usage: usage{InputTokens: 412, OutputTokens: 38},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClient(config.RecognizerConfig{
		APIKey:      "test-key",
		Model:       "claude-sonnet-4-5",
		BaseURL:     server.URL,
		MaxTokens:   1024,
		CallTimeout: 5 * time.Second,
	}, slog.Default())

	result, err := client.Complete(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.InputTokens != 412 || result.OutputTokens != 38 {
		t.Fatalf("usage mismatch: %+v", result)
	}
	if result.Text == "" {
		t.Fatal("expected text content")
	}
}

func TestAnthropicClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "rate limited"},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(config.RecognizerConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		CallTimeout: 5 * time.Second,
	}, slog.Default())

	if _, err := client.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestCallCost(t *testing.T) {
	cfg := config.RecognizerConfig{
		InputCostPer1K:  decimal.RequireFromString("0.003"),
		OutputCostPer1K: decimal.RequireFromString("0.015"),
	}

	// 1000 in + 1000 out = 0.003 + 0.015 = 0.018
	if got := CallCost(cfg, 1000, 1000); !got.Equal(decimal.RequireFromString("0.018")) {
		t.Fatalf("expected 0.018, got %s", got)
	}
	if got := CallCost(cfg, 0, 0); !got.IsZero() {
		t.Fatalf("expected zero cost, got %s", got)
	}
	// 500 in + 60 out = 0.0015 + 0.0009 = 0.0024
	if got := CallCost(cfg, 500, 60); !got.Equal(decimal.RequireFromString("0.0024")) {
		t.Fatalf("expected 0.0024, got %s", got)
	}
}
