package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/config"
)

// NewLogger creates the local logger configured by CRB_LOG_FORMAT and
// CRB_LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.GetSlogLevel(),
	}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
