package parsers

import (
	"log/slog"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
)

// Registry maps identified vendor keys to their parsers. The generic parser
// handles everything the vendor identifier could not name.
type Registry struct {
	byKey   map[string]Parser
	generic Parser
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	parsers := []Parser{
		&GrosnorParser{},
		&CostcoParser{},
		&GFSParser{},
		&PepsiParser{},
		&SuperstoreParser{},
		&PharmasaveParser{},
		&WalmartParser{},
		&CanadianTireParser{},
	}

	byKey := make(map[string]Parser, len(parsers))
	for _, p := range parsers {
		byKey[p.Key()] = p
	}

	logger.Info("parser registry initialized", "parser_count", len(parsers))

	return &Registry{
		byKey:   byKey,
		generic: &GenericParser{},
		logger:  logger,
	}
}

// ForVendor returns the parser for an identified vendor, or the generic
// fallback when the identifier found nothing. When the selected parser's own
// format check disagrees with the identifier, it logs the mismatch but still
// parses — detection authority lives with the identifier.
func (r *Registry) ForVendor(match *vendors.Match, text string) Parser {
	if match == nil {
		return r.generic
	}

	parser, ok := r.byKey[match.Key]
	if !ok {
		r.logger.Warn("no parser registered for vendor", "vendor", match.Key)
		return r.generic
	}

	if !parser.DetectFormat(text) {
		r.logger.Warn("parser format check disagrees with vendor identifier",
			"vendor", match.Key,
			"score", match.Score)
	}

	return parser
}

// Generic returns the fallback parser.
func (r *Registry) Generic() Parser {
	return r.generic
}
