// Package suggest asks an external language model for field-mapping
// suggestions: which known field each detected placeholder probably means.
// It is an enrichment step only: every error degrades to no suggestions,
// and nothing downstream requires it for correctness.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("suggestion service is not configured")

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Suggestion maps one placeholder to the field the model believes it
// stands for.
type Suggestion struct {
	Placeholder string  `json:"placeholder"`
	Field       string  `json:"field"`
	Confidence  float64 `json:"confidence"`
}

type Service struct {
	llm    llms.Model
	logger *zap.Logger
}

func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion client: %w", err)
	}

	return &Service{llm: llm, logger: logger}, nil
}

// MapPlaceholders suggests a known field for each placeholder. Returns an
// empty slice on any model or parse failure.
func (s *Service) MapPlaceholders(ctx context.Context, placeholders, knownFields []string) []Suggestion {
	if len(placeholders) == 0 || len(knownFields) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(`Match each template placeholder to the most likely field name.
Placeholders: %s
Known fields: %s
Answer with a JSON array of {"placeholder": string, "field": string, "confidence": number between 0 and 1}.
Omit placeholders with no plausible match. Answer with the JSON only.`,
		strings.Join(placeholders, ", "),
		strings.Join(knownFields, ", "))

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		s.logger.Warn("placeholder suggestion call failed", zap.Error(err))
		return nil
	}

	suggestions, err := parseSuggestions(completion, knownFields)
	if err != nil {
		s.logger.Warn("unparseable suggestion response", zap.Error(err))
		return nil
	}
	return suggestions
}

func parseSuggestions(completion string, knownFields []string) ([]Suggestion, error) {
	// Models wrap JSON in prose more often than not; cut to the array.
	start := strings.Index(completion, "[")
	end := strings.LastIndex(completion, "]")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON array in response")
	}

	var raw []Suggestion
	if err := json.Unmarshal([]byte(completion[start:end+1]), &raw); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(knownFields))
	for _, f := range knownFields {
		known[f] = true
	}

	// Keep only suggestions pointing at fields we actually have.
	var suggestions []Suggestion
	for _, su := range raw {
		if su.Placeholder != "" && known[su.Field] {
			suggestions = append(suggestions, su)
		}
	}
	return suggestions, nil
}
