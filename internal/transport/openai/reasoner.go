// Package openai adapts the reasoning and image-analysis contracts to an
// OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/metrics"
)

// Reasoner runs free-text keyword distillation, batch match reasoning, and
// image-vibe description against one chat-completion provider.
type Reasoner struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the reasoning provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewReasoner creates an OpenAI-compatible reasoning provider.
func NewReasoner(cfg *Config) *Reasoner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reasoner{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

const distillPrompt = `Extract at most 2 short search keywords describing the kind of place the user wants. Respond with a JSON array of lowercase strings and nothing else.

User request: %s`

// DistillKeywords turns the free-text hint into up to two lowercase
// keywords. Failures are the caller's to downgrade.
func (r *Reasoner) DistillKeywords(ctx context.Context, freeText string) ([]string, error) {
	content, err := r.complete(ctx, "reasoning", []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf(distillPrompt, freeText),
	}})
	if err != nil {
		return nil, err
	}

	var terms []string
	if err := json.Unmarshal([]byte(stripFences(content)), &terms); err != nil {
		return nil, fmt.Errorf("parse keyword response %q: %w", content, err)
	}
	out := make([]string, 0, 2)
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == 2 {
			break
		}
	}
	return out, nil
}

// CandidateSummary is the salient-fields view of a match sent to the
// reasoning service.
type CandidateSummary struct {
	Name     string   `json:"name"`
	Summary  string   `json:"summary,omitempty"`
	Rating   float64  `json:"rating,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

const reasonPrompt = `You compare places. The user likes %q (%s). For each candidate below, write one short sentence explaining why it is a good match in %s. Respond with a JSON array of strings, one per candidate, in the same order, and nothing else.

Candidates: %s`

// ReasonBatch makes one call covering the source place and all candidates
// and returns one sentence per candidate in submission order. The
// response length must equal the number of candidates.
func (r *Reasoner) ReasonBatch(
	ctx context.Context,
	source place.Candidate,
	candidates []CandidateSummary,
	destination string,
) ([]string, error) {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}

	content, err := r.complete(ctx, "reasoning", []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		Content: fmt.Sprintf(reasonPrompt,
			source.Name, source.Summary, destination, string(payload)),
	}})
	if err != nil {
		return nil, err
	}

	var sentences []string
	if err := json.Unmarshal([]byte(stripFences(content)), &sentences); err != nil {
		return nil, fmt.Errorf("parse reasoning response: %w", err)
	}
	if len(sentences) != len(candidates) {
		return nil, fmt.Errorf("reasoning returned %d sentences for %d candidates",
			len(sentences), len(candidates))
	}
	return sentences, nil
}

const vibePrompt = "Describe the vibe of the place in this photo in one short sentence (under 15 words)."

// DescribeImage asks the vision model for a short visual description of
// the photo at the given URL. The caller enforces the deadline via ctx.
func (r *Reasoner) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	content, err := r.complete(ctx, "vision", []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: vibePrompt},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
			},
		},
	}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (r *Reasoner) complete(
	ctx context.Context, service string, messages []openai.ChatCompletionMessage,
) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues(service, "error").Inc()
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.ExternalCallsTotal.WithLabelValues(service, "error").Inc()
		return "", fmt.Errorf("empty completion response")
	}
	metrics.ExternalCallsTotal.WithLabelValues(service, "success").Inc()
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence around a JSON payload if the
// model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("reasoning API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("reasoning API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("reasoning request failed: %w", err)
}
