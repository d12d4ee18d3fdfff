// Package extract implements the opaque extract(text, schema) -> object
// call (§4.C step 10, §6 html->markdown sub-interface's sibling for
// structured extraction) against the Anthropic API, grounded on the
// teacher's internal/services/llm/claude_service.go Chat/generateCompletion
// pattern: build a MessageNewParams request, collect the text content
// blocks, and in this case parse the result as JSON instead of returning
// raw prose.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Extractor is the interface the content pipeline's caller depends on, so a
// deterministic stub can stand in for it in tests without touching the
// network (§9 Design Note: isolate opaque native calls behind an interface).
type Extractor interface {
	Extract(ctx context.Context, text string, opts models.ExtractOptions) (map[string]interface{}, error)
}

// Claude calls the Anthropic API and asks the model to return only a JSON
// object matching the caller-supplied schema.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewClaude builds an Extractor from config.ExtractConfig, parsing its
// Timeout/RateLimit duration strings the way the teacher's
// NewClaudeService parses ClaudeConfig.Timeout.
func NewClaude(cfg *common.ExtractConfig, logger arbor.ILogger) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extract: api key is required (set ANTHROPIC_API_KEY or extract.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	timeout := 2 * time.Minute
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("extract: invalid timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	every := time.Second
	if cfg.RateLimit != "" {
		d, err := time.ParseDuration(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("extract: invalid rate_limit %q: %w", cfg.RateLimit, err)
		}
		every = d
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Claude{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Every(every), 1),
		logger:    logger,
	}, nil
}

// Extract asks the model to produce a JSON object from text matching the
// given schema/prompt, mirroring the spec's extract(text, schema) -> object
// contract. A non-JSON or malformed response is surfaced as ExtractFailed
// rather than a panic or silent empty result; the document is still
// returned (§7 "ExtractFailed is non-fatal").
func (c *Claude) Extract(ctx context.Context, text string, opts models.ExtractOptions) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("extract: rate limit wait: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(text, opts)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	system := opts.SystemPrompt
	if system == "" {
		system = "You extract structured data from web page text. Respond with a single JSON object and nothing else - no prose, no markdown fences."
	}
	params.System = []anthropic.TextBlockParam{{Text: system}}

	resp, err := c.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("extract: anthropic call failed: %w", err)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}
	if raw.Len() == 0 {
		return nil, fmt.Errorf("extract: empty response")
	}

	object, err := parseJSONObject(raw.String())
	if err != nil {
		return nil, fmt.Errorf("extract: response was not valid json: %w", err)
	}
	return object, nil
}

func buildPrompt(text string, opts models.ExtractOptions) string {
	var b strings.Builder
	if opts.Prompt != "" {
		b.WriteString(opts.Prompt)
		b.WriteString("\n\n")
	}
	if len(opts.Schema) > 0 {
		schemaJSON, _ := json.Marshal(opts.Schema)
		b.WriteString("Return a JSON object matching this schema:\n")
		b.Write(schemaJSON)
		b.WriteString("\n\n")
	}
	b.WriteString("Page text:\n")
	b.WriteString(text)
	return b.String()
}

// parseJSONObject tolerates a model wrapping its JSON in a markdown fence
// despite being told not to, matching the defensive unwrap the teacher's
// LLM-backed services do around free-form model output.
func parseJSONObject(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var object map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &object); err != nil {
		return nil, err
	}
	return object, nil
}
