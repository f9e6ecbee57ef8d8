package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"memora/internal/logging"
)

// =============================================================================
// GOOGLE GENAI MODEL CLIENT
// =============================================================================

// GenAIClient talks to Google's Gemini API.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIClient creates a Gemini-backed model client.
func NewGenAIClient(apiKey, model string, timeout time.Duration) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model, timeout: timeout}, nil
}

// Complete sends system and user prompts, returning plain text.
func (c *GenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	return c.generate(ctx, systemPrompt, userPrompt, nil)
}

// CompleteStructured constrains output to the given schema and parses
// the returned JSON object.
func (c *GenAIClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *OutputSchema) (*Completion, error) {
	return c.generate(ctx, systemPrompt, userPrompt, schema)
}

func (c *GenAIClient) generate(ctx context.Context, systemPrompt, userPrompt string, schema *OutputSchema) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenAISchema(schema)
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(userPrompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI completion failed: %w", err)
	}
	logging.API("completion took %v (model=%s, structured=%v)", time.Since(start), c.model, schema != nil)

	text := result.Text()
	completion := &Completion{Text: text}

	if um := result.UsageMetadata; um != nil {
		completion.Usage = UsageMetadata{
			InputTokens:  int(um.PromptTokenCount),
			OutputTokens: int(um.CandidatesTokenCount),
			TotalTokens:  int(um.TotalTokenCount),
		}
	}

	if schema != nil && text != "" {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			// Model violated the schema. Keep the raw text so the
			// caller can still produce a degraded answer.
			logging.Get(logging.CategoryAPI).Warn("structured output was not valid JSON: %v", err)
		} else {
			completion.Structured = obj
		}
	}

	return completion, nil
}

// toGenAISchema converts our schema shorthand to a genai.Schema.
func toGenAISchema(schema *OutputSchema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(schema.Properties))
	for name, kind := range schema.Properties {
		props[name] = &genai.Schema{Type: toGenAIType(kind)}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   schema.Required,
	}
}

func toGenAIType(kind string) genai.Type {
	switch kind {
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

// Close releases the underlying client.
// The genai SDK's Client has no Close method; nothing to release.
func (c *GenAIClient) Close() error {
	return nil
}
