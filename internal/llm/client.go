// Package llm defines the model client consumed by the query pipeline
// and its Google GenAI implementation.
package llm

import (
	"context"
)

// UsageMetadata captures token usage metrics from the LLM.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Completion is the result of one model invocation. Structured is nil
// unless the caller supplied an output schema.
type Completion struct {
	Text       string                 `json:"text"`
	Structured map[string]interface{} `json:"structured,omitempty"`
	Usage      UsageMetadata          `json:"usage"`
}

// OutputSchema describes the JSON object shape the model should return.
// Properties maps field names to primitive type names ("string",
// "number", "boolean", "array").
type OutputSchema struct {
	Properties map[string]string
	Required   []string
}

// Client defines the interface for LLM interactions.
type Client interface {
	// Complete sends system and user prompts, returning plain text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error)
	// CompleteStructured additionally constrains output to schema,
	// returning the parsed object in Completion.Structured.
	CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *OutputSchema) (*Completion, error)
}
