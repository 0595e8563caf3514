// Package nl2sql turns a classified question into candidate SQL and a plain-language
// explanation through an external text-generation service.
package nl2sql

import "context"

// Prompt is one text-generation request.
type Prompt struct {
	System      string
	Text        string
	Temperature float64
	MaxTokens   int
}

// TextGenerator is the external model. One call per need, no retries, no streaming.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// ModelNamer is implemented by generators that can report which model served a request.
type ModelNamer interface {
	ModelName() string
}

// Generation is the cleaned result of one SQL generation call. When Err is set, SQL
// holds an error comment that downstream safety checks reject.
type Generation struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Err      string `json:"error,omitempty"`
}

func (g Generation) Failed() bool {
	return g.Err != ""
}
