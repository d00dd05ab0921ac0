// Package ai asks an OpenAI-compatible chat model for a trading opinion on
// one snapshot and exposes the answer as a strategy rule.
package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Advice is the model's answer for one symbol.
type Advice struct {
	Action     string `json:"action"`     // BUY, SELL, HOLD
	Confidence int    `json:"confidence"` // 0-100
	Reasoning  string `json:"reasoning"`
}

// Completer is the slice of the go-openai client the advisor uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
