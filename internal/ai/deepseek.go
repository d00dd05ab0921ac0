package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/market"
)

type Advisor struct {
	client  Completer
	model   string
	timeout time.Duration
	logger  *logger.Logger
}

func NewAdvisor(cfg config.DeepSeekConfig, timeout time.Duration, log *logger.Logger) *Advisor {
	ocfg := openai.DefaultConfig(cfg.APIKey)
	ocfg.BaseURL = cfg.BaseURL

	return NewAdvisorWithClient(openai.NewClientWithConfig(ocfg), cfg.Model, timeout, log)
}

func NewAdvisorWithClient(client Completer, model string, timeout time.Duration, log *logger.Logger) *Advisor {
	return &Advisor{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  log.Component("ai"),
	}
}

// Advise returns the parsed advice and the raw model response.
func (a *Advisor) Advise(ctx context.Context, snap market.Snapshot) (Advice, string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.logger.Info("sending analysis request", "symbol", snap.Symbol, "model", a.model)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(snap)},
		},
	})
	if err != nil {
		return Advice{}, "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Advice{}, "", fmt.Errorf("model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	a.logger.Debug("AI raw response", "symbol", snap.Symbol, "content", raw)

	advice, err := ParseAdvice(raw)
	if err != nil {
		return Advice{}, raw, fmt.Errorf("parse AI response: %w", err)
	}
	return advice, raw, nil
}
