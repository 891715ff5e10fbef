package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"freightwatch/internal/adapters"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

// Anthropic основной AI генератор сообщений
type Anthropic struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int
	breaker   *gobreaker.CircuitBreaker
}

// NewAnthropic создаёт адаптер Anthropic
func NewAnthropic(cfg config.AnthropicConfig) *Anthropic {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		breaker:   adapters.NewBreaker("anthropic"),
	}
}

func (a *Anthropic) ProviderName() string { return "anthropic" }
func (a *Anthropic) Priority() int        { return 1 }

func (a *Anthropic) IsAvailable() bool {
	return a.apiKey != "" && a.model != "" && a.breaker.State() != gobreaker.StateOpen
}

func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Message, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	value, err := a.breaker.Execute(func() (any, error) {
		return a.generate(ctx, req)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "anthropic generation failed")
	}
	return value.(*Message), nil
}

func (a *Anthropic) generate(ctx context.Context, req *Request) (*Message, error) {
	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(req))),
		},
	})
	if err != nil {
		return nil, err
	}

	var body strings.Builder
	for _, block := range response.Content {
		body.WriteString(block.Text)
	}

	text := strings.TrimSpace(body.String())
	if text == "" {
		return nil, fmt.Errorf("anthropic returned empty message")
	}

	return &Message{
		Subject:    fmt.Sprintf("Delivery %s: delay update", req.TrackingNumber),
		Body:       text,
		ModelName:  a.model,
		TokenCount: int(response.Usage.OutputTokens),
	}, nil
}
