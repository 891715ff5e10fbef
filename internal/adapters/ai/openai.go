package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"freightwatch/internal/adapters"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

// OpenAI резервный AI генератор поверх langchaingo
type OpenAI struct {
	apiKey  string
	model   string
	breaker *gobreaker.CircuitBreaker

	mu  sync.Mutex
	llm *openai.LLM
}

// NewOpenAI создаёт адаптер OpenAI
func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	return &OpenAI{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		breaker: adapters.NewBreaker("openai"),
	}
}

func (o *OpenAI) ProviderName() string { return "openai" }
func (o *OpenAI) Priority() int        { return 2 }

func (o *OpenAI) IsAvailable() bool {
	return o.apiKey != "" && o.model != "" && o.breaker.State() != gobreaker.StateOpen
}

// client лениво инициализирует LLM клиент
func (o *OpenAI) client() (*openai.LLM, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.llm != nil {
		return o.llm, nil
	}

	llm, err := openai.New(
		openai.WithToken(o.apiKey),
		openai.WithModel(o.model),
	)
	if err != nil {
		return nil, err
	}

	o.llm = llm
	return llm, nil
}

func (o *OpenAI) Generate(ctx context.Context, req *Request) (*Message, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	value, err := o.breaker.Execute(func() (any, error) {
		return o.generate(ctx, req)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "openai generation failed")
	}
	return value.(*Message), nil
}

func (o *OpenAI) generate(ctx context.Context, req *Request) (*Message, error) {
	llm, err := o.client()
	if err != nil {
		return nil, err
	}

	completion, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt(req),
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(completion)
	if text == "" {
		return nil, fmt.Errorf("openai returned empty message")
	}

	return &Message{
		Subject:   fmt.Sprintf("Delivery %s: delay update", req.TrackingNumber),
		Body:      text,
		ModelName: o.model,
	}, nil
}
