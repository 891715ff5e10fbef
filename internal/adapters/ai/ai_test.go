package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

func testRequest() *Request {
	return &Request{
		TrackingNumber:   "TRK-1001",
		CustomerName:     "Alex",
		Origin:           "Rotterdam",
		Destination:      "Amsterdam",
		DelayMinutes:     35,
		Condition:        domain.ConditionSevere,
		OriginalArrival:  time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		EstimatedArrival: time.Date(2026, 3, 1, 14, 35, 0, 0, time.UTC),
	}
}

func TestTemplateMessage(t *testing.T) {
	msg := TemplateMessage(testRequest())

	assert.Equal(t, "template", msg.ModelName)
	assert.Contains(t, msg.Body, "TRK-1001")
	assert.Contains(t, msg.Body, "35 minutes")
	assert.Contains(t, msg.Body, "severe traffic")
	assert.Contains(t, msg.Body, "New ETA")
	assert.Contains(t, msg.Subject, "TRK-1001")
}

func TestMock_Generate(t *testing.T) {
	m := NewMock()

	msg, err := m.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "mock-model", msg.ModelName)
	assert.NotEmpty(t, msg.Body)
	assert.Greater(t, msg.TokenCount, 0)
}

func TestMock_Validation(t *testing.T) {
	m := NewMock()

	_, err := m.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))

	_, err = m.Generate(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
}

func TestChain_PrimaryFailsSecondaryWins(t *testing.T) {
	primary := &Mock{Fail: true, Model: "primary-model"}
	secondary := &Mock{Model: "secondary-model"}

	chain := NewChain([]Generator{primary, secondary})

	msg, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "secondary-model", msg.ModelName)
}

func TestChain_AllFailFallsBackToTemplate(t *testing.T) {
	chain := NewChain([]Generator{
		&Mock{Fail: true},
		&Mock{Fail: true},
	})

	msg, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err, "chain must never block the pipeline on AI")
	assert.Equal(t, "template", msg.ModelName)
	assert.Contains(t, msg.Body, "expected delay of 35 minutes")
}

func TestChain_SkipsUnavailable(t *testing.T) {
	// Anthropic и OpenAI без ключей недоступны; работает mock
	chain := NewChain([]Generator{
		NewAnthropic(config.AnthropicConfig{}),
		NewOpenAI(config.OpenAIConfig{}),
		NewMock(),
	})

	msg, err := chain.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "mock-model", msg.ModelName)
}

func TestAnthropic_Availability(t *testing.T) {
	a := NewAnthropic(config.AnthropicConfig{})
	assert.False(t, a.IsAvailable())

	a = NewAnthropic(config.AnthropicConfig{APIKey: "key", Model: "claude-sonnet-4-20250514"})
	assert.True(t, a.IsAvailable())
	assert.Equal(t, "anthropic", a.ProviderName())
	assert.Equal(t, 1, a.Priority())
}

func TestOpenAI_Availability(t *testing.T) {
	o := NewOpenAI(config.OpenAIConfig{})
	assert.False(t, o.IsAvailable())

	o = NewOpenAI(config.OpenAIConfig{APIKey: "key", Model: "gpt-4o-mini"})
	assert.True(t, o.IsAvailable())
	assert.Equal(t, 2, o.Priority())
}

func TestPrompt(t *testing.T) {
	p := prompt(testRequest())
	assert.Contains(t, p, "TRK-1001")
	assert.Contains(t, p, "Rotterdam")
	assert.Contains(t, p, "35 minutes")

	req := testRequest()
	req.CustomerName = ""
	assert.Contains(t, prompt(req), "the customer")
}
