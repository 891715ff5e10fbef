package email

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

func testInput() *Input {
	return &Input{
		To:         "customer@example.com",
		Subject:    "Delivery TRK-1001: delay update",
		Body:       "Your delivery is running 35 minutes late.",
		DeliveryID: "dlv-1",
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, apperror.Is(validate(nil), apperror.CodeNilInput))

	input := testInput()
	input.To = ""
	assert.True(t, apperror.Is(validate(input), apperror.CodeInvalidArgument))

	input = testInput()
	input.Body = ""
	assert.True(t, apperror.Is(validate(input), apperror.CodeInvalidArgument))

	assert.NoError(t, validate(testInput()))
}

func TestMock_Send(t *testing.T) {
	m := NewMock()

	result, err := m.Send(context.Background(), testInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageID)
	assert.Len(t, m.Sent(), 1)

	m.Fail = true
	_, err = m.Send(context.Background(), testInput())
	assert.Error(t, err)
}

func TestSendGrid_Availability(t *testing.T) {
	s := NewSendGrid(config.SendGridConfig{})
	assert.False(t, s.IsAvailable())

	s = NewSendGrid(config.SendGridConfig{APIKey: "key", FromEmail: "ops@freightwatch.io"})
	assert.True(t, s.IsAvailable())
	assert.Equal(t, "sendgrid", s.ProviderName())
	assert.Equal(t, 1, s.Priority())
}

func TestSendGrid_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("X-Message-Id", "sg-abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewSendGrid(config.SendGridConfig{APIKey: "key", FromEmail: "ops@freightwatch.io"})
	s.baseURL = server.URL

	result, err := s.Send(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "sg-abc123", result.MessageID)
}

func TestSendGrid_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors": [{"message": "bad key"}]}`))
	}))
	defer server.Close()

	s := NewSendGrid(config.SendGridConfig{APIKey: "bad", FromEmail: "ops@freightwatch.io"})
	s.baseURL = server.URL

	_, err := s.Send(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeProviderFailed))
	assert.Contains(t, err.Error(), "401")
}

func TestSMTP_Availability(t *testing.T) {
	s := NewSMTP(config.SMTPConfig{})
	assert.False(t, s.IsAvailable())

	s = NewSMTP(config.SMTPConfig{Host: "smtp.example.com", Username: "user"})
	assert.True(t, s.IsAvailable())
	assert.Equal(t, 2, s.Priority())
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("ops@freightwatch.io", "customer@example.com", "Subject line", "Body text")

	assert.Contains(t, msg, "From: ops@freightwatch.io")
	assert.Contains(t, msg, "To: customer@example.com")
	assert.Contains(t, msg, "Subject: Subject line")
	assert.Contains(t, msg, "\r\n\r\nBody text")
}
