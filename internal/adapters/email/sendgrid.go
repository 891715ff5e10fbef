package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

const sendgridURL = "https://api.sendgrid.com/v3/mail/send"

// SendGrid основной email провайдер
type SendGrid struct {
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
	baseURL   string
}

// NewSendGrid создаёт адаптер SendGrid
func NewSendGrid(cfg config.SendGridConfig) *SendGrid {
	return &SendGrid{
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		client:    &http.Client{Timeout: 15 * time.Second},
		baseURL:   sendgridURL,
	}
}

func (s *SendGrid) ProviderName() string { return "sendgrid" }
func (s *SendGrid) Priority() int        { return 1 }

func (s *SendGrid) IsAvailable() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

type sendgridPayload struct {
	Personalizations []struct {
		To []map[string]string `json:"to"`
	} `json:"personalizations"`
	From    map[string]string `json:"from"`
	Subject string            `json:"subject"`
	Content []map[string]string `json:"content"`
}

func (s *SendGrid) Send(ctx context.Context, input *Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	payload := sendgridPayload{
		From:    map[string]string{"email": s.fromEmail, "name": s.fromName},
		Subject: input.Subject,
		Content: []map[string]string{
			{"type": "text/plain", "value": input.Body},
		},
	}
	payload.Personalizations = []struct {
		To []map[string]string `json:"to"`
	}{
		{To: []map[string]string{{"email": input.To}}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to marshal sendgrid payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "failed to build sendgrid request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "sendgrid request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperror.Newf(apperror.CodeProviderFailed,
			"sendgrid returned status %d: %s", resp.StatusCode, string(detail))
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return &Result{MessageID: messageID}, nil
}
