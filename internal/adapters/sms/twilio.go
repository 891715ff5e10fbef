package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

const twilioURLFormat = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// Twilio основной SMS провайдер
type Twilio struct {
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
	baseURL    string
}

// NewTwilio создаёт адаптер Twilio
func NewTwilio(cfg config.TwilioConfig) *Twilio {
	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Twilio) ProviderName() string { return "twilio" }
func (t *Twilio) Priority() int        { return 1 }

func (t *Twilio) IsAvailable() bool {
	return t.accountSID != "" && t.authToken != "" && t.fromNumber != ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // текст ошибки при неуспехе
}

func (t *Twilio) endpoint() string {
	if t.baseURL != "" {
		return t.baseURL
	}
	return strings.Replace(twilioURLFormat, "%s", t.accountSID, 1)
}

func (t *Twilio) Send(ctx context.Context, input *Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("To", input.To)
	form.Set("From", t.fromNumber)
	form.Set("Body", FormatMessage(input.DeliveryID, input.Message, MaxLength))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "failed to build twilio request")
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "twilio request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return nil, apperror.Newf(apperror.CodeProviderFailed,
			"twilio returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload twilioResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "failed to decode twilio response")
	}

	return &Result{MessageID: payload.SID}, nil
}
