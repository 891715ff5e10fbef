package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

// SMTP резервный email провайдер поверх обычного SMTP сервера
type SMTP struct {
	cfg config.SMTPConfig
}

// NewSMTP создаёт адаптер SMTP
func NewSMTP(cfg config.SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) ProviderName() string { return "smtp" }
func (s *SMTP) Priority() int        { return 2 }

func (s *SMTP) IsAvailable() bool {
	return s.cfg.Host != "" && s.cfg.Username != ""
}

func (s *SMTP) Send(ctx context.Context, input *Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	from := s.cfg.From
	if strings.TrimSpace(from) == "" {
		from = s.cfg.Username
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	msg := buildMessage(from, input.To, input.Subject, input.Body)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	var err error
	if s.cfg.UseTLS {
		err = s.sendTLS(addr, auth, from, input.To, msg)
	} else {
		err = smtp.SendMail(addr, auth, from, []string{input.To}, []byte(msg))
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderFailed, "smtp send failed")
	}

	// SMTP не возвращает message id - синтезируем свой
	return &Result{MessageID: "smtp-" + uuid.NewString()}, nil
}

func (s *SMTP) sendTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: s.cfg.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	return w.Close()
}

func buildMessage(from, to, subject, body string) string {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
