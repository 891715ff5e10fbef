// Package notify реализует канальную отправку нотификаций с фолбэком
// внутри каждого канала и статическим blacklist'ом получателей.
package notify

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"freightwatch/internal/adapters"
	"freightwatch/internal/adapters/email"
	"freightwatch/internal/adapters/sms"
	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/telemetry"
)

// Request запрос на отправку по одному каналу
type Request struct {
	Channel    domain.Channel
	To         string
	Subject    string
	Message    string
	DeliveryID string
}

// Result результат успешной отправки
type Result struct {
	Provider  string
	MessageID string
}

// BothResults результаты одновременной отправки по двум каналам
type BothResults struct {
	Email    *Result
	EmailErr error
	SMS      *Result
	SMSErr   error
}

// Service канальный отправитель нотификаций
type Service struct {
	email     []email.Notifier
	sms       []sms.Notifier
	blacklist map[string]struct{}
}

// NewService создаёт сервис. Blacklist сравнивается без учёта регистра.
func NewService(emailProviders []email.Notifier, smsProviders []sms.Notifier, blacklist []string) *Service {
	blocked := make(map[string]struct{}, len(blacklist))
	for _, recipient := range blacklist {
		blocked[strings.ToLower(strings.TrimSpace(recipient))] = struct{}{}
	}

	return &Service{
		email:     emailProviders,
		sms:       smsProviders,
		blacklist: blocked,
	}
}

// Blacklisted проверяет получателя по blacklist'у
func (s *Service) Blacklisted(recipient string) bool {
	_, ok := s.blacklist[strings.ToLower(strings.TrimSpace(recipient))]
	return ok
}

// Send отправляет нотификацию по каналу, перебирая адаптеры в порядке
// приоритета. Получатель из blacklist'а отсекается до любых попыток.
func (s *Service) Send(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "notify.Service.Send",
		telemetry.WithAttributes(
			telemetry.Channel(string(req.Channel)),
			telemetry.DeliveryID(req.DeliveryID),
		))
	defer span.End()

	m := metrics.Get()

	if s.Blacklisted(req.To) {
		m.NotificationsTotal.WithLabelValues(string(req.Channel), "skipped").Inc()
		return nil, apperror.Newf(apperror.CodeRecipientBlocked,
			"recipient is blacklisted").
			WithDetails("channel", string(req.Channel))
	}

	var result *Result
	var err error

	switch req.Channel {
	case domain.ChannelEmail:
		result, err = s.sendEmail(ctx, req)
	case domain.ChannelSMS:
		result, err = s.sendSMS(ctx, req)
	default:
		return nil, apperror.Newf(apperror.CodeInvalidChannel, "unknown channel %q", req.Channel)
	}

	if err != nil {
		m.NotificationsTotal.WithLabelValues(string(req.Channel), "failed").Inc()
		telemetry.SetError(ctx, err)
		return nil, err
	}

	m.NotificationsTotal.WithLabelValues(string(req.Channel), "sent").Inc()
	return result, nil
}

func (s *Service) sendEmail(ctx context.Context, req *Request) (*Result, error) {
	available := adapters.Available(s.email)
	if len(available) == 0 {
		return nil, apperror.New(apperror.CodeProviderUnavailable, "no email providers available")
	}

	aggregate := &apperror.AggregateError{Operation: "email delivery"}
	for _, provider := range available {
		logger.Info("Attempting email delivery",
			"provider", provider.ProviderName(), "delivery_id", req.DeliveryID)

		result, err := provider.Send(ctx, &email.Input{
			To:         req.To,
			Subject:    req.Subject,
			Body:       req.Message,
			DeliveryID: req.DeliveryID,
		})
		if err != nil {
			logger.Warn("Email provider failed",
				"provider", provider.ProviderName(), "error", err)
			aggregate.Add(provider.ProviderName(), err)
			continue
		}

		return &Result{Provider: provider.ProviderName(), MessageID: result.MessageID}, nil
	}

	return nil, aggregate.AsAppError()
}

func (s *Service) sendSMS(ctx context.Context, req *Request) (*Result, error) {
	available := adapters.Available(s.sms)
	if len(available) == 0 {
		return nil, apperror.New(apperror.CodeProviderUnavailable, "no sms providers available")
	}

	aggregate := &apperror.AggregateError{Operation: "sms delivery"}
	for _, provider := range available {
		logger.Info("Attempting sms delivery",
			"provider", provider.ProviderName(), "delivery_id", req.DeliveryID)

		result, err := provider.Send(ctx, &sms.Input{
			To:         req.To,
			Message:    req.Message,
			DeliveryID: req.DeliveryID,
		})
		if err != nil {
			logger.Warn("SMS provider failed",
				"provider", provider.ProviderName(), "error", err)
			aggregate.Add(provider.ProviderName(), err)
			continue
		}

		return &Result{Provider: provider.ProviderName(), MessageID: result.MessageID}, nil
	}

	return nil, aggregate.AsAppError()
}

// SendBoth отправляет по обоим каналам одновременно и возвращает пару
// результатов. Ошибка одного канала не мешает другому.
func (s *Service) SendBoth(ctx context.Context, emailReq, smsReq *Request) *BothResults {
	ctx, span := telemetry.StartSpan(ctx, "notify.Service.SendBoth")
	defer span.End()

	results := &BothResults{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results.Email, results.EmailErr = s.Send(gctx, emailReq)
		return nil
	})
	g.Go(func() error {
		results.SMS, results.SMSErr = s.Send(gctx, smsReq)
		return nil
	})
	_ = g.Wait()

	return results
}
