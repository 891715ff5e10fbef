// Package ai реализует генераторов персонализированных сообщений о
// задержке доставки.
package ai

import (
	"context"
	"fmt"
	"time"

	"freightwatch/internal/adapters"
	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/telemetry"
)

// Request контекст задержки для генерации сообщения
type Request struct {
	TrackingNumber   string
	CustomerName     string
	Origin           string
	Destination      string
	DelayMinutes     int
	Condition        domain.TrafficCondition
	OriginalArrival  time.Time
	EstimatedArrival time.Time
}

// Message сгенерированное сообщение
type Message struct {
	Subject    string
	Body       string
	ModelName  string
	TokenCount int
}

// Generator способность генерировать сообщение о задержке
type Generator interface {
	adapters.Provider
	Generate(ctx context.Context, req *Request) (*Message, error)
}

// Chain цепочка генераторов. Если все AI провайдеры упали, цепочка
// синтезирует детерминированное шаблонное сообщение: пайплайн никогда
// не блокируется на AI.
type Chain struct {
	providers []Generator
}

// NewChain создаёт цепочку генераторов
func NewChain(providers []Generator) *Chain {
	return &Chain{providers: providers}
}

// Generate возвращает сообщение первого успешного генератора либо
// шаблонный фолбэк.
func (c *Chain) Generate(ctx context.Context, req *Request) (*Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "ai.Chain.Generate",
		telemetry.WithAttributes(
			telemetry.TrackingNumber(req.TrackingNumber),
			telemetry.DelayMinutes(req.DelayMinutes),
		))
	defer span.End()

	for _, provider := range adapters.Available(c.providers) {
		message, err := provider.Generate(ctx, req)
		if err != nil {
			logger.Warn("AI generator failed, falling through",
				"provider", provider.ProviderName(), "error", err)
			continue
		}
		return message, nil
	}

	logger.Info("All AI generators failed, using template message",
		"tracking_number", req.TrackingNumber)
	return TemplateMessage(req), nil
}

// TemplateMessage синтезирует детерминированное сообщение без AI
func TemplateMessage(req *Request) *Message {
	return &Message{
		Subject: fmt.Sprintf("Delivery %s: delay update", req.TrackingNumber),
		Body: fmt.Sprintf(
			"Delivery %s: expected delay of %d minutes due to %s traffic. New ETA %s.",
			req.TrackingNumber,
			req.DelayMinutes,
			req.Condition,
			req.EstimatedArrival.Format("Mon, 02 Jan 2006 15:04 MST"),
		),
		ModelName: "template",
	}
}

// prompt собирает единый prompt для всех LLM провайдеров
func prompt(req *Request) string {
	name := req.CustomerName
	if name == "" {
		name = "the customer"
	}

	return fmt.Sprintf(
		"Write a short, friendly delivery delay notification for %s.\n"+
			"Tracking number: %s\n"+
			"Route: %s to %s\n"+
			"Delay: %d minutes (%s traffic)\n"+
			"Original arrival: %s\n"+
			"New estimated arrival: %s\n\n"+
			"Keep it under 100 words, apologize once, do not invent details.",
		name,
		req.TrackingNumber,
		req.Origin,
		req.Destination,
		req.DelayMinutes,
		req.Condition,
		req.OriginalArrival.Format(time.RFC1123),
		req.EstimatedArrival.Format(time.RFC1123),
	)
}

// validate проверяет запрос перед обращением к провайдеру
func validate(req *Request) error {
	if req == nil {
		return apperror.New(apperror.CodeNilInput, "ai request is nil")
	}
	if req.TrackingNumber == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"tracking number is required", "tracking_number")
	}
	return nil
}
