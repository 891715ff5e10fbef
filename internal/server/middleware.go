package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/ratelimit"
)

// statusRecorder запоминает статус ответа для логирования и метрик
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withObservability логирует запрос и пишет HTTP метрики
func withObservability(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(started)
		metrics.Get().ObserveHTTP(r.Method, pattern, strconv.Itoa(recorder.status), duration)

		logger.Log.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

// withRecovery перехватывает панику обработчика
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panic", "panic", p, "path", r.URL.Path)
				writeError(w, apperror.Newf(apperror.CodeInternal, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit ограничивает частоту запросов по адресу клиента
func withRateLimit(limiter ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientAddr(r)

		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter failed, letting request through", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			writeError(w, apperror.New(apperror.CodeRateLimited, "too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

// withCronAuth проверяет общий секрет cron планировщика.
// Сравнение выполняется за константное время.
func withCronAuth(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			writeError(w, apperror.New(apperror.CodeUnauthenticated, "cron secret is not configured"))
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, apperror.ErrUnauthenticated)
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			writeError(w, apperror.ErrUnauthenticated)
			return
		}

		next.ServeHTTP(w, r)
	})
}
