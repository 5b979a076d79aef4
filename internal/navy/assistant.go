// Package navy implements the in-app help assistant: a fixed help menu and a
// free-text relay to a language model.
package navy

import (
	"context"
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/metrics"
	"github.com/navis-app/navis-api/internal/resilience"
	"github.com/navis-app/navis-api/pkg/anthropic"
)

//go:embed prompt.md
var systemPrompt string

// ConnectionErrorMessage is the body returned to clients when the relay fails.
const ConnectionErrorMessage = "Erro na conexão"

// Errors returned by Ask.
var (
	ErrRelay        = eris.New("navy: relay failed")
	ErrEmptyMessage = eris.New("navy: message is required")
)

// Assistant relays user questions to the language model.
type Assistant struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(a *Assistant) {
		a.breaker = a.newBreaker(cfg)
	}
}

// WithMetrics records relay outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// NewAssistant creates an Assistant. A nil client makes every Ask fail with
// ErrRelay, which is how the service runs without an API key.
func NewAssistant(client anthropic.Client, model string, maxTokens int64, opts ...Option) *Assistant {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	a := &Assistant{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
	for _, o := range opts {
		o(a)
	}
	if a.breaker == nil {
		a.breaker = a.newBreaker(resilience.CircuitBreakerConfig{})
	}
	return a
}

func (a *Assistant) newBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("navy: circuit state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		a.metrics.SetCircuitOpen(to == resilience.CircuitOpen)
		if next != nil {
			next(from, to)
		}
	}
	return resilience.NewCircuitBreaker(cfg)
}

// SystemPrompt returns the instructions sent with every question.
func SystemPrompt() string {
	return systemPrompt
}

// Ask sends the message and returns the model's plain-text answer.
func (a *Assistant) Ask(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if a.client == nil {
		a.metrics.ObserveRelay("unconfigured")
		return "", eris.Wrap(ErrRelay, "navy: no model client configured")
	}

	text, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (string, error) {
		resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:          a.model,
			MaxTokens:      a.maxTokens,
			System:         systemPrompt,
			SystemCacheTTL: anthropic.CacheHour,
			Messages:       []anthropic.Message{anthropic.UserMessage(message)},
		})
		if err != nil {
			return "", err
		}
		resp.Usage.Log(a.model)
		return resp.Text, nil
	})
	if err != nil {
		zap.L().Error("navy: relay failed", zap.Error(err))
		if eris.Is(err, resilience.ErrCircuitOpen) {
			a.metrics.ObserveRelay("circuit_open")
		} else {
			a.metrics.ObserveRelay("error")
		}
		return "", eris.Wrap(ErrRelay, err.Error())
	}
	a.metrics.ObserveRelay("ok")
	return text, nil
}
