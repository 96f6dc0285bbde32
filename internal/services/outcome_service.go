package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"logima-backend/internal/metrics"
	"logima-backend/internal/workpool"
)

const (
	OutcomeFallback = "AI summary unavailable."

	outcomeSystemPrompt = "You are a concise product coach. Given a project description, produce a 1–3 sentence outcome summary."
	outcomeMaxTokens    = 500
)

var errEmptyCompletion = errors.New("model returned an empty completion")

// Completer is implemented by *openai.Client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

type OutcomeOptions struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Outcome is either generated text or a degraded result carrying the last error.
type Outcome struct {
	Text     string
	Degraded bool
	Attempts int
	Err      error
}

// String is the value persisted on the project.
func (o Outcome) String() string {
	if o.Degraded {
		return OutcomeFallback
	}
	return o.Text
}

type OutcomeService struct {
	model   Completer
	pool    *workpool.Pool
	opts    OutcomeOptions
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewOutcomeService(model Completer, pool *workpool.Pool, opts OutcomeOptions, m *metrics.Metrics, logger zerolog.Logger) *OutcomeService {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &OutcomeService{
		model:   model,
		pool:    pool,
		opts:    opts,
		metrics: m,
		logger:  logger.With().Str("component", "outcomes").Logger(),
	}
}

// Generate never fails. Each attempt is bounded by the configured timeout and runs on
// the offload pool; after Retries+1 failed attempts the outcome is degraded.
func (s *OutcomeService) Generate(ctx context.Context, description string) Outcome {
	out := s.generate(ctx, description)
	s.metrics.ObserveOutcome(out.Degraded, out.Attempts)
	if out.Degraded {
		s.logger.Warn().Err(out.Err).Int("attempts", out.Attempts).Msg("outcome generation degraded")
	}
	return out
}

func (s *OutcomeService) generate(ctx context.Context, description string) Outcome {
	if s.model == nil {
		return Outcome{Degraded: true, Err: errors.New("model provider not configured")}
	}

	userPrompt := fmt.Sprintf("Project description:\n%s\n\nReturn only the outcome summary.", promptDescription(description))

	var lastErr error
	attempts := 0
	for i := 0; i <= s.opts.Retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Outcome{Degraded: true, Attempts: attempts, Err: ctx.Err()}
			case <-time.After(s.opts.RetryDelay):
			}
		}

		attempts++
		text, err := s.attempt(ctx, userPrompt)
		if err == nil {
			return Outcome{Text: text, Attempts: attempts}
		}
		lastErr = err
		s.logger.Debug().Err(err).Int("attempt", attempts).Msg("outcome attempt failed")

		if ctx.Err() != nil {
			break
		}
	}
	return Outcome{Degraded: true, Attempts: attempts, Err: lastErr}
}

func (s *OutcomeService) attempt(ctx context.Context, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := workpool.Do(ctx, s.pool, func(ctx context.Context) (string, error) {
		return s.model.Complete(ctx, outcomeSystemPrompt, userPrompt, outcomeMaxTokens)
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func promptDescription(description string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return "N/A"
}
