// Package generator produces and validates lesson content through a
// bounded retry loop around the completion service.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studysmart/lesson-engine/internal/curriculum"
	"github.com/studysmart/lesson-engine/internal/domain"
	"github.com/studysmart/lesson-engine/internal/llm"
	"github.com/studysmart/lesson-engine/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts       = 3
	defaultMaxRateLimitWaits = 5
	defaultRateLimitBackoff  = 60 * time.Second
)

// ErrAttemptsExhausted marks a lesson whose generation budget ran out. It
// is terminal for that lesson only, never for the batch.
var ErrAttemptsExhausted = errors.New("generation attempts exhausted")

// outcomeKind tags the result of one generation attempt. The retry driver
// dispatches on the tag, which keeps the back-off-versus-consume-budget
// policy explicit.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRateLimited
	outcomeInvalid
	outcomeTransport
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeInvalid:
		return "invalid"
	case outcomeTransport:
		return "transport"
	}
	return "unknown"
}

type attemptOutcome struct {
	kind       outcomeKind
	content    *domain.GeneratedContent
	violations []string
	cause      error
}

// Config bounds the retry loop. Rate-limit waits have their own, larger
// ceiling: a 429 does not consume a validation attempt, but persistent
// rate limiting still terminates.
type Config struct {
	MaxAttempts       int
	MaxRateLimitWaits int
	RateLimitBackoff  time.Duration
	Bounds            domain.LengthBounds
}

// Generator turns one lesson record into validated content.
type Generator struct {
	completer llm.Completer
	cfg       Config
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(completer llm.Completer, cfg Config, logger *zap.Logger) (*Generator, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxRateLimitWaits <= 0 {
		cfg.MaxRateLimitWaits = defaultMaxRateLimitWaits
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = defaultRateLimitBackoff
	}
	if cfg.Bounds.Min <= 0 || cfg.Bounds.Max < cfg.Bounds.Min {
		cfg.Bounds = domain.DefaultLengthBounds()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		completer: completer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepWithContext,
	}, nil
}

func (g *Generator) SetMetrics(metrics *observability.Metrics) {
	if g == nil {
		return
	}
	g.metrics = metrics
}

// Generate runs the attempt loop for one lesson. It returns the first
// candidate that passes validation, or ErrAttemptsExhausted once the
// budget runs out. No partial content is ever returned.
func (g *Generator) Generate(
	ctx context.Context,
	lesson domain.LessonRecord,
	directive *curriculum.Directive,
	requiredParts int,
) (*domain.GeneratedContent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if requiredParts <= 0 {
		return nil, fmt.Errorf("%w: required part count must be positive", domain.ErrValidation)
	}

	prompt := buildPrompt(promptParams{
		Lesson:    lesson,
		Directive: directive,
		PartCount: requiredParts,
		Bounds:    g.cfg.Bounds,
	})

	attempts := 0
	rateLimitWaits := 0
	var lastOutcome attemptOutcome

	for attempts < g.cfg.MaxAttempts {
		outcome := g.attempt(ctx, prompt, requiredParts)
		g.metrics.IncGenerationAttempt(outcome.kind.String())

		switch outcome.kind {
		case outcomeSuccess:
			return outcome.content, nil

		case outcomeRateLimited:
			rateLimitWaits++
			if rateLimitWaits > g.cfg.MaxRateLimitWaits {
				return nil, fmt.Errorf("%w: rate limit ceiling reached after %d waits",
					ErrAttemptsExhausted, rateLimitWaits-1)
			}
			g.logger.Warn("completion service rate limited, backing off",
				zap.Duration("backoff", g.cfg.RateLimitBackoff),
				zap.Int("waits", rateLimitWaits),
			)
			if err := g.sleep(ctx, g.cfg.RateLimitBackoff); err != nil {
				return nil, err
			}

		case outcomeInvalid:
			attempts++
			g.logger.Warn("generated content rejected",
				zap.Int("attempt", attempts),
				zap.Strings("violations", outcome.violations),
			)
			lastOutcome = outcome

		case outcomeTransport:
			attempts++
			g.logger.Warn("completion attempt failed",
				zap.Int("attempt", attempts),
				zap.Error(outcome.cause),
			)
			lastOutcome = outcome
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if len(lastOutcome.violations) > 0 {
		return nil, fmt.Errorf("%w after %d attempts: %s",
			ErrAttemptsExhausted, attempts, strings.Join(lastOutcome.violations, "; "))
	}
	if lastOutcome.cause != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v",
			ErrAttemptsExhausted, attempts, lastOutcome.cause)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, attempts)
}

// attempt issues one completion call and classifies the result. No state
// is carried between attempts.
func (g *Generator) attempt(ctx context.Context, prompt string, requiredParts int) attemptOutcome {
	callStart := g.now()
	body, err := g.completer.Complete(ctx, prompt)
	g.metrics.ObserveCompletionDuration(g.now().Sub(callStart))

	if err != nil {
		if llm.IsRateLimited(err) {
			return attemptOutcome{kind: outcomeRateLimited, cause: err}
		}
		return attemptOutcome{kind: outcomeTransport, cause: err}
	}

	content, violations := parseAndValidate([]byte(body), requiredParts, g.cfg.Bounds)
	if len(violations) > 0 {
		return attemptOutcome{kind: outcomeInvalid, violations: violations}
	}
	return attemptOutcome{kind: outcomeSuccess, content: content}
}

// parseAndValidate strips code fences, decodes the candidate, and checks
// the structural and length constraints.
func parseAndValidate(body []byte, requiredParts int, bounds domain.LengthBounds) (*domain.GeneratedContent, []string) {
	cleaned := cleanJSON(body)
	if len(cleaned) == 0 {
		return nil, []string{"empty response body"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(cleaned, &fields); err != nil {
		return nil, []string{fmt.Sprintf("response is not valid JSON: %v", err)}
	}

	var missing []string
	for _, key := range domain.RequiredContentKeys {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, []string{fmt.Sprintf("missing required keys: %s", strings.Join(missing, ", "))}
	}

	var content domain.GeneratedContent
	if err := json.Unmarshal(cleaned, &content); err != nil {
		return nil, []string{fmt.Sprintf("response does not match the content schema: %v", err)}
	}

	if violations := content.Validate(requiredParts, bounds); len(violations) > 0 {
		return nil, violations
	}
	return &content, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
