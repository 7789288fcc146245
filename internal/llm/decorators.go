package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"estimator/internal/apperr"
	"estimator/internal/retry"
)

// Middleware оборачивает Provider дополнительным поведением.
type Middleware func(Provider) Provider

// Chain применяет middleware так, что первый в списке оказывается внешним.
func Chain(p Provider, mws ...Middleware) Provider {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}

// providerFunc позволяет декораторам не повторять Name/Model.
type providerFunc struct {
	next     Provider
	complete func(ctx context.Context, req Request) (string, error)
}

func (p providerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return p.complete(ctx, req)
}
func (p providerFunc) Name() string  { return p.next.Name() }
func (p providerFunc) Model() string { return p.next.Model() }

// WithTimeout ограничивает весь вызов, включая повторы и ожидание лимитера.
// Истечение собственного дедлайна превращается в ProviderTimeout.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next Provider) Provider {
		if timeout <= 0 {
			return next
		}
		return providerFunc{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			answer, err := next.Complete(callCtx, req)
			if err == nil {
				return answer, nil
			}
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return "", &apperr.Error{
					Kind:    apperr.KindProviderTimeout,
					Op:      "llm.timeout",
					Message: "provider did not answer within " + timeout.String(),
					Err:     err,
				}
			}
			return "", err
		}}
	}
}

// WithRetry повторяет временные сбои провайдера по политике policy.
func WithRetry(policy retry.Policy, logger *slog.Logger) Middleware {
	policy.Classify = func(err error) (bool, time.Duration) {
		return apperr.Retryable(err), apperr.RetryAfterOf(err)
	}
	return func(next Provider) Provider {
		if policy.MaxAttempts <= 1 {
			return next
		}
		return providerFunc{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			var answer string
			err := retry.Do(ctx, policy, logger, func(ctx context.Context) error {
				var callErr error
				answer, callErr = next.Complete(ctx, req)
				return callErr
			})
			if err != nil {
				return "", unwrapExhausted(err)
			}
			return answer, nil
		}}
	}
}

// unwrapExhausted сохраняет вид исходной ошибки после исчерпания попыток.
func unwrapExhausted(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return apperr.Wrap(apperr.KindProviderUnavailable, "llm.retry", err)
	}
	return err
}

// WithRateLimit ограничивает частоту исходящих вызовов провайдера.
// limit <= 0 отключает ограничение.
func WithRateLimit(limit float64, burst int) Middleware {
	return func(next Provider) Provider {
		if limit <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(limit), burst)
		return providerFunc{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				// Wait отказывает заранее, если дедлайн наступит раньше слота.
				return "", &apperr.Error{Kind: apperr.KindProviderTimeout, Op: "llm.ratelimit", Message: "provider rate limit wait exceeded deadline", Err: err}
			}
			return next.Complete(ctx, req)
		}}
	}
}

// WithLogging пишет длительность и исход каждого вызова. Текст промпта не логируется.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next Provider) Provider {
		if logger == nil {
			return next
		}
		return providerFunc{next: next, complete: func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			answer, err := next.Complete(ctx, req)
			attrs := []any{
				slog.String("provider", next.Name()),
				slog.String("model", modelOf(req, next)),
				slog.Int("messages", len(req.Messages)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("kind", string(apperr.KindOf(err))), slog.String("error", err.Error()))
				logger.Warn("llm call failed", attrs...)
				return "", err
			}
			attrs = append(attrs, slog.Int("reply_chars", len(answer)))
			logger.Info("llm call", attrs...)
			return answer, nil
		}}
	}
}

func modelOf(req Request, p Provider) string {
	if req.Model != "" {
		return req.Model
	}
	return p.Model()
}
