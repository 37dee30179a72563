// Package fetch: 외부 소스 호출의 재시도 실행기를 제공한다.
// 일시 오류(네트워크, 429, 5xx)는 지수 백오프로 재시도하고
// 영구 오류(파싱 실패, 4xx)는 즉시 중단한다.
package fetch

import (
	stderrors "errors"
	"net/http"
	"time"

	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// Executor: 단일 소스에 대한 재시도 실행기
// 서킷 브레이커와 연동되어 연속 실패 시 소스 호출을 차단한다.
type Executor struct {
	source  string
	breaker *util.CircuitBreaker
	logger  *slog.Logger

	// baseDelay가 0이면 기본 재시도 간격을 사용한다.
	baseDelay time.Duration
}

// NewExecutor: 재시도 실행기를 생성한다. breaker는 nil일 수 있다.
func NewExecutor(source string, breaker *util.CircuitBreaker, logger *slog.Logger) *Executor {
	return &Executor{
		source:  source,
		breaker: breaker,
		logger:  logger,
	}
}

// IsPermanent: 재시도해도 소용없는 영구 오류인지 분류한다.
// 파싱/검증 실패와 429를 제외한 4xx 응답이 영구 오류에 해당한다.
func IsPermanent(err error) bool {
	var parseErr *errors.ParseError
	if stderrors.As(err, &parseErr) {
		return true
	}

	var validationErr *errors.ValidationError
	if stderrors.As(err, &validationErr) {
		return true
	}

	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return true
		}
	}

	return false
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.RetryConfig.BaseDelay
	if e.baseDelay > 0 {
		b.InitialInterval = e.baseDelay
	}
	b.MaxInterval = constants.RetryConfig.MaxDelay
	b.Multiplier = constants.RetryConfig.Multiplier
	b.RandomizationFactor = 0.2

	maxRetries := uint64(constants.RetryConfig.MaxAttempts - 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

// Do: 결과를 반환하는 작업을 재시도 정책에 따라 실행한다.
// 서킷이 열려있으면 시도 없이 CircuitOpenError를 반환한다.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	attempt := 0

	op := func() error {
		if e.breaker != nil && !e.breaker.CanExecute() {
			return backoff.Permanent(&errors.CircuitOpenError{
				Source:       e.source,
				RetryAfterMs: e.breaker.RetryAfter().Milliseconds(),
			})
		}

		attempt++
		r, err := fn(ctx)
		if err != nil {
			if IsPermanent(err) {
				e.logger.Debug("Permanent error, not retrying",
					slog.String("source", e.source),
					slog.String("operation", operation),
					slog.Any("error", err),
				)
				return backoff.Permanent(err)
			}

			if e.breaker != nil {
				e.breaker.RecordFailure()
			}
			e.logger.Warn("Transient error, will retry",
				slog.String("source", e.source),
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return err
		}

		if e.breaker != nil {
			e.breaker.RecordSuccess()
		}
		result = r
		return nil
	}

	if err := backoff.Retry(op, e.newBackOff(ctx)); err != nil {
		return result, err
	}
	return result, nil
}
