// Package governor: 외부 수집 소스에 대한 호출 속도를 통제한다.
// 소스별 동시성 상한(세마포어)과 엔드포인트별 최소 호출 간격(rate.Limiter)을 함께 적용한다.
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Governor: 단일 소스에 대한 호출 통제기
// 세마포어로 동시 호출 수를 제한하고, 등록된 엔드포인트별로 독립적인 최소 간격을 강제한다.
type Governor struct {
	source   string
	sem      *semaphore.Weighted
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewGovernor: 지정된 동시성 상한을 가진 거버너를 생성한다.
func NewGovernor(source string, maxConcurrent int64, logger *slog.Logger) *Governor {
	return &Governor{
		source:   source,
		sem:      semaphore.NewWeighted(maxConcurrent),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// RegisterEndpoint: 엔드포인트별 최소 호출 간격을 등록한다.
// 같은 이름으로 다시 등록하면 기존 리미터를 교체한다.
func (g *Governor) RegisterEndpoint(endpoint string, minDelay time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.limiters[endpoint] = rate.NewLimiter(rate.Every(minDelay), 1)
	g.logger.Debug("Endpoint registered",
		slog.String("source", g.source),
		slog.String("endpoint", endpoint),
		slog.Duration("min_delay", minDelay),
	)
}

// Acquire: 호출 허가를 획득한다. 반환된 release 함수는 호출 완료 후 반드시 실행되어야 한다.
// 세마포어 획득 → 엔드포인트 리미터 대기 순서로 진행되므로 동시성 상한이 1이면
// 간격 대기 중에도 다른 호출이 끼어들지 못한다.
func (g *Governor) Acquire(ctx context.Context, endpoint string) (func(), error) {
	g.mu.RLock()
	limiter, ok := g.limiters[endpoint]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %q for source %s", endpoint, g.source)
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire cancelled: %w", err)
	}

	if err := limiter.Wait(ctx); err != nil {
		g.sem.Release(1)
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.sem.Release(1)
		})
	}
	return release, nil
}
