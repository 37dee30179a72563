package app

import (
	"context"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/config"
	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/pipeline"
)

// Runtime: 조립 완료된 애플리케이션의 실행 단위
type Runtime struct {
	container *Container
	server    *http.Server
	logger    *slog.Logger
}

// BuildRuntime: 설정으로부터 런타임을 조립한다.
func BuildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	container, err := NewContainer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}

	router := NewRouter(ctx, cfg, logger, container.Handler)
	httpServer := NewHTTPServer(cfg, router)

	return &Runtime{
		container: container,
		server:    httpServer,
		logger:    logger,
	}, nil
}

// Run: HTTP 서버를 시작하고 컨텍스트가 취소될 때까지 대기한 뒤 정상 종료한다.
func (r *Runtime) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("API server listening", slog.String("addr", r.server.Addr))
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("Shutting down")

	// 진행 중인 파이프라인 실행이 있으면 취소한다.
	r.container.Orchestrator.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout.Shutdown)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// RunOnce: 파이프라인을 1회 동기 실행하고 리포트 요약을 로깅한다. (CLI 모드)
func (r *Runtime) RunOnce(ctx context.Context, mode string, appIDs []int, force bool) error {
	report, err := r.container.Orchestrator.Run(ctx, pipeline.RunRequest{
		Mode:   domain.RunMode(mode),
		AppIDs: appIDs,
		Force:  force,
	})
	if err != nil {
		return err
	}

	r.logger.Info("Run report",
		slog.String("job_id", report.JobID),
		slog.String("status", report.Status.String()),
		slog.Int("games", report.Merged.Games),
		slog.Int("facts", report.Merged.Facts),
		slog.Int("load_failed", report.Load.TotalFailed()),
		slog.String("error", report.Error),
	)

	if report.Status != domain.JobStatusCompleted {
		return fmt.Errorf("run finished with status %s: %s", report.Status, report.Error)
	}
	return nil
}

// Close: 보유 리소스를 해제한다.
func (r *Runtime) Close() {
	r.container.Close()
}
