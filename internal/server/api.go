// Package server: ETL 파이프라인 제어 및 분석 조회 HTTP API를 제공한다.
// 핸들러 메서드는 도메인별 파일로 분리됨:
//   - api_ingestion.go: 파이프라인 실행 트리거/조회/취소
//   - api_analytics.go: 팩트/게임 분석 조회
//   - api_system.go: 헬스 체크 및 시스템 리소스 통계
package server

import (
	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/service/cache"
	"github.com/kapu/steam-analytics-etl-go/internal/service/database"
	"github.com/kapu/steam-analytics-etl-go/internal/service/facts"
	"github.com/kapu/steam-analytics-etl-go/internal/service/pipeline"
	"github.com/kapu/steam-analytics-etl-go/internal/service/system"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
)

// APIHandler: ETL API 요청을 처리하는 핸들러
type APIHandler struct {
	orchestrator *pipeline.Orchestrator
	repo         *facts.Repository
	jobCache     *cache.Service
	postgres     *database.PostgresService
	systemStats  *system.Collector
	breakers     map[string]*util.CircuitBreaker // 소스 이름 → 서킷 브레이커
	logger       *slog.Logger
}

// NewAPIHandler: 새로운 API 핸들러를 생성한다.
func NewAPIHandler(
	orchestrator *pipeline.Orchestrator,
	repo *facts.Repository,
	jobCache *cache.Service,
	postgres *database.PostgresService,
	systemStats *system.Collector,
	breakers map[string]*util.CircuitBreaker,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		orchestrator: orchestrator,
		repo:         repo,
		jobCache:     jobCache,
		postgres:     postgres,
		systemStats:  systemStats,
		breakers:     breakers,
		logger:       logger,
	}
}
