package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// MetadataSource: 메타데이터/디스커버리 소스 (SteamSpy)
type MetadataSource interface {
	DiscoverAll(ctx context.Context, limit int) ([]*domain.MetadataRecord, []domain.EntityFailure, error)
	FetchDetails(ctx context.Context, appIDs []int) ([]*domain.MetadataRecord, []domain.EntityFailure)
}

// PricingSource: 가격 소스 (Steam Store)
type PricingSource interface {
	FetchPricing(ctx context.Context, appIDs []int) ([]*domain.PricingRecord, []domain.EntityFailure)
}

// TimeseriesSource: 플레이어 시계열 소스 (SteamCharts)
type TimeseriesSource interface {
	FetchHistory(ctx context.Context, appIDs []int) ([]domain.PlayerMonthRecord, []domain.EntityFailure)
}

// DataSink: 머지 산출물을 받아 스토어에 적재하는 적재 단계
type DataSink interface {
	Load(ctx context.Context, dataset *domain.MergedDataset) (*domain.LoadStats, error)
}

// GameLister: 스토어에 이미 존재하는 게임 목록 조회
// 메타데이터 소스를 건너뛰는 증분 실행에서 엔티티 집합의 기준이 된다.
type GameLister interface {
	ListKnownGames(ctx context.Context) ([]*domain.MetadataRecord, error)
}

// JobStore: 실행 리포트와 최신 가격 스냅샷 상태 저장소 (Valkey)
type JobStore interface {
	SaveJobReport(ctx context.Context, report *domain.RunReport) error
	PushRecentJob(ctx context.Context, jobID string) error
	SavePricingSnapshot(ctx context.Context, appID int, snapshot *domain.PricingSnapshot) error
	GetPricingSnapshot(ctx context.Context, appID int) (*domain.PricingSnapshot, error)
}

// RunRequest: 파이프라인 실행 요청
// AppIDs가 비어있으면 전체 디스커버리(풀/메타데이터 실행) 또는
// 스토어에 알려진 게임 전체(증분 실행)가 대상이 된다.
// Force가 true면 캐싱된 가격 스냅샷을 재사용하지 않는다.
type RunRequest struct {
	Mode   domain.RunMode `json:"mode"`
	AppIDs []int          `json:"appids,omitempty"`
	Force  bool           `json:"force,omitempty"`
}

// Orchestrator: 파이프라인 실행 전체를 조율한다.
// 동시에 하나의 실행만 허용하며, 추출 → 머지 → 적재가 모두 성공해야 커밋된다.
type Orchestrator struct {
	metadata   MetadataSource
	pricing    PricingSource
	timeseries TimeseriesSource
	sink       DataSink
	games      GameLister
	jobs       JobStore
	merger     *Merger
	logger     *slog.Logger

	runTimeout     time.Duration
	maxFailureRate float64
	discoveryLimit int

	mu          sync.Mutex
	running     bool
	activeJobID string
	cancelRun   context.CancelFunc
}

// NewOrchestrator: 오케스트레이터를 생성한다.
func NewOrchestrator(
	metadata MetadataSource,
	pricing PricingSource,
	timeseries TimeseriesSource,
	sink DataSink,
	games GameLister,
	jobs JobStore,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		metadata:       metadata,
		pricing:        pricing,
		timeseries:     timeseries,
		sink:           sink,
		games:          games,
		jobs:           jobs,
		merger:         NewMerger(logger),
		logger:         logger,
		runTimeout:     constants.PipelineConfig.RunTimeout,
		maxFailureRate: constants.PipelineConfig.MaxFailureRate,
		discoveryLimit: constants.PipelineConfig.DiscoveryLimit,
	}
}

// Trigger: 실행을 비동기로 시작하고 잡 ID를 반환한다.
// 이미 실행 중이면 RunBusyError를 반환한다. (실행 직렬화)
func (o *Orchestrator) Trigger(ctx context.Context, req RunRequest) (string, error) {
	if !req.Mode.IsValid() {
		return "", errors.NewValidationError("mode", fmt.Sprintf("unknown run mode: %q", req.Mode))
	}

	o.mu.Lock()
	if o.running {
		active := o.activeJobID
		o.mu.Unlock()
		return "", &errors.RunBusyError{ActiveJobID: active}
	}

	jobID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
	o.running = true
	o.activeJobID = jobID
	o.cancelRun = cancel
	o.mu.Unlock()

	report := &domain.RunReport{
		JobID:       jobID,
		Mode:        req.Mode,
		Status:      domain.JobStatusPending,
		RequestedID: req.AppIDs,
		StartedAt:   time.Now().UTC(),
		Sources:     make(map[domain.Source]domain.SourceStats),
	}
	o.saveReport(ctx, report)
	if err := o.jobs.PushRecentJob(ctx, jobID); err != nil {
		o.logger.Warn("Failed to register recent job", slog.Any("error", err))
	}

	go func() {
		defer cancel()
		defer func() {
			o.mu.Lock()
			o.running = false
			o.activeJobID = ""
			o.cancelRun = nil
			o.mu.Unlock()
		}()
		o.execute(runCtx, req, report)
	}()

	return jobID, nil
}

// Run: 실행을 동기로 수행하고 최종 리포트를 반환한다. (CLI 및 테스트용)
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*domain.RunReport, error) {
	if !req.Mode.IsValid() {
		return nil, errors.NewValidationError("mode", fmt.Sprintf("unknown run mode: %q", req.Mode))
	}

	o.mu.Lock()
	if o.running {
		active := o.activeJobID
		o.mu.Unlock()
		return nil, &errors.RunBusyError{ActiveJobID: active}
	}

	jobID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	o.running = true
	o.activeJobID = jobID
	o.cancelRun = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.activeJobID = ""
		o.cancelRun = nil
		o.mu.Unlock()
	}()

	report := &domain.RunReport{
		JobID:       jobID,
		Mode:        req.Mode,
		Status:      domain.JobStatusPending,
		RequestedID: req.AppIDs,
		StartedAt:   time.Now().UTC(),
		Sources:     make(map[domain.Source]domain.SourceStats),
	}
	o.saveReport(ctx, report)
	if err := o.jobs.PushRecentJob(ctx, jobID); err != nil {
		o.logger.Warn("Failed to register recent job", slog.Any("error", err))
	}

	o.execute(runCtx, req, report)
	return report, nil
}

// Cancel: 진행 중인 실행을 취소한다. 실행 중이 아니면 false를 반환한다.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running || o.cancelRun == nil {
		return false
	}
	o.cancelRun()
	return true
}

// ActiveJobID: 현재 실행 중인 잡 ID를 반환한다. 없으면 빈 문자열이다.
func (o *Orchestrator) ActiveJobID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeJobID
}

// execute: 추출 → 머지 → 적재를 수행하고 리포트를 종결 상태로 저장한다.
func (o *Orchestrator) execute(ctx context.Context, req RunRequest, report *domain.RunReport) {
	report.Status = domain.JobStatusRunning
	o.saveReport(ctx, report)

	o.logger.Info("Pipeline run started",
		slog.String("job_id", report.JobID),
		slog.String("mode", req.Mode.String()),
		slog.Int("requested_appids", len(req.AppIDs)),
	)

	metadata, err := o.resolveEntities(ctx, req, report)
	if err != nil {
		o.finish(ctx, report, statusForError(ctx, err), err)
		return
	}
	if len(metadata) == 0 {
		o.finish(ctx, report, domain.JobStatusFailed, fmt.Errorf("no games to process"))
		return
	}

	appIDs := make([]int, 0, len(metadata))
	for _, meta := range metadata {
		appIDs = append(appIDs, meta.AppID)
	}

	// 가격/시계열 소스는 독립적이므로 동시에 수집한다.
	// 각 소스의 거버너가 소스별 동시성(1)과 간격을 따로 보장한다.
	var (
		pricingRecords     []*domain.PricingRecord
		pricingFailures    []domain.EntityFailure
		timeseriesRecords  []domain.PlayerMonthRecord
		timeseriesFailures []domain.EntityFailure
	)

	runPricing := req.Mode.Includes(domain.SourceSteamStore)
	runTimeseries := req.Mode.Includes(domain.SourceSteamCharts)

	p := pool.New().WithMaxGoroutines(2)
	if runPricing {
		p.Go(func() {
			pricingRecords, pricingFailures = o.pricing.FetchPricing(ctx, appIDs)
		})
	}
	if runTimeseries {
		p.Go(func() {
			timeseriesRecords, timeseriesFailures = o.timeseries.FetchHistory(ctx, appIDs)
		})
	}
	p.Wait()

	if runPricing {
		report.Sources[domain.SourceSteamStore] = domain.SourceStats{
			Records:  len(pricingRecords),
			Failures: pricingFailures,
		}
	}
	if runTimeseries {
		report.Sources[domain.SourceSteamCharts] = domain.SourceStats{
			Records:  len(timeseriesRecords),
			Failures: timeseriesFailures,
		}
	}

	if ctx.Err() != nil {
		o.finish(ctx, report, statusForError(ctx, ctx.Err()), ctx.Err())
		return
	}

	if err := o.checkFailureRate(len(appIDs), req.Mode, report); err != nil {
		o.finish(ctx, report, domain.JobStatusFailed, err)
		return
	}

	now := time.Now().UTC()
	opts := MergeOptions{}
	if runPricing {
		opts.SnapshotYear = now.Year()
		opts.SnapshotMonth = int(now.Month())
		// 증분 실행 간 재사용을 위해 최신 스냅샷을 캐싱한다.
		for _, rec := range pricingRecords {
			snapshot := rec.Snapshot
			if err := o.jobs.SavePricingSnapshot(ctx, rec.AppID, &snapshot); err != nil {
				o.logger.Warn("Failed to cache pricing snapshot",
					slog.Int("appid", rec.AppID), slog.Any("error", err))
			}
		}
	}

	// 시계열 전용 실행은 캐싱된 최신 가격 스냅샷으로 팩트의 가격 필드를 채운다.
	if runTimeseries && !runPricing && !req.Force {
		opts.CachedSnapshots = o.loadCachedSnapshots(ctx, appIDs)
	}

	dataset := o.merger.Merge(metadata, pricingRecords, timeseriesRecords, opts)
	report.Merged = dataset.Counts()

	stats, err := o.sink.Load(ctx, dataset)
	if err != nil {
		o.finish(ctx, report, statusForError(ctx, err), err)
		return
	}
	report.Load = *stats

	o.finish(ctx, report, domain.JobStatusCompleted, nil)
}

// resolveEntities: 실행 모드에 따라 대상 게임 집합과 머지 기준 메타데이터를 결정한다.
// 메타데이터 소스가 포함되지 않은 실행은 스토어에 이미 있는 게임만 대상으로 하며,
// 새 게임을 만들지 않는다.
func (o *Orchestrator) resolveEntities(ctx context.Context, req RunRequest, report *domain.RunReport) ([]*domain.MetadataRecord, error) {
	// 같은 appid가 중복 요청돼도 한 번만 수집한다.
	requestedIDs := util.UniqueInts(req.AppIDs)

	if req.Mode.Includes(domain.SourceSteamSpy) {
		if len(requestedIDs) > 0 {
			records, failures := o.metadata.FetchDetails(ctx, requestedIDs)
			report.Sources[domain.SourceSteamSpy] = domain.SourceStats{
				Records:  len(records),
				Failures: failures,
			}
			return records, ctx.Err()
		}

		records, failures, err := o.metadata.DiscoverAll(ctx, o.discoveryLimit)
		if err != nil {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		report.Sources[domain.SourceSteamSpy] = domain.SourceStats{
			Records:  len(records),
			Failures: failures,
		}
		return records, nil
	}

	known, err := o.games.ListKnownGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list known games: %w", err)
	}

	if len(requestedIDs) == 0 {
		return known, nil
	}

	requested := make(map[int]struct{}, len(requestedIDs))
	for _, appID := range requestedIDs {
		requested[appID] = struct{}{}
	}

	filtered := make([]*domain.MetadataRecord, 0, len(requestedIDs))
	for _, meta := range known {
		if _, ok := requested[meta.AppID]; ok {
			filtered = append(filtered, meta)
		}
	}
	return filtered, nil
}

// loadCachedSnapshots: 캐싱된 가격 스냅샷을 조회한다. 미스나 조회 실패는 건너뛴다.
func (o *Orchestrator) loadCachedSnapshots(ctx context.Context, appIDs []int) map[int]*domain.PricingSnapshot {
	cached := make(map[int]*domain.PricingSnapshot)
	for _, appID := range appIDs {
		snapshot, err := o.jobs.GetPricingSnapshot(ctx, appID)
		if err != nil {
			o.logger.Warn("Failed to read cached pricing snapshot",
				slog.Int("appid", appID), slog.Any("error", err))
			continue
		}
		if snapshot != nil {
			cached[appID] = snapshot
		}
	}
	if len(cached) > 0 {
		o.logger.Info("Reusing cached pricing snapshots", slog.Int("count", len(cached)))
	}
	return cached
}

// checkFailureRate: 소스 단계의 엔티티 실패율이 임계치를 넘으면 적재 없이 실행을 중단시킨다.
func (o *Orchestrator) checkFailureRate(entityCount int, mode domain.RunMode, report *domain.RunReport) error {
	attempts := 0
	failures := 0

	for source, stats := range report.Sources {
		if source == domain.SourceSteamSpy {
			attempts += stats.Records + stats.FailureCount()
		} else {
			attempts += entityCount
		}
		failures += stats.FailureCount()
	}

	if attempts == 0 {
		return nil
	}

	rate := float64(failures) / float64(attempts)
	if rate > o.maxFailureRate {
		return fmt.Errorf("source failure rate %.2f exceeds threshold %.2f (%d/%d failed)",
			rate, o.maxFailureRate, failures, attempts)
	}
	return nil
}

// finish: 리포트를 종결 상태로 만들고 저장한다.
func (o *Orchestrator) finish(ctx context.Context, report *domain.RunReport, status domain.JobStatus, runErr error) {
	completed := time.Now().UTC()
	report.Status = status
	report.CompletedAt = &completed
	if runErr != nil {
		report.Error = runErr.Error()
	}

	// 실행 컨텍스트가 취소됐어도 리포트는 저장돼야 한다.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RequestTimeout.APIRequest)
	defer cancel()
	o.saveReport(saveCtx, report)

	level := slog.LevelInfo
	if status != domain.JobStatusCompleted {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "Pipeline run finished",
		slog.String("job_id", report.JobID),
		slog.String("status", status.String()),
		slog.Duration("duration", report.Duration()),
		slog.String("error", report.Error),
	)
}

func (o *Orchestrator) saveReport(ctx context.Context, report *domain.RunReport) {
	if err := o.jobs.SaveJobReport(ctx, report); err != nil {
		o.logger.Error("Failed to save job report",
			slog.String("job_id", report.JobID),
			slog.Any("error", err),
		)
	}
}

func statusForError(ctx context.Context, err error) domain.JobStatus {
	if ctx.Err() == context.Canceled || err == context.Canceled {
		return domain.JobStatusCancelled
	}
	return domain.JobStatusFailed
}
