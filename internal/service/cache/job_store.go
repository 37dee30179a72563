package cache

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

const (
	jobKeyPrefix  = "etl:job:"
	recentJobsKey = "etl:jobs:recent"
)

// SaveJobReport: 잡 실행 리포트를 저장한다.
// 종료 상태의 잡은 보존 기간(JobRetention)이 지나면 만료된다.
func (c *Service) SaveJobReport(ctx context.Context, report *domain.RunReport) error {
	key := jobKeyPrefix + report.JobID

	ttl := time.Duration(0)
	if report.Status.IsTerminal() {
		ttl = constants.PipelineConfig.JobRetention
	}

	if err := c.Set(ctx, key, report, ttl); err != nil {
		return err
	}

	c.logger.Debug("Job report saved",
		slog.String("job_id", report.JobID),
		slog.String("status", report.Status.String()),
	)
	return nil
}

// GetJobReport: 잡 ID로 실행 리포트를 조회한다. 없으면 (nil, nil)을 반환한다.
func (c *Service) GetJobReport(ctx context.Context, jobID string) (*domain.RunReport, error) {
	var report domain.RunReport
	found, err := c.Get(ctx, jobKeyPrefix+jobID, &report)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &report, nil
}

// PushRecentJob: 최근 실행 목록의 맨 앞에 잡 ID를 추가하고 목록 길이를 제한한다.
func (c *Service) PushRecentJob(ctx context.Context, jobID string) error {
	limit := int64(constants.PipelineConfig.RecentJobsLimit)

	if err := c.client.Do(ctx, c.client.B().Lpush().Key(recentJobsKey).Element(jobID).Build()).Error(); err != nil {
		c.logger.Error("Failed to push recent job", slog.String("job_id", jobID), slog.Any("error", err))
		return errors.NewCacheError("lpush", recentJobsKey, err)
	}

	if err := c.client.Do(ctx, c.client.B().Ltrim().Key(recentJobsKey).Start(0).Stop(limit-1).Build()).Error(); err != nil {
		return errors.NewCacheError("ltrim", recentJobsKey, err)
	}

	return nil
}

// GetRecentJobs: 최근 실행된 잡들의 리포트를 최신순으로 조회한다.
// 보존 기간이 지나 만료된 잡은 건너뛴다.
func (c *Service) GetRecentJobs(ctx context.Context) ([]*domain.RunReport, error) {
	resp := c.client.Do(ctx, c.client.B().Lrange().Key(recentJobsKey).Start(0).Stop(-1).Build())
	if resp.Error() != nil {
		c.logger.Error("Failed to list recent jobs", slog.Any("error", resp.Error()))
		return nil, errors.NewCacheError("lrange", recentJobsKey, resp.Error())
	}

	jobIDs, err := resp.AsStrSlice()
	if err != nil {
		return nil, errors.NewCacheError("lrange", recentJobsKey, err)
	}

	reports := make([]*domain.RunReport, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		report, err := c.GetJobReport(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if report != nil {
			reports = append(reports, report)
		}
	}

	return reports, nil
}

// SavePricingSnapshot: 앱의 최신 가격 스냅샷을 캐싱한다. (증분 실행 간 재사용)
func (c *Service) SavePricingSnapshot(ctx context.Context, appID int, snapshot *domain.PricingSnapshot) error {
	key := fmt.Sprintf("etl:pricing:%d", appID)
	return c.Set(ctx, key, snapshot, constants.PipelineConfig.SnapshotCacheTTL)
}

// GetPricingSnapshot: 캐싱된 가격 스냅샷을 조회한다. 캐시 미스면 (nil, nil)을 반환한다.
func (c *Service) GetPricingSnapshot(ctx context.Context, appID int) (*domain.PricingSnapshot, error) {
	var snapshot domain.PricingSnapshot
	found, err := c.Get(ctx, fmt.Sprintf("etl:pricing:%d", appID), &snapshot)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snapshot, nil
}
