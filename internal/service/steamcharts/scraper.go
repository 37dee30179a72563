// Package steamcharts: SteamCharts.com 웹 스크래퍼를 제공한다.
// 게임별 월간 동시접속자 히스토리 테이블을 파싱한다.
package steamcharts

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/fetch"
	"github.com/kapu/steam-analytics-etl-go/internal/service/governor"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// EndpointHistory: 거버너에 등록되는 엔드포인트 이름.
const EndpointHistory = "app_history"

// Scraper: SteamCharts 스크래퍼
// robots.txt를 존중하는 정중한 크롤링 간격을 따른다.
type Scraper struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	governor   *governor.Governor
	executor   *fetch.Executor
	logger     *slog.Logger
}

// NewScraper: SteamCharts 스크래퍼를 생성한다.
func NewScraper(httpClient *http.Client, baseURL, userAgent string, gov *governor.Governor, exec *fetch.Executor, logger *slog.Logger) *Scraper {
	return &Scraper{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		governor:   gov,
		executor:   exec,
		logger:     logger,
	}
}

// FetchHistory: 지정된 앱들의 월간 플레이어 히스토리를 수집한다.
// 앱 단위로 실패를 격리하며, 차트에 없는 게임(404)은 영구 실패로 기록된다.
func (s *Scraper) FetchHistory(ctx context.Context, appIDs []int) ([]domain.PlayerMonthRecord, []domain.EntityFailure) {
	records := make([]domain.PlayerMonthRecord, 0)
	failures := make([]domain.EntityFailure, 0)

	for _, appID := range appIDs {
		if ctx.Err() != nil {
			break
		}

		monthly, err := s.fetchApp(ctx, appID)
		if err != nil {
			s.logger.Warn("SteamCharts fetch failed",
				slog.Int("appid", appID),
				slog.Any("error", err),
			)
			failures = append(failures, domain.EntityFailure{
				AppID:     appID,
				Source:    domain.SourceSteamCharts,
				Reason:    err.Error(),
				Permanent: fetch.IsPermanent(err),
			})
			continue
		}
		records = append(records, monthly...)
	}

	return records, failures
}

func (s *Scraper) fetchApp(ctx context.Context, appID int) ([]domain.PlayerMonthRecord, error) {
	html, err := fetch.Do(ctx, s.executor, EndpointHistory, func(ctx context.Context) (string, error) {
		return s.doRequest(ctx, appID)
	})
	if err != nil {
		return nil, err
	}

	records, err := parseHistoryHTML(appID, html)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Parsed monthly records",
		slog.Int("appid", appID),
		slog.Int("months", len(records)),
	)
	return records, nil
}

func (s *Scraper) doRequest(ctx context.Context, appID int) (string, error) {
	release, err := s.governor.Acquire(ctx, EndpointHistory)
	if err != nil {
		return "", err
	}
	defer release()

	reqURL := fmt.Sprintf("%s/app/%d", s.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errors.NewAPIError(domain.SourceSteamCharts.String(), EndpointHistory, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewAPIError(domain.SourceSteamCharts.String(), EndpointHistory, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewAPIError(domain.SourceSteamCharts.String(), EndpointHistory, resp.StatusCode, err)
	}

	return string(body), nil
}

// parseHistoryHTML: 히스토리 페이지에서 월간 플레이어 테이블을 파싱한다.
// 테이블 형식: Month | Avg. Players | Gain | % Gain | Peak Players
func parseHistoryHTML(appID int, html string) ([]domain.PlayerMonthRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParseError(domain.SourceSteamCharts.String(), appID, err)
	}

	table := doc.Find("table.common-table")
	if table.Length() == 0 {
		return nil, errors.NewParseError(domain.SourceSteamCharts.String(), appID, fmt.Errorf("player count table not found"))
	}

	records := make([]domain.PlayerMonthRecord, 0)
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return // 헤더 행 또는 불완전한 행
		}

		year, month, ok := util.ParseMonthYear(cells.Eq(0).Text())
		if !ok {
			// "Last 30 Days" 같은 비월간 행은 건너뛴다.
			return
		}

		records = append(records, domain.PlayerMonthRecord{
			AppID:       appID,
			Year:        year,
			Month:       month,
			AvgPlayers:  util.ParseThousandsInt(cells.Eq(1).Text(), false),
			PeakPlayers: util.ParseThousandsInt(cells.Eq(4).Text(), false),
			Gain:        util.ParseThousandsInt(cells.Eq(2).Text(), true),
			GainPct:     util.ParsePercent(cells.Eq(3).Text()),
		})
	})

	return records, nil
}
