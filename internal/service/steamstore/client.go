// Package steamstore: Steam Store appdetails API 클라이언트를 제공한다.
// 가격/할인 정보와 출시일, 개발사/퍼블리셔 메타데이터를 수집한다.
package steamstore

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"context"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/fetch"
	"github.com/kapu/steam-analytics-etl-go/internal/service/governor"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// EndpointAppDetails: 거버너에 등록되는 엔드포인트 이름.
const EndpointAppDetails = "appdetails"

// 개발사/퍼블리셔 컬럼 최대 길이.
const maxNameListLen = 500

// Client: Steam Store API 클라이언트
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	countryCode string
	governor    *governor.Governor
	executor    *fetch.Executor
	logger      *slog.Logger
}

// NewClient: Steam Store 클라이언트를 생성한다.
func NewClient(httpClient *http.Client, baseURL, userAgent, countryCode string, gov *governor.Governor, exec *fetch.Executor, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		userAgent:   userAgent,
		countryCode: countryCode,
		governor:    gov,
		executor:    exec,
		logger:      logger,
	}
}

// 응답 구조: {"<appid>": {"success": bool, "data": {...}}}
type appEnvelope struct {
	Success bool    `json:"success"`
	Data    appData `json:"data"`
}

type appData struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	IsFree        bool           `json:"is_free"`
	Developers    []string       `json:"developers"`
	Publishers    []string       `json:"publishers"`
	PriceOverview *priceOverview `json:"price_overview"`
	ReleaseDate   struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

type priceOverview struct {
	Currency        string `json:"currency"`
	Initial         int64  `json:"initial"`
	Final           int64  `json:"final"`
	DiscountPercent int64  `json:"discount_percent"`
}

// FetchPricing: 지정된 앱들의 가격 정보를 조회한다.
// success=false 응답(상장 폐지 등)은 영구 실패로 기록하고 배치를 계속 진행한다.
func (c *Client) FetchPricing(ctx context.Context, appIDs []int) ([]*domain.PricingRecord, []domain.EntityFailure) {
	records := make([]*domain.PricingRecord, 0, len(appIDs))
	failures := make([]domain.EntityFailure, 0)

	for _, appID := range appIDs {
		if ctx.Err() != nil {
			break
		}

		record, err := c.fetchApp(ctx, appID)
		if err != nil {
			c.logger.Warn("Steam Store fetch failed",
				slog.Int("appid", appID),
				slog.Any("error", err),
			)
			failures = append(failures, domain.EntityFailure{
				AppID:     appID,
				Source:    domain.SourceSteamStore,
				Reason:    err.Error(),
				Permanent: fetch.IsPermanent(err),
			})
			continue
		}
		records = append(records, record)
	}

	return records, failures
}

func (c *Client) fetchApp(ctx context.Context, appID int) (*domain.PricingRecord, error) {
	params := url.Values{}
	params.Set("appids", strconv.Itoa(appID))
	params.Set("cc", c.countryCode)
	params.Set("filters", "price_overview,basic,release_date,developers,publishers")

	body, err := fetch.Do(ctx, c.executor, EndpointAppDetails, func(ctx context.Context) ([]byte, error) {
		return c.doRequest(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	var payload map[string]appEnvelope
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewParseError(domain.SourceSteamStore.String(), appID, err)
	}

	envelope, ok := payload[strconv.Itoa(appID)]
	if !ok {
		return nil, errors.NewParseError(domain.SourceSteamStore.String(), appID, fmt.Errorf("appid missing in response"))
	}
	if !envelope.Success {
		return nil, errors.NewParseError(domain.SourceSteamStore.String(), appID, fmt.Errorf("store returned success=false"))
	}

	return buildRecord(appID, envelope.Data), nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	release, err := c.governor.Acquire(ctx, EndpointAppDetails)
	if err != nil {
		return nil, err
	}
	defer release()

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAPIError(domain.SourceSteamStore.String(), EndpointAppDetails, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewAPIError(domain.SourceSteamStore.String(), EndpointAppDetails, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError(domain.SourceSteamStore.String(), EndpointAppDetails, resp.StatusCode, nil)
	}

	return body, nil
}

// buildRecord: 상점 응답을 가격 레코드로 정규화한다.
// price_overview가 없으면 무료 게임 또는 가격 미공개로 취급하고 0원 스냅샷을 만든다.
func buildRecord(appID int, data appData) *domain.PricingRecord {
	record := &domain.PricingRecord{
		AppID:  appID,
		Name:   data.Name,
		IsFree: data.IsFree,
	}

	// 할인율은 [0, 100] 범위를 벗어난 값이 내려와도 범위 안으로 제한한다.
	if data.PriceOverview != nil {
		discount := util.ClampFloat(float64(data.PriceOverview.DiscountPercent), 0, 100)
		record.Snapshot = domain.PricingSnapshot{
			CurrentPrice:     util.CentsToDollars(data.PriceOverview.Final),
			OriginalPrice:    util.CentsToDollars(data.PriceOverview.Initial),
			DiscountPct:      discount,
			IsDiscountActive: discount > 0,
		}
	}
	// price_overview가 없으면 제로 값 스냅샷 그대로 둔다. (무료 게임 또는 가격 미공개)

	if !data.ReleaseDate.ComingSoon {
		record.ReleaseDate = util.ParseReleaseDate(data.ReleaseDate.Date)
	}

	if len(data.Developers) > 0 {
		record.Developer = util.JoinTruncated(data.Developers, ", ", maxNameListLen)
	}
	if len(data.Publishers) > 0 {
		record.Publisher = util.JoinTruncated(data.Publishers, ", ", maxNameListLen)
	}

	return record
}
