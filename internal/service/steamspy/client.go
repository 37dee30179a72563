// Package steamspy: SteamSpy API 클라이언트를 제공한다.
// 게임 디스커버리(/all)와 메타데이터 상세(appdetails)를 담당하며,
// 엔드포인트별로 다른 호출 간격 정책을 따른다.
package steamspy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"context"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/fetch"
	"github.com/kapu/steam-analytics-etl-go/internal/service/governor"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// 거버너에 등록되는 엔드포인트 이름.
const (
	EndpointAll    = "all"
	EndpointDetail = "appdetails"
)

// Client: SteamSpy API 클라이언트
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	governor   *governor.Governor
	executor   *fetch.Executor
	logger     *slog.Logger
}

// NewClient: SteamSpy 클라이언트를 생성한다.
func NewClient(httpClient *http.Client, baseURL, userAgent string, gov *governor.Governor, exec *fetch.Executor, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		governor:   gov,
		executor:   exec,
		logger:     logger,
	}
}

// flexInt: SteamSpy가 숫자를 문자열로도 내려주므로 둘 다 수용한다.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		parsed, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		v = int64(parsed)
	}
	*f = flexInt(v)
	return nil
}

// rawGame: SteamSpy 응답 페이로드
// tags 필드는 게임에 따라 객체({태그: 투표수}) 또는 빈 배열로 내려온다.
type rawGame struct {
	AppID        int             `json:"appid"`
	Name         string          `json:"name"`
	Developer    string          `json:"developer"`
	Publisher    string          `json:"publisher"`
	Positive     int             `json:"positive"`
	Negative     int             `json:"negative"`
	Owners       string          `json:"owners"`
	Price        flexInt         `json:"price"`
	InitialPrice flexInt         `json:"initialprice"`
	Discount     flexInt         `json:"discount"`
	Tags         json.RawMessage `json:"tags"`
	Genre        string          `json:"genre"`
}

func (r rawGame) tagNames() []string {
	if len(r.Tags) == 0 {
		return nil
	}

	var tagVotes map[string]int
	if err := json.Unmarshal(r.Tags, &tagVotes); err != nil {
		// 태그가 없는 게임은 빈 배열로 내려온다.
		return nil
	}

	names := make([]string, 0, len(tagVotes))
	for name := range tagVotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize: SteamSpy 페이로드를 메타데이터 레코드로 정규화한다.
// 이름이 비어있으면 존재하지 않는 앱으로 취급한다.
func normalize(raw rawGame) (*domain.MetadataRecord, error) {
	if raw.Name == "" {
		return nil, errors.NewParseError(domain.SourceSteamSpy.String(), raw.AppID, fmt.Errorf("empty name"))
	}

	ownersMin, ownersMax := util.ParseOwnersRange(raw.Owners)

	record := &domain.MetadataRecord{
		AppID:           raw.AppID,
		Name:            raw.Name,
		Developer:       raw.Developer,
		Publisher:       raw.Publisher,
		OwnersMin:       ownersMin,
		OwnersMax:       ownersMax,
		PositiveReviews: raw.Positive,
		NegativeReviews: raw.Negative,
		Tags:            raw.tagNames(),
		Genres:          util.SplitCSVSet(raw.Genre),
	}

	// SteamSpy 가격은 센트 단위다. 상점 데이터가 없을 때의 폴백으로만 쓰인다.
	// 할인율은 [0, 100] 범위를 벗어난 값이 내려와도 범위 안으로 제한한다.
	if raw.Price > 0 || raw.InitialPrice > 0 {
		discount := util.ClampFloat(float64(raw.Discount), 0, 100)
		record.Pricing = &domain.PricingSnapshot{
			CurrentPrice:     util.CentsToDollars(int64(raw.Price)),
			OriginalPrice:    util.CentsToDollars(int64(raw.InitialPrice)),
			DiscountPct:      discount,
			IsDiscountActive: discount > 0,
		}
	}

	return record, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	release, err := c.governor.Acquire(ctx, endpoint)
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
		return nil, errors.NewAPIError(domain.SourceSteamSpy.String(), endpoint, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewAPIError(domain.SourceSteamSpy.String(), endpoint, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError(domain.SourceSteamSpy.String(), endpoint, resp.StatusCode, nil)
	}

	return body, nil
}

// DiscoverAll: /all 엔드포인트로 전체 게임 목록을 조회하고 정규화한다.
// limit이 0보다 크면 appid 오름차순으로 상위 limit개만 반환한다.
func (c *Client) DiscoverAll(ctx context.Context, limit int) ([]*domain.MetadataRecord, []domain.EntityFailure, error) {
	c.logger.Info("Fetching all games from SteamSpy (60s rate limit applies)")

	params := url.Values{}
	params.Set("request", "all")

	body, err := fetch.Do(ctx, c.executor, EndpointAll, func(ctx context.Context) ([]byte, error) {
		return c.fetchJSON(ctx, EndpointAll, params)
	})
	if err != nil {
		return nil, nil, err
	}

	var payload map[string]rawGame
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, errors.NewParseError(domain.SourceSteamSpy.String(), 0, err)
	}

	// appid 오름차순으로 정렬해 결정적인 처리 순서를 보장한다.
	appIDs := make([]int, 0, len(payload))
	byID := make(map[int]rawGame, len(payload))
	for key, raw := range payload {
		appID, convErr := strconv.Atoi(key)
		if convErr != nil {
			continue
		}
		raw.AppID = appID
		appIDs = append(appIDs, appID)
		byID[appID] = raw
	}
	sort.Ints(appIDs)

	if limit > 0 && len(appIDs) > limit {
		appIDs = appIDs[:limit]
	}

	records := make([]*domain.MetadataRecord, 0, len(appIDs))
	failures := make([]domain.EntityFailure, 0)
	for _, appID := range appIDs {
		record, normErr := normalize(byID[appID])
		if normErr != nil {
			failures = append(failures, domain.EntityFailure{
				AppID:     appID,
				Source:    domain.SourceSteamSpy,
				Reason:    normErr.Error(),
				Permanent: true,
			})
			continue
		}
		records = append(records, record)
	}

	c.logger.Info("SteamSpy discovery complete",
		slog.Int("games", len(records)),
		slog.Int("failures", len(failures)),
	)
	return records, failures, nil
}

// FetchDetails: appdetails 엔드포인트로 지정된 앱들의 메타데이터를 조회한다.
// 엔티티 단위로 실패를 격리하며, 한 앱의 실패가 배치를 중단시키지 않는다.
func (c *Client) FetchDetails(ctx context.Context, appIDs []int) ([]*domain.MetadataRecord, []domain.EntityFailure) {
	records := make([]*domain.MetadataRecord, 0, len(appIDs))
	failures := make([]domain.EntityFailure, 0)

	for _, appID := range appIDs {
		if ctx.Err() != nil {
			break
		}

		record, err := c.fetchDetail(ctx, appID)
		if err != nil {
			c.logger.Warn("SteamSpy detail fetch failed",
				slog.Int("appid", appID),
				slog.Any("error", err),
			)
			failures = append(failures, domain.EntityFailure{
				AppID:     appID,
				Source:    domain.SourceSteamSpy,
				Reason:    err.Error(),
				Permanent: fetch.IsPermanent(err),
			})
			continue
		}
		records = append(records, record)
	}

	return records, failures
}

func (c *Client) fetchDetail(ctx context.Context, appID int) (*domain.MetadataRecord, error) {
	params := url.Values{}
	params.Set("request", "appdetails")
	params.Set("appid", strconv.Itoa(appID))

	body, err := fetch.Do(ctx, c.executor, EndpointDetail, func(ctx context.Context) ([]byte, error) {
		return c.fetchJSON(ctx, EndpointDetail, params)
	})
	if err != nil {
		return nil, err
	}

	var raw rawGame
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.NewParseError(domain.SourceSteamSpy.String(), appID, err)
	}
	raw.AppID = appID

	return normalize(raw)
}
