package domain

import "time"

// Source 는 타입이다.
type Source string

// Source 상수 목록.
const (
	// SourceSteamSpy: 게임 메타데이터 및 디스커버리 소스
	SourceSteamSpy Source = "steamspy"
	// SourceSteamCharts: 월별 동시접속자 시계열 소스
	SourceSteamCharts Source = "steamcharts"
	// SourceSteamStore: 가격/할인 정보 소스
	SourceSteamStore Source = "steam_store"
)

func (s Source) String() string {
	return string(s)
}

// IsValid 는 동작을 수행한다.
func (s Source) IsValid() bool {
	switch s {
	case SourceSteamSpy, SourceSteamCharts, SourceSteamStore:
		return true
	default:
		return false
	}
}

// EntityFailure: 단일 게임(appid)에 대한 소스 획득 실패 기록
// 실행 전체를 중단시키지 않고 리포트로 수집된다.
type EntityFailure struct {
	AppID     int    `json:"appid"`
	Source    Source `json:"source"`
	Reason    string `json:"reason"`
	Permanent bool   `json:"permanent"` // true면 재시도 없이 즉시 실패 처리된 경우
}

// PricingSnapshot: 특정 시점의 가격 상태 (통화 단위는 달러, 센트 아님)
type PricingSnapshot struct {
	CurrentPrice     float64 `json:"current_price"`
	OriginalPrice    float64 `json:"original_price"`
	DiscountPct      float64 `json:"discount_pct"`
	IsDiscountActive bool    `json:"is_discount_active"`
}

// MetadataRecord: SteamSpy에서 정규화된 게임 메타데이터 레코드
// Pricing은 Steam Store 응답이 없을 때만 사용되는 폴백 스냅샷이다.
type MetadataRecord struct {
	AppID           int
	Name            string
	Developer       string
	Publisher       string
	OwnersMin       *int64
	OwnersMax       *int64
	PositiveReviews int
	NegativeReviews int
	Tags            []string // 태그 가중치 맵에서 이름만 추출한 집합
	Genres          []string // CSV에서 분리/중복 제거된 장르 집합
	Pricing         *PricingSnapshot
}

// PricingRecord: Steam Store에서 정규화된 가격/출시 정보 레코드
// Developer/Publisher/ReleaseDate는 비어있을 수 있으며, 비어있으면 메타데이터 값을 유지한다.
type PricingRecord struct {
	AppID       int
	Name        string
	IsFree      bool
	Snapshot    PricingSnapshot
	ReleaseDate *time.Time
	Developer   string
	Publisher   string
}

// PlayerMonthRecord: SteamCharts에서 정규화된 (게임, 월) 단위 동시접속자 레코드
type PlayerMonthRecord struct {
	AppID       int
	Year        int
	Month       int
	AvgPlayers  *int
	PeakPlayers *int
	Gain        *int
	GainPct     *float64
}
