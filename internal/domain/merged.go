package domain

import "time"

// GameRecord: 머지 결과로 만들어진 dim_game 적재용 레코드
type GameRecord struct {
	AppID           int
	Name            string
	Developer       string
	Publisher       string
	ReleaseDate     *time.Time
	IsFree          bool
	OwnersMin       *int64
	OwnersMax       *int64
	PositiveReviews int
	NegativeReviews int
}

// FactRecord: (게임, 월) 단위 fact_player_price 적재용 레코드
// 플레이어 지표는 SteamCharts에서, 가격 스냅샷은 Steam Store(폴백: SteamSpy)에서 온다.
type FactRecord struct {
	AppID            int
	Year             int
	Month            int
	AvgPlayers       *int
	PeakPlayers      *int
	GainPct          *float64
	AvgPlayersMonth  *int
	PeakPlayersMonth *int
	CurrentPrice     *float64
	OriginalPrice    *float64
	DiscountPct      *float64
	IsDiscountActive bool
}

// HasPlayerMetrics: 플레이어 지표가 하나라도 채워져 있는지 확인한다.
// 동일 (appid, 월) 충돌 시 지표가 있는 행을 우선하기 위해 사용된다.
func (f FactRecord) HasPlayerMetrics() bool {
	return f.AvgPlayers != nil || f.PeakPlayers != nil || f.GainPct != nil
}

// MonthKey: (appid, 연, 월) 자연 키 문자열을 반환한다.
func (f FactRecord) MonthKey() string {
	return FactKey(f.AppID, f.Year, f.Month)
}

// BridgeRecord: (게임, 태그) 다대다 관계 레코드
type BridgeRecord struct {
	AppID   int
	TagName string
}

// MergedDataset: 머지 엔진의 최종 산출물
// 각 레코드 집합은 자연 키 기준으로 내부 중복이 제거된 상태다.
type MergedDataset struct {
	Games   []GameRecord
	Genres  []string
	Tags    []string
	Facts   []FactRecord
	Bridges []BridgeRecord
}

// Counts: 엔티티 타입별 머지 결과 수를 반환한다. (리포트용)
func (d *MergedDataset) Counts() MergeCounts {
	return MergeCounts{
		Games:   len(d.Games),
		Genres:  len(d.Genres),
		Tags:    len(d.Tags),
		Facts:   len(d.Facts),
		Bridges: len(d.Bridges),
	}
}

// MergeCounts: 머지 산출물 엔티티 타입별 개수
type MergeCounts struct {
	Games   int `json:"games"`
	Genres  int `json:"genres"`
	Tags    int `json:"tags"`
	Facts   int `json:"facts"`
	Bridges int `json:"bridges"`
}
