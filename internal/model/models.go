// Package model: 분석 스토어(Star Schema)의 GORM 모델을 정의한다.
// 차원 테이블(dim_*) → 팩트(fact_player_price) → 브리지(bridge_game_tag) 순의
// 참조 의존 관계를 가진다.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// DimDate: 달력 차원 테이블
// 파이프라인 외부에서 미리 채워지는 불변 조회 테이블이다. (Steam 세일 기간 플래그 포함)
type DimDate struct {
	DateID            int            `gorm:"primaryKey;autoIncrement;column:date_id"`
	FullDate          datatypes.Date `gorm:"uniqueIndex;not null;column:full_date"`
	Year              int            `gorm:"not null;column:year"`
	Quarter           int            `gorm:"not null;column:quarter"`
	Month             int            `gorm:"not null;column:month"`
	Day               int            `gorm:"not null;column:day"`
	DayOfWeek         int            `gorm:"not null;column:day_of_week"` // 0=월요일
	IsWeekend         bool           `gorm:"not null;column:is_weekend"`
	IsSteamSalePeriod bool           `gorm:"column:is_steam_sale_period"`
	SteamSaleName     *string        `gorm:"size:100;column:steam_sale_name"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
}

// TableName 는 동작을 수행한다.
func (DimDate) TableName() string { return "dim_date" }

// DimGenre: 장르 차원 테이블 (이름 기준 유니크, 생성 후 불변)
type DimGenre struct {
	GenreID   int       `gorm:"primaryKey;autoIncrement;column:genre_id"`
	GenreName string    `gorm:"uniqueIndex;size:100;not null;column:genre_name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName 는 동작을 수행한다.
func (DimGenre) TableName() string { return "dim_genre" }

// DimTag: 태그 차원 테이블 (이름 기준 유니크, 생성 후 불변)
type DimTag struct {
	TagID     int       `gorm:"primaryKey;autoIncrement;column:tag_id"`
	TagName   string    `gorm:"uniqueIndex;size:100;not null;column:tag_name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName 는 동작을 수행한다.
func (DimTag) TableName() string { return "dim_tag" }

// DimGame: 게임 차원 테이블 (appid 기준 유니크)
// 최초 발견 시 생성되고 이후 실행에서 권한 규칙에 따라 갱신되며, 파이프라인이 삭제하지 않는다.
type DimGame struct {
	GameID            int             `gorm:"primaryKey;autoIncrement;column:game_id"`
	AppID             int             `gorm:"uniqueIndex;not null;column:appid"`
	Name              string          `gorm:"size:500;not null;column:name"`
	Developer         *string         `gorm:"size:500;column:developer"`
	Publisher         *string         `gorm:"size:500;column:publisher"`
	ReleaseDate       *datatypes.Date `gorm:"column:release_date"`
	IsFree            bool            `gorm:"column:is_free"`
	SteamspyOwnersMin *int64          `gorm:"column:steamspy_owners_min"`
	SteamspyOwnersMax *int64          `gorm:"column:steamspy_owners_max"`
	PositiveReviews   int             `gorm:"column:positive_reviews"`
	NegativeReviews   int             `gorm:"column:negative_reviews"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

// TableName 는 동작을 수행한다.
func (DimGame) TableName() string { return "dim_game" }

// FactPlayerPrice: (게임, 월) 단위 플레이어/가격 팩트 테이블
// (game_id, date_id) 조합이 전역 유니크이며, 재실행 시 지표 필드만 제자리 갱신된다.
type FactPlayerPrice struct {
	FactID int `gorm:"primaryKey;autoIncrement;column:fact_id"`
	GameID int `gorm:"not null;uniqueIndex:uq_game_date;index;column:game_id"`
	DateID int `gorm:"not null;uniqueIndex:uq_game_date;index;column:date_id"`

	// 플레이어 지표 (SteamCharts 전담)
	ConcurrentPlayersAvg  *int     `gorm:"column:concurrent_players_avg"`
	ConcurrentPlayersPeak *int     `gorm:"column:concurrent_players_peak"`
	GainPct               *float64 `gorm:"column:gain_pct"`
	AvgPlayersMonth       *int     `gorm:"column:avg_players_month"`
	PeakPlayersMonth      *int     `gorm:"column:peak_players_month"`

	// 가격 지표 (Steam Store 전담, 폴백: SteamSpy)
	CurrentPrice     *float64 `gorm:"column:current_price"`
	OriginalPrice    *float64 `gorm:"column:original_price"`
	DiscountPct      *float64 `gorm:"column:discount_pct"`
	IsDiscountActive bool     `gorm:"column:is_discount_active"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName 는 동작을 수행한다.
func (FactPlayerPrice) TableName() string { return "fact_player_price" }

// BridgeGameTag: 게임-태그 다대다 브리지 테이블
// (game_id, tag_id) 복합 키이며 중복 삽입은 무시되고 삭제되지 않는다.
type BridgeGameTag struct {
	GameID int `gorm:"primaryKey;column:game_id"`
	TagID  int `gorm:"primaryKey;column:tag_id"`
}

// TableName 는 동작을 수행한다.
func (BridgeGameTag) TableName() string { return "bridge_game_tag" }
