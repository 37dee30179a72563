// Package facts: 적재된 Star Schema에 대한 읽기 전용 분석 조회를 제공한다.
package facts

import (
	"context"
	"fmt"

	"log/slog"

	"gorm.io/gorm"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/model"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

const defaultQueryLimit = 1000

// Repository: 팩트/차원 테이블 조회 리포지토리
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRepository: 조회 리포지토리를 생성한다.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// FactQuery: 팩트 조회 필터
// From/To는 (연, 월) 단위의 폐구간이다. 0이면 해당 방향의 제한이 없다.
type FactQuery struct {
	AppIDs    []int
	FromYear  int
	FromMonth int
	ToYear    int
	ToMonth   int
	Limit     int
	Offset    int
}

// Validate 는 동작을 수행한다.
func (q FactQuery) Validate() error {
	if q.FromMonth < 0 || q.FromMonth > 12 || q.ToMonth < 0 || q.ToMonth > 12 {
		return errors.NewValidationError("month", "month must be between 1 and 12")
	}
	if (q.FromYear == 0) != (q.FromMonth == 0) {
		return errors.NewValidationError("from", "from_year and from_month must be set together")
	}
	if (q.ToYear == 0) != (q.ToMonth == 0) {
		return errors.NewValidationError("to", "to_year and to_month must be set together")
	}
	return nil
}

// FactRow: 게임/날짜 차원이 펼쳐진 팩트 조회 결과 행
type FactRow struct {
	AppID             int      `json:"appid" gorm:"column:appid"`
	Name              string   `json:"name"`
	Year              int      `json:"year"`
	Month             int      `json:"month"`
	AvgPlayers        *int     `json:"avg_players" gorm:"column:concurrent_players_avg"`
	PeakPlayers       *int     `json:"peak_players" gorm:"column:concurrent_players_peak"`
	GainPct           *float64 `json:"gain_pct"`
	CurrentPrice      *float64 `json:"current_price"`
	OriginalPrice     *float64 `json:"original_price"`
	DiscountPct       *float64 `json:"discount_pct"`
	IsDiscountActive  bool     `json:"is_discount_active"`
	IsSteamSalePeriod bool     `json:"is_steam_sale_period"`
	SteamSaleName     *string  `json:"steam_sale_name,omitempty"`
}

// ListFacts: 필터 조건에 맞는 팩트를 (appid, 연, 월) 순으로 조회한다.
func (r *Repository) ListFacts(ctx context.Context, query FactQuery) ([]FactRow, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	q := r.db.WithContext(ctx).
		Table("fact_player_price").
		Select(`dim_game.appid, dim_game.name,
			dim_date.year, dim_date.month,
			dim_date.is_steam_sale_period, dim_date.steam_sale_name,
			fact_player_price.concurrent_players_avg,
			fact_player_price.concurrent_players_peak,
			fact_player_price.gain_pct,
			fact_player_price.current_price,
			fact_player_price.original_price,
			fact_player_price.discount_pct,
			fact_player_price.is_discount_active`).
		Joins("JOIN dim_game ON dim_game.game_id = fact_player_price.game_id").
		Joins("JOIN dim_date ON dim_date.date_id = fact_player_price.date_id")

	if len(query.AppIDs) > 0 {
		q = q.Where("dim_game.appid IN ?", query.AppIDs)
	}
	// (연, 월)을 단일 정수로 접어서 범위를 비교한다.
	if query.FromYear > 0 {
		q = q.Where("dim_date.year * 100 + dim_date.month >= ?", query.FromYear*100+query.FromMonth)
	}
	if query.ToYear > 0 {
		q = q.Where("dim_date.year * 100 + dim_date.month <= ?", query.ToYear*100+query.ToMonth)
	}

	var rows []FactRow
	err := q.Order("dim_game.appid, dim_date.year, dim_date.month").
		Limit(limit).
		Offset(query.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}

	return rows, nil
}

// GameRow: 게임 차원 조회 결과 행 (태그 목록 포함)
type GameRow struct {
	AppID           int      `json:"appid" gorm:"column:appid"`
	Name            string   `json:"name"`
	Developer       *string  `json:"developer,omitempty"`
	Publisher       *string  `json:"publisher,omitempty"`
	IsFree          bool     `json:"is_free"`
	OwnersMin       *int64   `json:"owners_min,omitempty" gorm:"column:steamspy_owners_min"`
	OwnersMax       *int64   `json:"owners_max,omitempty" gorm:"column:steamspy_owners_max"`
	PositiveReviews int      `json:"positive_reviews"`
	NegativeReviews int      `json:"negative_reviews"`
	Tags            []string `json:"tags" gorm:"-"`
}

// ListGames: 게임 차원을 appid 순으로 조회한다. 태그는 브리지를 따라 채워진다.
func (r *Repository) ListGames(ctx context.Context, appIDs []int) ([]GameRow, error) {
	q := r.db.WithContext(ctx).Model(&model.DimGame{})
	if len(appIDs) > 0 {
		q = q.Where("appid IN ?", appIDs)
	}

	var rows []GameRow
	if err := q.Order("appid").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}

	if err := r.attachTags(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) attachTags(ctx context.Context, rows []GameRow) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AppID)
	}

	var tagged []struct {
		AppID   int `gorm:"column:appid"`
		TagName string
	}
	err := r.db.WithContext(ctx).
		Table("bridge_game_tag").
		Select("dim_game.appid, dim_tag.tag_name").
		Joins("JOIN dim_game ON dim_game.game_id = bridge_game_tag.game_id").
		Joins("JOIN dim_tag ON dim_tag.tag_id = bridge_game_tag.tag_id").
		Where("dim_game.appid IN ?", ids).
		Order("dim_game.appid, dim_tag.tag_name").
		Scan(&tagged).Error
	if err != nil {
		return fmt.Errorf("failed to query game tags: %w", err)
	}

	byApp := make(map[int][]string)
	for _, t := range tagged {
		byApp[t.AppID] = append(byApp[t.AppID], t.TagName)
	}
	for i := range rows {
		rows[i].Tags = byApp[rows[i].AppID]
	}
	return nil
}

// ListKnownGames: 스토어에 존재하는 모든 게임을 머지 기준 메타데이터 형태로 반환한다.
// 메타데이터 소스를 건너뛰는 증분 실행의 엔티티 집합으로 사용된다.
func (r *Repository) ListKnownGames(ctx context.Context) ([]*domain.MetadataRecord, error) {
	var games []model.DimGame
	if err := r.db.WithContext(ctx).Order("appid").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to list known games: %w", err)
	}

	records := make([]*domain.MetadataRecord, 0, len(games))
	for _, game := range games {
		record := &domain.MetadataRecord{
			AppID:           game.AppID,
			Name:            game.Name,
			OwnersMin:       game.SteamspyOwnersMin,
			OwnersMax:       game.SteamspyOwnersMax,
			PositiveReviews: game.PositiveReviews,
			NegativeReviews: game.NegativeReviews,
		}
		if game.Developer != nil {
			record.Developer = *game.Developer
		}
		if game.Publisher != nil {
			record.Publisher = *game.Publisher
		}
		records = append(records, record)
	}

	r.logger.Debug("Known games listed", slog.Int("count", len(records)))
	return records, nil
}

// CountFacts: 저장된 팩트 총 개수를 반환한다. (상태 조회용)
func (r *Repository) CountFacts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.FactPlayerPrice{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return count, nil
}

// CountGames: 저장된 게임 총 개수를 반환한다. (상태 조회용)
func (r *Repository) CountGames(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.DimGame{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}
