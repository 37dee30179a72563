// Package loader: 머지된 데이터셋을 분석 스토어에 멱등 upsert로 적재한다.
// 차원(장르/태그/게임/날짜) → 팩트 → 브리지 순의 참조 의존 순서를 지킨다.
package loader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/model"
	"github.com/kapu/steam-analytics-etl-go/internal/service/database"
	"github.com/kapu/steam-analytics-etl-go/pkg/errors"
)

// Loader: 적재 단계 구현체
// 레코드 단위로 실패를 격리한다. 한 레코드의 제약 위반이 배치 전체를 중단시키지 않는다.
type Loader struct {
	db       *gorm.DB
	calendar *database.CalendarService
	logger   *slog.Logger
}

// NewLoader: 로더를 생성한다.
func NewLoader(db *gorm.DB, calendar *database.CalendarService, logger *slog.Logger) *Loader {
	return &Loader{
		db:       db,
		calendar: calendar,
		logger:   logger,
	}
}

// Load: 데이터셋 전체를 적재하고 테이블별 통계를 반환한다.
// 게임 upsert에 실패한 appid의 팩트/브리지는 함께 건너뛰고 실패로 기록된다.
func (l *Loader) Load(ctx context.Context, dataset *domain.MergedDataset) (*domain.LoadStats, error) {
	if dataset == nil {
		return nil, errors.NewValidationError("dataset", "dataset is nil")
	}

	stats := &domain.LoadStats{}
	db := l.db.WithContext(ctx)

	genreIDs := l.loadGenres(db, dataset.Genres, stats)
	tagIDs := l.loadTags(db, dataset.Tags, stats)
	gameIDs := l.loadGames(db, dataset.Games, stats)
	dateIDs := l.loadDates(db, dataset.Facts, stats)
	l.loadFacts(db, dataset.Facts, gameIDs, dateIDs, stats)
	l.loadBridges(db, dataset.Bridges, gameIDs, tagIDs, stats)

	// 장르 차원은 현재 게임과 직접 연결되지 않지만 분석 쿼리용으로 유지된다.
	_ = genreIDs

	l.logger.Info("Load complete",
		slog.Int("games_inserted", stats.Games.Inserted),
		slog.Int("games_updated", stats.Games.Updated),
		slog.Int("facts_inserted", stats.Facts.Inserted),
		slog.Int("facts_updated", stats.Facts.Updated),
		slog.Int("total_failed", stats.TotalFailed()),
	)

	return stats, nil
}

func (l *Loader) recordFailure(stats *domain.LoadStats, table *domain.TableStats, name, key string, err error) {
	table.Failed++
	loadErr := errors.NewLoadError(name, key, err)
	stats.Errors = append(stats.Errors, loadErr.Error())
	l.logger.Warn("Record load failed",
		slog.String("table", name),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

// loadGenres: 장르 차원을 적재한다. 이름 충돌은 무시한다. (생성 후 불변)
func (l *Loader) loadGenres(db *gorm.DB, genres []string, stats *domain.LoadStats) map[string]int {
	existing := l.existingNames(db, &model.DimGenre{}, "genre_name", genres)

	for _, name := range genres {
		if _, ok := existing[name]; ok {
			continue
		}
		row := model.DimGenre{GenreName: name}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "genre_name"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			l.recordFailure(stats, &stats.Genres, "dim_genre", name, err)
			continue
		}
		stats.Genres.Inserted++
	}

	return l.nameIDs(db, "dim_genre", "genre_id", "genre_name", genres)
}

// loadTags: 태그 차원을 적재한다. 장르와 동일한 규칙을 따른다.
func (l *Loader) loadTags(db *gorm.DB, tags []string, stats *domain.LoadStats) map[string]int {
	existing := l.existingNames(db, &model.DimTag{}, "tag_name", tags)

	for _, name := range tags {
		if _, ok := existing[name]; ok {
			continue
		}
		row := model.DimTag{TagName: name}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag_name"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			l.recordFailure(stats, &stats.Tags, "dim_tag", name, err)
			continue
		}
		stats.Tags.Inserted++
	}

	return l.nameIDs(db, "dim_tag", "tag_id", "tag_name", tags)
}

// loadGames: 게임 차원을 upsert한다. 기존 게임은 권한 필드가 제자리 갱신된다.
func (l *Loader) loadGames(db *gorm.DB, games []domain.GameRecord, stats *domain.LoadStats) map[int]int {
	appIDs := make([]int, 0, len(games))
	for _, game := range games {
		appIDs = append(appIDs, game.AppID)
	}

	existing := make(map[int]struct{})
	if len(appIDs) > 0 {
		var known []int
		if err := db.Model(&model.DimGame{}).Where("appid IN ?", appIDs).Pluck("appid", &known).Error; err != nil {
			l.logger.Warn("Failed to pre-query existing games", slog.Any("error", err))
		}
		for _, appID := range known {
			existing[appID] = struct{}{}
		}
	}

	for _, game := range games {
		row := toGameModel(game)
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "appid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "developer", "publisher", "release_date", "is_free",
				"steamspy_owners_min", "steamspy_owners_max",
				"positive_reviews", "negative_reviews", "updated_at",
			}),
		}).Create(&row).Error
		if err != nil {
			l.recordFailure(stats, &stats.Games, "dim_game", strconv.Itoa(game.AppID), err)
			continue
		}
		if _, ok := existing[game.AppID]; ok {
			stats.Games.Updated++
		} else {
			stats.Games.Inserted++
		}
	}

	return l.gameIDs(db, appIDs)
}

// loadDates: 팩트에 필요한 (연, 월) 조합의 date_id를 확보한다.
func (l *Loader) loadDates(db *gorm.DB, facts []domain.FactRecord, stats *domain.LoadStats) map[string]int {
	months := make(map[string][2]int)
	for _, fact := range facts {
		months[monthKey(fact.Year, fact.Month)] = [2]int{fact.Year, fact.Month}
	}

	existing := l.existingDates(db, months)

	dateIDs := make(map[string]int, len(months))
	for key, ym := range months {
		dateID, err := l.calendar.EnsureMonthDate(ym[0], ym[1])
		if err != nil {
			l.recordFailure(stats, &stats.Dates, "dim_date", key, err)
			continue
		}
		dateIDs[key] = dateID
		if _, ok := existing[key]; !ok {
			stats.Dates.Inserted++
		}
	}

	return dateIDs
}

// loadFacts: (game_id, date_id) 유니크 키 기준으로 팩트를 upsert한다.
// 재실행 시 지표/가격 컬럼만 제자리 갱신되고 fact_id는 유지된다.
func (l *Loader) loadFacts(db *gorm.DB, facts []domain.FactRecord, gameIDs map[int]int, dateIDs map[string]int, stats *domain.LoadStats) {
	existing := l.existingFactPairs(db, facts, gameIDs, dateIDs)

	for _, fact := range facts {
		gameID, ok := gameIDs[fact.AppID]
		if !ok {
			l.recordFailure(stats, &stats.Facts, "fact_player_price", fact.MonthKey(),
				fmt.Errorf("game_id not resolved for appid %d", fact.AppID))
			continue
		}
		dateID, ok := dateIDs[monthKey(fact.Year, fact.Month)]
		if !ok {
			l.recordFailure(stats, &stats.Facts, "fact_player_price", fact.MonthKey(),
				fmt.Errorf("date_id not resolved for %04d-%02d", fact.Year, fact.Month))
			continue
		}

		row := model.FactPlayerPrice{
			GameID:                gameID,
			DateID:                dateID,
			ConcurrentPlayersAvg:  fact.AvgPlayers,
			ConcurrentPlayersPeak: fact.PeakPlayers,
			GainPct:               fact.GainPct,
			AvgPlayersMonth:       fact.AvgPlayersMonth,
			PeakPlayersMonth:      fact.PeakPlayersMonth,
			CurrentPrice:          fact.CurrentPrice,
			OriginalPrice:         fact.OriginalPrice,
			DiscountPct:           fact.DiscountPct,
			IsDiscountActive:      fact.IsDiscountActive,
		}

		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "game_id"}, {Name: "date_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"concurrent_players_avg", "concurrent_players_peak", "gain_pct",
				"avg_players_month", "peak_players_month",
				"current_price", "original_price", "discount_pct", "is_discount_active",
			}),
		}).Create(&row).Error
		if err != nil {
			l.recordFailure(stats, &stats.Facts, "fact_player_price", fact.MonthKey(), err)
			continue
		}

		if _, ok := existing[pairKey(gameID, dateID)]; ok {
			stats.Facts.Updated++
		} else {
			stats.Facts.Inserted++
		}
	}
}

// loadBridges: 게임-태그 브리지를 적재한다. 중복 조합은 무시된다.
func (l *Loader) loadBridges(db *gorm.DB, bridges []domain.BridgeRecord, gameIDs map[int]int, tagIDs map[string]int, stats *domain.LoadStats) {
	for _, bridge := range bridges {
		key := fmt.Sprintf("%d:%s", bridge.AppID, bridge.TagName)

		gameID, ok := gameIDs[bridge.AppID]
		if !ok {
			l.recordFailure(stats, &stats.Bridges, "bridge_game_tag", key,
				fmt.Errorf("game_id not resolved for appid %d", bridge.AppID))
			continue
		}
		tagID, ok := tagIDs[bridge.TagName]
		if !ok {
			l.recordFailure(stats, &stats.Bridges, "bridge_game_tag", key,
				fmt.Errorf("tag_id not resolved for %q", bridge.TagName))
			continue
		}

		row := model.BridgeGameTag{GameID: gameID, TagID: tagID}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			l.recordFailure(stats, &stats.Bridges, "bridge_game_tag", key, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			stats.Bridges.Inserted++
		}
	}
}

func (l *Loader) existingNames(db *gorm.DB, modelPtr interface{}, column string, names []string) map[string]struct{} {
	existing := make(map[string]struct{})
	if len(names) == 0 {
		return existing
	}

	var known []string
	if err := db.Model(modelPtr).Where(column+" IN ?", names).Pluck(column, &known).Error; err != nil {
		l.logger.Warn("Failed to pre-query dimension names", slog.String("column", column), slog.Any("error", err))
		return existing
	}
	for _, name := range known {
		existing[name] = struct{}{}
	}
	return existing
}

func (l *Loader) nameIDs(db *gorm.DB, table, idColumn, nameColumn string, names []string) map[string]int {
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids
	}

	rows := make([]struct {
		ID   int
		Name string
	}, 0, len(names))
	err := db.Table(table).
		Select(idColumn+" AS id, "+nameColumn+" AS name").
		Where(nameColumn+" IN ?", names).
		Scan(&rows).Error
	if err != nil {
		l.logger.Warn("Failed to resolve dimension ids", slog.String("table", table), slog.Any("error", err))
		return ids
	}

	for _, row := range rows {
		ids[row.Name] = row.ID
	}
	return ids
}

func (l *Loader) gameIDs(db *gorm.DB, appIDs []int) map[int]int {
	ids := make(map[int]int, len(appIDs))
	if len(appIDs) == 0 {
		return ids
	}

	var rows []model.DimGame
	if err := db.Select("game_id", "appid").Where("appid IN ?", appIDs).Find(&rows).Error; err != nil {
		l.logger.Warn("Failed to resolve game ids", slog.Any("error", err))
		return ids
	}
	for _, row := range rows {
		ids[row.AppID] = row.GameID
	}
	return ids
}

func (l *Loader) existingDates(db *gorm.DB, months map[string][2]int) map[string]struct{} {
	existing := make(map[string]struct{})
	if len(months) == 0 {
		return existing
	}

	dates := make([]datatypes.Date, 0, len(months))
	for _, ym := range months {
		dates = append(dates, datatypes.Date(time.Date(ym[0], time.Month(ym[1]), 1, 0, 0, 0, 0, time.UTC)))
	}

	var rows []model.DimDate
	if err := db.Select("year", "month").Where("full_date IN ?", dates).Find(&rows).Error; err != nil {
		l.logger.Warn("Failed to pre-query existing dates", slog.Any("error", err))
		return existing
	}
	for _, row := range rows {
		existing[monthKey(row.Year, row.Month)] = struct{}{}
	}
	return existing
}

func (l *Loader) existingFactPairs(db *gorm.DB, facts []domain.FactRecord, gameIDs map[int]int, dateIDs map[string]int) map[string]struct{} {
	existing := make(map[string]struct{})

	ids := make([]int, 0, len(gameIDs))
	for _, gameID := range gameIDs {
		ids = append(ids, gameID)
	}
	if len(ids) == 0 || len(facts) == 0 {
		return existing
	}

	var rows []model.FactPlayerPrice
	if err := db.Select("game_id", "date_id").Where("game_id IN ?", ids).Find(&rows).Error; err != nil {
		l.logger.Warn("Failed to pre-query existing facts", slog.Any("error", err))
		return existing
	}
	for _, row := range rows {
		existing[pairKey(row.GameID, row.DateID)] = struct{}{}
	}
	return existing
}

func toGameModel(game domain.GameRecord) model.DimGame {
	row := model.DimGame{
		AppID:             game.AppID,
		Name:              game.Name,
		IsFree:            game.IsFree,
		SteamspyOwnersMin: game.OwnersMin,
		SteamspyOwnersMax: game.OwnersMax,
		PositiveReviews:   game.PositiveReviews,
		NegativeReviews:   game.NegativeReviews,
		UpdatedAt:         time.Now().UTC(),
	}
	if game.Developer != "" {
		developer := game.Developer
		row.Developer = &developer
	}
	if game.Publisher != "" {
		publisher := game.Publisher
		row.Publisher = &publisher
	}
	if game.ReleaseDate != nil {
		release := datatypes.Date(*game.ReleaseDate)
		row.ReleaseDate = &release
	}
	return row
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func pairKey(gameID, dateID int) string {
	return fmt.Sprintf("%d:%d", gameID, dateID)
}
