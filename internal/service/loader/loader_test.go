package loader

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/model"
	"github.com/kapu/steam-analytics-etl-go/internal/service/database"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(
		&model.DimDate{}, &model.DimGenre{}, &model.DimTag{},
		&model.DimGame{}, &model.FactPlayerPrice{}, &model.BridgeGameTag{},
	); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calendar := database.NewCalendarService(db, logger)
	return NewLoader(db, calendar, logger)
}

func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }

func testDataset() *domain.MergedDataset {
	return &domain.MergedDataset{
		Games: []domain.GameRecord{
			{AppID: 730, Name: "Counter-Strike 2", Developer: "Valve", Publisher: "Valve", IsFree: true},
			{AppID: 292030, Name: "The Witcher 3: Wild Hunt", Developer: "CD PROJEKT RED", Publisher: "CD PROJEKT RED"},
		},
		Genres: []string{"Action", "RPG"},
		Tags:   []string{"FPS", "RPG", "Shooter"},
		Facts: []domain.FactRecord{
			{AppID: 730, Year: 2024, Month: 1, AvgPlayers: intp(854801), PeakPlayers: intp(1458374), AvgPlayersMonth: intp(854801), PeakPlayersMonth: intp(1458374)},
			{AppID: 292030, Year: 2024, Month: 1, AvgPlayers: intp(50000), CurrentPrice: f64p(9.99), OriginalPrice: f64p(39.99), DiscountPct: f64p(75), IsDiscountActive: true},
		},
		Bridges: []domain.BridgeRecord{
			{AppID: 730, TagName: "FPS"},
			{AppID: 730, TagName: "Shooter"},
			{AppID: 292030, TagName: "RPG"},
		},
	}
}

func TestLoadFullDataset(t *testing.T) {
	loader := newTestLoader(t)

	stats, err := loader.Load(context.Background(), testDataset())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if stats.Games.Inserted != 2 || stats.Games.Updated != 0 {
		t.Fatalf("unexpected game stats: %+v", stats.Games)
	}
	if stats.Genres.Inserted != 2 || stats.Tags.Inserted != 3 {
		t.Fatalf("unexpected dimension stats: genres=%+v tags=%+v", stats.Genres, stats.Tags)
	}
	if stats.Facts.Inserted != 2 || stats.Bridges.Inserted != 3 {
		t.Fatalf("unexpected fact/bridge stats: facts=%+v bridges=%+v", stats.Facts, stats.Bridges)
	}
	if stats.TotalFailed() != 0 || len(stats.Errors) != 0 {
		t.Fatalf("unexpected failures: %+v", stats.Errors)
	}

	var game model.DimGame
	if err := loader.db.Where("appid = ?", 730).First(&game).Error; err != nil {
		t.Fatalf("game query failed: %v", err)
	}
	if !game.IsFree || game.Developer == nil || *game.Developer != "Valve" {
		t.Fatalf("unexpected game row: %+v", game)
	}

	var factCount int64
	loader.db.Model(&model.FactPlayerPrice{}).Count(&factCount)
	if factCount != 2 {
		t.Fatalf("expected 2 facts, got %d", factCount)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	loader := newTestLoader(t)

	if _, err := loader.Load(context.Background(), testDataset()); err != nil {
		t.Fatalf("first load failed: %v", err)
	}

	stats, err := loader.Load(context.Background(), testDataset())
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	// 재실행 시 게임/팩트는 갱신, 차원/브리지는 무시돼야 한다.
	if stats.Games.Inserted != 0 || stats.Games.Updated != 2 {
		t.Fatalf("unexpected game stats on rerun: %+v", stats.Games)
	}
	if stats.Facts.Inserted != 0 || stats.Facts.Updated != 2 {
		t.Fatalf("unexpected fact stats on rerun: %+v", stats.Facts)
	}
	if stats.Genres.Inserted != 0 || stats.Tags.Inserted != 0 || stats.Bridges.Inserted != 0 {
		t.Fatalf("expected no dimension inserts on rerun: %+v", stats)
	}

	var factCount int64
	loader.db.Model(&model.FactPlayerPrice{}).Count(&factCount)
	if factCount != 2 {
		t.Fatalf("expected facts to stay unique, got %d", factCount)
	}

	var bridgeCount int64
	loader.db.Model(&model.BridgeGameTag{}).Count(&bridgeCount)
	if bridgeCount != 3 {
		t.Fatalf("expected bridges to stay unique, got %d", bridgeCount)
	}
}

func TestLoadUpdatesFactMetricsInPlace(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	first := &domain.MergedDataset{
		Games: []domain.GameRecord{{AppID: 730, Name: "Counter-Strike 2"}},
		Facts: []domain.FactRecord{
			{AppID: 730, Year: 2024, Month: 3, CurrentPrice: f64p(14.99), OriginalPrice: f64p(29.99), DiscountPct: f64p(50), IsDiscountActive: true},
		},
	}
	if _, err := loader.Load(ctx, first); err != nil {
		t.Fatalf("first load failed: %v", err)
	}

	var before model.FactPlayerPrice
	if err := loader.db.First(&before).Error; err != nil {
		t.Fatalf("fact query failed: %v", err)
	}

	// 같은 (게임, 월)에 할인율이 바뀐 스냅샷이 들어오면 제자리 갱신된다.
	second := &domain.MergedDataset{
		Games: []domain.GameRecord{{AppID: 730, Name: "Counter-Strike 2"}},
		Facts: []domain.FactRecord{
			{AppID: 730, Year: 2024, Month: 3, AvgPlayers: intp(900000), CurrentPrice: f64p(7.49), OriginalPrice: f64p(29.99), DiscountPct: f64p(75), IsDiscountActive: true},
		},
	}
	stats, err := loader.Load(ctx, second)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if stats.Facts.Updated != 1 {
		t.Fatalf("expected in-place fact update: %+v", stats.Facts)
	}

	var after model.FactPlayerPrice
	if err := loader.db.First(&after).Error; err != nil {
		t.Fatalf("fact query failed: %v", err)
	}
	if after.FactID != before.FactID {
		t.Fatalf("expected same fact_id, got %d != %d", after.FactID, before.FactID)
	}
	if after.DiscountPct == nil || *after.DiscountPct != 75 {
		t.Fatalf("expected discount updated to 75: %+v", after)
	}
	if after.ConcurrentPlayersAvg == nil || *after.ConcurrentPlayersAvg != 900000 {
		t.Fatalf("expected player metric updated: %+v", after)
	}

	var factCount int64
	loader.db.Model(&model.FactPlayerPrice{}).Count(&factCount)
	if factCount != 1 {
		t.Fatalf("expected single fact row, got %d", factCount)
	}
}

func TestLoadIsolatesRecordFailures(t *testing.T) {
	loader := newTestLoader(t)

	// 브리지가 참조하는 태그가 데이터셋에 없음 → 해당 레코드만 실패해야 한다.
	dataset := &domain.MergedDataset{
		Games: []domain.GameRecord{{AppID: 730, Name: "Counter-Strike 2"}},
		Tags:  []string{"FPS"},
		Facts: []domain.FactRecord{
			{AppID: 730, Year: 2024, Month: 1, AvgPlayers: intp(100)},
			{AppID: 111111, Year: 2024, Month: 1, AvgPlayers: intp(50)}, // 게임 집합 밖
		},
		Bridges: []domain.BridgeRecord{
			{AppID: 730, TagName: "FPS"},
			{AppID: 730, TagName: "Unknown Tag"},
		},
	}

	stats, err := loader.Load(context.Background(), dataset)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if stats.Facts.Inserted != 1 || stats.Facts.Failed != 1 {
		t.Fatalf("expected one fact failure isolated: %+v", stats.Facts)
	}
	if stats.Bridges.Inserted != 1 || stats.Bridges.Failed != 1 {
		t.Fatalf("expected one bridge failure isolated: %+v", stats.Bridges)
	}
	if len(stats.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %+v", stats.Errors)
	}
}

func TestLoadNilDataset(t *testing.T) {
	loader := newTestLoader(t)

	if _, err := loader.Load(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil dataset")
	}
}
