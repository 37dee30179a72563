package database

import (
	"io"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kapu/steam-analytics-etl-go/internal/model"
)

func newTestCalendarService(t *testing.T) *CalendarService {
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

	if err := db.AutoMigrate(&model.DimDate{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCalendarService(db, logger)
}

func TestSeedCalendarIsIdempotent(t *testing.T) {
	cs := newTestCalendarService(t)

	if err := cs.SeedCalendar(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var countAfterFirst int64
	cs.db.Model(&model.DimDate{}).Count(&countAfterFirst)
	if countAfterFirst == 0 {
		t.Fatalf("expected seeded rows")
	}

	if err := cs.SeedCalendar(); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var countAfterSecond int64
	cs.db.Model(&model.DimDate{}).Count(&countAfterSecond)
	if countAfterFirst != countAfterSecond {
		t.Fatalf("seed not idempotent: %d != %d", countAfterFirst, countAfterSecond)
	}
}

func TestSeedCalendarMarksSaleMonths(t *testing.T) {
	cs := newTestCalendarService(t)

	if err := cs.SeedCalendar(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var summer model.DimDate
	if err := cs.db.Where("year = ? AND month = ?", 2024, 6).First(&summer).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !summer.IsSteamSalePeriod || summer.SteamSaleName == nil || *summer.SteamSaleName != "Summer Sale" {
		t.Fatalf("expected June 2024 to be Summer Sale, got %+v", summer)
	}

	// 봄 세일은 2023년 이전에는 없었다.
	var earlyMarch model.DimDate
	if err := cs.db.Where("year = ? AND month = ?", 2020, 3).First(&earlyMarch).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if earlyMarch.IsSteamSalePeriod {
		t.Fatalf("expected March 2020 to not be a sale period")
	}

	var spring model.DimDate
	if err := cs.db.Where("year = ? AND month = ?", 2024, 3).First(&spring).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !spring.IsSteamSalePeriod {
		t.Fatalf("expected March 2024 to be Spring Sale")
	}
}

func TestEnsureMonthDate(t *testing.T) {
	cs := newTestCalendarService(t)

	id1, err := cs.EnsureMonthDate(2024, 5)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if id1 == 0 {
		t.Fatalf("expected non-zero date_id")
	}

	id2, err := cs.EnsureMonthDate(2024, 5)
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same date_id for same month: %d != %d", id1, id2)
	}

	var row model.DimDate
	if err := cs.db.First(&row, "date_id = ?", id1).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if row.Year != 2024 || row.Month != 5 || row.Day != 1 {
		t.Fatalf("unexpected date row: %+v", row)
	}
	if row.Quarter != 2 {
		t.Fatalf("expected quarter 2, got %d", row.Quarter)
	}

	if _, err := cs.EnsureMonthDate(2024, 13); err == nil {
		t.Fatalf("expected error for invalid month")
	}
}
