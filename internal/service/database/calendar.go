package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/model"
)

// CalendarService: 달력 차원(dim_date) 시딩 및 월 단위 date_id 조회를 담당한다.
// 팩트가 월 단위 해상도이므로 모든 날짜 레코드는 해당 월의 1일로 저장된다.
type CalendarService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewCalendarService: 달력 서비스 인스턴스를 생성한다.
func NewCalendarService(db *gorm.DB, logger *slog.Logger) *CalendarService {
	return &CalendarService{db: db, logger: logger}
}

// steamSaleForMonth: 해당 월이 Steam 시즌 세일 기간에 해당하는지 판단한다.
// 월 단위 해상도이므로 세일이 걸치는 달 전체를 세일 기간으로 표시한다.
func steamSaleForMonth(year, month int) (bool, string) {
	switch month {
	case 3:
		// 봄 세일은 2023년부터 시작됐다.
		if year >= 2023 {
			return true, "Spring Sale"
		}
	case 6, 7:
		return true, "Summer Sale"
	case 11:
		return true, "Autumn Sale"
	case 12:
		return true, "Winter Sale"
	}
	return false, ""
}

// SeedCalendar: 설정된 연도 범위의 월별 날짜 레코드를 미리 생성한다.
// 이미 존재하는 날짜는 건드리지 않는다. (멱등)
func (cs *CalendarService) SeedCalendar() error {
	startYear := constants.CalendarConfig.SeedStartYear
	endYear := constants.CalendarConfig.SeedEndYear

	rows := make([]model.DimDate, 0, (endYear-startYear+1)*12)
	for year := startYear; year <= endYear; year++ {
		for month := 1; month <= 12; month++ {
			rows = append(rows, buildMonthDate(year, month))
		}
	}

	result := cs.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "full_date"}},
		DoNothing: true,
	}).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("failed to seed calendar: %w", result.Error)
	}

	cs.logger.Info("Calendar seeded",
		slog.Int("start_year", startYear),
		slog.Int("end_year", endYear),
		slog.Int64("inserted", result.RowsAffected),
	)
	return nil
}

// EnsureMonthDate: (연, 월)에 해당하는 date_id를 조회하고, 없으면 생성한다.
func (cs *CalendarService) EnsureMonthDate(year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("invalid month: %d", month)
	}

	fullDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)

	var existing model.DimDate
	err := cs.db.Where("full_date = ?", datatypes.Date(fullDate)).First(&existing).Error
	if err == nil {
		return existing.DateID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, fmt.Errorf("failed to query date %d-%02d: %w", year, month, err)
	}

	row := buildMonthDate(year, month)
	if err := cs.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "full_date"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to create date %d-%02d: %w", year, month, err)
	}

	// DoNothing으로 스킵됐을 수 있으므로 ID는 다시 조회한다.
	if row.DateID == 0 {
		if err := cs.db.Where("full_date = ?", datatypes.Date(fullDate)).First(&row).Error; err != nil {
			return 0, fmt.Errorf("failed to reload date %d-%02d: %w", year, month, err)
		}
	}

	return row.DateID, nil
}

func buildMonthDate(year, month int) model.DimDate {
	fullDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)

	// 월요일=0 기준 요일 인덱스
	dayOfWeek := (int(fullDate.Weekday()) + 6) % 7
	isSale, saleName := steamSaleForMonth(year, month)

	row := model.DimDate{
		FullDate:          datatypes.Date(fullDate),
		Year:              year,
		Quarter:           (month-1)/3 + 1,
		Month:             month,
		Day:               1,
		DayOfWeek:         dayOfWeek,
		IsWeekend:         dayOfWeek >= 5,
		IsSteamSalePeriod: isSale,
	}
	if saleName != "" {
		row.SteamSaleName = &saleName
	}
	return row
}
