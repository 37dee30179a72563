package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
)

func newTestMerger() *Merger {
	return NewMerger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intp(v int) *int              { return &v }
func i64p(v int64) *int64          { return &v }
func f64p(v float64) *float64      { return &v }
func timep(t time.Time) *time.Time { return &t }

func testMetadata() []*domain.MetadataRecord {
	return []*domain.MetadataRecord{
		{
			AppID:           730,
			Name:            "Counter-Strike 2",
			Developer:       "Valve",
			Publisher:       "Valve",
			OwnersMin:       i64p(50000000),
			OwnersMax:       i64p(100000000),
			PositiveReviews: 1000,
			NegativeReviews: 100,
			Tags:            []string{"FPS", "Shooter"},
			Genres:          []string{"Action", "Free To Play"},
		},
		{
			AppID:     292030,
			Name:      "The Witcher 3: Wild Hunt",
			Developer: "CDPR (steamspy)",
			Publisher: "CDPR (steamspy)",
			Tags:      []string{"RPG"},
			Genres:    []string{"RPG"},
			Pricing: &domain.PricingSnapshot{
				CurrentPrice:     39.99,
				OriginalPrice:    39.99,
				DiscountPct:      0,
				IsDiscountActive: false,
			},
		},
	}
}

func TestMergeAuthorityRules(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()
	release := time.Date(2012, 8, 21, 0, 0, 0, 0, time.UTC)

	pricing := []*domain.PricingRecord{
		{
			AppID:       730,
			Name:        "Counter-Strike 2",
			IsFree:      true,
			ReleaseDate: timep(release),
			Developer:   "Valve, Hidden Path Entertainment",
			Snapshot: domain.PricingSnapshot{
				CurrentPrice:  0,
				OriginalPrice: 0,
			},
		},
	}

	timeseries := []domain.PlayerMonthRecord{
		{AppID: 730, Year: 2024, Month: 1, AvgPlayers: intp(854801), PeakPlayers: intp(1458374), GainPct: f64p(4.21)},
	}

	dataset := merger.Merge(testMetadata(), pricing, timeseries, MergeOptions{})

	if len(dataset.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(dataset.Games))
	}

	cs2 := dataset.Games[0]
	// 상점 값이 있으면 우선한다.
	if !cs2.IsFree {
		t.Fatalf("expected is_free from store")
	}
	if cs2.Developer != "Valve, Hidden Path Entertainment" {
		t.Fatalf("expected developer from store, got %q", cs2.Developer)
	}
	// 상점에 퍼블리셔가 없으면 메타데이터 값을 유지한다.
	if cs2.Publisher != "Valve" {
		t.Fatalf("expected publisher fallback to metadata, got %q", cs2.Publisher)
	}
	if cs2.ReleaseDate == nil || !cs2.ReleaseDate.Equal(release) {
		t.Fatalf("expected release date from store, got %v", cs2.ReleaseDate)
	}
	// 소유자/리뷰는 항상 메타데이터에서 온다.
	if cs2.OwnersMin == nil || *cs2.OwnersMin != 50000000 {
		t.Fatalf("unexpected owners: %v", cs2.OwnersMin)
	}

	// 상점 레코드가 없는 게임은 메타데이터 값 그대로다.
	witcher := dataset.Games[1]
	if witcher.Developer != "CDPR (steamspy)" || witcher.IsFree {
		t.Fatalf("unexpected witcher record: %+v", witcher)
	}
}

func TestMergePlayerMetricsOnlyFromTimeseries(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()

	timeseries := []domain.PlayerMonthRecord{
		{AppID: 730, Year: 2024, Month: 1, AvgPlayers: intp(100), PeakPlayers: intp(200)},
		{AppID: 730, Year: 2023, Month: 12, AvgPlayers: intp(90), PeakPlayers: intp(180)},
	}

	pricing := []*domain.PricingRecord{
		{AppID: 730, Snapshot: domain.PricingSnapshot{CurrentPrice: 14.99, OriginalPrice: 29.99, DiscountPct: 50, IsDiscountActive: true}},
	}

	dataset := merger.Merge(testMetadata(), pricing, timeseries, MergeOptions{})

	facts := factsByApp(dataset.Facts, 730)
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts for appid 730, got %d", len(facts))
	}

	// 최신 가격 스냅샷이 모든 월에 적용된다.
	for _, fact := range facts {
		if fact.CurrentPrice == nil || *fact.CurrentPrice != 14.99 {
			t.Fatalf("expected snapshot on every month: %+v", fact)
		}
		if !fact.IsDiscountActive || *fact.DiscountPct != 50 {
			t.Fatalf("expected active discount on every month: %+v", fact)
		}
	}

	// 플레이어 지표는 시계열이 있는 달에만 존재한다.
	if *facts[0].AvgPlayers != 100 || *facts[1].AvgPlayers != 90 {
		t.Fatalf("unexpected player metrics: %+v", facts)
	}
}

func TestMergeMetadataPricingFallback(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()

	timeseries := []domain.PlayerMonthRecord{
		{AppID: 292030, Year: 2024, Month: 2, AvgPlayers: intp(50000)},
	}

	// 상점 레코드 없음 → SteamSpy 폴백 스냅샷이 적용돼야 한다.
	dataset := merger.Merge(testMetadata(), nil, timeseries, MergeOptions{})

	facts := factsByApp(dataset.Facts, 292030)
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if facts[0].CurrentPrice == nil || *facts[0].CurrentPrice != 39.99 {
		t.Fatalf("expected fallback pricing, got %+v", facts[0])
	}
}

func TestMergeDropsUnknownAppIDs(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()

	pricing := []*domain.PricingRecord{
		{AppID: 999999, Snapshot: domain.PricingSnapshot{CurrentPrice: 9.99}},
	}
	timeseries := []domain.PlayerMonthRecord{
		{AppID: 888888, Year: 2024, Month: 1, AvgPlayers: intp(10)},
	}

	dataset := merger.Merge(testMetadata(), pricing, timeseries, MergeOptions{})

	// 메타데이터 집합 밖의 appid는 게임도 팩트도 만들지 않는다.
	if len(dataset.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(dataset.Games))
	}
	if len(factsByApp(dataset.Facts, 999999)) != 0 || len(factsByApp(dataset.Facts, 888888)) != 0 {
		t.Fatalf("expected no facts for unknown appids: %+v", dataset.Facts)
	}
}

func TestMergeSnapshotOnlyFactForRunMonth(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()

	pricing := []*domain.PricingRecord{
		{AppID: 730, Snapshot: domain.PricingSnapshot{CurrentPrice: 5.99, OriginalPrice: 5.99}},
	}

	// 시계열 없음 + 실행 월 지정 → 스냅샷 전용 팩트 생성
	dataset := merger.Merge(testMetadata(), pricing, nil, MergeOptions{SnapshotYear: 2024, SnapshotMonth: 3})

	facts := factsByApp(dataset.Facts, 730)
	if len(facts) != 1 {
		t.Fatalf("expected 1 snapshot-only fact, got %d", len(facts))
	}
	fact := facts[0]
	if fact.Year != 2024 || fact.Month != 3 {
		t.Fatalf("unexpected fact month: %d-%d", fact.Year, fact.Month)
	}
	if fact.HasPlayerMetrics() {
		t.Fatalf("snapshot-only fact must not carry player metrics: %+v", fact)
	}
	if fact.CurrentPrice == nil || *fact.CurrentPrice != 5.99 {
		t.Fatalf("unexpected snapshot: %+v", fact)
	}
}

func TestMergeDimensionsAndBridges(t *testing.T) {
	t.Parallel()

	merger := newTestMerger()
	dataset := merger.Merge(testMetadata(), nil, nil, MergeOptions{})

	expectedGenres := []string{"Action", "Free To Play", "RPG"}
	if len(dataset.Genres) != len(expectedGenres) {
		t.Fatalf("unexpected genres: %v", dataset.Genres)
	}
	for i, genre := range expectedGenres {
		if dataset.Genres[i] != genre {
			t.Fatalf("unexpected genre order: %v", dataset.Genres)
		}
	}

	if len(dataset.Tags) != 3 {
		t.Fatalf("unexpected tags: %v", dataset.Tags)
	}

	if len(dataset.Bridges) != 3 {
		t.Fatalf("expected 3 bridges, got %+v", dataset.Bridges)
	}
	first := dataset.Bridges[0]
	if first.AppID != 730 || first.TagName != "FPS" {
		t.Fatalf("unexpected bridge order: %+v", dataset.Bridges)
	}
}

func TestDeduplicateFactsPrefersPlayerMetrics(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	facts := []domain.FactRecord{
		{AppID: 730, Year: 2024, Month: 1, CurrentPrice: f64p(9.99)},                        // 지표 없음
		{AppID: 730, Year: 2024, Month: 1, AvgPlayers: intp(100), CurrentPrice: f64p(9.99)}, // 지표 있음
		{AppID: 730, Year: 2024, Month: 2, AvgPlayers: intp(50)},
		{AppID: 730, Year: 2024, Month: 2, AvgPlayers: intp(999)}, // 동급 → 먼저 온 것 유지
	}

	result := DeduplicateFacts(facts, logger)

	if len(result) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(result))
	}

	jan := result[0]
	if jan.AvgPlayers == nil || *jan.AvgPlayers != 100 {
		t.Fatalf("expected metric-bearing record to win: %+v", jan)
	}

	feb := result[1]
	if *feb.AvgPlayers != 50 {
		t.Fatalf("expected first record to win tie: %+v", feb)
	}
}

func factsByApp(facts []domain.FactRecord, appID int) []domain.FactRecord {
	result := make([]domain.FactRecord, 0)
	for _, fact := range facts {
		if fact.AppID == appID {
			result = append(result, fact)
		}
	}
	return result
}
