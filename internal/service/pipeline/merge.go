// Package pipeline: 수집된 소스 데이터의 머지, 중복 제거, 실행 오케스트레이션을 담당한다.
package pipeline

import (
	"sort"

	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
)

// Merger: 세 소스의 데이터를 하나의 적재용 데이터셋으로 합치는 머지 엔진
//
// 권한 규칙:
//   - SteamSpy: 게임 메타데이터 및 엔티티 집합(디스커버리) 권한
//   - SteamCharts: 플레이어 지표 전담
//   - Steam Store: 가격/출시 정보 권한 (없으면 SteamSpy 폴백)
type Merger struct {
	logger *slog.Logger
}

// NewMerger: 머지 엔진을 생성한다.
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger}
}

// MergeOptions: 머지 동작 옵션
// SnapshotYear/SnapshotMonth는 실행 시점의 (연, 월)이며, 가격 스냅샷만 있고
// 해당 월의 시계열 행이 없는 게임에 스냅샷 전용 팩트를 만들 때 사용된다.
// CachedSnapshots는 이전 실행에서 캐싱된 상점 스냅샷으로, 이번 실행에 상점
// 레코드가 없을 때 SteamSpy 폴백보다 우선 적용된다.
type MergeOptions struct {
	SnapshotYear    int
	SnapshotMonth   int
	CachedSnapshots map[int]*domain.PricingSnapshot
}

// Merge: 메타데이터를 기준 집합으로 삼아 left-outer 방식으로 세 소스를 결합한다.
// 메타데이터에 없는 appid의 가격/시계열 레코드는 버려진다.
func (m *Merger) Merge(
	metadata []*domain.MetadataRecord,
	pricing []*domain.PricingRecord,
	timeseries []domain.PlayerMonthRecord,
	opts MergeOptions,
) *domain.MergedDataset {
	pricingByID := make(map[int]*domain.PricingRecord, len(pricing))
	for _, p := range pricing {
		pricingByID[p.AppID] = p
	}

	monthsByID := make(map[int][]domain.PlayerMonthRecord)
	for _, rec := range timeseries {
		monthsByID[rec.AppID] = append(monthsByID[rec.AppID], rec)
	}

	dataset := &domain.MergedDataset{
		Games:   make([]domain.GameRecord, 0, len(metadata)),
		Facts:   make([]domain.FactRecord, 0),
		Bridges: make([]domain.BridgeRecord, 0),
	}

	genreSet := make(map[string]struct{})
	tagSet := make(map[string]struct{})
	bridgeSeen := make(map[domain.BridgeRecord]struct{})

	knownApps := make(map[int]struct{}, len(metadata))
	for _, meta := range metadata {
		knownApps[meta.AppID] = struct{}{}
	}

	droppedPricing := len(pricing)
	droppedMonths := 0

	for _, meta := range metadata {
		store := pricingByID[meta.AppID]
		if store != nil {
			droppedPricing--
		}

		dataset.Games = append(dataset.Games, mergeGame(meta, store))

		// 장르/태그 차원과 브리지 관계는 메타데이터에서만 나온다.
		for _, genre := range meta.Genres {
			genreSet[genre] = struct{}{}
		}
		for _, tag := range meta.Tags {
			tagSet[tag] = struct{}{}
			bridge := domain.BridgeRecord{AppID: meta.AppID, TagName: tag}
			if _, seen := bridgeSeen[bridge]; !seen {
				bridgeSeen[bridge] = struct{}{}
				dataset.Bridges = append(dataset.Bridges, bridge)
			}
		}

		snapshot := effectiveSnapshot(meta, store, opts.CachedSnapshots[meta.AppID])
		months := monthsByID[meta.AppID]

		snapshotMonthCovered := false
		for _, rec := range months {
			fact := domain.FactRecord{
				AppID:            rec.AppID,
				Year:             rec.Year,
				Month:            rec.Month,
				AvgPlayers:       rec.AvgPlayers,
				PeakPlayers:      rec.PeakPlayers,
				GainPct:          rec.GainPct,
				AvgPlayersMonth:  rec.AvgPlayers,
				PeakPlayersMonth: rec.PeakPlayers,
			}
			// 가격은 시간 차원이 없으므로 최신 스냅샷을 모든 월에 적용한다.
			applySnapshot(&fact, snapshot)

			if rec.Year == opts.SnapshotYear && rec.Month == opts.SnapshotMonth {
				snapshotMonthCovered = true
			}
			dataset.Facts = append(dataset.Facts, fact)
		}

		// 시계열이 실행 월을 커버하지 않으면 스냅샷 전용 팩트를 만든다.
		// (가격 전용 증분 실행에서 팩트가 제자리 갱신되도록)
		if snapshot != nil && !snapshotMonthCovered && opts.SnapshotYear > 0 {
			fact := domain.FactRecord{
				AppID: meta.AppID,
				Year:  opts.SnapshotYear,
				Month: opts.SnapshotMonth,
			}
			applySnapshot(&fact, snapshot)
			dataset.Facts = append(dataset.Facts, fact)
		}
	}

	for appID, months := range monthsByID {
		if _, known := knownApps[appID]; !known {
			droppedMonths += len(months)
		}
	}

	dataset.Genres = sortedKeys(genreSet)
	dataset.Tags = sortedKeys(tagSet)
	dataset.Facts = DeduplicateFacts(dataset.Facts, m.logger)

	m.logger.Info("Merge complete",
		slog.Int("games", len(dataset.Games)),
		slog.Int("facts", len(dataset.Facts)),
		slog.Int("bridges", len(dataset.Bridges)),
		slog.Int("dropped_pricing", droppedPricing),
		slog.Int("dropped_timeseries", droppedMonths),
	)

	return dataset
}

// mergeGame: 메타데이터와 상점 레코드를 게임 차원 레코드로 합친다.
// 상점 값이 존재하면 우선하고, 없으면 메타데이터 값을 유지한다.
func mergeGame(meta *domain.MetadataRecord, store *domain.PricingRecord) domain.GameRecord {
	game := domain.GameRecord{
		AppID:           meta.AppID,
		Name:            meta.Name,
		Developer:       meta.Developer,
		Publisher:       meta.Publisher,
		OwnersMin:       meta.OwnersMin,
		OwnersMax:       meta.OwnersMax,
		PositiveReviews: meta.PositiveReviews,
		NegativeReviews: meta.NegativeReviews,
	}

	if store != nil {
		game.IsFree = store.IsFree
		if store.ReleaseDate != nil {
			game.ReleaseDate = store.ReleaseDate
		}
		if store.Developer != "" {
			game.Developer = store.Developer
		}
		if store.Publisher != "" {
			game.Publisher = store.Publisher
		}
	}

	return game
}

// effectiveSnapshot: 상점 스냅샷 > 캐싱된 상점 스냅샷 > 메타데이터 폴백 순으로 고른다.
func effectiveSnapshot(meta *domain.MetadataRecord, store *domain.PricingRecord, cached *domain.PricingSnapshot) *domain.PricingSnapshot {
	if store != nil {
		snapshot := store.Snapshot
		return &snapshot
	}
	if cached != nil {
		return cached
	}
	return meta.Pricing
}

func applySnapshot(fact *domain.FactRecord, snapshot *domain.PricingSnapshot) {
	if snapshot == nil {
		return
	}

	current := snapshot.CurrentPrice
	original := snapshot.OriginalPrice
	discount := snapshot.DiscountPct
	fact.CurrentPrice = &current
	fact.OriginalPrice = &original
	fact.DiscountPct = &discount
	fact.IsDiscountActive = snapshot.IsDiscountActive
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
