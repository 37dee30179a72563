package pipeline

import (
	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
)

// DeduplicateFacts: (appid, 연, 월) 자연 키당 팩트를 최대 1건으로 줄인다.
// 플레이어 지표가 채워진 레코드를 우선하고, 동급이면 먼저 온 레코드를 유지한다.
func DeduplicateFacts(facts []domain.FactRecord, logger *slog.Logger) []domain.FactRecord {
	if len(facts) == 0 {
		return facts
	}

	chosen := make(map[string]int, len(facts))
	result := make([]domain.FactRecord, 0, len(facts))

	for _, fact := range facts {
		key := fact.MonthKey()

		idx, exists := chosen[key]
		if !exists {
			chosen[key] = len(result)
			result = append(result, fact)
			continue
		}

		// 기존 레코드에 지표가 없고 새 레코드에 있으면 교체한다.
		if !result[idx].HasPlayerMetrics() && fact.HasPlayerMetrics() {
			result[idx] = fact
		}
	}

	if dropped := len(facts) - len(result); dropped > 0 {
		logger.Info("Deduplicated fact records", slog.Int("dropped", dropped))
	}

	return result
}
