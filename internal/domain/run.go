package domain

import (
	"fmt"
	"time"
)

// RunMode 는 타입이다.
type RunMode string

// RunMode 상수 목록.
const (
	// RunModeFull: 세 소스를 모두 수집하는 전체 실행
	RunModeFull RunMode = "full"
	// RunModeMetadata: SteamSpy 메타데이터만 갱신하는 증분 실행
	RunModeMetadata RunMode = "metadata"
	// RunModePricing: Steam Store 가격만 갱신하는 증분 실행 (일간 리프레시용)
	RunModePricing RunMode = "pricing"
	// RunModeTimeseries: SteamCharts 시계열만 갱신하는 증분 실행
	RunModeTimeseries RunMode = "timeseries"
)

func (m RunMode) String() string {
	return string(m)
}

// IsValid 는 동작을 수행한다.
func (m RunMode) IsValid() bool {
	switch m {
	case RunModeFull, RunModeMetadata, RunModePricing, RunModeTimeseries:
		return true
	default:
		return false
	}
}

// Includes: 해당 실행 모드가 주어진 소스를 수집 대상에 포함하는지 확인한다.
func (m RunMode) Includes(s Source) bool {
	if m == RunModeFull {
		return true
	}
	switch s {
	case SourceSteamSpy:
		return m == RunModeMetadata
	case SourceSteamStore:
		return m == RunModePricing
	case SourceSteamCharts:
		return m == RunModeTimeseries
	default:
		return false
	}
}

// JobStatus 는 타입이다.
type JobStatus string

// JobStatus 상수 목록.
const (
	// JobStatusPending 는 상수다.
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal: 잡이 종료 상태(완료/실패/취소)인지 확인한다.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// SourceStats: 소스별 수집 결과 통계
type SourceStats struct {
	Records  int             `json:"records"`
	Failures []EntityFailure `json:"failures,omitempty"`
}

// FailureCount 는 동작을 수행한다.
func (s SourceStats) FailureCount() int {
	return len(s.Failures)
}

// TableStats: 테이블 단위 적재 통계
type TableStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Add 는 동작을 수행한다.
func (t *TableStats) Add(other TableStats) {
	t.Inserted += other.Inserted
	t.Updated += other.Updated
	t.Failed += other.Failed
}

// LoadStats: 적재 단계 전체 통계 (테이블별 insert/update/fail 건수)
type LoadStats struct {
	Genres  TableStats `json:"genres"`
	Tags    TableStats `json:"tags"`
	Games   TableStats `json:"games"`
	Dates   TableStats `json:"dates"`
	Facts   TableStats `json:"facts"`
	Bridges TableStats `json:"bridges"`

	// Errors: 레코드 단위 적재 실패 메시지 (배치는 계속 진행됨)
	Errors []string `json:"errors,omitempty"`
}

// TotalFailed 는 동작을 수행한다.
func (l LoadStats) TotalFailed() int {
	return l.Genres.Failed + l.Tags.Failed + l.Games.Failed +
		l.Dates.Failed + l.Facts.Failed + l.Bridges.Failed
}

// RunReport: 파이프라인 실행 1회의 구조화된 결과 요약
// 성공/실패 여부와 관계없이 실행 완료 시 항상 생성된다.
type RunReport struct {
	JobID       string                 `json:"job_id"`
	Mode        RunMode                `json:"mode"`
	Status      JobStatus              `json:"status"`
	RequestedID []int                  `json:"requested_appids,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Sources     map[Source]SourceStats `json:"sources"`
	Merged      MergeCounts            `json:"merged"`
	Load        LoadStats              `json:"load"`
	Error       string                 `json:"error,omitempty"`
}

// Duration: 실행 소요 시간을 반환한다. (완료 전이면 0)
func (r *RunReport) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// FactKey: (appid, 연, 월) 조합의 자연 키 문자열을 만든다.
func FactKey(appID, year, month int) string {
	return fmt.Sprintf("%d:%04d-%02d", appID, year, month)
}
