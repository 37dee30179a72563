// Package health: 서비스 상태 정보
package health

import (
	"runtime"
	"sync"
	"time"
)

var (
	startTime time.Time
	version   = "dev"
	initOnce  sync.Once
)

// Init: 서비스 시작 시 호출 (버전 정보 설정)
func Init(v string) {
	initOnce.Do(func() {
		startTime = time.Now()
		if v != "" {
			version = v
		}
	})
}

// ComponentStatus: 의존 컴포넌트(DB, 캐시) 상태
type ComponentStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Response: /health 엔드포인트 표준 응답
type Response struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Goroutines int                        `json:"goroutines"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// Get: 현재 상태를 반환한다. 컴포넌트 중 하나라도 비정상이면 degraded로 표시된다.
func Get(components map[string]ComponentStatus) Response {
	status := "ok"
	for _, component := range components {
		if component.Status != "ok" {
			status = "degraded"
			break
		}
	}

	return Response{
		Status:     status,
		Version:    version,
		Uptime:     formatDuration(time.Since(startTime)),
		Goroutines: runtime.NumGoroutine(),
		Components: components,
	}
}

// GetVersion: 현재 버전 반환
func GetVersion() string {
	return version
}

// GetUptime: 현재 uptime 반환 (포맷팅된 문자열)
func GetUptime() string {
	return formatDuration(time.Since(startTime))
}

// formatDuration: Duration을 사람이 읽기 쉬운 형식으로 변환
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
