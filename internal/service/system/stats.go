// Package system: 프로세스/호스트 리소스 통계 수집을 제공한다.
package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats: 시스템 리소스 통계
type SystemStats struct {
	CPUUsage      float64 `json:"cpuUsage"`      // CPU 사용률 (%)
	MemoryUsage   float64 `json:"memoryUsage"`   // 메모리 사용률 (%)
	MemoryTotal   uint64  `json:"memoryTotal"`   // 전체 메모리 (Bytes)
	MemoryUsed    uint64  `json:"memoryUsed"`    // 사용 중인 메모리 (Bytes)
	Goroutines    int     `json:"goroutines"`    // 현재 프로세스 Go 루틴 개수
	HeapAllocated uint64  `json:"heapAllocated"` // Go 힙 사용량 (Bytes)
	UptimeSeconds int64   `json:"uptimeSeconds"` // 프로세스 가동 시간 (초)
}

// Collector: 시스템 리소스 통계를 수집하는 서비스
type Collector struct {
	startedAt time.Time
}

// NewCollector: 새 Collector를 생성한다.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

// GetCurrentStats: 현재 시스템 리소스 상태를 반환한다.
func (c *Collector) GetCurrentStats(ctx context.Context) (*SystemStats, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}

	// CPU 사용률 (즉시 반환)
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu stats: %w", err)
	}

	var cpuUsage float64
	if len(cpus) > 0 {
		cpuUsage = cpus[0]
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemStats{
		CPUUsage:      cpuUsage,
		MemoryUsage:   v.UsedPercent,
		MemoryTotal:   v.Total,
		MemoryUsed:    v.Used,
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocated: memStats.HeapAlloc,
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
	}, nil
}
