package server

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/health"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
)

// GetHealth: 서비스 및 의존 컴포넌트(DB, 캐시) 상태를 반환한다.
func (h *APIHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.DatabasePing)
	defer cancel()

	components := make(map[string]health.ComponentStatus)

	if err := h.postgres.Ping(ctx); err != nil {
		components["database"] = health.ComponentStatus{Status: "down", Detail: err.Error()}
	} else {
		components["database"] = health.ComponentStatus{Status: "ok"}
	}

	if h.jobCache.IsConnected(ctx) {
		components["cache"] = health.ComponentStatus{Status: "ok"}
	} else {
		components["cache"] = health.ComponentStatus{Status: "down"}
	}

	response := health.Get(components)
	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// GetSystemStats: 프로세스/호스트 리소스 사용량과 소스별 서킷 브레이커 상태를 반환한다.
func (h *APIHandler) GetSystemStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.APIRequest)
	defer cancel()

	stats, err := h.systemStats.GetCurrentStats(ctx)
	if err != nil {
		h.logger.Error("Failed to collect system stats", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to collect system stats"})
		return
	}

	sources := make(map[string]util.CircuitBreakerStatus, len(h.breakers))
	for name, breaker := range h.breakers {
		sources[name] = breaker.GetStatus()
	}

	c.JSON(http.StatusOK, gin.H{
		"system":  stats,
		"sources": sources,
	})
}
