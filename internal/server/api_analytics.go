package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/service/facts"
)

// GetFacts: 월 단위 플레이어/가격 팩트를 조회한다.
// 쿼리 파라미터: appids(쉼표 구분), from/to(YYYY-MM), limit, offset
func (h *APIHandler) GetFacts(c *gin.Context) {
	query := facts.FactQuery{}

	appIDs, ok := parseAppIDsParam(c, c.Query("appids"))
	if !ok {
		return
	}
	query.AppIDs = appIDs

	if from := c.Query("from"); from != "" {
		year, month, err := parseYearMonth(from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid 'from': expected YYYY-MM"})
			return
		}
		query.FromYear, query.FromMonth = year, month
	}
	if to := c.Query("to"); to != "" {
		year, month, err := parseYearMonth(to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid 'to': expected YYYY-MM"})
			return
		}
		query.ToYear, query.ToMonth = year, month
	}

	query.Limit, _ = strconv.Atoi(c.Query("limit"))
	query.Offset, _ = strconv.Atoi(c.Query("offset"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.FactQuery)
	defer cancel()

	rows, err := h.repo.ListFacts(ctx, query)
	if err != nil {
		h.logger.Error("Fact query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "fact query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows), "facts": rows})
}

// GetGames: 게임 차원을 조회한다. 태그 목록이 함께 반환된다.
func (h *APIHandler) GetGames(c *gin.Context) {
	appIDs, ok := parseAppIDsParam(c, c.Query("appids"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout.FactQuery)
	defer cancel()

	rows, err := h.repo.ListGames(ctx, appIDs)
	if err != nil {
		h.logger.Error("Game query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "game query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows), "games": rows})
}

// parseAppIDsParam: 쉼표로 구분된 appid 목록을 파싱한다. 실패 시 400을 응답한다.
func parseAppIDsParam(c *gin.Context, raw string) ([]int, bool) {
	if raw == "" {
		return nil, true
	}

	parts := strings.Split(raw, ",")
	appIDs := make([]int, 0, len(parts))
	for _, part := range parts {
		appID, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || appID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid 'appids': expected comma-separated positive integers"})
			return nil, false
		}
		appIDs = append(appIDs, appID)
	}
	return appIDs, true
}

func parseYearMonth(s string) (int, int, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), int(t.Month()), nil
}
