package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/kapu/steam-analytics-etl-go/internal/config"
	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/server"
)

// NewRouter: ETL 제어/분석 API를 서빙하는 Gin 라우터를 설정한다.
func NewRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler *server.APIHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(server.LoggerMiddleware(ctx, logger, "/health"))
	router.Use(cors.New(newCORSConfig(cfg)))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handler)
	return router
}

// NewHTTPServer: H2C가 적용된 HTTP 서버 인스턴스를 생성한다.
func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.WrapH2C(router),
		ReadHeaderTimeout: constants.ServerTimeout.ReadHeader,
		ReadTimeout:       constants.ServerTimeout.Read,
		WriteTimeout:      constants.ServerTimeout.Write,
		IdleTimeout:       constants.ServerTimeout.Idle,
		MaxHeaderBytes:    constants.ServerTimeout.MaxHeaderBytes,
	}
}

func newCORSConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	return corsConfig
}

func registerRoutes(router *gin.Engine, handler *server.APIHandler) {
	router.GET("/health", handler.GetHealth)

	api := router.Group("/api")

	ingestion := api.Group("/ingestion")
	ingestion.POST("/trigger", handler.TriggerIngestion)
	ingestion.POST("/cancel", handler.CancelIngestion)
	ingestion.GET("/status", handler.GetIngestionStatus)
	ingestion.GET("/jobs", handler.GetRecentJobs)
	ingestion.GET("/jobs/:id", handler.GetJob)

	analytics := api.Group("/analytics")
	analytics.GET("/facts", handler.GetFacts)
	analytics.GET("/games", handler.GetGames)

	api.GET("/system/stats", handler.GetSystemStats)
}
