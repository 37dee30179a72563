// Package app: 애플리케이션 조립(수동 DI)과 런타임 수명 주기를 담당한다.
package app

import (
	"fmt"
	"log/slog"

	"github.com/kapu/steam-analytics-etl-go/internal/config"
	"github.com/kapu/steam-analytics-etl-go/internal/constants"
	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/platform/bootstrap"
	"github.com/kapu/steam-analytics-etl-go/internal/server"
	"github.com/kapu/steam-analytics-etl-go/internal/service/cache"
	"github.com/kapu/steam-analytics-etl-go/internal/service/database"
	"github.com/kapu/steam-analytics-etl-go/internal/service/facts"
	"github.com/kapu/steam-analytics-etl-go/internal/service/fetch"
	"github.com/kapu/steam-analytics-etl-go/internal/service/governor"
	"github.com/kapu/steam-analytics-etl-go/internal/service/loader"
	"github.com/kapu/steam-analytics-etl-go/internal/service/pipeline"
	"github.com/kapu/steam-analytics-etl-go/internal/service/steamcharts"
	"github.com/kapu/steam-analytics-etl-go/internal/service/steamspy"
	"github.com/kapu/steam-analytics-etl-go/internal/service/steamstore"
	"github.com/kapu/steam-analytics-etl-go/internal/service/system"
	"github.com/kapu/steam-analytics-etl-go/internal/util"
)

// Container: 조립된 서비스 그래프
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Postgres     *database.PostgresService
	Cache        *cache.Service
	Calendar     *database.CalendarService
	Repository   *facts.Repository
	Loader       *loader.Loader
	Orchestrator *pipeline.Orchestrator
	System       *system.Collector
	Breakers     map[string]*util.CircuitBreaker
	Handler      *server.APIHandler

	closers []func()
}

// NewContainer: 설정으로부터 서비스 그래프 전체를 조립한다.
// 인프라(DB, 캐시) 연결 → 소스 클라이언트 → 파이프라인 → API 핸들러 순서다.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	dbRes, err := bootstrap.NewDatabaseResources(cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	c.Postgres = dbRes.Service
	c.closers = append(c.closers, dbRes.Close)

	cacheRes, err := bootstrap.NewCacheResources(cfg.Valkey, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Cache = cacheRes.Service
	c.closers = append(c.closers, cacheRes.Close)

	gormDB := c.Postgres.GetGormDB()

	c.Calendar = database.NewCalendarService(gormDB, logger)
	if err := c.Calendar.SeedCalendar(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to seed calendar: %w", err)
	}

	c.Repository = facts.NewRepository(gormDB, logger)
	c.Loader = loader.NewLoader(gormDB, c.Calendar, logger)

	spy, spyBreaker := newSteamSpyClient(cfg, logger)
	store, storeBreaker := newSteamStoreClient(cfg, logger)
	charts, chartsBreaker := newSteamChartsScraper(cfg, logger)

	// 소스별 서킷 브레이커 상태는 시스템 통계 API로 노출된다.
	c.Breakers = map[string]*util.CircuitBreaker{
		domain.SourceSteamSpy.String():    spyBreaker,
		domain.SourceSteamStore.String():  storeBreaker,
		domain.SourceSteamCharts.String(): chartsBreaker,
	}

	c.Orchestrator = pipeline.NewOrchestrator(spy, store, charts, c.Loader, c.Repository, c.Cache, logger)
	c.System = system.NewCollector()
	c.Handler = server.NewAPIHandler(c.Orchestrator, c.Repository, c.Cache, c.Postgres, c.System, c.Breakers, logger)

	return c, nil
}

// Close: 보유한 인프라 리소스를 역순으로 해제한다.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newSteamSpyClient(cfg *config.Config, logger *slog.Logger) (*steamspy.Client, *util.CircuitBreaker) {
	source := domain.SourceSteamSpy.String()

	gov := governor.NewGovernor(source, constants.SteamSpyConfig.MaxConcurrent, logger)
	gov.RegisterEndpoint(steamspy.EndpointAll, cfg.Sources.SteamSpyAllDelay)
	gov.RegisterEndpoint(steamspy.EndpointDetail, cfg.Sources.SteamSpyDelay)

	breaker := util.NewCircuitBreaker(constants.CircuitBreakerConfig.FailureThreshold, constants.CircuitBreakerConfig.ResetTimeout, logger)
	exec := fetch.NewExecutor(source, breaker, logger)

	client := steamspy.NewClient(
		fetch.NewHTTPClient(constants.SteamSpyConfig.Timeout),
		cfg.Sources.SteamSpyBaseURL,
		cfg.Sources.UserAgent,
		gov, exec, logger,
	)
	return client, breaker
}

func newSteamStoreClient(cfg *config.Config, logger *slog.Logger) (*steamstore.Client, *util.CircuitBreaker) {
	source := domain.SourceSteamStore.String()

	gov := governor.NewGovernor(source, constants.SteamStoreConfig.MaxConcurrent, logger)
	gov.RegisterEndpoint(steamstore.EndpointAppDetails, cfg.Sources.SteamStoreDelay)

	breaker := util.NewCircuitBreaker(constants.CircuitBreakerConfig.FailureThreshold, constants.CircuitBreakerConfig.ResetTimeout, logger)
	exec := fetch.NewExecutor(source, breaker, logger)

	client := steamstore.NewClient(
		fetch.NewHTTPClient(constants.SteamStoreConfig.Timeout),
		cfg.Sources.SteamStoreBaseURL,
		cfg.Sources.UserAgent,
		cfg.Sources.SteamStoreCountry,
		gov, exec, logger,
	)
	return client, breaker
}

func newSteamChartsScraper(cfg *config.Config, logger *slog.Logger) (*steamcharts.Scraper, *util.CircuitBreaker) {
	source := domain.SourceSteamCharts.String()

	gov := governor.NewGovernor(source, constants.SteamChartsConfig.MaxConcurrent, logger)
	gov.RegisterEndpoint(steamcharts.EndpointHistory, cfg.Sources.SteamChartsDelay)

	breaker := util.NewCircuitBreaker(constants.CircuitBreakerConfig.FailureThreshold, constants.CircuitBreakerConfig.ResetTimeout, logger)
	exec := fetch.NewExecutor(source, breaker, logger)

	scraper := steamcharts.NewScraper(
		fetch.NewHTTPClient(constants.SteamChartsConfig.Timeout),
		cfg.Sources.SteamChartsBaseURL,
		cfg.Sources.UserAgent,
		gov, exec, logger,
	)
	return scraper, breaker
}
