package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
)

// Config: ETL 서비스 전체 동작에 필요한 설정을 담는 구조체
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Valkey   ValkeyConfig
	Sources  SourcesConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
	Version  string
}

// ServerConfig: 운영용 API 서버 설정
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// PostgresConfig: 분석 스토어(PostgreSQL) 연결 설정
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN: GORM/pq 드라이버용 연결 문자열을 만든다.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// ValkeyConfig: 잡 상태 추적 및 스냅샷 캐싱 용도의 Redis(Valkey) 연결 설정
type ValkeyConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SourcesConfig: 외부 수집 소스(SteamSpy, Steam Store, SteamCharts) 엔드포인트 설정
// 엔드포인트별 최소 호출 간격은 소스 운영 정책에 맞춘 기본값을 가진다.
type SourcesConfig struct {
	SteamSpyBaseURL    string
	SteamSpyAllDelay   time.Duration
	SteamSpyDelay      time.Duration
	SteamStoreBaseURL  string
	SteamStoreDelay    time.Duration
	SteamStoreCountry  string
	SteamChartsBaseURL string
	SteamChartsDelay   time.Duration
	UserAgent          string
}

// PipelineConfig: 파이프라인 실행 정책 설정
type PipelineConfig struct {
	RunTimeout     time.Duration
	MaxFailureRate float64
	DiscoveryLimit int
}

// LoggingConfig: 애플리케이션 로그 설정 (레벨, 디렉토리, 로테이션 정책)
type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load: .env 파일 및 환경 변수로부터 설정을 로드하고, 기본값을 적용하여 Config 객체를 생성한다.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8000),
			AllowedOrigins: parseCommaSeparated(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", constants.DatabaseDefaults.Host),
			Port:     getEnvInt("POSTGRES_PORT", constants.DatabaseDefaults.Port),
			User:     getEnv("POSTGRES_USER", constants.DatabaseDefaults.User),
			Password: getEnv("POSTGRES_PASSWORD", constants.DatabaseDefaults.Password),
			Database: getEnv("POSTGRES_DB", constants.DatabaseDefaults.Database),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Valkey: ValkeyConfig{
			Host:     getEnv("CACHE_HOST", "localhost"),
			Port:     getEnvInt("CACHE_PORT", 6379),
			Password: getEnv("CACHE_PASSWORD", ""),
			DB:       getEnvInt("CACHE_DB", 0),
		},
		Sources: SourcesConfig{
			SteamSpyBaseURL:    getEnv("STEAMSPY_BASE_URL", constants.SteamSpyConfig.BaseURL),
			SteamSpyAllDelay:   getEnvDuration("STEAMSPY_ALL_DELAY", constants.SteamSpyConfig.AllDelay),
			SteamSpyDelay:      getEnvDuration("STEAMSPY_DETAIL_DELAY", constants.SteamSpyConfig.DetailDelay),
			SteamStoreBaseURL:  getEnv("STEAM_STORE_BASE_URL", constants.SteamStoreConfig.BaseURL),
			SteamStoreDelay:    getEnvDuration("STEAM_STORE_DELAY", constants.SteamStoreConfig.RequestDelay),
			SteamStoreCountry:  getEnv("STEAM_STORE_COUNTRY", constants.SteamStoreConfig.CountryCode),
			SteamChartsBaseURL: getEnv("STEAMCHARTS_BASE_URL", constants.SteamChartsConfig.BaseURL),
			SteamChartsDelay:   getEnvDuration("STEAMCHARTS_DELAY", constants.SteamChartsConfig.RequestDelay),
			UserAgent:          getEnv("SCRAPER_USER_AGENT", constants.ScraperConfig.UserAgent),
		},
		Pipeline: PipelineConfig{
			RunTimeout:     getEnvDuration("PIPELINE_RUN_TIMEOUT", constants.PipelineConfig.RunTimeout),
			MaxFailureRate: getEnvFloat("PIPELINE_MAX_FAILURE_RATE", constants.PipelineConfig.MaxFailureRate),
			DiscoveryLimit: getEnvInt("PIPELINE_DISCOVERY_LIMIT", constants.PipelineConfig.DiscoveryLimit),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Dir:        getEnv("LOG_DIR", "logs"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Version: strings.TrimSpace(getEnv("APP_VERSION", "1.0.0-go")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate: 필수 설정값이 누락되거나 범위를 벗어나지 않았는지 검증한다.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be positive")
	}
	if c.Postgres.Host == "" || c.Postgres.Database == "" {
		return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required")
	}
	if c.Pipeline.MaxFailureRate <= 0 || c.Pipeline.MaxFailureRate > 1 {
		return fmt.Errorf("PIPELINE_MAX_FAILURE_RATE must be in (0, 1], got %f", c.Pipeline.MaxFailureRate)
	}
	if c.Sources.SteamSpyAllDelay < constants.SteamSpyConfig.AllDelay {
		return fmt.Errorf("STEAMSPY_ALL_DELAY must be at least %s", constants.SteamSpyConfig.AllDelay)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
