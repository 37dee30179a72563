package constants

import "time"

// SteamSpyConfig 는 패키지 변수다.
var SteamSpyConfig = struct {
	BaseURL       string
	Timeout       time.Duration
	AllDelay      time.Duration // /all 엔드포인트 전용 최소 간격 (SteamSpy 정책: 60초)
	DetailDelay   time.Duration // appdetails 엔드포인트 최소 간격
	MaxConcurrent int64
}{
	BaseURL:       "https://steamspy.com/api.php",
	Timeout:       30 * time.Second,
	AllDelay:      60 * time.Second,
	DetailDelay:   1 * time.Second,
	MaxConcurrent: 1,
}

// SteamStoreConfig 는 패키지 변수다.
var SteamStoreConfig = struct {
	BaseURL       string
	Timeout       time.Duration
	RequestDelay  time.Duration
	MaxConcurrent int64
	CountryCode   string
}{
	BaseURL:       "https://store.steampowered.com/api/appdetails",
	Timeout:       30 * time.Second,
	RequestDelay:  1500 * time.Millisecond,
	MaxConcurrent: 1,
	CountryCode:   "us",
}

// SteamChartsConfig 는 패키지 변수다.
var SteamChartsConfig = struct {
	BaseURL       string
	Timeout       time.Duration
	RequestDelay  time.Duration // 정중한 크롤링을 위한 요청 간격
	MaxConcurrent int64
}{
	BaseURL:       "https://steamcharts.com",
	Timeout:       30 * time.Second,
	RequestDelay:  2 * time.Second,
	MaxConcurrent: 1,
}

// ScraperConfig 는 패키지 변수다.
var ScraperConfig = struct {
	UserAgent string
}{
	UserAgent: "Mozilla/5.0 (compatible; SteamAnalyticsETL/1.0)",
}

// RetryConfig 는 패키지 변수다.
var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}{
	MaxAttempts: 3,                      // 총 시도 횟수 (최초 1회 + 재시도 2회)
	BaseDelay:   500 * time.Millisecond, // 지수 백오프 시작 간격
	Multiplier:  2.0,
	MaxDelay:    30 * time.Second,
}

// CircuitBreakerConfig 는 패키지 변수다.
var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}{
	FailureThreshold: 3,                // 3회 연속 실패 시 Circuit OPEN
	ResetTimeout:     30 * time.Second, // OPEN 상태 유지 시간
}

// PipelineConfig 는 패키지 변수다.
var PipelineConfig = struct {
	RunTimeout       time.Duration
	MaxFailureRate   float64 // 소스 단계 엔티티 실패율이 이를 초과하면 적재 없이 실행 중단
	RecentJobsLimit  int
	JobRetention     time.Duration
	DiscoveryLimit   int           // /all 전체 디스커버리 시 처리할 상한 (0 = 무제한)
	SnapshotCacheTTL time.Duration // 가격 스냅샷 캐시 유지 시간 (일간 가격 실행 주기보다 길게)
}{
	RunTimeout:       2 * time.Hour,
	MaxFailureRate:   0.8,
	RecentJobsLimit:  10,
	JobRetention:     72 * time.Hour,
	DiscoveryLimit:   0,
	SnapshotCacheTTL: 48 * time.Hour,
}

// DatabaseConfig 는 패키지 변수다.
var DatabaseConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}{
	MaxOpenConns:    10,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// DatabaseDefaults 는 패키지 변수다.
var DatabaseDefaults = struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}{
	Host:     "localhost",
	Port:     5432,
	User:     "steam_user",
	Password: "steam_password",
	Database: "steam_analytics",
}

// CalendarConfig 는 패키지 변수다.
var CalendarConfig = struct {
	SeedStartYear int
	SeedEndYear   int
}{
	SeedStartYear: 2012, // SteamCharts 데이터 시작 시점
	SeedEndYear:   2027,
}

// ValkeyConfig 는 패키지 변수다.
var ValkeyConfig = struct {
	ReadyTimeout      time.Duration
	ConnWriteTimeout  time.Duration
	DialTimeout       time.Duration
	BlockingPoolSize  int
	PipelineMultiplex int
}{
	ReadyTimeout:      5 * time.Second,
	ConnWriteTimeout:  10 * time.Second,
	DialTimeout:       5 * time.Second,
	BlockingPoolSize:  20,
	PipelineMultiplex: 2,
}

// RequestTimeout 는 패키지 변수다.
var RequestTimeout = struct {
	DatabasePing time.Duration
	APIRequest   time.Duration
	FactQuery    time.Duration
	Shutdown     time.Duration
}{
	DatabasePing: 5 * time.Second,
	APIRequest:   15 * time.Second,
	FactQuery:    30 * time.Second,
	Shutdown:     10 * time.Second,
}

// ServerTimeout 는 패키지 변수다.
var ServerTimeout = struct {
	ReadHeader     time.Duration
	Read           time.Duration
	Write          time.Duration
	Idle           time.Duration
	MaxHeaderBytes int
}{
	ReadHeader:     5 * time.Second,
	Read:           30 * time.Second,
	Write:          60 * time.Second,
	Idle:           120 * time.Second,
	MaxHeaderBytes: 1 << 20,
}

// TransportConfig 는 소스 클라이언트 공용 HTTP Transport 설정이다.
// 거버너가 동시성을 1로 묶으므로 커넥션 풀은 소규모로 유지한다.
var TransportConfig = struct {
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}{
	MaxConnsPerHost:     4,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     30 * time.Second,
}
