// Package errors: Steam 분석 ETL 서비스 전체에서 사용되는 에러 타입들을 정의한다.
// 표준 Go 에러 스타일(Error/Unwrap)을 따른다.
package errors

import "fmt"

// APIError: 외부 소스 호출 중 발생한 에러 (SteamSpy, Steam Store, SteamCharts 등)
type APIError struct {
	Source     string // 소스 이름
	Operation  string // 수행 중이던 작업
	StatusCode int    // HTTP 상태 코드 (0이면 네트워크 오류)
	Err        error  // 원인 에러
}

func (e APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api error source=%s operation=%s status=%d", e.Source, e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("api error source=%s operation=%s status=%d: %v", e.Source, e.Operation, e.StatusCode, e.Err)
}

func (e APIError) Unwrap() error { return e.Err }

// NewAPIError: API 에러를 생성한다.
func NewAPIError(source, operation string, statusCode int, cause error) *APIError {
	return &APIError{
		Source:     source,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        cause,
	}
}

// ParseError: 소스 응답 페이로드 파싱 실패 에러 (영구 실패, 재시도 금지)
type ParseError struct {
	Source string
	AppID  int
	Err    error
}

func (e ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse error source=%s appid=%d", e.Source, e.AppID)
	}
	return fmt.Sprintf("parse error source=%s appid=%d: %v", e.Source, e.AppID, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// NewParseError: 파싱 에러를 생성한다.
func NewParseError(source string, appID int, cause error) *ParseError {
	return &ParseError{
		Source: source,
		AppID:  appID,
		Err:    cause,
	}
}

// CacheError: 상태 저장소(Valkey) 작업 중 발생한 에러
type CacheError struct {
	Operation string // get, set, delete 등
	Key       string // 캐시 키
	Err       error  // 원인 에러
}

func (e CacheError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("cache error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e CacheError) Unwrap() error { return e.Err }

// NewCacheError: 캐시 에러를 생성한다.
func NewCacheError(operation, key string, cause error) *CacheError {
	return &CacheError{
		Operation: operation,
		Key:       key,
		Err:       cause,
	}
}

// LoadError: 적재 단계에서 단일 레코드 쓰기가 실패했을 때의 에러
// 배치를 중단시키지 않고 레코드 단위로 수집된다.
type LoadError struct {
	Table string
	Key   string // 레코드 자연 키 (appid, tag_name 등)
	Err   error
}

func (e LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load error table=%s key=%s", e.Table, e.Key)
	}
	return fmt.Sprintf("load error table=%s key=%s: %v", e.Table, e.Key, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// NewLoadError: 적재 에러를 생성한다.
func NewLoadError(table, key string, cause error) *LoadError {
	return &LoadError{
		Table: table,
		Key:   key,
		Err:   cause,
	}
}

// CircuitOpenError: 서킷 브레이커가 열려있을 때 발생하는 에러
type CircuitOpenError struct {
	Source       string
	RetryAfterMs int64
}

func (e CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open source=%s retry_after_ms=%d", e.Source, e.RetryAfterMs)
}

// ValidationError: 입력 검증 실패 에러
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error field=%s: %s", e.Field, e.Message)
}

// NewValidationError: 검증 에러를 생성한다.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// RunBusyError: 이미 실행 중인 파이프라인이 있을 때 새 실행 요청이 거부되는 에러
type RunBusyError struct {
	ActiveJobID string
}

func (e RunBusyError) Error() string {
	return fmt.Sprintf("pipeline run already in progress job_id=%s", e.ActiveJobID)
}
