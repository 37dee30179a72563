package fetch

import (
	"net/http"
	"time"

	"github.com/kapu/steam-analytics-etl-go/internal/constants"
)

// NewHTTPClient: 소스 클라이언트 공용 HTTP 클라이언트를 생성한다.
// 거버너가 동시성을 묶으므로 커넥션 풀은 소규모로 유지된다.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     constants.TransportConfig.MaxConnsPerHost,
			MaxIdleConnsPerHost: constants.TransportConfig.MaxIdleConnsPerHost,
			IdleConnTimeout:     constants.TransportConfig.IdleConnTimeout,
		},
	}
}
