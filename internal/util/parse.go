package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseOwnersRange: SteamSpy 소유자 추정치 문자열("50,000,000 .. 100,000,000")을
// 최소/최대 정수 쌍으로 분리한다. 형식이 다르면 (nil, nil)을 반환한다.
func ParseOwnersRange(s string) (*int64, *int64) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(strings.ReplaceAll(s, ",", ""), "..")
	if len(parts) != 2 {
		return nil, nil
	}

	minVal, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return nil, nil
	}
	maxVal, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return nil, nil
	}

	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}

	return &minVal, &maxVal
}

// SplitCSVSet: 콤마로 구분된 목록을 분리하고 공백 제거 + 중복 제거한다. (입력 순서 유지)
func SplitCSVSet(s string) []string {
	if s == "" {
		return nil
	}

	seen := make(map[string]struct{})
	result := make([]string, 0)

	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}

	return result
}

// ParseReleaseDate: Steam Store의 "Jan 2, 2006" 형식 출시일을 파싱한다.
// 무료/미출시 타이틀은 출시일이 없을 수 있으므로 빈 문자열이나 파싱 실패는 nil로 처리한다.
func ParseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	t, err := time.Parse("Jan 2, 2006", s)
	if err != nil {
		return nil
	}

	return &t
}

// ParseMonthYear: SteamCharts의 "January 2006" 형식 월 표기를 (연, 월)로 파싱한다.
func ParseMonthYear(s string) (year, month int, ok bool) {
	t, err := time.Parse("January 2006", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), int(t.Month()), true
}

// ParseThousandsInt: 천 단위 구분자가 포함된 숫자 문자열("1,234", "+56", "-78")을 정수로 파싱한다.
// "N/A"나 빈 문자열은 nil, allowNegative가 false면 음수도 nil로 처리한다.
func ParseThousandsInt(s string, allowNegative bool) *int {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}

	clean := strings.ReplaceAll(s, ",", "")
	clean = strings.TrimPrefix(clean, "+")
	if strings.HasPrefix(clean, "-") && !allowNegative {
		return nil
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}

	n := int(f)
	return &n
}

// ParsePercent: 퍼센트 문자열("+5.2%", "-10.5%")을 float로 파싱한다. (5.2를 반환, 0.052 아님)
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}

	clean := strings.TrimSuffix(s, "%")
	clean = strings.TrimPrefix(clean, "+")

	f, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return nil
	}

	return &f
}

// CentsToDollars: 센트 단위 정수 가격을 달러 단위 decimal 값으로 변환한다.
func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100.0
}

// JoinTruncated: 문자열 목록을 구분자로 연결하고 최대 길이로 자른다.
// 개발사/퍼블리셔 목록을 500자 컬럼에 맞출 때 사용된다.
func JoinTruncated(items []string, sep string, maxLen int) string {
	joined := strings.Join(items, sep)
	if len(joined) > maxLen {
		return joined[:maxLen]
	}
	return joined
}
