package util

// ClampFloat: 값을 [lo, hi] 구간으로 제한한다.
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UniqueInts: 정수 슬라이스에서 중복된 값을 제거하여 순서를 유지한 채 반환한다.
func UniqueInts(nums []int) []int {
	seen := make(map[int]struct{}, len(nums))
	result := make([]int, 0, len(nums))

	for _, n := range nums {
		if _, exists := seen[n]; !exists {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}
