package config

import "runtime"

// clampedNumCPU mirrors the teacher's DefaultWorldConfig worker-count
// sizing (runtime.NumCPU clamped to a sane range) applied here to the
// backend's default job-slot capacity instead of parse-worker counts.
func clampedNumCPU(min, max int) int {
	n := runtime.NumCPU()
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
