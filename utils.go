package goskip

import "golang.org/x/exp/constraints"

// compare returns an integer comparing two ordered keys. The result is 0
// if a==b, -1 if a < b, and +1 if a > b.
func compare[K constraints.Ordered](a, b K) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
