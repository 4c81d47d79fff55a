// SPDX-License-Identifier: MIT
//
// Package bitint provides allocation-free power-of-two helpers used when
// sizing sample queues.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive
// sizes return 1.
//
// Subtracting one first keeps exact powers of two unchanged: for 8,
// bits.Len(7) is 3 and 1<<3 is 8, whereas bits.Len(8) would give 16.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has one set bit, so clearing the lowest set bit leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
