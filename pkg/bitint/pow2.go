// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-two helpers used when sizing FFT
buffers. CQT frames need not be powers of two, so diagnostic transforms
that run radix-2 FFTs over kernels pad to NextPowerOfTwo.

	padded := bitint.NextPowerOfTwo(3500) // 4096
	bitint.IsPowerOfTwo(padded)           // true

Both functions are allocation free and constant time.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Non-positive
// sizes return 1. Subtracting one first keeps exact powers unchanged:
// Len(8-1) = 3 and 1<<3 = 8, whereas Len(8) = 4 would double it.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
