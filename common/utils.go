package common

// Coalesce returns the first non-zero value from the provided arguments.
//
// Parameters:
//   - values: candidate values in priority order
//
// Returns:
//   - T: the first value that is not the zero value, or the zero value when all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T ~int | ~uint32 | ~float32 | ~float64](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
