package collector

import "math"

// defaultBatchSize is the upper bound on blocks requested per sync tick
// under normal operation.
const defaultBatchSize = 100

// minBatchSize is the floor reduceBatchSize saturates at.
const minBatchSize = 2

// increaseBatchSize grows size by 1.25x (ceiling), clamped at
// defaultBatchSize. A size already at the default is a no-op.
func increaseBatchSize(size int) int {
	if size >= defaultBatchSize {
		return defaultBatchSize
	}
	grown := int(math.Ceil(float64(size) * 1.25))
	if grown > defaultBatchSize {
		grown = defaultBatchSize
	}
	if grown <= size {
		grown = size + 1
	}
	return grown
}

// reduceBatchSize halves size (ceiling), clamped at minBatchSize. A size
// already at the minimum is a no-op.
func reduceBatchSize(size int) int {
	if size <= minBatchSize {
		return minBatchSize
	}
	shrunk := int(math.Ceil(float64(size) / 2))
	if shrunk < minBatchSize {
		shrunk = minBatchSize
	}
	return shrunk
}
