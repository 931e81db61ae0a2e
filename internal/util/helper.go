// Package util provides small helpers shared across go-pl2303 packages.
package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
//
// The driver uses it to detach transfer payloads from reusable poll buffers
// before they are handed to notification handlers.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}
