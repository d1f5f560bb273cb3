package ir

import (
	"nikand.dev/go/heap"
)

// SortEntryFirst returns names ordered by name with entry moved to the front.
// Empty entry means plain sort.
func SortEntryFirst[T ~string](entry T, names []T) []T {
	h := heap.Heap[T]{
		Less: func(d []T, i, j int) bool {
			if entry != "" && (d[i] == entry) != (d[j] == entry) {
				return d[i] == entry
			}

			return d[i] < d[j]
		},
	}

	for _, n := range names {
		h.Push(n)
	}

	r := make([]T, 0, len(names))

	for h.Len() != 0 {
		r = append(r, h.Pop())
	}

	return r
}
