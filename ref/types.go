package ref

import "sync"

// IndexMap maps monotonically increasing integer handles to locally owned values.
// A handle is never reused, even after it has been removed.
type IndexMap[T any] struct {
	lastIndex int
	values    map[int]T
	mutex     sync.RWMutex
}
