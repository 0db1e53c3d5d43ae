package lifetime

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Sink receives the handles released within one tick
type Sink func(handles []int)

// Executor schedules the batch flush on the owning isolate
type Executor interface {
	Submit(task func()) error
}

// Remover a pool the released handles are removed from
type Remover interface {
	Remove(handle int)
}

// Manager tracks the owners of the handles vended to the peer isolate
type Manager struct {
	name      string
	executor  Executor
	sink      Sink
	counts    map[int]int
	pending   []int
	scheduled bool
	mutex     sync.Mutex
}

// Proxy one owner of a handle. Dropping every reference to the proxy releases it
// at an unspecified point, Release releases it now.
type Proxy struct {
	handle   int
	manager  *Manager
	released *atomic.Bool
	cleanup  runtime.Cleanup
}

type record struct {
	handle   int
	manager  *Manager
	released *atomic.Bool
}
