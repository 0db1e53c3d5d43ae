package thread

import (
	"strings"
	"sync"
)

// ID is the thread id
type ID string

func (id ID) String() string {
	return strings.Split(string(id), "-")[0]
}

// Thread is one isolate: a single goroutine draining a FIFO task queue.
// Code submitted to the same thread never runs concurrently.
type Thread struct {
	id        ID
	name      string
	status    uint32
	gid       int64
	queue     []func()
	afterTick []func()
	mutex     sync.Mutex
	wake      chan struct{}
	signal    chan uint8
	done      chan struct{}
}

const (
	// StatusInit the thread is created but not started
	StatusInit uint32 = iota

	// StatusReady the thread is waiting for tasks
	StatusReady

	// StatusRunning the thread is draining the queue
	StatusRunning

	// StatusDestroy the thread is destroyed
	StatusDestroy

	// CommandDestroy stop the loop
	CommandDestroy uint8 = 1
)
