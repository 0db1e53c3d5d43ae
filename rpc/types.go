package rpc

import (
	"sync"

	"github.com/yaoapp/duet/channel"
)

// Kind the call kind of an endpoint
type Kind uint8

const (
	// SyncVoid no result, the call site never waits
	SyncVoid Kind = iota

	// Sync a result the call site waits for with Call, the channel is never blocked
	Sync

	// AsyncVoid fire and forget
	AsyncVoid

	// Async a result delivered through a Future
	Async
)

// Endpoint a statically declared message contract
type Endpoint struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Arity int    `json:"arity"` // the number of arguments, -1 means variadic
}

// Handler the handler of an endpoint, a handler may return a *Future to reply later
type Handler func(args ...interface{}) (interface{}, error)

// Executor runs the handlers on the owning isolate
type Executor interface {
	Submit(task func()) error
}

// Rpc the multiplexed remote call layer over one port
type Rpc struct {
	name     string
	port     channel.Port
	executor Executor
	incID    uint64
	handlers map[string]Handler
	cache    map[string][]*channel.Message
	pending  map[string]*Future
	mutex    sync.Mutex
}

// Future a deferred result
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
	thens []func(value interface{}, err error)
	mutex sync.Mutex
}

type inline struct{}
