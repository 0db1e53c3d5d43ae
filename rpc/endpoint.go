package rpc

import (
	"sync"

	"github.com/yaoapp/kun/exception"
)

var endpoints = map[string]*Endpoint{}
var endpointsMutex sync.Mutex

// Define declare an endpoint. The name is bound to one (kind, arity) for the lifetime of the process,
// redefining it with another shape throws.
func Define(name string, kind Kind, arity int) *Endpoint {
	endpointsMutex.Lock()
	defer endpointsMutex.Unlock()

	if endpoint, has := endpoints[name]; has {
		if endpoint.Kind != kind || endpoint.Arity != arity {
			exception.New("rpc endpoint %s is already defined with kind %d arity %d", 500, name, endpoint.Kind, endpoint.Arity).Throw()
		}
		return endpoint
	}

	endpoint := &Endpoint{Name: name, Kind: kind, Arity: arity}
	endpoints[name] = endpoint
	return endpoint
}

// Select a defined endpoint
func Select(name string) (*Endpoint, bool) {
	endpointsMutex.Lock()
	defer endpointsMutex.Unlock()
	endpoint, has := endpoints[name]
	return endpoint, has
}

// HasReturn check if the endpoint expects a result
func (endpoint *Endpoint) HasReturn() bool {
	return endpoint.Kind == Sync || endpoint.Kind == Async
}

// IsSync check if the endpoint is a sync kind
func (endpoint *Endpoint) IsSync() bool {
	return endpoint.Kind == Sync || endpoint.Kind == SyncVoid
}

func (kind Kind) String() string {
	switch kind {
	case SyncVoid:
		return "sync-void"
	case Sync:
		return "sync"
	case AsyncVoid:
		return "async-void"
	case Async:
		return "async"
	}
	return "unknown"
}
