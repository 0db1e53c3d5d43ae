package worklet

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/duet/lifetime"
	"github.com/yaoapp/duet/ref"
	"rogchap.com/v8go"
)

// ErrInvalidWorklet the value is not a worklet descriptor
var ErrInvalidWorklet = fmt.Errorf("invalid worklet")

// ErrNotRegistered the worklet hash was never registered on this isolate
var ErrNotRegistered = fmt.Errorf("worklet is not registered")

// ErrDepthExceeded the captured values are nested too deep
var ErrDepthExceeded = fmt.Errorf("depth of value exceeds limit of %d", depthLimit)

// ErrNoEngine a script worklet runs on a runtime without script engine
var ErrNoEngine = fmt.Errorf("script engine is not enabled")

const depthLimit = 1000

// Kind where a worklet executes
type Kind string

const (
	// MainThread runs on the UI thread
	MainThread Kind = "main-thread"

	// Background runs on the logic thread
	Background Kind = "background"
)

// Descriptor the shippable part of a worklet, the body is looked up by hash
type Descriptor struct {
	Hash     string                 `json:"_wkltId"`
	Captured map[string]interface{} `json:"_c,omitempty"`
	ExecID   int                    `json:"_execId,omitempty"`
	Kind     Kind                   `json:"_kind,omitempty"`
}

// Func a native worklet body
type Func func(ctx *Context, args ...interface{}) (interface{}, error)

// Entry a registered worklet body, either native or script source
type Entry struct {
	Hash   string
	Func   Func
	Source string
}

// Registry hash to worklet body, the first registration wins
type Registry struct {
	entries map[string]*Entry
	mutex   sync.RWMutex
}

// Host the isolate local services a runtime resolves captured values against
type Host struct {
	Replica    *dom.Replica
	Refs       *RefMap
	Script     *Script
	Lifecycle  *JsFnLifecycle
	Background func(handle *JsFnHandle, args []interface{}) error
}

// Runtime runs worklets on the owning isolate
type Runtime struct {
	registry *Registry
	host     Host
}

// Context the execution context of a native worklet
type Context struct {
	Hash     string
	ExecID   int
	Captured map[string]interface{}
	runtime  *Runtime
}

// Bound a nested worklet bound to its captured values
type Bound struct {
	Hash     string
	Captured map[string]interface{}
	ExecID   int
	runtime  *Runtime
}

// Ref a worklet ref living on the UI thread
type Ref struct {
	ID      int `json:"_wvid"`
	current interface{}
	mutex   sync.RWMutex
}

// RefMap the UI side worklet refs
type RefMap struct {
	refs  map[int]*Ref
	mutex sync.RWMutex
}

// RefPatch the initial value of a worklet ref
type RefPatch struct {
	ID    int         `json:"id"`
	Value interface{} `json:"value"`
}

// RefPool the logic side worklet ref allocator
type RefPool struct {
	lastID  int
	patch   []RefPatch
	manager *lifetime.Manager
	mutex   sync.Mutex
}

// RefHandle the logic side proxy of a worklet ref
type RefHandle struct {
	ID    int `json:"_wvid"`
	proxy *lifetime.Proxy
}

// ExecIDMap the logic side map of posted worklets, keyed by exec id
type ExecIDMap struct {
	*ref.IndexMap[*Descriptor]
	lastFnID int
	mutex    sync.Mutex
}

// JsFn a logic thread function callable from the UI thread
type JsFn struct {
	ID int                       `json:"_jsFnId"`
	Fn func(args ...interface{}) `json:"-"`
}

// JsFnHandle the UI side handle of a logic thread function
type JsFnHandle struct {
	FnID   int `json:"_jsFnId"`
	ExecID int `json:"_execId"`
	proxy  *lifetime.Proxy
}

// JsFnLifecycle counts the UI side handles per exec id, an exec id without
// handles is released to the logic thread once per tick.
type JsFnLifecycle struct {
	*lifetime.Manager
}

// Script the v8 engine running script worklets
type Script struct {
	iso        *v8go.Isolate
	ctx        *v8go.Context
	cache      *lru.ARCCache
	replica    *dom.Replica
	refs       *RefMap
	background func(handle *JsFnHandle, args []interface{}) error
	mutex      sync.Mutex
}
