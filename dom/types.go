package dom

import "sync"

// OperationType the kind of a mutation
type OperationType uint8

const (
	// CreateElement create-element(tag, uid)
	CreateElement OperationType = iota + 1

	// SetAttribute set-attribute(uid, key, value), a nil value removes the attribute
	SetAttribute

	// RemoveAttribute remove-attribute(uid, key)
	RemoveAttribute

	// AppendChild append-child(uid as parent, cid, index), a negative index appends at the end
	AppendChild

	// Remove remove-child(uid), detach the element from its parent
	Remove

	// ReplaceWith replace-with(uid, nid...)
	ReplaceWith

	// InsertBefore insert-before(uid as parent, cid, ref), ref 0 appends at the end
	InsertBefore

	// BindEvent bind-event(uid, eventType, handler)
	BindEvent

	// RemoveChild remove-child(uid as parent, cid)
	RemoveChild

	// SetStyleProperty set-style-property(uid, key, value, important)
	SetStyleProperty

	// RemoveStyleProperty remove-style-property(uid, key)
	RemoveStyleProperty

	// SetText set-text(uid, text)
	SetText

	// RegisterWorklet DEV only, mirror a worklet registration (hash, source) on the companion runtime
	RegisterWorklet
)

// RootID the id of the document root, it exists on both sides
const RootID = 0

// Operation one mutation record
type Operation struct {
	Type      OperationType `json:"type"`
	UID       int           `json:"uid"`
	Tag       string        `json:"tag,omitempty"`
	Key       string        `json:"key,omitempty"`
	Value     *string       `json:"value,omitempty"`
	Important bool          `json:"important,omitempty"`
	Child     int           `json:"cid,omitempty"`
	Index     int           `json:"index,omitempty"`
	Ref       int           `json:"ref,omitempty"`
	Nodes     []int         `json:"nid,omitempty"`
	EventType string        `json:"eventType,omitempty"`
	Handler   string        `json:"handler,omitempty"`
	Text      string        `json:"text,omitempty"`
	Hash      string        `json:"hash,omitempty"`
	Source    string        `json:"source,omitempty"`
}

// StyleValue a style declaration
type StyleValue struct {
	Value     string `json:"value"`
	Important bool   `json:"important,omitempty"`
}

// Node an element of the arena, parent and children are ids
type Node struct {
	ID         int                   `json:"id"`
	Tag        string                `json:"tag"`
	Parent     int                   `json:"parent"` // -1 when detached
	Children   []int                 `json:"children,omitempty"`
	Attributes map[string]string     `json:"attributes,omitempty"`
	Style      map[string]StyleValue `json:"style,omitempty"`
	Events     map[string]string     `json:"events,omitempty"`
	Text       string                `json:"text,omitempty"`
}

// Tree a structural snapshot of a subtree
type Tree struct {
	ID         int                   `json:"id"`
	Tag        string                `json:"tag"`
	Attributes map[string]string     `json:"attributes,omitempty"`
	Style      map[string]StyleValue `json:"style,omitempty"`
	Events     map[string]string     `json:"events,omitempty"`
	Text       string                `json:"text,omitempty"`
	Children   []*Tree               `json:"children,omitempty"`
}

// Replica the UI thread mirror, built by replaying operation logs
type Replica struct {
	nodes    map[int]*Node
	worklet  func(hash string, source string)
	observer func(op Operation)
	mutex    sync.RWMutex
}

// Element a handle to a replica element, mutations bypass the operation log
type Element struct {
	replica *Replica
	id      int
}

// Document the logic thread recorder. Every mutation appends one operation and
// is applied to a local mirror, so invalid mutations are rejected at the source.
type Document struct {
	ops    []Operation
	mirror *Replica
	lastID int
	dev    bool
	events map[string]EventHandler
	mutex  sync.Mutex
}

// Event an event forwarded from the UI thread
type Event struct {
	Type    string                 `json:"type"`
	Target  int                    `json:"target"`
	Handler string                 `json:"handler"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// EventHandler handles an event on the logic thread
type EventHandler func(event Event)

// Violation a protocol violation of one operation in a log
type Violation struct {
	Index int
	Op    Operation
	Err   error
}
