package dom

import (
	"fmt"

	"github.com/yaoapp/kun/log"
)

// ErrDuplicateElement the element id is already in use in this document
var ErrDuplicateElement = fmt.Errorf("duplicate element")

// NewDocument create a logic side document, dev enables the register-worklet operations
func NewDocument(dev bool) *Document {
	return &Document{
		ops:    []Operation{},
		mirror: NewReplica(),
		dev:    dev,
		events: map[string]EventHandler{},
	}
}

// Dev check if the document records the DEV only operations
func (doc *Document) Dev() bool {
	return doc.dev
}

// CreateElement create an element with the next free id
func (doc *Document) CreateElement(tag string) int {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	doc.lastID++
	for doc.mirror.Has(doc.lastID) {
		doc.lastID++
	}
	doc.push(NewCreateElement(doc.lastID, tag))
	return doc.lastID
}

// CreateElementWithID create an element with an id minted by the caller
func (doc *Document) CreateElementWithID(tag string, id int) error {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	if doc.mirror.Has(id) {
		return fmt.Errorf("%w %d", ErrDuplicateElement, id)
	}
	doc.push(NewCreateElement(id, tag))
	if id > doc.lastID {
		doc.lastID = id
	}
	return nil
}

// SetAttribute set an attribute, nil removes it
func (doc *Document) SetAttribute(id int, key string, value *string) error {
	return doc.Record(NewSetAttribute(id, key, value))
}

// RemoveAttribute remove an attribute
func (doc *Document) RemoveAttribute(id int, key string) error {
	return doc.Record(NewRemoveAttribute(id, key))
}

// SetStyleProperty set a resolved style property
func (doc *Document) SetStyleProperty(id int, key string, value string, important bool) error {
	return doc.Record(NewSetStyleProperty(id, key, value, important))
}

// RemoveStyleProperty remove a style property
func (doc *Document) RemoveStyleProperty(id int, key string) error {
	return doc.Record(NewRemoveStyleProperty(id, key))
}

// AppendChild insert the child at index, a negative index appends
func (doc *Document) AppendChild(parent int, child int, index int) error {
	return doc.Record(NewAppendChild(parent, child, index))
}

// InsertBefore insert the child before ref, ref 0 appends
func (doc *Document) InsertBefore(parent int, child int, ref int) error {
	return doc.Record(NewInsertBefore(parent, child, ref))
}

// RemoveChild remove the child from the parent
func (doc *Document) RemoveChild(parent int, child int) error {
	return doc.Record(NewRemoveChild(parent, child))
}

// Remove detach the element from its parent
func (doc *Document) Remove(id int) error {
	return doc.Record(NewRemove(id))
}

// ReplaceWith replace the element with the nodes
func (doc *Document) ReplaceWith(id int, nodes ...int) error {
	return doc.Record(NewReplaceWith(id, nodes...))
}

// BindEvent bind the event to a handler name, an empty name unbinds
func (doc *Document) BindEvent(id int, eventType string, handler string) error {
	return doc.Record(NewBindEvent(id, eventType, handler))
}

// SetText set the element text
func (doc *Document) SetText(id int, text string) error {
	return doc.Record(NewSetText(id, text))
}

// RegisterWorklet record a register-worklet operation, only in dev mode
func (doc *Document) RegisterWorklet(hash string, source string) {
	if !doc.dev {
		return
	}
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	doc.push(NewRegisterWorklet(hash, source))
}

// Record check the operation against the local mirror and append it
func (doc *Document) Record(op Operation) error {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()

	if op.Type == CreateElement && doc.mirror.Has(op.UID) {
		return fmt.Errorf("%w %d", ErrDuplicateElement, op.UID)
	}

	doc.mirror.mutex.Lock()
	err := doc.mirror.apply(op)
	doc.mirror.mutex.Unlock()
	if err != nil {
		log.Warn("[document] %s(uid=%d) rejected: %s", op.Type, op.UID, err.Error())
		return err
	}

	doc.ops = append(doc.ops, op)
	if op.Type == CreateElement && op.UID > doc.lastID {
		doc.lastID = op.UID
	}
	return nil
}

func (doc *Document) push(op Operation) {
	doc.mirror.mutex.Lock()
	doc.mirror.apply(op)
	doc.mirror.mutex.Unlock()
	doc.ops = append(doc.ops, op)
}

// Flush take the recorded operations and reset the log
func (doc *Document) Flush() []Operation {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	ops := doc.ops
	doc.ops = []Operation{}
	return ops
}

// Len the number of operations waiting for the flush
func (doc *Document) Len() int {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	return len(doc.ops)
}

// Node the logic side view of an element
func (doc *Document) Node(id int) (Node, bool) {
	return doc.mirror.Node(id)
}

// Snapshot the logic side view of the tree
func (doc *Document) Snapshot() *Tree {
	return doc.mirror.Snapshot()
}

// OnEvent register the handler of the event handler name
func (doc *Document) OnEvent(name string, handler EventHandler) {
	doc.mutex.Lock()
	defer doc.mutex.Unlock()
	doc.events[name] = handler
}

// HandleEvent run the handler of an event forwarded from the UI thread
func (doc *Document) HandleEvent(event Event) bool {
	doc.mutex.Lock()
	handler, has := doc.events[event.Handler]
	doc.mutex.Unlock()

	if !has {
		log.Trace("[document] no handler %s for %s on %d", event.Handler, event.Type, event.Target)
		return false
	}
	handler(event)
	return true
}
