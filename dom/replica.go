package dom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yaoapp/kun/log"
)

// ErrUnknownElement the operation references an element that was never created
var ErrUnknownElement = fmt.Errorf("unknown element")

// ErrNotChild the element is not a child of the parent
var ErrNotChild = fmt.Errorf("not a child")

// ErrCycle the element would become its own ancestor
var ErrCycle = fmt.Errorf("element cycle")

// ErrRoot the root can not be moved, removed or replaced
var ErrRoot = fmt.Errorf("root element")

// ErrUnknownOperation the operation type is not supported
var ErrUnknownOperation = fmt.Errorf("unknown operation")

// NewReplica create an empty replica, the root element 0 always exists
func NewReplica() *Replica {
	return &Replica{nodes: map[int]*Node{RootID: newNode(RootID, "page")}}
}

func newNode(id int, tag string) *Node {
	return &Node{
		ID:         id,
		Tag:        tag,
		Parent:     -1,
		Attributes: map[string]string{},
		Style:      map[string]StyleValue{},
		Events:     map[string]string{},
	}
}

// OnRegisterWorklet set the hook receiving the register-worklet operations
func (replica *Replica) OnRegisterWorklet(fn func(hash string, source string)) {
	replica.mutex.Lock()
	defer replica.mutex.Unlock()
	replica.worklet = fn
}

// Observe set the hook called after every applied operation
func (replica *Replica) Observe(fn func(op Operation)) {
	replica.mutex.Lock()
	defer replica.mutex.Unlock()
	replica.observer = fn
}

// Apply replay the operations in order. A violating operation is logged and skipped,
// the rest of the log is still applied.
func (replica *Replica) Apply(ops []Operation) []error {
	errs := []error{}
	for i, op := range ops {
		replica.mutex.Lock()
		err := replica.apply(op)
		worklet := replica.worklet
		observer := replica.observer
		replica.mutex.Unlock()

		if err != nil {
			violation := &Violation{Index: i, Op: op, Err: err}
			log.With(log.F{"index": i, "type": op.Type.String(), "uid": op.UID}).Error("[replica] %s", violation.Error())
			errs = append(errs, violation)
			continue
		}

		if op.Type == RegisterWorklet {
			if worklet == nil {
				log.Trace("[replica] register-worklet %s ignored", op.Hash)
			} else {
				worklet(op.Hash, op.Source)
			}
		}

		if observer != nil {
			observer(op)
		}
	}
	return errs
}

func (replica *Replica) apply(op Operation) error {
	switch op.Type {
	case CreateElement:
		if op.UID == RootID {
			return ErrRoot
		}
		replica.create(op.UID, op.Tag)
		return nil

	case RegisterWorklet:
		return nil
	}

	for _, id := range op.Refs() {
		if _, has := replica.nodes[id]; !has {
			return fmt.Errorf("%w %d", ErrUnknownElement, id)
		}
	}

	node := replica.nodes[op.UID]
	switch op.Type {
	case SetAttribute:
		if op.Value == nil {
			delete(node.Attributes, op.Key)
			return nil
		}
		node.Attributes[op.Key] = *op.Value

	case RemoveAttribute:
		delete(node.Attributes, op.Key)

	case SetStyleProperty:
		value := ""
		if op.Value != nil {
			value = *op.Value
		}
		node.Style[op.Key] = StyleValue{Value: value, Important: op.Important}

	case RemoveStyleProperty:
		delete(node.Style, op.Key)

	case BindEvent:
		if op.Handler == "" {
			delete(node.Events, op.EventType)
			return nil
		}
		node.Events[op.EventType] = op.Handler

	case SetText:
		node.Text = op.Text

	case AppendChild:
		return replica.insert(op.UID, op.Child, op.Index)

	case InsertBefore:
		if op.Ref == 0 {
			return replica.insert(op.UID, op.Child, -1)
		}
		if replica.nodes[op.Ref].Parent != op.UID {
			return fmt.Errorf("%w: %d of %d", ErrNotChild, op.Ref, op.UID)
		}
		if err := replica.movable(op.UID, op.Child); err != nil {
			return err
		}
		replica.detach(op.Child)
		return replica.insert(op.UID, op.Child, indexOf(node.Children, op.Ref))

	case Remove:
		if op.UID == RootID {
			return ErrRoot
		}
		replica.detach(op.UID)

	case RemoveChild:
		if replica.nodes[op.Child].Parent != op.UID {
			return fmt.Errorf("%w: %d of %d", ErrNotChild, op.Child, op.UID)
		}
		replica.detach(op.Child)

	case ReplaceWith:
		return replica.replace(op.UID, op.Nodes)

	default:
		return fmt.Errorf("%w %d", ErrUnknownOperation, op.Type)
	}
	return nil
}

// create allocates the element, a live id is reset and its children are orphaned
func (replica *Replica) create(id int, tag string) {
	if old, has := replica.nodes[id]; has {
		replica.detach(id)
		for _, child := range old.Children {
			if node, has := replica.nodes[child]; has {
				node.Parent = -1
			}
		}
	}
	replica.nodes[id] = newNode(id, tag)
}

func (replica *Replica) movable(parent int, child int) error {
	if child == RootID {
		return ErrRoot
	}
	for id := parent; id >= 0; {
		if id == child {
			return fmt.Errorf("%w: %d under %d", ErrCycle, child, parent)
		}
		node, has := replica.nodes[id]
		if !has {
			break
		}
		id = node.Parent
	}
	return nil
}

func (replica *Replica) insert(parent int, child int, index int) error {
	if err := replica.movable(parent, child); err != nil {
		return err
	}
	replica.detach(child)

	node := replica.nodes[parent]
	if index < 0 || index >= len(node.Children) {
		node.Children = append(node.Children, child)
	} else {
		node.Children = append(node.Children, 0)
		copy(node.Children[index+1:], node.Children[index:])
		node.Children[index] = child
	}
	replica.nodes[child].Parent = parent
	return nil
}

func (replica *Replica) detach(id int) {
	node, has := replica.nodes[id]
	if !has || node.Parent < 0 {
		return
	}

	if parent, has := replica.nodes[node.Parent]; has {
		if i := indexOf(parent.Children, id); i >= 0 {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
		}
	}
	node.Parent = -1
}

// replace splices the nodes where id was, in order. id may be one of the nodes.
func (replica *Replica) replace(id int, nodes []int) error {
	if id == RootID {
		return ErrRoot
	}

	node := replica.nodes[id]
	if node.Parent < 0 {
		return fmt.Errorf("%w: %d has no parent", ErrNotChild, id)
	}

	parent := node.Parent
	moving := map[int]bool{id: true}
	for _, nid := range nodes {
		if nid == id {
			continue
		}
		if err := replica.movable(parent, nid); err != nil {
			return err
		}
		moving[nid] = true
	}

	// the position of id once every moving node has left the parent
	index := 0
	for _, child := range replica.nodes[parent].Children {
		if child == id {
			break
		}
		if !moving[child] {
			index++
		}
	}

	replica.detach(id)
	inserted := []int{}
	for _, nid := range nodes {
		if indexOf(inserted, nid) >= 0 {
			continue
		}
		replica.detach(nid)
		inserted = append(inserted, nid)
	}

	children := replica.nodes[parent].Children
	spliced := make([]int, 0, len(children)+len(inserted))
	spliced = append(spliced, children[:index]...)
	spliced = append(spliced, inserted...)
	spliced = append(spliced, children[index:]...)
	replica.nodes[parent].Children = spliced
	for _, nid := range inserted {
		replica.nodes[nid].Parent = parent
	}
	return nil
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Len the number of elements, the root and detached elements included
func (replica *Replica) Len() int {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	return len(replica.nodes)
}

// Has check if the element exists
func (replica *Replica) Has(id int) bool {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	_, has := replica.nodes[id]
	return has
}

// Node a copy of the element node
func (replica *Replica) Node(id int) (Node, bool) {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	node, has := replica.nodes[id]
	if !has {
		return Node{}, false
	}
	return node.clone(), true
}

// Nodes a copy of every node, keyed by id
func (replica *Replica) Nodes() map[int]Node {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	nodes := make(map[int]Node, len(replica.nodes))
	for id, node := range replica.nodes {
		nodes[id] = node.clone()
	}
	return nodes
}

// Snapshot the structural value of the tree under the root
func (replica *Replica) Snapshot() *Tree {
	return replica.SnapshotOf(RootID)
}

// SnapshotOf the structural value of the subtree, nil if the element does not exist
func (replica *Replica) SnapshotOf(id int) *Tree {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	return replica.tree(id)
}

func (replica *Replica) tree(id int) *Tree {
	node, has := replica.nodes[id]
	if !has {
		return nil
	}

	clone := node.clone()
	tree := &Tree{
		ID:         id,
		Tag:        clone.Tag,
		Attributes: clone.Attributes,
		Style:      clone.Style,
		Events:     clone.Events,
		Text:       clone.Text,
	}
	for _, child := range node.Children {
		if sub := replica.tree(child); sub != nil {
			tree.Children = append(tree.Children, sub)
		}
	}
	return tree
}

// HandlerOf find the handler of the event, walking up from the target to the root
func (replica *Replica) HandlerOf(id int, eventType string) (handler string, target int, has bool) {
	replica.mutex.RLock()
	defer replica.mutex.RUnlock()
	for id >= 0 {
		node, ok := replica.nodes[id]
		if !ok {
			return "", -1, false
		}
		if name, ok := node.Events[eventType]; ok {
			return name, id, true
		}
		id = node.Parent
	}
	return "", -1, false
}

// String the indented tree under the root
func (replica *Replica) String() string {
	tree := replica.Snapshot()
	builder := &strings.Builder{}
	tree.write(builder, 0)
	return builder.String()
}

func (node *Node) clone() Node {
	clone := *node
	clone.Children = append([]int{}, node.Children...)
	clone.Attributes = make(map[string]string, len(node.Attributes))
	for k, v := range node.Attributes {
		clone.Attributes[k] = v
	}
	clone.Style = make(map[string]StyleValue, len(node.Style))
	for k, v := range node.Style {
		clone.Style[k] = v
	}
	clone.Events = make(map[string]string, len(node.Events))
	for k, v := range node.Events {
		clone.Events[k] = v
	}
	return clone
}

// String the indented subtree
func (tree *Tree) String() string {
	builder := &strings.Builder{}
	tree.write(builder, 0)
	return builder.String()
}

// Lines the rendered lines of the subtree, with their depth
func (tree *Tree) Lines() []Line {
	lines := []Line{}
	tree.walk(0, func(depth int, t *Tree) {
		lines = append(lines, Line{Depth: depth, Tree: t, Text: t.line()})
	})
	return lines
}

// Line one rendered element
type Line struct {
	Depth int
	Tree  *Tree
	Text  string
}

func (tree *Tree) walk(depth int, fn func(depth int, t *Tree)) {
	if tree == nil {
		return
	}
	fn(depth, tree)
	for _, child := range tree.Children {
		child.walk(depth+1, fn)
	}
}

func (tree *Tree) write(builder *strings.Builder, depth int) {
	tree.walk(depth, func(depth int, t *Tree) {
		builder.WriteString(strings.Repeat("  ", depth))
		builder.WriteString(t.line())
		builder.WriteString("\n")
	})
}

func (tree *Tree) line() string {
	parts := []string{fmt.Sprintf("<%s#%d>", tree.Tag, tree.ID)}
	for _, key := range sortedKeys(tree.Attributes) {
		parts = append(parts, fmt.Sprintf("%s=%q", key, tree.Attributes[key]))
	}

	if len(tree.Style) > 0 {
		style := []string{}
		keys := make([]string, 0, len(tree.Style))
		for key := range tree.Style {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := tree.Style[key]
			if value.Important {
				style = append(style, fmt.Sprintf("%s:%s !important", key, value.Value))
				continue
			}
			style = append(style, fmt.Sprintf("%s:%s", key, value.Value))
		}
		parts = append(parts, fmt.Sprintf("style=%q", strings.Join(style, ";")))
	}

	for _, key := range sortedKeys(tree.Events) {
		parts = append(parts, fmt.Sprintf("@%s=%s", key, tree.Events[key]))
	}

	if tree.Text != "" {
		parts = append(parts, fmt.Sprintf("%q", tree.Text))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
