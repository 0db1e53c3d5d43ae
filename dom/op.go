package dom

import "fmt"

// Value the pointer of a value, for SetAttribute
func Value(value string) *string {
	return &value
}

// NewCreateElement create-element(tag, uid)
func NewCreateElement(uid int, tag string) Operation {
	return Operation{Type: CreateElement, UID: uid, Tag: tag}
}

// NewSetAttribute set-attribute(uid, key, value), nil removes the attribute
func NewSetAttribute(uid int, key string, value *string) Operation {
	return Operation{Type: SetAttribute, UID: uid, Key: key, Value: value}
}

// NewRemoveAttribute remove-attribute(uid, key)
func NewRemoveAttribute(uid int, key string) Operation {
	return Operation{Type: RemoveAttribute, UID: uid, Key: key}
}

// NewSetStyleProperty set-style-property(uid, key, value, important)
func NewSetStyleProperty(uid int, key string, value string, important bool) Operation {
	return Operation{Type: SetStyleProperty, UID: uid, Key: key, Value: &value, Important: important}
}

// NewRemoveStyleProperty remove-style-property(uid, key)
func NewRemoveStyleProperty(uid int, key string) Operation {
	return Operation{Type: RemoveStyleProperty, UID: uid, Key: key}
}

// NewAppendChild append-child(parent, child, index)
func NewAppendChild(parent int, child int, index int) Operation {
	return Operation{Type: AppendChild, UID: parent, Child: child, Index: index}
}

// NewInsertBefore insert-before(parent, child, ref)
func NewInsertBefore(parent int, child int, ref int) Operation {
	return Operation{Type: InsertBefore, UID: parent, Child: child, Ref: ref}
}

// NewRemove remove-child(uid)
func NewRemove(uid int) Operation {
	return Operation{Type: Remove, UID: uid}
}

// NewRemoveChild remove-child(parent, child)
func NewRemoveChild(parent int, child int) Operation {
	return Operation{Type: RemoveChild, UID: parent, Child: child}
}

// NewReplaceWith replace-with(uid, nodes)
func NewReplaceWith(uid int, nodes ...int) Operation {
	return Operation{Type: ReplaceWith, UID: uid, Nodes: nodes}
}

// NewBindEvent bind-event(uid, type, handler)
func NewBindEvent(uid int, eventType string, handler string) Operation {
	return Operation{Type: BindEvent, UID: uid, EventType: eventType, Handler: handler}
}

// NewSetText set-text(uid, text)
func NewSetText(uid int, text string) Operation {
	return Operation{Type: SetText, UID: uid, Text: text}
}

// NewRegisterWorklet register-worklet(hash, source)
func NewRegisterWorklet(hash string, source string) Operation {
	return Operation{Type: RegisterWorklet, Hash: hash, Source: source}
}

// Refs the element ids the operation references
func (op Operation) Refs() []int {
	switch op.Type {
	case CreateElement, RegisterWorklet:
		return nil
	case AppendChild, RemoveChild:
		return []int{op.UID, op.Child}
	case InsertBefore:
		if op.Ref != 0 {
			return []int{op.UID, op.Child, op.Ref}
		}
		return []int{op.UID, op.Child}
	case ReplaceWith:
		return append([]int{op.UID}, op.Nodes...)
	}
	return []int{op.UID}
}

func (t OperationType) String() string {
	switch t {
	case CreateElement:
		return "create-element"
	case SetAttribute:
		return "set-attribute"
	case RemoveAttribute:
		return "remove-attribute"
	case AppendChild:
		return "append-child"
	case Remove:
		return "remove"
	case ReplaceWith:
		return "replace-with"
	case InsertBefore:
		return "insert-before"
	case BindEvent:
		return "bind-event"
	case RemoveChild:
		return "remove-child"
	case SetStyleProperty:
		return "set-style-property"
	case RemoveStyleProperty:
		return "remove-style-property"
	case SetText:
		return "set-text"
	case RegisterWorklet:
		return "register-worklet"
	}
	return fmt.Sprintf("unknown(%d)", t)
}

func (v *Violation) Error() string {
	return fmt.Sprintf("operation %d %s(uid=%d): %s", v.Index, v.Op.Type, v.Op.UID, v.Err.Error())
}

func (v *Violation) Unwrap() error {
	return v.Err
}
