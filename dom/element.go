package dom

import "fmt"

// Element the handle of an element, nil if the element does not exist
func (replica *Replica) Element(id int) *Element {
	if !replica.Has(id) {
		return nil
	}
	return &Element{replica: replica, id: id}
}

// Root the handle of the root element
func (replica *Replica) Root() *Element {
	return &Element{replica: replica, id: RootID}
}

// ID the element id
func (element *Element) ID() int {
	return element.id
}

// Tag the element tag, empty if the element was dropped
func (element *Element) Tag() string {
	element.replica.mutex.RLock()
	defer element.replica.mutex.RUnlock()
	if node, has := element.replica.nodes[element.id]; has {
		return node.Tag
	}
	return ""
}

// GetAttribute read an attribute
func (element *Element) GetAttribute(key string) (string, bool) {
	element.replica.mutex.RLock()
	defer element.replica.mutex.RUnlock()
	node, has := element.replica.nodes[element.id]
	if !has {
		return "", false
	}
	value, has := node.Attributes[key]
	return value, has
}

// GetStyleProperty read a style property
func (element *Element) GetStyleProperty(key string) (StyleValue, bool) {
	element.replica.mutex.RLock()
	defer element.replica.mutex.RUnlock()
	node, has := element.replica.nodes[element.id]
	if !has {
		return StyleValue{}, false
	}
	value, has := node.Style[key]
	return value, has
}

// SetAttribute mutate the element directly, a later operation on the same key overwrites it
func (element *Element) SetAttribute(key string, value *string) {
	element.mutate(NewSetAttribute(element.id, key, value))
}

// SetStyleProperty mutate the element style directly
func (element *Element) SetStyleProperty(key string, value string, important bool) {
	element.mutate(NewSetStyleProperty(element.id, key, value, important))
}

// RemoveStyleProperty remove a style property directly
func (element *Element) RemoveStyleProperty(key string) {
	element.mutate(NewRemoveStyleProperty(element.id, key))
}

// SetText set the element text directly
func (element *Element) SetText(text string) {
	element.mutate(NewSetText(element.id, text))
}

func (element *Element) mutate(op Operation) {
	element.replica.mutex.Lock()
	defer element.replica.mutex.Unlock()
	element.replica.apply(op)
}

// MarshalJSON the element travels as its id
func (element *Element) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"elementRefptr":%d}`, element.id)), nil
}
