package ref

// New create a new index map
func New[T any]() *IndexMap[T] {
	return &IndexMap[T]{values: map[int]T{}}
}

// Add store the value and return its handle (lastIndex + 1)
func (m *IndexMap[T]) Add(value T) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastIndex++
	m.values[m.lastIndex] = value
	return m.lastIndex
}

// Get the value of the handle, ok is false if the handle was never added or has been removed
func (m *IndexMap[T]) Get(handle int) (value T, ok bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok = m.values[handle]
	return value, ok
}

// Has check if the handle is live
func (m *IndexMap[T]) Has(handle int) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.values[handle]
	return ok
}

// Remove invalidate the handle. Removing twice is a no-op.
func (m *IndexMap[T]) Remove(handle int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.values, handle)
}

// Len the number of live handles
func (m *IndexMap[T]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.values)
}

// LastIndex the last handle minted
func (m *IndexMap[T]) LastIndex() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.lastIndex
}

// Range traverse the live handles in an unspecified order, stop when callback returns false.
// The callback must not add or remove handles of the same map.
func (m *IndexMap[T]) Range(callback func(handle int, value T) bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for handle, value := range m.values {
		if !callback(handle, value) {
			break
		}
	}
}
