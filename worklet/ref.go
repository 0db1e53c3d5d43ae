package worklet

import (
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/duet/lifetime"
	"github.com/yaoapp/kun/log"
)

// NewRefMap create the UI side ref map
func NewRefMap() *RefMap {
	return &RefMap{refs: map[int]*Ref{}}
}

// ApplyInitPatch create the refs of the patch, existing refs keep their value
func (m *RefMap) ApplyInitPatch(patch []RefPatch) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, p := range patch {
		if _, has := m.refs[p.ID]; has {
			continue
		}
		m.refs[p.ID] = &Ref{ID: p.ID, current: p.Value}
	}
}

// Get the ref, a released ref is a miss
func (m *RefMap) Get(id int) (*Ref, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ref, has := m.refs[id]
	return ref, has
}

// BindElement set the element as the current value of the ref, nil clears it
func (m *RefMap) BindElement(id int, element *dom.Element) {
	ref, has := m.Get(id)
	if !has {
		log.Warn("[worklet] bind element to unknown ref %d", id)
		return
	}
	if element == nil {
		ref.Set(nil)
		return
	}
	ref.Set(element)
}

// Remove the ref, removing twice is a no-op
func (m *RefMap) Remove(id int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.refs, id)
}

// Len the number of refs
func (m *RefMap) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.refs)
}

// Current the current value
func (ref *Ref) Current() interface{} {
	ref.mutex.RLock()
	defer ref.mutex.RUnlock()
	return ref.current
}

// Set the current value
func (ref *Ref) Set(value interface{}) {
	ref.mutex.Lock()
	defer ref.mutex.Unlock()
	ref.current = value
}

// Element the current value as an element
func (ref *Ref) Element() *dom.Element {
	element, _ := ref.Current().(*dom.Element)
	return element
}

// NewRefPool create the logic side ref allocator, the released ids go to the sink once per tick.
// A ref released before its initial value was taken never reaches the UI side, it is dropped from the patch.
func NewRefPool(executor lifetime.Executor, sink lifetime.Sink) *RefPool {
	pool := &RefPool{patch: []RefPatch{}}
	pool.manager = lifetime.New("refs", executor, func(ids []int) {
		ids = pool.unship(ids)
		if len(ids) > 0 && sink != nil {
			sink(ids)
		}
	})
	return pool
}

// unship remove the released ids from the pending patch, return the ids already shipped
func (pool *RefPool) unship(ids []int) []int {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	if len(pool.patch) == 0 {
		return ids
	}

	pending := map[int]bool{}
	for _, p := range pool.patch {
		pending[p.ID] = true
	}

	shipped := []int{}
	for _, id := range ids {
		if pending[id] {
			delete(pending, id)
			continue
		}
		shipped = append(shipped, id)
	}

	patch := []RefPatch{}
	for _, p := range pool.patch {
		if pending[p.ID] {
			patch = append(patch, p)
		}
	}
	pool.patch = patch
	return shipped
}

// Create mint a ref id and queue its initial value
func (pool *RefPool) Create(initValue interface{}) *RefHandle {
	pool.mutex.Lock()
	pool.lastID++
	id := pool.lastID
	pool.patch = append(pool.patch, RefPatch{ID: id, Value: initValue})
	pool.mutex.Unlock()
	return &RefHandle{ID: id, proxy: pool.manager.Track(id)}
}

// TakeInitPatch take the queued initial values
func (pool *RefPool) TakeInitPatch() []RefPatch {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	patch := pool.patch
	pool.patch = []RefPatch{}
	return patch
}

// Release release the ref on the UI thread
func (handle *RefHandle) Release() {
	if handle.proxy != nil {
		handle.proxy.Release()
	}
}
