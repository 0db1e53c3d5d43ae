package lifetime

import (
	"runtime"
	"sync/atomic"

	"github.com/yaoapp/kun/any"
	"github.com/yaoapp/kun/log"
)

// New create a manager, the released handles are sent to the sink once per tick.
// A nil executor sends every release right away.
func New(name string, executor Executor, sink Sink) *Manager {
	return &Manager{
		name:     name,
		executor: executor,
		sink:     sink,
		counts:   map[int]int{},
		pending:  []int{},
	}
}

// Track add an owner of the handle and return its proxy
func (m *Manager) Track(handle int) *Proxy {
	m.Retain(handle)
	released := &atomic.Bool{}
	proxy := &Proxy{handle: handle, manager: m, released: released}
	proxy.cleanup = runtime.AddCleanup(proxy, finalize, record{handle: handle, manager: m, released: released})
	return proxy
}

func finalize(r record) {
	if r.released.CompareAndSwap(false, true) {
		log.Trace("[lifetime] %s handle %d collected", r.manager.name, r.handle)
		r.manager.Drop(r.handle)
	}
}

// Handle the tracked handle
func (proxy *Proxy) Handle() int {
	return proxy.handle
}

// Released check if the proxy was released
func (proxy *Proxy) Released() bool {
	return proxy.released.Load()
}

// Release drop the owner, only the first call counts
func (proxy *Proxy) Release() {
	if !proxy.released.CompareAndSwap(false, true) {
		return
	}
	proxy.cleanup.Stop()
	proxy.manager.Drop(proxy.handle)
}

// Retain add an owner of the handle, return the number of owners
func (m *Manager) Retain(handle int) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counts[handle]++
	return m.counts[handle]
}

// Drop remove an owner of the handle, the last owner queues the release
func (m *Manager) Drop(handle int) {
	m.mutex.Lock()
	count, has := m.counts[handle]
	if !has {
		m.mutex.Unlock()
		return
	}

	if count > 1 {
		m.counts[handle] = count - 1
		m.mutex.Unlock()
		return
	}

	delete(m.counts, handle)
	m.pending = append(m.pending, handle)
	schedule := !m.scheduled && m.executor != nil
	if schedule {
		m.scheduled = true
	}
	m.mutex.Unlock()

	if m.executor == nil {
		m.Flush()
		return
	}

	if schedule {
		if err := m.executor.Submit(m.Flush); err != nil {
			log.Warn("[lifetime] %s schedule release: %s", m.name, err.Error())
			m.mutex.Lock()
			m.scheduled = false
			m.mutex.Unlock()
		}
	}
}

// Flush send the queued releases
func (m *Manager) Flush() {
	m.mutex.Lock()
	handles := m.pending
	m.pending = []int{}
	m.scheduled = false
	m.mutex.Unlock()

	if len(handles) == 0 {
		return
	}

	log.Trace("[lifetime] %s release %v", m.name, handles)
	if m.sink != nil {
		m.sink(handles)
	}
}

// Count the number of owners of the handle
func (m *Manager) Count(handle int) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.counts[handle]
}

// Pending the handles waiting for the flush
func (m *Manager) Pending() []int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]int{}, m.pending...)
}

// Handles read a list of handles from a decoded message argument
func Handles(value interface{}) []int {
	switch values := value.(type) {
	case []int:
		return values
	case []interface{}:
		handles := make([]int, 0, len(values))
		for _, v := range values {
			handles = append(handles, any.Of(v).CInt())
		}
		return handles
	}
	return []int{}
}

// Release remove the handles from the pool, unknown handles are ignored
func Release(pool Remover, handles []int) {
	for _, handle := range handles {
		pool.Remove(handle)
	}
}
