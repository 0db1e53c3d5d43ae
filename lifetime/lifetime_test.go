package lifetime

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/duet/ref"
	"github.com/yaoapp/duet/thread"
)

type tasks struct {
	queue []func()
	mutex sync.Mutex
}

func (t *tasks) Submit(task func()) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.queue = append(t.queue, task)
	return nil
}

func (t *tasks) run() int {
	t.mutex.Lock()
	queue := t.queue
	t.queue = nil
	t.mutex.Unlock()
	for _, task := range queue {
		task()
	}
	return len(queue)
}

type collector struct {
	batches [][]int
	mutex   sync.Mutex
}

func (c *collector) sink(handles []int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.batches = append(c.batches, handles)
}

func (c *collector) all() [][]int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([][]int{}, c.batches...)
}

func TestReleaseBatched(t *testing.T) {
	executor := &tasks{}
	sink := &collector{}
	manager := New("test", executor, sink.sink)

	a := manager.Track(1)
	b := manager.Track(2)
	c := manager.Track(3)
	a.Release()
	b.Release()
	c.Release()
	c.Release()

	assert.Equal(t, []int{1, 2, 3}, manager.Pending())
	assert.Empty(t, sink.all())
	assert.Equal(t, 1, executor.run())
	assert.Equal(t, [][]int{{1, 2, 3}}, sink.all())
	assert.True(t, a.Released())

	// the next tick opens a new batch
	d := manager.Track(4)
	d.Release()
	assert.Equal(t, 1, executor.run())
	assert.Equal(t, [][]int{{1, 2, 3}, {4}}, sink.all())
}

func TestRetainDrop(t *testing.T) {
	sink := &collector{}
	manager := New("test", nil, sink.sink)

	assert.Equal(t, 1, manager.Retain(7))
	assert.Equal(t, 2, manager.Retain(7))
	manager.Drop(7)
	assert.Equal(t, 1, manager.Count(7))
	assert.Empty(t, sink.all())

	manager.Drop(7)
	assert.Equal(t, 0, manager.Count(7))
	assert.Equal(t, [][]int{{7}}, sink.all())

	// unknown handles are ignored
	manager.Drop(7)
	manager.Drop(99)
	assert.Len(t, sink.all(), 1)
}

func TestSharedHandle(t *testing.T) {
	sink := &collector{}
	manager := New("test", nil, sink.sink)
	a := manager.Track(5)
	b := manager.Track(5)
	a.Release()
	assert.Empty(t, sink.all())
	b.Release()
	assert.Equal(t, [][]int{{5}}, sink.all())
}

func TestCollected(t *testing.T) {
	sink := &collector{}
	manager := New("test", nil, sink.sink)

	func() {
		proxy := manager.Track(11)
		assert.Equal(t, 11, proxy.Handle())
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return len(sink.all()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]int{{11}}, sink.all())
}

func TestReleaseOnThread(t *testing.T) {
	th := thread.New("lifetime")
	require.NoError(t, th.Start())
	defer th.Destroy()

	pool := ref.New[string]()
	h1 := pool.Add("a")
	h2 := pool.Add("b")

	done := make(chan []int, 1)
	manager := New("test", th, func(handles []int) {
		Release(pool, handles)
		done <- handles
	})

	th.Exec(func() interface{} {
		manager.Track(h1).Release()
		manager.Track(h2).Release()
		return nil
	})

	select {
	case handles := <-done:
		assert.Equal(t, []int{h1, h2}, handles)
	case <-time.After(time.Second):
		t.Fatal("release timeout")
	}

	_, has := pool.Get(h1)
	assert.False(t, has)
	assert.Equal(t, 0, pool.Len())
}

func TestHandles(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Handles([]interface{}{float64(1), 2}))
	assert.Equal(t, []int{3}, Handles([]int{3}))
	assert.Equal(t, []int{}, Handles("x"))
}
