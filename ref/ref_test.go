package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddGet(t *testing.T) {
	m := New[string]()
	h1 := m.Add("foo")
	h2 := m.Add("bar")
	assert.Equal(t, 1, h1)
	assert.Equal(t, 2, h2)

	value, ok := m.Get(h1)
	assert.True(t, ok)
	assert.Equal(t, "foo", value)

	value, ok = m.Get(h2)
	assert.True(t, ok)
	assert.Equal(t, "bar", value)
	assert.Equal(t, 2, m.Len())
}

func TestMonotonic(t *testing.T) {
	m := New[int]()
	last := 0
	for i := 0; i < 100; i++ {
		h := m.Add(i)
		assert.Greater(t, h, last)
		last = h
		if i%3 == 0 {
			m.Remove(h)
		}
	}

	// removal never frees a lower handle
	m.Remove(last)
	h := m.Add(1000)
	assert.Equal(t, last+1, h)
	assert.Equal(t, h, m.LastIndex())
}

func TestRemoveStale(t *testing.T) {
	m := New[*struct{ name string }]()
	h := m.Add(&struct{ name string }{name: "node"})
	m.Remove(h)
	m.Remove(h)

	value, ok := m.Get(h)
	assert.False(t, ok)
	assert.Nil(t, value)
	assert.False(t, m.Has(h))
	assert.Equal(t, 0, m.Len())

	_, ok = m.Get(9999)
	assert.False(t, ok)
}

func TestRange(t *testing.T) {
	m := New[string]()
	m.Add("a")
	m.Add("b")
	m.Add("c")

	seen := map[int]string{}
	m.Range(func(handle int, value string) bool {
		seen[handle] = value
		return true
	})
	assert.Equal(t, map[int]string{1: "a", 2: "b", 3: "c"}, seen)

	count := 0
	m.Range(func(handle int, value string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
