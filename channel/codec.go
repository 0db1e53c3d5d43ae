package channel

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed the port is closed
var ErrClosed = fmt.Errorf("port is closed")

// Encode a message to the wire format
func Encode(message *Message) ([]byte, error) {
	return json.Marshal(message)
}

// Decode a message from the wire format
func Decode(data []byte) (*Message, error) {
	message := &Message{}
	err := json.Unmarshal(data, message)
	if err != nil {
		return nil, err
	}
	return message, nil
}

// Bind decode a value received from a port (maps, slices, float64 numbers) into v
func Bind(value interface{}, v interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *queue) push(item []byte) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

// pop blocks until an item is available, ok is false once the queue is closed
func (q *queue) pop() ([]byte, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item, true
}

func (q *queue) close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

func (l *listeners) init() {
	l.ready = make(chan struct{})
}

// Listen set the listener of the port, replaces the previous one
func (l *listeners) Listen(listener func(message *Message)) {
	l.mutex.Lock()
	l.fn = listener
	l.mutex.Unlock()
	if listener != nil {
		l.once.Do(func() { close(l.ready) })
	}
}

func (l *listeners) emit(message *Message) {
	l.mutex.RLock()
	fn := l.fn
	l.mutex.RUnlock()
	if fn != nil {
		fn(message)
	}
}
