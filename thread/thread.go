package thread

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/kun/log"
)

// ErrDestroyed the thread no longer accepts tasks
var ErrDestroyed = fmt.Errorf("thread is destroyed")

// New create a new thread
func New(name string) *Thread {
	return &Thread{
		id:     ID(uuid.New().String()),
		name:   name,
		status: StatusInit,
		wake:   make(chan struct{}, 1),
		signal: make(chan uint8, 1),
		done:   make(chan struct{}),
	}
}

// ID the thread id
func (t *Thread) ID() ID {
	return t.id
}

// Name the thread name
func (t *Thread) Name() string {
	return t.name
}

// Status the thread status
func (t *Thread) Status() uint32 {
	return atomic.LoadUint32(&t.status)
}

// Start the loop and wait until it is ready
func (t *Thread) Start() error {
	if !atomic.CompareAndSwapUint32(&t.status, StatusInit, StatusReady) {
		err := fmt.Errorf("[thread] you can't start a thread with status: [%d]", t.Status())
		log.Error(err.Error())
		return err
	}

	ready := make(chan bool)
	go t.loop(ready)
	<-ready
	log.Trace("[thread] [%s] %s started", t.id, t.name)
	return nil
}

// Destroy stop the loop, the pending tasks are dropped
func (t *Thread) Destroy() {
	if atomic.CompareAndSwapUint32(&t.status, StatusInit, StatusDestroy) {
		close(t.done)
		return
	}

	select {
	case t.signal <- CommandDestroy:
	default:
	}
	<-t.done
}

// Done closed when the loop exits
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// IsCurrent check if the caller is running on this thread
func (t *Thread) IsCurrent() bool {
	return atomic.LoadInt64(&t.gid) == goid.Get()
}

// Submit enqueue a task, tasks run in submission order
func (t *Thread) Submit(task func()) error {
	if t.Status() == StatusDestroy {
		return ErrDestroyed
	}

	t.mutex.Lock()
	t.queue = append(t.queue, task)
	t.mutex.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

// AfterTick register a hook running every time the queue has been drained (the end of a tick)
func (t *Thread) AfterTick(hook func()) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.afterTick = append(t.afterTick, hook)
}

// Exec run the task on the thread and wait for the result
func (t *Thread) Exec(task func() interface{}) (interface{}, error) {
	return t.ExecE(func() (interface{}, error) { return task(), nil })
}

// ExecE run the task on the thread and wait for the result and the error.
// A panic inside the task is recovered and returned as the error.
func (t *Thread) ExecE(task func() (interface{}, error)) (res interface{}, err error) {

	// Already on the loop, run inline
	if t.IsCurrent() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = exception.Catch(recovered)
			}
		}()
		return task()
	}

	type result struct {
		value interface{}
		err   error
	}

	chResp := make(chan result, 1)
	err = t.Submit(func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				chResp <- result{err: exception.Catch(recovered)}
			}
		}()
		value, err := task()
		chResp <- result{value: value, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-chResp:
		return res.value, res.err
	case <-t.done:
		return nil, ErrDestroyed
	}
}

func (t *Thread) loop(ready chan bool) {
	atomic.StoreInt64(&t.gid, goid.Get())
	ready <- true

	for {
		select {
		case <-t.wake:
			t.tick()

		case signal := <-t.signal:
			switch signal {
			case CommandDestroy:
				t.destroy()
				return
			default:
				log.Warn("[thread] [%s] unknown signal: %d", t.id, signal)
			}
		}
	}
}

// tick drain the queue, then run the after tick hooks.
// Tasks submitted by the hooks wake the loop again.
func (t *Thread) tick() {
	atomic.StoreUint32(&t.status, StatusRunning)
	for {
		t.mutex.Lock()
		tasks := t.queue
		t.queue = nil
		t.mutex.Unlock()

		if len(tasks) == 0 {
			break
		}

		for _, task := range tasks {
			t.run(task)
		}
	}

	t.mutex.Lock()
	hooks := append([]func(){}, t.afterTick...)
	t.mutex.Unlock()
	for _, hook := range hooks {
		t.run(hook)
	}
	atomic.CompareAndSwapUint32(&t.status, StatusRunning, StatusReady)
}

func (t *Thread) run(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("[thread] [%s] %s task panic: %s", t.id, t.name, exception.Catch(recovered))
		}
	}()
	task()
}

func (t *Thread) destroy() {
	log.Trace("[thread] [%s] %s destroy", t.id, t.name)
	atomic.StoreUint32(&t.status, StatusDestroy)
	t.mutex.Lock()
	t.queue = nil
	t.afterTick = nil
	t.mutex.Unlock()
	close(t.done)
}
