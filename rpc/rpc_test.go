package rpc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/duet/thread"
	"github.com/yaoapp/kun/any"
)

var (
	testAdd    = Define("unit.test.add", Async, 2)
	testLog    = Define("unit.test.log", AsyncVoid, -1)
	testFail   = Define("unit.test.fail", Async, 0)
	testEcho   = Define("unit.test.echo", Sync, 1)
	testNotify = Define("unit.test.notify", SyncVoid, 1)
	testLater  = Define("unit.test.later", Async, 0)
)

func prepare(t *testing.T) (*Rpc, *Rpc) {
	a, b := channel.Pipe("unit-test")
	left := New("left", a, nil)
	right := New("right", b, nil)
	t.Cleanup(func() {
		left.Close()
		right.Close()
	})
	return left, right
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestDefine(t *testing.T) {
	endpoint := Define("unit.test.add", Async, 2)
	assert.Same(t, testAdd, endpoint)
	assert.True(t, endpoint.HasReturn())
	assert.False(t, endpoint.IsSync())
	assert.True(t, testEcho.IsSync())
	assert.False(t, testNotify.HasReturn())
	assert.Equal(t, "async", Async.String())

	assert.Panics(t, func() { Define("unit.test.add", AsyncVoid, 2) })
	assert.Panics(t, func() { Define("unit.test.add", Async, 3) })

	selected, has := Select("unit.test.add")
	assert.True(t, has)
	assert.Same(t, testAdd, selected)
}

func TestInvokeResult(t *testing.T) {
	left, right := prepare(t)
	right.RegisterHandler(testAdd, func(args ...interface{}) (interface{}, error) {
		return any.Of(args[0]).CInt() + any.Of(args[1]).CInt(), nil
	})

	res, err := left.Invoke(testAdd, 1, 2).Wait(ctx(t))
	assert.Nil(t, err)
	assert.Equal(t, float64(3), res)
	assert.Equal(t, 0, left.Pending())
}

func TestCallSync(t *testing.T) {
	left, right := prepare(t)
	right.RegisterHandler(testEcho, func(args ...interface{}) (interface{}, error) {
		return args[0], nil
	})
	res, err := left.Call(ctx(t), testEcho, "hello")
	assert.Nil(t, err)
	assert.Equal(t, "hello", res)

	echo := left.CreateCall(testEcho)
	res, err = echo("world").Wait(ctx(t))
	assert.Nil(t, err)
	assert.Equal(t, "world", res)
}

func TestFireAndForget(t *testing.T) {
	left, _ := prepare(t)

	start := time.Now()
	assert.Nil(t, left.Invoke(testLog, "nobody listens"))
	assert.Nil(t, left.Invoke(testNotify, 1))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 0, left.Pending())
}

func TestNeverResolves(t *testing.T) {
	left, _ := prepare(t)
	c, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	future := left.Invoke(testAdd, 1, 2)
	_, err := future.Wait(c)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok, _ := future.Result()
	assert.False(t, ok)
	assert.Equal(t, 1, left.Pending())
}

func TestCacheReplay(t *testing.T) {
	left, right := prepare(t)
	for i := 0; i < 5; i++ {
		left.Invoke(testLog, i)
	}
	future := left.Invoke(testAdd, 20, 22)

	assert.Eventually(t, func() bool { return right.Cached(testLog.Name) == 5 }, time.Second, 5*time.Millisecond)

	var mutex sync.Mutex
	received := []int{}
	right.RegisterHandler(testLog, func(args ...interface{}) (interface{}, error) {
		mutex.Lock()
		defer mutex.Unlock()
		received = append(received, any.Of(args[0]).CInt())
		return nil, nil
	})
	right.RegisterHandler(testAdd, func(args ...interface{}) (interface{}, error) {
		return any.Of(args[0]).CInt() + any.Of(args[1]).CInt(), nil
	})

	res, err := future.Wait(ctx(t))
	assert.Nil(t, err)
	assert.Equal(t, float64(42), res)

	left.Invoke(testLog, 5)
	assert.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(received) == 6
	}, time.Second, 5*time.Millisecond)

	mutex.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, received)
	mutex.Unlock()
	assert.Equal(t, 0, right.Cached(testLog.Name))
}

func TestLastRegistrationWins(t *testing.T) {
	left, right := prepare(t)
	right.RegisterHandler(testEcho, func(args ...interface{}) (interface{}, error) { return "first", nil })
	right.RegisterHandler(testEcho, func(args ...interface{}) (interface{}, error) { return "second", nil })
	res, err := left.Call(ctx(t), testEcho, nil)
	assert.Nil(t, err)
	assert.Equal(t, "second", res)

	right.RemoveHandler(testEcho)
	c, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = left.Call(c, testEcho, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteError(t *testing.T) {
	left, right := prepare(t)
	right.RegisterHandler(testFail, func(args ...interface{}) (interface{}, error) {
		return nil, fmt.Errorf("no way")
	})
	_, err := left.Invoke(testFail).Wait(ctx(t))
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "no way")

	right.RegisterHandler(testFail, func(args ...interface{}) (interface{}, error) {
		panic("handler panic")
	})
	_, err = left.Invoke(testFail).Wait(ctx(t))
	assert.ErrorIs(t, err, ErrRemote)
}

func TestDeferredReply(t *testing.T) {
	left, right := prepare(t)
	deferred := NewFuture()
	right.RegisterHandler(testLater, func(args ...interface{}) (interface{}, error) {
		return deferred, nil
	})

	future := left.Invoke(testLater)
	time.Sleep(20 * time.Millisecond)
	_, ok, _ := future.Result()
	assert.False(t, ok)

	deferred.Resolve("later")
	res, err := future.Wait(ctx(t))
	assert.Nil(t, err)
	assert.Equal(t, "later", res)
}

func TestArity(t *testing.T) {
	left, _ := prepare(t)
	assert.Panics(t, func() { left.Invoke(testAdd, 1) })
	assert.NotPanics(t, func() { left.Invoke(testLog) })
	assert.NotPanics(t, func() { left.Invoke(testLog, 1, 2, 3) })
}

func TestOrdering(t *testing.T) {
	left, right := prepare(t)
	var mutex sync.Mutex
	received := []int{}
	right.RegisterHandler(testLog, func(args ...interface{}) (interface{}, error) {
		mutex.Lock()
		defer mutex.Unlock()
		received = append(received, any.Of(args[0]).CInt())
		return nil, nil
	})

	for i := 0; i < 500; i++ {
		left.Invoke(testLog, i)
	}
	assert.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(received) == 500
	}, 3*time.Second, 5*time.Millisecond)

	for i, v := range received {
		assert.Equal(t, i, v)
	}
}

func TestExecutor(t *testing.T) {
	th := thread.New("unit-test-rpc")
	require.Nil(t, th.Start())
	defer th.Destroy()

	a, b := channel.Pipe("unit-test")
	left := New("left", a, nil)
	right := New("right", b, th)
	defer left.Close()

	right.RegisterHandler(testEcho, func(args ...interface{}) (interface{}, error) {
		return th.IsCurrent(), nil
	})
	res, err := left.Call(ctx(t), testEcho, 1)
	assert.Nil(t, err)
	assert.Equal(t, true, res)
}

func TestClose(t *testing.T) {
	left, _ := prepare(t)
	future := left.Invoke(testAdd, 1, 1)
	left.Close()
	_, err := future.Wait(ctx(t))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = left.Invoke(testAdd, 1, 1).Wait(ctx(t))
	assert.ErrorIs(t, err, ErrClosed)
}
