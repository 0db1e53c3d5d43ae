package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/kun/log"
)

// ErrRemote the remote handler failed
var ErrRemote = fmt.Errorf("remote handler failed")

// ErrClosed the rpc is closed before the result arrives
var ErrClosed = fmt.Errorf("rpc is closed")

const retPrefix = "ret_"

// New create a rpc instance owning the port. Handlers and replies run on the executor,
// a nil executor runs them on the port's delivery goroutine.
func New(name string, port channel.Port, executor Executor) *Rpc {
	if executor == nil {
		executor = inline{}
	}

	rpc := &Rpc{
		name:     name,
		port:     port,
		executor: executor,
		handlers: map[string]Handler{},
		cache:    map[string][]*channel.Message{},
		pending:  map[string]*Future{},
	}
	port.Listen(rpc.onMessage)
	return rpc
}

// Name the rpc instance name
func (rpc *Rpc) Name() string {
	return rpc.name
}

// RegisterHandler bind the handler to the endpoint, replaces any prior handler.
// Messages received before the registration are replayed in arrival order.
func (rpc *Rpc) RegisterHandler(endpoint *Endpoint, handler Handler) {
	rpc.mutex.Lock()
	rpc.handlers[endpoint.Name] = handler
	cached := len(rpc.cache[endpoint.Name])
	rpc.mutex.Unlock()

	if cached > 0 {
		log.Trace("[rpc] %s replay %d cached %s messages", rpc.name, cached, endpoint.Name)
		name := endpoint.Name
		rpc.executor.Submit(func() { rpc.dispatch(name, nil) })
	}
}

// RemoveHandler remove the handler of the endpoint
func (rpc *Rpc) RemoveHandler(endpoint *Endpoint) {
	rpc.mutex.Lock()
	defer rpc.mutex.Unlock()
	delete(rpc.handlers, endpoint.Name)
}

// Invoke post a call. Result kinds return a Future settled by the peer's reply,
// void kinds return nil right after posting, delivery failures are not surfaced.
// A call to an endpoint without remote handler never settles, the caller owns the timeout.
func (rpc *Rpc) Invoke(endpoint *Endpoint, args ...interface{}) *Future {
	if endpoint.Arity >= 0 && len(args) != endpoint.Arity {
		exception.New("rpc %s expects %d arguments, got %d", 400, endpoint.Name, endpoint.Arity, len(args)).Throw()
	}

	if args == nil {
		args = []interface{}{}
	}

	message := &channel.Message{Name: endpoint.Name, Data: args}
	if !endpoint.HasReturn() {
		if err := rpc.port.Post(message); err != nil {
			log.Trace("[rpc] %s post %s: %s", rpc.name, endpoint.Name, err.Error())
		}
		return nil
	}

	future := NewFuture()
	message.RetID = rpc.nextRetID()
	rpc.mutex.Lock()
	rpc.pending[message.RetID] = future
	rpc.mutex.Unlock()

	if err := rpc.port.Post(message); err != nil {
		rpc.mutex.Lock()
		delete(rpc.pending, message.RetID)
		rpc.mutex.Unlock()
		future.Reject(fmt.Errorf("%w: %s", ErrClosed, err.Error()))
	}
	return future
}

// CreateCall initialize an endpoint into a function
func (rpc *Rpc) CreateCall(endpoint *Endpoint) func(args ...interface{}) *Future {
	return func(args ...interface{}) *Future {
		return rpc.Invoke(endpoint, args...)
	}
}

// Call invoke the endpoint and wait for the result on the calling goroutine.
// Never call it from the goroutine the replies are dispatched on.
func (rpc *Rpc) Call(ctx context.Context, endpoint *Endpoint, args ...interface{}) (interface{}, error) {
	future := rpc.Invoke(endpoint, args...)
	if future == nil {
		return nil, nil
	}
	return future.Wait(ctx)
}

// Pending the number of in-flight calls
func (rpc *Rpc) Pending() int {
	rpc.mutex.Lock()
	defer rpc.mutex.Unlock()
	return len(rpc.pending)
}

// Cached the number of messages waiting for a handler
func (rpc *Rpc) Cached(name string) int {
	rpc.mutex.Lock()
	defer rpc.mutex.Unlock()
	return len(rpc.cache[name])
}

// Close the port, the in-flight calls are rejected
func (rpc *Rpc) Close() error {
	rpc.mutex.Lock()
	pending := rpc.pending
	rpc.pending = map[string]*Future{}
	rpc.mutex.Unlock()

	for _, future := range pending {
		future.Reject(ErrClosed)
	}
	return rpc.port.Close()
}

func (rpc *Rpc) nextRetID() string {
	id := atomic.AddUint64(&rpc.incID, 1) - 1
	return fmt.Sprintf("%s%s_%d", retPrefix, rpc.name, id)
}

func (rpc *Rpc) onMessage(message *channel.Message) {
	log.Trace("[rpc] on %s received %s", rpc.name, message.Name)
	err := rpc.executor.Submit(func() { rpc.dispatch(message.Name, message) })
	if err != nil {
		log.Warn("[rpc] %s drop %s: %s", rpc.name, message.Name, err.Error())
	}
}

// dispatch run on the executor. A nil message flushes the cache of the name.
func (rpc *Rpc) dispatch(name string, message *channel.Message) {
	rpc.mutex.Lock()
	if future, has := rpc.pending[name]; has && message != nil {
		delete(rpc.pending, name)
		rpc.mutex.Unlock()
		rpc.settle(future, message)
		return
	}

	handler, has := rpc.handlers[name]
	if !has {
		if message != nil {
			if strings.HasPrefix(name, retPrefix) {
				rpc.mutex.Unlock()
				log.Warn("[rpc] %s drop the reply %s, no pending call", rpc.name, name)
				return
			}
			rpc.cache[name] = append(rpc.cache[name], message)
		}
		rpc.mutex.Unlock()
		return
	}

	messages := rpc.cache[name]
	delete(rpc.cache, name)
	if message != nil {
		messages = append(messages, message)
	}
	rpc.mutex.Unlock()

	for _, message := range messages {
		rpc.handle(handler, message)
	}
}

func (rpc *Rpc) handle(handler Handler, message *channel.Message) {
	var res interface{}
	var err error
	func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = exception.Catch(recovered)
			}
		}()
		res, err = handler(message.Data...)
	}()

	if err != nil {
		log.With(log.F{"endpoint": message.Name, "rpc": rpc.name}).Error("[rpc] handler: %s", err.Error())
	}

	if message.RetID == "" {
		return
	}

	if future, ok := res.(*Future); ok && err == nil {
		retID := message.RetID
		future.Then(func(value interface{}, err error) { rpc.reply(retID, value, err) })
		return
	}
	rpc.reply(message.RetID, res, err)
}

func (rpc *Rpc) reply(retID string, value interface{}, err error) {
	data := []interface{}{value, false}
	if err != nil {
		data = []interface{}{err.Error(), true}
	}

	if err := rpc.port.Post(&channel.Message{Name: retID, Data: data}); err != nil {
		log.Trace("[rpc] %s reply %s: %s", rpc.name, retID, err.Error())
	}
}

func (rpc *Rpc) settle(future *Future, message *channel.Message) {
	var value interface{}
	isError := false
	if len(message.Data) > 0 {
		value = message.Data[0]
	}
	if len(message.Data) > 1 {
		isError, _ = message.Data[1].(bool)
	}

	if isError {
		future.Reject(fmt.Errorf("%w: %v", ErrRemote, value))
		return
	}
	future.Resolve(value)
}

// Submit run the task immediately
func (inline) Submit(task func()) error {
	task()
	return nil
}
