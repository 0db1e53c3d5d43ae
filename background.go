package duet

import (
	"context"
	"fmt"
	"time"

	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/duet/lifetime"
	"github.com/yaoapp/duet/rpc"
	"github.com/yaoapp/duet/thread"
	"github.com/yaoapp/duet/worklet"
	"github.com/yaoapp/kun/log"
)

// Background the logic thread
type Background struct {
	option   Option
	thread   *thread.Thread
	rpc      *rpc.Rpc
	document *dom.Document
	registry *worklet.Registry
	runtime  *worklet.Runtime
	execIDs  *worklet.ExecIDMap
	refs     *worklet.RefPool
	handles  *lifetime.Manager
}

// NewBackground create the logic thread over the port
func NewBackground(option Option, port channel.Port) *Background {
	option.Validate()
	t := thread.New(option.Name + "-background")
	b := &Background{
		option:   option,
		thread:   t,
		document: dom.NewDocument(option.Dev),
		registry: worklet.NewRegistry(),
		execIDs:  worklet.NewExecIDMap(),
	}

	b.rpc = rpc.New(option.Name+"-background", port, t)
	b.runtime = worklet.NewRuntime(b.registry, worklet.Host{})
	b.refs = worklet.NewRefPool(t, func(ids []int) { b.rpc.Invoke(ReleaseRefs, ids) })
	b.handles = lifetime.New("handles", t, func(handles []int) { b.rpc.Invoke(ReleaseHandles, handles) })

	b.rpc.RegisterHandler(PublishEvent, b.onPublishEvent)
	b.rpc.RegisterHandler(RunOnBackground, b.onRunOnBackground)
	b.rpc.RegisterHandler(ReleaseBackgroundWorkletCtx, b.onReleaseWorkletCtx)
	t.AfterTick(b.flush)
	return b
}

// Start the logic thread
func (b *Background) Start() error {
	return b.thread.Start()
}

// Close stop the logic thread and the port
func (b *Background) Close() error {
	b.thread.Destroy()
	return b.rpc.Close()
}

// Thread the logic thread
func (b *Background) Thread() *thread.Thread {
	return b.thread
}

// Registry the background worklets
func (b *Background) Registry() *worklet.Registry {
	return b.registry
}

// ExecIDs the posted worklets holding logic thread functions
func (b *Background) ExecIDs() *worklet.ExecIDMap {
	return b.execIDs
}

// Update run fn with the document on the logic thread, the mutations are flushed at the end of the tick
func (b *Background) Update(fn func(doc *dom.Document) error) error {
	_, err := b.thread.ExecE(func() (interface{}, error) {
		return nil, fn(b.document)
	})
	return err
}

// Submit run fn with the document on the logic thread without waiting
func (b *Background) Submit(fn func(doc *dom.Document)) error {
	return b.thread.Submit(func() { fn(b.document) })
}

// OnEvent handle the events forwarded by the main thread
func (b *Background) OnEvent(name string, handler dom.EventHandler) {
	b.document.OnEvent(name, handler)
}

// RegisterWorklet register a background worklet
func (b *Background) RegisterWorklet(hash string, fn worklet.Func) bool {
	return b.registry.RegisterFunc(hash, fn)
}

// RegisterMainThreadWorklet mirror a main thread worklet source, only in dev mode
func (b *Background) RegisterMainThreadWorklet(hash string, source string) error {
	return b.thread.Submit(func() { b.document.RegisterWorklet(hash, source) })
}

// RunWorklet run a background worklet on the logic thread
func (b *Background) RunWorklet(desc *worklet.Descriptor, args ...interface{}) (interface{}, error) {
	return b.thread.ExecE(func() (interface{}, error) {
		return b.runtime.Run(desc, args...)
	})
}

// JsFn wrap a logic thread function so main thread worklets can call it
func (b *Background) JsFn(fn func(args ...interface{})) *worklet.JsFn {
	return b.execIDs.JsFn(fn)
}

// CreateRef create a worklet ref, the initial value is shipped with the next flush
func (b *Background) CreateRef(initValue interface{}) *worklet.RefHandle {
	return b.refs.Create(initValue)
}

// Track own a main thread handle, releasing the last owner frees the main thread slot
func (b *Background) Track(handle int) *lifetime.Proxy {
	return b.handles.Track(handle)
}

// RunOnMainThread bind the worklet, calling the result posts it to the main thread.
// The pending operations are flushed first so the worklet sees them.
func (b *Background) RunOnMainThread(desc *worklet.Descriptor) func(args ...interface{}) *rpc.Future {
	return func(args ...interface{}) *rpc.Future {
		future := rpc.NewFuture()
		if args == nil {
			args = []interface{}{}
		}

		err := b.thread.Submit(func() {
			b.flush()
			if desc.HasJsFn() {
				b.execIDs.Add(desc)
			}
			b.rpc.Invoke(RunWorkletCtx, desc, args).Then(func(value interface{}, err error) {
				if err != nil {
					future.Reject(err)
					return
				}
				future.Resolve(value)
			})
		})

		if err != nil {
			future.Reject(err)
		}
		return future
	}
}

// Snapshot read the replica of the main thread.
// The pending operations are flushed first, the request is posted behind them.
func (b *Background) Snapshot(ctx context.Context) (*dom.Tree, error) {
	ctx, cancel := b.timeout(ctx)
	defer cancel()

	res, err := b.thread.Exec(func() interface{} {
		b.flush()
		return b.rpc.Invoke(Snapshot)
	})
	if err != nil {
		return nil, err
	}

	future, ok := res.(*rpc.Future)
	if !ok {
		return nil, fmt.Errorf("snapshot: no result")
	}

	value, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}

	tree := &dom.Tree{}
	err = channel.Bind(value, tree)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Flush post the pending operations now
func (b *Background) Flush() error {
	_, err := b.thread.Exec(func() interface{} {
		b.flush()
		return nil
	})
	return err
}

func (b *Background) flush() {
	ops := b.document.Flush()
	patch := b.refs.TakeInitPatch()
	if len(ops) == 0 && len(patch) == 0 {
		return
	}
	log.Trace("[background] %s flush %d operations %d refs", b.option.Name, len(ops), len(patch))
	b.rpc.Invoke(UpdatePatch, ops, patch)
}

func (b *Background) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(b.option.Timeout)*time.Millisecond)
}

func (b *Background) onPublishEvent(args ...interface{}) (interface{}, error) {
	event := dom.Event{}
	if err := channel.Bind(args[0], &event); err != nil {
		return nil, err
	}
	b.document.HandleEvent(event)
	return nil, nil
}

func (b *Background) onRunOnBackground(args ...interface{}) (interface{}, error) {
	handle, ok := worklet.ParseJsFnHandle(args[0])
	if !ok {
		return nil, fmt.Errorf("runOnBackground: invalid function handle %v", args[0])
	}

	fn, has := b.execIDs.FindJsFn(handle.ExecID, handle.FnID)
	if !has {
		log.With(log.F{"execId": handle.ExecID, "fnId": handle.FnID}).Error("[background] runOnBackground: function not found")
		return nil, fmt.Errorf("runOnBackground: function not found %d/%d", handle.ExecID, handle.FnID)
	}

	params, _ := args[1].([]interface{})
	fn.Fn(params...)
	return nil, nil
}

func (b *Background) onReleaseWorkletCtx(args ...interface{}) (interface{}, error) {
	ids := lifetime.Handles(args[0])
	lifetime.Release(b.execIDs, ids)
	log.Trace("[background] release exec ids %v, %d left", ids, b.execIDs.Len())
	return nil, nil
}
