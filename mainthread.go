package duet

import (
	"context"
	"fmt"

	"github.com/yaoapp/duet/channel"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/duet/lifetime"
	"github.com/yaoapp/duet/ref"
	"github.com/yaoapp/duet/rpc"
	"github.com/yaoapp/duet/thread"
	"github.com/yaoapp/duet/worklet"
	"github.com/yaoapp/kun/log"
)

// MainThread the UI thread owning the replica
type MainThread struct {
	option    Option
	thread    *thread.Thread
	rpc       *rpc.Rpc
	replica   *dom.Replica
	registry  *worklet.Registry
	runtime   *worklet.Runtime
	refs      *worklet.RefMap
	lifecycle *worklet.JsFnLifecycle
	script    *worklet.Script
	handles   *ref.IndexMap[interface{}]
	cancel    context.CancelFunc
}

// NewMainThread create the main thread over the port
func NewMainThread(option Option, port channel.Port) (*MainThread, error) {
	option.Validate()
	t := thread.New(option.Name + "-main")
	m := &MainThread{
		option:   option,
		thread:   t,
		replica:  dom.NewReplica(),
		registry: worklet.NewRegistry(),
		refs:     worklet.NewRefMap(),
		handles:  ref.New[interface{}](),
	}

	m.rpc = rpc.New(option.Name+"-main", port, t)
	m.lifecycle = worklet.NewJsFnLifecycle(t, func(execIDs []int) {
		m.rpc.Invoke(ReleaseBackgroundWorkletCtx, execIDs)
	})

	if option.Script {
		script, err := worklet.NewScript(option.ScriptCache, m.replica, m.refs)
		if err != nil {
			m.rpc.Close()
			return nil, err
		}
		script.SetBackground(m.runOnBackground)
		m.script = script
	}

	m.runtime = worklet.NewRuntime(m.registry, worklet.Host{
		Replica:    m.replica,
		Refs:       m.refs,
		Script:     m.script,
		Lifecycle:  m.lifecycle,
		Background: m.runOnBackground,
	})

	if option.Worklets != "" {
		hashes, err := worklet.LoadDir(option.Worklets, m.registry)
		if err != nil {
			m.rpc.Close()
			return nil, err
		}
		log.Info("[main] %s %d worklets loaded from %s", option.Name, len(hashes), option.Worklets)
	}

	m.replica.OnRegisterWorklet(func(hash string, source string) {
		if m.registry.RegisterScript(hash, source) {
			log.Trace("[main] %s register worklet %s", option.Name, hash)
		}
	})

	m.rpc.RegisterHandler(UpdatePatch, m.onUpdatePatch)
	m.rpc.RegisterHandler(RunWorkletCtx, m.onRunWorkletCtx)
	m.rpc.RegisterHandler(ReleaseRefs, m.onReleaseRefs)
	m.rpc.RegisterHandler(ReleaseHandles, m.onReleaseHandles)
	m.rpc.RegisterHandler(Snapshot, m.onSnapshot)
	return m, nil
}

// Start the main thread, and the worklet watcher if enabled
func (m *MainThread) Start() error {
	err := m.thread.Start()
	if err != nil {
		return err
	}

	if m.option.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		go func() {
			err := worklet.Watch(ctx, m.option.Worklets, m.registry, nil)
			if err != nil {
				log.Error("[main] %s watch %s: %s", m.option.Name, m.option.Worklets, err.Error())
			}
		}()
	}
	return nil
}

// Close stop the main thread, the watcher and the port
func (m *MainThread) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.thread.Destroy()
	if m.script != nil {
		m.script.Close()
	}
	return m.rpc.Close()
}

// Thread the main thread
func (m *MainThread) Thread() *thread.Thread {
	return m.thread
}

// Replica the replica document
func (m *MainThread) Replica() *dom.Replica {
	return m.replica
}

// Registry the main thread worklets
func (m *MainThread) Registry() *worklet.Registry {
	return m.registry
}

// Refs the worklet refs
func (m *MainThread) Refs() *worklet.RefMap {
	return m.refs
}

// RegisterWorklet register a native main thread worklet
func (m *MainThread) RegisterWorklet(hash string, fn worklet.Func) bool {
	return m.registry.RegisterFunc(hash, fn)
}

// AddRef vend a handle of a main thread value
func (m *MainThread) AddRef(value interface{}) int {
	return m.handles.Add(value)
}

// ResolveRef the value of the handle, a released handle is a miss
func (m *MainThread) ResolveRef(handle int) (interface{}, bool) {
	return m.handles.Get(handle)
}

// ReleaseRef free the handle
func (m *MainThread) ReleaseRef(handle int) {
	m.handles.Remove(handle)
}

// DispatchEvent find the handler bound to the element or one of its ancestors.
// A registered worklet handler runs here, other handlers are published to the logic thread.
func (m *MainThread) DispatchEvent(id int, eventType string, detail map[string]interface{}) (bool, error) {
	res, err := m.thread.ExecE(func() (interface{}, error) {
		name, target, has := m.replica.HandlerOf(id, eventType)
		if !has {
			return false, nil
		}

		if m.registry.Has(name) {
			event := map[string]interface{}{
				"type":          eventType,
				"target":        map[string]interface{}{"elementRefptr": id},
				"currentTarget": map[string]interface{}{"elementRefptr": target},
				"detail":        detail,
			}
			_, err := m.runtime.Run(worklet.New(name, nil), event)
			return true, err
		}

		m.rpc.Invoke(PublishEvent, dom.Event{Type: eventType, Target: target, Handler: name, Detail: detail})
		return true, nil
	})

	if err != nil {
		return false, err
	}
	handled, _ := res.(bool)
	return handled, nil
}

func (m *MainThread) runOnBackground(handle *worklet.JsFnHandle, args []interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	m.rpc.Invoke(RunOnBackground, handle, args)
	return nil
}

func (m *MainThread) onUpdatePatch(args ...interface{}) (interface{}, error) {
	patch := []worklet.RefPatch{}
	if err := channel.Bind(args[1], &patch); err != nil {
		return nil, fmt.Errorf("updatePatch: %s", err.Error())
	}
	m.refs.ApplyInitPatch(patch)

	ops := []dom.Operation{}
	if err := channel.Bind(args[0], &ops); err != nil {
		return nil, fmt.Errorf("updatePatch: %s", err.Error())
	}

	errs := m.replica.Apply(ops)
	if len(errs) > 0 {
		log.Warn("[main] %s %d of %d operations dropped", m.option.Name, len(errs), len(ops))
	}
	return nil, nil
}

func (m *MainThread) onRunWorkletCtx(args ...interface{}) (interface{}, error) {
	params, _ := args[1].([]interface{})
	return m.runtime.Run(args[0], params...)
}

func (m *MainThread) onReleaseRefs(args ...interface{}) (interface{}, error) {
	lifetime.Release(m.refs, lifetime.Handles(args[0]))
	return nil, nil
}

func (m *MainThread) onReleaseHandles(args ...interface{}) (interface{}, error) {
	lifetime.Release(m.handles, lifetime.Handles(args[0]))
	return nil, nil
}

func (m *MainThread) onSnapshot(args ...interface{}) (interface{}, error) {
	return m.replica.Snapshot(), nil
}
