package worklet

import (
	"fmt"

	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/kun/any"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/kun/log"
)

// NewRuntime create a runtime over the registry
func NewRuntime(registry *Registry, host Host) *Runtime {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runtime{registry: registry, host: host}
}

// Registry the registry of the runtime
func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

// Host the services of the runtime
func (rt *Runtime) Host() Host {
	return rt.host
}

// Run execute the worklet with the call arguments. The captured values are a
// snapshot, refs elements nested worklets and function handles are resolved on this isolate.
func (rt *Runtime) Run(value interface{}, args ...interface{}) (interface{}, error) {
	desc, err := Parse(value)
	if err != nil {
		log.Warn("[worklet] invalid worklet object: %v", value)
		return nil, err
	}

	entry, has := rt.registry.Lookup(desc.Hash)
	if !has {
		log.With(log.F{"hash": desc.Hash, "execId": desc.ExecID}).Error("[worklet] %s is not registered", desc.Hash)
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, desc.Hash)
	}

	desc, err = desc.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorklet, err.Error())
	}

	params, err := rt.cloneArgs(args)
	if err != nil {
		return nil, err
	}

	state := &transformState{execID: desc.ExecID, native: !entry.IsScript()}
	captured, err := rt.transform(desc.Captured, 0, state)
	if err != nil {
		log.Error("[worklet] %s transform: %s", desc.Hash, err.Error())
		return nil, err
	}
	desc.Captured = captured.(map[string]interface{})

	transformed, err := rt.transform(params, 0, state)
	if err != nil {
		log.Error("[worklet] %s transform params: %s", desc.Hash, err.Error())
		return nil, err
	}

	if !state.native {
		// script bodies own their function handles for the duration of the call
		defer func() {
			for _, handle := range state.handles {
				handle.Release()
			}
		}()
	}
	return rt.invoke(entry, desc, transformed.([]interface{}))
}

type transformState struct {
	execID  int
	native  bool
	handles []*JsFnHandle
}

func (rt *Runtime) invoke(entry *Entry, desc *Descriptor, args []interface{}) (res interface{}, err error) {
	if entry.IsScript() {
		if rt.host.Script == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoEngine, entry.Hash)
		}
		return rt.host.Script.Call(entry.Hash, entry.Source, desc.This(), args)
	}

	defer func() {
		if r := recover(); r != nil {
			err = exception.Catch(r)
			log.With(log.F{"hash": entry.Hash}).Error("[worklet] %s panic: %s", entry.Hash, err.Error())
		}
	}()

	ctx := &Context{Hash: desc.Hash, ExecID: desc.ExecID, Captured: desc.Captured, runtime: rt}
	return entry.Func(ctx, args...)
}

func (rt *Runtime) cloneArgs(args []interface{}) ([]interface{}, error) {
	if len(args) == 0 {
		return []interface{}{}, nil
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	params := []interface{}{}
	err = json.Unmarshal(data, &params)
	if err != nil {
		return nil, err
	}
	return params, nil
}

// transform resolve the markers of a decoded value. Script bodies only get the
// function handles stamped, native bodies get the resolved Go values.
func (rt *Runtime) transform(value interface{}, depth int, state *transformState) (interface{}, error) {
	depth++
	if depth >= depthLimit {
		return nil, ErrDepthExceeded
	}

	switch v := value.(type) {
	case []interface{}:
		for i, sub := range v {
			res, err := rt.transform(sub, depth, state)
			if err != nil {
				return nil, err
			}
			v[i] = res
		}
		return v, nil

	case map[string]interface{}:
		if id, has := v["elementRefptr"]; has && state.native {
			return rt.element(any.Of(id).CInt()), nil
		}

		for key, sub := range v {
			res, err := rt.transform(sub, depth, state)
			if err != nil {
				return nil, err
			}
			v[key] = res
		}

		if id, has := v["_wvid"]; has && state.native {
			return rt.ref(any.Of(id).CInt()), nil
		}

		if hash, has := v["_wkltId"]; has && state.native {
			bound := &Bound{Hash: fmt.Sprintf("%v", hash), ExecID: state.execID, runtime: rt}
			bound.Captured, _ = v["_c"].(map[string]interface{})
			if bound.Captured == nil {
				bound.Captured = map[string]interface{}{}
			}
			return bound, nil
		}

		if id, has := v["_jsFnId"]; has {
			v["_execId"] = state.execID
			handle := rt.track(any.Of(id).CInt(), state.execID)
			if state.native {
				return handle, nil
			}
			state.handles = append(state.handles, handle)
		}
		return v, nil
	}

	return value, nil
}

func (rt *Runtime) element(id int) *dom.Element {
	if rt.host.Replica == nil {
		return nil
	}
	return rt.host.Replica.Element(id)
}

func (rt *Runtime) ref(id int) *Ref {
	if rt.host.Refs == nil {
		return nil
	}
	ref, has := rt.host.Refs.Get(id)
	if !has {
		log.Warn("[worklet] ref is not initialized: %d", id)
		return nil
	}
	return ref
}

func (rt *Runtime) track(fnID int, execID int) *JsFnHandle {
	handle := &JsFnHandle{FnID: fnID, ExecID: execID}
	if rt.host.Lifecycle != nil {
		handle.proxy = rt.host.Lifecycle.AddRef(execID)
	}
	return handle
}

// RunOnBackground call the logic thread function of the handle, nothing is returned
func (rt *Runtime) RunOnBackground(handle *JsFnHandle, args ...interface{}) error {
	if handle == nil {
		return fmt.Errorf("%w: nil function handle", ErrInvalidWorklet)
	}
	if rt.host.Background == nil {
		return fmt.Errorf("runOnBackground is not enabled")
	}
	return rt.host.Background(handle, args)
}

// Value a captured value
func (ctx *Context) Value(key string) interface{} {
	return ctx.Captured[key]
}

// Ref a captured worklet ref, nil if missing
func (ctx *Context) Ref(key string) *Ref {
	ref, _ := ctx.Captured[key].(*Ref)
	return ref
}

// Element a captured element, nil if missing
func (ctx *Context) Element(key string) *dom.Element {
	element, _ := ctx.Captured[key].(*dom.Element)
	return element
}

// Worklet a captured worklet, nil if missing
func (ctx *Context) Worklet(key string) *Bound {
	bound, _ := ctx.Captured[key].(*Bound)
	return bound
}

// JsFn a captured logic thread function, nil if missing
func (ctx *Context) JsFn(key string) *JsFnHandle {
	handle, _ := ctx.Captured[key].(*JsFnHandle)
	return handle
}

// RunOnBackground call a logic thread function
func (ctx *Context) RunOnBackground(handle *JsFnHandle, args ...interface{}) error {
	return ctx.runtime.RunOnBackground(handle, args...)
}

// Call run the nested worklet, its captured values are already resolved
func (bound *Bound) Call(args ...interface{}) (interface{}, error) {
	entry, has := bound.runtime.registry.Lookup(bound.Hash)
	if !has {
		log.Error("[worklet] %s is not registered", bound.Hash)
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, bound.Hash)
	}

	desc := &Descriptor{Hash: bound.Hash, Captured: bound.Captured, ExecID: bound.ExecID}
	if entry.IsScript() {
		desc.Captured = unresolve(bound.Captured)
	}
	return bound.runtime.invoke(entry, desc, args)
}

// unresolve turn resolved values back into markers for a script body
func unresolve(captured map[string]interface{}) map[string]interface{} {
	data, err := json.Marshal(captured)
	if err != nil {
		return map[string]interface{}{}
	}
	res := map[string]interface{}{}
	json.Unmarshal(data, &res)
	return res
}

// MarshalJSON the nested worklet travels as its descriptor
func (bound *Bound) MarshalJSON() ([]byte, error) {
	return json.Marshal(&Descriptor{Hash: bound.Hash, Captured: bound.Captured, ExecID: bound.ExecID})
}
