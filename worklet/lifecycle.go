package worklet

import (
	"github.com/yaoapp/duet/lifetime"
	"github.com/yaoapp/kun/any"
)

// NewJsFnLifecycle create the UI side function handle counter
func NewJsFnLifecycle(executor lifetime.Executor, sink lifetime.Sink) *JsFnLifecycle {
	return &JsFnLifecycle{Manager: lifetime.New("jsfn", executor, sink)}
}

// AddRef add a handle of the exec id
func (lc *JsFnLifecycle) AddRef(execID int) *lifetime.Proxy {
	return lc.Track(execID)
}

// RemoveRef drop a handle of the exec id
func (lc *JsFnLifecycle) RemoveRef(execID int) {
	lc.Drop(execID)
}

// Release drop the handle, only the first call counts
func (handle *JsFnHandle) Release() {
	if handle.proxy != nil {
		handle.proxy.Release()
	}
}

// ParseJsFnHandle read a function handle from a decoded message value
func ParseJsFnHandle(value interface{}) (*JsFnHandle, bool) {
	switch v := value.(type) {
	case *JsFnHandle:
		return v, v != nil
	case map[string]interface{}:
		id, has := v["_jsFnId"]
		if !has {
			return nil, false
		}
		handle := &JsFnHandle{FnID: any.Of(id).CInt()}
		if execID, has := v["_execId"]; has && execID != nil {
			handle.ExecID = any.Of(execID).CInt()
		}
		return handle, true
	}
	return nil, false
}
