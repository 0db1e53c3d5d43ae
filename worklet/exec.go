package worklet

import (
	"github.com/yaoapp/duet/ref"
	"github.com/yaoapp/kun/any"
)

// NewExecIDMap create the logic side exec id map
func NewExecIDMap() *ExecIDMap {
	return &ExecIDMap{IndexMap: ref.New[*Descriptor]()}
}

// Add keep the descriptor and stamp its exec id
func (m *ExecIDMap) Add(desc *Descriptor) int {
	execID := m.IndexMap.Add(desc)
	desc.ExecID = execID
	return execID
}

// JsFn wrap a logic thread function, it can be captured by worklets
func (m *ExecIDMap) JsFn(fn func(args ...interface{})) *JsFn {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastFnID++
	return &JsFn{ID: m.lastFnID, Fn: fn}
}

// FindJsFn find the function captured by the worklet of the exec id
func (m *ExecIDMap) FindJsFn(execID int, fnID int) (*JsFn, bool) {
	desc, has := m.Get(execID)
	if !has {
		return nil, false
	}

	var found *JsFn
	walk(desc.Captured, 0, func(value interface{}) bool {
		switch v := value.(type) {
		case *JsFn:
			if v.ID == fnID {
				found = v
			}
		case map[string]interface{}:
			if id, has := v["_jsFnId"]; has && any.Of(id).CInt() == fnID {
				if fn, ok := v["_fn"].(func(args ...interface{})); ok {
					found = &JsFn{ID: fnID, Fn: fn}
				}
			}
		}
		return found == nil
	})
	return found, found != nil
}
