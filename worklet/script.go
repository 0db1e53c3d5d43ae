package worklet

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/kun/log"
	"rogchap.com/v8go"
)

// NewScript create a script engine with its own isolate. Element functions mutate
// the replica, ref functions read and write the ref map.
func NewScript(cacheSize int, replica *dom.Replica, refs *RefMap) (*Script, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}

	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, err
	}

	script := &Script{cache: cache, replica: replica, refs: refs}
	script.iso = v8go.NewIsolate()

	global := v8go.NewObjectTemplate(script.iso)
	functions := map[string]v8go.FunctionCallback{
		"__SetAttribute":     script.setAttribute,
		"__GetAttribute":     script.getAttribute,
		"__SetStyleProperty": script.setStyleProperty,
		"__GetRef":           script.getRef,
		"__SetRef":           script.setRef,
		"__RunOnBackground":  script.runOnBackground,
		"__Log":              script.log,
	}

	for name, fn := range functions {
		err := global.Set(name, v8go.NewFunctionTemplate(script.iso, fn), v8go.ReadOnly)
		if err != nil {
			script.iso.Dispose()
			return nil, err
		}
	}

	script.ctx = v8go.NewContext(script.iso, global)
	log.Info("[worklet] script engine ready, cache size %d", cacheSize)
	return script, nil
}

// SetBackground set the runOnBackground handler
func (script *Script) SetBackground(fn func(handle *JsFnHandle, args []interface{}) error) {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	script.background = fn
}

// Compile compile the source of the hash, compiled functions are cached
func (script *Script) Compile(hash string, source string) (*v8go.Function, error) {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	return script.compile(hash, source)
}

func (script *Script) compile(hash string, source string) (*v8go.Function, error) {
	if fn, has := script.cache.Get(hash); has {
		return fn.(*v8go.Function), nil
	}

	value, err := script.ctx.RunScript("("+source+")", hash+".js")
	if err != nil {
		return nil, fmt.Errorf("compile %s: %s", hash, err.Error())
	}

	fn, err := value.AsFunction()
	if err != nil {
		return nil, fmt.Errorf("compile %s: %s", hash, err.Error())
	}

	script.cache.Add(hash, fn)
	return fn, nil
}

// Call run the function of the hash with this and the arguments
func (script *Script) Call(hash string, source string, this interface{}, args []interface{}) (interface{}, error) {
	script.mutex.Lock()
	defer script.mutex.Unlock()

	fn, err := script.compile(hash, source)
	if err != nil {
		return nil, err
	}

	jsThis, err := script.jsValue(this)
	if err != nil {
		return nil, err
	}

	jsArgs := make([]v8go.Valuer, 0, len(args))
	for _, arg := range args {
		value, err := script.jsValue(arg)
		if err != nil {
			return nil, err
		}
		jsArgs = append(jsArgs, value)
	}

	res, err := fn.Call(jsThis, jsArgs...)
	if err != nil {
		return nil, fmt.Errorf("%s %s", hash, err.Error())
	}
	return goValue(res)
}

// Len the number of cached functions
func (script *Script) Len() int {
	return script.cache.Len()
}

// Close dispose the isolate
func (script *Script) Close() {
	script.mutex.Lock()
	defer script.mutex.Unlock()
	if script.ctx != nil {
		script.ctx.Close()
		script.ctx = nil
	}
	if script.iso != nil {
		script.iso.Dispose()
		script.iso = nil
	}
	script.cache.Purge()
}

func (script *Script) jsValue(value interface{}) (*v8go.Value, error) {
	if value == nil {
		return v8go.Null(script.iso), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return v8go.JSONParse(script.ctx, string(data))
}

func goValue(value *v8go.Value) (interface{}, error) {
	if value == nil || value.IsNull() || value.IsUndefined() || value.IsFunction() {
		return nil, nil
	}

	data, err := value.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var res interface{}
	err = json.Unmarshal(data, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (script *Script) throw(info *v8go.FunctionCallbackInfo, message string) *v8go.Value {
	value, err := v8go.NewValue(info.Context().Isolate(), message)
	if err != nil {
		log.Error("[worklet] %s", message)
		return nil
	}
	return info.Context().Isolate().ThrowException(value)
}

func (script *Script) element(info *v8go.FunctionCallbackInfo, size int) (*dom.Element, []*v8go.Value, *v8go.Value) {
	args := info.Args()
	if len(args) < size {
		return nil, nil, script.throw(info, fmt.Sprintf("expects %d arguments, got %d", size, len(args)))
	}

	if script.replica == nil {
		return nil, nil, script.throw(info, "no document")
	}

	element := script.replica.Element(int(elementID(args[0])))
	if element == nil {
		return nil, args, v8go.Undefined(info.Context().Isolate())
	}
	return element, args, nil
}

// elementID accepts an element id or an {elementRefptr} object
func elementID(value *v8go.Value) int32 {
	if value.IsObject() {
		obj, err := value.AsObject()
		if err != nil {
			return -1
		}
		id, err := obj.Get("elementRefptr")
		if err != nil {
			return -1
		}
		return id.Int32()
	}
	return value.Int32()
}

func (script *Script) setAttribute(info *v8go.FunctionCallbackInfo) *v8go.Value {
	element, args, ret := script.element(info, 3)
	if element == nil {
		return ret
	}

	if args[2].IsNull() || args[2].IsUndefined() {
		element.SetAttribute(args[1].String(), nil)
		return nil
	}
	element.SetAttribute(args[1].String(), dom.Value(args[2].String()))
	return nil
}

func (script *Script) getAttribute(info *v8go.FunctionCallbackInfo) *v8go.Value {
	element, args, ret := script.element(info, 2)
	if element == nil {
		return ret
	}

	value, has := element.GetAttribute(args[1].String())
	if !has {
		return v8go.Null(info.Context().Isolate())
	}

	res, err := v8go.NewValue(info.Context().Isolate(), value)
	if err != nil {
		return script.throw(info, err.Error())
	}
	return res
}

func (script *Script) setStyleProperty(info *v8go.FunctionCallbackInfo) *v8go.Value {
	element, args, ret := script.element(info, 3)
	if element == nil {
		return ret
	}

	important := len(args) > 3 && args[3].Boolean()
	element.SetStyleProperty(args[1].String(), args[2].String(), important)
	return nil
}

func (script *Script) getRef(info *v8go.FunctionCallbackInfo) *v8go.Value {
	args := info.Args()
	if len(args) < 1 || script.refs == nil {
		return v8go.Undefined(info.Context().Isolate())
	}

	ref, has := script.refs.Get(int(args[0].Int32()))
	if !has {
		return v8go.Undefined(info.Context().Isolate())
	}

	value, err := script.jsValue(ref.Current())
	if err != nil {
		return script.throw(info, err.Error())
	}
	return value
}

func (script *Script) setRef(info *v8go.FunctionCallbackInfo) *v8go.Value {
	args := info.Args()
	if len(args) < 2 || script.refs == nil {
		return nil
	}

	ref, has := script.refs.Get(int(args[0].Int32()))
	if !has {
		return nil
	}

	value, err := goValue(args[1])
	if err != nil {
		return script.throw(info, err.Error())
	}
	ref.Set(value)
	return nil
}

func (script *Script) runOnBackground(info *v8go.FunctionCallbackInfo) *v8go.Value {
	args := info.Args()
	if len(args) < 1 {
		return script.throw(info, "runOnBackground expects a function handle")
	}

	if script.background == nil {
		return script.throw(info, "runOnBackground is not enabled")
	}

	value, err := goValue(args[0])
	if err != nil {
		return script.throw(info, err.Error())
	}

	handle, ok := ParseJsFnHandle(value)
	if !ok {
		return script.throw(info, "runOnBackground expects a function handle")
	}

	params := []interface{}{}
	for _, arg := range args[1:] {
		param, err := goValue(arg)
		if err != nil {
			return script.throw(info, err.Error())
		}
		params = append(params, param)
	}

	if err := script.background(handle, params); err != nil {
		return script.throw(info, err.Error())
	}
	return nil
}

func (script *Script) log(info *v8go.FunctionCallbackInfo) *v8go.Value {
	values := []interface{}{}
	for _, arg := range info.Args() {
		values = append(values, arg.String())
	}
	log.Info("[worklet] %v", values)
	return nil
}
