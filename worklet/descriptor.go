package worklet

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// New create a main thread worklet descriptor
func New(hash string, captured map[string]interface{}) *Descriptor {
	if captured == nil {
		captured = map[string]interface{}{}
	}
	return &Descriptor{Hash: hash, Captured: captured, Kind: MainThread}
}

// Parse read a descriptor from a decoded message value
func Parse(value interface{}) (*Descriptor, error) {
	switch v := value.(type) {
	case *Descriptor:
		if v == nil || v.Hash == "" {
			return nil, ErrInvalidWorklet
		}
		return v, nil

	case map[string]interface{}:
		if _, has := v["_wkltId"]; !has {
			return nil, ErrInvalidWorklet
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorklet, err.Error())
	}

	desc := &Descriptor{}
	if err := json.Unmarshal(data, desc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorklet, err.Error())
	}

	if desc.Hash == "" {
		return nil, ErrInvalidWorklet
	}
	return desc, nil
}

// Clone the structured clone of the descriptor, handles become markers
func (desc *Descriptor) Clone() (*Descriptor, error) {
	data, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}

	clone := &Descriptor{}
	err = json.Unmarshal(data, clone)
	if err != nil {
		return nil, err
	}

	if clone.Captured == nil {
		clone.Captured = map[string]interface{}{}
	}
	return clone, nil
}

// This the value a script body sees as this
func (desc *Descriptor) This() map[string]interface{} {
	this := map[string]interface{}{"_wkltId": desc.Hash, "_c": desc.Captured}
	if desc.ExecID != 0 {
		this["_execId"] = desc.ExecID
	}
	return this
}

// HasJsFn check if the captured values hold a logic thread function
func (desc *Descriptor) HasJsFn() bool {
	found := false
	walk(desc.Captured, 0, func(value interface{}) bool {
		switch v := value.(type) {
		case *JsFn, JsFn:
			found = true
		case map[string]interface{}:
			if _, has := v["_jsFnId"]; has {
				found = true
			}
		}
		return !found
	})
	return found
}

// walk visit the value tree until the visitor returns false
func walk(value interface{}, depth int, visit func(value interface{}) bool) bool {
	if depth >= depthLimit {
		return false
	}

	if !visit(value) {
		return false
	}

	switch v := value.(type) {
	case map[string]interface{}:
		for _, sub := range v {
			if !walk(sub, depth+1, visit) {
				return false
			}
		}

	case []interface{}:
		for _, sub := range v {
			if !walk(sub, depth+1, visit) {
				return false
			}
		}

	case *Descriptor:
		return walk(v.Captured, depth+1, visit)
	}
	return true
}
