package worklet

import (
	"sort"

	"github.com/yaoapp/kun/log"
)

// NewRegistry create an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*Entry{}}
}

// Register add the entry, a hash already present is kept and false is returned
func (registry *Registry) Register(entry *Entry) bool {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if _, has := registry.entries[entry.Hash]; has {
		log.Trace("[worklet] %s is already registered", entry.Hash)
		return false
	}
	registry.entries[entry.Hash] = entry
	return true
}

// RegisterFunc register a native worklet
func (registry *Registry) RegisterFunc(hash string, fn Func) bool {
	return registry.Register(&Entry{Hash: hash, Func: fn})
}

// RegisterScript register a script worklet, the source is a function expression
func (registry *Registry) RegisterScript(hash string, source string) bool {
	return registry.Register(&Entry{Hash: hash, Source: source})
}

// Lookup find the entry of the hash
func (registry *Registry) Lookup(hash string) (*Entry, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	entry, has := registry.entries[hash]
	return entry, has
}

// Has check if the hash is registered
func (registry *Registry) Has(hash string) bool {
	_, has := registry.Lookup(hash)
	return has
}

// Len the number of registered worklets
func (registry *Registry) Len() int {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return len(registry.entries)
}

// Hashes the registered hashes, sorted
func (registry *Registry) Hashes() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	hashes := make([]string, 0, len(registry.entries))
	for hash := range registry.entries {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes
}

// IsScript check if the entry runs on the script engine
func (entry *Entry) IsScript() bool {
	return entry.Func == nil
}
