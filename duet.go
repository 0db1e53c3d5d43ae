// Package duet runs an application across two isolates: the logic thread builds
// and mutates a virtual element tree, the main thread owns the replica the
// mutations are replayed on. The isolates only talk through one channel port.
package duet

import "github.com/yaoapp/duet/rpc"

// Logic thread to main thread
var (
	// UpdatePatch (ops []dom.Operation, refs []worklet.RefPatch) the flushed operation log
	UpdatePatch = rpc.Define("updatePatch", rpc.AsyncVoid, 2)

	// RunWorkletCtx (desc worklet.Descriptor, args []interface{}) run a main thread worklet
	RunWorkletCtx = rpc.Define("runWorkletCtx", rpc.Async, 2)

	// ReleaseRefs (ids []int) the worklet refs collected on the logic thread
	ReleaseRefs = rpc.Define("releaseRefs", rpc.AsyncVoid, 1)

	// ReleaseHandles (handles []int) the main thread handles collected on the logic thread
	ReleaseHandles = rpc.Define("releaseHandles", rpc.AsyncVoid, 1)

	// Snapshot () the structural value of the replica
	Snapshot = rpc.Define("snapshot", rpc.Sync, 0)
)

// Main thread to logic thread
var (
	// PublishEvent (event dom.Event) an event without main thread handler
	PublishEvent = rpc.Define("publishEvent", rpc.SyncVoid, 1)

	// RunOnBackground (handle worklet.JsFnHandle, args []interface{}) call a logic thread function
	RunOnBackground = rpc.Define("runOnBackground", rpc.AsyncVoid, 2)

	// ReleaseBackgroundWorkletCtx (execIds []int) the exec ids without handles left
	ReleaseBackgroundWorkletCtx = rpc.Define("releaseBackgroundWorkletCtx", rpc.AsyncVoid, 1)
)
