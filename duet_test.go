package duet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/duet/dom"
	"github.com/yaoapp/duet/worklet"
)

func prepare(t *testing.T, option Option) (*Background, *MainThread) {
	b, m, err := NewPair(option)
	require.NoError(t, err)
	t.Cleanup(func() {
		b.Close()
		m.Close()
	})
	return b, m
}

func TestPairReplicates(t *testing.T) {
	b, m := prepare(t, Option{Name: "replicate"})

	var view int
	err := b.Update(func(doc *dom.Document) error {
		view = doc.CreateElement("view")
		if err := doc.SetAttribute(view, "id", dom.Value("target")); err != nil {
			return err
		}
		if err := doc.SetStyleProperty(view, "background", "pink", false); err != nil {
			return err
		}
		return doc.AppendChild(dom.RootID, view, -1)
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return m.Replica().Has(view) }, time.Second, 5*time.Millisecond)
	node, _ := m.Replica().Node(view)
	assert.Equal(t, "view", node.Tag)
	assert.Equal(t, "target", node.Attributes["id"])
	assert.Equal(t, "pink", node.Style["background"].Value)

	tree, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.Replica().Snapshot().String(), tree.String())

	// an invalid mutation is rejected at the source, the replica is untouched
	err = b.Update(func(doc *dom.Document) error { return doc.SetAttribute(99, "id", nil) })
	assert.ErrorIs(t, err, dom.ErrUnknownElement)
	require.NoError(t, b.Flush())
	after, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tree.String(), after.String())
}

func TestRunOnMainThread(t *testing.T) {
	b, m := prepare(t, Option{Name: "worklet"})
	m.RegisterWorklet("press", func(ctx *worklet.Context, args ...interface{}) (interface{}, error) {
		ctx.Element("el").SetStyleProperty("opacity", "0.5", false)
		return args[0].(float64) * 2, nil
	})

	var view int
	require.NoError(t, b.Submit(func(doc *dom.Document) { view = doc.CreateElement("view") }))

	// the pending creation is flushed before the worklet is posted
	future := b.RunOnMainThread(worklet.New("press", map[string]interface{}{
		"el": map[string]interface{}{"elementRefptr": 1},
	}))(21)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(42), res)

	node, has := m.Replica().Node(view)
	require.True(t, has)
	assert.Equal(t, "0.5", node.Style["opacity"].Value)

	_, err = b.RunOnMainThread(worklet.New("missing", nil))().Wait(ctx)
	assert.Error(t, err)
}

func TestRunOnBackground(t *testing.T) {
	b, m := prepare(t, Option{Name: "jsfn"})

	called := make(chan []interface{}, 1)
	fn := b.JsFn(func(args ...interface{}) { called <- args })

	m.RegisterWorklet("tap", func(ctx *worklet.Context, args ...interface{}) (interface{}, error) {
		handle := ctx.JsFn("onTap")
		defer handle.Release()
		return nil, ctx.RunOnBackground(handle, "hi", 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := b.RunOnMainThread(worklet.New("tap", map[string]interface{}{"onTap": fn}))().Wait(ctx)
	require.NoError(t, err)

	select {
	case args := <-called:
		assert.Equal(t, []interface{}{"hi", float64(1)}, args)
	case <-time.After(time.Second):
		t.Fatal("runOnBackground timeout")
	}

	// the released handle frees the exec id on the logic thread
	assert.Eventually(t, func() bool { return b.ExecIDs().Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDispatchEvent(t *testing.T) {
	b, m := prepare(t, Option{Name: "event"})

	events := make(chan dom.Event, 1)
	b.OnEvent("onTap", func(event dom.Event) { events <- event })

	pressed := make(chan int, 1)
	m.RegisterWorklet("onPress", func(ctx *worklet.Context, args ...interface{}) (interface{}, error) {
		event := args[0].(map[string]interface{})
		pressed <- event["currentTarget"].(*dom.Element).ID()
		return nil, nil
	})

	var view, text int
	require.NoError(t, b.Update(func(doc *dom.Document) error {
		view = doc.CreateElement("view")
		text = doc.CreateElement("text")
		doc.AppendChild(dom.RootID, view, -1)
		doc.AppendChild(view, text, -1)
		doc.BindEvent(view, "tap", "onTap")
		return doc.BindEvent(view, "press", "onPress")
	}))
	assert.Eventually(t, func() bool { return m.Replica().Has(text) }, time.Second, 5*time.Millisecond)

	handled, err := m.DispatchEvent(text, "tap", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.True(t, handled)
	select {
	case event := <-events:
		assert.Equal(t, view, event.Target)
		assert.Equal(t, "tap", event.Type)
		assert.Equal(t, float64(1), event.Detail["x"])
	case <-time.After(time.Second):
		t.Fatal("publishEvent timeout")
	}

	handled, err = m.DispatchEvent(text, "press", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, view, <-pressed)

	handled, err = m.DispatchEvent(text, "scroll", nil)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestWorkletRefs(t *testing.T) {
	b, m := prepare(t, Option{Name: "refs"})

	ref := b.CreateRef(10)
	require.NoError(t, b.Flush())
	assert.Eventually(t, func() bool {
		_, has := m.Refs().Get(ref.ID)
		return has
	}, time.Second, 5*time.Millisecond)

	current, _ := m.Refs().Get(ref.ID)
	assert.Equal(t, float64(10), current.Current())

	_, err := b.Thread().Exec(func() interface{} {
		ref.Release()
		return nil
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, has := m.Refs().Get(ref.ID)
		return !has
	}, time.Second, 5*time.Millisecond)
}

func TestSnapshotAfterUpdate(t *testing.T) {
	b, _ := prepare(t, Option{Name: "snapshot"})

	for i := 0; i < 20; i++ {
		var view int
		err := b.Update(func(doc *dom.Document) error {
			view = doc.CreateElement("view")
			return doc.AppendChild(dom.RootID, view, -1)
		})
		require.NoError(t, err)

		tree, err := b.Snapshot(context.Background())
		require.NoError(t, err)
		require.Len(t, tree.Children, i+1)
		assert.Equal(t, view, tree.Children[i].ID)
	}
}

func TestWorkletRefReleasedInCreatingTick(t *testing.T) {
	b, m := prepare(t, Option{Name: "refs-tick"})

	var id int
	_, err := b.Thread().Exec(func() interface{} {
		ref := b.CreateRef(10)
		id = ref.ID
		ref.Release()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, b.Flush())

	kept := b.CreateRef(20)
	require.NoError(t, b.Flush())
	assert.Eventually(t, func() bool {
		_, has := m.Refs().Get(kept.ID)
		return has
	}, time.Second, 5*time.Millisecond)

	_, has := m.Refs().Get(id)
	assert.False(t, has)
	assert.Equal(t, 1, m.Refs().Len())
	kept.Release()
}

func TestHandles(t *testing.T) {
	b, m := prepare(t, Option{Name: "handles"})

	handle := m.AddRef("surface")
	value, has := m.ResolveRef(handle)
	require.True(t, has)
	assert.Equal(t, "surface", value)

	proxy := b.Track(handle)
	proxy.Release()
	assert.Eventually(t, func() bool {
		_, has := m.ResolveRef(handle)
		return !has
	}, time.Second, 5*time.Millisecond)

	// a stale handle is a miss
	m.ReleaseRef(handle)
	_, has = m.ResolveRef(handle)
	assert.False(t, has)
}

func TestDevRegisterWorklet(t *testing.T) {
	b, m := prepare(t, Option{Name: "dev", Dev: true, Script: true})

	source := "function(a) { return a + 1 }"
	hash := worklet.Hash(source)
	require.NoError(t, b.RegisterMainThreadWorklet(hash, source))
	require.NoError(t, b.Flush())
	assert.Eventually(t, func() bool { return m.Registry().Has(hash) }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := b.RunOnMainThread(worklet.New(hash, nil))(1).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), res)
}

func TestRunBackgroundWorklet(t *testing.T) {
	b, _ := prepare(t, Option{Name: "local"})
	b.RegisterWorklet("sum", func(ctx *worklet.Context, args ...interface{}) (interface{}, error) {
		assert.True(t, b.Thread().IsCurrent())
		return ctx.Value("a").(float64) + args[0].(float64), nil
	})

	res, err := b.RunWorklet(&worklet.Descriptor{Hash: "sum", Captured: map[string]interface{}{"a": 1}, Kind: worklet.Background}, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(3), res)
}
