package undo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lathe/errors"
)

// list is a minimal well-behaved participant.
type list struct {
	values      []string
	failRestore bool
}

func (l *list) Snapshot() any {
	return append([]string(nil), l.values...)
}

func (l *list) Restore(state any) error {
	if l.failRestore {
		return errors.New("restore refused")
	}
	v, ok := state.([]string)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidSnapshot, "list cannot restore %T", state)
	}
	l.values = append([]string(nil), v...)
	return nil
}

// leaky forgets its selection on Restore.
type leaky struct {
	items    []string
	selected string
}

type leakyState struct {
	Items    []string
	Selected string
}

func (l *leaky) Snapshot() any {
	return leakyState{Items: append([]string(nil), l.items...), Selected: l.selected}
}

func (l *leaky) Restore(state any) error {
	s := state.(leakyState)
	l.items = append([]string(nil), s.Items...)
	l.selected = ""
	return nil
}

type countingObserver struct {
	checkpoints, evictions, restores int
}

func (o *countingObserver) Checkpointed(int, int)     { o.checkpoints++ }
func (o *countingObserver) Evicted(n int)             { o.evictions += n }
func (o *countingObserver) Restored(string, int, int) { o.restores++ }

func newCoordinator(t *testing.T, capacity int, parts map[string]Snapshotter, opts ...Option) *Coordinator {
	t.Helper()
	c := New(capacity, nil, opts...)
	for _, name := range []string{"a", "b", "c"} {
		if p, ok := parts[name]; ok {
			require.NoError(t, c.Register(name, p))
		}
	}
	return c
}

func TestUndoRedo_Symmetry(t *testing.T) {
	a := &list{values: []string{"x"}}
	b := &list{}
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": a, "b": b})

	pre := c.Capture("")

	c.Checkpoint("add y")
	a.values = append(a.values, "y")
	b.values = []string{"linked"}
	post := c.Capture("")

	label, err := c.Undo()
	require.NoError(t, err)
	assert.Equal(t, "add y", label)
	assert.Empty(t, Diff(pre, c.Capture("")))
	assert.True(t, c.CanRedo())
	assert.False(t, c.CanUndo())

	label, err = c.Redo()
	require.NoError(t, err)
	assert.Equal(t, "add y", label)
	assert.Empty(t, Diff(post, c.Capture("")))
	assert.True(t, c.CanUndo())
	assert.False(t, c.CanRedo())
}

func TestUndoRedo_EmptyStack(t *testing.T) {
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": &list{}})

	_, err := c.Undo()
	assert.True(t, errors.IsEmptyStack(err))
	_, err = c.Redo()
	assert.True(t, errors.IsEmptyStack(err))
}

func TestPush_ClearsRedo(t *testing.T) {
	a := &list{}
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": a})

	c.Checkpoint("one")
	a.values = []string{"1"}
	_, err := c.Undo()
	require.NoError(t, err)
	require.True(t, c.CanRedo())

	c.Checkpoint("two")
	a.values = []string{"2"}
	assert.False(t, c.CanRedo())
	assert.Equal(t, 1, c.UndoDepth())
}

func TestCapacity_EvictsOldest(t *testing.T) {
	a := &list{}
	obs := &countingObserver{}
	c := newCoordinator(t, 3, map[string]Snapshotter{"a": a}, WithObserver(obs))

	for i := 1; i <= 5; i++ {
		c.Checkpoint(fmt.Sprintf("step %d", i))
		a.values = []string{fmt.Sprint(i)}
	}
	assert.Equal(t, 3, c.UndoDepth())
	assert.Equal(t, []string{"step 5", "step 4", "step 3"}, c.Labels())
	assert.Equal(t, 2, obs.evictions)
	assert.Equal(t, 5, obs.checkpoints)

	for _, want := range []string{"4", "3", "2"} {
		_, err := c.Undo()
		require.NoError(t, err)
		assert.Equal(t, []string{want}, a.values)
	}
	_, err := c.Undo()
	assert.True(t, errors.IsEmptyStack(err))
	assert.Equal(t, 3, c.RedoDepth())
	assert.Equal(t, 3, obs.restores)
}

func TestUndo_AtomicOnFailure(t *testing.T) {
	a := &list{values: []string{"old"}}
	b := &list{values: []string{"old"}}
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": a, "b": b})

	c.Checkpoint("edit")
	a.values = []string{"new"}
	b.values = []string{"new"}
	b.failRestore = true

	_, err := c.Undo()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore refused")

	assert.Equal(t, []string{"new"}, a.values, "a is rolled back to the live state")
	assert.Equal(t, []string{"new"}, b.values)
	assert.Equal(t, 1, c.UndoDepth(), "failed undo leaves the stacks alone")
	assert.Equal(t, 0, c.RedoDepth())

	b.failRestore = false
	_, err = c.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, a.values)
	assert.Equal(t, []string{"old"}, b.values)
}

func TestUndo_MissingSlice(t *testing.T) {
	a := &list{values: []string{"v"}}
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": a})
	c.Push(Composite{Label: "foreign", Slices: map[string]any{}})

	_, err := c.Undo()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSnapshot))
	assert.Equal(t, []string{"v"}, a.values)
}

func TestCapture_IsDetached(t *testing.T) {
	a := &list{values: []string{"x"}}
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": a})

	comp := c.Capture("")
	a.values[0] = "mutated"
	assert.Equal(t, []string{"x"}, comp.Slices["a"])
}

func TestRegister_Validation(t *testing.T) {
	c := New(0, nil)
	assert.Equal(t, DefaultCapacity, c.Capacity())

	require.NoError(t, c.Register("a", &list{}))
	assert.True(t, errors.IsInvalidReference(c.Register("a", &list{})))
	assert.True(t, errors.IsInvalidReference(c.Register("", &list{})))
	assert.True(t, errors.IsInvalidReference(c.Register("b", nil)))
	assert.Equal(t, []string{"a"}, c.Participants())
}

func TestClear(t *testing.T) {
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": &list{}})
	c.Checkpoint("one")
	c.Checkpoint("two")
	_, err := c.Undo()
	require.NoError(t, err)

	c.Clear()
	assert.False(t, c.CanUndo())
	assert.False(t, c.CanRedo())
}

func TestWithClock_StampsComposites(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c := newCoordinator(t, 10, map[string]Snapshotter{"a": &list{}}, WithClock(func() time.Time { return at }))
	assert.Equal(t, at, c.Capture("x").TakenAt)
}

func TestVerifyRoundTrip(t *testing.T) {
	good := newCoordinator(t, 10, map[string]Snapshotter{"a": &list{values: []string{"x"}}})
	require.NoError(t, good.VerifyRoundTrip())
	assert.Equal(t, 0, good.UndoDepth())

	bad := newCoordinator(t, 10, map[string]Snapshotter{
		"a": &list{values: []string{"x"}},
		"b": &leaky{items: []string{"i"}, selected: "i"},
	})
	err := bad.VerifyRoundTrip()
	require.Error(t, err)
	assert.Contains(t, errors.FlattenDetails(err), "Selected")
}
