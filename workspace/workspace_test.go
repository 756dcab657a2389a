package workspace

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lathe/am"
	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/internal/util"
	"github.com/teranos/lathe/metrics"
	"github.com/teranos/lathe/pipeline"
	"github.com/teranos/lathe/recompute"
	"github.com/teranos/lathe/store"
	"github.com/teranos/lathe/undo"
)

type recorder struct {
	mu       sync.Mutex
	clock    recompute.Clock
	requests []pipeline.Request
	at       []time.Time
	err      error
}

func (r *recorder) Recompute(_ context.Context, req pipeline.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.at = append(r.at, r.clock.Now())
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last() pipeline.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
	r.at = nil
}

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestWorkspace(t *testing.T, opts ...Option) (*Workspace, *recompute.FakeClock, *recorder) {
	t.Helper()
	clock := recompute.NewFakeClock(start)
	rec := &recorder{clock: clock}
	opts = append([]Option{WithClock(clock), WithPipeline(rec)}, opts...)
	w := New(zaptest.NewLogger(t).Sugar(), opts...)
	t.Cleanup(w.Close)
	return w, clock, rec
}

func ids(views []feature.View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

type fixture struct {
	p1, p2, s1, c, child string
}

// buildFixture creates [p1 box, p2 cylinder, s1 sketch, c component, child sphere in c]
// and lets the resulting recompute fire.
func buildFixture(t *testing.T, w *Workspace, clock *recompute.FakeClock, rec *recorder) fixture {
	t.Helper()
	var f fixture
	var err error
	f.p1, err = w.AddPrimitive("box", "P1", nil)
	require.NoError(t, err)
	f.p2, err = w.AddPrimitive("cylinder", "P2", nil)
	require.NoError(t, err)
	f.s1, err = w.AddSketch("S1", "", nil)
	require.NoError(t, err)
	f.c, err = w.AddComponent("C", "")
	require.NoError(t, err)
	f.child, err = w.AddPrimitive("sphere", "child", nil, InComponent(f.c))
	require.NoError(t, err)

	clock.Advance(time.Second)
	rec.reset()
	return f
}

func TestScenario_SuppressionAndRollbackCompose(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	p1, err := w.AddPrimitive("box", "P1", nil)
	require.NoError(t, err)
	p2, err := w.AddPrimitive("box", "P2", nil)
	require.NoError(t, err)
	s1, err := w.AddSketch("S1", "XY", nil)
	require.NoError(t, err)

	require.True(t, w.Suppress(p2))
	require.True(t, w.Rollback(util.Ptr(1)))
	// S1 stays excluded by rollback regardless of its own suppression
	require.True(t, w.Suppress(s1))

	assert.Equal(t, []string{p1}, w.ActiveIDs())

	clock.Advance(time.Second)
	require.Equal(t, 1, rec.count(), "one recompute for the whole burst")
	req := rec.last()
	assert.Equal(t, []string{p1}, ids(req.Active()))
	require.NotNil(t, req.RollbackIndex)
	assert.Equal(t, 1, *req.RollbackIndex)
}

func TestScenario_ReorderLastToFront(t *testing.T) {
	w, _, _ := newTestWorkspace(t)
	var created []string
	for i := 0; i < 5; i++ {
		id, err := w.AddPrimitive("box", "", nil)
		require.NoError(t, err)
		created = append(created, id)
	}

	require.NoError(t, w.Reorder(4, 0))

	want := append([]string{created[4]}, created[:4]...)
	assert.Equal(t, want, ids(w.Features()))
}

func TestUndoRedo_Symmetry(t *testing.T) {
	tests := []struct {
		name string
		act  func(t *testing.T, w *Workspace, f fixture)
	}{
		{"suppress", func(t *testing.T, w *Workspace, f fixture) {
			require.True(t, w.Suppress(f.p2))
		}},
		{"delete", func(t *testing.T, w *Workspace, f fixture) {
			require.True(t, w.Delete(f.p1))
		}},
		{"delete component", func(t *testing.T, w *Workspace, f fixture) {
			require.True(t, w.Delete(f.c))
		}},
		{"reorder", func(t *testing.T, w *Workspace, f fixture) {
			require.NoError(t, w.Reorder(2, 0))
		}},
		{"rollback", func(t *testing.T, w *Workspace, f fixture) {
			require.True(t, w.Rollback(util.Ptr(1)))
		}},
		{"dissolve", func(t *testing.T, w *Workspace, f fixture) {
			require.True(t, w.Dissolve(f.c))
		}},
		{"add", func(t *testing.T, w *Workspace, f fixture) {
			_, err := w.AddPrimitive("torus", "T", nil)
			require.NoError(t, err)
		}},
		{"add in component", func(t *testing.T, w *Workspace, f fixture) {
			_, err := w.AddDatumAxis("A", store.Vec3{}, store.Vec3{1, 0, 0}, InComponent(f.c))
			require.NoError(t, err)
		}},
		{"add mate", func(t *testing.T, w *Workspace, f fixture) {
			_, err := w.AddMate("distance", f.p1, f.p2, 5)
			require.NoError(t, err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, clock, rec := newTestWorkspace(t)
			f := buildFixture(t, w, clock, rec)
			require.True(t, w.Select(f.s1))

			pre := w.undo.Capture("")
			depth := w.undo.UndoDepth()
			tt.act(t, w, f)
			require.Equal(t, depth+1, w.undo.UndoDepth(), "one checkpoint per action")
			post := w.undo.Capture("")
			require.NotEmpty(t, undo.Diff(pre, post))

			label, err := w.Undo()
			require.NoError(t, err)
			assert.NotEmpty(t, label)
			assert.Empty(t, undo.Diff(pre, w.undo.Capture("")), "undo restores the pre-action state")
			assert.Equal(t, f.s1, w.Selected(), "selection is part of the snapshot")

			_, err = w.Redo()
			require.NoError(t, err)
			assert.Empty(t, undo.Diff(post, w.undo.Capture("")), "redo restores the post-action state")

			require.NoError(t, w.Verify())
		})
	}
}

func TestUndo_EmptyStackIsNoop(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)

	label, err := w.Undo()
	assert.NoError(t, err)
	assert.Empty(t, label)
	label, err = w.Redo()
	assert.NoError(t, err)
	assert.Empty(t, label)

	clock.Advance(time.Second)
	assert.Equal(t, 0, rec.count(), "a no-op undo schedules nothing")
}

func TestUndo_SchedulesRecompute(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Suppress(f.p1))
	_, err := w.Undo()
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.Equal(t, 1, rec.count())
	for _, v := range rec.last().Features {
		assert.False(t, v.Suppressed)
	}
}

func TestNewAction_ClearsRedo(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Suppress(f.p1))
	_, err := w.Undo()
	require.NoError(t, err)
	require.True(t, w.CanRedo())

	require.True(t, w.Suppress(f.p2))
	assert.False(t, w.CanRedo())
}

func TestUnknownIDs_AreSilentNoops(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	assert.False(t, w.Suppress("missing"))
	assert.False(t, w.Delete("missing"))
	assert.False(t, w.Dissolve("missing"))
	assert.False(t, w.Dissolve(f.p1), "not a component")
	assert.False(t, w.Suppress(f.c), "components are not suppressible")
	assert.False(t, w.Select("missing"))

	assert.Equal(t, depth, w.undo.UndoDepth())
	assert.Equal(t, recompute.Idle, w.RecomputeState())
	clock.Advance(time.Second)
	assert.Equal(t, 0, rec.count())
}

func TestReorder_InvalidRange(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	tests := []struct {
		name     string
		from, to int
	}{
		{"source past end", 5, 0},
		{"negative source", -1, 0},
		{"target past end", 0, 5},
		{"component child", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Reorder(tt.from, tt.to)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRange(err))
		})
	}

	assert.Equal(t, depth, w.undo.UndoDepth(), "rejected reorders leave no checkpoint")
	assert.Equal(t, recompute.Idle, w.RecomputeState())
	assert.Equal(t, []string{f.p1, f.p2, f.s1, f.c, f.child}, ids(w.Features()))

	require.NoError(t, w.Reorder(1, 1))
	assert.Equal(t, depth, w.undo.UndoDepth(), "a no-op move is not an action")
}

func TestReorder_ComponentMovesAnchorOnly(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.NoError(t, w.Reorder(3, 0))

	// The display still groups the child under its component...
	assert.Equal(t, []string{f.c, f.child, f.p1, f.p2, f.s1}, ids(w.Features()))
	// ...but the child keeps its sequence position, which drives recompute order.
	assert.Equal(t, []string{f.c, f.p1, f.p2, f.s1, f.child}, w.ActiveIDs())
}

func TestRecomputeRequest_FollowsSequenceOrder(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	// Move the component anchor past its child.
	require.NoError(t, w.Reorder(3, 4))
	clock.Advance(time.Second)
	require.Equal(t, 1, rec.count())

	req := rec.last()
	want := []string{f.p1, f.p2, f.s1, f.child, f.c}
	assert.Equal(t, want, w.ActiveIDs())
	assert.Equal(t, want, ids(req.Active()))
	assert.Equal(t, want, ids(req.Features))
	for i, v := range req.Features {
		assert.Equal(t, i, v.Index)
	}
	// Display order still groups the child under its component.
	assert.Equal(t, []string{f.p1, f.p2, f.s1, f.c, f.child}, ids(w.Features()))
}

func TestDebounce_CoalescesBurstAndReadsFireTimeState(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Suppress(f.p1))
	clock.Advance(20 * time.Millisecond)
	require.True(t, w.Suppress(f.p2))
	clock.Advance(20 * time.Millisecond)
	require.True(t, w.Suppress(f.s1))

	clock.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, recompute.Pending, w.RecomputeState())

	clock.Advance(time.Millisecond)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, start.Add(time.Second+140*time.Millisecond), rec.at[0])
	assert.Equal(t, []string{f.c, f.child}, ids(rec.last().Active()))

	clock.Advance(time.Second)
	assert.Equal(t, 1, rec.count())
}

func TestRollback_ReplacesPendingStructuralRecompute(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Suppress(f.p1))
	clock.Advance(50 * time.Millisecond)
	require.True(t, w.Rollback(util.Ptr(0)))

	clock.Advance(0)
	require.Equal(t, 1, rec.count(), "rollback fires immediately and supersedes the pending timer")
	req := rec.last()
	require.NotNil(t, req.RollbackIndex)
	assert.Equal(t, 0, *req.RollbackIndex)
	assert.True(t, req.Features[0].Suppressed)
	assert.Empty(t, req.Active())

	clock.Advance(time.Second)
	assert.Equal(t, 1, rec.count())
}

func TestRollback_ClampAndNoop(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	assert.False(t, w.Rollback(util.Ptr(5)), "past the end means no rollback, already the case")
	assert.False(t, w.Rollback(nil))
	assert.Equal(t, depth, w.undo.UndoDepth())

	require.True(t, w.Rollback(util.Ptr(-3)))
	require.NotNil(t, w.RollbackIndex())
	assert.Equal(t, 0, *w.RollbackIndex())

	require.True(t, w.Rollback(util.Ptr(99)))
	assert.Nil(t, w.RollbackIndex())
}

func TestDragRollback_Debounced(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	w.DragRollback(util.Ptr(3))
	clock.Advance(100 * time.Millisecond)
	w.DragRollback(util.Ptr(2))
	clock.Advance(100 * time.Millisecond)
	w.DragRollback(util.Ptr(1))

	clock.Advance(299 * time.Millisecond)
	assert.Nil(t, w.RollbackIndex(), "nothing applied while dragging")
	assert.Equal(t, 0, rec.count())

	clock.Advance(time.Millisecond)
	require.NotNil(t, w.RollbackIndex())
	assert.Equal(t, 1, *w.RollbackIndex())
	assert.Equal(t, depth+1, w.undo.UndoDepth(), "a whole drag is one undo step")
	assert.Equal(t, 1, rec.count(), "rollback recompute fires with zero delay")

	w.DragRollback(nil)
	clock.Advance(time.Second)
	assert.Nil(t, w.RollbackIndex())
}

func TestAdd_WhileRolledBackInsertsAfterCursor(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Rollback(util.Ptr(0)))
	id, err := w.AddDatumPlane("D", store.Vec3{}, store.Vec3{}, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{f.p1, id, f.p2, f.s1, f.c, f.child}, ids(w.Features()))
	require.NotNil(t, w.RollbackIndex())
	assert.Equal(t, 1, *w.RollbackIndex())
	assert.Equal(t, []string{f.p1, id}, w.ActiveIDs())

	views := w.Features()
	assert.Equal(t, "normal (0, 0, 1) offset 5", views[1].Detail)
}

func TestAdd_Validation(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	_, err := w.AddPrimitive("pyramid", "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidKind))

	_, err = w.AddPrimitive("box", "", nil, InComponent("missing"))
	assert.True(t, errors.IsInvalidReference(err))
	_, err = w.AddPrimitive("box", "", nil, InComponent(f.p1))
	assert.True(t, errors.IsInvalidReference(err), "owner must be a component")

	_, err = w.AddMate("glue", f.p1, f.p2, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidKind))
	_, err = w.AddMate("coincident", f.p1, "missing", 0)
	assert.True(t, errors.IsInvalidReference(err))
	_, err = w.AddMate("coincident", f.p1, f.p1, 0)
	assert.True(t, errors.IsInvalidReference(err))

	assert.Equal(t, depth, w.undo.UndoDepth())
	assert.Equal(t, 3, w.primitives.Len(), "no stray entities")
	assert.Equal(t, 0, w.mates.Len())
}

func TestAdd_DefaultsAndDetails(t *testing.T) {
	w, _, _ := newTestWorkspace(t)

	box, err := w.AddPrimitive("box", "", map[string]float64{"h": 2})
	require.NoError(t, err)
	p, ok := w.primitives.Get(box)
	require.True(t, ok)
	assert.Equal(t, "box 1", p.Name)
	assert.Equal(t, map[string]float64{"w": 10, "h": 2, "d": 10}, p.Params)

	other, err := w.AddPrimitive("sphere", "ball", nil)
	require.NoError(t, err)
	mate, err := w.AddMate("concentric", box, other, 7)
	require.NoError(t, err)
	m, ok := w.mates.Get(mate)
	require.True(t, ok)
	assert.Zero(t, m.Value, "concentric takes no value")

	views := w.Features()
	require.Len(t, views, 3)
	assert.Equal(t, feature.KindMate, views[2].Kind)
	assert.Equal(t, "concentric", views[2].Name)
}

func TestDelete_ComponentPromotesChildren(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Delete(f.c))

	views := w.Features()
	assert.Equal(t, []string{f.p1, f.p2, f.s1, f.child}, ids(views))
	assert.Empty(t, views[3].ComponentID)
	assert.Equal(t, 0, views[3].Depth)
	assert.False(t, w.components.Has(f.c))
}

func TestDelete_PullsRollbackCursorDown(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Rollback(util.Ptr(2)))
	require.True(t, w.Delete(f.p1))
	require.NotNil(t, w.RollbackIndex())
	assert.Equal(t, 1, *w.RollbackIndex())
	assert.Equal(t, []string{f.p2, f.s1}, w.ActiveIDs())
	assert.False(t, w.primitives.Has(f.p1))
}

func TestDelete_RemovesDependentMates(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	direct, err := w.AddMate("coincident", f.p1, f.p2, 0)
	require.NoError(t, err)
	chained, err := w.AddMate("parallel", direct, f.s1, 0)
	require.NoError(t, err)
	unrelated, err := w.AddMate("distance", f.p2, f.s1, 5)
	require.NoError(t, err)
	depth := w.undo.UndoDepth()

	require.True(t, w.Delete(f.p1))
	assert.Equal(t, []string{f.p2, f.s1, f.c, f.child, unrelated}, w.ActiveIDs())
	assert.False(t, w.mates.Has(direct))
	assert.False(t, w.mates.Has(chained))
	assert.True(t, w.mates.Has(unrelated))
	assert.Equal(t, depth+1, w.undo.UndoDepth(), "one undo step for the cascade")

	clock.Advance(time.Second)
	for _, v := range rec.last().Active() {
		assert.NotContains(t, []string{f.p1, direct, chained}, v.ID)
	}

	_, err = w.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{f.p1, f.p2, f.s1, f.c, f.child, direct, chained, unrelated}, w.ActiveIDs())
	assert.True(t, w.mates.Has(direct))
	assert.True(t, w.mates.Has(chained))
}

func TestDissolve(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Dissolve(f.c))
	assert.Equal(t, 4, w.Len())
	assert.False(t, w.components.Has(f.c))
	assert.True(t, w.primitives.Has(f.child), "children are kept")
	for _, v := range w.Features() {
		assert.Empty(t, v.ComponentID)
	}
}

func TestUndoCapacity(t *testing.T) {
	w, _, _ := newTestWorkspace(t, WithUndoCapacity(2))
	for i := 0; i < 4; i++ {
		_, err := w.AddPrimitive("box", "", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"add primitive box 4", "add primitive box 3"}, w.UndoLabels())

	for i := 0; i < 2; i++ {
		_, err := w.Undo()
		require.NoError(t, err)
	}
	assert.Equal(t, 2, w.Len(), "the two oldest adds were evicted")
	assert.False(t, w.CanUndo())
}

func TestLookup(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	tests := []struct {
		ref  string
		want string
	}{
		{"#0", f.p1},
		{"#4", f.child},
		{f.s1, f.s1},
		{"p2", f.p2},
		{"CHILD", f.child},
		{f.c[:12], f.c},
	}
	for _, tt := range tests {
		got, err := w.Lookup(tt.ref)
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}

	_, err := w.Lookup("#9")
	assert.True(t, errors.IsInvalidRange(err))
	_, err = w.Lookup("nothing")
	assert.True(t, errors.IsInvalidReference(err))
	_, err = w.Lookup("")
	assert.True(t, errors.IsInvalidReference(err))
}

func TestFilter(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	require.True(t, w.Suppress(f.p2))

	got, err := w.Filter(`kind == "primitive" && !suppressed`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.p1, f.child}, ids(got))

	_, err = w.Filter("kind ==")
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	depth := w.undo.UndoDepth()

	require.True(t, w.Select(f.p1))
	assert.Equal(t, f.p1, w.Selected())
	require.True(t, w.Select(f.s1))
	assert.Equal(t, f.s1, w.Selected(), "selecting in one store clears the others")
	assert.Empty(t, w.primitives.Selected())
	require.True(t, w.Select(""))
	assert.Empty(t, w.Selected())
	assert.Equal(t, depth, w.undo.UndoDepth(), "selection is not an undoable action")
}

func TestApplyConfig(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)

	w.ApplyConfig(am.RecomputeConfig{StructuralDelayMS: 10, SliderDebounceMS: 50})
	require.True(t, w.Suppress(f.p1))
	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	w.DragRollback(util.Ptr(0))
	clock.Advance(50 * time.Millisecond)
	require.NotNil(t, w.RollbackIndex())
	assert.Equal(t, 0, *w.RollbackIndex())
}

func TestPipelineFailure_IsNotRetried(t *testing.T) {
	w, clock, rec := newTestWorkspace(t)
	f := buildFixture(t, w, clock, rec)
	rec.err = errors.New("kernel unavailable")

	require.True(t, w.Suppress(f.p1))
	clock.Advance(time.Minute)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, recompute.Idle, w.RecomputeState())

	require.True(t, w.Suppress(f.p1), "the workspace keeps working")
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	w, clock, rec := newTestWorkspace(t, WithMetrics(m))
	f := buildFixture(t, w, clock, rec)

	require.True(t, w.Suppress(f.p1))
	require.True(t, w.Suppress(f.p2))
	_, err := w.Undo()
	require.NoError(t, err)
	clock.Advance(time.Second)

	resp := httptest.NewRecorder()
	m.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/metrics", nil))
	body := resp.Body.String()

	assert.Contains(t, body, "lathe_undo_checkpoints_total 7")
	assert.Contains(t, body, `lathe_undo_restores_total{direction="undo"} 1`)
	assert.Contains(t, body, `lathe_history_mutations_total{op="register"} 5`)
	assert.Contains(t, body, `lathe_history_mutations_total{op="suppress"} 2`)
	assert.Contains(t, body, `lathe_recompute_fired_total{scheduler="recompute"} 2`)
	assert.Contains(t, body, "lathe_history_features 5")
	assert.Contains(t, body, "lathe_pipeline_failures_total 0")
}

func TestWithConfig(t *testing.T) {
	cfg := am.Default()
	cfg.History.UndoCapacity = 3
	cfg.Recompute.StructuralDelayMS = 5

	w, clock, rec := newTestWorkspace(t, WithConfig(cfg))
	assert.Equal(t, 3, w.undo.Capacity())

	_, err := w.AddPrimitive("box", "", nil)
	require.NoError(t, err)
	clock.Advance(5 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}
