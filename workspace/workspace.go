// Package workspace wires the entity stores, the feature history, the undo
// coordinator and the recompute schedulers into one editing session.
//
// Every mutating operation follows the same control flow:
//
//	capture composite snapshot -> mutate stores -> push snapshot -> schedule recompute
//
// The snapshot is captured before mutating but only pushed once the
// mutation succeeded, so a rejected operation leaves no undo entry.
// A single mutex serialises public operations with the fire-time state read.
package workspace

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lathe/am"
	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/history"
	"github.com/teranos/lathe/logger"
	"github.com/teranos/lathe/metrics"
	"github.com/teranos/lathe/pipeline"
	"github.com/teranos/lathe/recompute"
	"github.com/teranos/lathe/store"
	"github.com/teranos/lathe/undo"
)

// entityStore is the part of store.Store[T] the workspace uses without
// knowing T.
type entityStore interface {
	Name() string
	Kind() feature.Kind
	Has(id string) bool
	Remove(id string) bool
	Select(id string) error
	Selected() string
	Describe(id string) (feature.Descriptor, bool)
	Snapshot() any
	Restore(state any) error
}

// Workspace is one editing session.
type Workspace struct {
	mu sync.Mutex

	primitives *store.Store[store.Primitive]
	sketches   *store.Store[store.Sketch]
	planes     *store.Store[store.DatumPlane]
	axes       *store.Store[store.DatumAxis]
	components *store.Store[store.Component]
	mates      *store.Store[store.Mate]
	stores     map[feature.Kind]entityStore

	history *history.History
	undo    *undo.Coordinator

	recompute *recompute.Scheduler
	slider    *recompute.Scheduler
	delays    am.RecomputeConfig
	dragTo    *int

	pipeline pipeline.Pipeline
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.SugaredLogger
}

type options struct {
	clock        recompute.Clock
	pipeline     pipeline.Pipeline
	metrics      *metrics.Metrics
	delays       am.RecomputeConfig
	undoCapacity int
}

// Option configures a Workspace.
type Option func(*options)

// WithClock drives both schedulers from clock.
func WithClock(clock recompute.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithPipeline sets the recompute pipeline. The default logs each run.
func WithPipeline(p pipeline.Pipeline) Option {
	return func(o *options) { o.pipeline = p }
}

// WithMetrics reports to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRecomputeConfig sets the recompute delays.
func WithRecomputeConfig(cfg am.RecomputeConfig) Option {
	return func(o *options) { o.delays = cfg }
}

// WithUndoCapacity bounds each undo/redo stack.
func WithUndoCapacity(n int) Option {
	return func(o *options) { o.undoCapacity = n }
}

// WithConfig applies the history and recompute sections of cfg.
func WithConfig(cfg *am.Config) Option {
	return func(o *options) {
		o.delays = cfg.Recompute
		o.undoCapacity = cfg.GetUndoCapacity()
	}
}

// New creates an empty workspace.
func New(log *zap.SugaredLogger, opts ...Option) *Workspace {
	o := options{
		clock:        recompute.SystemClock,
		delays:       am.Default().Recompute,
		undoCapacity: am.DefaultUndoCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	log = logger.OrNop(log)
	if o.pipeline == nil {
		o.pipeline = pipeline.NewLogPipeline(log.Named("pipeline"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		primitives: store.New[store.Primitive]("primitives", feature.KindPrimitive, log.Named("store")),
		sketches:   store.New[store.Sketch]("sketches", feature.KindSketch, log.Named("store")),
		planes:     store.New[store.DatumPlane]("datum planes", feature.KindDatumPlane, log.Named("store")),
		axes:       store.New[store.DatumAxis]("datum axes", feature.KindDatumAxis, log.Named("store")),
		components: store.New[store.Component]("components", feature.KindComponent, log.Named("store")),
		mates:      store.New[store.Mate]("mates", feature.KindMate, log.Named("store")),
		delays:     o.delays,
		pipeline:   o.pipeline,
		metrics:    o.metrics,
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}
	w.stores = map[feature.Kind]entityStore{
		feature.KindPrimitive:  w.primitives,
		feature.KindSketch:     w.sketches,
		feature.KindDatumPlane: w.planes,
		feature.KindDatumAxis:  w.axes,
		feature.KindComponent:  w.components,
		feature.KindMate:       w.mates,
	}

	w.history = history.New(history.ResolverFunc(w.describe), log.Named("history"))

	var undoOpts []undo.Option
	var structuralOpts, sliderOpts []recompute.SchedulerOption
	if o.metrics != nil {
		undoOpts = append(undoOpts, undo.WithObserver(o.metrics))
		structuralOpts = append(structuralOpts, recompute.WithObserver(o.metrics.Scheduler("recompute")))
		sliderOpts = append(sliderOpts, recompute.WithObserver(o.metrics.Scheduler("slider")))
	}
	undoOpts = append(undoOpts, undo.WithClock(o.clock.Now))
	w.undo = undo.New(o.undoCapacity, log.Named("undo"), undoOpts...)

	// Restore order: history first, then stores in display order.
	mustRegister(w.undo, "history", w.history.Participant())
	for _, kind := range feature.Kinds {
		s := w.stores[kind]
		mustRegister(w.undo, string(kind), s)
	}

	w.recompute = recompute.NewScheduler(o.clock, w.fire, log.Named("recompute"), structuralOpts...)
	w.slider = recompute.NewScheduler(o.clock, w.fireDrag, log.Named("slider"), sliderOpts...)
	return w
}

func mustRegister(c *undo.Coordinator, name string, s undo.Snapshotter) {
	if err := c.Register(name, s); err != nil {
		panic(errors.Wrapf(err, "register undo participant %s", name))
	}
}

// Close cancels any in-flight pipeline run. Pending timers still fire but
// their pipeline context is already done.
func (w *Workspace) Close() {
	w.cancel()
}

// ApplyConfig updates recompute delays for subsequent schedules.
func (w *Workspace) ApplyConfig(cfg am.RecomputeConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = cfg
	w.log.Infow("Recompute delays updated",
		"structural_ms", cfg.StructuralDelayMS,
		"rollback_ms", cfg.RollbackDelayMS,
		"slider_ms", cfg.SliderDebounceMS)
}

// describe resolves display metadata from the owning store.
func (w *Workspace) describe(ref feature.Ref) (feature.Descriptor, bool) {
	s, ok := w.stores[ref.Kind]
	if !ok {
		return feature.Descriptor{}, false
	}
	return s.Describe(ref.ID)
}

// transact runs one logical user action. mutate reports whether anything
// changed; unchanged or failed actions leave no undo entry and schedule
// nothing. Callers hold w.mu.
func (w *Workspace) transact(op, label string, delay time.Duration, mutate func() (bool, error)) (bool, error) {
	checkpoint := w.undo.Capture(label)
	changed, err := mutate()
	if err != nil || !changed {
		return false, err
	}
	w.undo.Push(checkpoint)
	if w.metrics != nil {
		w.metrics.Mutation(op, w.history.Len())
	}
	w.recompute.Schedule(delay)
	w.log.Debugw("Action applied",
		logger.FieldOperation, op,
		logger.FieldLabel, label,
		logger.FieldUndoDepth, w.undo.UndoDepth())
	return true, nil
}

// fire reads the live state in sequence order and hands it to the
// pipeline. It runs on the clock's goroutine; the pipeline call itself
// happens outside the lock.
func (w *Workspace) fire(generation uint64) {
	w.mu.Lock()
	req := pipeline.Request{
		Generation:    generation,
		RollbackIndex: w.history.RollbackIndex(),
		Features:      w.history.Views(),
	}
	p := w.pipeline
	w.mu.Unlock()

	start := time.Now()
	err := p.Recompute(w.ctx, req)
	if w.metrics != nil {
		w.metrics.PipelineRun(time.Since(start), err)
	}
	if err != nil {
		w.log.Warnw("Recompute pipeline failed",
			logger.FieldGeneration, generation,
			logger.FieldError, err)
	}
}

func (w *Workspace) structuralDelay() time.Duration { return w.delays.StructuralDelay() }
