// Package undo coordinates checkpoints across independently-owned stores.
//
// The Coordinator, not the stores, owns transaction boundaries: a caller
// takes exactly one Checkpoint per logical user action, before mutating,
// however many stores the action touches. Each Composite is a plain data
// aggregate of every participant's snapshot; nothing in it points into
// live state.
package undo

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/logger"
)

// DefaultCapacity bounds each stack when no capacity is configured.
const DefaultCapacity = 100

// Snapshotter is implemented by every participant of a composite snapshot.
// Snapshot must return a detached copy; Restore must copy in.
type Snapshotter interface {
	Snapshot() any
	Restore(state any) error
}

// Composite is one atomic checkpoint of every registered participant.
type Composite struct {
	Label   string
	TakenAt time.Time
	Slices  map[string]any
}

// Observer receives stack activity, e.g. for metrics.
type Observer interface {
	Checkpointed(undoDepth, redoDepth int)
	Evicted(n int)
	Restored(direction string, undoDepth, redoDepth int)
}

type participant struct {
	name string
	s    Snapshotter
}

// Coordinator owns the bounded undo and redo stacks.
// It is not safe for concurrent use; callers serialise access.
type Coordinator struct {
	participants []participant
	undo         []Composite
	redo         []Composite
	capacity     int
	now          func() time.Time
	observer     Observer
	log          *zap.SugaredLogger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// WithClock overrides the time source used to stamp composites.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator whose stacks hold at most capacity entries each.
// A capacity below 1 falls back to DefaultCapacity.
func New(capacity int, log *zap.SugaredLogger, opts ...Option) *Coordinator {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	c := &Coordinator{
		capacity: capacity,
		now:      time.Now,
		log:      logger.AddUndoSymbol(log),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register adds a participant. Names must be unique; they key the slices of
// every Composite, so registration order is also restore order.
func (c *Coordinator) Register(name string, s Snapshotter) error {
	if name == "" || s == nil {
		return errors.NewInvalidReferenceError("participant needs a name and a snapshotter")
	}
	for _, p := range c.participants {
		if p.name == name {
			return errors.NewInvalidReferenceError("participant %q already registered", name)
		}
	}
	c.participants = append(c.participants, participant{name: name, s: s})
	return nil
}

// Participants returns the registered participant names in restore order.
func (c *Coordinator) Participants() []string {
	names := make([]string, len(c.participants))
	for i, p := range c.participants {
		names[i] = p.name
	}
	return names
}

// Capture synchronously snapshots every participant into one Composite
// without touching the stacks.
func (c *Coordinator) Capture(label string) Composite {
	slices := make(map[string]any, len(c.participants))
	for _, p := range c.participants {
		slices[p.name] = p.s.Snapshot()
	}
	return Composite{Label: label, TakenAt: c.now(), Slices: slices}
}

// Push stores a captured Composite on the undo stack and discards redo
// history: a new action after an undo starts a new linear future.
func (c *Coordinator) Push(comp Composite) {
	c.undo = c.pushBounded(c.undo, comp)
	c.redo = nil
	c.log.Debugw("Checkpoint pushed",
		logger.FieldLabel, comp.Label,
		logger.FieldUndoDepth, len(c.undo))
	if c.observer != nil {
		c.observer.Checkpointed(len(c.undo), len(c.redo))
	}
}

// Checkpoint captures the current state and pushes it. Call it once per
// logical user action, immediately before mutating.
func (c *Coordinator) Checkpoint(label string) {
	c.Push(c.Capture(label))
}

// Undo restores the most recent checkpoint and moves the current state onto
// the redo stack. It returns the label of the undone action, or
// ErrEmptyStack when there is nothing to undo.
func (c *Coordinator) Undo() (string, error) {
	if len(c.undo) == 0 {
		return "", errors.Wrap(errors.ErrEmptyStack, "nothing to undo")
	}
	target := c.undo[len(c.undo)-1]
	current := c.Capture(target.Label)

	if err := c.apply(target, current); err != nil {
		return "", errors.Wrapf(err, "undo %q", target.Label)
	}

	c.undo = c.undo[:len(c.undo)-1]
	c.redo = c.pushBounded(c.redo, current)

	c.log.Infow("Undo",
		logger.FieldLabel, target.Label,
		logger.FieldUndoDepth, len(c.undo),
		logger.FieldRedoDepth, len(c.redo))
	if c.observer != nil {
		c.observer.Restored("undo", len(c.undo), len(c.redo))
	}
	return target.Label, nil
}

// Redo is the mirror of Undo.
func (c *Coordinator) Redo() (string, error) {
	if len(c.redo) == 0 {
		return "", errors.Wrap(errors.ErrEmptyStack, "nothing to redo")
	}
	target := c.redo[len(c.redo)-1]
	current := c.Capture(target.Label)

	if err := c.apply(target, current); err != nil {
		return "", errors.Wrapf(err, "redo %q", target.Label)
	}

	c.redo = c.redo[:len(c.redo)-1]
	c.undo = c.pushBounded(c.undo, current)

	c.log.Infow("Redo",
		logger.FieldLabel, target.Label,
		logger.FieldUndoDepth, len(c.undo),
		logger.FieldRedoDepth, len(c.redo))
	if c.observer != nil {
		c.observer.Restored("redo", len(c.undo), len(c.redo))
	}
	return target.Label, nil
}

// CanUndo reports whether Undo would restore something.
func (c *Coordinator) CanUndo() bool { return len(c.undo) > 0 }

// CanRedo reports whether Redo would restore something.
func (c *Coordinator) CanRedo() bool { return len(c.redo) > 0 }

// UndoDepth returns the number of undo entries.
func (c *Coordinator) UndoDepth() int { return len(c.undo) }

// RedoDepth returns the number of redo entries.
func (c *Coordinator) RedoDepth() int { return len(c.redo) }

// Capacity returns the per-stack bound.
func (c *Coordinator) Capacity() int { return c.capacity }

// Labels returns undo labels, newest first.
func (c *Coordinator) Labels() []string {
	labels := make([]string, 0, len(c.undo))
	for i := len(c.undo) - 1; i >= 0; i-- {
		labels = append(labels, c.undo[i].Label)
	}
	return labels
}

// Clear drops both stacks.
func (c *Coordinator) Clear() {
	c.undo = nil
	c.redo = nil
	c.log.Debugw("Undo history cleared")
}

// apply restores target into every participant. If any participant rejects
// its slice, every participant is put back to fallback so no store is left
// half-restored.
func (c *Coordinator) apply(target, fallback Composite) error {
	for i, p := range c.participants {
		state, ok := target.Slices[p.name]
		if !ok {
			err := errors.Wrapf(errors.ErrInvalidSnapshot, "checkpoint has no slice for %q", p.name)
			return c.rollback(i, fallback, err)
		}
		if err := p.s.Restore(state); err != nil {
			return c.rollback(i+1, fallback, errors.Wrapf(err, "restore %q", p.name))
		}
	}
	return nil
}

// rollback re-applies fallback to the first n participants.
func (c *Coordinator) rollback(n int, fallback Composite, cause error) error {
	for _, p := range c.participants[:n] {
		if err := p.s.Restore(fallback.Slices[p.name]); err != nil {
			c.log.Errorw("Failed to roll back participant after aborted restore",
				logger.FieldComponent, p.name,
				logger.FieldError, err)
			cause = errors.WithSecondaryError(cause, err)
		}
	}
	return cause
}

// pushBounded appends comp and evicts the oldest entries beyond capacity.
func (c *Coordinator) pushBounded(stack []Composite, comp Composite) []Composite {
	stack = append(stack, comp)
	if over := len(stack) - c.capacity; over > 0 {
		kept := make([]Composite, c.capacity)
		copy(kept, stack[over:])
		stack = kept
		c.log.Debugw("Evicted oldest checkpoints", logger.FieldCount, over, logger.FieldCapacity, c.capacity)
		if c.observer != nil {
			c.observer.Evicted(over)
		}
	}
	return stack
}
