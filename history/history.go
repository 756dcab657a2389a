// Package history owns the ordered feature sequence of a modeling session.
//
// The History is the single source of truth for recompute order, per-feature
// suppression and the rollback cursor. Component grouping is stored as tags
// on a flat sequence; Features derives the nested, display-ready order.
//
// A feature is excluded from recompute when it is suppressed OR its position
// lies beyond the rollback cursor. The two never influence each other.
package history

import (
	"go.uber.org/zap"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/internal/util"
	"github.com/teranos/lathe/logger"
)

// Resolver supplies display metadata for a feature.
// Entity stores implement it; the history only needs identity and metadata.
type Resolver interface {
	Describe(ref feature.Ref) (feature.Descriptor, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ref feature.Ref) (feature.Descriptor, bool)

// Describe calls f(ref).
func (f ResolverFunc) Describe(ref feature.Ref) (feature.Descriptor, bool) {
	return f(ref)
}

// Snapshot is a fully-owned copy of the history state.
type Snapshot struct {
	Sequence      []feature.Ref
	RollbackIndex *int
}

// History is the ordered feature sequence plus the rollback cursor.
// It is not safe for concurrent use; callers serialise access.
type History struct {
	seq      []feature.Ref
	rollback *int
	resolver Resolver
	log      *zap.SugaredLogger
}

// New creates an empty history. resolver may be nil, in which case
// features render with their id as name.
func New(resolver Resolver, log *zap.SugaredLogger) *History {
	return &History{
		resolver: resolver,
		log:      logger.AddHistorySymbol(log),
	}
}

// Len returns the number of features in the sequence.
func (h *History) Len() int {
	return len(h.seq)
}

// RollbackIndex returns the rollback cursor, or nil when the full history is active.
func (h *History) RollbackIndex() *int {
	return util.Clone(h.rollback)
}

// Refs returns a copy of the linear sequence.
func (h *History) Refs() []feature.Ref {
	return copyRefs(h.seq)
}

// Get returns the feature with the given id.
func (h *History) Get(id string) (feature.Ref, bool) {
	if i := h.IndexOf(id); i >= 0 {
		return h.seq[i], true
	}
	return feature.Ref{}, false
}

// IndexOf returns the sequence position of id, or -1.
func (h *History) IndexOf(id string) int {
	for i := range h.seq {
		if h.seq[i].ID == id {
			return i
		}
	}
	return -1
}

// Register appends ref to the end of the history.
func (h *History) Register(ref feature.Ref) error {
	return h.RegisterAt(ref, len(h.seq))
}

// RegisterAt inserts ref at position index (0..Len).
//
// Fails with ErrInvalidReference when the id is empty or already present, or
// when ref names a component that does not exist; with ErrInvalidRange when
// index is out of bounds. Inserting at or before the rollback cursor moves
// the cursor along so the previously active features stay active.
func (h *History) RegisterAt(ref feature.Ref, index int) error {
	if ref.ID == "" {
		return errors.NewInvalidReferenceError("feature id is empty")
	}
	if !ref.Kind.Valid() {
		return errors.Wrapf(errors.ErrInvalidKind, "feature %q has kind %q", ref.ID, ref.Kind)
	}
	if h.IndexOf(ref.ID) >= 0 {
		return errors.NewInvalidReferenceError("feature %q already registered", ref.ID)
	}
	if index < 0 || index > len(h.seq) {
		return errors.NewInvalidRangeError("insert index %d outside [0, %d]", index, len(h.seq))
	}

	if ref.ComponentID == "" {
		ref.Depth = 0
	} else {
		if ref.Kind == feature.KindComponent {
			return errors.WithHint(
				errors.NewInvalidReferenceError("component %q cannot belong to component %q", ref.ID, ref.ComponentID),
				"components are always root-level entries")
		}
		owner, ok := h.Get(ref.ComponentID)
		if !ok || owner.Kind != feature.KindComponent {
			return errors.NewInvalidReferenceError("feature %q names unknown component %q", ref.ID, ref.ComponentID)
		}
		if ref.Depth <= 0 {
			ref.Depth = 1
		}
	}

	h.seq = append(h.seq, feature.Ref{})
	copy(h.seq[index+1:], h.seq[index:])
	h.seq[index] = ref

	if h.rollback != nil && index <= *h.rollback {
		next := *h.rollback + 1
		h.rollback = &next
	}

	h.log.Debugw("Feature registered",
		logger.FieldFeatureID, ref.ID,
		logger.FieldKind, ref.Kind,
		logger.FieldIndex, index,
		logger.FieldDepth, ref.Depth)
	return nil
}

// ToggleSuppressed flips the suppression flag of id.
// Unknown ids and kinds that cannot be suppressed are a silent no-op;
// the return value reports whether anything changed.
func (h *History) ToggleSuppressed(id string) bool {
	i := h.IndexOf(id)
	if i < 0 {
		h.log.Debugw("Toggle suppression ignored: unknown feature", logger.FieldFeatureID, id)
		return false
	}
	if !h.seq[i].Kind.Suppressible() {
		h.log.Debugw("Toggle suppression ignored: kind not suppressible",
			logger.FieldFeatureID, id,
			logger.FieldKind, h.seq[i].Kind)
		return false
	}
	h.seq[i].Suppressed = !h.seq[i].Suppressed
	h.log.Debugw("Feature suppression toggled",
		logger.FieldFeatureID, id,
		"suppressed", h.seq[i].Suppressed)
	return true
}

// Reorder moves the root-level entry at from to position to using a
// remove-then-insert splice. Component children cannot be moved on their
// own; moving a component moves only its anchor, children keep their
// positions and component tags.
func (h *History) Reorder(from, to int) error {
	n := len(h.seq)
	if from < 0 || from >= n {
		return errors.WithHint(
			errors.NewInvalidRangeError("reorder source %d outside [0, %d)", from, n),
			"use 'ls' to list valid indices")
	}
	if to < 0 || to >= n {
		return errors.WithHint(
			errors.NewInvalidRangeError("reorder target %d outside [0, %d)", to, n),
			"use 'ls' to list valid indices")
	}
	moved := h.seq[from]
	if !moved.Root() {
		return errors.WithHint(
			errors.NewInvalidRangeError("feature %q at %d belongs to component %q", moved.ID, from, moved.ComponentID),
			"dissolve the component first to reorder its children")
	}
	if from == to {
		return nil
	}

	h.seq = append(h.seq[:from], h.seq[from+1:]...)
	h.seq = append(h.seq, feature.Ref{})
	copy(h.seq[to+1:], h.seq[to:])
	h.seq[to] = moved

	h.log.Debugw("Feature reordered",
		logger.FieldFeatureID, moved.ID,
		logger.FieldFrom, from,
		logger.FieldTo, to)
	return nil
}

// SetRollbackIndex moves the rollback cursor. nil clears rollback.
// Negative values clamp to 0; values at or past the end mean "no rollback".
// It never schedules a recompute; callers do.
func (h *History) SetRollbackIndex(index *int) {
	switch {
	case index == nil || len(h.seq) == 0 || *index >= len(h.seq):
		h.rollback = nil
	case *index < 0:
		zero := 0
		h.rollback = &zero
	default:
		v := *index
		h.rollback = &v
	}
	h.log.Debugw("Rollback cursor set", logger.FieldRollbackIndex, indexField(h.rollback))
}

// UnregisterComponent dissolves a component: its entry is removed and every
// former child is promoted to the root level in place, preserving order.
// Unknown ids are a silent no-op.
func (h *History) UnregisterComponent(componentID string) bool {
	i := h.IndexOf(componentID)
	if i < 0 || h.seq[i].Kind != feature.KindComponent {
		h.log.Debugw("Dissolve ignored: unknown component", logger.FieldComponentID, componentID)
		return false
	}
	promoted := h.promoteChildren(componentID)
	h.removeAt(i)
	h.log.Debugw("Component dissolved",
		logger.FieldComponentID, componentID,
		logger.FieldCount, promoted)
	return true
}

// RemoveFeature splices id out of the sequence. Removing a component entry
// promotes its children first. The rollback cursor is pulled down so it keeps
// pointing at a valid position. Unknown ids are a silent no-op.
func (h *History) RemoveFeature(id string) bool {
	i := h.IndexOf(id)
	if i < 0 {
		h.log.Debugw("Remove ignored: unknown feature", logger.FieldFeatureID, id)
		return false
	}
	if h.seq[i].Kind == feature.KindComponent {
		h.promoteChildren(id)
	}
	h.removeAt(i)
	h.log.Debugw("Feature removed", logger.FieldFeatureID, id, logger.FieldIndex, i)
	return true
}

// Children returns the ids of features owned by componentID, in sequence order.
func (h *History) Children(componentID string) []string {
	var ids []string
	for _, ref := range h.seq {
		if ref.ComponentID == componentID && componentID != "" {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// Snapshot returns a deep copy of the sequence and rollback cursor.
func (h *History) Snapshot() Snapshot {
	return Snapshot{
		Sequence:      copyRefs(h.seq),
		RollbackIndex: util.Clone(h.rollback),
	}
}

// Restore replaces the sequence, suppression flags and rollback cursor with a
// copy of s.
func (h *History) Restore(s Snapshot) {
	h.seq = copyRefs(s.Sequence)
	h.rollback = util.Clone(s.RollbackIndex)
	h.log.Debugw("History restored",
		logger.FieldCount, len(h.seq),
		logger.FieldRollbackIndex, indexField(h.rollback))
}

// IsActive reports whether the feature at position i participates in recompute.
func (h *History) IsActive(i int) bool {
	if i < 0 || i >= len(h.seq) {
		return false
	}
	return !h.seq[i].Suppressed && !h.rolledBack(i)
}

// Active returns the features that participate in recompute, in sequence order.
func (h *History) Active() []feature.Ref {
	active := make([]feature.Ref, 0, len(h.seq))
	for i, ref := range h.seq {
		if h.IsActive(i) {
			active = append(active, ref)
		}
	}
	return active
}

func (h *History) rolledBack(i int) bool {
	return h.rollback != nil && i > *h.rollback
}

func (h *History) promoteChildren(componentID string) int {
	promoted := 0
	for i := range h.seq {
		if h.seq[i].ComponentID == componentID {
			h.seq[i].ComponentID = ""
			h.seq[i].Depth = 0
			promoted++
		}
	}
	return promoted
}

func (h *History) removeAt(i int) {
	h.seq = append(h.seq[:i], h.seq[i+1:]...)
	if h.rollback == nil {
		return
	}
	if len(h.seq) == 0 {
		h.rollback = nil
		return
	}
	if i <= *h.rollback {
		next := *h.rollback - 1
		if next < 0 {
			next = 0
		}
		h.rollback = &next
	}
}

func copyRefs(refs []feature.Ref) []feature.Ref {
	if refs == nil {
		return nil
	}
	out := make([]feature.Ref, len(refs))
	copy(out, refs)
	return out
}

// indexField renders an optional index for log output.
func indexField(p *int) interface{} {
	if p == nil {
		return "none"
	}
	return *p
}
