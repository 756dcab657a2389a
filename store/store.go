// Package store holds the entity stores of a modeling session.
//
// Each Store owns exactly one category of entity together with its
// selection cursor, and can hand out a detached snapshot of that slice of
// state for the undo coordinator.
package store

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/logger"
)

// Entity is the contract every stored entity satisfies.
// Clone must return a copy that shares no mutable memory with the receiver.
type Entity[T any] interface {
	EntityID() string
	WithID(id string) T
	Clone() T
	Describe() feature.Descriptor
}

// Snapshot is a detached copy of one store's state.
type Snapshot[T any] struct {
	Items    []T
	Selected string
}

// Store is an ordered, id-indexed collection of one entity kind.
// It is not safe for concurrent use; callers serialise access.
type Store[T Entity[T]] struct {
	name     string
	kind     feature.Kind
	items    map[string]T
	order    []string
	selected string
	newID    func() string
	log      *zap.SugaredLogger
}

// New creates an empty store for entities of the given feature kind.
func New[T Entity[T]](name string, kind feature.Kind, log *zap.SugaredLogger) *Store[T] {
	return &Store[T]{
		name:  name,
		kind:  kind,
		items: make(map[string]T),
		newID: uuid.NewString,
		log:   logger.OrNop(log).With(logger.FieldStore, name),
	}
}

// Name returns the store's participant name.
func (s *Store[T]) Name() string { return s.name }

// Kind returns the feature kind of entities in this store.
func (s *Store[T]) Kind() feature.Kind { return s.kind }

// Len returns the number of stored entities.
func (s *Store[T]) Len() int { return len(s.order) }

// Create stores e, assigning a fresh id when e has none, and returns the
// stored copy. A duplicate id fails with ErrInvalidReference.
func (s *Store[T]) Create(e T) (T, error) {
	id := e.EntityID()
	if id == "" {
		id = s.newID()
		e = e.WithID(id)
	}
	if _, exists := s.items[id]; exists {
		var zero T
		return zero, errors.NewInvalidReferenceError("%s %q already exists", s.name, id)
	}
	s.items[id] = e.Clone()
	s.order = append(s.order, id)
	s.log.Debugw("Entity created", logger.FieldFeatureID, id)
	return e.Clone(), nil
}

// Get returns a copy of the entity with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.Clone(), true
}

// Has reports whether id is stored.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Update applies fn to the stored entity. The id cannot be changed.
func (s *Store[T]) Update(id string, fn func(*T)) error {
	e, ok := s.items[id]
	if !ok {
		return errors.NewInvalidReferenceError("%s %q not found", s.name, id)
	}
	e = e.Clone()
	fn(&e)
	if e.EntityID() != id {
		e = e.WithID(id)
	}
	s.items[id] = e
	return nil
}

// Remove deletes id and clears the selection if it pointed there.
// Unknown ids are a no-op.
func (s *Store[T]) Remove(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
	s.log.Debugw("Entity removed", logger.FieldFeatureID, id)
	return true
}

// List returns copies of all entities in creation order.
func (s *Store[T]) List() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Select moves the selection cursor. An empty id clears the selection.
func (s *Store[T]) Select(id string) error {
	if id != "" && !s.Has(id) {
		return errors.NewInvalidReferenceError("%s %q not found", s.name, id)
	}
	s.selected = id
	return nil
}

// Selected returns the selected id, or "".
func (s *Store[T]) Selected() string { return s.selected }

// Describe returns display metadata for id.
func (s *Store[T]) Describe(id string) (feature.Descriptor, bool) {
	e, ok := s.items[id]
	if !ok {
		return feature.Descriptor{}, false
	}
	return e.Describe(), true
}

// Snapshot returns a detached Snapshot[T] as an opaque value.
func (s *Store[T]) Snapshot() any {
	return Snapshot[T]{
		Items:    s.List(),
		Selected: s.selected,
	}
}

// Restore replaces the store contents with a copy of state, which must be a
// Snapshot[T] produced by a store of the same entity type.
func (s *Store[T]) Restore(state any) error {
	snap, ok := state.(Snapshot[T])
	if !ok {
		return errors.Wrapf(errors.ErrInvalidSnapshot, "%s store cannot restore %T", s.name, state)
	}
	items := make(map[string]T, len(snap.Items))
	order := make([]string, 0, len(snap.Items))
	for _, e := range snap.Items {
		items[e.EntityID()] = e.Clone()
		order = append(order, e.EntityID())
	}
	s.items = items
	s.order = order
	s.selected = snap.Selected
	return nil
}
