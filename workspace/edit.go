package workspace

import (
	"fmt"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/internal/util"
	"github.com/teranos/lathe/logger"
)

// Suppress toggles suppression of id. Unknown ids and component entries are
// ignored; the result reports whether anything changed.
func (w *Workspace) Suppress(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ref, ok := w.history.Get(id)
	if !ok || !ref.Kind.Suppressible() {
		w.log.Debugw("Suppress ignored", logger.FieldFeatureID, id)
		return false
	}
	verb := "suppress"
	if ref.Suppressed {
		verb = "unsuppress"
	}
	changed, _ := w.transact("suppress", verb+" "+w.nameOf(ref), w.structuralDelay(), func() (bool, error) {
		return w.history.ToggleSuppressed(id), nil
	})
	return changed
}

// Delete removes the feature and its entity. Deleting a component promotes
// its children to the root level. Mates that reference the feature, directly
// or through another deleted mate, are deleted with it in the same undo
// step. Unknown ids are ignored.
func (w *Workspace) Delete(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ref, ok := w.history.Get(id)
	if !ok {
		w.log.Debugw("Delete ignored: unknown feature", logger.FieldFeatureID, id)
		return false
	}
	changed, _ := w.transact("remove", "delete "+w.nameOf(ref), w.structuralDelay(), func() (bool, error) {
		dependents := w.dependentMates(id)
		if !w.history.RemoveFeature(id) {
			return false, nil
		}
		w.stores[ref.Kind].Remove(id)
		for _, mateID := range dependents {
			w.history.RemoveFeature(mateID)
			w.mates.Remove(mateID)
		}
		if len(dependents) > 0 {
			w.log.Infow("Dependent mates deleted",
				logger.FieldFeatureID, id,
				logger.FieldCount, len(dependents))
		}
		return true, nil
	})
	return changed
}

// dependentMates returns the mates that would dangle once id is gone,
// including mates constrained to those mates. Callers hold w.mu.
func (w *Workspace) dependentMates(id string) []string {
	gone := map[string]bool{id: true}
	var out []string
	for grew := true; grew; {
		grew = false
		for _, m := range w.mates.List() {
			if gone[m.ID] || !(gone[m.A] || gone[m.B]) {
				continue
			}
			gone[m.ID] = true
			out = append(out, m.ID)
			grew = true
		}
	}
	return out
}

// Reorder moves the root-level entry at from to position to. Out-of-range
// indices and component children fail with ErrInvalidRange.
func (w *Workspace) Reorder(from, to int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	label := fmt.Sprintf("move #%d to #%d", from, to)
	if refs := w.history.Refs(); from >= 0 && from < len(refs) {
		label = fmt.Sprintf("move %s to #%d", w.nameOf(refs[from]), to)
	}
	_, err := w.transact("reorder", label, w.structuralDelay(), func() (bool, error) {
		if err := w.history.Reorder(from, to); err != nil {
			return false, err
		}
		return from != to, nil
	})
	return err
}

// Rollback moves the rollback cursor; nil rolls forward to the end.
// Out-of-range values clamp. It reports whether the cursor moved.
func (w *Workspace) Rollback(index *int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollbackLocked(index)
}

func (w *Workspace) rollbackLocked(index *int) bool {
	label := "roll forward"
	if index != nil {
		label = fmt.Sprintf("roll back to #%d", *index)
	}
	changed, _ := w.transact("rollback", label, w.delays.RollbackDelay(), func() (bool, error) {
		before := w.history.RollbackIndex()
		w.history.SetRollbackIndex(index)
		return !util.Equal(before, w.history.RollbackIndex()), nil
	})
	return changed
}

// DragRollback records a slider position. Positions arriving faster than
// the slider debounce collapse into one Rollback with the last value.
func (w *Workspace) DragRollback(index *int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dragTo = util.Clone(index)
	w.slider.Schedule(w.delays.SliderDebounce())
}

// fireDrag applies the last slider position.
func (w *Workspace) fireDrag(uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := w.dragTo
	w.dragTo = nil
	w.rollbackLocked(target)
}

// Dissolve removes a component, promoting its children in place.
// Ids that are not components are ignored.
func (w *Workspace) Dissolve(componentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ref, ok := w.history.Get(componentID)
	if !ok || ref.Kind != feature.KindComponent {
		w.log.Debugw("Dissolve ignored", logger.FieldComponentID, componentID)
		return false
	}
	changed, _ := w.transact("dissolve", "dissolve "+w.nameOf(ref), w.structuralDelay(), func() (bool, error) {
		if !w.history.UnregisterComponent(componentID) {
			return false, nil
		}
		w.components.Remove(componentID)
		return true, nil
	})
	return changed
}

// Undo restores the previous checkpoint and returns its label. An empty
// stack is not an error: the label is empty and nothing happens.
func (w *Workspace) Undo() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step("undo", w.undo.Undo)
}

// Redo re-applies the most recently undone action.
func (w *Workspace) Redo() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step("redo", w.undo.Redo)
}

func (w *Workspace) step(op string, restore func() (string, error)) (string, error) {
	label, err := restore()
	if errors.IsEmptyStack(err) {
		w.log.Debugw("Nothing to "+op, logger.FieldOperation, op)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if w.metrics != nil {
		w.metrics.Mutation(op, w.history.Len())
	}
	w.recompute.Schedule(w.structuralDelay())
	return label, nil
}

// Select moves the selection to id, clearing every other store's selection.
// An empty id clears all selections. Unknown ids are ignored.
func (w *Workspace) Select(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	var owner entityStore
	if id != "" {
		ref, ok := w.history.Get(id)
		if !ok {
			w.log.Debugw("Select ignored: unknown feature", logger.FieldFeatureID, id)
			return false
		}
		owner = w.stores[ref.Kind]
	}
	for _, s := range w.stores {
		if s != owner {
			_ = s.Select("")
		}
	}
	if owner != nil {
		if err := owner.Select(id); err != nil {
			w.log.Warnw("Select failed", logger.FieldFeatureID, id, logger.FieldError, err)
			return false
		}
	}
	return true
}

// nameOf returns the display name of ref, or its id.
func (w *Workspace) nameOf(ref feature.Ref) string {
	if d, ok := w.describe(ref); ok && d.Name != "" {
		return d.Name
	}
	return ref.ID
}
