package workspace

import (
	"strconv"
	"strings"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/recompute"
)

// Features returns the display-ready feature list.
func (w *Workspace) Features() []feature.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Features()
}

// Filter returns the features matching an expr boolean expression, e.g.
// `kind == "primitive" && !suppressed`.
func (w *Workspace) Filter(expression string) ([]feature.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Filter(expression)
}

// Len returns the number of features in the history.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Len()
}

// RollbackIndex returns a copy of the rollback cursor; nil means none.
func (w *Workspace) RollbackIndex() *int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.RollbackIndex()
}

// ActiveIDs returns the ids that the next recompute would include, in order.
func (w *Workspace) ActiveIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	refs := w.history.Active()
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids
}

// CanUndo reports whether Undo would restore something.
func (w *Workspace) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.undo.CanUndo()
}

// CanRedo reports whether Redo would restore something.
func (w *Workspace) CanRedo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.undo.CanRedo()
}

// UndoLabels lists undoable actions, newest first.
func (w *Workspace) UndoLabels() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.undo.Labels()
}

// Selected returns the selected feature id, or "".
func (w *Workspace) Selected() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, kind := range feature.Kinds {
		if id := w.stores[kind].Selected(); id != "" {
			return id
		}
	}
	return ""
}

// RecomputeState reports whether a recompute is pending.
func (w *Workspace) RecomputeState() recompute.State {
	return w.recompute.State()
}

// Verify checks that every store round-trips through a snapshot unchanged.
func (w *Workspace) Verify() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.undo.VerifyRoundTrip()
}

// Lookup resolves a user-typed reference to a feature id. It accepts, in
// order of precedence: "#n" for sequence position n, an exact id, an exact
// name (case-insensitive) and a unique id prefix.
func (w *Workspace) Lookup(ref string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.NewInvalidReferenceError("empty feature reference")
	}
	refs := w.history.Refs()

	if strings.HasPrefix(ref, "#") {
		n, err := strconv.Atoi(ref[1:])
		if err != nil {
			return "", errors.NewInvalidReferenceError("bad position %q", ref)
		}
		if n < 0 || n >= len(refs) {
			return "", errors.NewInvalidRangeError("position %d outside [0, %d)", n, len(refs))
		}
		return refs[n].ID, nil
	}

	if _, ok := w.history.Get(ref); ok {
		return ref, nil
	}

	var byName, byPrefix []string
	for _, r := range refs {
		if strings.EqualFold(w.nameOf(r), ref) {
			byName = append(byName, r.ID)
		}
		if strings.HasPrefix(r.ID, ref) {
			byPrefix = append(byPrefix, r.ID)
		}
	}
	for _, matches := range [][]string{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return "", errors.WithHint(
				errors.NewInvalidReferenceError("%q matches %d features", ref, len(matches)),
				"use '#<index>' or a longer id prefix")
		}
	}
	return "", errors.WithHint(
		errors.NewInvalidReferenceError("no feature matches %q", ref),
		"use 'ls' to list features")
}
