package history

import (
	"github.com/teranos/lathe/errors"
)

// Participant adapts h to the untyped snapshot contract used by the undo
// coordinator.
func (h *History) Participant() *Participant {
	return &Participant{h: h}
}

// Participant exposes a History as an undo participant.
type Participant struct {
	h *History
}

// Snapshot returns a history Snapshot as an opaque value.
func (p *Participant) Snapshot() any {
	return p.h.Snapshot()
}

// Restore applies a value previously returned by Snapshot.
func (p *Participant) Restore(state any) error {
	s, ok := state.(Snapshot)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidSnapshot, "history cannot restore %T", state)
	}
	p.h.Restore(s)
	return nil
}
