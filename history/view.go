package history

import (
	"github.com/teranos/lathe/feature"
)

// Features derives the flattened, display-ready list.
//
// Root entries appear in sequence order; each component entry is followed
// immediately by its children in their own sequence order, wherever those
// children sit in the linear sequence. Index always reports the sequence
// position, which is what recompute order follows.
func (h *History) Features() []feature.View {
	components := make(map[string]bool)
	children := make(map[string][]int)
	for _, ref := range h.seq {
		if ref.Kind == feature.KindComponent {
			components[ref.ID] = true
		}
	}
	for i, ref := range h.seq {
		if ref.ComponentID != "" && components[ref.ComponentID] {
			children[ref.ComponentID] = append(children[ref.ComponentID], i)
		}
	}

	rows := make([]feature.View, 0, len(h.seq))
	for i, ref := range h.seq {
		if ref.ComponentID != "" && components[ref.ComponentID] {
			continue
		}
		rows = append(rows, h.view(i))
		if ref.Kind == feature.KindComponent {
			for _, ci := range children[ref.ID] {
				rows = append(rows, h.view(ci))
			}
		}
	}
	return rows
}

// Views returns one row per feature in sequence order, the order recompute
// follows. Features is the display order and may differ once a component
// anchor has moved past its children.
func (h *History) Views() []feature.View {
	rows := make([]feature.View, len(h.seq))
	for i := range h.seq {
		rows[i] = h.view(i)
	}
	return rows
}

func (h *History) view(i int) feature.View {
	ref := h.seq[i]
	desc := feature.Descriptor{Name: ref.ID}
	if h.resolver != nil {
		if d, ok := h.resolver.Describe(ref); ok {
			desc = d
			if desc.Name == "" {
				desc.Name = ref.ID
			}
		}
	}
	return feature.View{
		Index:        i,
		ID:           ref.ID,
		Kind:         ref.Kind,
		Name:         desc.Name,
		Icon:         ref.Kind.Icon(),
		Detail:       desc.Detail,
		ComponentID:  ref.ComponentID,
		Depth:        ref.Depth,
		Suppressed:   ref.Suppressed,
		Suppressible: ref.Kind.Suppressible(),
		RolledBack:   h.rolledBack(i),
		Active:       h.IsActive(i),
	}
}
