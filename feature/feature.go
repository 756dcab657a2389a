// Package feature defines the entries of the modeling history.
//
// A Ref is one step in the ordered feature sequence. The sequence is flat:
// component membership is expressed by ComponentID and Depth tags rather
// than nesting, so reordering stays a single splice.
package feature

import (
	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/sym"
)

// Kind identifies the entity category that owns a feature.
type Kind string

const (
	KindPrimitive  Kind = "primitive"
	KindSketch     Kind = "sketch"
	KindDatumPlane Kind = "datum-plane"
	KindDatumAxis  Kind = "datum-axis"
	KindComponent  Kind = "component"
	KindMate       Kind = "mate"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindPrimitive, KindSketch, KindDatumPlane, KindDatumAxis, KindComponent, KindMate}

type capability struct {
	icon         string
	label        string
	suppressible bool
}

var capabilities = map[Kind]capability{
	KindPrimitive:  {icon: sym.Primitive, label: "Primitive", suppressible: true},
	KindSketch:     {icon: sym.Sketch, label: "Sketch", suppressible: true},
	KindDatumPlane: {icon: sym.DatumPlane, label: "Datum Plane", suppressible: true},
	KindDatumAxis:  {icon: sym.DatumAxis, label: "Datum Axis", suppressible: true},
	KindComponent:  {icon: sym.Component, label: "Component", suppressible: false},
	KindMate:       {icon: sym.Mate, label: "Mate", suppressible: true},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := capabilities[k]
	return ok
}

// Icon returns the glyph rendered next to features of this kind.
func (k Kind) Icon() string {
	return capabilities[k].icon
}

// Label returns the human-readable kind name.
func (k Kind) Label() string {
	if c, ok := capabilities[k]; ok {
		return c.label
	}
	return string(k)
}

// Suppressible reports whether features of this kind can be suppressed.
// Component entries group other features and carry no geometry of their own.
func (k Kind) Suppressible() bool {
	return capabilities[k].suppressible
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidKind, "%q", s)
	}
	return k, nil
}

// Ref is one entry in the ordered history.
type Ref struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	ComponentID string `json:"component_id,omitempty"` // owning component; empty at root level
	Depth       int    `json:"depth"`                  // 0 for root entries and components
	Suppressed  bool   `json:"suppressed"`
}

// Root reports whether the feature sits at the root level of the history.
func (r Ref) Root() bool {
	return r.Depth == 0
}

// Descriptor is the per-entity metadata the history renders.
// Entity stores supply it; the history never owns entity state.
type Descriptor struct {
	Name   string
	Detail string
}

// View is one row of the flattened, display-ready feature list.
type View struct {
	Index        int    `json:"index"`        // position in the linear sequence
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Detail       string `json:"detail"`
	ComponentID  string `json:"component_id,omitempty"`
	Depth        int    `json:"depth"`
	Suppressed   bool   `json:"suppressed"`
	Suppressible bool   `json:"suppressible"`
	RolledBack   bool   `json:"rolled_back"`  // beyond the rollback cursor
	Active       bool   `json:"active"`       // participates in recompute
}
