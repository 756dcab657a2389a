package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/lathe/feature"
)

// Vec3 is a point or direction in model space.
type Vec3 [3]float64

// Primitive is a parametric solid (box, cylinder, sphere, cone, torus).
type Primitive struct {
	ID       string
	Name     string
	Shape    string
	Params   map[string]float64
	Position Vec3
}

// EntityID returns the store id of the primitive.
func (p Primitive) EntityID() string { return p.ID }

// WithID returns a copy of p carrying id.
func (p Primitive) WithID(id string) Primitive {
	p.ID = id
	return p
}

// Clone deep-copies p, including its parameter map.
func (p Primitive) Clone() Primitive {
	p.Params = cloneParams(p.Params)
	return p
}

// Describe renders the shape and its parameters for feature rows.
func (p Primitive) Describe() feature.Descriptor {
	return feature.Descriptor{Name: p.Name, Detail: strings.TrimSpace(p.Shape + " " + formatParams(p.Params))}
}

// SketchElement is one 2D element of a sketch (line, arc, circle ...).
type SketchElement struct {
	Type   string
	Points [][2]float64
}

// Sketch is a set of 2D elements on a plane.
type Sketch struct {
	ID       string
	Name     string
	Plane    string
	Elements []SketchElement
}

// EntityID returns the store id of the sketch.
func (s Sketch) EntityID() string { return s.ID }

// WithID returns a copy of s carrying id.
func (s Sketch) WithID(id string) Sketch {
	s.ID = id
	return s
}

// Clone deep-copies s, including each element's points.
func (s Sketch) Clone() Sketch {
	if s.Elements != nil {
		elems := make([]SketchElement, len(s.Elements))
		for i, e := range s.Elements {
			pts := make([][2]float64, len(e.Points))
			copy(pts, e.Points)
			elems[i] = SketchElement{Type: e.Type, Points: pts}
		}
		s.Elements = elems
	}
	return s
}

// Describe renders the sketch plane and element count.
func (s Sketch) Describe() feature.Descriptor {
	plane := s.Plane
	if plane == "" {
		plane = "XY"
	}
	return feature.Descriptor{Name: s.Name, Detail: fmt.Sprintf("%d elements on %s", len(s.Elements), plane)}
}

// DatumPlane is a reference plane.
type DatumPlane struct {
	ID     string
	Name   string
	Origin Vec3
	Normal Vec3
	Offset float64
}

// EntityID returns the store id of the plane.
func (d DatumPlane) EntityID() string { return d.ID }

// WithID returns a copy of d carrying id.
func (d DatumPlane) WithID(id string) DatumPlane {
	d.ID = id
	return d
}

// Clone returns d; a DatumPlane holds no references.
func (d DatumPlane) Clone() DatumPlane { return d }

// Describe renders the plane normal and offset.
func (d DatumPlane) Describe() feature.Descriptor {
	return feature.Descriptor{Name: d.Name, Detail: fmt.Sprintf("normal %s offset %g", formatVec(d.Normal), d.Offset)}
}

// DatumAxis is a reference axis.
type DatumAxis struct {
	ID        string
	Name      string
	Origin    Vec3
	Direction Vec3
}

// EntityID returns the store id of the axis.
func (d DatumAxis) EntityID() string { return d.ID }

// WithID returns a copy of d carrying id.
func (d DatumAxis) WithID(id string) DatumAxis {
	d.ID = id
	return d
}

// Clone returns d; a DatumAxis holds no references.
func (d DatumAxis) Clone() DatumAxis { return d }

// Describe renders the axis origin and direction.
func (d DatumAxis) Describe() feature.Descriptor {
	return feature.Descriptor{Name: d.Name, Detail: "through " + formatVec(d.Origin) + " along " + formatVec(d.Direction)}
}

// Component groups features into an assembly unit.
// Membership lives in the history as component tags, not here.
type Component struct {
	ID    string
	Name  string
	Color string
}

// EntityID returns the store id of the component.
func (c Component) EntityID() string { return c.ID }

// WithID returns a copy of c carrying id.
func (c Component) WithID(id string) Component {
	c.ID = id
	return c
}

// Clone returns c; a Component holds no references.
func (c Component) Clone() Component { return c }

// Describe shows the component color as its detail.
func (c Component) Describe() feature.Descriptor {
	return feature.Descriptor{Name: c.Name, Detail: c.Color}
}

// Mate constrains two entities relative to each other.
type Mate struct {
	ID    string
	Name  string
	Type  string // coincident, concentric, distance, angle, parallel ...
	A     string
	B     string
	Value float64
}

// EntityID returns the store id of the mate.
func (m Mate) EntityID() string { return m.ID }

// WithID returns a copy of m carrying id.
func (m Mate) WithID(id string) Mate {
	m.ID = id
	return m
}

// Clone returns m; a Mate holds no references.
func (m Mate) Clone() Mate { return m }

// Describe renders the mate type and targets, plus the value when set.
func (m Mate) Describe() feature.Descriptor {
	detail := fmt.Sprintf("%s %s ↔ %s", m.Type, shortID(m.A), shortID(m.B))
	if m.Value != 0 {
		detail += fmt.Sprintf(" (%g)", m.Value)
	}
	return feature.Descriptor{Name: m.Name, Detail: detail}
}

func cloneParams(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// formatParams renders params in key order, e.g. "h=5 w=10".
func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}

func formatVec(v Vec3) string {
	return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
