package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/logger"
	"github.com/teranos/lathe/store"
)

// primitiveDefaults holds the parameters a new primitive starts with.
var primitiveDefaults = map[string]map[string]float64{
	"box":      {"w": 10, "h": 10, "d": 10},
	"cylinder": {"r": 5, "h": 10},
	"sphere":   {"r": 5},
	"cone":     {"r": 5, "h": 10},
	"torus":    {"R": 10, "r": 2},
}

// mateTypes lists the supported mate constraints and whether they take a value.
var mateTypes = map[string]bool{
	"coincident":    false,
	"concentric":    false,
	"parallel":      false,
	"perpendicular": false,
	"tangent":       false,
	"distance":      true,
	"angle":         true,
}

// Shapes returns the primitive shapes AddPrimitive accepts, sorted.
func Shapes() []string {
	return sortedKeys(primitiveDefaults)
}

// MateTypes returns the mate types AddMate accepts, sorted.
func MateTypes() []string {
	return sortedKeys(mateTypes)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type addOptions struct {
	componentID string
}

// AddOption configures a create operation.
type AddOption func(*addOptions)

// InComponent makes the new feature a child of the component with the given id.
func InComponent(componentID string) AddOption {
	return func(o *addOptions) { o.componentID = componentID }
}

// AddPrimitive creates a primitive solid. params override the shape's
// defaults.
func (w *Workspace) AddPrimitive(shape, name string, params map[string]float64, opts ...AddOption) (string, error) {
	defaults, ok := primitiveDefaults[shape]
	if !ok {
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrInvalidKind, "unknown shape %q", shape),
			"shapes: "+strings.Join(Shapes(), ", "))
	}
	merged := make(map[string]float64, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" {
		name = w.defaultName(shape, w.primitives.Len())
	}
	return w.add(feature.KindPrimitive, name, opts, func() (string, error) {
		p, err := w.primitives.Create(store.Primitive{Name: name, Shape: shape, Params: merged})
		return p.ID, err
	})
}

// AddSketch creates a sketch on plane (XY when empty).
func (w *Workspace) AddSketch(name, plane string, elements []store.SketchElement, opts ...AddOption) (string, error) {
	if plane == "" {
		plane = "XY"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" {
		name = w.defaultName("sketch", w.sketches.Len())
	}
	return w.add(feature.KindSketch, name, opts, func() (string, error) {
		s, err := w.sketches.Create(store.Sketch{Name: name, Plane: plane, Elements: elements})
		return s.ID, err
	})
}

// AddDatumPlane creates a reference plane. A zero normal means +Z.
func (w *Workspace) AddDatumPlane(name string, origin, normal store.Vec3, offset float64, opts ...AddOption) (string, error) {
	if normal == (store.Vec3{}) {
		normal = store.Vec3{0, 0, 1}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" {
		name = w.defaultName("plane", w.planes.Len())
	}
	return w.add(feature.KindDatumPlane, name, opts, func() (string, error) {
		d, err := w.planes.Create(store.DatumPlane{Name: name, Origin: origin, Normal: normal, Offset: offset})
		return d.ID, err
	})
}

// AddDatumAxis creates a reference axis. A zero direction means +Z.
func (w *Workspace) AddDatumAxis(name string, origin, direction store.Vec3, opts ...AddOption) (string, error) {
	if direction == (store.Vec3{}) {
		direction = store.Vec3{0, 0, 1}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" {
		name = w.defaultName("axis", w.axes.Len())
	}
	return w.add(feature.KindDatumAxis, name, opts, func() (string, error) {
		d, err := w.axes.Create(store.DatumAxis{Name: name, Origin: origin, Direction: direction})
		return d.ID, err
	})
}

// AddComponent creates an empty component. Components are always root-level.
func (w *Workspace) AddComponent(name, color string) (string, error) {
	if color == "" {
		color = "#8c8c8c"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" {
		name = w.defaultName("component", w.components.Len())
	}
	return w.add(feature.KindComponent, name, nil, func() (string, error) {
		c, err := w.components.Create(store.Component{Name: name, Color: color})
		return c.ID, err
	})
}

// AddMate constrains features a and b. Both must be in the history.
func (w *Workspace) AddMate(mateType, a, b string, value float64, opts ...AddOption) (string, error) {
	takesValue, ok := mateTypes[mateType]
	if !ok {
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrInvalidKind, "unknown mate type %q", mateType),
			"mate types: "+strings.Join(MateTypes(), ", "))
	}
	if !takesValue {
		value = 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range []string{a, b} {
		if _, ok := w.history.Get(id); !ok {
			return "", errors.NewInvalidReferenceError("mate target %q not found", id)
		}
	}
	if a == b {
		return "", errors.NewInvalidReferenceError("cannot mate %q to itself", a)
	}
	name := mateType
	return w.add(feature.KindMate, name, opts, func() (string, error) {
		m, err := w.mates.Create(store.Mate{Name: name, Type: mateType, A: a, B: b, Value: value})
		return m.ID, err
	})
}

// add registers a freshly created entity. While rolled back, the feature is
// inserted right after the cursor and the cursor advances onto it, so new
// work is visible without rolling forward. Callers hold w.mu.
func (w *Workspace) add(kind feature.Kind, name string, opts []AddOption, create func() (string, error)) (string, error) {
	var o addOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.componentID != "" {
		owner, ok := w.history.Get(o.componentID)
		if !ok || owner.Kind != feature.KindComponent {
			return "", errors.NewInvalidReferenceError("component %q not found", o.componentID)
		}
	}

	var id string
	label := fmt.Sprintf("add %s %s", strings.ToLower(kind.Label()), name)
	_, err := w.transact("register", label, w.structuralDelay(), func() (bool, error) {
		var err error
		id, err = create()
		if err != nil {
			return false, err
		}

		ref := feature.Ref{ID: id, Kind: kind, ComponentID: o.componentID}
		cursor := w.history.RollbackIndex()
		index := w.history.Len()
		if cursor != nil {
			index = *cursor + 1
		}
		if err := w.history.RegisterAt(ref, index); err != nil {
			w.stores[kind].Remove(id)
			return false, err
		}
		if cursor != nil {
			next := *cursor + 1
			w.history.SetRollbackIndex(&next)
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}

	w.log.Infow("Feature added",
		logger.FieldFeatureID, id,
		logger.FieldKind, kind,
		logger.FieldComponentID, o.componentID)
	return id, nil
}

// defaultName numbers entities per store: "box 1", "sketch 3".
func (w *Workspace) defaultName(prefix string, existing int) string {
	return fmt.Sprintf("%s %d", prefix, existing+1)
}
