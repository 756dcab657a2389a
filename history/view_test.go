package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/internal/util"
)

var names = ResolverFunc(func(ref feature.Ref) (feature.Descriptor, bool) {
	switch ref.ID {
	case "p1":
		return feature.Descriptor{Name: "Base", Detail: "box 10×10×2"}, true
	case "s1":
		return feature.Descriptor{Name: "Profile", Detail: "4 elements on XY"}, true
	case "c1":
		return feature.Descriptor{Name: "Bracket"}, true
	}
	return feature.Descriptor{}, false
})

func TestFeatures_FlattensComponents(t *testing.T) {
	h := New(names, nil)
	require.NoError(t, h.Register(comp("c1")))
	require.NoError(t, h.Register(prim("p1")))
	require.NoError(t, h.Register(child("k1", "c1")))
	require.NoError(t, h.Register(feature.Ref{ID: "s1", Kind: feature.KindSketch}))
	require.NoError(t, h.Register(child("k2", "c1")))

	rows := h.Features()
	require.Len(t, rows, 5)

	var order []string
	for _, r := range rows {
		order = append(order, r.ID)
	}
	assert.Equal(t, []string{"c1", "k1", "k2", "p1", "s1"}, order)

	assert.Equal(t, 2, rows[1].Index, "Index is the sequence position")
	assert.Equal(t, 4, rows[2].Index)
	assert.Equal(t, 1, rows[2].Depth)
	assert.Equal(t, "Bracket", rows[0].Name)
	assert.Equal(t, feature.KindComponent.Icon(), rows[0].Icon)
	assert.False(t, rows[0].Suppressible)
	assert.Equal(t, "k1", rows[1].Name, "unresolved features fall back to their id")
	assert.Equal(t, "box 10×10×2", rows[3].Detail)
}

func TestViews_SequenceOrder(t *testing.T) {
	h := New(names, nil)
	require.NoError(t, h.Register(comp("c1")))
	require.NoError(t, h.Register(prim("p1")))
	require.NoError(t, h.Register(child("k1", "c1")))
	require.NoError(t, h.Register(feature.Ref{ID: "s1", Kind: feature.KindSketch}))
	require.NoError(t, h.Register(child("k2", "c1")))

	rows := h.Views()
	require.Len(t, rows, 5)
	for i, r := range rows {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, "k1", rows[2].ID)
	assert.Equal(t, "c1", rows[2].ComponentID)
	assert.Equal(t, "Bracket", rows[0].Name)
}

func TestFeatures_MarksRolledBackAndSuppressed(t *testing.T) {
	h := New(names, nil)
	require.NoError(t, h.Register(prim("p1")))
	require.NoError(t, h.Register(prim("p2")))
	require.NoError(t, h.Register(feature.Ref{ID: "s1", Kind: feature.KindSketch}))
	h.ToggleSuppressed("p2")
	h.SetRollbackIndex(util.Ptr(1))

	rows := h.Features()
	require.Len(t, rows, 3)

	assert.True(t, rows[0].Active)
	assert.False(t, rows[0].RolledBack)

	assert.True(t, rows[1].Suppressed)
	assert.False(t, rows[1].Active)
	assert.False(t, rows[1].RolledBack)

	assert.True(t, rows[2].RolledBack)
	assert.False(t, rows[2].Active)
	assert.False(t, rows[2].Suppressed)
}

func TestFilter(t *testing.T) {
	h := New(names, nil)
	require.NoError(t, h.Register(prim("p1")))
	require.NoError(t, h.Register(feature.Ref{ID: "s1", Kind: feature.KindSketch}))
	require.NoError(t, h.Register(prim("p2")))
	h.ToggleSuppressed("p2")
	h.SetRollbackIndex(util.Ptr(1))

	tests := []struct {
		expr string
		want []string
	}{
		{`kind == "sketch"`, []string{"s1"}},
		{`suppressed || rolled_back`, []string{"p2"}},
		{`active && kind == "primitive"`, []string{"p1"}},
		{`name startsWith "Pro"`, []string{"s1"}},
		{`index >= 1`, []string{"s1", "p2"}},
		{`depth > 0`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rows, err := h.Filter(tt.expr)
			require.NoError(t, err)
			var got []string
			for _, r := range rows {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_InvalidExpression(t *testing.T) {
	h := New(nil, nil)

	_, err := h.Filter("")
	require.Error(t, err)

	_, err = h.Filter(`kind + 1`)
	require.Error(t, err)

	_, err = h.Filter(`unknown_field == 2`)
	require.Error(t, err)
}
