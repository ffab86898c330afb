package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFactory(grp Group, args ArgList) (Node, error) {
	return NewPos(1), nil
}

func TestRegisterNodeDuplicate(t *testing.T) {
	require.NoError(t, RegisterNode("stub_dup_test", stubFactory))

	err := RegisterNode("stub_dup_test", stubFactory)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistry)
}

func TestLookupCreationLongestPrefix(t *testing.T) {
	var hit string
	require.NoError(t, RegisterNode("stub_lp", func(grp Group, args ArgList) (Node, error) {
		hit = "short"
		return NewPos(1), nil
	}))
	require.NoError(t, RegisterNode("stub_lp_long", func(grp Group, args ArgList) (Node, error) {
		hit = "long"
		return NewPos(1), nil
	}))

	fn, err := LookupCreation("stub_lp_long_backbone")
	require.NoError(t, err)
	_, err = fn(Group{Name: "stub_lp_long_backbone"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "long", hit)

	fn, err = LookupCreation("stub_lp_other")
	require.NoError(t, err)
	_, err = fn(Group{Name: "stub_lp_other"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "short", hit)
}

func TestLookupCreationUnknownPrefix(t *testing.T) {
	_, err := LookupCreation("no_such_factory_prefix")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestIsPrefix(t *testing.T) {
	assert.True(t, IsPrefix("dist_spring", "dist_spring_backbone"))
	assert.True(t, IsPrefix("dist_spring", "dist_spring"))
	assert.False(t, IsPrefix("dist_spring", "dist"))
}

func TestArityWrappers(t *testing.T) {
	pos := NewPos(4)

	fn1 := NodeFactory1(func(grp Group, arg *CoordNode) (Node, error) {
		return NewPos(1), nil
	})

	_, err := fn1(Group{Name: "one_arg"}, ArgList{&pos.CoordNode})
	require.NoError(t, err)

	_, err = fn1(Group{Name: "one_arg"}, ArgList{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = fn1(Group{Name: "one_arg"}, ArgList{&pos.CoordNode, &pos.CoordNode})
	assert.ErrorIs(t, err, ErrConfiguration)

	variadic := NodeFactoryVariadic(func(grp Group, args ArgList) (Node, error) {
		return NewPos(1), nil
	})
	_, err = variadic(Group{Name: "var_arg"}, ArgList{})
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = variadic(Group{Name: "var_arg"}, ArgList{&pos.CoordNode, &pos.CoordNode, &pos.CoordNode})
	assert.NoError(t, err)
}

func TestCheckElemWidth(t *testing.T) {
	pos := NewPos(2)

	assert.NoError(t, CheckElemWidth(Group{Name: "g"}, &pos.CoordNode, 3))
	assert.ErrorIs(t, CheckElemWidth(Group{Name: "g"}, &pos.CoordNode, 7), ErrConfiguration)
	assert.NoError(t, CheckElemWidthLowerBound(Group{Name: "g"}, &pos.CoordNode, 3))
	assert.ErrorIs(t, CheckElemWidthLowerBound(Group{Name: "g"}, &pos.CoordNode, 4), ErrConfiguration)
}

func TestGroupAccessors(t *testing.T) {
	g := Group{
		Name: "dist_spring_test",
		Attrs: map[string]any{
			"spring_const": []any{100.0, 50.0},
			"pairs":        []any{[]any{0, 1}, []any{1, 2}},
			"groups":       []any{[]any{0, 1, 2}, []any{3}},
			"radius":       3.5,
		},
	}

	floats, err := g.Floats("spring_const")
	require.NoError(t, err)
	assert.Equal(t, []float32{100, 50}, floats)

	pairs, err := g.IntTable("pairs", 2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {1, 2}}, pairs)

	rows, err := g.IntRows("groups", 6)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2}, {3}}, rows)

	r, err := g.Float("radius")
	require.NoError(t, err)
	assert.Equal(t, 3.5, r)

	_, err = g.Float("missing")
	assert.ErrorIs(t, err, ErrConfiguration)

	def, err := g.FloatOr("missing", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.25, def)

	_, err = g.IntTable("pairs", 3)
	assert.ErrorIs(t, err, ErrConfiguration)
}
