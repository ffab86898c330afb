package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Group is one configuration group: the node's name (which selects the
// factory by prefix) plus its free-form attributes.
type Group struct {
	Name  string
	Attrs map[string]any
}

// Float reads a scalar attribute.
func (g Group) Float(key string) (float64, error) {
	v, ok := g.Attrs[key]
	if !ok {
		return 0, fmt.Errorf("%w: group %q is missing attribute %q", ErrConfiguration, g.Name, key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: group %q attribute %q is not a number", ErrConfiguration, g.Name, key)
	}
	return f, nil
}

// FloatOr reads a scalar attribute, falling back to def when absent.
func (g Group) FloatOr(key string, def float64) (float64, error) {
	if _, ok := g.Attrs[key]; !ok {
		return def, nil
	}
	return g.Float(key)
}

// Floats reads a numeric list attribute.
func (g Group) Floats(key string) ([]float32, error) {
	v, ok := g.Attrs[key]
	if !ok {
		return nil, fmt.Errorf("%w: group %q is missing attribute %q", ErrConfiguration, g.Name, key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: group %q attribute %q is not a list", ErrConfiguration, g.Name, key)
	}
	out := make([]float32, len(list))
	for i, item := range list {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("%w: group %q attribute %q[%d] is not a number", ErrConfiguration, g.Name, key, i)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// IntTable reads a list-of-lists attribute where every row must have
// exactly width entries.
func (g Group) IntTable(key string, width int) ([][]int, error) {
	v, ok := g.Attrs[key]
	if !ok {
		return nil, fmt.Errorf("%w: group %q is missing attribute %q", ErrConfiguration, g.Name, key)
	}
	rows, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: group %q attribute %q is not a list", ErrConfiguration, g.Name, key)
	}
	out := make([][]int, len(rows))
	for i, rv := range rows {
		row, ok := rv.([]any)
		if !ok || len(row) != width {
			return nil, fmt.Errorf("%w: group %q attribute %q[%d] must be a list of %d indices",
				ErrConfiguration, g.Name, key, i, width)
		}
		out[i] = make([]int, width)
		for j, cv := range row {
			f, ok := toFloat(cv)
			if !ok || f != float64(int(f)) {
				return nil, fmt.Errorf("%w: group %q attribute %q[%d][%d] is not an integer",
					ErrConfiguration, g.Name, key, i, j)
			}
			out[i][j] = int(f)
		}
	}
	return out, nil
}

// IntRows reads a list-of-lists attribute with ragged rows of 1 up to
// maxWidth entries each.
func (g Group) IntRows(key string, maxWidth int) ([][]int, error) {
	v, ok := g.Attrs[key]
	if !ok {
		return nil, fmt.Errorf("%w: group %q is missing attribute %q", ErrConfiguration, g.Name, key)
	}
	rows, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: group %q attribute %q is not a list", ErrConfiguration, g.Name, key)
	}
	out := make([][]int, len(rows))
	for i, rv := range rows {
		row, ok := rv.([]any)
		if !ok || len(row) == 0 || len(row) > maxWidth {
			return nil, fmt.Errorf("%w: group %q attribute %q[%d] must hold 1 to %d indices",
				ErrConfiguration, g.Name, key, i, maxWidth)
		}
		out[i] = make([]int, len(row))
		for j, cv := range row {
			f, ok := toFloat(cv)
			if !ok || f != float64(int(f)) {
				return nil, fmt.Errorf("%w: group %q attribute %q[%d][%d] is not an integer",
					ErrConfiguration, g.Name, key, i, j)
			}
			out[i][j] = int(f)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// ArgList holds the resolved coordinate inputs of a node under
// construction, in declaration order.
type ArgList []*CoordNode

// CreationFunc materializes a node from its configuration group and
// resolved arguments.
type CreationFunc func(grp Group, args ArgList) (Node, error)

// creationFuncs is written only by RegisterNode during static setup
// and read-only thereafter.
var creationFuncs = map[string]CreationFunc{}

// IsPrefix reports whether prefix is an initial substring of name.
func IsPrefix(prefix, name string) bool {
	return strings.HasPrefix(name, prefix)
}

// RegisterNode installs a factory under a name prefix. Registering the
// same prefix twice is an error.
func RegisterNode(prefix string, fn CreationFunc) error {
	if _, ok := creationFuncs[prefix]; ok {
		return fmt.Errorf("%w: prefix %q", ErrRegistry, prefix)
	}
	creationFuncs[prefix] = fn
	return nil
}

// MustRegisterNode is RegisterNode for init-time use.
func MustRegisterNode(prefix string, fn CreationFunc) {
	if err := RegisterNode(prefix, fn); err != nil {
		panic(err)
	}
}

// LookupCreation selects the factory whose prefix is the longest match
// for name.
func LookupCreation(name string) (CreationFunc, error) {
	best := ""
	for prefix := range creationFuncs {
		if IsPrefix(prefix, name) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, fmt.Errorf("%w: no factory for node name %q", ErrConfiguration, name)
	}
	return creationFuncs[best], nil
}

// RegisteredPrefixes lists the installed factory prefixes, sorted.
func RegisteredPrefixes() []string {
	out := make([]string, 0, len(creationFuncs))
	for prefix := range creationFuncs {
		out = append(out, prefix)
	}
	sort.Strings(out)
	return out
}

// CheckArgumentsLength validates a fixed factory arity.
func CheckArgumentsLength(grp Group, args ArgList, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: node %q expects %d arguments, got %d", ErrConfiguration, grp.Name, n, len(args))
	}
	return nil
}

// CheckElemWidth validates an input's element width.
func CheckElemWidth(grp Group, node *CoordNode, expected int) error {
	if node.ElemWidth != expected {
		return fmt.Errorf("%w: node %q requires input width %d, got %d",
			ErrConfiguration, grp.Name, expected, node.ElemWidth)
	}
	return nil
}

// CheckElemWidthLowerBound validates a minimum input element width.
func CheckElemWidthLowerBound(grp Group, node *CoordNode, bound int) error {
	if node.ElemWidth < bound {
		return fmt.Errorf("%w: node %q requires input width of at least %d, got %d",
			ErrConfiguration, grp.Name, bound, node.ElemWidth)
	}
	return nil
}

// NodeFactory0 wraps a zero-argument constructor.
func NodeFactory0(fn func(grp Group) (Node, error)) CreationFunc {
	return func(grp Group, args ArgList) (Node, error) {
		if err := CheckArgumentsLength(grp, args, 0); err != nil {
			return nil, err
		}
		return fn(grp)
	}
}

// NodeFactory1 wraps a one-argument constructor.
func NodeFactory1(fn func(grp Group, arg *CoordNode) (Node, error)) CreationFunc {
	return func(grp Group, args ArgList) (Node, error) {
		if err := CheckArgumentsLength(grp, args, 1); err != nil {
			return nil, err
		}
		return fn(grp, args[0])
	}
}

// NodeFactory2 wraps a two-argument constructor.
func NodeFactory2(fn func(grp Group, a, b *CoordNode) (Node, error)) CreationFunc {
	return func(grp Group, args ArgList) (Node, error) {
		if err := CheckArgumentsLength(grp, args, 2); err != nil {
			return nil, err
		}
		return fn(grp, args[0], args[1])
	}
}

// NodeFactory3 wraps a three-argument constructor.
func NodeFactory3(fn func(grp Group, a, b, c *CoordNode) (Node, error)) CreationFunc {
	return func(grp Group, args ArgList) (Node, error) {
		if err := CheckArgumentsLength(grp, args, 3); err != nil {
			return nil, err
		}
		return fn(grp, args[0], args[1], args[2])
	}
}

// NodeFactoryVariadic wraps a constructor taking at least one argument.
func NodeFactoryVariadic(fn func(grp Group, args ArgList) (Node, error)) CreationFunc {
	return func(grp Group, args ArgList) (Node, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: node %q expects at least 1 argument", ErrConfiguration, grp.Name)
		}
		return fn(grp, args)
	}
}
