package blocks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cowboys.arena/internal/lang/value"
)

type InputKind int

const (
	FieldInput InputKind = iota
	ValueInput
	StatementInput
)

func (k InputKind) String() string {
	switch k {
	case FieldInput:
		return "field"
	case ValueInput:
		return "value"
	case StatementInput:
		return "statement"
	}
	return fmt.Sprintf("InputKind(%d)", int(k))
}

// Input declares one named slot of a block kind. Type Unresolved accepts
// any kind.
type Input struct {
	Kind     InputKind
	Name     string
	Type     value.Kind
	Dropdown []string
	Variable bool
}

// Spec is the contract of one block kind.
type Spec struct {
	Name string
	// Expr kinds yield a value of Returns; Unresolved means the kind is
	// decided per instance (variable reads).
	Expr    bool
	Returns value.Kind
	HasNext bool
	Inputs  []Input
	// MutationInputs, when set, derives Inputs from the mutation attributes.
	MutationInputs func(mutation map[string]string) ([]Input, error)

	build func(a *args) (Block, error)
}

// Parts is everything the parser collected for one block element.
type Parts struct {
	Mutation   map[string]string
	Fields     map[string]Field
	Values     map[string]Block
	Statements map[string]Block
	Next       Block
}

type args struct {
	mutation   map[string]string
	fields     map[string]Field
	values     map[string]Expr
	statements map[string]Stmt
	next       Stmt
}

func (a *args) literal(name string) *Literal {
	l, _ := a.fields[name].(*Literal)
	return l
}

func (a *args) varRef(name string) *VarRef {
	v, _ := a.fields[name].(*VarRef)
	return v
}

func (a *args) text(name string) string { return a.literal(name).Value.S }

var registry = map[string]*Spec{}

func register(s *Spec) {
	if _, dup := registry[s.Name]; dup {
		panic("blocks: duplicate kind " + s.Name)
	}
	registry[s.Name] = s
}

// Catalog is the set of block kinds legal for one kind of unit.
type Catalog struct {
	name  string
	specs map[string]*Spec
}

func newCatalog(name string, kinds ...string) *Catalog {
	c := &Catalog{name: name, specs: make(map[string]*Spec, len(kinds))}
	for _, k := range kinds {
		s, ok := registry[k]
		if !ok {
			panic("blocks: unknown kind in catalog: " + k)
		}
		c.specs[k] = s
	}
	return c
}

func (c *Catalog) Name() string { return c.name }

func (c *Catalog) Lookup(kind string) (*Spec, bool) {
	s, ok := c.specs[kind]
	return s, ok
}

func (c *Catalog) Kinds() []string {
	out := make([]string, 0, len(c.specs))
	for k := range c.specs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build validates p against the kind's contract and constructs the block.
// Value inputs whose child is an unresolved variable read get the expected
// kind pinned here.
func (c *Catalog) Build(kind string, p Parts) (Block, error) {
	spec, ok := c.specs[kind]
	if !ok {
		return nil, parseErrorf("unknown block %s", kind)
	}
	inputs := spec.Inputs
	if spec.MutationInputs != nil {
		var err error
		if inputs, err = spec.MutationInputs(p.Mutation); err != nil {
			return nil, parseErrorf("block %s: %v", kind, err)
		}
	}

	a := &args{
		mutation:   p.Mutation,
		fields:     map[string]Field{},
		values:     map[string]Expr{},
		statements: map[string]Stmt{},
	}
	n := node{kind: kind, mutation: p.Mutation}

	fieldInputs, err := matchInputs(inputs, FieldInput, keysOf(p.Fields))
	if err != nil {
		return nil, err
	}
	for _, in := range fieldInputs {
		f := p.Fields[in.Name]
		switch f := f.(type) {
		case *VarRef:
			if !in.Variable {
				return nil, parseErrorf("field %s cannot reference variable %s", in.Name, f.Name)
			}
			if err := f.Pin(in.Type); err != nil {
				return nil, parseErrorf("field %s: %v", in.Name, err)
			}
		case *Literal:
			if in.Variable {
				return nil, parseErrorf("field %s must reference a variable", in.Name)
			}
			if f.Value.Kind != in.Type {
				return nil, parseErrorf("%s is %s but %s wanted", in.Name, f.Value.Kind, in.Type)
			}
			if len(in.Dropdown) > 0 && !contains(in.Dropdown, f.Value.S) {
				return nil, parseErrorf("field %s: unknown option %q", in.Name, f.Value.S)
			}
		}
		a.fields[in.Name] = f
		n.fields = append(n.fields, f)
	}

	valueInputs, err := matchInputs(inputs, ValueInput, keysOf(p.Values))
	if err != nil {
		return nil, err
	}
	for _, in := range valueInputs {
		e, ok := p.Values[in.Name].(Expr)
		if !ok {
			return nil, parseErrorf("value %s: block %s does not return a value", in.Name, p.Values[in.Name].Type())
		}
		if err := expectKind(e, in.Type); err != nil {
			return nil, parseErrorf("value %s: %v", in.Name, err)
		}
		a.values[in.Name] = e
		n.values = append(n.values, namedExpr{name: in.Name, expr: e})
	}

	stmtInputs, err := matchInputs(inputs, StatementInput, keysOf(p.Statements))
	if err != nil {
		return nil, err
	}
	for _, in := range stmtInputs {
		st, ok := p.Statements[in.Name].(Stmt)
		if !ok {
			e := p.Statements[in.Name].(Expr)
			return nil, parseErrorf("statement %s: should not return value (returns %s)", in.Name, e.ResultKind())
		}
		a.statements[in.Name] = st
		n.statements = append(n.statements, namedStmt{name: in.Name, stmt: st})
	}

	if p.Next != nil {
		if !spec.HasNext {
			return nil, parseErrorf("block %s: next not supported", kind)
		}
		st, ok := p.Next.(Stmt)
		if !ok {
			return nil, parseErrorf("next: block %s returns a value", p.Next.Type())
		}
		a.next = st
		n.next = st
	}

	b, err := spec.build(a)
	if err != nil {
		return nil, err
	}
	*b.structure() = n
	return b, nil
}

// expectKind checks e against want, pinning an unresolved variable read.
func expectKind(e Expr, want value.Kind) error {
	if want == value.Unresolved {
		return nil
	}
	got := e.ResultKind()
	if got == value.Unresolved {
		if r, ok := e.(interface{ pinResult(value.Kind) error }); ok {
			return r.pinResult(want)
		}
		return fmt.Errorf("cannot set return type for %s", e.Type())
	}
	if got != want {
		return fmt.Errorf("returns %s but %s expected", got, want)
	}
	return nil
}

func matchInputs(inputs []Input, kind InputKind, given []string) ([]Input, error) {
	var wanted []Input
	for _, in := range inputs {
		if in.Kind == kind {
			wanted = append(wanted, in)
		}
	}
	if len(wanted) == 0 && len(given) > 0 {
		return nil, parseErrorf("no %s allowed (%s given)", kind, strings.Join(given, ", "))
	}
	have := map[string]bool{}
	for _, g := range given {
		have[g] = true
	}
	var missing, extra []string
	want := map[string]bool{}
	for _, in := range wanted {
		want[in.Name] = true
		if !have[in.Name] {
			missing = append(missing, in.Name)
		}
	}
	for _, g := range given {
		if !want[g] {
			extra = append(extra, g)
		}
	}
	if len(missing) > 0 {
		return nil, parseErrorf("missing %s: %s", kind, strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		return nil, parseErrorf("extra %s: %s", kind, strings.Join(extra, ", "))
	}
	return wanted, nil
}

func keysOf[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ifInputs(mutation map[string]string) ([]Input, error) {
	elseifs, elses := 0, 0
	if v, ok := mutation["elseif"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid mutation elseif=%q", v)
		}
		elseifs = n
	}
	if v, ok := mutation["else"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid mutation else=%q", v)
		}
		elses = n
	}
	if elseifs < 0 || (elses != 0 && elses != 1) {
		return nil, fmt.Errorf("invalid mutation elseif=%d else=%d", elseifs, elses)
	}
	var inputs []Input
	for i := 0; i <= elseifs; i++ {
		inputs = append(inputs,
			Input{Kind: ValueInput, Name: fmt.Sprintf("IF%d", i), Type: value.Bool},
			Input{Kind: StatementInput, Name: fmt.Sprintf("DO%d", i)},
		)
	}
	if elses == 1 {
		inputs = append(inputs, Input{Kind: StatementInput, Name: "ELSE"})
	}
	return inputs, nil
}

var shared = []string{
	"controls_repeat_ext", "controls_for", "controls_if",
	"logic_compare", "logic_operation", "logic_negate",
	"logic_boolean", "math_number", "constant_direction", "math_arithmetic_custom", "math_abs",
	"info_team", "info_points", "info_id", "info_position", "info_turn",
	"info_map_position",
	"info_cowboy_count", "info_cowboy_team", "info_cowboy_position",
	"info_bullet_count", "info_bullet_team", "info_bullet_position",
	"modify_position", "transform_position_x", "transform_position_y", "transform_x_y_position",
	"count_distance", "compute_direction",
	"variables_get", "variables_set", "math_change",
}

var (
	catalogsOnce sync.Once
	cowboyCat    *Catalog
	bulletCat    *Catalog
)

func initCatalogs() {
	cowboyCat = newCatalog("cowboy", append([]string{
		"info_index", "info_gold_count", "info_gold_position",
		"compute_distance", "compute_first_step",
		"nop", "move_direction", "move_direction_number", "fire_direction", "fire_direction_by_number",
	}, shared...)...)
	bulletCat = newCatalog("bullet", append([]string{
		"info_my_direction", "info_my_range",
		"bullet_fly", "bullet_left", "bullet_right",
	}, shared...)...)
}

// CowboyCatalog lists the kinds a cowboy program may use.
func CowboyCatalog() *Catalog {
	catalogsOnce.Do(initCatalogs)
	return cowboyCat
}

// BulletCatalog lists the kinds a bullet program may use. Bullets cannot
// see gold nor walk paths, and only steer.
func BulletCatalog() *Catalog {
	catalogsOnce.Do(initCatalogs)
	return bulletCat
}
