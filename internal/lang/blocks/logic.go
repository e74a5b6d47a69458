package blocks

import (
	"strconv"

	"cowboys.arena/internal/lang/value"
	"cowboys.arena/internal/sim/mathx"
)

// Constant yields a literal: logic_boolean, math_number or
// constant_direction.
type Constant struct {
	node
	Value value.Value
}

func (b *Constant) ResultKind() value.Kind { return b.Value.Kind }

func (b *Constant) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	return b.Value, nil
}

var (
	compareOps    = []string{"EQ", "NEQ", "LT", "LTE", "GT", "GTE"}
	logicOps      = []string{"AND", "OR"}
	arithmeticOps = []string{"ADD", "MINUS", "MULTIPLY", "DIVIDE", "POWER", "MODULO"}
)

// Compare applies a relational operator. EQ and NEQ take operands of any
// kind; the ordering operators take integers only.
type Compare struct {
	node
	Op   string
	A, B Expr
}

func (b *Compare) ResultKind() value.Kind { return value.Bool }

func (b *Compare) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := b.A.Eval(r)
	if err != nil {
		return value.Value{}, err
	}
	y, err := b.B.Eval(r)
	if err != nil {
		return value.Value{}, err
	}
	switch b.Op {
	case "EQ":
		return value.OfBool(value.Equal(x, y)), nil
	case "NEQ":
		return value.OfBool(!value.Equal(x, y)), nil
	}
	if x.Kind != value.Int || y.Kind != value.Int {
		return value.Value{}, faultf(b.kind, "cannot order %s and %s", x.Kind, y.Kind)
	}
	switch b.Op {
	case "LT":
		return value.OfBool(x.I < y.I), nil
	case "LTE":
		return value.OfBool(x.I <= y.I), nil
	case "GT":
		return value.OfBool(x.I > y.I), nil
	case "GTE":
		return value.OfBool(x.I >= y.I), nil
	}
	return value.Value{}, faultf(b.kind, "unknown operator %s", b.Op)
}

// LogicOp is AND or OR. Both operands are always evaluated.
type LogicOp struct {
	node
	Op   string
	A, B Expr
}

func (b *LogicOp) ResultKind() value.Kind { return value.Bool }

func (b *LogicOp) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := evalBool(r, b.A)
	if err != nil {
		return value.Value{}, err
	}
	y, err := evalBool(r, b.B)
	if err != nil {
		return value.Value{}, err
	}
	if b.Op == "AND" {
		return value.OfBool(x && y), nil
	}
	return value.OfBool(x || y), nil
}

type Negate struct {
	node
	X Expr
}

func (b *Negate) ResultKind() value.Kind { return value.Bool }

func (b *Negate) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := evalBool(r, b.X)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfBool(!x), nil
}

type Abs struct {
	node
	X Expr
}

func (b *Abs) ResultKind() value.Kind { return value.Int }

func (b *Abs) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := evalInt(r, b.X)
	if err != nil {
		return value.Value{}, err
	}
	return value.OfInt(mathx.AbsInt(x)), nil
}

// Arithmetic is integer arithmetic. DIVIDE floors and MODULO takes the sign
// of the divisor.
type Arithmetic struct {
	node
	Op   string
	A, B Expr
}

func (b *Arithmetic) ResultKind() value.Kind { return value.Int }

func (b *Arithmetic) Eval(r *Run) (value.Value, error) {
	if err := r.charge(); err != nil {
		return value.Value{}, err
	}
	x, err := evalInt(r, b.A)
	if err != nil {
		return value.Value{}, err
	}
	y, err := evalInt(r, b.B)
	if err != nil {
		return value.Value{}, err
	}
	switch b.Op {
	case "ADD":
		return value.OfInt(x + y), nil
	case "MINUS":
		return value.OfInt(x - y), nil
	case "MULTIPLY":
		return value.OfInt(x * y), nil
	case "DIVIDE", "MODULO":
		if y == 0 {
			return value.Value{}, faultf(b.kind, "division by zero")
		}
		if b.Op == "DIVIDE" {
			return value.OfInt(mathx.FloorDiv(x, y)), nil
		}
		return value.OfInt(mathx.Mod(x, y)), nil
	case "POWER":
		if y < 0 {
			return value.Value{}, faultf(b.kind, "negative exponent %d", y)
		}
		return value.OfInt(mathx.PowInt(x, y)), nil
	}
	return value.Value{}, faultf(b.kind, "unknown operator %s", b.Op)
}

func init() {
	register(&Spec{
		Name: "logic_boolean", Expr: true, Returns: value.Bool,
		Inputs: []Input{{Kind: FieldInput, Name: "BOOL", Type: value.Bool}},
		build: func(a *args) (Block, error) {
			return &Constant{Value: a.literal("BOOL").Value}, nil
		},
	})
	register(&Spec{
		Name: "math_number", Expr: true, Returns: value.Int,
		Inputs: []Input{{Kind: FieldInput, Name: "NUM", Type: value.Int}},
		build: func(a *args) (Block, error) {
			return &Constant{Value: a.literal("NUM").Value}, nil
		},
	})
	register(&Spec{
		Name: "constant_direction", Expr: true, Returns: value.Int,
		Inputs: []Input{{
			Kind: FieldInput, Name: "DIRECTION", Type: value.Text,
			Dropdown: []string{"0", "1", "2", "3", "4", "5", "6", "7"},
		}},
		build: func(a *args) (Block, error) {
			d, err := strconv.Atoi(a.text("DIRECTION"))
			if err != nil {
				return nil, parseErrorf("field DIRECTION: %v", err)
			}
			return &Constant{Value: value.OfInt(d)}, nil
		},
	})
	register(&Spec{
		Name: "logic_compare", Expr: true, Returns: value.Bool,
		Inputs: []Input{
			{Kind: FieldInput, Name: "OP", Type: value.Text, Dropdown: compareOps},
			{Kind: ValueInput, Name: "A"},
			{Kind: ValueInput, Name: "B"},
		},
		build: func(a *args) (Block, error) {
			op := a.text("OP")
			if op != "EQ" && op != "NEQ" {
				for _, in := range []string{"A", "B"} {
					if err := expectKind(a.values[in], value.Int); err != nil {
						return nil, parseErrorf("value %s: %s needs integers: %v", in, op, err)
					}
				}
			}
			return &Compare{Op: op, A: a.values["A"], B: a.values["B"]}, nil
		},
	})
	register(&Spec{
		Name: "logic_operation", Expr: true, Returns: value.Bool,
		Inputs: []Input{
			{Kind: FieldInput, Name: "OP", Type: value.Text, Dropdown: logicOps},
			{Kind: ValueInput, Name: "A", Type: value.Bool},
			{Kind: ValueInput, Name: "B", Type: value.Bool},
		},
		build: func(a *args) (Block, error) {
			return &LogicOp{Op: a.text("OP"), A: a.values["A"], B: a.values["B"]}, nil
		},
	})
	register(&Spec{
		Name: "logic_negate", Expr: true, Returns: value.Bool,
		Inputs: []Input{{Kind: ValueInput, Name: "BOOL", Type: value.Bool}},
		build: func(a *args) (Block, error) {
			return &Negate{X: a.values["BOOL"]}, nil
		},
	})
	register(&Spec{
		Name: "math_abs", Expr: true, Returns: value.Int,
		Inputs: []Input{{Kind: ValueInput, Name: "NUM", Type: value.Int}},
		build: func(a *args) (Block, error) {
			return &Abs{X: a.values["NUM"]}, nil
		},
	})
	register(&Spec{
		Name: "math_arithmetic_custom", Expr: true, Returns: value.Int,
		Inputs: []Input{
			{Kind: FieldInput, Name: "OP", Type: value.Text, Dropdown: arithmeticOps},
			{Kind: ValueInput, Name: "A", Type: value.Int},
			{Kind: ValueInput, Name: "B", Type: value.Int},
		},
		build: func(a *args) (Block, error) {
			return &Arithmetic{Op: a.text("OP"), A: a.values["A"], B: a.values["B"]}, nil
		},
	})
}
