package value

import (
	"fmt"

	"cowboys.arena/internal/sim/entity"
)

// Kind is the static type of a value flowing between blocks.
type Kind int

const (
	// Unresolved marks a variable whose kind no consumer has pinned yet. As an
	// input expectation it means "any kind".
	Unresolved Kind = iota
	Bool
	Int
	Position
	// Text only appears as a literal field (dropdown choices, operators).
	Text
)

func (k Kind) String() string {
	switch k {
	case Unresolved:
		return "any"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Position:
		return "position"
	case Text:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a tagged union; only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	B    bool
	I    int
	P    entity.Position
	S    string
}

func OfBool(b bool) Value                { return Value{Kind: Bool, B: b} }
func OfInt(i int) Value                  { return Value{Kind: Int, I: i} }
func OfPosition(p entity.Position) Value { return Value{Kind: Position, P: p} }
func OfText(s string) Value              { return Value{Kind: Text, S: s} }

// Zero is the initial value of a variable of kind k.
func Zero(k Kind) (Value, bool) {
	switch k {
	case Bool:
		return OfBool(false), true
	case Int:
		return OfInt(0), true
	case Position:
		return OfPosition(entity.Position{}), true
	}
	return Value{}, false
}

// Equal compares kind and payload; values of different kinds are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Bool:
		return a.B == b.B
	case Int:
		return a.I == b.I
	case Position:
		return a.P == b.P
	case Text:
		return a.S == b.S
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case Bool:
		return fmt.Sprintf("%t", v.B)
	case Int:
		return fmt.Sprintf("%d", v.I)
	case Position:
		return v.P.String()
	case Text:
		return fmt.Sprintf("%q", v.S)
	}
	return "<unset>"
}
