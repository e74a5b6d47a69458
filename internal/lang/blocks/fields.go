package blocks

import (
	"fmt"
	"strconv"
	"strings"

	"cowboys.arena/internal/lang/value"
)

// VarFieldName is the field name that always denotes a variable reference.
const VarFieldName = "VAR"

// Field is a leaf inside a block: a literal or a variable reference.
type Field interface {
	FieldName() string
	text() string
}

// Literal is a constant written in the program source.
type Literal struct {
	Name  string
	Value value.Value
	raw   string
}

// NewLiteral types a field by its name: BOOL holds a boolean, NUM an
// integer, anything else text.
func NewLiteral(name, raw string) (*Literal, error) {
	raw = strings.TrimSpace(raw)
	l := &Literal{Name: name, raw: raw}
	switch name {
	case "BOOL":
		l.Value = value.OfBool(strings.EqualFold(raw, "true"))
	case "NUM":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not an integer", name, raw)
		}
		l.Value = value.OfInt(n)
	default:
		l.Value = value.OfText(raw)
	}
	return l, nil
}

func (l *Literal) FieldName() string { return l.Name }
func (l *Literal) text() string      { return l.raw }

// VarRef is one use site of a declared variable. Kind starts Unresolved and
// is pinned by the first consumer that needs a specific kind.
type VarRef struct {
	Name string
	Kind value.Kind
}

func NewVarRef(name string) *VarRef { return &VarRef{Name: name} }

func (v *VarRef) FieldName() string { return VarFieldName }
func (v *VarRef) text() string      { return v.Name }

// Pin fixes the kind of this use site.
func (v *VarRef) Pin(k value.Kind) error {
	if k == value.Unresolved {
		return nil
	}
	if v.Kind != value.Unresolved && v.Kind != k {
		return fmt.Errorf("variable %s is %s but %s wanted", v.Name, v.Kind, k)
	}
	v.Kind = k
	return nil
}
