// Package parser turns program source XML into a checked block tree.
package parser

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"cowboys.arena/internal/lang/blocks"
	"cowboys.arena/internal/lang/program"
	"cowboys.arena/internal/lang/value"
)

// Parse builds a program using the kinds allowed by cat. On failure it
// returns an invalid program that still carries src, plus the error.
func Parse(src string, cat *blocks.Catalog) (*program.Program, error) {
	p := &parseState{cat: cat, vars: map[string][]*blocks.VarRef{}}
	root, kinds, err := p.parse(src)
	if err != nil {
		return &program.Program{Source: src, Err: err, Declared: p.declared}, err
	}
	return &program.Program{Root: root, Vars: kinds, Declared: p.declared, Source: src}, nil
}

// parseState lives for one Parse call.
type parseState struct {
	cat      *blocks.Catalog
	declared []string
	vars     map[string][]*blocks.VarRef
}

func (p *parseState) parse(src string) (blocks.Stmt, map[string]value.Kind, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		return nil, nil, &blocks.ParseError{Msg: fmt.Sprintf("malformed xml: %v", err)}
	}
	top := doc.Root()
	if top == nil {
		return nil, nil, &blocks.ParseError{Msg: "empty document"}
	}

	var root blocks.Block
	for _, el := range top.ChildElements() {
		switch el.Tag {
		case "variables":
			if err := p.declare(el); err != nil {
				return nil, nil, err
			}
		case "block":
			if root != nil {
				return nil, nil, &blocks.ParseError{Msg: "multiple blocks, don't know where the program starts"}
			}
			kind := el.SelectAttrValue("type", "")
			b, err := p.block(fmt.Sprintf("block[%s]", kind), el)
			if err != nil {
				return nil, nil, err
			}
			root = b
		default:
			return nil, nil, &blocks.ParseError{Msg: fmt.Sprintf("unknown element %s", el.Tag)}
		}
	}
	if root == nil {
		return nil, nil, &blocks.ParseError{Msg: "no block to execute"}
	}
	stmt, ok := root.(blocks.Stmt)
	if !ok {
		return nil, nil, &blocks.ParseError{
			Path: fmt.Sprintf("block[%s]", root.Type()),
			Msg:  "program must start with a statement, not a value",
		}
	}
	kinds, err := p.reconcile()
	if err != nil {
		return nil, nil, err
	}
	return stmt, kinds, nil
}

func (p *parseState) declare(el *etree.Element) error {
	p.vars = map[string][]*blocks.VarRef{}
	p.declared = nil
	for _, v := range el.ChildElements() {
		name := strings.TrimSpace(v.Text())
		if _, dup := p.vars[name]; dup {
			return &blocks.ParseError{Msg: fmt.Sprintf("duplicate variable %s", name)}
		}
		p.vars[name] = nil
		p.declared = append(p.declared, name)
	}
	return nil
}

// reconcile merges the kinds every use site asked for. Sites that never got
// a kind do not constrain the variable.
func (p *parseState) reconcile() (map[string]value.Kind, error) {
	kinds := map[string]value.Kind{}
	for _, name := range p.declared {
		for _, ref := range p.vars[name] {
			if ref.Kind == value.Unresolved {
				continue
			}
			if k, ok := kinds[name]; ok && k != ref.Kind {
				return nil, &blocks.ParseError{Msg: fmt.Sprintf("variable %s has type conflict (%s and %s)", name, k, ref.Kind)}
			}
			kinds[name] = ref.Kind
		}
	}
	return kinds, nil
}

func (p *parseState) block(path string, el *etree.Element) (blocks.Block, error) {
	kind := el.SelectAttrValue("type", "")
	if kind == "" {
		return nil, &blocks.ParseError{Path: path, Msg: "missing type attribute"}
	}
	parts := blocks.Parts{
		Fields:     map[string]blocks.Field{},
		Values:     map[string]blocks.Block{},
		Statements: map[string]blocks.Block{},
	}

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "mutation":
			parts.Mutation = map[string]string{}
			for _, a := range child.Attr {
				parts.Mutation[a.Key] = a.Value
			}

		case "field":
			name := child.SelectAttrValue("name", "")
			fieldPath := fmt.Sprintf("%s.field[%s]", path, name)
			f, err := p.field(name, child.Text())
			if err != nil {
				return nil, blocks.AtPath(fieldPath, err)
			}
			if _, dup := parts.Fields[name]; dup {
				return nil, &blocks.ParseError{Path: fieldPath, Msg: "duplicate field"}
			}
			parts.Fields[name] = f

		case "value", "statement", "next":
			name := child.SelectAttrValue("name", "")
			slot := path + "." + child.Tag
			if name != "" {
				slot = fmt.Sprintf("%s[%s]", slot, name)
			}
			inner, err := onlyChild(slot, child)
			if err != nil {
				return nil, err
			}
			b, err := p.block(fmt.Sprintf("%s.%s[%s]", slot, inner.Tag, inner.SelectAttrValue("type", "")), inner)
			if err != nil {
				return nil, err
			}
			switch child.Tag {
			case "value":
				if _, dup := parts.Values[name]; dup {
					return nil, &blocks.ParseError{Path: slot, Msg: "duplicate value"}
				}
				parts.Values[name] = b
			case "statement":
				if _, dup := parts.Statements[name]; dup {
					return nil, &blocks.ParseError{Path: slot, Msg: "duplicate statement"}
				}
				parts.Statements[name] = b
			default:
				if parts.Next != nil {
					return nil, &blocks.ParseError{Path: path, Msg: "there cannot be multiple <next> in one block"}
				}
				parts.Next = b
			}
		}
	}

	b, err := p.cat.Build(kind, parts)
	if err != nil {
		return nil, blocks.AtPath(path, err)
	}
	return b, nil
}

func (p *parseState) field(name, text string) (blocks.Field, error) {
	if name != blocks.VarFieldName {
		return blocks.NewLiteral(name, text)
	}
	v := strings.TrimSpace(text)
	refs, ok := p.vars[v]
	if !ok {
		return nil, fmt.Errorf("variable %s not specified in <variables>", v)
	}
	ref := blocks.NewVarRef(v)
	p.vars[v] = append(refs, ref)
	return ref, nil
}

// onlyChild returns the single block wrapped by a value, statement or next
// element. A shadow followed by a real block yields the real one.
func onlyChild(path string, el *etree.Element) (*etree.Element, error) {
	children := el.ChildElements()
	if len(children) == 2 && children[0].Tag == "shadow" {
		children = children[1:]
	}
	if len(children) != 1 {
		return nil, &blocks.ParseError{Path: path, Msg: fmt.Sprintf("element <%s> needs exactly 1 child", el.Tag)}
	}
	c := children[0]
	if c.Tag != "block" && c.Tag != "shadow" {
		return nil, &blocks.ParseError{Path: path, Msg: fmt.Sprintf("expected <block> inside <%s> but <%s> found", el.Tag, c.Tag)}
	}
	return c, nil
}
