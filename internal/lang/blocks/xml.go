package blocks

import "github.com/beevik/etree"

// XMLNamespace is the namespace of the program source documents.
const XMLNamespace = "https://developers.google.com/blockly/xml"

// Marshal writes a tree back out in the source XML format.
func Marshal(root Block, vars []string) (string, error) {
	doc := etree.NewDocument()
	top := doc.CreateElement("xml")
	top.CreateAttr("xmlns", XMLNamespace)
	if len(vars) > 0 {
		decl := top.CreateElement("variables")
		for _, v := range vars {
			decl.CreateElement("variable").SetText(v)
		}
	}
	if root != nil {
		writeBlock(top, root)
	}
	doc.Indent(2)
	return doc.WriteToString()
}

func writeBlock(parent *etree.Element, b Block) {
	n := b.structure()
	el := parent.CreateElement("block")
	el.CreateAttr("type", n.kind)
	if len(n.mutation) > 0 {
		m := el.CreateElement("mutation")
		for _, k := range keysOf(n.mutation) {
			m.CreateAttr(k, n.mutation[k])
		}
	}
	for _, f := range n.fields {
		fe := el.CreateElement("field")
		fe.CreateAttr("name", f.FieldName())
		fe.SetText(f.text())
	}
	for _, v := range n.values {
		writeBlock(named(el, "value", v.name), v.expr)
	}
	for _, s := range n.statements {
		writeBlock(named(el, "statement", s.name), s.stmt)
	}
	if n.next != nil {
		writeBlock(el.CreateElement("next"), n.next)
	}
}

func named(parent *etree.Element, tag, name string) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr("name", name)
	return el
}

// Walk visits every block of the tree depth first: values, statements,
// then the next chain.
func Walk(root Block, fn func(Block)) {
	if root == nil {
		return
	}
	fn(root)
	n := root.structure()
	for _, v := range n.values {
		Walk(v.expr, fn)
	}
	for _, s := range n.statements {
		Walk(s.stmt, fn)
	}
	if n.next != nil {
		Walk(n.next, fn)
	}
}

// Kinds returns every block kind in the tree, depth first.
func Kinds(root Block) []string {
	var out []string
	Walk(root, func(b Block) { out = append(out, b.Type()) })
	return out
}

// VarRefs returns every variable use site in the tree.
func VarRefs(root Block) []*VarRef {
	var out []*VarRef
	Walk(root, func(b Block) {
		for _, f := range b.structure().fields {
			if v, ok := f.(*VarRef); ok {
				out = append(out, v)
			}
		}
	})
	return out
}
