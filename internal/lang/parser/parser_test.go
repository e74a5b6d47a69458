package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cowboys.arena/internal/lang/blocks"
	"cowboys.arena/internal/lang/value"
)

const head = `<xml xmlns="https://developers.google.com/blockly/xml">`

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		path string
		msg  string
	}{
		{"not xml", `<xml`, "", "malformed xml"},
		{"no block", head + `</xml>`, "", "no block to execute"},
		{"two roots", head + `<block type="nop"></block><block type="nop"></block></xml>`, "", "multiple blocks"},
		{"unknown element", head + `<foo/></xml>`, "", "unknown element foo"},
		{"duplicate variable", head + `<variables><variable>a</variable><variable>a</variable></variables><block type="nop"></block></xml>`, "", "duplicate variable a"},
		{"unknown block", head + `<block type="teleport"></block></xml>`, "block[teleport]", "unknown block teleport"},
		{"missing type", head + `<block></block></xml>`, "block[]", "missing type attribute"},
		{
			"bad field deep inside",
			head + `<block type="fire_direction_by_number"><value name="DIRECTION"><block type="math_abs"><value name="NUM"><block type="math_number"><field name="NUM">abc</field></block></value></block></value></block></xml>`,
			"block[fire_direction_by_number].value[DIRECTION].block[math_abs].value[NUM].block[math_number].field[NUM]",
			"not an integer",
		},
		{
			"dropdown",
			head + `<block type="fire_direction"><field name="DIRECTION">UP</field></block></xml>`,
			"block[fire_direction]",
			"unknown option",
		},
		{
			"undeclared variable",
			head + `<block type="variables_set"><field name="VAR">x</field><value name="VALUE"><block type="math_number"><field name="NUM">1</field></block></value></block></xml>`,
			"block[variables_set].field[VAR]",
			"not specified",
		},
		{
			"two children",
			head + `<block type="move_direction_number"><value name="DIRECTION"><block type="info_turn"></block><block type="info_turn"></block></value></block></xml>`,
			"block[move_direction_number].value[DIRECTION]",
			"exactly 1 child",
		},
		{
			"wrong child",
			head + `<block type="move_direction_number"><value name="DIRECTION"><field name="X">1</field></value></block></xml>`,
			"block[move_direction_number].value[DIRECTION]",
			"expected <block>",
		},
		{
			"two next",
			head + `<block type="variables_set"><field name="VAR">x</field><value name="VALUE"><block type="info_turn"></block></value><next><block type="nop"></block></next><next><block type="nop"></block></next></block></xml>`,
			"",
			"",
		},
		{
			"value as root",
			head + `<block type="info_turn"></block></xml>`,
			"block[info_turn]",
			"must start with a statement",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := tc.src
			if tc.name == "two next" {
				src = strings.Replace(src, head, head+`<variables><variable>x</variable></variables>`, 1)
				tc.path, tc.msg = "block[variables_set]", "multiple <next>"
			}
			p, err := Parse(src, blocks.CowboyCatalog())
			if err == nil {
				t.Fatalf("expected error")
			}
			if p == nil || p.Valid() || p.Source != src {
				t.Fatalf("invalid program must keep source: %+v", p)
			}
			var pe *blocks.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("not a ParseError: %T %v", err, err)
			}
			if pe.Path != tc.path {
				t.Fatalf("path: got %q want %q", pe.Path, tc.path)
			}
			if !strings.Contains(pe.Msg, tc.msg) {
				t.Fatalf("msg: got %q want %q", pe.Msg, tc.msg)
			}
		})
	}
}

func TestShadowIsReplacedByBlock(t *testing.T) {
	src := head + `<block type="move_direction_number"><value name="DIRECTION">` +
		`<shadow type="math_number"><field name="NUM">0</field></shadow>` +
		`<block type="math_number"><field name="NUM">4</field></block>` +
		`</value></block></xml>`
	p, err := Parse(src, blocks.CowboyCatalog())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := p.Execute(10, nil, nil)
	if !res.OK || res.Action.String() != "MOVE(E)" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestShadowAloneIsUsed(t *testing.T) {
	src := head + `<block type="move_direction_number"><value name="DIRECTION">` +
		`<shadow type="math_number"><field name="NUM">6</field></shadow>` +
		`</value></block></xml>`
	p, err := Parse(src, blocks.CowboyCatalog())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res := p.Execute(10, nil, nil); res.Action.String() != "MOVE(S)" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBulletCatalogRejectsCowboyBlocks(t *testing.T) {
	src := head + `<block type="fire_direction"><field name="DIRECTION">N</field></block></xml>`
	if _, err := Parse(src, blocks.BulletCatalog()); err == nil {
		t.Fatalf("bullets cannot fire")
	}
	if _, err := Parse(head+`<block type="bullet_left"></block></xml>`, blocks.BulletCatalog()); err != nil {
		t.Fatalf("bullet_left: %v", err)
	}
}

const getX = `<block type="variables_get"><field name="VAR">x</field></block>`

func TestVariableKinds(t *testing.T) {
	decl := `<variables><variable>x</variable></variables>`
	cases := []struct {
		name    string
		body    string
		want    map[string]value.Kind
		wantErr string
	}{
		{
			name: "int then bool conflicts",
			body: `<block type="controls_if"><value name="IF0"><block type="logic_negate"><value name="BOOL">` + getX + `</value></block></value>` +
				`<statement name="DO0"><block type="move_direction_number"><value name="DIRECTION">` + getX + `</value></block></statement></block>`,
			wantErr: "type conflict",
		},
		{
			name: "equality only stays unresolved",
			body: `<block type="controls_if"><value name="IF0"><block type="logic_compare"><field name="OP">EQ</field>` +
				`<value name="A">` + getX + `</value><value name="B">` + getX + `</value></block></value>` +
				`<statement name="DO0"><block type="nop"></block></statement></block>`,
			want: map[string]value.Kind{},
		},
		{
			name: "ordering pins int",
			body: `<block type="controls_if"><value name="IF0"><block type="logic_compare"><field name="OP">LT</field>` +
				`<value name="A">` + getX + `</value><value name="B"><block type="info_turn"></block></value></block></value>` +
				`<statement name="DO0"><block type="nop"></block></statement></block>`,
			want: map[string]value.Kind{"x": value.Int},
		},
		{
			name: "set pins position",
			body: `<block type="variables_set"><field name="VAR">x</field><value name="VALUE"><block type="info_position"></block></value>` +
				`<next><block type="nop"></block></next></block>`,
			want: map[string]value.Kind{"x": value.Position},
		},
		{
			name: "set position then add conflicts",
			body: `<block type="variables_set"><field name="VAR">x</field><value name="VALUE"><block type="info_position"></block></value>` +
				`<next><block type="math_change"><field name="VAR">x</field><value name="DELTA"><block type="math_number"><field name="NUM">1</field></block></value>` +
				`<next><block type="nop"></block></next></block></next></block>`,
			wantErr: "type conflict",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(head+decl+tc.body+`</xml>`, blocks.CowboyCatalog())
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("got %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tc.want, p.Vars); diff != "" {
				t.Fatalf("kinds (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	src := head + `<variables><variable>i</variable><variable>p</variable></variables>` +
		`<block type="variables_set"><field name="VAR">p</field><value name="VALUE"><block type="info_position"></block></value><next>` +
		`<block type="controls_for"><field name="VAR">i</field>` +
		`<value name="FROM"><block type="math_number"><field name="NUM">0</field></block></value>` +
		`<value name="TO"><block type="math_number"><field name="NUM">8</field></block></value>` +
		`<value name="BY"><block type="math_number"><field name="NUM">2</field></block></value>` +
		`<statement name="DO"><block type="controls_if"><mutation elseif="0" else="1"></mutation>` +
		`<value name="IF0"><block type="info_map_position"><field name="ENTITY">COWBOY</field><value name="POSITION">` +
		`<block type="modify_position"><value name="POSITION"><block type="variables_get"><field name="VAR">p</field></block></value>` +
		`<value name="DIRECTION"><block type="variables_get"><field name="VAR">i</field></block></value></block>` +
		`</value></block></value>` +
		`<statement name="DO0"><block type="fire_direction_by_number"><value name="DIRECTION"><block type="variables_get"><field name="VAR">i</field></block></value></block></statement>` +
		`<statement name="ELSE"><block type="variables_set"><field name="VAR">p</field><value name="VALUE"><block type="variables_get"><field name="VAR">p</field></block></value></block></statement>` +
		`</block></statement>` +
		`<next><block type="move_direction"><field name="DIRECTION">W</field></block></next>` +
		`</block></next></block></xml>`

	first, err := Parse(src, blocks.CowboyCatalog())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := blocks.Marshal(first.Root, first.Declared)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Parse(out, blocks.CowboyCatalog())
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	if diff := cmp.Diff(blocks.Kinds(first.Root), blocks.Kinds(second.Root)); diff != "" {
		t.Fatalf("kinds (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Vars, second.Vars); diff != "" {
		t.Fatalf("vars (-first +second):\n%s", diff)
	}
	if first.Vars["p"] != value.Position || first.Vars["i"] != value.Int {
		t.Fatalf("unexpected kinds %v", first.Vars)
	}
}
