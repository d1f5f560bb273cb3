package ir

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	file struct {
		Entry  ID               `yaml:"entry"`
		Decl   []ID             `yaml:"decl"`
		Blocks map[ID]fileBlock `yaml:"blocks"`
	}

	fileBlock struct {
		Insn []insnNode `yaml:"insn"`
		Term []termNode `yaml:"term"`
	}

	insnNode struct {
		Insn
	}

	termNode struct {
		Term
	}
)

func ParseFile(ctx context.Context, name string) (*Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read ir file", "size", len(data), "name", name)

	return Parse(ctx, data)
}

// Parse decodes YAML (or JSON) encoded program.
func Parse(ctx context.Context, data []byte) (p *Program, err error) {
	var f file

	err = yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	p = &Program{
		Entry:  f.Entry,
		Decl:   Decls(f.Decl...),
		Blocks: make(map[ID]*Block, len(f.Blocks)),
	}

	if p.Entry != "" && !ValidID(p.Entry) {
		return nil, errors.Wrap(ErrMalformed, "entry: invalid identifier %q", p.Entry)
	}

	for _, id := range f.Decl {
		if !ValidID(id) {
			return nil, errors.Wrap(ErrMalformed, "decl: invalid identifier %q", id)
		}
	}

	for id, fb := range f.Blocks {
		if !ValidID(id) {
			return nil, errors.Wrap(ErrMalformed, "block: invalid identifier %q", id)
		}

		b := &Block{
			Insn: make([]Insn, len(fb.Insn)),
			Term: make([]Term, len(fb.Term)),
		}

		for i, x := range fb.Insn {
			b.Insn[i] = x.Insn
		}

		for i, x := range fb.Term {
			b.Term[i] = x.Term
		}

		p.Blocks[id] = b
	}

	tlog.SpanFromContext(ctx).V("ir").Printw("parsed ir", "entry", p.EntryBlock(), "decl", len(p.Decl), "blocks", len(p.Blocks))

	return p, nil
}

func (n *insnNode) UnmarshalYAML(v *yaml.Node) (err error) {
	key, val, err := oneKey(v)
	if err != nil {
		return err
	}

	switch key {
	case "copy":
		var x struct {
			Dst ID `yaml:"dst"`
			Src ID `yaml:"src"`
		}

		err = val.Decode(&x)
		n.Insn = Copy{Dst: x.Dst, Src: x.Src}

		err = checkIDs(err, val, x.Dst, x.Src)
	case "const":
		var x struct {
			Dst ID    `yaml:"dst"`
			Src int64 `yaml:"src"`
		}

		err = val.Decode(&x)
		n.Insn = Const{Dst: x.Dst, Src: x.Src}

		err = checkIDs(err, val, x.Dst)
	case "arith":
		var x struct {
			Op  string `yaml:"op"`
			Dst ID     `yaml:"dst"`
			Lhs ID     `yaml:"lhs"`
			Rhs ID     `yaml:"rhs"`
		}

		err = val.Decode(&x)
		if err != nil {
			break
		}

		op, ok := ParseOp(x.Op)
		if !ok {
			return errors.Wrap(ErrMalformed, "line %d: unsupported op %q", val.Line, x.Op)
		}

		n.Insn = Arith{Op: op, Dst: x.Dst, Lhs: x.Lhs, Rhs: x.Rhs}

		err = checkIDs(err, val, x.Dst, x.Lhs, x.Rhs)
	case "read":
		var id ID

		err = val.Decode(&id)
		n.Insn = Read(id)

		err = checkIDs(err, val, id)
	case "print":
		var id ID

		err = val.Decode(&id)
		n.Insn = Print(id)

		err = checkIDs(err, val, id)
	default:
		return errors.Wrap(ErrMalformed, "line %d: unsupported instruction %q", v.Line, key)
	}

	if err != nil {
		return errors.Wrap(err, "%v", key)
	}

	return nil
}

func (n *termNode) UnmarshalYAML(v *yaml.Node) (err error) {
	if v.Kind == yaml.ScalarNode && v.Value == "exit" {
		n.Term = Exit{}
		return nil
	}

	key, val, err := oneKey(v)
	if err != nil {
		return err
	}

	switch key {
	case "exit":
		n.Term = Exit{}
	case "jump":
		var id ID

		err = val.Decode(&id)
		n.Term = Jump(id)

		err = checkIDs(err, val, id)
	case "branch":
		var x struct {
			Guard ID `yaml:"guard"`
			TT    ID `yaml:"tt"`
			FF    ID `yaml:"ff"`
		}

		err = val.Decode(&x)
		n.Term = Branch{Guard: x.Guard, TT: x.TT, FF: x.FF}

		err = checkIDs(err, val, x.Guard, x.TT, x.FF)
	default:
		return errors.Wrap(ErrMalformed, "line %d: unsupported terminator %q", v.Line, key)
	}

	if err != nil {
		return errors.Wrap(err, "%v", key)
	}

	return nil
}

func oneKey(v *yaml.Node) (string, *yaml.Node, error) {
	if v.Kind != yaml.MappingNode || len(v.Content) != 2 {
		return "", nil, errors.Wrap(ErrMalformed, "line %d: expected single key mapping", v.Line)
	}

	return v.Content[0].Value, v.Content[1], nil
}

func checkIDs(err error, v *yaml.Node, ids ...ID) error {
	if err != nil {
		return err
	}

	for _, id := range ids {
		if !ValidID(id) {
			return errors.Wrap(ErrMalformed, "line %d: invalid identifier %q", v.Line, id)
		}
	}

	return nil
}
