package back

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/smol/compiler/asm/rv64"
)

// AsmCode returns p assembly text.
func AsmCode(ctx context.Context, p *Program) (string, error) {
	b, err := AppendAsm(ctx, nil, p)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// AppendAsm appends p assembly text to b.
// Nothing is appended if p doesn't pass Verify.
func AppendAsm(ctx context.Context, b []byte, p *Program) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: assemble", "symbol", p.ID, "blocks", len(p.Blocks))
	defer tr.Finish("err", &err)

	err = Verify(p)
	if err != nil {
		return nil, errors.Wrap(err, "verify")
	}

	st := len(b)

	b = hfmt.Appendf(b, `# program %s

	.text
	.align 2
	.globl %[1]s
%[1]s:
`, p.ID)

	b = appendCode(b, Prologue(p))
	b = appendCode(b, p.Start)

	for _, name := range p.Order() {
		bb := p.Blocks[name]

		b = rv64.AppendTarget(b, bb.Label)
		b = append(b, ":\n"...)

		b = appendCode(b, bb.Code)
	}

	if len(p.Globals) != 0 {
		b = append(b, "\n\t.data\n"...)

		for i, g := range p.Globals {
			b = hfmt.Appendf(b, "\t.align 3\n%s:\t# global#%d\n\t.zero %d\n", g.Name, i, g.Size)
		}
	}

	tr.Printw("assembled", "size", len(b)-st)

	return b, nil
}

func appendCode(b []byte, code []rv64.Instr) []byte {
	for _, x := range code {
		for _, y := range rv64.Lower(x) {
			b = append(b, '\t')
			b = rv64.AppendInstr(b, y)
			b = append(b, '\n')
		}
	}

	return b
}
