package ir

import (
	"github.com/nikandfor/hacked/hfmt"
)

// Format appends textual form of the program.
func Format(b []byte, p *Program) []byte {
	b = hfmt.Appendf(b, "entry %s\n", p.EntryBlock())

	b = append(b, "decl"...)

	for _, id := range p.Decl.Sorted() {
		b = hfmt.Appendf(b, " %s", id)
	}

	b = append(b, '\n')

	for _, id := range p.Order() {
		b = hfmt.Appendf(b, "\n%s:\n", id)

		bl := p.Blocks[id]
		if bl == nil {
			continue
		}

		for _, x := range bl.Insn {
			b = append(b, '\t')
			b = AppendInsn(b, x)
			b = append(b, '\n')
		}

		for _, x := range bl.Term {
			b = append(b, '\t')
			b = AppendTerm(b, x)
			b = append(b, '\n')
		}
	}

	return b
}

func AppendInsn(b []byte, x Insn) []byte {
	switch x := x.(type) {
	case Copy:
		return hfmt.Appendf(b, "%s = %s", x.Dst, x.Src)
	case Const:
		return hfmt.Appendf(b, "%s = %d", x.Dst, x.Src)
	case Arith:
		return hfmt.Appendf(b, "%s = %s %s %s", x.Dst, x.Lhs, x.Op.Symbol(), x.Rhs)
	case Read:
		return hfmt.Appendf(b, "read %s", ID(x))
	case Print:
		return hfmt.Appendf(b, "print %s", ID(x))
	default:
		return hfmt.Appendf(b, "<%T>", x)
	}
}

func AppendTerm(b []byte, x Term) []byte {
	switch x := x.(type) {
	case Exit:
		return append(b, "exit"...)
	case Jump:
		return hfmt.Appendf(b, "jump %s", ID(x))
	case Branch:
		return hfmt.Appendf(b, "branch %s ? %s : %s", x.Guard, x.TT, x.FF)
	default:
		return hfmt.Appendf(b, "<%T>", x)
	}
}
