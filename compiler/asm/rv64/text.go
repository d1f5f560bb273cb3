package rv64

import (
	"github.com/nikandfor/hacked/hfmt"
)

// Lower expands convenience forms into real instructions.
// ArithI becomes Li into Scratch followed by Arith,
// zero immediate uses the zero register and needs no scratch.
func Lower(x Instr) []Instr {
	a, ok := x.(ArithI)
	if !ok {
		return []Instr{x}
	}

	if a.Imm == 0 {
		return []Instr{Arith{Op: a.Op, Dst: a.Dst, Lhs: a.Lhs, Rhs: Zero}}
	}

	return []Instr{
		Li{Dst: Scratch, Imm: int64(a.Imm)},
		Arith{Op: a.Op, Dst: a.Dst, Lhs: a.Lhs, Rhs: Scratch},
	}
}

// AppendInstr appends x in assembly syntax without indentation or newline.
func AppendInstr(b []byte, x Instr) []byte {
	switch x := x.(type) {
	case La:
		b = hfmt.Appendf(b, "la\t%v, ", x.Dst)
		b = AppendLocation(b, x.Src)
	case Ld:
		b = hfmt.Appendf(b, "ld\t%v, ", x.Dst)
		b = AppendLocation(b, x.Src)
	case Sd:
		b = hfmt.Appendf(b, "sd\t%v, ", x.Src)
		b = AppendLocation(b, x.Dst)
	case Li:
		b = hfmt.Appendf(b, "li\t%v, %d", x.Dst, x.Imm)
	case Arith:
		b = hfmt.Appendf(b, "%v\t%v, %v, %v", x.Op, x.Dst, x.Lhs, x.Rhs)
	case ArithI:
		b = hfmt.Appendf(b, "%vi\t%v, %v, %d", x.Op, x.Dst, x.Lhs, x.Imm)
	case Jal:
		b = hfmt.Appendf(b, "jal\t%v, ", x.Dst)
		b = AppendTarget(b, x.Target)
	case Jalr:
		b = hfmt.Appendf(b, "jalr\t%v, 0(%v)", x.Dst, x.Target)
	case Branch:
		b = hfmt.Appendf(b, "b%v\t%v, %v, ", x.Cond, x.Lhs, x.Rhs)
		b = AppendTarget(b, x.Target)
	case SCmpZ:
		b = hfmt.Appendf(b, "s%vz\t%v, %v", x.Cond, x.Dst, x.Lhs)
	case Comment:
		b = hfmt.Appendf(b, "# %q", string(x))
	default:
		panic(x)
	}

	return b
}

func AppendLocation(b []byte, l Location) []byte {
	switch l := l.(type) {
	case Reg:
		return append(b, l.String()...)
	case Mem:
		return hfmt.Appendf(b, "%d(%v)", l.Off, l.Base)
	case Global:
		return hfmt.Appendf(b, "%d(global#%d)", l.Off, l.Index)
	default:
		panic(l)
	}
}

func AppendTarget(b []byte, t Target) []byte {
	switch t := t.(type) {
	case Local:
		return hfmt.Appendf(b, "%s.%s", t.Scope, t.Name)
	case Symbol:
		return append(b, string(t)...)
	default:
		panic(t)
	}
}

func String(x Instr) string {
	return string(AppendInstr(nil, x))
}
