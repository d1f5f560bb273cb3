package back

import (
	"github.com/slowlang/smol/compiler/asm/rv64"
)

// linkage is saved ra and fp right above the frame pointer.
const linkage = 2 * rv64.WordSize

/*
Frame layout, stack grows down.

	caller frame
	ra              8(fp)
	saved fp        0(fp) <- fp
	locals         -8(fp), -16(fp), ...
	...
	saved s-regs    8*i(sp)
	                      <- sp = fp - StackSpace
*/

func Prologue(p *Program) []rv64.Instr {
	code := []rv64.Instr{
		rv64.ArithI{Op: rv64.Add, Dst: rv64.SP, Lhs: rv64.SP, Imm: -linkage},
		rv64.Sd{Dst: rv64.Mem{Base: rv64.SP, Off: rv64.WordSize}, Src: rv64.RA},
		rv64.Sd{Dst: rv64.Mem{Base: rv64.SP}, Src: rv64.FP},
		rv64.Mov(rv64.FP, rv64.SP),
	}

	if p.StackSpace != 0 {
		code = append(code, rv64.ArithI{Op: rv64.Add, Dst: rv64.SP, Lhs: rv64.SP, Imm: -p.StackSpace})
	}

	for i, r := range p.UsedRegs {
		code = append(code, rv64.Sd{Dst: savedSlot(i), Src: r})
	}

	return code
}

// Epilogue restores what Prologue saved in reverse order and returns.
func Epilogue(p *Program) []rv64.Instr {
	code := make([]rv64.Instr, 0, len(p.UsedRegs)+5)

	for i := len(p.UsedRegs) - 1; i >= 0; i-- {
		code = append(code, rv64.Ld{Dst: p.UsedRegs[i], Src: savedSlot(i)})
	}

	code = append(code,
		rv64.Mov(rv64.SP, rv64.FP),
		rv64.Ld{Dst: rv64.FP, Src: rv64.Mem{Base: rv64.SP}},
		rv64.Ld{Dst: rv64.RA, Src: rv64.Mem{Base: rv64.SP, Off: rv64.WordSize}},
		rv64.ArithI{Op: rv64.Add, Dst: rv64.SP, Lhs: rv64.SP, Imm: linkage},
		rv64.Ret(),
	)

	return code
}

func savedSlot(i int) rv64.Mem {
	return rv64.Mem{Base: rv64.SP, Off: int32(i * rv64.WordSize)}
}
