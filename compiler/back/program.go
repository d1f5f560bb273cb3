package back

import (
	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/ir"
)

type (
	BasicBlock struct {
		Label rv64.Local
		Code  []rv64.Instr
	}

	// Slot is a stack slot of an IR identifier, an offset from fp.
	Slot struct {
		ID  ir.ID
		Off int32
	}

	GlobalVar struct {
		Name string
		Size int32
	}

	Program struct {
		ID    string
		Entry string

		// Start runs once after the prologue, before the entry block.
		// It's not a jump target.
		Start []rv64.Instr

		Blocks map[string]*BasicBlock

		// StackSpace is reserved below the saved fp and ra
		// for locals and saved registers.
		StackSpace int32

		// UsedRegs are callee-saved registers used by the code
		// which prologue saves and epilogue restores.
		UsedRegs []rv64.Reg

		// Frame in allocation order.
		Frame []Slot

		Globals []GlobalVar
	}
)

// Order is the block emission order: entry first, others by name.
func (p *Program) Order() []string {
	l := make([]string, 0, len(p.Blocks))

	for name := range p.Blocks {
		l = append(l, name)
	}

	return ir.SortEntryFirst(p.Entry, l)
}

func (p *Program) Slot(id ir.ID) (rv64.Mem, bool) {
	for _, s := range p.Frame {
		if s.ID == id {
			return rv64.Mem{Base: rv64.FP, Off: s.Off}, true
		}
	}

	return rv64.Mem{}, false
}

func (p *Program) Local(name string) rv64.Local {
	return rv64.Local{Scope: p.ID, Name: name}
}

func align16(n int32) int32 {
	return (n + 15) &^ 15
}
