package rv64

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/smol/compiler/set"
)

type (
	// Reg is a register of the integer register file, numbered as in hardware.
	Reg int

	RegSet = set.Bits[Reg]
)

const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	FP
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6

	NumRegs = iota
)

const WordSize = 8

// Scratch is reserved for lowering ArithI at emission time.
const Scratch = T6

var regNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var (
	ArgRegs = []Reg{A0, A1, A2, A3, A4, A5, A6, A7}

	// SavedRegs are callee-saved registers handled by generic save/restore.
	// FP and SP are callee-saved too but are kept by the frame code.
	SavedRegs = []Reg{S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}

	// CallerSaved are registers a callee is free to clobber.
	CallerSaved = []Reg{RA, T0, T1, T2, T3, T4, T5, T6, A0, A1, A2, A3, A4, A5, A6, A7}
)

var savedSet = set.Of(Zero, SavedRegs...)

func NewRegSet(r ...Reg) RegSet {
	return set.Of(Zero, r...)
}

func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return "reg?"
	}

	return regNames[r]
}

func (r Reg) IsCalleeSaved() bool {
	return savedSet.IsSet(r)
}

// SaveSet returns callee-saved registers from used in ascending order.
func SaveSet(used RegSet) []Reg {
	s := used.Copy()
	s.Intersect(savedSet)

	return s.Slice()
}

func ParseReg(name string) (Reg, bool) {
	if name == "s0" {
		return FP, true
	}

	for i, n := range regNames {
		if n == name {
			return Reg(i), true
		}
	}

	return -1, false
}

func (r Reg) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, r.String())
}
