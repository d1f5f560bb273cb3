package rv64

import "strconv"

type (
	// Instr is one of the instruction forms below.
	Instr interface {
		UsedRegs() []Reg

		instr()
	}

	ArithOp int
	Cond    int

	// Target is a Local or a Symbol.
	Target interface {
		target()
	}

	// Local is a basic block label qualified by its owning scope.
	Local struct {
		Scope string
		Name  string
	}

	// Symbol is a global target: a runtime function or the program entry.
	Symbol string

	La struct {
		Dst Reg
		Src Memory
	}

	Ld struct {
		Dst Reg
		Src Memory
	}

	Sd struct {
		Dst Memory
		Src Reg
	}

	Li struct {
		Dst Reg
		Imm int64
	}

	Arith struct {
		Op  ArithOp
		Dst Reg
		Lhs Reg
		Rhs Reg
	}

	// ArithI is lowered to Li into Scratch followed by Arith.
	ArithI struct {
		Op  ArithOp
		Dst Reg
		Lhs Reg
		Imm int32
	}

	Jal struct {
		Dst    Reg
		Target Target
	}

	Jalr struct {
		Dst    Reg
		Target Reg
	}

	Branch struct {
		Cond   Cond
		Lhs    Reg
		Rhs    Reg
		Target Target
	}

	// SCmpZ sets Dst to 1 if Lhs Cond 0, and to 0 otherwise.
	SCmpZ struct {
		Cond Cond
		Dst  Reg
		Lhs  Reg
	}

	Comment string
)

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Slt
	And
	Or
	Xor
	Srl
	Sra
	Sll
)

const (
	Eq Cond = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var opNames = []string{
	Add: "add",
	Sub: "sub",
	Mul: "mul",
	Div: "div",
	Slt: "slt",
	And: "and",
	Or:  "or",
	Xor: "xor",
	Srl: "srl",
	Sra: "sra",
	Sll: "sll",
}

var condNames = []string{
	Eq: "eq",
	Ne: "ne",
	Lt: "lt",
	Le: "le",
	Gt: "gt",
	Ge: "ge",
}

func Jump(t Target) Instr {
	return Jal{Dst: Zero, Target: t}
}

func Call(sym Symbol) Instr {
	return Jal{Dst: RA, Target: sym}
}

func Ret() Instr {
	return Jalr{Dst: Zero, Target: RA}
}

func Mov(dst, src Reg) Instr {
	return ArithI{Op: Add, Dst: dst, Lhs: src}
}

// Load reads src into dst. It's a move if src is a register.
func Load(dst Reg, src Location) Instr {
	switch src := src.(type) {
	case Reg:
		return Mov(dst, src)
	case Memory:
		return Ld{Dst: dst, Src: src}
	default:
		panic(src)
	}
}

// Store writes src to dst. It's a move if dst is a register.
func Store(dst Location, src Reg) Instr {
	switch dst := dst.(type) {
	case Reg:
		return Mov(dst, src)
	case Memory:
		return Sd{Dst: dst, Src: src}
	default:
		panic(dst)
	}
}

func (x La) UsedRegs() []Reg { return append([]Reg{x.Dst}, x.Src.UsedRegs()...) }
func (x Ld) UsedRegs() []Reg { return append([]Reg{x.Dst}, x.Src.UsedRegs()...) }
func (x Sd) UsedRegs() []Reg { return append(x.Dst.UsedRegs(), x.Src) }

func (x Li) UsedRegs() []Reg     { return []Reg{x.Dst} }
func (x Arith) UsedRegs() []Reg  { return []Reg{x.Dst, x.Lhs, x.Rhs} }
func (x ArithI) UsedRegs() []Reg { return []Reg{x.Dst, x.Lhs} }
func (x Jal) UsedRegs() []Reg    { return []Reg{x.Dst} }
func (x Jalr) UsedRegs() []Reg   { return []Reg{x.Target, x.Dst} }
func (x Branch) UsedRegs() []Reg { return []Reg{x.Lhs, x.Rhs} }
func (x SCmpZ) UsedRegs() []Reg  { return []Reg{x.Lhs, x.Dst} }

func (x Comment) UsedRegs() []Reg { return nil }

func (La) instr()      {}
func (Ld) instr()      {}
func (Sd) instr()      {}
func (Li) instr()      {}
func (Arith) instr()   {}
func (ArithI) instr()  {}
func (Jal) instr()     {}
func (Jalr) instr()    {}
func (Branch) instr()  {}
func (SCmpZ) instr()   {}
func (Comment) instr() {}

func (Local) target()  {}
func (Symbol) target() {}

func (l Local) String() string {
	return l.Scope + "." + l.Name
}

func (op ArithOp) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "op" + strconv.Itoa(int(op))
	}

	return opNames[op]
}

func (c Cond) String() string {
	if c < 0 || int(c) >= len(condNames) {
		return "cond" + strconv.Itoa(int(c))
	}

	return condNames[c]
}

// UsedRegSet is a union of registers used by all the instructions.
func UsedRegSet(code ...[]Instr) RegSet {
	s := NewRegSet()

	for _, l := range code {
		for _, x := range l {
			s.SetAll(x.UsedRegs()...)
		}
	}

	return s
}
