package emu

import (
	"context"
	"io"
	"math"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/back"
)

type (
	// Hook implements a runtime function.
	// It gets a0 and returns a new a0 value.
	Hook func(m *Machine, a0 int64) (int64, error)

	// Machine executes a generated program word by word.
	// It is not a general purpose simulator: it only knows
	// instruction forms the back end emits.
	Machine struct {
		// Input is read by runtime read calls. Run doesn't modify it.
		Input []int64

		// Output is what the last Run printed.
		Output []int64

		// Stdout gets printed values one per line if set.
		Stdout io.Writer

		MaxSteps int
		Steps    int

		// GCRoot is what init_gc was called with.
		GCRoot int64

		in   []int64
		regs [rv64.NumRegs]int64
		mem  map[int64]int64
		brk  int64

		hooks map[rv64.Symbol]Hook

		code   []rv64.Instr
		labels map[rv64.Local]int
		global []int64
	}
)

const (
	StackTop   = 0x7fff_0000
	GlobalBase = 0x1000_0000
	HeapBase   = 0x2000_0000

	// Poison is written to caller-saved registers after a runtime call.
	Poison = 0x0bad_dead_beef

	retAddr = -1

	DefaultMaxSteps = 1_000_000
)

var (
	ErrStepLimit     = errors.New("step limit exceeded")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrClobbered     = errors.New("callee-saved register clobbered")
	ErrBadAccess     = errors.New("bad memory access")
	ErrInputEOF      = errors.New("input exhausted")
)

func New(rt back.Runtime) *Machine {
	m := &Machine{
		MaxSteps: DefaultMaxSteps,
		hooks:    make(map[rv64.Symbol]Hook),
	}

	m.Hook(rt.InitGC, initGC)
	m.Hook(rt.Alloc, alloc)
	m.Hook(rt.Read, read)
	m.Hook(rt.Print, printInt)

	return m
}

// Hook sets runtime function implementation.
func (m *Machine) Hook(sym rv64.Symbol, h Hook) {
	if sym == "" {
		return
	}

	m.hooks[sym] = h
}

func (m *Machine) Reg(r rv64.Reg) int64 {
	return m.regs[r]
}

// Load reads a memory word. Unwritten memory reads as zero.
func (m *Machine) Load(addr int64) (int64, error) {
	if addr%rv64.WordSize != 0 || addr <= 0 {
		return 0, errors.Wrap(ErrBadAccess, "load %#x", addr)
	}

	return m.mem[addr], nil
}

func (m *Machine) Store(addr, v int64) error {
	if addr%rv64.WordSize != 0 || addr <= 0 {
		return errors.Wrap(ErrBadAccess, "store %#x", addr)
	}

	m.mem[addr] = v

	return nil
}

// Run executes p from its prologue until it returns to the caller.
// It checks callee-saved registers are restored at that point.
func (m *Machine) Run(ctx context.Context, p *back.Program) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emu: run", "symbol", p.ID, "input", len(m.Input))
	defer tr.Finish("err", &err)

	err = back.Verify(p)
	if err != nil {
		return errors.Wrap(err, "verify")
	}

	m.load(p)

	m.in = append([]int64(nil), m.Input...)
	m.Output = nil
	m.mem = make(map[int64]int64)
	m.brk = HeapBase
	m.regs = [rv64.NumRegs]int64{}
	m.Steps = 0

	m.regs[rv64.SP] = StackTop
	m.regs[rv64.FP] = StackTop + 0x100
	m.regs[rv64.RA] = retAddr
	m.regs[rv64.GP] = GlobalBase

	for i, r := range rv64.SavedRegs {
		m.regs[r] = int64(0x5500 + i)
	}

	entry := m.regs

	pc := 0

	for pc != retAddr {
		if m.MaxSteps != 0 && m.Steps >= m.MaxSteps {
			return errors.Wrap(ErrStepLimit, "after %d steps", m.Steps)
		}

		if m.Steps&0x3ff == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}

		if pc < 0 || pc >= len(m.code) {
			return errors.New("pc out of code: %d", pc)
		}

		m.Steps++

		x := m.code[pc]

		if tr.If("emu_trace") {
			tr.Printw("step", "pc", pc, "instr", rv64.String(x))
		}

		pc, err = m.step(pc, x)
		if err != nil {
			return errors.Wrap(err, "pc %d: %v", pc, rv64.String(x))
		}
	}

	for _, r := range append([]rv64.Reg{rv64.SP, rv64.FP}, rv64.SavedRegs...) {
		if m.regs[r] != entry[r] {
			return errors.Wrap(ErrClobbered, "%v: %#x, was %#x", r, m.regs[r], entry[r])
		}
	}

	tr.Printw("finished", "steps", m.Steps, "output", len(m.Output))

	return nil
}

func (m *Machine) load(p *back.Program) {
	m.code = m.code[:0]
	m.labels = make(map[rv64.Local]int, len(p.Blocks))

	for _, x := range append(back.Prologue(p), p.Start...) {
		m.code = append(m.code, rv64.Lower(x)...)
	}

	for _, name := range p.Order() {
		bb := p.Blocks[name]

		m.labels[bb.Label] = len(m.code)

		for _, x := range bb.Code {
			m.code = append(m.code, rv64.Lower(x)...)
		}
	}

	m.global = m.global[:0]
	addr := int64(GlobalBase)

	for _, g := range p.Globals {
		m.global = append(m.global, addr)
		addr += (int64(g.Size) + 7) &^ 7
	}
}

func (m *Machine) step(pc int, x rv64.Instr) (int, error) {
	next := pc + 1

	switch x := x.(type) {
	case rv64.Comment:
	case rv64.Li:
		m.set(x.Dst, x.Imm)
	case rv64.La:
		addr, err := m.addr(x.Src)
		if err != nil {
			return pc, err
		}

		m.set(x.Dst, addr)
	case rv64.Ld:
		addr, err := m.addr(x.Src)
		if err != nil {
			return pc, err
		}

		v, err := m.Load(addr)
		if err != nil {
			return pc, err
		}

		m.set(x.Dst, v)
	case rv64.Sd:
		addr, err := m.addr(x.Dst)
		if err != nil {
			return pc, err
		}

		err = m.Store(addr, m.regs[x.Src])
		if err != nil {
			return pc, err
		}
	case rv64.Arith:
		v, err := arith(x.Op, m.regs[x.Lhs], m.regs[x.Rhs])
		if err != nil {
			return pc, err
		}

		m.set(x.Dst, v)
	case rv64.SCmpZ:
		if cond(x.Cond, m.regs[x.Lhs], 0) {
			m.set(x.Dst, 1)
		} else {
			m.set(x.Dst, 0)
		}
	case rv64.Branch:
		if !cond(x.Cond, m.regs[x.Lhs], m.regs[x.Rhs]) {
			break
		}

		return m.jump(x.Target)
	case rv64.Jal:
		if sym, ok := x.Target.(rv64.Symbol); ok {
			if x.Dst != rv64.RA {
				return pc, errors.New("tail call to %v", sym)
			}

			m.set(rv64.RA, int64(next))

			err := m.call(sym)
			if err != nil {
				return pc, err
			}

			return int(m.regs[rv64.RA]), nil
		}

		m.set(x.Dst, int64(next))

		return m.jump(x.Target)
	case rv64.Jalr:
		to := m.regs[x.Target]
		m.set(x.Dst, int64(next))

		if to > math.MaxInt32 || to < retAddr {
			return pc, errors.New("bad return address: %#x", to)
		}

		return int(to), nil
	default:
		return pc, errors.New("unsupported instruction: %T", x)
	}

	return next, nil
}

// call runs a runtime hook as if it was a real function
// returning to ra and clobbering caller-saved registers.
func (m *Machine) call(sym rv64.Symbol) error {
	h, ok := m.hooks[sym]
	if !ok {
		return errors.Wrap(ErrUnknownSymbol, "%v", sym)
	}

	ra := m.regs[rv64.RA]

	res, err := h(m, m.regs[rv64.A0])
	if err != nil {
		return errors.Wrap(err, "%v", sym)
	}

	for _, r := range rv64.CallerSaved {
		m.regs[r] = Poison
	}

	m.regs[rv64.RA] = ra
	m.regs[rv64.A0] = res

	return nil
}

func (m *Machine) jump(t rv64.Target) (int, error) {
	l, ok := t.(rv64.Local)
	if !ok {
		return 0, errors.New("bad jump target: %v", t)
	}

	pc, ok := m.labels[l]
	if !ok {
		return 0, errors.Wrap(ErrUnknownSymbol, "label %v", l)
	}

	return pc, nil
}

func (m *Machine) addr(l rv64.Memory) (int64, error) {
	switch l := l.(type) {
	case rv64.Mem:
		return m.regs[l.Base] + int64(l.Off), nil
	case rv64.Global:
		if l.Index < 0 || l.Index >= len(m.global) {
			return 0, errors.Wrap(ErrBadAccess, "global#%d", l.Index)
		}

		return m.global[l.Index] + int64(l.Off), nil
	default:
		return 0, errors.New("unsupported operand: %T", l)
	}
}

func (m *Machine) set(r rv64.Reg, v int64) {
	if r == rv64.Zero {
		return
	}

	m.regs[r] = v
}

func arith(op rv64.ArithOp, l, r int64) (int64, error) {
	switch op {
	case rv64.Add:
		return l + r, nil
	case rv64.Sub:
		return l - r, nil
	case rv64.Mul:
		return l * r, nil
	case rv64.Div:
		switch {
		case r == 0:
			return -1, nil
		case l == math.MinInt64 && r == -1:
			return l, nil
		}

		return l / r, nil
	case rv64.Slt:
		if l < r {
			return 1, nil
		}

		return 0, nil
	case rv64.And:
		return l & r, nil
	case rv64.Or:
		return l | r, nil
	case rv64.Xor:
		return l ^ r, nil
	case rv64.Sll:
		return l << (r & 63), nil
	case rv64.Srl:
		return int64(uint64(l) >> (r & 63)), nil
	case rv64.Sra:
		return l >> (r & 63), nil
	default:
		return 0, errors.New("unsupported op: %v", op)
	}
}

func cond(c rv64.Cond, l, r int64) bool {
	switch c {
	case rv64.Eq:
		return l == r
	case rv64.Ne:
		return l != r
	case rv64.Lt:
		return l < r
	case rv64.Le:
		return l <= r
	case rv64.Gt:
		return l > r
	case rv64.Ge:
		return l >= r
	default:
		return false
	}
}

func initGC(m *Machine, a0 int64) (int64, error) {
	m.GCRoot = a0

	return 0, nil
}

func alloc(m *Machine, size int64) (int64, error) {
	if size < 0 {
		return 0, errors.New("negative size: %d", size)
	}

	p := m.brk
	m.brk += (size + 7) &^ 7

	return p, nil
}

func read(m *Machine, _ int64) (int64, error) {
	if len(m.in) == 0 {
		return 0, ErrInputEOF
	}

	v := m.in[0]
	m.in = m.in[1:]

	return v, nil
}

func printInt(m *Machine, a0 int64) (int64, error) {
	m.Output = append(m.Output, a0)

	if m.Stdout != nil {
		_, err := m.Stdout.Write(hfmt.Appendf(nil, "%d\n", a0))
		if err != nil {
			return 0, errors.Wrap(err, "write")
		}
	}

	return 0, nil
}
