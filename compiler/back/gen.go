package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/ir"
)

type (
	Compiler struct {
		Config
	}

	gen struct {
		*Compiler

		p     *ir.Program
		scope string

		slots map[ir.ID]int32
		frame []Slot
		size  int32

		code []rv64.Instr
	}
)

func New(cfg Config) *Compiler {
	return &Compiler{Config: cfg}
}

// Generate lowers p into a Program using DefaultConfig.
func Generate(ctx context.Context, p *ir.Program) (*Program, error) {
	return New(DefaultConfig()).Generate(ctx, p)
}

// Compile generates p and appends its assembly text to b.
func (c *Compiler) Compile(ctx context.Context, b []byte, p *ir.Program) (_ []byte, err error) {
	prog, err := c.Generate(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	b, err = AppendAsm(ctx, b, prog)
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}

	return b, nil
}

func (c *Compiler) Generate(ctx context.Context, p *ir.Program) (_ *Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: generate", "symbol", c.Symbol, "blocks", len(p.Blocks), "decl", len(p.Decl))
	defer tr.Finish("err", &err)

	if tr.If("dump_ir") {
		tr.Printw("ir", "text", string(ir.Format(nil, p)))
	}

	if c.Symbol == "" || !ir.ValidID(ir.ID(c.Symbol)) {
		return nil, errors.New("bad program symbol: %q", c.Symbol)
	}

	entry := p.EntryOr(c.Entry)

	if _, ok := p.Blocks[entry]; !ok {
		return nil, errors.Wrap(ir.ErrMalformed, "no entry block %q", entry)
	}

	for _, id := range ir.SortEntryFirst("", keys(p.Blocks)) {
		if !ir.ValidID(id) {
			return nil, errors.Wrap(ir.ErrMalformed, "invalid block name %q", id)
		}
	}

	for _, id := range p.Decl.Sorted() {
		if !ir.ValidID(id) {
			return nil, errors.Wrap(ir.ErrMalformed, "invalid identifier %q", id)
		}
	}

	g := &gen{
		Compiler: c,
		p:        p,
		scope:    c.Symbol,
		slots:    make(map[ir.ID]int32),
	}

	prog := &Program{
		ID:     c.Symbol,
		Entry:  string(entry),
		Blocks: make(map[string]*BasicBlock, len(p.Blocks)),
	}

	if c.InitGC {
		g.code = nil

		err = g.call(c.Runtime.InitGC, []rv64.Location{rv64.FP}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "gc init")
		}

		prog.Start = g.code
	}

	exits := map[string][]int{}

	for _, id := range ir.SortEntryFirst(entry, keys(p.Blocks)) {
		bl := p.Blocks[id]
		if bl == nil {
			return nil, errors.Wrap(ir.ErrMalformed, "block %v: nil", id)
		}

		code, at, err := g.block(ctx, id, bl)
		if err != nil {
			return nil, errors.Wrap(err, "block %v", id)
		}

		prog.Blocks[string(id)] = &BasicBlock{
			Label: g.local(id),
			Code:  code,
		}

		if len(at) != 0 {
			exits[string(id)] = at
		}
	}

	body := [][]rv64.Instr{prog.Start}

	for _, bb := range prog.Blocks {
		body = append(body, bb.Code)
	}

	prog.UsedRegs = rv64.SaveSet(rv64.UsedRegSet(body...))
	prog.StackSpace = align16(g.size + int32(len(prog.UsedRegs)*rv64.WordSize))
	prog.Frame = g.frame

	epi := Epilogue(prog)

	for name, at := range exits {
		bb := prog.Blocks[name]
		bb.Code = splice(bb.Code, at, epi)
	}

	tr.Printw("generated", "blocks", len(prog.Blocks), "slots", len(prog.Frame), "stack_space", prog.StackSpace, "saved", prog.UsedRegs)

	if tr.If("dump_code") {
		for _, name := range prog.Order() {
			for i, x := range prog.Blocks[name].Code {
				tr.Printw("code", "block", name, "i", i, "instr", rv64.String(x))
			}
		}
	}

	return prog, nil
}

// block lowers one IR block. It returns positions where the epilogue goes.
func (g *gen) block(ctx context.Context, id ir.ID, bl *ir.Block) (code []rv64.Instr, exits []int, err error) {
	g.code = nil

	for i, x := range bl.Insn {
		if g.Comments {
			g.emit(rv64.Comment(ir.AppendInsn(nil, x)))
		}

		err = g.insn(x)
		if err != nil {
			return nil, nil, errors.Wrap(err, "insn %d", i)
		}
	}

	if len(bl.Term) == 0 {
		return nil, nil, errors.Wrap(ir.ErrMalformed, "no terminator")
	}

	for i, x := range bl.Term {
		if _, ok := x.(ir.Exit); ok {
			exits = append(exits, len(g.code))
			continue
		}

		err = g.term(x)
		if err != nil {
			return nil, nil, errors.Wrap(err, "term %d", i)
		}
	}

	return g.code, exits, nil
}

func (g *gen) insn(x ir.Insn) error {
	switch x := x.(type) {
	case ir.Const:
		dst, err := g.slot(x.Dst)
		if err != nil {
			return err
		}

		g.emit(
			rv64.Li{Dst: rv64.T0, Imm: x.Src},
			rv64.Store(dst, rv64.T0),
		)
	case ir.Copy:
		src, err := g.slot(x.Src)
		if err != nil {
			return err
		}

		dst, err := g.slot(x.Dst)
		if err != nil {
			return err
		}

		g.move(dst, src)
	case ir.Arith:
		lhs, err := g.slot(x.Lhs)
		if err != nil {
			return err
		}

		rhs, err := g.slot(x.Rhs)
		if err != nil {
			return err
		}

		dst, err := g.slot(x.Dst)
		if err != nil {
			return err
		}

		op, err := arith(x.Op, rv64.T0, rv64.T0, rv64.T1)
		if err != nil {
			return err
		}

		g.emit(
			rv64.Load(rv64.T0, lhs),
			rv64.Load(rv64.T1, rhs),
		)
		g.emit(op...)
		g.emit(rv64.Store(dst, rv64.T0))
	case ir.Read:
		dst, err := g.slot(ir.ID(x))
		if err != nil {
			return err
		}

		return g.call(g.Runtime.Read, nil, []rv64.Location{dst})
	case ir.Print:
		src, err := g.slot(ir.ID(x))
		if err != nil {
			return err
		}

		return g.call(g.Runtime.Print, []rv64.Location{src}, nil)
	default:
		return errors.Wrap(ir.ErrMalformed, "unsupported instruction: %T", x)
	}

	return nil
}

func (g *gen) term(x ir.Term) error {
	switch x := x.(type) {
	case ir.Jump:
		to, err := g.target(ir.ID(x))
		if err != nil {
			return err
		}

		g.emit(rv64.Jump(to))
	case ir.Branch:
		guard, err := g.slot(x.Guard)
		if err != nil {
			return errors.Wrap(err, "guard")
		}

		tt, err := g.target(x.TT)
		if err != nil {
			return err
		}

		ff, err := g.target(x.FF)
		if err != nil {
			return err
		}

		g.emit(
			rv64.Load(rv64.T0, guard),
			rv64.Branch{Cond: rv64.Ne, Lhs: rv64.T0, Rhs: rv64.Zero, Target: tt},
			rv64.Jump(ff),
		)
	default:
		return errors.Wrap(ir.ErrMalformed, "unsupported terminator: %T", x)
	}

	return nil
}

// call implements one argument, one result convention.
func (g *gen) call(sym rv64.Symbol, args, res []rv64.Location) error {
	argl, err := rv64.ArgLocations(len(args))
	if err != nil {
		return errors.Wrap(err, "call %v args", sym)
	}

	resl, err := rv64.ArgLocations(len(res))
	if err != nil {
		return errors.Wrap(err, "call %v results", sym)
	}

	for i, a := range args {
		g.move(argl[i], a)
	}

	g.emit(rv64.Call(sym))

	for i, r := range res {
		g.move(r, resl[i])
	}

	return nil
}

func (g *gen) move(dst, src rv64.Location) {
	if r, ok := dst.(rv64.Reg); ok {
		g.emit(rv64.Load(r, src))
		return
	}

	if r, ok := src.(rv64.Reg); ok {
		g.emit(rv64.Store(dst, r))
		return
	}

	g.emit(
		rv64.Load(rv64.T0, src),
		rv64.Store(dst, rv64.T0),
	)
}

// slot returns the stack slot of id allocating it on first use.
func (g *gen) slot(id ir.ID) (rv64.Mem, error) {
	if !g.p.Decl.Has(id) {
		return rv64.Mem{}, errors.Wrap(ir.ErrMalformed, "undeclared identifier %q", id)
	}

	off, ok := g.slots[id]
	if !ok {
		g.size += rv64.WordSize
		off = -g.size

		g.slots[id] = off
		g.frame = append(g.frame, Slot{ID: id, Off: off})

		tlog.V("slot").Printw("new slot", "id", id, "off", off, "from", loc.Caller(1))
	}

	return rv64.Mem{Base: rv64.FP, Off: off}, nil
}

func (g *gen) target(id ir.ID) (rv64.Local, error) {
	if _, ok := g.p.Blocks[id]; !ok {
		return rv64.Local{}, errors.Wrap(ir.ErrMalformed, "unknown jump target %q", id)
	}

	return g.local(id), nil
}

func (g *gen) local(id ir.ID) rv64.Local {
	return rv64.Local{Scope: g.scope, Name: string(id)}
}

func (g *gen) emit(x ...rv64.Instr) {
	g.code = append(g.code, x...)
}

// arith computes dst = lhs op rhs. lhs may be overwritten.
func arith(op ir.BOp, dst, lhs, rhs rv64.Reg) ([]rv64.Instr, error) {
	rr := func(op rv64.ArithOp, l, r rv64.Reg) rv64.Instr {
		return rv64.Arith{Op: op, Dst: dst, Lhs: l, Rhs: r}
	}

	z := func(c rv64.Cond) rv64.Instr {
		return rv64.SCmpZ{Cond: c, Dst: dst, Lhs: dst}
	}

	switch op {
	case ir.Add:
		return []rv64.Instr{rr(rv64.Add, lhs, rhs)}, nil
	case ir.Sub:
		return []rv64.Instr{rr(rv64.Sub, lhs, rhs)}, nil
	case ir.Mul:
		return []rv64.Instr{rr(rv64.Mul, lhs, rhs)}, nil
	case ir.Div:
		return []rv64.Instr{rr(rv64.Div, lhs, rhs)}, nil
	case ir.And:
		return []rv64.Instr{rr(rv64.And, lhs, rhs)}, nil
	case ir.Or:
		return []rv64.Instr{rr(rv64.Or, lhs, rhs)}, nil
	case ir.Xor:
		return []rv64.Instr{rr(rv64.Xor, lhs, rhs)}, nil
	case ir.Shl:
		return []rv64.Instr{rr(rv64.Sll, lhs, rhs)}, nil
	case ir.Shr:
		return []rv64.Instr{rr(rv64.Sra, lhs, rhs)}, nil
	case ir.Lt:
		return []rv64.Instr{rr(rv64.Slt, lhs, rhs)}, nil
	case ir.Gt:
		return []rv64.Instr{rr(rv64.Slt, rhs, lhs)}, nil
	case ir.Le:
		return []rv64.Instr{rr(rv64.Slt, rhs, lhs), z(rv64.Eq)}, nil
	case ir.Ge:
		return []rv64.Instr{rr(rv64.Slt, lhs, rhs), z(rv64.Eq)}, nil
	case ir.Eq:
		return []rv64.Instr{rr(rv64.Xor, lhs, rhs), z(rv64.Eq)}, nil
	case ir.Ne:
		return []rv64.Instr{rr(rv64.Xor, lhs, rhs), z(rv64.Ne)}, nil
	default:
		return nil, errors.Wrap(ir.ErrMalformed, "unsupported op: %v", op)
	}
}

func splice(code []rv64.Instr, at []int, ins []rv64.Instr) []rv64.Instr {
	r := make([]rv64.Instr, 0, len(code)+len(at)*len(ins))
	prev := 0

	for _, i := range at {
		r = append(r, code[prev:i]...)
		r = append(r, ins...)
		prev = i
	}

	return append(r, code[prev:]...)
}

func keys[K comparable, V any](m map[K]V) []K {
	l := make([]K, 0, len(m))

	for k := range m {
		l = append(l, k)
	}

	return l
}
