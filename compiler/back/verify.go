package back

import (
	"tlog.app/go/errors"

	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/ir"
)

// Verify checks p can be printed as a correct assembly.
func Verify(p *Program) error {
	if !ir.ValidID(ir.ID(p.ID)) {
		return errors.New("bad program symbol: %q", p.ID)
	}

	if p.StackSpace < 0 || p.StackSpace%16 != 0 {
		return errors.New("stack space is not 16 byte aligned: %d", p.StackSpace)
	}

	if need := int32(len(p.Frame)+len(p.UsedRegs)) * rv64.WordSize; p.StackSpace < need {
		return errors.New("stack space %d is less than needed %d", p.StackSpace, need)
	}

	if _, ok := p.Blocks[p.Entry]; !ok {
		return errors.Wrap(ir.ErrMalformed, "no entry block %q", p.Entry)
	}

	saved := rv64.NewRegSet()

	for i, r := range p.UsedRegs {
		if !r.IsCalleeSaved() {
			return errors.Wrap(rv64.ErrInvalidOperand, "saved register %v is not callee-saved", r)
		}

		if i != 0 && p.UsedRegs[i-1] >= r {
			return errors.New("saved registers are not sorted: %v", p.UsedRegs)
		}

		saved.Set(r)
	}

	for _, g := range p.Globals {
		if !ir.ValidID(ir.ID(g.Name)) || g.Size < 0 {
			return errors.New("bad global: %q size %d", g.Name, g.Size)
		}
	}

	for i, x := range p.Start {
		err := verifyInstr(p, saved, x)
		if err != nil {
			return errors.Wrap(err, "start: instr %d: %v", i, rv64.String(x))
		}
	}

	for _, name := range p.Order() {
		if !ir.ValidID(ir.ID(name)) {
			return errors.Wrap(ir.ErrMalformed, "invalid block name %q", name)
		}

		bb := p.Blocks[name]
		if bb == nil {
			return errors.Wrap(ir.ErrMalformed, "block %v: nil", name)
		}

		if bb.Label != p.Local(name) {
			return errors.Wrap(ir.ErrMalformed, "block %v: label mismatch: %v", name, bb.Label)
		}

		for i, x := range bb.Code {
			err := verifyInstr(p, saved, x)
			if err != nil {
				return errors.Wrap(err, "block %v: instr %d: %v", name, i, rv64.String(x))
			}
		}
	}

	return nil
}

func verifyInstr(p *Program, saved rv64.RegSet, x rv64.Instr) error {
	for _, r := range x.UsedRegs() {
		if r < 0 || r >= rv64.NumRegs {
			return errors.Wrap(rv64.ErrInvalidOperand, "bad register %d", int(r))
		}

		if r == rv64.Scratch {
			return errors.Wrap(rv64.ErrInvalidOperand, "scratch register %v is reserved", r)
		}

		if r.IsCalleeSaved() && !saved.IsSet(r) {
			return errors.Wrap(rv64.ErrInvalidOperand, "register %v is used but not saved", r)
		}
	}

	var mem rv64.Memory
	var target rv64.Target

	switch x := x.(type) {
	case rv64.La:
		mem = x.Src
	case rv64.Ld:
		mem = x.Src
	case rv64.Sd:
		mem = x.Dst
	case rv64.Jal:
		target = x.Target
	case rv64.Branch:
		target = x.Target
	case rv64.SCmpZ:
		switch x.Cond {
		case rv64.Eq, rv64.Ne, rv64.Lt, rv64.Gt:
		default:
			return errors.Wrap(rv64.ErrInvalidOperand, "no compare-zero form for %v", x.Cond)
		}
	}

	if g, ok := mem.(rv64.Global); ok && (g.Index < 0 || g.Index >= len(p.Globals)) {
		return errors.Wrap(rv64.ErrInvalidOperand, "global index %d out of range %d", g.Index, len(p.Globals))
	}

	switch t := target.(type) {
	case nil, rv64.Symbol:
	case rv64.Local:
		if t.Scope != p.ID {
			return errors.Wrap(ir.ErrMalformed, "jump to foreign scope: %v", t)
		}

		if _, ok := p.Blocks[t.Name]; !ok {
			return errors.Wrap(ir.ErrMalformed, "dangling jump target: %v", t)
		}
	}

	return nil
}
