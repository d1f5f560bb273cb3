package emu

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/back"
	"github.com/slowlang/smol/compiler/ir"
)

func run(t testing.TB, p *ir.Program, input ...int64) (*Machine, error) {
	t.Helper()

	ctx := context.Background()

	cfg := back.DefaultConfig()

	prog, err := back.New(cfg).Generate(ctx, p)
	require.NoError(t, err)

	m := New(cfg.Runtime)
	m.Input = input

	err = m.Run(ctx, prog)

	return m, err
}

func TestBranch(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("g", "r"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {
				Insn: []ir.Insn{ir.Read("g")},
				Term: []ir.Term{ir.Branch{Guard: "g", TT: "tt", FF: "ff"}},
			},
			"tt": {
				Insn: []ir.Insn{ir.Const{Dst: "r", Src: 111}, ir.Print("r")},
				Term: []ir.Term{ir.Exit{}},
			},
			"ff": {
				Insn: []ir.Insn{ir.Const{Dst: "r", Src: 222}, ir.Print("r")},
				Term: []ir.Term{ir.Exit{}},
			},
		},
	}

	for _, tc := range []struct {
		in  int64
		out int64
	}{
		{0, 222},
		{1, 111},
		{-5, 111},
		{1 << 40, 111},
	} {
		m, err := run(t, p, tc.in)
		require.NoError(t, err, "input %d", tc.in)
		assert.Equal(t, []int64{tc.out}, m.Output, "input %d", tc.in)
	}
}

func TestLoop(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("i", "n", "one", "c"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {
				Insn: []ir.Insn{
					ir.Read("n"),
					ir.Const{Dst: "i", Src: 0},
					ir.Const{Dst: "one", Src: 1},
				},
				Term: []ir.Term{ir.Jump("loop")},
			},
			"loop": {
				Insn: []ir.Insn{ir.Arith{Op: ir.Lt, Dst: "c", Lhs: "i", Rhs: "n"}},
				Term: []ir.Term{ir.Branch{Guard: "c", TT: "body", FF: "done"}},
			},
			"body": {
				Insn: []ir.Insn{
					ir.Print("i"),
					ir.Arith{Op: ir.Add, Dst: "i", Lhs: "i", Rhs: "one"},
				},
				Term: []ir.Term{ir.Jump("loop")},
			},
			"done": {Term: []ir.Term{ir.Exit{}}},
		},
	}

	var out bytes.Buffer

	ctx := context.Background()
	cfg := back.DefaultConfig()

	prog, err := back.New(cfg).Generate(ctx, p)
	require.NoError(t, err)

	m := New(cfg.Runtime)
	m.Input = []int64{4}
	m.Stdout = &out

	err = m.Run(ctx, prog)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3}, m.Output)
	assert.Equal(t, "0\n1\n2\n3\n", out.String())

	assert.Equal(t, int64(StackTop-16), m.GCRoot, "gc root is the frame pointer")
}

func TestOps(t *testing.T) {
	pairs := [][2]int64{{7, 3}, {3, 7}, {-8, 3}, {5, 5}, {0, -1}, {-1, 2}}

	for op, f := range map[ir.BOp]func(a, b int64) int64{
		ir.Add: func(a, b int64) int64 { return a + b },
		ir.Sub: func(a, b int64) int64 { return a - b },
		ir.Mul: func(a, b int64) int64 { return a * b },
		ir.Div: func(a, b int64) int64 { return a / b },
		ir.And: func(a, b int64) int64 { return a & b },
		ir.Or:  func(a, b int64) int64 { return a | b },
		ir.Xor: func(a, b int64) int64 { return a ^ b },
		ir.Shl: func(a, b int64) int64 { return a << (b & 63) },
		ir.Shr: func(a, b int64) int64 { return a >> (b & 63) },
		ir.Lt:  func(a, b int64) int64 { return b2i(a < b) },
		ir.Le:  func(a, b int64) int64 { return b2i(a <= b) },
		ir.Gt:  func(a, b int64) int64 { return b2i(a > b) },
		ir.Ge:  func(a, b int64) int64 { return b2i(a >= b) },
		ir.Eq:  func(a, b int64) int64 { return b2i(a == b) },
		ir.Ne:  func(a, b int64) int64 { return b2i(a != b) },
	} {
		p := &ir.Program{
			Decl: ir.Decls("a", "b", "c"),
			Blocks: map[ir.ID]*ir.Block{
				"entry": {
					Insn: []ir.Insn{
						ir.Read("a"),
						ir.Read("b"),
						ir.Arith{Op: op, Dst: "c", Lhs: "a", Rhs: "b"},
						ir.Print("c"),
					},
					Term: []ir.Term{ir.Exit{}},
				},
			},
		}

		for _, x := range pairs {
			m, err := run(t, p, x[0], x[1])
			require.NoError(t, err, "%v %v", op, x)
			assert.Equal(t, []int64{f(x[0], x[1])}, m.Output, "%v %v", op, x)
		}
	}
}

func TestCopy(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("a", "b"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {
				Insn: []ir.Insn{
					ir.Read("a"),
					ir.Copy{Dst: "b", Src: "a"},
					ir.Const{Dst: "a", Src: 0},
					ir.Print("b"),
					ir.Print("a"),
				},
				Term: []ir.Term{ir.Exit{}},
			},
		},
	}

	m, err := run(t, p, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 0}, m.Output)
}

func TestEntryLoopInitsGCOnce(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("n"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {
				Insn: []ir.Insn{ir.Read("n"), ir.Print("n")},
				Term: []ir.Term{ir.Branch{Guard: "n", TT: "entry", FF: "done"}},
			},
			"done": {Term: []ir.Term{ir.Exit{}}},
		},
	}

	ctx := context.Background()
	cfg := back.DefaultConfig()

	prog, err := back.New(cfg).Generate(ctx, p)
	require.NoError(t, err)

	var calls int

	m := New(cfg.Runtime)
	m.Input = []int64{1, 1, 0}
	m.Hook(cfg.Runtime.InitGC, func(_ *Machine, _ int64) (int64, error) {
		calls++

		return 0, nil
	})

	err = m.Run(ctx, prog)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 1, 0}, m.Output)
	assert.Equal(t, 1, calls)
}

func TestRunTwice(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("x"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {Insn: []ir.Insn{ir.Read("x"), ir.Print("x")}, Term: []ir.Term{ir.Exit{}}},
		},
	}

	ctx := context.Background()

	prog, err := back.Generate(ctx, p)
	require.NoError(t, err)

	m := New(back.DefaultConfig().Runtime)
	m.Input = []int64{7}

	for i := 0; i < 2; i++ {
		err = m.Run(ctx, prog)
		require.NoError(t, err, "run %d", i)

		assert.Equal(t, []int64{7}, m.Output, "run %d", i)
		assert.Equal(t, []int64{7}, m.Input, "run %d", i)
	}
}

func TestStepLimit(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls(),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {Term: []ir.Term{ir.Jump("spin")}},
			"spin":  {Term: []ir.Term{ir.Jump("spin")}},
		},
	}

	_, err := run(t, p)
	assert.True(t, errors.Is(err, ErrStepLimit), "%v", err)
}

func TestCancel(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls(),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {Term: []ir.Term{ir.Jump("entry")}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prog, err := back.Generate(ctx, p)
	require.NoError(t, err)

	m := New(back.DefaultConfig().Runtime)
	m.MaxSteps = 0

	err = m.Run(ctx, prog)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
}

func TestInputEOF(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("x"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {Insn: []ir.Insn{ir.Read("x")}, Term: []ir.Term{ir.Exit{}}},
		},
	}

	_, err := run(t, p)
	assert.True(t, errors.Is(err, ErrInputEOF), "%v", err)
}

func TestClobbered(t *testing.T) {
	p := &back.Program{
		ID:         "main",
		Entry:      "entry",
		StackSpace: 16,
		UsedRegs:   []rv64.Reg{rv64.S1},
	}

	p.Blocks = map[string]*back.BasicBlock{
		"entry": {
			Label: p.Local("entry"),
			Code: append([]rv64.Instr{
				rv64.Li{Dst: rv64.S1, Imm: 9},
			}, back.Epilogue(&back.Program{})...),
		},
	}

	m := New(back.DefaultConfig().Runtime)

	err := m.Run(context.Background(), p)
	assert.True(t, errors.Is(err, ErrClobbered), "%v", err)

	p.Blocks["entry"].Code = append([]rv64.Instr{
		rv64.Li{Dst: rv64.S1, Imm: 9},
	}, back.Epilogue(p)...)

	err = m.Run(context.Background(), p)
	assert.NoError(t, err)
}

func TestUnknownRuntime(t *testing.T) {
	p := &ir.Program{
		Decl: ir.Decls("x"),
		Blocks: map[ir.ID]*ir.Block{
			"entry": {Insn: []ir.Insn{ir.Print("x")}, Term: []ir.Term{ir.Exit{}}},
		},
	}

	ctx := context.Background()

	prog, err := back.Generate(ctx, p)
	require.NoError(t, err)

	m := New(back.Runtime{})

	err = m.Run(ctx, prog)
	assert.True(t, errors.Is(err, ErrUnknownSymbol), "%v", err)
}

func b2i(x bool) int64 {
	if x {
		return 1
	}

	return 0
}
