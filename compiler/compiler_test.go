package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/smol/compiler/back"
	"github.com/slowlang/smol/compiler/back/emu"
	"github.com/slowlang/smol/compiler/ir"
)

func TestCompileFile(t *testing.T) {
	ctx := context.Background()

	obj, err := CompileFile(ctx, "testdata/sum.yaml", back.DefaultConfig())
	require.NoError(t, err)

	text := string(obj)

	assert.True(t, strings.HasPrefix(text, "# program main\n"))
	assert.Contains(t, text, "\n\t.globl main\nmain:\n")

	start := strings.Index(text, "\nmain.start:\n")
	require.True(t, start > 0, "entry block label")

	for _, l := range []string{"main.body", "main.done", "main.loop"} {
		i := strings.Index(text, "\n"+l+":\n")
		assert.True(t, i > start, "%v after entry", l)
	}

	assert.Less(t, strings.Index(text, "\nmain.body:\n"), strings.Index(text, "\nmain.done:\n"))
	assert.Less(t, strings.Index(text, "\nmain.done:\n"), strings.Index(text, "\nmain.loop:\n"))

	assert.Contains(t, text, "\tjal\tra, _cflat_init_gc\n")
	assert.Contains(t, text, "\tjal\tra, _cflat_read\n")
	assert.Contains(t, text, "\tjal\tra, _cflat_print\n")
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := back.DefaultConfig()

	for _, tc := range []struct {
		file string
		in   []int64
		out  []int64
	}{
		{"testdata/max.yaml", []int64{3, 9}, []int64{9}},
		{"testdata/max.yaml", []int64{9, 3}, []int64{9}},
		{"testdata/max.yaml", []int64{-4, -4}, []int64{-4}},
		{"testdata/sum.yaml", []int64{10}, []int64{55}},
		{"testdata/sum.yaml", []int64{0}, []int64{0}},
	} {
		p, err := GenerateFile(ctx, tc.file, cfg)
		require.NoError(t, err, tc.file)

		m := emu.New(cfg.Runtime)
		m.Input = tc.in

		err = m.Run(ctx, p)
		require.NoError(t, err, "%v %v", tc.file, tc.in)

		assert.Equal(t, tc.out, m.Output, "%v %v", tc.file, tc.in)
	}
}

func TestCompileMalformed(t *testing.T) {
	ctx := context.Background()

	_, err := Compile(ctx, "bad.yaml", []byte(`
decl: [x]
blocks:
  entry:
    insn:
      - print: y
    term:
      - exit
`), back.DefaultConfig())

	assert.True(t, errors.Is(err, ir.ErrMalformed), "%v", err)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, back.DefaultConfig(), cfg)

	name := filepath.Join(t.TempDir(), "smol.yaml")

	err = os.WriteFile(name, []byte(`
symbol: prog
init_gc: false
runtime:
  print: rt_print
`), 0o644)
	require.NoError(t, err)

	cfg, err = LoadConfig(name)
	require.NoError(t, err)

	exp := back.DefaultConfig()
	exp.Symbol = "prog"
	exp.InitGC = false
	exp.Runtime.Print = "rt_print"

	assert.Equal(t, exp, cfg)

	ctx := context.Background()

	obj, err := CompileFile(ctx, "testdata/max.yaml", cfg)
	require.NoError(t, err)

	assert.Contains(t, string(obj), "\nprog.entry:\n")
	assert.Contains(t, string(obj), "\tjal\tra, rt_print\n")
	assert.NotContains(t, string(obj), "_cflat_init_gc")
}
