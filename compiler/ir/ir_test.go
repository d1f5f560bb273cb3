package ir

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
decl: [x, y, b]
blocks:
  entry:
    insn:
      - read: x
      - const: {dst: y, src: -7}
      - arith: {op: "<", dst: b, lhs: x, rhs: y}
    term:
      - branch: {guard: b, tt: less, ff: done}
  less:
    insn:
      - copy: {dst: y, src: x}
      - print: y
    term:
      - jump: done
  done:
    term:
      - exit
`

func TestParse(t *testing.T) {
	ctx := context.Background()

	p, err := Parse(ctx, []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, DefaultEntry, p.EntryBlock())
	assert.Equal(t, Decls("x", "y", "b"), p.Decl)

	require.Contains(t, p.Blocks, ID("entry"))
	assert.Equal(t, &Block{
		Insn: []Insn{
			Read("x"),
			Const{Dst: "y", Src: -7},
			Arith{Op: Lt, Dst: "b", Lhs: "x", Rhs: "y"},
		},
		Term: []Term{
			Branch{Guard: "b", TT: "less", FF: "done"},
		},
	}, p.Blocks["entry"])

	assert.Equal(t, &Block{
		Insn: []Insn{Copy{Dst: "y", Src: "x"}, Print("y")},
		Term: []Term{Jump("done")},
	}, p.Blocks["less"])

	assert.Equal(t, []Term{Exit{}}, p.Blocks["done"].Term)
	assert.Empty(t, p.Blocks["done"].Insn)
}

func TestParseJSON(t *testing.T) {
	ctx := context.Background()

	p, err := Parse(ctx, []byte(`{"entry": "start", "decl": ["a"], "blocks": {"start": {"insn": [{"print": "a"}], "term": ["exit"]}}}`))
	require.NoError(t, err)

	assert.Equal(t, ID("start"), p.EntryBlock())
	assert.Equal(t, []Insn{Print("a")}, p.Blocks["start"].Insn)
	assert.Equal(t, []Term{Exit{}}, p.Blocks["start"].Term)
}

func TestParseErrors(t *testing.T) {
	ctx := context.Background()

	for name, text := range map[string]string{
		"unknown insn": "blocks: {entry: {insn: [{load: x}]}}",
		"unknown term": "blocks: {entry: {term: [{ret: x}]}}",
		"unknown op":   "blocks: {entry: {insn: [{arith: {op: pow, dst: a, lhs: b, rhs: c}}]}}",
		"bad id":       "blocks: {entry: {insn: [{print: 1x}]}}",
		"bad decl":     "decl: [a.b]",
		"bad block":    "blocks: {main.loop: {term: [exit]}}",
		"two keys":     "blocks: {entry: {insn: [{print: a, read: b}]}}",
	} {
		_, err := Parse(ctx, []byte(text))
		assert.True(t, errors.Is(err, ErrMalformed), "%v: %v", name, err)
	}

	_, err := Parse(ctx, []byte("blocks: [1, 2"))
	assert.Error(t, err)
}

func TestValidID(t *testing.T) {
	for _, id := range []ID{"x", "_t1", "Loop_2"} {
		assert.True(t, ValidID(id), "%v", id)
	}

	for _, id := range []ID{"", "1x", "a.b", "a-b", "a b", "é"} {
		assert.False(t, ValidID(id), "%v", id)
	}
}

func TestOps(t *testing.T) {
	for op := Add; op < numOps; op++ {
		p, ok := ParseOp(op.String())
		assert.True(t, ok)
		assert.Equal(t, op, p)

		p, ok = ParseOp(op.Symbol())
		assert.True(t, ok)
		assert.Equal(t, op, p)
	}

	_, ok := ParseOp("**")
	assert.False(t, ok)
}

func TestSortEntryFirst(t *testing.T) {
	assert.Equal(t, []ID{"main", "a", "b", "z"}, SortEntryFirst[ID]("main", []ID{"z", "b", "main", "a"}))
	assert.Equal(t, []string{"a", "b", "c"}, SortEntryFirst("", []string{"c", "a", "b"}))
	assert.Equal(t, []string{"a", "b"}, SortEntryFirst("x", []string{"b", "a"}))
}

func TestFormat(t *testing.T) {
	ctx := context.Background()

	p, err := Parse(ctx, []byte(sample))
	require.NoError(t, err)

	exp := `entry entry
decl b x y

entry:
	read x
	y = -7
	b = x < y
	branch b ? less : done

done:
	exit

less:
	y = x
	print y
	jump done
`

	assert.Equal(t, exp, string(Format(nil, p)))
}

func TestEntryOr(t *testing.T) {
	p := &Program{}

	assert.Equal(t, DefaultEntry, p.EntryBlock())
	assert.Equal(t, DefaultEntry, p.EntryOr(""))
	assert.Equal(t, ID("start"), p.EntryOr("start"))

	p.Entry = p.EntryOr("start")
	assert.Equal(t, "entry start\ndecl\n", string(Format(nil, p)))

	p.Entry = "main"
	assert.Equal(t, ID("main"), p.EntryOr("start"))
	assert.Equal(t, ID("main"), p.EntryBlock())
}
