package ir

import (
	"tlog.app/go/errors"
)

type (
	ID  string
	BOp int

	Set map[ID]struct{}

	Program struct {
		Entry ID

		Decl   Set
		Blocks map[ID]*Block
	}

	Block struct {
		Insn []Insn
		Term []Term
	}

	Insn interface {
		insn()
	}

	Term interface {
		term()
	}

	Copy struct {
		Dst ID
		Src ID
	}

	Const struct {
		Dst ID
		Src int64
	}

	Arith struct {
		Op  BOp
		Dst ID
		Lhs ID
		Rhs ID
	}

	Read  ID
	Print ID

	Exit struct{}
	Jump ID

	// Branch goes to TT if Guard is non-zero and to FF otherwise.
	Branch struct {
		Guard ID
		TT    ID
		FF    ID
	}
)

const (
	Add BOp = iota
	Sub
	Mul
	Div
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
	And
	Or
	Xor
	Shl
	Shr

	numOps
)

const DefaultEntry ID = "entry"

var ErrMalformed = errors.New("malformed ir")

var ops = [numOps]struct {
	name string
	sym  string
}{
	Add: {"add", "+"},
	Sub: {"sub", "-"},
	Mul: {"mul", "*"},
	Div: {"div", "/"},
	Lt:  {"lt", "<"},
	Le:  {"le", "<="},
	Gt:  {"gt", ">"},
	Ge:  {"ge", ">="},
	Eq:  {"eq", "=="},
	Ne:  {"ne", "!="},
	And: {"and", "&"},
	Or:  {"or", "|"},
	Xor: {"xor", "^"},
	Shl: {"shl", "<<"},
	Shr: {"shr", ">>"},
}

func Decls(ids ...ID) Set {
	s := make(Set, len(ids))

	for _, id := range ids {
		s[id] = struct{}{}
	}

	return s
}

func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Sorted() []ID {
	l := make([]ID, 0, len(s))

	for id := range s {
		l = append(l, id)
	}

	return SortEntryFirst("", l)
}

func (p *Program) EntryBlock() ID {
	return p.EntryOr("")
}

// EntryOr returns the program entry block.
// If the program doesn't name one, def is used, then DefaultEntry.
func (p *Program) EntryOr(def ID) ID {
	switch {
	case p.Entry != "":
		return p.Entry
	case def != "":
		return def
	default:
		return DefaultEntry
	}
}

// Order returns block names with the entry block first and the rest sorted.
func (p *Program) Order() []ID {
	l := make([]ID, 0, len(p.Blocks))

	for id := range p.Blocks {
		l = append(l, id)
	}

	return SortEntryFirst(p.EntryBlock(), l)
}

func ParseOp(s string) (BOp, bool) {
	for op, x := range ops {
		if s == x.name || s == x.sym {
			return BOp(op), true
		}
	}

	return -1, false
}

func (op BOp) String() string {
	if op < 0 || op >= numOps {
		return "op?"
	}

	return ops[op].name
}

func (op BOp) Symbol() string {
	if op < 0 || op >= numOps {
		return "?"
	}

	return ops[op].sym
}

// ValidID reports whether s is an identifier: a letter or underscore
// followed by letters, digits and underscores.
func ValidID(s ID) bool {
	if s == "" {
		return false
	}

	for i, c := range []byte(s) {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i != 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}

func (Copy) insn()  {}
func (Const) insn() {}
func (Arith) insn() {}
func (Read) insn()  {}
func (Print) insn() {}

func (Exit) term()   {}
func (Jump) term()   {}
func (Branch) term() {}
