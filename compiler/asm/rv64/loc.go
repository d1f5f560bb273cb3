package rv64

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Location is a register or a memory location.
	Location interface {
		UsedRegs() []Reg

		location()
	}

	// Memory is a location with a byte address.
	Memory interface {
		Location

		Add(off int32) Memory
	}

	// Mem is Base register + Off.
	Mem struct {
		Base Reg
		Off  int32
	}

	// Global is an entry of the program global table + Off.
	// Its address is materialized only at the final assembly stage.
	Global struct {
		Index int
		Off   int32
	}
)

var (
	ErrInvalidOperand   = errors.New("invalid operand")
	ErrUnsupportedArity = errors.New("unsupported call arity")
)

// Offset returns loc shifted by off bytes.
// Registers have no address, so only zero offset is allowed for them.
func Offset(loc Location, off int32) (Location, error) {
	switch l := loc.(type) {
	case Reg:
		if off != 0 {
			return nil, errors.Wrap(ErrInvalidOperand, "offset %d from register %v", off, l)
		}

		return l, nil
	case Memory:
		return l.Add(off), nil
	default:
		panic(loc)
	}
}

// ArgLocations places n call arguments (or results).
// Only the single-argument convention through a0 is supported.
func ArgLocations(n int) ([]Location, error) {
	if n > 1 {
		return nil, errors.Wrap(ErrUnsupportedArity, "%d values", n)
	}

	l := make([]Location, n)

	for i := range l {
		l[i] = ArgRegs[i]
	}

	return l, nil
}

func (r Reg) UsedRegs() []Reg { return []Reg{r} }

func (m Mem) UsedRegs() []Reg    { return []Reg{m.Base} }
func (g Global) UsedRegs() []Reg { return nil }

func (m Mem) Add(off int32) Memory    { return Mem{Base: m.Base, Off: m.Off + off} }
func (g Global) Add(off int32) Memory { return Global{Index: g.Index, Off: g.Off + off} }

func (Reg) location()    {}
func (Mem) location()    {}
func (Global) location() {}

func (m Mem) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, string(AppendLocation(nil, m)))
}

func (g Global) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, string(AppendLocation(nil, g)))
}
