package back

import (
	"github.com/slowlang/smol/compiler/asm/rv64"
	"github.com/slowlang/smol/compiler/ir"
)

type (
	Config struct {
		// Symbol is the global entry symbol. It also scopes local labels.
		Symbol string `yaml:"symbol"`

		// Entry block used when the program doesn't name one.
		Entry ir.ID `yaml:"entry"`

		// InitGC calls the runtime GC initializer at the program start
		// passing the frame pointer.
		InitGC bool `yaml:"init_gc"`

		// Comments adds IR instruction text before its code.
		Comments bool `yaml:"comments"`

		Runtime Runtime `yaml:"runtime"`
	}

	// Runtime function names. All of them take at most one argument
	// and return at most one value in a0.
	Runtime struct {
		InitGC rv64.Symbol `yaml:"init_gc"`
		Alloc  rv64.Symbol `yaml:"alloc"`
		Read   rv64.Symbol `yaml:"read"`
		Print  rv64.Symbol `yaml:"print"`
	}
)

const (
	GCInitFn = "_cflat_init_gc"
	AllocFn  = "_cflat_alloc"
	ReadFn   = "_cflat_read"
	PrintFn  = "_cflat_print"
)

func DefaultConfig() Config {
	return Config{
		Symbol: "main",
		Entry:  ir.DefaultEntry,
		InitGC: true,
		Runtime: Runtime{
			InitGC: GCInitFn,
			Alloc:  AllocFn,
			Read:   ReadFn,
			Print:  PrintFn,
		},
	}
}
