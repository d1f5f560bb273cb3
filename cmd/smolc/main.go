package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/smol/compiler"
	"github.com/slowlang/smol/compiler/back"
	"github.com/slowlang/smol/compiler/back/emu"
	"github.com/slowlang/smol/compiler/ir"
)

func main() {
	tirCmd := &cli.Command{
		Name:        "tir",
		Description: "parse ir files and print them back in text form",
		Action:      tirAct,
		Args:        cli.Args{},
	}

	asmCmd := &cli.Command{
		Name:        "asm",
		Description: "compile ir files into rv64 assembly",
		Action:      asmAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "", "output file, stdout if empty"),
		},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile ir file and execute it in the emulator",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("input", "", "comma separated numbers to read"),
			cli.NewFlag("max-steps", emu.DefaultMaxSteps, "emulator step limit, 0 is unlimited"),
		},
	}

	app := &cli.Command{
		Name:        "smolc",
		Description: "smolc is a three-address ir to rv64 assembly compiler",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("config", "", "yaml config file"),
			cli.NewFlag("symbol", "", "program symbol, overrides config"),
			cli.NewFlag("entry", "", "entry block if ir doesn't name it"),
			cli.NewFlag("comments", false, "add ir instructions as comments"),
			cli.NewFlag("no-gc-init", false, "don't call gc initializer at start"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			tirCmd,
			asmCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func config(c *cli.Command) (cfg back.Config, err error) {
	cfg, err = compiler.LoadConfig(c.String("config"))
	if err != nil {
		return cfg, errors.Wrap(err, "load config")
	}

	if q := c.String("symbol"); q != "" {
		cfg.Symbol = q
	}

	if q := c.String("entry"); q != "" {
		cfg.Entry = ir.ID(q)
	}

	if c.Bool("comments") {
		cfg.Comments = true
	}

	if c.Bool("no-gc-init") {
		cfg.InitGC = false
	}

	return cfg, nil
}

func tirAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := config(c)
	if err != nil {
		return err
	}

	var b []byte

	for _, a := range c.Args {
		p, err := ir.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		p.Entry = p.EntryOr(cfg.Entry)

		b = ir.Format(b[:0], p)

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func asmAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := config(c)
	if err != nil {
		return err
	}

	var text []byte

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		text = append(text, obj...)
	}

	if q := c.String("output"); q != "" {
		err = os.WriteFile(q, text, 0o644)
	} else {
		_, err = os.Stdout.Write(text)
	}

	if err != nil {
		return errors.Wrap(err, "write output")
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) != 1 {
		return errors.New("expected exactly one ir file")
	}

	cfg, err := config(c)
	if err != nil {
		return err
	}

	input, err := parseInput(c.String("input"))
	if err != nil {
		return errors.Wrap(err, "input")
	}

	p, err := compiler.GenerateFile(ctx, c.Args[0], cfg)
	if err != nil {
		return err
	}

	m := emu.New(cfg.Runtime)
	m.Input = input
	m.Stdout = os.Stdout
	m.MaxSteps = c.Int("max-steps")

	err = m.Run(ctx, p)
	if err != nil {
		return errors.Wrap(err, "run")
	}

	tlog.SpanFromContext(ctx).Printw("run finished", "steps", m.Steps, "gc_root", m.GCRoot)

	return nil
}

func parseInput(s string) (r []int64, err error) {
	if s == "" {
		return nil, nil
	}

	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse %q", f)
		}

		r = append(r, v)
	}

	return r, nil
}
