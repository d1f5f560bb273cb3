package compiler

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/smol/compiler/back"
	"github.com/slowlang/smol/compiler/ir"
)

// LoadConfig reads yaml config file over the default config.
// Empty name means default config.
func LoadConfig(name string) (cfg back.Config, err error) {
	cfg = back.DefaultConfig()

	if name == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "decode config %v", name)
	}

	return cfg, nil
}

func CompileFile(ctx context.Context, name string, cfg back.Config) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, cfg)
}

// Compile translates IR text into assembly text.
func Compile(ctx context.Context, name string, text []byte, cfg back.Config) (obj []byte, err error) {
	p, err := ir.Parse(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", name)
	}

	obj, err = back.New(cfg).Compile(ctx, nil, p)
	if err != nil {
		return nil, errors.Wrap(err, "compile %v", name)
	}

	return obj, nil
}

// GenerateFile parses IR file and generates a Program without printing it.
func GenerateFile(ctx context.Context, name string, cfg back.Config) (*back.Program, error) {
	p, err := ir.ParseFile(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", name)
	}

	prog, err := back.New(cfg).Generate(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "generate %v", name)
	}

	return prog, nil
}
