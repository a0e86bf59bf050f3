// Package script runs Go-source agent entry points in an embedded yaegi
// interpreter.
package script

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"reflect"
	"sort"
	"strconv"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"aihub/internal/domain"
)

// DefaultBlockedImports are packages a script may not import. Process
// control goes through the host's exec_command instead.
var DefaultBlockedImports = []string{"os/exec", "syscall", "unsafe", "plugin"}

// Options configures a Program.
type Options struct {
	// Symbols are host packages made importable, keyed "importpath/name".
	Symbols interp.Exports
	// Env is what os.Getenv sees inside the script, as KEY=VALUE pairs.
	Env            []string
	Stdout, Stderr io.Writer
	// BlockedImports overrides DefaultBlockedImports when non-nil.
	BlockedImports []string
}

// Program is an evaluated script.
type Program struct {
	interp *interp.Interpreter
	name   string
}

// Compile checks the script's imports and evaluates it.
func Compile(ctx context.Context, name, src string, opts Options) (*Program, error) {
	blocked := opts.BlockedImports
	if blocked == nil {
		blocked = DefaultBlockedImports
	}
	if err := checkImports(name, src, blocked); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{
		Env:    opts.Env,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if opts.Symbols != nil {
		if err := i.Use(opts.Symbols); err != nil {
			return nil, fmt.Errorf("load host symbols: %w", err)
		}
	}

	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return nil, domain.NewSubSystemError("agent", "script.Compile", domain.ErrInvalidInput,
			fmt.Sprintf("%s: %v", name, err))
	}
	return &Program{interp: i, name: name}, nil
}

// Func returns the package-level function main.<name>.
func (p *Program) Func(name string) (reflect.Value, error) {
	v, err := p.interp.Eval("main." + name)
	if err != nil {
		return reflect.Value{}, domain.NewSubSystemError("agent", "script.Func", domain.ErrEntryPointMissing,
			fmt.Sprintf("%s does not define %s", p.name, name))
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, domain.NewSubSystemError("agent", "script.Func", domain.ErrEntryPointMissing,
			fmt.Sprintf("%s.%s is not a function", p.name, name))
	}
	return v, nil
}

func checkImports(name, src string, blocked []string) error {
	f, err := parser.ParseFile(token.NewFileSet(), name, src, parser.ImportsOnly)
	if err != nil {
		return domain.NewSubSystemError("agent", "script.Compile", domain.ErrInvalidInput, err.Error())
	}
	deny := make(map[string]bool, len(blocked))
	for _, b := range blocked {
		deny[b] = true
	}

	var forbidden []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if deny[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return domain.NewSubSystemError("agent", "script.Compile", domain.ErrInvalidInput,
			fmt.Sprintf("%s imports forbidden packages %v", name, forbidden))
	}
	return nil
}
