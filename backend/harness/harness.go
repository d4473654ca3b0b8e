// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package harness compiles zero-argument wrappers around the functions of
// a finalized module.
//
// A finalized module cannot be modified: calls passing the values bound at
// run time cannot be added to it. Instead, a harness is a private module
// declaring the functions of the finalized module and defining, for each
// of them, a wrapper calling it with the bound values as constants.
package harness

import (
	"github.com/pkg/errors"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/base/uname"
	"github.com/gx-org/simjit/build/fmterr"
	"go.uber.org/zap"
)

// Default name of the harness modules and suffix of the wrappers.
const (
	ModuleName = "simit_harness"
	Suffix     = "_harness"
)

// Options of the harness compiler.
type Options struct {
	// Module is the name of the harness modules.
	Module string
	// Suffix is appended to the name of a function to name its wrapper.
	Suffix string
}

// Compiler compiles harnesses around the functions of a main module.
type Compiler struct {
	main  *module.Module
	opts  Options
	log   *zap.Logger
	names *uname.Unique
}

// NewCompiler returns a compiler of harnesses for a main module.
func NewCompiler(main *module.Module, opts Options, log *zap.Logger) *Compiler {
	if opts.Module == "" {
		opts.Module = ModuleName
	}
	if opts.Suffix == "" {
		opts.Suffix = Suffix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{main: main, opts: opts, log: log, names: uname.New()}
}

// Compile a harness calling functions of the main module with the same
// constant arguments.
//
// The main module has to be finalized: its function addresses are added to
// its symbols before the harness module is finalized. Every harness module
// gets a unique name.
func (c *Compiler) Compile(funcs []string, args []module.Value) (*Harness, error) {
	if c.main.State() != module.Finalized {
		return nil, fmterr.Internal(errors.Wrapf(module.ErrNotFinalized, "cannot compile a harness for module %s in state %s", c.main.Name(), c.main.State()))
	}
	symbols := c.main.Symbols()
	targets := make([]*module.Function, len(funcs))
	for i, name := range funcs {
		f, ok := c.main.Function(name)
		if !ok {
			return nil, fmterr.Internalf("module %s has no function %s", c.main.Name(), name)
		}
		addr, err := c.main.FunctionAddress(name)
		if err != nil {
			return nil, err
		}
		if addr == 0 {
			return nil, fmterr.Internalf("function %s of module %s has no address", name, c.main.Name())
		}
		symbols.Add(name, addr)
		targets[i] = f
	}

	mod := module.New(c.names.Name(c.opts.Module), symbols, c.log)
	for _, f := range targets {
		if _, err := mod.Declare(f.Name, f.Params, f.CallConv); err != nil {
			return nil, err
		}
		if err := mod.AddFunction(&module.Function{
			Name:     f.Name + c.opts.Suffix,
			CallConv: module.CCallConv,
			Linkage:  module.ExternalLinkage,
			Body:     &module.Call{Callee: f.Name, Args: args, CallConv: f.CallConv},
		}); err != nil {
			return nil, err
		}
	}
	if err := mod.Finalize(); err != nil {
		return nil, err
	}
	c.log.Info("harness compiled",
		zap.String("main", c.main.Name()),
		zap.String("module", mod.Name()),
		zap.Int("harnesses", c.names.Count(c.opts.Module)),
		zap.Strings("functions", funcs),
		zap.Int("args", len(args)))
	return &Harness{mod: mod, suffix: c.opts.Suffix, symbols: symbols, funcs: funcs}, nil
}

// Harness is a finalized module of wrappers.
type Harness struct {
	mod     *module.Module
	suffix  string
	symbols *module.Symbols
	funcs   []string
}

// Address returns the address of the wrapper of a function.
func (h *Harness) Address(name string) (module.Addr, error) {
	addr, err := h.mod.FunctionAddress(name + h.suffix)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return 0, fmterr.Internalf("no code for %s: code generation prevents modifying the module after code generation. Ensure all functions are created before fetching function addresses", name+h.suffix)
	}
	return addr, nil
}

// Module returns the module of the harness.
func (h *Harness) Module() *module.Module {
	return h.mod
}

// Dispose releases the code of the harness and removes the functions it
// calls from the symbols of the main module.
func (h *Harness) Dispose() error {
	for _, name := range h.funcs {
		h.symbols.Remove(name)
	}
	return h.mod.Dispose()
}
