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

// Package engine binds run-time data to compiled simulation programs and
// invokes them.
//
// An engine owns the finalized module of a compiled function. Values
// bound to the externs of the function are written to the globals of the
// module as soon as they are bound. Values bound to the formals of the
// function are passed at every call through a harness: a private module
// of zero-argument wrappers calling the functions of the main module with
// the bound values as constants. Init builds the harness, allocates the
// temporaries of the function and returns its entry point.
//
// An engine is not safe for concurrent use.
package engine

import (
	"io"

	"github.com/pkg/errors"
	"github.com/gx-org/simjit/api/options"
	"github.com/gx-org/simjit/backend/harness"
	"github.com/gx-org/simjit/backend/kernels"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/base/ordered"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/build/ir/pe"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State of an engine.
type State int

const (
	// Unbound engines have never been initialized.
	Unbound State = iota
	// Initialized engines have a callable entry point.
	Initialized
	// Stale engines have been rebound after their initialization.
	// Init has to be called again before calling the program.
	Stale
	// Destroyed engines cannot be used anymore.
	Destroyed
)

// String representation of the state.
func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Initialized:
		return "initialized"
	case Stale:
		return "stale"
	case Destroyed:
		return "destroyed"
	}
	return "invalid"
}

// ErrStale is returned when calling an entry point returned by Init after
// the engine has been rebound, initialized again or destroyed.
var ErrStale = errors.New("stale entry point")

// Func is the entry point of a program returned by Init.
type Func func() error

// Engine binds data to a compiled function and invokes it.
type Engine struct {
	fn      *ir.Func
	mod     *module.Module
	cfg     options.Config
	log     *zap.Logger
	builder options.IndexBuilder
	alloc   *kernels.Allocator
	harness *harness.Compiler
	params  []module.Param

	arguments *ordered.Map[string, Actual]
	globals   *ordered.Map[string, Actual]

	externSlots    map[string][]*Slot
	temporarySlots map[string]*Slot
	indexSlots     map[string][2]*Slot
	temporaries    map[string]*kernels.Buffer
	pathIndices    map[string]pe.PathIndex

	current    *harness.Harness
	deinit     module.Addr
	state      State
	generation uint64
}

// New returns an engine for a function compiled into a module.
// The module is finalized if it is still open. The engine owns the module.
func New(fn *ir.Func, mod *module.Module, opts ...options.EngineOption) (*Engine, error) {
	e := &Engine{
		fn:             fn,
		mod:            mod,
		cfg:            options.Default(),
		arguments:      ordered.NewMap[string, Actual](),
		globals:        ordered.NewMap[string, Actual](),
		externSlots:    make(map[string][]*Slot),
		temporarySlots: make(map[string]*Slot),
		indexSlots:     make(map[string][2]*Slot),
		temporaries:    make(map[string]*kernels.Buffer),
		pathIndices:    make(map[string]pe.PathIndex),
	}
	configured, err := e.processOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmterr.Precondition(err)
	}
	if e.log == nil {
		e.log = zap.NewNop()
		if configured {
			if e.log, err = e.cfg.NewLogger(); err != nil {
				return nil, fmterr.Precondition(err)
			}
		}
	}
	if err := fn.Validate(); err != nil {
		return nil, err
	}
	e.log = e.log.With(zap.String("func", fn.Name))
	if e.builder == nil {
		e.builder = pe.NewBuilder(e.log)
	}
	e.alloc = kernels.NewAllocator(e.log)
	e.harness = harness.NewCompiler(mod, harness.Options{
		Module: e.cfg.HarnessModule,
		Suffix: e.cfg.HarnessSuffix,
	}, e.log)
	if mod.State() == module.Open {
		if err := mod.Finalize(); err != nil {
			return nil, err
		}
	}
	entry, ok := mod.Function(fn.Name)
	if !ok {
		return nil, fmterr.Internalf("module %s has no entry point %s", mod.Name(), fn.Name)
	}
	if len(entry.Params) != len(fn.Formals()) {
		return nil, fmterr.Internalf("entry point %s has %d parameters but the function has %d formals", fn.Name, len(entry.Params), len(fn.Formals()))
	}
	for _, name := range []string{fn.Name + e.cfg.InitSuffix, fn.Name + e.cfg.DeinitSuffix} {
		if _, ok := mod.Function(name); !ok {
			return nil, fmterr.Preconditionf("module %s has no function %s: the module has to be generated with the init and deinit suffixes of the configuration (%q and %q)", mod.Name(), name, e.cfg.InitSuffix, e.cfg.DeinitSuffix)
		}
	}
	e.params = entry.Params
	if err := e.resolveSlots(); err != nil {
		return nil, err
	}
	return e, nil
}

// processOptions applies the options to the engine and reports if a
// configuration was given.
func (e *Engine) processOptions(opts []options.EngineOption) (configured bool, err error) {
	for _, option := range opts {
		switch optionT := option.(type) {
		case options.WithConfig:
			e.cfg = optionT.Config
			configured = true
		case options.WithLogger:
			if optionT.Logger != nil {
				e.log = optionT.Logger
			}
		case options.WithIndexBuilder:
			e.builder = optionT.Builder
		default:
			return false, errors.Errorf("option of type %T not supported", optionT)
		}
	}
	return configured, nil
}

// State of the engine.
func (e *Engine) State() State {
	return e.state
}

// Logger returns the logger of the engine.
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// Func returns the function the engine invokes.
func (e *Engine) Func() *ir.Func {
	return e.fn
}

func (e *Engine) checkAlive(action string) error {
	if e.state == Destroyed {
		return fmterr.Preconditionf("cannot %s: engine of %s destroyed", action, e.fn.Name)
	}
	return nil
}

func (e *Engine) markStale() {
	if e.state == Initialized {
		e.state = Stale
		e.log.Debug("engine stale")
	}
}

// Close invokes the deinit function of the program, frees the temporaries
// and releases the compiled code. The engine cannot be used afterward.
func (e *Engine) Close() error {
	if err := e.checkAlive("close"); err != nil {
		return err
	}
	var err error
	if e.deinit != 0 {
		err = multierr.Append(err, call(e.deinit))
		e.deinit = 0
	}
	err = multierr.Append(err, e.freeTemporaries())
	if e.current != nil {
		err = multierr.Append(err, e.current.Dispose())
		e.current = nil
	}
	err = multierr.Append(err, e.mod.Dispose())
	e.state = Destroyed
	e.generation++
	e.log.Info("engine destroyed")
	return err
}

func call(addr module.Addr) error {
	code, err := module.Resolve(addr)
	if err != nil {
		return err
	}
	return code.Call()
}

// Print writes the intermediate representation of the main module and,
// once built, of the harness module.
func (e *Engine) Print(w io.Writer) error {
	if err := e.mod.Print(w); err != nil {
		return err
	}
	if e.current == nil {
		return nil
	}
	return e.current.Module().Print(w)
}

// PrintMachine writes the machine image of the main module and, once built,
// of the harness module.
func (e *Engine) PrintMachine(w io.Writer) error {
	if err := e.mod.PrintMachine(w); err != nil {
		return err
	}
	if e.current == nil {
		return nil
	}
	return e.current.Module().PrintMachine(w)
}

// Harness returns the current harness or nil if none has been built.
func (e *Engine) Harness() *harness.Harness {
	return e.current
}
