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

// Package module implements modules of compiled code.
//
// A module is built in two phases. While the module is open, globals and
// functions can be added to it. Finalizing the module generates the code
// of its functions and resolves its declarations: from then on, the
// addresses of its globals and functions can be fetched but the module
// cannot be modified anymore.
package module

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/gx-org/simjit/base/handle"
	"github.com/gx-org/simjit/base/ordered"
	"github.com/gx-org/simjit/build/fmterr"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State of a module.
type State int

const (
	// Open modules can be modified.
	Open State = iota
	// Finalized modules have code and cannot be modified.
	Finalized
	// Disposed modules have released their code.
	Disposed
)

// String representation of the state.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Finalized:
		return "finalized"
	case Disposed:
		return "disposed"
	}
	return "invalid"
}

var (
	// ErrFinalized is returned when modifying or finalizing a module that
	// has already been finalized.
	ErrFinalized = errors.New("module already finalized")

	// ErrNotFinalized is returned when fetching an address from a module
	// that has not been finalized.
	ErrNotFinalized = errors.New("module not finalized")
)

// Module of globals and functions.
type Module struct {
	name    string
	symbols *Symbols
	log     *zap.Logger

	state   State
	globals *ordered.Map[string, *Cell]
	funcs   *ordered.Map[string, *Function]
	code    map[string]*Code
	addrs   map[string]Addr
}

// New returns a new open module. Declarations are resolved from symbols.
func New(name string, symbols *Symbols, log *zap.Logger) *Module {
	if symbols == nil {
		symbols = NewSymbols()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		name:    name,
		symbols: symbols,
		log:     log.With(zap.String("module", name)),
		globals: ordered.NewMap[string, *Cell](),
		funcs:   ordered.NewMap[string, *Function](),
	}
}

// Name of the module.
func (m *Module) Name() string {
	return m.name
}

// State of the module.
func (m *Module) State() State {
	return m.state
}

// Symbols returns the symbols the module is linked against.
func (m *Module) Symbols() *Symbols {
	return m.symbols
}

func (m *Module) checkOpen(action string) error {
	if m.state != Open {
		return fmterr.Internal(errors.Wrapf(ErrFinalized, "cannot %s in module %s (state: %s)", action, m.name, m.state))
	}
	return nil
}

func (m *Module) checkFinalized(action string) error {
	if m.state != Finalized {
		return fmterr.Internal(errors.Wrapf(ErrNotFinalized, "cannot %s in module %s (state: %s)", action, m.name, m.state))
	}
	return nil
}

// AddGlobal adds a global to the module.
func (m *Module) AddGlobal(name string) (*Cell, error) {
	if err := m.checkOpen("add global " + name); err != nil {
		return nil, err
	}
	if m.globals.Has(name) {
		return nil, fmterr.Internalf("global %s already defined in module %s", name, m.name)
	}
	cell := &Cell{name: name}
	m.globals.Store(name, cell)
	return cell, nil
}

// Global returns a global of the module.
// Native bodies use it to fetch the globals they read when they are built.
func (m *Module) Global(name string) (*Cell, bool) {
	return m.globals.Load(name)
}

// AddFunction adds a function to the module.
func (m *Module) AddFunction(f *Function) error {
	if err := m.checkOpen("add function " + f.Name); err != nil {
		return err
	}
	if m.funcs.Has(f.Name) {
		return fmterr.Internalf("function %s already defined in module %s", f.Name, m.name)
	}
	m.funcs.Store(f.Name, f)
	return nil
}

// Declare adds a declaration of an external function to the module.
func (m *Module) Declare(name string, params []Param, cc CallConv) (*Function, error) {
	f := &Function{Name: name, Params: params, CallConv: cc, Linkage: ExternalLinkage}
	if err := m.AddFunction(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Function returns a function of the module.
func (m *Module) Function(name string) (*Function, bool) {
	return m.funcs.Load(name)
}

// Functions returns all the functions of the module in the order they were added.
func (m *Module) Functions() []*Function {
	var fs []*Function
	for f := range m.funcs.Values() {
		fs = append(fs, f)
	}
	return fs
}

// Finalize generates the code of the module.
// A module can only be finalized once.
func (m *Module) Finalize() error {
	if err := m.checkOpen("finalize"); err != nil {
		return err
	}
	code := make(map[string]*Code)
	for f := range m.funcs.Values() {
		if !f.IsDeclaration() {
			code[f.Name] = &Code{name: f.Name, params: f.Params, callConv: f.CallConv}
			continue
		}
		addr, ok := m.symbols.Lookup(f.Name)
		if !ok {
			return fmterr.Internalf("module %s: unresolved external symbol %s", m.name, f.Name)
		}
		ext, err := Resolve(addr)
		if err != nil {
			return fmterr.PrefixWith("module %s: resolving external symbol %s", m.name, f.Name)(err)
		}
		code[f.Name] = ext
	}
	for f := range m.funcs.Values() {
		var err error
		switch body := f.Body.(type) {
		case nil:
		case Native:
			code[f.Name].run = body
		case *Call:
			err = m.lowerCall(code, code[f.Name], body)
		default:
			err = fmterr.Internalf("function %s: body of type %T not supported", f.Name, body)
		}
		if err != nil {
			return err
		}
	}
	m.code = code
	m.addrs = make(map[string]Addr)
	for f := range m.funcs.Values() {
		if f.IsDeclaration() {
			continue
		}
		m.addrs[f.Name] = handle.Wrap(code[f.Name])
	}
	m.state = Finalized
	m.log.Info("module finalized", zap.Int("functions", len(m.addrs)), zap.Int("globals", m.globals.Size()))
	return nil
}

func (m *Module) lowerCall(code map[string]*Code, caller *Code, call *Call) error {
	callee, ok := code[call.Callee]
	if !ok {
		return fmterr.Internalf("function %s calls undefined function %s", caller.name, call.Callee)
	}
	args := call.Args
	caller.run = func([]Value) error {
		return callee.Call(args...)
	}
	return nil
}

// GlobalAddress returns the cell of a global.
func (m *Module) GlobalAddress(name string) (*Cell, error) {
	if err := m.checkFinalized("fetch the address of global " + name); err != nil {
		return nil, err
	}
	cell, ok := m.globals.Load(name)
	if !ok {
		return nil, fmterr.Internalf("module %s has no global %s", m.name, name)
	}
	return cell, nil
}

// FunctionAddress returns the address of the code of a function defined
// in the module. Returns the null address if the function is not defined.
func (m *Module) FunctionAddress(name string) (Addr, error) {
	if err := m.checkFinalized("fetch the address of function " + name); err != nil {
		return 0, err
	}
	return m.addrs[name], nil
}

// Dispose releases the code of the module.
// The addresses of the module functions are invalid afterward.
func (m *Module) Dispose() error {
	if m.state == Disposed {
		return nil
	}
	var err error
	for f := range m.funcs.Values() {
		if addr, ok := m.addrs[f.Name]; ok {
			err = multierr.Append(err, handle.Release(addr))
		}
	}
	m.addrs = nil
	m.code = nil
	m.state = Disposed
	m.log.Debug("module disposed")
	return err
}

// Print writes the intermediate representation of the module.
func (m *Module) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "; module %s\n", m.name); err != nil {
		return err
	}
	for cell := range m.globals.Values() {
		if _, err := fmt.Fprintf(w, "@%s = global ptr\n", cell.name); err != nil {
			return err
		}
	}
	for f := range m.funcs.Values() {
		if _, err := fmt.Fprintf(w, "\n%s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// PrintMachine writes the finalized image of the module: the address of
// every function and the content of every global.
func (m *Module) PrintMachine(w io.Writer) error {
	if err := m.checkFinalized("print machine code"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "; machine image of module %s\n", m.name); err != nil {
		return err
	}
	for f := range m.funcs.Values() {
		var line string
		if f.IsDeclaration() {
			addr, _ := m.symbols.Lookup(f.Name)
			line = fmt.Sprintf("%#08x <%s> external", uintptr(addr), f.Name)
		} else {
			line = fmt.Sprintf("%#08x <%s> %s", uintptr(m.addrs[f.Name]), f.Name, f.CallConv)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for cell := range m.globals.Values() {
		if _, err := fmt.Fprintln(w, cell); err != nil {
			return err
		}
	}
	return nil
}
