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

package ir

import (
	"fmt"
	"slices"

	"github.com/gx-org/simjit/base/iter"
	"github.com/gx-org/simjit/base/stringseq"
	"github.com/gx-org/simjit/build/fmterr"
)

// Func is a compiled function of a simulation program.
//
// The arguments and results of the function are passed by the caller at
// every call. The externs of its environment are globals: they are bound
// once and read by compiled code from module globals.
type Func struct {
	Name    string
	Args    []Var
	Results []Var
	Env     *Environment
}

// Formals returns the arguments followed by the results of the function,
// in the order of the parameters of compiled code.
func (f *Func) Formals() []Var {
	return slices.Collect(iter.All(f.Args, f.Results))
}

// Arg returns a formal of the function given its name.
func (f *Func) Arg(name string) (Var, bool) {
	return iter.Find(func(v Var) bool {
		return v.Name == name
	}, f.Args, f.Results)
}

// IsArg returns true if a name is a formal of the function.
func (f *Func) IsArg(name string) bool {
	_, ok := f.Arg(name)
	return ok
}

// Global returns an extern of the function given its name.
func (f *Func) Global(name string) (Var, bool) {
	if f.Env == nil {
		return Var{}, false
	}
	m, ok := f.Env.Extern(name)
	if !ok {
		return Var{}, false
	}
	return m.Var, true
}

// Bindable returns a variable the caller can bind data to.
func (f *Func) Bindable(name string) (Var, bool) {
	if v, ok := f.Arg(name); ok {
		return v, true
	}
	return f.Global(name)
}

// Validate checks that every bindable name is unique.
func (f *Func) Validate() error {
	seen := make(map[string]bool)
	for _, v := range f.Formals() {
		if seen[v.Name] {
			return fmterr.Preconditionf("function %s: formal %s defined more than once", f.Name, v.Name)
		}
		seen[v.Name] = true
		if _, ok := f.Global(v.Name); ok {
			return fmterr.Preconditionf("function %s: %s is both a formal and an extern", f.Name, v.Name)
		}
	}
	return nil
}

// String representation of the function signature.
func (f *Func) String() string {
	format := func(vs []Var) string {
		return stringseq.Join(func(yield func(string) bool) {
			for _, v := range vs {
				if !yield(v.Name + " " + v.Type.String()) {
					return
				}
			}
		}, ", ")
	}
	return fmt.Sprintf("func %s(%s) (%s)", f.Name, format(f.Args), format(f.Results))
}
