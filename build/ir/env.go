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
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/base/ordered"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir/pe"
)

// VarMapping maps a bindable variable to the variables compiled code reads
// its data from. Every mapping is a global of the compiled module.
type VarMapping struct {
	Var      Var
	Mappings []Var
}

// String representation of the mapping.
func (m *VarMapping) String() string {
	names := make([]string, len(m.Mappings))
	for i, v := range m.Mappings {
		names[i] = v.Name
	}
	return fmt.Sprintf("%s : %s -> [%s]", m.Var.Name, m.Var.Type, strings.Join(names, ", "))
}

// Environment of a function: the external variables (globals bound at
// run time), the temporaries and the tensor indices.
type Environment struct {
	externs       *ordered.Map[string, *VarMapping]
	temporaries   *ordered.Map[string, Var]
	tensorIndices *ordered.Map[string, *TensorIndex]
	// Tensor index of every sparse tensor, given the tensor name.
	indexOf map[string]*TensorIndex
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		externs:       ordered.NewMap[string, *VarMapping](),
		temporaries:   ordered.NewMap[string, Var](),
		tensorIndices: ordered.NewMap[string, *TensorIndex](),
		indexOf:       make(map[string]*TensorIndex),
	}
}

func (env *Environment) checkUnique(name string) error {
	if env.externs.Has(name) || env.temporaries.Has(name) {
		return fmterr.Preconditionf("%s already defined in the environment", name)
	}
	return nil
}

// AddExtern adds an external variable and decomposes it into the globals
// compiled code reads:
//   - a set into its size followed by one pointer per field,
//   - a sparse matrix into its values, row pointers and column indices,
//   - a dense tensor into a single pointer.
func (env *Environment) AddExtern(v Var) error {
	var mappings []Var
	switch typ := v.Type.(type) {
	case *SetType:
		mappings = append(mappings, Var{Name: v.Name + ".size", Type: Scalar(dtype.Int32)})
		for _, f := range typ.Element.Fields {
			mappings = append(mappings, Var{
				Name: v.Name + "." + f.Name,
				Type: &ArrayType{Elem: f.Type.ComponentType()},
			})
		}
	case *TensorType:
		if !typ.IsSparse() {
			mappings = []Var{v}
			break
		}
		mappings = []Var{
			{Name: v.Name + ".vals", Type: &ArrayType{Elem: typ.ComponentType()}},
			{Name: v.Name + ".rowptr", Type: &ArrayType{Elem: dtype.Int32}},
			{Name: v.Name + ".colidx", Type: &ArrayType{Elem: dtype.Int32}},
		}
	default:
		return fmterr.NotSupportedf("extern %s of type %s", v.Name, v.Type)
	}
	return env.AddExternMapping(v, mappings)
}

// AddExternMapping adds an external variable with explicit mappings.
func (env *Environment) AddExternMapping(v Var, mappings []Var) error {
	if err := env.checkUnique(v.Name); err != nil {
		return err
	}
	env.externs.Store(v.Name, &VarMapping{Var: v, Mappings: mappings})
	return nil
}

// AddTemporary adds a temporary variable owned by the runtime.
func (env *Environment) AddTemporary(v Var) error {
	if err := env.checkUnique(v.Name); err != nil {
		return err
	}
	env.temporaries.Store(v.Name, v)
	return nil
}

// AddTensorIndex attaches a tensor index to a sparse tensor variable.
// Tensors with the same sparsity pattern share the same tensor index.
func (env *Environment) AddTensorIndex(v Var, ti *TensorIndex) error {
	if _, ok := env.indexOf[v.Name]; ok {
		return fmterr.Preconditionf("%s already has a tensor index", v.Name)
	}
	if prev, ok := env.tensorIndices.Load(ti.Name()); ok && prev != ti {
		return fmterr.Preconditionf("tensor index %s already defined", ti.Name())
	}
	env.tensorIndices.Store(ti.Name(), ti)
	env.indexOf[v.Name] = ti
	return nil
}

// Externs returns the external variables in the order they were added.
func (env *Environment) Externs() []*VarMapping {
	return collect(env.externs.Values())
}

// Extern returns the mapping of an external variable.
func (env *Environment) Extern(name string) (*VarMapping, bool) {
	return env.externs.Load(name)
}

// Temporaries returns the temporaries in the order they were added.
func (env *Environment) Temporaries() []Var {
	return collect(env.temporaries.Values())
}

// TensorIndices returns the tensor indices in the order they were added.
func (env *Environment) TensorIndices() []*TensorIndex {
	return collect(env.tensorIndices.Values())
}

// HasTensorIndex returns true if a variable has a tensor index.
func (env *Environment) HasTensorIndex(v Var) bool {
	_, ok := env.indexOf[v.Name]
	return ok
}

// TensorIndex returns the tensor index of a variable.
func (env *Environment) TensorIndex(v Var) (*TensorIndex, error) {
	ti, ok := env.indexOf[v.Name]
	if !ok {
		return nil, fmterr.Internalf("no tensor index for %s", v.Name)
	}
	return ti, nil
}

// String representation of the environment.
func (env *Environment) String() string {
	var b strings.Builder
	for m := range env.externs.Values() {
		fmt.Fprintf(&b, "extern %s\n", m)
	}
	for v := range env.temporaries.Values() {
		fmt.Fprintf(&b, "temp %s : %s\n", v.Name, v.Type)
	}
	for ti := range env.tensorIndices.Values() {
		fmt.Fprintf(&b, "%s\n", ti)
	}
	return b.String()
}

func collect[V any](it func(func(V) bool)) []V {
	var vs []V
	for v := range it {
		vs = append(vs, v)
	}
	return vs
}

// TensorIndex is the sparsity pattern of sparse tensors: the offset
// (coordinate) and sink arrays of the path index of a path expression.
type TensorIndex struct {
	name   string
	pexpr  pe.PathExpression
	coords Var
	sinks  Var
}

// NewTensorIndex returns a tensor index. Its arrays are named after the
// tensor index.
func NewTensorIndex(name string, pexpr pe.PathExpression) *TensorIndex {
	prefix := name
	if prefix != "" {
		prefix += "."
	}
	return &TensorIndex{
		name:   name,
		pexpr:  pexpr,
		coords: Var{Name: prefix + "coords", Type: &ArrayType{Elem: dtype.Int32}},
		sinks:  Var{Name: prefix + "sinks", Type: &ArrayType{Elem: dtype.Int32}},
	}
}

// Name of the tensor index.
func (ti *TensorIndex) Name() string {
	return ti.name
}

// PathExpression defining the sparsity pattern.
func (ti *TensorIndex) PathExpression() pe.PathExpression {
	return ti.pexpr
}

// CoordsArray returns the variable storing the offset array.
func (ti *TensorIndex) CoordsArray() Var {
	return ti.coords
}

// SinksArray returns the variable storing the sink array.
func (ti *TensorIndex) SinksArray() Var {
	return ti.sinks
}

// String representation of the tensor index.
func (ti *TensorIndex) String() string {
	return fmt.Sprintf("tensor-index %s: %s\n  %s : %s\n  %s : %s",
		ti.name, ti.pexpr,
		ti.coords.Name, ti.coords.Type,
		ti.sinks.Name, ti.sinks.Type)
}
