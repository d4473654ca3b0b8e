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

// Package codegen lays out the module of a compiled function.
//
// The module of a function has one global per extern mapping, per
// temporary and per tensor index array, and three functions sharing the
// parameters of the function: the entry point, its init function and its
// deinit function. Bodies of the functions are provided by the caller.
package codegen

import (
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"go.uber.org/zap"
)

// Default suffixes of the init and deinit functions.
const (
	InitSuffix   = "_init"
	DeinitSuffix = "_deinit"
)

// Data type of the endpoint and neighbor indices of edge sets.
var indexDType = dtype.Int32

// BodyFunc implements a function of the module. It receives the module to
// read globals from and the arguments of the call.
type BodyFunc func(m *module.Module, args []module.Value) error

// Bodies of the functions of a module. A nil body does nothing.
type Bodies struct {
	Init, Deinit, Entry BodyFunc
}

// Options of the code generator.
type Options struct {
	InitSuffix   string
	DeinitSuffix string
}

func (opts Options) withDefaults() Options {
	if opts.InitSuffix == "" {
		opts.InitSuffix = InitSuffix
	}
	if opts.DeinitSuffix == "" {
		opts.DeinitSuffix = DeinitSuffix
	}
	return opts
}

// ParamType returns the type of the parameter passing a variable of a
// given type to compiled code:
//   - a set is passed as a struct holding its size, its endpoint and
//     neighbor indices if it is an edge set, and a pointer to each field,
//   - a scalar is passed by value,
//   - other tensors are passed as a pointer to their components.
func ParamType(typ ir.Type) (module.Type, error) {
	switch typT := typ.(type) {
	case *ir.SetType:
		st := &module.StructType{Name: typT.Element.Name, Fields: []module.Type{module.IntType{}}}
		if typT.IsEdgeSet() {
			intPtr := module.PtrType{Elem: indexDType}
			st.Fields = append(st.Fields, intPtr, intPtr, intPtr)
		}
		for _, f := range typT.Element.Fields {
			st.Fields = append(st.Fields, module.PtrType{Elem: f.Type.ComponentType()})
		}
		return st, nil
	case *ir.TensorType:
		if typT.Order() == 0 {
			return module.ArrayType{Elem: typT.ComponentType(), Len: 1}, nil
		}
		return module.PtrType{Elem: typT.ComponentType()}, nil
	default:
		return nil, fmterr.NotSupportedf("passing a value of type %s to compiled code", typ)
	}
}

// Params returns the parameters of the functions of a compiled function.
func Params(fn *ir.Func) ([]module.Param, error) {
	formals := fn.Formals()
	params := make([]module.Param, len(formals))
	for i, formal := range formals {
		typ, err := ParamType(formal.Type)
		if err != nil {
			return nil, fmterr.PrefixWith("function %s: formal %s", fn.Name, formal.Name)(err)
		}
		params[i] = module.Param{Name: formal.Name, Type: typ}
	}
	return params, nil
}

// New returns the open module of a function.
func New(fn *ir.Func, bodies Bodies, opts Options, log *zap.Logger) (*module.Module, error) {
	if err := fn.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	m := module.New(fn.Name, nil, log)
	if err := addGlobals(m, fn.Env); err != nil {
		return nil, err
	}
	params, err := Params(fn)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		body BodyFunc
	}{
		{name: fn.Name + opts.InitSuffix, body: bodies.Init},
		{name: fn.Name + opts.DeinitSuffix, body: bodies.Deinit},
		{name: fn.Name, body: bodies.Entry},
	} {
		if err := m.AddFunction(&module.Function{
			Name:     f.name,
			Params:   params,
			CallConv: module.FastCallConv,
			Linkage:  module.ExternalLinkage,
			Body:     native(m, f.body),
		}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func native(m *module.Module, body BodyFunc) module.Native {
	if body == nil {
		return func([]module.Value) error { return nil }
	}
	return func(args []module.Value) error {
		return body(m, args)
	}
}

func addGlobals(m *module.Module, env *ir.Environment) error {
	if env == nil {
		return nil
	}
	var names []string
	for _, ext := range env.Externs() {
		for _, v := range ext.Mappings {
			names = append(names, v.Name)
		}
	}
	for _, tmp := range env.Temporaries() {
		names = append(names, tmp.Name)
	}
	for _, ti := range env.TensorIndices() {
		names = append(names, ti.CoordsArray().Name, ti.SinksArray().Name)
	}
	for _, name := range names {
		if _, err := m.AddGlobal(name); err != nil {
			return err
		}
	}
	return nil
}
