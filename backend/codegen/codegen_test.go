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

package codegen_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/backend/codegen"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/base/handle"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/build/ir/pe"
	"go.uber.org/zap/zaptest"
)

var point = &ir.ElementType{Name: "Point", Fields: []ir.Field{
	{Name: "x", Type: ir.Scalar(dtype.Float64)},
}}

func TestParamType(t *testing.T) {
	i32Ptr := module.PtrType{Elem: dtype.Int32}
	f64Ptr := module.PtrType{Elem: dtype.Float64}
	tests := []struct {
		typ  ir.Type
		want module.Type
	}{
		{
			typ:  &ir.SetType{Element: point},
			want: &module.StructType{Name: "Point", Fields: []module.Type{module.IntType{}, f64Ptr}},
		},
		{
			typ:  &ir.SetType{Element: point, EndpointSets: []string{"points", "points"}},
			want: &module.StructType{Name: "Point", Fields: []module.Type{module.IntType{}, i32Ptr, i32Ptr, i32Ptr, f64Ptr}},
		},
		{
			typ:  ir.Scalar(dtype.Float32),
			want: module.ArrayType{Elem: dtype.Float32, Len: 1},
		},
		{
			typ:  ir.NewTensor(dtype.Float64, []ir.IndexDomain{ir.NewDomain(ir.SetOf("points"))}, true),
			want: f64Ptr,
		},
	}
	for i, test := range tests {
		got, err := codegen.ParamType(test.typ)
		if err != nil {
			t.Errorf("test %d: %+v", i, err)
			continue
		}
		if !module.Equal(got, test.want) {
			t.Errorf("test %d: got type %s but want %s", i, got, test.want)
		}
	}
	if _, err := codegen.ParamType(&ir.TupleType{Element: point, Size: 2}); !errors.Is(err, fmterr.ErrNotSupported) {
		t.Errorf("passing a tuple returned %v but want a not supported error", err)
	}
}

func TestLayout(t *testing.T) {
	defer func(start int) {
		if end := handle.Count(); end != start {
			t.Errorf("handles are leaking: started with %d and ended with %d", start, end)
		}
	}(handle.Count())
	env := ir.NewEnvironment()
	points := ir.Var{Name: "points", Type: &ir.SetType{Element: point}}
	if err := env.AddExtern(points); err != nil {
		t.Fatal(err)
	}
	matrix := ir.Var{Name: "K", Type: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
		ir.NewDomain(ir.SetOf("points")),
		ir.NewDomain(ir.SetOf("points")),
	}, false)}
	if err := env.AddTemporary(matrix); err != nil {
		t.Fatal(err)
	}
	link := pe.NewLink(pe.Var{Name: "p", Set: "points"}, pe.Var{Name: "q", Set: "points"})
	if err := env.AddTensorIndex(matrix, ir.NewTensorIndex("K", link)); err != nil {
		t.Fatal(err)
	}
	fn := &ir.Func{
		Name: "step",
		Args: []ir.Var{{Name: "dt", Type: ir.Scalar(dtype.Float64)}},
		Env:  env,
	}
	calls := 0
	m, err := codegen.New(fn, codegen.Bodies{
		Entry: func(m *module.Module, args []module.Value) error {
			calls++
			return nil
		},
	}, codegen.Options{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Dispose()
	var globals []string
	for _, name := range []string{"points.size", "points.x", "K", "K.coords", "K.sinks"} {
		if _, ok := m.Global(name); ok {
			globals = append(globals, name)
		}
	}
	if diff := cmp.Diff([]string{"points.size", "points.x", "K", "K.coords", "K.sinks"}, globals); diff != "" {
		t.Errorf("unexpected globals (-want +got):\n%s", diff)
	}
	var funcs []string
	for _, f := range m.Functions() {
		funcs = append(funcs, f.Name)
	}
	if diff := cmp.Diff([]string{"step_init", "step_deinit", "step"}, funcs); diff != "" {
		t.Errorf("unexpected functions (-want +got):\n%s", diff)
	}
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("%+v", err)
	}
	addr, err := m.FunctionAddress("step")
	if err != nil {
		t.Fatal(err)
	}
	code, err := module.Resolve(addr)
	if err != nil {
		t.Fatal(err)
	}
	arg := module.Array{Typ: module.ArrayType{Elem: dtype.Float64, Len: 1}, Raw: make([]byte, 8)}
	if err := code.Call(arg); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("entry body called %d times but want 1", calls)
	}
}
