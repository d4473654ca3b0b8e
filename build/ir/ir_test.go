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

package ir_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/build/ir/pe"
)

func TestTensorType(t *testing.T) {
	f64 := dtype.Float64.String()
	tests := []struct {
		typ        *ir.TensorType
		order      int
		str        string
		blockSize  int
		sparse     bool
		systemDims bool
	}{
		{
			typ:       ir.Scalar(dtype.Float64),
			str:       f64,
			blockSize: 1,
		},
		{
			typ:       ir.NewTensor(dtype.Float64, []ir.IndexDomain{ir.NewDomain(ir.Range(3))}, false),
			order:     1,
			str:       fmt.Sprintf("tensor[3](%s)'", f64),
			blockSize: 1,
		},
		{
			typ:        ir.NewTensor(dtype.Float64, []ir.IndexDomain{ir.NewDomain(ir.SetOf("points"), ir.Range(3))}, true),
			order:      1,
			str:        fmt.Sprintf("tensor[points](tensor[3](%s))", f64),
			blockSize:  3,
			systemDims: true,
		},
		{
			typ: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
				ir.NewDomain(ir.SetOf("points")),
				ir.NewDomain(ir.SetOf("points")),
			}, false),
			order:      2,
			str:        fmt.Sprintf("tensor[points,points](%s)", f64),
			blockSize:  1,
			sparse:     true,
			systemDims: true,
		},
		{
			typ: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
				ir.NewDomain(ir.SetOf("points"), ir.Range(2)),
				ir.NewDomain(ir.SetOf("points"), ir.Range(2)),
			}, false),
			order:      2,
			str:        fmt.Sprintf("tensor[points,points](tensor[2,2](%s))", f64),
			blockSize:  4,
			sparse:     true,
			systemDims: true,
		},
		{
			typ: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
				ir.NewDomain(ir.Range(2)),
				ir.NewDomain(ir.Range(2)),
			}, false),
			order:     2,
			str:       fmt.Sprintf("tensor[2,2](%s)", f64),
			blockSize: 1,
		},
	}
	for i, test := range tests {
		if got := test.typ.Order(); got != test.order {
			t.Errorf("test %d: got order %d but want %d", i, got, test.order)
		}
		if got := test.typ.String(); got != test.str {
			t.Errorf("test %d: got %q but want %q", i, got, test.str)
		}
		blockSize, err := test.typ.BlockType().Size()
		if err != nil {
			t.Errorf("test %d: %+v", i, err)
		} else if blockSize != test.blockSize {
			t.Errorf("test %d: got block size %d but want %d", i, blockSize, test.blockSize)
		}
		if got := test.typ.IsSparse(); got != test.sparse {
			t.Errorf("test %d: IsSparse() = %t but want %t", i, got, test.sparse)
		}
		if got := test.typ.HasSystemDimensions(); got != test.systemDims {
			t.Errorf("test %d: HasSystemDimensions() = %t but want %t", i, got, test.systemDims)
		}
	}
}

func TestStaticSize(t *testing.T) {
	tests := []struct {
		dim  ir.IndexDomain
		size int
		err  error
	}{
		{dim: ir.NewDomain(ir.Range(3), ir.Range(2)), size: 6},
		{dim: ir.NewDomain(ir.Single()), size: 1},
		{dim: ir.NewDomain(ir.SetOf("points")), err: fmterr.ErrNotSupported},
		{dim: ir.NewDomain(ir.Dynamic("points")), err: fmterr.ErrNotSupported},
	}
	for i, test := range tests {
		size, err := test.dim.Size()
		if test.err != nil {
			if !errors.Is(err, test.err) {
				t.Errorf("test %d: got error %v but want %v", i, err, test.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: %+v", i, err)
			continue
		}
		if size != test.size {
			t.Errorf("test %d: got size %d but want %d", i, size, test.size)
		}
	}
}

func mappingNames(m *ir.VarMapping) []string {
	var names []string
	for _, v := range m.Mappings {
		names = append(names, v.Name)
	}
	return names
}

func TestAddExtern(t *testing.T) {
	point := &ir.ElementType{Name: "Point", Fields: []ir.Field{
		{Name: "x", Type: ir.Scalar(dtype.Float64)},
		{Name: "v", Type: ir.Scalar(dtype.Float32)},
	}}
	tests := []struct {
		v    ir.Var
		want []string
	}{
		{
			v:    ir.Var{Name: "points", Type: &ir.SetType{Element: point}},
			want: []string{"points.size", "points.x", "points.v"},
		},
		{
			v:    ir.Var{Name: "b", Type: ir.NewTensor(dtype.Float64, []ir.IndexDomain{ir.NewDomain(ir.SetOf("points"))}, true)},
			want: []string{"b"},
		},
		{
			v: ir.Var{Name: "K", Type: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
				ir.NewDomain(ir.SetOf("points")),
				ir.NewDomain(ir.SetOf("points")),
			}, false)},
			want: []string{"K.vals", "K.rowptr", "K.colidx"},
		},
	}
	env := ir.NewEnvironment()
	for i, test := range tests {
		if err := env.AddExtern(test.v); err != nil {
			t.Errorf("test %d: %+v", i, err)
			continue
		}
		m, ok := env.Extern(test.v.Name)
		if !ok {
			t.Errorf("test %d: extern %s not found", i, test.v.Name)
			continue
		}
		if diff := cmp.Diff(test.want, mappingNames(m)); diff != "" {
			t.Errorf("test %d: unexpected mappings (-want +got):\n%s", i, diff)
		}
	}
	if got, want := len(env.Externs()), len(tests); got != want {
		t.Errorf("got %d externs but want %d", got, want)
	}
	if err := env.AddExtern(tests[0].v); !errors.Is(err, fmterr.ErrPrecondition) {
		t.Errorf("adding an extern twice returned %v but want a precondition violation", err)
	}
	tuple := ir.Var{Name: "pair", Type: &ir.TupleType{Element: point, Size: 2}}
	if err := env.AddExtern(tuple); !errors.Is(err, fmterr.ErrNotSupported) {
		t.Errorf("adding a tuple extern returned %v but want a not supported error", err)
	}
}

func TestTensorIndex(t *testing.T) {
	link := pe.NewLink(pe.Var{Name: "p", Set: "points"}, pe.Var{Name: "e", Set: "springs"})
	ti := ir.NewTensorIndex("A", link)
	i32 := dtype.Int32.String()
	want := fmt.Sprintf("tensor-index A: link(p:points, e:springs)\n  A.coords : %s*\n  A.sinks : %s*", i32, i32)
	if got := ti.String(); got != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
	env := ir.NewEnvironment()
	matrix := ir.Var{Name: "A", Type: ir.NewTensor(dtype.Float64, []ir.IndexDomain{
		ir.NewDomain(ir.SetOf("points")),
		ir.NewDomain(ir.SetOf("springs")),
	}, false)}
	if env.HasTensorIndex(matrix) {
		t.Errorf("tensor index found before it was added")
	}
	if err := env.AddTemporary(matrix); err != nil {
		t.Fatal(err)
	}
	if err := env.AddTensorIndex(matrix, ti); err != nil {
		t.Fatal(err)
	}
	got, err := env.TensorIndex(matrix)
	if err != nil {
		t.Fatal(err)
	}
	if got != ti {
		t.Errorf("got tensor index %v but want %v", got, ti)
	}
	if err := env.AddTensorIndex(matrix, ti); !errors.Is(err, fmterr.ErrPrecondition) {
		t.Errorf("adding a tensor index twice returned %v but want a precondition violation", err)
	}
}

func TestFunc(t *testing.T) {
	env := ir.NewEnvironment()
	global := ir.Var{Name: "g", Type: ir.Scalar(dtype.Float32)}
	if err := env.AddExtern(global); err != nil {
		t.Fatal(err)
	}
	arg := ir.Var{Name: "x", Type: ir.Scalar(dtype.Float32)}
	res := ir.Var{Name: "y", Type: ir.Scalar(dtype.Float32)}
	fn := &ir.Func{Name: "main", Args: []ir.Var{arg}, Results: []ir.Var{res}, Env: env}
	if err := fn.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"x", "y"} {
		if !fn.IsArg(name) {
			t.Errorf("%s is not a formal", name)
		}
	}
	if fn.IsArg("g") {
		t.Errorf("extern g is a formal")
	}
	if _, ok := fn.Bindable("g"); !ok {
		t.Errorf("extern g is not bindable")
	}
	if _, ok := fn.Bindable("z"); ok {
		t.Errorf("unknown name z is bindable")
	}
	clash := &ir.Func{Name: "main", Args: []ir.Var{global}, Env: env}
	if err := clash.Validate(); !errors.Is(err, fmterr.ErrPrecondition) {
		t.Errorf("formal shadowing an extern returned %v but want a precondition violation", err)
	}
}

func TestOuter(t *testing.T) {
	outer, err := ir.NewDomain(ir.SetOf("points"), ir.Range(3)).Outer()
	if err != nil {
		t.Fatal(err)
	}
	if outer.Kind() != ir.SetKind || outer.SetName() != "points" {
		t.Errorf("got outer index set %s but want points", outer)
	}
	if _, err := ir.NewDomain().Outer(); !errors.Is(err, fmterr.ErrInternal) {
		t.Errorf("outer index set of an empty domain returned %v but want an internal error", err)
	}
	empty := ir.NewTensor(dtype.Float64, []ir.IndexDomain{ir.NewDomain()}, true)
	if got := empty.OuterDimensions(); len(got) != 0 {
		t.Errorf("got outer dimensions %v for a tensor with an empty domain but want none", got)
	}
	if got, want := empty.String(), "tensor[]("+dtype.Float64.String()+")"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
