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

package module_test

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/base/handle"
	"github.com/gx-org/simjit/build/fmterr"
	"go.uber.org/zap/zaptest"
)

func checkHandleCount(t *testing.T, startCount int) {
	endCount := handle.Count()
	if endCount != startCount {
		t.Errorf("handles are leaking: started with %d and ended with %d:\n%s", startCount, endCount, handle.Dump())
	}
}

func dispose(t *testing.T, m *module.Module) {
	if err := m.Dispose(); err != nil {
		t.Error(err)
	}
}

var intParams = []module.Param{{Name: "n", Type: module.IntType{}}}

func TestFinalizeOrdering(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	m := module.New("main", nil, zaptest.NewLogger(t))
	defer dispose(t, m)
	if _, err := m.FunctionAddress("f"); !errors.Is(err, module.ErrNotFinalized) {
		t.Errorf("fetching an address before finalization returned %v but want %v", err, module.ErrNotFinalized)
	}
	if _, err := m.AddGlobal("g"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GlobalAddress("g"); !errors.Is(err, module.ErrNotFinalized) {
		t.Errorf("fetching a global before finalization returned %v but want %v", err, module.ErrNotFinalized)
	}
	if err := m.AddFunction(&module.Function{Name: "f", Body: module.Native(func([]module.Value) error { return nil })}); err != nil {
		t.Fatal(err)
	}
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFunction(&module.Function{Name: "h", Body: module.Native(nil)}); !errors.Is(err, module.ErrFinalized) {
		t.Errorf("adding a function after finalization returned %v but want %v", err, module.ErrFinalized)
	}
	if _, err := m.AddGlobal("h"); !errors.Is(err, module.ErrFinalized) {
		t.Errorf("adding a global after finalization returned %v but want %v", err, module.ErrFinalized)
	}
	if err := m.Finalize(); !errors.Is(err, module.ErrFinalized) || !errors.Is(err, fmterr.ErrInternal) {
		t.Errorf("finalizing twice returned %v but want an internal %v error", err, module.ErrFinalized)
	}
	addr, err := m.FunctionAddress("f")
	if err != nil {
		t.Fatal(err)
	}
	if addr == 0 {
		t.Errorf("got the null address for a defined function")
	}
	if addr, err := m.FunctionAddress("undefined"); err != nil || addr != 0 {
		t.Errorf("FunctionAddress(undefined) = %#x, %v but want the null address", uintptr(addr), err)
	}
}

func TestCallThroughSymbols(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	symbols := module.NewSymbols()
	main := module.New("main", symbols, zaptest.NewLogger(t))
	defer dispose(t, main)
	var got []int
	if err := main.AddFunction(&module.Function{
		Name:     "f",
		Params:   intParams,
		CallConv: module.FastCallConv,
		Body: module.Native(func(args []module.Value) error {
			got = append(got, args[0].(module.Int).V)
			return nil
		}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := main.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, err := main.FunctionAddress("f")
	if err != nil {
		t.Fatal(err)
	}
	symbols.Add("f", addr)

	wrappers := module.New("wrappers", symbols, zaptest.NewLogger(t))
	defer dispose(t, wrappers)
	if _, err := wrappers.Declare("f", intParams, module.FastCallConv); err != nil {
		t.Fatal(err)
	}
	if err := wrappers.AddFunction(&module.Function{
		Name: "f_wrapper",
		Body: &module.Call{Callee: "f", Args: []module.Value{module.Int{V: 3}}, CallConv: module.FastCallConv},
	}); err != nil {
		t.Fatal(err)
	}
	if err := wrappers.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := wrappers.Verify(); err != nil {
		t.Errorf("%+v", err)
	}
	wrapperAddr, err := wrappers.FunctionAddress("f_wrapper")
	if err != nil {
		t.Fatal(err)
	}
	code, err := module.Resolve(wrapperAddr)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := code.Call(); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 3 {
		t.Errorf("got calls %v but want [3 3]", got)
	}
	if err := code.Call(module.Int{V: 1}); !errors.Is(err, fmterr.ErrInternal) {
		t.Errorf("calling a function with the wrong number of arguments returned %v", err)
	}
}

func TestUnresolvedSymbol(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	m := module.New("wrappers", nil, nil)
	defer dispose(t, m)
	if _, err := m.Declare("missing", nil, module.CCallConv); err != nil {
		t.Fatal(err)
	}
	if err := m.Finalize(); !errors.Is(err, fmterr.ErrInternal) {
		t.Errorf("finalizing with an unresolved symbol returned %v but want an internal error", err)
	}
	if m.State() != module.Open {
		t.Errorf("module in state %s after a failed finalization", m.State())
	}
}

func TestVerify(t *testing.T) {
	m := module.New("broken", nil, nil)
	defer dispose(t, m)
	if _, err := m.Declare("f", intParams, module.FastCallConv); err != nil {
		t.Fatal(err)
	}
	bodies := []*module.Call{
		{Callee: "f", Args: []module.Value{module.Int{V: 1}}, CallConv: module.CCallConv},
		{Callee: "f", CallConv: module.FastCallConv},
		{Callee: "f", Args: []module.Value{module.Ptr{Typ: module.PtrType{Elem: dtype.Float32}}}, CallConv: module.FastCallConv},
		{Callee: "g", CallConv: module.FastCallConv},
	}
	for i, body := range bodies {
		if err := m.AddFunction(&module.Function{Name: "caller" + string(rune('0'+i)), Body: body}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.AddFunction(&module.Function{Name: "private", Linkage: module.PrivateLinkage}); err != nil {
		t.Fatal(err)
	}
	err := m.Verify()
	if !errors.Is(err, fmterr.ErrInternal) {
		t.Fatalf("verification returned %v but want an internal error", err)
	}
	for _, want := range []string{
		"calling convention ccc but f uses fastcc",
		"calls f with 0 arguments but f has 1 parameters",
		"argument 0 has type " + dtype.Float32.String() + "*",
		"calls undefined function g",
		"private function private has no body",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("verification error %q does not report %q", err.Error(), want)
		}
	}
}

func TestCells(t *testing.T) {
	m := module.New("main", nil, nil)
	defer dispose(t, m)
	cell, err := m.AddGlobal("points.size")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cell.Int(); !errors.Is(err, fmterr.ErrInternal) {
		t.Errorf("loading a cell never written returned %v but want an internal error", err)
	}
	cell.StoreInt(4)
	if got, err := cell.Int(); err != nil || got != 4 {
		t.Errorf("got %d, %v but want 4", got, err)
	}
	if _, err := cell.Ptr(); err == nil {
		t.Errorf("loading an integer cell as a pointer did not fail")
	}
	v := 3.0
	cell.StorePtr(unsafe.Pointer(&v))
	if got, err := cell.Ptr(); err != nil || got != unsafe.Pointer(&v) {
		t.Errorf("got %p, %v but want %p", got, err, &v)
	}
	cell.StorePtr(nil)
	if !cell.IsNull() {
		t.Errorf("cell not null after storing a nil pointer")
	}
	if got, err := cell.Ptr(); err != nil || got != nil {
		t.Errorf("got %p, %v but want the null pointer", got, err)
	}
}

func TestDispose(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	m := module.New("main", nil, nil)
	if err := m.AddFunction(&module.Function{Name: "f", Body: module.Native(func([]module.Value) error { return nil })}); err != nil {
		t.Fatal(err)
	}
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, err := m.FunctionAddress("f")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Dispose(); err != nil {
		t.Fatal(err)
	}
	if _, err := module.Resolve(addr); err == nil {
		t.Errorf("resolving the address of a disposed module succeeded")
	}
	if err := m.Dispose(); err != nil {
		t.Errorf("disposing twice: %v", err)
	}
}

func TestPrint(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	m := module.New("main", nil, nil)
	defer dispose(t, m)
	if _, err := m.AddGlobal("points.size"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFunction(&module.Function{
		Name:     "f",
		Params:   intParams,
		CallConv: module.FastCallConv,
		Body:     module.Native(func([]module.Value) error { return nil }),
	}); err != nil {
		t.Fatal(err)
	}
	var ir strings.Builder
	if err := m.Print(&ir); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"; module main", "@points.size = global ptr", "define fastcc void @f(i32 %n)"} {
		if !strings.Contains(ir.String(), want) {
			t.Errorf("IR:\n%s\ndoes not contain %q", ir.String(), want)
		}
	}
	var machine strings.Builder
	if err := m.PrintMachine(&machine); !errors.Is(err, module.ErrNotFinalized) {
		t.Errorf("printing machine code before finalization returned %v", err)
	}
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	cell, _ := m.Global("points.size")
	cell.StoreInt(4)
	if err := m.PrintMachine(&machine); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<f> fastcc", "@points.size = i32 4"} {
		if !strings.Contains(machine.String(), want) {
			t.Errorf("machine code:\n%s\ndoes not contain %q", machine.String(), want)
		}
	}
}
