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

package engine

import (
	"slices"
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/build/ir/irkind"
	"github.com/gx-org/simjit/graph"
	"go.uber.org/zap"
)

type (
	// Actual is a value bound to a bindable.
	Actual interface {
		actual()
	}

	// SetActual is a set bound to a bindable.
	SetActual struct {
		Set *graph.Set
	}

	// TensorActual is tensor data bound to a bindable.
	// Matrix is set for sparse matrices.
	TensorActual struct {
		Data   unsafe.Pointer
		Matrix *SparseMatrix
	}

	// SparseMatrix is a sparse matrix in compressed sparse row format.
	SparseMatrix struct {
		Data   unsafe.Pointer
		RowPtr unsafe.Pointer
		ColInd unsafe.Pointer
	}
)

func (SetActual) actual()    {}
func (TensorActual) actual() {}

func (e *Engine) bindable(name string) (ir.Var, error) {
	v, ok := e.fn.Bindable(name)
	if !ok {
		return ir.Var{}, fmterr.Preconditionf("%s is not a bindable of %s", name, e.fn.Name)
	}
	return v, nil
}

func (e *Engine) slots(name string, want int) ([]*Slot, error) {
	slots, ok := e.externSlots[name]
	if !ok {
		return nil, fmterr.Preconditionf("extern %s does not have any slot", name)
	}
	if len(slots) != want {
		return nil, fmterr.Preconditionf("extern %s has %d slots but %d are required", name, len(slots), want)
	}
	return slots, nil
}

func (e *Engine) bindArgument(name string, actual Actual) {
	e.arguments.Store(name, actual)
	e.markStale()
	e.log.Debug("argument bound", zap.String("name", name))
}

// BindSet binds a set to a bindable of type set.
//
// Binding an argument invalidates the entry point returned by Init.
// Binding a global writes the size of the set followed by a pointer to the
// data of every field, in the order of the element type fields. It also
// invalidates the entry point if the set sizes a temporary or a tensor
// index. Growing a bound set in place requires binding it again.
func (e *Engine) BindSet(name string, set *graph.Set) error {
	if err := e.checkAlive("bind " + name); err != nil {
		return err
	}
	v, err := e.bindable(name)
	if err != nil {
		return err
	}
	typ, err := v.Set()
	if err != nil {
		return err
	}
	if err := checkFields(name, typ, set); err != nil {
		return err
	}
	if e.fn.IsArg(name) {
		e.bindArgument(name, SetActual{Set: set})
		return nil
	}
	fields := typ.Element.Fields
	slots, err := e.slots(name, 1+len(fields))
	if err != nil {
		return err
	}
	e.globals.Store(name, SetActual{Set: set})
	if e.sizedBy(name) {
		e.markStale()
	}
	e.storeInt(slots[0], set.Size())
	for i, f := range fields {
		data, err := set.FieldData(f.Name)
		if err != nil {
			return fmterr.Precondition(err)
		}
		e.storePtr(slots[i+1], data)
	}
	return nil
}

// sizedBy returns true if the dimension of a temporary or the path
// expression of a tensor index depends on a set.
func (e *Engine) sizedBy(set string) bool {
	env := e.fn.Env
	if env == nil {
		return false
	}
	for _, tmp := range env.Temporaries() {
		tensor, ok := tmp.Type.(*ir.TensorType)
		if !ok {
			continue
		}
		for _, dim := range tensor.Dimensions() {
			for _, is := range dim.IndexSets() {
				if is.SetName() == set {
					return true
				}
			}
		}
	}
	for _, ti := range env.TensorIndices() {
		if slices.Contains(ti.PathExpression().Sets(), set) {
			return true
		}
	}
	return false
}

func checkFields(name string, typ *ir.SetType, set *graph.Set) error {
	if got, want := len(set.Fields()), len(typ.Element.Fields); got != want {
		return fmterr.Preconditionf("set bound to %s has %d fields but %s has %d", name, got, typ, want)
	}
	if typ.IsEdgeSet() && set.Cardinality() != len(typ.EndpointSets) {
		return fmterr.Preconditionf("set bound to %s has %d endpoints but %s has %d", name, set.Cardinality(), typ, len(typ.EndpointSets))
	}
	for _, f := range typ.Element.Fields {
		field, ok := set.Field(f.Name)
		if !ok {
			return fmterr.Preconditionf("set bound to %s has no field %s", name, f.Name)
		}
		if got, want := field.DType(), f.Type.ComponentType(); got != want {
			return fmterr.Preconditionf("field %s of the set bound to %s has type %s but want %s", f.Name, name, got.String(), want.String())
		}
	}
	return nil
}

// BindTensor binds a pointer to dense tensor data to a bindable of type tensor.
//
// Binding an argument invalidates the entry point returned by Init.
// Binding a global writes the pointer to its slot.
func (e *Engine) BindTensor(name string, data unsafe.Pointer) error {
	if err := e.checkAlive("bind " + name); err != nil {
		return err
	}
	v, err := e.bindable(name)
	if err != nil {
		return err
	}
	if _, err := v.Tensor(); err != nil {
		return err
	}
	if e.fn.IsArg(name) {
		e.bindArgument(name, TensorActual{Data: data})
		return nil
	}
	slots, err := e.slots(name, 1)
	if err != nil {
		return err
	}
	e.globals.Store(name, TensorActual{Data: data})
	e.storePtr(slots[0], data)
	return nil
}

// BindSparse binds a sparse matrix to a global of type tensor.
// The pointers to the values, the row pointers and the column indices are
// written to the three slots of the global, in that order.
func (e *Engine) BindSparse(name string, matrix *SparseMatrix) error {
	if err := e.checkAlive("bind " + name); err != nil {
		return err
	}
	v, err := e.bindable(name)
	if err != nil {
		return err
	}
	if _, err := v.Tensor(); err != nil {
		return err
	}
	if e.fn.IsArg(name) {
		return fmterr.Preconditionf("cannot bind a sparse matrix to argument %s: only global sparse matrices are supported", name)
	}
	slots, err := e.slots(name, 3)
	if err != nil {
		return err
	}
	e.globals.Store(name, TensorActual{Data: matrix.Data, Matrix: matrix})
	e.storePtr(slots[0], matrix.Data)
	e.storePtr(slots[1], matrix.RowPtr)
	e.storePtr(slots[2], matrix.ColInd)
	return nil
}

// BindSlice binds the data of a Go slice to a bindable of type tensor.
// The Go type of the slice elements has to match the component type of the
// tensor. The caller keeps the slice alive while the engine uses it.
func BindSlice[T dtype.GoDataType](e *Engine, name string, data []T) error {
	v, err := e.bindable(name)
	if err != nil {
		return err
	}
	typ, err := v.Tensor()
	if err != nil {
		return err
	}
	if got, want := irkind.KindGeneric[T]().DType(), typ.ComponentType(); got != want {
		return fmterr.Preconditionf("cannot bind a slice of %s to %s of type %s", got.String(), name, typ)
	}
	if size, err := typ.Size(); err == nil && len(data) < size {
		return fmterr.Preconditionf("cannot bind a slice of length %d to %s of type %s with %d components", len(data), name, typ, size)
	}
	return e.BindTensor(name, unsafe.Pointer(unsafe.SliceData(data)))
}

// Actual returns the value bound to a bindable.
func (e *Engine) Actual(name string) (Actual, bool) {
	if actual, ok := e.arguments.Load(name); ok {
		return actual, true
	}
	return e.globals.Load(name)
}
