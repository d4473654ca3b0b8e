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

// Package ir describes the typed programs handed over by the compiler
// front end: the types of the program variables, the environment of
// external, temporary and index variables and the functions.
package ir

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir/irkind"
)

// Type of a program variable.
type Type interface {
	// Kind of the type.
	Kind() irkind.Kind
	// String representation of the type.
	String() string
}

// TensorType is the type of a tensor: components of a data type indexed by
// index domains. A tensor with no dimension is a scalar.
type TensorType struct {
	dt           dtype.DataType
	dims         []IndexDomain
	columnVector bool
}

var _ Type = (*TensorType)(nil)

// NewTensor returns a tensor type given its component type and its dimensions.
func NewTensor(dt dtype.DataType, dims []IndexDomain, columnVector bool) *TensorType {
	return &TensorType{dt: dt, dims: dims, columnVector: columnVector}
}

// Scalar returns the type of a scalar.
func Scalar(dt dtype.DataType) *TensorType {
	return &TensorType{dt: dt}
}

// Kind of the type.
func (*TensorType) Kind() irkind.Kind {
	return irkind.Tensor
}

// ComponentType returns the data type of the tensor components.
func (t *TensorType) ComponentType() dtype.DataType {
	return t.dt
}

// ComponentBytes returns the size of a component in bytes.
func (t *TensorType) ComponentBytes() int {
	return dtype.Sizeof(t.dt)
}

// Order returns the number of dimensions of the tensor.
func (t *TensorType) Order() int {
	return len(t.dims)
}

// Dimensions of the tensor.
func (t *TensorType) Dimensions() []IndexDomain {
	return t.dims
}

// IsColumnVector returns true if the tensor is a column vector.
func (t *TensorType) IsColumnVector() bool {
	return t.columnVector
}

func (t *TensorType) maxNesting() int {
	maxNest := 0
	for _, dim := range t.dims {
		maxNest = max(maxNest, len(dim.sets))
	}
	return maxNest
}

// OuterDimensions returns the outer index set of every dimension with the
// maximum number of nested index sets.
func (t *TensorType) OuterDimensions() []IndexSet {
	maxNest := t.maxNesting()
	var outer []IndexSet
	for _, dim := range t.dims {
		if maxNest > 0 && len(dim.sets) == maxNest {
			outer = append(outer, dim.sets[0])
		}
	}
	return outer
}

// BlockType returns the type of the blocks of a blocked tensor.
// The block of a tensor with no nested index set is a scalar.
func (t *TensorType) BlockType() *TensorType {
	if len(t.dims) == 0 || len(t.dims[0].sets) <= 1 {
		return Scalar(t.dt)
	}
	maxNest := t.maxNesting()
	blockDims := make([]IndexDomain, len(t.dims))
	for i, dim := range t.dims {
		if len(dim.sets) < maxNest {
			blockDims[i] = dim
			continue
		}
		blockDims[i] = IndexDomain{sets: dim.sets[1:]}
	}
	return NewTensor(t.dt, blockDims, t.columnVector)
}

// Size returns the number of components of the tensor, as known statically.
// Returns an error if a dimension depends on the size of a set.
func (t *TensorType) Size() (int, error) {
	size := 1
	for _, dim := range t.dims {
		dimSize, err := dim.Size()
		if err != nil {
			return 0, err
		}
		size *= dimSize
	}
	return size, nil
}

// IsSparse returns true if the tensor has at least two dimensions and one of
// them is not a range.
func (t *TensorType) IsSparse() bool {
	if t.Order() < 2 {
		return false
	}
	for _, dim := range t.dims {
		for _, is := range dim.sets {
			if is.kind != RangeKind {
				return true
			}
		}
	}
	return false
}

// HasSystemDimensions returns true if a dimension of the tensor is indexed
// by a set.
func (t *TensorType) HasSystemDimensions() bool {
	for _, dim := range t.dims {
		for _, is := range dim.sets {
			if is.kind == SetKind {
				return true
			}
		}
	}
	return false
}

// String representation of the type.
func (t *TensorType) String() string {
	if t.Order() == 0 {
		return t.dt.String()
	}
	outer := t.OuterDimensions()
	dims := make([]string, len(outer))
	for i, is := range outer {
		dims[i] = is.String()
	}
	s := fmt.Sprintf("tensor[%s](%s)", strings.Join(dims, ","), t.BlockType())
	if t.Order() == 1 && !t.columnVector {
		s += "'"
	}
	return s
}

// Field of an element.
type Field struct {
	Name string
	Type *TensorType
}

// ElementType is the type of the elements of a set.
// Element type names are unique.
type ElementType struct {
	Name   string
	Fields []Field
}

var _ Type = (*ElementType)(nil)

// Kind of the type.
func (*ElementType) Kind() irkind.Kind {
	return irkind.Element
}

// Field returns a field given its name.
func (t *ElementType) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String representation of the type.
func (t *ElementType) String() string {
	return t.Name
}

// SetType is the type of a set. A set with endpoint sets is an edge set.
type SetType struct {
	Element      *ElementType
	EndpointSets []string
}

var _ Type = (*SetType)(nil)

// Kind of the type.
func (*SetType) Kind() irkind.Kind {
	return irkind.Set
}

// IsEdgeSet returns true if the elements of the set have endpoints.
func (t *SetType) IsEdgeSet() bool {
	return len(t.EndpointSets) > 0
}

// String representation of the type.
func (t *SetType) String() string {
	s := "set{" + t.Element.Name + "}"
	if t.IsEdgeSet() {
		s += "(" + strings.Join(t.EndpointSets, ", ") + ")"
	}
	return s
}

// TupleType is the type of a fixed number of elements.
type TupleType struct {
	Element *ElementType
	Size    int
}

var _ Type = (*TupleType)(nil)

// Kind of the type.
func (*TupleType) Kind() irkind.Kind {
	return irkind.Tuple
}

// String representation of the type.
func (t *TupleType) String() string {
	return fmt.Sprintf("(%s*%d)", t.Element.Name, t.Size)
}

// ArrayType is the type of an array of components.
// An array with no size has its size known only at run time.
type ArrayType struct {
	Elem dtype.DataType
	Size int
}

var _ Type = (*ArrayType)(nil)

// Kind of the type.
func (*ArrayType) Kind() irkind.Kind {
	return irkind.Array
}

// String representation of the type.
func (t *ArrayType) String() string {
	if t.Size > 0 {
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Size)
	}
	return t.Elem.String() + "*"
}

// Var is a named program variable.
type Var struct {
	Name string
	Type Type
}

// String returns the name of the variable.
func (v Var) String() string {
	return v.Name
}

// Tensor returns the type of the variable as a tensor type.
func (v Var) Tensor() (*TensorType, error) {
	tensor, ok := v.Type.(*TensorType)
	if !ok {
		return nil, fmterr.Preconditionf("%s has type %s: not a tensor", v.Name, v.Type)
	}
	return tensor, nil
}

// Set returns the type of the variable as a set type.
func (v Var) Set() (*SetType, error) {
	set, ok := v.Type.(*SetType)
	if !ok {
		return nil, fmterr.Preconditionf("%s has type %s: not a set", v.Name, v.Type)
	}
	return set, nil
}
