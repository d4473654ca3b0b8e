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

// Package irkind defines the kinds of the types of a simulation program.
package irkind

import "github.com/gx-org/backend/dtype"

// Kind of a type.
type Kind uint

// Kind of component supported in tensors and fields.
const (
	Invalid = Kind(dtype.Invalid)

	Bool    = Kind(dtype.Bool)
	Int32   = Kind(dtype.Int32)
	Int64   = Kind(dtype.Int64)
	Uint32  = Kind(dtype.Uint32)
	Uint64  = Kind(dtype.Uint64)
	Float32 = Kind(dtype.Float32)
	Float64 = Kind(dtype.Float64)

	// Tensor of components indexed by index domains.
	Tensor = Kind(iota + dtype.MaxDataType)
	// Element of a set: a list of named fields.
	Element
	// Set of elements.
	Set
	// Tuple of elements.
	Tuple
	// Array of components with no index domain.
	Array

	// Max value for a Kind constant.
	Max
)

// String returns a string representation of a kind.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Tensor:
		return "tensor"
	case Element:
		return "element"
	case Set:
		return "set"
	case Tuple:
		return "tuple"
	case Array:
		return "array"
	}
	return "invalid"
}

// DType converts a component kind into a data type.
func (k Kind) DType() dtype.DataType {
	if k >= dtype.MaxDataType {
		return dtype.Invalid
	}
	return dtype.DataType(k)
}

// IsComponent returns true if the kind can be stored in a tensor.
func IsComponent(k Kind) bool {
	switch k {
	case Bool, Int32, Int64, Uint32, Uint64, Float32, Float64:
		return true
	}
	return false
}

// KindGeneric returns the kind of a component from its Go type.
// If the type is not supported, an invalid kind is returned.
func KindGeneric[T dtype.GoDataType]() Kind {
	return Kind(dtype.Generic[T]())
}
