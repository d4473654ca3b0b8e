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

package module

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unsafe"

	"github.com/gx-org/backend/dtype"
)

// Type of a parameter, a constant or a global of a module.
type Type interface {
	String() string
}

type (
	// IntType is a machine integer.
	IntType struct{}

	// PtrType is a pointer to components.
	PtrType struct {
		Elem dtype.DataType
	}

	// ArrayType is a fixed number of components passed by value.
	ArrayType struct {
		Elem dtype.DataType
		Len  int
	}

	// StructType is an aggregate of values.
	StructType struct {
		Name   string
		Fields []Type
	}
)

// String representation of the type.
func (IntType) String() string {
	return "i32"
}

// String representation of the type.
func (t PtrType) String() string {
	return t.Elem.String() + "*"
}

// String representation of the type.
func (t ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem.String())
}

// String representation of the type.
func (t *StructType) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	return fmt.Sprintf("%%%s = {%s}", t.Name, strings.Join(fields, ", "))
}

// Equal returns true if two types are structurally equal.
func Equal(a, b Type) bool {
	switch aT := a.(type) {
	case IntType:
		_, ok := b.(IntType)
		return ok
	case PtrType:
		bT, ok := b.(PtrType)
		return ok && aT == bT
	case ArrayType:
		bT, ok := b.(ArrayType)
		return ok && aT == bT
	case *StructType:
		bT, ok := b.(*StructType)
		if !ok || len(aT.Fields) != len(bT.Fields) {
			return false
		}
		for i, f := range aT.Fields {
			if !Equal(f, bT.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Value is a constant of a module.
type Value interface {
	Type() Type
	String() string
}

type (
	// Int is a constant integer.
	Int struct {
		V int
	}

	// Ptr is a constant pointer.
	Ptr struct {
		Typ PtrType
		P   unsafe.Pointer
	}

	// Array is a constant array of components.
	Array struct {
		Typ ArrayType
		Raw []byte
	}

	// Struct is a constant aggregate.
	Struct struct {
		Typ    *StructType
		Fields []Value
	}
)

var (
	_ Value = Int{}
	_ Value = Ptr{}
	_ Value = Array{}
	_ Value = Struct{}
)

// Type of the value.
func (Int) Type() Type {
	return IntType{}
}

// String representation of the value.
func (v Int) String() string {
	return fmt.Sprintf("i32 %d", v.V)
}

// Type of the value.
func (v Ptr) Type() Type {
	return v.Typ
}

// String representation of the value.
func (v Ptr) String() string {
	if v.P == nil {
		return v.Typ.String() + " null"
	}
	return fmt.Sprintf("%s %p", v.Typ, v.P)
}

// Type of the value.
func (v Array) Type() Type {
	return v.Typ
}

// String representation of the value.
func (v Array) String() string {
	return fmt.Sprintf("%s x'%s'", v.Typ, hex.EncodeToString(v.Raw))
}

// Type of the value.
func (v Struct) Type() Type {
	return v.Typ
}

// String representation of the value.
func (v Struct) String() string {
	fields := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		fields[i] = f.String()
	}
	return fmt.Sprintf("%%%s {%s}", v.Typ.Name, strings.Join(fields, ", "))
}
