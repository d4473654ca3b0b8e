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

package harness

import (
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/graph"
)

// SetValue returns the constant passing a set to a parameter.
func SetValue(typ *ir.SetType, set *graph.Set, param module.Type) (module.Value, error) {
	st, ok := param.(*module.StructType)
	if !ok {
		return nil, fmterr.Internalf("cannot pass a set to a parameter of type %s", param)
	}
	if typ.IsEdgeSet() != set.IsEdgeSet() {
		return nil, fmterr.Preconditionf("cannot pass a set with %d endpoints as a %s", set.Cardinality(), typ)
	}
	intPtr := module.PtrType{Elem: dtype.Int32}
	fields := []module.Value{module.Int{V: set.Size()}}
	if typ.IsEdgeSet() {
		nbrs := set.NeighborIndex()
		fields = append(fields,
			module.Ptr{Typ: intPtr, P: set.EndpointsData()},
			module.Ptr{Typ: intPtr, P: nbrs.StartData()},
			module.Ptr{Typ: intPtr, P: nbrs.NeighborsData()},
		)
	}
	for _, f := range typ.Element.Fields {
		data, err := set.FieldData(f.Name)
		if err != nil {
			return nil, fmterr.Precondition(err)
		}
		fields = append(fields, module.Ptr{
			Typ: module.PtrType{Elem: f.Type.ComponentType()},
			P:   data,
		})
	}
	return module.Struct{Typ: st, Fields: fields}, nil
}

// TensorValue returns the constant passing tensor data to a parameter:
// either a pointer to the data or a copy of the data.
func TensorValue(typ *ir.TensorType, data unsafe.Pointer, param module.Type) (module.Value, error) {
	switch paramT := param.(type) {
	case module.PtrType:
		return module.Ptr{Typ: paramT, P: data}, nil
	case module.ArrayType:
		if data == nil {
			return nil, fmterr.Preconditionf("cannot pass %s by value from a null pointer", typ)
		}
		size := paramT.Len * dtype.Sizeof(paramT.Elem)
		raw := make([]byte, size)
		copy(raw, unsafe.Slice((*byte)(data), size))
		return module.Array{Typ: paramT, Raw: raw}, nil
	default:
		return nil, fmterr.Internalf("cannot pass %s to a parameter of type %s", typ, param)
	}
}
