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
	"github.com/gx-org/simjit/base/handle"
	"github.com/gx-org/simjit/build/fmterr"
)

// Addr is the machine address of finalized code.
// The zero address is the null address.
type Addr = handle.Handle

// Code is the finalized, callable code of a function.
type Code struct {
	name     string
	params   []Param
	callConv CallConv
	run      func(args []Value) error
}

// Name of the function.
func (c *Code) Name() string {
	return c.name
}

// CallConv returns the calling convention of the code.
func (c *Code) CallConv() CallConv {
	return c.callConv
}

// Call the code with some arguments.
func (c *Code) Call(args ...Value) error {
	if len(args) != len(c.params) {
		return fmterr.Internalf("calling %s with %d arguments but it expects %d", c.name, len(args), len(c.params))
	}
	for i, arg := range args {
		if !Equal(arg.Type(), c.params[i].Type) {
			return fmterr.Internalf("calling %s: argument %d has type %s but parameter %s has type %s", c.name, i, arg.Type(), c.params[i].Name, c.params[i].Type)
		}
	}
	return c.run(args)
}

// Resolve returns the code at a machine address.
func Resolve(addr Addr) (*Code, error) {
	if addr == 0 {
		return nil, fmterr.Internalf("calling the null address")
	}
	code, ok := handle.Unwrap[*Code](addr)
	if !ok {
		return nil, fmterr.Internalf("no code at address %#x", uintptr(addr))
	}
	return code, nil
}
