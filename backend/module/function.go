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
	"fmt"
	"strings"
)

// CallConv is the calling convention of a function.
type CallConv int

const (
	// CCallConv is the calling convention of functions callable from Go.
	CCallConv CallConv = iota
	// FastCallConv is the calling convention of generated program functions.
	FastCallConv
)

// String representation of the calling convention.
func (cc CallConv) String() string {
	if cc == FastCallConv {
		return "fastcc"
	}
	return "ccc"
}

// Linkage of a function.
type Linkage int

const (
	// ExternalLinkage functions are visible from other modules.
	ExternalLinkage Linkage = iota
	// PrivateLinkage functions are only visible from their module.
	PrivateLinkage
)

// Param is a parameter of a function.
type Param struct {
	Name string
	Type Type
}

// Body of a function.
type Body interface {
	body()
}

// Native is a body implemented in Go.
// It receives the arguments of the call.
type Native func(args []Value) error

// Call is a body made of a single call to another function with constant
// arguments.
type Call struct {
	Callee   string
	Args     []Value
	CallConv CallConv
}

func (Native) body() {}

func (*Call) body() {}

// Function of a module. A function with no body is a declaration: its
// code is resolved from the symbols of the module when it is finalized.
type Function struct {
	Name     string
	Params   []Param
	CallConv CallConv
	Linkage  Linkage
	Body     Body
}

// IsDeclaration returns true if the function has no body.
func (f *Function) IsDeclaration() bool {
	return f.Body == nil
}

func (f *Function) signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Type, p.Name)
	}
	return fmt.Sprintf("%s void @%s(%s)", f.CallConv, f.Name, strings.Join(params, ", "))
}

// String representation of the function.
func (f *Function) String() string {
	switch body := f.Body.(type) {
	case nil:
		return "declare " + f.signature()
	case Native:
		return "define " + f.signature() + " {\n  native\n}"
	case *Call:
		args := make([]string, len(body.Args))
		for i, arg := range body.Args {
			args[i] = arg.String()
		}
		return fmt.Sprintf("define %s {\n  call %s void @%s(%s)\n}", f.signature(), body.CallConv, body.Callee, strings.Join(args, ", "))
	}
	return "define " + f.signature() + " {\n  unknown\n}"
}
