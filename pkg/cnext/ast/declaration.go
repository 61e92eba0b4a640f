// Copyright The go-cnext Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package ast

import (
	"fmt"
	"strings"
)

// Node is anything in the parse tree which can be registered against a span
// in a source map, and hence reported against in an error.
type Node interface {
	// Produce a string representation of this node.  This is primarily used
	// for debugging purposes.
	String() string
}

// Declaration represents a top-level declaration in a C-Next source file
// (e.g. a scope, struct, enum, bitmap, register, callback, function or
// file-level variable).
type Declaration interface {
	Node
	// DeclaredName returns the name introduced by this declaration, or the
	// empty string for declarations which introduce no name.
	DeclaredName() string
}

// Unit is a complete translation unit: one parsed C-Next source file.
type Unit struct {
	// Pass-through include directives, in source order.
	Includes []*Include
	// Top-level declarations, in source order.
	Declarations []Declaration
}

func (p *Unit) String() string {
	return fmt.Sprintf("unit(%d declarations)", len(p.Declarations))
}

// ============================================================================
// Modifiers
// ============================================================================

// Modifiers is the set of declaration modifiers.  Modifier order in source is
// immaterial (e.g. "atomic wrap u32" and "wrap atomic u32" are identical).
type Modifiers uint

const (
	// MOD_CONST marks a constant declaration.
	MOD_CONST Modifiers = 1 << iota
	// MOD_ATOMIC marks an atomic variable.
	MOD_ATOMIC
	// MOD_WRAP selects modular overflow behaviour.
	MOD_WRAP
	// MOD_CLAMP selects saturating overflow behaviour.
	MOD_CLAMP
	// MOD_PUBLIC marks a scope member visible outside its scope.
	MOD_PUBLIC
	// MOD_PRIVATE marks a scope member hidden outside its scope.
	MOD_PRIVATE
)

// Has checks whether a given modifier is present.
func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag != 0
}

func (m Modifiers) String() string {
	var parts []string
	//
	if m.Has(MOD_PUBLIC) {
		parts = append(parts, "public")
	}
	//
	if m.Has(MOD_PRIVATE) {
		parts = append(parts, "private")
	}
	//
	if m.Has(MOD_CONST) {
		parts = append(parts, "const")
	}
	//
	if m.Has(MOD_ATOMIC) {
		parts = append(parts, "atomic")
	}
	//
	if m.Has(MOD_WRAP) {
		parts = append(parts, "wrap")
	}
	//
	if m.Has(MOD_CLAMP) {
		parts = append(parts, "clamp")
	}
	//
	return strings.Join(parts, " ")
}

// ============================================================================
// Include
// ============================================================================

// Include is a pass-through #include directive found in the source file.
type Include struct {
	// Header names the file being included, excluding delimiters.
	Header string
	// System indicates an angle-bracketed include.
	System bool
}

func (p *Include) String() string {
	if p.System {
		return fmt.Sprintf("#include <%s>", p.Header)
	}
	//
	return fmt.Sprintf("#include \"%s\"", p.Header)
}

// ============================================================================
// Variable
// ============================================================================

// Variable is a variable declaration, either at file scope, within a scope
// block, or local to a function body (where it doubles as a statement).
type Variable struct {
	Modifiers Modifiers
	Type      Type
	Name      string
	// Initialiser, or nil if the variable is declared unassigned.
	Initialiser Expr
}

// DeclaredName returns the name introduced by this declaration.
func (p *Variable) DeclaredName() string {
	return p.Name
}

func (p *Variable) String() string {
	if p.Initialiser != nil {
		return fmt.Sprintf("%s %s %s <- %s", p.Modifiers, p.Type.String(), p.Name, p.Initialiser.String())
	}
	//
	return fmt.Sprintf("%s %s %s", p.Modifiers, p.Type.String(), p.Name)
}

// ============================================================================
// Function
// ============================================================================

// Parameter is a single function (or callback) parameter.
type Parameter struct {
	Name string
	Type Type
	// Const indicates the parameter cannot be mutated by the callee.
	Const bool
	// ByValue explicitly tags this parameter for pass-by-value, overriding
	// the pass-by-pointer promotion.
	ByValue bool
}

func (p *Parameter) String() string {
	return fmt.Sprintf("%s %s", p.Type.String(), p.Name)
}

// Function is a function declaration with a body.
type Function struct {
	Modifiers Modifiers
	Name      string
	Params    []*Parameter
	Return    Type
	Body      *Block
}

// DeclaredName returns the name introduced by this declaration.
func (p *Function) DeclaredName() string {
	return p.Name
}

func (p *Function) String() string {
	params := make([]string, len(p.Params))
	for i, param := range p.Params {
		params[i] = param.String()
	}
	//
	return fmt.Sprintf("%s %s(%s)", p.Return.String(), p.Name, strings.Join(params, ", "))
}

// ============================================================================
// Scope
// ============================================================================

// Scope is a modular scope block grouping declarations under a prefix.
// Members carry public / private visibility modifiers.
type Scope struct {
	Name    string
	Members []Declaration
}

// DeclaredName returns the name introduced by this declaration.
func (p *Scope) DeclaredName() string {
	return p.Name
}

func (p *Scope) String() string {
	return fmt.Sprintf("scope %s(%d members)", p.Name, len(p.Members))
}

// ============================================================================
// Struct
// ============================================================================

// StructField is a single field of a struct declaration.
type StructField struct {
	Name string
	Type Type
}

// Struct is a struct declaration.
type Struct struct {
	Name   string
	Fields []*StructField
}

// DeclaredName returns the name introduced by this declaration.
func (p *Struct) DeclaredName() string {
	return p.Name
}

func (p *Struct) String() string {
	return fmt.Sprintf("struct %s(%d fields)", p.Name, len(p.Fields))
}

// ============================================================================
// Enum
// ============================================================================

// EnumMember is a single member of an enum declaration, with an optional
// explicit value.
type EnumMember struct {
	Name string
	// Explicit value expression, or nil for auto-assignment.
	Value Expr
}

// Enum is an enum declaration.
type Enum struct {
	Name    string
	Members []*EnumMember
}

// DeclaredName returns the name introduced by this declaration.
func (p *Enum) DeclaredName() string {
	return p.Name
}

func (p *Enum) String() string {
	return fmt.Sprintf("enum %s(%d members)", p.Name, len(p.Members))
}

// ============================================================================
// Bitmap
// ============================================================================

// BitmapField is a single named bit field.  Width is the number of bits,
// defaulting to one.  Fields are packed LSB-first in declaration order unless
// an explicit offset pins them (e.g. to match a hardware layout).
type BitmapField struct {
	Name  string
	Width uint
	// Explicit bit offset, or nil for sequential packing.
	Offset *uint
}

// Bitmap is a bitmap declaration, partitioning a backing integer into
// contiguous named bit fields.
type Bitmap struct {
	Name string
	// Backing width in bits (8, 16, 24, 32 or 64).
	Backing uint
	Fields  []*BitmapField
}

// DeclaredName returns the name introduced by this declaration.
func (p *Bitmap) DeclaredName() string {
	return p.Name
}

func (p *Bitmap) String() string {
	return fmt.Sprintf("bitmap%d %s(%d fields)", p.Backing, p.Name, len(p.Fields))
}

// ============================================================================
// Register
// ============================================================================

// AccessMode determines how a register member may be accessed.
type AccessMode uint

const (
	// RO members are read-only.
	RO AccessMode = iota
	// RW members are read-write.
	RW
	// WO members are write-only.
	WO
	// W1C members are written with ones to clear; reads are rejected.
	W1C
	// W1S members are written with ones to set; reads are rejected.
	W1S
)

// LookupAccessMode maps a mode name (as written in source) to its tag.
func LookupAccessMode(name string) (AccessMode, bool) {
	switch name {
	case "ro":
		return RO, true
	case "rw":
		return RW, true
	case "wo":
		return WO, true
	case "w1c":
		return W1C, true
	case "w1s":
		return W1S, true
	}
	//
	return RO, false
}

// Readable checks whether members of this mode may be read.
func (m AccessMode) Readable() bool {
	return m == RO || m == RW
}

// Writable checks whether members of this mode may be written.
func (m AccessMode) Writable() bool {
	return m != RO
}

func (m AccessMode) String() string {
	switch m {
	case RO:
		return "ro"
	case RW:
		return "rw"
	case WO:
		return "wo"
	case W1C:
		return "w1c"
	case W1S:
		return "w1s"
	}
	//
	panic("unknown access mode")
}

// RegisterMember is a single member of a register declaration, located at a
// byte offset from the register base address.
type RegisterMember struct {
	Name string
	// Member type; may name a bitmap, in which case field accesses pass
	// through the usual shift-and-mask generation.
	Type Type
	Mode AccessMode
	// Byte offset from the register base address.
	Offset uint64
}

// Register is a memory-mapped register declaration at a fixed base address.
type Register struct {
	Name    string
	Address uint64
	Members []*RegisterMember
}

// DeclaredName returns the name introduced by this declaration.
func (p *Register) DeclaredName() string {
	return p.Name
}

func (p *Register) String() string {
	return fmt.Sprintf("register %s @ %#x(%d members)", p.Name, p.Address, len(p.Members))
}

// ============================================================================
// Callback
// ============================================================================

// Callback declares a named function-pointer type, usable as a parameter or
// field type.
type Callback struct {
	Name   string
	Return Type
	Params []*Parameter
}

// DeclaredName returns the name introduced by this declaration.
func (p *Callback) DeclaredName() string {
	return p.Name
}

func (p *Callback) String() string {
	params := make([]string, len(p.Params))
	for i, param := range p.Params {
		params[i] = param.String()
	}
	//
	return fmt.Sprintf("callback %s %s(%s)", p.Return.String(), p.Name, strings.Join(params, ", "))
}
