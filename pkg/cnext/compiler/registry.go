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
package compiler

import (
	"fmt"
	"math/big"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
)

// Visibility determines whether a scope member can be accessed from outside
// its declaring scope.
type Visibility uint

const (
	// PUBLIC members are accessible from anywhere in the translation unit.
	PUBLIC Visibility = iota
	// PRIVATE members are accessible only within their declaring scope.
	PRIVATE
)

// QualifiedName constructs the registry key for a member of a given scope.
// File-level symbols use the empty scope.
func QualifiedName(scope string, name string) string {
	if scope == "" {
		return name
	}
	//
	return fmt.Sprintf("%s.%s", scope, name)
}

// FieldInfo describes a single struct field.
type FieldInfo struct {
	Name string
	Type ast.Type
}

// StructInfo describes a known struct, with fields in declaration order.
type StructInfo struct {
	Name   string
	Fields []*FieldInfo
	fields map[string]*FieldInfo
}

// Field looks up a field of this struct by name.
func (p *StructInfo) Field(name string) (*FieldInfo, bool) {
	field, ok := p.fields[name]
	return field, ok
}

// EnumInfo describes a known enum, mapping members to their values.
type EnumInfo struct {
	Name string
	// Members in declaration order.
	MemberOrder []string
	Members     map[string]int64
}

// BitRange locates a bitmap field within its backing integer.
type BitRange struct {
	Offset uint
	Width  uint
}

// BitmapInfo describes a known bitmap: a backing width and named, located
// fields.
type BitmapInfo struct {
	Name    string
	Backing uint
	// Fields in declaration order.
	FieldOrder []string
	Fields     map[string]BitRange
}

// RegisterMemberInfo describes a single member of a memory-mapped register.
type RegisterMemberInfo struct {
	Name string
	Type ast.Type
	Mode ast.AccessMode
	// Byte offset from the register base address.
	Offset uint64
}

// RegisterInfo describes a known memory-mapped register.
type RegisterInfo struct {
	Name    string
	Address uint64
	// Members in declaration order.
	MemberOrder []string
	Members     map[string]*RegisterMemberInfo
}

// ParamInfo is the analysed form of a function (or callback) parameter.
type ParamInfo struct {
	Name string
	Type ast.Type
	// Const indicates the parameter cannot be mutated by the callee.
	Const bool
	// ByValue records an explicit pass-by-value tag in the source.
	ByValue bool
	// ForcePointer marks parameters promoted to pointer form (arrays,
	// structs, strings, wide primitives); use sites must dereference.
	ForcePointer bool
	// Mutated indicates the function body assigns through this parameter,
	// either directly or (one hop) by passing it to a mutating callee.
	Mutated bool
}

// FunctionInfo describes a known function: its signature after parameter
// promotion, plus visibility when scoped.
type FunctionInfo struct {
	Name       string
	Scope      string
	Visibility Visibility
	Params     []*ParamInfo
	Return     ast.Type
	// Decl is the declaration this signature was built from.
	Decl *ast.Function
}

// Param looks up a parameter of this function by name.
func (p *FunctionInfo) Param(name string) (*ParamInfo, bool) {
	for _, param := range p.Params {
		if param.Name == name {
			return param, true
		}
	}
	//
	return nil, false
}

// IsMain determines whether this is the program entry point.
func (p *FunctionInfo) IsMain() bool {
	return p.Scope == "" && p.Name == "main"
}

// VariableInfo describes a known file-level or scope-level variable.
type VariableInfo struct {
	Name       string
	Scope      string
	Visibility Visibility
	Type       ast.Type
	Modifiers  ast.Modifiers
}

// CallbackInfo describes a known callback (function pointer) type.
type CallbackInfo struct {
	Name   string
	Params []*ParamInfo
	Return ast.Type
}

// ScopeInfo describes a known scope block and the visibility of its members.
type ScopeInfo struct {
	Name string
	// Members in declaration order.
	MemberOrder []string
	Members     map[string]Visibility
}

// Visibility looks up the visibility of a member of this scope.
func (p *ScopeInfo) Visibility(name string) (Visibility, bool) {
	vis, ok := p.Members[name]
	return vis, ok
}

// Registry is the per-translation-unit symbol table.  It is populated once,
// in declaration order, during a pre-pass over the parse tree, then frozen;
// expression generation never mutates it.
type Registry struct {
	scopes    map[string]*ScopeInfo
	structs   map[string]*StructInfo
	enums     map[string]*EnumInfo
	bitmaps   map[string]*BitmapInfo
	registers map[string]*RegisterInfo
	callbacks map[string]*CallbackInfo
	// Functions and variables keyed by qualified name (e.g. "Motor.start").
	functions map[string]*FunctionInfo
	variables map[string]*VariableInfo
	// Compile-time constant values keyed by qualified name.
	constValues map[string]*big.Int
	frozen      bool
}

// NewRegistry constructs an initially empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes:      make(map[string]*ScopeInfo),
		structs:     make(map[string]*StructInfo),
		enums:       make(map[string]*EnumInfo),
		bitmaps:     make(map[string]*BitmapInfo),
		registers:   make(map[string]*RegisterInfo),
		callbacks:   make(map[string]*CallbackInfo),
		functions:   make(map[string]*FunctionInfo),
		variables:   make(map[string]*VariableInfo),
		constValues: make(map[string]*big.Int),
	}
}

// Freeze marks the registry complete.  Any subsequent attempt to declare a
// symbol is a logic bug and panics.
func (p *Registry) Freeze() {
	p.frozen = true
}

func (p *Registry) checkMutable() {
	if p.frozen {
		panic("attempt to mutate frozen registry")
	}
}

// TypeName checks whether a given name refers to a declared type (struct,
// enum, bitmap or callback), or a scope or register, and hence cannot be
// shadowed or used as a plain variable.
func (p *Registry) TypeName(name string) bool {
	return p.IsStruct(name) || p.IsEnum(name) || p.IsBitmap(name) ||
		p.IsCallback(name) || p.IsScope(name) || p.IsRegister(name)
}

// ============================================================================
// Declaration (pre-pass only)
// ============================================================================

// DeclareScope registers a new scope block.  Returns false if the name is
// already taken.
func (p *Registry) DeclareScope(name string) bool {
	p.checkMutable()
	//
	if p.TypeName(name) {
		return false
	}
	//
	p.scopes[name] = &ScopeInfo{name, nil, make(map[string]Visibility)}
	//
	return true
}

// DeclareScopeMember records a member of a given scope along with its
// visibility.  Returns false if the member already exists.
func (p *Registry) DeclareScopeMember(scope string, name string, vis Visibility) bool {
	p.checkMutable()
	//
	info := p.scopes[scope]
	//
	if _, ok := info.Members[name]; ok {
		return false
	}
	//
	info.Members[name] = vis
	info.MemberOrder = append(info.MemberOrder, name)
	//
	return true
}

// DeclareStruct registers a new struct.  Returns false if the name is already
// taken, or a field is duplicated.
func (p *Registry) DeclareStruct(name string, fields []*FieldInfo) bool {
	p.checkMutable()
	//
	if p.TypeName(name) {
		return false
	}
	//
	info := &StructInfo{name, fields, make(map[string]*FieldInfo)}
	//
	for _, field := range fields {
		if _, ok := info.fields[field.Name]; ok {
			return false
		}
		//
		info.fields[field.Name] = field
	}
	//
	p.structs[name] = info
	//
	return true
}

// DeclareEnum registers a new enum with resolved member values.  Member
// values double as compile-time constants.  Returns false if the name is
// already taken.
func (p *Registry) DeclareEnum(name string, order []string, members map[string]int64) bool {
	p.checkMutable()
	//
	if p.TypeName(name) {
		return false
	}
	//
	p.enums[name] = &EnumInfo{name, order, members}
	//
	for member, value := range members {
		p.constValues[QualifiedName(name, member)] = big.NewInt(value)
	}
	//
	return true
}

// DeclareBitmap registers a new bitmap with located fields.  Returns false if
// the name is already taken.
func (p *Registry) DeclareBitmap(name string, backing uint, order []string, fields map[string]BitRange) bool {
	p.checkMutable()
	//
	if p.TypeName(name) {
		return false
	}
	//
	p.bitmaps[name] = &BitmapInfo{name, backing, order, fields}
	//
	return true
}

// DeclareRegister registers a new memory-mapped register.  Returns false if
// the name is already taken.
func (p *Registry) DeclareRegister(info *RegisterInfo) bool {
	p.checkMutable()
	//
	if p.TypeName(info.Name) {
		return false
	}
	//
	p.registers[info.Name] = info
	//
	return true
}

// DeclareCallback registers a new callback type.  Returns false if the name
// is already taken.
func (p *Registry) DeclareCallback(info *CallbackInfo) bool {
	p.checkMutable()
	//
	if p.TypeName(info.Name) {
		return false
	}
	//
	p.callbacks[info.Name] = info
	//
	return true
}

// DeclareFunction registers a new function under its qualified name.  Returns
// false if the name is already taken.
func (p *Registry) DeclareFunction(info *FunctionInfo) bool {
	p.checkMutable()
	//
	qname := QualifiedName(info.Scope, info.Name)
	//
	if _, ok := p.functions[qname]; ok {
		return false
	} else if _, ok := p.variables[qname]; ok {
		return false
	}
	//
	p.functions[qname] = info
	//
	return true
}

// DeclareVariable registers a new file-level or scope-level variable under
// its qualified name.  Returns false if the name is already taken.
func (p *Registry) DeclareVariable(info *VariableInfo) bool {
	p.checkMutable()
	//
	qname := QualifiedName(info.Scope, info.Name)
	//
	if _, ok := p.variables[qname]; ok {
		return false
	} else if _, ok := p.functions[qname]; ok {
		return false
	}
	//
	p.variables[qname] = info
	//
	return true
}

// DeclareConstValue records the compile-time value of a constant, enabling
// const folding at use sites.
func (p *Registry) DeclareConstValue(qname string, value *big.Int) {
	p.checkMutable()
	p.constValues[qname] = value
}

// ============================================================================
// Lookup (after freezing)
// ============================================================================

// IsScope checks whether a given name refers to a scope.
func (p *Registry) IsScope(name string) bool {
	_, ok := p.scopes[name]
	return ok
}

// IsStruct checks whether a given name refers to a struct.
func (p *Registry) IsStruct(name string) bool {
	_, ok := p.structs[name]
	return ok
}

// IsEnum checks whether a given name refers to an enum.
func (p *Registry) IsEnum(name string) bool {
	_, ok := p.enums[name]
	return ok
}

// IsBitmap checks whether a given name refers to a bitmap.
func (p *Registry) IsBitmap(name string) bool {
	_, ok := p.bitmaps[name]
	return ok
}

// IsRegister checks whether a given name refers to a register.
func (p *Registry) IsRegister(name string) bool {
	_, ok := p.registers[name]
	return ok
}

// IsCallback checks whether a given name refers to a callback type.
func (p *Registry) IsCallback(name string) bool {
	_, ok := p.callbacks[name]
	return ok
}

// Scope returns the information held about a given scope.
func (p *Registry) Scope(name string) (*ScopeInfo, bool) {
	info, ok := p.scopes[name]
	return info, ok
}

// Struct returns the information held about a given struct.
func (p *Registry) Struct(name string) (*StructInfo, bool) {
	info, ok := p.structs[name]
	return info, ok
}

// Enum returns the information held about a given enum.
func (p *Registry) Enum(name string) (*EnumInfo, bool) {
	info, ok := p.enums[name]
	return info, ok
}

// Bitmap returns the information held about a given bitmap.
func (p *Registry) Bitmap(name string) (*BitmapInfo, bool) {
	info, ok := p.bitmaps[name]
	return info, ok
}

// Register returns the information held about a given register.
func (p *Registry) Register(name string) (*RegisterInfo, bool) {
	info, ok := p.registers[name]
	return info, ok
}

// Callback returns the information held about a given callback type.
func (p *Registry) Callback(name string) (*CallbackInfo, bool) {
	info, ok := p.callbacks[name]
	return info, ok
}

// Function returns the function registered under a given qualified name.
func (p *Registry) Function(scope string, name string) (*FunctionInfo, bool) {
	info, ok := p.functions[QualifiedName(scope, name)]
	return info, ok
}

// Variable returns the variable registered under a given qualified name.
func (p *Registry) Variable(scope string, name string) (*VariableInfo, bool) {
	info, ok := p.variables[QualifiedName(scope, name)]
	return info, ok
}

// ConstValue returns the compile-time value of a constant, if known.
func (p *Registry) ConstValue(qname string) (*big.Int, bool) {
	value, ok := p.constValues[qname]
	return value, ok
}

// Functions returns all registered functions, for whole-unit analyses.
func (p *Registry) Functions() map[string]*FunctionInfo {
	return p.functions
}

// ResolveType fills in the kind flags of a NAMED type by consulting the
// registry: struct-ness, enum-ness, bitmap-ness (including backing width) and
// callback-ness.  Returns false if the name is unknown.
func (p *Registry) ResolveType(t ast.Type) (ast.Type, bool) {
	if t.Base != ast.NAMED {
		return t, true
	}
	//
	switch {
	case p.IsStruct(t.Name):
		t.IsStruct = true
	case p.IsEnum(t.Name):
		t.IsEnum = true
		t.WidthBits = 32
		t.Signed = true
	case p.IsBitmap(t.Name):
		info := p.bitmaps[t.Name]
		t.IsBitmap = true
		t.WidthBits = info.Backing
	case p.IsCallback(t.Name):
		t.IsCallback = true
	default:
		return t, false
	}
	//
	return t, true
}
