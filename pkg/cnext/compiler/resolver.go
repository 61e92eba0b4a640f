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
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// SyntaxError defines the kind of errors that can be reported by this
// compiler.  Syntax errors are always associated with some line in one of the
// original source files.
type SyntaxError = source.SyntaxError

// BuildRegistry performs the pre-pass over a translation unit: declarations
// are registered in source order, structural invariants (bitmap layouts,
// register offsets, enum ranges, duplicates) are enforced, named type
// references are resolved, and parameter promotion plus mutation analysis is
// carried out.  On success the returned registry is frozen.
func BuildRegistry(srcmap *source.Maps[ast.Node], unit *ast.Unit) (*Registry, []SyntaxError) {
	r := &resolver{NewRegistry(), srcmap, nil}
	// Register all declarations, in source order.
	for _, decl := range unit.Declarations {
		r.declare("", decl, PUBLIC)
	}
	// Resolve named type references now every name is known.
	r.resolveSignatures(unit)
	// Determine which parameters each function mutates.
	if len(r.errors) == 0 {
		r.analyseMutation(unit)
	}
	//
	r.registry.Freeze()
	//
	return r.registry, r.errors
}

type resolver struct {
	registry *Registry
	srcmap   *source.Maps[ast.Node]
	errors   []SyntaxError
}

func (p *resolver) error(node ast.Node, kind source.ErrorKind, msg string) {
	p.errors = append(p.errors, *p.srcmap.SyntaxError(node, kind, msg))
}

// ============================================================================
// Declaration registration
// ============================================================================

func (p *resolver) declare(scope string, decl ast.Declaration, vis Visibility) {
	switch d := decl.(type) {
	case *ast.Scope:
		p.declareScope(d)
	case *ast.Struct:
		p.declareStruct(d)
	case *ast.Enum:
		p.declareEnum(d)
	case *ast.Bitmap:
		p.declareBitmap(d)
	case *ast.Register:
		p.declareRegister(d)
	case *ast.Callback:
		p.declareCallback(d)
	case *ast.Function:
		p.declareFunction(scope, d, vis)
	case *ast.Variable:
		p.declareVariable(scope, d, vis)
	default:
		panic("unknown declaration")
	}
}

func (p *resolver) declareScope(decl *ast.Scope) {
	if !p.registry.DeclareScope(decl.Name) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
		return
	}
	//
	for _, member := range decl.Members {
		vis := p.memberVisibility(member)
		//
		switch member.(type) {
		case *ast.Variable, *ast.Function:
			if !p.registry.DeclareScopeMember(decl.Name, member.DeclaredName(), vis) {
				p.error(decl, source.DuplicateMember,
					fmt.Sprintf("\"%s\" already declared in scope %s", member.DeclaredName(), decl.Name))
				continue
			}
			//
			p.declare(decl.Name, member, vis)
		default:
			p.error(decl, source.WrongKind, "only variables and functions may be declared in a scope")
		}
	}
}

// memberVisibility determines the visibility of a scope member from its
// modifiers.  Members are private unless marked public.
func (p *resolver) memberVisibility(decl ast.Declaration) Visibility {
	var mods ast.Modifiers
	//
	switch d := decl.(type) {
	case *ast.Variable:
		mods = d.Modifiers
	case *ast.Function:
		mods = d.Modifiers
	}
	//
	if mods.Has(ast.MOD_PUBLIC) {
		return PUBLIC
	}
	//
	return PRIVATE
}

func (p *resolver) declareStruct(decl *ast.Struct) {
	fields := make([]*FieldInfo, len(decl.Fields))
	//
	for i, field := range decl.Fields {
		fields[i] = &FieldInfo{field.Name, field.Type}
	}
	//
	if !p.registry.DeclareStruct(decl.Name, fields) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

func (p *resolver) declareEnum(decl *ast.Enum) {
	var (
		order   []string
		members = make(map[string]int64)
		next    = int64(0)
	)
	//
	for _, member := range decl.Members {
		if _, ok := members[member.Name]; ok {
			p.error(decl, source.DuplicateMember,
				fmt.Sprintf("\"%s\" already declared in enum %s", member.Name, decl.Name))
			continue
		}
		//
		if member.Value != nil {
			value := FoldConstant(p.registry, "", member.Value)
			//
			if value == nil || !value.IsInt64() {
				p.error(decl, source.TypeMismatch,
					fmt.Sprintf("enum member \"%s\" requires a constant value", member.Name))
				continue
			}
			//
			next = value.Int64()
		}
		// All member values must fit in an i32.
		if next < math.MinInt32 || next > math.MaxInt32 {
			p.error(decl, source.TypeMismatch,
				fmt.Sprintf("enum member \"%s\" does not fit in i32", member.Name))
		}
		//
		order = append(order, member.Name)
		members[member.Name] = next
		next++
	}
	//
	if !p.registry.DeclareEnum(decl.Name, order, members) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

// Lay out the fields of a bitmap within its backing integer.  Fields pack
// LSB-first in declaration order, except where an explicit offset pins one.
// The allocation set catches both overlapping ranges and fields extending
// beyond the backing width.
func (p *resolver) declareBitmap(decl *ast.Bitmap) {
	var (
		order     []string
		fields    = make(map[string]BitRange)
		allocated = bitset.New(decl.Backing)
		cursor    = uint(0)
	)
	//
	for _, field := range decl.Fields {
		if _, ok := fields[field.Name]; ok {
			p.error(decl, source.DuplicateMember,
				fmt.Sprintf("\"%s\" already declared in bitmap %s", field.Name, decl.Name))
			continue
		}
		//
		offset := cursor
		//
		if field.Offset != nil {
			offset = *field.Offset
		}
		//
		if offset+field.Width > decl.Backing {
			p.error(decl, source.BitmapOverflow,
				fmt.Sprintf("field \"%s\" exceeds bitmap%d backing", field.Name, decl.Backing))
			continue
		}
		//
		for i := offset; i < offset+field.Width; i++ {
			if allocated.Test(i) {
				p.error(decl, source.BitmapOverlap,
					fmt.Sprintf("field \"%s\" overlaps an earlier field", field.Name))
				break
			}
			//
			allocated.Set(i)
		}
		//
		order = append(order, field.Name)
		fields[field.Name] = BitRange{offset, field.Width}
		cursor = offset + field.Width
	}
	//
	if !p.registry.DeclareBitmap(decl.Name, decl.Backing, order, fields) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

func (p *resolver) declareRegister(decl *ast.Register) {
	info := &RegisterInfo{
		Name:    decl.Name,
		Address: decl.Address,
		Members: make(map[string]*RegisterMemberInfo),
	}
	//
	offsets := make(map[uint64]string)
	//
	for _, member := range decl.Members {
		if _, ok := info.Members[member.Name]; ok {
			p.error(decl, source.DuplicateMember,
				fmt.Sprintf("\"%s\" already declared in register %s", member.Name, decl.Name))
			continue
		}
		//
		if taken, ok := offsets[member.Offset]; ok {
			p.error(decl, source.DuplicateMember,
				fmt.Sprintf("offset %#x of \"%s\" already used by \"%s\"", member.Offset, member.Name, taken))
			continue
		}
		//
		offsets[member.Offset] = member.Name
		info.MemberOrder = append(info.MemberOrder, member.Name)
		info.Members[member.Name] = &RegisterMemberInfo{member.Name, member.Type, member.Mode, member.Offset}
	}
	//
	if !p.registry.DeclareRegister(info) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

func (p *resolver) declareCallback(decl *ast.Callback) {
	info := &CallbackInfo{
		Name:   decl.Name,
		Params: buildParams(decl.Params),
		Return: decl.Return,
	}
	//
	if !p.registry.DeclareCallback(info) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

func (p *resolver) declareFunction(scope string, decl *ast.Function, vis Visibility) {
	info := &FunctionInfo{
		Name:       decl.Name,
		Scope:      scope,
		Visibility: vis,
		Params:     buildParams(decl.Params),
		Return:     decl.Return,
		Decl:       decl,
	}
	//
	names := make(map[string]bool)
	//
	for _, param := range info.Params {
		if names[param.Name] {
			p.error(decl, source.DuplicateMember, fmt.Sprintf("duplicate parameter \"%s\"", param.Name))
		}
		//
		names[param.Name] = true
	}
	//
	if !p.registry.DeclareFunction(info) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
	}
}

func (p *resolver) declareVariable(scope string, decl *ast.Variable, vis Visibility) {
	info := &VariableInfo{
		Name:       decl.Name,
		Scope:      scope,
		Visibility: vis,
		Type:       decl.Type,
		Modifiers:  decl.Modifiers,
	}
	//
	if !p.registry.DeclareVariable(info) {
		p.error(decl, source.DuplicateMember, fmt.Sprintf("\"%s\" already declared", decl.Name))
		return
	}
	// Constants with compile-time initialisers participate in folding.
	if decl.Modifiers.Has(ast.MOD_CONST) && decl.Initialiser != nil {
		if value := FoldConstant(p.registry, scope, decl.Initialiser); value != nil {
			p.registry.DeclareConstValue(QualifiedName(scope, decl.Name), value)
		}
	}
}

func buildParams(params []*ast.Parameter) []*ParamInfo {
	infos := make([]*ParamInfo, len(params))
	//
	for i, param := range params {
		infos[i] = &ParamInfo{
			Name:    param.Name,
			Type:    param.Type,
			Const:   param.Const,
			ByValue: param.ByValue,
		}
	}
	//
	return infos
}

// ============================================================================
// Signature resolution
// ============================================================================

// Resolve every named type reference now that all names are known, and
// compute parameter promotion.  Struct fields may refer to structs declared
// later in the file; this second pass is what permits that.
func (p *resolver) resolveSignatures(unit *ast.Unit) {
	for _, decl := range unit.Declarations {
		p.resolveDeclaration("", decl)
	}
	// Reject structs containing themselves (directly or indirectly).
	for _, decl := range unit.Declarations {
		if d, ok := decl.(*ast.Struct); ok {
			if p.structCyclic(d.Name, make(map[string]bool)) {
				p.error(d, source.TypeMismatch, fmt.Sprintf("struct %s contains itself", d.Name))
			}
		}
	}
}

func (p *resolver) resolveDeclaration(scope string, decl ast.Declaration) {
	switch d := decl.(type) {
	case *ast.Scope:
		for _, member := range d.Members {
			p.resolveDeclaration(d.Name, member)
		}
	case *ast.Struct:
		info, ok := p.registry.Struct(d.Name)
		if !ok {
			return
		}
		//
		for _, field := range info.Fields {
			field.Type = p.resolveType(d, field.Type)
		}
	case *ast.Register:
		info, ok := p.registry.Register(d.Name)
		if !ok {
			return
		}
		//
		for _, member := range info.Members {
			member.Type = p.resolveType(d, member.Type)
			// Register members are integers, or bitmaps over them.
			if !member.Type.IsInteger() && !member.Type.IsBitmap {
				p.error(d, source.WrongKind,
					fmt.Sprintf("member \"%s\" must have an integer or bitmap type", member.Name))
			}
		}
	case *ast.Callback:
		info, ok := p.registry.Callback(d.Name)
		if !ok {
			return
		}
		//
		p.resolveParams(d, info.Params)
		info.Return = p.resolveType(d, info.Return)
	case *ast.Function:
		info := p.findFunction(d)
		//
		if info == nil {
			return
		}
		//
		p.resolveParams(d, info.Params)
		info.Return = p.resolveType(d, info.Return)
	case *ast.Variable:
		if info, ok := p.registry.Variable(scope, d.Name); ok {
			info.Type = p.resolveType(d, info.Type)
		}
	}
}

func (p *resolver) findFunction(decl *ast.Function) *FunctionInfo {
	for _, info := range p.registry.Functions() {
		if info.Decl == decl {
			return info
		}
	}
	//
	return nil
}

func (p *resolver) resolveParams(decl ast.Declaration, params []*ParamInfo) {
	for _, param := range params {
		param.Type = p.resolveType(decl, param.Type)
		param.ForcePointer = promoteToPointer(param.Type, param.ByValue)
	}
}

func (p *resolver) resolveType(decl ast.Declaration, t ast.Type) ast.Type {
	resolved, ok := p.registry.ResolveType(t)
	//
	if !ok {
		p.error(decl, source.UnknownSymbol, fmt.Sprintf("unknown type \"%s\"", t.Name))
		return t
	}
	//
	return resolved
}

func (p *resolver) structCyclic(name string, visiting map[string]bool) bool {
	if visiting[name] {
		return true
	}
	//
	visiting[name] = true
	defer delete(visiting, name)
	//
	info, ok := p.registry.Struct(name)
	if !ok {
		return false
	}
	//
	for _, field := range info.Fields {
		if field.Type.IsStruct && p.structCyclic(field.Type.Name, visiting) {
			return true
		}
	}
	//
	return false
}

// promoteToPointer decides whether a C-Next parameter is passed by pointer.
// Explicitly-tagged pass-by-value parameters never are, whatever their type.
// Otherwise structs, strings and arrays are; primitives of at most 16 bits,
// floats, enums, booleans and callbacks are passed by value; wider
// primitives are passed by pointer.
func promoteToPointer(t ast.Type, byValue bool) bool {
	switch {
	case byValue:
		return false
	case t.IsArray, t.IsString, t.IsStruct:
		return true
	case t.IsEnum, t.IsCallback, t.IsFloat(), t.IsBool():
		return false
	case t.IsInteger(), t.IsBitmap:
		return t.WidthBits > 16
	}
	//
	return false
}

// ============================================================================
// Mutation analysis
// ============================================================================

// Determine, for every function, which of its parameters it mutates.  The
// first pass records direct assignments through a parameter; the second
// propagates one hop through calls, marking a parameter as mutated when it is
// handed to a callee parameter already known to mutate.
func (p *resolver) analyseMutation(unit *ast.Unit) {
	p.eachFunction(unit, func(scope string, decl *ast.Function) {
		info, _ := p.registry.Function(scope, decl.Name)
		//
		WalkStmt(decl.Body, func(stmt ast.Stmt) {
			assign, ok := stmt.(*ast.Assignment)
			if !ok {
				return
			}
			//
			if root := RootIdentifier(assign.Target); root != nil {
				if param, ok := info.Param(root.Name); ok {
					param.Mutated = true
				}
			}
		})
	})
	// One-hop propagation through calls.
	p.eachFunction(unit, func(scope string, decl *ast.Function) {
		info, _ := p.registry.Function(scope, decl.Name)
		//
		WalkStmtExprs(decl.Body, func(expr ast.Expr) {
			call, ok := expr.(*ast.Call)
			if !ok {
				return
			}
			//
			callee := p.resolveCallee(scope, call)
			if callee == nil {
				return
			}
			//
			for i, arg := range call.Args {
				if i >= len(callee.Params) {
					break
				}
				//
				ident, ok := arg.(*ast.Identifier)
				if !ok {
					continue
				}
				//
				if param, ok := info.Param(ident.Name); ok {
					target := callee.Params[i]
					//
					if target.ForcePointer && target.Mutated {
						param.Mutated = true
					}
				}
			}
		})
	})
}

func (p *resolver) eachFunction(unit *ast.Unit, visit func(string, *ast.Function)) {
	for _, decl := range unit.Declarations {
		switch d := decl.(type) {
		case *ast.Function:
			visit("", d)
		case *ast.Scope:
			for _, member := range d.Members {
				if fn, ok := member.(*ast.Function); ok {
					visit(d.Name, fn)
				}
			}
		}
	}
}

// resolveCallee maps a call target to the function it invokes, or nil for
// external C functions and intrinsics.
func (p *resolver) resolveCallee(scope string, call *ast.Call) *FunctionInfo {
	switch target := call.Target.(type) {
	case *ast.Identifier:
		if info, ok := p.registry.Function("", target.Name); ok {
			return info
		}
	case *ast.Member:
		if base, ok := target.Target.(*ast.Identifier); ok {
			calleeScope := base.Name
			//
			if base.IsThis() {
				calleeScope = scope
			} else if base.IsGlobal() {
				calleeScope = ""
			}
			//
			if info, ok := p.registry.Function(calleeScope, target.Name); ok {
				return info
			}
		}
	}
	//
	return nil
}
