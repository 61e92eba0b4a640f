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

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// TypeCheckUnit performs the type checking pass over a translation unit,
// ensuring every expression has exactly one inferred type and that values
// only flow into compatible locations.  Definite initialisation is checked
// alongside, since it shares the statement walk.
func TypeCheckUnit(srcmap *source.Maps[ast.Node], registry *Registry, unit *ast.Unit) []SyntaxError {
	checker := &typeChecker{registry, srcmap, nil}
	//
	for _, decl := range unit.Declarations {
		checker.checkDeclaration("", decl)
	}
	//
	return checker.errors
}

type typeChecker struct {
	registry *Registry
	srcmap   *source.Maps[ast.Node]
	errors   []SyntaxError
}

func (p *typeChecker) checkDeclaration(scope string, decl ast.Declaration) {
	switch d := decl.(type) {
	case *ast.Scope:
		for _, member := range d.Members {
			p.checkDeclaration(d.Name, member)
		}
	case *ast.Variable:
		p.checkGlobalVariable(scope, d)
	case *ast.Function:
		p.checkFunction(scope, d)
	}
}

func (p *typeChecker) checkGlobalVariable(scope string, decl *ast.Variable) {
	if decl.Initialiser == nil {
		return
	}
	//
	env := NewEnv(p.registry, p.srcmap)
	env.Scope = scope
	//
	declared, _ := p.registry.Variable(scope, decl.Name)
	//
	initType, errs := env.TypeOf(decl.Initialiser)
	if len(errs) > 0 {
		p.errors = append(p.errors, errs...)
		return
	}
	//
	p.errors = append(p.errors, env.checkAssignable(decl, decl.Initialiser, initType, declared.Type)...)
}

func (p *typeChecker) checkFunction(scope string, decl *ast.Function) {
	info, ok := p.registry.Function(scope, decl.Name)
	if !ok {
		return
	}
	//
	env := NewEnv(p.registry, p.srcmap).EnterFunction(scope, info)
	//
	p.checkBlock(env, decl.Body, info)
	// Definite initialisation shares the per-function context.
	p.errors = append(p.errors, CheckDefiniteInit(p.srcmap, p.registry, scope, info)...)
}

// checkBlock checks the statements of a block under a copy of the ambient
// locals, so declarations do not leak into the enclosing block.
func (p *typeChecker) checkBlock(env *Env, block *ast.Block, fn *FunctionInfo) {
	nested := p.nestedEnv(env)
	//
	for _, stmt := range block.Stmts {
		p.checkStatement(nested, stmt, fn)
	}
}

func (p *typeChecker) nestedEnv(env *Env) *Env {
	locals := make(map[string]ast.Type, len(env.Locals))
	//
	for name, t := range env.Locals {
		locals[name] = t
	}
	//
	return &Env{env.Registry, env.Srcmap, env.Scope, env.Function, locals}
}

func (p *typeChecker) checkStatement(env *Env, stmt ast.Stmt, fn *FunctionInfo) {
	switch s := stmt.(type) {
	case *ast.Block:
		p.checkBlock(env, s, fn)
	case *ast.Local:
		p.checkLocal(env, s)
	case *ast.Assignment:
		p.checkAssignment(env, s)
	case *ast.ExprStmt:
		if _, errs := env.TypeOf(s.Expr); len(errs) > 0 {
			p.errors = append(p.errors, errs...)
		}
	case *ast.If:
		p.checkExpr(env, s.Cond)
		p.checkBlock(env, s.Then, fn)
		//
		if s.Else != nil {
			p.checkStatement(env, s.Else, fn)
		}
	case *ast.While:
		p.checkExpr(env, s.Cond)
		p.checkBlock(env, s.Body, fn)
	case *ast.DoWhile:
		p.checkBlock(env, s.Body, fn)
		p.checkExpr(env, s.Cond)
	case *ast.For:
		// Loop variables are scoped to the loop.
		nested := p.nestedEnv(env)
		//
		if s.Init != nil {
			p.checkStatement(nested, s.Init, fn)
		}
		//
		if s.Cond != nil {
			p.checkExpr(nested, s.Cond)
		}
		//
		if s.Post != nil {
			p.checkStatement(nested, s.Post, fn)
		}
		//
		p.checkBlock(nested, s.Body, fn)
	case *ast.Switch:
		p.checkSwitch(env, s, fn)
	case *ast.Return:
		p.checkReturn(env, s, fn)
	case *ast.Critical:
		p.checkExpr(env, s.Guard)
		p.checkBlock(env, s.Body, fn)
	}
}

func (p *typeChecker) checkExpr(env *Env, expr ast.Expr) ast.Type {
	t, errs := env.TypeOf(expr)
	//
	if len(errs) > 0 {
		p.errors = append(p.errors, errs...)
	}
	//
	return t
}

func (p *typeChecker) checkLocal(env *Env, stmt *ast.Local) {
	decl := stmt.Decl
	// Locals may not shadow parameters or earlier locals.
	if env.shadowed(decl.Name) {
		p.errors = append(p.errors, *p.srcmap.SyntaxError(decl, source.DuplicateMember,
			fmt.Sprintf("\"%s\" already declared", decl.Name)))
		return
	}
	//
	declType, ok := p.registry.ResolveType(decl.Type)
	if !ok {
		p.errors = append(p.errors, *p.srcmap.SyntaxError(decl, source.UnknownSymbol,
			fmt.Sprintf("unknown type \"%s\"", decl.Type.Name)))
		return
	}
	// The resolved form is what later passes consult.
	decl.Type = declType
	//
	if decl.Initialiser != nil {
		initType, errs := env.TypeOf(decl.Initialiser)
		//
		if len(errs) > 0 {
			p.errors = append(p.errors, errs...)
		} else {
			p.errors = append(p.errors,
				env.checkAssignable(decl, decl.Initialiser, initType, declType)...)
		}
	}
	//
	env.DeclareLocal(decl.Name, declType)
}

func (p *typeChecker) checkAssignment(env *Env, stmt *ast.Assignment) {
	targetType, errs := env.TypeOf(stmt.Target)
	if len(errs) > 0 {
		p.errors = append(p.errors, errs...)
		return
	}
	//
	valueType, errs := env.TypeOf(stmt.Value)
	if len(errs) > 0 {
		p.errors = append(p.errors, errs...)
		return
	}
	//
	if stmt.Op != nil {
		// Compound assignment requires a numeric (or shiftable) target.
		if !targetType.IsNumeric() && !targetType.IsBitmap {
			p.errors = append(p.errors, *p.srcmap.SyntaxError(stmt, source.TypeMismatch,
				fmt.Sprintf("\"%s<-\" requires a numeric target", stmt.Op.Token())))
			return
		}
	}
	//
	p.errors = append(p.errors, env.checkAssignable(stmt, stmt.Value, valueType, targetType)...)
}

func (p *typeChecker) checkSwitch(env *Env, stmt *ast.Switch, fn *FunctionInfo) {
	subject := p.checkExpr(env, stmt.Subject)
	//
	if !subject.IsInteger() && !subject.IsEnum {
		p.errors = append(p.errors, *p.srcmap.SyntaxError(stmt, source.TypeMismatch,
			"switch subject must be an integer or enum"))
	}
	//
	for _, c := range stmt.Cases {
		valueType := p.checkExpr(env, c.Value)
		//
		if FoldConstant(p.registry, env.Scope, c.Value) == nil {
			p.errors = append(p.errors, *p.srcmap.SyntaxError(c, source.TypeMismatch,
				"case label must be a compile-time constant"))
		} else if !AssignableTo(c.Value, valueType, subject) && !valueType.SameClass(subject) {
			p.errors = append(p.errors, *p.srcmap.SyntaxError(c, source.TypeMismatch,
				"case label incompatible with switch subject"))
		}
		//
		p.checkBlock(env, c.Body, fn)
	}
	//
	if stmt.Default != nil {
		p.checkBlock(env, stmt.Default, fn)
	}
}

func (p *typeChecker) checkReturn(env *Env, stmt *ast.Return, fn *FunctionInfo) {
	if fn.Return.IsVoid() {
		if stmt.Value != nil {
			p.errors = append(p.errors, *p.srcmap.SyntaxError(stmt, source.TypeMismatch,
				fmt.Sprintf("%s returns nothing", fn.Name)))
		}
		//
		return
	}
	//
	if stmt.Value == nil {
		p.errors = append(p.errors, *p.srcmap.SyntaxError(stmt, source.TypeMismatch,
			fmt.Sprintf("%s must return a value", fn.Name)))
		return
	}
	//
	valueType, errs := env.TypeOf(stmt.Value)
	if len(errs) > 0 {
		p.errors = append(p.errors, errs...)
		return
	}
	//
	p.errors = append(p.errors, env.checkAssignable(stmt, stmt.Value, valueType, fn.Return)...)
}
