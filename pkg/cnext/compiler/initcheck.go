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

// CheckDefiniteInit verifies that every local variable of a function is
// assigned on every path reaching each of its uses.  The analysis is
// conservative: branches contribute the intersection of their assignments,
// and loop bodies establish initialisation only when entered unconditionally
// (do..while).
func CheckDefiniteInit(srcmap *source.Maps[ast.Node], registry *Registry, scope string,
	fn *FunctionInfo) []SyntaxError {
	//
	checker := &initChecker{
		srcmap:   srcmap,
		registry: registry,
		scope:    scope,
		fn:       fn,
		declared: make(map[string]bool),
	}
	//
	checker.checkBlock(fn.Decl.Body, newInitSet())
	//
	return checker.errors
}

type initChecker struct {
	srcmap   *source.Maps[ast.Node]
	registry *Registry
	scope    string
	fn       *FunctionInfo
	// Locals declared without an initialiser; only these can be reported.
	declared map[string]bool
	errors   []SyntaxError
}

// initSet tracks which declared-uninitialised locals have been assigned along
// the current path.
type initSet map[string]bool

func newInitSet() initSet {
	return make(initSet)
}

func (s initSet) clone() initSet {
	copied := make(initSet, len(s))
	//
	for name := range s {
		copied[name] = true
	}
	//
	return copied
}

func (s initSet) intersect(other initSet) initSet {
	result := newInitSet()
	//
	for name := range s {
		if other[name] {
			result[name] = true
		}
	}
	//
	return result
}

func (p *initChecker) checkBlock(block *ast.Block, state initSet) initSet {
	for _, stmt := range block.Stmts {
		state = p.checkStatement(stmt, state)
	}
	//
	return state
}

func (p *initChecker) checkStatement(stmt ast.Stmt, state initSet) initSet {
	switch s := stmt.(type) {
	case *ast.Block:
		return p.checkBlock(s, state)
	case *ast.Local:
		return p.checkLocal(s, state)
	case *ast.Assignment:
		return p.checkAssignment(s, state)
	case *ast.ExprStmt:
		// Output arguments initialise before uses are judged, so a call
		// writing a variable does not also count as reading it.
		state = p.checkCallEffects(s.Expr, state)
		p.checkUses(s.Expr, state)
		//
		return state
	case *ast.If:
		p.checkUses(s.Cond, state)
		//
		thenState := p.checkBlock(s.Then, state.clone())
		//
		if s.Else == nil {
			// The then-branch may be skipped entirely.
			return state
		}
		//
		elseState := p.checkStatement(s.Else, state.clone())
		//
		return thenState.intersect(elseState)
	case *ast.While:
		p.checkUses(s.Cond, state)
		p.checkBlock(s.Body, state.clone())
		// The body may never run.
		return state
	case *ast.DoWhile:
		// The body runs at least once.
		state = p.checkBlock(s.Body, state)
		p.checkUses(s.Cond, state)
		//
		return state
	case *ast.For:
		if s.Init != nil {
			state = p.checkStatement(s.Init, state)
		}
		//
		if s.Cond != nil {
			p.checkUses(s.Cond, state)
		}
		//
		bodyState := p.checkBlock(s.Body, state.clone())
		//
		if s.Post != nil {
			p.checkStatement(s.Post, bodyState)
		}
		// The body may never run.
		return state
	case *ast.Switch:
		return p.checkSwitch(s, state)
	case *ast.Return:
		if s.Value != nil {
			p.checkUses(s.Value, state)
		}
		//
		return state
	case *ast.Critical:
		// The body runs unconditionally.
		return p.checkBlock(s.Body, state)
	}
	//
	return state
}

func (p *initChecker) checkLocal(stmt *ast.Local, state initSet) initSet {
	decl := stmt.Decl
	//
	if decl.Initialiser != nil {
		p.checkUses(decl.Initialiser, state)
		return state
	}
	//
	p.declared[decl.Name] = true
	//
	return state
}

func (p *initChecker) checkAssignment(stmt *ast.Assignment, state initSet) initSet {
	// A compound assignment reads its target first.
	if stmt.Op != nil {
		p.checkUses(stmt.Target, state)
	} else if _, ok := stmt.Target.(*ast.Identifier); !ok {
		// Writing through a subscript or member requires the aggregate to
		// exist; uses within the projection (e.g. index expressions) are
		// still checked below.
		p.checkProjectionUses(stmt.Target, state)
	}
	//
	p.checkUses(stmt.Value, state)
	state = p.checkCallEffects(stmt.Value, state)
	//
	if root := RootIdentifier(stmt.Target); root != nil {
		state[root.Name] = true
	}
	//
	return state
}

// checkSwitch intersects the assignments of every arm.  The default clause is
// mandatory; an absent default body contributes no assignments.
func (p *initChecker) checkSwitch(stmt *ast.Switch, state initSet) initSet {
	p.checkUses(stmt.Subject, state)
	//
	result := state.clone()
	first := true
	//
	for _, c := range stmt.Cases {
		armState := p.checkBlock(c.Body, state.clone())
		//
		if first {
			result = armState
			first = false
		} else {
			result = result.intersect(armState)
		}
	}
	//
	if stmt.Default != nil {
		armState := p.checkBlock(stmt.Default, state.clone())
		result = result.intersect(armState)
	} else {
		result = result.intersect(state)
	}
	//
	return result
}

// checkCallEffects accounts for calls which initialise their arguments: the
// out parameter of safe_div / safe_mod, and arguments handed to a callee
// parameter known to mutate through its pointer.
func (p *initChecker) checkCallEffects(expr ast.Expr, state initSet) initSet {
	WalkExpr(expr, func(e ast.Expr) {
		call, ok := e.(*ast.Call)
		if !ok {
			return
		}
		//
		env := &Env{p.registry, p.srcmap, p.scope, p.fn, nil}
		//
		if env.IsIntrinsicCall(call) && len(call.Args) > 0 {
			if ident, ok := call.Args[0].(*ast.Identifier); ok {
				state[ident.Name] = true
			}
			//
			return
		}
		//
		callee, _ := env.ResolveCallee(call)
		if callee == nil {
			return
		}
		//
		for i, arg := range call.Args {
			if i >= len(callee.Params) {
				break
			}
			//
			param := callee.Params[i]
			//
			if param.ForcePointer && param.Mutated {
				if ident, ok := arg.(*ast.Identifier); ok {
					state[ident.Name] = true
				}
			}
		}
	})
	//
	return state
}

// checkUses reports every read of a declared-uninitialised local which is not
// covered by the current state.
func (p *initChecker) checkUses(expr ast.Expr, state initSet) {
	if expr == nil {
		return
	}
	//
	WalkExpr(expr, func(e ast.Expr) {
		ident, ok := e.(*ast.Identifier)
		if !ok {
			return
		}
		//
		if p.declared[ident.Name] && !state[ident.Name] {
			p.errors = append(p.errors, *p.srcmap.SyntaxError(ident, source.UninitializedUse,
				fmt.Sprintf("\"%s\" may be used before assignment", ident.Name)))
		}
	})
}

// checkProjectionUses checks the subexpressions of an lvalue projection (its
// subscripts and nested targets) without treating the root as a read.
func (p *initChecker) checkProjectionUses(expr ast.Expr, state initSet) {
	switch e := expr.(type) {
	case *ast.Member:
		p.checkProjectionUses(e.Target, state)
	case *ast.Index:
		p.checkProjectionUses(e.Target, state)
		//
		for _, arg := range e.Args {
			p.checkUses(arg, state)
		}
	case *ast.Paren:
		p.checkProjectionUses(e.Inner, state)
	}
}
