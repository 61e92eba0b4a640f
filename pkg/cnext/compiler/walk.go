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
	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
)

// WalkExpr visits an expression and all of its subexpressions, outermost
// first.
func WalkExpr(expr ast.Expr, visit func(ast.Expr)) {
	if expr == nil {
		return
	}
	//
	visit(expr)
	//
	switch e := expr.(type) {
	case *ast.Paren:
		WalkExpr(e.Inner, visit)
	case *ast.Unary:
		WalkExpr(e.Operand, visit)
	case *ast.Binary:
		WalkExpr(e.Lhs, visit)
		WalkExpr(e.Rhs, visit)
	case *ast.Ternary:
		WalkExpr(e.Cond, visit)
		WalkExpr(e.Then, visit)
		WalkExpr(e.Else, visit)
	case *ast.Member:
		WalkExpr(e.Target, visit)
	case *ast.Index:
		WalkExpr(e.Target, visit)
		//
		for _, arg := range e.Args {
			WalkExpr(arg, visit)
		}
	case *ast.Call:
		WalkExpr(e.Target, visit)
		//
		for _, arg := range e.Args {
			WalkExpr(arg, visit)
		}
	}
}

// WalkStmt visits a statement and all statements nested within it, outermost
// first.
func WalkStmt(stmt ast.Stmt, visit func(ast.Stmt)) {
	if stmt == nil {
		return
	}
	//
	visit(stmt)
	//
	switch s := stmt.(type) {
	case *ast.Block:
		for _, nested := range s.Stmts {
			WalkStmt(nested, visit)
		}
	case *ast.If:
		WalkStmt(s.Then, visit)
		WalkStmt(s.Else, visit)
	case *ast.While:
		WalkStmt(s.Body, visit)
	case *ast.DoWhile:
		WalkStmt(s.Body, visit)
	case *ast.For:
		WalkStmt(s.Init, visit)
		WalkStmt(s.Post, visit)
		WalkStmt(s.Body, visit)
	case *ast.Switch:
		for _, c := range s.Cases {
			WalkStmt(c.Body, visit)
		}
		//
		WalkStmt(s.Default, visit)
	case *ast.Critical:
		WalkStmt(s.Body, visit)
	}
}

// WalkStmtExprs visits every expression appearing (at any depth) within a
// statement.
func WalkStmtExprs(stmt ast.Stmt, visit func(ast.Expr)) {
	WalkStmt(stmt, func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.Local:
			WalkExpr(s.Decl.Initialiser, visit)
		case *ast.Assignment:
			WalkExpr(s.Target, visit)
			WalkExpr(s.Value, visit)
		case *ast.ExprStmt:
			WalkExpr(s.Expr, visit)
		case *ast.If:
			WalkExpr(s.Cond, visit)
		case *ast.While:
			WalkExpr(s.Cond, visit)
		case *ast.DoWhile:
			WalkExpr(s.Cond, visit)
		case *ast.For:
			WalkExpr(s.Cond, visit)
		case *ast.Switch:
			WalkExpr(s.Subject, visit)
			//
			for _, c := range s.Cases {
				WalkExpr(c.Value, visit)
			}
		case *ast.Return:
			WalkExpr(s.Value, visit)
		}
	})
}

// RootIdentifier strips postfix operations from an lvalue expression,
// returning the identifier at its base (or nil if the base is not an
// identifier).
func RootIdentifier(expr ast.Expr) *ast.Identifier {
	for {
		switch e := expr.(type) {
		case *ast.Identifier:
			return e
		case *ast.Member:
			expr = e.Target
		case *ast.Index:
			expr = e.Target
		case *ast.Paren:
			expr = e.Inner
		default:
			return nil
		}
	}
}
