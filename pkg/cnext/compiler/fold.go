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
	"math/big"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
)

// FoldConstant attempts to evaluate an expression as a compile-time constant,
// consulting the registry for named constants and enum members.  The scope
// gives the enclosing scope for resolving "this" accesses (empty at file
// level).  Returns nil if the expression is not constant.
func FoldConstant(registry *Registry, scope string, expr ast.Expr) *big.Int {
	if expr == nil {
		return nil
	}
	//
	switch e := expr.(type) {
	case *ast.Identifier:
		// A bare identifier can denote a file-level constant.
		if value, ok := registry.ConstValue(e.Name); ok {
			return value
		}
		//
		return nil
	case *ast.Member:
		return foldMemberConstant(registry, scope, e)
	case *ast.Paren:
		return FoldConstant(registry, scope, e.Inner)
	case *ast.Unary:
		operand := FoldConstant(registry, scope, e.Operand)
		//
		if operand == nil {
			return nil
		}
		//
		switch e.Op {
		case ast.NEG:
			return new(big.Int).Neg(operand)
		case ast.BITNOT:
			return new(big.Int).Not(operand)
		}
		//
		return nil
	case *ast.Binary:
		return foldBinaryConstant(registry, scope, e)
	default:
		return expr.AsConstant()
	}
}

func foldMemberConstant(registry *Registry, scope string, expr *ast.Member) *big.Int {
	target, ok := expr.Target.(*ast.Identifier)
	//
	if !ok {
		return nil
	}
	//
	switch {
	case target.IsThis():
		if value, ok := registry.ConstValue(QualifiedName(scope, expr.Name)); ok {
			return value
		}
	case target.IsGlobal():
		if value, ok := registry.ConstValue(expr.Name); ok {
			return value
		}
	default:
		// Enum member or cross-scope constant.
		if value, ok := registry.ConstValue(QualifiedName(target.Name, expr.Name)); ok {
			return value
		}
	}
	//
	return nil
}

func foldBinaryConstant(registry *Registry, scope string, expr *ast.Binary) *big.Int {
	var (
		lhs = FoldConstant(registry, scope, expr.Lhs)
		rhs = FoldConstant(registry, scope, expr.Rhs)
	)
	//
	if lhs == nil || rhs == nil {
		return nil
	}
	// Delegate to the literal folder via a synthetic node.
	synthetic := &ast.Binary{
		Op:  expr.Op,
		Lhs: &ast.IntLiteral{Value: lhs, Text: lhs.String()},
		Rhs: &ast.IntLiteral{Value: rhs, Text: rhs.String()},
	}
	//
	return synthetic.AsConstant()
}
