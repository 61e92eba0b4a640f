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
package gen

import (
	"fmt"
	"strings"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/cnext/compiler"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// Statement generates C for a single statement, flushing any temporaries the
// statement's expressions synthesised (strlen memoisation, float bit
// aliases) ahead of the statement itself.
func (g *statementGenerator) Statement(out *emitter, stmt ast.Stmt) []SyntaxError {
	switch s := stmt.(type) {
	case *ast.Block:
		out.line("{")
		errs := g.blockBody(out, s)
		out.line("}")
		//
		return errs
	case *ast.Local:
		return g.localDecl(out, s.Decl)
	case *ast.Assignment:
		return g.assignment(out, s)
	case *ast.ExprStmt:
		return g.exprStatement(out, s)
	case *ast.If:
		return g.ifStatement(out, s)
	case *ast.While:
		return g.whileStatement(out, s)
	case *ast.DoWhile:
		return g.doWhileStatement(out, s)
	case *ast.For:
		return g.forStatement(out, s)
	case *ast.Switch:
		return g.switchStatement(out, s)
	case *ast.Return:
		return g.returnStatement(out, s)
	case *ast.Critical:
		return g.criticalStatement(out, s)
	case *ast.Break:
		out.line("break;")
		return nil
	case *ast.Continue:
		out.line("continue;")
		return nil
	}
	//
	panic("unknown statement")
}

// blockBody emits the statements of a block at one deeper indent, scoping
// locals to the block.
func (g *statementGenerator) blockBody(out *emitter, block *ast.Block) []SyntaxError {
	var errors []SyntaxError
	//
	savedLocals := g.TypingEnv().Locals
	g.TypingEnv().Locals = cloneLocals(savedLocals)
	//
	out.indent++
	//
	for _, stmt := range block.Stmts {
		errors = append(errors, g.Statement(out, stmt)...)
	}
	//
	out.indent--
	g.TypingEnv().Locals = savedLocals
	//
	return errors
}

func cloneLocals(locals map[string]ast.Type) map[string]ast.Type {
	cloned := make(map[string]ast.Type, len(locals))
	//
	for name, t := range locals {
		cloned[name] = t
	}
	//
	return cloned
}

// flushTemps emits any pending synthesised temporaries at the current
// statement boundary.
func (g *statementGenerator) flushTemps(out *emitter) {
	if g.FuncState() == nil {
		return
	}
	//
	for _, temp := range g.FuncState().pendingTemps {
		out.line("%s", temp)
	}
	//
	g.FuncState().pendingTemps = nil
}

// ============================================================================
// Declarations and assignments
// ============================================================================

func (g *statementGenerator) localDecl(out *emitter, decl *ast.Variable) []SyntaxError {
	declType, _ := g.Symbols().ResolveType(decl.Type)
	//
	g.TypingEnv().DeclareLocal(decl.Name, declType)
	g.FuncState().localMods[decl.Name] = decl.Modifiers
	//
	if decl.Initialiser == nil {
		out.line("%s;", g.declarator(declType, decl.Name, decl.Modifiers))
		return nil
	}
	//
	g.SetOverflowPolicy(g.PolicyFor(decl.Modifiers))
	//
	value, errs := g.GenerateExpression(decl.Initialiser, declType)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	out.line("%s = %s;", g.declarator(declType, decl.Name, decl.Modifiers), value)
	//
	return nil
}

// declarator renders a declaration of a given type and name, covering
// arrays, strings and the atomic / const qualifiers.
func (g *statementGenerator) declarator(t ast.Type, name string, mods ast.Modifiers) string {
	var builder strings.Builder
	//
	if t.IsConst {
		builder.WriteString("const ")
	}
	//
	if mods.Has(ast.MOD_ATOMIC) && g.GenConfig().Atomic {
		builder.WriteString("_Atomic ")
	}
	//
	switch {
	case t.IsString:
		builder.WriteString(fmt.Sprintf("char %s[%d]", name, t.StringCapacity+1))
	case t.IsArray:
		builder.WriteString(fmt.Sprintf("%s %s", g.CTypeName(t), name))
		//
		for _, dim := range t.Dims {
			if dim == 0 {
				builder.WriteString("[]")
			} else {
				builder.WriteString(fmt.Sprintf("[%d]", dim))
			}
		}
	default:
		builder.WriteString(fmt.Sprintf("%s %s", g.CTypeName(t), name))
	}
	//
	return builder.String()
}

func (g *statementGenerator) assignment(out *emitter, stmt *ast.Assignment) []SyntaxError {
	if errs := g.TypingEnv().ValidateAssignTarget(stmt, stmt.Target); len(errs) > 0 {
		return errs
	}
	//
	mods := g.ModifiersOf(stmt.Target)
	g.SetOverflowPolicy(g.PolicyFor(mods))
	//
	targetType, errs := g.targetType(stmt.Target)
	if len(errs) > 0 {
		return errs
	}
	// Strings assign through strncpy rather than the assignment operator.
	if targetType.IsString && stmt.Op == nil {
		return g.stringAssignment(out, stmt, targetType)
	}
	//
	value, errs := g.GenerateExpression(stmt.Value, targetType)
	if len(errs) > 0 {
		return errs
	}
	//
	value = parenthesise(stmt.Value, value)
	// Compound assignment reads, combines, then stores.
	if stmt.Op != nil {
		read, _, errs := g.GenerateRead(stmt.Target)
		if len(errs) > 0 {
			return errs
		}
		//
		combined, errs := g.combine(stmt, *stmt.Op, targetType, read, value)
		if len(errs) > 0 {
			return errs
		}
		//
		value = combined
	}
	//
	store, errs := g.store(stmt.Target, targetType, value)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	// Atomic variables fall back to critical-section guarding when the
	// target lacks atomic support.
	if mods.Has(ast.MOD_ATOMIC) && !g.GenConfig().Atomic {
		g.emitCriticalSection(out, func(inner *emitter) {
			inner.indent++
			//
			for _, line := range store {
				inner.line("%s", line)
			}
			//
			inner.indent--
		})
		//
		return nil
	}
	//
	for _, line := range store {
		out.line("%s", line)
	}
	//
	return nil
}

// combine merges the read value of a compound assignment with its operand,
// under the overflow policy of the target.
func (g *statementGenerator) combine(node ast.Node, op ast.BinaryOp, t ast.Type, lhs string,
	rhs string) (string, []SyntaxError) {
	//
	switch {
	case op.IsArithmetic() && t.IsInteger():
		switch g.OverflowPolicy() {
		case OVERFLOW_CLAMP:
			helperOp := helperOpFor(op)
			mode := MODE_CLAMP
			//
			if g.GenConfig().Debug {
				mode = MODE_PANIC
				g.RequestInclude(IncludeStdio)
				g.RequestInclude(IncludeStdlib)
			}
			//
			g.RequestInclude(IncludeStdint)
			g.RequestHelper(helperOp, t.Base, mode)
			//
			return fmt.Sprintf("%s(%s, %s)", HelperName(helperOp, t.Base), lhs, rhs), nil
		case OVERFLOW_WRAP:
			if t.IsUnsigned() {
				return fmt.Sprintf("%s %s %s", lhs, op.Token(), rhs), nil
			}
			//
			if t.Base == ast.I64 {
				return fmt.Sprintf("(int64_t)((uint64_t)%s %s (uint64_t)%s)", lhs, op.Token(), rhs), nil
			}
			//
			wider := g.CTypeName(t.WiderType())
			//
			return fmt.Sprintf("(%s)((%s)%s %s (%s)%s)", g.CTypeName(t), wider, lhs, op.Token(),
				wider, rhs), nil
		default:
			if t.Signed && t.WidthBits < 64 {
				wider := g.CTypeName(t.WiderType())
				//
				return fmt.Sprintf("(%s)((%s)%s %s (%s)%s)", g.CTypeName(t), wider, lhs, op.Token(),
					wider, rhs), nil
			}
			//
			return fmt.Sprintf("%s %s %s", lhs, op.Token(), rhs), nil
		}
	case op == ast.DIV || op == ast.REM:
		if errs := g.TypingEnv().ValidateDivision(node, valueOf(node)); len(errs) > 0 {
			return "", errs
		}
		//
		return fmt.Sprintf("%s %s %s", lhs, op.Token(), rhs), nil
	case op == ast.SHL || op == ast.SHR:
		if assign, ok := node.(*ast.Assignment); ok {
			synthetic := &ast.Binary{Op: op, Lhs: assign.Target, Rhs: assign.Value}
			g.TypingEnv().Srcmap.Copy(assign, synthetic)
			//
			if errs := g.TypingEnv().ValidateShift(synthetic, t); len(errs) > 0 {
				return "", errs
			}
		}
		//
		if t.IsUnsigned() && t.WidthBits < 32 {
			return fmt.Sprintf("(%s)(%s %s %s)", g.CTypeName(t), lhs, op.Token(), rhs), nil
		}
		//
		return fmt.Sprintf("%s %s %s", lhs, op.Token(), rhs), nil
	default:
		return fmt.Sprintf("%s %s %s", lhs, op.Token(), rhs), nil
	}
}

func valueOf(node ast.Node) ast.Expr {
	if assign, ok := node.(*ast.Assignment); ok {
		return assign.Value
	}
	//
	return nil
}

// targetType determines the declared type of an assignment target without
// emitting a read of it (write-only register members must not be read).
func (g *statementGenerator) targetType(target ast.Expr) (ast.Type, []SyntaxError) {
	if member, ok := target.(*ast.Member); ok {
		if base, ok := member.Target.(*ast.Identifier); ok && g.Symbols().IsRegister(base.Name) &&
			!g.Shadowed(base.Name) {
			//
			info, _ := g.Symbols().Register(base.Name)
			//
			if regMember, ok := info.Members[member.Name]; ok {
				return regMember.Type, nil
			}
			//
			return ast.Type{}, g.TypingEnv().Srcmap.SyntaxErrors(member, source.UnknownSymbol,
				fmt.Sprintf("register %s has no member \"%s\"", base.Name, member.Name))
		}
	}
	//
	return g.TypingEnv().TypeOf(target)
}

// store lowers a write to its target-specific idiom: plain lvalues assign
// directly; register members write through their volatile accessor; bitmap
// fields and bit positions read-modify-write their container.
func (g *statementGenerator) store(target ast.Expr, targetType ast.Type, value string) ([]string, []SyntaxError) {
	// Register member writes.
	if member, ok := target.(*ast.Member); ok {
		if base, ok := member.Target.(*ast.Identifier); ok && g.Symbols().IsRegister(base.Name) &&
			!g.Shadowed(base.Name) {
			//
			info, _ := g.Symbols().Register(base.Name)
			regMember := info.Members[member.Name]
			//
			if errs := g.TypingEnv().ValidateRegisterWrite(member, base.Name, regMember); len(errs) > 0 {
				return nil, errs
			}
			//
			return []string{fmt.Sprintf("%s_%s = %s;", base.Name, member.Name, value)}, nil
		}
	}
	// Bitmap field writes.
	if member, ok := target.(*ast.Member); ok {
		containerType, errs := g.targetType(member.Target)
		//
		if len(errs) == 0 && containerType.IsBitmap {
			return g.bitmapFieldStore(member, containerType, value)
		}
	}
	// Bit (and bit range) writes.
	if index, ok := target.(*ast.Index); ok {
		containerType, errs := g.TypingEnv().TypeOf(index.Target)
		//
		if len(errs) == 0 && containerType.IsInteger() {
			return g.bitStore(index, containerType, value)
		}
	}
	// Plain lvalue.
	code, _, errs := g.GenerateRead(target)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	return []string{fmt.Sprintf("%s = %s;", code, value)}, nil
}

// bitmapFieldStore writes a named field by read-modify-write: clear the
// field's bits, then or in the shifted value.
func (g *statementGenerator) bitmapFieldStore(member *ast.Member, containerType ast.Type,
	value string) ([]string, []SyntaxError) {
	//
	container, _, errs := g.GenerateRead(member.Target)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	info, _ := g.Symbols().Bitmap(containerType.Name)
	//
	field, ok := info.Fields[member.Name]
	if !ok {
		return nil, g.TypingEnv().Srcmap.SyntaxErrors(member, source.UnknownBitmapField,
			fmt.Sprintf("bitmap %s has no field \"%s\"", containerType.Name, member.Name))
	}
	//
	var (
		cName = g.CTypeName(compiler.UnsignedOfWidth(info.Backing))
		mask  = g.MaskLiteral(field.Width, info.Backing)
		code  string
	)
	//
	if field.Offset == 0 {
		code = fmt.Sprintf("%s = (%s)((%s & (%s)~%s) | ((%s)(%s) & %s));",
			container, cName, container, cName, mask, cName, value, mask)
	} else {
		code = fmt.Sprintf("%s = (%s)((%s & (%s)~(%s << %d)) | (((%s)(%s) & %s) << %d));",
			container, cName, container, cName, mask, field.Offset, cName, value, mask, field.Offset)
	}
	//
	return []string{code}, nil
}

// bitStore writes a single bit, or a bit range, of an integer container.
func (g *statementGenerator) bitStore(index *ast.Index, containerType ast.Type,
	value string) ([]string, []SyntaxError) {
	//
	container, _, errs := g.GenerateRead(index.Target)
	if len(errs) > 0 {
		return nil, errs
	}
	//
	for _, arg := range index.Args {
		if errs := g.TypingEnv().ValidateBitIndex(index, containerType.WidthBits, arg); len(errs) > 0 {
			return nil, errs
		}
	}
	//
	var (
		cName = g.CTypeName(containerType)
		one   = "1U"
	)
	//
	if containerType.WidthBits == 64 {
		one = "1ULL"
	}
	//
	lo, lerrs := g.GenerateExpression(index.Args[0], ast.NewPrimitiveType(ast.U32))
	if len(lerrs) > 0 {
		return nil, lerrs
	}
	//
	if !index.IsBitRange() {
		code := fmt.Sprintf("%s = (%s)((%s & (%s)~(%s << %s)) | (((%s)(%s) & %s) << %s));",
			container, cName, container, cName, one, lo, cName, value, one, lo)
		//
		return []string{code}, nil
	}
	//
	var (
		loVal = compiler.FoldConstant(g.Symbols(), g.TypingEnv().Scope, index.Args[0])
		hiVal = compiler.FoldConstant(g.Symbols(), g.TypingEnv().Scope, index.Args[1])
		mask  string
	)
	//
	if loVal != nil && hiVal != nil {
		if hiVal.Cmp(loVal) < 0 {
			return nil, g.TypingEnv().Srcmap.SyntaxErrors(index, source.BitIndexOutOfBounds,
				"bit range bounds are reversed")
		}
		//
		width := uint(hiVal.Uint64()-loVal.Uint64()) + 1
		mask = g.MaskLiteral(width, containerType.WidthBits)
	} else {
		hi, herrs := g.GenerateExpression(index.Args[1], ast.NewPrimitiveType(ast.U32))
		if len(herrs) > 0 {
			return nil, herrs
		}
		//
		mask = fmt.Sprintf("((%s << ((%s - %s) + 1U)) - %s)", one, hi, lo, one)
	}
	//
	code := fmt.Sprintf("%s = (%s)((%s & (%s)~(%s << %s)) | (((%s)(%s) & %s) << %s));",
		container, cName, container, cName, mask, lo, cName, value, mask, lo)
	//
	return []string{code}, nil
}

// stringAssignment copies into a fixed-capacity string, always leaving it
// NUL terminated.
func (g *statementGenerator) stringAssignment(out *emitter, stmt *ast.Assignment,
	targetType ast.Type) []SyntaxError {
	//
	target, _, errs := g.GenerateRead(stmt.Target)
	if len(errs) > 0 {
		return errs
	}
	//
	value, errs := g.GenerateExpression(stmt.Value, targetType)
	if len(errs) > 0 {
		return errs
	}
	//
	g.RequestInclude(IncludeString)
	g.flushTemps(out)
	//
	capacity := targetType.StringCapacity
	out.line("(void)strncpy(%s, %s, %dU);", target, value, capacity)
	out.line("%s[%d] = '\\0';", target, capacity)
	//
	return nil
}

// ============================================================================
// Expression statements and control flow
// ============================================================================

func (g *statementGenerator) exprStatement(out *emitter, stmt *ast.ExprStmt) []SyntaxError {
	g.SetOverflowPolicy(g.GenConfig().Overflow)
	//
	code, t, errs := g.GenerateRead(stmt.Expr)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	// Discarded non-void results are discarded explicitly.
	if !t.IsVoid() {
		out.line("(void)%s;", code)
	} else {
		out.line("%s;", code)
	}
	//
	return nil
}

func (g *statementGenerator) condition(expr ast.Expr) (string, []SyntaxError) {
	g.SetOverflowPolicy(g.GenConfig().Overflow)
	//
	if errs := g.TypingEnv().ValidateCondition(expr); len(errs) > 0 {
		return "", errs
	}
	//
	code, errs := g.GenerateExpression(expr, ast.Type{})
	if len(errs) > 0 {
		return "", errs
	}
	//
	return stripOuterParens(code), nil
}

func (g *statementGenerator) ifStatement(out *emitter, stmt *ast.If) []SyntaxError {
	cond, errs := g.condition(stmt.Cond)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	out.line("if (%s) {", cond)
	//
	errs = g.blockBody(out, stmt.Then)
	//
	switch els := stmt.Else.(type) {
	case nil:
		out.line("}")
	case *ast.If:
		// Chain onto the closing brace.
		out.line("} else {")
		out.indent++
		errs = append(errs, g.Statement(out, els)...)
		out.indent--
		out.line("}")
	case *ast.Block:
		out.line("} else {")
		errs = append(errs, g.blockBody(out, els)...)
		out.line("}")
	}
	//
	return errs
}

func (g *statementGenerator) whileStatement(out *emitter, stmt *ast.While) []SyntaxError {
	cond, errs := g.condition(stmt.Cond)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	out.line("while (%s) {", cond)
	errs = g.blockBody(out, stmt.Body)
	out.line("}")
	//
	return errs
}

func (g *statementGenerator) doWhileStatement(out *emitter, stmt *ast.DoWhile) []SyntaxError {
	g.flushTemps(out)
	out.line("do {")
	//
	errors := g.blockBody(out, stmt.Body)
	//
	cond, errs := g.condition(stmt.Cond)
	if len(errs) > 0 {
		return append(errors, errs...)
	}
	//
	g.flushTemps(out)
	out.line("} while (%s);", cond)
	//
	return errors
}

func (g *statementGenerator) forStatement(out *emitter, stmt *ast.For) []SyntaxError {
	savedLocals := g.TypingEnv().Locals
	g.TypingEnv().Locals = cloneLocals(savedLocals)
	//
	defer func() { g.TypingEnv().Locals = savedLocals }()
	//
	var (
		init, post, cond string
		errs             []SyntaxError
	)
	//
	if stmt.Init != nil {
		if init, errs = g.inlineStatement(stmt.Init); len(errs) > 0 {
			return errs
		}
	}
	//
	if stmt.Cond != nil {
		if cond, errs = g.condition(stmt.Cond); len(errs) > 0 {
			return errs
		}
	}
	//
	if stmt.Post != nil {
		if post, errs = g.inlineStatement(stmt.Post); len(errs) > 0 {
			return errs
		}
	}
	//
	g.flushTemps(out)
	out.line("for (%s; %s; %s) {", init, cond, post)
	errs = g.blockBody(out, stmt.Body)
	out.line("}")
	//
	return errs
}

// inlineStatement renders a for-header clause: a declaration or an
// assignment, without the trailing semicolon.
func (g *statementGenerator) inlineStatement(stmt ast.Stmt) (string, []SyntaxError) {
	switch s := stmt.(type) {
	case *ast.Local:
		decl := s.Decl
		declType, _ := g.Symbols().ResolveType(decl.Type)
		//
		g.TypingEnv().DeclareLocal(decl.Name, declType)
		g.FuncState().localMods[decl.Name] = decl.Modifiers
		//
		if decl.Initialiser == nil {
			return g.declarator(declType, decl.Name, decl.Modifiers), nil
		}
		//
		value, errs := g.GenerateExpression(decl.Initialiser, declType)
		if len(errs) > 0 {
			return "", errs
		}
		//
		return fmt.Sprintf("%s = %s", g.declarator(declType, decl.Name, decl.Modifiers), value), nil
	case *ast.Assignment:
		g.SetOverflowPolicy(g.PolicyFor(g.ModifiersOf(s.Target)))
		//
		targetType, errs := g.targetType(s.Target)
		if len(errs) > 0 {
			return "", errs
		}
		//
		value, errs := g.GenerateExpression(s.Value, targetType)
		if len(errs) > 0 {
			return "", errs
		}
		//
		value = parenthesise(s.Value, value)
		//
		if s.Op != nil {
			read, _, errs := g.GenerateRead(s.Target)
			if len(errs) > 0 {
				return "", errs
			}
			//
			if value, errs = g.combine(s, *s.Op, targetType, read, value); len(errs) > 0 {
				return "", errs
			}
		}
		//
		target, _, errs := g.GenerateRead(s.Target)
		if len(errs) > 0 {
			return "", errs
		}
		//
		return fmt.Sprintf("%s = %s", target, value), nil
	case *ast.ExprStmt:
		code, errs := g.GenerateExpression(s.Expr, ast.Type{})
		return code, errs
	}
	//
	return "", g.TypingEnv().Srcmap.SyntaxErrors(stmt, source.UnexpectedToken,
		"statement not permitted in a for header")
}

func (g *statementGenerator) switchStatement(out *emitter, stmt *ast.Switch) []SyntaxError {
	if errs := g.TypingEnv().ValidateSwitch(stmt); len(errs) > 0 {
		return errs
	}
	//
	subjectType, errs := g.TypingEnv().TypeOf(stmt.Subject)
	if len(errs) > 0 {
		return errs
	}
	//
	subject, errs := g.GenerateExpression(stmt.Subject, ast.Type{})
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	out.line("switch (%s) {", stripOuterParens(subject))
	//
	var errors []SyntaxError
	//
	for _, c := range stmt.Cases {
		label, errs := g.GenerateExpression(c.Value, subjectType)
		if len(errs) > 0 {
			errors = append(errors, errs...)
			continue
		}
		//
		out.line("case %s: {", label)
		errors = append(errors, g.blockBody(out, c.Body)...)
		out.indent++
		out.line("break;")
		out.indent--
		out.line("}")
	}
	//
	out.line("default: {")
	//
	if stmt.Default != nil {
		errors = append(errors, g.blockBody(out, stmt.Default)...)
	}
	//
	out.indent++
	out.line("break;")
	out.indent--
	out.line("}")
	out.line("}")
	//
	return errors
}

func (g *statementGenerator) returnStatement(out *emitter, stmt *ast.Return) []SyntaxError {
	if stmt.Value == nil {
		g.flushTemps(out)
		out.line("return;")
		//
		return nil
	}
	//
	g.SetOverflowPolicy(g.GenConfig().Overflow)
	//
	expected := ast.Type{}
	if g.FuncState() != nil {
		expected = g.FuncState().info.Return
	}
	//
	value, errs := g.GenerateExpression(stmt.Value, expected)
	if len(errs) > 0 {
		return errs
	}
	//
	g.flushTemps(out)
	out.line("return %s;", value)
	//
	return nil
}

// criticalStatement disables interrupts around the body, saving and
// restoring the prior state so nested sections compose.
func (g *statementGenerator) criticalStatement(out *emitter, stmt *ast.Critical) []SyntaxError {
	var errors []SyntaxError
	//
	g.emitCriticalSection(out, func(inner *emitter) {
		errors = append(errors, g.blockBody(inner, stmt.Body)...)
	})
	//
	return errors
}

func (g *statementGenerator) emitCriticalSection(out *emitter, body func(*emitter)) {
	g.RequestInclude(IncludeStdint)
	g.RequestHelper(HELPER_CRITICAL, ast.U32, MODE_CLAMP)
	//
	state := "cnx_primask"
	if g.FuncState() != nil {
		state = g.FreshTemp("cnx_primask")
	}
	//
	out.line("{")
	out.indent++
	out.line("uint32_t %s = cnx_critical_enter();", state)
	out.indent--
	//
	body(out)
	//
	out.indent++
	out.line("cnx_critical_exit(%s);", state)
	out.indent--
	out.line("}")
}
