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
	"strconv"
	"strings"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// ParseSourceFile parses a single C-Next source file into a translation unit,
// along with a source map recording the span of every node.  Parsing stops at
// the first error, since later errors would mostly be artefacts of the first.
func ParseSourceFile(srcfile *source.File) (*ast.Unit, *source.Map[ast.Node], []source.SyntaxError) {
	var (
		lexer  = NewLexer(srcfile)
		srcmap = source.NewSourceMap[ast.Node](*srcfile)
	)
	//
	tokens, err := lexer.Collect()
	if err != nil {
		return nil, nil, []source.SyntaxError{*err}
	}
	//
	parser := &Parser{srcfile, tokens, 0, srcmap}
	//
	unit, perr := parser.parseUnit()
	if perr != nil {
		return nil, nil, []source.SyntaxError{*perr}
	}
	//
	return unit, srcmap, nil
}

// Parser converts a token stream into a translation unit.
type Parser struct {
	srcfile *source.File
	tokens  []Token
	index   int
	srcmap  *source.Map[ast.Node]
}

// ============================================================================
// Translation unit
// ============================================================================

func (p *Parser) parseUnit() (*ast.Unit, *source.SyntaxError) {
	unit := &ast.Unit{}
	//
	for p.lookahead().Kind != END {
		if p.lookahead().Kind == DIRECTIVE {
			include, err := p.parseInclude()
			if err != nil {
				return nil, err
			}
			//
			unit.Includes = append(unit.Includes, include)
		} else {
			decl, err := p.parseDeclaration(false)
			if err != nil {
				return nil, err
			}
			//
			unit.Declarations = append(unit.Declarations, decl)
		}
	}
	//
	return unit, nil
}

func (p *Parser) parseInclude() (*ast.Include, *source.SyntaxError) {
	token := p.next()
	text := strings.TrimSpace(p.text(token))
	//
	if !strings.HasPrefix(text, "#include") {
		return nil, p.errorOn(token, source.UnexpectedToken, "unknown directive")
	}
	//
	body := strings.TrimSpace(strings.TrimPrefix(text, "#include"))
	//
	var include *ast.Include
	//
	switch {
	case len(body) > 2 && body[0] == '"' && body[len(body)-1] == '"':
		include = &ast.Include{Header: body[1 : len(body)-1], System: false}
	case len(body) > 2 && body[0] == '<' && body[len(body)-1] == '>':
		include = &ast.Include{Header: body[1 : len(body)-1], System: true}
	default:
		return nil, p.errorOn(token, source.UnexpectedToken, "malformed #include directive")
	}
	//
	p.record(include, token.Span)
	//
	return include, nil
}

// ============================================================================
// Declarations
// ============================================================================

func (p *Parser) parseDeclaration(inScope bool) (ast.Declaration, *source.SyntaxError) {
	token := p.lookahead()
	//
	if token.Kind == IDENT {
		switch text := p.text(token); {
		case text == "scope":
			if inScope {
				return nil, p.errorOn(token, source.UnexpectedToken, "scopes cannot be nested")
			}
			//
			return p.parseScope()
		case text == "struct":
			return p.parseStruct()
		case text == "enum":
			return p.parseEnum()
		case strings.HasPrefix(text, "bitmap") && len(text) > 6:
			return p.parseBitmap()
		case text == "register":
			return p.parseRegister()
		case text == "callback":
			return p.parseCallback()
		}
	}
	// Otherwise, this must be a variable or function declaration.
	return p.parseVariableOrFunction()
}

func (p *Parser) parseScope() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	//
	name, err := p.expectIdentifier("scope name")
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	//
	scope := &ast.Scope{Name: name}
	//
	for p.lookahead().Kind != RBRACE {
		if p.lookahead().Kind == END {
			return nil, p.errorOn(start, source.UnterminatedBlock, "unterminated scope block")
		}
		//
		member, err := p.parseDeclaration(true)
		if err != nil {
			return nil, err
		}
		//
		scope.Members = append(scope.Members, member)
	}
	//
	end := p.next()
	p.record(scope, start.Span.Join(end.Span))
	//
	return scope, nil
}

func (p *Parser) parseStruct() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	//
	name, err := p.expectIdentifier("struct name")
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	//
	decl := &ast.Struct{Name: name}
	//
	for p.lookahead().Kind != RBRACE {
		fieldType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		//
		fieldName, err := p.expectIdentifier("field name")
		if err != nil {
			return nil, err
		}
		//
		dims, err := p.parseDimensions()
		if err != nil {
			return nil, err
		}
		//
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		//
		decl.Fields = append(decl.Fields, &ast.StructField{Name: fieldName, Type: fieldType.WithArray(dims)})
	}
	//
	end := p.next()
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

func (p *Parser) parseEnum() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	//
	name, err := p.expectIdentifier("enum name")
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	//
	decl := &ast.Enum{Name: name}
	//
	for p.lookahead().Kind != RBRACE {
		memberName, err := p.expectIdentifier("enum member")
		if err != nil {
			return nil, err
		}
		//
		member := &ast.EnumMember{Name: memberName}
		//
		if p.accept(ASSIGN) {
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			//
			member.Value = value
		}
		//
		decl.Members = append(decl.Members, member)
		//
		if !p.accept(COMMA) {
			break
		}
	}
	//
	end, err := p.expect(RBRACE)
	if err != nil {
		return nil, err
	}
	//
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

func (p *Parser) parseBitmap() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	// Extract backing width from the keyword (e.g. "bitmap8").
	backing, err := strconv.Atoi(strings.TrimPrefix(p.text(start), "bitmap"))
	if err != nil || !validBitmapBacking(uint(backing)) {
		return nil, p.errorOn(start, source.UnexpectedToken, "unknown bitmap backing width")
	}
	//
	name, serr := p.expectIdentifier("bitmap name")
	if serr != nil {
		return nil, serr
	}
	//
	if _, serr := p.expect(LBRACE); serr != nil {
		return nil, serr
	}
	//
	decl := &ast.Bitmap{Name: name, Backing: uint(backing)}
	//
	for p.lookahead().Kind != RBRACE {
		fieldName, serr := p.expectIdentifier("bitmap field")
		if serr != nil {
			return nil, serr
		}
		//
		field := &ast.BitmapField{Name: fieldName, Width: 1}
		//
		if p.accept(LBRACKET) {
			width, serr := p.expectNumber("field width")
			if serr != nil {
				return nil, serr
			}
			//
			field.Width = uint(width)
			//
			if _, serr := p.expect(RBRACKET); serr != nil {
				return nil, serr
			}
		}
		// Optional explicit offset, pinning the field position.
		if p.accept(AT) {
			offset, serr := p.expectNumber("field offset")
			if serr != nil {
				return nil, serr
			}
			//
			off := uint(offset)
			field.Offset = &off
		}
		//
		decl.Fields = append(decl.Fields, field)
		//
		if !p.accept(COMMA) {
			break
		}
	}
	//
	end, serr := p.expect(RBRACE)
	if serr != nil {
		return nil, serr
	}
	//
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

func validBitmapBacking(width uint) bool {
	switch width {
	case 8, 16, 24, 32, 64:
		return true
	}
	//
	return false
}

func (p *Parser) parseRegister() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	//
	name, err := p.expectIdentifier("register name")
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(AT); err != nil {
		return nil, err
	}
	//
	address, err := p.expectNumber("register address")
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	//
	decl := &ast.Register{Name: name, Address: address}
	//
	for p.lookahead().Kind != RBRACE {
		memberName, err := p.expectIdentifier("register member")
		if err != nil {
			return nil, err
		}
		//
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		//
		memberType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		//
		modeToken, err := p.expect(IDENT)
		if err != nil {
			return nil, err
		}
		//
		mode, ok := ast.LookupAccessMode(p.text(modeToken))
		if !ok {
			return nil, p.errorOn(modeToken, source.UnexpectedToken, "unknown access mode")
		}
		//
		if _, err := p.expect(AT); err != nil {
			return nil, err
		}
		//
		offset, err := p.expectNumber("member offset")
		if err != nil {
			return nil, err
		}
		//
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		//
		decl.Members = append(decl.Members, &ast.RegisterMember{
			Name:   memberName,
			Type:   memberType,
			Mode:   mode,
			Offset: offset,
		})
	}
	//
	end := p.next()
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

func (p *Parser) parseCallback() (ast.Declaration, *source.SyntaxError) {
	start := p.next()
	//
	retType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	//
	name, err := p.expectIdentifier("callback name")
	if err != nil {
		return nil, err
	}
	//
	params, err := p.parseParameters()
	if err != nil {
		return nil, err
	}
	//
	end, err := p.expect(SEMICOLON)
	if err != nil {
		return nil, err
	}
	//
	decl := &ast.Callback{Name: name, Return: retType, Params: params}
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

// Parse either a variable or a function declaration: both begin with
// modifiers, a type, and a name; a following "(" selects a function.
func (p *Parser) parseVariableOrFunction() (ast.Declaration, *source.SyntaxError) {
	start := p.lookahead()
	//
	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	//
	declType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	//
	name, err := p.expectIdentifier("declaration name")
	if err != nil {
		return nil, err
	}
	//
	if p.lookahead().Kind == LPAREN {
		return p.parseFunction(start, mods, declType, name)
	}
	//
	return p.parseVariableRest(start, mods, declType, name)
}

func (p *Parser) parseFunction(start Token, mods ast.Modifiers, retType ast.Type,
	name string) (ast.Declaration, *source.SyntaxError) {
	//
	params, err := p.parseParameters()
	if err != nil {
		return nil, err
	}
	//
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	decl := &ast.Function{Modifiers: mods, Name: name, Params: params, Return: retType, Body: body}
	p.record(decl, start.Span.Join(p.previous().Span))
	//
	return decl, nil
}

func (p *Parser) parseVariableRest(start Token, mods ast.Modifiers, declType ast.Type,
	name string) (*ast.Variable, *source.SyntaxError) {
	//
	dims, err := p.parseDimensions()
	if err != nil {
		return nil, err
	}
	//
	decl := &ast.Variable{Modifiers: mods, Type: declType.WithArray(dims), Name: name}
	//
	if mods.Has(ast.MOD_CONST) {
		decl.Type = decl.Type.WithConst()
	}
	//
	if p.accept(ASSIGN) {
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		decl.Initialiser = init
	}
	//
	end, err := p.expect(SEMICOLON)
	if err != nil {
		return nil, err
	}
	//
	p.record(decl, start.Span.Join(end.Span))
	//
	return decl, nil
}

func (p *Parser) parseModifiers() (ast.Modifiers, *source.SyntaxError) {
	var mods ast.Modifiers
	//
	for p.lookahead().Kind == IDENT {
		var flag ast.Modifiers
		//
		switch p.text(p.lookahead()) {
		case "const":
			flag = ast.MOD_CONST
		case "atomic":
			flag = ast.MOD_ATOMIC
		case "wrap":
			flag = ast.MOD_WRAP
		case "clamp":
			flag = ast.MOD_CLAMP
		case "public":
			flag = ast.MOD_PUBLIC
		case "private":
			flag = ast.MOD_PRIVATE
		default:
			return mods, nil
		}
		//
		token := p.next()
		//
		if mods.Has(flag) {
			return 0, p.errorOn(token, source.UnexpectedToken, "duplicate modifier")
		} else if (flag == ast.MOD_WRAP && mods.Has(ast.MOD_CLAMP)) ||
			(flag == ast.MOD_CLAMP && mods.Has(ast.MOD_WRAP)) {
			return 0, p.errorOn(token, source.UnexpectedToken, "wrap and clamp are mutually exclusive")
		} else if (flag == ast.MOD_PUBLIC && mods.Has(ast.MOD_PRIVATE)) ||
			(flag == ast.MOD_PRIVATE && mods.Has(ast.MOD_PUBLIC)) {
			return 0, p.errorOn(token, source.UnexpectedToken, "public and private are mutually exclusive")
		}
		//
		mods |= flag
	}
	//
	return mods, nil
}

func (p *Parser) parseType() (ast.Type, *source.SyntaxError) {
	token, err := p.expect(IDENT)
	if err != nil {
		return ast.Type{}, err
	}
	//
	text := p.text(token)
	//
	switch {
	case text == "void":
		return ast.Type{Base: ast.VOID}, nil
	case text == "string":
		// A string without a capacity (as in main's "string args[]") is
		// unsized.
		if !p.accept(LPAREN) {
			return ast.NewStringType(0), nil
		}
		//
		capacity, err := p.expectNumber("string capacity")
		if err != nil {
			return ast.Type{}, err
		}
		//
		if _, err := p.expect(RPAREN); err != nil {
			return ast.Type{}, err
		}
		//
		return ast.NewStringType(uint(capacity)), nil
	}
	//
	if base, ok := ast.LookupBase(text); ok {
		return ast.NewPrimitiveType(base), nil
	}
	// Otherwise, a reference to a struct / enum / bitmap / callback.
	return ast.NewNamedType(text), nil
}

// Parse zero or more array dimensions following a declared name.  An empty
// dimension (e.g. "args[]") records a zero extent, meaning unsized.
func (p *Parser) parseDimensions() ([]uint, *source.SyntaxError) {
	var dims []uint
	//
	for p.accept(LBRACKET) {
		if p.accept(RBRACKET) {
			dims = append(dims, 0)
			continue
		}
		//
		size, err := p.expectNumber("array dimension")
		if err != nil {
			return nil, err
		}
		//
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		//
		dims = append(dims, uint(size))
	}
	//
	return dims, nil
}

func (p *Parser) parseParameters() ([]*ast.Parameter, *source.SyntaxError) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	//
	var params []*ast.Parameter
	//
	for p.lookahead().Kind != RPAREN {
		param := &ast.Parameter{}
		// Parameter modifiers: const, and the explicit pass-by-value tag.
		for p.lookahead().Kind == IDENT {
			if text := p.text(p.lookahead()); text == "const" {
				p.next()
				param.Const = true
			} else if text == "value" {
				p.next()
				param.ByValue = true
			} else {
				break
			}
		}
		//
		paramType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		//
		name, err := p.expectIdentifier("parameter name")
		if err != nil {
			return nil, err
		}
		//
		dims, err := p.parseDimensions()
		if err != nil {
			return nil, err
		}
		//
		param.Name = name
		param.Type = paramType.WithArray(dims)
		//
		if param.Const {
			param.Type = param.Type.WithConst()
		}
		//
		params = append(params, param)
		//
		if !p.accept(COMMA) {
			break
		}
	}
	//
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	//
	return params, nil
}

// ============================================================================
// Statements
// ============================================================================

func (p *Parser) parseBlock() (*ast.Block, *source.SyntaxError) {
	start, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	//
	block := &ast.Block{}
	//
	for p.lookahead().Kind != RBRACE {
		if p.lookahead().Kind == END {
			return nil, p.errorOn(start, source.UnterminatedBlock, "unterminated block")
		}
		//
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		//
		block.Stmts = append(block.Stmts, stmt)
	}
	//
	end := p.next()
	p.record(block, start.Span.Join(end.Span))
	//
	return block, nil
}

func (p *Parser) parseStatement() (ast.Stmt, *source.SyntaxError) {
	token := p.lookahead()
	//
	if token.Kind == LBRACE {
		return p.parseBlock()
	} else if token.Kind == IDENT {
		switch p.text(token) {
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "for":
			return p.parseFor()
		case "switch":
			return p.parseSwitch()
		case "return":
			return p.parseReturn()
		case "critical":
			return p.parseCritical()
		case "break":
			return p.parseJump(&ast.Break{})
		case "continue":
			return p.parseJump(&ast.Continue{})
		}
	}
	//
	return p.parseSimpleStatement(true)
}

// Parse a declaration, assignment or expression statement.  These are also
// the statement forms permitted in for-loop headers, where no terminating
// semicolon is consumed.
func (p *Parser) parseSimpleStatement(consumeSemi bool) (ast.Stmt, *source.SyntaxError) {
	if p.startsDeclaration() {
		return p.parseLocal(consumeSemi)
	}
	//
	start := p.lookahead()
	//
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	//
	var stmt ast.Stmt
	//
	if op, isAssign := p.assignOperator(); isAssign {
		p.next()
		//
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		stmt = &ast.Assignment{Target: target, Op: op, Value: value}
	} else {
		stmt = &ast.ExprStmt{Expr: target}
	}
	//
	if consumeSemi {
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
	}
	//
	p.record(stmt, start.Span.Join(p.previous().Span))
	//
	return stmt, nil
}

// assignOperator maps an assignment token to its compound operation (or nil
// for plain assignment).  The second result indicates whether the current
// token is an assignment operator at all.
func (p *Parser) assignOperator() (*ast.BinaryOp, bool) {
	var op ast.BinaryOp
	//
	switch p.lookahead().Kind {
	case ASSIGN:
		return nil, true
	case ADD_ASSIGN:
		op = ast.ADD
	case SUB_ASSIGN:
		op = ast.SUB
	case MUL_ASSIGN:
		op = ast.MUL
	case DIV_ASSIGN:
		op = ast.DIV
	case REM_ASSIGN:
		op = ast.REM
	case AND_ASSIGN:
		op = ast.BITAND
	case OR_ASSIGN:
		op = ast.BITOR
	case XOR_ASSIGN:
		op = ast.BITXOR
	case SHL_ASSIGN:
		op = ast.SHL
	case SHR_ASSIGN:
		op = ast.SHR
	default:
		return nil, false
	}
	//
	return &op, true
}

// startsDeclaration determines (by lookahead) whether the current position
// begins a local variable declaration rather than an expression.
func (p *Parser) startsDeclaration() bool {
	token := p.lookahead()
	//
	if token.Kind != IDENT {
		return false
	}
	//
	switch p.text(token) {
	case "const", "atomic", "wrap", "clamp":
		return true
	case "string":
		return true
	}
	// A type name followed by an identifier is a declaration (e.g. "u32 x"
	// or "Point p"); anything else is an expression.
	return p.lookaheadAt(1).Kind == IDENT
}

func (p *Parser) parseLocal(consumeSemi bool) (ast.Stmt, *source.SyntaxError) {
	start := p.lookahead()
	//
	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	//
	if mods.Has(ast.MOD_PUBLIC) || mods.Has(ast.MOD_PRIVATE) {
		return nil, p.errorOn(start, source.UnexpectedToken, "visibility modifiers are not permitted on locals")
	}
	//
	declType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	//
	name, err := p.expectIdentifier("variable name")
	if err != nil {
		return nil, err
	}
	//
	dims, err := p.parseDimensions()
	if err != nil {
		return nil, err
	}
	//
	decl := &ast.Variable{Modifiers: mods, Type: declType.WithArray(dims), Name: name}
	//
	if mods.Has(ast.MOD_CONST) {
		decl.Type = decl.Type.WithConst()
	}
	//
	if p.accept(ASSIGN) {
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		decl.Initialiser = init
	}
	//
	if consumeSemi {
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
	}
	//
	local := &ast.Local{Decl: decl}
	span := start.Span.Join(p.previous().Span)
	p.record(decl, span)
	p.record(local, span)
	//
	return local, nil
}

func (p *Parser) parseIf() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	cond, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	//
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	stmt := &ast.If{Cond: cond, Then: then}
	//
	if p.acceptKeyword("else") {
		if p.isKeyword(p.lookahead(), "if") {
			stmt.Else, err = p.parseIf()
		} else {
			stmt.Else, err = p.parseBlock()
		}
		//
		if err != nil {
			return nil, err
		}
	}
	//
	p.record(stmt, start.Span.Join(p.previous().Span))
	//
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	cond, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	//
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	stmt := &ast.While{Cond: cond, Body: body}
	p.record(stmt, start.Span.Join(p.previous().Span))
	//
	return stmt, nil
}

func (p *Parser) parseDoWhile() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	if !p.acceptKeyword("while") {
		return nil, p.errorOn(p.lookahead(), source.UnexpectedToken, "expected while after do block")
	}
	//
	cond, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	//
	end, err := p.expect(SEMICOLON)
	if err != nil {
		return nil, err
	}
	//
	stmt := &ast.DoWhile{Body: body, Cond: cond}
	p.record(stmt, start.Span.Join(end.Span))
	//
	return stmt, nil
}

func (p *Parser) parseFor() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	//
	stmt := &ast.For{}
	//
	if p.lookahead().Kind != SEMICOLON {
		init, err := p.parseSimpleStatement(false)
		if err != nil {
			return nil, err
		}
		//
		stmt.Init = init
	}
	//
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	//
	if p.lookahead().Kind != SEMICOLON {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		stmt.Cond = cond
	}
	//
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	//
	if p.lookahead().Kind != RPAREN {
		post, err := p.parseSimpleStatement(false)
		if err != nil {
			return nil, err
		}
		//
		stmt.Post = post
	}
	//
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	//
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	stmt.Body = body
	p.record(stmt, start.Span.Join(p.previous().Span))
	//
	return stmt, nil
}

func (p *Parser) parseSwitch() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	subject, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	//
	stmt := &ast.Switch{Subject: subject}
	seenDefault := false
	//
	for p.lookahead().Kind != RBRACE {
		switch {
		case p.acceptKeyword("case"):
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			//
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			//
			c := &ast.Case{Value: value, Body: body}
			p.record(c, p.previous().Span)
			stmt.Cases = append(stmt.Cases, c)
		case p.isKeyword(p.lookahead(), "default"):
			token := p.next()
			//
			if seenDefault {
				return nil, p.errorOn(token, source.UnexpectedToken, "duplicate default clause")
			}
			//
			seenDefault = true
			//
			if _, err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			//
			count, err := p.expectNumber("case count")
			if err != nil {
				return nil, err
			}
			//
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			//
			stmt.DefaultCount = uint(count)
			//
			if p.lookahead().Kind == LBRACE {
				body, err := p.parseBlock()
				if err != nil {
					return nil, err
				}
				//
				stmt.Default = body
			}
		default:
			return nil, p.errorOn(p.lookahead(), source.UnexpectedToken, "expected case or default clause")
		}
	}
	//
	end := p.next()
	//
	if !seenDefault {
		return nil, p.errorOn(start, source.UnexpectedToken, "switch requires a default(N) clause")
	}
	//
	p.record(stmt, start.Span.Join(end.Span))
	//
	return stmt, nil
}

func (p *Parser) parseReturn() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	stmt := &ast.Return{}
	//
	if p.lookahead().Kind != SEMICOLON {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		stmt.Value = value
	}
	//
	end, err := p.expect(SEMICOLON)
	if err != nil {
		return nil, err
	}
	//
	p.record(stmt, start.Span.Join(end.Span))
	//
	return stmt, nil
}

func (p *Parser) parseCritical() (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	//
	guardToken, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	//
	guard := &ast.Identifier{Name: p.text(guardToken)}
	p.record(guard, guardToken.Span)
	//
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	//
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	//
	stmt := &ast.Critical{Guard: guard, Body: body}
	p.record(stmt, start.Span.Join(p.previous().Span))
	//
	return stmt, nil
}

func (p *Parser) parseJump(stmt ast.Stmt) (ast.Stmt, *source.SyntaxError) {
	start := p.next()
	//
	end, err := p.expect(SEMICOLON)
	if err != nil {
		return nil, err
	}
	//
	p.record(stmt, start.Span.Join(end.Span))
	//
	return stmt, nil
}

// ============================================================================
// Expressions
// ============================================================================

func (p *Parser) parseParenExpression() (ast.Expr, *source.SyntaxError) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	//
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	//
	return expr, nil
}

func (p *Parser) parseExpression() (ast.Expr, *source.SyntaxError) {
	start := p.lookahead()
	//
	cond, err := p.parseBinaryExpression(0)
	if err != nil {
		return nil, err
	}
	//
	if !p.accept(QUESTION) {
		return cond, nil
	}
	//
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	//
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	//
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	//
	expr := &ast.Ternary{Cond: cond, Then: then, Else: els}
	p.record(expr, start.Span.Join(p.previous().Span))
	//
	return expr, nil
}

// binaryPrecedence returns the binding strength of the operator given by a
// token kind, or false when the kind is not a binary operator.  Higher binds
// tighter; all levels associate left.
func binaryPrecedence(kind TokenKind) (ast.BinaryOp, int, bool) {
	switch kind {
	case STAR:
		return ast.MUL, 10, true
	case SLASH:
		return ast.DIV, 10, true
	case PERCENT:
		return ast.REM, 10, true
	case PLUS:
		return ast.ADD, 9, true
	case MINUS:
		return ast.SUB, 9, true
	case SHIFTLEFT:
		return ast.SHL, 8, true
	case SHIFTRIGHT:
		return ast.SHR, 8, true
	case LESSTHAN:
		return ast.LT, 7, true
	case LESSTHANEQUALS:
		return ast.LTEQ, 7, true
	case GREATERTHAN:
		return ast.GT, 7, true
	case GREATERTHANEQUALS:
		return ast.GTEQ, 7, true
	case EQUALS:
		return ast.EQ, 6, true
	case NOTEQUALS:
		return ast.NEQ, 6, true
	case AMPERSAND:
		return ast.BITAND, 5, true
	case CARET:
		return ast.BITXOR, 4, true
	case PIPE:
		return ast.BITOR, 3, true
	case LOGICALAND:
		return ast.LOGAND, 2, true
	case LOGICALOR:
		return ast.LOGOR, 1, true
	}
	//
	return 0, 0, false
}

func (p *Parser) parseBinaryExpression(minPrecedence int) (ast.Expr, *source.SyntaxError) {
	start := p.lookahead()
	//
	lhs, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}
	//
	for {
		op, precedence, ok := binaryPrecedence(p.lookahead().Kind)
		//
		if !ok || precedence < minPrecedence {
			return lhs, nil
		}
		//
		p.next()
		// Left associative, so the right operand binds strictly tighter.
		rhs, err := p.parseBinaryExpression(precedence + 1)
		if err != nil {
			return nil, err
		}
		//
		expr := &ast.Binary{Op: op, Lhs: lhs, Rhs: rhs}
		p.record(expr, start.Span.Join(p.previous().Span))
		lhs = expr
	}
}

func (p *Parser) parseUnaryExpression() (ast.Expr, *source.SyntaxError) {
	var op ast.UnaryOp
	//
	switch p.lookahead().Kind {
	case MINUS:
		op = ast.NEG
	case BANG:
		op = ast.LOGNOT
	case TILDE:
		op = ast.BITNOT
	default:
		return p.parsePostfixExpression()
	}
	//
	start := p.next()
	//
	operand, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}
	//
	expr := &ast.Unary{Op: op, Operand: operand}
	p.record(expr, start.Span.Join(p.previous().Span))
	//
	return expr, nil
}

func (p *Parser) parsePostfixExpression() (ast.Expr, *source.SyntaxError) {
	start := p.lookahead()
	//
	expr, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	//
	for {
		switch p.lookahead().Kind {
		case DOT:
			p.next()
			//
			name, err := p.expectIdentifier("member name")
			if err != nil {
				return nil, err
			}
			//
			member := &ast.Member{Target: expr, Name: name}
			p.record(member, start.Span.Join(p.previous().Span))
			expr = member
		case LBRACKET:
			p.next()
			//
			args := []ast.Expr{}
			//
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				//
				args = append(args, arg)
				//
				if !p.accept(COMMA) {
					break
				}
			}
			//
			if len(args) > 2 {
				return nil, p.errorOn(p.lookahead(), source.UnexpectedToken, "too many subscript arguments")
			}
			//
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			//
			index := &ast.Index{Target: expr, Args: args}
			p.record(index, start.Span.Join(p.previous().Span))
			expr = index
		case LPAREN:
			p.next()
			//
			args := []ast.Expr{}
			//
			for p.lookahead().Kind != RPAREN {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				//
				args = append(args, arg)
				//
				if !p.accept(COMMA) {
					break
				}
			}
			//
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			//
			call := &ast.Call{Target: expr, Args: args}
			p.record(call, start.Span.Join(p.previous().Span))
			expr = call
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimaryExpression() (ast.Expr, *source.SyntaxError) {
	token := p.lookahead()
	//
	switch token.Kind {
	case IDENT:
		p.next()
		//
		text := p.text(token)
		//
		var expr ast.Expr
		//
		switch text {
		case "true":
			expr = &ast.BoolLiteral{Value: true}
		case "false":
			expr = &ast.BoolLiteral{Value: false}
		default:
			expr = &ast.Identifier{Name: text}
		}
		//
		p.record(expr, token.Span)
		//
		return expr, nil
	case NUMBER:
		p.next()
		return p.parseIntLiteral(token)
	case FLOATNUMBER:
		p.next()
		return p.parseFloatLiteral(token)
	case STRINGLIT:
		p.next()
		//
		text := p.text(token)
		expr := &ast.StringLiteral{Value: text[1 : len(text)-1]}
		p.record(expr, token.Span)
		//
		return expr, nil
	case LPAREN:
		p.next()
		//
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		//
		end, err := p.expect(RPAREN)
		if err != nil {
			return nil, err
		}
		//
		expr := &ast.Paren{Inner: inner}
		p.record(expr, token.Span.Join(end.Span))
		//
		return expr, nil
	}
	//
	return nil, p.errorOn(token, source.UnexpectedToken, "expected expression")
}

// Split an integer token into its value and (optional) width suffix, and
// parse the value according to its radix prefix.
func (p *Parser) parseIntLiteral(token Token) (ast.Expr, *source.SyntaxError) {
	var (
		text   = p.text(token)
		suffix = ast.VOID
		digits = text
	)
	// Strip any width suffix.
	if i := suffixIndex(text); i >= 0 {
		var ok bool
		//
		if suffix, ok = ast.LookupBase(text[i:]); !ok {
			return nil, p.errorOn(token, source.UnexpectedToken, "unknown literal suffix")
		}
		//
		digits = text[:i]
	}
	//
	value := new(big.Int)
	//
	var ok bool
	//
	switch {
	case strings.HasPrefix(digits, "0x"):
		_, ok = value.SetString(digits[2:], 16)
	case strings.HasPrefix(digits, "0b"):
		_, ok = value.SetString(digits[2:], 2)
	default:
		_, ok = value.SetString(digits, 10)
	}
	//
	if !ok {
		return nil, p.errorOn(token, source.UnexpectedToken, "malformed integer literal")
	}
	//
	expr := &ast.IntLiteral{Value: value, Text: digits, Suffix: suffix}
	p.record(expr, token.Span)
	//
	return expr, nil
}

func (p *Parser) parseFloatLiteral(token Token) (ast.Expr, *source.SyntaxError) {
	var (
		text   = p.text(token)
		suffix = ast.VOID
		digits = text
	)
	//
	if i := suffixIndex(text); i >= 0 {
		var ok bool
		//
		if suffix, ok = ast.LookupBase(text[i:]); !ok || (suffix != ast.F32 && suffix != ast.F64) {
			return nil, p.errorOn(token, source.UnexpectedToken, "unknown literal suffix")
		}
		//
		digits = text[:i]
	}
	//
	expr := &ast.FloatLiteral{Text: digits, Suffix: suffix}
	p.record(expr, token.Span)
	//
	return expr, nil
}

// suffixIndex locates the start of a width suffix (u8..u64, i8..i64, f32,
// f64) within a numeric literal, or returns -1.  Hexadecimal digits make
// this slightly subtle: in "0xffu8" the suffix begins at the final "u".
func suffixIndex(text string) int {
	hex := strings.HasPrefix(text, "0x")
	//
	for i := len(text) - 1; i > 0; i-- {
		ch := text[i]
		//
		if ch == 'u' || ch == 'i' {
			return i
		} else if ch == 'f' && !hex {
			return i
		} else if ch < '0' || ch > '9' {
			return -1
		}
	}
	//
	return -1
}

// ============================================================================
// Token stream helpers
// ============================================================================

func (p *Parser) lookahead() Token {
	return p.tokens[p.index]
}

func (p *Parser) lookaheadAt(n int) Token {
	if p.index+n < len(p.tokens) {
		return p.tokens[p.index+n]
	}
	//
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) next() Token {
	token := p.tokens[p.index]
	//
	if p.index+1 < len(p.tokens) {
		p.index++
	}
	//
	return token
}

func (p *Parser) previous() Token {
	if p.index == 0 {
		return p.tokens[0]
	}
	//
	return p.tokens[p.index-1]
}

func (p *Parser) accept(kind TokenKind) bool {
	if p.lookahead().Kind == kind {
		p.next()
		return true
	}
	//
	return false
}

func (p *Parser) expect(kind TokenKind) (Token, *source.SyntaxError) {
	token := p.lookahead()
	//
	if token.Kind != kind {
		return Token{}, p.errorOn(token, source.UnexpectedToken,
			fmt.Sprintf("unexpected token \"%s\"", p.text(token)))
	}
	//
	return p.next(), nil
}

func (p *Parser) expectIdentifier(what string) (string, *source.SyntaxError) {
	token := p.lookahead()
	//
	if token.Kind != IDENT {
		return "", p.errorOn(token, source.UnexpectedToken, fmt.Sprintf("expected %s", what))
	}
	//
	p.next()
	//
	return p.text(token), nil
}

func (p *Parser) expectNumber(what string) (uint64, *source.SyntaxError) {
	token, err := p.expect(NUMBER)
	if err != nil {
		return 0, p.errorOn(p.lookahead(), source.UnexpectedToken, fmt.Sprintf("expected %s", what))
	}
	//
	literal, err := p.parseIntLiteral(token)
	if err != nil {
		return 0, err
	}
	//
	value := literal.(*ast.IntLiteral).Value
	//
	if !value.IsUint64() {
		return 0, p.errorOn(token, source.UnexpectedToken, fmt.Sprintf("%s too large", what))
	}
	//
	return value.Uint64(), nil
}

func (p *Parser) isKeyword(token Token, word string) bool {
	return token.Kind == IDENT && p.text(token) == word
}

func (p *Parser) acceptKeyword(word string) bool {
	if p.isKeyword(p.lookahead(), word) {
		p.next()
		return true
	}
	//
	return false
}

func (p *Parser) text(token Token) string {
	contents := p.srcfile.Contents()
	return string(contents[token.Span.Start():token.Span.End()])
}

func (p *Parser) record(node ast.Node, span source.Span) {
	if !p.srcmap.Has(node) {
		p.srcmap.Put(node, span)
	}
}

func (p *Parser) errorOn(token Token, kind source.ErrorKind, msg string) *source.SyntaxError {
	return p.srcfile.SyntaxError(token.Span, kind, msg)
}
