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
	"math/big"
	"strings"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/cnext/compiler"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// SyntaxError defines the kind of errors that can be reported by this
// compiler.
type SyntaxError = source.SyntaxError

// OverflowMode selects the file-wide default behaviour of arithmetic whose
// operands carry no wrap / clamp modifier.
type OverflowMode uint

const (
	// OVERFLOW_DEFAULT relies on modular unsigned arithmetic and the
	// widened-then-narrowed pattern for signed arithmetic.
	OVERFLOW_DEFAULT OverflowMode = iota
	// OVERFLOW_WRAP makes wrapping explicit everywhere.
	OVERFLOW_WRAP
	// OVERFLOW_CLAMP saturates everywhere.
	OVERFLOW_CLAMP
)

// Config carries the enumerated generation options.
type Config struct {
	// Cpp selects C++17 output instead of C99.
	Cpp bool
	// Debug switches clamp helpers to their panicking form.
	Debug bool
	// Atomic indicates the target supports C11 atomics; without it, atomic
	// variables fall back to critical-section guarded accesses.
	Atomic bool
	// Overflow is the file-wide default overflow behaviour.
	Overflow OverflowMode
}

// Capabilities is the bundle of can-do operations the orchestrator presents
// to each sub-generator.  Sub-generators hold this bundle instead of naming
// their peers (or the registry, typing environment and effect collector)
// directly, which keeps cross-generator cycles out: the expression generator
// never reaches statements, and statements reach expressions only through
// GenerateExpression / GenerateRead.
type Capabilities interface {
	// GenerateExpression produces C for an expression under an expected
	// type context.
	GenerateExpression(expr ast.Expr, expected ast.Type) (string, []SyntaxError)
	// GenerateRead produces a read of an lvalue, along with its type.
	GenerateRead(target ast.Expr) (string, ast.Type, []SyntaxError)
	// GenerateStatement produces C for a statement.
	GenerateStatement(out *emitter, stmt ast.Stmt) []SyntaxError
	// GenerateDeclaration produces C for a top-level declaration.
	GenerateDeclaration(out *emitter, decl ast.Declaration) []SyntaxError
	// Symbols returns the frozen symbol registry (an immutable view).
	Symbols() *compiler.Registry
	// TypingEnv returns the ambient typing environment, tracking the
	// enclosing scope, function and locals.
	TypingEnv() *compiler.Env
	// StructFieldInfo looks up a field of a known struct.
	StructFieldInfo(structName string, field string) (*compiler.FieldInfo, bool)
	// IsKnownScope checks whether a name refers to a scope block.
	IsKnownScope(name string) bool
	// ValidateTernaryCondition enforces the restricted ternary shape.
	ValidateTernaryCondition(n *ast.Ternary) []SyntaxError
	// GenConfig returns the generation options.
	GenConfig() Config
	// FuncState returns the per-function generator state, or nil at file
	// level.
	FuncState() *funcState
	// EnterFunction creates per-function state for a given function.
	EnterFunction(scope string, info *compiler.FunctionInfo)
	// ExitFunction discards the per-function state.
	ExitFunction()
	// OverflowPolicy returns the policy of the declaration or assignment
	// being generated.
	OverflowPolicy() OverflowMode
	// SetOverflowPolicy fixes the policy for the construct being generated.
	SetOverflowPolicy(mode OverflowMode)
	// PolicyFor derives the overflow policy from declaration modifiers.
	PolicyFor(mods ast.Modifiers) OverflowMode
	// ModifiersOf recovers the declared modifiers of an assignment target.
	ModifiersOf(target ast.Expr) ast.Modifiers
	// Shadowed checks whether a parameter or local hides a given name.
	Shadowed(name string) bool
	// ScopedName renders a scope member reference in the output language.
	ScopedName(scope string, name string) string
	// CTypeName renders a type's canonical C name, recording the includes
	// its use demands.
	CTypeName(t ast.Type) string
	// MaskLiteral renders a bit mask literal for a field width.
	MaskLiteral(width uint, backing uint) string
	// ConstantCode renders a folded constant in the output language.
	ConstantCode(value *big.Int, t ast.Type) string
	// FreshTemp allocates a synthesised local name with a given prefix.
	FreshTemp(prefix string) string
	// RequestInclude records a canonical header requirement.
	RequestInclude(name string)
	// RequestHelper records a helper-emission requirement.
	RequestHelper(op HelperOp, base ast.Base, mode HelperMode)
	// RequestTypedef records a callback typedef requirement.
	RequestTypedef(name string, signature string)
}

// The orchestrator is the bundle's only implementation.
var _ Capabilities = (*Generator)(nil)

// expressionGenerator is the expression sub-generator.  It carries no state
// of its own; everything it needs arrives through the capability bundle.
type expressionGenerator struct {
	Capabilities
}

// statementGenerator is the statement and declaration sub-generator.  Like
// the expression generator, it works purely against the capability bundle.
type statementGenerator struct {
	Capabilities
}

// Generate turns a checked translation unit into C (or C++) text.  The
// output is deterministic: includes and helpers appear in first-occurrence
// order, declarations in source order.  On error, no output is produced.
func Generate(config Config, registry *compiler.Registry, srcmap *source.Maps[ast.Node],
	unit *ast.Unit) (string, []SyntaxError) {
	//
	g := &Generator{
		config:   config,
		registry: registry,
		srcmap:   srcmap,
		effects:  NewCollector(),
		env:      compiler.NewEnv(registry, srcmap),
	}
	// Wire each sub-generator to the capability bundle.
	g.exprs = &expressionGenerator{g}
	g.stmts = &statementGenerator{g}
	// User includes pass through ahead of everything else.
	for _, include := range unit.Includes {
		g.effects.UserInclude(include.Header, include.System)
	}
	//
	var (
		body   emitter
		errors []SyntaxError
	)
	//
	for i, decl := range unit.Declarations {
		if i > 0 {
			body.blank()
		}
		//
		if errs := g.GenerateDeclaration(&body, decl); len(errs) > 0 {
			// Annotate with the declaration boundary and keep going, so one
			// compile reports every failing declaration.
			errors = append(errors, annotate(decl, errs)...)
		}
	}
	//
	if len(errors) > 0 {
		return "", errors
	}
	//
	return g.assemble(body.String()), nil
}

// annotate re-raises errors at a declaration boundary, prefixed with the
// declaration name.
func annotate(decl ast.Declaration, errs []SyntaxError) []SyntaxError {
	name := decl.DeclaredName()
	//
	if name == "" {
		return errs
	}
	//
	annotated := make([]SyntaxError, len(errs))
	//
	for i, err := range errs {
		annotated[i] = *err.SourceFile().SyntaxError(err.Span(), err.Kind(),
			fmt.Sprintf("in %s: %s", name, err.Message()))
	}
	//
	return annotated
}

// Generator is the orchestrator.  It owns the mutable state of one
// translation unit's generation (the effect collector, the per-function
// state, the overflow policy of the construct in hand) and implements the
// capability bundle each sub-generator works against.
type Generator struct {
	config   Config
	registry *compiler.Registry
	srcmap   *source.Maps[ast.Node]
	effects  *Collector
	// Typing environment tracking the enclosing scope, function and locals.
	env *compiler.Env
	// Per-function generator state, or nil at file level.
	fn *funcState
	// Overflow policy of the declaration or assignment being generated.
	policy OverflowMode
	// Sub-generators, each holding the capability bundle.
	exprs *expressionGenerator
	stmts *statementGenerator
}

// funcState is created on function entry and discarded on exit.
type funcState struct {
	info *compiler.FunctionInfo
	// Memoised strlen results, keyed by the generated string expression.
	lengthCache map[string]string
	// Float bit alias variables, keyed by the generated float expression.
	aliasCache map[string]string
	// Declarations of synthesised temporaries, flushed at the next
	// statement boundary.
	pendingTemps []string
	// Modifiers of locals, for overflow policy and atomic guarding.
	localMods map[string]ast.Modifiers
	// Counter for synthesised temporary names.
	tempIndex uint
}

func newFuncState(info *compiler.FunctionInfo) *funcState {
	return &funcState{
		info:        info,
		lengthCache: make(map[string]string),
		aliasCache:  make(map[string]string),
		localMods:   make(map[string]ast.Modifiers),
	}
}

// ============================================================================
// Capability implementation
// ============================================================================

// GenerateExpression dispatches into the expression sub-generator.
func (g *Generator) GenerateExpression(expr ast.Expr, expected ast.Type) (string, []SyntaxError) {
	return g.exprs.Expression(expr, expected)
}

// GenerateRead dispatches an lvalue read into the expression sub-generator.
func (g *Generator) GenerateRead(target ast.Expr) (string, ast.Type, []SyntaxError) {
	return g.exprs.readTarget(target)
}

// GenerateStatement dispatches into the statement sub-generator.
func (g *Generator) GenerateStatement(out *emitter, stmt ast.Stmt) []SyntaxError {
	return g.stmts.Statement(out, stmt)
}

// GenerateDeclaration dispatches into the declaration sub-generator.
func (g *Generator) GenerateDeclaration(out *emitter, decl ast.Declaration) []SyntaxError {
	return g.stmts.Declaration(out, decl)
}

// Symbols returns the frozen symbol registry.
func (g *Generator) Symbols() *compiler.Registry {
	return g.registry
}

// TypingEnv returns the ambient typing environment.
func (g *Generator) TypingEnv() *compiler.Env {
	return g.env
}

// StructFieldInfo looks up a field of a known struct.
func (g *Generator) StructFieldInfo(structName string, field string) (*compiler.FieldInfo, bool) {
	info, ok := g.registry.Struct(structName)
	if !ok {
		return nil, false
	}
	//
	return info.Field(field)
}

// IsKnownScope checks whether a name refers to a scope block.
func (g *Generator) IsKnownScope(name string) bool {
	return g.registry.IsScope(name)
}

// ValidateTernaryCondition enforces the restricted ternary shape.
func (g *Generator) ValidateTernaryCondition(n *ast.Ternary) []SyntaxError {
	return g.env.ValidateTernary(n)
}

// GenConfig returns the generation options.
func (g *Generator) GenConfig() Config {
	return g.config
}

// FuncState returns the per-function generator state, or nil at file level.
func (g *Generator) FuncState() *funcState {
	return g.fn
}

// EnterFunction creates the per-function state and the matching typing
// environment.
func (g *Generator) EnterFunction(scope string, info *compiler.FunctionInfo) {
	g.fn = newFuncState(info)
	g.env = compiler.NewEnv(g.registry, g.srcmap).EnterFunction(scope, info)
}

// ExitFunction discards the per-function state.
func (g *Generator) ExitFunction() {
	g.fn = nil
	g.env = compiler.NewEnv(g.registry, g.srcmap)
}

// OverflowPolicy returns the policy of the construct being generated.
func (g *Generator) OverflowPolicy() OverflowMode {
	return g.policy
}

// SetOverflowPolicy fixes the policy for the construct being generated.
func (g *Generator) SetOverflowPolicy(mode OverflowMode) {
	g.policy = mode
}

// PolicyFor determines the overflow policy of a declaration or assignment
// from its modifiers, falling back to the file-wide default.
func (g *Generator) PolicyFor(mods ast.Modifiers) OverflowMode {
	switch {
	case mods.Has(ast.MOD_CLAMP):
		return OVERFLOW_CLAMP
	case mods.Has(ast.MOD_WRAP):
		return OVERFLOW_WRAP
	}
	//
	return g.config.Overflow
}

// ModifiersOf recovers the declared modifiers of an assignment target, so
// compound arithmetic adopts the target's overflow policy.
func (g *Generator) ModifiersOf(target ast.Expr) ast.Modifiers {
	root := compiler.RootIdentifier(target)
	if root == nil {
		return 0
	}
	//
	if g.fn != nil {
		if mods, ok := g.fn.localMods[root.Name]; ok {
			return mods
		}
	}
	//
	switch {
	case root.IsThis():
		if member, ok := memberName(target); ok {
			if info, ok := g.registry.Variable(g.env.Scope, member); ok {
				return info.Modifiers
			}
		}
	case root.IsGlobal():
		if member, ok := memberName(target); ok {
			if info, ok := g.registry.Variable("", member); ok {
				return info.Modifiers
			}
		}
	case g.registry.IsScope(root.Name):
		if member, ok := memberName(target); ok {
			if info, ok := g.registry.Variable(root.Name, member); ok {
				return info.Modifiers
			}
		}
	default:
		if info, ok := g.registry.Variable("", root.Name); ok {
			return info.Modifiers
		}
	}
	//
	return 0
}

// memberName extracts the member of a one-step qualified lvalue (e.g. the
// "x" of "this.x"), which is how scope variables are addressed.
func memberName(target ast.Expr) (string, bool) {
	if member, ok := target.(*ast.Member); ok {
		return member.Name, true
	}
	//
	return "", false
}

// Shadowed checks whether a parameter or local hides a given name.
func (g *Generator) Shadowed(name string) bool {
	if g.env.Function != nil {
		if _, ok := g.env.Function.Param(name); ok {
			return true
		}
	}
	//
	_, ok := g.env.Locals[name]
	//
	return ok
}

// ScopedName renders a scope member reference in the output language.
func (g *Generator) ScopedName(scope string, name string) string {
	if scope == "" {
		return name
	}
	//
	if g.config.Cpp {
		return fmt.Sprintf("%s::%s", scope, name)
	}
	//
	return fmt.Sprintf("%s_%s", scope, name)
}

// CTypeName renders a type's canonical C name, recording the includes its
// use demands.
func (g *Generator) CTypeName(t ast.Type) string {
	switch {
	case t.IsInteger() || t.IsBitmap:
		g.effects.Include(IncludeStdint)
	case t.IsBool() && !g.config.Cpp:
		g.effects.Include(IncludeStdbool)
	}
	//
	return t.CName()
}

// MaskLiteral renders the mask of a field: width bits set, as a hexadecimal
// literal with the suffix demanded by the backing width.
func (g *Generator) MaskLiteral(width uint, backing uint) string {
	mask := new(big.Int).Lsh(big.NewInt(1), width)
	mask.Sub(mask, big.NewInt(1))
	//
	if backing == 64 {
		return fmt.Sprintf("%#xULL", mask)
	}
	//
	return fmt.Sprintf("%#xU", mask)
}

// ConstantCode renders a folded constant in the output language.
func (g *Generator) ConstantCode(value *big.Int, t ast.Type) string {
	if t.IsUnsigned() && t.WidthBits == 64 {
		return fmt.Sprintf("%sULL", value.String())
	}
	//
	if t.IsUnsigned() {
		return fmt.Sprintf("%sU", value.String())
	}
	//
	return value.String()
}

// FreshTemp allocates a synthesised local name with a given prefix.
func (g *Generator) FreshTemp(prefix string) string {
	name := fmt.Sprintf("%s_%d", prefix, g.fn.tempIndex)
	g.fn.tempIndex++
	//
	return name
}

// RequestInclude records a canonical header requirement.
func (g *Generator) RequestInclude(name string) {
	g.effects.Include(name)
}

// RequestHelper records a helper-emission requirement.
func (g *Generator) RequestHelper(op HelperOp, base ast.Base, mode HelperMode) {
	g.effects.Helper(op, base, mode)
}

// RequestTypedef records a callback typedef requirement.
func (g *Generator) RequestTypedef(name string, signature string) {
	g.effects.Typedef(name, signature)
}

// ============================================================================
// Prelude assembly
// ============================================================================

// assemble concatenates the prelude (includes, typedefs, helpers) with the
// generated declarations.
func (g *Generator) assemble(body string) string {
	var (
		includes []string
		typedefs []string
		helpers  []string
	)
	//
	for _, effect := range g.effects.Effects() {
		switch effect.Kind {
		case EFFECT_INCLUDE:
			includes = append(includes, renderInclude(effect, g.config.Cpp))
		case EFFECT_TYPEDEF:
			typedefs = append(typedefs, effect.Signature)
		case EFFECT_HELPER:
			helpers = append(helpers, RenderHelper(effect))
		}
	}
	//
	var sections []string
	//
	if len(includes) > 0 {
		sections = append(sections, strings.Join(includes, "\n"))
	}
	//
	if len(typedefs) > 0 {
		sections = append(sections, strings.Join(typedefs, "\n"))
	}
	//
	if len(helpers) > 0 {
		sections = append(sections, strings.Join(helpers, "\n"))
	}
	//
	if body != "" {
		sections = append(sections, strings.TrimRight(body, "\n"))
	}
	//
	return strings.Join(sections, "\n\n") + "\n"
}

func renderInclude(effect Effect, cpp bool) string {
	if effect.User {
		if effect.System {
			return fmt.Sprintf("#include <%s>", effect.Header)
		}
		//
		return fmt.Sprintf("#include \"%s\"", effect.Header)
	}
	//
	switch effect.Header {
	case IncludeStdbool:
		return "#include <stdbool.h>"
	case IncludeStdint:
		return "#include <stdint.h>"
	case IncludeString:
		return "#include <string.h>"
	case IncludeStdlib:
		return "#include <stdlib.h>"
	case IncludeStdio:
		return "#include <stdio.h>"
	case IncludeFloatAssert:
		if cpp {
			return "static_assert(sizeof(float) == 4, \"float bit access requires a 32-bit float\");"
		}
		//
		return "_Static_assert(sizeof(float) == 4, \"float bit access requires a 32-bit float\");"
	case IncludeDoubleAssert:
		if cpp {
			return "static_assert(sizeof(double) == 8, \"double bit access requires a 64-bit double\");"
		}
		//
		return "_Static_assert(sizeof(double) == 8, \"double bit access requires a 64-bit double\");"
	}
	//
	panic(fmt.Sprintf("unknown canonical include \"%s\"", effect.Header))
}

// ============================================================================
// Emitter
// ============================================================================

// emitter accumulates indented lines of output.
type emitter struct {
	builder strings.Builder
	indent  int
}

func (e *emitter) line(format string, args ...any) {
	for i := 0; i < e.indent; i++ {
		e.builder.WriteString("    ")
	}
	//
	fmt.Fprintf(&e.builder, format, args...)
	e.builder.WriteString("\n")
}

func (e *emitter) blank() {
	e.builder.WriteString("\n")
}

func (e *emitter) String() string {
	return e.builder.String()
}
