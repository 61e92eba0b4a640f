package compiler

import (
	"testing"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parser_Variable(t *testing.T) {
	unit := check_Parse(t, "u32 counter <- 10;")
	require.Len(t, unit.Declarations, 1)
	//
	decl, ok := unit.Declarations[0].(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "counter", decl.Name)
	assert.Equal(t, ast.U32, decl.Type.Base)
	require.NotNil(t, decl.Initialiser)
}

func Test_Parser_VariableModifiers(t *testing.T) {
	unit := check_Parse(t, "atomic wrap u32 a; wrap atomic u32 b;")
	require.Len(t, unit.Declarations, 2)
	// Modifier order is immaterial.
	a := unit.Declarations[0].(*ast.Variable)
	b := unit.Declarations[1].(*ast.Variable)
	assert.Equal(t, a.Modifiers, b.Modifiers)
	assert.True(t, a.Modifiers.Has(ast.MOD_ATOMIC))
	assert.True(t, a.Modifiers.Has(ast.MOD_WRAP))
}

func Test_Parser_WrapClampExclusive(t *testing.T) {
	check_ParseError(t, "wrap clamp u32 a;", source.UnexpectedToken)
}

func Test_Parser_Array(t *testing.T) {
	unit := check_Parse(t, "u8 buffer[4][2];")
	decl := unit.Declarations[0].(*ast.Variable)
	assert.True(t, decl.Type.IsArray)
	assert.Equal(t, []uint{4, 2}, decl.Type.Dims)
}

func Test_Parser_String(t *testing.T) {
	unit := check_Parse(t, "string(32) name;")
	decl := unit.Declarations[0].(*ast.Variable)
	assert.True(t, decl.Type.IsString)
	assert.Equal(t, uint(32), decl.Type.StringCapacity)
}

func Test_Parser_Function(t *testing.T) {
	unit := check_Parse(t, "u32 add(u32 a, const u32 b) { return a + b; }")
	decl := unit.Declarations[0].(*ast.Function)
	assert.Equal(t, "add", decl.Name)
	require.Len(t, decl.Params, 2)
	assert.False(t, decl.Params[0].Const)
	assert.True(t, decl.Params[1].Const)
	require.Len(t, decl.Body.Stmts, 1)
}

func Test_Parser_Scope(t *testing.T) {
	unit := check_Parse(t, `
scope Motor {
    private u32 speed <- 0;
    public void stop() {
        this.speed <- 0;
    }
}`)
	decl := unit.Declarations[0].(*ast.Scope)
	assert.Equal(t, "Motor", decl.Name)
	require.Len(t, decl.Members, 2)
}

func Test_Parser_Struct(t *testing.T) {
	unit := check_Parse(t, "struct Point { u32 x; u32 y; }")
	decl := unit.Declarations[0].(*ast.Struct)
	require.Len(t, decl.Fields, 2)
	assert.Equal(t, "x", decl.Fields[0].Name)
}

func Test_Parser_Enum(t *testing.T) {
	unit := check_Parse(t, "enum Color { RED, GREEN <- 5, BLUE }")
	decl := unit.Declarations[0].(*ast.Enum)
	require.Len(t, decl.Members, 3)
	assert.Nil(t, decl.Members[0].Value)
	assert.NotNil(t, decl.Members[1].Value)
}

func Test_Parser_Bitmap(t *testing.T) {
	unit := check_Parse(t, "bitmap8 Status { A, B[3], C[4] }")
	decl := unit.Declarations[0].(*ast.Bitmap)
	assert.Equal(t, uint(8), decl.Backing)
	require.Len(t, decl.Fields, 3)
	assert.Equal(t, uint(1), decl.Fields[0].Width)
	assert.Equal(t, uint(3), decl.Fields[1].Width)
}

func Test_Parser_BitmapPinnedField(t *testing.T) {
	unit := check_Parse(t, "bitmap16 Status { FLAG[2] @ 4 }")
	decl := unit.Declarations[0].(*ast.Bitmap)
	require.NotNil(t, decl.Fields[0].Offset)
	assert.Equal(t, uint(4), *decl.Fields[0].Offset)
}

func Test_Parser_Register(t *testing.T) {
	unit := check_Parse(t, `
register GPIO @ 0x4000 {
    STAT: u32 w1c @ 0;
    CTRL: u32 rw @ 4;
}`)
	decl := unit.Declarations[0].(*ast.Register)
	assert.Equal(t, uint64(0x4000), decl.Address)
	require.Len(t, decl.Members, 2)
	assert.Equal(t, ast.W1C, decl.Members[0].Mode)
	assert.Equal(t, uint64(4), decl.Members[1].Offset)
}

func Test_Parser_Callback(t *testing.T) {
	unit := check_Parse(t, "callback void Handler(u8 event);")
	decl := unit.Declarations[0].(*ast.Callback)
	assert.Equal(t, "Handler", decl.Name)
	require.Len(t, decl.Params, 1)
}

func Test_Parser_Include(t *testing.T) {
	unit := check_Parse(t, "#include <stdio.h>\n#include \"board.h\"\nu8 x;")
	require.Len(t, unit.Includes, 2)
	assert.True(t, unit.Includes[0].System)
	assert.False(t, unit.Includes[1].System)
	assert.Equal(t, "board.h", unit.Includes[1].Header)
}

func Test_Parser_Switch(t *testing.T) {
	unit := check_Parse(t, `
void f(u8 x) {
    switch (x) {
        case 1 {
            return;
        }
        default(1) {
        }
    }
}`)
	fn := unit.Declarations[0].(*ast.Function)
	stmt := fn.Body.Stmts[0].(*ast.Switch)
	require.Len(t, stmt.Cases, 1)
	assert.Equal(t, uint(1), stmt.DefaultCount)
	assert.NotNil(t, stmt.Default)
}

func Test_Parser_SwitchRequiresDefault(t *testing.T) {
	check_ParseError(t, `
void f(u8 x) {
    switch (x) {
        case 1 {
        }
    }
}`, source.UnexpectedToken)
}

func Test_Parser_Critical(t *testing.T) {
	unit := check_Parse(t, `
u32 shared <- 0;
void f() {
    critical (shared) {
        shared <- 1;
    }
}`)
	fn := unit.Declarations[1].(*ast.Function)
	stmt := fn.Body.Stmts[0].(*ast.Critical)
	assert.Equal(t, "shared", stmt.Guard.Name)
}

func Test_Parser_ForLoop(t *testing.T) {
	unit := check_Parse(t, `
void f() {
    for (u32 i <- 0; i < 10; i +<- 1) {
    }
}`)
	fn := unit.Declarations[0].(*ast.Function)
	stmt := fn.Body.Stmts[0].(*ast.For)
	assert.NotNil(t, stmt.Init)
	assert.NotNil(t, stmt.Cond)
	assert.NotNil(t, stmt.Post)
}

func Test_Parser_TernaryExpression(t *testing.T) {
	unit := check_Parse(t, "void f(u32 a) { u32 x <- (a > 1) ? 1 : 0; }")
	fn := unit.Declarations[0].(*ast.Function)
	local := fn.Body.Stmts[0].(*ast.Local)
	_, ok := local.Decl.Initialiser.(*ast.Ternary)
	assert.True(t, ok)
}

func Test_Parser_Precedence(t *testing.T) {
	// a + b * c parses as a + (b * c).
	unit := check_Parse(t, "void f(u8 a, u8 b, u8 c) { u8 x <- a + b * c; }")
	fn := unit.Declarations[0].(*ast.Function)
	local := fn.Body.Stmts[0].(*ast.Local)
	//
	outer, ok := local.Decl.Initialiser.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.ADD, outer.Op)
	//
	inner, ok := outer.Rhs.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.MUL, inner.Op)
}

func Test_Parser_LiteralSuffixes(t *testing.T) {
	unit := check_Parse(t, "u64 a <- 100u64; i8 b <- 5i8; f32 c <- 1.5f32;")
	//
	a := unit.Declarations[0].(*ast.Variable).Initialiser.(*ast.IntLiteral)
	assert.Equal(t, ast.U64, a.Suffix)
	//
	b := unit.Declarations[1].(*ast.Variable).Initialiser.(*ast.IntLiteral)
	assert.Equal(t, ast.I8, b.Suffix)
	//
	c := unit.Declarations[2].(*ast.Variable).Initialiser.(*ast.FloatLiteral)
	assert.Equal(t, ast.F32, c.Suffix)
}

func Test_Parser_UnexpectedToken(t *testing.T) {
	check_ParseError(t, "u32 <- 10;", source.UnexpectedToken)
}

func Test_Parser_UnterminatedScope(t *testing.T) {
	check_ParseError(t, "scope S { u32 a;", source.UnterminatedBlock)
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Parse(t *testing.T, input string) *ast.Unit {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	unit, srcmap, errs := ParseSourceFile(srcfile)
	require.Empty(t, errs)
	require.NotNil(t, unit)
	require.NotNil(t, srcmap)
	//
	return unit
}

func check_ParseError(t *testing.T, input string, kind source.ErrorKind) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	_, _, errs := ParseSourceFile(srcfile)
	require.NotEmpty(t, errs)
	assert.Equal(t, kind, errs[0].Kind())
}
