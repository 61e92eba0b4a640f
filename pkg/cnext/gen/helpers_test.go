package gen

import (
	"strings"
	"testing"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/stretchr/testify/assert"
)

func Test_Helpers_Names(t *testing.T) {
	assert.Equal(t, "cnx_clamp_add_u32", HelperName(HELPER_ADD, ast.U32))
	assert.Equal(t, "cnx_clamp_mul_i8", HelperName(HELPER_MUL, ast.I8))
	assert.Equal(t, "cnx_safe_div_i32", HelperName(HELPER_DIV, ast.I32))
	assert.Equal(t, "cnx_safe_mod_u64", HelperName(HELPER_MOD, ast.U64))
}

func Test_Helpers_UnsignedClampUsesBuiltin(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_ADD, Type: ast.U32, Mode: MODE_CLAMP})
	//
	assert.Contains(t, code, "static inline uint32_t cnx_clamp_add_u32(uint32_t a, uint32_t b)")
	assert.Contains(t, code, "__builtin_add_overflow(a, b, &result)")
	assert.Contains(t, code, "UINT32_MAX")
}

func Test_Helpers_UnsignedSubSaturatesAtZero(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_SUB, Type: ast.U8, Mode: MODE_CLAMP})
	//
	assert.Contains(t, code, "__builtin_sub_overflow")
	assert.Contains(t, code, "return (uint8_t)(0u);")
}

func Test_Helpers_NarrowSignedWidens(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_ADD, Type: ast.I8, Mode: MODE_CLAMP})
	//
	assert.Contains(t, code, "int32_t wide = (int32_t)a + (int32_t)b;")
	assert.Contains(t, code, "INT8_MAX")
	assert.Contains(t, code, "INT8_MIN")
}

func Test_Helpers_Int64PreChecks(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_ADD, Type: ast.I64, Mode: MODE_CLAMP})
	//
	assert.Contains(t, code, "(a > INT64_MAX - b)")
	assert.Contains(t, code, "(a < INT64_MIN - b)")
	// No widening happens for the widest signed type.
	assert.NotContains(t, code, "wide")
}

func Test_Helpers_PanicMode(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_MUL, Type: ast.U16, Mode: MODE_PANIC})
	//
	assert.Contains(t, code, "PANIC: u16 multiplication overflow")
	assert.Contains(t, code, "abort();")
}

func Test_Helpers_SafeDivSignedGuardsMin(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_DIV, Type: ast.I32, Mode: MODE_SAFE})
	//
	assert.Contains(t, code, "void cnx_safe_div_i32(int32_t *out, int32_t a, int32_t b, int32_t def)")
	assert.Contains(t, code, "if (b == 0)")
	assert.Contains(t, code, "(a == INT32_MIN) && (b == -1)")
}

func Test_Helpers_SafeModUnsigned(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_MOD, Type: ast.U8, Mode: MODE_SAFE})
	//
	assert.Contains(t, code, "*out = (uint8_t)(a % b);")
	// Unsigned division needs no MIN / -1 guard.
	assert.NotContains(t, code, "-1")
}

func Test_Helpers_Critical(t *testing.T) {
	code := RenderHelper(Effect{Kind: EFFECT_HELPER, Op: HELPER_CRITICAL, Type: ast.U32, Mode: MODE_CLAMP})
	//
	assert.Contains(t, code, "cnx_critical_enter")
	assert.Contains(t, code, "cnx_critical_exit")
	assert.Contains(t, code, "__disable_irq();")
	assert.Contains(t, code, "__set_PRIMASK(primask);")
}

func Test_Effects_Dedup(t *testing.T) {
	collector := NewCollector()
	//
	collector.Include(IncludeStdint)
	collector.Include(IncludeStdbool)
	collector.Include(IncludeStdint)
	collector.Helper(HELPER_ADD, ast.U32, MODE_CLAMP)
	collector.Helper(HELPER_ADD, ast.U32, MODE_CLAMP)
	collector.Helper(HELPER_ADD, ast.U8, MODE_CLAMP)
	collector.Typedef("Handler", "typedef void (*Handler)(void);")
	collector.Typedef("Handler", "typedef void (*Handler)(void);")
	//
	effects := collector.Effects()
	assert.Len(t, effects, 5)
	// First-occurrence order is preserved.
	assert.Equal(t, IncludeStdint, effects[0].Header)
	assert.Equal(t, IncludeStdbool, effects[1].Header)
	assert.Equal(t, ast.U32, effects[2].Type)
	assert.Equal(t, ast.U8, effects[3].Type)
	assert.Equal(t, "Handler", effects[4].Name)
}

func Test_Effects_UserIncludes(t *testing.T) {
	collector := NewCollector()
	collector.UserInclude("board.h", false)
	collector.UserInclude("stdio.h", true)
	//
	assert.Equal(t, "#include \"board.h\"", renderInclude(collector.Effects()[0], false))
	assert.Equal(t, "#include <stdio.h>", renderInclude(collector.Effects()[1], false))
}

func check_HelperLines(t *testing.T, code string) []string {
	return strings.Split(strings.TrimSpace(code), "\n")
}
