package cnext

import (
	"strings"
	"testing"

	"github.com/jlaustill/go-cnext/pkg/util/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===================================================================
// Overflow behaviour
// ===================================================================

func Test_Transpile_ClampAdd(t *testing.T) {
	config := DefaultConfig()
	config.Overflow = "clamp"
	//
	output := check_TranspileWith(t, config, `
u32 a <- 4000000000;
u32 b <- a + 1000000000;
`)
	//
	assert.Contains(t, output, "#include <stdint.h>")
	assert.Contains(t, output, "uint32_t a = 4000000000U;")
	assert.Contains(t, output, "uint32_t b = cnx_clamp_add_u32(a, 1000000000U);")
	assert.Contains(t, output, "static inline uint32_t cnx_clamp_add_u32(uint32_t a, uint32_t b)")
	// Includes precede helpers, which precede declarations.
	assert.Less(t, strings.Index(output, "#include <stdint.h>"),
		strings.Index(output, "cnx_clamp_add_u32(uint32_t"))
	assert.Less(t, strings.Index(output, "cnx_clamp_add_u32(uint32_t"),
		strings.Index(output, "uint32_t a ="))
}

func Test_Transpile_ClampCompound(t *testing.T) {
	output := check_Transpile(t, `
void tick() {
    i8 x <- 120;
    clamp i8 y <- x;
    y +<- 20;
}
`)
	//
	assert.Contains(t, output, "int8_t x = 120;")
	assert.Contains(t, output, "int8_t y = x;")
	assert.Contains(t, output, "y = cnx_clamp_add_i8(y, 20);")
	// Narrow signed clamping computes in the wider type.
	assert.Contains(t, output, "int32_t wide = (int32_t)a + (int32_t)b;")
}

func Test_Transpile_DefaultSignedWidening(t *testing.T) {
	output := check_Transpile(t, `
void f(i8 a, i8 b) {
    i8 x <- a + b;
}
`)
	// Narrow signed arithmetic widens then narrows again.
	assert.Contains(t, output, "(int8_t)((int32_t)a + (int32_t)b)")
}

func Test_Transpile_WrapSigned(t *testing.T) {
	config := DefaultConfig()
	config.Overflow = "wrap"
	//
	output := check_TranspileWith(t, config, `
void f(i64 a, i64 b) {
    wrap i64 x <- a + b;
}
`)
	// i64 wrap goes through unsigned arithmetic.
	assert.Contains(t, output, "(int64_t)((uint64_t)(*a) + (uint64_t)(*b))")
}

func Test_Transpile_DebugPanicHelpers(t *testing.T) {
	config := DefaultConfig()
	config.Debug = true
	//
	output := check_TranspileWith(t, config, `
void f(u8 a) {
    clamp u8 x <- a + 1;
}
`)
	//
	assert.Contains(t, output, "#include <stdio.h>")
	assert.Contains(t, output, "#include <stdlib.h>")
	assert.Contains(t, output, "PANIC: u8 addition overflow")
	assert.Contains(t, output, "abort();")
}

// ===================================================================
// Bitmaps
// ===================================================================

func Test_Transpile_BitmapAccess(t *testing.T) {
	output := check_Transpile(t, `
bitmap8 S { A, B[3], C[4] }
void f() {
    S s <- 0;
    s.B <- 5;
    bool a <- s.A;
}
`)
	//
	assert.Contains(t, output, "typedef uint8_t S;")
	// Writes mask and shift into bits 1..3.
	assert.Contains(t, output, "s = (uint8_t)((s & (uint8_t)~(0x7U << 1)) | (((uint8_t)(5U) & 0x7U) << 1));")
	// Single-bit reads mask bit zero without a shift.
	assert.Contains(t, output, "bool a = (s & 0x1U);")
}

func Test_Transpile_BitIndexing(t *testing.T) {
	output := check_Transpile(t, `
void f(u8 v) {
    bool bit <- v[3];
    u8 nibble <- v[0, 3];
    v[7] <- true;
}
`)
	//
	assert.Contains(t, output, "bool bit = ((v >> 3U) & 1U);")
	assert.Contains(t, output, "uint8_t nibble = (v & 0xfU);")
	assert.Contains(t, output, "v = (uint8_t)((v & (uint8_t)~(1U << 7U)) | (((uint8_t)(true) & 1U) << 7U));")
}

func Test_Transpile_BitIndexOutOfBounds(t *testing.T) {
	check_TranspileError(t, `
void f(u8 v) {
    bool b <- v[8];
}
`, source.BitIndexOutOfBounds)
}

// ===================================================================
// Registers
// ===================================================================

func Test_Transpile_RegisterAccess(t *testing.T) {
	output := check_Transpile(t, `
register GPIO @ 0x4000 {
    STAT: u32 w1c @ 0;
    CTRL: u32 rw @ 4;
}
void f() {
    GPIO.CTRL <- 1;
    GPIO.STAT <- 0xFF;
    u32 v <- GPIO.CTRL;
}
`)
	//
	assert.Contains(t, output, "#define GPIO_STAT (*(volatile uint32_t *)0x4000U)")
	assert.Contains(t, output, "#define GPIO_CTRL (*(volatile uint32_t *)0x4004U)")
	assert.Contains(t, output, "GPIO_CTRL = 1U;")
	assert.Contains(t, output, "GPIO_STAT = 0xFFU;")
	assert.Contains(t, output, "uint32_t v = GPIO_CTRL;")
}

func Test_Transpile_WriteOnlyRead(t *testing.T) {
	check_TranspileError(t, `
register GPIO @ 0x4000 {
    STAT: u32 w1c @ 0;
}
void f() {
    u32 v <- GPIO.STAT;
}
`, source.WriteOnlyRead)
}

func Test_Transpile_ReadOnlyWrite(t *testing.T) {
	check_TranspileError(t, `
register GPIO @ 0x4000 {
    ID: u32 ro @ 0;
}
void f() {
    GPIO.ID <- 1;
}
`, source.ReadOnlyWrite)
}

// ===================================================================
// Scopes
// ===================================================================

func Test_Transpile_ScopeLowering(t *testing.T) {
	output := check_Transpile(t, `
scope Motor {
    private u32 speed <- 0;
    public void setSpeed(u32 s) {
        this.speed <- s;
    }
}
`)
	// Private members are static; public members are not.
	assert.Contains(t, output, "static uint32_t Motor_speed = 0U;")
	assert.Contains(t, output, "void Motor_setSpeed(const uint32_t *s)")
	assert.Contains(t, output, "Motor_speed = (*s);")
}

func Test_Transpile_ScopeConstFolding(t *testing.T) {
	output := check_Transpile(t, `
scope Motor {
    public const u32 MAX_RPM <- 6000;
}
void f() {
    u32 limit <- Motor.MAX_RPM;
}
`)
	// Known constants fold at use sites.
	assert.Contains(t, output, "uint32_t limit = 6000U;")
}

func Test_Transpile_CppScopes(t *testing.T) {
	config := DefaultConfig()
	config.Mode = "cpp"
	//
	output := check_TranspileWith(t, config, `
scope Motor {
    public u32 speed <- 0;
}
`)
	//
	assert.Contains(t, output, "namespace Motor {")
	assert.Contains(t, output, "uint32_t speed = 0U;")
	assert.Contains(t, output, "} // namespace Motor")
}

// ===================================================================
// Functions and calls
// ===================================================================

func Test_Transpile_StructParameters(t *testing.T) {
	output := check_Transpile(t, `
struct Point {
    u32 x;
    u32 y;
}
u32 getX(Point p) {
    return p.x;
}
void f() {
    Point p;
    p.x <- 1;
    p.y <- 2;
    u32 x <- getX(p);
}
`)
	//
	assert.Contains(t, output, "typedef struct {")
	assert.Contains(t, output, "} Point;")
	// Unmutated struct parameters arrive as const pointers.
	assert.Contains(t, output, "uint32_t getX(const Point *p)")
	assert.Contains(t, output, "return p->x;")
	assert.Contains(t, output, "uint32_t x = getX(&p);")
}

func Test_Transpile_LiteralToPointerParameter(t *testing.T) {
	output := check_Transpile(t, `
void set(u32 v) {
    v <- v + 1;
}
void f() {
    set(10);
}
`)
	// Literals materialise into a temporary before passing by pointer.
	assert.Contains(t, output, "uint32_t cnx_arg_0 = 10U;")
	assert.Contains(t, output, "set(&cnx_arg_0);")
}

func Test_Transpile_SafeDivIntrinsic(t *testing.T) {
	output := check_Transpile(t, `
i32 f(i32 a, i32 b) {
    i32 q;
    safe_div(q, a, b, 0);
    return q;
}
`)
	//
	assert.Contains(t, output, "cnx_safe_div_i32(&q, (*a), (*b), 0);")
	assert.Contains(t, output, "static inline void cnx_safe_div_i32")
}

func Test_Transpile_ExternalCall(t *testing.T) {
	output := check_Transpile(t, `
#include "board.h"
void f() {
    board_init(42);
}
`)
	//
	assert.Contains(t, output, "#include \"board.h\"")
	// Discarded results are discarded explicitly.
	assert.Contains(t, output, "(void)board_init(42);")
}

func Test_Transpile_Callback(t *testing.T) {
	output := check_Transpile(t, `
callback void Handler(u8 event);
void fire(Handler h) {
    h(5);
}
`)
	//
	assert.Contains(t, output, "typedef void (*Handler)(uint8_t);")
	assert.Contains(t, output, "void fire(Handler h)")
	assert.Contains(t, output, "h(5U);")
}

func Test_Transpile_ConstToNonConst(t *testing.T) {
	check_TranspileError(t, `
const u32 LIMIT <- 10;
void f(u32 x) {
    x <- x + 1;
}
void g() {
    f(LIMIT);
}
`, source.ConstToNonConst)
}

func Test_Transpile_ConstAssigned(t *testing.T) {
	check_TranspileError(t, `
void f() {
    const u32 C <- 5;
    C <- 6;
}
`, source.ConstAssigned)
}

func Test_Transpile_MainArgs(t *testing.T) {
	output := check_Transpile(t, `
i32 main(string args[]) {
    u32 n <- args.length;
    return 0;
}
`)
	//
	assert.Contains(t, output, "int main(int argc, char *argv[])")
	assert.Contains(t, output, "uint32_t n = (uint32_t)argc;")
}

// ===================================================================
// Enums
// ===================================================================

func Test_Transpile_EnumSwitch(t *testing.T) {
	output := check_Transpile(t, `
enum Color { RED, GREEN, BLUE }
u8 pick(Color c) {
    switch (c) {
        case Color.RED {
            return 1;
        }
        default(1) {
            return 0;
        }
    }
}
`)
	//
	assert.Contains(t, output, "typedef enum {")
	assert.Contains(t, output, "Color_RED = 0,")
	assert.Contains(t, output, "} Color;")
	assert.Contains(t, output, "case Color_RED: {")
	// Fall-through is disallowed; every arm breaks.
	assert.Contains(t, output, "break;")
}

func Test_Transpile_CppEnumClass(t *testing.T) {
	config := DefaultConfig()
	config.Mode = "cpp"
	//
	output := check_TranspileWith(t, config, `
enum Color { RED, GREEN }
void draw(u8 c) {
    c <- c + 1;
}
void f() {
    draw(Color.RED);
}
`)
	//
	assert.Contains(t, output, "enum class Color {")
	assert.Contains(t, output, "RED = 0,")
	// Enum class values are cast when flowing into integers.
	assert.Contains(t, output, "static_cast<uint8_t>(Color::RED)")
}

func Test_Transpile_DefaultCountMismatch(t *testing.T) {
	check_TranspileError(t, `
void f(u8 x) {
    switch (x) {
        case 1 {
        }
        default(2) {
        }
    }
}
`, source.DefaultCountMismatch)
}

// ===================================================================
// Validation
// ===================================================================

func Test_Transpile_ShiftBeyondWidth(t *testing.T) {
	check_TranspileError(t, `
void f() {
    u32 v <- 1;
    u32 r <- v << 32;
}
`, source.ShiftBeyondWidth)
}

func Test_Transpile_UninitializedUse(t *testing.T) {
	check_TranspileError(t, `
u32 f(bool cond) {
    u32 x;
    if (cond) {
        x <- 1;
    }
    return x;
}
`, source.UninitializedUse)
}

func Test_Transpile_NonBooleanCondition(t *testing.T) {
	check_TranspileError(t, `
void f(u8 x) {
    if (x) {
    }
}
`, source.NonBooleanCondition)
}

func Test_Transpile_DivisionByZero(t *testing.T) {
	check_TranspileError(t, `
void f(u8 x) {
    u8 y <- x / 0;
}
`, source.DivisionByZero)
}

func Test_Transpile_ArrayIndexOutOfBounds(t *testing.T) {
	check_TranspileError(t, `
void f() {
    u8 buf[4];
    buf[4] <- 1;
}
`, source.ArrayIndexOutOfBounds)
}

func Test_Transpile_NestedTernary(t *testing.T) {
	check_TranspileError(t, `
void f(u32 a) {
    u32 x <- (a > 1) ? ((a > 2) ? 1 : 2) : 0;
}
`, source.NestedTernary)
}

func Test_Transpile_TernaryConditionNotComparison(t *testing.T) {
	check_TranspileError(t, `
void f(bool flag) {
    u32 x <- flag ? 1 : 0;
}
`, source.TernaryConditionNotComparison)
}

func Test_Transpile_TernaryConditionHasCall(t *testing.T) {
	check_TranspileError(t, `
void f() {
    u32 x <- (probe() > 1) ? 1 : 0;
}
`, source.TernaryConditionHasCall)
}

func Test_Transpile_Ternary(t *testing.T) {
	output := check_Transpile(t, `
void f(u32 a) {
    u32 x <- (a > 1) ? 1 : 0;
}
`)
	//
	assert.Contains(t, output, "uint32_t x = ((*a) > 1U) ? 1U : 0U;")
}

// ===================================================================
// Strings and floats
// ===================================================================

func Test_Transpile_StringLengthMemoised(t *testing.T) {
	output := check_Transpile(t, `
void f() {
    string(32) s;
    s <- "hi";
    u32 a <- s.length;
    u32 b <- s.length;
}
`)
	//
	assert.Contains(t, output, "char s[33];")
	assert.Contains(t, output, "(void)strncpy(s, \"hi\", 32U);")
	assert.Contains(t, output, "s[32] = '\\0';")
	assert.Contains(t, output, "size_t cnx_len_0 = strlen(s);")
	// Repeat uses reuse the first measurement.
	assert.Equal(t, 1, strings.Count(output, "strlen(s)"))
	assert.Contains(t, output, "uint32_t b = (uint32_t)cnx_len_0;")
}

func Test_Transpile_StringCapacity(t *testing.T) {
	output := check_Transpile(t, `
void f() {
    string(16) s;
    s <- "x";
    u32 c <- s.capacity;
    u32 z <- s.size;
}
`)
	//
	assert.Contains(t, output, "uint32_t c = 16U;")
	assert.Contains(t, output, "uint32_t z = 17U;")
}

func Test_Transpile_FloatBitAccess(t *testing.T) {
	output := check_Transpile(t, `
void f() {
    f32 x <- 1.5;
    u32 hi <- x[16, 31];
}
`)
	//
	assert.Contains(t, output, "#include <string.h>")
	assert.Contains(t, output, "_Static_assert(sizeof(float) == 4")
	assert.Contains(t, output, "float x = 1.5f;")
	assert.Contains(t, output, "uint32_t __bits_x;")
	assert.Contains(t, output, "(void)memcpy(&__bits_x, &x, sizeof(x));")
	assert.Contains(t, output, "((__bits_x >> 16U) & 0xffffU)")
}

func Test_Transpile_FloatBitAccessAtGlobalScope(t *testing.T) {
	check_TranspileError(t, `
f32 ratio <- 1.0;
u32 bits <- ratio[0, 15];
`, source.UnsupportedFloatBitOp)
}

// ===================================================================
// Critical sections and atomics
// ===================================================================

func Test_Transpile_CriticalSection(t *testing.T) {
	output := check_Transpile(t, `
u32 shared <- 0;
void f() {
    critical (shared) {
        shared <- shared + 1;
    }
}
`)
	//
	assert.Contains(t, output, "uint32_t cnx_primask_0 = cnx_critical_enter();")
	assert.Contains(t, output, "cnx_critical_exit(cnx_primask_0);")
	assert.Contains(t, output, "static inline uint32_t cnx_critical_enter(void)")
}

func Test_Transpile_AtomicFallsBackToCritical(t *testing.T) {
	output := check_Transpile(t, `
atomic u32 counter <- 0;
void bump() {
    counter <- counter + 1;
}
`)
	// Without atomic support, atomic stores take a critical section.
	assert.Contains(t, output, "cnx_critical_enter();")
	assert.NotContains(t, output, "_Atomic")
}

func Test_Transpile_AtomicLowersToC11(t *testing.T) {
	config := DefaultConfig()
	config.Atomic = true
	//
	output := check_TranspileWith(t, config, `
atomic u32 counter <- 0;
void bump() {
    counter <- counter + 1;
}
`)
	//
	assert.Contains(t, output, "_Atomic uint32_t counter = 0U;")
	assert.NotContains(t, output, "cnx_critical_enter")
}

// ===================================================================
// Output invariants
// ===================================================================

func Test_Transpile_Deterministic(t *testing.T) {
	input := `
bitmap8 S { A, B[3] }
u32 total <- 0;
void f(u8 v) {
    S s <- v;
    bool a <- s.A;
    if (a) {
        total <- total + 1;
    }
}
`
	first := check_Transpile(t, input)
	second := check_Transpile(t, input)
	//
	assert.Equal(t, first, second)
}

func Test_Transpile_ModifierOrderSymmetric(t *testing.T) {
	first := check_Transpile(t, "atomic wrap u32 a <- 0;")
	second := check_Transpile(t, "wrap atomic u32 a <- 0;")
	//
	assert.Equal(t, first, second)
}

func Test_Transpile_NoOutputOnError(t *testing.T) {
	srcfile := source.NewSourceFile("test.cnx", []byte("u32 x <- missing;"))
	//
	output, errs := TranspileSourceFile(DefaultConfig(), srcfile)
	assert.Empty(t, output)
	assert.NotEmpty(t, errs)
}

func Test_Transpile_HelperEmittedOnce(t *testing.T) {
	config := DefaultConfig()
	config.Overflow = "clamp"
	//
	output := check_TranspileWith(t, config, `
void f(u32 a, u32 b) {
    u32 x <- a + b;
    u32 y <- a + b;
}
`)
	//
	assert.Equal(t, 1, strings.Count(output, "static inline uint32_t cnx_clamp_add_u32"))
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Transpile(t *testing.T, input string) string {
	return check_TranspileWith(t, DefaultConfig(), input)
}

func check_TranspileWith(t *testing.T, config Config, input string) string {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	output, errs := TranspileSourceFile(config, srcfile)
	//
	for _, err := range errs {
		t.Logf("unexpected error: %s", err.Error())
	}
	//
	require.Empty(t, errs)
	//
	return output
}

func check_TranspileError(t *testing.T, input string, kind source.ErrorKind) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	output, errs := TranspileSourceFile(DefaultConfig(), srcfile)
	require.NotEmpty(t, errs)
	assert.Empty(t, output)
	//
	found := false
	//
	for _, err := range errs {
		if err.Kind() == kind {
			found = true
		}
	}
	//
	assert.True(t, found, "expected error kind %s", kind)
}
