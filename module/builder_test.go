package module

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, sym string) *Module {
	t.Helper()
	mod, err := NewBuilder().Build(strings.NewReader(sym))
	require.NoError(t, err)
	return mod
}

func TestBuilderBasicModule(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FILE 0 foo.c
FUNC 1000 20 0 foo
1000 10 5 0
1010 10 6 0
`)
	require.False(t, mod.IsCorrupt(), "diagnostics: %v", mod.Diagnostics())
	assert.Equal(t, "Linux", mod.OS)
	assert.Equal(t, "libfoo.so", mod.Name)
	require.Len(t, mod.functions, 1)
	fe := mod.functions[0]
	assert.Equal(t, "foo", fe.Name)
	require.Len(t, fe.lines, 2)
	assert.Equal(t, int32(5), fe.lines[0].Line)
}

func TestBuilderDuplicateFuncIsCorruptButKeepsFirst(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FUNC 1000 20 0 foo
FUNC 1000 20 0 bar
`)
	assert.True(t, mod.IsCorrupt())
	require.Len(t, mod.functions, 1)
	assert.Equal(t, "foo", mod.functions[0].Name)
}

func TestBuilderOverlappingFuncRejected(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FUNC 1000 20 0 foo
FUNC 1010 20 0 bar
`)
	assert.True(t, mod.IsCorrupt())
	require.Len(t, mod.functions, 1)
	assert.Equal(t, "foo", mod.functions[0].Name)
}

func TestBuilderLineOutsideFuncDropped(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FILE 0 foo.c
FUNC 1000 10 0 foo
1000 10 1 0
2000 10 2 0
`)
	assert.True(t, mod.IsCorrupt())
	require.Len(t, mod.functions[0].lines, 1)
}

func TestBuilderLineWithNoEnclosingFuncDropped(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FILE 0 foo.c
1000 10 1 0
`)
	assert.True(t, mod.IsCorrupt())
	assert.Empty(t, mod.functions)
}

func TestBuilderDanglingFileIDDropped(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
FUNC 1000 10 0 foo
1000 10 1 99
`)
	assert.True(t, mod.IsCorrupt())
	assert.Empty(t, mod.functions[0].lines)
}

func TestBuilderCfiDeltaOutsideInitDropped(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
STACK CFI INIT 1000 10 .cfa: $esp 4 +
STACK CFI 2000 .cfa: $esp 8 +
`)
	assert.True(t, mod.IsCorrupt())
	require.Len(t, mod.cfiInits, 1)
	assert.Empty(t, mod.cfiInits[0].deltas)
}

func TestBuilderCfiDeltaWithNoEnclosingInitDropped(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
STACK CFI 1000 .cfa: $esp 4 +
`)
	assert.True(t, mod.IsCorrupt())
	assert.Empty(t, mod.cfiInits)
}

func TestBuilderPublicAndWinRecords(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
PUBLIC 2000 0 bar
STACK WIN 4 2000 10 4 4 8 10 18 20 0 1
`)
	require.False(t, mod.IsCorrupt(), "diagnostics: %v", mod.Diagnostics())
	require.Len(t, mod.publics, 1)
	assert.Equal(t, "bar", mod.publics[0].Name)
	require.Len(t, mod.winUnwind, 1)
	assert.True(t, mod.winUnwind[0].AllocatesBasePointer)
}

func TestBuilderInlineOriginOldFormatArtificialSentinel(t *testing.T) {
	mod := build(t, `MODULE Linux x86_64 ABCD1234 libfoo.so
INLINE_ORIGIN 0 -1 artificial_fn
`)
	require.False(t, mod.IsCorrupt())
	origin, ok := mod.origins[0]
	require.True(t, ok)
	assert.Nil(t, origin.FileID)
	assert.Equal(t, "artificial_fn", origin.Name)
}
