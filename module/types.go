// Package module implements the in-memory representation of one loaded
// Breakpad symbol file (the Module Builder and Query Engine of the
// resolver) together with the Windows and CFI unwind-descriptor lookups
// that feed the postfix and CFI evaluators.
package module

import (
	"github.com/Mu-L/breakpad/internal/symfile"
)

// FileID and OriginID are the small integer handles used by a symbol file
// to name source files and inline origins without repeating their text.
type FileID = uint32
type OriginID = uint32

// Function is a named address range with an optional parameter size and a
// flag marking that several distinct symbols share this address.
type Function struct {
	Name      string
	Address   uint64
	Size      uint64
	ParamSize int64
	Multiple  bool
}

// LineEntry attributes a sub-range of a function to one source line.
type LineEntry struct {
	Address uint64
	Size    uint64
	File    FileID
	Line    int32
}

// InlineOrigin names the logical function that was inlined at one or more
// call sites. FileID is nil for symbol files using the new INLINE_ORIGIN
// format (the file is instead recorded per INLINE record) and for the old
// format's "-1" artificial-origin sentinel.
type InlineOrigin struct {
	FileID *FileID
	Name   string
}

// InlineRange is one of possibly several disjoint address ranges covered
// by a single inlined call.
type InlineRange struct {
	Address uint64
	Size    uint64
}

// Inline describes one inlined call: where it was invoked from
// (CallSiteFile/CallSiteLine), which logical function it inlines
// (OriginID), and the address ranges its code occupies.
type Inline struct {
	NestLevel    uint32
	CallSiteLine int32
	CallSiteFile *FileID
	OriginID     OriginID
	Ranges       []InlineRange
}

// Public is a non-range-bearing fallback symbol: a named address with no
// known extent, used to resolve addresses that fall outside every known
// function.
type Public struct {
	Name      string
	Address   uint64
	ParamSize int64
	Multiple  bool
}

// WindowsFrameInfo is a Windows-style (STACK WIN) frame-unwind descriptor.
type WindowsFrameInfo struct {
	Type                 symfile.StackWinType
	Address              uint64
	Size                 uint64
	PrologSize           uint32
	EpilogSize           uint32
	ParamSize            uint32
	SavedRegSize         uint32
	LocalSize            uint32
	MaxStackSize         uint32
	HasProgramString     bool
	ProgramString        string
	AllocatesBasePointer bool
}

// CFIFrameInfo is the effective CFI rule set covering one address: the
// enclosing INIT's rules with every delta at or before the queried address
// applied, in ascending address order.
type CFIFrameInfo struct {
	Address uint64
	Size    uint64
	Rules   map[string]string
}

// cfiInit is the builder/query-time representation of one STACK CFI INIT
// range plus the deltas that fall within it, kept sorted by address.
type cfiInit struct {
	address      uint64
	size         uint64
	initialRules map[string]string
	deltas       []cfiDelta
}

type cfiDelta struct {
	address uint64
	rules   map[string]string
}

// functionEntry bundles a Function with its own sorted line table and
// inline records, since both belong exclusively to one function.
type functionEntry struct {
	Function
	lines   []LineEntry // sorted by Address, non-overlapping
	inlines []*Inline   // stably sorted by NestLevel at freeze; queried by nest level + range
}
