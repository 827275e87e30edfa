package symfile

import (
	"fmt"
	"strings"
)

// ModuleRecord is the mandatory header record that must appear first in a
// symbol file.
type ModuleRecord struct {
	OS, Arch, ID, Name string
}

// FileRecord maps a small integer handle to a source file path.
type FileRecord struct {
	ID   uint32
	Path string
}

// InlineOriginRecord names the logical function that was inlined at one or
// more call sites. FileID is nil for the new-format record (no file id); for
// the old format it points at the parsed file id, including the -1
// artificial-origin sentinel.
type InlineOriginRecord struct {
	OriginID uint32
	FileID   *int32 // negative values are passed through; the builder accepts only -1
	Name     string
}

// FuncRecord describes one function's address range.
type FuncRecord struct {
	Multiple  bool
	Address   uint64
	Size      uint64
	ParamSize int64
	Name      string
}

// LineRecord attributes an address range within the preceding FUNC to a
// source file and line number.
type LineRecord struct {
	Address uint64
	Size    uint64
	Line    int32
	FileID  uint32
}

// InlineRange is one of possibly several disjoint address ranges covered by
// a single inlined call.
type InlineRange struct {
	Address uint64
	Size    uint64
}

// InlineRecord describes one inlined call, possibly spanning several
// disjoint ranges within the enclosing function.
type InlineRecord struct {
	NestLevel    uint32
	CallSiteLine int32
	CallSiteFile *uint32
	OriginID     uint32
	Ranges       []InlineRange
}

// PublicRecord is a non-range-bearing fallback symbol.
type PublicRecord struct {
	Multiple  bool
	Address   uint64
	ParamSize int64
	Name      string
}

// StackWinType mirrors the STACK_INFO_* enumeration used by STACK WIN
// records.
type StackWinType uint8

const (
	StackWinFPO StackWinType = iota
	StackWinTrap
	StackWinTSS
	StackWinStandard
	StackWinFrameData
	StackWinUnknown
)

// StackWinRecord is a Windows-style frame-unwind descriptor.
type StackWinRecord struct {
	Type                 StackWinType
	Address              uint64
	CodeSize             uint64
	PrologSize           uint32
	EpilogSize           uint32
	ParamSize            uint32
	SavedRegSize         uint32
	LocalSize            uint32
	MaxStackSize         uint32
	HasProgramString     bool
	ProgramString        string // set when HasProgramString
	AllocatesBasePointer bool   // set when !HasProgramString
}

// StackCfiInitRecord establishes a CFI address range and its initial rule
// set.
type StackCfiInitRecord struct {
	Address      uint64
	Size         uint64
	InitialRules map[string]string
}

// StackCfiDeltaRecord is a rule-set change applying from Address forward,
// within the range of its enclosing INIT record.
type StackCfiDeltaRecord struct {
	Address uint64
	Rules   map[string]string
}

// ParseModule parses a MODULE record's trailing fields (the leading
// "MODULE " token has already been stripped by the caller).
func ParseModule(rest string) (*ModuleRecord, error) {
	fields := splitFields(rest)
	if len(fields) < 4 {
		return nil, fmt.Errorf("MODULE: want 4 fields, got %d", len(fields))
	}
	return &ModuleRecord{OS: fields[0], Arch: fields[1], ID: fields[2], Name: strings.Join(fields[3:], " ")}, nil
}

// ParseFile parses a FILE record's trailing fields.
func ParseFile(rest string) (*FileRecord, error) {
	prefix, path, ok := splitPrefix(rest, 1)
	if !ok || path == "" {
		return nil, fmt.Errorf("FILE: missing name")
	}
	id, err := parseSignedDecimal(prefix[0])
	if err != nil {
		return nil, fmt.Errorf("FILE: bad id: %w", err)
	}
	if id < 0 {
		return nil, fmt.Errorf("FILE: negative id %d", id)
	}
	return &FileRecord{ID: uint32(id), Path: path}, nil
}

// ParseInlineOrigin parses an INLINE_ORIGIN record's trailing fields,
// detecting the old (with FileID, allowing -1) vs. new (no FileID) variant
// per the "integer token followed by another token" disambiguator.
func ParseInlineOrigin(rest string) (*InlineOriginRecord, error) {
	prefix, afterOrigin, ok := splitPrefix(rest, 1)
	if !ok {
		return nil, fmt.Errorf("INLINE_ORIGIN: missing origin id")
	}
	originID, err := parseSignedDecimal(prefix[0])
	if err != nil || originID < 0 {
		return nil, fmt.Errorf("INLINE_ORIGIN: bad origin id %q", prefix[0])
	}
	if afterOrigin == "" {
		return nil, fmt.Errorf("INLINE_ORIGIN: missing name")
	}

	fields := splitFields(afterOrigin)
	if _, err := parseSignedDecimal(fields[0]); err == nil && len(fields) >= 2 {
		// Old form: next token is an integer file id and more tokens remain.
		fidPrefix, name, ok := splitPrefix(afterOrigin, 1)
		if !ok || name == "" {
			return nil, fmt.Errorf("INLINE_ORIGIN: missing name")
		}
		fid32, err := parseSignedDecimal(fidPrefix[0])
		if err != nil {
			return nil, fmt.Errorf("INLINE_ORIGIN: bad file id: %w", err)
		}
		fid := int32(fid32)
		return &InlineOriginRecord{OriginID: uint32(originID), FileID: &fid, Name: name}, nil
	}
	return &InlineOriginRecord{OriginID: uint32(originID), Name: afterOrigin}, nil
}

// ParseFunc parses a FUNC record's trailing fields.
func ParseFunc(rest string) (*FuncRecord, error) {
	multiple := false
	if strings.HasPrefix(rest, "m ") {
		multiple = true
		rest = rest[2:]
	}
	prefix, name, ok := splitPrefix(rest, 3)
	if !ok || name == "" {
		return nil, fmt.Errorf("FUNC: too few fields or missing name")
	}
	addr, err := parseHex64(prefix[0])
	if err != nil {
		return nil, fmt.Errorf("FUNC: bad address: %w", err)
	}
	size, err := parseHex64(prefix[1])
	if err != nil {
		return nil, fmt.Errorf("FUNC: bad size: %w", err)
	}
	paramSize, err := parseSignedDecimal(prefix[2])
	if err != nil || paramSize < 0 {
		return nil, fmt.Errorf("FUNC: bad param_size %q", prefix[2])
	}
	return &FuncRecord{Multiple: multiple, Address: addr, Size: size, ParamSize: paramSize, Name: name}, nil
}

// ParseLine parses a bare line record (no keyword prefix).
func ParseLine(line string) (*LineRecord, error) {
	fields := splitFields(line)
	if len(fields) != 4 {
		return nil, fmt.Errorf("line record: want 4 fields, got %d", len(fields))
	}
	addr, err := parseHex64(fields[0])
	if err != nil {
		return nil, fmt.Errorf("line record: bad address: %w", err)
	}
	size, err := parseHex64(fields[1])
	if err != nil {
		return nil, fmt.Errorf("line record: bad size: %w", err)
	}
	ln, err := parseNonNegative32(fields[2])
	if err != nil {
		return nil, fmt.Errorf("line record: bad line number: %w", err)
	}
	fileID, err := parseSignedDecimal(fields[3])
	if err != nil || fileID < 0 {
		return nil, fmt.Errorf("line record: bad file id %q", fields[3])
	}
	return &LineRecord{Address: addr, Size: size, Line: ln, FileID: uint32(fileID)}, nil
}

// ParseInline parses an INLINE record's trailing fields, detecting the old
// (3 leading integers) vs. new (4 leading integers) variant by the parity
// of the total token count.
func ParseInline(rest string) (*InlineRecord, error) {
	tokens := splitFields(rest)
	leading := 4
	if len(tokens)%2 != 0 {
		leading = 3
	}
	if len(tokens) < leading+2 {
		return nil, fmt.Errorf("INLINE: missing address ranges")
	}

	nestLevel, err := parseNonNegative32(tokens[0])
	if err != nil {
		return nil, fmt.Errorf("INLINE: bad nest_level: %w", err)
	}
	callSiteLine, err := parseSignedDecimal(tokens[1])
	if err != nil {
		return nil, fmt.Errorf("INLINE: bad call_site_line: %w", err)
	}

	var callSiteFile *uint32
	var originIdx int
	if leading == 4 {
		csf, err := parseSignedDecimal(tokens[2])
		if err != nil || csf < 0 {
			return nil, fmt.Errorf("INLINE: bad call_site_file %q", tokens[2])
		}
		u := uint32(csf)
		callSiteFile = &u
		originIdx = 3
	} else {
		originIdx = 2
	}
	originID, err := parseSignedDecimal(tokens[originIdx])
	if err != nil || originID < 0 {
		return nil, fmt.Errorf("INLINE: bad origin_id %q", tokens[originIdx])
	}

	rangeTokens := tokens[leading:]
	ranges := make([]InlineRange, 0, len(rangeTokens)/2)
	for i := 0; i < len(rangeTokens); i += 2 {
		addr, err := parseHex64(rangeTokens[i])
		if err != nil {
			return nil, fmt.Errorf("INLINE: bad range address: %w", err)
		}
		size, err := parseHex64(rangeTokens[i+1])
		if err != nil {
			return nil, fmt.Errorf("INLINE: bad range size: %w", err)
		}
		ranges = append(ranges, InlineRange{Address: addr, Size: size})
	}

	return &InlineRecord{
		NestLevel:    uint32(nestLevel),
		CallSiteLine: int32(callSiteLine),
		CallSiteFile: callSiteFile,
		OriginID:     uint32(originID),
		Ranges:       ranges,
	}, nil
}

// ParsePublic parses a PUBLIC record's trailing fields.
func ParsePublic(rest string) (*PublicRecord, error) {
	multiple := false
	if strings.HasPrefix(rest, "m ") {
		multiple = true
		rest = rest[2:]
	}
	prefix, name, ok := splitPrefix(rest, 2)
	if !ok || name == "" {
		return nil, fmt.Errorf("PUBLIC: too few fields or missing name")
	}
	addr, err := parseHex64(prefix[0])
	if err != nil {
		return nil, fmt.Errorf("PUBLIC: bad address: %w", err)
	}
	paramSize, err := parseSignedDecimal(prefix[1])
	if err != nil || paramSize < 0 {
		return nil, fmt.Errorf("PUBLIC: bad param_size %q", prefix[1])
	}
	return &PublicRecord{Multiple: multiple, Address: addr, ParamSize: paramSize, Name: name}, nil
}

var stackWinTypes = map[string]StackWinType{
	"0": StackWinFPO,
	"1": StackWinTrap,
	"2": StackWinTSS,
	"3": StackWinStandard,
	"4": StackWinFrameData,
	"f": StackWinUnknown,
	"F": StackWinUnknown,
}

// ParseStackWin parses a "STACK WIN" record's trailing fields (the leading
// "STACK WIN " has already been stripped by the caller).
func ParseStackWin(rest string) (*StackWinRecord, error) {
	prefix, tail, ok := splitPrefix(rest, 10)
	if !ok {
		return nil, fmt.Errorf("STACK WIN: too few fields")
	}
	typ, ok := stackWinTypes[prefix[0]]
	if !ok {
		return nil, fmt.Errorf("STACK WIN: unknown type %q", prefix[0])
	}
	addr, err := parseHex64(prefix[1])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: bad rva: %w", err)
	}
	codeSize, err := parseHex64(prefix[2])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: bad code_size: %w", err)
	}
	u32 := func(s string) (uint32, error) {
		v, err := parseSignedDecimal(s)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad field %q", s)
		}
		return uint32(v), nil
	}
	prolog, err := u32(prefix[3])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: prolog_size: %w", err)
	}
	epilog, err := u32(prefix[4])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: epilog_size: %w", err)
	}
	paramSize, err := u32(prefix[5])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: param_size: %w", err)
	}
	savedReg, err := u32(prefix[6])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: saved_reg_size: %w", err)
	}
	localSize, err := u32(prefix[7])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: local_size: %w", err)
	}
	maxStack, err := u32(prefix[8])
	if err != nil {
		return nil, fmt.Errorf("STACK WIN: max_stack_size: %w", err)
	}
	switch prefix[9] {
	case "0":
		return &StackWinRecord{
			Type: typ, Address: addr, CodeSize: codeSize, PrologSize: prolog, EpilogSize: epilog,
			ParamSize: paramSize, SavedRegSize: savedReg, LocalSize: localSize, MaxStackSize: maxStack,
			HasProgramString: false, AllocatesBasePointer: tail == "1",
		}, nil
	case "1":
		return &StackWinRecord{
			Type: typ, Address: addr, CodeSize: codeSize, PrologSize: prolog, EpilogSize: epilog,
			ParamSize: paramSize, SavedRegSize: savedReg, LocalSize: localSize, MaxStackSize: maxStack,
			HasProgramString: true, ProgramString: tail,
		}, nil
	default:
		return nil, fmt.Errorf("STACK WIN: bad has_program_string %q", prefix[9])
	}
}

// ParseStackCfiInit parses a "STACK CFI INIT" record's trailing fields (the
// leading "STACK CFI INIT " has already been stripped by the caller).
func ParseStackCfiInit(rest string) (*StackCfiInitRecord, error) {
	prefix, rulesBlob, ok := splitPrefix(rest, 2)
	if !ok {
		return nil, fmt.Errorf("STACK CFI INIT: too few fields")
	}
	addr, err := parseHex64(prefix[0])
	if err != nil {
		return nil, fmt.Errorf("STACK CFI INIT: bad address: %w", err)
	}
	size, err := parseHex64(prefix[1])
	if err != nil {
		return nil, fmt.Errorf("STACK CFI INIT: bad size: %w", err)
	}
	rules, err := parseCfiRules(rulesBlob)
	if err != nil {
		return nil, fmt.Errorf("STACK CFI INIT: %w", err)
	}
	if _, ok := rules[".cfa"]; !ok {
		return nil, fmt.Errorf("STACK CFI INIT: missing required .cfa rule")
	}
	return &StackCfiInitRecord{Address: addr, Size: size, InitialRules: rules}, nil
}

// ParseStackCfiDelta parses a "STACK CFI" delta record's trailing fields
// (the leading "STACK CFI " has already been stripped by the caller).
func ParseStackCfiDelta(rest string) (*StackCfiDeltaRecord, error) {
	prefix, rulesBlob, ok := splitPrefix(rest, 1)
	if !ok {
		return nil, fmt.Errorf("STACK CFI: too few fields")
	}
	addr, err := parseHex64(prefix[0])
	if err != nil {
		return nil, fmt.Errorf("STACK CFI: bad address: %w", err)
	}
	rules, err := parseCfiRules(rulesBlob)
	if err != nil {
		return nil, fmt.Errorf("STACK CFI: %w", err)
	}
	return &StackCfiDeltaRecord{Address: addr, Rules: rules}, nil
}

// parseCfiRules splits a "NAME: EXPR NAME: EXPR ..." blob into a rule map.
// NAME tokens are identified as tokens ending in ':'; everything up to the
// next NAME token (or end of blob) is that rule's expression.
func parseCfiRules(blob string) (map[string]string, error) {
	tokens := splitFields(blob)
	rules := make(map[string]string)
	var name string
	var exprTokens []string
	flush := func() error {
		if name == "" {
			return nil
		}
		if len(exprTokens) == 0 {
			return fmt.Errorf("rule %q has no expression", name)
		}
		rules[name] = strings.Join(exprTokens, " ")
		return nil
	}
	for _, tok := range tokens {
		if strings.HasSuffix(tok, ":") && len(tok) > 1 {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSuffix(tok, ":")
			exprTokens = nil
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("rule expression %q with no preceding name", tok)
		}
		exprTokens = append(exprTokens, tok)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules found")
	}
	return rules, nil
}
