package module

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/Mu-L/breakpad/internal/intern"
	"github.com/Mu-L/breakpad/internal/symfile"
)

// Module is one loaded code image's symbol data: an indexed, immutable
// in-memory representation of a Breakpad symbol file, built once by
// Builder.Build and thereafter only read.
type Module struct {
	OS, Arch, ID, Name string

	files   map[FileID]string
	origins map[OriginID]InlineOrigin

	functions []*functionEntry // sorted by Address, non-overlapping
	publics   []Public         // sorted by Address

	winUnwind []WindowsFrameInfo // sorted by Address
	cfiInits  []*cfiInit         // sorted by Address

	corrupt     bool
	diagnostics *multierror.Error
}

// IsCorrupt reports whether any record in the source file was rejected
// during the build. A corrupt module still serves every record that did
// parse and validate successfully.
func (m *Module) IsCorrupt() bool { return m.corrupt }

// Diagnostics returns the aggregated parse-time complaints that led to
// IsCorrupt() returning true, or nil if the module is not corrupt.
func (m *Module) Diagnostics() error {
	if m.diagnostics == nil {
		return nil
	}
	return m.diagnostics
}

// Builder assembles a Module from a stream of symfile records in a single
// forward pass, tracking the "current function" and "current CFI init"
// parser state that unprefixed LINE/INLINE records and STACK CFI deltas
// attach to.
type Builder struct {
	mod      *Module
	interner *intern.Interner

	currentFunc    *functionEntry
	currentCfiInit *cfiInit
}

// NewBuilder returns a Builder for a fresh, empty Module.
func NewBuilder() *Builder {
	return &Builder{
		mod: &Module{
			files:   make(map[FileID]string),
			origins: make(map[OriginID]InlineOrigin),
		},
		interner: &intern.Interner{},
	}
}

// Build consumes every record from r and returns the resulting Module. The
// returned error is non-nil only for an I/O failure reading r; parse and
// structural failures are soft errors recorded on the Module itself
// (IsCorrupt, Diagnostics) and never fail the build.
func (b *Builder) Build(r io.Reader) (*Module, error) {
	p := symfile.NewParser(r)
	for {
		lineNo, rec, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var ioErr *symfile.IOError
			if errors.As(err, &ioErr) {
				return nil, ioErr.Err
			}
			b.fail(lineNo, err)
			continue
		}
		b.apply(rec)
	}
	b.freeze()
	return b.mod, nil
}

func (b *Builder) fail(lineNo int, err error) {
	b.mod.corrupt = true
	b.mod.diagnostics = multierror.Append(b.mod.diagnostics, fmt.Errorf("line %d: %w", lineNo, err))
}

func (b *Builder) apply(rec any) {
	switch r := rec.(type) {
	case *symfile.ModuleRecord:
		b.currentFunc = nil
		b.mod.OS, b.mod.Arch, b.mod.ID, b.mod.Name = r.OS, r.Arch, r.ID, r.Name
	case *symfile.FileRecord:
		b.currentFunc = nil
		b.mod.files[r.ID] = b.interner.Do(r.Path)
	case *symfile.InlineOriginRecord:
		b.currentFunc = nil
		b.applyInlineOrigin(r)
	case *symfile.FuncRecord:
		b.applyFunc(r)
	case *symfile.LineRecord:
		b.applyLine(r)
	case *symfile.InlineRecord:
		b.applyInline(r)
	case *symfile.PublicRecord:
		b.currentFunc = nil
		b.mod.publics = append(b.mod.publics, Public{
			Name:      b.interner.Do(r.Name),
			Address:   r.Address,
			ParamSize: r.ParamSize,
			Multiple:  r.Multiple,
		})
	case *symfile.StackWinRecord:
		b.currentFunc = nil
		b.mod.winUnwind = append(b.mod.winUnwind, WindowsFrameInfo{
			Type: r.Type, Address: r.Address, Size: r.CodeSize,
			PrologSize: r.PrologSize, EpilogSize: r.EpilogSize, ParamSize: r.ParamSize,
			SavedRegSize: r.SavedRegSize, LocalSize: r.LocalSize, MaxStackSize: r.MaxStackSize,
			HasProgramString: r.HasProgramString, ProgramString: r.ProgramString,
			AllocatesBasePointer: r.AllocatesBasePointer,
		})
	case *symfile.StackCfiInitRecord:
		b.currentFunc = nil
		init := &cfiInit{address: r.Address, size: r.Size, initialRules: r.InitialRules}
		b.mod.cfiInits = append(b.mod.cfiInits, init)
		b.currentCfiInit = init
	case *symfile.StackCfiDeltaRecord:
		b.currentFunc = nil
		b.applyCfiDelta(r)
	}
}

func (b *Builder) applyInlineOrigin(r *symfile.InlineOriginRecord) {
	origin := InlineOrigin{Name: b.interner.Do(r.Name)}
	if r.FileID != nil && *r.FileID != -1 {
		if *r.FileID < 0 {
			b.mod.corrupt = true
			b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
				fmt.Errorf("INLINE_ORIGIN %d: invalid file id %d", r.OriginID, *r.FileID))
		} else {
			fid := FileID(*r.FileID)
			origin.FileID = &fid
		}
	}
	b.mod.origins[r.OriginID] = origin
}

func (b *Builder) applyFunc(r *symfile.FuncRecord) {
	fe := &functionEntry{Function: Function{
		Name:      b.interner.Do(r.Name),
		Address:   r.Address,
		Size:      r.Size,
		ParamSize: r.ParamSize,
		Multiple:  r.Multiple,
	}}
	if !b.insertFunction(fe) {
		b.mod.corrupt = true
		b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
			fmt.Errorf("FUNC at 0x%x: duplicate or overlapping address, dropped", r.Address))
		b.currentFunc = nil
		return
	}
	b.currentFunc = fe
}

// insertFunction inserts fe into mod.functions keeping it sorted by
// Address, rejecting an exact-address duplicate or an overlap with its
// sorted neighbors. Returns false if fe was rejected.
func (b *Builder) insertFunction(fe *functionEntry) bool {
	fns := b.mod.functions
	i := sort.Search(len(fns), func(i int) bool { return fns[i].Address >= fe.Address })
	if i < len(fns) && fns[i].Address == fe.Address {
		return false
	}
	if i > 0 {
		prev := fns[i-1]
		if prev.Size > 0 && prev.Address+prev.Size > fe.Address {
			return false
		}
	}
	if i < len(fns) {
		next := fns[i]
		if fe.Size > 0 && fe.Address+fe.Size > next.Address {
			return false
		}
	}
	fns = append(fns, nil)
	copy(fns[i+1:], fns[i:])
	fns[i] = fe
	b.mod.functions = fns
	return true
}

func (b *Builder) applyLine(r *symfile.LineRecord) {
	if b.currentFunc == nil {
		b.mod.corrupt = true
		b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
			fmt.Errorf("line record at 0x%x: no enclosing FUNC, dropped", r.Address))
		return
	}
	b.currentFunc.lines = append(b.currentFunc.lines, LineEntry{
		Address: r.Address, Size: r.Size, File: r.FileID, Line: r.Line,
	})
}

func (b *Builder) applyInline(r *symfile.InlineRecord) {
	if b.currentFunc == nil {
		b.mod.corrupt = true
		b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
			fmt.Errorf("INLINE at nest %d: no enclosing FUNC, dropped", r.NestLevel))
		return
	}
	ranges := make([]InlineRange, len(r.Ranges))
	for i, rr := range r.Ranges {
		ranges[i] = InlineRange{Address: rr.Address, Size: rr.Size}
	}
	b.currentFunc.inlines = append(b.currentFunc.inlines, &Inline{
		NestLevel:    r.NestLevel,
		CallSiteLine: r.CallSiteLine,
		CallSiteFile: r.CallSiteFile,
		OriginID:     r.OriginID,
		Ranges:       ranges,
	})
}

func (b *Builder) applyCfiDelta(r *symfile.StackCfiDeltaRecord) {
	if b.currentCfiInit == nil {
		b.mod.corrupt = true
		b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
			fmt.Errorf("STACK CFI delta at 0x%x: no enclosing INIT, dropped", r.Address))
		return
	}
	init := b.currentCfiInit
	if r.Address < init.address || r.Address >= init.address+init.size {
		b.mod.corrupt = true
		b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
			fmt.Errorf("STACK CFI delta at 0x%x: outside INIT range [0x%x,0x%x), dropped",
				r.Address, init.address, init.address+init.size))
		return
	}
	init.deltas = append(init.deltas, cfiDelta{address: r.Address, rules: r.Rules})
}

// freeze validates dangling references, drops the records that fail, and
// sorts every table that the query engine expects to binary-search.
func (b *Builder) freeze() {
	for _, fe := range b.mod.functions {
		fe.lines = b.freezeLines(fe)
		fe.inlines = b.freezeInlines(fe)
	}
	sort.SliceStable(b.mod.publics, func(i, j int) bool {
		return b.mod.publics[i].Address < b.mod.publics[j].Address
	})
	sort.SliceStable(b.mod.winUnwind, func(i, j int) bool {
		return b.mod.winUnwind[i].Address < b.mod.winUnwind[j].Address
	})
	sort.SliceStable(b.mod.cfiInits, func(i, j int) bool {
		return b.mod.cfiInits[i].address < b.mod.cfiInits[j].address
	})
	for _, init := range b.mod.cfiInits {
		sort.SliceStable(init.deltas, func(i, j int) bool { return init.deltas[i].address < init.deltas[j].address })
	}
}

func (b *Builder) freezeLines(fe *functionEntry) []LineEntry {
	valid := make([]LineEntry, 0, len(fe.lines))
	for _, l := range fe.lines {
		if _, ok := b.mod.files[l.File]; !ok {
			b.mod.corrupt = true
			b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
				fmt.Errorf("line at 0x%x in %s: dangling file id %d, dropped", l.Address, fe.Name, l.File))
			continue
		}
		if l.Address < fe.Address || (fe.Size > 0 && l.Address+l.Size > fe.Address+fe.Size) {
			b.mod.corrupt = true
			b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
				fmt.Errorf("line at 0x%x in %s: outside enclosing function range, dropped", l.Address, fe.Name))
			continue
		}
		valid = append(valid, l)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Address < valid[j].Address })
	out := valid[:0:0]
	var lastEnd uint64
	haveLast := false
	for _, l := range valid {
		if haveLast && l.Address < lastEnd {
			b.mod.corrupt = true
			b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
				fmt.Errorf("line at 0x%x in %s: overlaps preceding line, dropped", l.Address, fe.Name))
			continue
		}
		out = append(out, l)
		lastEnd = l.Address + l.Size
		haveLast = true
	}
	return out
}

func (b *Builder) freezeInlines(fe *functionEntry) []*Inline {
	valid := make([]*Inline, 0, len(fe.inlines))
	for _, inl := range fe.inlines {
		if _, ok := b.mod.origins[inl.OriginID]; !ok {
			b.mod.corrupt = true
			b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
				fmt.Errorf("inline in %s: dangling origin id %d, dropped", fe.Name, inl.OriginID))
			continue
		}
		if inl.CallSiteFile != nil {
			if _, ok := b.mod.files[*inl.CallSiteFile]; !ok {
				b.mod.corrupt = true
				b.mod.diagnostics = multierror.Append(b.mod.diagnostics,
					fmt.Errorf("inline in %s: dangling call-site file id %d, dropped", fe.Name, *inl.CallSiteFile))
				continue
			}
		}
		valid = append(valid, inl)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].NestLevel < valid[j].NestLevel })
	return valid
}
