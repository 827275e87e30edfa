package symfile

import (
	"io"
	"strings"
	"testing"
)

func TestParserSkipsUnknownAndBlankLines(t *testing.T) {
	input := "MODULE Linux x86_64 ABCD fn\n\nFUTURE_RECORD foo bar\nFILE 0 a.c\n"
	p := NewParser(strings.NewReader(input))

	_, rec, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(*ModuleRecord); !ok {
		t.Fatalf("got %T, want *ModuleRecord", rec)
	}

	_, rec, err = p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(*FileRecord); !ok {
		t.Fatalf("got %T, want *FileRecord (blank and unknown lines should be skipped)", rec)
	}

	if _, _, err := p.Next(); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestParserReportsLineNumberOnMalformedRecord(t *testing.T) {
	input := "MODULE Linux x86_64 ABCD fn\nFILE -2 a.c\n"
	p := NewParser(strings.NewReader(input))

	if _, _, err := p.Next(); err != nil {
		t.Fatalf("unexpected error on MODULE: %v", err)
	}
	lineNo, _, err := p.Next()
	if err == nil {
		t.Fatalf("want error for negative FILE id")
	}
	if lineNo != 2 {
		t.Fatalf("got line %d, want 2", lineNo)
	}
}

func TestParserClassifiesStackSubkinds(t *testing.T) {
	input := "STACK WIN 4 1000 20 4 4 8 10 18 20 0 1\nSTACK CFI INIT 1000 20 .cfa: $esp 4 +\nSTACK CFI 1010 .cfa: $esp 8 +\n"
	p := NewParser(strings.NewReader(input))

	_, rec, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(*StackWinRecord); !ok {
		t.Fatalf("got %T, want *StackWinRecord", rec)
	}

	_, rec, err = p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(*StackCfiInitRecord); !ok {
		t.Fatalf("got %T, want *StackCfiInitRecord", rec)
	}

	_, rec, err = p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(*StackCfiDeltaRecord); !ok {
		t.Fatalf("got %T, want *StackCfiDeltaRecord", rec)
	}
}

func TestParserClassifiesBareLineRecord(t *testing.T) {
	input := "1000 10 42 0\n"
	p := NewParser(strings.NewReader(input))

	_, rec, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lr, ok := rec.(*LineRecord)
	if !ok {
		t.Fatalf("got %T, want *LineRecord", rec)
	}
	if lr.Address != 0x1000 || lr.Line != 42 {
		t.Fatalf("got %+v", lr)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestParserWrapsReadFailureAsIOError(t *testing.T) {
	p := NewParser(errReader{})
	_, _, err := p.Next()
	var ioErr *IOError
	if err == nil {
		t.Fatalf("want error")
	}
	if e, ok := err.(*IOError); !ok {
		t.Fatalf("got %T, want *IOError", err)
	} else {
		ioErr = e
	}
	if ioErr.Unwrap() != io.ErrUnexpectedEOF {
		t.Fatalf("got %v, want io.ErrUnexpectedEOF", ioErr.Unwrap())
	}
}
