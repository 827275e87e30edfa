package symfile

import "testing"

func TestParseFile(t *testing.T) {
	cases := []struct {
		name    string
		rest    string
		wantErr bool
	}{
		{"ok", "0 file name", false},
		{"negative id", "-2 file name", true},
		{"empty name", "1 ", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, err := ParseFile(c.rest)
			if c.wantErr {
				if err == nil {
					t.Fatalf("ParseFile(%q): want error, got %+v", c.rest, rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFile(%q): unexpected error: %v", c.rest, err)
			}
		})
	}
}

func TestParseInlineOrigin(t *testing.T) {
	rec, err := ParseInlineOrigin("0 -1 fn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.FileID == nil || *rec.FileID != -1 {
		t.Fatalf("got FileID %v, want -1", rec.FileID)
	}
	if rec.Name != "fn" {
		t.Fatalf("got name %q, want fn", rec.Name)
	}

	rec2, err := ParseInlineOrigin("1 some function name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec2.FileID != nil {
		t.Fatalf("got FileID %v, want nil (new format)", rec2.FileID)
	}
	if rec2.Name != "some function name" {
		t.Fatalf("got name %q", rec2.Name)
	}
}

func TestParseInline(t *testing.T) {
	cases := []struct {
		name    string
		rest    string
		wantErr bool
		leading int // expected disambiguation: 3 (old) or 4 (new)
	}{
		{"old form", "0 1 2 3 4", false, 3},
		{"new form two ranges", "0 1 2 3 a b 1a 1b", false, 4},
		{"negative nest level", "-1 1 2 3 4", true, 0},
		{"missing ranges short", "0 1 -2", true, 0},
		{"missing ranges", "0 1 -2 3", true, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, err := ParseInline(c.rest)
			if c.wantErr {
				if err == nil {
					t.Fatalf("ParseInline(%q): want error, got %+v", c.rest, rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInline(%q): unexpected error: %v", c.rest, err)
			}
			if len(rec.Ranges) == 0 {
				t.Fatalf("ParseInline(%q): no ranges parsed", c.rest)
			}
			if got := rec.CallSiteFile != nil; got != (c.leading == 4) {
				t.Fatalf("ParseInline(%q): call_site_file present = %v, want leading %d", c.rest, got, c.leading)
			}
		})
	}
}

func TestParseFunc(t *testing.T) {
	cases := []struct {
		name    string
		rest    string
		wantErr bool
	}{
		{"ok", "1000 20 8 fn", false},
		{"multiple flag", "m 1000 20 8 fn", false},
		{"negative param size", "1 2 -5 fn", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, err := ParseFunc(c.rest)
			if c.wantErr {
				if err == nil {
					t.Fatalf("ParseFunc(%q): want error, got %+v", c.rest, rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFunc(%q): unexpected error: %v", c.rest, err)
			}
		})
	}
}

func TestParsePublic(t *testing.T) {
	if _, err := ParsePublic("x 1 5 n"); err == nil {
		t.Fatalf("ParsePublic: want error for invalid hex address")
	}
	rec, err := ParsePublic("m 1000 8 name here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Multiple || rec.Name != "name here" {
		t.Fatalf("got %+v", rec)
	}
}

func TestParseStackWin(t *testing.T) {
	rec, err := ParseStackWin("4 1000 20 4 4 8 10 18 20 0 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Type != StackWinFrameData || rec.HasProgramString || !rec.AllocatesBasePointer {
		t.Fatalf("got %+v", rec)
	}

	rec2, err := ParseStackWin("4 1000 20 4 4 8 10 18 20 1 $T0 $ebp = $eip $T0 4 + ^ =")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec2.HasProgramString || rec2.ProgramString == "" {
		t.Fatalf("got %+v", rec2)
	}
}

func TestParseStackCfi(t *testing.T) {
	init, err := ParseStackCfiInit("1000 20 .cfa: $esp 4 + .ra: .cfa 4 - ^")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if init.InitialRules[".cfa"] != "$esp 4 +" {
		t.Fatalf("got .cfa rule %q", init.InitialRules[".cfa"])
	}

	if _, err := ParseStackCfiInit("1000 20 .ra: $esp"); err == nil {
		t.Fatalf("want error for missing .cfa rule")
	}

	delta, err := ParseStackCfiDelta("1010 .cfa: $esp 8 +")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta.Address != 0x1010 {
		t.Fatalf("got address 0x%x", delta.Address)
	}
}
