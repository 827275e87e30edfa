package cfi

import (
	"testing"

	"github.com/Mu-L/breakpad/postfix"
)

type fakeMemory map[uint64]uint64

func (m fakeMemory) ReadWord(addr uint64) (uint64, bool) {
	v, ok := m[addr]
	return v, ok
}

func TestFindCallerRegsComputesCfaFirst(t *testing.T) {
	mem := fakeMemory{0x1000: 0x2000} // the return address lives at the CFA
	rules := RuleSet{
		".cfa": "$esp 4 +",
		".ra":  ".cfa ^",
		"ebx":  "$ebx",
	}
	callee := RegisterMap{"esp": 0xffc, "ebx": 7}

	out, ok := FindCallerRegs(rules, callee, mem, postfix.Width32)
	if !ok {
		t.Fatalf("want ok")
	}
	if out[".cfa"] != 0x1000 {
		t.Fatalf("got .cfa=0x%x, want 0x1000", out[".cfa"])
	}
	if out[".ra"] != 0x2000 {
		t.Fatalf("got .ra=0x%x, want 0x2000", out[".ra"])
	}
	if out["ebx"] != 7 {
		t.Fatalf("got ebx=%d, want 7", out["ebx"])
	}
}

func TestFindCallerRegsMissingCfaFails(t *testing.T) {
	rules := RuleSet{".ra": "$esp"}
	_, ok := FindCallerRegs(rules, RegisterMap{"esp": 4}, fakeMemory{}, postfix.Width32)
	if ok {
		t.Fatalf("want failure: no .cfa rule")
	}
}

func TestFindCallerRegsFailedRuleDiscardsWholeResult(t *testing.T) {
	rules := RuleSet{
		".cfa": "$esp 4 +",
		"ebx":  "$doesnotexist",
	}
	_, ok := FindCallerRegs(rules, RegisterMap{"esp": 4}, fakeMemory{}, postfix.Width32)
	if ok {
		t.Fatalf("want failure: undefined register in one rule discards the whole result")
	}
}

// TestFindCallerRegsCfiFrameExample reproduces a STACK CFI frame whose
// merged rule set saves four non-volatile registers and recovers the
// return address through the CFA, matching a frame commonly seen at
// 0x3d40-0x3df0 in a real Breakpad symbol file.
func TestFindCallerRegsCfiFrameExample(t *testing.T) {
	mem := fakeMemory{
		0x10008: 0x98ecadc3,
		0x1000c: 0x878f7524,
		0x10010: 0x6312f9a5,
		0x10014: 0x10038,
		0x10018: 0xf6438648,
	}
	rules := RuleSet{
		".cfa": "$esp 4 +",
		".ra":  ".cfa 4 - ^",
		"$ebp": "$ebp",
		"$ebx": ".cfa 20 - ^",
		"$esi": ".cfa 16 - ^",
		"$edi": ".cfa 12 - ^",
	}
	callee := RegisterMap{
		"esp": 0x10018,
		"ebp": 0x10038,
		"ebx": 0x98ecadc3,
		"esi": 0x878f7524,
		"edi": 0x6312f9a5,
	}

	out, ok := FindCallerRegs(rules, callee, mem, postfix.Width32)
	if !ok {
		t.Fatalf("want ok")
	}
	want := RegisterMap{
		".cfa": 0x1001c,
		".ra":  0xf6438648,
		"$ebp": 0x10038,
		"$ebx": 0x98ecadc3,
		"$esi": 0x878f7524,
		"$edi": 0x6312f9a5,
	}
	for k, v := range want {
		if out[k] != v {
			t.Fatalf("out[%q] = 0x%x, want 0x%x", k, out[k], v)
		}
	}
}
