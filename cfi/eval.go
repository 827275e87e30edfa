// Package cfi evaluates a merged DWARF-style Call Frame Information rule
// set against a callee register snapshot to recover the caller's frame.
package cfi

import (
	"fmt"

	"github.com/Mu-L/breakpad/postfix"
)

// RegisterMap and Memory are re-exported so callers need not import
// postfix directly just to drive this package.
type RegisterMap = postfix.RegisterMap
type Memory = postfix.Memory

// RuleSet is the merged CFI rule set produced by module.Module's CFI
// lookup: a map from rule name (".cfa", ".ra", or a register name) to its
// postfix expression.
type RuleSet map[string]string

// FindCallerRegs evaluates every rule in rules against callee and mem,
// computing .cfa first since every other rule may reference it. On any
// rule's failure the whole evaluation fails and no partial map is
// returned. The result always contains ".cfa" and ".ra" when rules does.
// Unlike callee, which is keyed without the leading "$", the result is keyed
// by each rule's name exactly as written in rules (e.g. "$ebx", ".ra").
func FindCallerRegs(rules RuleSet, callee RegisterMap, mem Memory, width postfix.Width) (RegisterMap, bool) {
	cfaExpr, ok := rules[".cfa"]
	if !ok {
		return nil, false
	}

	cfa, err := evalOne(cfaExpr, callee, nil, mem, width)
	if err != nil {
		return nil, false
	}

	out := make(RegisterMap, len(rules))
	out[".cfa"] = cfa
	ctx := postfix.Context{"cfa": cfa}

	for name, expr := range rules {
		if name == ".cfa" {
			continue
		}
		v, err := evalOne(expr, callee, ctx, mem, width)
		if err != nil {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}

func evalOne(expr string, callee RegisterMap, ctx postfix.Context, mem Memory, width postfix.Width) (uint64, error) {
	calleeCopy := make(postfix.RegisterMap, len(callee))
	for k, v := range callee {
		calleeCopy[k] = v
	}
	if ctx == nil {
		ctx = postfix.Context{}
	}
	m := postfix.NewMachine(width, calleeCopy, ctx, mem, false)
	result, err := m.Run(expr)
	if err != nil {
		return 0, err
	}
	v, ok := result[""]
	if !ok {
		return 0, fmt.Errorf("cfi: expression produced no value")
	}
	return v, nil
}
