// Package postfix implements the Windows-style postfix expression stack
// machine used both to interpret STACK WIN program strings and, as the
// cfi package's evaluation core, DWARF CFI rule expressions.
package postfix

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterMap is a named set of register values, keyed without the leading
// "$" (e.g. "eip", "esp", "r12").
type RegisterMap map[string]uint64

// Context supplies pseudo-register values, keyed without the leading "."
// (e.g. "cbParams", "cbSavedRegs").
type Context map[string]uint64

// Memory reads a machine word at addr. Implementations report a failed or
// out-of-range read by returning ok=false.
type Memory interface {
	ReadWord(addr uint64) (value uint64, ok bool)
}

// Width selects the machine's integer width, which governs the mask
// applied after every arithmetic and dereference operation.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) mask(v uint64) uint64 {
	if w == Width32 {
		return v & 0xffffffff
	}
	return v
}

// Machine is one evaluation of a postfix expression. A Machine is used
// once: construct it, call Run, discard it.
type Machine struct {
	width    Width
	callee   RegisterMap
	ctx      Context
	mem      Memory
	stack    []uint64
	names    []string // parallel to stack: the name that pushed this value, "" if a literal/computed value
	assigns  bool
	out      RegisterMap
}

// NewMachine builds a Machine over the given callee registers, pseudo-
// register context, and memory reader. assigns enables the `=` token;
// the CFI evaluator runs with assigns=false, since CFI rules have no
// assignment syntax and their result is the single value left on the
// stack.
func NewMachine(width Width, callee RegisterMap, ctx Context, mem Memory, assigns bool) *Machine {
	return &Machine{
		width:   width,
		callee:  callee,
		ctx:     ctx,
		mem:     mem,
		assigns: assigns,
		out:     make(RegisterMap),
	}
}

// Run evaluates program left to right. In assignment mode it returns the
// accumulated output register map; otherwise it returns a map containing
// only the single value left on the stack, under the key "".
func (m *Machine) Run(program string) (RegisterMap, error) {
	for _, tok := range strings.Fields(program) {
		if err := m.step(tok); err != nil {
			return nil, fmt.Errorf("postfix: %q: %w", tok, err)
		}
	}
	if !m.assigns {
		v, err := m.pop()
		if err != nil {
			return nil, fmt.Errorf("postfix: expression left no result: %w", err)
		}
		return RegisterMap{"": v}, nil
	}
	if len(m.stack) != 0 {
		return nil, fmt.Errorf("postfix: %d values left on stack after program", len(m.stack))
	}
	return m.out, nil
}

func (m *Machine) step(tok string) error {
	switch {
	case tok == "+", tok == "-", tok == "*", tok == "/", tok == "%":
		return m.binop(tok)
	case tok == "^":
		return m.deref()
	case tok == "@":
		return nil // alignment no-op
	case tok == "=":
		return m.assign()
	case strings.HasPrefix(tok, "$"):
		name := tok[1:]
		v, ok := m.callee[name]
		if !ok {
			v, ok = m.out[name]
		}
		if !ok {
			return fmt.Errorf("undefined register %q", tok)
		}
		m.push(v, tok)
		return nil
	case strings.HasPrefix(tok, "."):
		name := tok[1:]
		v, ok := m.ctx[name]
		if !ok {
			v, ok = m.out[name]
		}
		if !ok {
			return fmt.Errorf("undefined pseudo-register %q", tok)
		}
		m.push(v, tok)
		return nil
	default:
		v, err := parseLiteral(tok)
		if err != nil {
			return fmt.Errorf("not a literal, register, or operator: %w", err)
		}
		m.push(v, "")
		return nil
	}
}

func parseLiteral(tok string) (uint64, error) {
	if s, ok := stripHexPrefix(tok); ok {
		return strconv.ParseUint(s, 16, 64)
	}
	return strconv.ParseUint(tok, 10, 64)
}

func stripHexPrefix(tok string) (string, bool) {
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		return tok[2:], true
	}
	return "", false
}

func (m *Machine) push(v uint64, name string) {
	m.stack = append(m.stack, v)
	m.names = append(m.names, name)
}

func (m *Machine) pop() (uint64, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.names = m.names[:len(m.names)-1]
	return v, nil
}

func (m *Machine) popNamed() (uint64, string, error) {
	if len(m.stack) == 0 {
		return 0, "", fmt.Errorf("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	name := m.names[len(m.names)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.names = m.names[:len(m.names)-1]
	return v, name, nil
}

func (m *Machine) binop(op string) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	var r uint64
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		r = a / b
	case "%":
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		r = a % b
	}
	m.push(m.width.mask(r), "")
	return nil
}

func (m *Machine) deref() error {
	addr, err := m.pop()
	if err != nil {
		return err
	}
	v, ok := m.mem.ReadWord(addr)
	if !ok {
		return fmt.Errorf("memory read at 0x%x failed", addr)
	}
	m.push(m.width.mask(v), "")
	return nil
}

// assign pops the value, then the lvalue. The lvalue must be the name that
// pushed the value directly beneath it on the stack: a bare `$reg` or
// `.var` token, not a computed expression. The input register and
// pseudo-register maps are left untouched. A later reference to a name that
// is absent from the input maps reads the assigned value from the output map
// (see step); a name present in the input maps keeps reading the callee's
// original value, so assignment never changes the meaning of $reg tokens.
func (m *Machine) assign() error {
	if !m.assigns {
		return fmt.Errorf("assignment not permitted in this evaluation mode")
	}
	val, err := m.pop()
	if err != nil {
		return err
	}
	_, name, err := m.popNamed()
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("assignment target is not an assignable name")
	}
	m.out[name[1:]] = val
	return nil
}
