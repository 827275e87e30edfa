// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package intern deduplicates repeated string contents produced while
// parsing a symbol file: the same source path and function name recur
// across thousands of line and inline records.
package intern

import (
	"strings"
	"sync"
)

// Interner interns/deduplicates strings. Do semantically returns the same
// string, but physically it will point to an existing string with the same
// contents (if one was passed to Do before). Interned strings are also
// "cloned", so a large backing buffer passed in won't be kept alive by it.
//
// The zero value is ready to use. Not safe to copy after first use.
type Interner struct {
	m sync.Map
}

// Do returns the interned copy of s.
func (in *Interner) Do(s string) string {
	if interned, ok := in.m.Load(s); ok {
		return interned.(string)
	}
	s = strings.Clone(s)
	actual, _ := in.m.LoadOrStore(s, s)
	return actual.(string)
}
