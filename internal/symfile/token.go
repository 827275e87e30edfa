// Package symfile implements the tokenizer and record grammar for the
// Breakpad line-oriented symbol file format.
package symfile

import "strings"

// splitFields splits line on runs of space characters, discarding empty
// fields produced by repeated spaces. Unlike strings.Fields it treats only
// the ASCII space as a separator: tabs are not expected in symbol files and
// are left embedded in whatever field they fall inside.
func splitFields(line string) []string {
	var fields []string
	start := -1
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}

// splitPrefix splits off the first n whitespace-delimited fields of line and
// returns them along with the untouched remainder, trimmed of surrounding
// spaces. ok is false if line has fewer than n fields.
func splitPrefix(line string, n int) (prefix []string, rest string, ok bool) {
	pos := 0
	for i := 0; i < n; i++ {
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}
		if pos >= len(line) {
			return nil, "", false
		}
		start := pos
		for pos < len(line) && line[pos] != ' ' {
			pos++
		}
		prefix = append(prefix, line[start:pos])
	}
	rest = strings.Trim(line[pos:], " ")
	return prefix, rest, true
}
