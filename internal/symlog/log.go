// Package symlog provides functionality similar to the standard log package
// with some extensions:
//   - verbosity levels
//   - global verbosity setting shared by all resolver packages
//   - a short in-memory replay of recent warnings/errors for diagnostics
package symlog

import (
	"bytes"
	"flag"
	"fmt"
	golog "log"
	"sync"
)

var flagV = flag.Int("symlog.v", 0, "resolver log verbosity")

// Logf logs msg at verbosity level v. Messages above the configured
// verbosity are not printed.
func Logf(v int, msg string, args ...interface{}) {
	if v <= *flagV {
		golog.Printf(msg, args...)
	}
}

// SetVerbosity overrides the resolver log verbosity programmatically, for
// front ends (like cobra-based CLIs) that parse their own flags instead of
// the standard library's flag.Parse.
func SetVerbosity(v int) { *flagV = v }

// Infof logs an informational message at verbosity 1.
func Infof(msg string, args ...interface{}) { Logf(1, msg, args...) }

// Warnf logs a warning at verbosity 0 (always printed) and records it in
// the recent-warnings replay.
func Warnf(msg string, args ...interface{}) {
	line := "WARNING: " + fmt.Sprintf(msg, args...)
	Logf(0, "%s", line)
	recent.record(line)
}

// Errorf logs an error at verbosity 0 (always printed) and records it in
// the recent-warnings replay.
func Errorf(msg string, args ...interface{}) {
	line := "ERROR: " + fmt.Sprintf(msg, args...)
	Logf(0, "%s", line)
	recent.record(line)
}

// recentRing replays the last few Warnf/Errorf lines: just enough context
// for a CLI to explain why a module load was reported corrupt, without
// carrying the general-purpose, byte-budgeted multi-package cache this was
// first modeled on.
type recentRing struct {
	mu      sync.Mutex
	lines   []string
	next    int
	count   int
	enabled bool
}

var recent recentRing

// EnableRecentLog starts recording the last n Warnf/Errorf lines. Call once,
// before any logging happens.
func EnableRecentLog(n int) {
	recent.mu.Lock()
	defer recent.mu.Unlock()
	if recent.enabled {
		panic("symlog: recent log already enabled")
	}
	if n < 1 {
		panic("symlog: invalid recent log size")
	}
	recent.lines = make([]string, n)
	recent.enabled = true
}

func (r *recentRing) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// RecentLog returns the recorded lines, oldest first, one per line.
func RecentLog() string {
	recent.mu.Lock()
	defer recent.mu.Unlock()
	if recent.count == 0 {
		return ""
	}
	buf := new(bytes.Buffer)
	start := (recent.next - recent.count + len(recent.lines)) % len(recent.lines)
	for i := 0; i < recent.count; i++ {
		buf.WriteString(recent.lines[(start+i)%len(recent.lines)])
		buf.WriteByte('\n')
	}
	return buf.String()
}
