// Package logger is the central log for the emulator. Entries are tagged
// with the component that made them; a repeated entry is folded into the
// previous one with a repeat count. Entries below the current verbosity level
// are dropped before they are formatted.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level is a verbosity threshold.
type Level int

const (
	Quiet Level = iota
	Info
	Verbose
	Trace
)

func (l Level) String() string {
	switch l {
	case Quiet:
		return "quiet"
	case Info:
		return "info"
	case Verbose:
		return "verbose"
	case Trace:
		return "trace"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Entry is a single line in the log.
type Entry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	repeated  int
}

func (e *Entry) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%s: %s", e.Tag, e.Detail))
	if e.repeated > 0 {
		s.WriteString(fmt.Sprintf(" (repeat x%d)", e.repeated+1))
	}
	s.WriteString("\n")
	return s.String()
}

type logger struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry
	level      Level
	echo       io.Writer
}

// maximum number of entries in the central logger.
const maxCentral = 256

var central = &logger{maxEntries: maxCentral, level: Info}

func (l *logger) log(tag, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	var e *Entry
	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		e = &l.entries[n-1]
		e.repeated++
		e.Timestamp = time.Now()
	} else {
		l.entries = append(l.entries, Entry{Timestamp: time.Now(), Tag: tag, Detail: detail})
		e = &l.entries[len(l.entries)-1]
	}

	if l.echo != nil {
		io.WriteString(l.echo, e.String())
	}

	if len(l.entries) > l.maxEntries {
		l.entries = append(l.entries[:0:0], l.entries[len(l.entries)-l.maxEntries:]...)
	}
}

// Log adds an entry at Info level.
func Log(tag, detail string) {
	if Enabled(Info) {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry at Info level.
func Logf(tag, format string, args ...interface{}) {
	if Enabled(Info) {
		central.log(tag, fmt.Sprintf(format, args...))
	}
}

// Debugf adds a formatted entry if level is enabled.
func Debugf(level Level, tag, format string, args ...interface{}) {
	if Enabled(level) {
		central.log(tag, fmt.Sprintf(format, args...))
	}
}

// Enabled reports whether entries at level are recorded.
func Enabled(level Level) bool {
	central.mu.Lock()
	defer central.mu.Unlock()
	return level != Quiet && level <= central.level
}

// SetLevel changes the verbosity.
func SetLevel(level Level) {
	central.mu.Lock()
	defer central.mu.Unlock()
	central.level = level
}

// SetEcho copies every new entry to w. A nil writer stops echoing.
func SetEcho(w io.Writer) {
	central.mu.Lock()
	defer central.mu.Unlock()
	central.echo = w
}

// Clear removes all entries.
func Clear() {
	central.mu.Lock()
	defer central.mu.Unlock()
	central.entries = central.entries[:0]
}

// Write copies every entry to output.
func Write(output io.Writer) {
	Tail(output, maxCentral)
}

// Tail writes the last number entries to output.
func Tail(output io.Writer, number int) {
	central.mu.Lock()
	defer central.mu.Unlock()
	if number > len(central.entries) {
		number = len(central.entries)
	}
	for _, e := range central.entries[len(central.entries)-number:] {
		io.WriteString(output, e.String())
	}
}

// Entries returns a copy of the log.
func Entries() []Entry {
	central.mu.Lock()
	defer central.mu.Unlock()
	c := make([]Entry, len(central.entries))
	copy(c, central.entries)
	return c
}
