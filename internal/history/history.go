// Package history records accepted command lines, expands history
// designators (!!, !n, !prefix), and persists across sessions.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrEventNotFound indicates a history designator that matched no
// recorded line.
var ErrEventNotFound = errors.New("history: event not found")

// DefaultMaxEntries bounds the history when the config does not.
const DefaultMaxEntries = 500

// History is the ordered record of accepted command lines, oldest
// first. It belongs to the shell's control flow and is not locked.
type History struct {
	entries []string
	max     int
	path    string
}

// New creates a history bounded to max entries, persisted at path.
// An empty path disables persistence.
func New(max int, path string) *History {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &History{max: max, path: path}
}

// Add records a line. A line identical to the most recent entry is
// not recorded again.
func (h *History) Add(line string) {
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Entries returns the recorded lines, oldest first. The slice is
// shared; callers must not mutate it.
func (h *History) Entries() []string {
	return h.entries
}

// Len returns the number of recorded lines.
func (h *History) Len() int {
	return len(h.entries)
}

// Expand resolves a leading history designator. The second result is
// true when the line was rewritten, in which case the shell echoes the
// expansion before running it.
//
//	!!        the most recent line
//	!n        the line with 1-based index n
//	!prefix   the most recent line starting with prefix
func (h *History) Expand(line string) (string, bool, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "!") || trimmed == "!" {
		return line, false, nil
	}

	designator := trimmed
	rest := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		designator, rest = trimmed[:i], trimmed[i:]
	}
	spec := designator[1:]

	var resolved string
	switch {
	case spec == "!":
		if len(h.entries) == 0 {
			return "", false, fmt.Errorf("%w: !!", ErrEventNotFound)
		}
		resolved = h.entries[len(h.entries)-1]
	default:
		if n, err := strconv.Atoi(spec); err == nil {
			if n < 1 || n > len(h.entries) {
				return "", false, fmt.Errorf("%w: !%d", ErrEventNotFound, n)
			}
			resolved = h.entries[n-1]
			break
		}
		for i := len(h.entries) - 1; i >= 0; i-- {
			if strings.HasPrefix(h.entries[i], spec) {
				resolved = h.entries[i]
				break
			}
		}
		if resolved == "" {
			return "", false, fmt.Errorf("%w: %s", ErrEventNotFound, designator)
		}
	}
	return resolved + rest, true, nil
}

// Load reads the persisted history file. A missing file is not an
// error; the history simply starts empty.
func (h *History) Load() error {
	if h.path == "" {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("history: read %s: %w", h.path, err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("history: %s is not valid JSON", h.path)
	}
	for _, e := range gjson.GetBytes(data, "entries").Array() {
		h.Add(e.String())
	}
	return nil
}

// Save writes the history file, creating parent directories as
// needed.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}
	doc, err := sjson.Set("", "entries", h.entries)
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := os.WriteFile(h.path, []byte(doc), 0o600); err != nil {
		return fmt.Errorf("history: write %s: %w", h.path, err)
	}
	return nil
}
