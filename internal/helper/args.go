// Package helper supervises the tray helper process: the external
// executable that owns the tray icon and global hotkey.
package helper

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefs is a snapshot of the preferences that shape the helper command line.
type Prefs struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Key   string
	Port  string
}

// BuildArgs returns the helper arguments for p, in the fixed order
// --ctrl --alt --shift --key --port, plus a warning for every value that was
// dropped. An omitted flag means the helper uses its own default.
func BuildArgs(p Prefs) (args []string, warnings []string) {
	if p.Ctrl {
		args = append(args, "--ctrl")
	}
	if p.Alt {
		args = append(args, "--alt")
	}
	if p.Shift {
		args = append(args, "--shift")
	}

	if key := strings.TrimSpace(p.Key); key != "" {
		if validKey(key) {
			args = append(args, "--key="+strings.ToUpper(key))
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring hotkey key %q: must be a single letter or digit", p.Key))
		}
	}

	if port, ok := ParsePort(p.Port); ok {
		args = append(args, "--port="+strconv.Itoa(port))
	} else if strings.TrimSpace(p.Port) != "" {
		warnings = append(warnings, fmt.Sprintf("ignoring port %q: not a number", p.Port))
	}

	return args, warnings
}

// validKey accepts exactly one ASCII letter or digit.
func validKey(k string) bool {
	if len(k) != 1 {
		return false
	}
	c := k[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ParsePort parses a TCP port preference. Absent, non-numeric and out of
// range values are rejected.
func ParsePort(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	return int(n), true
}
