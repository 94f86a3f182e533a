// Package keysource adapts host keyboard input into scanbuf key events.
//
// Front ends translate whatever their toolkit delivers with FromRune and
// FromName. Headless deployments read a scanner directly from a Linux evdev
// device, or from a text stream with ReaderSource.
package keysource

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"rollscan/internal/scanbuf"
)

var (
	// ErrNotAvailable is returned when a source cannot run on this platform
	// or with current permissions.
	ErrNotAvailable = errors.New("key source not available")
	// ErrAlreadyRunning is returned when starting a running source.
	ErrAlreadyRunning = errors.New("key source already running")
)

// Sink receives translated key events. *scanbuf.Buffer satisfies it.
type Sink interface {
	ProcessKeyInput(k scanbuf.Key)
}

// Source produces key events until its context is cancelled or Stop is
// called.
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
	// Available reports whether the source can run, with a reason.
	Available() (bool, string)
}

// FromRune maps a typed character to the key that produces it. Letters map
// regardless of case; '\n' and '\r' map to Return.
func FromRune(r rune) scanbuf.Key {
	switch {
	case r >= '0' && r <= '9':
		return scanbuf.KeyD0 + scanbuf.Key(r-'0')
	case r >= 'a' && r <= 'z':
		return scanbuf.KeyA + scanbuf.Key(r-'a')
	case r >= 'A' && r <= 'Z':
		return scanbuf.KeyA + scanbuf.Key(r-'A')
	}

	switch r {
	case '-':
		return scanbuf.KeyMinus
	case '.':
		return scanbuf.KeyPeriod
	case ' ':
		return scanbuf.KeySpace
	case '\n', '\r':
		return scanbuf.KeyReturn
	case '\t':
		return scanbuf.KeyTab
	case '\b':
		return scanbuf.KeyBackspace
	case 0x1b:
		return scanbuf.KeyEscape
	case 0x7f:
		return scanbuf.KeyDelete
	}
	return scanbuf.KeyUnknown
}

var namedKeys = map[string]scanbuf.Key{
	// Toolkit symbols.
	"⏎": scanbuf.KeyReturn,
	"⌤": scanbuf.KeyEnter,
	"⎋": scanbuf.KeyEscape,
	"⌫": scanbuf.KeyBackspace,
	"⌦": scanbuf.KeyDelete,
	"⇧": scanbuf.KeyShift,
	"⌃": scanbuf.KeyControl,
	"⎇": scanbuf.KeyAlt,
	"←": scanbuf.KeyLeft,
	"→": scanbuf.KeyRight,
	"↑": scanbuf.KeyUp,
	"↓": scanbuf.KeyDown,
	"⇞": scanbuf.KeyPageUp,
	"⇟": scanbuf.KeyPageDown,

	// Spelled out names, matched case-insensitively.
	"return":    scanbuf.KeyReturn,
	"enter":     scanbuf.KeyEnter,
	"space":     scanbuf.KeySpace,
	"tab":       scanbuf.KeyTab,
	"esc":       scanbuf.KeyEscape,
	"escape":    scanbuf.KeyEscape,
	"backspace": scanbuf.KeyBackspace,
	"delete":    scanbuf.KeyDelete,
	"shift":     scanbuf.KeyShift,
	"ctrl":      scanbuf.KeyControl,
	"control":   scanbuf.KeyControl,
	"alt":       scanbuf.KeyAlt,
	"capslock":  scanbuf.KeyCapsLock,
	"left":      scanbuf.KeyLeft,
	"right":     scanbuf.KeyRight,
	"up":        scanbuf.KeyUp,
	"down":      scanbuf.KeyDown,
	"home":      scanbuf.KeyHome,
	"end":       scanbuf.KeyEnd,
	"pageup":    scanbuf.KeyPageUp,
	"pagedown":  scanbuf.KeyPageDown,
	"subtract":  scanbuf.KeySubtract,
	"decimal":   scanbuf.KeyDecimal,
}

// FromName maps a key name, as reported by a GUI toolkit, to a key.
// Single-character names are treated as the character they produce.
func FromName(name string) scanbuf.Key {
	if k, ok := namedKeys[name]; ok {
		return k
	}
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return k
	}

	runes := []rune(name)
	if len(runes) == 1 {
		return FromRune(runes[0])
	}

	// F1..F12
	if len(runes) >= 2 && (runes[0] == 'F' || runes[0] == 'f') {
		n := 0
		for _, r := range runes[1:] {
			if !unicode.IsDigit(r) {
				return scanbuf.KeyUnknown
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 12 {
			return scanbuf.KeyF1 + scanbuf.Key(n-1)
		}
	}
	return scanbuf.KeyUnknown
}
