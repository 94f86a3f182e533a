package scanbuf

import "fmt"

// Key identifies a physical key as reported by the host input system.
// Values are platform independent; key sources translate native codes.
type Key int

const (
	KeyUnknown Key = iota

	// Main row digits.
	KeyD0
	KeyD1
	KeyD2
	KeyD3
	KeyD4
	KeyD5
	KeyD6
	KeyD7
	KeyD8
	KeyD9

	// Numeric pad digits.
	KeyNumPad0
	KeyNumPad1
	KeyNumPad2
	KeyNumPad3
	KeyNumPad4
	KeyNumPad5
	KeyNumPad6
	KeyNumPad7
	KeyNumPad8
	KeyNumPad9

	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ

	KeyMinus    // main row '-'
	KeySubtract // numeric pad '-'
	KeyPeriod   // main row '.'
	KeyDecimal  // numeric pad '.'
	KeySpace

	KeyReturn // main Enter/Return
	KeyEnter  // numeric pad Enter

	KeyTab
	KeyEscape
	KeyBackspace
	KeyDelete
	KeyShift
	KeyControl
	KeyAlt
	KeyCapsLock
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[Key]string{
	KeyUnknown:   "Unknown",
	KeyMinus:     "Minus",
	KeySubtract:  "Subtract",
	KeyPeriod:    "Period",
	KeyDecimal:   "Decimal",
	KeySpace:     "Space",
	KeyReturn:    "Return",
	KeyEnter:     "Enter",
	KeyTab:       "Tab",
	KeyEscape:    "Escape",
	KeyBackspace: "Backspace",
	KeyDelete:    "Delete",
	KeyShift:     "Shift",
	KeyControl:   "Control",
	KeyAlt:       "Alt",
	KeyCapsLock:  "CapsLock",
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyPageUp:    "PageUp",
	KeyPageDown:  "PageDown",
}

// String returns a readable key name, e.g. "D4", "NumPad7", "Q", "F5".
func (k Key) String() string {
	switch {
	case k >= KeyD0 && k <= KeyD9:
		return fmt.Sprintf("D%d", k-KeyD0)
	case k >= KeyNumPad0 && k <= KeyNumPad9:
		return fmt.Sprintf("NumPad%d", k-KeyNumPad0)
	case k >= KeyA && k <= KeyZ:
		return string(rune('A' + (k - KeyA)))
	case k >= KeyF1 && k <= KeyF12:
		return fmt.Sprintf("F%d", k-KeyF1+1)
	}
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// IsTerminator reports whether k ends a scan.
func (k Key) IsTerminator() bool {
	return k == KeyReturn || k == KeyEnter
}

// Char maps k to the character it contributes to a barcode. Only the
// characters that appear in roll numbers are recognized; everything else
// reports false.
func Char(k Key) (rune, bool) {
	switch {
	case k >= KeyD0 && k <= KeyD9:
		return rune('0' + (k - KeyD0)), true
	case k >= KeyNumPad0 && k <= KeyNumPad9:
		return rune('0' + (k - KeyNumPad0)), true
	case k >= KeyA && k <= KeyZ:
		return rune('A' + (k - KeyA)), true
	}

	switch k {
	case KeyMinus, KeySubtract:
		return '-', true
	case KeyPeriod, KeyDecimal:
		return '.', true
	case KeySpace:
		return ' ', true
	}
	return 0, false
}
