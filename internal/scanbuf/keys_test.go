package scanbuf

import "testing"

func TestCharMapping(t *testing.T) {
	tests := []struct {
		key  Key
		want rune
		ok   bool
	}{
		{KeyD0, '0', true},
		{KeyD9, '9', true},
		{KeyNumPad0, '0', true},
		{KeyNumPad5, '5', true},
		{KeyNumPad9, '9', true},
		{KeyA, 'A', true},
		{KeyM, 'M', true},
		{KeyZ, 'Z', true},
		{KeyMinus, '-', true},
		{KeySubtract, '-', true},
		{KeyPeriod, '.', true},
		{KeyDecimal, '.', true},
		{KeySpace, ' ', true},
		{KeyReturn, 0, false},
		{KeyEnter, 0, false},
		{KeyTab, 0, false},
		{KeyShift, 0, false},
		{KeyF1, 0, false},
		{KeyLeft, 0, false},
		{KeyUnknown, 0, false},
		{Key(9999), 0, false},
	}

	for _, tt := range tests {
		got, ok := Char(tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Char(%v) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsTerminator(t *testing.T) {
	if !KeyReturn.IsTerminator() || !KeyEnter.IsTerminator() {
		t.Error("Return and Enter must terminate a scan")
	}
	for _, k := range []Key{KeySpace, KeyTab, KeyD0, KeyA, KeyUnknown} {
		if k.IsTerminator() {
			t.Errorf("%v should not terminate a scan", k)
		}
	}
}

func TestKeyString(t *testing.T) {
	tests := map[Key]string{
		KeyD4:       "D4",
		KeyNumPad7:  "NumPad7",
		KeyQ:        "Q",
		KeyF12:      "F12",
		KeyReturn:   "Return",
		KeySubtract: "Subtract",
		Key(-3):     "Key(-3)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Key(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
