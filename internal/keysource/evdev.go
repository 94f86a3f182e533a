package keysource

import (
	"bufio"
	"encoding/binary"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"rollscan/internal/scanbuf"
)

// Linux input event types and values.
const (
	evKey    = 1
	keyPress = 1
)

// Linux KEY_* codes from input-event-codes.h.
var evdevKeys = map[uint16]scanbuf.Key{
	1:   scanbuf.KeyEscape,
	2:   scanbuf.KeyD1,
	3:   scanbuf.KeyD2,
	4:   scanbuf.KeyD3,
	5:   scanbuf.KeyD4,
	6:   scanbuf.KeyD5,
	7:   scanbuf.KeyD6,
	8:   scanbuf.KeyD7,
	9:   scanbuf.KeyD8,
	10:  scanbuf.KeyD9,
	11:  scanbuf.KeyD0,
	12:  scanbuf.KeyMinus,
	14:  scanbuf.KeyBackspace,
	15:  scanbuf.KeyTab,
	16:  scanbuf.KeyQ,
	17:  scanbuf.KeyW,
	18:  scanbuf.KeyE,
	19:  scanbuf.KeyR,
	20:  scanbuf.KeyT,
	21:  scanbuf.KeyY,
	22:  scanbuf.KeyU,
	23:  scanbuf.KeyI,
	24:  scanbuf.KeyO,
	25:  scanbuf.KeyP,
	28:  scanbuf.KeyReturn,
	29:  scanbuf.KeyControl,
	30:  scanbuf.KeyA,
	31:  scanbuf.KeyS,
	32:  scanbuf.KeyD,
	33:  scanbuf.KeyF,
	34:  scanbuf.KeyG,
	35:  scanbuf.KeyH,
	36:  scanbuf.KeyJ,
	37:  scanbuf.KeyK,
	38:  scanbuf.KeyL,
	42:  scanbuf.KeyShift,
	44:  scanbuf.KeyZ,
	45:  scanbuf.KeyX,
	46:  scanbuf.KeyC,
	47:  scanbuf.KeyV,
	48:  scanbuf.KeyB,
	49:  scanbuf.KeyN,
	50:  scanbuf.KeyM,
	52:  scanbuf.KeyPeriod,
	54:  scanbuf.KeyShift,
	56:  scanbuf.KeyAlt,
	57:  scanbuf.KeySpace,
	58:  scanbuf.KeyCapsLock,
	59:  scanbuf.KeyF1,
	60:  scanbuf.KeyF2,
	61:  scanbuf.KeyF3,
	62:  scanbuf.KeyF4,
	63:  scanbuf.KeyF5,
	64:  scanbuf.KeyF6,
	65:  scanbuf.KeyF7,
	66:  scanbuf.KeyF8,
	67:  scanbuf.KeyF9,
	68:  scanbuf.KeyF10,
	71:  scanbuf.KeyNumPad7,
	72:  scanbuf.KeyNumPad8,
	73:  scanbuf.KeyNumPad9,
	74:  scanbuf.KeySubtract,
	75:  scanbuf.KeyNumPad4,
	76:  scanbuf.KeyNumPad5,
	77:  scanbuf.KeyNumPad6,
	79:  scanbuf.KeyNumPad1,
	80:  scanbuf.KeyNumPad2,
	81:  scanbuf.KeyNumPad3,
	82:  scanbuf.KeyNumPad0,
	83:  scanbuf.KeyDecimal,
	87:  scanbuf.KeyF11,
	88:  scanbuf.KeyF12,
	96:  scanbuf.KeyEnter,
	97:  scanbuf.KeyControl,
	100: scanbuf.KeyAlt,
	102: scanbuf.KeyHome,
	103: scanbuf.KeyUp,
	104: scanbuf.KeyPageUp,
	105: scanbuf.KeyLeft,
	106: scanbuf.KeyRight,
	107: scanbuf.KeyEnd,
	108: scanbuf.KeyDown,
	109: scanbuf.KeyPageDown,
	111: scanbuf.KeyDelete,
}

// FromEvdevCode maps a Linux KEY_* code to a key.
func FromEvdevCode(code uint16) scanbuf.Key {
	if k, ok := evdevKeys[code]; ok {
		return k
	}
	return scanbuf.KeyUnknown
}

// inputEvent matches the Linux input_event struct.
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// eventSize is 24 bytes on 64-bit kernels and 16 on 32-bit ones.
var eventSize = binary.Size(inputEvent{})

// decodeEvent reads the type, code and value that trail the timestamp.
func decodeEvent(buf []byte) (typ, code uint16, value int32) {
	n := len(buf)
	typ = binary.LittleEndian.Uint16(buf[n-8 : n-6])
	code = binary.LittleEndian.Uint16(buf[n-6 : n-4])
	value = int32(binary.LittleEndian.Uint32(buf[n-4 : n]))
	return typ, code, value
}

// Device is an input device listed in /proc/bus/input/devices.
type Device struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Phys    string `json:"phys,omitempty"`
	HasKeys bool   `json:"has_keys"`
}

// LooksLikeScanner reports whether the device name suggests a barcode
// scanner.
func (d Device) LooksLikeScanner() bool {
	name := strings.ToLower(d.Name)
	for _, hint := range []string{"barcode", "scanner", "honeywell", "zebra", "symbol", "datalogic"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// parseDevices reads the /proc/bus/input/devices format and returns every
// device that exposes an event handler and key capabilities.
func parseDevices(r io.Reader) ([]Device, error) {
	var devices []Device
	var cur Device

	flush := func() {
		if cur.Path != "" && cur.HasKeys {
			devices = append(devices, cur)
		}
		cur = Device{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "N: Name="):
			cur.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "P: Phys="):
			cur.Phys = strings.TrimPrefix(line, "P: Phys=")
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(part, "event") {
					cur.Path = "/dev/input/" + part
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			cur.HasKeys = keyBits(strings.TrimPrefix(line, "B: KEY=")) >= minKeyboardKeys
		case line == "":
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// Mice and power buttons advertise a handful of keys; keyboards and
// keyboard-emulating scanners advertise dozens.
const minKeyboardKeys = 20

// keyBits counts the capability bits in a space separated hex bitmap.
func keyBits(bitmap string) int {
	n := 0
	for _, word := range strings.Fields(bitmap) {
		v, err := strconv.ParseUint(word, 16, 64)
		if err != nil {
			continue
		}
		n += bits.OnesCount64(v)
	}
	return n
}

// SelectScanner picks the device to read. An explicit path wins; otherwise
// the first device whose name looks like a scanner.
func SelectScanner(devices []Device, path string) (Device, bool) {
	if path != "" {
		for _, d := range devices {
			if d.Path == path {
				return d, true
			}
		}
		return Device{Path: path, Name: path}, true
	}
	for _, d := range devices {
		if d.LooksLikeScanner() {
			return d, true
		}
	}
	return Device{}, false
}

// EvdevSource reads key events from a Linux input device. With Grab set the
// device is opened exclusively so its keystrokes do not also reach the
// focused application.
type EvdevSource struct {
	Path   string
	Grab   bool
	Logger *slog.Logger

	mu      sync.Mutex
	running bool
	file    *os.File
	done    chan struct{}
	err     error
}

// NewEvdevSource creates a source for the device at path.
func NewEvdevSource(path string, grab bool, logger *slog.Logger) *EvdevSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EvdevSource{Path: path, Grab: grab, Logger: logger}
}

// IsRunning reports whether the read loop is active.
func (s *EvdevSource) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the read loop exits. It is nil before Start.
func (s *EvdevSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error that ended the read loop, if any.
func (s *EvdevSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// dispatch forwards key presses from a raw event stream until r fails.
func dispatch(r io.Reader, sink Sink) error {
	buf := make([]byte, eventSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		typ, code, value := decodeEvent(buf)
		if typ != evKey || value != keyPress {
			continue
		}
		sink.ProcessKeyInput(FromEvdevCode(code))
	}
}
