package ui

import (
	"testing"

	"gioui.org/io/input"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/scanbuf"
)

type recordingSink struct {
	keys []scanbuf.Key
}

func (s *recordingSink) ProcessKeyInput(k scanbuf.Key) {
	s.keys = append(s.keys, k)
}

func newKeyView() (*LookupView, *recordingSink, *input.Router, layout.Context) {
	sink := &recordingSink{}
	v := &LookupView{
		sink:   sink,
		manual: widget.Editor{SingleLine: true, Submit: true},
	}
	r := new(input.Router)
	gtx := layout.Context{Ops: new(op.Ops), Source: r.Source()}
	// Registers the key filter with the router.
	v.handleKeys(gtx)
	return v, sink, r, gtx
}

func press(name key.Name, mods key.Modifiers) key.Event {
	return key.Event{Name: name, Modifiers: mods, State: key.Press}
}

func TestHandleKeysForwardsScannerInput(t *testing.T) {
	v, sink, r, gtx := newKeyView()

	r.Queue(
		press("C", key.ModShift),
		key.Event{Name: "C", Modifiers: key.ModShift, State: key.Release},
		press("S", key.ModShift),
		press("0", 0),
		press("0", 0),
		press("1", 0),
		press(key.NameReturn, 0),
	)
	v.handleKeys(gtx)

	assert.Equal(t, []scanbuf.Key{
		scanbuf.KeyC, scanbuf.KeyS, scanbuf.KeyD0, scanbuf.KeyD0, scanbuf.KeyD1, scanbuf.KeyReturn,
	}, sink.keys)
}

func TestHandleKeysFeedsScanBuffer(t *testing.T) {
	buf := scanbuf.New()
	var scans []string
	buf.OnScan(func(roll string) { scans = append(scans, roll) })
	buf.StartListening()

	v := &LookupView{sink: buf, manual: widget.Editor{SingleLine: true}}
	r := new(input.Router)
	gtx := layout.Context{Ops: new(op.Ops), Source: r.Source()}
	v.handleKeys(gtx)

	r.Queue(
		press("E", key.ModShift),
		press("E", key.ModShift),
		press("0", 0),
		press("0", 0),
		press("1", 0),
		press(key.NameReturn, 0),
	)
	v.handleKeys(gtx)

	assert.Equal(t, []string{"EE001"}, scans)
}

func TestHandleKeysSkipsShortcuts(t *testing.T) {
	v, sink, r, gtx := newKeyView()

	r.Queue(
		press("C", key.ModCtrl),
		press("V", key.ModShortcut|key.ModShift),
		press("7", 0),
	)
	v.handleKeys(gtx)

	assert.Equal(t, []scanbuf.Key{scanbuf.KeyD7}, sink.keys)
}

func TestHandleKeysIgnoredWhileManualFieldFocused(t *testing.T) {
	v, sink, r, gtx := newKeyView()

	gtx.Execute(key.FocusCmd{Tag: &v.manual})
	require.True(t, gtx.Focused(&v.manual))

	r.Queue(press("A", key.ModShift), press("1", 0), press(key.NameReturn, 0))
	v.handleKeys(gtx)
	assert.Empty(t, sink.keys)

	gtx.Execute(key.FocusCmd{Tag: nil})
	r.Queue(press("A", key.ModShift), press(key.NameReturn, 0))
	v.handleKeys(gtx)
	assert.Equal(t, []scanbuf.Key{scanbuf.KeyA, scanbuf.KeyReturn}, sink.keys)
}
