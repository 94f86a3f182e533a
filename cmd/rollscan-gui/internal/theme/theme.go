package theme

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the window colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	OnPrimary  color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Avatar     color.NRGBA
	Success    color.NRGBA
	Error      color.NRGBA
	Warning    color.NRGBA
	Inactive   color.NRGBA
}

// Config defines sizes shared by the widgets.
type Config struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	PhotoSize    unit.Dp
	FontTitle    unit.Sp
	FontName     unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps the material theme with the lookup window's styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// Tone classifies a status message for coloring.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneBusy
	ToneSuccess
	ToneWarning
	ToneError
)

// NewTheme creates a theme for the current OS.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}

	switch runtime.GOOS {
	case "darwin":
		setupMacOSTheme(t)
	default:
		setupDefaultTheme(t)
	}

	t.Theme.Palette.Bg = t.Palette.Background
	t.Theme.Palette.Fg = t.Palette.Text
	t.Theme.Palette.ContrastBg = t.Palette.Primary
	t.Theme.Palette.ContrastFg = t.Palette.OnPrimary
	return t
}

// ToneColor returns the color for a status tone.
func (t *Theme) ToneColor(tone Tone) color.NRGBA {
	switch tone {
	case ToneBusy:
		return t.Palette.Primary
	case ToneSuccess:
		return t.Palette.Success
	case ToneWarning:
		return t.Palette.Warning
	case ToneError:
		return t.Palette.Error
	default:
		return t.Palette.TextMuted
	}
}

func setupDefaultTheme(t *Theme) {
	// Light palette; scanning desks are usually brightly lit.
	t.Palette = Palette{
		Background: color.NRGBA{R: 0xF3, G: 0xF4, B: 0xF6, A: 0xFF},
		Surface:    color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		Primary:    color.NRGBA{R: 0x25, G: 0x63, B: 0xEB, A: 0xFF},
		OnPrimary:  color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		Text:       color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x6B, G: 0x72, B: 0x80, A: 0xFF},
		Border:     color.NRGBA{R: 0xE5, G: 0xE7, B: 0xEB, A: 0xFF},
		Avatar:     color.NRGBA{R: 0xDB, G: 0xEA, B: 0xFE, A: 0xFF},
		Success:    color.NRGBA{R: 0x16, G: 0xA3, B: 0x4A, A: 0xFF},
		Error:      color.NRGBA{R: 0xDC, G: 0x26, B: 0x26, A: 0xFF},
		Warning:    color.NRGBA{R: 0xD9, G: 0x77, B: 0x06, A: 0xFF},
		Inactive:   color.NRGBA{R: 0x9C, G: 0xA3, B: 0xAF, A: 0xFF},
	}

	t.Config = Config{
		CornerRadius: unit.Dp(6),
		Spacing:      unit.Dp(8),
		Padding:      unit.Dp(16),
		PhotoSize:    unit.Dp(160),
		FontTitle:    unit.Sp(22),
		FontName:     unit.Sp(28),
		FontBody:     unit.Sp(15),
		FontCaption:  unit.Sp(12),
	}
}

func setupMacOSTheme(t *Theme) {
	setupDefaultTheme(t)
	t.Palette.Primary = color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF}
	t.Palette.Success = color.NRGBA{R: 0x30, G: 0xD1, B: 0x58, A: 0xFF}

	t.Config.CornerRadius = unit.Dp(10)
	t.Config.Padding = unit.Dp(20)
	t.Config.FontBody = unit.Sp(14)
	t.Config.FontCaption = unit.Sp(11)
}
