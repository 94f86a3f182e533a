package ui

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"gioui.org/font"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"rollscan/cmd/rollscan-gui/internal/theme"
	"rollscan/internal/keysource"
	"rollscan/internal/lookup"
	"rollscan/internal/store"
)

// Controller is the part of the lookup controller the window drives.
type Controller interface {
	State() lookup.State
	ToggleScanning()
	SetManualRollNumber(roll string)
	SearchManual(roll string)
	Clear()
}

// LookupView is the single screen of the window: header with the scanner
// toggle, the student card, the manual search row and the status bar.
type LookupView struct {
	theme  *theme.Theme
	ctrl   Controller
	sink   keysource.Sink
	photos *PhotoCache
	logger *slog.Logger

	toggle widget.Clickable
	search widget.Clickable
	clear  widget.Clickable
	manual widget.Editor

	photoRef string
	photoOp  paint.ImageOp
	photoOK  bool
}

// NewLookupView creates the view. Key presses that do not go to the manual
// search field are forwarded to sink.
func NewLookupView(t *theme.Theme, ctrl Controller, sink keysource.Sink, photos *PhotoCache, logger *slog.Logger) *LookupView {
	return &LookupView{
		theme:  t,
		ctrl:   ctrl,
		sink:   sink,
		photos: photos,
		logger: logger,
		manual: widget.Editor{SingleLine: true, Submit: true},
	}
}

// Layout handles input and renders the view.
func (v *LookupView) Layout(gtx layout.Context) layout.Dimensions {
	v.handleKeys(gtx)
	v.handleWidgets(gtx)

	state := v.ctrl.State()
	paint.Fill(gtx.Ops, v.theme.Palette.Background)

	return layout.UniformInset(v.theme.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return v.layoutHeader(gtx, state)
			}),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Padding}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return v.layoutCard(gtx, state)
			}),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Padding}.Layout),
			layout.Rigid(v.layoutManualSearch),
			layout.Rigid(layout.Spacer{Height: v.theme.Config.Spacing}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return v.layoutStatusBar(gtx, state)
			}),
		)
	})
}

// handleKeys feeds window key presses to the scan buffer unless the manual
// search field has focus. Scanners type capitals with Shift held, so Shift
// is accepted; other modifiers mark shortcuts and are not scanner input.
func (v *LookupView) handleKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(key.Filter{Name: "", Optional: key.ModShift})
		if !ok {
			return
		}
		e, ok := ev.(key.Event)
		if !ok || e.State != key.Press {
			continue
		}
		if gtx.Focused(&v.manual) {
			continue
		}
		v.sink.ProcessKeyInput(keysource.FromName(string(e.Name)))
	}
}

func (v *LookupView) handleWidgets(gtx layout.Context) {
	if v.toggle.Clicked(gtx) {
		v.ctrl.ToggleScanning()
	}

	for {
		ev, ok := v.manual.Update(gtx)
		if !ok {
			break
		}
		switch e := ev.(type) {
		case widget.ChangeEvent:
			v.ctrl.SetManualRollNumber(v.manual.Text())
		case widget.SubmitEvent:
			v.submit(gtx, e.Text)
		}
	}

	if v.search.Clicked(gtx) {
		v.submit(gtx, v.manual.Text())
	}
	if v.clear.Clicked(gtx) {
		v.ctrl.Clear()
		v.manual.SetText("")
	}
}

func (v *LookupView) submit(gtx layout.Context, roll string) {
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return
	}
	v.ctrl.SearchManual(roll)
	// Hand the keyboard back to the scanner.
	gtx.Execute(key.FocusCmd{})
}

func (v *LookupView) layoutHeader(gtx layout.Context, state lookup.State) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			title := material.Label(v.theme.Theme, v.theme.Config.FontTitle, "Student Lookup")
			title.Font.Weight = font.Bold
			title.Color = v.theme.Palette.Text
			return title.Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			btn := material.Button(v.theme.Theme, &v.toggle, state.ScanningStatusText())
			btn.Background = v.theme.Palette.Inactive
			if state.IsScanning {
				btn.Background = v.theme.Palette.Success
			}
			return btn.Layout(gtx)
		}),
	)
}

func (v *LookupView) layoutCard(gtx layout.Context, state lookup.State) layout.Dimensions {
	return v.surface(gtx, func(gtx layout.Context) layout.Dimensions {
		st := state.CurrentStudent
		if st == nil {
			return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				hint := "Scan a student ID card or search by roll number"
				if !state.IsScanning {
					hint = "Scanner is off. Turn it on or search by roll number"
				}
				l := material.Label(v.theme.Theme, v.theme.Config.FontBody, hint)
				l.Color = v.theme.Palette.TextMuted
				return l.Layout(gtx)
			})
		}

		return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return v.layoutPhoto(gtx, st)
			}),
			layout.Rigid(layout.Spacer{Width: v.theme.Config.Padding}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return v.layoutDetails(gtx, st)
			}),
		)
	})
}

func (v *LookupView) surface(gtx layout.Context, w layout.Widget) layout.Dimensions {
	return layout.Stack{}.Layout(gtx,
		layout.Expanded(func(gtx layout.Context) layout.Dimensions {
			size := gtx.Constraints.Min
			rr := gtx.Dp(v.theme.Config.CornerRadius)
			paint.FillShape(gtx.Ops, v.theme.Palette.Surface,
				clip.UniformRRect(image.Rectangle{Max: size}, rr).Op(gtx.Ops))
			return layout.Dimensions{Size: size}
		}),
		layout.Stacked(func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Min = gtx.Constraints.Max
			return layout.UniformInset(v.theme.Config.Padding).Layout(gtx, w)
		}),
	)
}

func (v *LookupView) layoutPhoto(gtx layout.Context, st *store.Student) layout.Dimensions {
	size := gtx.Dp(v.theme.Config.PhotoSize)
	gtx.Constraints = layout.Exact(image.Pt(size, size))

	if op, ok := v.photo(st); ok {
		defer clip.UniformRRect(image.Rectangle{Max: gtx.Constraints.Max}, gtx.Dp(v.theme.Config.CornerRadius)).Push(gtx.Ops).Pop()
		img := widget.Image{Src: op, Fit: widget.Cover, Position: layout.Center}
		return img.Layout(gtx)
	}
	return v.layoutInitials(gtx, st.Initials())
}

// photo returns the image op for st, decoding it on first use.
func (v *LookupView) photo(st *store.Student) (paint.ImageOp, bool) {
	if st.PhotoPath != v.photoRef {
		v.photoRef = st.PhotoPath
		v.photoOK = false
		img, err := v.photos.Load(st.PhotoPath)
		switch {
		case err == nil:
			v.photoOp = paint.NewImageOp(img)
			v.photoOK = true
		case st.PhotoPath != "":
			v.logger.Warn("cannot show student photo", "roll_number", st.RollNumber, "error", err)
		}
	}
	return v.photoOp, v.photoOK
}

func (v *LookupView) layoutInitials(gtx layout.Context, initials string) layout.Dimensions {
	size := gtx.Constraints.Max
	paint.FillShape(gtx.Ops, v.theme.Palette.Avatar, clip.Ellipse{Max: size}.Op(gtx.Ops))

	return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		l := material.Label(v.theme.Theme, unit.Sp(float32(v.theme.Config.FontName)*1.6), initials)
		l.Font.Weight = font.Bold
		l.Color = v.theme.Palette.Primary
		return l.Layout(gtx)
	})
}

func (v *LookupView) layoutDetails(gtx layout.Context, st *store.Student) layout.Dimensions {
	rows := detailRows(st)
	children := make([]layout.FlexChild, 0, len(rows)+2)

	children = append(children,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			name := material.Label(v.theme.Theme, v.theme.Config.FontName, st.FullName())
			name.Font.Weight = font.Bold
			name.Color = v.theme.Palette.Text
			return name.Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: v.theme.Config.Spacing}.Layout),
	)
	for _, row := range rows {
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return v.layoutRow(gtx, row)
		}))
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
}

func (v *LookupView) layoutRow(gtx layout.Context, row detailRow) layout.Dimensions {
	return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min.X = gtx.Dp(140)
				l := material.Label(v.theme.Theme, v.theme.Config.FontBody, row.label+":")
				l.Color = v.theme.Palette.TextMuted
				return l.Layout(gtx)
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				l := material.Label(v.theme.Theme, v.theme.Config.FontBody, row.value)
				l.Color = v.theme.Palette.Text
				if row.tone != theme.ToneNeutral {
					l.Color = v.theme.ToneColor(row.tone)
				}
				return l.Layout(gtx)
			}),
		)
	})
}

func (v *LookupView) layoutManualSearch(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return v.surface(gtx, func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min.Y = 0
				ed := material.Editor(v.theme.Theme, &v.manual, "Enter roll number")
				ed.TextSize = v.theme.Config.FontBody
				ed.HintColor = v.theme.Palette.TextMuted
				return ed.Layout(gtx)
			})
		}),
		layout.Rigid(layout.Spacer{Width: v.theme.Config.Spacing}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Button(v.theme.Theme, &v.search, "Search").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: v.theme.Config.Spacing}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			btn := material.Button(v.theme.Theme, &v.clear, "Clear")
			btn.Background = v.theme.Palette.TextMuted
			return btn.Layout(gtx)
		}),
	)
}

func (v *LookupView) layoutStatusBar(gtx layout.Context, state lookup.State) layout.Dimensions {
	c := v.theme.ToneColor(statusTone(state))
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return dot(gtx, gtx.Dp(10), c)
		}),
		layout.Rigid(layout.Spacer{Width: v.theme.Config.Spacing}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			l := material.Label(v.theme.Theme, v.theme.Config.FontCaption, state.StatusMessage)
			l.Color = c
			l.MaxLines = 1
			l.Truncator = "…"
			l.Alignment = text.Start
			return l.Layout(gtx)
		}),
	)
}

func dot(gtx layout.Context, d int, c color.NRGBA) layout.Dimensions {
	size := image.Pt(d, d)
	paint.FillShape(gtx.Ops, c, clip.Ellipse{Max: size}.Op(gtx.Ops))
	return layout.Dimensions{Size: size}
}

type detailRow struct {
	label string
	value string
	tone  theme.Tone
}

// detailRows lists the card fields that have a value.
func detailRows(st *store.Student) []detailRow {
	var rows []detailRow
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, detailRow{label: label, value: value})
		}
	}

	add("Roll Number", st.RollNumber)
	add("Course", st.Course)
	add("Department", st.Department)
	if st.Year > 0 {
		add("Year", fmt.Sprintf("%d", st.Year))
	}
	add("Email", st.Email)
	add("Phone", st.PhoneNumber)
	if !st.EnrollmentDate.IsZero() {
		add("Enrollment Date", st.EnrollmentDate.Format("January 2, 2006"))
	}
	if st.Status != "" {
		tone := theme.ToneWarning
		if strings.EqualFold(st.Status, store.StatusActive) {
			tone = theme.ToneSuccess
		}
		rows = append(rows, detailRow{label: "Status", value: st.Status, tone: tone})
	}
	return rows
}

// statusTone picks the status bar color for state.
func statusTone(state lookup.State) theme.Tone {
	switch {
	case state.Searching:
		return theme.ToneBusy
	case state.StatusMessage == lookup.StatusError || state.StatusMessage == lookup.StatusInitError:
		return theme.ToneError
	case state.CurrentStudent != nil:
		return theme.ToneSuccess
	case state.LastRollNumber != "" && state.StatusMessage == lookup.StatusNotFound(state.LastRollNumber):
		return theme.ToneWarning
	default:
		return theme.ToneNeutral
	}
}
