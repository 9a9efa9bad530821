package marcher

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

const (
	maxScreenX = 1366
	maxScreenY = 768
)

// Gui is a live preview window fed by the session event channel: it shows
// quick-preview frames while navigating, the march progress while a full
// render runs, and the finished image on completion.
type Gui struct {
	session *Session
	theme   *material.Theme

	// Full render dimensions; preview frames are upscaled to these.
	width  int
	height int

	winW float64
	winH float64

	img      image.Image
	progress float64
	status   Status
}

// NewGUI initializes the Gio interface for a session.
func NewGUI(s *Session) *Gui {
	params := s.Params()
	g := &Gui{
		session: s,
		theme:   material.NewTheme(gofont.Collection()),
		width:   params.Width,
		height:  params.Height,
		status:  s.Status(),
	}
	g.winW, g.winH = windowSize(params.Width, params.Height)
	return g
}

// windowSize shrinks the window to fit the screen while keeping the
// render's aspect ratio.
func windowSize(width, height int) (float64, float64) {
	w, h := float64(width), float64(height)
	if width > maxScreenX || height > maxScreenY {
		ratio := math.Min(maxScreenX/w, maxScreenY/h)
		w *= ratio
		h *= ratio
	}
	return w, h
}

// Run is the core method of the Gio GUI application. It updates the window
// with the frames received from the session and terminates when the window
// is closed or ESC is pressed.
func (g *Gui) Run() error {
	w := app.NewWindow(
		app.Title("marcher — fractal render"),
		app.Size(unit.Px(float32(g.winW)), unit.Px(float32(g.winH))),
	)

	var ops op.Ops
	for {
		select {
		case e := <-w.Events():
			switch e := e.(type) {
			case system.FrameEvent:
				gtx := layout.NewContext(&ops, e)
				g.draw(gtx, e)
				e.Frame(gtx.Ops)
			case key.Event:
				switch e.Name {
				case key.NameEscape:
					g.session.CancelRender()
					w.Close()
				}
			case system.DestroyEvent:
				return e.Err
			}
		case ev := <-g.session.Events():
			switch ev := ev.(type) {
			case CompleteEvent:
				res := &RenderResult{RGBA: ev.RGBA, Width: ev.Width, Height: ev.Height}
				g.img = res.Upscale(g.width, g.height)
				w.Invalidate()
			case ProgressEvent:
				g.progress = ev.Fraction
				w.Invalidate()
			case StatusEvent:
				g.status = ev.Status
				w.Invalidate()
			}
		}
	}
}

// draw paints the most recent frame and, while a render is in flight, an
// overlay line with the march progress.
func (g *Gui) draw(gtx C, e system.FrameEvent) {
	paint.Fill(gtx.Ops, color.NRGBA{A: 0xff})

	if g.img != nil {
		src := paint.NewImageOp(g.img)
		src.Add(gtx.Ops)

		layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
			layout.Flexed(1, func(gtx C) D {
				return widget.Image{
					Src:   src,
					Scale: 1 / float32(gtx.Px(unit.Dp(1))),
					Fit:   widget.Contain,
				}.Layout(gtx)
			}),
		)
	}

	if g.status == StatusRendering {
		msg := fmt.Sprintf("rendering… %3.0f%%", g.progress*100)
		layout.S.Layout(gtx, func(gtx C) D {
			return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx C) D {
				lbl := material.Label(g.theme, unit.Sp(16), msg)
				lbl.Color = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
				return lbl.Layout(gtx)
			})
		})
	}
}
