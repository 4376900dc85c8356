package overlay

import (
	"fmt"
	"image"
	"image/color"

	"posecam/detection"
	"posecam/dispatch"

	"gocv.io/x/gocv"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string, ids ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, ids ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

// Renderer draws detections and dispatcher status onto the display frame
type Renderer struct {
	contourColor   color.RGBA
	centerColor    color.RGBA
	axisColor      color.RGBA
	crosshairColor color.RGBA
	textColor      color.RGBA
	armedColor     color.RGBA
	warnColor      color.RGBA

	// recent log lines shown in the terminal panel
	history  func() []string
	maxLines int
}

// NewRenderer creates a new overlay renderer
func NewRenderer() *Renderer {
	return &Renderer{
		contourColor:   color.RGBA{0, 255, 0, 255},
		centerColor:    color.RGBA{0, 0, 255, 255},
		axisColor:      color.RGBA{255, 255, 0, 255},
		crosshairColor: color.RGBA{80, 80, 80, 255},
		textColor:      color.RGBA{255, 255, 255, 255},
		armedColor:     color.RGBA{0, 255, 0, 255},
		warnColor:      color.RGBA{255, 160, 0, 255},
		maxLines:       8,
	}
}

// SetHistorySource supplies recent log lines for the terminal panel
func (r *Renderer) SetHistorySource(fn func() []string) {
	r.history = fn
	debugMsg("OVERLAY", fmt.Sprintf("Terminal panel attached (%d lines)", r.maxLines))
}

// Render draws everything for one frame
func (r *Renderer) Render(img *gocv.Mat, det *detection.Detection, st dispatch.Status) {
	if img == nil || img.Empty() {
		return
	}
	r.DrawCrosshair(img)
	if det != nil {
		r.DrawDetection(img, *det)
	}
	r.DrawStatus(img, st)
	r.DrawTerminal(img)
}

// DrawDetection draws the contour, centroid and measured axis
func (r *Renderer) DrawDetection(img *gocv.Mat, det detection.Detection) {
	if len(det.Contour) > 2 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{det.Contour})
		gocv.DrawContours(img, pv, -1, r.contourColor, 2)
		pv.Close()
	}
	gocv.Circle(img, det.Center, 5, r.centerColor, -1)
	if det.AxisA != det.AxisB {
		gocv.Line(img, det.AxisA, det.AxisB, r.axisColor, 2)
	}

	label := fmt.Sprintf("(%d,%d) %.1fdeg %.0fpx", det.Center.X, det.Center.Y, det.AngleDeg, det.PixelLength)
	if det.DistanceMM > 0 {
		label += fmt.Sprintf(" ~%.0fmm", det.DistanceMM)
	}
	gocv.PutText(img, label, image.Pt(det.Center.X+10, det.Center.Y-10),
		gocv.FontHersheySimplex, 0.5, r.axisColor, 1)
}

// DrawCrosshair draws the image center lines
func (r *Renderer) DrawCrosshair(img *gocv.Mat) {
	w, h := img.Cols(), img.Rows()
	gocv.Line(img, image.Pt(w/2, 0), image.Pt(w/2, h), r.crosshairColor, 1)
	gocv.Line(img, image.Pt(0, h/2), image.Pt(w, h/2), r.crosshairColor, 1)
}

// DrawStatus draws mode, watcher state and the last send in the lower left corner
func (r *Renderer) DrawStatus(img *gocv.Mat, st dispatch.Status) {
	lines := StatusLines(st)
	lineHeight := 20
	y := img.Rows() - 10 - lineHeight*(len(lines)-1)

	bg := image.Rect(5, y-16, 5+420, img.Rows()-4)
	gocv.Rectangle(img, bg, color.RGBA{0, 0, 0, 160}, -1)

	for i, line := range lines {
		c := r.textColor
		switch {
		case i == 1 && st.Watch.Armed:
			c = r.armedColor
		case i == 2 && st.LastSend != nil && (st.LastSend.Skipped || st.LastSend.Degraded):
			c = r.warnColor
		}
		gocv.PutText(img, line, image.Pt(10, y), gocv.FontHersheySimplex, 0.5, c, 1)
		y += lineHeight
	}
}

// DrawTerminal draws the most recent log lines in the top left corner
func (r *Renderer) DrawTerminal(img *gocv.Mat) {
	if r.history == nil {
		return
	}
	msgs := r.history()
	if len(msgs) > r.maxLines {
		msgs = msgs[len(msgs)-r.maxLines:]
	}
	y := 18
	for _, m := range msgs {
		if len(m) > 90 {
			m = m[:87] + "..."
		}
		gocv.PutText(img, m, image.Pt(10, y), gocv.FontHersheySimplex, 0.4, r.textColor, 1)
		y += 14
	}
}

// StatusLines formats the status panel text
func StatusLines(st dispatch.Status) []string {
	mode := st.Mode.String()
	if st.ManualOnly {
		mode += " | manual only (SPACE to send)"
	} else {
		mode += " | auto send"
	}

	watch := st.Watch.String()

	last := "Last send: -"
	if st.LastSend != nil {
		last = fmt.Sprintf("Last send %s: %s", st.LastSend.At.Format("15:04:05"), st.LastSend)
	}
	return []string{mode, watch, last}
}
