package calibration

import (
	"fmt"
	"strings"
	"time"
)

// Measurement is one pixel-to-length ratio sample of a reference object
type Measurement struct {
	Index        int
	At           time.Time
	PixelLength  float64
	RealLengthCM float64
	CenterX      int
	CenterY      int
	AngleDeg     float64
}

// CMPerPixel is zero when nothing was measured
func (m Measurement) CMPerPixel() float64 {
	if m.PixelLength <= 0 {
		return 0
	}
	return m.RealLengthCM / m.PixelLength
}

// PixelsPerCM is zero for a non-positive reference length
func (m Measurement) PixelsPerCM() float64 {
	if m.RealLengthCM <= 0 {
		return 0
	}
	return m.PixelLength / m.RealLengthCM
}

// LogBlock formats the measurement as appended to the calibration log
func (m Measurement) LogBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Measurement #%d] %s\n", m.Index, m.At.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  pixel length:   %.2f px\n", m.PixelLength)
	fmt.Fprintf(&b, "  real length:    %.2f cm\n", m.RealLengthCM)
	fmt.Fprintf(&b, "  ratio cm/px:    %.6f\n", m.CMPerPixel())
	fmt.Fprintf(&b, "  ratio px/cm:    %.4f\n", m.PixelsPerCM())
	fmt.Fprintf(&b, "  center:         (%d, %d)\n", m.CenterX, m.CenterY)
	fmt.Fprintf(&b, "  angle:          %.2f deg\n", m.AngleDeg)
	b.WriteString(strings.Repeat("-", 60) + "\n")
	return b.String()
}
