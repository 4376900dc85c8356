package detection

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Global debug functions for detection package
var (
	debugMsgFunc        func(string, string, ...string)
	debugMsgVerboseFunc func(string, string, ...string)
)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction allows main package to provide the verbose debug function
func SetDebugVerboseFunction(fn func(string, string, ...string)) {
	debugMsgVerboseFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

func debugMsgVerbose(component, message string, ids ...string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message, ids...)
	}
}

var (
	// ErrNoContour means no contour in the mask exceeded the minimum area.
	ErrNoContour = errors.New("no qualifying contour")
	// ErrDegenerateContour means the selected contour has a zero area moment.
	ErrDegenerateContour = errors.New("degenerate contour: zero area moment")
	// ErrZeroLengthAxis is returned with a Detection whose axis endpoints coincide.
	ErrZeroLengthAxis = errors.New("zero-length axis")
)

// AxisMode selects which characteristic axis is measured on the contour
type AxisMode int

const (
	ShortestAxis AxisMode = iota
	LongestAxis
)

func (m AxisMode) String() string {
	switch m {
	case ShortestAxis:
		return "shortest"
	case LongestAxis:
		return "longest"
	default:
		return "unknown"
	}
}

// ParseAxisMode accepts "shortest" or "longest" (case-insensitive). Empty means shortest.
func ParseAxisMode(s string) (AxisMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shortest":
		return ShortestAxis, nil
	case "longest":
		return LongestAxis, nil
	default:
		return ShortestAxis, fmt.Errorf("unknown axis mode %q (want shortest or longest)", s)
	}
}

// DefaultAngleTolerance is the bearing tolerance used by shortest-axis search (about 15 degrees).
const DefaultAngleTolerance = 0.26

// Contour is an ordered sequence of integer points bounding a detected region
type Contour []image.Point

// Params controls Locate
type Params struct {
	MinArea        float64
	Mode           AxisMode
	AngleTolerance float64 // radians, shortest-axis mode only
}

// Detection is the per-frame localization result
type Detection struct {
	Center      image.Point
	AxisA       image.Point
	AxisB       image.Point
	AngleDeg    float64
	PixelLength float64
	Area        float64
	DistanceMM  float64 // informational pinhole estimate, 0 when unknown
	Contour     Contour
}

// Valid reports whether the detection carries a usable (non zero-length) axis
func (d Detection) Valid() bool {
	return d.PixelLength > 0 && d.AxisA != d.AxisB
}

func (d Detection) String() string {
	return fmt.Sprintf("center=(%d,%d) axis=(%d,%d)->(%d,%d) angle=%.1f° length=%.1fpx area=%.0f",
		d.Center.X, d.Center.Y, d.AxisA.X, d.AxisA.Y, d.AxisB.X, d.AxisB.Y, d.AngleDeg, d.PixelLength, d.Area)
}

// Locate selects the largest contour, computes its centroid and characteristic axis.
// When the axis degenerates to a single point the detection is returned together
// with ErrZeroLengthAxis so the caller can reject it.
func Locate(contours []Contour, p Params) (Detection, error) {
	best := -1
	bestArea := 0.0
	for i, c := range contours {
		area := ContourArea(c)
		if best == -1 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best == -1 || bestArea <= p.MinArea {
		return Detection{}, ErrNoContour
	}

	c := contours[best]
	m := ContourMoments(c)
	if m.M00 == 0 {
		return Detection{}, ErrDegenerateContour
	}
	center := image.Pt(int(m.M10/m.M00), int(m.M01/m.M00))

	det := Detection{Center: center, Area: bestArea, Contour: c}

	var ok bool
	switch p.Mode {
	case LongestAxis:
		det.AxisA, det.AxisB, ok = LongestAxisPair(c)
	default:
		tol := p.AngleTolerance
		if tol <= 0 {
			tol = DefaultAngleTolerance
		}
		det.AxisA, det.AxisB, ok = ShortestAxisPair(c, center, tol)
	}
	if ok {
		det.AngleDeg, det.PixelLength = AxisAngleLength(det.AxisA, det.AxisB)
	}

	debugMsgVerbose("GEOMETRY", fmt.Sprintf("%s mode: %s", p.Mode, det))

	if !ok || det.PixelLength == 0 {
		return det, ErrZeroLengthAxis
	}
	return det, nil
}
