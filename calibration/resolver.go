package calibration

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
)

// Table holds all per-zone calibration data. It is treated as immutable once built.
type Table struct {
	Points      map[int][]Point
	Offsets     map[int]ZoneOffset
	Answers     map[int]ZoneAnswer
	DefaultZone int
	Base        Orientation
	// FallbackZ is used when the zone has no answer; zero means the first
	// calibration point's robot Z.
	FallbackZ float64
}

// Result is a resolved pose plus how it was obtained
type Result struct {
	Pose     Pose
	Zone     int // zone whose calibration set was used
	Degraded bool
	Reason   string
}

// Zones returns the zone ids that have calibration points, sorted
func (t *Table) Zones() []int {
	zones := make([]int, 0, len(t.Points))
	for z := range t.Points {
		zones = append(zones, z)
	}
	sort.Ints(zones)
	return zones
}

// Answer returns the authoritative pose of a zone
func (t *Table) Answer(zone int) (ZoneAnswer, bool) {
	a, ok := t.Answers[zone]
	return a, ok
}

// SelectPoints returns the calibration set for zone. An absent or unknown zone
// falls back to DefaultZone; fellBack reports that this happened.
func (t *Table) SelectPoints(zone *int) (points []Point, used int, fellBack bool) {
	if zone != nil {
		if pts, ok := t.Points[*zone]; ok {
			return pts, *zone, false
		}
		debugMsg("FALLBACK", fmt.Sprintf("Zone %d has no calibration set - using default zone %d", *zone, t.DefaultZone))
	} else {
		debugMsg("FALLBACK", fmt.Sprintf("No zone id - using default zone %d calibration set", t.DefaultZone))
	}
	return t.Points[t.DefaultZone], t.DefaultZone, true
}

// Resolve maps the pixel centroid (cx,cy) to a robot pose for zone.
//
// X/Y always come from the zone's affine transform plus offsets. Z and
// orientation come only from the zone's answer. When the zone has no answer
// the returned Result is marked Degraded (fallback Z, base orientation) and
// the error wraps ErrUnknownZone; callers decide whether to use it.
// ErrInsufficientCalibration and ErrSingularCalibration return no pose.
func (t *Table) Resolve(cx, cy float64, zone *int) (Result, error) {
	points, used, _ := t.SelectPoints(zone)
	if len(points) < MinPoints {
		return Result{}, fmt.Errorf("zone %d: %w: need %d, got %d", used, ErrInsufficientCalibration, MinPoints, len(points))
	}

	aff, err := FitAffine(points)
	if err != nil {
		return Result{}, fmt.Errorf("zone %d: %w", used, err)
	}
	x, y := aff.Apply(cx, cy)

	res := Result{Zone: used}
	var answer ZoneAnswer
	var known bool
	if zone != nil {
		answer, known = t.Answers[*zone]
	}

	var z float64
	if known {
		z = answer.Z
		res.Pose = Pose{Roll: answer.Roll, Pitch: answer.Pitch, Yaw: answer.Yaw}
	} else {
		z = t.FallbackZ
		if z == 0 {
			z = points[0].Robot[2]
		}
		res.Pose = Pose{Roll: t.Base.Roll, Pitch: t.Base.Pitch, Yaw: t.Base.Yaw}
		res.Degraded = true
		if zone == nil {
			res.Reason = "zone id absent"
		} else {
			res.Reason = fmt.Sprintf("zone %d has no authoritative pose", *zone)
		}
		err = fmt.Errorf("%w: %s (fallback Z=%.2f, base orientation)", ErrUnknownZone, res.Reason, z)
	}

	res.Pose.Position = r3.Vector{X: x, Y: y, Z: z}
	if off, ok := t.Offsets[used]; ok {
		res.Pose.Position = res.Pose.Position.Add(off.MM())
	}

	if res.Degraded {
		debugMsg("FALLBACK", fmt.Sprintf("Degraded pose from zone %d set: %s (%s)", used, res.Pose, res.Reason))
		return res, err
	}
	debugMsg("RESOLVE", fmt.Sprintf("Pixel (%.0f,%.0f) zone %d -> %s", cx, cy, used, res.Pose))
	return res, nil
}
