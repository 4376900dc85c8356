package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Global debug function for calibration package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

// MMPerCM converts configured centimetre offsets to the robot's millimetre unit
const MMPerCM = 10.0

// MinPoints is the number of correspondences an affine fit needs
const MinPoints = 3

var (
	// ErrInsufficientCalibration means the selected zone has fewer than MinPoints points.
	ErrInsufficientCalibration = errors.New("insufficient calibration points")
	// ErrSingularCalibration means the first three pixel points are collinear.
	ErrSingularCalibration = errors.New("calibration points are collinear")
	// ErrUnknownZone means no authoritative pose exists for the zone; the
	// accompanying Result is a degraded fallback.
	ErrUnknownZone = errors.New("unknown zone")
)

// Point is a fixed correspondence between image space and robot space
type Point struct {
	Name  string
	Pixel [2]float64
	Robot [3]float64
}

// ZoneOffset is a per-zone correction in centimetres applied after the transform
type ZoneOffset struct {
	OffsetXCM float64
	OffsetYCM float64
	OffsetZCM float64
}

// MM returns the offset as a robot-frame displacement in millimetres
func (o ZoneOffset) MM() r3.Vector {
	return r3.Vector{X: o.OffsetXCM, Y: o.OffsetYCM, Z: o.OffsetZCM}.Mul(MMPerCM)
}

// Orientation holds roll/pitch/yaw in degrees
type Orientation struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// ZoneAnswer is the authoritative, pre-measured pose of a zone
type ZoneAnswer struct {
	X, Y, Z          float64
	Roll, Pitch, Yaw float64
}

// Pose converts the answer into a Pose
func (a ZoneAnswer) Pose() Pose {
	return Pose{
		Position: r3.Vector{X: a.X, Y: a.Y, Z: a.Z},
		Roll:     a.Roll,
		Pitch:    a.Pitch,
		Yaw:      a.Yaw,
	}
}

// Pose is a robot pose: position in mm, orientation in degrees
type Pose struct {
	Position r3.Vector
	Roll     float64
	Pitch    float64
	Yaw      float64
}

// Values returns x, y, z, roll, pitch, yaw
func (p Pose) Values() [6]float64 {
	return [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.Roll, p.Pitch, p.Yaw}
}

// Rounded returns Values rounded to two decimals, the precision sent to the store
func (p Pose) Rounded() [6]float64 {
	v := p.Values()
	for i := range v {
		v[i] = math.Round(v[i]*100) / 100
	}
	return v
}

func (p Pose) String() string {
	return fmt.Sprintf("X=%.2f Y=%.2f Z=%.2f R=%.2f P=%.2f Yaw=%.2f",
		p.Position.X, p.Position.Y, p.Position.Z, p.Roll, p.Pitch, p.Yaw)
}
