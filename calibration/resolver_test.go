package calibration

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-3

func near(a, b float64) bool {
	return math.Abs(a-b) < tol
}

func squarePoints() []Point {
	return []Point{
		{Name: "P1", Pixel: [2]float64{100, 100}, Robot: [3]float64{0, 0, 200}},
		{Name: "P2", Pixel: [2]float64{200, 100}, Robot: [3]float64{100, 0, 200}},
		{Name: "P3", Pixel: [2]float64{100, 200}, Robot: [3]float64{0, 100, 200}},
	}
}

func intPtr(v int) *int { return &v }

func testTable() *Table {
	return &Table{
		Points: map[int][]Point{
			1: {
				{Name: "A", Pixel: [2]float64{50, 40}, Robot: [3]float64{310.5, -120.2, 180}},
				{Name: "B", Pixel: [2]float64{600, 70}, Robot: [3]float64{305.1, 150.8, 180}},
				{Name: "C", Pixel: [2]float64{80, 450}, Robot: [3]float64{120.4, -110.0, 180}},
			},
			2: squarePoints(),
			3: squarePoints()[:2],
		},
		Offsets: map[int]ZoneOffset{
			2: {OffsetXCM: 1.0},
		},
		Answers: map[int]ZoneAnswer{
			1: {X: 300, Y: 0, Z: 210.5, Roll: 180, Pitch: 0, Yaw: 90},
			2: {X: 50, Y: 50, Z: 206.2, Roll: 179.5, Pitch: 1.5, Yaw: 45},
			3: {X: 0, Y: 0, Z: 190, Roll: 180, Pitch: 0, Yaw: 0},
		},
		DefaultZone: 2,
		Base:        Orientation{Roll: 180, Pitch: 0, Yaw: 0},
	}
}

func TestFitAffineRoundTrip(t *testing.T) {
	for zone, pts := range map[int][]Point{1: testTable().Points[1], 2: squarePoints()} {
		a, err := FitAffine(pts)
		if err != nil {
			t.Fatalf("zone %d: %v", zone, err)
		}
		for _, p := range pts {
			x, y := a.Apply(p.Pixel[0], p.Pixel[1])
			if !near(x, p.Robot[0]) || !near(y, p.Robot[1]) {
				t.Errorf("zone %d point %s: got (%f,%f), want (%f,%f)", zone, p.Name, x, y, p.Robot[0], p.Robot[1])
			}
		}
	}
}

func TestFitAffineIdentityScaled(t *testing.T) {
	a, err := FitAffine(squarePoints())
	if err != nil {
		t.Fatal(err)
	}
	if x, y := a.Apply(150, 150); !near(x, 50) || !near(y, 50) {
		t.Errorf("(150,150) -> (%f,%f), want (50,50)", x, y)
	}
}

func TestFitAffineErrors(t *testing.T) {
	if _, err := FitAffine(squarePoints()[:2]); !errors.Is(err, ErrInsufficientCalibration) {
		t.Errorf("2 points: err = %v, want ErrInsufficientCalibration", err)
	}

	collinear := []Point{
		{Pixel: [2]float64{0, 0}},
		{Pixel: [2]float64{10, 10}},
		{Pixel: [2]float64{20, 20}},
	}
	if _, err := FitAffine(collinear); !errors.Is(err, ErrSingularCalibration) {
		t.Errorf("collinear: err = %v, want ErrSingularCalibration", err)
	}
}

func TestResolveKnownZoneUsesAnswerForZAndOrientation(t *testing.T) {
	tab := testTable()
	tab.Offsets = nil

	res, err := tab.Resolve(150, 150, intPtr(2))
	if err != nil {
		t.Fatal(err)
	}
	if res.Degraded {
		t.Fatal("known zone must not be degraded")
	}
	p := res.Pose
	if !near(p.Position.X, 50) || !near(p.Position.Y, 50) {
		t.Errorf("XY = (%f,%f), want (50,50)", p.Position.X, p.Position.Y)
	}
	// Calibration points say Z=200; the answer (206.2) must win.
	if p.Position.Z != 206.2 || p.Roll != 179.5 || p.Pitch != 1.5 || p.Yaw != 45 {
		t.Errorf("Z/orientation = %v, want answer values", p)
	}
}

func TestResolveAppliesOffsets(t *testing.T) {
	tab := testTable()

	res, err := tab.Resolve(150, 150, intPtr(2))
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.Pose.Position.X, 60) || !near(res.Pose.Position.Y, 50) {
		t.Errorf("XY = (%f,%f), want (60,50)", res.Pose.Position.X, res.Pose.Position.Y)
	}

	tab.Offsets[2] = ZoneOffset{OffsetZCM: -0.5}
	res, err = tab.Resolve(150, 150, intPtr(2))
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.Pose.Position.Z, 201.2) {
		t.Errorf("Z = %f, want 201.2", res.Pose.Position.Z)
	}
}

func TestZoneOffsetMM(t *testing.T) {
	got := ZoneOffset{OffsetXCM: 1.5, OffsetYCM: -0.3, OffsetZCM: 2}.MM()
	if !near(got.X, 15) || !near(got.Y, -3) || !near(got.Z, 20) {
		t.Errorf("offset = %v, want (15,-3,20)", got)
	}
}

func TestResolveAppliesAllOffsetAxes(t *testing.T) {
	tab := testTable()
	tab.Offsets[2] = ZoneOffset{OffsetXCM: 1.0, OffsetYCM: -2.0, OffsetZCM: 0.5}

	res, err := tab.Resolve(150, 150, intPtr(2))
	if err != nil {
		t.Fatal(err)
	}
	p := res.Pose.Position
	if !near(p.X, 60) || !near(p.Y, 30) || !near(p.Z, 211.2) {
		t.Errorf("position = %v, want (60,30,211.2)", p)
	}
}

func TestResolveInsufficientCalibration(t *testing.T) {
	res, err := testTable().Resolve(150, 150, intPtr(3))
	if !errors.Is(err, ErrInsufficientCalibration) {
		t.Fatalf("err = %v, want ErrInsufficientCalibration", err)
	}
	if res != (Result{}) {
		t.Errorf("expected no transformed value, got %+v", res)
	}
}

func TestResolveUnknownZoneFallsBack(t *testing.T) {
	tab := testTable()
	tab.FallbackZ = 250

	for name, zone := range map[string]*int{"unrecognized": intPtr(9), "absent": nil} {
		t.Run(name, func(t *testing.T) {
			res, err := tab.Resolve(150, 150, zone)
			if !errors.Is(err, ErrUnknownZone) {
				t.Fatalf("err = %v, want ErrUnknownZone", err)
			}
			if !res.Degraded || res.Reason == "" {
				t.Errorf("result must be flagged degraded with a reason: %+v", res)
			}
			if res.Zone != 2 {
				t.Errorf("used zone = %d, want default 2", res.Zone)
			}
			p := res.Pose
			// Default zone set (with its 1cm X offset), fallback Z, base orientation.
			if !near(p.Position.X, 60) || !near(p.Position.Y, 50) {
				t.Errorf("XY = (%f,%f), want (60,50)", p.Position.X, p.Position.Y)
			}
			if p.Position.Z != 250 || p.Roll != 180 || p.Pitch != 0 || p.Yaw != 0 {
				t.Errorf("fallback Z/orientation wrong: %v", p)
			}
		})
	}
}

func TestResolveFallbackZFromFirstPoint(t *testing.T) {
	res, err := testTable().Resolve(150, 150, nil)
	if !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("err = %v", err)
	}
	if res.Pose.Position.Z != 200 {
		t.Errorf("Z = %f, want first calibration point Z 200", res.Pose.Position.Z)
	}
}

func TestPoseRounded(t *testing.T) {
	p := ZoneAnswer{X: 1.005, Y: -2.344, Z: 206.199, Roll: 179.996, Pitch: 0.001, Yaw: 45.125}.Pose()
	got := p.Rounded()
	want := [6]float64{1, -2.34, 206.2, 180, 0, 45.13}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}
}
