package detection

import (
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"
)

func square(x0, y0, size int) Contour {
	return Contour{
		image.Pt(x0, y0),
		image.Pt(x0+size, y0),
		image.Pt(x0+size, y0+size),
		image.Pt(x0, y0+size),
	}
}

func TestContourMomentsSquare(t *testing.T) {
	m := ContourMoments(square(0, 0, 100))
	if m.M00 != 10000 {
		t.Fatalf("m00 = %f, want 10000", m.M00)
	}
	if cx, cy := m.M10/m.M00, m.M01/m.M00; cx != 50 || cy != 50 {
		t.Errorf("centroid = (%f,%f), want (50,50)", cx, cy)
	}

	// Reversed orientation flips the sign of m00 but not the area
	rev := Contour{image.Pt(0, 100), image.Pt(100, 100), image.Pt(100, 0), image.Pt(0, 0)}
	if got := ContourArea(rev); got != 10000 {
		t.Errorf("area of reversed contour = %f, want 10000", got)
	}
}

func TestContourAreaNonConvex(t *testing.T) {
	// L shape, same value cv::contourArea gives for these vertices
	l := Contour{
		image.Pt(0, 0), image.Pt(40, 0), image.Pt(40, 10),
		image.Pt(10, 10), image.Pt(10, 30), image.Pt(0, 30),
	}
	if got := ContourArea(l); got != 600 {
		t.Errorf("area = %f, want 600", got)
	}
	if got := ContourArea(l[:2]); got != 0 {
		t.Errorf("area of a segment = %f, want 0", got)
	}
}

func TestLongestAxisPairIsMaximal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(30)
		c := make(Contour, n)
		for i := range c {
			c[i] = image.Pt(rng.Intn(200), rng.Intn(200))
		}

		a, b, ok := LongestAxisPair(c)
		if !ok {
			t.Fatalf("trial %d: LongestAxisPair failed on %d points", trial, n)
		}
		_, got := AxisAngleLength(a, b)
		for i := range c {
			for j := i + 1; j < len(c); j++ {
				if _, d := AxisAngleLength(c[i], c[j]); d > got {
					t.Fatalf("trial %d: pair %v-%v has length %f > returned %f", trial, c[i], c[j], d, got)
				}
			}
		}
	}
}

func TestLongestAxisPairFirstMaximumWins(t *testing.T) {
	// Both diagonals have the same length; the (0,2) pair is seen first.
	a, b, ok := LongestAxisPair(square(0, 0, 10))
	if !ok {
		t.Fatal("expected ok")
	}
	if a != image.Pt(0, 0) || b != image.Pt(10, 10) {
		t.Errorf("got %v-%v, want (0,0)-(10,10)", a, b)
	}

	if _, _, ok := LongestAxisPair(Contour{image.Pt(1, 1)}); ok {
		t.Error("single point contour should not yield an axis")
	}
}

func TestShortestAxisPair(t *testing.T) {
	center := image.Pt(0, 0)
	c := Contour{image.Pt(0, -3), image.Pt(10, 0), image.Pt(0, 4), image.Pt(-10, 0)}

	a, b, ok := ShortestAxisPair(c, center, DefaultAngleTolerance)
	if !ok {
		t.Fatal("expected ok")
	}
	if a != image.Pt(0, -3) {
		t.Errorf("A = %v, want nearest point (0,-3)", a)
	}
	if b != image.Pt(0, 4) {
		t.Errorf("B = %v, want opposite point (0,4)", b)
	}
	angle, length := AxisAngleLength(a, b)
	if math.Abs(angle-90) > 1e-9 || math.Abs(length-7) > 1e-9 {
		t.Errorf("angle/length = %f/%f, want 90/7", angle, length)
	}
}

func TestShortestAxisPairNoOppositeFallsBackToA(t *testing.T) {
	center := image.Pt(0, 0)
	c := Contour{image.Pt(0, -3), image.Pt(10, 0), image.Pt(-10, 0)}

	a, b, _ := ShortestAxisPair(c, center, DefaultAngleTolerance)
	if a != b {
		t.Fatalf("expected B == A when nothing lies opposite, got A=%v B=%v", a, b)
	}
	if _, length := AxisAngleLength(a, b); length != 0 {
		t.Errorf("length = %f, want 0", length)
	}
}

func TestShortestAxisPairWrapsBearing(t *testing.T) {
	// A sits at bearing π so its opposite is 2π, which must match bearing 0.
	center := image.Pt(0, 0)
	c := Contour{image.Pt(-3, 0), image.Pt(8, 0), image.Pt(0, 9), image.Pt(0, -9)}

	a, b, _ := ShortestAxisPair(c, center, DefaultAngleTolerance)
	if a != image.Pt(-3, 0) || b != image.Pt(8, 0) {
		t.Errorf("got A=%v B=%v, want (-3,0) and (8,0)", a, b)
	}
}

func TestShortestAxisPairNearestAIsGlobal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	center := image.Pt(100, 100)
	for trial := 0; trial < 50; trial++ {
		c := make(Contour, 3+rng.Intn(40))
		for i := range c {
			c[i] = image.Pt(rng.Intn(200), rng.Intn(200))
		}
		a, _, _ := ShortestAxisPair(c, center, DefaultAngleTolerance)
		da := pointDist(a, center)
		for _, p := range c {
			if pointDist(p, center) < da {
				t.Fatalf("trial %d: %v is nearer to center than A=%v", trial, p, a)
			}
		}
	}
}

func TestLocate(t *testing.T) {
	small := square(300, 300, 10)
	big := square(0, 0, 100)

	tests := []struct {
		name     string
		contours []Contour
		params   Params
		wantErr  error
		center   image.Point
		length   float64
	}{
		{"empty", nil, Params{MinArea: 10}, ErrNoContour, image.Point{}, 0},
		{"below min area", []Contour{big}, Params{MinArea: 10000}, ErrNoContour, image.Point{}, 0},
		{"largest wins shortest", []Contour{small, big}, Params{MinArea: 500}, nil, image.Pt(50, 50), math.Hypot(100, 100)},
		{"largest wins longest", []Contour{small, big}, Params{MinArea: 500, Mode: LongestAxis}, nil, image.Pt(50, 50), math.Hypot(100, 100)},
		{"degenerate", []Contour{{image.Pt(0, 0), image.Pt(10, 0), image.Pt(20, 0)}}, Params{MinArea: -1}, ErrDegenerateContour, image.Point{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := Locate(tt.contours, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if det.Center != tt.center {
				t.Errorf("center = %v, want %v", det.Center, tt.center)
			}
			if math.Abs(det.PixelLength-tt.length) > 1e-9 {
				t.Errorf("length = %f, want %f", det.PixelLength, tt.length)
			}
			if !det.Valid() {
				t.Error("expected a valid detection")
			}
		})
	}
}

func TestLocateRejectsZeroLengthAxis(t *testing.T) {
	// Triangle whose centroid has no contour point opposite the nearest vertex
	// within a tiny tolerance.
	tri := Contour{image.Pt(0, 0), image.Pt(90, 0), image.Pt(0, 90)}
	det, err := Locate([]Contour{tri}, Params{MinArea: 1, AngleTolerance: 1e-6})
	if !errors.Is(err, ErrZeroLengthAxis) {
		t.Fatalf("err = %v, want ErrZeroLengthAxis", err)
	}
	if det.Valid() {
		t.Error("zero-length detection must not be valid")
	}
}

func TestParseAxisMode(t *testing.T) {
	for in, want := range map[string]AxisMode{"": ShortestAxis, "Shortest": ShortestAxis, "LONGEST": LongestAxis} {
		got, err := ParseAxisMode(in)
		if err != nil || got != want {
			t.Errorf("ParseAxisMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAxisMode("diagonal"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestEstimateDistance(t *testing.T) {
	// 90° HFOV: tan(45°) = 1, so distance = real*width/(2*pixels)
	got := EstimateDistance(100, 50, 640, 90, 1)
	if math.Abs(got-160) > 1e-9 {
		t.Errorf("distance = %f, want 160", got)
	}
	if EstimateDistance(0, 50, 640, 90, 1) != 0 {
		t.Error("non-positive pixel length must give 0")
	}
}
