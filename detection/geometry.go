package detection

import (
	"image"
	"math"
)

// Moments holds the spatial moments of a closed polygon
type Moments struct {
	M00, M10, M01 float64
}

// ContourMoments computes polygon moments with Green's theorem, matching
// OpenCV's contour moments. M00 is signed by contour orientation.
func ContourMoments(c Contour) Moments {
	var m Moments
	n := len(c)
	if n < 3 {
		return m
	}
	for i := 0; i < n; i++ {
		p := c[i]
		q := c[(i+1)%n]
		xi, yi := float64(p.X), float64(p.Y)
		xj, yj := float64(q.X), float64(q.Y)
		a := xi*yj - xj*yi
		m.M00 += a
		m.M10 += a * (xi + xj)
		m.M01 += a * (yi + yj)
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6
	return m
}

// ContourArea returns the unsigned polygon area (shoelace)
func ContourArea(c Contour) float64 {
	return math.Abs(ContourMoments(c).M00)
}

// LongestAxisPair examines every point pair and returns the farthest pair.
// Comparison is strict, so the first maximum in i<j iteration order wins.
func LongestAxisPair(c Contour) (a, b image.Point, ok bool) {
	if len(c) < 2 {
		return image.Point{}, image.Point{}, false
	}
	maxSq := -1
	for i := 0; i < len(c); i++ {
		for j := i + 1; j < len(c); j++ {
			dx := c[j].X - c[i].X
			dy := c[j].Y - c[i].Y
			d := dx*dx + dy*dy
			if d > maxSq {
				maxSq = d
				a, b = c[i], c[j]
			}
		}
	}
	return a, b, true
}

// ShortestAxisPair finds the contour point A nearest to center, then the point B
// nearest to center among those whose bearing lies within tolerance (radians) of
// the bearing opposite A. If no point qualifies B equals A.
func ShortestAxisPair(c Contour, center image.Point, tolerance float64) (a, b image.Point, ok bool) {
	if len(c) == 0 {
		return image.Point{}, image.Point{}, false
	}

	bestA := math.Inf(1)
	for _, p := range c {
		if d := pointDist(p, center); d < bestA {
			bestA = d
			a = p
		}
	}

	opposite := bearing(a, center) + math.Pi
	b = a
	bestB := math.Inf(1)
	for _, p := range c {
		if angularDiff(bearing(p, center), opposite) >= tolerance {
			continue
		}
		if d := pointDist(p, center); d < bestB {
			bestB = d
			b = p
		}
	}
	return a, b, true
}

// AxisAngleLength returns atan2(dy,dx) in degrees and the Euclidean length of A->B
func AxisAngleLength(a, b image.Point) (angleDeg, length float64) {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Atan2(dy, dx) * 180 / math.Pi, math.Hypot(dx, dy)
}

// EstimateDistance triangulates camera-to-object distance (mm) from the pixel length of
// a feature with known physical length, using the horizontal field of view.
func EstimateDistance(pixelLength, realLengthMM float64, imageWidth int, hfovDeg, fovCorrection float64) float64 {
	if pixelLength <= 0 || imageWidth <= 0 || hfovDeg <= 0 {
		return 0
	}
	if fovCorrection <= 0 {
		fovCorrection = 1
	}
	hfov := hfovDeg * math.Pi / 180 * fovCorrection
	return (realLengthMM * float64(imageWidth)) / (2 * pixelLength * math.Tan(hfov/2))
}

func bearing(p, center image.Point) float64 {
	return math.Atan2(float64(p.Y-center.Y), float64(p.X-center.X))
}

// angularDiff is the absolute difference of two angles folded into [0, π]
func angularDiff(x, y float64) float64 {
	d := math.Mod(math.Abs(x-y), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

func pointDist(p, q image.Point) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}
