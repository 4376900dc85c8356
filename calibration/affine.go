package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine maps pixel (px,py) to robot (x,y):
//
//	x = A[0][0]*px + A[0][1]*py + A[0][2]
//	y = A[1][0]*px + A[1][1]*py + A[1][2]
type Affine [2][3]float64

// Apply transforms a pixel coordinate
func (a Affine) Apply(px, py float64) (x, y float64) {
	x = a[0][0]*px + a[0][1]*py + a[0][2]
	y = a[1][0]*px + a[1][1]*py + a[1][2]
	return x, y
}

// FitAffine solves the exact affine map defined by the first three
// correspondences. Extra points are ignored.
func FitAffine(points []Point) (Affine, error) {
	if len(points) < MinPoints {
		return Affine{}, fmt.Errorf("%w: need %d, got %d", ErrInsufficientCalibration, MinPoints, len(points))
	}

	src := mat.NewDense(3, 3, nil)
	dst := mat.NewDense(3, 2, nil)
	for i := 0; i < 3; i++ {
		p := points[i]
		src.SetRow(i, []float64{p.Pixel[0], p.Pixel[1], 1})
		dst.SetRow(i, []float64{p.Robot[0], p.Robot[1]})
	}

	if math.Abs(mat.Det(src)) < 1e-9 {
		return Affine{}, fmt.Errorf("%w: %s, %s, %s", ErrSingularCalibration, points[0].Name, points[1].Name, points[2].Name)
	}

	var coef mat.Dense
	if err := coef.Solve(src, dst); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Affine{}, fmt.Errorf("affine solve: %w", err)
		}
		debugMsg("CALIBRATION", fmt.Sprintf("Affine fit is ill-conditioned (cond=%.3g)", float64(cond)))
	}

	var a Affine
	for k := 0; k < 3; k++ {
		a[0][k] = coef.At(k, 0)
		a[1][k] = coef.At(k, 1)
	}
	return a, nil
}
