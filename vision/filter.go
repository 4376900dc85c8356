package vision

import (
	"image"

	"posecam/config"
	"posecam/detection"

	"gocv.io/x/gocv"
)

// EdgeFilter turns a BGR frame into a closed edge mask:
// gray, Gaussian blur, Canny, dilate, erode, then a morphological close.
type EdgeFilter struct {
	gray    gocv.Mat
	blurred gocv.Mat
}

func NewEdgeFilter() *EdgeFilter {
	return &EdgeFilter{gray: gocv.NewMat(), blurred: gocv.NewMat()}
}

// Apply writes the edge mask of src into dst
func (f *EdgeFilter) Apply(src gocv.Mat, dst *gocv.Mat, cfg config.EdgeConfig) {
	gocv.CvtColor(src, &f.gray, gocv.ColorBGRToGray)

	k := cfg.GaussianBlurKernel
	gocv.GaussianBlur(f.gray, &f.blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	gocv.Canny(f.blurred, dst, cfg.CannyThreshold1, cfg.CannyThreshold2)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.MorphKernel, cfg.MorphKernel))
	defer kernel.Close()

	for i := 0; i < cfg.MorphIterations; i++ {
		gocv.Dilate(*dst, dst, kernel)
	}
	for i := 0; i < cfg.MorphIterations; i++ {
		gocv.Erode(*dst, dst, kernel)
	}
	gocv.MorphologyEx(*dst, dst, gocv.MorphClose, kernel)
}

// Close releases the working buffers
func (f *EdgeFilter) Close() {
	f.gray.Close()
	f.blurred.Close()
}

// ExternalContours extracts the outer contours of a binary mask. Areas are
// not taken from gocv.ContourArea here: detection.ContourArea computes the
// same shoelace value on plain points, so selection stays testable without OpenCV.
func ExternalContours(mask gocv.Mat) []detection.Contour {
	pv := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()

	contours := make([]detection.Contour, 0, pv.Size())
	for _, pts := range pv.ToPoints() {
		contours = append(contours, detection.Contour(pts))
	}
	return contours
}
