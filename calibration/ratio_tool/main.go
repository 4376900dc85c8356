package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"posecam/calibration"
	"posecam/config"
	"posecam/detection"
	"posecam/vision"

	"gocv.io/x/gocv"
)

// RatioTool measures the pixel length of a reference object's longest axis
// and appends each sample to a timestamped log file.
type RatioTool struct {
	snap         *config.Snapshot
	realLengthCM float64
	logPath      string
	count        int
}

func NewRatioTool(snap *config.Snapshot, realLengthCM float64, logDir string) *RatioTool {
	name := fmt.Sprintf("calibration_log_%s.txt", time.Now().Format("20060102_150405"))
	return &RatioTool{
		snap:         snap,
		realLengthCM: realLengthCM,
		logPath:      filepath.Join(logDir, name),
	}
}

// Run opens the camera and loops until q/ESC or a capture failure
func (rt *RatioTool) Run() error {
	fmt.Printf("PIXEL / LENGTH RATIO TOOL\n")
	fmt.Printf("=========================\n")
	fmt.Printf("Reference length: %.1f cm\n", rt.realLengthCM)
	fmt.Printf("Camera:           %d\n", rt.snap.Camera.CameraNumber)
	fmt.Printf("Log file:         %s\n\n", rt.logPath)
	fmt.Printf("Keys: [SPACE] record measurement  [Q/ESC] quit\n\n")

	cam, err := vision.OpenCamera(rt.snap.Camera)
	if err != nil {
		return err
	}
	defer cam.Close()

	filter := vision.NewEdgeFilter()
	defer filter.Close()

	window := gocv.NewWindow("Ratio Tool")
	defer window.Close()

	params := rt.snap.Detection
	params.Mode = detection.LongestAxis

	for {
		frame, ok := cam.Read()
		if !ok {
			return fmt.Errorf("camera frame could not be read")
		}
		f := frame.(*vision.Frame)

		filter.Apply(f.Mat, &f.Edges, rt.snap.EdgeDetection)
		det, err := detection.Locate(vision.ExternalContours(f.Edges), params)

		var current *calibration.Measurement
		if err == nil {
			current = &calibration.Measurement{
				PixelLength:  det.PixelLength,
				RealLengthCM: rt.realLengthCM,
				CenterX:      det.Center.X,
				CenterY:      det.Center.Y,
				AngleDeg:     det.AngleDeg,
			}
			rt.draw(&f.Mat, det, *current)
		}

		window.IMShow(f.Mat)
		key := window.WaitKey(1)
		f.Close()

		switch key & 0xFF {
		case 'q', 27:
			fmt.Printf("Recorded %d measurements to %s\n", rt.count, rt.logPath)
			return nil
		case ' ':
			if current == nil {
				fmt.Printf("No object detected - nothing recorded\n")
				continue
			}
			if err := rt.record(*current); err != nil {
				return err
			}
		}
	}
}

func (rt *RatioTool) draw(img *gocv.Mat, det detection.Detection, m calibration.Measurement) {
	w, h := img.Cols(), img.Rows()
	gray := color.RGBA{80, 80, 80, 255}
	gocv.Line(img, image.Pt(w/2, 0), image.Pt(w/2, h), gray, 1)
	gocv.Line(img, image.Pt(0, h/2), image.Pt(w, h/2), gray, 1)

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{det.Contour})
	gocv.DrawContours(img, pv, -1, color.RGBA{0, 255, 0, 255}, 2)
	pv.Close()
	gocv.Circle(img, det.Center, 5, color.RGBA{0, 0, 255, 255}, -1)
	gocv.Line(img, det.AxisA, det.AxisB, color.RGBA{255, 255, 0, 255}, 2)

	white := color.RGBA{255, 255, 255, 255}
	lines := []string{
		fmt.Sprintf("Pixel length: %.1f px", m.PixelLength),
		fmt.Sprintf("Ratio: %.4f cm/px | %.2f px/cm", m.CMPerPixel(), m.PixelsPerCM()),
		fmt.Sprintf("Angle: %.1f deg", m.AngleDeg),
	}
	for i, line := range lines {
		gocv.PutText(img, line, image.Pt(10, 25+22*i), gocv.FontHersheySimplex, 0.6, white, 2)
	}
}

func (rt *RatioTool) record(m calibration.Measurement) error {
	rt.count++
	m.Index = rt.count
	m.At = time.Now()

	f, err := os.OpenFile(rt.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(m.LogBlock()); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	fmt.Printf("Recorded measurement #%d: %.2f px = %.1f cm (%.6f cm/px)\n",
		m.Index, m.PixelLength, m.RealLengthCM, m.CMPerPixel())
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	lengthCM := flag.Float64("length-cm", 19.0, "Real length of the reference object's longest axis in cm")
	logDir := flag.String("log-dir", ".", "Directory for calibration logs")
	flag.Parse()

	snap, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := NewRatioTool(snap, *lengthCM, *logDir).Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
