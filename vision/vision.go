package vision

import (
	"fmt"

	"posecam/config"
	"posecam/dispatch"

	"gocv.io/x/gocv"
)

// Global debug functions for vision package
var (
	debugMsgFunc        func(string, string, ...string)
	debugMsgVerboseFunc func(string, string, ...string)
)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction sets the per-frame debug function
func SetDebugVerboseFunction(fn func(string, string, ...string)) {
	debugMsgVerboseFunc = fn
}

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

// maxEmptyReads is how many consecutive empty frames Read tolerates before
// reporting the device as unusable
const maxEmptyReads = 30

// Frame is a captured image plus the edge mask derived from it
type Frame struct {
	Mat   gocv.Mat
	Edges gocv.Mat
}

// Close releases both mats
func (f *Frame) Close() error {
	err := f.Mat.Close()
	if e := f.Edges.Close(); err == nil {
		err = e
	}
	return err
}

// Camera wraps an OpenCV capture device
type Camera struct {
	capture *gocv.VideoCapture
	index   int
}

// OpenCamera opens the device and requests the configured resolution
func OpenCamera(cfg config.CameraConfig) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(cfg.CameraNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.CameraNumber, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not available", cfg.CameraNumber)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	debugMsg("CAMERA", fmt.Sprintf("Camera %d opened, requested %dx%d (got %.0fx%.0f)",
		cfg.CameraNumber, cfg.Width, cfg.Height,
		capture.Get(gocv.VideoCaptureFrameWidth), capture.Get(gocv.VideoCaptureFrameHeight)))

	return &Camera{capture: capture, index: cfg.CameraNumber}, nil
}

// Read grabs the next frame. The returned value is a *Frame.
func (c *Camera) Read() (dispatch.Frame, bool) {
	for attempt := 0; attempt < maxEmptyReads; attempt++ {
		img := gocv.NewMat()
		if ok := c.capture.Read(&img); !ok {
			img.Close()
			debugMsg("CAMERA_ERROR", fmt.Sprintf("Failed to read frame from camera %d", c.index))
			return nil, false
		}
		if img.Empty() {
			img.Close()
			continue
		}
		return &Frame{Mat: img, Edges: gocv.NewMat()}, true
	}
	debugMsg("CAMERA_ERROR", fmt.Sprintf("Camera %d returned %d empty frames", c.index, maxEmptyReads))
	return nil, false
}

// Close releases the capture device
func (c *Camera) Close() error {
	debugMsg("CAMERA", fmt.Sprintf("Releasing camera %d", c.index))
	return c.capture.Close()
}
