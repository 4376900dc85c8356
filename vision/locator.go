package vision

import (
	"errors"
	"fmt"

	"posecam/config"
	"posecam/detection"
	"posecam/dispatch"
)

// ErrUnsupportedFrame is returned when a frame did not come from Camera
var ErrUnsupportedFrame = errors.New("frame is not a vision frame")

// SnapshotSource yields the current configuration
type SnapshotSource interface {
	Current() *config.Snapshot
}

// ContourLocator runs the edge chain and the geometry engine on each frame.
// Parameters are read from the current snapshot every call.
type ContourLocator struct {
	config SnapshotSource
	filter *EdgeFilter
}

func NewContourLocator(cfg SnapshotSource) *ContourLocator {
	return &ContourLocator{config: cfg, filter: NewEdgeFilter()}
}

// Locate stores the edge mask on the frame and returns the detection
func (l *ContourLocator) Locate(frame dispatch.Frame) (detection.Detection, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return detection.Detection{}, ErrUnsupportedFrame
	}
	snap := l.config.Current()

	l.filter.Apply(f.Mat, &f.Edges, snap.EdgeDetection)
	contours := ExternalContours(f.Edges)

	det, err := detection.Locate(contours, snap.Detection)
	if err != nil {
		return det, err
	}

	realMM := snap.Object.RealShortestAxisMM
	if snap.Detection.Mode == detection.LongestAxis {
		realMM = snap.Object.RealLongestAxisMM
	}
	if realMM > 0 {
		det.DistanceMM = detection.EstimateDistance(det.PixelLength, realMM, f.Mat.Cols(),
			snap.Camera.HFOVDegree, snap.Camera.FOVCorrectionFactor)
	}
	debugMsgVerbose("VISION", fmt.Sprintf("%d contours, picked area %.0f", len(contours), det.Area))
	return det, nil
}

// Close releases the filter buffers
func (l *ContourLocator) Close() {
	l.filter.Close()
}
