package vision

import (
	"posecam/detection"
	"posecam/dispatch"
	"posecam/overlay"

	"gocv.io/x/gocv"
)

// Window shows the annotated camera view and the edge mask, and maps keys
// to loop commands.
type Window struct {
	camera   *gocv.Window
	edges    *gocv.Window
	renderer *overlay.Renderer
	display  gocv.Mat
}

func NewWindow(renderer *overlay.Renderer, showEdges bool) *Window {
	w := &Window{
		camera:   gocv.NewWindow("Camera"),
		renderer: renderer,
		display:  gocv.NewMat(),
	}
	if showEdges {
		w.edges = gocv.NewWindow("Edges")
	}
	debugMsg("WINDOW", "Keys: q/ESC quit | SPACE send | r reload config")
	return w
}

// Show renders the frame and polls the keyboard once
func (w *Window) Show(frame dispatch.Frame, det *detection.Detection, st dispatch.Status) dispatch.Command {
	f, ok := frame.(*Frame)
	if !ok {
		return dispatch.CommandNone
	}

	f.Mat.CopyTo(&w.display)
	w.renderer.Render(&w.display, det, st)
	w.camera.IMShow(w.display)
	if w.edges != nil && !f.Edges.Empty() {
		w.edges.IMShow(f.Edges)
	}
	return KeyCommand(w.camera.WaitKey(1))
}

// Close destroys the windows
func (w *Window) Close() {
	w.display.Close()
	w.camera.Close()
	if w.edges != nil {
		w.edges.Close()
	}
}

// KeyCommand maps a WaitKey result to a loop command
func KeyCommand(key int) dispatch.Command {
	if key < 0 {
		return dispatch.CommandNone
	}
	switch key & 0xFF {
	case 'q', 27:
		return dispatch.CommandQuit
	case ' ':
		return dispatch.CommandSend
	case 'r', 'R':
		return dispatch.CommandReload
	}
	return dispatch.CommandNone
}

// HeadlessDisplay is used with -no-window; commands arrive through the console
type HeadlessDisplay struct{}

func (HeadlessDisplay) Show(dispatch.Frame, *detection.Detection, dispatch.Status) dispatch.Command {
	return dispatch.CommandNone
}
