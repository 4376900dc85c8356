package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"posecam/calibration"
	"posecam/detection"
	"posecam/orders"

	"github.com/google/uuid"
)

// Global debug functions for dispatch package
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

// ErrCaptureFailed ends the loop when the frame source stops yielding frames
var ErrCaptureFailed = errors.New("camera frame could not be read")

const (
	perfReportInterval = 15 * time.Second
	commandBufferSize  = 8
	eventBufferSize    = 32
)

// Options wires the loop's collaborators. State may be nil for manual-only runs.
type Options struct {
	Mode    Mode
	Source  FrameSource
	Locator Locator
	Display Display
	State   StateSource
	Sender  Sender
	Config  ConfigSource
	// DefaultOrderID overrides auto_send.default_order_id for manual sends
	DefaultOrderID string
}

// Loop is the per-frame dispatch cycle: capture, locate, maybe send, render
type Loop struct {
	mode           Mode
	source         FrameSource
	locator        Locator
	display        Display
	state          StateSource
	sender         Sender
	config         ConfigSource
	defaultOrderID string

	lastDetection *detection.Detection
	lastSend      time.Time
	lastSkip      string

	commands  chan Command
	events    chan SendEvent
	stats     *Stats
	published atomic.Pointer[detection.Detection]
	lastEvent atomic.Pointer[SendEvent]
}

// New creates a loop. Mode cannot change afterwards.
func New(opts Options) *Loop {
	l := &Loop{
		mode:           opts.Mode,
		source:         opts.Source,
		locator:        opts.Locator,
		display:        opts.Display,
		state:          opts.State,
		sender:         opts.Sender,
		config:         opts.Config,
		defaultOrderID: opts.DefaultOrderID,
		commands:       make(chan Command, commandBufferSize),
		events:         make(chan SendEvent, eventBufferSize),
		stats:          NewStats(),
	}
	debugMsg("DISPATCH", fmt.Sprintf("Mode: %s", l.mode))
	return l
}

// Mode returns the process mode
func (l *Loop) Mode() Mode { return l.mode }

// Submit queues a command for the next tick. It never blocks; false means
// the queue is full.
func (l *Loop) Submit(cmd Command) bool {
	select {
	case l.commands <- cmd:
		return true
	default:
		debugMsg("DISPATCH_WARN", fmt.Sprintf("Command queue full, dropping %s", cmd))
		return false
	}
}

// Events streams every send attempt. Events are dropped when nobody reads.
func (l *Loop) Events() <-chan SendEvent {
	return l.events
}

// LastDetection returns the most recent successful detection, if any
func (l *Loop) LastDetection() *detection.Detection {
	return l.published.Load()
}

// LastEvent returns the most recent send attempt, if any
func (l *Loop) LastEvent() *SendEvent {
	return l.lastEvent.Load()
}

// WatchState returns the watcher state, or a disarmed state in manual-only runs
func (l *Loop) WatchState() orders.State {
	if l.state == nil {
		return orders.State{}
	}
	return l.state.State()
}

// Run ticks until ctx is cancelled, a quit command arrives or capture fails
func (l *Loop) Run(ctx context.Context) error {
	perfTicker := time.NewTicker(perfReportInterval)
	defer perfTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			debugMsg("DISPATCH", "Stop requested")
			return nil
		case <-perfTicker.C:
			for _, line := range l.stats.GetStats().lines() {
				debugMsg("PERF", line)
			}
		default:
		}

		quit, err := l.Tick(ctx, time.Now())
		if err != nil {
			return err
		}
		if quit {
			debugMsg("DISPATCH", "Quit requested")
			return nil
		}
	}
}

// Tick runs one iteration. quit reports an operator quit command.
func (l *Loop) Tick(ctx context.Context, now time.Time) (quit bool, err error) {
	start := time.Now()
	frame, ok := l.source.Read()
	if !ok || frame == nil {
		debugMsg("CAPTURE_ERROR", "Camera frame could not be read - stopping")
		return false, ErrCaptureFailed
	}
	defer frame.Close()
	l.stats.UpdateCapture(time.Since(start))

	l.locate(frame)

	if l.shouldAutoSend(now) {
		l.resolveAndSend(ctx, TriggerAuto, now)
	}

	status := Status{
		Mode:       l.mode,
		Watch:      l.WatchState(),
		ManualOnly: l.manualOnly(),
		LastSend:   l.lastEvent.Load(),
	}
	var cmd Command
	if l.display != nil {
		cmd = l.display.Show(frame, l.lastDetection, status)
	}
	if l.handle(ctx, cmd, now) {
		return true, nil
	}

	for {
		select {
		case c := <-l.commands:
			if l.handle(ctx, c, now) {
				return true, nil
			}
		default:
			return false, nil
		}
	}
}

func (l *Loop) locate(frame Frame) {
	start := time.Now()
	det, err := l.locator.Locate(frame)
	l.stats.UpdateLocate(time.Since(start))

	switch {
	case err == nil && det.Valid():
		l.lastDetection = &det
		l.published.Store(&det)
		debugMsgVerbose("DETECT", det.String())
	case errors.Is(err, detection.ErrZeroLengthAxis):
		debugMsgVerbose("DETECT", fmt.Sprintf("Rejected zero-length axis at (%d,%d)", det.Center.X, det.Center.Y))
	case err != nil:
		debugMsgVerbose("DETECT", err.Error())
	}
}

func (l *Loop) handle(ctx context.Context, cmd Command, now time.Time) (quit bool) {
	switch cmd {
	case CommandQuit:
		return true
	case CommandSend:
		l.resolveAndSend(ctx, TriggerManual, now)
	case CommandReload:
		debugMsg("CONFIG", "Reload requested")
		if err := l.config.Reload(); err != nil {
			debugMsg("CONFIG_ERROR", fmt.Sprintf("Reload failed: %v", err))
		}
	}
	return false
}

func (l *Loop) manualOnly() bool {
	return l.state == nil || l.config.Current().AutoSend.ManualOnly
}

// shouldAutoSend reports whether the automatic trigger fires at now
func (l *Loop) shouldAutoSend(now time.Time) bool {
	if l.manualOnly() || !l.state.State().Armed {
		return false
	}
	interval := l.config.Current().SendInterval
	return l.lastSend.IsZero() || now.Sub(l.lastSend) >= interval
}

// resolveAndSend is the only send path for both triggers. ok reports a
// completed write. Only a completed write moves lastSend, so a skipped or
// failed automatic attempt is retried on the next frame.
func (l *Loop) resolveAndSend(ctx context.Context, trigger Trigger, now time.Time) (ev SendEvent, ok bool) {
	snap := l.config.Current()
	watch := l.WatchState()
	ev = SendEvent{ID: uuid.NewString(), Trigger: trigger, Mode: l.mode.String(), At: now}

	defer func() {
		l.stats.UpdateSend(ev)
		l.lastEvent.Store(&ev)
		select {
		case l.events <- ev:
		default:
		}
	}()

	switch {
	case watch.Armed && watch.HasTarget():
		ev.OrderID = watch.TargetID
		ev.Zone = watch.ZoneID
	case trigger == TriggerManual && l.defaultOrderID != "":
		ev.OrderID = l.defaultOrderID
	case trigger == TriggerManual:
		ev.OrderID = snap.AutoSend.DefaultOrderID
	}
	if ev.OrderID == "" {
		return l.skip(ev, "no target order (nothing armed and no default order id)"), false
	}

	var pose calibration.Pose
	if l.mode == TestMode {
		if ev.Zone == nil {
			return l.skip(ev, "zone id not found in items[0].id"), false
		}
		zone := *ev.Zone
		answer, found := snap.Table.Answer(zone)
		if !found {
			return l.skip(ev, fmt.Sprintf("zone %d has no answer pose", zone)), false
		}
		pose = answer.Pose()
	} else {
		if l.lastDetection == nil {
			return l.skip(ev, "no object detected"), false
		}
		d := l.lastDetection
		res, err := snap.Table.Resolve(float64(d.Center.X), float64(d.Center.Y), ev.Zone)
		switch {
		case errors.Is(err, calibration.ErrUnknownZone):
			ev.Degraded = true
			logEvent("FALLBACK", ev, fmt.Sprintf("Sending degraded pose: %v", err))
		case err != nil:
			return l.skip(ev, err.Error()), false
		}
		pose = res.Pose
	}

	ev.Values = pose.Rounded()
	if err := l.sender.WritePose(ctx, ev.OrderID, pose); err != nil {
		logEvent("SEND_ERROR", ev, fmt.Sprintf("Write to %s failed: %v", ev.OrderID, err))
		ev.Skipped = true
		ev.Reason = err.Error()
		return ev, false
	}

	l.lastSend = now
	l.lastSkip = ""
	if ev.Degraded {
		logEvent("FALLBACK", ev, "Sent "+ev.String())
	} else {
		logEvent("SEND", ev, "Sent "+ev.String())
	}
	return ev, true
}

// skip marks ev as skipped. Automatic attempts repeat every frame while
// armed, so a repeated reason only goes to the verbose log.
func (l *Loop) skip(ev SendEvent, reason string) SendEvent {
	ev.Skipped = true
	ev.Reason = reason
	if ev.Trigger == TriggerAuto && reason == l.lastSkip {
		debugMsgVerbose("SEND", fmt.Sprintf("[%s] Skipped: %s", ev.Trigger, reason))
		return ev
	}
	if ev.Trigger == TriggerAuto {
		l.lastSkip = reason
	}
	logEvent("SEND", ev, "Skipped: "+reason)
	return ev
}

// logEvent tags the line with the short send id; lines for a known order
// also go to that order's debug file.
func logEvent(component string, ev SendEvent, message string) {
	short := ev.ID
	if len(short) > 8 {
		short = short[:8]
	}
	line := fmt.Sprintf("[%s %s] %s", ev.Trigger, short, message)
	if ev.OrderID != "" {
		debugMsg(component, line, ev.OrderID)
		return
	}
	debugMsg(component, line)
}
