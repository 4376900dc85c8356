package dispatch

import (
	"context"
	"fmt"
	"time"

	"posecam/calibration"
	"posecam/config"
	"posecam/detection"
	"posecam/orders"
)

// Frame is one captured image. The loop closes every frame it reads.
type Frame interface {
	Close() error
}

// FrameSource yields frames; ok=false means the device is unusable
type FrameSource interface {
	Read() (Frame, bool)
}

// Locator runs the edge chain and geometry engine on a frame
type Locator interface {
	Locate(frame Frame) (detection.Detection, error)
}

// Display renders a frame and returns the operator's key command, if any
type Display interface {
	Show(frame Frame, det *detection.Detection, status Status) Command
}

// StateSource is the watcher's published armed/target/zone triple
type StateSource interface {
	State() orders.State
}

// Sender writes a pose to an order
type Sender interface {
	WritePose(ctx context.Context, orderID string, pose calibration.Pose) error
}

// ConfigSource provides the current configuration snapshot
type ConfigSource interface {
	Current() *config.Snapshot
	Reload() error
}

// Mode selects how poses are produced. It is fixed for the process lifetime.
type Mode int

const (
	RealMode Mode = iota
	TestMode
)

func (m Mode) String() string {
	switch m {
	case RealMode:
		return "REAL"
	case TestMode:
		return "TEST"
	default:
		return "UNKNOWN"
	}
}

// Command is an operator signal from the display or the console
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandSend
	CommandReload
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandQuit:
		return "quit"
	case CommandSend:
		return "send"
	case CommandReload:
		return "reload"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// ParseCommand maps a console action name to a Command
func ParseCommand(s string) (Command, bool) {
	switch s {
	case "quit":
		return CommandQuit, true
	case "send":
		return CommandSend, true
	case "reload":
		return CommandReload, true
	}
	return CommandNone, false
}

// Trigger identifies what started a send attempt
type Trigger string

const (
	TriggerManual Trigger = "MANUAL"
	TriggerAuto   Trigger = "AUTO"
)

// SendEvent describes one send attempt, successful or skipped
type SendEvent struct {
	ID       string     `json:"id"`
	Trigger  Trigger    `json:"trigger"`
	Mode     string     `json:"mode"`
	OrderID  string     `json:"order_id,omitempty"`
	Zone     *int       `json:"zone,omitempty"`
	Values   [6]float64 `json:"values"`
	Degraded bool       `json:"degraded"`
	Skipped  bool       `json:"skipped"`
	Reason   string     `json:"reason,omitempty"`
	At       time.Time  `json:"at"`
}

func (e SendEvent) String() string {
	if e.Skipped {
		return fmt.Sprintf("[%s] skipped: %s", e.Trigger, e.Reason)
	}
	v := e.Values
	s := fmt.Sprintf("[%s] %s X=%.2f Y=%.2f Z=%.2f R=%.2f P=%.2f Yaw=%.2f",
		e.Trigger, e.OrderID, v[0], v[1], v[2], v[3], v[4], v[5])
	if e.Degraded {
		s += " (fallback)"
	}
	return s
}

// Status is what the display shows besides the frame
type Status struct {
	Mode       Mode
	Watch      orders.State
	ManualOnly bool
	LastSend   *SendEvent
}
