package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"posecam/calibration"
)

// Global debug function for orders package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

// StatusWaitingPose marks an order that needs a pose from us
const StatusWaitingPose = "waiting_pose"

// ErrStoreUnavailable wraps every transport or non-2xx failure of the order store
var ErrStoreUnavailable = errors.New("order store unavailable")

// ItemID is an item identifier that may arrive as a JSON string or number
type ItemID string

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id must be a string or number: %s", data)
	}
	*id = ItemID(n.String())
	return nil
}

// Item is one line of an order. Only the first item's id is used, as the zone.
type Item struct {
	ID ItemID `json:"id"`
}

// UnmarshalJSON leaves the id empty for items that are not objects so a
// malformed item never hides an otherwise valid order.
func (it *Item) UnmarshalJSON(data []byte) error {
	*it = Item{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var fields struct {
		ID ItemID `json:"id"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	it.ID = fields.ID
	return nil
}

// Order is one entry of the orders collection
type Order struct {
	Status       string `json:"status"`
	PoseRequired bool   `json:"pose_required"`
	Items        []Item `json:"items"`
}

// WaitingForPose reports whether the order should arm the dispatcher
func (o Order) WaitingForPose() bool {
	return strings.EqualFold(o.Status, StatusWaitingPose) && o.PoseRequired
}

// PosePayload is written to orders/{id}/pose
type PosePayload struct {
	Type   string     `json:"type"`
	Values [6]float64 `json:"values"`
}

// NewPosePayload rounds the pose to the transmitted precision
func NewPosePayload(p calibration.Pose) PosePayload {
	return PosePayload{Type: "coords", Values: p.Rounded()}
}

// Store reads the orders collection and writes poses back to it
type Store interface {
	Fetch(ctx context.Context) (map[string]Order, error)
	WritePose(ctx context.Context, orderID string, pose calibration.Pose) error
}

// ParseZone extracts the zone from items[0].id. Integral numbers and numeric
// strings are accepted; anything else, including zero, yields ok=false.
func ParseZone(items []Item) (zone int, ok bool) {
	if len(items) == 0 {
		return 0, false
	}
	raw := strings.TrimSpace(string(items[0].ID))
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, v != 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), f != 0
}

// State is the armed/target/zone triple published by the Watcher. It is
// replaced whole, never mutated.
type State struct {
	Armed    bool
	TargetID string
	ZoneID   *int
}

// HasTarget reports whether an order id is being tracked
func (s State) HasTarget() bool {
	return s.TargetID != ""
}

// Zone returns the tracked zone if one was parsed
func (s State) Zone() (int, bool) {
	if s.ZoneID == nil {
		return 0, false
	}
	return *s.ZoneID, true
}

func (s State) String() string {
	if !s.Armed {
		return "DISARMED"
	}
	if z, ok := s.Zone(); ok {
		return fmt.Sprintf("ARMED order=%s zone=%d", s.TargetID, z)
	}
	return fmt.Sprintf("ARMED order=%s zone=?", s.TargetID)
}
