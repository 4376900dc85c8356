package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often the Watcher polls the store
const DefaultPollInterval = 500 * time.Millisecond

// Watcher polls the order store and publishes whether an order is waiting
// for a pose. It is the only writer of State.
type Watcher struct {
	store    Store
	interval time.Duration
	state    atomic.Pointer[State]

	mutex    sync.Mutex
	onChange func(old, new State)
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher in the disarmed state
func NewWatcher(store Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w := &Watcher{
		store:    store,
		interval: interval,
	}
	w.state.Store(&State{})
	return w
}

// State returns the latest published snapshot
func (w *Watcher) State() State {
	return *w.state.Load()
}

// OnChange sets a callback invoked after every published transition
func (w *Watcher) OnChange(fn func(old, new State)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.onChange = fn
}

// Start launches the polling goroutine
func (w *Watcher) Start(ctx context.Context) {
	w.mutex.Lock()
	if w.stop != nil {
		w.mutex.Unlock()
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stop, w.done
	w.mutex.Unlock()

	debugMsg("WATCHER", fmt.Sprintf("Monitoring started (status=%s, pose_required=true, every %v)", StatusWaitingPose, w.interval))
	go w.run(ctx, stop, done)
}

// Stop ends polling and waits for an in-flight poll to finish
func (w *Watcher) Stop() {
	w.mutex.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mutex.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *Watcher) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			debugMsg("WATCHER", "Monitoring stopped")
			return
		case <-stop:
			debugMsg("WATCHER", "Monitoring stopped")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll performs one fetch and state transition. On a fetch error the
// previous state is kept.
func (w *Watcher) Poll(ctx context.Context) {
	orders, err := w.store.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			debugMsg("WATCHER_ERROR", fmt.Sprintf("Poll failed, keeping last state: %v", err))
		}
		return
	}

	old := w.State()
	next := transition(old, orders)
	if stateEqual(old, next) {
		return
	}
	w.state.Store(&next)
	w.logTransition(old, next)

	w.mutex.Lock()
	cb := w.onChange
	w.mutex.Unlock()
	if cb != nil {
		cb(old, next)
	}
}

// transition computes the next state from the fetched orders. Orders are
// scanned in id order; while armed the current target keeps priority as
// long as it still qualifies.
func transition(old State, orders map[string]Order) State {
	ids := make([]string, 0, len(orders))
	for id, o := range orders {
		if o.WaitingForPose() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return State{}
	}
	sort.Strings(ids)

	target := ids[0]
	if old.Armed {
		if _, ok := orders[old.TargetID]; ok && orders[old.TargetID].WaitingForPose() {
			target = old.TargetID
		}
	}

	next := State{Armed: true, TargetID: target}
	if zone, ok := ParseZone(orders[target].Items); ok {
		next.ZoneID = &zone
	}
	return next
}

func stateEqual(a, b State) bool {
	if a.Armed != b.Armed || a.TargetID != b.TargetID {
		return false
	}
	za, okA := a.Zone()
	zb, okB := b.Zone()
	return okA == okB && za == zb
}

func (w *Watcher) logTransition(old, next State) {
	switch {
	case !old.Armed && next.Armed:
		debugMsg("WATCHER", fmt.Sprintf("Auto send ARMED: order %s", next.TargetID), next.TargetID)
		if z, ok := next.Zone(); ok {
			debugMsg("WATCHER", fmt.Sprintf("Zone %d (from items[0].id)", z), next.TargetID)
		} else {
			debugMsg("WATCHER_WARN", "Zone not found in items[0].id", next.TargetID)
		}
	case old.Armed && !next.Armed:
		debugMsg("WATCHER", fmt.Sprintf("Auto send DISARMED: no waiting orders (was %s)", old.TargetID), old.TargetID)
	case old.TargetID != next.TargetID:
		debugMsg("WATCHER", fmt.Sprintf("Target %s no longer waiting, now tracking %s", old.TargetID, next.TargetID), next.TargetID)
	default:
		if z, ok := next.Zone(); ok {
			debugMsg("WATCHER", fmt.Sprintf("Zone updated: %d", z), next.TargetID)
		} else {
			debugMsg("WATCHER_WARN", "Zone cleared: items[0].id no longer a valid zone", next.TargetID)
		}
	}
}
