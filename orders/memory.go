package orders

import (
	"context"
	"fmt"
	"sync"

	"posecam/calibration"
)

// MemoryStore is an in-process Store for offline runs and tests
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]Order
	poses  map[string]PosePayload
	err    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]Order),
		poses:  make(map[string]PosePayload),
	}
}

// Put inserts or replaces an order
func (m *MemoryStore) Put(id string, o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = o
}

// Delete removes an order
func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
}

// FailWith makes every call return err until cleared with nil
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Pose returns the last pose written to an order
func (m *MemoryStore) Pose(id string) (PosePayload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.poses[id]
	return p, ok
}

func (m *MemoryStore) Fetch(ctx context.Context) (map[string]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, m.err)
	}
	out := make(map[string]Order, len(m.orders))
	for id, o := range m.orders {
		out[id] = o
	}
	return out, nil
}

func (m *MemoryStore) WritePose(ctx context.Context, orderID string, pose calibration.Pose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, m.err)
	}
	m.poses[orderID] = NewPosePayload(pose)
	debugMsg("STORE", fmt.Sprintf("Wrote pose to %s (memory): %s", orderID, pose), orderID)
	return nil
}
