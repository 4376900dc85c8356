package config

import (
	"fmt"
	"sync/atomic"
)

// Holder publishes the current Snapshot. Reload swaps in a whole new
// snapshot; readers never see a partially updated configuration.
type Holder struct {
	current atomic.Pointer[Snapshot]
	load    func(path string) (*Snapshot, error)
}

// NewHolder wraps an initial snapshot
func NewHolder(initial *Snapshot) *Holder {
	h := &Holder{load: Load}
	h.current.Store(initial)
	return h
}

// Current returns the active snapshot
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Reload re-reads the file the current snapshot came from. Camera, mode and
// store settings are carried over from the running snapshot since the capture
// device and store client stay open. On error the previous snapshot is kept.
func (h *Holder) Reload() error {
	old := h.current.Load()
	next, err := h.load(old.Path)
	if err != nil {
		debugMsg("CONFIG_ERROR", fmt.Sprintf("Reload failed, keeping previous configuration: %v", err))
		return err
	}

	doc := next.Document
	doc.Camera = old.Camera
	doc.Mode = old.Mode
	doc.Store = old.Store
	rebuilt, err := build(doc)
	if err != nil {
		debugMsg("CONFIG_ERROR", fmt.Sprintf("Reload failed, keeping previous configuration: %v", err))
		return err
	}
	rebuilt.Path = old.Path

	h.current.Store(rebuilt)
	debugMsg("CONFIG", "Configuration reloaded")
	for _, line := range rebuilt.Summary() {
		debugMsg("CONFIG", "  "+line)
	}
	return nil
}
