package dispatch

import (
	"fmt"
	"sync"
	"time"
)

// Stats tracks loop throughput and send outcomes between reports
type Stats struct {
	mu              sync.Mutex
	captureCount    int64
	processCount    int64
	readTimeTotal   time.Duration
	locateTimeTotal time.Duration
	sent            int64
	skipped         int64
	fallbacks       int64
	lastReportTime  time.Time
}

// NewStats creates a new stats tracker
func NewStats() *Stats {
	return &Stats{lastReportTime: time.Now()}
}

// UpdateCapture records one frame read
func (s *Stats) UpdateCapture(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureCount++
	s.readTimeTotal += d
}

// UpdateLocate records one locate pass
func (s *Stats) UpdateLocate(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processCount++
	s.locateTimeTotal += d
}

// UpdateSend records the outcome of a send attempt
func (s *Stats) UpdateSend(ev SendEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case ev.Skipped:
		s.skipped++
	case ev.Degraded:
		s.sent++
		s.fallbacks++
	default:
		s.sent++
	}
}

// StatsReport is one reporting window
type StatsReport struct {
	Window     time.Duration
	CaptureFPS float64
	AvgRead    time.Duration
	AvgLocate  time.Duration
	Sent       int64
	Skipped    int64
	Fallbacks  int64
}

// GetStats returns the current window and resets counters
func (s *Stats) GetStats() StatsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	window := now.Sub(s.lastReportTime)
	seconds := window.Seconds()
	if seconds <= 0 {
		seconds = 1.0
	}

	r := StatsReport{
		Window:     window,
		CaptureFPS: float64(s.captureCount) / seconds,
		Sent:       s.sent,
		Skipped:    s.skipped,
		Fallbacks:  s.fallbacks,
	}
	if s.captureCount > 0 {
		r.AvgRead = s.readTimeTotal / time.Duration(s.captureCount)
	}
	if s.processCount > 0 {
		r.AvgLocate = s.locateTimeTotal / time.Duration(s.processCount)
	}

	s.captureCount = 0
	s.processCount = 0
	s.readTimeTotal = 0
	s.locateTimeTotal = 0
	s.sent = 0
	s.skipped = 0
	s.fallbacks = 0
	s.lastReportTime = now
	return r
}

func (r StatsReport) lines() []string {
	return []string{
		fmt.Sprintf("Loop performance (last %v):", r.Window.Round(time.Second)),
		fmt.Sprintf("Capture: %.1f fps (Read: %v, Locate: %v)", r.CaptureFPS, r.AvgRead, r.AvgLocate),
		fmt.Sprintf("Sends:   %d sent, %d skipped, %d fallback", r.Sent, r.Skipped, r.Fallbacks),
	}
}
