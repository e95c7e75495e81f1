package monitor

import (
	"fmt"
	"sync"
	"time"
)

// Store holds the per-container series of the current generation. All
// containers share one x-axis of tick timestamps, and after every completed
// tick each series is exactly as long as the x-axis.
type Store struct {
	mu     sync.RWMutex
	names  []string
	series map[string][]Sample
	xAxis  []time.Time
}

// NewStore creates an empty store tracking names.
func NewStore(names ...string) *Store {
	s := &Store{}
	s.Rebuild(names)
	return s
}

// Rebuild discards all series and starts tracking names.
func (s *Store) Rebuild(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.names = append([]string(nil), names...)
	s.series = make(map[string][]Sample, len(names))
	for _, n := range names {
		s.series[n] = nil
	}
	s.xAxis = nil
}

// Append adds a sample to one container's series.
func (s *Store) Append(name string, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[name]; !ok {
		return fmt.Errorf("container %q is not tracked", name)
	}
	s.series[name] = append(s.series[name], sample)
	return nil
}

// AppendTimestamp extends the shared x-axis.
func (s *Store) AppendTimestamp(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xAxis = append(s.xAxis, t)
}

// AppendTick commits a whole tick: the timestamp and exactly one sample for
// every tracked container. Nothing is appended unless the tick is complete.
func (s *Store) AppendTick(t time.Time, samples map[string]Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(samples) != len(s.names) {
		return fmt.Errorf("tick has %d samples, store tracks %d containers", len(samples), len(s.names))
	}
	for _, n := range s.names {
		if _, ok := samples[n]; !ok {
			return fmt.Errorf("tick is missing a sample for %q", n)
		}
	}

	for _, n := range s.names {
		s.series[n] = append(s.series[n], samples[n])
	}
	s.xAxis = append(s.xAxis, t)
	return nil
}

// Reset clears every series and the x-axis but keeps the tracked names.
// Calling it on an empty store is a no-op.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for n := range s.series {
		s.series[n] = nil
	}
	s.xAxis = nil
}

// Get returns a copy of one container's series.
func (s *Store) Get(name string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.series[name]
	if len(src) == 0 {
		return nil
	}
	return append([]Sample(nil), src...)
}

// XAxis returns a copy of the shared tick timestamps.
func (s *Store) XAxis() []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.xAxis) == 0 {
		return nil
	}
	return append([]time.Time(nil), s.xAxis...)
}

// Names returns the tracked container names in order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Len returns the number of completed ticks held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.xAxis)
}

// Empty reports whether the store holds no ticks.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// Check verifies that every series is as long as the x-axis.
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.names {
		if got := len(s.series[n]); got != len(s.xAxis) {
			return fmt.Errorf("series %q has %d samples, x-axis has %d", n, got, len(s.xAxis))
		}
	}
	return nil
}
