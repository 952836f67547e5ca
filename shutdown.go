package ddnsd

import "sync"

// Shutdown is a broadcast-once cancellation signal shared by all task
// loops and the supervisor. It has exactly two phases: armed and
// triggered. Triggering is idempotent, and the trigger side can wait
// for every cycle that was already in flight to finish.
type Shutdown struct {
	mu        sync.Mutex
	done      chan struct{}
	inflight  sync.WaitGroup
	triggered bool
}

func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Done returns a channel closed when the signal is triggered. Observers
// that start watching after the trigger see it closed immediately.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// Begin registers an in-flight cycle. It returns false once the signal
// has triggered, in which case the caller must not start the cycle and
// must not call End.
func (s *Shutdown) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggered {
		return false
	}
	s.inflight.Add(1)
	return true
}

// End marks a cycle registered with Begin as finished.
func (s *Shutdown) End() {
	s.inflight.Done()
}

// Trigger moves the signal to the triggered phase. Triggering an
// already-triggered signal is a no-op.
func (s *Shutdown) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggered {
		return
	}
	s.triggered = true
	close(s.done)
}

// TriggerAndWait triggers the signal and blocks until every cycle that
// had begun before the trigger has finished. Cycles that had not begun
// observe the trigger and never start.
func (s *Shutdown) TriggerAndWait() {
	s.Trigger()
	s.inflight.Wait()
}
