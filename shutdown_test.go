package ddnsd_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honsun/ddnsd"
)

func TestShutdownBroadcast(t *testing.T) {
	s := ddnsd.NewShutdown()

	select {
	case <-s.Done():
		t.Fatal("signal observed before trigger")
	default:
	}

	s.Trigger()
	s.Trigger() // idempotent

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("signal not observed after trigger")
	}

	// Observers arriving after the trigger see it immediately.
	select {
	case <-s.Done():
	default:
		t.Fatal("late observer did not see triggered signal")
	}
}

func TestShutdownRefusesNewCyclesAfterTrigger(t *testing.T) {
	s := ddnsd.NewShutdown()
	require.True(t, s.Begin())
	s.End()

	s.Trigger()
	assert.False(t, s.Begin())
}

func TestShutdownTriggerAndWaitBlocksForInflightCycle(t *testing.T) {
	s := ddnsd.NewShutdown()
	require.True(t, s.Begin())

	finished := make(chan struct{})
	go func() {
		s.TriggerAndWait()
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("TriggerAndWait returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	s.End()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("TriggerAndWait did not return after the cycle finished")
	}
}
