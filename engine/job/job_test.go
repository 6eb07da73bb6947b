package job

import (
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []Status{StatusPending, StatusRunning, StatusPaused} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusRunning},
		{StatusPending, StatusCancelled},
		{StatusRunning, StatusCompleted},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusCancelled},
		{StatusRunning, StatusTimeout},
		{StatusRunning, StatusPaused},
		{StatusPaused, StatusRunning},
		{StatusPaused, StatusCancelled},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusPaused},
		{StatusCompleted, StatusRunning},
		{StatusCancelled, StatusRunning},
		{StatusFailed, StatusCompleted},
		{StatusTimeout, StatusRunning},
		{StatusPaused, StatusCompleted},
	}
	for _, tr := range forbidden {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be forbidden", tr.from, tr.to)
		}
	}
}

func TestPriorityWeight(t *testing.T) {
	if PriorityHigh.Weight() <= PriorityNormal.Weight() {
		t.Error("high should outrank normal")
	}
	if PriorityNormal.Weight() <= PriorityLow.Weight() {
		t.Error("normal should outrank low")
	}
	if Priority("bogus").Weight() != PriorityNormal.Weight() {
		t.Error("unknown priorities rank as normal")
	}
}

func TestJobClone_Independent(t *testing.T) {
	started := time.Now().UTC()
	j := &Job{
		ID:        "j1",
		Status:    StatusRunning,
		StartedAt: &started,
	}

	clone := j.Clone()
	clone.Status = StatusCompleted
	*clone.StartedAt = clone.StartedAt.Add(time.Hour)

	if j.Status != StatusRunning {
		t.Error("clone mutation leaked into the original status")
	}
	if !j.StartedAt.Equal(started) {
		t.Error("clone mutation leaked into the original timestamp")
	}
}
