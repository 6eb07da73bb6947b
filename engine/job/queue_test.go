package job

import (
	"fmt"
	"testing"
)

func queuedJob(id string, priority Priority) *Job {
	return &Job{ID: id, Priority: priority, Status: StatusPending}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q := newPriorityQueue()
	q.Push(queuedJob("low-1", PriorityLow))
	q.Push(queuedJob("normal-1", PriorityNormal))
	q.Push(queuedJob("high-1", PriorityHigh))
	q.Push(queuedJob("normal-2", PriorityNormal))

	want := []string{"high-1", "normal-1", "normal-2", "low-1"}
	for _, id := range want {
		j := q.Pop()
		if j == nil || j.ID != id {
			t.Fatalf("expected %s, got %v", id, j)
		}
	}
	if q.Pop() != nil {
		t.Error("expected empty queue")
	}
}

func TestQueue_FIFOWithinClass(t *testing.T) {
	q := newPriorityQueue()
	for i := 0; i < 10; i++ {
		q.Push(queuedJob(fmt.Sprintf("j%d", i), PriorityNormal))
	}

	for i := 0; i < 10; i++ {
		j := q.Pop()
		if j.ID != fmt.Sprintf("j%d", i) {
			t.Fatalf("expected j%d, got %s", i, j.ID)
		}
	}
}

func TestQueue_Remove(t *testing.T) {
	q := newPriorityQueue()
	q.Push(queuedJob("a", PriorityNormal))
	q.Push(queuedJob("b", PriorityNormal))
	q.Push(queuedJob("c", PriorityNormal))

	if !q.Remove("b") {
		t.Fatal("expected removal to succeed")
	}
	if q.Remove("b") {
		t.Error("second removal should report not queued")
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 remaining, got %d", q.Len())
	}

	if q.Pop().ID != "a" || q.Pop().ID != "c" {
		t.Error("removal disturbed the remaining order")
	}
}

func TestQueue_PopEmpty(t *testing.T) {
	q := newPriorityQueue()
	if q.Pop() != nil {
		t.Error("expected nil from empty queue")
	}
	if q.Len() != 0 {
		t.Error("expected zero length")
	}
}
