package job

import (
	"container/heap"
)

// priorityQueue orders pending jobs by priority class, FIFO within a class.
// It is not safe for concurrent use; the Manager serializes access.
type priorityQueue struct {
	items []*queueItem
	seq   int64
}

type queueItem struct {
	job   *Job
	seq   int64
	index int
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

// Push enqueues a job
func (q *priorityQueue) Push(j *Job) {
	q.seq++
	heap.Push((*queueHeap)(q), &queueItem{job: j, seq: q.seq})
}

// Pop dequeues the highest-priority oldest job, or nil when empty
func (q *priorityQueue) Pop() *Job {
	if len(q.items) == 0 {
		return nil
	}
	item := heap.Pop((*queueHeap)(q)).(*queueItem)
	return item.job
}

// Remove deletes a pending job by id, returning whether it was queued
func (q *priorityQueue) Remove(jobID string) bool {
	for _, item := range q.items {
		if item.job.ID == jobID {
			heap.Remove((*queueHeap)(q), item.index)
			return true
		}
	}
	return false
}

// Len returns the number of queued jobs
func (q *priorityQueue) Len() int {
	return len(q.items)
}

// queueHeap adapts priorityQueue to container/heap
type queueHeap priorityQueue

func (h *queueHeap) Len() int { return len(h.items) }

func (h *queueHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.job.Priority.Weight() != b.job.Priority.Weight() {
		return a.job.Priority.Weight() > b.job.Priority.Weight()
	}
	return a.seq < b.seq
}

func (h *queueHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *queueHeap) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(h.items)
	h.items = append(h.items, item)
}

func (h *queueHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}
