// Package queue provides a concurrency-safe min-priority queue. Items with
// equal priority come out in insertion order.
package queue

import (
	"container/heap"
	"sync"
)

type entry[T any] struct {
	value    T
	priority int64
	seq      uint64
}

type entries[T any] []entry[T]

func (e entries[T]) Len() int { return len(e) }

func (e entries[T]) Less(i, j int) bool {
	if e[i].priority != e[j].priority {
		return e[i].priority < e[j].priority
	}
	return e[i].seq < e[j].seq
}

func (e entries[T]) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *entries[T]) Push(x any) { *e = append(*e, x.(entry[T])) }

func (e *entries[T]) Pop() any {
	old := *e
	n := len(old)
	item := old[n-1]
	old[n-1] = entry[T]{}
	*e = old[:n-1]
	return item
}

type PriorityQueue[T any] struct {
	mu    sync.Mutex
	items entries[T]
	seq   uint64
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

// Enqueue adds value; lower priority values are dequeued first.
func (pq *PriorityQueue[T]) Enqueue(value T, priority int64) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.seq++
	heap.Push(&pq.items, entry[T]{value: value, priority: priority, seq: pq.seq})
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.items) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&pq.items).(entry[T]).value, true
}

// DequeueAll empties the queue in priority order.
func (pq *PriorityQueue[T]) DequeueAll() []T {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	out := make([]T, 0, len(pq.items))
	for len(pq.items) > 0 {
		out = append(out, heap.Pop(&pq.items).(entry[T]).value)
	}
	return out
}
