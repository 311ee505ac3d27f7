// Package util
//
// This file provides a priority queue that combines a binary heap with a hash map,
// giving both priority-based operations and key-based access:
//   - O(log n) for Push, Pop and priority updates
//   - O(1) for key lookups and existence checks
//   - O(log n) for removal by key
//
// The cache uses it to find the entry with the earliest expiry deadline while
// still being able to drop a key directly when the entry is overwritten or deleted.
//
// Note: This implementation is not thread-safe. For concurrent use, external
// synchronization must be applied.
//
// Example usage:
//
//	gcQueue := NewMapHeap[string]()
//	gcQueue.AddItem("collection|products", deadline.UnixNano())
//
//	if next, ok := gcQueue.Peek(); ok && next.Priority <= now {
//	    gcQueue.RemoveByKey(next.Key)
//	}
package util

import (
	"container/heap"
	"fmt"
)

// HeapItem is a single element of the MapHeap.
type HeapItem[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Lower values are popped first
	index    int   // Index in the heap, maintained by heap package
}

func (i *HeapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap ordered by priority with O(1) access by key.
type MapHeap[K comparable] struct {
	items    []*HeapItem[K]
	itemsMap map[K]*HeapItem[K]
}

// NewMapHeap creates a new, empty MapHeap.
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*HeapItem[K], 0),
		itemsMap: make(map[K]*HeapItem[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (h *MapHeap[K]) Len() int { return len(h.items) }

// Less compares items by priority (part of heap.Interface)
func (h *MapHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *MapHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface). Use AddItem instead.
func (h *MapHeap[K]) Push(x interface{}) {
	it := x.(*HeapItem[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface). Use heap.Pop.
func (h *MapHeap[K]) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, it.Key)
	return it
}

// AddItem adds a new item or updates the priority of an existing one.
func (h *MapHeap[K]) AddItem(key K, priority int64) {
	if it, exists := h.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &HeapItem[K]{Key: key, Priority: priority})
}

// RemoveByKey removes an item by its key and returns its priority.
func (h *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	it, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it.
func (h *MapHeap[K]) Peek() (*HeapItem[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Contains checks if a key exists in the queue.
func (h *MapHeap[K]) Contains(key K) bool {
	_, exists := h.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it.
func (h *MapHeap[K]) GetByKey(key K) (*HeapItem[K], bool) {
	it, exists := h.itemsMap[key]
	return it, exists
}
