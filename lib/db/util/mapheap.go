// Package util
//
// This file provides the expiry schedule used by the TTL sweeper.
//
// MapHeap combines a binary min-heap ordered by priority with a map from key
// to heap slot. The sweeper keys it by the stored key and uses the expiry
// timestamp as the priority:
//
//   - O(log n) to schedule, reschedule or cancel a key
//   - O(1) to look at the next key to expire or to test if a key is scheduled
//
// Rescheduling an existing key updates it in place, so a key is never in the
// heap twice.
//
// Note: MapHeap is not thread-safe. The sweeper goroutine is its only user.
//
// Example usage:
//
//	schedule := NewMapHeap[string]()
//
//	schedule.AddItem("session:1", expireAtMs)
//	schedule.AddItem("session:2", otherExpireAtMs)
//
//	for {
//	    next, ok := schedule.Peek()
//	    if !ok || next.Priority > nowMs {
//	        break
//	    }
//	    expire(next.Key)
//	    schedule.RemoveByKey(next.Key)
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is a scheduled key and its priority
type Item[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Priority used for ordering, lowest first
	index    int   // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap implements a min priority queue with key-based access
type MapHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

// NewMapHeap creates a new empty queue
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap[K]) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
func (mh *MapHeap[K]) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[K]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap[K]) Push(x interface{}) {
	it := x.(*Item[K])
	it.index = len(mh.items)
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap[K]) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// AddItem schedules key with the given priority or reschedules it if present
func (mh *MapHeap[K]) AddItem(key K, priority int64) {
	if it, exists := mh.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(mh, it.index)
		return
	}

	heap.Push(mh, &Item[K]{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	heap.Remove(mh, it.index)
	return it.Priority, true
}

// Peek returns the minimum priority item without removing it
func (mh *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	it, exists := mh.itemsMap[key]
	return it, exists
}

// Reset drops every scheduled item
func (mh *MapHeap[K]) Reset() {
	mh.items = make([]*Item[K], 0)
	mh.itemsMap = make(map[K]*Item[K])
}
