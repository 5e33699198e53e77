package util

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	Key      string
	ExpireAt int64
}

func collect(q *LockFreeMPSC[testEvent]) []testEvent {
	var out []testEvent
	q.Drain(func(ev testEvent) { out = append(out, ev) })
	return out
}

// TestBasicOperations tests push and drain in order with one producer
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[testEvent]()
	defer q.Close()

	if got := collect(q); len(got) != 0 {
		t.Fatalf("expected an empty queue, got %v", got)
	}

	for i := 0; i < 10; i++ {
		if !q.Push(testEvent{Key: fmt.Sprintf("k%d", i), ExpireAt: int64(i)}) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready should fire after a push")
	}

	got := collect(q)
	if len(got) != 10 {
		t.Fatalf("Expected 10 items, got %d", len(got))
	}
	for i, ev := range got {
		if ev.ExpireAt != int64(i) {
			t.Errorf("Expected event %d, got %+v", i, ev)
		}
	}

	if got := collect(q); len(got) != 0 {
		t.Errorf("Queue should be empty, but got %v", got)
	}
}

// TestConcurrentProducers verifies that every item of many producers arrives
// exactly once and in push order per producer
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[testEvent]()
	defer q.Close()

	const numProducers = 8
	const itemsPerProducer = 1000
	total := numProducers * itemsPerProducer

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				q.Push(testEvent{Key: fmt.Sprint(producer), ExpireAt: int64(i)})
			}
		}(p)
	}

	producersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(producersDone)
	}()

	last := make(map[string]int64)
	received := 0
	consume := func(ev testEvent) {
		if prev, ok := last[ev.Key]; ok && ev.ExpireAt != prev+1 {
			t.Errorf("producer %s: expected %d after %d, got %d", ev.Key, prev+1, prev, ev.ExpireAt)
		}
		last[ev.Key] = ev.ExpireAt
		received++
	}

	timeout := time.After(5 * time.Second)
	for received < total {
		select {
		case <-q.Ready():
			q.Drain(consume)
		case <-producersDone:
			// every push is linked now
			q.Drain(consume)
			producersDone = nil
		case <-timeout:
			t.Fatalf("Timeout, received %d of %d", received, total)
		}
	}

	if received != total {
		t.Errorf("Expected %d items, got %d", total, received)
	}
}

// TestCloseQueue verifies that items queued before Close can still be drained
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[testEvent]()

	for i := 0; i < 5; i++ {
		q.Push(testEvent{ExpireAt: int64(i)})
	}
	<-q.Ready()
	q.Close()

	if q.Push(testEvent{}) {
		t.Error("Should not be able to push after queue is closed")
	}
	if !q.IsClosed() {
		t.Error("IsClosed should report true")
	}

	select {
	case <-q.Ready():
	default:
		t.Error("Close should signal the consumer")
	}

	if got := collect(q); len(got) != 5 {
		t.Errorf("Expected 5 items after close, got %d", len(got))
	}

	// a second Close is a no-op
	q.Close()
}

// TestIdleWakeup pushes single items into an idle queue many times; a lost
// wakeup would leave an item undelivered
func TestIdleWakeup(t *testing.T) {
	q := NewLockFreeMPSC[testEvent]()
	defer q.Close()

	for i := 0; i < 500; i++ {
		go q.Push(testEvent{ExpireAt: int64(i)})
		select {
		case <-q.Ready():
			got := collect(q)
			if len(got) != 1 || got[0].ExpireAt != int64(i) {
				t.Fatalf("Expected item %d, got %v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("item %d was not delivered", i)
		}
	}
}

// BenchmarkPush measures concurrent producer cost
func BenchmarkPush(b *testing.B) {
	q := NewLockFreeMPSC[testEvent]()
	defer q.Close()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-q.Ready():
				q.Drain(func(testEvent) {})
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	ev := testEvent{Key: "bench"}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			q.Push(ev)
		}
	})
}
