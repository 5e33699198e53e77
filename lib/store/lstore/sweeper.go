package lstore

import (
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
)

var sweepLogger = logger.GetLogger("sweeper")

// expiryEvent tells the sweeper that the write seq left key expiring at
// expireAt (0 = no longer scheduled, the key was deleted or rewritten without TTL)
type expiryEvent struct {
	key      string
	expireAt int64
	seq      uint64
}

// expireRequest asks the store to remove key if its entry is still the one
// written by seq
type expireRequest struct {
	key      string
	expireAt int64
	seq      uint64
}

// sweeper schedules keys by expiry and hands due keys to the store. It never
// touches the cache or the file itself: the store re-checks every request
// under its exclusive lock, so a key rewritten after it was scheduled survives.
type sweeper struct {
	interval time.Duration
	now      func() time.Time

	events   *util.LockFreeMPSC[expiryEvent]
	schedule *util.MapHeap[string]
	seqs     map[string]uint64 // write seq of every scheduled key
	requests chan []expireRequest

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newSweeper(interval time.Duration, now func() time.Time) *sweeper {
	return &sweeper{
		interval: interval,
		now:      now,
		events:   util.NewLockFreeMPSC[expiryEvent](),
		schedule: util.NewMapHeap[string](),
		seqs:     make(map[string]uint64),
		requests: make(chan []expireRequest),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// notify is called by the store for every write that changes the expiry of key.
//
// Thread-safety: This method is thread-safe and never blocks.
func (s *sweeper) notify(key string, expireAt int64, seq uint64) {
	s.events.Push(expiryEvent{key: key, expireAt: expireAt, seq: seq})
}

func (s *sweeper) start() {
	go s.run()
}

func (s *sweeper) run() {
	defer close(s.done)
	defer close(s.requests)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return

		case <-s.events.Ready():
			s.events.Drain(s.apply)

		case <-ticker.C:
			s.events.Drain(s.apply)
			due := s.collectDue(util.UnixMillis(s.now()))
			if len(due) == 0 {
				continue
			}
			sweepLogger.Debugf("%d keys due for expiry", len(due))
			select {
			case s.requests <- due:
			case <-s.stop:
				return
			}
		}
	}
}

// apply moves one expiry event into the schedule
func (s *sweeper) apply(ev expiryEvent) {
	if ev.expireAt == 0 {
		s.schedule.RemoveByKey(ev.key)
		delete(s.seqs, ev.key)
	} else {
		s.schedule.AddItem(ev.key, ev.expireAt)
		s.seqs[ev.key] = ev.seq
	}
}

// collectDue pops every key whose expiry is at or before nowMs
func (s *sweeper) collectDue(nowMs int64) []expireRequest {
	var due []expireRequest
	for {
		next, ok := s.schedule.Peek()
		if !ok || next.Priority > nowMs {
			return due
		}
		key, expireAt := next.Key, next.Priority
		s.schedule.RemoveByKey(key)
		due = append(due, expireRequest{key: key, expireAt: expireAt, seq: s.seqs[key]})
		delete(s.seqs, key)
	}
}

// close stops the sweeper and waits for its goroutine. The requests channel
// is closed on return.
func (s *sweeper) close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.events.Close()
	})
	<-s.done
}
