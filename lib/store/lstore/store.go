package lstore

import (
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple"
	"github.com/ValentinKolb/qKV/lib/db/engines/plain"
	"github.com/ValentinKolb/qKV/lib/db/logfile"
	"github.com/ValentinKolb/qKV/lib/db/record"
	"github.com/ValentinKolb/qKV/lib/db/util"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/ValentinKolb/qKV/lib/value"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// storeImpl is the guarded pair of data file and cache. Reads hold mu shared,
// every mutation holds it exclusively for the append and the cache update.
type storeImpl struct {
	mu     sync.RWMutex
	cfg    store.Config
	cache  db.KVDB
	log    *logfile.Log     // nil in the memory runtime
	writer logfile.Appender // write path in front of log
	seq    uint64           // index of the last applied record, guarded by mu
	now    func() time.Time
	closed bool

	metrics *storeMetrics
	sweeper *sweeper       // nil if the sweeper is disabled
	applyWG sync.WaitGroup // apply loop of the sweeper requests
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// EngineFactory returns the factory of the cache engine impl
func EngineFactory(impl db.Implementation, now func() time.Time) store.DBFactory {
	switch impl {
	case db.ImplPlain:
		return plain.NewPlainDB
	default:
		return func() db.KVDB {
			return maple.NewMapleDB(&maple.DBOptions{Now: now})
		}
	}
}

// Open opens the store described by cfg: it creates or loads the data file,
// replays it into the cache and starts the sweeper.
func Open(cfg store.Config) (store.IStore, error) {
	return OpenWithFactory(cfg, nil)
}

// OpenWithFactory is Open with a custom cache engine. A nil factory selects
// the engine named by cfg.Engine.
func OpenWithFactory(cfg store.Config, factory store.DBFactory) (store.IStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, err, "invalid configuration")
	}
	if cfg.Runtime == "" {
		cfg.Runtime = store.RuntimeDisk
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if factory == nil {
		factory = EngineFactory(cfg.Engine, cfg.Now)
	}

	store.InitLoggers(cfg)

	s := &storeImpl{
		cfg:   cfg,
		cache: factory(),
		now:   cfg.Now,
	}
	s.metrics = newStoreMetrics(
		func() float64 { return float64(s.cache.Len()) },
		func() float64 {
			if s.log == nil {
				return 0
			}
			return float64(s.log.Size())
		},
	)

	if cfg.Runtime == store.RuntimeMemory {
		s.writer = logfile.Discard()
		Logger.Infof("opened in-memory store")
	} else if err := s.openDisk(); err != nil {
		s.cache.Close()
		return nil, err
	}

	if cfg.SweepInterval > 0 {
		s.startSweeper()
	}
	return s, nil
}

func (s *storeImpl) openDisk() error {
	path := store.NormalizePath(s.cfg.Path)

	l, err := logfile.Open(path, &logfile.Options{
		SyncWrites:  s.cfg.SyncWrites,
		Compression: s.cfg.Compression,
	})
	if err != nil {
		return fileError(err, "cannot open %s", path)
	}

	start := time.Now()
	stats, err := l.Replay(s.replayRecord)
	s.metrics.replayDuration.UpdateDuration(start)
	s.metrics.replayedRecords.Add(stats.Records)
	if err != nil {
		l.Close()
		return fileError(err, "cannot load %s", path)
	}
	Logger.Infof("loaded %s: %d keys from %d records (%d tombstones) in %s, writing %s frames",
		path, s.cache.Len(), stats.Records, stats.Deletes, time.Since(start).Round(time.Microsecond), l.Compression())

	writer, err := s.writePath(l)
	if err != nil {
		l.Close()
		return store.WrapError(store.RetCInvalidOperation, err, "cannot create write path")
	}
	s.log, s.writer = l, writer
	return nil
}

// replayRecord applies one record of the data file to the cache
func (s *storeImpl) replayRecord(rec record.Record) error {
	s.seq++
	if rec.Op == record.OpDelete {
		s.cache.Delete(rec.Key)
		return nil
	}
	// a record that is already expired still hides the older value of its key
	if rec.ExpireAt != 0 && rec.ExpireAt <= util.UnixMillis(s.now()) {
		s.cache.Delete(rec.Key)
		return nil
	}
	s.cache.Set(rec.Key, db.Entry{Value: rec.Value, ExpireAt: rec.ExpireAt, Seq: s.seq})
	return nil
}

func (s *storeImpl) writePath(l *logfile.Log) (logfile.Appender, error) {
	switch {
	case s.cfg.WritePath != nil:
		return s.cfg.WritePath(l)
	case s.cfg.BatchBytes > 0 || s.cfg.BatchInterval > 0:
		return logfile.NewBatchAppender(l, logfile.BatchOptions{
			MaxBytes: s.cfg.BatchBytes,
			Interval: s.cfg.BatchInterval,
		}), nil
	default:
		return l, nil
	}
}

// startSweeper schedules every cached key with an expiry and starts the
// sweeper and the loop applying its removals
func (s *storeImpl) startSweeper() {
	s.sweeper = newSweeper(s.cfg.SweepInterval, s.now)
	s.cache.Range(func(key string, entry db.Entry) bool {
		if entry.ExpireAt != 0 {
			s.sweeper.notify(key, entry.ExpireAt, entry.Seq)
		}
		return true
	})
	s.sweeper.start()

	s.applyWG.Add(1)
	go func() {
		defer s.applyWG.Done()
		for batch := range s.sweeper.requests {
			s.expire(batch)
		}
	}()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// fileError maps an error of the file layer to a store error
func fileError(err error, format string, args ...any) error {
	code := store.RetCIOFailure
	switch {
	case errors.Is(err, record.ErrCorrupt), errors.Is(err, record.ErrHeader):
		code = store.RetCCodecFailure
	case errors.Is(err, logfile.ErrClosed):
		code = store.RetCClosed
	}
	return store.WrapError(code, err, format, args...)
}

var errClosed = store.NewError(store.RetCClosed, "store is closed")

// expireAt resolves the ttl of a write to an absolute expiry
func (s *storeImpl) expireAt(ttl time.Duration) int64 {
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}
	return util.ExpireAt(s.now(), ttl)
}

// visible returns the entry of key if it exists and is not expired.
// Must be called while holding mu.
func (s *storeImpl) visible(key string, nowMs int64) (db.Entry, bool) {
	entry, ok := s.cache.Get(key)
	if !ok || entry.Expired(nowMs) {
		return db.Entry{}, false
	}
	return entry, true
}

func decodeEntry(key string, entry db.Entry) (value.Value, error) {
	v, err := value.Decode(entry.Value)
	if err != nil {
		return value.Value{}, store.WrapError(store.RetCCodecFailure, err, "stored value of key %q", key)
	}
	return v, nil
}

// apply updates the cache for recs, which were just written. Must be called
// while holding mu exclusively.
func (s *storeImpl) apply(recs []record.Record) {
	for _, rec := range recs {
		s.seq++
		if rec.Op == record.OpDelete {
			s.cache.Delete(rec.Key)
		} else {
			s.cache.Set(rec.Key, db.Entry{Value: rec.Value, ExpireAt: rec.ExpireAt, Seq: s.seq})
		}
		if s.sweeper != nil {
			if rec.Op == record.OpSet && rec.ExpireAt != 0 {
				s.sweeper.notify(rec.Key, rec.ExpireAt, s.seq)
			} else {
				s.sweeper.notify(rec.Key, 0, s.seq)
			}
		}
	}
}

// write appends recs and applies those that were written. Must be called
// while holding mu exclusively.
func (s *storeImpl) write(recs []record.Record) error {
	start := time.Now()
	n, err := s.writer.Append(recs...)
	s.apply(recs[:n])

	valueBytes := 0
	for _, rec := range recs[:n] {
		valueBytes += len(rec.Value)
	}
	s.metrics.wrote(n, valueBytes, start)

	if err != nil {
		s.metrics.writeErrors.Inc()
		Logger.Errorf("write failed after %d of %d records: %v", n, len(recs), err)
		e := fileError(err, "write failed after %d of %d records", n, len(recs)).(*store.Error)
		e.Applied = n
		return e
	}
	return nil
}

// expire removes the keys of a sweeper batch whose entry is still the write
// the sweeper scheduled and is expired by now. A key rewritten in the meantime
// has a newer Seq and survives, even if the new write carries the same expiry.
func (s *storeImpl) expire(batch []expireRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	nowMs := util.UnixMillis(s.now())
	recs := make([]record.Record, 0, len(batch))
	for _, req := range batch {
		entry, ok := s.cache.Get(req.key)
		if !ok || entry.Seq != req.seq || !entry.Expired(nowMs) {
			continue
		}
		recs = append(recs, record.Record{Op: record.OpDelete, Key: req.key})
	}
	if len(recs) == 0 {
		return
	}

	if err := s.write(recs); err != nil {
		sweepLogger.Errorf("cannot persist expiry of %d keys: %v", len(recs), err)
	}
	s.metrics.expired.Add(len(recs))
	sweepLogger.Debugf("expired %d keys", len(recs))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, v value.Value) error {
	return s.SetE(key, v, 0)
}

func (s *storeImpl) SetE(key string, v value.Value, ttl time.Duration) error {
	rec := record.Record{Op: record.OpSet, Key: key, Value: value.Encode(v), ExpireAt: s.expireAt(ttl)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	s.metrics.sets.Inc()
	return s.write([]record.Record{rec})
}

func (s *storeImpl) SetMany(records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	// encode everything before taking the lock, a failure writes nothing
	recs := make([]record.Record, len(records))
	for i, r := range records {
		recs[i] = record.Record{Op: record.OpSet, Key: r.Key, Value: value.Encode(r.Value), ExpireAt: s.expireAt(r.TTL)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	s.metrics.sets.Add(len(recs))
	return s.write(recs)
}

func (s *storeImpl) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	s.metrics.deletes.Inc()
	if !s.cache.Has(key) {
		return nil
	}
	return s.write([]record.Record{{Op: record.OpDelete, Key: key}})
}

func (s *storeImpl) DeleteMany(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	s.metrics.deletes.Add(len(keys))
	seen := make(map[string]struct{}, len(keys))
	recs := make([]record.Record, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup || !s.cache.Has(key) {
			continue
		}
		seen[key] = struct{}{}
		recs = append(recs, record.Record{Op: record.OpDelete, Key: key})
	}
	if len(recs) == 0 {
		return nil
	}
	return s.write(recs)
}

func (s *storeImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	s.metrics.clears.Inc()
	if err := s.writer.Truncate(); err != nil {
		return fileError(err, "cannot truncate data file")
	}
	if s.sweeper != nil {
		s.cache.Range(func(key string, entry db.Entry) bool {
			if entry.ExpireAt != 0 {
				s.sweeper.notify(key, 0, 0)
			}
			return true
		})
	}
	s.cache.Clear()
	Logger.Infof("cleared store")
	return nil
}

func (s *storeImpl) Get(key string) (value.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return value.Value{}, false, errClosed
	}

	entry, ok := s.visible(key, util.UnixMillis(s.now()))
	s.metrics.read(ok)
	if !ok {
		return value.Value{}, false, nil
	}
	v, err := decodeEntry(key, entry)
	if err != nil {
		return value.Value{}, false, err
	}
	return v, true, nil
}

func (s *storeImpl) GetMany(keys []string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	nowMs := util.UnixMillis(s.now())
	out := make([]store.Record, 0, len(keys))
	for _, key := range keys {
		entry, ok := s.visible(key, nowMs)
		s.metrics.read(ok)
		if !ok {
			continue
		}
		v, err := decodeEntry(key, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Record{Key: key, Value: v})
	}
	return out, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errClosed
	}
	_, ok := s.visible(key, util.UnixMillis(s.now()))
	return ok, nil
}

func (s *storeImpl) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	nowMs := util.UnixMillis(s.now())
	keys := make([]string, 0, s.cache.Len())
	s.cache.Range(func(key string, entry db.Entry) bool {
		if !entry.Expired(nowMs) {
			keys = append(keys, key)
		}
		return true
	})
	slices.Sort(keys)
	return keys, nil
}

func (s *storeImpl) GetAll() ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	type live struct {
		key   string
		entry db.Entry
	}
	nowMs := util.UnixMillis(s.now())
	entries := make([]live, 0, s.cache.Len())
	s.cache.Range(func(key string, entry db.Entry) bool {
		if !entry.Expired(nowMs) {
			entries = append(entries, live{key, entry})
		}
		return true
	})
	slices.SortFunc(entries, func(a, b live) int { return strings.Compare(a.key, b.key) })

	out := make([]store.Record, 0, len(entries))
	for _, e := range entries {
		s.metrics.read(true)
		v, err := decodeEntry(e.key, e.entry)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Record{Key: e.key, Value: v})
	}
	return out, nil
}

func (s *storeImpl) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}

	nowMs := util.UnixMillis(s.now())
	n := 0
	s.cache.Range(func(_ string, entry db.Entry) bool {
		if !entry.Expired(nowMs) {
			n++
		}
		return true
	})
	return n, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return db.DatabaseInfo{}, errClosed
	}
	return s.cache.GetInfo(), nil
}

func (s *storeImpl) WriteMetrics(w io.Writer) {
	s.metrics.write(w)
}

func (s *storeImpl) Close() error {
	// the sweeper's apply loop needs mu, stop it before taking the lock
	if s.sweeper != nil {
		s.sweeper.close()
		s.applyWG.Wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.closed = true

	var err error
	if cerr := s.writer.Close(); cerr != nil {
		err = fileError(cerr, "cannot close write path")
	}
	// a custom write path may leave the log open
	if s.log != nil {
		if cerr := s.log.Close(); cerr != nil && err == nil {
			err = fileError(cerr, "cannot close data file")
		}
	}
	s.cache.Close()
	Logger.Infof("closed store")
	return err
}
