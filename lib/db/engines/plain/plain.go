// Package plain implements db.KVDB with a single Go map behind a
// sync.RWMutex. It is the reference engine for the conformance suite and a
// smaller alternative to maple for stores with few keys.
package plain

import (
	"sync"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/util"
)

type plainImpl struct {
	mu   sync.RWMutex
	data map[string]db.Entry
}

// NewPlainDB creates an empty plain engine
func NewPlainDB() db.KVDB {
	return &plainImpl{data: make(map[string]db.Entry)}
}

func (p *plainImpl) Set(key string, entry db.Entry) {
	p.mu.Lock()
	p.data[key] = entry
	p.mu.Unlock()
}

func (p *plainImpl) Delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.data[key]
	delete(p.data, key)
	return ok
}

func (p *plainImpl) Clear() {
	p.mu.Lock()
	clear(p.data)
	p.mu.Unlock()
}

func (p *plainImpl) Get(key string) (db.Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.data[key]
	return e, ok
}

func (p *plainImpl) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.data[key]
	return ok
}

// Range holds the read lock for the whole iteration, fn must not call back
// into a mutating method.
func (p *plainImpl) Range(fn func(key string, entry db.Entry) bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for k, e := range p.data {
		if !fn(k, e) {
			return
		}
	}
}

func (p *plainImpl) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

var supportedFeatureList = []db.Feature{
	db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
	db.FeatureRange, db.FeatureClear, db.FeatureExpiry,
}

func (p *plainImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet | db.FeatureGet | db.FeatureDelete | db.FeatureHas |
		db.FeatureRange | db.FeatureClear | db.FeatureExpiry
	return supported&feature == feature
}

// GetInfo walks the whole map, the numbers are exact
func (p *plainImpl) GetInfo() db.DatabaseInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	histogram := util.NewSizeHistogram()
	size := 0
	for k, e := range p.data {
		n := len(k) + len(e.Value)
		histogram.Add(n)
		size += n + 48
	}

	return db.DatabaseInfo{
		SizeBytes:         size,
		Keys:              len(p.data),
		DbType:            db.ImplPlain,
		SupportedFeatures: supportedFeatureList,
		Metadata: &struct {
			MedianEntry int `json:"median_entry_bytes"`
		}{MedianEntry: histogram.Quantile(0.5)},
	}
}

func (p *plainImpl) Close() error {
	p.Clear()
	return nil
}
