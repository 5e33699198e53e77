package maple

import (
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	dbtesting "github.com/ValentinKolb/qKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB(1 shard)", func() db.KVDB {
		return NewMapleDB(&DBOptions{NumShards: 1})
	})
}

func TestInfoExpiredBacklog(t *testing.T) {
	now := time.UnixMilli(10_000)
	database := NewMapleDB(&DBOptions{NumShards: 2, Now: func() time.Time { return now }})
	defer database.Close()

	database.Set("expired", db.Entry{Value: []byte("v"), ExpireAt: 5_000})
	database.Set("fresh", db.Entry{Value: []byte("v"), ExpireAt: 50_000})
	database.Set("forever", db.Entry{Value: []byte("v")})

	info := database.GetInfo()
	if info.DbType != db.ImplMaple {
		t.Errorf("expected maple implementation, got %s", info.DbType)
	}
	if info.Keys != 3 {
		t.Errorf("expected 3 keys, got %d", info.Keys)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("expected a positive size estimate, got %d", info.SizeBytes)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}
