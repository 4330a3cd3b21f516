package alerts

import (
	"sync"
	"time"
)

const shardCount = 32

type Key struct {
	OrderID int64
	Kind    string
}

// Deduplicator remembers when each (order, alert kind) pair last fired.
// Records live only as long as the process.
type Deduplicator struct {
	suppression time.Duration
	retention   time.Duration
	shards      [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	fired map[Key]time.Time
}

func NewDeduplicator(suppression, retention time.Duration) *Deduplicator {
	d := &Deduplicator{
		suppression: suppression,
		retention:   retention,
	}
	for i := range d.shards {
		d.shards[i].fired = make(map[Key]time.Time)
	}
	return d
}

// ShouldFire reports whether an alert for the pair may be sent at now and, if
// so, records now as its last firing.
func (d *Deduplicator) ShouldFire(orderID int64, kind string, now time.Time) bool {
	key := Key{OrderID: orderID, Kind: kind}
	sh := d.shard(orderID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if last, ok := sh.fired[key]; ok && now.Sub(last) < d.suppression {
		return false
	}
	sh.fired[key] = now
	return true
}

// Sweep drops records older than the retention window and returns how many
// were removed.
func (d *Deduplicator) Sweep(now time.Time) int {
	removed := 0
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.Lock()
		for key, last := range sh.fired {
			if now.Sub(last) > d.retention {
				delete(sh.fired, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (d *Deduplicator) Len() int {
	n := 0
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.Lock()
		n += len(sh.fired)
		sh.mu.Unlock()
	}
	return n
}

func (d *Deduplicator) shard(orderID int64) *shard {
	return &d.shards[uint64(orderID)%shardCount]
}
