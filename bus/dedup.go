package bus

import (
	"encoding/binary"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// DedupCapacity bounds the number of (source_zone, sequence) pairs tracked
// before the filter's false-positive rate starts to rise; sized generously
// above one zone-tick's worth of cross-zone traffic.
const DedupCapacity = 1 << 20

// Dedup implements spec.md §4.13's "at-least-once delivery, idempotent
// dedup" requirement: a cuckoo filter over (source_zone, sequence) lets a
// redelivered message be recognized and dropped in O(1) without keeping a
// growing exact set.
type Dedup struct {
	mu     sync.Mutex
	filter *cuckoo.Filter
}

func NewDedup() *Dedup {
	return &Dedup{filter: cuckoo.NewFilter(DedupCapacity)}
}

func fingerprint(sourceZone uint32, sequence uint64) []byte {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], sourceZone)
	binary.BigEndian.PutUint64(b[4:12], sequence)
	return b[:]
}

// Seen reports whether (sourceZone, sequence) has already been observed,
// recording it as seen as a side effect (so the first call for a given pair
// always returns false).
func (d *Dedup) Seen(sourceZone uint32, sequence uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	fp := fingerprint(sourceZone, sequence)
	if d.filter.Lookup(fp) {
		return true
	}
	d.filter.InsertUnique(fp)
	return false
}

// Reset clears all recorded fingerprints, so every pair reads as unseen
// again.
func (d *Dedup) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = cuckoo.NewFilter(DedupCapacity)
}
