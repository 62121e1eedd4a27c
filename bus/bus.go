// Package bus implements spec.md §4.13/§6's cross-zone message fabric:
// per-zone inboxes plus a fleet-wide broadcast channel, at-least-once
// delivery with idempotent dedup. Grounded on the teacher's cloud.go
// pluggable-interface-with-Offline-fallback idiom, backed here by
// tidwall/buntdb as the local transport (spec.md §9 Open Question: no
// external pub/sub fabric is mandated, so an embedded ordered KV log
// serves as the channel implementation) and seiflotfy/cuckoofilter for
// duplicate-delivery detection.
package bus

import (
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"
)

// MessageType enumerates the cross-zone message kinds of spec.md §6.
type MessageType uint8

const (
	EntitySync MessageType = iota
	MigrationRequest
	MigrationState
	MigrationComplete
	Broadcast
	Chat
	ZoneStatus
)

func (t MessageType) String() string {
	switch t {
	case EntitySync:
		return "ENTITY_SYNC"
	case MigrationRequest:
		return "MIGRATION_REQUEST"
	case MigrationState:
		return "MIGRATION_STATE"
	case MigrationComplete:
		return "MIGRATION_COMPLETE"
	case Broadcast:
		return "BROADCAST"
	case Chat:
		return "CHAT"
	case ZoneStatus:
		return "ZONE_STATUS"
	default:
		return "UNKNOWN"
	}
}

// Message is one cross-zone envelope. Payload is left as opaque bytes; the
// caller (migrate, zone) is responsible for its own encoding.
type Message struct {
	Type       MessageType
	SourceZone uint32
	Sequence   uint64
	Payload    []byte
}

// BroadcastChannel is the fleet-wide channel name of spec.md §6.
const BroadcastChannel = "zone:broadcast"

// ZoneChannel returns the per-zone inbox channel name, `zone:<id>:messages`.
func ZoneChannel(zoneID uint32) string {
	return fmt.Sprintf("zone:%d:messages", zoneID)
}

// Bus is the local pub/sub fabric: an append-only ordered log per channel,
// with per-subscriber cursors and idempotent dedup.
type Bus struct {
	db     *buntdb.DB
	mu     sync.Mutex
	seqs   map[string]uint64 // per-channel next sequence number
	dedup  *Dedup
}

// New opens an in-memory buntdb-backed bus. Passing a file path instead of
// ":memory:" persists the log across restarts, useful for zone-process
// crash recovery of in-flight migrations.
func New(path string) (*Bus, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bus: open: %w", err)
	}
	return &Bus{
		db:    db,
		seqs:  make(map[string]uint64),
		dedup: NewDedup(),
	}, nil
}

func (b *Bus) Close() error {
	return b.db.Close()
}

func channelKey(channel string, seq uint64) string {
	return fmt.Sprintf("%s:%020d", channel, seq)
}

// Publish appends msg to channel, assigning the next sequence number for
// that channel if msg.Sequence is zero.
func (b *Bus) Publish(channel string, msg Message) (Message, error) {
	b.mu.Lock()
	if msg.Sequence == 0 {
		b.seqs[channel]++
		msg.Sequence = b.seqs[channel]
	} else if msg.Sequence > b.seqs[channel] {
		b.seqs[channel] = msg.Sequence
	}
	b.mu.Unlock()

	encoded := encodeMessage(msg)
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(channelKey(channel, msg.Sequence), encoded, nil)
		return err
	})
	if err != nil {
		return Message{}, fmt.Errorf("bus: publish: %w", err)
	}
	return msg, nil
}

// Poll returns all messages strictly after afterSeq on channel, in order,
// and the highest sequence number observed (for the caller's next cursor).
// Messages already seen by this Bus's Dedup filter (by source zone and
// sequence) are skipped, implementing at-least-once delivery with
// idempotent application.
func (b *Bus) Poll(channel string, afterSeq uint64) ([]Message, uint64, error) {
	prefix := channel + ":"
	var out []Message
	cursor := afterSeq

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", channelKey(channel, afterSeq+1), func(key, value string) bool {
			if len(key) < len(prefix) || key[:len(prefix)] != prefix {
				return false
			}
			msg, err := decodeMessage(value)
			if err != nil {
				return true // skip corrupt record, keep scanning
			}
			if msg.Sequence > cursor {
				cursor = msg.Sequence
			}
			if b.dedup.Seen(msg.SourceZone, msg.Sequence) {
				return true
			}
			out = append(out, msg)
			return true
		})
	})
	if err != nil {
		return nil, afterSeq, fmt.Errorf("bus: poll: %w", err)
	}
	return out, cursor, nil
}
