package bus

import (
	"testing"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPublishPollOrdering(t *testing.T) {
	b := newTestBus(t)
	ch := ZoneChannel(1)

	for i := 0; i < 5; i++ {
		if _, err := b.Publish(ch, Message{Type: EntitySync, SourceZone: 2, Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	msgs, cursor, err := b.Poll(ch, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Payload[0] != byte(i) {
			t.Fatalf("out of order: index %d has payload %v", i, m.Payload)
		}
	}
	if cursor != 5 {
		t.Fatalf("expected cursor 5, got %d", cursor)
	}
}

func TestPollOnlyReturnsMessagesAfterCursor(t *testing.T) {
	b := newTestBus(t)
	ch := BroadcastChannel
	b.Publish(ch, Message{Type: Broadcast, SourceZone: 1})
	b.Publish(ch, Message{Type: Broadcast, SourceZone: 1})

	msgs, _, err := b.Poll(ch, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sequence != 2 {
		t.Fatalf("expected only sequence 2, got %+v", msgs)
	}
}

func TestPollDedupsRedeliveredMessages(t *testing.T) {
	b := newTestBus(t)
	ch := ZoneChannel(3)
	msg, _ := b.Publish(ch, Message{Type: MigrationRequest, SourceZone: 9, Sequence: 100})

	first, _, _ := b.Poll(ch, 0)
	if len(first) != 1 {
		t.Fatalf("expected first poll to surface the message, got %d", len(first))
	}

	// Simulate a redelivery: same (sourceZone, sequence) published again,
	// as would happen if the publisher retried after an ack timeout.
	// Publish keeps the non-zero Sequence, so the retry lands on the same
	// channel position, and the second poll starts again from cursor 0.
	b.Publish(ch, msg)
	second, _, _ := b.Poll(ch, 0)
	for _, m := range second {
		if m.SourceZone == msg.SourceZone && m.Sequence == msg.Sequence {
			// already delivered once; dedup should have dropped repeats
			// beyond the first occurrence across BOTH polls combined.
		}
	}
	// Across the two independent polls, the dedup filter must have
	// recognized the duplicate logical message exactly once.
	seenCount := 0
	for _, m := range append(first, second...) {
		if m.SourceZone == 9 && m.Sequence == 100 {
			seenCount++
		}
	}
	if seenCount != 1 {
		t.Fatalf("expected the logical message to be delivered exactly once across retries, got %d", seenCount)
	}
}

func TestDedupSeenIsFalseOnlyOnce(t *testing.T) {
	d := NewDedup()
	if d.Seen(1, 1) {
		t.Fatal("first observation must not be seen")
	}
	if !d.Seen(1, 1) {
		t.Fatal("second observation of the same pair must be seen")
	}
	if d.Seen(1, 2) {
		t.Fatal("a different sequence must not be seen")
	}
}

func TestDedupResetClearsHistory(t *testing.T) {
	d := NewDedup()
	d.Seen(5, 5)
	d.Reset()
	if d.Seen(5, 5) {
		t.Fatal("expected reset to clear prior observations")
	}
}

func TestZoneChannelNaming(t *testing.T) {
	if got := ZoneChannel(42); got != "zone:42:messages" {
		t.Fatalf("unexpected channel name: %s", got)
	}
}
