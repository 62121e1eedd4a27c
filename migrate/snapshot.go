package migrate

import (
	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

// EntitySnapshot is the PREPARING step's full capture of an entity (spec.md
// §4.11: "all components + last input + anti-cheat counters"), JSON-framed
// for the bus the same way wire frames EVENT payloads -- a migration
// happens a few times a minute per entity at most, so the json-iterator/go
// encoding cost spec.md's binary SNAPSHOT format avoids elsewhere is not a
// concern here.
type EntitySnapshot struct {
	EntityID world.EntityID    `json:"entity_id"`
	Kind     world.Kind        `json:"kind"`
	Position world.Position    `json:"position"`
	Velocity world.Velocity    `json:"velocity"`
	Rotation world.Rotation    `json:"rotation"`
	Combat   world.Combat      `json:"combat"`
	Network  world.Network     `json:"network"`
	LastInput world.Input      `json:"last_input"`
	AntiCheat world.AntiCheat  `json:"anti_cheat"`
}

// RequestPayload is the MIGRATION_REQUEST message body (spec.md §4.11 step
// 1): the snapshot plus the migration sequence the source assigned.
type RequestPayload struct {
	Sequence  uint64         `json:"sequence"`
	Snapshot  EntitySnapshot `json:"snapshot"`
}

// StatePayload is a TRANSFERRING/SYNCING progress push or ack (spec.md
// §4.11 steps 2-3): either direction reuses the same shape, distinguished
// by the enclosing bus.Message's source zone.
type StatePayload struct {
	Sequence uint64         `json:"sequence"`
	EntityID world.EntityID `json:"entity_id"`
	State    State          `json:"state"`
	Snapshot *EntitySnapshot `json:"snapshot,omitempty"`
}

// CompletePayload is the MIGRATION_COMPLETE broadcast (spec.md §4.11 step
// 4): the target confirming ownership so the source can destroy its local
// copy.
type CompletePayload struct {
	Sequence uint64         `json:"sequence"`
	EntityID world.EntityID `json:"entity_id"`
	NewZone  uint32         `json:"new_zone"`
}

func encodePayload(v interface{}) ([]byte, error) { return wire.MarshalJSON(v) }
func decodePayload(data []byte, v interface{}) error { return wire.UnmarshalJSON(data, v) }
