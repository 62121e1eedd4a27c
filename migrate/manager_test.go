package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/world"
)

func acceptAll() bool { return false }

func TestFullMigrationAcrossTwoManagers(t *testing.T) {
	b, err := bus.New(":memory:")
	require.NoError(t, err)
	defer b.Close()

	issuer := NewTokenIssuer([]byte("fleet-secret"), 0)
	source := NewManager(world.ZoneID(1), b, issuer, nil)
	target := NewManager(world.ZoneID(2), b, issuer, acceptAll)

	now := time.Now()
	entityID := world.EntityID(55)
	playerID := world.PlayerID(7)
	snap := EntitySnapshot{EntityID: entityID, Kind: world.KindPlayer}

	require.NoError(t, source.Start(entityID, playerID, world.ZoneID(2), snap, now))
	mig, ok := source.Outgoing(entityID)
	require.True(t, ok)
	require.Equal(t, Preparing, mig.State)

	// Target drains its inbox: sees MIGRATION_REQUEST, admits it, replies.
	target.Tick(now)
	// Source drains its inbox: sees the TRANSFERRING ack.
	source.Tick(now)
	mig, _ = source.Outgoing(entityID)
	require.Equal(t, Transferring, mig.State)

	require.NoError(t, source.PushState(entityID, snap))
	target.Tick(now)
	source.Tick(now)
	mig, _ = source.Outgoing(entityID)
	require.Equal(t, Syncing, mig.State)

	token, err := source.ReadyToHandoff(entityID, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	mig, _ = source.Outgoing(entityID)
	require.Equal(t, Completing, mig.State)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	completedMig, err := target.ReconnectArrived(claims, now)
	require.NoError(t, err)
	require.Equal(t, entityID, completedMig.EntityID)

	outcomes := source.Tick(now)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Completed)
	require.Equal(t, entityID, outcomes[0].Migration.EntityID)

	_, stillOutgoing := source.Outgoing(entityID)
	require.False(t, stillOutgoing)
}

func TestMigrationDeclinedOnCapacity(t *testing.T) {
	b, err := bus.New(":memory:")
	require.NoError(t, err)
	defer b.Close()

	issuer := NewTokenIssuer([]byte("fleet-secret"), 0)
	atCapacity := func() bool { return true }
	source := NewManager(world.ZoneID(1), b, issuer, nil)
	target := NewManager(world.ZoneID(2), b, issuer, atCapacity)

	now := time.Now()
	entityID := world.EntityID(9)
	require.NoError(t, source.Start(entityID, world.PlayerID(1), world.ZoneID(2), EntitySnapshot{EntityID: entityID}, now))

	target.Tick(now)
	outcomes := source.Tick(now)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Completed)
}

func TestMigrationTimesOutWhenTargetNeverResponds(t *testing.T) {
	b, err := bus.New(":memory:")
	require.NoError(t, err)
	defer b.Close()

	issuer := NewTokenIssuer([]byte("fleet-secret"), 0)
	source := NewManager(world.ZoneID(1), b, issuer, nil)

	now := time.Now()
	entityID := world.EntityID(3)
	require.NoError(t, source.Start(entityID, world.PlayerID(1), world.ZoneID(2), EntitySnapshot{EntityID: entityID}, now))

	later := now.Add(Deadlines[Preparing] + time.Second)
	outcomes := source.Tick(later)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Completed)
	require.Equal(t, Failed, outcomes[0].Migration.State)
}
