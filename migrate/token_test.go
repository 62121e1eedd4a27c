package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boundlessrealms/zoneserver/world"
)

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer([]byte("fleet-secret"), time.Minute)
	token, err := issuer.Issue(world.EntityID(7), world.PlayerID(99), 3, 42)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, uint32(7), claims.EntityID)
	require.Equal(t, uint64(99), claims.PlayerID)
	require.Equal(t, uint32(3), claims.SourceZone)
	require.Equal(t, uint64(42), claims.Sequence)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("fleet-secret"), time.Minute)
	token, err := issuer.Issue(world.EntityID(1), world.PlayerID(1), 1, 1)
	require.NoError(t, err)

	other := NewTokenIssuer([]byte("different-secret"), time.Minute)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestTokenExpires(t *testing.T) {
	issuer := NewTokenIssuer([]byte("fleet-secret"), -time.Second)
	token, err := issuer.Issue(world.EntityID(1), world.PlayerID(1), 1, 1)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
}
