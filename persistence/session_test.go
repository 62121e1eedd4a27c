// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStorePutGet(t *testing.T) {
	var gotErr error
	store, err := NewSessionStore(":memory:", func(op string, err error) { gotErr = err })
	require.NoError(t, err)
	defer store.Close()

	store.PutSession("player:1:session", "zone=3", time.Minute)
	require.Eventually(t, func() bool {
		v, ok, err := store.GetSession("player:1:session")
		return ok && err == nil && v == "zone=3"
	}, time.Second, time.Millisecond)
	require.NoError(t, gotErr)
}

func TestSessionStoreMissingKey(t *testing.T) {
	store, err := NewSessionStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.GetSession("does:not:exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOfflineAdapterIsNoOp(t *testing.T) {
	var o Offline
	o.PutSession("k", "v", time.Second)
	o.LogCombatEvent(CombatLogEntry{})
	o.UpdateZoneStatus(ZoneStatus{})
	require.NoError(t, o.Close())
	_, ok, err := o.GetSession("k")
	require.NoError(t, err)
	require.False(t, ok)
}
