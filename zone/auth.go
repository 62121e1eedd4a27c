// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package zone

import (
	"fmt"

	"github.com/boundlessrealms/zoneserver/migrate"
	"github.com/boundlessrealms/zoneserver/world"
)

// authenticator implements transport.Authenticator: a fresh login's token
// is opaque to the zone (validated by an external auth service this repo
// doesn't own, spec.md §6 leaves "auth_token" unspecified beyond "opaque
// bearer"), while a migration reconnect token is one this zone's own
// migrate.TokenIssuer can verify.
type authenticator struct {
	issuer        *migrate.TokenIssuer
	externalLogin func(token string, playerID uint64) (world.PlayerID, error)
}

func newAuthenticator(issuer *migrate.TokenIssuer, externalLogin func(token string, playerID uint64) (world.PlayerID, error)) *authenticator {
	return &authenticator{issuer: issuer, externalLogin: externalLogin}
}

// Authenticate resolves a CONNECT packet's auth_token. A token that
// verifies against this zone's reconnect-token secret is treated as a
// migration handoff (spec.md §4.11 step 4) whatever playerID says, and the
// player ID is taken from its claims; anything else falls through to the
// external login path.
func (a *authenticator) Authenticate(token string, playerID uint64) (world.PlayerID, error) {
	if claims, err := a.issuer.Verify(token); err == nil {
		return world.PlayerID(claims.PlayerID), nil
	}
	if a.externalLogin != nil {
		return a.externalLogin(token, playerID)
	}
	return 0, fmt.Errorf("zone: no external login configured and token is not a valid reconnect token")
}

// reconnectClaims is exposed so zone/loop.go can distinguish a migration
// CONNECT from a fresh login once HandleConnect has already succeeded,
// without re-parsing the token a second time.
func (a *authenticator) reconnectClaims(token string) (migrate.ReconnectClaims, bool) {
	claims, err := a.issuer.Verify(token)
	return claims, err == nil
}
