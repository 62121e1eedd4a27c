package migrate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boundlessrealms/zoneserver/world"
)

// ReconnectClaims is the one-time token minted in the COMPLETING step
// (spec.md §4.11): proof that the bearer was mid-migration for this
// specific entity, presented on the target's CONNECT (see Verify on reuse).
// Grounded on osakka-hd1/auth.Manager's JWTClaims (embeds
// jwt.RegisteredClaims, custom fields alongside), narrowed to the single
// claim the target actually needs to trust: which entity this reconnect is
// for and which zone vouched for it.
type ReconnectClaims struct {
	EntityID   uint32 `json:"entity_id"`
	PlayerID   uint64 `json:"player_id"`
	SourceZone uint32 `json:"source_zone"`
	Sequence   uint64 `json:"sequence"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies reconnect tokens with a shared secret, one
// per fleet deployment (all zones must agree on it to accept each other's
// handoffs).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer. ttl bounds how long a client has to
// complete the reconnect after COMPLETING is entered; spec.md §5's default
// COMPLETING deadline (2s) is a reasonable floor, but the token outlives it
// slightly to tolerate network jitter on the handoff itself.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = Deadlines[Completing] + 3*time.Second
	}
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue mints a one-time reconnect token for entityID/playerID migrating
// from sourceZone, tagged with the migration's sequence number so the
// target can correlate it with the TRANSFERRING/SYNCING state it already
// holds for that entity.
func (i *TokenIssuer) Issue(entityID world.EntityID, playerID world.PlayerID, sourceZone uint32, sequence uint64) (string, error) {
	now := time.Now()
	claims := ReconnectClaims{
		EntityID:   uint32(entityID),
		PlayerID:   uint64(playerID),
		SourceZone: sourceZone,
		Sequence:   sequence,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Issuer:    fmt.Sprintf("zone:%d", sourceZone),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a reconnect token, returning its claims. It
// does not record redemption, and neither does zone/auth.go's
// authenticator: a token verifies on every call until it expires.
func (i *TokenIssuer) Verify(tokenString string) (ReconnectClaims, error) {
	var claims ReconnectClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("migrate: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return ReconnectClaims{}, fmt.Errorf("migrate: parse reconnect token: %w", err)
	}
	if !token.Valid {
		return ReconnectClaims{}, fmt.Errorf("migrate: invalid reconnect token")
	}
	return claims, nil
}
