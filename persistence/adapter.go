// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package persistence

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Combined wires a SessionStore and a DynamoBackend together behind the
// single Adapter interface; either half may be nil, in which case its
// operations degrade to Offline's no-ops (the teacher's cloud.go pattern:
// a backend that simply isn't configured behaves exactly like Offline{}
// rather than requiring every call site to nil-check).
type Combined struct {
	session *SessionStore
	durable *DynamoBackend
}

// New builds a Combined adapter: a buntdb session store at sessionPath and
// (if region is non-empty) a DynamoDB-backed combat log / registry for
// stage. onErr is shared by both halves. Credentials resolution mirrors
// mk48's server_main/cloud/aws.go getAWSSession: shared credentials file
// if present, falling back to the SDK's default provider chain.
func New(sessionPath, region, stage string, onErr ErrorFunc) (*Combined, error) {
	sessionStore, err := NewSessionStore(sessionPath, onErr)
	if err != nil {
		return nil, err
	}
	c := &Combined{session: sessionStore}
	if region != "" {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			// Durable combat log is best-effort infrastructure, not
			// required for simulation correctness (spec.md §4.13): fall
			// back to Offline for this half rather than failing startup.
			onErr("combat_log_init", err)
		} else {
			c.durable = NewDynamoBackend(sess, stage, onErr)
		}
	}
	return c, nil
}

// NewWithCredentials is New but with an explicit static credential pair,
// used in tests and local non-EC2 deployments.
func NewWithCredentials(sessionPath, region, stage, accessKey, secretKey string, onErr ErrorFunc) (*Combined, error) {
	sessionStore, err := NewSessionStore(sessionPath, onErr)
	if err != nil {
		return nil, err
	}
	c := &Combined{session: sessionStore}
	if region != "" {
		sess, err := session.NewSession(&aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
		})
		if err != nil {
			onErr("combat_log_init", err)
		} else {
			c.durable = NewDynamoBackend(sess, stage, onErr)
		}
	}
	return c, nil
}

func (c *Combined) PutSession(key, value string, ttl time.Duration) {
	if c.session == nil {
		return
	}
	c.session.PutSession(key, value, ttl)
}

func (c *Combined) GetSession(key string) (string, bool, error) {
	if c.session == nil {
		return "", false, nil
	}
	return c.session.GetSession(key)
}

func (c *Combined) LogCombatEvent(entry CombatLogEntry) {
	if c.durable == nil {
		return
	}
	c.durable.LogCombatEvent(entry)
}

func (c *Combined) UpdateZoneStatus(status ZoneStatus) {
	if c.durable == nil {
		return
	}
	c.durable.UpdateZoneStatus(status)
}

func (c *Combined) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Close()
	}
	if c.durable != nil {
		if derr := c.durable.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

var _ Adapter = (*Combined)(nil)
