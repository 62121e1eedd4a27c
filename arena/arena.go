// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package arena implements spec.md §2's memory-arena component: a per-tick
// scratch allocator plus sync.Pool object pools for packets and entity
// scratch buffers. Grounded on the teacher's outbound.go updatePool
// (sync.Pool + manual field-clearing Pool() method convention),
// generalized from mk48's single pooled Update type to pools for AOI
// candidate slices, snapshot delta buffers, and outbound wire packets.
package arena

import (
	"bytes"
	"sync"

	"github.com/boundlessrealms/zoneserver/aoi"
	"github.com/boundlessrealms/zoneserver/world"
)

const candidatesCap = 64

var candidatePool = sync.Pool{
	New: func() interface{} {
		s := make([]aoi.Candidate, 0, candidatesCap)
		return &s
	},
}

// GetCandidates borrows a zero-length []aoi.Candidate scratch slice.
func GetCandidates() *[]aoi.Candidate {
	return candidatePool.Get().(*[]aoi.Candidate)
}

// PutCandidates returns a scratch slice obtained from GetCandidates.
func PutCandidates(s *[]aoi.Candidate) {
	*s = (*s)[:0]
	candidatePool.Put(s)
}

const idsCap = 128

var idsPool = sync.Pool{
	New: func() interface{} {
		s := make([]world.EntityID, 0, idsCap)
		return &s
	},
}

// GetIDs borrows a zero-length []world.EntityID scratch slice. Its only
// caller is Acquire.
func GetIDs() *[]world.EntityID {
	return idsPool.Get().(*[]world.EntityID)
}

func PutIDs(s *[]world.EntityID) {
	*s = (*s)[:0]
	idsPool.Put(s)
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuffer borrows a reset bytes.Buffer, used by zone/loop.go's
// replication phase as the snapshot.BuildWithBuffer target to avoid one
// allocation per viewer per tick.
func GetBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func PutBuffer(b *bytes.Buffer) {
	bufferPool.Put(b)
}

// OutPacket is a pooled, reusable outbound wire-packet buffer, mirroring
// the teacher's Update/Pool() lifecycle: the borrower fills Bytes and calls
// Release when done. Neither zone/loop.go nor transport uses OutPacket;
// transport.Outbound carries plain byte slices.
type OutPacket struct {
	Bytes []byte
}

var outPacketPool = sync.Pool{
	New: func() interface{} {
		return &OutPacket{Bytes: make([]byte, 0, 512)}
	},
}

// GetOutPacket borrows a zero-length OutPacket.
func GetOutPacket() *OutPacket {
	p := outPacketPool.Get().(*OutPacket)
	p.Bytes = p.Bytes[:0]
	return p
}

// Release returns p to the pool. Mirrors the teacher's Update.Pool(): the
// caller must not touch p.Bytes afterward.
func (p *OutPacket) Release() {
	outPacketPool.Put(p)
}

// TickArena bundles a candidates slice and an IDs slice so a tick phase can
// acquire/release them together instead of one pool call each. zone/loop.go
// does not use it; its AOI phase calls GetCandidates/PutCandidates directly.
type TickArena struct {
	Candidates *[]aoi.Candidate
	IDs        *[]world.EntityID
}

// Acquire borrows a full TickArena for one tick phase.
func Acquire() *TickArena {
	return &TickArena{Candidates: GetCandidates(), IDs: GetIDs()}
}

// Release returns every scratch allocation in a to their pools.
func (a *TickArena) Release() {
	PutCandidates(a.Candidates)
	PutIDs(a.IDs)
}
