// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cluster runs independent GA workers and reduces their results.
//
// # Overview
//
// W workers, numbered by rank 0..W-1, each run their own solver. When done,
// every non-coordinator rank sends its result to rank 0 as four tagged
// messages:
//
//	rank r ──TagSolution────▶ rank 0
//	rank r ──TagFitness─────▶ rank 0
//	rank r ──TagElapsed─────▶ rank 0
//	rank r ──TagGenerations─▶ rank 0
//
// Rank 0 receives from ranks 1..W-1 in order, adds its own result at index
// 0, and picks the result with the lowest fitness (Reduce).
//
// # Transports
//
//   - LocalNetwork: goroutine workers in one process
//   - NATSTransport: one process per rank, connected through a NATS server
//
// # Thread Safety
//
// Transports are safe for concurrent use. The exchange has no timeouts: a
// worker that never reports blocks the coordinator until its context is
// cancelled.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrTransport wraps every failure of the distributed runtime.
	ErrTransport = errors.New("transport failure")

	// ErrClosed indicates the transport was closed.
	ErrClosed = errors.New("transport closed")

	// ErrRank indicates a rank outside [0, Size()).
	ErrRank = errors.New("rank out of range")
)

// =============================================================================
// Types
// =============================================================================

// Tag identifies the field a message carries.
type Tag int

const (
	// TagSolution carries the coefficient vector.
	TagSolution Tag = iota + 1

	// TagFitness carries the fitness of the solution.
	TagFitness

	// TagElapsed carries the worker's wall time.
	TagElapsed

	// TagGenerations carries the generation count.
	TagGenerations
)

// String returns the tag name used in logs and NATS subjects.
func (t Tag) String() string {
	switch t {
	case TagSolution:
		return "solution"
	case TagFitness:
		return "fitness"
	case TagElapsed:
		return "elapsed"
	case TagGenerations:
		return "generations"
	default:
		return "tag" + strconv.Itoa(int(t))
	}
}

// Transport is one rank's endpoint into the distributed runtime.
//
// Description:
//
//	Messages between a given (source, destination, tag) triple are
//	delivered in the order they were sent. Send returns once the message
//	has been accepted by the destination; Recv blocks until a message with
//	the requested source and tag arrives.
//
// Thread Safety:
//
//	Implementations are safe for concurrent use.
type Transport interface {
	// Rank returns this endpoint's rank.
	Rank() int

	// Size returns the number of ranks.
	Size() int

	// Send delivers payload to rank dst under tag.
	Send(ctx context.Context, dst int, tag Tag, payload []byte) error

	// Recv returns the next payload sent by rank src under tag.
	Recv(ctx context.Context, src int, tag Tag) ([]byte, error)

	// Close releases the endpoint. Blocked calls return ErrClosed.
	Close() error
}

// =============================================================================
// Mailbox (Internal)
// =============================================================================

// mailboxDepth bounds the messages queued per (source, tag) before Send
// blocks.
const mailboxDepth = 16

type envelopeKey struct {
	src int
	tag Tag
}

// mailbox holds the incoming queues of one rank, one per (source, tag).
type mailbox struct {
	mu        sync.Mutex
	queues    map[envelopeKey]chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMailbox() *mailbox {
	return &mailbox{
		queues: make(map[envelopeKey]chan []byte),
		closed: make(chan struct{}),
	}
}

func (m *mailbox) queue(k envelopeKey) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[k]
	if !ok {
		q = make(chan []byte, mailboxDepth)
		m.queues[k] = q
	}
	return q
}

func (m *mailbox) put(ctx context.Context, k envelopeKey, payload []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	select {
	case m.queue(k) <- payload:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mailbox) take(ctx context.Context, k envelopeKey) ([]byte, error) {
	q := m.queue(k)
	// Drain queued messages before reporting closure.
	select {
	case p := <-q:
		return p, nil
	default:
	}
	select {
	case p := <-q:
		return p, nil
	case <-m.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrRank, rank, size)
	}
	return nil
}
