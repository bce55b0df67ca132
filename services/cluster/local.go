// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cluster

import (
	"context"
	"fmt"
)

// LocalNetwork connects ranks that run as goroutines in one process.
//
// Thread Safety: Safe for concurrent use.
type LocalNetwork struct {
	boxes []*mailbox
}

// NewLocalNetwork creates a network of size ranks.
func NewLocalNetwork(size int) (*LocalNetwork, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: local network needs at least one rank, got %d", ErrTransport, size)
	}
	boxes := make([]*mailbox, size)
	for i := range boxes {
		boxes[i] = newMailbox()
	}
	return &LocalNetwork{boxes: boxes}, nil
}

// Size returns the number of ranks.
func (n *LocalNetwork) Size() int {
	return len(n.boxes)
}

// Endpoint returns the transport for rank.
func (n *LocalNetwork) Endpoint(rank int) (Transport, error) {
	if err := checkRank(rank, len(n.boxes)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return &localEndpoint{net: n, rank: rank}, nil
}

// Close closes every rank's mailbox. Blocked Send and Recv calls return
// ErrClosed.
func (n *LocalNetwork) Close() error {
	for _, b := range n.boxes {
		b.close()
	}
	return nil
}

type localEndpoint struct {
	net  *LocalNetwork
	rank int
}

func (e *localEndpoint) Rank() int { return e.rank }

func (e *localEndpoint) Size() int { return len(e.net.boxes) }

func (e *localEndpoint) Send(ctx context.Context, dst int, tag Tag, payload []byte) error {
	if err := checkRank(dst, len(e.net.boxes)); err != nil {
		return fmt.Errorf("%w: send %s: %w", ErrTransport, tag, err)
	}
	cp := append([]byte(nil), payload...)
	if err := e.net.boxes[dst].put(ctx, envelopeKey{src: e.rank, tag: tag}, cp); err != nil {
		return fmt.Errorf("%w: send %s to rank %d: %w", ErrTransport, tag, dst, err)
	}
	return nil
}

func (e *localEndpoint) Recv(ctx context.Context, src int, tag Tag) ([]byte, error) {
	if err := checkRank(src, len(e.net.boxes)); err != nil {
		return nil, fmt.Errorf("%w: recv %s: %w", ErrTransport, tag, err)
	}
	p, err := e.net.boxes[e.rank].take(ctx, envelopeKey{src: src, tag: tag})
	if err != nil {
		return nil, fmt.Errorf("%w: recv %s from rank %d: %w", ErrTransport, tag, src, err)
	}
	return p, nil
}

// Close is a no-op; the network owns the mailboxes.
func (e *localEndpoint) Close() error { return nil }
