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
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/polyfit/services/ga"
)

const testPrefix = "polyfit.test.run-1"

// runNATS starts an embedded server on a random port and returns its URL.
func runNATS(t *testing.T) string {
	t.Helper()
	s := natsserver.RunRandClientPortServer()
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func testNATSConfig(url string) NATSConfig {
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.SubjectPrefix = testPrefix
	cfg.AckTimeout = 2 * time.Second
	cfg.RendezvousWait = 20 * time.Millisecond
	return cfg
}

func connect(t *testing.T, url string) *natsgo.Conn {
	t.Helper()
	nc, err := natsgo.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func newRank(t *testing.T, url string, rank, size int) *NATSTransport {
	t.Helper()
	tr, err := NewNATSTransport(connect(t, url), testNATSConfig(url), rank, size, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// =============================================================================
// Subjects
// =============================================================================

func TestSubjects_RoundTrip(t *testing.T) {
	tests := []struct {
		prefix        string
		dst, src      int
		tag           Tag
		wantFormatted string
	}{
		{"polyfit", 0, 1, TagSolution, "polyfit.0.1.1"},
		{"polyfit.run-42", 0, 3, TagGenerations, "polyfit.run-42.0.3.4"},
		{"a.b.c", 12, 7, TagElapsed, "a.b.c.12.7.3"},
	}
	for _, tt := range tests {
		t.Run(tt.wantFormatted, func(t *testing.T) {
			subject := messageSubject(tt.prefix, tt.dst, tt.src, tt.tag)
			assert.Equal(t, tt.wantFormatted, subject)

			dst, src, tag, err := parseSubject(tt.prefix, subject)
			require.NoError(t, err)
			assert.Equal(t, tt.dst, dst)
			assert.Equal(t, tt.src, src)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestParseSubject_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
	}{
		{"other prefix", "other.run-42.0.1.1"},
		{"prefix only", "polyfit.run-42"},
		{"too few tokens", "polyfit.run-42.0.1"},
		{"too many tokens", "polyfit.run-42.0.1.1.9"},
		{"non-numeric token", "polyfit.run-42.0.x.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := parseSubject("polyfit.run-42", tt.subject)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// NATSTransport
// =============================================================================

func TestNATSTransport_RoundTripAllTags(t *testing.T) {
	url := runNATS(t)
	cfg := testNATSConfig(url)

	coordinator, err := DialNATS(cfg, 0, 2, nil)
	require.NoError(t, err)
	defer coordinator.Close()
	peer, err := DialNATS(cfg, 1, 2, nil)
	require.NoError(t, err)
	defer peer.Close()

	assert.Equal(t, 0, coordinator.Rank())
	assert.Equal(t, 2, peer.Size())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tags := []Tag{TagSolution, TagFitness, TagElapsed, TagGenerations}
	for _, tag := range tags {
		require.NoError(t, peer.Send(ctx, 0, tag, []byte(tag.String())))
	}
	for _, tag := range tags {
		got, err := coordinator.Recv(ctx, 1, tag)
		require.NoError(t, err)
		assert.Equal(t, tag.String(), string(got))
	}
}

func TestNATSTransport_SendWaitsForSubscriber(t *testing.T) {
	url := runNATS(t)
	peer := newRank(t, url, 1, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := make(chan error, 1)
	go func() {
		sent <- peer.Send(ctx, 0, TagFitness, []byte("early"))
	}()

	select {
	case err := <-sent:
		t.Fatalf("Send returned before rank 0 subscribed: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	coordinator := newRank(t, url, 0, 2)
	require.NoError(t, <-sent)

	got, err := coordinator.Recv(ctx, 1, TagFitness)
	require.NoError(t, err)
	assert.Equal(t, "early", string(got))
}

func TestNATSTransport_DropsUnexpectedSubjects(t *testing.T) {
	url := runNATS(t)
	coordinator := newRank(t, url, 0, 2)
	peer := newRank(t, url, 1, 2)
	raw := connect(t, url)

	require.NoError(t, raw.Publish(testPrefix+".0.1.3.9", []byte("extra token")))
	require.NoError(t, raw.Publish(testPrefix+".0.7.3", []byte("unknown rank")))
	require.NoError(t, raw.Publish(testPrefix+".0.x.3", []byte("bad rank")))
	require.NoError(t, raw.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Delivery is ordered per subscription, so once this is acknowledged the
	// stray messages above have been handled.
	require.NoError(t, peer.Send(ctx, 0, TagFitness, []byte("valid")))
	got, err := coordinator.Recv(ctx, 1, TagFitness)
	require.NoError(t, err)
	assert.Equal(t, "valid", string(got))

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	_, err = coordinator.Recv(short, 1, TagElapsed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNATSTransport_CloseUnblocksRecv(t *testing.T) {
	url := runNATS(t)
	coordinator := newRank(t, url, 0, 2)

	errc := make(chan error, 1)
	go func() {
		_, err := coordinator.Recv(context.Background(), 1, TagSolution)
		errc <- err
	}()

	require.NoError(t, coordinator.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, err, ErrTransport)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv still blocked after Close")
	}
}

func TestNATSTransport_RejectsBadConfig(t *testing.T) {
	url := runNATS(t)
	nc := connect(t, url)

	cfg := testNATSConfig(url)
	cfg.SubjectPrefix = "polyfit.*"
	_, err := NewNATSTransport(nc, cfg, 0, 2, nil)
	assert.True(t, errors.Is(err, ErrTransport))

	_, err = NewNATSTransport(nc, testNATSConfig(url), 2, 2, nil)
	assert.ErrorIs(t, err, ErrRank)
}

func TestAggregator_OverNATS(t *testing.T) {
	url := runNATS(t)
	coordinator := newRank(t, url, 0, 3)
	peers := []*NATSTransport{newRank(t, url, 1, 3), newRank(t, url, 2, 3)}
	results := resultsWithFitness(4, 0.5, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errc := make(chan error, len(peers))
	for i, p := range peers {
		go func(p *NATSTransport, res ga.Result) {
			errc <- NewAggregator(p, nil).Report(ctx, res)
		}(p, results[i+1])
	}

	global, err := NewAggregator(coordinator, nil).Gather(ctx, results[0])
	require.NoError(t, err)
	for range peers {
		require.NoError(t, <-errc)
	}

	assert.Equal(t, 1, global.Worker)
	assert.Equal(t, results[1].Solution, global.Result.Solution)
	assert.Equal(t, 0.5, global.Result.Fitness)
	assert.Equal(t, results[1].Generations, global.Result.Generations)
	assert.Equal(t, results[1].Elapsed, global.Result.Elapsed)
	require.Len(t, global.Workers, 3)
}
