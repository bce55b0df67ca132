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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/AleutianAI/polyfit/pkg/validation"
)

// NATSConfig configures a NATSTransport.
type NATSConfig struct {
	// URL of the NATS server.
	URL string `yaml:"url" validate:"required"`

	// SubjectPrefix namespaces one run's subjects, so several runs can
	// share a server. Every rank of a run must use the same prefix.
	SubjectPrefix string `yaml:"subject_prefix" validate:"required"`

	// AckTimeout bounds one delivery attempt. A receiver that accepted
	// the message acknowledges immediately, so this only fires when the
	// receiving process is stuck or gone.
	AckTimeout time.Duration `yaml:"ack_timeout" validate:"gt=0"`

	// RendezvousWait is the pause between attempts while the destination
	// rank has not subscribed yet.
	RendezvousWait time.Duration `yaml:"rendezvous_wait" validate:"gt=0"`
}

// DefaultNATSConfig returns settings for a local NATS server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            natsgo.DefaultURL,
		SubjectPrefix:  "polyfit",
		AckTimeout:     30 * time.Second,
		RendezvousWait: 250 * time.Millisecond,
	}
}

// NATSTransport connects ranks running in separate processes through a
// NATS server.
//
// Description:
//
//	Each rank subscribes to "<prefix>.<rank>.>" when constructed. A message
//	from src to dst with tag t is published as a request on
//	"<prefix>.<dst>.<src>.<t>"; the receiving rank queues the payload and
//	replies with an empty acknowledgement, which is when Send returns.
//	Sends to a rank that has not subscribed yet (no responders) are
//	repeated every RendezvousWait until the rank appears or ctx ends, so
//	processes may start in any order.
//
// Thread Safety:
//
//	Safe for concurrent use.
type NATSTransport struct {
	nc       *natsgo.Conn
	ownsConn bool
	cfg      NATSConfig
	rank     int
	size     int
	box      *mailbox
	sub      *natsgo.Subscription
	logger   *slog.Logger
}

// DialNATS connects to cfg.URL and returns the transport for rank.
func DialNATS(cfg NATSConfig, rank, size int, logger *slog.Logger) (*NATSTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Name(fmt.Sprintf("polyfit-rank-%d", rank)),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrTransport, cfg.URL, err)
	}
	t, err := NewNATSTransport(nc, cfg, rank, size, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	t.ownsConn = true
	return t, nil
}

// NewNATSTransport builds a transport over an existing connection.
//
// Inputs:
//   - nc: Connected NATS client. Not closed by Close.
//   - cfg: Subject prefix and timing. The prefix is sanitized and checked.
//   - rank, size: This process's rank and the number of ranks.
//   - logger: Logger; nil uses slog.Default().
//
// Outputs:
//   - *NATSTransport: Subscribed and ready.
//   - error: ErrTransport wrapping the cause.
func NewNATSTransport(nc *natsgo.Conn, cfg NATSConfig, rank, size int, logger *slog.Logger) (*NATSTransport, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: nats config: %w", ErrTransport, err)
	}
	prefix, err := validation.SanitizeSubjectPrefix(cfg.SubjectPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	cfg.SubjectPrefix = prefix
	if size < 1 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrTransport, size)
	}
	if err := checkRank(rank, size); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &NATSTransport{
		nc:   nc,
		cfg:  cfg,
		rank: rank,
		size: size,
		box:  newMailbox(),
		logger: logger.With(
			slog.String("component", "nats_transport"),
			slog.Int("rank", rank),
		),
	}

	sub, err := nc.Subscribe(inboxSubject(prefix, rank), t.deliver)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %w", ErrTransport, err)
	}
	// Make sure the server knows about the subscription before any peer
	// is told we are up.
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%w: flush: %w", ErrTransport, err)
	}
	t.sub = sub
	return t, nil
}

// Rank implements Transport.
func (t *NATSTransport) Rank() int { return t.rank }

// Size implements Transport.
func (t *NATSTransport) Size() int { return t.size }

// Send implements Transport.
func (t *NATSTransport) Send(ctx context.Context, dst int, tag Tag, payload []byte) error {
	if err := checkRank(dst, t.size); err != nil {
		return fmt.Errorf("%w: send %s: %w", ErrTransport, tag, err)
	}
	subject := messageSubject(t.cfg.SubjectPrefix, dst, t.rank, tag)

	for attempt := 1; ; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, t.cfg.AckTimeout)
		_, err := t.nc.RequestWithContext(reqCtx, subject, payload)
		cancel()
		if err == nil {
			t.logger.Debug("message sent",
				slog.Int("dst", dst),
				slog.String("tag", tag.String()),
				slog.Int("bytes", len(payload)),
			)
			return nil
		}
		if !errors.Is(err, natsgo.ErrNoResponders) {
			return fmt.Errorf("%w: send %s to rank %d: %w", ErrTransport, tag, dst, err)
		}
		if attempt == 1 {
			t.logger.Info("waiting for rank to subscribe", slog.Int("dst", dst))
		}
		select {
		case <-time.After(t.cfg.RendezvousWait):
		case <-ctx.Done():
			return fmt.Errorf("%w: send %s to rank %d: %w", ErrTransport, tag, dst, ctx.Err())
		case <-t.box.closed:
			return fmt.Errorf("%w: send %s to rank %d: %w", ErrTransport, tag, dst, ErrClosed)
		}
	}
}

// Recv implements Transport.
func (t *NATSTransport) Recv(ctx context.Context, src int, tag Tag) ([]byte, error) {
	if err := checkRank(src, t.size); err != nil {
		return nil, fmt.Errorf("%w: recv %s: %w", ErrTransport, tag, err)
	}
	p, err := t.box.take(ctx, envelopeKey{src: src, tag: tag})
	if err != nil {
		return nil, fmt.Errorf("%w: recv %s from rank %d: %w", ErrTransport, tag, src, err)
	}
	return p, nil
}

// Close unsubscribes and, when the transport dialed the connection itself,
// drains and closes it.
func (t *NATSTransport) Close() error {
	t.box.close()
	var errs []error
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil && !errors.Is(err, natsgo.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if t.ownsConn {
		if err := t.nc.Drain(); err != nil && !errors.Is(err, natsgo.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: close: %w", ErrTransport, err)
	}
	return nil
}

// deliver queues an incoming message and acknowledges it.
func (t *NATSTransport) deliver(msg *natsgo.Msg) {
	dst, src, tag, err := parseSubject(t.cfg.SubjectPrefix, msg.Subject)
	if err != nil || dst != t.rank || checkRank(src, t.size) != nil {
		t.logger.Warn("dropping message with unexpected subject", slog.String("subject", msg.Subject))
		return
	}
	payload := append([]byte(nil), msg.Data...)
	if err := t.box.put(context.Background(), envelopeKey{src: src, tag: tag}, payload); err != nil {
		// No reply: the sender's request fails instead of reporting
		// delivery.
		return
	}
	if err := msg.Respond(nil); err != nil {
		t.logger.Warn("ack failed", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
	}
}

// =============================================================================
// Subjects
// =============================================================================

func inboxSubject(prefix string, rank int) string {
	return prefix + "." + strconv.Itoa(rank) + ".>"
}

func messageSubject(prefix string, dst, src int, tag Tag) string {
	return prefix + "." + strconv.Itoa(dst) + "." + strconv.Itoa(src) + "." + strconv.Itoa(int(tag))
}

// parseSubject splits "<prefix>.<dst>.<src>.<tag>".
func parseSubject(prefix, subject string) (dst, src int, tag Tag, err error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return 0, 0, 0, fmt.Errorf("subject %q outside prefix %q", subject, prefix)
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("subject %q: want 3 tokens after prefix, got %d", subject, len(parts))
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("subject %q: token %q: %w", subject, p, convErr)
		}
		nums[i] = n
	}
	return nums[0], nums[1], Tag(nums[2]), nil
}
