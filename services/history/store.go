// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history records finished runs in an embedded BadgerDB store.
//
// Every run is stored under "run/<id>", where id is a time-ordered UUIDv7,
// so key order is start order. Values are gob-encoded, which keeps NaN and
// Inf fitness values intact.
//
// # Usage
//
//	store, err := history.Open(history.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	run := history.Run{Kind: history.KindSolve, Result: res}
//	if err := store.Save(ctx, &run); err != nil {
//	    return err
//	}
package history

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/polyfit/services/cluster"
	"github.com/AleutianAI/polyfit/services/dataset"
	"github.com/AleutianAI/polyfit/services/ga"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

const runPrefix = "run/"

// Kind is the kind of run that produced a record.
type Kind string

const (
	KindSolve   Kind = "solve"
	KindCluster Kind = "cluster"
	KindWorker  Kind = "worker"
)

// Run is one stored run.
type Run struct {
	// ID is assigned by Save when empty.
	ID string `json:"id"`

	Kind Kind `json:"kind"`

	// StartedAt is set by Save when zero.
	StartedAt time.Time `json:"started_at"`

	// Input is the path of the sample file.
	Input string `json:"input"`

	Config ga.Config `json:"config"`

	// Result is the reported result; the global result for multi-worker
	// runs.
	Result ga.Result `json:"result"`

	// Winner is the winning rank of a multi-worker run.
	Winner int `json:"winner"`

	// Workers holds per-rank results of a multi-worker run.
	Workers []ga.Result `json:"workers,omitempty"`

	Summary  *cluster.Summary  `json:"summary,omitempty"`
	Baseline *dataset.Baseline `json:"baseline,omitempty"`
}

// Store is the run history.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens the store described by cfg and starts value log GC when
// configured.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "history")),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
			db.Close()
			return nil, fmt.Errorf("gc discard ratio must be in (0, 1), got %v", cfg.GCDiscardRatio)
		}
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go gcLoop(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger, s.gcStop, s.gcDone)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// Save stores run, assigning ID and StartedAt when unset.
//
// Outputs:
//   - error: Encoding or database failure, or ctx.Err().
func (s *Store) Save(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		run.ID = id.String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(run); err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.ID), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	s.logger.Debug("run saved", slog.String("id", run.ID), slog.String("kind", string(run.Kind)))
	return nil
}

// Get returns the run with the given ID or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, fmt.Errorf("context cancelled: %w", err)
	}
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeRun(val, &run)
		})
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var runs []Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key <= seek.
		seek := append([]byte(runPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return decodeRun(val, &run)
			}); err != nil {
				return err
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Delete removes the run with the given ID. Deleting a missing run
// returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(runKey(id))
	})
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func decodeRun(val []byte, run *Run) error {
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(run); err != nil {
		return fmt.Errorf("decode run: %w", err)
	}
	return nil
}
