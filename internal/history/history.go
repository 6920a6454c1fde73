// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps a log of translated utterances in BadgerDB.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var ErrClosed = errors.New("history store closed")

var keyPrefix = []byte("utt/")

type Entry struct {
	ID             string        `json:"id"`
	Time           time.Time     `json:"time"`
	Direction      string        `json:"direction"`
	SourceLanguage string        `json:"sourceLanguage"`
	TargetLanguage string        `json:"targetLanguage"`
	Original       string        `json:"original"`
	Translated     string        `json:"translated"`
	RecordingPath  string        `json:"recordingPath,omitempty"`
	Latency        time.Duration `json:"latency"`
	Error          string        `json:"error,omitempty"`
}

type Options struct {
	// Dir is required unless InMemory is set.
	Dir      string
	InMemory bool
}

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Dir is required for on-disk mode")
	}
	logger := slog.With("component", "history")

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append stores e. A missing ID or Time is filled in.
func (s *Store) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("encoding entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e), val)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return e, ErrClosed
	}
	return e, err
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]Entry, 0, n)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = keyPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Reverse iteration seeks to the largest key <= the seek key.
		seek := append(append([]byte(nil), keyPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(keyPrefix) && len(out) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable history entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// entryKey orders entries by time; the id keeps keys unique within a tick.
func entryKey(e Entry) []byte {
	k := make([]byte, 0, len(keyPrefix)+8+len(e.ID))
	k = append(k, keyPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(e.Time.UnixNano()))
	return append(k, e.ID...)
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.logger.Error(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...any) { l.logger.Warn(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Infof(string, ...any)        {}
func (l badgerLogger) Debugf(string, ...any)       {}
