// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package persist journals bottom-tier cache entries to BadgerDB so
// long-TTL reference data survives a restart. The in-memory tiers stay
// authoritative; the journal is write-through and replayed once at
// startup.
package persist

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/fairwaylabs/fairway/internal/cache"
	"github.com/fairwaylabs/fairway/internal/logging"
)

// entryKeyPrefix namespaces journal records inside the store.
const entryKeyPrefix = "cache:entry:"

// Journal is a BadgerDB-backed implementation of cache.Journal.
type Journal struct {
	db *badger.DB
}

// Open creates or opens the journal at dir.
func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is too chatty for the journal workload
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close flushes and closes the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}

// persistedEntry is the journal's on-disk schema. It mirrors the cache
// entry exactly so replay restores timestamps and counters verbatim.
type persistedEntry struct {
	Key            string    `json:"key"`
	Body           []byte    `json:"body"`
	ContentType    string    `json:"contentType"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	AccessCount    int64     `json:"accessCount"`
	SizeBytes      int64     `json:"sizeBytes"`
}

// Record stores the entry, expiring the on-disk copy alongside the
// cached one. Failures are logged and dropped: journaling must never
// fail a client request.
func (j *Journal) Record(entry *cache.Entry) {
	data, err := json.Marshal(persistedEntry{
		Key:            entry.Key,
		Body:           entry.Body,
		ContentType:    entry.ContentType,
		CreatedAt:      entry.CreatedAt,
		ExpiresAt:      entry.ExpiresAt,
		LastAccessedAt: entry.LastAccessedAt,
		AccessCount:    entry.AccessCount,
		SizeBytes:      entry.SizeBytes,
	})
	if err != nil {
		logging.Err(err).Str("key", entry.Key).Msg("journal marshal failed")
		return
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(entryKeyPrefix+entry.Key), data)
		if ttl := time.Until(entry.ExpiresAt); ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		logging.Err(err).Str("key", entry.Key).Msg("journal write failed")
	}
}

// Remove deletes the journaled copy of key.
func (j *Journal) Remove(key string) {
	err := j.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(entryKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		logging.Err(err).Str("key", key).Msg("journal delete failed")
	}
}

// Replay seeds every surviving journal entry into the given 1-based
// tier level of the cache. Expired entries are skipped (and lazily
// collected by badger's own TTL). Returns the number restored.
func (j *Journal) Replay(c *cache.Tiered, level int) (int, error) {
	restored := 0
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var pe persistedEntry
				if err := json.Unmarshal(val, &pe); err != nil {
					// A corrupt record loses one entry, not the replay.
					logging.Err(err).Msg("skipping corrupt journal record")
					return nil
				}
				if !pe.ExpiresAt.After(time.Now()) {
					return nil
				}
				c.Seed(level, &cache.Entry{
					Key:            pe.Key,
					Body:           pe.Body,
					ContentType:    pe.ContentType,
					CreatedAt:      pe.CreatedAt,
					ExpiresAt:      pe.ExpiresAt,
					LastAccessedAt: pe.LastAccessedAt,
					AccessCount:    pe.AccessCount,
					SizeBytes:      pe.SizeBytes,
				})
				restored++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return restored, fmt.Errorf("replay cache journal: %w", err)
	}
	return restored, nil
}
