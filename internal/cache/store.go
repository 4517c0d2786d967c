// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package cache provides the durable result cache backed by BadgerDB.
//
// Entries are stored as a JSON envelope {data, timestamp} and expire after a
// configured TTL. Expiry is enforced lazily: an expired entry is deleted when
// it is read, there is no background sweep. Writes are best-effort; a failed
// write degrades to recomputation on the next request, never to a failed
// operation.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/metrics"
)

// envelope wraps a cached payload with its write time. Timestamp is epoch
// milliseconds; an envelope whose timestamp cannot be interpreted is treated
// as the oldest possible entry.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store is the durable cache. It is safe for concurrent use.
type Store struct {
	db    *badger.DB
	cfg   config.CacheConfig
	codec Codec
	log   zerolog.Logger
	now   func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the store's time source. Used in tests to simulate
// entry expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens the cache store. The caller owns the returned store and must
// Close it on shutdown.
func New(cfg config.CacheConfig, logger zerolog.Logger, opts ...Option) (*Store, error) {
	var badgerOpts badger.Options
	if cfg.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(cfg.Path)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	s := &Store{
		db:    db,
		cfg:   cfg,
		codec: newCodec(cfg.Compression),
		log:   logger,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info().
		Bool("in_memory", cfg.InMemory).
		Str("compression", s.codec.Name()).
		Dur("ttl", cfg.TTL).
		Msg("Cache store opened")

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a value under the given key. Saving is best-effort: failures
// are logged and counted but never propagated, so a full or broken cache
// degrades to recomputation rather than a failed request.
//
// Entries over the configured size ceiling are handled per namespace: profile
// entries are retried once in reduced form (provenance trimmed), everything
// else is skipped.
func (s *Store) Save(key Key, value any) {
	outcome := s.save(key, value)
	metrics.CacheWrites.WithLabelValues(string(key.Namespace()), outcome).Inc()
}

func (s *Store) save(key Key, value any) (outcome string) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache save skipped: marshal failed")
		return "dropped"
	}

	env := envelope{Data: payload, Timestamp: s.now().UnixMilli()}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache save skipped: envelope marshal failed")
		return "dropped"
	}

	encoded, err := s.codec.Encode(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache save skipped: encode failed")
		return "dropped"
	}

	outcome = "stored"
	if len(encoded) > s.cfg.MaxEntryBytes {
		if key.Namespace() != NamespaceProfile {
			s.log.Debug().
				Str("key", key.Storage()).
				Int("size", len(encoded)).
				Int("ceiling", s.cfg.MaxEntryBytes).
				Msg("Cache entry over size ceiling, skipped")
			return "skipped"
		}

		// Profiles are valuable enough to retry with provenance trimmed.
		reduced, ok := reduceProfile(payload, s.cfg.TopContributors)
		if !ok {
			return "skipped"
		}
		env.Data = reduced
		raw, err = json.Marshal(env)
		if err != nil {
			return "dropped"
		}
		encoded, err = s.codec.Encode(raw)
		if err != nil || len(encoded) > s.cfg.MaxEntryBytes {
			s.log.Debug().Str("key", key.Storage()).Msg("Reduced profile still over ceiling, skipped")
			return "skipped"
		}
		outcome = "reduced"
	}

	metrics.CacheEntrySize.Observe(float64(len(encoded)))

	if err := s.put(key, encoded); err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache save failed")
		return "dropped"
	}
	return outcome
}

// put writes the encoded entry, evicting oldest same-namespace entries and
// retrying once if the write would exceed the capacity budget.
func (s *Store) put(key Key, encoded []byte) error {
	if s.usedBytes()+int64(len(encoded)) > s.cfg.MaxCapacityBytes {
		s.evictOldest(key.Namespace())
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.Storage()), encoded)
	})
	if err == nil {
		return nil
	}

	// Badger can still reject a write under pressure; free space and retry
	// once before giving up.
	s.evictOldest(key.Namespace())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.Storage()), encoded)
	})
}

// Get loads the entry for key into dest. It returns true only for a fresh,
// well-formed hit. Expired entries are deleted on read. Entries whose payload
// does not match the namespace's expected shape are treated as corrupt,
// deleted, and reported as a miss.
func (s *Store) Get(key Key, dest any) bool {
	ns := string(key.Namespace())

	var encoded []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.Storage()))
		if err != nil {
			return err
		}
		encoded, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache read failed")
		}
		metrics.CacheMisses.WithLabelValues(ns, "not_found").Inc()
		return false
	}

	raw, err := s.codec.Decode(encoded)
	if err != nil {
		s.discard(key, "corrupt")
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.discard(key, "corrupt")
		return false
	}

	age := s.now().Sub(time.UnixMilli(env.Timestamp))
	if env.Timestamp <= 0 || age > s.cfg.TTL {
		s.discard(key, "expired")
		return false
	}

	if err := validatePayload(key.Namespace(), env.Data); err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Cache entry shape mismatch, discarded")
		s.discard(key, "corrupt")
		return false
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		s.discard(key, "corrupt")
		return false
	}

	metrics.CacheHits.WithLabelValues(ns).Inc()
	return true
}

// discard deletes a stale or corrupt entry and records the miss reason.
func (s *Store) discard(key Key, reason string) {
	metrics.CacheMisses.WithLabelValues(string(key.Namespace()), reason).Inc()
	if err := s.Delete(key); err != nil {
		s.log.Warn().Err(err).Str("key", key.Storage()).Msg("Failed to delete stale cache entry")
	}
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(key Key) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.Storage()))
	})
}

// Clear removes every cache entry.
func (s *Store) Clear() error {
	return s.db.DropAll()
}

// validatePayload checks that a cached payload carries the structural marker
// expected for its namespace. A catalog entry without a media list (or a
// ratings entry without a mediaList) indicates the entry was written under a
// colliding or mistyped key and must not be returned.
func validatePayload(ns Namespace, data json.RawMessage) error {
	var probe map[string]json.RawMessage
	switch ns {
	case NamespaceCatalog:
		if err := json.Unmarshal(data, &probe); err != nil {
			return fmt.Errorf("catalog payload: %w", err)
		}
		if _, ok := probe["media"]; !ok {
			return errors.New("catalog payload missing media list")
		}
	case NamespaceRatings, NamespaceCompleteRatings:
		if err := json.Unmarshal(data, &probe); err != nil {
			return fmt.Errorf("ratings payload: %w", err)
		}
		if _, ok := probe["mediaList"]; !ok {
			return errors.New("ratings payload missing mediaList")
		}
	case NamespaceProfile, NamespaceCombined:
		// Object-shaped payloads with no single discriminant field.
		if len(data) == 0 || data[0] != '{' {
			return errors.New("payload is not an object")
		}
	}
	return nil
}

// Stats describes current cache occupancy.
type Stats struct {
	Entries      int               `json:"entries"`
	Bytes        int64             `json:"bytes"`
	ByNamespace  map[string]int    `json:"byNamespace"`
	CapacityUsed float64           `json:"capacityUsed"`
	Compression  string            `json:"compression"`
	TTL          string            `json:"ttl"`
	Oldest       map[string]string `json:"oldest,omitempty"`
}

// Stats reports entry counts, byte usage, and the oldest entry write time
// per namespace.
func (s *Store) Stats() Stats {
	st := Stats{
		ByNamespace: make(map[string]int),
		Compression: s.codec.Name(),
		TTL:         s.cfg.TTL.String(),
	}

	oldest := make(map[string]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			ns := namespaceOf(item.Key())
			st.Entries++
			st.Bytes += item.EstimatedSize()
			st.ByNamespace[ns]++

			var ts int64
			verr := item.Value(func(val []byte) error {
				raw, derr := s.codec.Decode(val)
				if derr != nil {
					return derr
				}
				var env envelope
				if derr := json.Unmarshal(raw, &env); derr != nil {
					return derr
				}
				ts = env.Timestamp
				return nil
			})
			if verr != nil || ts <= 0 {
				continue
			}
			if cur, ok := oldest[ns]; !ok || ts < cur {
				oldest[ns] = ts
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Cache stats scan failed")
	}

	if len(oldest) > 0 {
		st.Oldest = make(map[string]string, len(oldest))
		for ns, ts := range oldest {
			st.Oldest[ns] = time.UnixMilli(ts).UTC().Format(time.RFC3339)
		}
	}
	if s.cfg.MaxCapacityBytes > 0 {
		st.CapacityUsed = float64(st.Bytes) / float64(s.cfg.MaxCapacityBytes)
	}
	return st
}

// usedBytes estimates total stored bytes across all entries.
func (s *Store) usedBytes() int64 {
	var total int64
	_ = s.db.View(func(txn *badger.Txn) error { //nolint:errcheck // estimate only
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			total += it.Item().EstimatedSize()
		}
		return nil
	})
	return total
}

// agedKey pairs a storage key with its envelope timestamp for eviction
// ordering.
type agedKey struct {
	key []byte
	ts  int64
}

// evictOldest removes the oldest configured fraction of entries sharing the
// given namespace prefix. Entries whose envelope cannot be parsed sort as
// oldest and go first.
func (s *Store) evictOldest(ns Namespace) {
	prefix := []byte(string(ns) + ":")

	var aged []agedKey
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			var ts int64
			verr := item.Value(func(val []byte) error {
				raw, derr := s.codec.Decode(val)
				if derr != nil {
					return derr
				}
				var env envelope
				if derr := json.Unmarshal(raw, &env); derr != nil {
					return derr
				}
				ts = env.Timestamp
				return nil
			})
			if verr != nil {
				ts = 0
			}
			aged = append(aged, agedKey{key: k, ts: ts})
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("namespace", string(ns)).Msg("Eviction scan failed")
		return
	}
	if len(aged) == 0 {
		return
	}

	sort.Slice(aged, func(i, j int) bool { return aged[i].ts < aged[j].ts })

	n := int(math.Ceil(float64(len(aged)) * s.cfg.EvictFraction))
	if n < 1 {
		n = 1
	}
	if n > len(aged) {
		n = len(aged)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, a := range aged[:n] {
			if derr := txn.Delete(a.key); derr != nil {
				return derr
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("namespace", string(ns)).Msg("Eviction delete failed")
		return
	}

	metrics.CacheEvictions.WithLabelValues(string(ns)).Add(float64(n))
	s.log.Info().
		Str("namespace", string(ns)).
		Int("evicted", n).
		Int("scanned", len(aged)).
		Msg("Evicted oldest cache entries under storage pressure")
}

// namespaceOf extracts the namespace prefix of a storage key.
func namespaceOf(key []byte) string {
	if i := bytes.IndexByte(key, ':'); i > 0 {
		return string(key[:i])
	}
	return "unknown"
}
