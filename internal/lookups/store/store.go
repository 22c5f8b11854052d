// Package store keeps processed result tables for the length of a session so
// they can be fetched and downloaded.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ean_lookup_backend/internal/lookups/transport"
	"ean_lookup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "eanlookup:results:"
	opGet     = "store.get"
	opSave    = "store.save"
)

// Store keeps result tables until their TTL runs out.
type Store interface {
	Save(ctx context.Context, table transport.ResultTable) error
	Get(ctx context.Context, id uuid.UUID) (transport.ResultTable, error)
}

func notFound(id uuid.UUID) error {
	return apperr.NotFound(fmt.Sprintf("lookup %s not found or expired", id)).WithOp(opGet)
}

type memoryEntry struct {
	table     transport.ResultTable
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired tables are dropped lazily on
// access and on every save.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, table transport.ResultTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}

	s.entries[table.ID] = memoryEntry{table: table, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (transport.ResultTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return transport.ResultTable{}, notFound(id)
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return transport.ResultTable{}, notFound(id)
	}
	return entry.table, nil
}

// RedisStore keeps tables as JSON in Redis with an expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, table transport.ResultTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode result table", err).WithOp(opSave)
	}
	if err := s.client.Set(ctx, keyPrefix+table.ID.String(), data, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "store result table", err).WithOp(opSave)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (transport.ResultTable, error) {
	data, err := s.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return transport.ResultTable{}, notFound(id)
	}
	if err != nil {
		return transport.ResultTable{}, apperr.Wrap(apperr.KindInternal, "load result table", err).WithOp(opGet)
	}

	var table transport.ResultTable
	if err := json.Unmarshal(data, &table); err != nil {
		return transport.ResultTable{}, apperr.Wrap(apperr.KindInternal, "decode result table", err).WithOp(opGet)
	}
	return table, nil
}
