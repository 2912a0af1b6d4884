/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/stratum/repository"
	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
)

// forever stands in for "no expiry" in the expires_at column.
const forever = 100 * 365 * 24 * time.Hour

// Entry is one row of the cache_entries table.
type Entry struct {
	bun.BaseModel `bun:"table:cache_entries,alias:ce"`

	Key       string    `bun:"cache_key,pk,type:varchar(128)"`
	Payload   []byte    `bun:"payload"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

// BunStore is a Cache kept in a database table, so entries are shared by
// every process using the same database.
type BunStore struct {
	db      bun.IDB
	entries repository.Repository[Entry]
	now     func() time.Time
}

var _ repository.Cache = (*BunStore)(nil)

// NewBunStore returns a store over the cache_entries table of db. Call
// CreateTable once if the table is not managed elsewhere.
func NewBunStore(db bun.IDB, now func() time.Time) (*BunStore, error) {
	if now == nil {
		now = time.Now
	}
	entries, err := repository.NewRepository[Entry](db, repository.WithClock(now))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	return &BunStore{db: db, entries: entries, now: now}, nil
}

func (s *BunStore) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.entries.Find(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !s.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// Set writes value under key, replacing any previous entry. A non-positive
// ttl never expires.
func (s *BunStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = forever
	}
	entry := &Entry{Key: key, Payload: value, ExpiresAt: s.now().Add(ttl)}
	return s.entries.Upsert(ctx, []string{"payload", "expires_at"}, []string{"cache_key"}, entry)
}

func (s *BunStore) Delete(ctx context.Context, key string) error {
	_, err := s.entries.DeleteWhere(ctx, types.Criteria{"cache_key": key})
	return err
}

// Purge removes expired rows and returns how many were deleted.
func (s *BunStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("? <= ?", bun.Ident("expires_at"), s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
