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

package repository

import (
	"context"
	"time"

	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines single-record reads and writes for an entity type.
type CrudRepository[T any] interface {
	Find(ctx context.Context, id any) (*T, error)

	// FindOrNew returns a fresh, unsaved entity when id does not exist.
	FindOrNew(ctx context.Context, id any) (*T, error)

	Create(ctx context.Context, entity *T) (*T, error)

	Update(ctx context.Context, id any, attrs types.Attributes) (*T, error)

	// UpdateFirst updates the first row matching criteria.
	UpdateFirst(ctx context.Context, criteria types.Criteria, attrs types.Attributes) (*T, error)

	// UpdateOrCreate updates the first row matching criteria, or creates
	// entity filled from criteria and attrs.
	UpdateOrCreate(ctx context.Context, criteria types.Criteria, attrs types.Attributes, entity *T) (*T, error)

	Disable(ctx context.Context, id any) (*T, error)

	Enable(ctx context.Context, id any) (*T, error)

	Delete(ctx context.Context, id any) (int64, error)
}

// QueryRepository defines criteria based reads.
type QueryRepository[T any] interface {
	FindMany(ctx context.Context, ids []any) ([]*T, error)
	FindBy(ctx context.Context, field string, value any) (*T, error)
	First(ctx context.Context, criteria types.Criteria) (*T, error)
	FirstOrCreate(ctx context.Context, criteria types.Criteria, entity *T) (*T, error)
	FirstOrNew(ctx context.Context, criteria types.Criteria, entity *T) (*T, error)
	Exists(ctx context.Context, criteria types.Criteria) (bool, error)
	Count(ctx context.Context, criteria types.Criteria) (int, error)
	GetWhere(ctx context.Context, criteria types.Criteria, orders ...types.Order) ([]*T, error)
	GetWhereIn(ctx context.Context, field string, values []any) ([]*T, error)

	// GetWhereNotIn returns only the first row whose field is outside values.
	GetWhereNotIn(ctx context.Context, field string, values []any) (*T, error)

	// Value scans one column of the first matching row into dest.
	Value(ctx context.Context, column string, criteria types.Criteria, dest any) error

	// Pluck scans one column of every matching row into dest, a pointer to a slice.
	Pluck(ctx context.Context, column string, criteria types.Criteria, dest any) error

	Max(ctx context.Context, column string, criteria types.Criteria, dest any) error
	Min(ctx context.Context, column string, criteria types.Criteria, dest any) error

	// All returns every row, or the rows whose primary key is in ids,
	// optionally restricted to columns. Results are cached when a Cache is set.
	All(ctx context.Context, ids []any, columns ...string) ([]*T, error)
}

// BulkRepository defines multi-row writes. None of them is atomic unless
// the repository is bound to a transaction with WithTx.
type BulkRepository[T any] interface {
	InsertMany(ctx context.Context, entities []*T) ([]*T, error)
	InsertBulk(ctx context.Context, entities []*T) ([]*T, error)
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error
	UpdateWhere(ctx context.Context, criteria types.Criteria, attrs types.Attributes) (int64, error)
	DeleteWhere(ctx context.Context, criteria types.Criteria) (int64, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	// Paginate reads the current page, path and query from the request scope in ctx.
	Paginate(ctx context.Context, pageSize int, criteria types.Criteria, orders ...types.Order) (*types.Pagination[T], error)
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// RelationRepository manages many-to-many memberships.
type RelationRepository interface {
	SyncRelation(ctx context.Context, id any, relation string, relatedIDs []any, detaching bool) (*types.SyncResult, error)
	SyncWithoutDetaching(ctx context.Context, id any, relation string, relatedIDs []any) (*types.SyncResult, error)
}

// SequenceRepository reads and resets the next generated primary key.
type SequenceRepository interface {
	SetAutoIncrement(ctx context.Context, next int64) error
	GetAutoIncrement(ctx context.Context) (int64, error)
}

// Repository combines every operation on one entity type and exposes Bun
// query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	QueryRepository[T]
	BulkRepository[T]
	PageQueryRepository[T]
	RelationRepository
	SequenceRepository

	// WithTx returns the same repository bound to tx.
	WithTx(tx bun.IDB) Repository[T]

	DB() bun.IDB
	Table() *schema.Table
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}

// Cache is a get/set-with-expiry key value store. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
