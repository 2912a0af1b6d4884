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
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/stratum/types"
	"github.com/tomoncle/stratum/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

const (
	// DefaultCacheTTL applies when WithCache is given a non-positive ttl.
	DefaultCacheTTL = time.Minute

	createdAtColumn  = "created_at"
	updatedAtColumn  = "updated_at"
	disabledAtColumn = "disabled_at"
)

var logger = utils.NewLogger("REPOSITORY")

type stamper interface {
	Stamp(now time.Time, creating bool)
}

type options struct {
	cache    Cache
	ttl      time.Duration
	clock    func() time.Time
	pageSize int
}

// Option configures a repository.
type Option func(*options)

// WithCache memoizes All results in store for ttl.
func WithCache(store Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = store
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		o.ttl = ttl
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithPageSize sets the page size used when Paginate is called without one.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

type baseRepositoryImpl[T any] struct {
	db    bun.IDB
	table *schema.Table
	pk    *schema.Field
	opts  options
}

// NewRepository returns a generic repository for T backed by db, which may be
// a *bun.DB, a bun.Conn or a bun.Tx. T must be a Bun model struct with exactly
// one primary key column.
func NewRepository[T any](db bun.IDB, opts ...Option) (Repository[T], error) {
	o := options{clock: time.Now, pageSize: types.DefaultPageSize, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if db == nil || reflect.ValueOf(db).Kind() == reflect.Ptr && reflect.ValueOf(db).IsNil() {
		return nil, &ConfigurationError{Entity: typ.String(), Reason: "no database given"}
	}
	if typ.Kind() != reflect.Struct {
		return nil, &ConfigurationError{Entity: typ.String(), Reason: "entity type must be a struct"}
	}
	table, err := lookupTable(db, typ)
	if err != nil {
		return nil, err
	}
	if len(table.PKs) != 1 {
		return nil, &ConfigurationError{
			Entity: table.TypeName,
			Reason: fmt.Sprintf("expected exactly one primary key, got %d", len(table.PKs)),
		}
	}
	return &baseRepositoryImpl[T]{db: db, table: table, pk: table.PKs[0], opts: o}, nil
}

// MustRepository is like NewRepository but panics on error.
func MustRepository[T any](db bun.IDB, opts ...Option) Repository[T] {
	repo, err := NewRepository[T](db, opts...)
	if err != nil {
		panic(err)
	}
	return repo
}

func lookupTable(db bun.IDB, typ reflect.Type) (table *schema.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ConfigurationError{Entity: typ.String(), Reason: fmt.Sprint(r)}
		}
	}()
	return db.Dialect().Tables().Get(typ), nil
}

func (r *baseRepositoryImpl[T]) WithTx(tx bun.IDB) Repository[T] {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) Table() *schema.Table { return r.table }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) now() time.Time {
	return r.opts.clock()
}

func (r *baseRepositoryImpl[T]) notFound(id any) error {
	return &NotFoundError{Entity: r.table.TypeName, ID: id}
}

func (r *baseRepositoryImpl[T]) misconfigured(format string, args ...any) error {
	return &ConfigurationError{Entity: r.table.TypeName, Reason: fmt.Sprintf(format, args...)}
}

func (r *baseRepositoryImpl[T]) field(name string) (*schema.Field, error) {
	f, ok := r.table.FieldMap[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.table.Name, name)
	}
	return f, nil
}

func (r *baseRepositoryImpl[T]) hasColumn(name string) bool {
	_, ok := r.table.FieldMap[name]
	return ok
}

func (r *baseRepositoryImpl[T]) stamp(entity *T, now time.Time, creating bool) {
	if s, ok := any(entity).(stamper); ok {
		s.Stamp(now, creating)
	}
}

func (r *baseRepositoryImpl[T]) log() *logrus.Entry {
	return logger.WithField("entity", r.table.TypeName)
}

// whereable is satisfied by the select, update and delete builders.
type whereable[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// applyCriteria adds one equality condition per key, in key order. Select
// queries qualify columns with the table alias; update and delete do not,
// since some dialects reject aliases there.
func applyCriteria[T any, Q whereable[Q]](r *baseRepositoryImpl[T], q Q, criteria types.Criteria, qualified bool) (Q, error) {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := r.field(k); err != nil {
			return q, err
		}
		col := columnExpr(qualified)
		if v := criteria[k]; isNull(v) {
			q = q.Where(col+" IS NULL", bun.Ident(k))
		} else {
			q = q.Where(col+" = ?", bun.Ident(k), v)
		}
	}
	return q, nil
}

// isNull reports whether v should match SQL NULL, which includes typed nil
// pointers such as a nil *time.Time.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func columnExpr(qualified bool) string {
	if qualified {
		return "?TableAlias.?"
	}
	return "?"
}

func (r *baseRepositoryImpl[T]) applyOrders(q *bun.SelectQuery, orders []types.Order) (*bun.SelectQuery, error) {
	for _, o := range orders {
		if _, err := r.field(o.Field); err != nil {
			return q, err
		}
		q = q.OrderExpr("?TableAlias.? "+string(o.Normalized()), bun.Ident(o.Field))
	}
	return q.OrderExpr("?TableAlias.? ASC", bun.Ident(r.pk.Name)), nil
}
