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
	"database/sql"
	"errors"
	"time"

	"github.com/tomoncle/stratum/types"
	"github.com/tomoncle/stratum/utils"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"
)

// selectOne scans the first row of q into entity, which must be q's model.
func (r *baseRepositoryImpl[T]) selectOne(ctx context.Context, q *bun.SelectQuery, entity *T, id any) (*T, error) {
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Find(ctx context.Context, id any) (*T, error) {
	entity := new(T)
	q := r.db.NewSelect().Model(entity).Where("?TableAlias.? = ?", bun.Ident(r.pk.Name), id)
	return r.selectOne(ctx, q, entity, id)
}

func (r *baseRepositoryImpl[T]) FindOrNew(ctx context.Context, id any) (*T, error) {
	entity, err := r.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return new(T), nil
	}
	return entity, err
}

func (r *baseRepositoryImpl[T]) FindMany(ctx context.Context, ids []any) ([]*T, error) {
	entities := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return entities, nil
	}
	err := r.db.NewSelect().
		Model(&entities).
		Where("?TableAlias.? IN (?)", bun.Ident(r.pk.Name), bun.In(ids)).
		Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) FindBy(ctx context.Context, field string, value any) (*T, error) {
	return r.First(ctx, types.Criteria{field: value})
}

func (r *baseRepositoryImpl[T]) First(ctx context.Context, criteria types.Criteria) (*T, error) {
	entity := new(T)
	q, err := applyCriteria(r, r.db.NewSelect().Model(entity), criteria, true)
	if err != nil {
		return nil, err
	}
	q, _ = r.applyOrders(q, nil)
	return r.selectOne(ctx, q, entity, criteriaID(criteria))
}

func (r *baseRepositoryImpl[T]) FirstOrCreate(ctx context.Context, criteria types.Criteria, entity *T) (*T, error) {
	found, err := r.First(ctx, criteria)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, entity)
	}
	return found, err
}

// FirstOrNew returns the first match of criteria, else entity with the
// criteria values copied onto it. Nothing is saved.
func (r *baseRepositoryImpl[T]) FirstOrNew(ctx context.Context, criteria types.Criteria, entity *T) (*T, error) {
	found, err := r.First(ctx, criteria)
	if !errors.Is(err, ErrNotFound) {
		return found, err
	}
	if entity == nil {
		entity = new(T)
	}
	if err := r.fill(entity, criteria); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, criteria types.Criteria) (bool, error) {
	q, err := applyCriteria(r, r.db.NewSelect().Model((*T)(nil)), criteria, true)
	if err != nil {
		return false, err
	}
	return q.Exists(ctx)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, criteria types.Criteria) (int, error) {
	q, err := applyCriteria(r, r.db.NewSelect().Model((*T)(nil)), criteria, true)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (r *baseRepositoryImpl[T]) GetWhere(ctx context.Context, criteria types.Criteria, orders ...types.Order) ([]*T, error) {
	entities := make([]*T, 0)
	q, err := applyCriteria(r, r.db.NewSelect().Model(&entities), criteria, true)
	if err != nil {
		return nil, err
	}
	if q, err = r.applyOrders(q, orders); err != nil {
		return nil, err
	}
	if err = q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) GetWhereIn(ctx context.Context, field string, values []any) ([]*T, error) {
	if _, err := r.field(field); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	if len(values) == 0 {
		return entities, nil
	}
	q := r.db.NewSelect().Model(&entities).Where("?TableAlias.? IN (?)", bun.Ident(field), bun.In(values))
	q, _ = r.applyOrders(q, nil)
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) GetWhereNotIn(ctx context.Context, field string, values []any) (*T, error) {
	if _, err := r.field(field); err != nil {
		return nil, err
	}
	entity := new(T)
	q := r.db.NewSelect().Model(entity)
	if len(values) > 0 {
		q = q.Where("?TableAlias.? NOT IN (?)", bun.Ident(field), bun.In(values))
	}
	q, _ = r.applyOrders(q, nil)
	return r.selectOne(ctx, q, entity, nil)
}

func (r *baseRepositoryImpl[T]) All(ctx context.Context, ids []any, columns ...string) ([]*T, error) {
	for _, c := range columns {
		if _, err := r.field(c); err != nil {
			return nil, err
		}
	}
	if r.opts.cache == nil {
		return r.all(ctx, ids, columns)
	}

	key, err := utils.HexKey("All", r.table.Name, ids, columns)
	if err != nil {
		return nil, err
	}
	if data, ok, err := r.opts.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		r.log().WithField("key", key).Debug("cache hit")
		entities := make([]*T, 0)
		if err := msgpack.Unmarshal(data, &entities); err != nil {
			return nil, err
		}
		return entities, nil
	}

	start := time.Now()
	entities, err := r.all(ctx, ids, columns)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(entities)
	if err != nil {
		return nil, err
	}
	if err := r.opts.cache.Set(ctx, key, data, r.opts.ttl); err != nil {
		return nil, err
	}
	r.log().WithField("key", key).WithField("took", utils.Since(start)).Debug("cache miss")
	return entities, nil
}

func (r *baseRepositoryImpl[T]) all(ctx context.Context, ids []any, columns []string) ([]*T, error) {
	entities := make([]*T, 0, len(ids))
	q := r.db.NewSelect().Model(&entities)
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	if len(ids) > 0 {
		q = q.Where("?TableAlias.? IN (?)", bun.Ident(r.pk.Name), bun.In(ids))
	}
	q, _ = r.applyOrders(q, nil)
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Paginate(ctx context.Context, pageSize int, criteria types.Criteria, orders ...types.Order) (*types.Pagination[T], error) {
	if pageSize <= 0 {
		pageSize = r.opts.pageSize
	}
	scope := types.ScopeFrom(ctx)
	return r.Page(ctx, types.NewPageRequest(scope.Page, pageSize, criteria, orders...))
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, r.opts.pageSize)
	}
	scope := types.ScopeFrom(ctx)
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	pagination.Path = scope.Path
	pagination.Query = scope.Query

	var entities []*T
	query, err := applyCriteria(r, r.db.NewSelect().Model(&entities), pageRequest.GetCriteria(), true)
	if err != nil {
		return nil, err
	}
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	if query, err = r.applyOrders(query, pageRequest.GetOrders()); err != nil {
		return nil, err
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	if entities != nil {
		pagination.Items = entities
	}
	return pagination, nil
}

// criteriaID names a single-key lookup in NotFoundError messages.
func criteriaID(criteria types.Criteria) any {
	if len(criteria) != 1 {
		return nil
	}
	for _, v := range criteria {
		return v
	}
	return nil
}
