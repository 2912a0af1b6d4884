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
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		entity = new(T)
	}
	r.stamp(entity, r.now(), true)
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// InsertMany creates each entity in turn. Rows written before a failure stay
// written; bind the repository to a transaction for all-or-nothing.
func (r *baseRepositoryImpl[T]) InsertMany(ctx context.Context, entities []*T) ([]*T, error) {
	created := make([]*T, 0, len(entities))
	for _, entity := range entities {
		e, err := r.Create(ctx, entity)
		if err != nil {
			return created, err
		}
		created = append(created, e)
	}
	return created, nil
}

// InsertBulk stamps every entity with the same time and writes them in one
// statement.
func (r *baseRepositoryImpl[T]) InsertBulk(ctx context.Context, entities []*T) ([]*T, error) {
	if len(entities) == 0 {
		return entities, nil
	}
	now := r.now()
	for _, entity := range entities {
		r.stamp(entity, now, true)
	}
	if _, err := r.db.NewInsert().Model(&entities).Exec(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, id any, attrs types.Attributes) (*T, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}
	if _, ok := attrs[updatedAtColumn]; !ok && r.hasColumn(updatedAtColumn) {
		merged := make(types.Attributes, len(attrs)+1)
		for k, v := range attrs {
			merged[k] = v
		}
		merged[updatedAtColumn] = r.now()
		attrs = merged
	}
	if len(attrs) > 0 {
		q, err := r.applyAttributes(r.db.NewUpdate().Model((*T)(nil)), attrs)
		if err != nil {
			return nil, err
		}
		if _, err = q.Where("? = ?", bun.Ident(r.pk.Name), id).Exec(ctx); err != nil {
			return nil, err
		}
	}
	return r.Find(ctx, id)
}

// UpdateWhere writes attrs to every row matching criteria. Timestamps are
// only touched when attrs names them.
// UpdateFirst applies attrs to the first match of criteria.
func (r *baseRepositoryImpl[T]) UpdateFirst(ctx context.Context, criteria types.Criteria, attrs types.Attributes) (*T, error) {
	found, err := r.First(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, r.id(found), attrs)
}

// UpdateOrCreate applies attrs to the first match of criteria. Without a
// match it creates entity with criteria and attrs copied onto it.
func (r *baseRepositoryImpl[T]) UpdateOrCreate(ctx context.Context, criteria types.Criteria, attrs types.Attributes, entity *T) (*T, error) {
	found, err := r.First(ctx, criteria)
	switch {
	case err == nil:
		return r.Update(ctx, r.id(found), attrs)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	if entity == nil {
		entity = new(T)
	}
	if err := r.fill(entity, criteria); err != nil {
		return nil, err
	}
	if err := r.fill(entity, types.Criteria(attrs)); err != nil {
		return nil, err
	}
	return r.Create(ctx, entity)
}

func (r *baseRepositoryImpl[T]) id(entity *T) any {
	return r.pk.Value(reflect.ValueOf(entity).Elem()).Interface()
}

func (r *baseRepositoryImpl[T]) UpdateWhere(ctx context.Context, criteria types.Criteria, attrs types.Attributes) (int64, error) {
	if len(attrs) == 0 {
		return 0, nil
	}
	q, err := r.applyAttributes(r.db.NewUpdate().Model((*T)(nil)), attrs)
	if err != nil {
		return 0, err
	}
	if q, err = applyCriteria(r, q, criteria, false); err != nil {
		return 0, err
	}
	if len(criteria) == 0 {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T]) applyAttributes(q *bun.UpdateQuery, attrs types.Attributes) (*bun.UpdateQuery, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, err := r.field(k)
		if err != nil {
			return q, err
		}
		if f.IsPK {
			return q, fmt.Errorf("failed to update %s: primary key %s is read-only", r.table.TypeName, k)
		}
		q = q.Set("? = ?", bun.Ident(k), attrs[k])
	}
	return q, nil
}

func (r *baseRepositoryImpl[T]) Disable(ctx context.Context, id any) (*T, error) {
	if !r.hasColumn(disabledAtColumn) {
		return nil, r.misconfigured("no %s column", disabledAtColumn)
	}
	return r.Update(ctx, id, types.Attributes{disabledAtColumn: r.now()})
}

func (r *baseRepositoryImpl[T]) Enable(ctx context.Context, id any) (*T, error) {
	if !r.hasColumn(disabledAtColumn) {
		return nil, r.misconfigured("no %s column", disabledAtColumn)
	}
	return r.Update(ctx, id, types.Attributes{disabledAtColumn: nil})
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) (int64, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return 0, err
	}
	res, err := r.db.NewDelete().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(r.pk.Name), id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteWhere removes every row matching criteria; empty criteria removes all rows.
func (r *baseRepositoryImpl[T]) DeleteWhere(ctx context.Context, criteria types.Criteria) (int64, error) {
	q, err := applyCriteria(r, r.db.NewDelete().Model((*T)(nil)), criteria, false)
	if err != nil {
		return 0, err
	}
	if len(criteria) == 0 {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Upsert inserts entities, updating fields on rows that collide on
// duplicateKeys (the primary key when empty).
func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	for _, f := range append(append([]string{}, fields...), duplicateKeys...) {
		if _, err := r.field(f); err != nil {
			return err
		}
	}

	now := r.now()
	entities := make([]*T, len(entity))
	for i, e := range entity {
		r.stamp(e, now, true)
		entities[i] = e
	}

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertWithPostgresqlOrSQLite(ctx, fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertWithMySQL(ctx, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertWithMySQL(ctx context.Context, fields []string, entities []*T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", bun.Ident(field), bun.Ident(field)))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertWithPostgresqlOrSQLite(ctx context.Context, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{r.pk.Name}
	}
	keyNames := strings.Join(duplicateKeys, ",")
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", bun.Ident(field), bun.Ident(field)))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("CONFLICT (" + keyNames + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		_, err := r.db.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}
