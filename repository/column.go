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
	"fmt"
	"reflect"

	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
)

// Value scans column of the first matching row, in primary key order, into
// dest.
func (r *baseRepositoryImpl[T]) Value(ctx context.Context, column string, criteria types.Criteria, dest any) error {
	q, err := r.columnQuery(column, criteria)
	if err != nil {
		return err
	}
	q, _ = r.applyOrders(q, nil)
	err = q.Limit(1).Scan(ctx, dest)
	if errors.Is(err, sql.ErrNoRows) {
		return r.notFound(criteriaID(criteria))
	}
	return err
}

// Pluck scans column of every matching row, in primary key order, into dest,
// which must point to a slice.
func (r *baseRepositoryImpl[T]) Pluck(ctx context.Context, column string, criteria types.Criteria, dest any) error {
	q, err := r.columnQuery(column, criteria)
	if err != nil {
		return err
	}
	q, _ = r.applyOrders(q, nil)
	return q.Scan(ctx, dest)
}

// Max scans the largest value of column into dest. Without matching rows the
// database returns NULL, which leaves dest at its zero value.
func (r *baseRepositoryImpl[T]) Max(ctx context.Context, column string, criteria types.Criteria, dest any) error {
	return r.aggregate(ctx, "MAX", column, criteria, dest)
}

// Min is Max for the smallest value.
func (r *baseRepositoryImpl[T]) Min(ctx context.Context, column string, criteria types.Criteria, dest any) error {
	return r.aggregate(ctx, "MIN", column, criteria, dest)
}

func (r *baseRepositoryImpl[T]) aggregate(ctx context.Context, fn, column string, criteria types.Criteria, dest any) error {
	if _, err := r.field(column); err != nil {
		return err
	}
	q, err := applyCriteria(r, r.db.NewSelect().Model((*T)(nil)), criteria, true)
	if err != nil {
		return err
	}
	return q.ColumnExpr(fn+"(?TableAlias.?)", bun.Ident(column)).Scan(ctx, dest)
}

func (r *baseRepositoryImpl[T]) columnQuery(column string, criteria types.Criteria) (*bun.SelectQuery, error) {
	if _, err := r.field(column); err != nil {
		return nil, err
	}
	q := r.db.NewSelect().Model((*T)(nil)).ColumnExpr("?TableAlias.?", bun.Ident(column))
	return applyCriteria(r, q, criteria, true)
}

// fill copies criteria values onto entity. Numbers convert between widths and
// plain values are wrapped when the field is a pointer.
func (r *baseRepositoryImpl[T]) fill(entity *T, values types.Criteria) error {
	strct := reflect.ValueOf(entity).Elem()
	for column, v := range values {
		f, err := r.field(column)
		if err != nil {
			return err
		}
		fv := f.Value(strct)
		if !assign(fv, v) {
			return fmt.Errorf("cannot assign %T to %s.%s", v, r.table.Name, column)
		}
	}
	return nil
}

func assign(fv reflect.Value, v any) bool {
	if isNull(v) {
		fv.Set(reflect.Zero(fv.Type()))
		return true
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case isNumber(rv.Kind()) && isNumber(fv.Kind()):
		fv.Set(rv.Convert(fv.Type()))
	case fv.Kind() == reflect.Ptr && rv.Type().AssignableTo(fv.Type().Elem()):
		p := reflect.New(fv.Type().Elem())
		p.Elem().Set(rv)
		fv.Set(p)
	default:
		return false
	}
	return true
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
