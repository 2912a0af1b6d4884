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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

// SetAutoIncrement makes next the id assigned to the next inserted row.
func (r *baseRepositoryImpl[T]) SetAutoIncrement(ctx context.Context, next int64) error {
	pk, err := r.sequenceField()
	if err != nil {
		return err
	}
	if next < 1 {
		return fmt.Errorf("%w: auto increment must be positive, got %d", ErrInvalidArgument, next)
	}
	switch name := r.db.Dialect().Name(); name {
	case dialect.MySQL:
		_, err = r.db.NewRaw("ALTER TABLE ? AUTO_INCREMENT = ?", r.table.SQLName, next).Exec(ctx)
	case dialect.PG:
		_, err = r.db.NewRaw("SELECT setval(pg_get_serial_sequence(?, ?), ?, false)",
			r.table.Name, pk.Name, next).Exec(ctx)
	case dialect.SQLite:
		err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewRaw("DELETE FROM sqlite_sequence WHERE name = ?", r.table.Name).Exec(ctx); err != nil {
				return err
			}
			_, err := tx.NewRaw("INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", r.table.Name, next-1).Exec(ctx)
			return err
		})
	default:
		return r.misconfigured("auto increment is not supported on %s", name)
	}
	return err
}

// GetAutoIncrement returns the id the next inserted row will receive.
func (r *baseRepositoryImpl[T]) GetAutoIncrement(ctx context.Context) (int64, error) {
	pk, err := r.sequenceField()
	if err != nil {
		return 0, err
	}
	switch name := r.db.Dialect().Name(); name {
	case dialect.MySQL:
		var next sql.NullInt64
		err := r.db.NewRaw(
			"SELECT AUTO_INCREMENT FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
			r.table.Name,
		).Scan(ctx, &next)
		if err != nil {
			return 0, err
		}
		if !next.Valid {
			return 1, nil
		}
		return next.Int64, nil
	case dialect.PG:
		var seq string
		if err := r.db.NewRaw("SELECT pg_get_serial_sequence(?, ?)", r.table.Name, pk.Name).Scan(ctx, &seq); err != nil {
			return 0, err
		}
		var last int64
		var called bool
		if err := r.db.NewRaw("SELECT last_value, is_called FROM ?", bun.Safe(seq)).Scan(ctx, &last, &called); err != nil {
			return 0, err
		}
		if called {
			return last + 1, nil
		}
		return last, nil
	case dialect.SQLite:
		var seq int64
		err := r.db.NewRaw("SELECT seq FROM sqlite_sequence WHERE name = ?", r.table.Name).Scan(ctx, &seq)
		if errors.Is(err, sql.ErrNoRows) {
			err = r.db.NewRaw("SELECT COALESCE(MAX(?), 0) FROM ?", bun.Ident(pk.Name), r.table.SQLName).Scan(ctx, &seq)
		}
		if err != nil {
			return 0, err
		}
		return seq + 1, nil
	default:
		return 0, r.misconfigured("auto increment is not supported on %s", name)
	}
}

func (r *baseRepositoryImpl[T]) sequenceField() (*schema.Field, error) {
	if !r.pk.AutoIncrement && !r.pk.Identity {
		return nil, r.misconfigured("primary key %s is not auto-incremented", r.pk.Name)
	}
	switch r.pk.IndirectType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return r.pk, nil
	default:
		return nil, r.misconfigured("primary key %s is not an integer", r.pk.Name)
	}
}
