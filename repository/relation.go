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
	"fmt"

	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// SyncRelation makes relatedIDs the members of the many-to-many relation
// named by its struct field (e.g. "Roles"). With detaching false, existing
// members not in relatedIDs are kept. The work runs in one transaction, or
// a savepoint when the repository is already bound to one.
func (r *baseRepositoryImpl[T]) SyncRelation(ctx context.Context, id any, relation string, relatedIDs []any, detaching bool) (*types.SyncResult, error) {
	rel, err := r.m2m(relation)
	if err != nil {
		return nil, err
	}
	junction := rel.M2MTable.SQLName
	baseCol := bun.Ident(rel.M2MBaseFields[0].Name)
	joinCol := bun.Ident(rel.M2MJoinFields[0].Name)

	result := &types.SyncResult{Attached: []any{}, Detached: []any{}}
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.WithTx(tx).Find(ctx, id); err != nil {
			return err
		}
		current, err := r.relatedKeys(ctx, tx, junction, baseCol, joinCol, id)
		if err != nil {
			return err
		}

		wanted := make(map[string]struct{}, len(relatedIDs))
		for _, rid := range relatedIDs {
			k := keyOf(rid)
			if _, dup := wanted[k]; dup {
				continue
			}
			wanted[k] = struct{}{}
			if current.has(k) {
				continue
			}
			row := map[string]interface{}{
				rel.M2MBaseFields[0].Name: id,
				rel.M2MJoinFields[0].Name: rid,
			}
			if _, err := tx.NewInsert().Model(&row).TableExpr("?", junction).Exec(ctx); err != nil {
				return fmt.Errorf("failed to attach %v to %s: %w", rid, relation, err)
			}
			result.Attached = append(result.Attached, rid)
		}

		if !detaching {
			return nil
		}
		for _, k := range current.order {
			if _, ok := wanted[k]; !ok {
				result.Detached = append(result.Detached, current.values[k])
			}
		}
		if len(result.Detached) == 0 {
			return nil
		}
		_, err = tx.NewDelete().
			TableExpr("?", junction).
			Where("? = ?", baseCol, id).
			Where("? IN (?)", joinCol, bun.In(result.Detached)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to detach from %s: %w", relation, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *baseRepositoryImpl[T]) SyncWithoutDetaching(ctx context.Context, id any, relation string, relatedIDs []any) (*types.SyncResult, error) {
	return r.SyncRelation(ctx, id, relation, relatedIDs, false)
}

func (r *baseRepositoryImpl[T]) m2m(name string) (*schema.Relation, error) {
	rel, ok := r.table.Relations[name]
	if !ok {
		return nil, r.misconfigured("unknown relation %q", name)
	}
	if rel.Type != schema.ManyToManyRelation {
		return nil, r.misconfigured("relation %q is not many-to-many", name)
	}
	if len(rel.M2MBaseFields) != 1 || len(rel.M2MJoinFields) != 1 {
		return nil, r.misconfigured("relation %q must use single-column keys", name)
	}
	return rel, nil
}

type keySet struct {
	order  []string
	values map[string]any
}

func (s keySet) has(k string) bool {
	_, ok := s.values[k]
	return ok
}

func (r *baseRepositoryImpl[T]) relatedKeys(ctx context.Context, tx bun.Tx, junction schema.Safe, baseCol, joinCol bun.Ident, id any) (keySet, error) {
	set := keySet{values: make(map[string]any)}
	rows, err := tx.NewSelect().
		TableExpr("?", junction).
		ColumnExpr("?", joinCol).
		Where("? = ?", baseCol, id).
		Rows(ctx)
	if err != nil {
		return set, err
	}
	defer rows.Close()
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return set, err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		k := keyOf(v)
		if !set.has(k) {
			set.order = append(set.order, k)
			set.values[k] = v
		}
	}
	return set, rows.Err()
}

// keyOf compares ids by their printed form so that int and int64, or
// string and []byte, match.
func keyOf(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}
