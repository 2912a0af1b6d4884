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

package stratum

import (
	"context"

	"github.com/tomoncle/stratum/repository"
	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the criteria, in the given order.
	List(ctx context.Context, criteria types.Criteria, orders ...types.Order) ([]*T, error)

	// Paginate returns the current page of the request scope in ctx.
	Paginate(ctx context.Context, pageSize int, criteria types.Criteria, orders ...types.Order) (*types.Pagination[T], error)

	// Page returns an explicitly requested page.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts a new entity.
	Save(ctx context.Context, model *T) (*T, error)

	// SaveMany inserts entities one at a time.
	SaveMany(ctx context.Context, models []*T) ([]*T, error)

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update writes attrs to an existing entity.
	Update(ctx context.Context, id any, attrs types.Attributes) (*T, error)

	// Disable marks an entity inactive without removing it.
	Disable(ctx context.Context, id any) (*T, error)

	// Enable clears the disabled marker.
	Enable(ctx context.Context, id any) (*T, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// WithTx returns a service whose repository runs on tx.
	WithTx(tx bun.IDB) Service[T]

	// Repository exposes the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
}

// NewService returns a Service over repo. Services hold no global state;
// build one per request or worker and pass it along.
func NewService[T any](repo repository.Repository[T]) Service[T] {
	return &baseServiceImpl[T]{repo: repo}
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	entity, err := s.repo.Find(ctx, id)
	return entity, translate(err)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	entities, err := s.repo.All(ctx, nil)
	return entities, translate(err)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, criteria types.Criteria, orders ...types.Order) ([]*T, error) {
	entities, err := s.repo.GetWhere(ctx, criteria, orders...)
	return entities, translate(err)
}

func (s *baseServiceImpl[T]) Paginate(ctx context.Context, pageSize int, criteria types.Criteria, orders ...types.Order) (*types.Pagination[T], error) {
	page, err := s.repo.Paginate(ctx, pageSize, criteria, orders...)
	return page, translate(err)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	result, err := s.repo.Page(ctx, page)
	return result, translate(err)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (*T, error) {
	entity, err := s.repo.Create(ctx, model)
	return entity, translate(err)
}

func (s *baseServiceImpl[T]) SaveMany(ctx context.Context, models []*T) ([]*T, error) {
	entities, err := s.repo.InsertMany(ctx, models)
	return entities, translate(err)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return translate(s.repo.Upsert(ctx, fields, duplicateKeys, model...))
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, attrs types.Attributes) (*T, error) {
	entity, err := s.repo.Update(ctx, id, attrs)
	return entity, translate(err)
}

func (s *baseServiceImpl[T]) Disable(ctx context.Context, id any) (*T, error) {
	entity, err := s.repo.Disable(ctx, id)
	return entity, translate(err)
}

func (s *baseServiceImpl[T]) Enable(ctx context.Context, id any) (*T, error) {
	entity, err := s.repo.Enable(ctx, id)
	return entity, translate(err)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	_, err := s.repo.Delete(ctx, id)
	return translate(err)
}

func (s *baseServiceImpl[T]) WithTx(tx bun.IDB) Service[T] {
	return &baseServiceImpl[T]{repo: s.repo.WithTx(tx)}
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.repo
}
