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

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Migration is an applied bootstrap step recorded in bun_migrations.
type Migration struct {
	bun.BaseModel `bun:"table:bun_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// StepFunc runs inside the transaction of its step.
type StepFunc func(ctx context.Context, db bun.IDB) error

// Step is a single versioned bootstrap action. Applied versions are skipped.
type Step struct {
	Version     string
	Name        string
	Description string
	Up          StepFunc
}

// Bootstrapper creates the tables of registered models and optionally loads
// YAML fixtures. Missing tables are created on every run, so models
// registered later still get their table. Existing tables are never altered.
type Bootstrapper struct {
	db       *bun.DB
	registry ModelRegistry
	logger   Logger
	seeder   *Seeder
	hook     *QueryHook
}

func NewBootstrapper(db *bun.DB, registry ModelRegistry, logger Logger) *Bootstrapper {
	return &Bootstrapper{db: db, registry: registry, logger: orNop(logger)}
}

// WithSeeder adds a fixture loading step after table creation.
func (b *Bootstrapper) WithSeeder(s *Seeder) *Bootstrapper {
	b.seeder = s
	return b
}

// WithQuietHook silences h while the bootstrap runs.
func (b *Bootstrapper) WithQuietHook(h *QueryHook) *Bootstrapper {
	b.hook = h
	return b
}

// RegisterModels makes every registered model known to Bun.
func RegisterModels(db *bun.DB, registry ModelRegistry) {
	db.RegisterModel(registrationOrder(registry)...)
}

// Run registers the models, creates missing tables and applies every pending
// step in version order.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if b.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if b.hook != nil {
		b.hook.SetSilent(true)
		defer b.hook.SetSilent(false)
	}

	RegisterModels(b.db, b.registry)

	if _, err := b.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	if err := b.createTables(ctx, b.db); err != nil {
		return err
	}

	for _, step := range b.steps() {
		if err := b.runStep(ctx, step); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", step.Version, err)
		}
	}
	b.logger.Info("Database bootstrap completed")
	return nil
}

// steps lists the recorded steps. Table creation is not one of them.
func (b *Bootstrapper) steps() []Step {
	if b.seeder == nil {
		return nil
	}
	return []Step{{
		Version:     "001",
		Name:        "seed_initial_data",
		Description: "Load YAML fixtures",
		Up:          b.seeder.Seed,
	}}
}

func (b *Bootstrapper) runStep(ctx context.Context, step Step) error {
	exists, err := b.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", step.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				b.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if err := step.Up(ctx, tx); err != nil {
		return err
	}
	record := &Migration{
		Version:     step.Version,
		Name:        step.Name,
		AppliedAt:   time.Now(),
		Description: step.Description,
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.logger.Info("Migration executed successfully", "version", step.Version, "name", step.Name)
	return nil
}

// createTables creates tables in priority order so that foreign keys derived
// from belongs-to relations find their parent table.
func (b *Bootstrapper) createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range Instances(b.registry) {
		_, err := db.NewCreateTable().Model(model).IfNotExists().WithForeignKeys().Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// Applied returns the recorded steps ordered by version.
func (b *Bootstrapper) Applied(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := b.db.NewSelect().Model(&migrations).Order("version ASC").Scan(ctx)
	return migrations, err
}
