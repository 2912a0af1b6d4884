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

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/stratum/types"
)

// Stamper is implemented by entities whose timestamps are set by the repository.
type Stamper interface {
	Stamp(now time.Time, creating bool)
}

// Disableable is implemented by entities that carry a soft-disable marker.
type Disableable interface {
	IsActive() bool
	IsDisabled() bool
	Status() types.Status
}

// Timestamps holds the lifecycle columns shared by every entity.
// A nil DisabledAt means the record is active.
type Timestamps struct {
	CreatedAt  time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DisabledAt *time.Time `bun:"disabled_at" json:"disabled_at"`
}

func (t *Timestamps) Stamp(now time.Time, creating bool) {
	if creating {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func (t Timestamps) IsActive() bool   { return t.DisabledAt == nil }
func (t Timestamps) IsDisabled() bool { return t.DisabledAt != nil }

func (t Timestamps) Status() types.Status {
	if t.DisabledAt == nil {
		return types.StatusActive
	}
	return types.StatusDisabled
}

// Entity is the base for records keyed by an auto-increment integer.
type Entity struct {
	ID int64 `bun:"id,pk,autoincrement" json:"id"`
	Timestamps
}

// UUIDEntity is the base for records keyed by a generated UUID string.
type UUIDEntity struct {
	ID string `bun:"id,pk,type:varchar(36)" json:"id"`
	Timestamps
}

// Stamp assigns a new UUID on create when none was given.
func (e *UUIDEntity) Stamp(now time.Time, creating bool) {
	if creating && e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamps.Stamp(now, creating)
}

var (
	_ Stamper     = (*Entity)(nil)
	_ Stamper     = (*UUIDEntity)(nil)
	_ Disableable = Entity{}
)
