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
	"github.com/tomoncle/stratum/database"
	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	Entity

	Email    string           `bun:"email,notnull,unique" json:"email"`
	Name     string           `bun:"name,notnull" json:"name"`
	Password string           `bun:"password" json:"-"`
	Profile  types.JsonObject `bun:"profile" json:"profile,omitempty"`
	Roles    []*Role          `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
}

type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`
	UUIDEntity

	Name string `bun:"name,notnull,unique" json:"name"`
}

// UserRole is the junction table behind User.Roles.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	UserID int64  `bun:"user_id,pk"`
	User   *User  `bun:"rel:belongs-to,join:user_id=id,on_delete:CASCADE"`
	RoleID string `bun:"role_id,pk,type:varchar(36)"`
	Role   *Role  `bun:"rel:belongs-to,join:role_id=id,on_delete:CASCADE"`
}

// Register adds the domain models to reg. Junction tables come after the
// tables they reference.
func Register(reg database.ModelRegistry) {
	reg.Register(database.NewModelAdapter((*User)(nil), 10))
	reg.Register(database.NewModelAdapter((*Role)(nil), 10))
	reg.Register(database.NewModelAdapter((*UserRole)(nil), 20))
}
