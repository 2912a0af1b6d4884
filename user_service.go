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
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/stratum/database"
	"github.com/tomoncle/stratum/model"
	"github.com/tomoncle/stratum/repository"
	"github.com/tomoncle/stratum/types"
	"github.com/tomoncle/stratum/utils"
	"github.com/uptrace/bun"
)

var userLogger = utils.NewLogger("SERVICE")

// UserService holds the user operations that span users and roles.
type UserService struct {
	users repository.Repository[model.User]
	roles repository.Repository[model.Role]
	log   *logrus.Logger
}

func NewUserService(users repository.Repository[model.User], roles repository.Repository[model.Role]) *UserService {
	return &UserService{users: users, roles: roles, log: userLogger}
}

// WithTx returns a copy of the service whose repositories run on tx.
func (s *UserService) WithTx(tx bun.IDB) *UserService {
	return &UserService{users: s.users.WithTx(tx), roles: s.roles.WithTx(tx), log: s.log}
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.Find(ctx, id)
	return user, translateAs(err, ErrUserNotFound)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindBy(ctx, "email", normalizeEmail(email))
	return user, translateAs(err, ErrUserNotFound)
}

// Register stores a new user. The email is trimmed and lower-cased first and
// must not belong to another user.
func (s *UserService) Register(ctx context.Context, user *model.User) (*model.User, error) {
	user.Email = normalizeEmail(user.Email)
	taken, err := s.users.Exists(ctx, types.Criteria{"email": user.Email})
	if err != nil {
		return nil, translate(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}
	created, err := s.users.Create(ctx, user)
	if database.IsDuplicateKey(err) {
		// Lost a race with a concurrent registration.
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}
	if err != nil {
		return nil, translate(err)
	}
	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// ChangeUserStatus enables or disables a user. Disabled users are kept.
func (s *UserService) ChangeUserStatus(ctx context.Context, id int64, active bool) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if active {
		user, err = s.users.Enable(ctx, id)
	} else {
		user, err = s.users.Disable(ctx, id)
	}
	if err != nil {
		return nil, translateAs(err, ErrUserNotFound)
	}
	s.log.WithField("user_id", id).WithField("status", user.Status().Name()).Info("user status changed")
	return user, nil
}

// ListUsers pages through users, newest first, using the request scope in ctx.
func (s *UserService) ListUsers(ctx context.Context, pageSize int, onlyActive bool) (*types.Pagination[model.User], error) {
	var criteria types.Criteria
	if onlyActive {
		criteria = types.Criteria{"disabled_at": nil}
	}
	page, err := s.users.Paginate(ctx, pageSize, criteria, types.OrderDesc("id"))
	return page, translate(err)
}

// AssignRoles sets the roles of a user. Every role must exist; with
// detaching false, roles the user already has are kept.
func (s *UserService) AssignRoles(ctx context.Context, userID int64, roleIDs []string, detaching bool) (*types.SyncResult, error) {
	unique := make([]any, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := s.roles.FindMany(ctx, unique)
	if err != nil {
		return nil, translate(err)
	}
	if len(found) != len(unique) {
		for _, r := range found {
			delete(seen, r.ID)
		}
		missing := make([]string, 0, len(seen))
		for _, id := range roleIDs {
			if _, ok := seen[id]; ok {
				missing = append(missing, id)
				delete(seen, id)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, strings.Join(missing, ", "))
	}

	result, err := s.users.SyncRelation(ctx, userID, "Roles", unique, detaching)
	if err != nil {
		return nil, translateAs(err, ErrUserNotFound)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"attached": len(result.Attached),
		"detached": len(result.Detached),
	}).Debug("roles synced")
	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
