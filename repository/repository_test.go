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

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/stratum/database"
	"github.com/tomoncle/stratum/model"
	"github.com/tomoncle/stratum/repository"
	"github.com/tomoncle/stratum/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/vmihailenco/msgpack/v5"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// clock advances one second per call.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// selectCounter counts SELECT statements sent to the database.
type selectCounter struct {
	n atomic.Int64
}

func (h *selectCounter) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *selectCounter) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Operation() == "SELECT" {
		h.n.Add(1)
	}
}

// mapCache is a Cache test double that keeps the last stored payload per key.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls []time.Duration
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	c.ttls = append(c.ttls, ttl)
	return nil
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.DBName = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.HealthCheckInterval = 0
	cfg.SlowQueryTime = 0
	dm, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Disconnect() })

	reg := database.NewModelRegistry()
	model.Register(reg)
	require.NoError(t, database.NewBootstrapper(dm.GetDB(), reg, nil).Run(context.Background()))
	return dm.GetDB()
}

func newUsers(t *testing.T, db bun.IDB, opts ...repository.Option) repository.Repository[model.User] {
	t.Helper()
	c := &clock{now: epoch}
	repo, err := repository.NewRepository[model.User](db, append([]repository.Option{repository.WithClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	return repo
}

func seedUsers(t *testing.T, repo repository.Repository[model.User], names ...string) []*model.User {
	t.Helper()
	users := make([]*model.User, 0, len(names))
	for i, name := range names {
		u, err := repo.Create(context.Background(), &model.User{Name: name, Email: fmt.Sprintf("%s%d@example.com", name, i)})
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}

func ids(users []*model.User) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestNewRepository_ConfigurationErrors(t *testing.T) {
	_, err := repository.NewRepository[model.User](nil)
	assert.ErrorIs(t, err, repository.ErrConfiguration)

	db := openDB(t)
	_, err = repository.NewRepository[int](db)
	assert.ErrorIs(t, err, repository.ErrConfiguration)

	_, err = repository.NewRepository[model.UserRole](db)
	var cfgErr *repository.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "UserRole", cfgErr.Entity)
	assert.Contains(t, cfgErr.Reason, "primary key")

	assert.Panics(t, func() { repository.MustRepository[string](db) })
	assert.NotPanics(t, func() { repository.MustRepository[model.Role](db) })
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))

	u, err := repo.Create(ctx, &model.User{Email: "ada@example.com", Name: "Ada", Profile: types.JsonObject{"lang": "en"}})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
	assert.True(t, u.IsActive())

	found, err := repo.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)
	assert.Equal(t, "en", found.Profile["lang"])
	assert.True(t, found.CreatedAt.Equal(u.CreatedAt))
	assert.True(t, found.UpdatedAt.Equal(u.CreatedAt))

	_, err = repo.Find(ctx, int64(999))
	var nf *repository.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "User", nf.Entity)
	assert.Equal(t, int64(999), nf.ID)
	assert.True(t, repository.IsNotFound(err))

	fresh, err := repo.FindOrNew(ctx, int64(999))
	require.NoError(t, err)
	assert.Zero(t, fresh.ID)
}

func TestCreate_AssignsUUID(t *testing.T) {
	ctx := context.Background()
	roles, err := repository.NewRepository[model.Role](openDB(t))
	require.NoError(t, err)

	r, err := roles.Create(ctx, &model.Role{Name: "admin"})
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)

	found, err := roles.FindBy(ctx, "name", "admin")
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "amy", "bob", "bob", "cid")

	many, err := repo.FindMany(ctx, []any{users[0].ID, users[3].ID, int64(999)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{users[0].ID, users[3].ID}, ids(many))

	none, err := repo.FindMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	first, err := repo.First(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, first.ID)

	bob, err := repo.First(ctx, types.Criteria{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, bob.ID)

	_, err = repo.First(ctx, types.Criteria{"nickname": "x"})
	assert.ErrorIs(t, err, repository.ErrUnknownField)

	_, err = repo.FindBy(ctx, "name", "zed")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := repo.Exists(ctx, types.Criteria{"name": "cid"})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.Count(ctx, types.Criteria{"name": "bob", "disabled_at": nil})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ordered, err := repo.GetWhere(ctx, nil, types.OrderDesc("name"))
	require.NoError(t, err)
	assert.Equal(t, []int64{users[3].ID, users[1].ID, users[2].ID, users[0].ID}, ids(ordered))

	_, err = repo.GetWhere(ctx, nil, types.OrderAsc("nope"))
	assert.ErrorIs(t, err, repository.ErrUnknownField)

	in, err := repo.GetWhereIn(ctx, "name", []any{"amy", "cid"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{users[0].ID, users[3].ID}, ids(in))

	empty, err := repo.GetWhereIn(ctx, "name", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Two rows qualify but only the first is returned.
	notIn, err := repo.GetWhereNotIn(ctx, "name", []any{"amy", "cid"})
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, notIn.ID)

	_, err = repo.GetWhereNotIn(ctx, "name", []any{"amy", "bob", "cid"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCriteria_TypedNilMatchesNull(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "amy", "bob")
	_, err := repo.Disable(ctx, users[1].ID)
	require.NoError(t, err)

	n, err := repo.Count(ctx, types.Criteria{"disabled_at": (*time.Time)(nil)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The field of a loaded entity works as a criteria value.
	n, err = repo.Count(ctx, types.Criteria{"disabled_at": users[0].DisabledAt})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	affected, err := repo.UpdateWhere(ctx, types.Criteria{"disabled_at": (*time.Time)(nil)}, types.Attributes{"name": "active"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestColumnReads(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "amy", "bob", "cid")

	var name string
	require.NoError(t, repo.Value(ctx, "name", types.Criteria{"email": users[1].Email}, &name))
	assert.Equal(t, "bob", name)
	err := repo.Value(ctx, "name", types.Criteria{"email": "nobody@example.com"}, &name)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Value(ctx, "nickname", nil, &name), repository.ErrUnknownField)

	var names []string
	require.NoError(t, repo.Pluck(ctx, "name", nil, &names))
	assert.Equal(t, []string{"amy", "bob", "cid"}, names)

	var maxID, minID int64
	require.NoError(t, repo.Max(ctx, "id", nil, &maxID))
	require.NoError(t, repo.Min(ctx, "id", types.Criteria{"name": "bob"}, &minID))
	assert.Equal(t, users[2].ID, maxID)
	assert.Equal(t, users[1].ID, minID)

	var none sql.NullInt64
	require.NoError(t, repo.Max(ctx, "id", types.Criteria{"name": "zed"}, &none))
	assert.False(t, none.Valid)
	assert.ErrorIs(t, repo.Min(ctx, "nope", nil, &minID), repository.ErrUnknownField)
}

func TestFirstOrNew(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	amy := seedUsers(t, repo, "amy")[0]

	found, err := repo.FirstOrNew(ctx, types.Criteria{"name": "amy"}, nil)
	require.NoError(t, err)
	assert.Equal(t, amy.ID, found.ID)

	fresh, err := repo.FirstOrNew(ctx, types.Criteria{"name": "zed", "email": "zed@example.com"}, &model.User{Password: "x"})
	require.NoError(t, err)
	assert.Zero(t, fresh.ID)
	assert.Equal(t, "zed", fresh.Name)
	assert.Equal(t, "zed@example.com", fresh.Email)
	assert.Equal(t, "x", fresh.Password)

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateFirstAndUpdateOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "amy", "amy")

	updated, err := repo.UpdateFirst(ctx, types.Criteria{"name": "amy"}, types.Attributes{"name": "ann"})
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, updated.ID)
	assert.Equal(t, "ann", updated.Name)

	_, err = repo.UpdateFirst(ctx, types.Criteria{"name": "zed"}, types.Attributes{"name": "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	same, err := repo.UpdateOrCreate(ctx, types.Criteria{"email": users[1].Email}, types.Attributes{"name": "amelia"}, nil)
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, same.ID)
	assert.Equal(t, "amelia", same.Name)

	created, err := repo.UpdateOrCreate(ctx, types.Criteria{"email": "new@example.com"}, types.Attributes{"name": "neo"}, nil)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "neo", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = repo.UpdateOrCreate(ctx, types.Criteria{"email": "bad@example.com"}, types.Attributes{"name": 42}, nil)
	assert.Error(t, err)
}

func TestFirstOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))

	criteria := types.Criteria{"email": "eve@example.com"}
	created, err := repo.FirstOrCreate(ctx, criteria, &model.User{Email: "eve@example.com", Name: "Eve"})
	require.NoError(t, err)
	again, err := repo.FirstOrCreate(ctx, criteria, &model.User{Email: "eve@example.com", Name: "Other"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Eve", again.Name)
}

func TestPaginate(t *testing.T) {
	repo := newUsers(t, openDB(t))
	seedUsers(t, repo, "a", "b", "c", "d", "e")

	ctx := types.WithRequestScope(context.Background(), types.RequestScope{
		Page:  3,
		Path:  "/users",
		Query: url.Values{"q": {"x"}, "page": {"3"}},
	})
	page, err := repo.Paginate(ctx, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.LastPage())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "e", page.Items[0].Name)
	assert.Equal(t, "/users?page=2&q=x", page.PrevURL())
	assert.Empty(t, page.NextURL())

	all, err := repo.Paginate(context.Background(), 0, types.Criteria{"disabled_at": nil})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPageSize, all.PageSize)
	assert.Equal(t, 1, all.Page)
	assert.Len(t, all.Items, 5)

	explicit, err := repo.Page(context.Background(), types.NewPageRequest(2, 2, nil, types.OrderDesc("id")))
	require.NoError(t, err)
	require.Len(t, explicit.Items, 2)
	assert.Equal(t, "c", explicit.Items[0].Name)
	assert.Equal(t, "b", explicit.Items[1].Name)

	nothing, err := repo.Paginate(context.Background(), 2, types.Criteria{"name": "zzz"})
	require.NoError(t, err)
	assert.Zero(t, nothing.Total)
	assert.NotNil(t, nothing.Items)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	u := seedUsers(t, repo, "old")[0]

	updated, err := repo.Update(ctx, u.ID, types.Attributes{"name": "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)
	assert.True(t, updated.CreatedAt.Equal(u.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(u.UpdatedAt))

	_, err = repo.Update(ctx, int64(999), types.Attributes{"name": "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Update(ctx, u.ID, types.Attributes{"nickname": "x"})
	assert.ErrorIs(t, err, repository.ErrUnknownField)
}

func TestUpdateWhere_DisablesActiveRows(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "a", "b", "c")

	n, err := repo.UpdateWhere(ctx, types.Criteria{"disabled_at": nil}, types.Attributes{"disabled_at": epoch})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	active, err := repo.Count(ctx, types.Criteria{"disabled_at": nil})
	require.NoError(t, err)
	assert.Zero(t, active)

	// Timestamps are left alone unless named.
	u, err := repo.Find(ctx, users[0].ID)
	require.NoError(t, err)
	assert.True(t, u.UpdatedAt.Equal(users[0].UpdatedAt))

	n, err = repo.UpdateWhere(ctx, types.Criteria{"name": "b"}, types.Attributes{"name": "bee"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	rows, err := repo.GetWhere(ctx, types.Criteria{"name": "bee"})
	require.NoError(t, err)
	assert.Equal(t, []int64{users[1].ID}, ids(rows))
}

type plain struct {
	bun.BaseModel `bun:"table:plains"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name"`
}

func TestDisableEnable(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := newUsers(t, db)
	u := seedUsers(t, repo, "sam")[0]

	disabled, err := repo.Disable(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, disabled.IsDisabled())
	assert.Equal(t, types.StatusDisabled, disabled.Status())

	still, err := repo.Exists(ctx, types.Criteria{"id": u.ID})
	require.NoError(t, err)
	assert.True(t, still)

	enabled, err := repo.Enable(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive())

	_, err = repo.Disable(ctx, int64(999))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	plains, err := repository.NewRepository[plain](db)
	require.NoError(t, err)
	_, err = plains.Disable(ctx, int64(1))
	assert.ErrorIs(t, err, repository.ErrConfiguration)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	users := seedUsers(t, repo, "a", "b", "c")

	n, err := repo.Delete(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Delete(ctx, users[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err = repo.DeleteWhere(ctx, types.Criteria{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteWhere(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInsertManyAndBulk(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))

	created, err := repo.InsertMany(ctx, []*model.User{
		{Email: "a@example.com", Name: "a"},
		{Email: "a@example.com", Name: "dup"},
		{Email: "c@example.com", Name: "c"},
	})
	require.Error(t, err)
	assert.Len(t, created, 1)
	total, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = repo.InsertBulk(ctx, []*model.User{
		{Email: "x@example.com", Name: "x"},
		{Email: "a@example.com", Name: "dup"},
	})
	require.Error(t, err)
	total, err = repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	bulk, err := repo.InsertBulk(ctx, []*model.User{
		{Email: "x@example.com", Name: "x"},
		{Email: "y@example.com", Name: "y"},
	})
	require.NoError(t, err)
	require.Len(t, bulk, 2)
	assert.Equal(t, bulk[0].CreatedAt, bulk[1].CreatedAt)
	assert.NotZero(t, bulk[1].ID)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newUsers(t, openDB(t))
	seedUsers(t, repo, "ann")

	err := repo.Upsert(ctx, []string{"name"}, []string{"email"},
		&model.User{Email: "ann0@example.com", Name: "Ann"},
		&model.User{Email: "ben@example.com", Name: "Ben"},
	)
	require.NoError(t, err)

	total, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	ann, err := repo.FindBy(ctx, "email", "ann0@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", ann.Name)

	assert.Error(t, repo.Upsert(ctx, nil, nil, &model.User{}))
}

func TestSyncRelation(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	users := newUsers(t, db)
	roles := repository.MustRepository[model.Role](db)

	u := seedUsers(t, users, "owner")[0]
	var roleIDs []any
	for _, name := range []string{"r1", "r2", "r3"} {
		r, err := roles.Create(ctx, &model.Role{Name: name})
		require.NoError(t, err)
		roleIDs = append(roleIDs, r.ID)
	}

	res, err := users.SyncRelation(ctx, u.ID, "Roles", roleIDs[:2], true)
	require.NoError(t, err)
	assert.Equal(t, roleIDs[:2], res.Attached)
	assert.Empty(t, res.Detached)

	res, err = users.SyncRelation(ctx, u.ID, "Roles", roleIDs[1:], true)
	require.NoError(t, err)
	assert.Equal(t, []any{roleIDs[2]}, res.Attached)
	assert.Equal(t, []any{roleIDs[0]}, res.Detached)

	res, err = users.SyncWithoutDetaching(ctx, u.ID, "Roles", roleIDs[:1])
	require.NoError(t, err)
	assert.Equal(t, []any{roleIDs[0]}, res.Attached)
	assert.Empty(t, res.Detached)

	loaded := &model.User{Entity: model.Entity{ID: u.ID}}
	require.NoError(t, db.NewSelect().Model(loaded).WherePK().Relation("Roles").Scan(ctx))
	assert.Len(t, loaded.Roles, 3)

	_, err = users.SyncRelation(ctx, int64(999), "Roles", roleIDs, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = users.SyncRelation(ctx, u.ID, "Friends", roleIDs, true)
	assert.ErrorIs(t, err, repository.ErrConfiguration)
}

func TestSyncRelation_ForeignKeys(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	users := newUsers(t, db)
	roles := repository.MustRepository[model.Role](db)

	u := seedUsers(t, users, "owner")[0]
	r, err := roles.Create(ctx, &model.Role{Name: "admin"})
	require.NoError(t, err)

	_, err = users.SyncRelation(ctx, u.ID, "Roles", []any{"missing-role"}, true)
	require.Error(t, err)
	_, kind := database.IsSqlError(err)
	assert.Equal(t, database.ForeignKeyViolationErr, kind)

	_, err = db.NewInsert().Model(&model.UserRole{UserID: 999, RoleID: r.ID}).Exec(ctx)
	require.Error(t, err)

	_, err = users.SyncRelation(ctx, u.ID, "Roles", []any{r.ID}, true)
	require.NoError(t, err)
	_, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)
	links, err := db.NewSelect().Model((*model.UserRole)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, links)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := newUsers(t, db)

	boom := errors.New("boom")
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repo.WithTx(tx).Create(ctx, &model.User{Email: "t@example.com", Name: "t"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	total, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAll_Cached(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	store := &mapCache{}
	repo := newUsers(t, db, repository.WithCache(store, 0))
	users := seedUsers(t, repo, "a", "b", "c")

	counter := &selectCounter{}
	db.AddQueryHook(counter)

	first, err := repo.All(ctx, nil)
	require.NoError(t, err)
	require.Len(t, first, 3)
	second, err := repo.All(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.n.Load())
	assert.Equal(t, ids(first), ids(second))

	require.Len(t, store.data, 1)
	assert.Equal(t, []time.Duration{repository.DefaultCacheTTL}, store.ttls)
	for _, payload := range store.data {
		again, err := msgpack.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, payload, again)
	}

	subset, err := repo.All(ctx, []any{users[1].ID}, "id", "name")
	require.NoError(t, err)
	require.Len(t, subset, 1)
	assert.Equal(t, "b", subset[0].Name)
	assert.Empty(t, subset[0].Email)
	assert.Equal(t, int64(2), counter.n.Load())

	_, err = repo.All(ctx, nil, "nope")
	assert.ErrorIs(t, err, repository.ErrUnknownField)
}

func TestAutoIncrement_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := newUsers(t, db)

	require.NoError(t, repo.SetAutoIncrement(ctx, 100))
	next, err := repo.GetAutoIncrement(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), next)

	u := seedUsers(t, repo, "hundred")[0]
	assert.Equal(t, int64(100), u.ID)
	next, err = repo.GetAutoIncrement(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(101), next)

	err = repo.SetAutoIncrement(ctx, 0)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	assert.NotErrorIs(t, err, repository.ErrConfiguration)

	roles := repository.MustRepository[model.Role](db)
	assert.ErrorIs(t, roles.SetAutoIncrement(ctx, 5), repository.ErrConfiguration)
	_, err = roles.GetAutoIncrement(ctx)
	assert.ErrorIs(t, err, repository.ErrConfiguration)
}

func TestAutoIncrement_MySQL(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, mysqldialect.New())
	defer db.Close()

	reg := database.NewModelRegistry()
	model.Register(reg)
	database.RegisterModels(db, reg)
	repo, err := repository.NewRepository[model.User](db)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `users` AUTO_INCREMENT = 50")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT AUTO_INCREMENT FROM information_schema.TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"AUTO_INCREMENT"}).AddRow(int64(50)))

	ctx := context.Background()
	require.NoError(t, repo.SetAutoIncrement(ctx, 50))
	next, err := repo.GetAutoIncrement(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}
