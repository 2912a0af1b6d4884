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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// Fixture is the content of one seed file:
//
//	table: roles
//	touch: true
//	rows:
//	  - id: 7d1c...
//	    name: admin
//
// With touch set, created_at and updated_at are filled in when a row omits them.
// ${VAR} references are expanded from the environment before parsing.
type Fixture struct {
	Table string                   `yaml:"table"`
	Touch bool                     `yaml:"touch"`
	Rows  []map[string]interface{} `yaml:"rows"`
}

// FixtureFile is a seed file found on disk.
type FixtureFile struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// Seeder loads YAML fixtures from <root>/common followed by
// <root>/environments/<environment>. Within a directory files run by their
// numeric prefix, e.g. 001_roles.yaml before 010_users.yaml.
type Seeder struct {
	root        string
	environment string
	logger      Logger
	now         func() time.Time
}

func NewSeeder(root, environment string, logger Logger) *Seeder {
	if environment == "" {
		environment = "development"
	}
	return &Seeder{root: root, environment: environment, logger: orNop(logger), now: time.Now}
}

var orderPrefix = regexp.MustCompile(`^(\d+)_`)

// Files returns the fixture files in execution order.
func (s *Seeder) Files() ([]FixtureFile, error) {
	common, err := s.filesIn(filepath.Join(s.root, "common"), "common")
	if err != nil {
		return nil, fmt.Errorf("failed to list common fixtures: %w", err)
	}
	env, err := s.filesIn(filepath.Join(s.root, "environments", s.environment), s.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s fixtures: %w", s.environment, err)
	}
	files := append(common, env...)
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Environment != files[j].Environment {
			return files[i].Environment == "common"
		}
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *Seeder) filesIn(dir, environment string) ([]FixtureFile, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var files []FixtureFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := strings.ToLower(d.Name())
		if d.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			return nil
		}
		files = append(files, FixtureFile{Path: path, Name: d.Name(), Order: fileOrder(d.Name()), Environment: environment})
		return nil
	})
	return files, err
}

func fileOrder(name string) int {
	if m := orderPrefix.FindStringSubmatch(name); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 999
}

// Load parses one fixture file.
func (s *Seeder) Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
	}
	if fx.Table == "" {
		return nil, fmt.Errorf("fixture file %s has no table", path)
	}
	return &fx, nil
}

// Seed inserts every fixture row through db.
func (s *Seeder) Seed(ctx context.Context, db bun.IDB) error {
	files, err := s.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		s.logger.Info("No fixture files found", "root", s.root, "environment", s.environment)
		return nil
	}
	for _, f := range files {
		fx, err := s.Load(f.Path)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := s.insert(ctx, db, fx); err != nil {
			return fmt.Errorf("fixture %s: %w", f.Name, err)
		}
		s.logger.Info("Fixture loaded", "file", f.Name, "table", fx.Table, "rows", len(fx.Rows), "duration", time.Since(start))
	}
	return nil
}

func (s *Seeder) insert(ctx context.Context, db bun.IDB, fx *Fixture) error {
	now := s.now()
	for _, row := range fx.Rows {
		values := make(map[string]interface{}, len(row)+2)
		for k, v := range row {
			values[k] = v
		}
		if fx.Touch {
			if _, ok := values["created_at"]; !ok {
				values["created_at"] = now
			}
			if _, ok := values["updated_at"]; !ok {
				values["updated_at"] = now
			}
		}
		if _, err := db.NewInsert().Model(&values).TableExpr("?", bun.Ident(fx.Table)).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
