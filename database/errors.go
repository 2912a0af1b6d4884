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
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLError classifies driver errors independently of the database in use.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = map[SQLError]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoIndexErr:                  "no_index",
	NoColumnErr:                 "no_column",
	ExistIndexErr:               "exist_index",
	ExistColumnErr:              "exist_column",
	NoTableErr:                  "no_table",
	ExistTableErr:               "exist_table",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_constraint_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
}

func (e SQLError) String() string { return sqlErrorNames[e] }

var mysqlErrors = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
}

// sqlStates maps postgres SQLSTATE codes.
var sqlStates = map[string]SQLError{
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
	"42701": ExistColumnErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
}

// messagePatterns is the fallback for drivers without typed errors, sqlite
// in particular. Every substring of a pattern must be present.
var messagePatterns = []struct {
	all []string
	err SQLError
}{
	{[]string{"no such column"}, NoColumnErr},
	{[]string{"no such index"}, NoIndexErr},
	{[]string{"no such table"}, NoTableErr},
	{[]string{"index", "already exists"}, ExistIndexErr},
	{[]string{"table", "already exists"}, ExistTableErr},
	{[]string{"duplicate column name"}, ExistColumnErr},
	{[]string{"unique constraint failed"}, DuplicateKeyErr},
	{[]string{"duplicate key value"}, DuplicateKeyErr},
	{[]string{"not null constraint failed"}, NotNullViolationErr},
	{[]string{"foreign key constraint failed"}, ForeignKeyViolationErr},
	{[]string{"check constraint failed"}, CheckConstraintViolationErr},
	{[]string{"datatype mismatch"}, InvalidTypeCastErr},
}

// IsSqlError reports whether err came from the database and, if so, its class.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if e, ok := mysqlErrors[mysqlErr.Number]; ok {
			return true, e
		}
		return true, UnknownErr
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, sqlStates[string(pqErr.Code)]
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true, sqlStates[pgErr.Code]
	}

	s := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		if containsAll(s, p.all) {
			return true, p.err
		}
	}
	return false, UnknownErr
}

// IsDuplicateKey is a shorthand for the most common check.
func IsDuplicateKey(err error) bool {
	is, e := IsSqlError(err)
	return is && e == DuplicateKeyErr
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
