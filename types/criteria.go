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

package types

import "strings"

// Criteria is an equality filter keyed by column name. A nil value matches NULL.
type Criteria map[string]any

// Attributes maps column names to the values written by an update.
type Attributes map[string]any

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order sorts by one column. Anything other than DESC sorts ascending.
type Order struct {
	Field     string
	Direction Direction
}

func OrderAsc(field string) Order  { return Order{Field: field, Direction: Asc} }
func OrderDesc(field string) Order { return Order{Field: field, Direction: Desc} }

// Normalized returns the direction as ASC or DESC.
func (o Order) Normalized() Direction {
	if strings.EqualFold(string(o.Direction), string(Desc)) {
		return Desc
	}
	return Asc
}

// SyncResult lists the related keys attached to and detached from a relation.
type SyncResult struct {
	Attached []any `json:"attached"`
	Detached []any `json:"detached"`
}
