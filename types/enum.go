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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Status reports whether a soft-disableable record is usable.
type Status int

const (
	StatusActive Status = iota + 1
	StatusDisabled
)

var _ BaseEnum = StatusActive

func (s Status) IsValid() bool { return s == StatusActive || s == StatusDisabled }

func (s Status) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s Status) String() string { return s.Name() }

func (s Status) Name() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	default:
		return IllegalName
	}
}

func (s Status) Desc() string {
	switch s {
	case StatusActive:
		return "record is active"
	case StatusDisabled:
		return "record is disabled"
	default:
		return IllegalDesc
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.Name()), nil }
