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

// Package repository provides a generic repository abstraction built on Bun.
//
// A Repository[T] is bound to one entity type and covers lookups by id or by
// equality criteria, ordered and paginated listing, timestamped writes, bulk
// updates and deletes, many-to-many membership sync and auto-increment
// administration. Criteria keys are SQL column names; a nil value matches
// NULL. Every listing is ordered by the primary key after the caller's own
// orders, so results are stable.
//
// Missing records surface as *NotFoundError and bad bindings as
// *ConfigurationError; other storage errors are returned unchanged.
package repository
