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

import (
	"context"
	"net/url"
)

// RequestScope carries the per-request values that pagination links and
// response headers depend on.
type RequestScope struct {
	Page      int
	Path      string
	Query     url.Values
	Locale    string
	RequestID string

	// Accept lists the media types the client accepts, most preferred first.
	Accept []string
}

type scopeKey struct{}

// WithRequestScope returns a copy of ctx carrying scope.
func WithRequestScope(ctx context.Context, scope RequestScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope stored in ctx. Without one, page 1 and an
// empty query are assumed.
func ScopeFrom(ctx context.Context) RequestScope {
	scope, _ := ctx.Value(scopeKey{}).(RequestScope)
	if scope.Page < 1 {
		scope.Page = 1
	}
	if scope.Query == nil {
		scope.Query = url.Values{}
	}
	return scope
}
