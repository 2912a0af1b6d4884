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
	"errors"
	"fmt"

	"github.com/tomoncle/stratum/repository"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrMisconfigured  = errors.New("service misconfigured")

	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// translate maps repository failures onto service errors. The original error
// stays in the chain for errors.As.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrRecordNotFound, err)
	case errors.Is(err, repository.ErrConfiguration):
		return fmt.Errorf("%w: %w", ErrMisconfigured, err)
	default:
		return err
	}
}

// translateAs is translate with not-found reported as notFound.
func translateAs(err error, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", notFound, err)
	}
	return translate(err)
}
