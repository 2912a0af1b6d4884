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

// Package middleware holds Fiber middleware that prepares the request scope.
package middleware

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/tomoncle/stratum/responder"
	"github.com/tomoncle/stratum/types"
)

const (
	// RequestIDHeader is the header used to propagate request IDs.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the Fiber locals key holding the request ID.
	RequestIDLocalKey = "request_id"
)

// Scope stores a types.RequestScope in the request's user context so that
// repositories and the responder can read the page, path, query and locale.
//
// The page comes from ?page= and falls back to 1. The locale is the first
// Accept-Language tag, or defaultLocale. The request ID is taken from
// X-Request-ID or generated, and echoed on the response.
func Scope(defaultLocale string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := utils.CopyString(c.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)

		query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			query = url.Values{}
		}
		page, err := strconv.Atoi(query.Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		scope := types.RequestScope{
			Page:      page,
			Path:      utils.CopyString(c.Path()),
			Query:     query,
			Locale:    utils.CopyString(locale(c.Get(fiber.HeaderAcceptLanguage), defaultLocale)),
			RequestID: id,
			Accept:    responder.AcceptedTypes(c.Get(fiber.HeaderAccept)),
		}
		c.SetUserContext(types.WithRequestScope(c.UserContext(), scope))
		return c.Next()
	}
}

func locale(header, fallback string) string {
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	if first == "" || first == "*" {
		return fallback
	}
	return first
}

// RequestIDFromCtx returns the request ID stored by Scope.
func RequestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}
