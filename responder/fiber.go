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

package responder

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tomoncle/stratum/repository"
)

// Send writes resp to c using the encoding negotiated from the Accept header.
func Send(c *fiber.Ctx, resp *Response) error {
	body, err := Encode(resp)
	if err != nil {
		return err
	}
	for k, values := range resp.Header {
		c.Response().Header.Del(k)
		for _, v := range values {
			c.Response().Header.Add(k, v)
		}
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = Negotiate(AcceptedTypes(c.Get(fiber.HeaderAccept)))
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(resp.Status).Send(body)
}

// AcceptedTypes lists the media types of an Accept header without parameters.
func AcceptedTypes(header string) []string {
	var media []string
	for _, part := range strings.Split(header, ",") {
		if i := strings.IndexByte(part, ';'); i >= 0 {
			part = part[:i]
		}
		if part = strings.TrimSpace(part); part != "" {
			media = append(media, strings.ToLower(part))
		}
	}
	return media
}

// Handler adapts fn so that its Response is sent through Send.
func (r *Responder) Handler(fn func(c *fiber.Ctx) (*Response, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := fn(c)
		if err != nil {
			return err
		}
		return Send(c, resp)
	}
}

// ErrorHandler returns a Fiber error handler that renders errors as envelopes
// without exposing their text, except for *fiber.Error messages.
func ErrorHandler(r *Responder) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		ctx := c.UserContext()
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			return Send(c, r.Respond(ctx, nil, fe.Code, fe.Message, "", nil))
		case errors.Is(err, repository.ErrNotFound):
			return Send(c, r.NotFound(ctx, "resource not found", ""))
		default:
			return Send(c, r.Respond(ctx, nil, http.StatusInternalServerError, "internal server error", "", nil))
		}
	}
}
