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

// Package responder renders results into the {meta, data} JSON envelope.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"reflect"

	"github.com/tomoncle/stratum/types"
)

const (
	HeaderContentLanguage = "Content-Language"
	HeaderPoweredBy       = "X-Powered-By"
	HeaderVersion         = "X-Version"

	MIMEApplicationJSON = "application/json"
)

var codes = map[int]string{
	http.StatusOK:                  "ok",
	http.StatusCreated:             "created",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusMethodNotAllowed:    "method_not_allowed",
	http.StatusRequestTimeout:      "request_timeout",
	StatusTokenMismatch:            "token_mismatch",
	http.StatusUnprocessableEntity: "invalid",
	http.StatusInternalServerError: "internal_server_error",
	http.StatusServiceUnavailable:  "internal_server_error",
}

// StatusTokenMismatch is the non-standard status used for stale CSRF tokens.
const StatusTokenMismatch = 419

// CodeFor returns the symbolic code for status, or "unknown".
func CodeFor(status int) string {
	if code, ok := codes[status]; ok {
		return code
	}
	return "unknown"
}

// Flattener is implemented by payloads that choose their own wire shape.
type Flattener interface {
	Flatten() any
}

type Meta struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hints   string `json:"hints"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Response is a rendered envelope with the status and headers to send.
type Response struct {
	Status      int
	Header      http.Header
	Body        Envelope
	ContentType string
}

// Options are the static values injected into every response.
type Options struct {
	PoweredBy  string
	APIVersion string
	Locale     string
}

type Responder struct {
	opts Options
}

func New(opts Options) *Responder {
	if opts.PoweredBy == "" {
		opts.PoweredBy = "sti"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "v1.0.0"
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}
	return &Responder{opts: opts}
}

// Respond builds the envelope for data. It never fails: a payload that
// cannot be flattened yields a 500 internal_server_error envelope instead.
func (r *Responder) Respond(ctx context.Context, data any, status int, message, hints string, header http.Header) *Response {
	flat, err := flatten(data)
	if err != nil {
		status = http.StatusInternalServerError
		message = "failed to encode response"
		hints = ""
		flat = []any{}
	}
	return &Response{
		Status: status,
		Header: r.header(ctx, header),
		Body: Envelope{
			Meta: Meta{Code: CodeFor(status), Message: message, Hints: hints},
			Data: flat,
		},
		ContentType: Negotiate(types.ScopeFrom(ctx).Accept),
	}
}

func (r *Responder) header(ctx context.Context, extra http.Header) http.Header {
	h := extra.Clone()
	if h == nil {
		h = make(http.Header)
	}
	locale := types.ScopeFrom(ctx).Locale
	if locale == "" {
		locale = r.opts.Locale
	}
	h.Set(HeaderContentLanguage, locale)
	h.Set(HeaderPoweredBy, r.opts.PoweredBy)
	h.Set(HeaderVersion, r.opts.APIVersion)
	return h
}

func (r *Responder) Data(ctx context.Context, data any, message, hints string) *Response {
	return r.Respond(ctx, data, http.StatusOK, message, hints, nil)
}

func (r *Responder) Saved(ctx context.Context, data any, message, hints string) *Response {
	return r.Respond(ctx, data, http.StatusCreated, message, hints, nil)
}

// Invalid carries validation errors, typically field name to messages.
func (r *Responder) Invalid(ctx context.Context, errs any, message, hints string) *Response {
	return r.Respond(ctx, errs, http.StatusUnprocessableEntity, message, hints, nil)
}

func (r *Responder) Unauthorized(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusUnauthorized, message, hints, nil)
}

func (r *Responder) Forbidden(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusForbidden, message, hints, nil)
}

func (r *Responder) NotFound(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusNotFound, message, hints, nil)
}

func (r *Responder) MethodNotAllowed(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusMethodNotAllowed, message, hints, nil)
}

func (r *Responder) Timeout(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusRequestTimeout, message, hints, nil)
}

func (r *Responder) TokenMismatch(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, StatusTokenMismatch, message, hints, nil)
}

func (r *Responder) Error(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusInternalServerError, message, hints, nil)
}

func (r *Responder) Unavailable(ctx context.Context, message, hints string) *Response {
	return r.Respond(ctx, nil, http.StatusServiceUnavailable, message, hints, nil)
}

// Negotiate picks the encoding for the acceptable content types, in order.
// XML and HTML are recognised but not implemented, so every input resolves
// to JSON.
func Negotiate(acceptable []string) string {
	for _, t := range acceptable {
		switch t {
		case "application/xml", "text/xml", "xml", "text/html":
			continue
		default:
			return MIMEApplicationJSON
		}
	}
	return MIMEApplicationJSON
}

// Encode returns the JSON body of resp. Map keys are sorted, so equal
// responses encode to equal bytes.
func Encode(resp *Response) ([]byte, error) {
	return json.Marshal(resp.Body)
}

// flatten reduces data to maps, slices and scalars. nil becomes an empty list.
func flatten(data any) (any, error) {
	if f, ok := data.(Flattener); ok && !isNilPointer(data) {
		data = f.Flatten()
	}
	if data == nil {
		return []any{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return []any{}, nil
	}
	return out, nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
