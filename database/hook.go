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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	tagColor    = color.New(color.FgCyan)
	slowColor   = color.New(color.FgBlack, color.BgYellow)
	errorColor  = color.New(color.FgWhite, color.BgRed)
)

// QueryHook prints executed statements, coloured by operation. Unless verbose,
// only failed and slow statements are printed. Slow statements are also
// reported to the logger when one is set.
type QueryHook struct {
	writer   io.Writer
	envName  string
	enabled  bool
	verbose  bool
	slowTime time.Duration
	logger   Logger
	silent   atomic.Bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

type QueryHookOption func(*QueryHook)

func WithHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func WithHookVerbose(verbose bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = verbose }
}

func WithSlowThreshold(d time.Duration) QueryHookOption {
	return func(h *QueryHook) { h.slowTime = d }
}

func WithHookLogger(l Logger) QueryHookOption {
	return func(h *QueryHook) { h.logger = l }
}

// WithHookEnv names an environment variable that overrides the hook at runtime:
// "0" or empty disables it, "2" turns on verbose output.
func WithHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{writer: os.Stdout, enabled: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetSilent mutes the hook, e.g. while bootstrapping tables.
func (h *QueryHook) SetSilent(silent bool) { h.silent.Store(silent) }

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if h.silent.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
	}
	if !enabled {
		return
	}

	now := time.Now()
	dur := now.Sub(event.StartTime)
	slow := h.slowTime > 0 && dur > h.slowTime
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) && !errors.Is(event.Err, sql.ErrTxDone)

	if slow && h.logger != nil {
		h.logger.Warn("Database slow query detected", "duration", dur, "slow_threshold", h.slowTime, "query", event.Query)
	}
	if !verbose && !failed && !slow {
		return
	}

	tag := tagColor.Sprintf("%12s", "[SQL]")
	query := operationColor(event.Operation()).Sprint(event.Query)
	if slow {
		tag = tagColor.Sprintf("%12s", "[SQL SLOW]")
		query = slowColor.Sprint(event.Query)
	}
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		tag,
		fmt.Sprintf("%12s", dur.Round(time.Microsecond)),
		" ", query,
	}
	if failed {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", errorColor.Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(op string) *color.Color {
	switch op {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}
