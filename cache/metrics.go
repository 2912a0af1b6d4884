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

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoncle/stratum/repository"
)

// Instrumented counts lookups on the wrapped Cache by result.
type Instrumented struct {
	next    repository.Cache
	name    string
	lookups *prometheus.CounterVec
	writes  *prometheus.CounterVec
}

var _ repository.Cache = (*Instrumented)(nil)

// Instrument wraps next and registers its counters on reg under the cache
// label name. Several caches may share one registry.
func Instrument(next repository.Cache, reg prometheus.Registerer, name string) (*Instrumented, error) {
	lookups, err := registerCounter(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups by result.",
		},
		[]string{"cache", "result"},
	))
	if err != nil {
		return nil, err
	}
	writes, err := registerCounter(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of cache writes by status.",
		},
		[]string{"cache", "status"},
	))
	if err != nil {
		return nil, err
	}
	return &Instrumented{next: next, name: name, lookups: lookups, writes: writes}, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := i.next.Get(ctx, key)
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
	}
	i.lookups.WithLabelValues(i.name, result).Inc()
	return value, ok, err
}

func (i *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := i.next.Set(ctx, key, value, ttl)
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.writes.WithLabelValues(i.name, status).Inc()
	return err
}
