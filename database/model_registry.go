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
	"sort"
	"sync"
)

// SQLModel is a Bun model known to the bootstrap. Instance returns a typed nil
// struct pointer; lower Priority values are created first.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
}

// NewModelRegistry returns an empty registry safe for concurrent use.
func NewModelRegistry() ModelRegistry {
	return &modelRegistry{models: make([]SQLModel, 0)}
}

func (r *modelRegistry) Register(model SQLModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, model)
}

// Models returns the registered models by ascending priority. Ties keep
// registration order.
func (r *modelRegistry) Models() []SQLModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

type modelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct pointer and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &modelAdapter{instance: instance, priority: priority}
}

func (a *modelAdapter) Instance() interface{} { return a.instance }

func (a *modelAdapter) Priority() int { return a.priority }

// Instances returns the model instances in creation order.
func Instances(reg ModelRegistry) []interface{} {
	models := reg.Models()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}

// registrationOrder is the reverse of creation order. Bun resolves m2m
// relations eagerly, so junction tables must be registered before the
// tables that point at them.
func registrationOrder(reg ModelRegistry) []interface{} {
	in := Instances(reg)
	out := make([]interface{}, len(in))
	for i, m := range in {
		out[len(in)-1-i] = m
	}
	return out
}
