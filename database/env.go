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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SupportedTypes lists the accepted ConnectionConfig.Type values.
var SupportedTypes = []string{"mysql", "postgres", "pgx", "sqlite"}

// ValidateConfig rejects unsupported database types early.
func ValidateConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	t := normalizeType(cfg.Type)
	for _, s := range SupportedTypes {
		if t == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, SupportedTypes)
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(strings.TrimSpace(t))
	}
}

// ApplyEnvOverrides lets DB_* environment variables win over file values,
// which keeps credentials out of configuration files.
func ApplyEnvOverrides(cfg *ConnectionConfig) {
	overrideString("DB_TYPE", &cfg.Type)
	overrideString("DB_HOST", &cfg.Host)
	overrideInt("DB_PORT", &cfg.Port)
	overrideString("DB_USERNAME", &cfg.Username)
	overrideString("DB_PASSWORD", &cfg.Password)
	overrideString("DB_NAME", &cfg.DBName)
	overrideString("DB_SSLMODE", &cfg.SSLMode)
	overrideInt("DB_MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	overrideInt("DB_MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	overrideSeconds("DB_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)
	overrideBool("DB_ENABLE_RECONNECT", &cfg.EnableReconnect)
	overrideSeconds("DB_RECONNECT_INTERVAL", &cfg.ReconnectInterval)
	overrideBool("DB_ENABLE_QUERY_LOG", &cfg.EnableQueryLog)
	overrideBool("DB_ENABLE_TRACING", &cfg.EnableTracing)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func overrideSeconds(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
