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

// Package config loads application settings from an optional YAML file, an
// optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tomoncle/stratum/database"
	"github.com/tomoncle/stratum/repository"
	"github.com/tomoncle/stratum/responder"
	"github.com/tomoncle/stratum/types"
	"github.com/tomoncle/stratum/utils"
)

// AppConfig holds the settings consumed by repositories and the responder.
type AppConfig struct {
	PageSizeDefault int    `mapstructure:"page_size_default"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
	APIVersion      string `mapstructure:"api_version"`
	PoweredBy       string `mapstructure:"powered_by"`
	Locale          string `mapstructure:"locale"`
}

// CacheTTL is the repository cache lifetime.
func (a AppConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Database database.Config `mapstructure:"database"`
	Log      LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.page_size_default", types.DefaultPageSize)
	v.SetDefault("app.cache_ttl_minutes", 1)
	v.SetDefault("app.api_version", "v1.0.0")
	v.SetDefault("app.powered_by", "sti")
	v.SetDefault("app.locale", "en")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	conn := database.DefaultConnectionConfig()
	defaults := map[string]interface{}{
		"type":                  conn.Type,
		"host":                  conn.Host,
		"port":                  conn.Port,
		"username":              conn.Username,
		"password":              conn.Password,
		"dbname":                conn.DBName,
		"sslmode":               conn.SSLMode,
		"max_idle_conns":        conn.MaxIdleConns,
		"max_open_conns":        conn.MaxOpenConns,
		"conn_max_lifetime":     conn.ConnMaxLifetime,
		"conn_max_idle_time":    conn.ConnMaxIdleTime,
		"connect_timeout":       conn.ConnectTimeout,
		"read_timeout":          conn.ReadTimeout,
		"write_timeout":         conn.WriteTimeout,
		"enable_reconnect":      conn.EnableReconnect,
		"reconnect_interval":    conn.ReconnectInterval,
		"max_reconnect_tries":   conn.MaxReconnectTries,
		"health_check_interval": conn.HealthCheckInterval,
		"enable_query_log":      conn.EnableQueryLog,
		"enable_tracing":        conn.EnableTracing,
		"slow_query_time":       conn.SlowQueryTime,
	}
	for k, val := range defaults {
		v.SetDefault("database.connection."+k, val)
	}
	v.SetDefault("database.bootstrap.enable_on_startup", false)
	v.SetDefault("database.bootstrap.seed_on_startup", false)
	v.SetDefault("database.bootstrap.seed_path", "seeds")
	v.SetDefault("database.bootstrap.environment", "development")
}

// Load reads path (skipped when empty) on top of the defaults. Environment
// variables override both, with dots replaced by underscores, e.g.
// APP_PAGE_SIZE_DEFAULT. envFiles are loaded into the environment first;
// with none given, a missing ./.env is ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.App.PageSizeDefault < 1 {
		cfg.App.PageSizeDefault = types.DefaultPageSize
	}
	return &cfg, nil
}

// ApplyLogging pushes the log settings to every named logger.
func (c *Config) ApplyLogging() {
	utils.ConfigureLogLevel(c.Log.Level)
	if c.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(c.Log.Format)
	}
}

// RepositoryOptions returns the page size option, plus caching through
// store when store is not nil.
func (c *Config) RepositoryOptions(store repository.Cache) []repository.Option {
	opts := []repository.Option{repository.WithPageSize(c.App.PageSizeDefault)}
	if store != nil {
		opts = append(opts, repository.WithCache(store, c.App.CacheTTL()))
	}
	return opts
}

func (c *Config) ResponderOptions() responder.Options {
	return responder.Options{
		PoweredBy:  c.App.PoweredBy,
		APIVersion: c.App.APIVersion,
		Locale:     c.App.Locale,
	}
}
