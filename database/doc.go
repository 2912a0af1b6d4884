// Package database provides connection management for mysql, postgres and
// sqlite through Bun, query hooks for logging and metrics, a SQL error
// classifier, a model registry and a small table bootstrap with YAML seeding.
package database
