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

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the logrus logger handed out by NewLogger.
type Logger = logrus.Logger

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

var (
	registryMu    sync.RWMutex
	registry                = map[string]*logrus.Logger{}
	baseLevel               = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleFormat           = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	output        io.Writer = os.Stdout
)

// NewLogger returns the named logger, creating and registering it on first use.
// Loggers share the package level, format and output.
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, consoleFormat))
	registry[name] = l
	return l
}

func newFormatter(name, format string) logrus.Formatter {
	if format == "json" {
		return &JSONLogFormatter{LoggerName: name, TimestampFormat: defaultTimestampFormat}
	}
	return &Log4jColorFormatter{LoggerName: name, TimestampFormat: defaultTimestampFormat, NameWidth: 10, CallerWidth: 25}
}

// ParseLogLevel maps a level name to a logrus level, defaulting to info.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLoggerLevel changes the level of one registered logger.
// It reports false when no logger with that name exists.
func SetLoggerLevel(name string, level string) bool {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(level))
	return true
}

// ConfigureLogLevel sets the level for every registered and future logger.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	registryMu.Lock()
	defer registryMu.Unlock()
	baseLevel = lvl
	for _, l := range registry {
		l.SetLevel(lvl)
	}
}

// ConfigureConsoleLogFormat switches between "text" and "json" output.
func ConfigureConsoleLogFormat(format string) {
	f := "text"
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		f = "json"
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	consoleFormat = f
	for name, l := range registry {
		l.SetFormatter(newFormatter(name, f))
	}
}

// ConfigureOutput redirects every logger to w.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	output = w
	for _, l := range registry {
		l.SetOutput(w)
	}
}

// Log4jColorFormatter renders "time LEVEL pid --- [name] caller : message".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	CallerWidth     int
	DisableColors   bool
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(orDefault(f.TimestampFormat))
	lvl := f.paint(fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())), levelColor(entry.Level))
	name := f.paint(fmt.Sprintf("%*s", f.NameWidth, truncate(f.LoggerName, f.NameWidth)), ansiCyan)

	caller := ""
	if entry.Caller != nil {
		c := fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
		if f.CallerWidth > 0 {
			c = fmt.Sprintf("%*s", f.CallerWidth, truncateLeft(c, f.CallerWidth))
		}
		caller = " " + f.paint(c, ansiFaint)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s --- [%s]%s : %s", ts, lvl, f.paint(fmt.Sprintf("%-6d", os.Getpid()), ansiMagenta), name, caller, entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (f *Log4jColorFormatter) paint(s, code string) string {
	if f.DisableColors {
		return s
	}
	return code + s + ansiReset
}

// JSONLogFormatter renders one JSON object per entry.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(orDefault(f.TimestampFormat)),
		Level:   entry.Level.String(),
		Logger:  f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return ansiBlue
	case logrus.InfoLevel:
		return ansiGreen
	case logrus.WarnLevel:
		return ansiYellow
	default:
		return ansiRed
	}
}

func orDefault(format string) string {
	if format == "" {
		return defaultTimestampFormat
	}
	return format
}

// shortPath keeps the last two path elements, e.g. "repository/base.go".
func shortPath(p string) string {
	dir, file := filepath.Split(filepath.ToSlash(p))
	return filepath.ToSlash(filepath.Join(filepath.Base(dir), file))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncateLeft(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return "~" + string(r[len(r)-n+1:])
}

// EnvDefaultString returns the environment value of key or def when unset.
func EnvDefaultString(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// EnvDefaultBool parses the environment value of key as a bool.
func EnvDefaultBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Since is a small helper for latency fields in log entries.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
