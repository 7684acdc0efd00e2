// Zaparoo RFID Station
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo RFID Station.
//
// Zaparoo RFID Station is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo RFID Station is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo RFID Station.  If not, see <http://www.gnu.org/licenses/>.

// Package telemetry sends error level log events to Sentry when the user
// has opted in and configured a DSN. Home directory names are removed from
// every event first.
package telemetry

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/helpers"
	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

// ErrNoDSN is returned when reporting is enabled without a DSN.
var ErrNoDSN = errors.New("error reporting enabled but sentry_dsn is not set")

// Settings is what Init needs to know about the running station.
type Settings struct {
	DSN      string
	DeviceID string
	Version  string
	Enabled  bool
}

// FromConfig builds settings from the loaded config.
func FromConfig(cfg *config.Instance) Settings {
	return Settings{
		Enabled:  cfg.ErrorReporting(),
		DSN:      cfg.SentryDSN(),
		DeviceID: cfg.DeviceID(),
		Version:  config.AppVersion,
	}
}

var (
	mu           sync.Mutex
	enabled      bool
	sentryWriter *sentryzerolog.Writer

	userPathPatterns = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)/home/[^/\s]+/`), "/home/<user>/"},
		{regexp.MustCompile(`(?i)/Users/[^/\s]+/`), "/Users/<user>/"},
		{regexp.MustCompile(`(?i)\b([a-z]):\\Users\\[^\\\s]+\\`), `$1:\Users\<user>\`},
	}
)

// Init starts Sentry and adds it to the global logger. Does nothing when
// reporting is disabled.
func Init(s Settings) error {
	if !s.Enabled {
		log.Debug().Msg("error reporting disabled")
		return nil
	}
	if s.DSN == "" {
		return ErrNoDSN
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		Release:          config.AppName + "@" + s.Version,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		ServerName:       "",
		MaxBreadcrumbs:   0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: s.DeviceID})
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})

	w, err := sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:       []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout: flushTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create sentry log writer: %w", err)
	}

	mu.Lock()
	sentryWriter = w
	enabled = true
	mu.Unlock()

	log.Logger = log.Output(zerolog.MultiLevelWriter(helpers.LogWriter(), w)).
		With().Timestamp().Caller().Logger()

	log.Info().Msg("error reporting enabled")
	return nil
}

// Close flushes pending events and detaches Sentry. Safe to call more than
// once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	enabled = false
	if err := sentryWriter.Close(); err != nil {
		log.Debug().Err(err).Msg("failed to close sentry writer")
	}
	sentry.Flush(flushTimeout)
}

// Enabled returns whether events are being reported.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func scrubEvent(event *sentry.Event) *sentry.Event {
	event.ServerName = ""
	event.Message = scrubPath(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = scrubPath(event.Exception[i].Value)
		if event.Exception[i].Stacktrace == nil {
			continue
		}
		for j := range event.Exception[i].Stacktrace.Frames {
			frame := &event.Exception[i].Stacktrace.Frames[j]
			frame.AbsPath = scrubPath(frame.AbsPath)
			frame.Filename = scrubPath(frame.Filename)
		}
	}

	for k, v := range event.Extra {
		if s, ok := v.(string); ok {
			event.Extra[k] = scrubPath(s)
		}
	}
	return event
}

// scrubPath replaces user directory names in s.
func scrubPath(s string) string {
	for _, p := range userPathPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
