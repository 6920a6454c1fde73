// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
)

// InitSentry enables error reporting. The returned func flushes pending
// events and must run before exit.
func InitSentry(dsn, environment, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return func() {}, fmt.Errorf("initializing sentry: %w", err)
	}
	slog.Info("sentry initialized", "environment", environment)
	return func() { sentry.Flush(constants.SentryFlushTimeout) }, nil
}

// Report sends err to Sentry with tags. It is a no-op until InitSentry
// has been called with a DSN.
func Report(err error, tags map[string]string) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}
