// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package translation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
)

var (
	ErrTranslate        = errors.New("translation error")
	ErrEmptyTranslation = errors.New("translation returned no text")
)

// Backend performs one translation request.
type Backend interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Client wraps a Backend so that translation never blocks the pipeline:
// every failure degrades to passing the original text through.
type Client struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(backend Backend) *Client {
	return &Client{
		backend: backend,
		timeout: constants.TranslateTimeout,
		logger:  slog.With("component", "translation_client"),
	}
}

func (c *Client) Translate(ctx context.Context, text, from, to string) (result string) {
	if from == to {
		return text
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("translation backend panicked, passing original text through",
				"panic", r,
				"from", from,
				"to", to,
			)
			result = text
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.backend.Translate(ctx, text, from, to)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyTranslation
	}
	if err != nil {
		c.logger.Warn("translation failed, passing original text through",
			"error", err,
			"from", from,
			"to", to,
			"elapsed", time.Since(start),
		)
		return text
	}

	c.logger.Debug("translated", "from", from, "to", to, "elapsed", time.Since(start))
	return out
}
