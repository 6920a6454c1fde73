// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recognition

import "context"

// StreamConfig is sent once at the start of every recognition stream.
type StreamConfig struct {
	SampleRate   int
	LanguageCode string
	Model        string
	UseEnhanced  bool
	Punctuation  bool
}

type Result struct {
	Transcript string
	Final      bool
}

// Stream is one long-lived recognition stream. Send and Recv may be
// called from different goroutines; Close is called after sending stops.
type Stream interface {
	Send(pcm []byte) error
	Recv() (Result, error)
	Close() error
}

type Engine interface {
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}
