// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"time"

	"github.com/google/uuid"
)

type Source int

const (
	SourceLocal  Source = iota // microphone of the local speaker
	SourceRemote               // audio captured from the meeting
)

func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// Utterance is one finalized transcript waiting for translation.
type Utterance struct {
	ID        string
	Text      string
	Timestamp time.Time
	Source    Source
}

func NewUtterance(text string, source Source, ts time.Time) Utterance {
	return Utterance{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: ts,
		Source:    source,
	}
}
