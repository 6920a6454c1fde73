// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recording persists every synthesized utterance, one file per
// utterance, in a folder per direction.
package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
)

var ErrUnknownFormat = errors.New("unknown recording format")

type Format string

const (
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatOpus, "ogg":
		return FormatOpus, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Record is one synthesized utterance. WAV holds the 16-bit mono audio
// with its 44-byte header.
type Record struct {
	Direction  string
	Text       string
	Language   string
	Time       time.Time
	SampleRate int
	WAV        []byte
}

type Sink interface {
	Save(ctx context.Context, rec Record) (string, error)
}

// DirName maps a direction to its folder name.
func DirName(direction string) string {
	if direction == "incoming" {
		return constants.IncomingRecordingDir
	}
	return constants.OutgoingRecordingDir
}

// FileName builds YYYYmmdd_HHMMSS_micro_{language}_{excerpt}.{ext}. The
// excerpt keeps letters, digits, marks and spaces of the first runes of
// text, with spaces turned into underscores.
func FileName(t time.Time, language, text, ext string) string {
	var b strings.Builder
	n := 0
	for _, r := range text {
		if n == constants.RecordingExcerptRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			continue
		}
		n++
	}
	stamp := t.Format("20060102_150405") + fmt.Sprintf("_%06d", t.Nanosecond()/1000)
	return fmt.Sprintf("%s_%s_%s.%s", stamp, language, b.String(), ext)
}

// MultiSink saves to every sink and returns the first path.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, rec Record) (string, error) {
	var first string
	var errs []error
	for _, s := range m {
		p, err := s.Save(ctx, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = p
		}
	}
	return first, errors.Join(errs...)
}
