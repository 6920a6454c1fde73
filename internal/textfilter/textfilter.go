// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package textfilter rejects transcripts that repeat the previous accepted
// transcript of the same direction, or that are the bridge's own
// synthesized speech captured again by the remote input.
package textfilter

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
)

var (
	// \s is ASCII only in RE2; \p{Z} adds NBSP, U+202F and U+3000.
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s\p{Z}]+`)
	whitespace  = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Normalize strips punctuation, collapses whitespace and lower-cases.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	// Casers hold state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Similar reports whether a and b match after normalization: either equal,
// or one contains the other and the shorter is at least ratio of the longer.
func Similar(a, b string, ratio float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if !strings.Contains(na, nb) && !strings.Contains(nb, na) {
		return false
	}
	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	return float64(min(la, lb))/float64(max(la, lb)) >= ratio
}

// IsDuplicate compares text with the last accepted transcript of the same direction.
func IsDuplicate(text, lastText string, lastTime, now time.Time) bool {
	return matchWithin(text, lastText, lastTime, now, constants.DuplicateThreshold, constants.DuplicateSimilarity)
}

// IsEcho compares an incoming transcript with the last outgoing translation.
func IsEcho(text, lastOutgoing string, lastOutgoingTime, now time.Time) bool {
	return matchWithin(text, lastOutgoing, lastOutgoingTime, now, constants.EchoThreshold, constants.EchoSimilarity)
}

func matchWithin(text, ref string, refTime, now time.Time, window time.Duration, ratio float64) bool {
	if ref == "" || refTime.IsZero() {
		return false
	}
	if now.Sub(refTime) > window {
		return false
	}
	return Similar(text, ref, ratio)
}

// DedupState remembers the last accepted transcript of one direction.
type DedupState struct {
	mu       sync.Mutex
	lastText string
	lastTime time.Time
}

func (d *DedupState) IsDuplicate(text string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return IsDuplicate(text, d.lastText, d.lastTime, now)
}

func (d *DedupState) Record(text string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastText = text
	d.lastTime = now
}

func (d *DedupState) Reset() {
	d.Record("", time.Time{})
}

// EchoState remembers the last text the outgoing direction synthesized.
type EchoState struct {
	mu       sync.Mutex
	lastText string
	lastTime time.Time
}

func (e *EchoState) IsEcho(text string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return IsEcho(text, e.lastText, e.lastTime, now)
}

func (e *EchoState) Record(text string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastText = text
	e.lastTime = now
}

func (e *EchoState) Reset() {
	e.Record("", time.Time{})
}

// Filter decides whether a finalized transcript is queued. Echo is nil for
// the outgoing direction.
type Filter struct {
	Dedup *DedupState
	Echo  *EchoState
}

// Reason is empty when text is accepted.
func (f Filter) Check(text string, now time.Time) (reason string) {
	if strings.TrimSpace(text) == "" {
		return "empty"
	}
	if f.Echo != nil && f.Echo.IsEcho(text, now) {
		return "echo"
	}
	if f.Dedup != nil && f.Dedup.IsDuplicate(text, now) {
		return "duplicate"
	}
	return ""
}
