// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"maps"
	"sync"
	"time"
)

type StatusMessage struct {
	Time  time.Time `json:"time"`
	Text  string    `json:"text"`
	Error bool      `json:"error"`
}

// statusBoard keeps the latest status messages and audio levels for
// display. Messages beyond size are dropped oldest first.
type statusBoard struct {
	mu       sync.Mutex
	size     int
	messages []StatusMessage
	levels   map[string]float64
	listener func(StatusMessage)
}

func newStatusBoard(size int, listener func(StatusMessage)) *statusBoard {
	return &statusBoard{
		size:     size,
		levels:   make(map[string]float64),
		listener: listener,
	}
}

func (b *statusBoard) add(text string, isErr bool) {
	m := StatusMessage{Time: time.Now(), Text: text, Error: isErr}
	b.mu.Lock()
	b.messages = append(b.messages, m)
	if len(b.messages) > b.size {
		b.messages = append(b.messages[:0], b.messages[len(b.messages)-b.size:]...)
	}
	listener := b.listener
	b.mu.Unlock()

	if listener != nil {
		listener(m)
	}
}

func (b *statusBoard) setLevel(source string, level float64) {
	b.mu.Lock()
	b.levels[source] = level
	b.mu.Unlock()
}

func (b *statusBoard) snapshot() (map[string]float64, []StatusMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.levels), append([]StatusMessage(nil), b.messages...)
}
