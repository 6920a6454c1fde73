// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"log/slog"
	"time"
)

// Queue is the FIFO between one recognition session and its consumer.
type Queue struct {
	ch     chan Utterance
	logger *slog.Logger
}

func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		ch:     make(chan Utterance, capacity),
		logger: slog.With("component", "transcript_queue", "direction", name),
	}
}

// Push never blocks the recognizer; a full queue drops the utterance.
func (q *Queue) Push(u Utterance) bool {
	select {
	case q.ch <- u:
		return true
	default:
		q.logger.Warn("transcript queue full, dropping utterance", "id", u.ID)
		return false
	}
}

// Pop waits up to timeout for the next utterance.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Utterance, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case u := <-q.ch:
		return u, true
	case <-timer.C:
		return Utterance{}, false
	case <-ctx.Done():
		return Utterance{}, false
	}
}

// Drain discards everything queued and returns how many were dropped.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}
