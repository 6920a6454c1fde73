// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vosk

/*
#include <malloc.h>
*/
import "C"

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/nextcloud/go_voice_bridge/internal/recognition"
)

type voskResult struct {
	Partial string `json:"partial,omitempty"`
	Text    string `json:"text,omitempty"`
}

// maxChunksBeforeForceFinalize forces a FinalResult() call after this many
// chunks without a natural final result, preventing unbounded memory growth.
// Capture frames are 100ms, so 100 chunks = 10 seconds.
const maxChunksBeforeForceFinalize = 100

const resultBufferSize = 32

// Recognizer feeds PCM into one vosk recognizer and publishes final
// transcripts on Results.
type Recognizer struct {
	mu               sync.Mutex
	rec              *vosk.VoskRecognizer
	model            *vosk.VoskModel
	sampleRate       float64
	language         string
	chunksSinceFinal int
	results          chan recognition.Result
	logger           *slog.Logger
}

func NewRecognizer(model *vosk.VoskModel, language string, sampleRate float64) (*Recognizer, error) {
	rec, err := vosk.NewRecognizer(model, sampleRate)
	if err != nil {
		return nil, err
	}
	rec.SetWords(0) // no word-level timing

	return &Recognizer{
		rec:        rec,
		model:      model,
		sampleRate: sampleRate,
		language:   language,
		results:    make(chan recognition.Result, resultBufferSize),
		logger:     slog.With("component", "vosk_recognizer", "language", language),
	}, nil
}

func (r *Recognizer) Results() <-chan recognition.Result {
	return r.results
}

func (r *Recognizer) FeedAudio(pcmData []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec == nil {
		return
	}

	r.chunksSinceFinal++

	if r.rec.AcceptWaveform(pcmData) != 0 {
		resultJSON := r.rec.Result()
		r.logger.Debug("vosk final result", "json", resultJSON)
		r.emit(resultJSON)
		r.chunksSinceFinal = 0
	} else if r.chunksSinceFinal >= maxChunksBeforeForceFinalize {
		// Force finalization to prevent unbounded C-side memory growth
		resultJSON := r.rec.FinalResult()
		r.logger.Debug("vosk forced final", "json", resultJSON, "chunks", r.chunksSinceFinal)
		r.emit(resultJSON)
		r.chunksSinceFinal = 0
		// Recreate the recognizer to fully release C memory
		r.resetRecognizer()
	}
}

func (r *Recognizer) emit(resultJSON string) {
	text, ok := parseFinal(resultJSON)
	if !ok {
		return
	}
	select {
	case r.results <- recognition.Result{Transcript: text, Final: true}:
	default:
		r.logger.Warn("result channel full, dropping transcript")
	}
}

// parseFinal extracts the text of a vosk final result. Empty results and
// the lone "the" vosk produces on silence are skipped.
func parseFinal(resultJSON string) (string, bool) {
	var result voskResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", false
	}
	text := strings.TrimSpace(result.Text)
	if text == "" || text == "the" {
		return "", false
	}
	return text, true
}

// Must be called with r.mu held.
func (r *Recognizer) resetRecognizer() {
	if r.rec != nil {
		r.rec.Free()
	}
	// Force glibc to return freed pages to OS
	C.malloc_trim(0)

	newRec, err := vosk.NewRecognizer(r.model, r.sampleRate)
	if err != nil {
		r.logger.Error("failed to recreate recognizer", "error", err)
		r.rec = nil
		return
	}
	newRec.SetWords(0)
	r.rec = newRec
	r.logger.Debug("recognizer reset")
}

// Close flushes the pending utterance and frees the recognizer.
func (r *Recognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec != nil {
		r.emit(r.rec.FinalResult())
		r.rec.Free()
		r.rec = nil
	}
	r.logger.Debug("recognizer closed")
}
