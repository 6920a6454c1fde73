// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vosk

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nextcloud/go_voice_bridge/internal/recognition"
)

// Engine recognizes speech offline with vosk models. Model and
// enhancement settings in the stream config are ignored.
type Engine struct {
	models *ModelManager
	logger *slog.Logger
}

func NewEngine(models *ModelManager) *Engine {
	return &Engine{
		models: models,
		logger: slog.With("component", "vosk_engine"),
	}
}

func (e *Engine) Open(ctx context.Context, cfg recognition.StreamConfig) (recognition.Stream, error) {
	model, err := e.models.GetModel(cfg.LanguageCode)
	if err != nil {
		return nil, err
	}
	rec, err := NewRecognizer(model, cfg.LanguageCode, float64(cfg.SampleRate))
	if err != nil {
		e.models.ReleaseModel(cfg.LanguageCode)
		return nil, err
	}
	e.logger.Debug("stream opened", "language", cfg.LanguageCode, "sample_rate", cfg.SampleRate)
	return &stream{ctx: ctx, rec: rec, lang: cfg.LanguageCode, models: e.models, closed: make(chan struct{})}, nil
}

type stream struct {
	ctx    context.Context
	rec    *Recognizer
	lang   string
	models *ModelManager

	once   sync.Once
	closed chan struct{}
}

func (s *stream) Send(pcm []byte) error {
	select {
	case <-s.closed:
		return io.ErrClosedPipe
	default:
	}
	s.rec.FeedAudio(pcm)
	return nil
}

func (s *stream) Recv() (recognition.Result, error) {
	select {
	case r := <-s.rec.Results():
		return r, nil
	case <-s.ctx.Done():
		return recognition.Result{}, s.ctx.Err()
	case <-s.closed:
		return recognition.Result{}, io.EOF
	}
}

func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.rec.Close()
		s.models.ReleaseModel(s.lang)
	})
	return nil
}
