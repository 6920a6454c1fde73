// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/textfilter"
	"github.com/nextcloud/go_voice_bridge/internal/transcript"
)

var (
	ErrOpenStream = errors.New("opening recognition stream")
	ErrDeviceRead = errors.New("reading capture device")
)

type LevelFunc func(source string, level float64)

type StatusFunc func(msg string, isErr bool)

// Capture is the device side of a session. *device.Binding implements it.
type Capture interface {
	Open(framesPerBuffer int) error
	Read(frames int) ([]byte, error)
	Close()
	NativeSampleRate() int
}

type Config struct {
	Direction    string // outgoing or incoming
	LevelSource  string // mic or meeting
	Speaker      string // label used in status messages
	Source       transcript.Source
	Stream       StreamConfig
	RestartDelay time.Duration
}

type Callbacks struct {
	OnLevel  LevelFunc
	OnStatus StatusFunc
}

// Session keeps one recognition stream alive for one direction and turns
// its finalized results into queued utterances.
type Session struct {
	cfg       Config
	engine    Engine
	capture   Capture
	queue     *transcript.Queue
	filter    textfilter.Filter
	callbacks Callbacks
	now       func() time.Time
	logger    *slog.Logger
}

func NewSession(
	cfg Config,
	engine Engine,
	capture Capture,
	queue *transcript.Queue,
	filter textfilter.Filter,
	callbacks Callbacks,
) *Session {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = constants.RecognitionRestart
	}
	if cfg.Stream.SampleRate <= 0 {
		cfg.Stream.SampleRate = constants.RecognizerSampleRate
	}
	return &Session{
		cfg:       cfg,
		engine:    engine,
		capture:   capture,
		queue:     queue,
		filter:    filter,
		callbacks: callbacks,
		now:       time.Now,
		logger:    slog.With("component", "recognition_session", "direction", cfg.Direction),
	}
}

// Run streams until ctx is done. Failures restart the stream after the
// restart delay; a stream the server ended cleanly is reopened at once.
func (s *Session) Run(ctx context.Context) {
	s.logger.Debug("recognition session started", "language", s.cfg.Stream.LanguageCode)
	defer func() {
		s.capture.Close()
		s.logger.Debug("recognition session stopped")
	}()

	for ctx.Err() == nil {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil || errors.Is(err, io.EOF) {
			s.logger.Info("recognition stream ended, reopening")
			continue
		}

		s.logger.Error("recognition stream failed, restarting",
			"error", err,
			"delay", s.cfg.RestartDelay,
		)
		s.status(fmt.Sprintf("%s recognition interrupted, restarting", s.cfg.Direction), false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

func (s *Session) stream(ctx context.Context) error {
	rate := s.capture.NativeSampleRate()
	frames := rate / constants.CaptureFramesPerSec
	if err := s.capture.Open(frames); err != nil {
		return err
	}
	defer s.capture.Close()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec, err := s.engine.Open(streamCtx, s.cfg.Stream)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOpenStream, err)
	}

	pumpErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.pump(streamCtx, rec, frames, rate); err != nil {
			pumpErr <- err
			cancel()
		}
	}()
	defer func() {
		cancel()
		wg.Wait()
		if err := rec.Close(); err != nil {
			s.logger.Debug("closing recognition stream", "error", err)
		}
	}()

	s.logger.Info("listening", "language", s.cfg.Stream.LanguageCode, "device_rate", rate)
	for {
		res, err := rec.Recv()
		if err != nil {
			select {
			case perr := <-pumpErr:
				return perr
			default:
			}
			return err
		}
		if !res.Final {
			continue
		}
		s.handle(res.Transcript)
	}
}

func (s *Session) pump(ctx context.Context, rec Stream, frames, rate int) error {
	for ctx.Err() == nil {
		data, err := s.capture.Read(frames)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceRead, err)
		}
		if s.callbacks.OnLevel != nil {
			s.callbacks.OnLevel(s.cfg.LevelSource, audio.Level(data))
		}
		data = audio.Resample(data, rate, s.cfg.Stream.SampleRate)
		if err := rec.Send(data); err != nil {
			return fmt.Errorf("sending audio: %w", err)
		}
	}
	return nil
}

func (s *Session) handle(text string) {
	text = strings.TrimSpace(text)
	now := s.now()

	if reason := s.filter.Check(text, now); reason != "" {
		s.logger.Debug("transcript dropped", "reason", reason, "text", text)
		return
	}
	if s.filter.Dedup != nil {
		s.filter.Dedup.Record(text, now)
	}

	u := transcript.NewUtterance(text, s.cfg.Source, now)
	if s.queue.Push(u) {
		s.logger.Info("transcript queued", "id", u.ID, "text", text)
		s.status(fmt.Sprintf("%s: %s", s.cfg.Speaker, text), false)
	}
}

func (s *Session) status(msg string, isErr bool) {
	if s.callbacks.OnStatus != nil {
		s.callbacks.OnStatus(msg, isErr)
	}
}
