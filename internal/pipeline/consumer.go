// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline holds the consumer half of a translation direction:
// it takes recognized utterances off the queue, translates them and speaks
// the result into the direction's playback device.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/logging"
	"github.com/nextcloud/go_voice_bridge/internal/synthesis"
	"github.com/nextcloud/go_voice_bridge/internal/textfilter"
	"github.com/nextcloud/go_voice_bridge/internal/transcript"
)

type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Result, error)
}

type HistoryLog interface {
	Append(e history.Entry) (history.Entry, error)
}

type StatusFunc func(msg string, isErr bool)

type Config struct {
	Direction string
	From      languages.Language
	To        languages.Language
	VoiceID   string

	// TranslatedLabel prefixes the translated text in status messages,
	// DoneLabel the completion message.
	TranslatedLabel string
	DoneLabel       string

	// Echo is recorded with every translated text before it is spoken.
	// Only the outgoing direction sets it.
	Echo *textfilter.EchoState

	// Pace waits for the spoken audio to play out after each utterance.
	Pace bool

	PollInterval time.Duration
}

type Consumer struct {
	cfg        Config
	queue      *transcript.Queue
	translator Translator
	synth      Synthesizer
	playback   synthesis.Playback
	history    HistoryLog
	onStatus   StatusFunc

	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration)
	logger *slog.Logger
}

func NewConsumer(
	cfg Config,
	queue *transcript.Queue,
	translator Translator,
	synth Synthesizer,
	playback synthesis.Playback,
	hist HistoryLog,
	onStatus StatusFunc,
) *Consumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.QueuePollInterval
	}
	if cfg.DoneLabel == "" {
		cfg.DoneLabel = "Done"
	}
	return &Consumer{
		cfg:        cfg,
		queue:      queue,
		translator: translator,
		synth:      synth,
		playback:   playback,
		history:    hist,
		onStatus:   onStatus,
		now:        time.Now,
		wait:       sleepCtx,
		logger:     slog.With("component", "pipeline_consumer", "direction", cfg.Direction),
	}
}

// Run processes utterances one at a time, in queue order, until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Debug("consumer started",
		"from", c.cfg.From.TranslateCode,
		"to", c.cfg.To.TranslateCode,
		"voice", c.cfg.VoiceID,
	)
	defer c.logger.Debug("consumer stopped")

	for ctx.Err() == nil {
		u, ok := c.queue.Pop(ctx, c.cfg.PollInterval)
		if !ok {
			continue
		}
		c.process(ctx, u)
	}
}

func (c *Consumer) process(ctx context.Context, u transcript.Utterance) {
	logger := c.logger.With("utterance_id", u.ID)
	start := c.now()

	translated := c.translator.Translate(ctx, u.Text, c.cfg.From.TranslateCode, c.cfg.To.TranslateCode)
	if translated != u.Text && c.cfg.TranslatedLabel != "" {
		c.status(fmt.Sprintf("%s (%s): %s", c.cfg.TranslatedLabel, c.cfg.To.Name, translated), false)
	}

	if c.cfg.Echo != nil {
		c.cfg.Echo.Record(translated, c.now())
	}

	res, err := c.synth.Synthesize(ctx, synthesis.Request{
		VoiceID:   c.cfg.VoiceID,
		Text:      translated,
		Language:  c.cfg.To.TranslateCode,
		Direction: c.cfg.Direction,
		Playback:  c.playback,
	})
	latency := c.now().Sub(start)

	entry := history.Entry{
		ID:             u.ID,
		Time:           u.Timestamp,
		Direction:      c.cfg.Direction,
		SourceLanguage: c.cfg.From.TranslateCode,
		TargetLanguage: c.cfg.To.TranslateCode,
		Original:       u.Text,
		Translated:     translated,
		Latency:        latency,
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("synthesis interrupted by stop", "error", err)
			return
		}
		entry.Error = err.Error()
		c.appendHistory(entry, logger)
		logger.Error("synthesis failed", "error", err, "latency", latency)
		logging.Report(err, map[string]string{"direction": c.cfg.Direction, "stage": "synthesis"})
		c.status(fmt.Sprintf("%s synthesis failed", c.cfg.Direction), true)
		return
	}

	entry.RecordingPath = res.Path
	c.appendHistory(entry, logger)
	logger.Info("utterance delivered",
		"latency", latency,
		"audio_duration", res.Duration,
		"chunks", res.Chunks,
	)
	c.status(fmt.Sprintf("%s in %.2fs", c.cfg.DoneLabel, latency.Seconds()), false)

	if c.cfg.Pace {
		c.wait(ctx, PacingDelay(res.Duration))
	}
}

// PacingDelay is the pause after speaking audio of length d: the audio
// plus a short pad, capped.
func PacingDelay(d time.Duration) time.Duration {
	return min(d+constants.PacingPad, constants.MaxPacing)
}

func (c *Consumer) appendHistory(e history.Entry, logger *slog.Logger) {
	if c.history == nil {
		return
	}
	if _, err := c.history.Append(e); err != nil {
		logger.Warn("failed to append history entry", "error", err)
	}
}

func (c *Consumer) status(msg string, isErr bool) {
	if c.onStatus != nil {
		c.onStatus(msg, isErr)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
