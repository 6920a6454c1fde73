// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/logging"
	"github.com/nextcloud/go_voice_bridge/internal/pipeline"
	"github.com/nextcloud/go_voice_bridge/internal/recognition"
	"github.com/nextcloud/go_voice_bridge/internal/textfilter"
	"github.com/nextcloud/go_voice_bridge/internal/transcript"
)

var (
	ErrMissingDevice  = errors.New("device not bound")
	ErrAlreadyRunning = errors.New("translation already running")
)

const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// Options selects the languages and voices of one translation session.
// Empty voices fall back to the first voice of the language spoken.
type Options struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	VoiceToRemote  string `json:"voiceToRemote"`
	VoiceToLocal   string `json:"voiceToLocal"`
}

type RecognitionModels struct {
	Outgoing         string
	Incoming         string
	IncomingEnhanced bool
}

type Deps struct {
	Registry    *device.Registry
	Engine      recognition.Engine
	Translator  pipeline.Translator
	Synthesizer pipeline.Synthesizer
	// History is optional.
	History pipeline.HistoryLog
	Models  RecognitionModels
	// OnStatus, when set, receives every status message as it is recorded.
	OnStatus func(StatusMessage)
}

// Orchestrator owns the four workers of a bidirectional session: one
// recognition session and one consumer per direction.
type Orchestrator struct {
	deps Deps

	mu       sync.Mutex
	running  bool
	active   Options
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	outQueue *transcript.Queue
	inQueue  *transcript.Queue
	outDedup *textfilter.DedupState
	inDedup  *textfilter.DedupState
	echo     *textfilter.EchoState

	status *statusBoard

	restartDelay time.Duration
	pollInterval time.Duration
	drainTimeout time.Duration
	logger       *slog.Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		deps:         deps,
		outQueue:     transcript.NewQueue(DirectionOutgoing, constants.QueueCapacity),
		inQueue:      transcript.NewQueue(DirectionIncoming, constants.QueueCapacity),
		outDedup:     &textfilter.DedupState{},
		inDedup:      &textfilter.DedupState{},
		echo:         &textfilter.EchoState{},
		status:       newStatusBoard(constants.StatusHistorySize, deps.OnStatus),
		restartDelay: constants.RecognitionRestart,
		pollInterval: constants.QueuePollInterval,
		drainTimeout: constants.StopDrainTimeout,
		logger:       slog.With("component", "orchestrator"),
	}
	o.logger.Info("orchestrator initialized")
	return o
}

// Start validates the device bindings and languages, clears all queued
// and remembered text, and launches the four workers.
func (o *Orchestrator) Start(opts Options) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return ErrAlreadyRunning
	}

	if missing := o.deps.Registry.Missing(device.AllRoles...); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, r := range missing {
			names[i] = r.String()
		}
		err := fmt.Errorf("%w: %s", ErrMissingDevice, strings.Join(names, ", "))
		o.logger.Error("cannot start translation", "error", err)
		o.report(fmt.Sprintf("Device not set: %s", strings.Join(names, ", ")), true)
		return err
	}

	src, err := languages.Lookup(opts.SourceLanguage)
	if err != nil {
		o.report(fmt.Sprintf("Unsupported source language %q", opts.SourceLanguage), true)
		return err
	}
	tgt, err := languages.Lookup(opts.TargetLanguage)
	if err != nil {
		o.report(fmt.Sprintf("Unsupported target language %q", opts.TargetLanguage), true)
		return err
	}
	if opts.VoiceToRemote == "" {
		opts.VoiceToRemote = tgt.DefaultVoice()
	}
	if opts.VoiceToLocal == "" {
		opts.VoiceToLocal = src.DefaultVoice()
	}
	opts.SourceLanguage, opts.TargetLanguage = src.Name, tgt.Name

	mic, _ := o.deps.Registry.Get(device.RoleMic)
	virtualOut, _ := o.deps.Registry.Get(device.RoleVirtualOut)
	virtualIn, _ := o.deps.Registry.Get(device.RoleVirtualIn)
	speaker, _ := o.deps.Registry.Get(device.RoleSpeaker)

	if n := o.outQueue.Drain() + o.inQueue.Drain(); n > 0 {
		o.logger.Info("dropped stale utterances", "count", n)
	}
	o.resetFilters()

	callbacks := recognition.Callbacks{OnLevel: o.status.setLevel, OnStatus: o.report}

	outSession := recognition.NewSession(
		recognition.Config{
			Direction:    DirectionOutgoing,
			LevelSource:  "mic",
			Speaker:      "You",
			Source:       transcript.SourceLocal,
			RestartDelay: o.restartDelay,
			Stream: recognition.StreamConfig{
				SampleRate:   constants.RecognizerSampleRate,
				LanguageCode: src.STTCode,
				Model:        o.deps.Models.Outgoing,
				Punctuation:  true,
			},
		},
		o.deps.Engine, mic, o.outQueue,
		textfilter.Filter{Dedup: o.outDedup},
		callbacks,
	)
	inSession := recognition.NewSession(
		recognition.Config{
			Direction:    DirectionIncoming,
			LevelSource:  "meeting",
			Speaker:      "Them",
			Source:       transcript.SourceRemote,
			RestartDelay: o.restartDelay,
			Stream: recognition.StreamConfig{
				SampleRate:   constants.RecognizerSampleRate,
				LanguageCode: tgt.STTCode,
				Model:        o.deps.Models.Incoming,
				UseEnhanced:  o.deps.Models.IncomingEnhanced,
				Punctuation:  true,
			},
		},
		o.deps.Engine, virtualIn, o.inQueue,
		textfilter.Filter{Dedup: o.inDedup, Echo: o.echo},
		callbacks,
	)

	outConsumer := pipeline.NewConsumer(
		pipeline.Config{
			Direction:       DirectionOutgoing,
			From:            src,
			To:              tgt,
			VoiceID:         opts.VoiceToRemote,
			TranslatedLabel: "To meeting",
			DoneLabel:       "Sent",
			Echo:            o.echo,
			Pace:            true,
			PollInterval:    o.pollInterval,
		},
		o.outQueue, o.deps.Translator, o.deps.Synthesizer, virtualOut, o.deps.History, o.report,
	)
	inConsumer := pipeline.NewConsumer(
		pipeline.Config{
			Direction:       DirectionIncoming,
			From:            tgt,
			To:              src,
			VoiceID:         opts.VoiceToLocal,
			TranslatedLabel: "For you",
			DoneLabel:       "Heard",
			PollInterval:    o.pollInterval,
		},
		o.inQueue, o.deps.Translator, o.deps.Synthesizer, speaker, o.deps.History, o.report,
	)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	for _, run := range []func(context.Context){outSession.Run, inSession.Run, outConsumer.Run, inConsumer.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	o.running = true
	o.active = opts
	o.cancel = cancel
	o.wg = wg

	o.logger.Info("bidirectional translation started",
		"source", src.Name,
		"target", tgt.Name,
		"voice_to_remote", opts.VoiceToRemote,
		"voice_to_local", opts.VoiceToLocal,
	)
	o.report("Bidirectional translation active", false)
	return nil
}

// Stop cancels the workers, closes the capture streams and waits briefly
// for the workers to drain. Playback bindings stay open.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.cancel()
	wg := o.wg
	o.cancel, o.wg = nil, nil
	o.mu.Unlock()

	o.deps.Registry.Close(device.RoleMic, device.RoleVirtualIn)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.logger.Info("all workers stopped")
	case <-time.After(o.drainTimeout):
		o.logger.Warn("workers still draining after stop", "timeout", o.drainTimeout)
	}

	o.resetFilters()
	o.report("Stopped", false)
}

// Cleanup stops the session and releases every device and the audio host.
func (o *Orchestrator) Cleanup() {
	o.Stop()
	if err := o.deps.Registry.Terminate(); err != nil {
		o.logger.Error("failed to release audio subsystem", "error", err)
	}
	o.logger.Info("cleanup complete")
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

type Status struct {
	Running  bool               `json:"running"`
	Session  *Options           `json:"session,omitempty"`
	Devices  map[string]string  `json:"devices"`
	Levels   map[string]float64 `json:"levels"`
	Messages []StatusMessage    `json:"messages"`
}

func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	st := Status{Running: o.running}
	if o.running {
		active := o.active
		st.Session = &active
	}
	o.mu.Unlock()

	st.Devices = o.deps.Registry.Bound()
	st.Levels, st.Messages = o.status.snapshot()
	return st
}

// Bind selects the device for role. Rebinding is refused while running
// since the workers hold the current bindings.
func (o *Orchestrator) Bind(role device.Role, key string) (*device.Binding, error) {
	if o.Running() {
		return nil, fmt.Errorf("%w: stop before changing devices", ErrAlreadyRunning)
	}
	b, err := o.deps.Registry.Bind(role, key)
	if err != nil {
		o.report(fmt.Sprintf("Could not bind %s: %v", role, err), true)
		return nil, err
	}
	return b, nil
}

// Devices lists the devices the audio host offers.
func (o *Orchestrator) Devices() ([]device.Info, error) {
	return o.deps.Registry.Host().Devices()
}

type DeviceTestResult struct {
	Role   string  `json:"role"`
	Device string  `json:"device"`
	Kind   string  `json:"kind"`
	Level  float64 `json:"level,omitempty"`
}

// TestDevice plays a short tone on playback roles and measures the input
// level of capture roles.
func (o *Orchestrator) TestDevice(ctx context.Context, role device.Role) (DeviceTestResult, error) {
	b, ok := o.deps.Registry.Get(role)
	if !ok {
		return DeviceTestResult{}, fmt.Errorf("%w: %s", ErrMissingDevice, role)
	}
	res := DeviceTestResult{Role: role.String(), Device: b.DeviceName()}

	if !role.IsCapture() {
		res.Kind = "tone"
		tone := audio.Tone(constants.TestToneFrequency, constants.TestToneAmplitude, constants.TestToneDuration, constants.SynthesisSampleRate)
		if err := b.Write(audio.Resample(tone, constants.SynthesisSampleRate, b.NativeSampleRate())); err != nil {
			o.report(fmt.Sprintf("Test of %s failed", role), true)
			logging.Report(err, map[string]string{"role": role.String(), "stage": "device_test"})
			return res, fmt.Errorf("playing test tone: %w", err)
		}
		o.report(fmt.Sprintf("Test tone played on %s", b.DeviceName()), false)
		return res, nil
	}

	if o.Running() {
		return res, fmt.Errorf("%w: capture devices are in use", ErrAlreadyRunning)
	}
	res.Kind = "level"
	rate := b.NativeSampleRate()
	frames := rate / constants.CaptureFramesPerSec
	if err := b.Open(frames); err != nil {
		return res, err
	}
	defer b.Close()

	var sum float64
	n := 0
	for i := 0; i < constants.CaptureFramesPerSec && ctx.Err() == nil; i++ {
		data, err := b.Read(frames)
		if err != nil {
			return res, fmt.Errorf("reading test audio: %w", err)
		}
		sum += audio.Level(data)
		n++
	}
	if n > 0 {
		res.Level = sum / float64(n)
	}
	o.report(fmt.Sprintf("Input level on %s: %.0f", b.DeviceName(), res.Level), false)
	return res, ctx.Err()
}

func (o *Orchestrator) resetFilters() {
	o.outDedup.Reset()
	o.inDedup.Reset()
	o.echo.Reset()
}

func (o *Orchestrator) report(msg string, isErr bool) {
	o.status.add(msg, isErr)
}
