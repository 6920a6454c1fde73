// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextcloud/go_voice_bridge/internal/config"
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/recognition"
	"github.com/nextcloud/go_voice_bridge/internal/recording"
	"github.com/nextcloud/go_voice_bridge/internal/service"
	"github.com/nextcloud/go_voice_bridge/internal/synthesis"
	"github.com/nextcloud/go_voice_bridge/internal/translation"
	"github.com/nextcloud/go_voice_bridge/internal/vosk"
)

// app is everything a translation session needs, built from the config.
type app struct {
	orch *service.Orchestrator
	// history is nil when disabled.
	history *history.Store
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, host device.Host, onStatus func(service.StatusMessage)) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	engine, err := a.newEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sink, err := newSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	synth := synthesis.NewClient(synthesis.Options{
		StreamURL:  cfg.Murf.StreamURL,
		APIKey:     cfg.Murf.APIKey,
		SampleRate: cfg.Synthesis.SampleRate,
		Voice:      cfg.Synthesis.Voice,
	}, sink)

	deps := service.Deps{
		Registry:    device.NewRegistry(host),
		Engine:      engine,
		Translator:  translation.NewClient(backend),
		Synthesizer: synth,
		Models: service.RecognitionModels{
			Outgoing:         cfg.Recognition.OutgoingModel,
			Incoming:         cfg.Recognition.IncomingModel,
			IncomingEnhanced: cfg.Recognition.IncomingEnhanced,
		},
		OnStatus: onStatus,
	}

	if !cfg.History.Disabled {
		store, err := history.Open(history.Options{Dir: cfg.History.Dir})
		if err != nil {
			return nil, err
		}
		a.history = store
		a.closers = append(a.closers, store.Close)
		deps.History = store
	}

	a.orch = service.NewOrchestrator(deps)
	return a, nil
}

func (a *app) newEngine(ctx context.Context, cfg *config.Config) (recognition.Engine, error) {
	switch cfg.Recognition.Engine {
	case config.EngineVosk:
		slog.Info("using offline recognition", "models", cfg.Recognition.VoskModelsDir)
		return vosk.NewEngine(vosk.NewModelManager(cfg.Recognition.VoskModelsDir)), nil
	default:
		g, err := recognition.NewGoogleEngine(ctx, cfg.Recognition.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (translation.Backend, error) {
	switch cfg.Translation.Backend {
	case config.BackendGemini:
		return translation.NewGeminiBackend(ctx, cfg.Translation.GeminiAPIKey, cfg.Translation.GeminiModel)
	default:
		return translation.NewMurfBackend(cfg.Murf.BaseURL, cfg.Murf.APIKey, nil), nil
	}
}

// newSink returns nil when recording is disabled.
func newSink(ctx context.Context, cfg *config.Config) (recording.Sink, error) {
	if cfg.Recording.Disabled {
		return nil, nil
	}
	format, err := recording.ParseFormat(cfg.Recording.Format)
	if err != nil {
		return nil, err
	}
	dir := recording.NewDirSink(cfg.Recording.Dir, format)
	if cfg.Recording.S3Bucket == "" {
		return dir, nil
	}

	client, err := recording.NewS3Client(ctx, cfg.Recording.S3Region)
	if err != nil {
		return nil, fmt.Errorf("recording to s3: %w", err)
	}
	return recording.MultiSink{
		dir,
		recording.NewS3Sink(client, cfg.Recording.S3Bucket, cfg.Recording.S3Prefix, format),
	}, nil
}

// bindConfigured binds every role the config names a device for.
func bindConfigured(orch *service.Orchestrator, cfg *config.Config) error {
	for name, key := range cfg.DeviceKeys() {
		role, err := device.ParseRole(name)
		if err != nil {
			return err
		}
		b, err := orch.Bind(role, key)
		if err != nil {
			return fmt.Errorf("binding %s to %q: %w", name, key, err)
		}
		slog.Info("device bound", "role", name, "device", b.DeviceName(), "sample_rate", b.NativeSampleRate())
	}
	return nil
}

// Close stops the session, releases the audio host and closes the stores.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Cleanup()
	}
	a.closeAll()
}

func (a *app) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
