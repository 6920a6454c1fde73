// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package constants

import "time"

const (
	DuplicateThreshold    = 20 * time.Second
	EchoThreshold         = 10 * time.Second
	DuplicateSimilarity   = 0.90
	EchoSimilarity        = 0.85
	RecognitionRestart    = 2 * time.Second
	TranslateTimeout      = 8 * time.Second
	SynthConnectTimeout   = 5 * time.Second
	SynthFrameTimeout     = 8 * time.Second
	QueuePollInterval     = 200 * time.Millisecond
	PacingPad             = 300 * time.Millisecond
	MaxPacing             = 3 * time.Second
	StopDrainTimeout      = 500 * time.Millisecond
	RecordingSaveTimeout  = 10 * time.Second
	HTTPShutdownTimeout   = 30 * time.Second
	SentryFlushTimeout    = 2 * time.Second
	QueueCapacity         = 256
	StatusHistorySize     = 50
	RecognizerSampleRate  = 16000
	SynthesisSampleRate   = 44100
	CaptureFramesPerSec   = 10 // one read per 100ms of audio
	TestToneFrequency     = 440.0
	TestToneAmplitude     = 0.3
	TestToneDuration      = time.Second
	DefaultHistoryLimit   = 50
	MaxHistoryLimit       = 1000
	OpusFrameSamples      = 960 // 20ms at 48kHz
	OpusSampleRate        = 48000
	OpusMaxPacketSize     = 4000
	OutgoingRecordingDir  = "outgoing_translations"
	IncomingRecordingDir  = "incoming_translations"
	RecordingExcerptRunes = 30
)
