// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recognition

import (
	"context"
	"fmt"
	"log/slog"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleEngine streams audio to Cloud Speech-to-Text.
type GoogleEngine struct {
	client *speech.Client
	logger *slog.Logger
}

func NewGoogleEngine(ctx context.Context, credentialsFile string) (*GoogleEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &GoogleEngine{
		client: client,
		logger: slog.With("component", "google_recognizer"),
	}, nil
}

func (g *GoogleEngine) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening streaming recognize: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(cfg.SampleRate),
					LanguageCode:               cfg.LanguageCode,
					EnableAutomaticPunctuation: cfg.Punctuation,
					Model:                      cfg.Model,
					UseEnhanced:                cfg.UseEnhanced,
				},
				InterimResults:  false,
				SingleUtterance: false,
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("sending streaming config: %w", err)
	}

	g.logger.Debug("recognition stream opened", "language", cfg.LanguageCode, "model", cfg.Model)
	return &googleStream{stream: stream}, nil
}

func (g *GoogleEngine) Close() error {
	return g.client.Close()
}

type googleStream struct {
	stream  speechpb.Speech_StreamingRecognizeClient
	pending []Result
}

func (s *googleStream) Send(pcm []byte) error {
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: pcm},
	})
}

func (s *googleStream) Recv() (Result, error) {
	for len(s.pending) == 0 {
		resp, err := s.stream.Recv()
		if err != nil {
			return Result{}, err
		}
		if resp.Error != nil {
			return Result{}, fmt.Errorf("recognition error %d: %s", resp.Error.GetCode(), resp.Error.GetMessage())
		}
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			s.pending = append(s.pending, Result{
				Transcript: r.Alternatives[0].Transcript,
				Final:      r.IsFinal,
			})
		}
	}
	res := s.pending[0]
	s.pending = s.pending[1:]
	return res, nil
}

func (s *googleStream) Close() error {
	return s.stream.CloseSend()
}
