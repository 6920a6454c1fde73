// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package synthesis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/recording"
)

const DefaultStreamURL = "wss://api.murf.ai/v1/speech/stream-input"

var (
	ErrConnect   = errors.New("synthesis connect failed")
	ErrNoAudio   = errors.New("synthesis returned no audio")
	ErrSynthesis = errors.New("synthesis error")
)

// Playback receives audio chunks as they arrive. *device.Binding implements it.
type Playback interface {
	Write(p []byte) error
	NativeSampleRate() int
}

type Request struct {
	VoiceID   string
	Text      string
	Language  string
	Direction string
	Playback  Playback
}

type Result struct {
	WAV      []byte
	Chunks   int
	Duration time.Duration
	Path     string
}

type Options struct {
	StreamURL      string
	APIKey         string
	SampleRate     int
	Voice          VoiceStyle
	ConnectTimeout time.Duration
	FrameTimeout   time.Duration
}

// Client opens one websocket per utterance and plays audio while it streams in.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	sink   recording.Sink
	logger *slog.Logger
}

func NewClient(opts Options, sink recording.Sink) *Client {
	if opts.StreamURL == "" {
		opts.StreamURL = DefaultStreamURL
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = constants.SynthesisSampleRate
	}
	if opts.Voice.Style == "" {
		opts.Voice = DefaultVoiceStyle
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = constants.SynthConnectTimeout
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = constants.SynthFrameTimeout
	}
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.ConnectTimeout,
		},
		sink:   sink,
		logger: slog.With("component", "synthesis_client"),
	}
}

func (c *Client) streamURL() string {
	q := url.Values{}
	q.Set("api-key", c.opts.APIKey)
	q.Set("sample_rate", strconv.Itoa(c.opts.SampleRate))
	q.Set("channel_type", "MONO")
	q.Set("format", "WAV")
	sep := "?"
	if strings.Contains(c.opts.StreamURL, "?") {
		sep = "&"
	}
	return c.opts.StreamURL + sep + q.Encode()
}

// Synthesize speaks req.Text with req.VoiceID, writing every chunk to
// req.Playback as it arrives. The assembled utterance is persisted and
// returned as a wav. ErrNoAudio means nothing was received.
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	logger := c.logger.With("direction", req.Direction, "voice", req.VoiceID)

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.streamURL(), nil)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.send(conn, VoiceConfigMessage{VoiceConfig: VoiceConfig{
		VoiceID:   req.VoiceID,
		Style:     c.opts.Voice.Style,
		Rate:      c.opts.Voice.Rate,
		Pitch:     c.opts.Voice.Pitch,
		Variation: c.opts.Voice.Variation,
	}}); err != nil {
		return nil, err
	}
	if err := c.send(conn, TextMessage{Text: req.Text, End: true}); err != nil {
		return nil, err
	}

	pcm, chunks, err := c.receive(ctx, conn, req.Playback, logger)
	if err != nil {
		return nil, err
	}

	wav := audio.EncodeWAV(pcm, c.opts.SampleRate, 1, 16)
	res := &Result{
		WAV:      wav,
		Chunks:   chunks,
		Duration: audio.Duration(len(pcm), c.opts.SampleRate),
	}

	if c.sink != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RecordingSaveTimeout)
		defer cancel()
		path, err := c.sink.Save(saveCtx, recording.Record{
			Direction:  req.Direction,
			Text:       req.Text,
			Language:   req.Language,
			Time:       time.Now(),
			SampleRate: c.opts.SampleRate,
			WAV:        wav,
		})
		if err != nil {
			logger.Warn("failed to persist recording", "error", err)
		}
		res.Path = path
	}

	logger.Info("synthesis complete", "chunks", chunks, "duration", res.Duration)
	return res, nil
}

func (c *Client) send(conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: sending message: %v", ErrSynthesis, err)
	}
	return nil
}

// receive reads frames until the final flag, an error frame, or a frame
// timeout. A timeout after at least one chunk is a normal end of stream.
func (c *Client) receive(ctx context.Context, conn *websocket.Conn, playback Playback, logger *slog.Logger) ([]byte, int, error) {
	var pcm []byte
	chunks := 0
	first := true

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.opts.FrameTimeout)); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if chunks > 0 {
					logger.Debug("frame timeout after audio, treating as end of stream", "chunks", chunks)
					break
				}
				return nil, 0, fmt.Errorf("%w: no frame within %s", ErrNoAudio, c.opts.FrameTimeout)
			}
			if chunks > 0 && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, 0, fmt.Errorf("%w: reading frame: %v", ErrSynthesis, err)
		}

		var frame ResponseFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("ignoring malformed frame", "error", err)
			continue
		}

		if frame.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				logger.Warn("failed to decode audio frame", "error", err)
			} else {
				// The header arrives with the first frame longer than itself;
				// shorter frames before it are kept as audio.
				if first && len(chunk) > audio.HeaderSize {
					first = false
					chunk = chunk[audio.HeaderSize:]
				}
				if len(chunk) > 0 {
					chunks++
					pcm = append(pcm, chunk...)
					c.play(playback, chunk, logger)
				}
			}
		}

		if frame.Final {
			break
		}
		if frame.HasError() {
			logger.Error("synthesis stream error", "error", string(frame.Error))
			break
		}
	}

	if chunks == 0 {
		return nil, 0, ErrNoAudio
	}
	return pcm, chunks, nil
}

func (c *Client) play(playback Playback, chunk []byte, logger *slog.Logger) {
	if playback == nil {
		return
	}
	data := audio.Resample(chunk, c.opts.SampleRate, playback.NativeSampleRate())
	if err := playback.Write(data); err != nil {
		logger.Warn("failed to play audio chunk", "error", err)
	}
}
