// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recording

import (
	"bytes"
	"fmt"

	"github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/constants"
)

// Encode returns the file body, extension and content type for rec.
func Encode(rec Record, format Format) ([]byte, string, string, error) {
	switch format {
	case FormatOpus:
		if len(rec.WAV) < audio.HeaderSize {
			return nil, "", "", fmt.Errorf("%w: %d bytes", audio.ErrInvalidWAV, len(rec.WAV))
		}
		data, err := EncodeOggOpus(rec.WAV[audio.HeaderSize:], rec.SampleRate)
		if err != nil {
			return nil, "", "", err
		}
		return data, "ogg", "audio/ogg", nil
	case FormatWAV, "":
		return rec.WAV, "wav", "audio/wav", nil
	}
	return nil, "", "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// EncodeOggOpus compresses 16-bit mono PCM into an Ogg/Opus stream.
// Audio is resampled to 48kHz and cut into 20ms packets.
func EncodeOggOpus(pcm []byte, sampleRate int) ([]byte, error) {
	samples := audio.BytesToInt16(audio.Resample(pcm, sampleRate, constants.OpusSampleRate))

	enc, err := opus.NewEncoder(constants.OpusSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("creating opus encoder: %w", err)
	}

	var out bytes.Buffer
	ogg, err := oggwriter.NewWith(&out, constants.OpusSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("creating ogg writer: %w", err)
	}

	frame := make([]int16, constants.OpusFrameSamples)
	packet := make([]byte, constants.OpusMaxPacketSize)
	var seq uint16
	var ts uint32
	for off := 0; off < len(samples); off += constants.OpusFrameSamples {
		n := copy(frame, samples[off:])
		clear(frame[n:])

		size, err := enc.Encode(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("encoding opus frame: %w", err)
		}

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: seq,
				Timestamp:      ts,
			},
			Payload: append([]byte(nil), packet[:size]...),
		}
		if err := ogg.WriteRTP(pkt); err != nil {
			return nil, fmt.Errorf("writing ogg page: %w", err)
		}
		seq++
		ts += constants.OpusFrameSamples
	}

	if err := ogg.Close(); err != nil {
		return nil, fmt.Errorf("closing ogg writer: %w", err)
	}
	return out.Bytes(), nil
}
