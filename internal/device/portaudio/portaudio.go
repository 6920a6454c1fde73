// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package portaudio implements device.Host on top of the PortAudio library.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	pa "github.com/gordonklaus/portaudio"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/device"
)

type Host struct {
	logger *slog.Logger
}

func NewHost() (*Host, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &Host{logger: slog.With("component", "portaudio_host")}, nil
}

func (h *Host) Devices() ([]device.Info, error) {
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	out := make([]device.Info, 0, len(devs))
	for _, d := range devs {
		info := device.Info{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

// Device resolves key as a device index, an exact name, or a
// case-insensitive name fragment, restricted to devices usable for role.
func (h *Host) Device(key string, role device.Role) (device.Device, error) {
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	usable := func(d *pa.DeviceInfo) bool {
		if role.IsCapture() {
			return d.MaxInputChannels > 0
		}
		return d.MaxOutputChannels > 0
	}

	var match *pa.DeviceInfo
	if idx, err := strconv.Atoi(key); err == nil {
		for _, d := range devs {
			if d.Index == idx {
				match = d
			}
		}
	}
	if match == nil {
		for _, d := range devs {
			if d.Name == key && usable(d) {
				match = d
				break
			}
		}
	}
	if match == nil {
		lower := strings.ToLower(key)
		for _, d := range devs {
			if strings.Contains(strings.ToLower(d.Name), lower) && usable(d) {
				match = d
				break
			}
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", device.ErrNoSuchDevice, key)
	}
	if !usable(match) {
		return nil, fmt.Errorf("%w: %q as %s", device.ErrWrongCapacity, match.Name, role)
	}

	dev := &paDevice{info: match}
	dev.rate = device.ProbeSampleRate(int(match.DefaultSampleRate), func(rate int) bool {
		return pa.IsFormatSupported(dev.params(role, rate, 0), make([]int16, 1)) == nil
	})
	h.logger.Info("device resolved",
		"key", key,
		"name", match.Name,
		"role", role.String(),
		"native_rate", int(match.DefaultSampleRate),
		"rate", dev.rate,
	)
	return dev, nil
}

func (h *Host) Terminate() error {
	return pa.Terminate()
}

type paDevice struct {
	info *pa.DeviceInfo
	rate int
}

func (d *paDevice) Name() string          { return d.info.Name }
func (d *paDevice) NativeSampleRate() int { return d.rate }

func (d *paDevice) params(role device.Role, rate, frames int) pa.StreamParameters {
	var p pa.StreamParameters
	if role.IsCapture() {
		p = pa.LowLatencyParameters(d.info, nil)
		p.Input.Channels = 1
	} else {
		p = pa.HighLatencyParameters(nil, d.info)
		p.Output.Channels = 1
	}
	p.SampleRate = float64(rate)
	p.FramesPerBuffer = frames
	return p
}

func (d *paDevice) Open(role device.Role, sampleRate, framesPerBuffer int) (device.Stream, error) {
	full := make([]int16, framesPerBuffer)
	buf := &full
	// A pointer makes portaudio take the frame count from len(*buf) on every
	// call, so a short final piece is written without padding.
	s, err := pa.OpenStream(d.params(role, sampleRate, framesPerBuffer), buf)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	return &paStream{s: s, buf: buf, full: full}, nil
}

type paStream struct {
	s    *pa.Stream
	buf  *[]int16
	full []int16
}

// Read blocks until frames samples have been captured. Overflow is not an
// error; the samples that were captured are returned.
func (p *paStream) Read(frames int) ([]byte, error) {
	out := make([]int16, 0, frames)
	for len(out) < frames {
		if err := p.s.Read(); err != nil && !errors.Is(err, pa.InputOverflowed) {
			return nil, err
		}
		out = append(out, *p.buf...)
	}
	return audio.Int16ToBytes(out[:frames]), nil
}

// Write plays data in buffer-sized pieces. The last piece carries exactly
// the remaining samples.
func (p *paStream) Write(data []byte) error {
	return writeFrames(p.buf, p.full, audio.BytesToInt16(data), func() error {
		if err := p.s.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			return err
		}
		return nil
	})
}

// writeFrames copies samples into full in pieces of at most len(full),
// points buf at the filled part and calls write once per piece. buf is
// restored to full before returning.
func writeFrames(buf *[]int16, full, samples []int16, write func() error) error {
	defer func() { *buf = full }()
	for off := 0; off < len(samples); off += len(full) {
		n := copy(full, samples[off:])
		*buf = full[:n]
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (p *paStream) Close() error {
	if err := p.s.Stop(); err != nil {
		_ = p.s.Close()
		return err
	}
	return p.s.Close()
}
