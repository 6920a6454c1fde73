// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devicetest provides in-memory audio devices for tests.
package devicetest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/device"
)

var ErrClosed = errors.New("fake stream closed")

// Device is a fake device. Every Open returns a new Stream, recorded in Streams.
type Device struct {
	DeviceName string
	Rate       int
	ReadDelay  time.Duration
	OpenErr    error
	// Fill produces the samples of one read; silence when nil.
	Fill func(frames int) []byte

	mu      sync.Mutex
	streams []*Stream
}

func (d *Device) Name() string          { return d.DeviceName }
func (d *Device) NativeSampleRate() int { return d.Rate }

func (d *Device) Open(role device.Role, sampleRate, framesPerBuffer int) (device.Stream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &Stream{delay: d.ReadDelay, fill: d.Fill, SampleRate: sampleRate}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// OpenCount is the number of streams opened so far.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Stream records everything written and counts reads.
type Stream struct {
	SampleRate int

	mu      sync.Mutex
	delay   time.Duration
	fill    func(frames int) []byte
	written []byte
	writes  int
	reads   int
	closed  bool
}

func (s *Stream) Read(frames int) ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.reads++
	if s.fill != nil {
		return s.fill(frames), nil
	}
	return make([]byte, frames*2), nil
}

func (s *Stream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.written = append(s.written, p...)
	s.writes++
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Stream) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Stream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Host serves a fixed set of devices by name.
type Host struct {
	Devs       map[string]*Device
	mu         sync.Mutex
	terminated bool
}

func (h *Host) Devices() ([]device.Info, error) {
	var out []device.Info
	i := 0
	for name, d := range h.Devs {
		out = append(out, device.Info{
			Index:             i,
			Name:              name,
			MaxInputChannels:  1,
			MaxOutputChannels: 1,
			DefaultSampleRate: float64(d.Rate),
		})
		i++
	}
	return out, nil
}

func (h *Host) Device(key string, _ device.Role) (device.Device, error) {
	d, ok := h.Devs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", device.ErrNoSuchDevice, key)
	}
	return d, nil
}

func (h *Host) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminated = true
	return nil
}

func (h *Host) Terminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}
