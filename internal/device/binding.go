// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package device

import (
	"fmt"
	"log/slog"
	"sync"
)

const playbackFramesPerBuffer = 1024

// Binding ties a role to a device and its currently open stream. Reads,
// writes and close are serialized so a stream is never closed while a
// read or write on it is in flight.
type Binding struct {
	mu     sync.Mutex
	role   Role
	device Device
	rate   int
	stream Stream
	logger *slog.Logger
}

func newBinding(role Role, dev Device) *Binding {
	return &Binding{
		role:   role,
		device: dev,
		rate:   dev.NativeSampleRate(),
		logger: slog.With("component", "device_binding", "role", role.String(), "device", dev.Name()),
	}
}

func (b *Binding) Role() Role            { return b.role }
func (b *Binding) DeviceName() string    { return b.device.Name() }
func (b *Binding) NativeSampleRate() int { return b.rate }

// Open opens a fresh stream at the native rate, closing any previous one.
func (b *Binding) Open(framesPerBuffer int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked()
	s, err := b.device.Open(b.role, b.rate, framesPerBuffer)
	if err != nil {
		return fmt.Errorf("opening %s stream on %q: %w", b.role, b.device.Name(), err)
	}
	b.stream = s
	b.logger.Debug("stream opened", "sample_rate", b.rate, "frames", framesPerBuffer)
	return nil
}

func (b *Binding) Read(frames int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return nil, ErrNotOpen
	}
	return b.stream.Read(frames)
}

func (b *Binding) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return ErrNotOpen
	}
	return b.stream.Write(p)
}

func (b *Binding) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stream != nil
}

// Close closes the stream; the binding itself stays registered.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Binding) closeLocked() {
	if b.stream == nil {
		return
	}
	if err := b.stream.Close(); err != nil {
		b.logger.Warn("failed to close stream", "error", err)
	}
	b.stream = nil
	b.logger.Debug("stream closed")
}
