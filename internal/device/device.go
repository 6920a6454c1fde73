// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotOpen       = errors.New("device stream not open")
	ErrUnknownRole   = errors.New("unknown device role")
	ErrNoSuchDevice  = errors.New("no such device")
	ErrWrongCapacity = errors.New("device has no channels for this role")
)

type Role int

const (
	RoleMic        Role = iota // local microphone
	RoleVirtualOut             // virtual cable the meeting app listens to
	RoleVirtualIn              // virtual cable carrying meeting audio
	RoleSpeaker                // local headphones or speakers
)

var AllRoles = []Role{RoleMic, RoleVirtualOut, RoleVirtualIn, RoleSpeaker}

var roleNames = map[Role]string{
	RoleMic:        "mic",
	RoleVirtualOut: "virtual_out",
	RoleVirtualIn:  "virtual_in",
	RoleSpeaker:    "speaker",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsCapture reports whether the role reads audio rather than plays it.
func (r Role) IsCapture() bool {
	return r == RoleMic || r == RoleVirtualIn
}

func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == s || strings.ReplaceAll(n, "_", "-") == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Stream is an open device stream carrying 16-bit mono PCM.
type Stream interface {
	Read(frames int) ([]byte, error)
	Write(p []byte) error
	Close() error
}

// Device is one audio endpoint reported by the host.
type Device interface {
	Name() string
	NativeSampleRate() int
	Open(role Role, sampleRate, framesPerBuffer int) (Stream, error)
}

type Info struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// Host enumerates devices and owns the audio subsystem.
type Host interface {
	Devices() ([]Info, error)
	Device(key string, role Role) (Device, error)
	Terminate() error
}

// ProbeRates is the order in which sample rates are tried after the native one.
var ProbeRates = []int{16000, 48000, 44100, 32000, 24000, 22050, 11025, 8000}

// ProbeSampleRate returns the first rate, native first, for which supported
// returns true. It falls back to native when nothing is reported supported.
func ProbeSampleRate(native int, supported func(rate int) bool) int {
	if native > 0 && supported(native) {
		return native
	}
	for _, r := range ProbeRates {
		if r != native && supported(r) {
			return r
		}
	}
	return native
}
