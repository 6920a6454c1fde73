// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Chunk is a piece of 16-bit signed little-endian PCM.
type Chunk struct {
	Samples    []byte
	SampleRate int
	Channels   int
}

func (c Chunk) Duration() time.Duration {
	return Duration(len(c.Samples), c.SampleRate)
}

func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func Int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Duration of n bytes of 16-bit mono PCM at sampleRate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(sampleRate)
}

// Level returns the mean absolute amplitude of the frame.
func Level(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))))
	}
	return sum / float64(n)
}

// Tone generates a mono sine wave at freq Hz scaled by amplitude (0..1).
func Tone(freq, amplitude float64, d time.Duration, sampleRate int) []byte {
	n := int(d.Seconds() * float64(sampleRate))
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = clampInt16(math.Round(amplitude * math.Sin(2*math.Pi*freq*t) * math.MaxInt16))
	}
	return Int16ToBytes(samples)
}
