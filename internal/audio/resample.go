// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"log/slog"
	"math"
)

// Resample converts 16-bit little-endian mono PCM from fromRate to toRate
// using linear interpolation. Equal rates return the input slice as-is.
// On malformed input the original buffer is returned unchanged so that
// playback and recognition keep going.
func Resample(samples []byte, fromRate, toRate int) (out []byte) {
	if fromRate == toRate {
		return samples
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("resample failed", "error", r, "from", fromRate, "to", toRate)
			out = samples
		}
	}()

	if fromRate <= 0 || toRate <= 0 || len(samples)%2 != 0 {
		slog.Debug("resample skipped", "from", fromRate, "to", toRate, "bytes", len(samples))
		return samples
	}

	in := BytesToInt16(samples)
	n := int(math.Round(float64(len(in)) * float64(toRate) / float64(fromRate)))
	if len(in) == 0 || n <= 0 {
		return []byte{}
	}

	res := make([]int16, n)
	step := 0.0
	if n > 1 {
		step = float64(len(in)-1) / float64(n-1)
	}
	for i := range res {
		pos := float64(i) * step
		j := int(pos)
		v := float64(in[j])
		if j+1 < len(in) {
			v += (float64(in[j+1]) - v) * (pos - float64(j))
		}
		res[i] = clampInt16(math.Round(v))
	}
	return Int16ToBytes(res)
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
