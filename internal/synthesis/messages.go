// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package synthesis

import "encoding/json"

// VoiceStyle holds the voice parameters shared by every utterance.
type VoiceStyle struct {
	Style     string `json:"style" yaml:"style"`
	Rate      int    `json:"rate" yaml:"rate"`
	Pitch     int    `json:"pitch" yaml:"pitch"`
	Variation int    `json:"variation" yaml:"variation"`
}

var DefaultVoiceStyle = VoiceStyle{
	Style:     "Conversational",
	Rate:      15,
	Pitch:     0,
	Variation: 1,
}

type VoiceConfig struct {
	VoiceID   string `json:"voiceId"`
	Style     string `json:"style"`
	Rate      int    `json:"rate"`
	Pitch     int    `json:"pitch"`
	Variation int    `json:"variation"`
}

type VoiceConfigMessage struct {
	VoiceConfig VoiceConfig `json:"voice_config"`
}

type TextMessage struct {
	Text string `json:"text"`
	End  bool   `json:"end"`
}

// ResponseFrame is one message from the synthesis stream. Error is kept
// raw because the service sends either a string or an object.
type ResponseFrame struct {
	Audio string          `json:"audio,omitempty"`
	Final bool            `json:"final,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (f *ResponseFrame) HasError() bool {
	return len(f.Error) > 0 && string(f.Error) != "null"
}
