// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package languages

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

type Voice struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Language describes one selectable language. STTCode is what the
// recognizer expects, TranslateCode is what the translation and synthesis
// services expect; they differ for British English.
type Language struct {
	Name          string  `json:"name"`
	STTCode       string  `json:"stt_code"`
	TranslateCode string  `json:"translate_code"`
	Voices        []Voice `json:"voices"`
}

// DefaultVoice is the first voice listed for the language.
func (l Language) DefaultVoice() string {
	if len(l.Voices) == 0 {
		return ""
	}
	return l.Voices[0].ID
}

func (l Language) HasVoice(id string) bool {
	for _, v := range l.Voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

var Supported = []Language{
	{
		Name: "English (US)", STTCode: "en-US", TranslateCode: "en-US",
		Voices: []Voice{
			{"Natalie (Female)", "en-US-natalie"},
			{"Miles (Male)", "en-US-miles"},
			{"Ken (Male)", "en-US-ken"},
			{"Clint (Male)", "en-US-clint"},
			{"Amara (Female)", "en-US-amara"},
		},
	},
	{
		Name: "English (UK)", STTCode: "en-GB", TranslateCode: "en-UK",
		Voices: []Voice{
			{"Ruby (Female)", "en-UK-ruby"},
			{"Oliver (Male)", "en-UK-oliver"},
		},
	},
	{
		Name: "English (India)", STTCode: "en-IN", TranslateCode: "en-IN",
		Voices: []Voice{
			{"Priya (Female)", "en-IN-priya"},
			{"Rahul (Male)", "en-IN-rahul"},
		},
	},
	{
		Name: "Hindi", STTCode: "hi-IN", TranslateCode: "hi-IN",
		Voices: []Voice{
			{"Kabir (Male)", "hi-IN-kabir"},
			{"Ayushi (Female)", "hi-IN-ayushi"},
			{"Shaan (Male)", "hi-IN-shaan"},
			{"Shweta (Female)", "hi-IN-shweta"},
		},
	},
	{
		Name: "Tamil", STTCode: "ta-IN", TranslateCode: "ta-IN",
		Voices: []Voice{
			{"Iniya (Female)", "ta-IN-iniya"},
			{"Suresh (Male)", "ta-IN-suresh"},
		},
	},
	{
		Name: "Bengali", STTCode: "bn-IN", TranslateCode: "bn-IN",
		Voices: []Voice{
			{"Anwesha (Female)", "bn-IN-anwesha"},
			{"Abhik (Male)", "bn-IN-abhik"},
		},
	},
	{
		Name: "Marathi", STTCode: "mr-IN", TranslateCode: "mr-IN",
		Voices: []Voice{
			{"Mira (Female)", "mr-IN-mira"},
			{"Aarav (Male)", "mr-IN-aarav"},
		},
	},
	{
		Name: "Telugu", STTCode: "te-IN", TranslateCode: "te-IN",
		Voices: []Voice{
			{"Vani (Female)", "te-IN-vani"},
			{"Ravi (Male)", "te-IN-ravi"},
		},
	},
	{
		Name: "Kannada", STTCode: "kn-IN", TranslateCode: "kn-IN",
		Voices: []Voice{
			{"Deepa (Female)", "kn-IN-deepa"},
			{"Kiran (Male)", "kn-IN-kiran"},
		},
	},
	{
		Name: "Gujarati", STTCode: "gu-IN", TranslateCode: "gu-IN",
		Voices: []Voice{
			{"Diya (Female)", "gu-IN-diya"},
			{"Jay (Male)", "gu-IN-jay"},
		},
	},
	{
		Name: "Spanish (Spain)", STTCode: "es-ES", TranslateCode: "es-ES",
		Voices: []Voice{
			{"Sofia (Female)", "es-ES-sofia"},
			{"Carlos (Male)", "es-ES-carlos"},
		},
	},
	{
		Name: "French", STTCode: "fr-FR", TranslateCode: "fr-FR",
		Voices: []Voice{
			{"Isabelle (Female)", "fr-FR-isabelle"},
			{"Pierre (Male)", "fr-FR-pierre"},
		},
	},
	{
		Name: "German", STTCode: "de-DE", TranslateCode: "de-DE",
		Voices: []Voice{
			{"Anna (Female)", "de-DE-anna"},
			{"Klaus (Male)", "de-DE-klaus"},
		},
	},
}

// ModelsList maps an STT code to the vosk model directory under the models dir.
var ModelsList = map[string]string{
	"en-US": "vosk-model-en-us-0.22",
	"en-GB": "vosk-model-small-en-us-0.15",
	"en-IN": "vosk-model-en-in-0.5",
	"hi-IN": "vosk-model-hi-0.22",
	"te-IN": "vosk-model-small-te-0.42",
	"gu-IN": "vosk-model-small-gu-0.42",
	"es-ES": "vosk-model-es-0.42",
	"fr-FR": "vosk-model-fr-0.22",
	"de-DE": "vosk-model-de-0.21",
}

// Lookup finds a language by display name, STT code or translate code.
// Matching is case-insensitive.
func Lookup(key string) (Language, error) {
	key = strings.TrimSpace(key)
	for _, l := range Supported {
		if strings.EqualFold(l.Name, key) || strings.EqualFold(l.STTCode, key) || strings.EqualFold(l.TranslateCode, key) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, key)
}

// Names returns the display names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(Supported))
	for _, l := range Supported {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}
