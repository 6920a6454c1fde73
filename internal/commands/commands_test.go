// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/config"
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/recording"
	"github.com/nextcloud/go_voice_bridge/internal/vosk"
)

func lineWith(t *testing.T, out, needle string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	t.Fatalf("no line containing %q in\n%s", needle, out)
	return ""
}

func TestDeviceTable(t *testing.T) {
	infos := []device.Info{
		{Index: 0, Name: "USB Mic", HostAPI: "ALSA", MaxInputChannels: 1, DefaultSampleRate: 48000},
		{Index: 3, Name: "CABLE Input", HostAPI: "ALSA", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{Index: 4, Name: "HDMI", HostAPI: "ALSA", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	}
	out := deviceTable(infos, map[string]string{"mic": "usb mic", "virtual_out": "3"})

	if line := lineWith(t, out, "USB Mic"); !strings.Contains(line, "mic") || !strings.Contains(line, "48000") {
		t.Errorf("mic row = %q", line)
	}
	if line := lineWith(t, out, "CABLE Input"); !strings.Contains(line, "virtual_out") {
		t.Errorf("virtual_out row = %q", line)
	}
	if line := lineWith(t, out, "HDMI"); strings.Contains(line, "virtual") || strings.Contains(line, "speaker") {
		t.Errorf("unconfigured row = %q", line)
	}
}

func TestLanguageTable(t *testing.T) {
	out := languageTable(languages.Supported, func(code string) bool { return code == "hi-IN" })

	if line := lineWith(t, out, "Hindi"); !strings.Contains(line, "installed") {
		t.Errorf("hindi row = %q", line)
	}
	if line := lineWith(t, out, "Tamil"); strings.Contains(line, "available") || strings.Contains(line, "installed") {
		t.Errorf("tamil has no offline model: %q", line)
	}
	if line := lineWith(t, out, "English (UK)"); !strings.Contains(line, "en-UK") || !strings.Contains(line, "available") {
		t.Errorf("english uk row = %q", line)
	}
}

func TestHistoryTable(t *testing.T) {
	out := historyTable([]history.Entry{
		{Time: time.Now(), Direction: "outgoing", SourceLanguage: "en-US", TargetLanguage: "hi-IN",
			Original: "hello", Translated: "namaste", Latency: 1420 * time.Millisecond},
		{Time: time.Now(), Direction: "incoming", Original: "kaise ho", Error: "synthesis returned no audio"},
	})

	if line := lineWith(t, out, "hello"); !strings.Contains(line, "namaste") || !strings.Contains(line, "1.42s") {
		t.Errorf("outgoing row = %q", line)
	}
	if line := lineWith(t, out, "kaise ho"); !strings.Contains(line, "error: synthesis") {
		t.Errorf("failed row = %q", line)
	}
}

func TestModelDirs(t *testing.T) {
	dirs, err := modelDirs([]string{"Hindi", "fr-FR"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[0] != "vosk-model-hi-0.22" || dirs[1] != "vosk-model-fr-0.22" {
		t.Errorf("dirs = %v", dirs)
	}

	if dirs, err := modelDirs(nil); err != nil || len(dirs) != 0 {
		t.Errorf("no args = %v, %v", dirs, err)
	}
	if _, err := modelDirs([]string{"Tamil"}); !errors.Is(err, vosk.ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
	if _, err := modelDirs([]string{"Klingon"}); !errors.Is(err, languages.ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestNewSink(t *testing.T) {
	c := &config.Config{Recording: config.RecordingConfig{Disabled: true}}
	if s, err := newSink(context.Background(), c); err != nil || s != nil {
		t.Fatalf("disabled = %v, %v", s, err)
	}

	c.Recording = config.RecordingConfig{Dir: t.TempDir(), Format: "opus"}
	s, err := newSink(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*recording.DirSink); !ok {
		t.Errorf("sink = %T, want *recording.DirSink", s)
	}

	c.Recording.Format = "mp3"
	if _, err := newSink(context.Background(), c); !errors.Is(err, recording.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}
