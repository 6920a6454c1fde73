// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFinal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"text": "hello there"}`, "hello there", true},
		{`{"text": ""}`, "", false},
		{`{"text": "the"}`, "", false},
		{`not json`, "", false},
	}
	for _, tt := range tests {
		got, ok := parseFinal(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseFinal(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestModelAvailability(t *testing.T) {
	dir := t.TempDir()
	mm := NewModelManager(dir)

	if err := os.MkdirAll(filepath.Join(dir, "vosk-model-hi-0.22"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := mm.ListAvailableModels(); len(got) != 1 || got[0] != "hi-IN" {
		t.Errorf("available = %v", got)
	}
	if mm.IsModelAvailable("xx-XX") {
		t.Error("unknown language reported available")
	}

	if _, err := mm.GetModel("fr-FR"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("missing model: %v", err)
	}
	if _, err := mm.GetModel("xx-XX"); !errors.Is(err, ErrNoModel) {
		t.Errorf("unknown language: %v", err)
	}
}

func TestDownloadModels(t *testing.T) {
	files := map[string]string{
		"vosk-model-hi-0.22/am/final.mdl": "model-bytes",
		"vosk-model-hi-0.22/conf/mfcc":    "conf",
	}
	var downloads int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models/org/repo/tree/rev/vosk-model-hi-0.22", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]hfEntry{
			{Type: "directory", Path: "vosk-model-hi-0.22/am"},
			{Type: "file", Path: "vosk-model-hi-0.22/conf/mfcc", Size: 4},
		})
	})
	mux.HandleFunc("GET /api/models/org/repo/tree/rev/vosk-model-hi-0.22/am", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]hfEntry{
			{Type: "file", Path: "vosk-model-hi-0.22/am/final.mdl", Size: 11},
		})
	})
	mux.HandleFunc("GET /org/repo/resolve/rev/", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/org/repo/resolve/rev/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDownloader()
	d.APIBase = srv.URL + "/api/models"
	d.ResolveBase = srv.URL
	d.Repo = "org/repo"
	d.Revision = "rev"
	var last [2]int
	d.Progress = func(done, total int) { last = [2]int{done, total} }

	dir := t.TempDir()
	if err := d.DownloadModels(context.Background(), dir, "vosk-model-hi-0.22"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "vosk-model-hi-0.22/am/final.mdl"))
	if err != nil || string(got) != "model-bytes" {
		t.Fatalf("downloaded %q, %v", got, err)
	}
	if last != [2]int{2, 2} {
		t.Errorf("progress = %v", last)
	}

	// Second run finds everything in place.
	if err := d.DownloadModels(context.Background(), dir, "vosk-model-hi-0.22"); err != nil {
		t.Fatal(err)
	}
	if downloads != 2 {
		t.Errorf("downloaded %d files, want 2", downloads)
	}
	if _, err := os.Stat(filepath.Join(dir, "vosk-model-hi-0.22/conf/mfcc.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDownloader()
	d.APIBase = srv.URL
	if err := d.DownloadModels(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}
