// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/device/devicetest"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/recognition"
	"github.com/nextcloud/go_voice_bridge/internal/service"
	"github.com/nextcloud/go_voice_bridge/internal/synthesis"
)

type idleEngine struct{}

func (idleEngine) Open(ctx context.Context, _ recognition.StreamConfig) (recognition.Stream, error) {
	return idleStream{ctx}, nil
}

type idleStream struct{ ctx context.Context }

func (idleStream) Send([]byte) error { return nil }
func (s idleStream) Recv() (recognition.Result, error) {
	<-s.ctx.Done()
	return recognition.Result{}, s.ctx.Err()
}
func (idleStream) Close() error { return nil }

type noopTranslator struct{}

func (noopTranslator) Translate(_ context.Context, text, _, _ string) string { return text }

type noopSynth struct{}

func (noopSynth) Synthesize(context.Context, synthesis.Request) (*synthesis.Result, error) {
	return nil, synthesis.ErrNoAudio
}

type fakeHistory struct {
	entries []history.Entry
	limit   int
	err     error
}

func (f *fakeHistory) Recent(n int) ([]history.Entry, error) {
	f.limit = n
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[:min(n, len(f.entries))], nil
}

const token = "s3cret"

func newServer(t *testing.T, hist HistoryReader) *httptest.Server {
	t.Helper()
	host := &devicetest.Host{Devs: map[string]*devicetest.Device{
		"USB Mic":      {DeviceName: "USB Mic", Rate: 48000, ReadDelay: 5 * time.Millisecond},
		"CABLE Input":  {DeviceName: "CABLE Input", Rate: 44100},
		"CABLE Output": {DeviceName: "CABLE Output", Rate: 16000, ReadDelay: 5 * time.Millisecond},
		"Speakers":     {DeviceName: "Speakers", Rate: 48000},
	}}
	orch := service.NewOrchestrator(service.Deps{
		Registry:    device.NewRegistry(host),
		Engine:      idleEngine{},
		Translator:  noopTranslator{},
		Synthesizer: noopSynth{},
	})
	t.Cleanup(orch.Cleanup)

	mux := http.NewServeMux()
	NewHandler(orch, hist).RegisterRoutes(mux)
	srv := httptest.NewServer(AuthMiddleware(token, map[string]bool{"/heartbeat": true}, mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestAuth(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/heartbeat")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("heartbeat = %d", resp.StatusCode)
	}

	for _, header := range []string{"", "Bearer wrong", "Basic " + token} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Authorization %q = %d", header, resp.StatusCode)
		}
	}

	if code := do(t, srv, http.MethodGet, "/api/v1/status", "", nil); code != http.StatusOK {
		t.Errorf("authorized status = %d", code)
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	h := AuthMiddleware("", nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestLanguagesAndDevices(t *testing.T) {
	srv := newServer(t, nil)

	var langs LanguagesResponse
	if code := do(t, srv, http.MethodGet, "/api/v1/languages", "", &langs); code != http.StatusOK || len(langs.Languages) != 13 {
		t.Fatalf("languages = %d, %d entries", code, len(langs.Languages))
	}

	var devs DevicesResponse
	if code := do(t, srv, http.MethodGet, "/api/v1/devices", "", &devs); code != http.StatusOK || len(devs.Devices) != 4 {
		t.Fatalf("devices = %d, %+v", code, devs)
	}
}

func TestBindDevice(t *testing.T) {
	srv := newServer(t, nil)

	var bound BindDeviceResponse
	code := do(t, srv, http.MethodPut, "/api/v1/devices/virtual-out", `{"device":"CABLE Input"}`, &bound)
	if code != http.StatusOK || bound.Role != "virtual_out" || bound.SampleRate != 44100 {
		t.Fatalf("bind = %d %+v", code, bound)
	}

	tests := []struct {
		path, body string
		want       int
	}{
		{"/api/v1/devices/headset", `{"device":"USB Mic"}`, http.StatusBadRequest},
		{"/api/v1/devices/mic", `{"device":"Nope"}`, http.StatusNotFound},
		{"/api/v1/devices/mic", `{}`, http.StatusBadRequest},
		{"/api/v1/devices/mic", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		var e ErrorResponse
		if code := do(t, srv, http.MethodPut, tt.path, tt.body, &e); code != tt.want || e.Error == "" {
			t.Errorf("PUT %s %s = %d %+v, want %d", tt.path, tt.body, code, e, tt.want)
		}
	}

	var st service.Status
	do(t, srv, http.MethodGet, "/api/v1/status", "", &st)
	if st.Devices["virtual_out"] != "CABLE Input" {
		t.Errorf("bound devices = %v", st.Devices)
	}
}

func TestDeviceTestEndpoint(t *testing.T) {
	srv := newServer(t, nil)
	do(t, srv, http.MethodPut, "/api/v1/devices/speaker", `{"device":"Speakers"}`, nil)

	var res service.DeviceTestResult
	if code := do(t, srv, http.MethodPost, "/api/v1/devices/speaker/test", "", &res); code != http.StatusOK || res.Kind != "tone" {
		t.Fatalf("test = %d %+v", code, res)
	}
	if code := do(t, srv, http.MethodPost, "/api/v1/devices/mic/test", "", nil); code != http.StatusConflict {
		t.Errorf("unbound test = %d", code)
	}
}

func TestStartStop(t *testing.T) {
	srv := newServer(t, nil)
	start := `{"sourceLanguage":"English (US)","targetLanguage":"Spanish (Spain)"}`

	var e ErrorResponse
	if code := do(t, srv, http.MethodPost, "/api/v1/translation/start", start, &e); code != http.StatusConflict {
		t.Fatalf("start without devices = %d %+v", code, e)
	}

	for role, dev := range map[string]string{
		"mic": "USB Mic", "virtual_out": "CABLE Input", "virtual_in": "CABLE Output", "speaker": "Speakers",
	} {
		if code := do(t, srv, http.MethodPut, "/api/v1/devices/"+role, `{"device":"`+dev+`"}`, nil); code != http.StatusOK {
			t.Fatalf("bind %s = %d", role, code)
		}
	}

	if code := do(t, srv, http.MethodPost, "/api/v1/translation/start", `{"sourceLanguage":"Elvish","targetLanguage":"Spanish (Spain)"}`, nil); code != http.StatusBadRequest {
		t.Errorf("unsupported language = %d", code)
	}

	var st service.Status
	if code := do(t, srv, http.MethodPost, "/api/v1/translation/start", start, &st); code != http.StatusOK || !st.Running {
		t.Fatalf("start = %d %+v", code, st)
	}
	if st.Session == nil || st.Session.VoiceToRemote == "" {
		t.Errorf("session = %+v", st.Session)
	}
	if code := do(t, srv, http.MethodPost, "/api/v1/translation/start", start, nil); code != http.StatusConflict {
		t.Errorf("second start = %d", code)
	}

	if code := do(t, srv, http.MethodPost, "/api/v1/translation/stop", "", nil); code != http.StatusOK {
		t.Errorf("stop = %d", code)
	}
	do(t, srv, http.MethodGet, "/api/v1/status", "", &st)
	if st.Running {
		t.Error("still running after stop")
	}
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{entries: []history.Entry{{Original: "b"}, {Original: "a"}}}
	srv := newServer(t, hist)

	var resp HistoryResponse
	if code := do(t, srv, http.MethodGet, "/api/v1/history?limit=1", "", &resp); code != http.StatusOK || len(resp.Entries) != 1 {
		t.Fatalf("history = %d %+v", code, resp)
	}
	do(t, srv, http.MethodGet, "/api/v1/history", "", &resp)
	if hist.limit != 50 || len(resp.Entries) != 2 {
		t.Errorf("default limit = %d, entries = %d", hist.limit, len(resp.Entries))
	}
	do(t, srv, http.MethodGet, "/api/v1/history?limit=99999", "", &resp)
	if hist.limit != 1000 {
		t.Errorf("limit not capped: %d", hist.limit)
	}
	if code := do(t, srv, http.MethodGet, "/api/v1/history?limit=zero", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", code)
	}

	hist.err = errors.New("disk gone")
	if code := do(t, srv, http.MethodGet, "/api/v1/history", "", nil); code != http.StatusInternalServerError {
		t.Errorf("failing store = %d", code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := newServer(t, nil)
	if code := do(t, srv, http.MethodGet, "/api/v1/history", "", nil); code != http.StatusNotFound {
		t.Errorf("history disabled = %d", code)
	}
}
