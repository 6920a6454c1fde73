// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/device/devicetest"
	"github.com/nextcloud/go_voice_bridge/internal/textfilter"
	"github.com/nextcloud/go_voice_bridge/internal/transcript"
)

type fakeEngine struct {
	mu        sync.Mutex
	failFirst int
	opens     int
	configs   []StreamConfig
	streams   []*fakeStream
	results   chan Result
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{results: make(chan Result, 16)}
}

func (e *fakeEngine) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opens++
	e.configs = append(e.configs, cfg)
	if e.opens <= e.failFirst {
		return nil, errors.New("service unavailable")
	}
	s := &fakeStream{ctx: ctx, results: e.results}
	e.streams = append(e.streams, s)
	return s, nil
}

func (e *fakeEngine) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens
}

type fakeStream struct {
	ctx     context.Context
	results chan Result

	mu     sync.Mutex
	sizes  []int
	closed bool
}

func (s *fakeStream) Send(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, len(pcm))
	return nil
}

func (s *fakeStream) Recv() (Result, error) {
	select {
	case r := <-s.results:
		return r, nil
	case <-s.ctx.Done():
		return Result{}, s.ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func bindCapture(t *testing.T, rate int) (*device.Binding, *devicetest.Device) {
	t.Helper()
	dev := &devicetest.Device{DeviceName: "capture", Rate: rate, ReadDelay: 5 * time.Millisecond}
	b, err := device.NewRegistry(&devicetest.Host{}).BindDevice(device.RoleMic, dev)
	if err != nil {
		t.Fatal(err)
	}
	return b, dev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runSession(s *Session) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func TestSessionQueuesFilteredFinals(t *testing.T) {
	engine := newFakeEngine()
	capture, dev := bindCapture(t, 48000)
	queue := transcript.NewQueue("outgoing", 8)

	var mu sync.Mutex
	var levels []string
	var statuses []string
	s := NewSession(
		Config{Direction: "outgoing", LevelSource: "mic", Speaker: "You", Source: transcript.SourceLocal,
			Stream: StreamConfig{SampleRate: 16000, LanguageCode: "en-US", Model: "default", Punctuation: true}},
		engine, capture, queue,
		textfilter.Filter{Dedup: &textfilter.DedupState{}},
		Callbacks{
			OnLevel: func(src string, _ float64) {
				mu.Lock()
				levels = append(levels, src)
				mu.Unlock()
			},
			OnStatus: func(msg string, _ bool) {
				mu.Lock()
				statuses = append(statuses, msg)
				mu.Unlock()
			},
		},
	)

	engine.results <- Result{Transcript: "hel", Final: false}
	engine.results <- Result{Transcript: "Hello there", Final: true}
	engine.results <- Result{Transcript: "hello there!", Final: true}
	engine.results <- Result{Transcript: "   ", Final: true}
	engine.results <- Result{Transcript: "How are you", Final: true}

	cancel, done := runSession(s)

	for _, want := range []string{"Hello there", "How are you"} {
		u, ok := queue.Pop(context.Background(), time.Second)
		if !ok || u.Text != want {
			t.Fatalf("Pop = %q, %v; want %q", u.Text, ok, want)
		}
		if u.Source != transcript.SourceLocal || u.ID == "" {
			t.Errorf("utterance = %+v", u)
		}
	}
	if u, ok := queue.Pop(context.Background(), 50*time.Millisecond); ok {
		t.Fatalf("unexpected utterance %q", u.Text)
	}

	waitFor(t, "audio sent", func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.streams) > 0 && len(engine.streams[0].Sizes()) > 0
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}

	if !dev.Streams()[0].Closed() {
		t.Error("capture stream left open")
	}
	engine.mu.Lock()
	stream := engine.streams[0]
	cfg := engine.configs[0]
	engine.mu.Unlock()
	if !stream.closed {
		t.Error("recognition stream not closed")
	}
	if cfg.LanguageCode != "en-US" || cfg.SampleRate != 16000 {
		t.Errorf("stream config = %+v", cfg)
	}
	for _, n := range stream.Sizes() {
		if n != 3200 {
			t.Fatalf("sent %d bytes, want 100ms at 16kHz (3200)", n)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 || levels[0] != "mic" {
		t.Errorf("levels = %v", levels)
	}
	if len(statuses) != 2 || statuses[0] != "You: Hello there" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestSessionIncomingDropsEcho(t *testing.T) {
	engine := newFakeEngine()
	capture, _ := bindCapture(t, 16000)
	queue := transcript.NewQueue("incoming", 8)
	echo := &textfilter.EchoState{}
	echo.Record("good morning everyone", time.Now())

	s := NewSession(
		Config{Direction: "incoming", LevelSource: "meeting", Speaker: "Them", Source: transcript.SourceRemote,
			Stream: StreamConfig{SampleRate: 16000, LanguageCode: "hi-IN"}},
		engine, capture, queue,
		textfilter.Filter{Dedup: &textfilter.DedupState{}, Echo: echo},
		Callbacks{},
	)

	engine.results <- Result{Transcript: "Good morning everyone.", Final: true}
	engine.results <- Result{Transcript: "Can you hear me", Final: true}

	cancel, done := runSession(s)
	defer func() {
		cancel()
		<-done
	}()

	u, ok := queue.Pop(context.Background(), time.Second)
	if !ok || u.Text != "Can you hear me" || u.Source != transcript.SourceRemote {
		t.Fatalf("Pop = %+v, %v", u, ok)
	}
}

func TestSessionRestartsAfterOpenFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.failFirst = 1
	capture, dev := bindCapture(t, 16000)

	s := NewSession(
		Config{Direction: "outgoing", RestartDelay: 20 * time.Millisecond},
		engine, capture, transcript.NewQueue("outgoing", 1),
		textfilter.Filter{Dedup: &textfilter.DedupState{}},
		Callbacks{},
	)

	cancel, done := runSession(s)
	waitFor(t, "second open", func() bool { return engine.Opens() >= 2 })
	cancel()
	<-done

	streams := dev.Streams()
	if len(streams) < 2 {
		t.Fatalf("device opened %d times, want reopen on restart", len(streams))
	}
	for i, st := range streams {
		if !st.Closed() {
			t.Errorf("device stream %d left open", i)
		}
	}
}

type failingCapture struct {
	mu    sync.Mutex
	opens int
}

func (f *failingCapture) Open(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return nil
}

func (f *failingCapture) Read(int) ([]byte, error) { return nil, errors.New("device unplugged") }
func (f *failingCapture) Close()                   {}
func (f *failingCapture) NativeSampleRate() int    { return 16000 }

func TestSessionRestartsAfterDeviceError(t *testing.T) {
	engine := newFakeEngine()
	capture := &failingCapture{}

	s := NewSession(
		Config{Direction: "incoming", RestartDelay: 10 * time.Millisecond},
		engine, capture, transcript.NewQueue("incoming", 1),
		textfilter.Filter{Dedup: &textfilter.DedupState{}},
		Callbacks{},
	)

	cancel, done := runSession(s)
	waitFor(t, "restart after read error", func() bool { return engine.Opens() >= 3 })
	cancel()
	<-done

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if capture.opens < 3 {
		t.Errorf("capture opened %d times", capture.opens)
	}
}

func TestSessionStopsReadingAfterCancel(t *testing.T) {
	engine := newFakeEngine()
	capture, dev := bindCapture(t, 16000)

	s := NewSession(
		Config{Direction: "outgoing"},
		engine, capture, transcript.NewQueue("outgoing", 1),
		textfilter.Filter{Dedup: &textfilter.DedupState{}},
		Callbacks{},
	)

	cancel, done := runSession(s)
	waitFor(t, "reads", func() bool {
		streams := dev.Streams()
		return len(streams) > 0 && streams[0].Reads() > 2
	})
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("session did not stop within one polling interval")
	}

	st := dev.Streams()[0]
	reads := st.Reads()
	time.Sleep(30 * time.Millisecond)
	if st.Reads() != reads {
		t.Error("device still read after stop")
	}
	if !st.Closed() {
		t.Error("capture stream left open")
	}
}
