// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/synthesis"
	"github.com/nextcloud/go_voice_bridge/internal/textfilter"
	"github.com/nextcloud/go_voice_bridge/internal/transcript"
)

// events is a shared, ordered log of what the fakes saw.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.log = append(e.log, s)
	e.mu.Unlock()
}

func (e *events) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeTranslator struct {
	ev *events
}

func (f *fakeTranslator) Translate(_ context.Context, text, from, to string) string {
	f.ev.add("translate:" + text)
	return strings.ToUpper(text)
}

type fakeSynth struct {
	ev       *events
	delay    time.Duration
	duration time.Duration
	err      error

	mu   sync.Mutex
	reqs []synthesis.Request
}

func (f *fakeSynth) Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	f.ev.add("synth-start:" + req.Text)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.ev.add("synth-end:" + req.Text)
	if f.err != nil {
		return nil, f.err
	}
	return &synthesis.Result{Chunks: 1, Duration: f.duration, Path: "/rec/" + req.Text + ".wav"}, nil
}

type fakeHistory struct {
	ev      *events
	mu      sync.Mutex
	entries []history.Entry
}

func (h *fakeHistory) Append(e history.Entry) (history.Entry, error) {
	h.ev.add("history:" + e.Original)
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
	return e, nil
}

func (h *fakeHistory) snapshot() []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Entry(nil), h.entries...)
}

type statusLog struct {
	mu   sync.Mutex
	msgs []string
	errs int
}

func (s *statusLog) add(msg string, isErr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if isErr {
		s.errs++
	}
}

func lang(t *testing.T, key string) languages.Language {
	t.Helper()
	l, err := languages.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	return l
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

func start(c *Consumer) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func TestConsumerProcessesInOrder(t *testing.T) {
	ev := &events{}
	queue := transcript.NewQueue("outgoing", 8)
	synth := &fakeSynth{ev: ev, delay: 30 * time.Millisecond}
	hist := &fakeHistory{ev: ev}

	c := NewConsumer(
		Config{Direction: "incoming", From: lang(t, "Hindi"), To: lang(t, "English (US)"), VoiceID: "en-US-natalie",
			PollInterval: 10 * time.Millisecond},
		queue, &fakeTranslator{ev: ev}, synth, nil, hist, nil,
	)

	now := time.Now()
	queue.Push(transcript.NewUtterance("first", transcript.SourceRemote, now))
	queue.Push(transcript.NewUtterance("second", transcript.SourceRemote, now))

	cancel, done := start(c)
	waitFor(t, "two history entries", func() bool { return len(hist.snapshot()) == 2 })
	cancel()
	<-done

	want := []string{
		"translate:first", "synth-start:FIRST", "synth-end:FIRST", "history:first",
		"translate:second", "synth-start:SECOND", "synth-end:SECOND", "history:second",
	}
	got := ev.snapshot()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}

	e := hist.snapshot()[0]
	if e.Translated != "FIRST" || e.RecordingPath != "/rec/FIRST.wav" || e.SourceLanguage != "hi-IN" || e.TargetLanguage != "en-US" {
		t.Errorf("entry = %+v", e)
	}
	if synth.reqs[0].VoiceID != "en-US-natalie" || synth.reqs[0].Direction != "incoming" || synth.reqs[0].Language != "en-US" {
		t.Errorf("request = %+v", synth.reqs[0])
	}
}

func TestConsumerRecordsEchoBeforeSynthesis(t *testing.T) {
	ev := &events{}
	echo := &textfilter.EchoState{}
	queue := transcript.NewQueue("outgoing", 1)

	var sawEcho bool
	synth := &checkingSynth{check: func(req synthesis.Request) {
		sawEcho = echo.IsEcho(req.Text, time.Now())
	}}

	c := NewConsumer(
		Config{Direction: "outgoing", From: lang(t, "English (US)"), To: lang(t, "Hindi"), Echo: echo,
			PollInterval: 10 * time.Millisecond},
		queue, &fakeTranslator{ev: ev}, synth, nil, nil, nil,
	)
	queue.Push(transcript.NewUtterance("good morning", transcript.SourceLocal, time.Now()))

	cancel, done := start(c)
	waitFor(t, "synthesis", func() bool { return synth.calls() == 1 })
	cancel()
	<-done

	if !sawEcho {
		t.Error("echo state not updated before synthesis")
	}
}

type checkingSynth struct {
	check func(req synthesis.Request)
	mu    sync.Mutex
	n     int
}

func (s *checkingSynth) Synthesize(_ context.Context, req synthesis.Request) (*synthesis.Result, error) {
	s.check(req)
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return &synthesis.Result{Chunks: 1}, nil
}

func (s *checkingSynth) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func TestConsumerPacesOutgoing(t *testing.T) {
	ev := &events{}
	queue := transcript.NewQueue("outgoing", 1)
	synth := &fakeSynth{ev: ev, duration: 10 * time.Second}

	var mu sync.Mutex
	var waits []time.Duration
	c := NewConsumer(
		Config{Direction: "outgoing", From: lang(t, "English (US)"), To: lang(t, "Hindi"), Pace: true,
			PollInterval: 10 * time.Millisecond},
		queue, &fakeTranslator{ev: ev}, synth, nil, nil, nil,
	)
	c.wait = func(_ context.Context, d time.Duration) {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
	}
	queue.Push(transcript.NewUtterance("hello", transcript.SourceLocal, time.Now()))

	cancel, done := start(c)
	waitFor(t, "pacing", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(waits) == 1
	})
	cancel()
	<-done

	if waits[0] != 3*time.Second {
		t.Errorf("pacing = %v, want cap of 3s", waits[0])
	}
}

func TestPacingDelay(t *testing.T) {
	tests := []struct{ in, want time.Duration }{
		{0, 300 * time.Millisecond},
		{time.Second, 1300 * time.Millisecond},
		{2700 * time.Millisecond, 3 * time.Second},
		{time.Minute, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := PacingDelay(tt.in); got != tt.want {
			t.Errorf("PacingDelay(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConsumerReportsFailureAndContinues(t *testing.T) {
	ev := &events{}
	queue := transcript.NewQueue("incoming", 4)
	synth := &fakeSynth{ev: ev, err: synthesis.ErrNoAudio}
	hist := &fakeHistory{ev: ev}
	status := &statusLog{}

	c := NewConsumer(
		Config{Direction: "incoming", From: lang(t, "Hindi"), To: lang(t, "English (US)"), TranslatedLabel: "For you",
			PollInterval: 10 * time.Millisecond},
		queue, &fakeTranslator{ev: ev}, synth, nil, hist, status.add,
	)
	queue.Push(transcript.NewUtterance("one", transcript.SourceRemote, time.Now()))
	queue.Push(transcript.NewUtterance("two", transcript.SourceRemote, time.Now()))

	cancel, done := start(c)
	waitFor(t, "both attempts", func() bool { return len(hist.snapshot()) == 2 })
	cancel()
	<-done

	for _, e := range hist.snapshot() {
		if !strings.Contains(e.Error, "no audio") {
			t.Errorf("entry error = %q", e.Error)
		}
	}
	status.mu.Lock()
	defer status.mu.Unlock()
	if status.errs != 2 {
		t.Errorf("error statuses = %d (%v)", status.errs, status.msgs)
	}
	if status.msgs[0] != "For you (English (US)): ONE" {
		t.Errorf("first status = %q", status.msgs[0])
	}
}

func TestConsumerStopsDuringSynthesis(t *testing.T) {
	ev := &events{}
	queue := transcript.NewQueue("outgoing", 1)
	synth := &fakeSynth{ev: ev, delay: time.Minute}
	hist := &fakeHistory{ev: ev}
	status := &statusLog{}

	c := NewConsumer(
		Config{Direction: "outgoing", From: lang(t, "English (US)"), To: lang(t, "Hindi"), PollInterval: 10 * time.Millisecond},
		queue, &fakeTranslator{ev: ev}, synth, nil, hist, status.add,
	)
	queue.Push(transcript.NewUtterance("long one", transcript.SourceLocal, time.Now()))

	cancel, done := start(c)
	waitFor(t, "synthesis start", func() bool { return len(ev.snapshot()) >= 2 })
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	if len(hist.snapshot()) != 0 {
		t.Error("interrupted utterance logged as a failure")
	}
	status.mu.Lock()
	defer status.mu.Unlock()
	if status.errs != 0 {
		t.Errorf("stop reported as error: %v", status.msgs)
	}
}

func TestConsumerIdleStop(t *testing.T) {
	c := NewConsumer(Config{Direction: "outgoing"}, transcript.NewQueue("outgoing", 1),
		&fakeTranslator{ev: &events{}}, &fakeSynth{ev: &events{}}, nil, nil, nil)

	cancel, done := start(c)
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("idle consumer did not stop within one poll interval")
	}
}
