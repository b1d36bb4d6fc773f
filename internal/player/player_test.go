package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"lyricsync/internal/engine"
	"lyricsync/internal/timing"
)

// fakeRunner 按参数返回预设输出
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.outputs[key], nil
}

func (f *fakeRunner) set(key, out string) {
	f.mu.Lock()
	f.outputs[key] = out
	delete(f.errs, key)
	f.mu.Unlock()
}

func (f *fakeRunner) fail(key string, err error) {
	f.mu.Lock()
	f.errs[key] = err
	f.mu.Unlock()
}

func (f *fakeRunner) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

const songKey = "metadata --format {{artist}} - {{title}}"

func TestPlayerctlCommands(t *testing.T) {
	r := newFakeRunner()
	p := New(r)

	if err := p.RequestPlay(); err != nil {
		t.Fatal(err)
	}
	if err := p.RequestSeek(61500); err != nil {
		t.Fatal(err)
	}
	if err := p.RequestSeek(-10); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"play", "position 61.500", "position 0.000"} {
		if !r.called(want) {
			t.Errorf("Expected playerctl %q, got %v", want, r.calls)
		}
	}
}

func TestPlayerctlQueries(t *testing.T) {
	r := newFakeRunner()
	r.set("position", "12.3456")
	r.set("status", "Paused")
	r.set(songKey, "Aimer - Ref:rain")
	r.set("metadata mpris:length", "215000000")
	p := New(r)

	if pos, err := p.Position(); err != nil || pos != 12346 {
		t.Errorf("Position() = %d, %v, want 12346", pos, err)
	}
	if s, err := p.Status(); err != nil || s != StatusPaused {
		t.Errorf("Status() = %s, %v", s, err)
	}
	if song, err := p.CurrentSong(); err != nil || song != "Aimer - Ref:rain" {
		t.Errorf("CurrentSong() = %q, %v", song, err)
	}
	if d, err := p.Duration(); err != nil || d != 215000 {
		t.Errorf("Duration() = %d, %v, want 215000", d, err)
	}

	r.set("status", "Buffering")
	if _, err := p.Status(); err == nil {
		t.Errorf("Expected error for unknown status")
	}
	r.set("position", "abc")
	if _, err := p.Position(); err == nil {
		t.Errorf("Expected error for invalid position")
	}
}

type recordingDispatcher struct {
	events []engine.Event
}

func (d *recordingDispatcher) Dispatch(ev engine.Event) error {
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) kinds() []engine.Kind {
	kinds := make([]engine.Kind, len(d.events))
	for i, ev := range d.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (d *recordingDispatcher) reset() { d.events = nil }

type mapLookup map[string]*timing.SongMetadata

func (m mapLookup) Lookup(_ context.Context, song string) (*timing.SongMetadata, error) {
	if meta, ok := m[song]; ok {
		return meta, nil
	}
	return nil, errors.New("not found")
}

func equalKinds(a, b []engine.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWatcherTick(t *testing.T) {
	r := newFakeRunner()
	r.set("status", "Playing")
	r.set(songKey, "Aimer - Ref:rain")
	r.set("position", "1.5")
	r.set("metadata mpris:length", "200000000")

	meta := &timing.SongMetadata{Title: "Ref:rain", Phrases: []timing.PhraseSource{
		{Chars: []timing.CharSource{{Text: "あ", StartTime: 1000}}},
	}}
	d := &recordingDispatcher{}
	w := NewWatcher(New(r), mapLookup{"Aimer - Ref:rain": meta}, d, 0)

	if err := w.tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []engine.Kind{engine.AppReady, engine.MediaReady, engine.Play, engine.TimerReady, engine.Position}
	if !equalKinds(d.kinds(), want) {
		t.Fatalf("first tick kinds = %v, want %v", d.kinds(), want)
	}
	got := d.events[1].Metadata
	if got.Duration != 200000 {
		t.Errorf("duration should come from the player, got %d", got.Duration)
	}
	if meta.Duration != 0 {
		t.Errorf("lookup result must not be modified")
	}
	if d.events[4].Position != 1500 {
		t.Errorf("position = %d, want 1500", d.events[4].Position)
	}

	t.Run("SteadyState", func(t *testing.T) {
		d.reset()
		r.set("position", "1.55")
		w.tick(context.Background())
		if !equalKinds(d.kinds(), []engine.Kind{engine.Position}) {
			t.Errorf("steady tick kinds = %v", d.kinds())
		}
	})

	t.Run("PauseAndSongChange", func(t *testing.T) {
		d.reset()
		r.set("status", "Paused")
		r.set(songKey, "Unknown - Track")
		w.tick(context.Background())
		want := []engine.Kind{engine.MediaReady, engine.Pause, engine.Position}
		if !equalKinds(d.kinds(), want) {
			t.Fatalf("kinds = %v, want %v", d.kinds(), want)
		}
		m := d.events[0].Metadata
		if m.Title != "Track" || m.Artist != "Unknown" || len(m.Phrases) != 0 {
			t.Errorf("fallback metadata = %+v", m)
		}
	})

	t.Run("PlayerLost", func(t *testing.T) {
		d.reset()
		r.fail("status", ErrNoPlayer)
		w.tick(context.Background())
		w.tick(context.Background())
		if !equalKinds(d.kinds(), []engine.Kind{engine.Stop}) {
			t.Errorf("kinds = %v, want a single stop", d.kinds())
		}

		d.reset()
		r.set("status", "Playing")
		w.tick(context.Background())
		if len(d.events) == 0 || d.events[0].Kind != engine.AppReady {
			t.Errorf("Expected AppReady when the player returns, got %v", d.kinds())
		}
	})
}

func TestSplitSong(t *testing.T) {
	tests := []struct {
		in, artist, title string
	}{
		{"Aimer - Ref:rain", "Aimer", "Ref:rain"},
		{"A - B - C", "A", "B - C"},
		{"Instrumental", "", "Instrumental"},
	}
	for _, tt := range tests {
		a, ti := splitSong(tt.in)
		if a != tt.artist || ti != tt.title {
			t.Errorf("splitSong(%q) = %q, %q", tt.in, a, ti)
		}
	}
}
