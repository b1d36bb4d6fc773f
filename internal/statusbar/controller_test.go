package statusbar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lyricsync/internal/engine"
)

func newTestController(t *testing.T, pid int) (*Controller, string, *[]int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lyrics")
	var signals []int
	c := NewController(path,
		WithPIDFinder(func() (int, error) {
			if pid <= 0 {
				return -1, errors.New("not running")
			}
			return pid, nil
		}),
		WithSignaler(func(p int) error {
			signals = append(signals, p)
			return nil
		}),
	)
	c.refreshPID()
	return c, path, &signals
}

func readStatus(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read status file: %v", err)
	}
	return string(data)
}

func TestPublishWritesOnChange(t *testing.T) {
	c, path, signals := newTestController(t, 4242)

	active := engine.Snapshot{ActivePhrase: &engine.ActivePhrase{Index: 0, Text: "夜に駆ける"}}
	c.Publish(active)
	c.Publish(active)
	if got := readStatus(t, path); got != "夜に駆ける\n" {
		t.Errorf("status = %q", got)
	}
	if len(*signals) != 1 || (*signals)[0] != 4242 {
		t.Errorf("Expected one signal to 4242, got %v", *signals)
	}

	c.Publish(engine.Snapshot{Ready: true, Placeholder: engine.PlaceholderGap})
	if got := readStatus(t, path); got != engine.PlaceholderGap+"\n" {
		t.Errorf("status = %q, want gap placeholder", got)
	}
	if len(*signals) != 2 {
		t.Errorf("Expected a second signal, got %v", *signals)
	}
}

func TestPublishWithoutI3blocks(t *testing.T) {
	c, path, signals := newTestController(t, -1)
	c.Publish(engine.Snapshot{ActivePhrase: &engine.ActivePhrase{Text: "la"}})
	if got := readStatus(t, path); got != "la\n" {
		t.Errorf("status = %q", got)
	}
	if len(*signals) != 0 || c.GetPID() != -1 {
		t.Errorf("no signal expected without i3blocks, got %v", *signals)
	}
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1234\n", 1234, false},
		{"1234\n5678\n", 1234, false},
		{"", -1, true},
		{"abc", -1, true},
	}
	for _, tt := range tests {
		got, err := parsePID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parsePID(%q) = %d, %v", tt.in, got, err)
		}
	}
}
