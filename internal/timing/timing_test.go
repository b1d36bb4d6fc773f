package timing

import (
	"testing"
)

func sampleMetadata() *SongMetadata {
	return &SongMetadata{
		Title:  "Street Light",
		Artist: "Kaga",
		Phrases: []PhraseSource{
			{Chars: []CharSource{
				{Text: "あ", StartTime: 1000, EndTime: 1200},
				{Text: "い", StartTime: 1200, EndTime: 1500},
			}},
			{Chars: nil},
			{Chars: []CharSource{
				{Text: "う", StartTime: 2000},
				{Text: "え", StartTime: 2500, EndTime: 2400},
				{Text: "お", StartTime: 3000, EndTime: 3300},
			}},
		},
		Pitch: []PitchSource{{StartTime: 1000, Hz: 440}},
	}
}

func TestBuildDefaultsEndTime(t *testing.T) {
	idx := Build(sampleMetadata())

	if idx.Len() != 2 {
		t.Fatalf("Expected 2 phrases after dropping empty one, got %d", idx.Len())
	}
	for _, u := range idx.Units {
		if u.EndTime <= u.StartTime {
			t.Errorf("unit %q: endTime %d <= startTime %d", u.Text, u.EndTime, u.StartTime)
		}
	}

	p := idx.Phrases[1]
	if p.Index != 1 {
		t.Errorf("Expected phrase index 1, got %d", p.Index)
	}
	if got := p.Units[0].EndTime; got != 2500 {
		t.Errorf("omitted endTime should default to start+500, got %d", got)
	}
	if got := p.Units[1].EndTime; got != 3000 {
		t.Errorf("endTime before startTime should default to start+500, got %d", got)
	}
	if p.Text != "うえお" {
		t.Errorf("Expected phrase text 'うえお', got '%s'", p.Text)
	}
	if p.StartTime() != 2000 || p.EndTime() != 3300 {
		t.Errorf("phrase bounds = [%d, %d), want [2000, 3300)", p.StartTime(), p.EndTime())
	}
	if idx.Duration != 3300 {
		t.Errorf("Expected derived duration 3300, got %d", idx.Duration)
	}
	if len(idx.Pitch) != 1 || idx.Pitch[0].Time != 1000 {
		t.Errorf("unexpected pitch samples: %+v", idx.Pitch)
	}
}

func TestBuildNilAndExplicitDuration(t *testing.T) {
	if idx := Build(nil); idx.Len() != 0 {
		t.Fatalf("Expected empty index for nil metadata")
	}

	meta := sampleMetadata()
	meta.Duration = 215000
	if idx := Build(meta); idx.Duration != 215000 {
		t.Errorf("Expected explicit duration to win, got %d", idx.Duration)
	}
}

func TestResolve(t *testing.T) {
	idx := Build(sampleMetadata())

	tests := []struct {
		name     string
		position int64
		phrase   int
		active   int // 正在演唱的字符下标，-1 表示无
		sung     int // 已唱完的字符数
	}{
		{"before first phrase", 0, NoPhrase, -1, 0},
		{"phrase start is inclusive", 1000, 0, 0, 0},
		{"second char", 1300, 0, 1, 1},
		{"phrase end is exclusive", 1500, NoPhrase, -1, 0},
		{"gap between phrases", 1800, NoPhrase, -1, 0},
		{"inside second phrase", 2600, 1, 1, 1},
		{"between chars inside phrase", 3299, 1, 2, 2},
		{"after last phrase", 5000, NoPhrase, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.position, idx.Phrases)
			if r.PhraseIndex != tt.phrase {
				t.Fatalf("PhraseIndex = %d, want %d", r.PhraseIndex, tt.phrase)
			}
			if !r.Active() {
				if len(r.Chars) != 0 {
					t.Errorf("Expected no chars for inactive resolution, got %d", len(r.Chars))
				}
				return
			}
			if !idx.Phrases[r.PhraseIndex].Contains(tt.position) {
				t.Errorf("resolved phrase does not contain position %d", tt.position)
			}
			active, sung := -1, 0
			for i, c := range r.Chars {
				if c.IsActive {
					if active != -1 {
						t.Errorf("more than one active char")
					}
					active = i
				}
				if c.IsSung {
					sung++
				}
				if c.IsActive && c.IsSung {
					t.Errorf("char %d is both active and sung", i)
				}
			}
			if active != tt.active {
				t.Errorf("active char = %d, want %d", active, tt.active)
			}
			if sung != tt.sung {
				t.Errorf("sung chars = %d, want %d", sung, tt.sung)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	idx := Build(sampleMetadata())
	first := Resolve(1300, idx.Phrases)
	for i := 0; i < 5; i++ {
		again := Resolve(1300, idx.Phrases)
		if again.PhraseIndex != first.PhraseIndex || len(again.Chars) != len(first.Chars) {
			t.Fatalf("Resolve is not idempotent: %+v vs %+v", first, again)
		}
		for i := range again.Chars {
			if again.Chars[i] != first.Chars[i] {
				t.Fatalf("char %d differs: %+v vs %+v", i, first.Chars[i], again.Chars[i])
			}
		}
	}
}

func TestResolveMonotonicSweep(t *testing.T) {
	idx := Build(sampleMetadata())
	last := NoPhrase
	for pos := int64(0); pos < 4000; pos += 37 {
		r := Resolve(pos, idx.Phrases)
		if r.PhraseIndex == NoPhrase {
			continue
		}
		if r.PhraseIndex < last {
			t.Fatalf("phrase index went backwards at %d: %d -> %d", pos, last, r.PhraseIndex)
		}
		last = r.PhraseIndex
	}
	if last != 1 {
		t.Errorf("Expected sweep to reach last phrase, got %d", last)
	}
}

func TestDecodeMetadata(t *testing.T) {
	jsonDoc := `{"title":"t","duration":1000,"phrases":[{"chars":[{"text":"a","startTime":10}]}],"pitch":[{"startTime":10,"hz":220}]}`
	yamlDoc := `
title: t
duration: 1000
phrases:
  - chars:
      - text: a
        startTime: 10
pitch:
  - startTime: 10
    hz: 220
`
	for name, tc := range map[string]struct {
		data   string
		format Format
	}{
		"json": {jsonDoc, FormatFromPath("song.json")},
		"yaml": {yamlDoc, FormatFromPath("song.YML")},
	} {
		t.Run(name, func(t *testing.T) {
			meta, err := DecodeMetadata([]byte(tc.data), tc.format)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if meta.Title != "t" || meta.Duration != 1000 {
				t.Errorf("unexpected header: %+v", meta)
			}
			if len(meta.Phrases) != 1 || meta.Phrases[0].Chars[0].StartTime != 10 || meta.Phrases[0].Chars[0].EndTime != 0 {
				t.Errorf("unexpected phrases: %+v", meta.Phrases)
			}
			if len(meta.Pitch) != 1 || meta.Pitch[0].Hz != 220 {
				t.Errorf("unexpected pitch: %+v", meta.Pitch)
			}
		})
	}

	if _, err := DecodeMetadata([]byte("{"), FormatJSON); err == nil {
		t.Error("Expected error for malformed json")
	}
}
