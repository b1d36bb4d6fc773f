package engine

import (
	"fmt"

	"lyricsync/internal/pitch"
	"lyricsync/internal/timing"
	"lyricsync/internal/window"
)

const (
	PlaceholderGap     = "・・・♪・・・"
	PlaceholderLoading = "loading..."
)

// ActivePhrase 正在演唱的短语
type ActivePhrase struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// VisiblePhrase 窗口内的短语
type VisiblePhrase struct {
	Index          int                `json:"index"`
	Text           string             `json:"text"`
	StartTime      int64              `json:"startTime"`
	Active         bool               `json:"active"`
	Chars          []timing.CharState `json:"chars"`
	LineBreakAfter bool               `json:"lineBreakAfter"`
}

// Hover 进度条悬停提示
type Hover struct {
	Time    int64  `json:"time"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

// Snapshot 每次事件处理后的只读状态，供展示层使用
type Snapshot struct {
	Seq             uint64             `json:"seq"`
	SongID          string             `json:"songId,omitempty"`
	Title           string             `json:"title,omitempty"`
	Artist          string             `json:"artist,omitempty"`
	State           string             `json:"state"`
	PlayerReady     bool               `json:"playerReady"`
	Ready           bool               `json:"ready"`
	ControlsEnabled bool               `json:"controlsEnabled"`
	Position        int64              `json:"position"`
	Duration        int64              `json:"duration"`
	ProgressPercent float64            `json:"progressPercent"`
	CurrentLabel    string             `json:"currentLabel"`
	DurationLabel   string             `json:"durationLabel"`
	ActivePhrase    *ActivePhrase      `json:"activePhrase,omitempty"`
	ActiveChars     []timing.CharState `json:"activeChars"`
	VisiblePhrases  []VisiblePhrase    `json:"visiblePhrases"`
	Window          window.State       `json:"window"`
	WindowChanged   bool               `json:"windowChanged"`
	Note            string             `json:"note,omitempty"`
	PitchBar        pitch.Overlay      `json:"pitchBar"`
	Hover           Hover              `json:"hover"`
	Placeholder     string             `json:"placeholder,omitempty"`
}

// ActiveText 当前短语文本，没有时为空
func (s Snapshot) ActiveText() string {
	if s.ActivePhrase == nil {
		return ""
	}
	return s.ActivePhrase.Text
}

// FormatTime 毫秒转 m:ss
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
