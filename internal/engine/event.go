package engine

import (
	"fmt"

	"lyricsync/internal/timing"
)

// Kind 事件类型：播放器事件与用户意图
type Kind int

const (
	AppReady Kind = iota
	MediaReady
	TimerReady
	Play
	Pause
	Stop
	Position

	IntentPlay
	IntentPause
	IntentToggle
	IntentStop
	IntentSeek
	IntentSeekFraction
	IntentRewind
	IntentFastForward
	IntentJumpToPhrase
	IntentHover
	IntentHoverEnd
	IntentDragStart
	IntentDragMove
	IntentDragEnd

	// 延迟回调回到事件循环中执行
	deferredCall
)

var kindNames = map[Kind]string{
	AppReady:           "appReady",
	MediaReady:         "mediaReady",
	TimerReady:         "timerReady",
	Play:               "play",
	Pause:              "pause",
	Stop:               "stop",
	Position:           "position",
	IntentPlay:         "intentPlay",
	IntentPause:        "intentPause",
	IntentToggle:       "intentToggle",
	IntentStop:         "intentStop",
	IntentSeek:         "intentSeek",
	IntentSeekFraction: "intentSeekFraction",
	IntentRewind:       "intentRewind",
	IntentFastForward:  "intentFastForward",
	IntentJumpToPhrase: "intentJumpToPhrase",
	IntentHover:        "intentHover",
	IntentHoverEnd:     "intentHoverEnd",
	IntentDragStart:    "intentDragStart",
	IntentDragMove:     "intentDragMove",
	IntentDragEnd:      "intentDragEnd",
	deferredCall:       "deferredCall",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsIntent 是否为用户意图
func (k Kind) IsIntent() bool {
	return k >= IntentPlay && k <= IntentDragEnd
}

// Event 进入 reducer 的唯一消息类型
type Event struct {
	Kind     Kind
	Position int64   // Position / IntentSeek，毫秒
	Fraction float64 // 进度条比例 [0, 1]
	Phrase   int     // IntentJumpToPhrase
	Metadata *timing.SongMetadata

	call func()
}

func PositionEvent(ms int64) Event { return Event{Kind: Position, Position: ms} }

func MediaReadyEvent(meta *timing.SongMetadata) Event {
	return Event{Kind: MediaReady, Metadata: meta}
}

func SeekIntent(ms int64) Event { return Event{Kind: IntentSeek, Position: ms} }

func FractionIntent(kind Kind, f float64) Event { return Event{Kind: kind, Fraction: f} }

func JumpIntent(phrase int) Event { return Event{Kind: IntentJumpToPhrase, Phrase: phrase} }

func Simple(kind Kind) Event { return Event{Kind: kind} }
