package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/pitch"
	"lyricsync/internal/timing"
	"lyricsync/internal/transport"
	"lyricsync/internal/window"
)

var logger = log.With().Str("component", "engine").Logger()

// ErrStopped 事件循环已退出
var ErrStopped = errors.New("engine stopped")

// Sink 展示层，接收每一个快照。在事件循环中同步调用，不能阻塞。
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc 函数适配
type SinkFunc func(Snapshot)

func (f SinkFunc) Publish(s Snapshot) { f(s) }

// Config 引擎参数
type Config struct {
	Window      window.Options
	MinHz       float64
	MaxHz       float64
	Skip        time.Duration
	ResumeDelay time.Duration
	QueueSize   int
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Window:      window.DefaultOptions(),
		MinHz:       pitch.DefaultMinHz,
		MaxHz:       pitch.DefaultMaxHz,
		Skip:        transport.DefaultSkip,
		ResumeDelay: transport.DefaultResumeDelay,
		QueueSize:   64,
	}
}

// Engine 单一 reducer：所有可变状态只在 Run 所在的 goroutine 中修改
type Engine struct {
	cfg    Config
	sinks  []Sink
	sched  transport.Scheduler
	events chan Event
	done   chan struct{}
	once   sync.Once

	policy window.Policy
	ctrl   *transport.Controller

	index       *timing.Index
	songID      string
	appReady    bool
	timerReady  bool
	mediaLoaded bool
	active      int
	dragging    bool
	dragFrac    float64
	hover       Hover
	seq         uint64

	mu       sync.RWMutex
	snapshot Snapshot
}

// Option 引擎选项
type Option func(*Engine)

// WithSink 追加展示层
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s) }
}

// WithScheduler 替换续播调度器，默认把回调投递回事件循环
func WithScheduler(s transport.Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

func New(cfg Config, player transport.Player, opts ...Option) (*Engine, error) {
	policy, err := window.New(cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create window policy: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxHz <= cfg.MinHz {
		cfg.MinHz, cfg.MaxHz = pitch.DefaultMinHz, pitch.DefaultMaxHz
	}

	e := &Engine{
		cfg:    cfg,
		events: make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		policy: policy,
		index:  &timing.Index{},
		active: timing.NoPhrase,
	}
	e.sched = loopScheduler{e}
	for _, opt := range opts {
		opt(e)
	}
	e.ctrl = transport.NewController(player, e.sched,
		transport.WithSkip(cfg.Skip),
		transport.WithResumeDelay(cfg.ResumeDelay),
	)
	e.policy.Reset(0)
	e.snapshot = e.render(false)
	return e, nil
}

// loopScheduler 定时器到期后把回调投递回事件循环
type loopScheduler struct {
	e *Engine
}

func (s loopScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, func() {
		if err := s.e.Dispatch(Event{Kind: deferredCall, call: f}); err != nil {
			logger.Debug().Err(err).Msg("Dropped deferred call")
		}
	})
	return func() { t.Stop() }
}

// Dispatch 把事件放入队列，队列满时阻塞，引擎退出后返回 ErrStopped
func (e *Engine) Dispatch(ev Event) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// Snapshot 最近一次的快照
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Run 事件循环，ctx 取消后返回
func (e *Engine) Run(ctx context.Context) error {
	defer e.once.Do(func() { close(e.done) })
	logger.Info().Str("window", string(e.policy.Name())).Msg("Engine started")
	for {
		select {
		case ev := <-e.events:
			e.handle(ev)
		case <-ctx.Done():
			logger.Info().Msg("Engine stopped")
			return ctx.Err()
		}
	}
}

// handle 处理单个事件并发布快照
func (e *Engine) handle(ev Event) Snapshot {
	if ev.Kind.IsIntent() && !e.mediaLoaded {
		logger.Debug().Stringer("event", ev.Kind).Msg("Ignoring intent before media is ready")
		return e.Snapshot()
	}

	changed := false
	switch ev.Kind {
	case AppReady:
		e.appReady = true
		logger.Info().Msg("Player app ready")
	case TimerReady:
		e.timerReady = true
		logger.Info().Msg("Player timer ready, controls enabled")
	case MediaReady:
		e.loadMedia(ev.Metadata)
		changed = true
	case Play:
		e.ctrl.OnPlay()
	case Pause:
		e.ctrl.OnPause()
	case Stop:
		e.ctrl.OnStop()
		changed = e.resetWindow()
	case Position:
		e.ctrl.OnPosition(ev.Position, e.dragging)
	case IntentPlay:
		e.warn(e.ctrl.Play(), ev.Kind)
	case IntentPause:
		e.warn(e.ctrl.Pause(), ev.Kind)
	case IntentToggle:
		e.warn(e.ctrl.Toggle(), ev.Kind)
	case IntentStop:
		e.warn(e.ctrl.Stop(), ev.Kind)
		changed = e.resetWindow()
	case IntentSeek:
		_, err := e.ctrl.Seek(ev.Position)
		e.warn(err, ev.Kind)
	case IntentSeekFraction:
		_, err := e.ctrl.SeekFraction(ev.Fraction)
		e.warn(err, ev.Kind)
	case IntentRewind:
		_, err := e.ctrl.Rewind()
		e.warn(err, ev.Kind)
	case IntentFastForward:
		_, err := e.ctrl.FastForward()
		e.warn(err, ev.Kind)
	case IntentJumpToPhrase:
		phrase, ok := e.index.Phrase(ev.Phrase)
		if !ok {
			logger.Warn().Int("phrase", ev.Phrase).Int("phrases", e.index.Len()).Msg("Jump target out of range")
			break
		}
		_, err := e.ctrl.Seek(phrase.StartTime())
		e.warn(err, ev.Kind)
	case IntentHover:
		e.showHover(ev.Fraction)
	case IntentHoverEnd:
		if !e.dragging {
			e.hover = Hover{}
		}
	case IntentDragStart:
		e.dragging = true
		e.dragFrac = clampFraction(ev.Fraction)
		e.showHover(ev.Fraction)
	case IntentDragMove:
		if e.dragging {
			e.dragFrac = clampFraction(ev.Fraction)
			e.showHover(ev.Fraction)
		}
	case IntentDragEnd:
		e.dragging = false
		e.hover = Hover{}
		_, err := e.ctrl.SeekFraction(ev.Fraction)
		e.warn(err, ev.Kind)
	case deferredCall:
		if ev.call != nil {
			ev.call()
		}
	default:
		logger.Warn().Stringer("event", ev.Kind).Msg("Unknown event")
	}

	snap := e.advance(changed)
	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
	for _, s := range e.sinks {
		s.Publish(snap)
	}
	return snap
}

func (e *Engine) warn(err error, kind Kind) {
	if err != nil {
		logger.Warn().Err(err).Stringer("event", kind).Msg("Player command failed")
	}
}

func (e *Engine) loadMedia(meta *timing.SongMetadata) {
	e.index = timing.Build(meta)
	e.songID = uuid.NewString()
	e.mediaLoaded = true
	e.active = timing.NoPhrase
	e.dragging = false
	e.hover = Hover{}
	e.ctrl.SetDuration(e.index.Duration)
	e.policy.Reset(e.index.Len())

	logger.Info().
		Str("song_id", e.songID).
		Str("title", e.index.Title).
		Str("artist", e.index.Artist).
		Int("phrases", e.index.Len()).
		Int("units", len(e.index.Units)).
		Int("pitch_samples", len(e.index.Pitch)).
		Int64("duration_ms", e.index.Duration).
		Msg("Media ready")
}

func (e *Engine) resetWindow() bool {
	before := e.policy.Current()
	e.active = timing.NoPhrase
	return e.policy.Reset(e.index.Len()) != before
}

func (e *Engine) showHover(f float64) {
	t := e.ctrl.TimeAt(f)
	e.hover = Hover{Time: t, Label: FormatTime(t), Visible: true}
}

func clampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// resolvePosition 拖动进度条时按播放器实际位置解析歌词
func (e *Engine) resolvePosition() int64 {
	if e.dragging {
		return e.ctrl.LivePosition()
	}
	return e.ctrl.DisplayedPosition()
}

// advance 更新当前短语与窗口，然后生成快照
func (e *Engine) advance(windowChanged bool) Snapshot {
	pos := e.resolvePosition()
	active := timing.FindPhrase(pos, e.index.Phrases)
	if active != e.active {
		if phrase, ok := e.index.Phrase(active); ok {
			logger.Debug().Int("index", active).Int64("position", pos).Str("lyric", phrase.Text).Msg("Active phrase changed")
		}
		e.active = active
	}
	if _, changed := e.policy.Advance(active); changed {
		windowChanged = true
	}
	return e.render(windowChanged)
}

func (e *Engine) render(windowChanged bool) Snapshot {
	e.seq++
	pos := e.resolvePosition()
	duration := e.ctrl.Duration()
	total := e.index.Len()
	win := e.policy.Current()

	snap := Snapshot{
		Seq:             e.seq,
		SongID:          e.songID,
		Title:           e.index.Title,
		Artist:          e.index.Artist,
		State:           e.ctrl.State().String(),
		PlayerReady:     e.appReady,
		Ready:           e.mediaLoaded,
		ControlsEnabled: e.mediaLoaded && e.timerReady,
		Position:        e.ctrl.DisplayedPosition(),
		Duration:        duration,
		CurrentLabel:    FormatTime(e.ctrl.DisplayedPosition()),
		DurationLabel:   FormatTime(duration),
		ActiveChars:     []timing.CharState{},
		VisiblePhrases:  []VisiblePhrase{},
		Window:          win,
		WindowChanged:   windowChanged,
		Hover:           e.hover,
	}

	switch {
	case e.dragging:
		snap.ProgressPercent = e.dragFrac * 100
	case duration > 0:
		snap.ProgressPercent = float64(e.ctrl.DisplayedPosition()) * 100 / float64(duration)
	}

	res := timing.Resolve(pos, e.index.Phrases)
	if res.Active() {
		phrase := e.index.Phrases[res.PhraseIndex]
		snap.ActivePhrase = &ActivePhrase{Index: phrase.Index, Text: phrase.Text}
		snap.ActiveChars = res.Chars
	} else if e.mediaLoaded {
		snap.Placeholder = PlaceholderGap
	} else {
		snap.Placeholder = PlaceholderLoading
	}

	for _, i := range win.Indices(total) {
		phrase := e.index.Phrases[i]
		snap.VisiblePhrases = append(snap.VisiblePhrases, VisiblePhrase{
			Index:          i,
			Text:           phrase.Text,
			StartTime:      phrase.StartTime(),
			Active:         i == res.PhraseIndex,
			Chars:          timing.CharStates(pos, phrase),
			LineBreakAfter: win.LineBreakAfter(i, total),
		})
	}

	snap.PitchBar = pitch.Resolve(pos, e.index.Pitch, e.cfg.MinHz, e.cfg.MaxHz)
	snap.Note = snap.PitchBar.Note
	return snap
}
