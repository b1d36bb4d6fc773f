package transport

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSkip        = 10 * time.Second
	DefaultResumeDelay = 100 * time.Millisecond
)

var logger = log.With().Str("component", "transport").Logger()

// State 播放状态
type State int

const (
	Stopped State = iota
	Playing
	Paused
	Seeking
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Player 外部播放器可接受的命令，时间单位毫秒
type Player interface {
	RequestPlay() error
	RequestPause() error
	RequestStop() error
	RequestSeek(position int64) error
}

// PositionReader 可选：能直接读出实时播放位置的播放器
type PositionReader interface {
	Position() (int64, error)
}

// Scheduler 延迟执行，返回的函数用于取消。
// 回调必须在调用 Controller 的同一个 goroutine 中执行，
// 例如投递回事件循环，不能直接用 time.AfterFunc。
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// Controller 把用户意图翻译成播放器命令，并负责 seek 之后的自动续播。
// 非并发安全，只能由一个 goroutine 调用。
type Controller struct {
	player      Player
	sched       Scheduler
	skip        int64
	resumeDelay time.Duration

	state     State
	playing   bool
	duration  int64
	live      int64 // 播放器最后一次报告的位置
	displayed int64 // 界面上显示的位置

	resumeAfterSeek bool
	seekPending     bool
	resumeToken     uint64
	cancelResume    func()
}

// Option 配置项
type Option func(*Controller)

// WithSkip 快进/快退步长
func WithSkip(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.skip = d.Milliseconds()
		}
	}
}

// WithResumeDelay seek 后自动续播的延迟
func WithResumeDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.resumeDelay = d
		}
	}
}

// NewController sched 不能为空
func NewController(player Player, sched Scheduler, opts ...Option) *Controller {
	if sched == nil {
		panic("transport: NewController requires a Scheduler")
	}
	c := &Controller{
		player:      player,
		sched:       sched,
		skip:        DefaultSkip.Milliseconds(),
		resumeDelay: DefaultResumeDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State { return c.state }
func (c *Controller) IsPlaying() bool { return c.playing }
func (c *Controller) Duration() int64 { return c.duration }
func (c *Controller) DisplayedPosition() int64 { return c.displayed }
func (c *Controller) LivePosition() int64 { return c.live }
func (c *Controller) ResumePending() bool { return c.resumeAfterSeek || c.cancelResume != nil }

// SetDuration 新歌加载时调用，同时把位置归零
func (c *Controller) SetDuration(d int64) {
	if d < 0 {
		d = 0
	}
	c.duration = d
	c.clearResume()
	c.live, c.displayed = 0, 0
	c.seekPending = false
	if !c.playing {
		c.state = Stopped
	}
}

func (c *Controller) clamp(t int64) int64 {
	if t < 0 {
		return 0
	}
	if t > c.duration {
		return c.duration
	}
	return t
}

func (c *Controller) Play() error {
	if err := c.player.RequestPlay(); err != nil {
		return fmt.Errorf("failed to request play: %w", err)
	}
	return nil
}

// Pause 同时取消尚未执行的自动续播
func (c *Controller) Pause() error {
	c.clearResume()
	if err := c.player.RequestPause(); err != nil {
		return fmt.Errorf("failed to request pause: %w", err)
	}
	return nil
}

// Toggle 播放中则暂停，否则播放
func (c *Controller) Toggle() error {
	if c.playing {
		return c.Pause()
	}
	return c.Play()
}

// Stop 通知播放器停止并把本地位置归零
func (c *Controller) Stop() error {
	c.reset()
	if err := c.player.RequestStop(); err != nil {
		return fmt.Errorf("failed to request stop: %w", err)
	}
	return nil
}

func (c *Controller) reset() {
	c.clearResume()
	c.seekPending = false
	c.live, c.displayed = 0, 0
	c.state = Stopped
}

// Seek 截断到 [0, duration] 后跳转，返回实际目标
func (c *Controller) Seek(t int64) (int64, error) {
	target := c.clamp(t)
	c.clearResume()
	if c.playing {
		c.resumeAfterSeek = true
	}
	c.seekPending = true
	c.displayed = target
	c.state = Seeking

	logger.Debug().Int64("target", target).Bool("resume", c.resumeAfterSeek).Msg("Seeking")
	if err := c.player.RequestSeek(target); err != nil {
		return target, fmt.Errorf("failed to request seek to %d: %w", target, err)
	}
	return target, nil
}

// SeekFraction 按进度条比例跳转
func (c *Controller) SeekFraction(f float64) (int64, error) {
	return c.Seek(c.TimeAt(f))
}

// TimeAt 进度条比例对应的时间，NaN 按 0 处理
func (c *Controller) TimeAt(f float64) int64 {
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return int64(f * float64(c.duration))
}

func (c *Controller) reference() int64 {
	if !c.playing {
		return c.displayed
	}
	if pr, ok := c.player.(PositionReader); ok {
		if pos, err := pr.Position(); err == nil {
			return pos
		}
	}
	return c.live
}

// Rewind 后退一个步长
func (c *Controller) Rewind() (int64, error) {
	return c.Seek(c.clamp(c.reference() - c.skip))
}

// FastForward 前进一个步长
func (c *Controller) FastForward() (int64, error) {
	return c.Seek(c.clamp(c.reference() + c.skip))
}

// OnPosition 处理播放器的位置回调。hold 为 true 时（拖动进度条中）不更新显示位置。
func (c *Controller) OnPosition(pos int64, hold bool) {
	c.live = pos
	if !hold {
		c.displayed = pos
	}
	if !c.seekPending {
		return
	}
	c.seekPending = false
	if c.playing {
		c.state = Playing
	} else {
		c.state = Paused
	}
	if !c.resumeAfterSeek {
		return
	}
	c.resumeAfterSeek = false
	if c.playing {
		return
	}
	c.scheduleResume()
}

func (c *Controller) scheduleResume() {
	c.resumeToken++
	token := c.resumeToken
	logger.Debug().Dur("delay", c.resumeDelay).Msg("Scheduling resume after seek")
	c.cancelResume = c.sched.AfterFunc(c.resumeDelay, func() { c.fireResume(token) })
}

// fireResume 由 Scheduler 调用；已取消或被新的续播替代时不执行
func (c *Controller) fireResume(token uint64) {
	if c.cancelResume == nil || token != c.resumeToken {
		return
	}
	c.cancelResume = nil
	if c.playing {
		return
	}
	if err := c.Play(); err != nil {
		logger.Warn().Err(err).Msg("Resume after seek failed")
	}
}

func (c *Controller) clearResume() {
	c.resumeAfterSeek = false
	if c.cancelResume != nil {
		c.cancelResume()
		c.cancelResume = nil
	}
	c.resumeToken++
}

// OnPlay 播放器开始播放
func (c *Controller) OnPlay() {
	c.playing = true
	c.resumeAfterSeek = false
	if c.cancelResume != nil {
		c.cancelResume()
		c.cancelResume = nil
	}
	if !c.seekPending {
		c.state = Playing
	}
}

// OnPause 播放器暂停
func (c *Controller) OnPause() {
	c.playing = false
	if !c.seekPending {
		c.state = Paused
	}
}

// OnStop 播放器停止
func (c *Controller) OnStop() {
	c.playing = false
	c.reset()
}
