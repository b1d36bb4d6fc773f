// Package window decides which phrases are materialized for display.
package window

import (
	"fmt"
	"strings"
)

// Mode 窗口策略
type Mode string

const (
	ModeAll     Mode = "all"
	ModeBlock   Mode = "fixed-block"
	ModeSliding Mode = "sliding-window"
)

// State 当前显示的短语范围 [Start, Start+Size)，BreakEvery>0 时每 N 个短语换行
type State struct {
	Start      int `json:"start"`
	Size       int `json:"size"`
	BreakEvery int `json:"breakEvery,omitempty"`
}

// End 窗口右边界（不含），按总数截断
func (s State) End(total int) int {
	end := s.Start + s.Size
	if end > total {
		end = total
	}
	return end
}

// Indices 窗口内的短语下标
func (s State) Indices(total int) []int {
	var out []int
	for i := max(s.Start, 0); i < s.End(total); i++ {
		out = append(out, i)
	}
	return out
}

// LineBreakAfter 是否在第 i 个短语后换行
func (s State) LineBreakAfter(i, total int) bool {
	if i >= total-1 {
		return false
	}
	if s.BreakEvery <= 0 {
		return true
	}
	return (i-s.Start+1)%s.BreakEvery == 0
}

// Policy 根据当前短语决定显示窗口。
// Advance 在 active 为 -1 时保持原窗口，只有窗口键变化时 changed 才为 true。
type Policy interface {
	Name() Mode
	Reset(total int) State
	Advance(active int) (State, bool)
	Current() State
}

// Options 策略参数
type Options struct {
	Mode       Mode
	BlockSize  int
	WindowSize int
	Step       int
	BreakEvery int
}

// DefaultOptions 默认每块 4 句，两句一行
func DefaultOptions() Options {
	return Options{
		Mode:       ModeBlock,
		BlockSize:  4,
		WindowSize: 10,
		Step:       2,
		BreakEvery: 2,
	}
}

// New 按配置创建策略
func New(opts Options) (Policy, error) {
	switch Mode(strings.ToLower(string(opts.Mode))) {
	case ModeAll:
		return NewAll(opts.BreakEvery), nil
	case ModeBlock, "":
		if opts.BlockSize <= 0 {
			return nil, fmt.Errorf("invalid block size: %d", opts.BlockSize)
		}
		return NewFixedBlock(opts.BlockSize), nil
	case ModeSliding:
		if opts.WindowSize <= 0 || opts.Step <= 0 {
			return nil, fmt.Errorf("invalid sliding window %d/%d", opts.WindowSize, opts.Step)
		}
		return NewSliding(opts.WindowSize, opts.Step, opts.BreakEvery), nil
	default:
		return nil, fmt.Errorf("unknown window mode: %s", opts.Mode)
	}
}

type all struct {
	breakEvery int
	state      State
}

// NewAll 一次显示全部短语
func NewAll(breakEvery int) Policy {
	return &all{breakEvery: breakEvery}
}

func (a *all) Name() Mode { return ModeAll }

func (a *all) Reset(total int) State {
	a.state = State{Start: 0, Size: total, BreakEvery: a.breakEvery}
	return a.state
}

func (a *all) Advance(int) (State, bool) { return a.state, false }

func (a *all) Current() State { return a.state }

type fixedBlock struct {
	size  int
	block int
}

// NewFixedBlock 每次显示 [k*size, (k+1)*size)
func NewFixedBlock(size int) Policy {
	return &fixedBlock{size: size}
}

func (b *fixedBlock) Name() Mode { return ModeBlock }

func (b *fixedBlock) Reset(int) State {
	b.block = 0
	return b.Current()
}

func (b *fixedBlock) Advance(active int) (State, bool) {
	if active < 0 {
		return b.Current(), false
	}
	k := active / b.size
	if k == b.block {
		return b.Current(), false
	}
	b.block = k
	return b.Current(), true
}

func (b *fixedBlock) Current() State {
	return State{Start: b.block * b.size, Size: b.size}
}

type sliding struct {
	size       int
	step       int
	breakEvery int
	start      int
}

// NewSliding 显示 [start, start+size)，唱过 step 个短语后整体后移 step
func NewSliding(size, step, breakEvery int) Policy {
	return &sliding{size: size, step: step, breakEvery: breakEvery}
}

func (s *sliding) Name() Mode { return ModeSliding }

func (s *sliding) Reset(int) State {
	s.start = 0
	return s.Current()
}

func (s *sliding) Advance(active int) (State, bool) {
	if active < 0 {
		return s.Current(), false
	}
	start := s.start
	if active < start {
		// 向后 seek
		start = (active / s.step) * s.step
	}
	for active >= start+s.step {
		start += s.step
	}
	if start == s.start {
		return s.Current(), false
	}
	s.start = start
	return s.Current(), true
}

func (s *sliding) Current() State {
	return State{Start: s.start, Size: s.size, BreakEvery: s.breakEvery}
}
