package statusbar

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/engine"
	"lyricsync/pkg/fileutil"
)

const (
	// SignalRefresh i3blocks 中配置 signal=21，对应 SIGRTMIN+21
	SignalRefresh   = syscall.Signal(55)
	refreshInterval = 10 * time.Second
)

var logger = log.With().Str("component", "statusbar").Logger()

// Controller 把当前歌词写入状态文件，并通知 i3blocks 刷新
type Controller struct {
	statusFile string
	findPID    func() (int, error)
	signal     func(pid int) error

	pid      int
	pidMutex sync.RWMutex
	last     string
	started  bool
}

// Option 控制器选项
type Option func(*Controller)

// WithPIDFinder 替换查找 i3blocks 进程的方法
func WithPIDFinder(f func() (int, error)) Option {
	return func(c *Controller) { c.findPID = f }
}

// WithSignaler 替换发送信号的方法
func WithSignaler(f func(pid int) error) Option {
	return func(c *Controller) { c.signal = f }
}

func NewController(statusFile string, opts ...Option) *Controller {
	c := &Controller{
		statusFile: statusFile,
		findPID:    findI3blocks,
		signal:     sendSignal,
		pid:        -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run 每 10 秒刷新一次 i3blocks 的 PID，ctx 取消后返回
func (c *Controller) Run(ctx context.Context) {
	c.refreshPID()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	logger.Info().Str("status_file", c.statusFile).Msg("Status bar controller started")
	for {
		select {
		case <-ticker.C:
			c.refreshPID()
		case <-ctx.Done():
			logger.Info().Msg("Status bar controller stopped")
			return
		}
	}
}

func (c *Controller) refreshPID() {
	pid, err := c.findPID()
	if err != nil {
		pid = -1
		logger.Debug().Err(err).Msg("i3blocks not found")
	}

	c.pidMutex.Lock()
	oldPID := c.pid
	c.pid = pid
	c.pidMutex.Unlock()

	if oldPID != pid {
		logger.Info().Int("old_pid", oldPID).Int("pid", pid).Msg("i3blocks PID updated")
	}
}

// GetPID 当前记录的 PID，未找到时为 -1
func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Publish 实现 engine.Sink，只在文本变化时写文件并发信号
func (c *Controller) Publish(snap engine.Snapshot) {
	text := snap.ActiveText()
	if text == "" {
		text = snap.Placeholder
	}
	if c.started && text == c.last {
		return
	}
	c.started = true
	c.last = text

	if err := fileutil.WriteAtomic(c.statusFile, []byte(text+"\n"), 0644); err != nil {
		logger.Warn().Err(err).Msg("Failed to write status file")
		return
	}
	if err := c.notify(); err != nil {
		logger.Debug().Err(err).Msg("Failed to signal i3blocks")
	}
}

func (c *Controller) notify() error {
	pid := c.GetPID()
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d, i3blocks process not found", pid)
	}
	return c.signal(pid)
}

// findI3blocks 用 pgrep 查找，多个进程时取第一个
func findI3blocks() (int, error) {
	output, err := exec.Command("pgrep", "-x", "i3blocks").Output()
	if err != nil {
		return -1, fmt.Errorf("pgrep i3blocks: %w", err)
	}
	return parsePID(string(output))
}

func parsePID(output string) (int, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	if first == "" {
		return -1, fmt.Errorf("i3blocks process not found")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

func sendSignal(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(SignalRefresh); err != nil {
		return fmt.Errorf("failed to send signal 55 to process %d: %w", pid, err)
	}
	return nil
}
