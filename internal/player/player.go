package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBinary  = "playerctl"
	commandTimeout = 2 * time.Second
	songFormat     = `{{artist}} - {{title}}`
)

// ErrNoPlayer playerctl 找不到任何 MPRIS 播放器
var ErrNoPlayer = errors.New("no player found")

// Status 播放器状态
type Status string

const (
	StatusPlaying Status = "Playing"
	StatusPaused  Status = "Paused"
	StatusStopped Status = "Stopped"
)

// Runner 执行 playerctl 子命令并返回标准输出
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner 调用本机的 playerctl
type ExecRunner struct {
	Binary string
	Player string // 对应 --player，为空时由 playerctl 自行选择
}

func (r ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = defaultBinary
	}
	if r.Player != "" {
		args = append([]string{"--player", r.Player}, args...)
	}
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && strings.Contains(string(exitErr.Stderr), "No players found") {
			return "", ErrNoPlayer
		}
		return "", fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Playerctl 通过 MPRIS 控制播放器，时间单位毫秒
type Playerctl struct {
	runner  Runner
	timeout time.Duration
}

func New(runner Runner) *Playerctl {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Playerctl{runner: runner, timeout: commandTimeout}
}

func (p *Playerctl) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.runner.Run(ctx, args...)
}

func (p *Playerctl) RequestPlay() error {
	_, err := p.run("play")
	return err
}

func (p *Playerctl) RequestPause() error {
	_, err := p.run("pause")
	return err
}

func (p *Playerctl) RequestStop() error {
	_, err := p.run("stop")
	return err
}

// RequestSeek 跳转到绝对位置
func (p *Playerctl) RequestSeek(position int64) error {
	if position < 0 {
		position = 0
	}
	_, err := p.run("position", strconv.FormatFloat(float64(position)/1000, 'f', 3, 64))
	return err
}

// Position 当前播放位置
func (p *Playerctl) Position() (int64, error) {
	out, err := p.run("position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: %w", out, err)
	}
	if seconds < 0 {
		seconds = 0
	}
	return int64(seconds*1000 + 0.5), nil
}

// Status 播放状态
func (p *Playerctl) Status() (Status, error) {
	out, err := p.run("status")
	if err != nil {
		return "", err
	}
	switch s := Status(out); s {
	case StatusPlaying, StatusPaused, StatusStopped:
		return s, nil
	default:
		return "", fmt.Errorf("unknown player status %q", out)
	}
}

// CurrentSong 返回 "artist - title"
func (p *Playerctl) CurrentSong() (string, error) {
	out, err := p.run("metadata", "--format", songFormat)
	if err != nil {
		return "", err
	}
	if out == "" || out == "-" {
		return "", ErrNoPlayer
	}
	return out, nil
}

// Duration 歌曲时长，mpris:length 单位为微秒
func (p *Playerctl) Duration() (int64, error) {
	out, err := p.run("metadata", "mpris:length")
	if err != nil {
		return 0, err
	}
	if out == "" {
		return 0, nil
	}
	us, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mpris:length %q: %w", out, err)
	}
	return us / 1000, nil
}
