package player

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/engine"
	"lyricsync/internal/timing"
)

const (
	DefaultPollInterval  = 50 * time.Millisecond
	defaultLookupTimeout = 5 * time.Second
)

var logger = log.With().Str("component", "player").Logger()

// Dispatcher 接收播放器事件，一般是 *engine.Engine
type Dispatcher interface {
	Dispatch(engine.Event) error
}

// MetadataLookup 根据 "artist - title" 查找时间信息
type MetadataLookup interface {
	Lookup(ctx context.Context, song string) (*timing.SongMetadata, error)
}

// Watcher 轮询播放器，把歌曲切换、状态变化和播放位置转换成引擎事件
type Watcher struct {
	player        *Playerctl
	lookup        MetadataLookup
	dispatch      Dispatcher
	interval      time.Duration
	lookupTimeout time.Duration

	ready      bool
	timerReady bool
	song       string
	status     Status
}

func NewWatcher(p *Playerctl, lookup MetadataLookup, d Dispatcher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		player:        p,
		lookup:        lookup,
		dispatch:      d,
		interval:      interval,
		lookupTimeout: defaultLookupTimeout,
	}
}

// Run 每个 interval 检查一次，ctx 取消或引擎退出时返回
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", w.interval).Msg("Starting player watch loop")
	for {
		if err := w.tick(ctx); err != nil {
			if errors.Is(err, engine.ErrStopped) {
				return nil
			}
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) tick(ctx context.Context) error {
	status, err := w.player.Status()
	if err != nil {
		return w.lost(err)
	}

	if !w.ready {
		w.ready = true
		logger.Info().Msg("Player found")
		if err := w.dispatch.Dispatch(engine.Simple(engine.AppReady)); err != nil {
			return err
		}
	}

	song, err := w.player.CurrentSong()
	if err == nil && song != w.song {
		w.song = song
		logger.Info().Str("song", song).Msg("New song detected")
		if err := w.dispatch.Dispatch(engine.MediaReadyEvent(w.loadMetadata(ctx, song))); err != nil {
			return err
		}
	}

	if status != w.status {
		w.status = status
		if err := w.dispatch.Dispatch(engine.Simple(statusKind(status))); err != nil {
			return err
		}
	}

	pos, err := w.player.Position()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read position")
		return nil
	}
	if !w.timerReady {
		w.timerReady = true
		if err := w.dispatch.Dispatch(engine.Simple(engine.TimerReady)); err != nil {
			return err
		}
	}
	return w.dispatch.Dispatch(engine.PositionEvent(pos))
}

// lost 播放器消失后回到初始状态，重新出现时再次发送 AppReady
func (w *Watcher) lost(err error) error {
	if !w.ready {
		return nil
	}
	logger.Warn().Err(err).Msg("Player disappeared")
	w.ready = false
	w.timerReady = false
	w.song = ""
	hadStatus := w.status != "" && w.status != StatusStopped
	w.status = ""
	if hadStatus {
		return w.dispatch.Dispatch(engine.Simple(engine.Stop))
	}
	return nil
}

func (w *Watcher) loadMetadata(ctx context.Context, song string) *timing.SongMetadata {
	ctx, cancel := context.WithTimeout(ctx, w.lookupTimeout)
	defer cancel()

	var meta *timing.SongMetadata
	if w.lookup != nil {
		m, err := w.lookup.Lookup(ctx, song)
		if err != nil {
			logger.Warn().Err(err).Str("song", song).Msg("No timing metadata, showing song without lyrics")
		} else if m != nil {
			copied := *m
			meta = &copied
		}
	}
	if meta == nil {
		artist, title := splitSong(song)
		meta = &timing.SongMetadata{Title: title, Artist: artist}
	}
	if meta.Duration <= 0 {
		if d, err := w.player.Duration(); err == nil && d > 0 {
			meta.Duration = d
		}
	}
	return meta
}

func splitSong(song string) (artist, title string) {
	if a, t, ok := strings.Cut(song, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", song
}

func statusKind(s Status) engine.Kind {
	switch s {
	case StatusPlaying:
		return engine.Play
	case StatusPaused:
		return engine.Pause
	default:
		return engine.Stop
	}
}
