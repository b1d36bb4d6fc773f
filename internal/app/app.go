package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lyricsync/internal/config"
	"lyricsync/internal/engine"
	"lyricsync/internal/ipc"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/internal/statusbar"
	"lyricsync/pkg/aliascache"
	"lyricsync/pkg/fileutil"
	"lyricsync/pkg/redis"
)

type App struct {
	cfg       *config.Config
	engine    *engine.Engine
	ipcServer *ipc.Server
	statusBar *statusbar.Controller
	watcher   *player.Watcher
	redis     *redis.Client
}

// dispatchFunc 让 ipc 服务在引擎创建之前就能持有分发入口
type dispatchFunc func(engine.Event) error

func (f dispatchFunc) Dispatch(ev engine.Event) error { return f(ev) }

// SetupLogging 设置 zerolog 的全局配置
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("log_level", level).Msg("Invalid log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func New(cfg *config.Config) (*App, error) {
	SetupLogging(cfg.App.LogLevel)

	a := &App{cfg: cfg}

	if err := fileutil.EnsureDir(cfg.App.MetadataDir); err != nil {
		return nil, err
	}
	log.Info().Str("metadata_dir", cfg.App.MetadataDir).Msg("Metadata directory")

	manager := lyrics.NewManager(a.sources(), a.aliasOptions()...)

	pctl := player.New(player.ExecRunner{})
	a.statusBar = statusbar.NewController(cfg.App.StatusFile)

	var eng *engine.Engine
	a.ipcServer = ipc.NewServer(cfg.App.SocketPath, dispatchFunc(func(ev engine.Event) error {
		return eng.Dispatch(ev)
	}))

	eng, err := engine.New(cfg.Engine(), pctl,
		engine.WithSink(a.ipcServer),
		engine.WithSink(a.statusBar),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = eng
	a.watcher = player.NewWatcher(pctl, manager, eng, cfg.App.PollInterval)

	return a, nil
}

// sources 查询顺序：redis 缓存，然后是元数据目录
func (a *App) sources() []lyrics.Source {
	var sources []lyrics.Source
	if a.cfg.Redis.Addr != "" {
		client, err := redis.NewClient(redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, metadata cache disabled")
		} else {
			log.Info().Str("addr", client.Addr()).Int("db", a.cfg.Redis.DB).Msg("Connected to redis")
			a.redis = client
			sources = append(sources, lyrics.NewRedisSource(client, a.cfg.Redis.TTL))
		}
	}
	return append(sources, lyrics.NewFileSource(a.cfg.App.MetadataDir))
}

func (a *App) aliasOptions() []lyrics.Option {
	if a.cfg.App.AliasFile == "" {
		return nil
	}
	aliases, err := aliascache.Load(a.cfg.App.AliasFile)
	if err != nil {
		log.Warn().Err(err).Str("alias_file", a.cfg.App.AliasFile).Msg("Failed to load aliases")
		return nil
	}
	log.Info().Int("aliases", aliases.Len()).Msg("Loaded song aliases")
	return []lyrics.Option{lyrics.WithAliases(aliases)}
}

// Run 启动所有组件，直到 ctx 取消或某个组件出错
func (a *App) Run(ctx context.Context) error {
	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()
	if a.redis != nil {
		defer a.redis.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.engine.Run(ctx)
	})
	g.Go(func() error {
		a.statusBar.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Msg("Starting player check loop...")
		return a.watcher.Run(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
