package lyrics

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/timing"
)

var logger = log.With().Str("component", "lyrics").Logger()

// ErrNotFound 没有任何来源能提供该歌曲的时间信息
var ErrNotFound = errors.New("timing metadata not found")

// Source 时间信息来源，找不到时返回 ErrNotFound
type Source interface {
	Lookup(ctx context.Context, key string) (*timing.SongMetadata, error)
	Name() string
}

// Writer 可写回的来源，例如缓存
type Writer interface {
	Store(ctx context.Context, key string, meta *timing.SongMetadata) error
}

// Aliases 播放器歌曲名到元数据文件名的映射
type Aliases interface {
	Get(key string) (string, bool)
}
