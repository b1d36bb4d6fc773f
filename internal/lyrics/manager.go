package lyrics

import (
	"context"
	"errors"
	"fmt"

	"lyricsync/internal/timing"
)

// Manager 按顺序查询多个来源，命中后写回排在前面的可写来源
type Manager struct {
	sources []Source
	aliases Aliases
}

// Option 管理器选项
type Option func(*Manager)

// WithAliases 查询时同时尝试别名
func WithAliases(a Aliases) Option {
	return func(m *Manager) { m.aliases = a }
}

// NewManager 创建新的来源管理器
func NewManager(sources []Source, opts ...Option) *Manager {
	m := &Manager{sources: sources}
	for _, opt := range opts {
		opt(m)
	}
	if len(sources) == 0 {
		logger.Warn().Msg("No metadata sources configured")
		return m
	}
	logger.Info().
		Int("source_count", len(sources)).
		Strs("sources", m.SourceNames()).
		Msg("Metadata source manager initialized")
	return m
}

func (m *Manager) keys(song string) []string {
	keys := []string{song}
	if m.aliases == nil {
		return keys
	}
	if alias, ok := m.aliases.Get(song); ok && alias != "" && alias != song {
		keys = append(keys, alias)
	}
	return keys
}

// Lookup 依次尝试每个来源，全部失败时返回包装了 ErrNotFound 的错误
func (m *Manager) Lookup(ctx context.Context, song string) (*timing.SongMetadata, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("no metadata sources available: %w", ErrNotFound)
	}

	keys := m.keys(song)
	var lastErr error
	for i, source := range m.sources {
		for _, key := range keys {
			meta, err := source.Lookup(ctx, key)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logger.Warn().
						Str("source", source.Name()).
						Str("key", key).
						Err(err).
						Msg("Source failed")
					lastErr = err
				}
				continue
			}

			logger.Info().
				Str("source", source.Name()).
				Str("song", song).
				Str("key", key).
				Int("phrases", len(meta.Phrases)).
				Msg("Found timing metadata")
			m.writeBack(ctx, m.sources[:i], song, meta)
			return meta, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no metadata for '%s' (last error: %v): %w", song, lastErr, ErrNotFound)
	}
	return nil, fmt.Errorf("no metadata for '%s': %w", song, ErrNotFound)
}

func (m *Manager) writeBack(ctx context.Context, earlier []Source, song string, meta *timing.SongMetadata) {
	for _, source := range earlier {
		w, ok := source.(Writer)
		if !ok {
			continue
		}
		if err := w.Store(ctx, song, meta); err != nil {
			logger.Warn().Str("source", source.Name()).Err(err).Msg("Failed to write back metadata")
		}
	}
}

// SourceNames 获取所有来源名称
func (m *Manager) SourceNames() []string {
	names := make([]string, len(m.sources))
	for i, source := range m.sources {
		names[i] = source.Name()
	}
	return names
}
