package lyrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"lyricsync/internal/timing"
)

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]`)

var extensions = []string{".json", ".yaml", ".yml"}

// FileSource 从目录中读取 <name>.json / <name>.yaml
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Lookup(_ context.Context, key string) (*timing.SongMetadata, error) {
	base := sanitizeFilename(key)
	for _, ext := range extensions {
		path := filepath.Join(f.dir, base+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		meta, err := timing.DecodeMetadata(data, timing.FormatFromPath(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return meta, nil
	}
	return nil, ErrNotFound
}

func sanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "-")
}
