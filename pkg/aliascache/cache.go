package aliascache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s" + kvSep + "%s\n"
)

// Cache 播放器上报的歌曲名到元数据文件名的映射，每行一条 "k => v"
type Cache struct {
	m    sync.Map
	path string
	mu   sync.Mutex // 保护文件追加
}

// Load 读取映射文件，文件不存在时创建空文件
func Load(path string) (*Cache, error) {
	c := &Cache{path: path}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create alias dir: %w", err)
		}
		nf, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create alias file: %w", err)
		}
		nf.Close()
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, kvSep, 2)
		if len(kv) != 2 {
			continue
		}
		c.m.Store(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}
	return c, nil
}

// Get 查找别名
func (c *Cache) Get(key string) (string, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Add 新增映射并追加到文件，已存在的 key 不覆盖
func (c *Cache) Add(key, value string) error {
	if _, loaded := c.m.LoadOrStore(key, value); loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, kvFormat, key, value); err != nil {
		return fmt.Errorf("failed to append alias: %w", err)
	}
	return nil
}

// Len 映射数量
func (c *Cache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
