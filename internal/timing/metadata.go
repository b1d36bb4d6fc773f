package timing

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SongMetadata 播放器侧提供的歌曲时间信息（phrase -> char）
type SongMetadata struct {
	Title    string         `json:"title" yaml:"title"`
	Artist   string         `json:"artist" yaml:"artist"`
	Duration int64          `json:"duration,omitempty" yaml:"duration,omitempty"` // 毫秒，可缺省
	Phrases  []PhraseSource `json:"phrases" yaml:"phrases"`
	Pitch    []PitchSource  `json:"pitch,omitempty" yaml:"pitch,omitempty"`
}

// PhraseSource 输入中的短语
type PhraseSource struct {
	Chars []CharSource `json:"chars" yaml:"chars"`
}

// CharSource 输入中的字符，endTime 可缺省
type CharSource struct {
	Text      string `json:"text" yaml:"text"`
	StartTime int64  `json:"startTime" yaml:"startTime"`
	EndTime   int64  `json:"endTime,omitempty" yaml:"endTime,omitempty"`
}

// PitchSource 输入中的音高采样
type PitchSource struct {
	StartTime int64   `json:"startTime" yaml:"startTime"`
	Hz        float64 `json:"hz" yaml:"hz"`
}

// Format 元数据文件格式
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath 根据扩展名判断格式，未知扩展名按 JSON 处理
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeMetadata 解析元数据
func DecodeMetadata(data []byte, format Format) (*SongMetadata, error) {
	var meta SongMetadata
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode yaml metadata: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("failed to decode json metadata: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown metadata format: %s", format)
	}
	return &meta, nil
}

// EncodeMetadata 以 JSON 序列化，用于写入缓存
func EncodeMetadata(meta *SongMetadata) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}
