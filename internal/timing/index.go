package timing

import (
	"sort"
	"strings"
)

// DefaultUnitDuration 缺省 endTime 时的字符时长（毫秒）
const DefaultUnitDuration int64 = 500

// Unit 单个歌词字符
type Unit struct {
	Text        string `json:"text"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	PhraseIndex int    `json:"phraseIndex"`
	CharIndex   int    `json:"charIndex"`
}

// Phrase 一组连续演唱的字符，Units 非空
type Phrase struct {
	Index int
	Text  string
	Units []Unit
}

// StartTime 第一个字符的开始时间
func (p Phrase) StartTime() int64 {
	return p.Units[0].StartTime
}

// EndTime 最后一个字符的结束时间
func (p Phrase) EndTime() int64 {
	return p.Units[len(p.Units)-1].EndTime
}

// Contains 半开区间 [start, end)
func (p Phrase) Contains(position int64) bool {
	return position >= p.StartTime() && position < p.EndTime()
}

// PitchSample 稀疏音高采样
type PitchSample struct {
	Time int64
	Hz   float64
}

// Index 一首歌的时间索引，构建后只读
type Index struct {
	Title    string
	Artist   string
	Duration int64
	Phrases  []Phrase
	Units    []Unit
	Pitch    []PitchSample
}

// Build 把嵌套的 phrase/char 元数据展开为按时间排序的索引。
// endTime 的缺省值只在这里补齐。
func Build(meta *SongMetadata) *Index {
	idx := &Index{}
	if meta == nil {
		return idx
	}
	idx.Title = meta.Title
	idx.Artist = meta.Artist

	for _, src := range meta.Phrases {
		if len(src.Chars) == 0 {
			continue
		}
		phrase := Phrase{Index: len(idx.Phrases)}
		var text strings.Builder
		for i, ch := range src.Chars {
			u := Unit{
				Text:        ch.Text,
				StartTime:   ch.StartTime,
				EndTime:     ch.EndTime,
				PhraseIndex: phrase.Index,
				CharIndex:   i,
			}
			if u.EndTime <= u.StartTime {
				u.EndTime = u.StartTime + DefaultUnitDuration
			}
			text.WriteString(ch.Text)
			phrase.Units = append(phrase.Units, u)
		}
		phrase.Text = text.String()
		idx.Phrases = append(idx.Phrases, phrase)
		idx.Units = append(idx.Units, phrase.Units...)
	}
	sort.SliceStable(idx.Units, func(i, j int) bool { return idx.Units[i].StartTime < idx.Units[j].StartTime })

	for _, p := range meta.Pitch {
		idx.Pitch = append(idx.Pitch, PitchSample{Time: p.StartTime, Hz: p.Hz})
	}

	idx.Duration = meta.Duration
	if idx.Duration <= 0 {
		for _, u := range idx.Units {
			if u.EndTime > idx.Duration {
				idx.Duration = u.EndTime
			}
		}
	}
	return idx
}

// Phrase 按下标取短语，越界返回 false
func (idx *Index) Phrase(i int) (Phrase, bool) {
	if idx == nil || i < 0 || i >= len(idx.Phrases) {
		return Phrase{}, false
	}
	return idx.Phrases[i], true
}

// Len 短语数量
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Phrases)
}
