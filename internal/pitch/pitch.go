package pitch

import (
	"fmt"
	"math"

	"lyricsync/internal/timing"
)

const (
	DefaultMinHz = 70.0
	DefaultMaxHz = 700.0

	referenceHz = 440.0 // A4
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Overlay 音高条
type Overlay struct {
	Hz            float64 `json:"hz"`
	Note          string  `json:"note"`
	HeightPercent float64 `json:"heightPercent"`
	Visible       bool    `json:"visible"`
}

// At 最近邻查找，距离相同时取先出现的采样。没有采样时返回 0。
func At(t int64, samples []timing.PitchSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	best := samples[0]
	bestDist := absDiff(t, best.Time)
	for _, s := range samples[1:] {
		if d := absDiff(t, s.Time); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best.Hz
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Normalize 把 hz 截断到 [minHz, maxHz] 后线性映射到 [0, 100]
func Normalize(hz, minHz, maxHz float64) float64 {
	if hz <= 0 || maxHz <= minHz {
		return 0
	}
	hz = math.Min(math.Max(hz, minHz), maxHz)
	return (hz - minHz) / (maxHz - minHz) * 100
}

// HzToNote 以 A4=440Hz 为基准换算音名，hz 为 0 时返回空串
func HzToNote(hz float64) string {
	if hz <= 0 {
		return ""
	}
	semitones := int(math.Round(12 * math.Log2(hz/referenceHz)))
	noteIndex := ((9+semitones)%12 + 12) % 12
	octave := 4 + int(math.Floor(float64(semitones)/12))
	return fmt.Sprintf("%s%d", noteNames[noteIndex], octave)
}

// Resolve 计算 t 时刻的音高条，hz 为 0 时不显示
func Resolve(t int64, samples []timing.PitchSample, minHz, maxHz float64) Overlay {
	hz := At(t, samples)
	if hz <= 0 {
		return Overlay{}
	}
	return Overlay{
		Hz:            hz,
		Note:          HzToNote(hz),
		HeightPercent: Normalize(hz, minHz, maxHz),
		Visible:       true,
	}
}
