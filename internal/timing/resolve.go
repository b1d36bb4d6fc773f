package timing

// NoPhrase 当前位置不在任何短语内
const NoPhrase = -1

// CharState 某一时刻字符的演唱状态
type CharState struct {
	Text      string `json:"text"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	IsActive  bool   `json:"isActive"`
	IsSung    bool   `json:"isSung"`
}

// Resolution 解析结果；PhraseIndex 为 NoPhrase 时 Chars 为空
type Resolution struct {
	PhraseIndex int
	Chars       []CharState
}

// Active 是否有正在演唱的短语
func (r Resolution) Active() bool {
	return r.PhraseIndex != NoPhrase
}

// IsActive 字符是否正在演唱
func IsActive(u Unit, position int64) bool {
	return position >= u.StartTime && position < u.EndTime
}

// IsSung 字符是否已唱完
func IsSung(u Unit, position int64) bool {
	return position >= u.EndTime
}

// FindPhrase 第一个包含 position 的短语下标，落在间隙时返回 NoPhrase
func FindPhrase(position int64, phrases []Phrase) int {
	for i, p := range phrases {
		if p.Contains(position) {
			return i
		}
	}
	return NoPhrase
}

// CharStates 计算短语内每个字符的状态
func CharStates(position int64, p Phrase) []CharState {
	out := make([]CharState, len(p.Units))
	for i, u := range p.Units {
		out[i] = CharState{
			Text:      u.Text,
			StartTime: u.StartTime,
			EndTime:   u.EndTime,
			IsActive:  IsActive(u, position),
			IsSung:    IsSung(u, position),
		}
	}
	return out
}

// Resolve 纯函数：同样的 position 与短语列表总是得到同样的结果
func Resolve(position int64, phrases []Phrase) Resolution {
	i := FindPhrase(position, phrases)
	if i == NoPhrase {
		return Resolution{PhraseIndex: NoPhrase}
	}
	return Resolution{PhraseIndex: i, Chars: CharStates(position, phrases[i])}
}
