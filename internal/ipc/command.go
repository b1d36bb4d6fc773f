package ipc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"lyricsync/internal/engine"
)

// ParseCommand 把客户端发来的一行文本转换成引擎意图
//
//	play | pause | toggle | stop | rewind | forward | unhover
//	seek <ms> | seekpct <0..1> | jump <phrase>
//	hover <0..1> | drag <0..1> | move <0..1> | drop <0..1>
func ParseCommand(line string) (engine.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.Event{}, fmt.Errorf("empty command")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "play", "pause", "toggle", "stop", "rewind", "forward", "unhover":
		if len(args) != 0 {
			return engine.Event{}, fmt.Errorf("%s takes no arguments", name)
		}
		return engine.Simple(simpleCommands[name]), nil
	}

	if len(args) != 1 {
		return engine.Event{}, fmt.Errorf("%s expects one argument", name)
	}
	switch name {
	case "seek":
		ms, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return engine.Event{}, fmt.Errorf("invalid seek position %q: %w", args[0], err)
		}
		return engine.SeekIntent(ms), nil
	case "jump":
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return engine.Event{}, fmt.Errorf("invalid phrase index %q: %w", args[0], err)
		}
		return engine.JumpIntent(i), nil
	case "seekpct", "hover", "drag", "move", "drop":
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return engine.Event{}, fmt.Errorf("invalid fraction %q: %w", args[0], err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return engine.Event{}, fmt.Errorf("invalid fraction %q: not a finite number", args[0])
		}
		return engine.FractionIntent(fractionCommands[name], f), nil
	default:
		return engine.Event{}, fmt.Errorf("unknown command %q", name)
	}
}

var simpleCommands = map[string]engine.Kind{
	"play":    engine.IntentPlay,
	"pause":   engine.IntentPause,
	"toggle":  engine.IntentToggle,
	"stop":    engine.IntentStop,
	"rewind":  engine.IntentRewind,
	"forward": engine.IntentFastForward,
	"unhover": engine.IntentHoverEnd,
}

var fractionCommands = map[string]engine.Kind{
	"seekpct": engine.IntentSeekFraction,
	"hover":   engine.IntentHover,
	"drag":    engine.IntentDragStart,
	"move":    engine.IntentDragMove,
	"drop":    engine.IntentDragEnd,
}
