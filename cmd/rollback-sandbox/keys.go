package main

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/rollback/input"
)

// Action is what a key does in the sandbox
type Action uint8

const (
	ActionNone Action = iota
	ActionLeft
	ActionRight
	ActionStop
	ActionJump
	ActionPause
	ActionMute
	ActionQuit
)

// bindings maps runes; special keys are handled in lookup
var bindings = map[rune]Action{
	'h': ActionLeft,
	'a': ActionLeft,
	'l': ActionRight,
	'd': ActionRight,
	's': ActionStop,
	'j': ActionStop,
	' ': ActionJump,
	'k': ActionJump,
	'w': ActionJump,
	'p': ActionPause,
	'm': ActionMute,
	'q': ActionQuit,
}

func lookup(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyLeft:
		return ActionLeft
	case tcell.KeyRight:
		return ActionRight
	case tcell.KeyDown:
		return ActionStop
	case tcell.KeyUp:
		return ActionJump
	case tcell.KeyCtrlC, tcell.KeyCtrlQ, tcell.KeyEscape:
		return ActionQuit
	case tcell.KeyRune:
		return bindings[ev.Rune()]
	}
	return ActionNone
}

// Terminals report presses and repeats but never releases, so a direction
// stays held until it times out, is reversed or is stopped
const (
	moveHold = 450 * time.Millisecond
	jumpHold = 120 * time.Millisecond
)

// keyboard is the local input source; only the main goroutine touches it
type keyboard struct {
	move      input.MoveDirection
	moveUntil time.Time
	jumpUntil time.Time
	now       func() time.Time
}

func newKeyboard() *keyboard {
	return &keyboard{now: time.Now}
}

func (k *keyboard) apply(a Action) {
	now := k.now()
	switch a {
	case ActionLeft:
		k.move, k.moveUntil = input.MoveLeft, now.Add(moveHold)
	case ActionRight:
		k.move, k.moveUntil = input.MoveRight, now.Add(moveHold)
	case ActionStop:
		k.move = input.MoveNone
	case ActionJump:
		k.jumpUntil = now.Add(jumpHold)
	}
}

// Sample implements input.Source
func (k *keyboard) Sample() input.Sample {
	now := k.now()
	s := input.Neutral
	if k.move != input.MoveNone && now.Before(k.moveUntil) {
		s.Move = k.move
	}
	if now.Before(k.jumpUntil) {
		s.Jump = input.JumpPressed
	}
	return s
}
