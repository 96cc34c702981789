// Package keys lists the host keypad codes the emulator understands. The host
// UI translates whatever input it has into these.
package keys

import "fmt"

// Code is one key of the host keypad.
type Code int

const (
	Key0 Code = iota
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyMenu
	KeyUp
	KeyDown
	KeyExit
	KeyStar
	KeyF
	KeyPTT
	KeySide1
	KeySide2
	KeyInvalid
)

var names = [...]string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"MENU", "UP", "DOWN", "EXIT", "*", "F", "PTT", "SIDE1", "SIDE2",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("key(%d)", int(c))
}

// Event is a change of one key's state.
type Event struct {
	Code    Code
	Pressed bool
	Held    bool
}
