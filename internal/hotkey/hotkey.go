// Package hotkey parses key combinations such as "Ctrl+Alt+A" into a
// canonical form, so clips can be looked up by whatever the window manager
// binding passes along.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid hotkey")

type Modifiers uint8

const (
	Ctrl Modifiers = 1 << iota
	Alt
	Shift
	Super
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{Ctrl, "Ctrl"},
	{Alt, "Alt"},
	{Shift, "Shift"},
	{Super, "Super"},
}

type Hotkey struct {
	Mods Modifiers
	Key  string
}

// Parse reads a "+"-separated combination of modifiers and exactly one key.
func Parse(s string) (Hotkey, error) {
	if strings.TrimSpace(s) == "" {
		return Hotkey{}, fmt.Errorf("%w: empty hotkey string", ErrInvalid)
	}

	var hk Hotkey

	for _, part := range strings.Split(s, "+") {
		part = strings.ToLower(strings.TrimSpace(part))

		switch part {
		case "ctrl", "control":
			hk.Mods |= Ctrl
		case "alt":
			hk.Mods |= Alt
		case "shift":
			hk.Mods |= Shift
		case "super", "meta", "win":
			hk.Mods |= Super
		default:
			if hk.Key != "" {
				return Hotkey{}, fmt.Errorf("%w: multiple key codes in hotkey: %s", ErrInvalid, s)
			}
			key, ok := keyName(part)
			if !ok {
				return Hotkey{}, fmt.Errorf("%w: unknown key: %s", ErrInvalid, part)
			}
			hk.Key = key
		}
	}

	if hk.Key == "" {
		return Hotkey{}, fmt.Errorf("%w: no key code in hotkey: %s", ErrInvalid, s)
	}

	return hk, nil
}

// Normalize returns the canonical spelling of s.
func Normalize(s string) (string, error) {
	hk, err := Parse(s)
	if err != nil {
		return "", err
	}
	return hk.String(), nil
}

func (h Hotkey) String() string {
	parts := make([]string, 0, 5)
	for _, m := range modifierNames {
		if h.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, h.Key)
	return strings.Join(parts, "+")
}

func keyName(s string) (string, bool) {
	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'a' && c <= 'z':
			return strings.ToUpper(s), true
		case c >= '0' && c <= '9':
			return s, true
		}
		return "", false
	}

	if len(s) >= 2 && s[0] == 'f' {
		switch s[1:] {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12":
			return strings.ToUpper(s), true
		}
	}

	switch s {
	case "space":
		return "Space", true
	case "enter", "return":
		return "Enter", true
	case "escape", "esc":
		return "Escape", true
	case "backspace":
		return "Backspace", true
	case "tab":
		return "Tab", true
	case "up":
		return "Up", true
	case "down":
		return "Down", true
	case "left":
		return "Left", true
	case "right":
		return "Right", true
	}

	return "", false
}
