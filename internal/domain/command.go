package domain

import (
	"fmt"
	"strings"
	"time"
)

type Command string

const (
	CommandOn     Command = "on"
	CommandOff    Command = "off"
	CommandToggle Command = "toggle"
)

// ParseCommand trims and lowercases raw before matching it.
func ParseCommand(raw string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(raw))); c {
	case CommandOn, CommandOff, CommandToggle:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
	}
}

// Target returns the state the device should end up in.
func (c Command) Target(current bool) bool {
	switch c {
	case CommandOn:
		return true
	case CommandOff:
		return false
	default:
		return !current
	}
}

// StateChange describes one issued switch command.
type StateChange struct {
	EventID  string    `json:"event_id"`
	DeviceID string    `json:"device_id"`
	Command  Command   `json:"command"`
	Previous bool      `json:"previous"`
	State    bool      `json:"state"`
	Time     time.Time `json:"time"`
}

// Verb is "on" or "off" depending on the target state.
func (s StateChange) Verb() string {
	if s.State {
		return "on"
	}
	return "off"
}
