package controller

import "time"

// EventType classifies controller events.
type EventType string

const (
	EventButton    EventType = "BUTTON"
	EventCommand   EventType = "COMMAND"
	EventLinkState EventType = "LINK_STATE"
)

// Event source values.
const (
	SourceButton   = "button"
	SourceRemote   = "remote"
	SourceSchedule = "schedule"
)

// Event is something that happened during a tick and is worth
// publishing.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    string // origin of a command
	Button    string // button name for EventButton
	Command   string // command name for EventCommand
	State     string // link state for EventLinkState, previous in From
	From      string
	Err       string // command send failure, if any
}
