package models

// Event is one inbound update from the chat transport.
type Event interface {
	Chat() int64
	User() int64
	isEvent()
}

type CommandEvent struct {
	Command   string
	ChatID    int64
	UserID    int64
	MessageID int
}

type CallbackEvent struct {
	CallbackID string
	Data       string
	ChatID     int64
	UserID     int64
	MessageID  int
}

type TextEvent struct {
	Text      string
	ChatID    int64
	UserID    int64
	MessageID int
}

func (e CommandEvent) Chat() int64  { return e.ChatID }
func (e CallbackEvent) Chat() int64 { return e.ChatID }
func (e TextEvent) Chat() int64     { return e.ChatID }

func (e CommandEvent) User() int64  { return e.UserID }
func (e CallbackEvent) User() int64 { return e.UserID }
func (e TextEvent) User() int64     { return e.UserID }

func (CommandEvent) isEvent()  {}
func (CallbackEvent) isEvent() {}
func (TextEvent) isEvent()     {}
