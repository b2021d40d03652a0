package models

type Button struct {
	Label        string `json:"label"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Keyboard is an inline button layout, one slice per row.
type Keyboard [][]Button

type MessageOptions struct {
	HTML     bool
	Keyboard Keyboard
}

// Action is one outbound call for the messaging collaborator.
type Action interface {
	isAction()
}

type SendText struct {
	ChatID  int64
	Text    string
	Options MessageOptions
	// Transient messages are deleted once the rest of the batch is delivered.
	Transient bool
}

// SendImage carries either rendered bytes or a remote URL.
type SendImage struct {
	ChatID  int64
	Image   []byte
	URL     string
	Caption string
	Options MessageOptions
}

type EditText struct {
	ChatID    int64
	MessageID int
	Text      string
	Options   MessageOptions
}

type DeleteMessage struct {
	ChatID    int64
	MessageID int
}

type AckCallback struct {
	CallbackID string
}

func (SendText) isAction()      {}
func (SendImage) isAction()     {}
func (EditText) isAction()      {}
func (DeleteMessage) isAction() {}
func (AckCallback) isAction()   {}
