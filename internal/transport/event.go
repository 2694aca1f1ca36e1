package transport

import (
	"strings"
	"time"
)

// Kind is the normalized type of an inbound chat event.
type Kind string

const (
	KindCommand     Kind = "command"
	KindText        Kind = "text"
	KindDocument    Kind = "document"
	KindImage       Kind = "image"
	KindAudio       Kind = "audio"
	KindVideo       Kind = "video"
	KindButton      Kind = "button"
	KindInteractive Kind = "interactive"
	KindUnsupported Kind = "unsupported"
)

// Media points at an attachment held by the chat provider.
type Media struct {
	// ID is the provider's media id; URL is set when the provider already
	// gave a direct link.
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Event is one inbound message, normalized across transports.
type Event struct {
	// ID is the provider's message id, used for deduplication.
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	From      string    `json:"from"`
	Name      string    `json:"name,omitempty"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Command   string    `json:"command,omitempty"`
	Args      string    `json:"args,omitempty"`
	ButtonID  string    `json:"buttonId,omitempty"`
	Media     *Media    `json:"media,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Input returns the text the user chose: the button id when present,
// otherwise the typed text.
func (e Event) Input() string {
	if e.ButtonID != "" {
		return e.ButtonID
	}
	return strings.TrimSpace(e.Text)
}

// ParseCommand splits "!promo ABC" into ("!promo", "ABC"). Commands are
// matched case-insensitively and always start with "!".
func ParseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "!") || len(text) < 2 {
		return "", "", false
	}
	fields := strings.SplitN(text, " ", 2)
	command = strings.ToLower(fields[0])
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return command, args, true
}

// NewTextEvent builds a text or command event from a typed message.
func NewTextEvent(transport, id, from, name, text string, at time.Time) Event {
	ev := Event{ID: id, Transport: transport, From: from, Name: name, Kind: KindText, Text: text, Timestamp: at}
	if cmd, args, ok := ParseCommand(text); ok {
		ev.Kind = KindCommand
		ev.Command = cmd
		ev.Args = args
	}
	return ev
}
