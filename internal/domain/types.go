package domain

import (
	"fmt"
	"time"
)

// ConnectionState models the live conversation lifecycle.
type ConnectionState string

const (
	ConnectionStateIdle         ConnectionState = "idle"
	ConnectionStateInitializing ConnectionState = "initializing"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateOpen         ConnectionState = "open"
	ConnectionStateClosing      ConnectionState = "closing"
	ConnectionStateClosed       ConnectionState = "closed"
	ConnectionStateErrored      ConnectionState = "errored"
)

// Terminal reports whether a session in this state can never be reopened.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateClosed || s == ConnectionStateErrored
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleStatus Role = "status"
)

// ChatMessage is one entry in a conversation log. Status messages narrate the
// connection lifecycle and are never sent to the remote.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Pending   bool      `json:"pending,omitempty"`
}

// GrammarAnnotation marks one issue over a specific text snapshot. Start and
// End are character offsets into that snapshot, which may be stale by the time
// the annotation is rendered or accepted.
type GrammarAnnotation struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
	Original   string `json:"original"`
}

// Key is the identity used by the ignored set.
func (a GrammarAnnotation) Key() string {
	return fmt.Sprintf("%d-%d-%s", a.Start, a.End, a.Error)
}

// ServerMessage is one decoded event from the live endpoint. Every field is
// optional and several may be set on the same message.
type ServerMessage struct {
	Audio            []string
	InputTranscript  string
	OutputTranscript string
	TurnComplete     bool
	Interrupted      bool
}

// MediaChunk is a realtime input frame sent to the live endpoint.
type MediaChunk struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Status summarizes the current conversation status.
type Status struct {
	State     ConnectionState `json:"state"`
	Active    bool            `json:"active"`
	SessionID string          `json:"sessionId,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Caret places the text cursor inside rendered HTML: the index of a
// top-level segment and a character offset within it.
type Caret struct {
	Segment int `json:"segment"`
	Offset  int `json:"offset"`
}

// DocumentView is the rendered writing workspace pushed to the UI.
type DocumentView struct {
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Annotations []GrammarAnnotation `json:"annotations"`
	Caret       Caret               `json:"caret"`
}
