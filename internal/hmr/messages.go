package hmr

import (
	"encoding/json"
	"fmt"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/types"
)

// MessageType identifies a live reload protocol message.
type MessageType string

const (
	MessageTypeInit   MessageType = "init"
	MessageTypeUpdate MessageType = "update"
	MessageTypeError  MessageType = "error"
)

// IncomingMessage is a client to server message.
type IncomingMessage struct {
	Type MessageType `json:"type"`
	Path string      `json:"path,omitempty"`
}

// Message is a server to client message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// UpdatePayload carries freshly compiled page output.
type UpdatePayload struct {
	Content string `json:"content"`
	Script  string `json:"script"`
	Style   string `json:"style,omitempty"`
}

// ErrorPayload carries a human-readable diagnostic.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ParseMessage decodes a client message.
func ParseMessage(data []byte) (IncomingMessage, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return IncomingMessage{}, fmt.Errorf("decoding client message: %w", err)
	}
	if msg.Type == "" {
		return IncomingMessage{}, fmt.Errorf("client message has no type")
	}
	return msg, nil
}

// NewUpdateMessage wraps compiled output in an update message.
func NewUpdateMessage(page types.CompiledPage) Message {
	return Message{
		Type: MessageTypeUpdate,
		Payload: UpdatePayload{
			Content: page.Content,
			Script:  page.Script,
			Style:   page.Style,
		},
	}
}

// NewErrorMessage renders err as an error message.
func NewErrorMessage(err error) Message {
	return Message{
		Type:    MessageTypeError,
		Payload: ErrorPayload{Message: hakaierrors.ClientMessage(err)},
	}
}

// NewDeletedMessage reports that a file backing the client's page is gone.
func NewDeletedMessage(path string) Message {
	return Message{
		Type:    MessageTypeError,
		Payload: ErrorPayload{Message: fmt.Sprintf("File %s has been deleted", path)},
	}
}
