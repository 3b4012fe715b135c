package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-demo/watchroom/internal/dto/response"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/session"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server messages
	MessageTypeSendMessage    MessageType = "send_message"
	MessageTypeSendReaction   MessageType = "send_reaction"
	MessageTypeUpdatePlayback MessageType = "update_playback"
	MessageTypeLeave          MessageType = "leave"
	MessageTypePing           MessageType = "ping"

	// Server -> Client messages
	MessageTypeRoomState MessageType = "room_state"
	MessageTypeRoomLeft  MessageType = "room_left"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
	MessageTypeAck       MessageType = "ack"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// SendMessagePayload represents send message payload
type SendMessagePayload struct {
	Text string `json:"text"`
}

// SendReactionPayload represents send reaction payload
type SendReactionPayload struct {
	Emoji string `json:"emoji"`
}

// UpdatePlaybackPayload represents update playback payload
type UpdatePlaybackPayload struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
}

// RoomStatePayload is the full view of the room pushed after every change
type RoomStatePayload struct {
	RoomID       string                          `json:"room_id"`
	Room         *response.RoomResponse          `json:"room"`
	RoomMissing  bool                            `json:"room_missing"`
	Participants []*response.ParticipantResponse `json:"participants"`
	Messages     []*response.MessageResponse     `json:"messages"`
	Joined       bool                            `json:"joined"`
	JoinError    *response.ErrorInfo             `json:"join_error,omitempty"`
	Version      uint64                          `json:"version"`
}

// NewRoomStatePayload converts a session view to its wire form
func NewRoomStatePayload(v session.View) *RoomStatePayload {
	p := &RoomStatePayload{
		RoomID:       v.RoomID,
		Room:         response.NewRoomResponse(v.Room),
		RoomMissing:  v.RoomMissing,
		Participants: response.NewParticipantListResponse(v.Participants),
		Messages:     response.NewMessageListResponse(v.Messages).Messages,
		Joined:       v.Joined,
		Version:      v.Version,
	}
	if v.JoinErr != nil {
		p.JoinError = response.NewErrorInfo(v.JoinErr)
	}
	return p
}

// RoomLeftPayload represents room left confirmation
type RoomLeftPayload struct {
	RoomID string `json:"room_id"`
}

// ErrorPayload represents error message
type ErrorPayload struct {
	Code    int            `json:"code"`
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
	Details interface{}    `json:"details,omitempty"`
}

// AckPayload represents acknowledgement
type AckPayload struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
}

// NewMessage creates a new message
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewErrorMessage creates an error frame from err. Session sentinels map
// to conflict errors; anything unrecognized is reported as internal.
func NewErrorMessage(err error, requestID string) (*Message, error) {
	switch {
	case errors.Is(err, session.ErrNotOpen), errors.Is(err, session.ErrClosed):
		err = apperrors.ErrRoomClosed.WithMessage("Room is not open on this connection")
	}

	info := response.NewErrorInfo(err)
	msg, mErr := NewMessage(MessageTypeError, &ErrorPayload{
		Code:    info.Code,
		Kind:    info.Kind,
		Message: info.Message,
		Details: info.Details,
	})
	if mErr != nil {
		return nil, mErr
	}
	msg.RequestID = requestID
	return msg, nil
}

// ParsePayload parses message payload into the given type
func (m *Message) ParsePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return errors.New("ws: empty payload")
	}
	return json.Unmarshal(m.Payload, v)
}

// MarshalFrame encodes the message for the wire
func (m *Message) MarshalFrame() ([]byte, error) {
	return json.Marshal(m)
}
