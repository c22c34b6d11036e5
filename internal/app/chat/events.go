/*
Package chat contains the real-time core: the connection hub, the per-socket
client, and the websocket event surface.
*/
package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
)

// EventType names a websocket event.
type EventType string

// Client-to-server events.
const (
	EventGoOnline    EventType = "GO_ONLINE"
	EventLeave       EventType = "LEAVE"
	EventJoin        EventType = "JOIN"
	EventSendMessage EventType = "SEND_MESSAGE"
	EventMarkRead    EventType = "MARK_READ"
)

// Server-to-client events.
const (
	EventOnlineAck      EventType = "ONLINE_ACK"
	EventReceiveMessage EventType = "RECEIVE_MESSAGE"
	EventSendAck        EventType = "SEND_ACK"
	EventSendFailed     EventType = "SEND_FAILED"
	EventReadMarker     EventType = "READ_MARKER"
	EventError          EventType = "ERROR"
)

// Pass-through signaling events, relayed verbatim to the room excluding the
// sender. One generic relay path serves them all.
const (
	EventApply       EventType = "APPLY"
	EventReply       EventType = "REPLY"
	EventCallOffer   EventType = "CALL_OFFER"
	EventCallAnswer  EventType = "CALL_ANSWER"
	EventCallICE     EventType = "CALL_ICE"
	EventCallHangup  EventType = "CALL_HANGUP"
	EventGroupNotice EventType = "GROUP_NOTICE"
)

var relayableEvents = map[EventType]struct{}{
	EventApply:       {},
	EventReply:       {},
	EventCallOffer:   {},
	EventCallAnswer:  {},
	EventCallICE:     {},
	EventCallHangup:  {},
	EventGroupNotice: {},
}

// Relayable reports whether t is forwarded to the room without inspection.
func (t EventType) Relayable() bool {
	_, ok := relayableEvents[t]
	return ok
}

// Event is the wire envelope for every websocket frame, in both directions.
// The payload stays opaque until the handler for the specific type decodes
// it, which is what lets relayed events pass through untouched.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	SenderID  string          `json:"senderId,omitempty"`
	TempID    string          `json:"tempId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewEvent builds an Event with the payload marshaled and the timestamp set.
func NewEvent(eventType EventType, roomID, senderID string, payload any) (Event, error) {
	event := Event{
		Type:      eventType,
		RoomID:    roomID,
		SenderID:  senderID,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		event.Payload = encoded
	}

	return event, nil
}

// SendMessagePayload is the body of a SEND_MESSAGE event. Setting ReceiverID
// makes it a direct message (the room id is derived); otherwise RoomID must
// name the group room.
type SendMessagePayload struct {
	RoomID     string       `json:"roomId,omitempty"`
	ReceiverID string       `json:"receiverId,omitempty"`
	Kind       message.Kind `json:"kind"`
	Body       string       `json:"body"`
	FileName   string       `json:"fileName,omitempty"`
}

// MarkReadPayload is the body of a MARK_READ event; the room comes from the
// envelope. An empty MessageIDs list acknowledges everything unread in the
// room addressed to the reader.
type MarkReadPayload struct {
	MessageIDs []int64 `json:"messageIds,omitempty"`
}

// ReadMarkerPayload is broadcast to the room after a successful mark-read.
type ReadMarkerPayload struct {
	ReaderID   string  `json:"readerId"`
	MessageIDs []int64 `json:"messageIds,omitempty"`
}

// ErrorPayload carries a business error to the client, for both ERROR and
// SEND_FAILED events.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OnlineAckPayload confirms a GO_ONLINE handshake.
type OnlineAckPayload struct {
	ConnID      string `json:"connId"`
	OnlineCount int    `json:"onlineCount"`
}
