/*
Package message defines the persisted chat message and its store.

Messages are immutable after creation except for the read-tracking set,
which only grows and only through idempotent add-reader operations. The
generated id is time-ordered and is the sole ordering key for recency and
history queries.
*/
package message

import "time"

// Kind classifies a message body.
type Kind string

// Message kinds.
const (
	KindText   Kind = "text"
	KindEmoji  Kind = "emoji"
	KindImage  Kind = "image"
	KindFile   Kind = "file"
	KindSystem Kind = "system"
	KindCard   Kind = "card"
)

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindEmoji, KindImage, KindFile, KindSystem, KindCard:
		return true
	}
	return false
}

// CardOption is one actionable entry on a service card: a label shown to the
// user, the resource path the client should call, and the HTTP verb to use.
type CardOption struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Verb   string `json:"verb"`
}

// ServiceCard is the structured payload attached to a direct message whose
// body matched a service trigger phrase.
type ServiceCard struct {
	Options []CardOption `json:"options"`
}

// Message is one persisted chat message.
//
// Card is nil for every message without a service card; absence is a fact of
// the type, not a cleared-out field. Group messages never carry a card.
type Message struct {
	ID       int64  `json:"id"`
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`

	// ReceiverID is set for direct messages only; group messages address
	// the room.
	ReceiverID string `json:"receiverId,omitempty"`

	Kind     Kind   `json:"kind"`
	Body     string `json:"body"`
	FileName string `json:"fileName,omitempty"`

	Card *ServiceCard `json:"card,omitempty"`

	// ReadBy is the set of user ids that acknowledged the message. The
	// sender is seeded into it at creation.
	ReadBy []string `json:"readBy"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsDirect reports whether the message addresses a single receiver.
func (m Message) IsDirect() bool {
	return m.ReceiverID != ""
}

// HasRead reports whether userID is in the read-tracking set.
func (m Message) HasRead(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
