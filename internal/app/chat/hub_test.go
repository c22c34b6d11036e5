package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/safety"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/user"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

func init() {
	logx.InitGlobalLogger(false)
}

// newTestClient registers a client without a live socket. Event handlers and
// the hub only touch the send queue, so no pumps are needed.
func newTestClient(deps Deps, u user.User) *Client {
	return NewClient(deps, nil, u)
}

// drainFrames empties the client's queue and decodes each frame.
func drainFrames(t *testing.T, c *Client) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case frame := <-c.send:
			var event Event
			if err := json.Unmarshal(frame, &event); err != nil {
				t.Fatalf("queued frame is not a valid event: %v", err)
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	hub := NewHub()
	deps := Deps{Hub: hub}

	sender := newTestClient(deps, user.User{ID: "user-a"})
	peer := newTestClient(deps, user.User{ID: "user-b"})
	outsider := newTestClient(deps, user.User{ID: "user-c"})

	hub.Join(sender.connID, "room-1")
	hub.Join(peer.connID, "room-1")
	hub.Join(outsider.connID, "room-2")

	event, err := NewEvent(EventReceiveMessage, "room-1", "user-a", nil)
	if err != nil {
		t.Fatal(err)
	}
	hub.BroadcastExceptSender("room-1", sender.connID, event)

	if got := drainFrames(t, sender); len(got) != 0 {
		t.Fatalf("sender received %d events, want 0", len(got))
	}
	if got := drainFrames(t, outsider); len(got) != 0 {
		t.Fatalf("outsider received %d events, want 0", len(got))
	}

	got := drainFrames(t, peer)
	if len(got) != 1 {
		t.Fatalf("peer received %d events, want 1", len(got))
	}
	if got[0].Type != EventReceiveMessage || got[0].RoomID != "room-1" {
		t.Fatalf("peer received %+v", got[0])
	}
}

func TestBroadcastSkipsFullQueue(t *testing.T) {
	hub := NewHub()
	deps := Deps{Hub: hub}

	sender := newTestClient(deps, user.User{ID: "user-a"})
	slow := newTestClient(deps, user.User{ID: "user-b"})

	hub.Join(sender.connID, "room-1")
	hub.Join(slow.connID, "room-1")

	for slow.enqueue([]byte("{}")) {
	}

	event, err := NewEvent(EventReceiveMessage, "room-1", "user-a", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Must return without blocking and without panicking.
	hub.BroadcastExceptSender("room-1", sender.connID, event)
}

func TestLeaveAllEmptiesMembership(t *testing.T) {
	hub := NewHub()
	deps := Deps{Hub: hub}

	c := newTestClient(deps, user.User{ID: "user-a"})
	hub.Join(c.connID, "room-1")
	hub.Join(c.connID, "room-2")

	if hub.RoomSize("room-1") != 1 || hub.RoomSize("room-2") != 1 {
		t.Fatal("join did not take effect")
	}

	hub.LeaveAll(c.connID)

	if hub.RoomSize("room-1") != 0 || hub.RoomSize("room-2") != 0 {
		t.Fatal("rooms still have members after LeaveAll")
	}
	if hub.ConnCount() != 1 {
		t.Fatal("LeaveAll must keep the connection registered")
	}
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub()
	deps := Deps{Hub: hub}

	c := newTestClient(deps, user.User{ID: "user-a"})
	other := newTestClient(deps, user.User{ID: "user-b"})

	hub.Join(c.connID, "room-1")
	hub.Join(other.connID, "room-1")
	hub.Join(c.connID, "room-2")

	hub.unregister(c)

	if hub.ConnCount() != 1 {
		t.Fatalf("conn count = %d, want 1", hub.ConnCount())
	}
	if hub.RoomSize("room-1") != 1 {
		t.Fatalf("room-1 size = %d, want 1", hub.RoomSize("room-1"))
	}
	if hub.RoomSize("room-2") != 0 {
		t.Fatalf("room-2 size = %d, want 0", hub.RoomSize("room-2"))
	}
}

func TestEnqueueAfterCloseIsRefused(t *testing.T) {
	hub := NewHub()
	c := newTestClient(Deps{Hub: hub}, user.User{ID: "user-a"})

	if !c.enqueue([]byte("{}")) {
		t.Fatal("enqueue on open client failed")
	}

	c.closeSend()
	c.closeSend()

	if c.enqueue([]byte("{}")) {
		t.Fatal("enqueue after closeSend must be refused")
	}
}

// memMessageStore persists appends in memory, seeding the read set like the
// real store.
type memMessageStore struct {
	mu     sync.Mutex
	nextID int64
	stored []message.Message
}

func (s *memMessageStore) Append(_ context.Context, m message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m.ID = s.nextID
	m.ReadBy = []string{m.SenderID}
	s.stored = append(s.stored, m)
	return m, nil
}

func (s *memMessageStore) MarkRead(_ context.Context, roomID, readerID string, messageIDs ...int64) error {
	return nil
}

func (s *memMessageStore) Recent(_ context.Context, roomID string, pageIndex, pageSize int) ([]message.Message, error) {
	return nil, nil
}

func (s *memMessageStore) LastMessage(_ context.Context, roomID string) (message.Message, bool, error) {
	return message.Message{}, false, nil
}

func (s *memMessageStore) History(_ context.Context, roomID string, filter message.HistoryFilter, pageIndex, pageSize int) (int64, []message.Message, error) {
	return 0, nil, nil
}

func (s *memMessageStore) Unread(_ context.Context, userID string) ([]message.Message, error) {
	return nil, nil
}

func (s *memMessageStore) UnreadInRoom(_ context.Context, roomID, userID string) ([]message.Message, error) {
	return nil, nil
}

func (s *memMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

// memUserDirectory serves fixed accounts.
type memUserDirectory struct {
	users map[string]user.User
}

func (d *memUserDirectory) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := d.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

// pairChecker treats exactly one unordered pair as friends.
type pairChecker struct {
	a, b string
}

func (c pairChecker) IsFriend(_ context.Context, userA, userB string) (bool, error) {
	return (userA == c.a && userB == c.b) || (userA == c.b && userB == c.a), nil
}

// nopAudit satisfies the audit sink for tests.
type nopAudit struct{}

func (nopAudit) Record(context.Context, string, string, string, message.Kind) error {
	return nil
}

func sendPipelineDeps(store *memMessageStore, friendA, friendB string, users ...user.User) Deps {
	directory := &memUserDirectory{users: make(map[string]user.User)}
	for _, u := range users {
		directory.users[u.ID] = u
	}

	return Deps{
		Hub:      NewHub(),
		Pipeline: safety.NewPipeline(safety.NewFilter(nil), pairChecker{a: friendA, b: friendB}, nopAudit{}),
		Messages: store,
		Users:    directory,
	}
}

func TestSendMessageBetweenFriendsIsStoredAndDelivered(t *testing.T) {
	store := &memMessageStore{}
	alice := user.User{ID: "user-a", Role: user.RoleCustomer}
	bob := user.User{ID: "user-b", Role: user.RoleCustomer}
	deps := sendPipelineDeps(store, alice.ID, bob.ID, alice, bob)

	sender := newTestClient(deps, alice)
	receiver := newTestClient(deps, bob)

	roomID := message.DirectRoomID(alice.ID, bob.ID)
	deps.Hub.Join(sender.connID, roomID)
	deps.Hub.Join(receiver.connID, roomID)

	payload, _ := json.Marshal(SendMessagePayload{
		ReceiverID: bob.ID,
		Kind:       message.KindText,
		Body:       "hello there",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		TempID:  "tmp-1",
		Payload: payload,
	})

	if store.count() != 1 {
		t.Fatalf("stored %d messages, want 1", store.count())
	}

	acks := drainFrames(t, sender)
	if len(acks) != 1 || acks[0].Type != EventSendAck {
		t.Fatalf("sender events = %+v, want one SEND_ACK", acks)
	}
	if acks[0].TempID != "tmp-1" {
		t.Fatalf("ack temp id = %q, want tmp-1", acks[0].TempID)
	}

	received := drainFrames(t, receiver)
	if len(received) != 1 || received[0].Type != EventReceiveMessage {
		t.Fatalf("receiver events = %+v, want one RECEIVE_MESSAGE", received)
	}

	var delivered message.Message
	if err := json.Unmarshal(received[0].Payload, &delivered); err != nil {
		t.Fatal(err)
	}
	if delivered.RoomID != roomID || delivered.Body != "hello there" {
		t.Fatalf("delivered message = %+v", delivered)
	}
	if !delivered.HasRead(alice.ID) {
		t.Fatal("read set must be seeded with the sender")
	}
}

func TestSendMessageToNonFriendIsRejectedBeforePersistence(t *testing.T) {
	store := &memMessageStore{}
	alice := user.User{ID: "user-a", Role: user.RoleCustomer}
	mallory := user.User{ID: "user-m", Role: user.RoleCustomer}
	// Friend edge exists between two other users only.
	deps := sendPipelineDeps(store, "user-x", "user-y", alice, mallory)

	sender := newTestClient(deps, alice)
	receiver := newTestClient(deps, mallory)

	roomID := message.DirectRoomID(alice.ID, mallory.ID)
	deps.Hub.Join(sender.connID, roomID)
	deps.Hub.Join(receiver.connID, roomID)

	payload, _ := json.Marshal(SendMessagePayload{
		ReceiverID: mallory.ID,
		Kind:       message.KindText,
		Body:       "hello?",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		TempID:  "tmp-9",
		Payload: payload,
	})

	if store.count() != 0 {
		t.Fatal("rejected message must not be persisted")
	}

	if got := drainFrames(t, receiver); len(got) != 0 {
		t.Fatalf("receiver got %d events for a rejected message, want 0", len(got))
	}

	failures := drainFrames(t, sender)
	if len(failures) != 1 || failures[0].Type != EventSendFailed {
		t.Fatalf("sender events = %+v, want one SEND_FAILED", failures)
	}
	var errPayload ErrorPayload
	if err := json.Unmarshal(failures[0].Payload, &errPayload); err != nil {
		t.Fatal(err)
	}
	if errPayload.Code != errs.ErrNotFriends {
		t.Fatalf("failure code = %d, want %d", errPayload.Code, errs.ErrNotFriends)
	}
}

func TestSendMessageStaffBypassesFriendGate(t *testing.T) {
	store := &memMessageStore{}
	customer := user.User{ID: "user-a", Role: user.RoleCustomer}
	agent := user.User{ID: "staff-1", Role: user.RoleStaff}
	deps := sendPipelineDeps(store, "user-x", "user-y", customer, agent)

	sender := newTestClient(deps, customer)

	payload, _ := json.Marshal(SendMessagePayload{
		ReceiverID: agent.ID,
		Kind:       message.KindText,
		Body:       "need help with my order",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 1 {
		t.Fatal("message to staff must be stored despite missing friend edge")
	}

	acks := drainFrames(t, sender)
	if len(acks) != 1 || acks[0].Type != EventSendAck {
		t.Fatalf("sender events = %+v, want one SEND_ACK", acks)
	}
}

// memGroups treats the listed users as members of each group room.
type memGroups map[string][]string

func (g memGroups) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	for _, id := range g[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// failureCode decodes the business code of a SEND_FAILED event.
func failureCode(t *testing.T, event Event) int {
	t.Helper()

	if event.Type != EventSendFailed {
		t.Fatalf("event type = %s, want %s", event.Type, EventSendFailed)
	}
	var payload ErrorPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	return payload.Code
}

func TestSendToDirectRoomWithoutReceiverStillRunsFriendGate(t *testing.T) {
	store := &memMessageStore{}
	alice := user.User{ID: "user-a", Role: user.RoleCustomer}
	mallory := user.User{ID: "user-m", Role: user.RoleCustomer}
	// Friend edge exists between two other users only.
	deps := sendPipelineDeps(store, "user-x", "user-y", alice, mallory)

	sender := newTestClient(deps, alice)
	receiver := newTestClient(deps, mallory)

	roomID := message.DirectRoomID(alice.ID, mallory.ID)
	deps.Hub.Join(sender.connID, roomID)
	deps.Hub.Join(receiver.connID, roomID)

	// Addressing the direct room by id instead of by receiver must not
	// sidestep the gate.
	payload, _ := json.Marshal(SendMessagePayload{
		RoomID: roomID,
		Kind:   message.KindText,
		Body:   "hello?",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		TempID:  "tmp-2",
		Payload: payload,
	})

	if store.count() != 0 {
		t.Fatalf("stored %d message(s) into a direct room between non-friends, want 0", store.count())
	}
	if got := drainFrames(t, receiver); len(got) != 0 {
		t.Fatalf("receiver got %d events for a rejected message, want 0", len(got))
	}

	failures := drainFrames(t, sender)
	if len(failures) != 1 {
		t.Fatalf("sender events = %+v, want one SEND_FAILED", failures)
	}
	if code := failureCode(t, failures[0]); code != errs.ErrNotFriends {
		t.Fatalf("failure code = %d, want %d", code, errs.ErrNotFriends)
	}
}

func TestSendToDirectRoomWithoutReceiverDerivesPeer(t *testing.T) {
	store := &memMessageStore{}
	alice := user.User{ID: "user-a", Role: user.RoleCustomer}
	bob := user.User{ID: "user-b", Role: user.RoleCustomer}
	deps := sendPipelineDeps(store, alice.ID, bob.ID, alice, bob)

	sender := newTestClient(deps, alice)

	payload, _ := json.Marshal(SendMessagePayload{
		RoomID: message.DirectRoomID(alice.ID, bob.ID),
		Kind:   message.KindText,
		Body:   "hi",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 1 {
		t.Fatalf("stored %d messages, want 1", store.count())
	}

	store.mu.Lock()
	stored := store.stored[0]
	store.mu.Unlock()
	if stored.ReceiverID != bob.ID {
		t.Fatalf("receiver id = %q, want %q", stored.ReceiverID, bob.ID)
	}

	acks := drainFrames(t, sender)
	if len(acks) != 1 || acks[0].Type != EventSendAck {
		t.Fatalf("sender events = %+v, want one SEND_ACK", acks)
	}
}

func TestSendToForeignDirectRoomIsRejected(t *testing.T) {
	store := &memMessageStore{}
	eve := user.User{ID: "user-e", Role: user.RoleCustomer}
	deps := sendPipelineDeps(store, "user-x", "user-y", eve)

	sender := newTestClient(deps, eve)

	payload, _ := json.Marshal(SendMessagePayload{
		RoomID: message.DirectRoomID("user-x", "user-y"),
		Kind:   message.KindText,
		Body:   "let me in",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 0 {
		t.Fatal("outsider message into a foreign direct room must not be persisted")
	}

	failures := drainFrames(t, sender)
	if len(failures) != 1 {
		t.Fatalf("sender events = %+v, want one SEND_FAILED", failures)
	}
	if code := failureCode(t, failures[0]); code != errs.ErrRoomIDInvalid {
		t.Fatalf("failure code = %d, want %d", code, errs.ErrRoomIDInvalid)
	}
}

func TestSendToGroupRoomRequiresMembership(t *testing.T) {
	store := &memMessageStore{}
	member := user.User{ID: "user-a", Role: user.RoleCustomer}
	outsider := user.User{ID: "user-b", Role: user.RoleCustomer}
	deps := sendPipelineDeps(store, "user-x", "user-y", member, outsider)
	deps.Groups = memGroups{"room-g": {member.ID}}

	in := newTestClient(deps, member)
	out := newTestClient(deps, outsider)

	payload, _ := json.Marshal(SendMessagePayload{
		RoomID: "room-g",
		Kind:   message.KindText,
		Body:   "hello group",
	})

	out.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 0 {
		t.Fatal("non-member message into a group room must not be persisted")
	}
	failures := drainFrames(t, out)
	if len(failures) != 1 {
		t.Fatalf("outsider events = %+v, want one SEND_FAILED", failures)
	}
	if code := failureCode(t, failures[0]); code != errs.ErrRoomIDInvalid {
		t.Fatalf("failure code = %d, want %d", code, errs.ErrRoomIDInvalid)
	}

	in.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 1 {
		t.Fatalf("stored %d messages from a member, want 1", store.count())
	}
}

func TestKickArmsSessionKickedCloseFrame(t *testing.T) {
	hub := NewHub()
	c := newTestClient(Deps{Hub: hub}, user.User{ID: "user-a"})

	c.Kick("gone")

	if c.enqueue([]byte("{}")) {
		t.Fatal("enqueue after Kick must be refused")
	}

	want := websocket.FormatCloseMessage(WsCloseCodeSessionKicked, "gone")
	if !bytes.Equal(c.closeFrame, want) {
		t.Fatalf("close frame = %v, want %v", c.closeFrame, want)
	}

	// A second kick must not panic on the closed channel.
	c.Kick("again")
}

func TestShutdownKicksEveryConnection(t *testing.T) {
	hub := NewHub()
	a := newTestClient(Deps{Hub: hub}, user.User{ID: "user-a"})
	b := newTestClient(Deps{Hub: hub}, user.User{ID: "user-b"})
	hub.Join(a.connID, "room-1")

	hub.Shutdown()

	if hub.ConnCount() != 0 {
		t.Fatalf("conn count = %d, want 0", hub.ConnCount())
	}
	for _, c := range []*Client{a, b} {
		if c.enqueue([]byte("{}")) {
			t.Fatalf("enqueue on %s accepted after shutdown", c.connID)
		}
		if c.closeFrame == nil {
			t.Fatalf("connection %s was not kicked", c.connID)
		}
	}
}

func TestSendMessageInvalidKindFails(t *testing.T) {
	store := &memMessageStore{}
	alice := user.User{ID: "user-a"}
	deps := sendPipelineDeps(store, "user-a", "user-b", alice)

	sender := newTestClient(deps, alice)

	payload, _ := json.Marshal(SendMessagePayload{
		ReceiverID: "user-b",
		Kind:       message.Kind("sticker"),
		Body:       "x",
	})
	sender.handleSendMessage(context.Background(), Event{
		Type:    EventSendMessage,
		Payload: payload,
	})

	if store.count() != 0 {
		t.Fatal("invalid kind must not be persisted")
	}

	failures := drainFrames(t, sender)
	if len(failures) != 1 || failures[0].Type != EventSendFailed {
		t.Fatalf("sender events = %+v, want one SEND_FAILED", failures)
	}
}
