package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/group"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/presence"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/safety"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/user"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 16384

	// MaxContentBytes caps the body of a single message.
	MaxContentBytes = 5000

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999
	// range) signaling that the session was replaced or ended by the server.
	WsCloseCodeSessionKicked = 4001
)

// UserDirectory resolves a user id to its account, used to learn the
// receiver's role before the friend gate runs.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Deps are the collaborators every client shares.
type Deps struct {
	Hub      *Hub
	Presence *presence.Registry
	Pipeline *safety.Pipeline
	Messages message.Store
	Users    UserDirectory
	Groups   group.Membership
}

// Client represents one active WebSocket connection. A connection starts
// anonymous to the presence registry and becomes a session only after a
// successful GO_ONLINE handshake.
type Client struct {
	deps Deps

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// connID is the opaque server-assigned connection id.
	connID string

	// associated authenticated user.
	user user.User

	// send is the buffered outbound queue drained by WritePump. sendMu and
	// sendClosed keep enqueue from writing to the channel after closeSend.
	// closeFrame, when set, is the close payload WritePump writes once the
	// queue drains; it is published before the channel close.
	send       chan []byte
	sendMu     sync.Mutex
	sendClosed bool
	closeFrame []byte

	// rooms mirrors the hub's membership for this connection. Mutated only
	// while holding the hub mutex.
	rooms map[string]struct{}

	// bound reports whether GO_ONLINE completed. Touched only from ReadPump.
	bound bool

	logger zerolog.Logger
}

// NewClient constructs a Client for a freshly upgraded connection and
// registers it with the hub. ReadPump and WritePump still need to be started
// by the caller.
func NewClient(deps Deps, wsConn *websocket.Conn, u user.User) *Client {
	connID := randx.ConnectionID()

	c := &Client{
		deps:   deps,
		conn:   wsConn,
		connID: connID,
		user:   u,
		send:   make(chan []byte, 256),
		rooms:  make(map[string]struct{}),
		logger: logx.Logger().With().
			Str("conn_id", connID).
			Str("user_id", u.ID).
			Logger(),
	}

	deps.Hub.register(c)
	return c
}

// ConnID returns the server-assigned connection id.
func (c *Client) ConnID() string {
	return c.connID
}

// enqueue queues a raw frame for delivery. It never blocks; false means the
// queue is full or the connection is shutting down and the frame was dropped.
func (c *Client) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend stops the outbound queue. Idempotent; WritePump drains what is
// already queued and then writes the close frame.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// ReadPump reads frames from the WebSocket connection until it drops. It
// refreshes the presence TTL on every pong and performs cleanup on exit.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if c.bound {
			c.deps.Presence.Touch(context.Background(), c.connID)
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInbound(frame)
	}
}

// cleanupOnDisconnect runs when ReadPump terminates for any reason: it
// removes the connection from every room, releases the presence binding, and
// closes the socket.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.deps.Hub.unregister(c)

	if c.bound {
		if userID := c.deps.Presence.Unbind(context.Background(), c.connID); userID != "" {
			c.logger.Info().Str("offline_user_id", userID).Msg("Presence released on disconnect.")
		}
		c.bound = false
	}

	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInbound dispatches one raw frame from the client.
func (c *Client) processInbound(frame []byte) {
	var event Event
	if err := json.Unmarshal(frame, &event); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	ctx := context.Background()

	switch event.Type {
	case EventGoOnline:
		c.handleGoOnline(ctx)

	case EventLeave:
		c.handleLeave(ctx)

	case EventJoin:
		c.handleJoin(ctx, event)

	case EventSendMessage:
		c.handleSendMessage(ctx, event)

	case EventMarkRead:
		c.handleMarkRead(ctx, event)

	default:
		if event.Type.Relayable() {
			event.SenderID = c.user.ID
			c.deps.Hub.BroadcastExceptSender(event.RoomID, c.connID, event)
			return
		}
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Client sent unsupported event type")
	}
}

// handleGoOnline binds the connection to the user in the presence registry.
// A user already online elsewhere is refused; the presence check is fail-open,
// so a registry outage admits the session rather than locking everyone out.
func (c *Client) handleGoOnline(ctx context.Context) {
	if c.bound {
		c.SendError(errs.NewError(errs.ErrAlreadyLoggedIn))
		return
	}

	if c.deps.Presence.IsOnline(ctx, c.user.ID) {
		c.SendError(errs.NewError(errs.ErrDuplicateSession))
		return
	}

	if err := c.deps.Presence.Bind(ctx, c.user.ID, c.connID); err != nil {
		c.logger.Error().Err(err).Msg("Presence bind failed")
		c.SendError(errs.NewError(errs.ErrUnknown, err))
		return
	}
	c.bound = true

	count, err := c.deps.Presence.OnlineCount(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Online count unavailable for ack")
	}

	c.SendEvent(EventOnlineAck, "", OnlineAckPayload{
		ConnID:      c.connID,
		OnlineCount: count,
	})
}

// handleLeave releases the presence binding and leaves every room while
// keeping the socket open. The client can GO_ONLINE again on the same
// connection.
func (c *Client) handleLeave(ctx context.Context) {
	if c.bound {
		c.deps.Presence.Unbind(ctx, c.connID)
		c.bound = false
	}
	c.deps.Hub.LeaveAll(c.connID)
}

// handleJoin subscribes the connection to a room. Direct rooms admit their
// two participants only; group rooms require membership.
func (c *Client) handleJoin(ctx context.Context, event Event) {
	if event.RoomID == "" {
		c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
		return
	}

	if a, b, direct := message.DirectRoomPeers(event.RoomID); direct {
		if a != c.user.ID && b != c.user.ID {
			c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
			return
		}
	} else if c.deps.Groups != nil {
		member, err := c.deps.Groups.IsMember(ctx, event.RoomID, c.user.ID)
		if err != nil {
			c.logger.Error().Err(err).Str("room_id", event.RoomID).Msg("Membership check failed")
			c.SendError(errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}
		if !member {
			c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
			return
		}
	}

	c.deps.Hub.Join(c.connID, event.RoomID)
}

// handleSendMessage validates, safety-checks, persists, and fans out one
// outgoing message. Rejections reach the sender only; nothing is persisted or
// delivered for a rejected message.
func (c *Client) handleSendMessage(ctx context.Context, event Event) {
	var payload SendMessagePayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid SEND_MESSAGE payload")
		return
	}

	if !payload.Kind.Valid() {
		c.sendFailed(event.TempID, errs.NewError(errs.ErrMessageKindInvalid))
		return
	}
	if len(payload.Body) > MaxContentBytes {
		c.sendFailed(event.TempID, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}
	if err := ValidateFileName(payload.Kind, payload.FileName); err != nil {
		c.sendFailed(event.TempID, err)
		return
	}

	roomID := payload.RoomID
	receiverID := payload.ReceiverID

	if receiverID == "" {
		if roomID == "" {
			c.sendFailed(event.TempID, errs.NewError(errs.ErrRoomIDInvalid))
			return
		}
		// A direct room id addressed without a receiver still names one:
		// the peer that is not the sender. Senders outside the pair are
		// refused before any further processing.
		if a, b, direct := message.DirectRoomPeers(roomID); direct {
			switch c.user.ID {
			case a:
				receiverID = b
			case b:
				receiverID = a
			default:
				c.sendFailed(event.TempID, errs.NewError(errs.ErrRoomIDInvalid))
				return
			}
		}
	}

	receiverStaff := false

	if receiverID != "" {
		roomID = message.DirectRoomID(c.user.ID, receiverID)

		receiver, err := c.deps.Users.GetByID(ctx, receiverID)
		if err != nil {
			c.logger.Warn().Err(err).Str("receiver_id", receiverID).
				Msg("Receiver lookup failed")
			c.sendFailed(event.TempID, errs.NewError(errs.ErrUserNotFound))
			return
		}
		receiverStaff = receiver.IsStaff()
	} else if c.deps.Groups != nil {
		member, err := c.deps.Groups.IsMember(ctx, roomID, c.user.ID)
		if err != nil {
			c.logger.Error().Err(err).Str("room_id", roomID).Msg("Membership check failed")
			c.sendFailed(event.TempID, errs.NewError(errs.ErrMessageStoreUnavailable))
			return
		}
		if !member {
			c.sendFailed(event.TempID, errs.NewError(errs.ErrRoomIDInvalid))
			return
		}
	}

	draft := message.Message{
		RoomID:     roomID,
		SenderID:   c.user.ID,
		ReceiverID: receiverID,
		Kind:       payload.Kind,
		Body:       payload.Body,
		FileName:   payload.FileName,
	}

	checked, rejection := c.deps.Pipeline.Process(ctx, draft, c.user.IsStaff(), receiverStaff)
	if rejection != nil {
		c.sendFailed(event.TempID, rejection)
		return
	}

	stored, err := c.deps.Messages.Append(ctx, checked)
	if err != nil {
		c.logger.Error().Err(err).Str("room_id", roomID).Msg("Message append failed")
		c.sendFailed(event.TempID, errs.NewError(errs.ErrMessageStoreUnavailable))
		return
	}

	c.sendAck(event.TempID, stored)

	out, buildErr := NewEvent(EventReceiveMessage, roomID, c.user.ID, stored)
	if buildErr != nil {
		c.logger.Error().Err(buildErr).Msg("Failed to build RECEIVE_MESSAGE event")
		return
	}
	c.deps.Hub.BroadcastExceptSender(roomID, c.connID, out)
}

// handleMarkRead records the read acknowledgment and tells the room.
func (c *Client) handleMarkRead(ctx context.Context, event Event) {
	if event.RoomID == "" {
		c.SendError(errs.NewError(errs.ErrRoomIDInvalid))
		return
	}

	var payload MarkReadPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid MARK_READ payload")
			return
		}
	}

	if err := c.deps.Messages.MarkRead(ctx, event.RoomID, c.user.ID, payload.MessageIDs...); err != nil {
		c.logger.Error().Err(err).Str("room_id", event.RoomID).Msg("Mark read failed")
		c.SendError(errs.NewError(errs.ErrMessageStoreUnavailable))
		return
	}

	marker, err := NewEvent(EventReadMarker, event.RoomID, c.user.ID, ReadMarkerPayload{
		ReaderID:   c.user.ID,
		MessageIDs: payload.MessageIDs,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build READ_MARKER event")
		return
	}
	c.deps.Hub.BroadcastExceptSender(event.RoomID, c.connID, marker)
}

// WritePump drains the send channel to the WebSocket connection and keeps the
// heartbeat alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame from the send channel. Returns false when
// the pump should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		// Safe without the mutex: closeFrame is published before the channel
		// close that brought us here.
		closeFrame := c.closeFrame
		if closeFrame == nil {
			closeFrame = []byte{}
		}
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeFrame); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePing sends the periodic heartbeat ping. Returns false when the pump
// should terminate.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// SendEvent builds and queues a server-to-client event.
func (c *Client) SendEvent(eventType EventType, roomID string, payload any) {
	event, err := NewEvent(eventType, roomID, "", payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(eventType)).
			Msg("Failed to build outbound event")
		return
	}

	frame, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling outbound event")
		return
	}

	if !c.enqueue(frame) {
		c.logger.Warn().Int("queue_len", len(c.send)).
			Str("event_type", string(eventType)).
			Msg("Client send channel full, dropping event")
	}
}

// SendError queues an ERROR event carrying the business code.
func (c *Client) SendError(customErr *errs.CustomError) {
	c.SendEvent(EventError, "", ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// sendFailed queues a SEND_FAILED event echoing the temp id of the rejected
// message so the client can mark the right bubble.
func (c *Client) sendFailed(tempID string, customErr *errs.CustomError) {
	event, err := NewEvent(EventSendFailed, "", "", ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build SEND_FAILED event")
		return
	}
	event.TempID = tempID

	frame, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		c.logger.Error().Err(marshalErr).Msg("Error marshaling SEND_FAILED event")
		return
	}

	if !c.enqueue(frame) {
		c.logger.Warn().Msg("Client send channel full, dropping SEND_FAILED")
	}
}

// sendAck queues a SEND_ACK carrying the authoritative stored message and the
// client's temp id.
func (c *Client) sendAck(tempID string, stored message.Message) {
	event, err := NewEvent(EventSendAck, stored.RoomID, stored.SenderID, stored)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build SEND_ACK event")
		return
	}
	event.TempID = tempID

	frame, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		c.logger.Error().Err(marshalErr).Msg("Error marshaling SEND_ACK event")
		return
	}

	if !c.enqueue(frame) {
		c.logger.Warn().Msg("Client send channel full, dropping SEND_ACK")
	}
}

// Kick ends the session server-side. It arms a Close Frame with the custom
// code 4001 and shuts the outbound queue; WritePump delivers the frame after
// draining what is already queued. Idempotent.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Kicking connection.")

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.closeFrame = websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)
	c.sendClosed = true
	close(c.send)
}
