package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message is the JSON frame exchanged with the backend voice relay.
type Message struct {
	Type    string `json:"type"`
	CallSID string `json:"call_sid,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Frame types. Devices send invite/accept/reject/hangup; the relay sends
// invite/cancel/ringing/connected/disconnected/failed.
const (
	MsgInvite       = "invite"
	MsgAccept       = "accept"
	MsgReject       = "reject"
	MsgHangup       = "hangup"
	MsgCancel       = "cancel"
	MsgRinging      = "ringing"
	MsgConnected    = "connected"
	MsgDisconnected = "disconnected"
	MsgFailed       = "failed"
)

const writeTimeout = 10 * time.Second

// RelayVoice is a Voice transport speaking JSON over a websocket to the backend relay.
type RelayVoice struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	token string
	calls map[string]*relayCall

	writeMu sync.Mutex
	events  chan Event
}

func NewRelayVoice(url string, log *slog.Logger) *RelayVoice {
	if log == nil {
		log = slog.Default()
	}
	return &RelayVoice{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.With("component", "relay_voice"),
		calls:  make(map[string]*relayCall),
		events: make(chan Event, 32),
	}
}

func (v *RelayVoice) Events() <-chan Event { return v.events }

func (v *RelayVoice) Register(ctx context.Context, accessToken string) error {
	v.mu.Lock()
	if v.conn != nil && v.token == accessToken {
		v.mu.Unlock()
		return nil
	}
	old := v.conn
	v.conn = nil
	v.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	conn, resp, err := v.dialer.DialContext(ctx, v.url, h)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: relay returned %d", ErrInvalidToken, resp.StatusCode)
			case http.StatusForbidden, http.StatusConflict:
				return fmt.Errorf("%w: relay returned %d", ErrRejected, resp.StatusCode)
			}
		}
		return fmt.Errorf("dial relay: %w", err)
	}

	v.mu.Lock()
	v.conn = conn
	v.token = accessToken
	v.mu.Unlock()

	go v.readLoop(conn)
	return nil
}

func (v *RelayVoice) Unregister(_ context.Context, _ string) error {
	v.mu.Lock()
	conn := v.conn
	v.conn = nil
	v.token = ""
	v.mu.Unlock()
	if conn == nil {
		return nil
	}

	v.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "unregister"),
		time.Now().Add(writeTimeout))
	v.writeMu.Unlock()
	closeErr := conn.Close()
	v.finishAll()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}

// Connect places a call over the current registration, registering with
// accessToken first if the device is not connected.
func (v *RelayVoice) Connect(ctx context.Context, accessToken, destination string) (Call, error) {
	v.mu.Lock()
	registered := v.conn != nil
	v.mu.Unlock()
	if !registered {
		if err := v.Register(ctx, accessToken); err != nil {
			return nil, err
		}
	}
	call := v.track(uuid.NewString())
	if err := v.send(Message{Type: MsgInvite, CallSID: call.sid, To: destination}); err != nil {
		v.finish(call.sid, "")
		return nil, err
	}
	return call, nil
}

func (v *RelayVoice) send(m Message) error {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()
	if conn == nil {
		return errors.New("signaling: not registered")
	}
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}

func (v *RelayVoice) track(sid string) *relayCall {
	c := &relayCall{sid: sid, voice: v, events: make(chan CallEvent, 8)}
	v.mu.Lock()
	v.calls[sid] = c
	v.mu.Unlock()
	return c
}

func (v *RelayVoice) deliver(sid string, ev CallEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.calls[sid]
	if !ok {
		v.log.Debug("event for unknown call", "call_sid", sid, "type", ev.Type)
		return
	}
	select {
	case c.events <- ev:
	default:
		v.log.Warn("call event dropped", "call_sid", sid, "type", ev.Type)
	}
}

// finish delivers a last event, if any, and closes the call's event stream.
func (v *RelayVoice) finish(sid string, last CallEventType) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.calls[sid]
	if !ok {
		return
	}
	delete(v.calls, sid)
	if last != "" {
		select {
		case c.events <- CallEvent{Type: last}:
		default:
		}
	}
	close(c.events)
}

func (v *RelayVoice) readLoop(conn *websocket.Conn) {
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			v.connectionLost(conn, err)
			return
		}
		v.dispatch(m)
	}
}

func (v *RelayVoice) dispatch(m Message) {
	switch m.Type {
	case MsgInvite:
		v.events <- Event{Type: EventInviteReceived, Invite: &relayInvite{sid: m.CallSID, from: m.From, voice: v}}
	case MsgCancel:
		v.events <- Event{Type: EventInviteCancelled, SID: m.CallSID}
	case MsgRinging:
		v.deliver(m.CallSID, CallEvent{Type: CallRinging})
	case MsgConnected:
		v.deliver(m.CallSID, CallEvent{Type: CallConnected})
	case MsgDisconnected:
		v.deliver(m.CallSID, CallEvent{Type: CallDisconnected, Reason: m.Reason})
		v.finish(m.CallSID, "")
	case MsgFailed:
		v.deliver(m.CallSID, CallEvent{Type: CallConnectFailure, Reason: m.Reason})
		v.finish(m.CallSID, "")
	default:
		v.log.Warn("unknown relay frame", "type", m.Type)
	}
}

func (v *RelayVoice) connectionLost(conn *websocket.Conn, err error) {
	v.mu.Lock()
	current := v.conn == conn
	if current {
		v.conn = nil
		v.token = ""
	}
	v.mu.Unlock()
	if !current {
		return
	}

	v.log.Warn("relay connection lost", "err", err)
	v.finishAll()
	v.events <- Event{Type: EventUnregistered}
}

// finishAll ends every tracked call with a disconnected event.
func (v *RelayVoice) finishAll() {
	v.mu.Lock()
	sids := make([]string, 0, len(v.calls))
	for sid := range v.calls {
		sids = append(sids, sid)
	}
	v.mu.Unlock()
	for _, sid := range sids {
		v.finish(sid, CallDisconnected)
	}
}

type relayInvite struct {
	sid   string
	from  string
	voice *RelayVoice
}

func (i *relayInvite) SID() string  { return i.sid }
func (i *relayInvite) From() string { return i.from }

func (i *relayInvite) Accept(_ context.Context) (Call, error) {
	call := i.voice.track(i.sid)
	if err := i.voice.send(Message{Type: MsgAccept, CallSID: i.sid}); err != nil {
		i.voice.finish(i.sid, "")
		return nil, err
	}
	return call, nil
}

func (i *relayInvite) Reject(_ context.Context) error {
	return i.voice.send(Message{Type: MsgReject, CallSID: i.sid})
}

type relayCall struct {
	sid    string
	voice  *RelayVoice
	events chan CallEvent
}

func (c *relayCall) SID() string              { return c.sid }
func (c *relayCall) Events() <-chan CallEvent { return c.events }

func (c *relayCall) Disconnect(_ context.Context) error {
	err := c.voice.send(Message{Type: MsgHangup, CallSID: c.sid})
	c.voice.finish(c.sid, "")
	return err
}
