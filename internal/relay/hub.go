// Package relay is the backend end of device signaling: registered softphones
// hold a websocket here and the hub routes call setup between them.
package relay

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voice-softphone/internal/auth"
	"voice-softphone/internal/signaling"
	"voice-softphone/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
	slotOpWait = 3 * time.Second
)

// Failure reasons sent with a "failed" frame.
const (
	ReasonUnavailable = "unavailable"
	ReasonBusy        = "busy"
	ReasonDeclined    = "declined"
	ReasonInvalid     = "invalid"
)

type callState int

const (
	stateRinging callState = iota
	stateConnected
)

type relayCall struct {
	sid    string
	caller string
	callee string
	state  callState
}

type peer struct {
	userID string
	phone  string
	conn   *websocket.Conn
	send   chan signaling.Message
	once   sync.Once
	done   chan struct{}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// Hub tracks registered devices and in-progress calls. One device per user;
// a new registration replaces the old one.
type Hub struct {
	slots    Slots
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[string]*peer
	phones map[string]string
	calls  map[string]*relayCall
}

func NewHub(slots Slots, log *slog.Logger) *Hub {
	if slots == nil {
		slots = NewMemorySlots()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		slots:    slots,
		log:      log.With("component", "relay"),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		peers:    make(map[string]*peer),
		phones:   make(map[string]string),
		calls:    make(map[string]*relayCall),
	}
}

// Handle upgrades a request already authenticated with a voice token
// (auth.RequireToken) and serves the device until it goes away.
func (h *Hub) Handle(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "voice token required"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Warn("relay upgrade failed", "err", err)
		return
	}

	p := &peer{
		userID: userID,
		phone:  auth.PhoneNumber(c.Request.Context()),
		conn:   conn,
		send:   make(chan signaling.Message, sendBuffer),
		done:   make(chan struct{}),
	}
	h.register(p)
	go h.writeLoop(p)
	h.readLoop(p)
}

// Online reports whether userID has a registered device.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[userID]
	return ok
}

// Close drops every device. Hijacked websocket connections are not closed by
// http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	old := h.peers[p.userID]
	h.peers[p.userID] = p
	if p.phone != "" {
		h.phones[p.phone] = p.userID
	}
	h.mu.Unlock()

	if old != nil {
		h.log.Info("device replaced", "user_id", p.userID)
		h.dropCalls(old)
		old.close()
	}
	h.log.Info("device registered", "user_id", p.userID)
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	current := h.peers[p.userID] == p
	if current {
		delete(h.peers, p.userID)
		if p.phone != "" && h.phones[p.phone] == p.userID {
			delete(h.phones, p.phone)
		}
	}
	h.mu.Unlock()
	if current {
		h.dropCalls(p)
		h.log.Info("device unregistered", "user_id", p.userID)
	}
}

func (h *Hub) readLoop(p *peer) {
	defer func() {
		h.unregister(p)
		p.close()
	}()
	p.conn.SetReadLimit(4096)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var m signaling.Message
		if err := p.conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("relay read failed", "user_id", p.userID, "err", err)
			}
			return
		}
		h.dispatch(p, m)
	}
}

func (h *Hub) writeLoop(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case m := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(m); err != nil {
				h.log.Warn("relay write failed", "user_id", p.userID, "err", err)
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		}
	}
}

func (h *Hub) deliver(p *peer, m signaling.Message) {
	if p == nil {
		return
	}
	select {
	case p.send <- m:
	case <-p.done:
	default:
		h.log.Warn("relay send buffer full, dropping device", "user_id", p.userID, "type", m.Type)
		p.close()
	}
}

func (h *Hub) dispatch(p *peer, m signaling.Message) {
	switch m.Type {
	case signaling.MsgInvite:
		h.invite(p, m)
	case signaling.MsgAccept:
		h.accept(p, m.CallSID)
	case signaling.MsgReject:
		h.reject(p, m.CallSID)
	case signaling.MsgHangup:
		h.hangup(p, m.CallSID)
	default:
		h.log.Warn("unknown frame from device", "user_id", p.userID, "type", m.Type)
	}
}

func (h *Hub) resolve(to string) string {
	to = strings.TrimSpace(to)
	if id, ok := strings.CutPrefix(to, "client:"); ok {
		return id
	}
	return h.phones[to]
}

func (h *Hub) invite(p *peer, m signaling.Message) {
	fail := func(reason string) {
		h.deliver(p, signaling.Message{Type: signaling.MsgFailed, CallSID: m.CallSID, Reason: reason})
	}
	if m.CallSID == "" {
		fail(ReasonInvalid)
		return
	}

	h.mu.Lock()
	_, dup := h.calls[m.CallSID]
	calleeID := h.resolve(m.To)
	callee := h.peers[calleeID]
	h.mu.Unlock()

	switch {
	case dup:
		fail(ReasonInvalid)
		return
	case callee == nil || calleeID == p.userID:
		fail(ReasonUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), slotOpWait)
	defer cancel()
	if ok, err := h.slots.Acquire(ctx, p.userID, m.CallSID); err != nil || !ok {
		h.log.Info("caller already in a call", "user_id", p.userID, "err", err)
		fail(ReasonBusy)
		return
	}
	if ok, err := h.slots.Acquire(ctx, calleeID, m.CallSID); err != nil || !ok {
		h.log.Info("callee busy", "user_id", calleeID, "err", err)
		h.release(ctx, p.userID, m.CallSID)
		fail(ReasonBusy)
		return
	}

	h.mu.Lock()
	h.calls[m.CallSID] = &relayCall{sid: m.CallSID, caller: p.userID, callee: calleeID}
	h.mu.Unlock()

	from := p.phone
	if from == "" {
		from = "client:" + p.userID
	}
	h.log.Info("call offered", "call_sid", m.CallSID, "caller", p.userID, "callee", calleeID)
	h.deliver(p, signaling.Message{Type: signaling.MsgRinging, CallSID: m.CallSID})
	h.deliver(callee, signaling.Message{Type: signaling.MsgInvite, CallSID: m.CallSID, From: from})
}

func (h *Hub) accept(p *peer, sid string) {
	h.mu.Lock()
	call, ok := h.calls[sid]
	if !ok || call.callee != p.userID || call.state != stateRinging {
		h.mu.Unlock()
		h.deliver(p, signaling.Message{Type: signaling.MsgFailed, CallSID: sid, Reason: ReasonInvalid})
		return
	}
	call.state = stateConnected
	caller := h.peers[call.caller]
	h.mu.Unlock()

	h.log.Info("call connected", "call_sid", sid)
	h.deliver(caller, signaling.Message{Type: signaling.MsgConnected, CallSID: sid})
	h.deliver(p, signaling.Message{Type: signaling.MsgConnected, CallSID: sid})
}

func (h *Hub) reject(p *peer, sid string) {
	h.mu.Lock()
	call, ok := h.calls[sid]
	if !ok || call.callee != p.userID || call.state != stateRinging {
		h.mu.Unlock()
		return
	}
	caller := h.peers[call.caller]
	h.mu.Unlock()

	h.finish(call)
	h.deliver(caller, signaling.Message{Type: signaling.MsgFailed, CallSID: sid, Reason: ReasonDeclined})
}

func (h *Hub) hangup(p *peer, sid string) {
	h.mu.Lock()
	call, ok := h.calls[sid]
	if !ok || (call.caller != p.userID && call.callee != p.userID) {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.endFor(p.userID, call)
}

// endFor ends call on behalf of userID and tells the other side.
func (h *Hub) endFor(userID string, call *relayCall) {
	other := call.caller
	if userID == call.caller {
		other = call.callee
	}
	h.mu.Lock()
	otherPeer := h.peers[other]
	h.mu.Unlock()

	if !h.finish(call) {
		return
	}
	switch {
	case call.state == stateRinging && userID == call.caller:
		h.deliver(otherPeer, signaling.Message{Type: signaling.MsgCancel, CallSID: call.sid})
	case call.state == stateRinging:
		h.deliver(otherPeer, signaling.Message{Type: signaling.MsgFailed, CallSID: call.sid, Reason: ReasonDeclined})
	default:
		h.deliver(otherPeer, signaling.Message{Type: signaling.MsgDisconnected, CallSID: call.sid})
	}
}

func (h *Hub) dropCalls(p *peer) {
	h.mu.Lock()
	var mine []*relayCall
	for _, c := range h.calls {
		if c.caller == p.userID || c.callee == p.userID {
			mine = append(mine, c)
		}
	}
	h.mu.Unlock()
	for _, c := range mine {
		h.endFor(p.userID, c)
	}
}

// finish removes call and frees both slots. It reports false if call was already gone.
func (h *Hub) finish(call *relayCall) bool {
	h.mu.Lock()
	if h.calls[call.sid] != call {
		h.mu.Unlock()
		return false
	}
	delete(h.calls, call.sid)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), slotOpWait)
	defer cancel()
	h.release(ctx, call.caller, call.sid)
	h.release(ctx, call.callee, call.sid)
	h.log.Info("call finished", "call_sid", call.sid)
	return true
}

func (h *Hub) release(ctx context.Context, userID, callSID string) {
	if err := h.slots.Release(ctx, userID, callSID); err != nil {
		h.log.Warn("release call slot failed", "user_id", userID, "call_sid", callSID, "err", err)
	}
}
