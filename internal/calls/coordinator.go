package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"voice-softphone/internal/callui"
	"voice-softphone/internal/permission"
	"voice-softphone/internal/signaling"
)

// Signaling is the part of signaling.Client the coordinator drives.
type Signaling interface {
	Events() <-chan signaling.Event
	Connect(ctx context.Context, accessToken, destination string) (signaling.Call, error)
	PermissionGranted() bool
}

type Options struct {
	// RingTimeout rejects an unanswered invite after this long. Zero disables it.
	RingTimeout time.Duration
	Observers   []Observer
	Alerter     Alerter
	Logger      *slog.Logger
}

var errDialAborted = errors.New("calls: dial aborted")

// opTimeout bounds the signaling and UI side effects run from the coordinator goroutine.
const opTimeout = 5 * time.Second

// Coordinator owns the call session. All state changes happen on the goroutine
// running Run; other goroutines talk to it through the inbox.
type Coordinator struct {
	sig     Signaling
	bridge  callui.Bridge
	log     *slog.Logger
	obs     []Observer
	alerter Alerter
	ring    time.Duration
	clock   func() time.Time
	newID   func() string

	inbox   chan any
	running chan struct{}
	runCtx  context.Context

	machine *fsm.FSM
	sess    session
	cause   string
	err     error

	// Delivery of the latest Ended transition: endHanded counts observers that
	// received lastEnded, endPending is set until all of them have.
	lastEnded  Transition
	endHanded  int
	endPending bool

	snapMu sync.RWMutex
	snap   Session
}

// session is the mutable call state. pendingInvite and handle are never both set.
type session struct {
	id          string
	dir         Direction
	remote      string
	sid         string
	invite      signaling.Invite
	handle      signaling.Call
	inFlight    bool
	queuedEnd   string // cause of an end requested while setup was in flight
	ringTimer   *time.Timer
	stopEvents  context.CancelFunc
	startedAt   time.Time
	connectedAt time.Time
}

type dialRequest struct {
	token, destination string
	reply              chan dialReply
}

type dialReply struct {
	callID string
	err    error
}

type resetRequest struct{ done chan struct{} }

// handleResult is the outcome of an Invite.Accept or Signaling.Connect started for callID.
type handleResult struct {
	callID string
	call   signaling.Call
	err    error
}

type callEvent struct {
	callID string
	ev     signaling.CallEvent
}

type ringExpired struct{ callID string }

func NewCoordinator(sig Signaling, bridge callui.Bridge, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		sig:     sig,
		bridge:  bridge,
		log:     log.With("component", "calls"),
		obs:     opts.Observers,
		alerter: opts.Alerter,
		ring:    opts.RingTimeout,
		clock:   time.Now,
		newID:   uuid.NewString,
		inbox:   make(chan any, 16),
		running: make(chan struct{}),
		snap:    Session{Phase: PhaseIdle},
	}
	c.machine = newMachine(c.entered)
	return c
}

// Snapshot returns the current session.
func (c *Coordinator) Snapshot() Session {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Dial starts an outbound call and returns its call identifier. Call permissions
// must have been granted; otherwise the session stays idle and the error wraps
// permission.ErrDenied. Failures after this point are reported as transitions.
func (c *Coordinator) Dial(ctx context.Context, accessToken, destination string) (string, error) {
	if !c.sig.PermissionGranted() {
		return "", fmt.Errorf("calls: dial: %w", permission.ErrDenied)
	}
	if destination == "" {
		return "", errors.New("calls: dial: empty destination")
	}
	req := dialRequest{token: accessToken, destination: destination, reply: make(chan dialReply, 1)}
	if err := c.send(ctx, req); err != nil {
		return "", err
	}
	select {
	case r := <-req.reply:
		return r.callID, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Reset ends whatever call is in progress and returns the coordinator to idle.
// Used on logout.
func (c *Coordinator) Reset(ctx context.Context) error {
	req := resetRequest{done: make(chan struct{})}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) send(ctx context.Context, msg any) error {
	select {
	case <-c.running:
	default:
		return ErrNotRunning
	}
	select {
	case c.inbox <- msg:
		return nil
	case <-c.runCtx.Done():
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is send for internal goroutines, which give up once Run has stopped.
func (c *Coordinator) post(msg any) {
	select {
	case c.inbox <- msg:
	case <-c.runCtx.Done():
	}
}

// Run consumes signaling events, UI intents and internal messages until ctx is done.
// It must be called exactly once.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	close(c.running)

	sigEvents := c.sig.Events()
	intents := c.bridge.Intents()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev, ok := <-sigEvents:
			if !ok {
				sigEvents = nil
				continue
			}
			c.safely(func() { c.onSignal(ev) })
		case in, ok := <-intents:
			if !ok {
				intents = nil
				continue
			}
			c.safely(func() { c.onIntent(in) })
		case msg := <-c.inbox:
			c.safely(func() { c.onMessage(msg) })
		}
	}
}

// safely runs one handler. A panic forces the call to end instead of killing the loop.
func (c *Coordinator) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("call handler panicked", "call_id", c.sess.id, "panic", r)
			c.forceEnd(CauseInternal, fmt.Errorf("calls: handler panic: %v", r))
		}
	}()
	fn()
}

func (c *Coordinator) phase() Phase { return Phase(c.machine.Current()) }

func (c *Coordinator) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func (c *Coordinator) onSignal(ev signaling.Event) {
	switch ev.Type {
	case signaling.EventInviteReceived:
		c.onInvite(ev.Invite)
	case signaling.EventInviteCancelled:
		c.onInviteCancelled(ev.SID)
	case signaling.EventRegistered:
		c.log.Info("signaling registered")
	case signaling.EventUnregistered:
		c.log.Info("signaling unregistered")
	case signaling.EventError:
		c.log.Warn("signaling error", "err", ev.Err)
	}
}

func (c *Coordinator) onInvite(inv signaling.Invite) {
	if inv == nil {
		return
	}
	if c.phase() != PhaseIdle {
		c.log.Info("rejecting invite, busy", "sid", inv.SID(), "call_id", c.sess.id)
		ctx, cancel := c.opContext()
		defer cancel()
		if err := inv.Reject(ctx); err != nil {
			c.log.Warn("reject busy invite failed", "sid", inv.SID(), "err", err)
		}
		return
	}

	c.sess = session{
		id:        c.newID(),
		dir:       DirectionInbound,
		remote:    inv.From(),
		sid:       inv.SID(),
		invite:    inv,
		startedAt: c.clock().UTC(),
	}
	c.fire(evInvite)

	ctx, cancel := c.opContext()
	defer cancel()
	if err := c.bridge.Display(ctx, c.sess.id, c.sess.remote); err != nil {
		// The call stays answerable through the in-app fallback.
		c.log.Error("native call ui display failed", "call_id", c.sess.id, "err", err)
		c.alert(fmt.Sprintf("Incoming call from %s. Answer it in the app.", c.sess.remote))
	}

	if c.ring > 0 {
		id := c.sess.id
		c.sess.ringTimer = time.AfterFunc(c.ring, func() { c.post(ringExpired{callID: id}) })
	}
}

func (c *Coordinator) onInviteCancelled(sid string) {
	if sid == "" || sid != c.sess.sid {
		c.log.Debug("cancel for unknown invite", "sid", sid)
		return
	}
	switch {
	case c.phase() == PhaseRinging:
		c.endUI()
		c.end(CauseRemoteCancelled, nil)
	case c.sess.inFlight:
		c.sess.queuedEnd = CauseRemoteCancelled
	}
}

func (c *Coordinator) onIntent(in callui.Intent) {
	if in.CallID == "" || in.CallID != c.sess.id {
		c.log.Info("discarding stale ui intent", "intent", in.Type, "intent_call_id", in.CallID, "call_id", c.sess.id, "err", ErrStaleEvent)
		return
	}
	switch in.Type {
	case callui.IntentAnswer:
		c.answer()
	case callui.IntentEnd:
		c.hangup()
	}
}

func (c *Coordinator) answer() {
	if c.phase() != PhaseRinging || c.sess.invite == nil {
		c.log.Debug("answer ignored", "call_id", c.sess.id, "phase", c.phase())
		return
	}
	c.stopRingTimer()
	inv := c.sess.invite
	c.sess.invite = nil
	c.sess.inFlight = true
	c.fire(evAnswer)

	id := c.sess.id
	go func() {
		ctx, cancel := c.opContext()
		defer cancel()
		call, err := inv.Accept(ctx)
		c.post(handleResult{callID: id, call: call, err: err})
	}()
}

func (c *Coordinator) hangup() {
	switch c.phase() {
	case PhaseRinging:
		c.stopRingTimer()
		c.rejectInvite()
		c.end(CauseRejected, nil)
	case PhaseConnecting, PhaseActive:
		if c.sess.inFlight {
			c.log.Info("end queued until call setup resolves", "call_id", c.sess.id)
			c.sess.queuedEnd = CauseLocalHangup
			return
		}
		c.disconnect(c.sess.handle)
		c.sess.handle = nil
		c.endUI()
		c.end(CauseLocalHangup, nil)
	}
}

func (c *Coordinator) onMessage(msg any) {
	switch m := msg.(type) {
	case dialRequest:
		// A panic while starting the call still answers the caller.
		reply := dialReply{err: errDialAborted}
		defer func() { m.reply <- reply }()
		reply = c.dial(m)
	case resetRequest:
		c.forceEnd(CauseReset, nil)
		close(m.done)
	case handleResult:
		c.onHandle(m)
	case callEvent:
		c.onCallEvent(m)
	case ringExpired:
		c.onRingExpired(m.callID)
	}
}

func (c *Coordinator) dial(req dialRequest) dialReply {
	if c.phase() != PhaseIdle {
		return dialReply{err: ErrBusy}
	}
	c.sess = session{
		id:        c.newID(),
		dir:       DirectionOutbound,
		remote:    req.destination,
		inFlight:  true,
		startedAt: c.clock().UTC(),
	}
	c.fire(evDial)

	id := c.sess.id
	go func() {
		ctx, cancel := c.opContext()
		defer cancel()
		call, err := c.sig.Connect(ctx, req.token, req.destination)
		c.post(handleResult{callID: id, call: call, err: err})
	}()
	return dialReply{callID: id}
}

func (c *Coordinator) onHandle(r handleResult) {
	if r.callID != c.sess.id || !c.sess.inFlight {
		c.log.Info("call setup resolved for a session that is gone", "result_call_id", r.callID, "err", ErrStaleEvent)
		c.disconnect(r.call)
		return
	}
	c.sess.inFlight = false

	if r.err != nil || r.call == nil {
		err := r.err
		if err == nil {
			err = errors.New("no call handle")
		}
		c.log.Warn("call setup failed", "call_id", c.sess.id, "err", err)
		c.failed(err)
		return
	}

	c.sess.handle = r.call
	if c.sess.sid == "" {
		c.sess.sid = r.call.SID()
	}
	c.listen(r.call)

	if cause := c.sess.queuedEnd; cause != "" {
		c.log.Info("replaying queued end", "call_id", c.sess.id, "cause", cause)
		c.sess.queuedEnd = ""
		c.disconnect(c.sess.handle)
		c.sess.handle = nil
		c.endUI()
		c.end(cause, nil)
	}
}

// listen forwards the handle's events to the inbox, tagged with the current call id.
func (c *Coordinator) listen(call signaling.Call) {
	ctx, cancel := context.WithCancel(c.runCtx)
	c.sess.stopEvents = cancel
	id := c.sess.id
	events := call.Events()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					ev = signaling.CallEvent{Type: signaling.CallDisconnected, Reason: "handle closed"}
				}
				select {
				case c.inbox <- callEvent{callID: id, ev: ev}:
				case <-ctx.Done():
					return
				}
				if !ok {
					return
				}
			}
		}
	}()
}

func (c *Coordinator) onCallEvent(m callEvent) {
	if m.callID != c.sess.id {
		c.log.Debug("discarding stale call event", "event", m.ev.Type, "event_call_id", m.callID, "err", ErrStaleEvent)
		return
	}
	switch m.ev.Type {
	case signaling.CallRinging:
		c.log.Debug("remote ringing", "call_id", c.sess.id)
	case signaling.CallConnected:
		if c.phase() == PhaseConnecting {
			c.sess.connectedAt = c.clock().UTC()
			c.fire(evConnect)
		}
	case signaling.CallConnectFailure:
		if c.phase() == PhaseConnecting {
			c.sess.handle = nil
			c.failed(fmt.Errorf("%w: %s", ErrConnectFailure, m.ev.Reason))
		}
	case signaling.CallDisconnected:
		if c.phase() == PhaseConnecting || c.phase() == PhaseActive {
			c.sess.handle = nil
			c.endUI()
			c.end(CauseRemoteHangup, nil)
		}
	}
}

func (c *Coordinator) onRingExpired(callID string) {
	if callID != c.sess.id || c.phase() != PhaseRinging {
		return
	}
	c.log.Info("invite not answered in time", "call_id", c.sess.id, "timeout", c.ring)
	c.rejectInvite()
	c.endUI()
	c.end(CauseRingTimeout, ErrRingTimeout)
}

func (c *Coordinator) failed(err error) {
	if !errors.Is(err, ErrConnectFailure) {
		err = fmt.Errorf("%w: %w", ErrConnectFailure, err)
	}
	c.endUI()
	if c.sess.dir == DirectionOutbound {
		c.alert(fmt.Sprintf("Call to %s failed.", c.sess.remote))
	}
	c.end(CauseConnectFailure, err)
}

// forceEnd tears down any call regardless of phase. In-flight setup results
// arriving afterwards are disconnected as stale.
func (c *Coordinator) forceEnd(cause string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("forced cleanup panicked", "panic", r)
			c.flushEnded(cause, err)
			c.clearSession()
			c.machine.SetState(string(PhaseIdle))
			c.publishSnapshot()
		}
	}()
	switch c.phase() {
	case PhaseIdle:
		return
	case PhaseEnded:
		c.flushEnded(cause, err)
		c.clearSession()
		c.fire(evClear)
		return
	}
	c.stopRingTimer()
	c.rejectInvite()
	c.disconnect(c.sess.handle)
	c.sess.handle = nil
	c.endUI()
	c.end(cause, err)
}

func (c *Coordinator) shutdown() {
	if c.phase() == PhaseIdle {
		return
	}
	c.safely(func() { c.forceEnd(CauseShutdown, nil) })
}

// end moves the session to ended and straight back to idle.
func (c *Coordinator) end(cause string, err error) {
	c.cause, c.err = cause, err
	c.fire(evEnd)
	c.cause, c.err = "", nil
	c.clearSession()
	c.fire(evClear)
}

func (c *Coordinator) clearSession() {
	c.stopRingTimer()
	if c.sess.stopEvents != nil {
		c.sess.stopEvents()
	}
	c.sess = session{}
}

func (c *Coordinator) fire(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		panic(fmt.Sprintf("calls: %s from %s: %v", event, c.machine.Current(), err))
	}
}

// entered runs inside the state machine for every transition.
func (c *Coordinator) entered(from, to Phase) {
	now := c.clock().UTC()
	t := Transition{
		CallID:    c.sess.id,
		Direction: c.sess.dir,
		From:      from,
		To:        to,
		Remote:    c.sess.remote,
		At:        now,
	}
	if to == PhaseEnded {
		t.Cause = c.cause
		t.Err = c.err
		if !c.sess.connectedAt.IsZero() {
			t.Connected = true
			t.Duration = now.Sub(c.sess.connectedAt)
		}
	}
	c.publishSnapshot()

	c.log.Info("call transition", "call_id", t.CallID, "direction", t.Direction, "from", from, "to", to, "cause", t.Cause)
	if to == PhaseEnded {
		c.lastEnded, c.endHanded, c.endPending = t, 0, true
	}
	for _, o := range c.obs {
		o.OnTransition(t)
		if to == PhaseEnded {
			c.endHanded++
		}
	}
	if to == PhaseEnded {
		c.endPending = false
	}
}

// flushEnded makes sure every observer hears that the session ended when a panic
// cut the normal path short. The observer that panicked on Ended is skipped.
func (c *Coordinator) flushEnded(cause string, err error) {
	var (
		t    Transition
		rest []Observer
	)
	switch from := c.phase(); from {
	case PhaseIdle:
		return
	case PhaseEnded:
		if !c.endPending {
			return
		}
		t = c.lastEnded
		rest = c.obs[min(c.endHanded+1, len(c.obs)):]
	default:
		now := c.clock().UTC()
		t = Transition{
			CallID:    c.sess.id,
			Direction: c.sess.dir,
			From:      from,
			To:        PhaseEnded,
			Remote:    c.sess.remote,
			Cause:     cause,
			Err:       err,
			At:        now,
		}
		if !c.sess.connectedAt.IsZero() {
			t.Connected = true
			t.Duration = now.Sub(c.sess.connectedAt)
		}
		rest = c.obs
	}
	c.endPending = false
	for _, o := range rest {
		c.notifySafely(o, t)
	}
}

func (c *Coordinator) notifySafely(o Observer, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("call observer panicked", "call_id", t.CallID, "to", t.To, "panic", r)
		}
	}()
	o.OnTransition(t)
}

func (c *Coordinator) publishSnapshot() {
	s := Session{Phase: Phase(c.machine.Current())}
	if s.Phase != PhaseIdle {
		s.CallID = c.sess.id
		s.Direction = c.sess.dir
		s.Remote = c.sess.remote
		s.StartedAt = c.sess.startedAt
		s.ConnectedAt = c.sess.connectedAt
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

func (c *Coordinator) stopRingTimer() {
	if c.sess.ringTimer != nil {
		c.sess.ringTimer.Stop()
		c.sess.ringTimer = nil
	}
}

func (c *Coordinator) rejectInvite() {
	inv := c.sess.invite
	if inv == nil {
		return
	}
	c.sess.invite = nil
	ctx, cancel := c.opContext()
	defer cancel()
	if err := inv.Reject(ctx); err != nil {
		c.log.Warn("reject invite failed", "call_id", c.sess.id, "sid", inv.SID(), "err", err)
	}
}

func (c *Coordinator) disconnect(call signaling.Call) {
	if call == nil {
		return
	}
	ctx, cancel := c.opContext()
	defer cancel()
	if err := call.Disconnect(ctx); err != nil {
		c.log.Warn("disconnect failed", "sid", call.SID(), "err", err)
	}
}

func (c *Coordinator) endUI() {
	if c.sess.id == "" {
		return
	}
	ctx, cancel := c.opContext()
	defer cancel()
	if err := c.bridge.End(ctx, c.sess.id); err != nil {
		c.log.Warn("native call ui end failed", "call_id", c.sess.id, "err", err)
	}
}

func (c *Coordinator) alert(msg string) {
	if c.alerter != nil {
		c.alerter.Alert(c.sess.id, msg)
	}
}
