package signaling

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"voice-softphone/internal/permission"
)

// Client is the process-wide signaling handle the call coordinator and the
// session context share.
type Client struct {
	voice Voice
	log   *slog.Logger

	mu              sync.Mutex
	granted         bool
	registeredToken string

	// regMu serializes transport register/unregister; regFlight collapses
	// concurrent Register calls for the same token into one.
	regMu     sync.Mutex
	regFlight singleflight.Group

	events     chan Event
	listenOnce sync.Once
}

func NewClient(voice Voice, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		voice:  voice,
		log:    log.With("component", "signaling"),
		events: make(chan Event, 64),
	}
}

// Events is the session event stream. Invites are forwarded once InstallListeners has run.
func (c *Client) Events() <-chan Event { return c.events }

// InstallListeners starts forwarding transport events. Only the first call has any effect.
func (c *Client) InstallListeners(ctx context.Context) {
	c.listenOnce.Do(func() {
		go c.forward(ctx)
	})
}

func (c *Client) forward(ctx context.Context) {
	src := c.voice.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			if ev.Type == EventUnregistered {
				c.mu.Lock()
				c.registeredToken = ""
				c.mu.Unlock()
			}
			select {
			case c.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("signaling event dropped, consumer is behind", "type", ev.Type)
	}
}

// Register registers the device under accessToken. Registering again with the
// token that is already registered is a no-op. Failures are emitted as an error
// event carrying a *RegistrationError and returned as well; nothing is retried.
func (c *Client) Register(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		err := &RegistrationError{Reason: ReasonInvalidToken, Err: ErrInvalidToken}
		c.emit(Event{Type: EventError, Err: err})
		return err
	}

	_, err, _ := c.regFlight.Do(accessToken, func() (any, error) {
		return nil, c.register(ctx, accessToken)
	})
	return err
}

func (c *Client) register(ctx context.Context, accessToken string) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.mu.Lock()
	already := c.registeredToken == accessToken
	c.mu.Unlock()
	if already {
		return nil
	}

	if err := c.voice.Register(ctx, accessToken); err != nil {
		re := classifyRegistration(err)
		c.log.Error("registration failed", "reason", re.Reason, "err", err)
		c.emit(Event{Type: EventError, Err: re})
		return re
	}

	c.mu.Lock()
	c.registeredToken = accessToken
	c.mu.Unlock()
	c.log.Info("registered")
	c.emit(Event{Type: EventRegistered})
	return nil
}

// Unregister drops the registration. Failures are logged and swallowed since
// logout has to finish locally either way.
func (c *Client) Unregister(ctx context.Context, accessToken string) {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.mu.Lock()
	c.registeredToken = ""
	c.mu.Unlock()

	if err := c.voice.Unregister(ctx, accessToken); err != nil {
		c.log.Warn("unregister failed", "err", err)
		return
	}
	c.emit(Event{Type: EventUnregistered})
}

// SetPermissionGranted records the outcome of the last permission gate.
func (c *Client) SetPermissionGranted(granted bool) {
	c.mu.Lock()
	c.granted = granted
	c.mu.Unlock()
}

func (c *Client) PermissionGranted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted
}

// Connect starts an outbound call. It fails with a *ConnectError wrapping
// permission.ErrDenied if call permissions were not confirmed first.
func (c *Client) Connect(ctx context.Context, accessToken, destination string) (Call, error) {
	if !c.PermissionGranted() {
		return nil, &ConnectError{Destination: destination, Err: permission.ErrDenied}
	}
	if destination == "" {
		return nil, &ConnectError{Destination: destination, Err: errors.New("empty destination")}
	}
	call, err := c.voice.Connect(ctx, accessToken, destination)
	if err != nil {
		return nil, &ConnectError{Destination: destination, Err: err}
	}
	return call, nil
}
