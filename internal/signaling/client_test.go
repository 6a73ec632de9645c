package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-softphone/internal/permission"
)

type fakeVoice struct {
	registerErr error
	gate        chan struct{}

	mu        sync.Mutex
	registers int
	unregErr  error
	connected []string
	events    chan Event
}

func newFakeVoice() *fakeVoice { return &fakeVoice{events: make(chan Event, 4)} }

func (f *fakeVoice) Register(context.Context, string) error {
	f.mu.Lock()
	f.registers++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.registerErr
}

func (f *fakeVoice) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}
func (f *fakeVoice) Unregister(context.Context, string) error { return f.unregErr }
func (f *fakeVoice) Connect(_ context.Context, _ string, to string) (Call, error) {
	f.connected = append(f.connected, to)
	return nil, nil
}
func (f *fakeVoice) Events() <-chan Event { return f.events }

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no signaling event")
		return Event{}
	}
}

func TestClient_RegisterIsIdempotent(t *testing.T) {
	v := newFakeVoice()
	c := NewClient(v, nil)

	require.NoError(t, c.Register(context.Background(), "tok"))
	require.NoError(t, c.Register(context.Background(), "tok"))

	assert.Equal(t, 1, v.registers)
	assert.Equal(t, EventRegistered, nextEvent(t, c).Type)
}

func TestClient_ConcurrentRegisterDialsOnce(t *testing.T) {
	v := newFakeVoice()
	v.gate = make(chan struct{})
	c := NewClient(v, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Register(context.Background(), "tok") }()
	}
	require.Eventually(t, func() bool { return v.registerCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(v.gate)

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, 1, v.registerCount())
	assert.Equal(t, EventRegistered, nextEvent(t, c).Type)
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected second event %v", ev.Type)
	default:
	}
}

func TestClient_RegisterFailureIsClassified(t *testing.T) {
	cases := []struct {
		err    error
		reason RegistrationReason
	}{
		{fmt.Errorf("%w: 401", ErrInvalidToken), ReasonInvalidToken},
		{ErrRejected, ReasonRejected},
		{errors.New("connection refused"), ReasonNetwork},
	}
	for _, tc := range cases {
		v := newFakeVoice()
		v.registerErr = tc.err
		c := NewClient(v, nil)

		err := c.Register(context.Background(), "tok")
		var re *RegistrationError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, tc.reason, re.Reason)

		ev := nextEvent(t, c)
		assert.Equal(t, EventError, ev.Type)
		require.ErrorAs(t, ev.Err, &re)
		assert.Equal(t, tc.reason, re.Reason)
	}
}

func TestClient_EmptyTokenIsInvalid(t *testing.T) {
	c := NewClient(newFakeVoice(), nil)
	err := c.Register(context.Background(), "")
	assert.True(t, IsInvalidToken(err))
}

func TestClient_UnregisterSwallowsErrors(t *testing.T) {
	v := newFakeVoice()
	v.unregErr = errors.New("offline")
	c := NewClient(v, nil)
	require.NoError(t, c.Register(context.Background(), "tok"))
	_ = nextEvent(t, c)

	c.Unregister(context.Background(), "tok")

	// Registration state is cleared so the next Register reaches the transport again.
	require.NoError(t, c.Register(context.Background(), "tok"))
	assert.Equal(t, 2, v.registers)
}

func TestClient_ConnectRequiresPermission(t *testing.T) {
	v := newFakeVoice()
	c := NewClient(v, nil)

	_, err := c.Connect(context.Background(), "tok", "+15550001111")
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, permission.ErrDenied)
	assert.Empty(t, v.connected)

	c.SetPermissionGranted(true)
	_, err = c.Connect(context.Background(), "tok", "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550001111"}, v.connected)
}

func TestClient_InstallListenersOnce(t *testing.T) {
	v := newFakeVoice()
	c := NewClient(v, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.InstallListeners(ctx)
	c.InstallListeners(ctx)

	v.events <- Event{Type: EventInviteCancelled, SID: "CA1"}
	ev := nextEvent(t, c)
	assert.Equal(t, EventInviteCancelled, ev.Type)
	assert.Equal(t, "CA1", ev.SID)

	select {
	case extra := <-c.Events():
		t.Fatalf("unexpected extra event %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
