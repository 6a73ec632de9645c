package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") }

func TestRelayVoice_RegisterMapsHandshakeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer banned" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewRelayVoice(wsURL(srv), nil)
	err := v.Register(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, ReasonInvalidToken, classifyRegistration(err).Reason)

	err = v.Register(context.Background(), "banned")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRelayVoice_InboundInviteAcceptAndHangup(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Message, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(Message{Type: MsgInvite, CallSID: "CA1", From: "+15550001111"})
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			received <- m
			if m.Type == MsgAccept {
				_ = conn.WriteJSON(Message{Type: MsgConnected, CallSID: m.CallSID})
			}
		}
	}))
	defer srv.Close()

	v := NewRelayVoice(wsURL(srv), nil)
	require.NoError(t, v.Register(context.Background(), "tok"))

	var ev Event
	select {
	case ev = <-v.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no invite")
	}
	require.Equal(t, EventInviteReceived, ev.Type)
	assert.Equal(t, "CA1", ev.Invite.SID())
	assert.Equal(t, "+15550001111", ev.Invite.From())

	call, err := ev.Invite.Accept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgAccept, (<-received).Type)

	select {
	case ce := <-call.Events():
		assert.Equal(t, CallConnected, ce.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no connected event")
	}

	require.NoError(t, call.Disconnect(context.Background()))
	m := <-received
	assert.Equal(t, MsgHangup, m.Type)
	assert.Equal(t, "CA1", m.CallSID)

	_, open := <-call.Events()
	assert.False(t, open)

	require.NoError(t, v.Unregister(context.Background(), "tok"))
}
