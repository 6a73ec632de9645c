package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestParseTwilioVoiceRequest(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=client%3Au1&To=%2B15557654321&ApiVersion=2010-04-01")
	r := httptest.NewRequest(http.MethodPost, "/twilio/voice", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	now := time.Unix(1700000000, 0).UTC()
	req, err := ParseTwilioVoiceRequest(r, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.CallSid != "CA123" || req.APIVersion != "2010-04-01" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.From != "client:u1" || req.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", req.From, req.To)
	}
	if !req.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at")
	}
}

type routerFunc func(ctx context.Context, req VoiceRequest) (VoiceResult, error)

func (f routerFunc) RouteVoiceCall(ctx context.Context, req VoiceRequest) (VoiceResult, error) {
	return f(ctx, req)
}

func TestVoiceWebhookHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := VoiceWebhookHandler{Router: routerFunc(func(_ context.Context, req VoiceRequest) (VoiceResult, error) {
		if req.To == "+15550000000" {
			return VoiceResult{}, errors.New("directory down")
		}
		return VoiceResult{Action: VoiceActionDialNumber, Target: req.To, CallerID: "+15551234567"}, nil
	})}
	r := gin.New()
	r.POST("/twilio/voice", h.HandleVoice)

	post := func(to string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader("CallSid=CA1&From=client%3Au1&To="+to))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("%2B15557654321")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<Number>+15557654321</Number>") {
		t.Fatalf("unexpected twiml: %s", w.Body.String())
	}

	if w := post("%2B15550000000"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on routing error, got %d", w.Code)
	}
}
