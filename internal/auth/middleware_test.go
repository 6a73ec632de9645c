package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	if _, ok := BearerToken(""); ok {
		t.Fatalf("expected empty header to fail")
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatalf("expected non-bearer to fail")
	}
	if tok, ok := BearerToken("Bearer  abc "); !ok || tok != "abc" {
		t.Fatalf("unexpected token %q %v", tok, ok)
	}
}

func TestRequireSessionToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/x", RequireSessionToken(m), func(c *gin.Context) {
		uid, err := UserID(c.Request.Context())
		if err != nil {
			c.Status(500)
			return
		}
		c.String(200, uid)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	voice, _ := m.IssueVoice(time.Now(), jane)
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+voice)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for voice token on session route, got %d", w.Code)
	}

	session, _ := m.IssueSession(time.Now(), jane)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+session)
	r.ServeHTTP(w, req)
	if w.Code != 200 || w.Body.String() != "user-1" {
		t.Fatalf("expected 200 user-1, got %d %q", w.Code, w.Body.String())
	}
}
