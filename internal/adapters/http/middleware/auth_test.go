package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionStore_Expiry(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }

	token, err := ss.Create("u-1", "ana@example.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s, ok := ss.Get(token); !ok || s.UserID != "u-1" {
		t.Fatalf("get = %+v, %v", s, ok)
	}

	now = now.Add(61 * time.Minute)
	if _, ok := ss.Get(token); ok {
		t.Error("session should have expired")
	}
	if _, ok := ss.sessions[token]; ok {
		t.Error("expired session was not removed")
	}
}

func TestSessionStore_DeleteUserKeepsCurrent(t *testing.T) {
	ss := NewSessionStore(0)
	if ss.TTL() != DefaultSessionTTL {
		t.Errorf("ttl = %v", ss.TTL())
	}
	keep, _ := ss.Create("u-1", "a@example.com")
	other, _ := ss.Create("u-1", "a@example.com")
	foreign, _ := ss.Create("u-2", "b@example.com")

	if n := ss.DeleteUser("u-1", keep); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, ok := ss.Get(keep); !ok {
		t.Error("current session was removed")
	}
	if _, ok := ss.Get(other); ok {
		t.Error("other session survived")
	}
	if _, ok := ss.Get(foreign); !ok {
		t.Error("another user's session was removed")
	}
}

func TestAuthAndRequireAuth(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	token, _ := ss.Create("u-1", "a@example.com")

	var seen string
	h := Auth(ss)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := GetSessionFromContext(r.Context())
		seen = s.UserID
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || seen != "u-1" {
		t.Errorf("status = %d, user = %q", rr.Code, seen)
	}
}

func TestSetSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "tok", CookieOptions{Secure: true, MaxAge: 2 * time.Hour})
	c := rr.Result().Cookies()[0]
	if c.Value != "tok" || !c.Secure || !c.HttpOnly || c.MaxAge != 7200 {
		t.Errorf("cookie = %+v", c)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("limit must be per client")
	}
}

func TestRateLimiter_RefillAndSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || rl.Allow("a") {
		t.Fatal("bucket of one should allow exactly one request")
	}
	now = now.Add(1500 * time.Millisecond)
	if !rl.Allow("a") {
		t.Error("token should refill after one interval")
	}
	now = now.Add(200 * time.Millisecond)
	if rl.Allow("a") {
		t.Error("partial interval must not refill")
	}

	rl.Allow("b")
	now = now.Add(10 * time.Minute)
	rl.Allow("c")
	if n := rl.visitorCount(); n != 1 {
		t.Errorf("visitors after sweep = %d, want 1", n)
	}
}

func TestRateLimit_JSON429(t *testing.T) {
	h := RateLimit(NewRateLimiter(1, time.Hour))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/health", nil))
		if rr.Code != want {
			t.Fatalf("request %d status = %d, want %d", i, rr.Code, want)
		}
		if want == http.StatusTooManyRequests && rr.Header().Get("Content-Type") != "application/json" {
			t.Errorf("429 content type = %q", rr.Header().Get("Content-Type"))
		}
	}
}

func TestCSRF_Scope(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	h := CSRF(key, CSRFOptions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, "application/json", http.StatusNoContent},
		{"get", http.MethodGet, "", http.StatusNoContent},
		{"delete", http.MethodDelete, "", http.StatusNoContent},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/logout", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := ClientIP(req); got != "192.0.2.7" {
		t.Errorf("ClientIP = %q", got)
	}
}
