package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebSocketRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/ws")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWebSocketRejectsPlainRequest(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "ws@example.com", "free", 3)

	// 缺少 Upgrade 头时由 upgrader 直接拒绝。
	w := env.get("/ws", env.sessionCookie(t, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckOrigin(t *testing.T) {
	sameHost := NewWsHandler(nil, nil, nil)
	listed := NewWsHandler(nil, nil, []string{"https://app.example.com"})

	cases := []struct {
		name   string
		h      *WsHandler
		origin string
		want   bool
	}{
		{name: "no origin", h: sameHost, origin: "", want: true},
		{name: "same host", h: sameHost, origin: "http://example.com", want: true},
		{name: "other host", h: sameHost, origin: "http://evil.example", want: false},
		{name: "listed", h: listed, origin: "https://app.example.com", want: true},
		{name: "unlisted same host", h: listed, origin: "http://example.com", want: false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if got := tc.h.checkOrigin(req); got != tc.want {
			t.Fatalf("%s: checkOrigin = %v, want %v", tc.name, got, tc.want)
		}
	}
}
