package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFlashSurvivesRedirect(t *testing.T) {
	router := gin.New()
	router.GET("/set", func(c *gin.Context) {
		AddFlash(c, "success", "Saved.")
		c.Redirect(http.StatusSeeOther, "/show")
	})
	router.GET("/show", func(c *gin.Context) {
		var msgs []string
		for _, f := range TakeFlashes(c) {
			msgs = append(msgs, f.Category+":"+f.Message)
		}
		c.String(http.StatusOK, strings.Join(msgs, ","))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))

	req := httptest.NewRequest(http.MethodGet, "/show", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Body.String() != "success:Saved." {
		t.Fatalf("unexpected flashes %q", w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge >= 0 {
			t.Fatal("expected flash cookie to be cleared")
		}
	}
}

func TestFlashIgnoresGarbageCookie(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%d", len(TakeFlashes(c)))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "!!not-base64!!"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Body.String() != "0" {
		t.Fatalf("expected no flashes, got %q", w.Body.String())
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlationIDHeader, "abc-123_DEF")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Body.String() != "abc-123_DEF" {
		t.Fatalf("expected incoming id to be kept, got %q", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlationIDHeader, "bad id\nwith newline")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Body.String(); got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected a generated id, got %q", got)
	}
	if w.Header().Get(correlationIDHeader) != w.Body.String() {
		t.Fatal("expected response header to echo the id")
	}
}

func TestInternalSecretMiddleware(t *testing.T) {
	router := gin.New()
	router.GET("/m", InternalSecretMiddleware("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		header string
		want   int
	}{
		{header: "", want: http.StatusUnauthorized},
		{header: "wrong", want: http.StatusUnauthorized},
		{header: "s3cret", want: http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/m", nil)
		if tc.header != "" {
			req.Header.Set(InternalSecretHeader, tc.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, w.Code)
		}
	}
}

func TestSafeRedirectTarget(t *testing.T) {
	cases := map[string]string{
		"/my-resumes":          "/my-resumes",
		"":                     "/",
		"//evil.example":       "/",
		"https://evil.example": "/",
		`/\evil.example`:       "/",
		"/\t/evil.example":     "/",
		"/\n/evil.example":     "/",
		"/%2F/evil.example":    "/",
		"/%5Cevil.example":     "/",
		"/%09/evil.example":    "/",
		"/x?next=%2F%2Fa":      "/x?next=%2F%2Fa",
	}
	for next, want := range cases {
		if got := SafeRedirectTarget(next, "/"); got != want {
			t.Fatalf("SafeRedirectTarget(%q) = %q, want %q", next, got, want)
		}
	}
}

func TestRequireLoginRedirectsAnonymous(t *testing.T) {
	router := gin.New()
	router.POST("/x", RequireLogin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/x", RequireLogin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?a=1", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login?next=%2Fx%3Fa%3D1" {
		t.Fatalf("unexpected redirect %d %q", w.Code, w.Header().Get("Location"))
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Header().Get("Location") != "/login" {
		t.Fatalf("POST should redirect without next, got %q", w.Header().Get("Location"))
	}
}

func TestAccessLevel(t *testing.T) {
	cases := map[int]slog.Level{
		http.StatusOK:                  slog.LevelInfo,
		http.StatusSeeOther:            slog.LevelInfo,
		http.StatusNotFound:            slog.LevelWarn,
		http.StatusTooManyRequests:     slog.LevelWarn,
		http.StatusInternalServerError: slog.LevelError,
	}
	for status, want := range cases {
		if got := accessLevel(status); got != want {
			t.Fatalf("accessLevel(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestSlogLoggerMiddlewareSharesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := gin.New()
	router.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))
	router.GET("/resume/:id", func(c *gin.Context) {
		LoggerFromContext(c).Info("handler log")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/resume/7", nil)
	req.Header.Set(correlationIDHeader, "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"handler log", "correlation_id=req-42", "route=/resume/:id", "level=WARN", "status=404"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
