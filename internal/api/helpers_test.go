package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumify/internal/api/middleware"
	"resumify/internal/auth"
	"resumify/internal/billing"
	"resumify/internal/config"
	"resumify/internal/database"
	"resumify/internal/database/dbtest"
	"resumify/internal/resume"
	"resumify/internal/sanitize"
	"resumify/internal/storage"
	"resumify/internal/templates"
)

const testPassword = "Sup3rSecret"

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memoryStore) Save(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	s.types[key] = contentType
	return nil
}

func (s *memoryStore) Open(_ context.Context, key string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(b)),
		Size:        int64(len(b)),
		ContentType: s.types[key],
	}, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (f *fakeRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]time.Duration{}
	}
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeWriter struct{}

func (fakeWriter) Bio(_ context.Context, name, profession string, _ []string) string {
	return "Drafted bio for " + name + ", " + profession + "."
}

func (fakeWriter) EnhanceJobDescription(_ context.Context, _, _, desc string) string {
	return "Improved: " + desc
}

type testEnv struct {
	app     *App
	router  *gin.Engine
	db      *gorm.DB
	store   *memoryStore
	queue   *fakeEnqueuer
	revoked *fakeRevocations
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	sessions, err := auth.NewSessionService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	// 指向不可用地址：限流在 Redis 出错时放行。
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { _ = redisClient.Close() })

	sanitizer := sanitize.New()
	env := &testEnv{
		db:      db,
		store:   newMemoryStore(),
		queue:   &fakeEnqueuer{},
		revoked: &fakeRevocations{},
	}
	env.app = &App{
		Config: &config.Config{
			API: config.APIConfig{InternalSecret: "metrics-secret"},
			Auth: config.AuthConfig{
				LoginRateLimitPerHour: 10,
				LoginLockThreshold:    5,
				LoginLockTTL:          time.Minute,
				BioRateLimitPerHour:   20,
			},
			Uploads: config.UploadsConfig{MaxBytes: 4096},
		},
		DB:          db,
		Redis:       redisClient,
		Enqueuer:    env.queue,
		Store:       env.store,
		Templates:   templates.MustLoad(),
		Sessions:    sessions,
		Revocations: env.revoked,
		Sanitizer:   sanitizer,
		Writer:      fakeWriter{},
		Generator:   resume.NewGenerator(db, fakeWriter{}, sanitizer),
		Resumes:     resume.NewService(db),
		Ledger:      billing.NewLedger(db),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.router = NewRouter(env.app)
	RegisterRoutes(env.router, env.app)
	return env
}

// seedUser 创建当天已重置过额度的用户，避免每日重置干扰断言。
func (e *testEnv) seedUser(t *testing.T, email, plan string, tokens int) database.User {
	t.Helper()
	hashed, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now()
	u := database.User{
		Username:       "test.user",
		Email:          email,
		PasswordHash:   hashed,
		Plan:           plan,
		Tokens:         tokens,
		LastTokenReset: &now,
	}
	if err := e.db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (e *testEnv) seedResume(t *testing.T, userID uint, picture *string) database.Resume {
	t.Helper()
	r := database.Resume{
		UserID:        userID,
		Name:          "Ada Lovelace",
		Profession:    "Engineer",
		Skills:        "Python, Go",
		Template:      "classic",
		ProfilePicURL: picture,
	}
	if err := e.db.Create(&r).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return r
}

func (e *testEnv) reloadUser(t *testing.T, id uint) database.User {
	t.Helper()
	var u database.User
	if err := e.db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u
}

func (e *testEnv) countResumes(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&database.Resume{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count resumes: %v", err)
	}
	return n
}

func (e *testEnv) sessionCookie(t *testing.T, userID uint) *http.Cookie {
	t.Helper()
	token, _, err := e.app.Sessions.Issue(userID)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e *testEnv) postForm(path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies...)
}

func (e *testEnv) postMultipart(t *testing.T, path string, values url.Values, filename string, content []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, vals := range values {
		for _, v := range vals {
			if err := writer.WriteField(key, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile(profilePictureField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req, cookies...)
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusSeeOther && w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return b
}

func resumeForm() url.Values {
	return url.Values{
		"name":                      {"Ada Lovelace"},
		"profession":                {"Engineer"},
		"skills":                    {"Python, Go"},
		"template":                  {"classic"},
		"experiences[0][job_title]": {"Analyst"},
		"experiences[0][company]":   {"Babbage & Co"},
		"experiences[0][job_desc]":  {"Wrote the first published algorithm for the engine."},
	}
}
