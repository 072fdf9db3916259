package http_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/config"
	"github.com/geocoder89/memberhub/internal/db"
	apphttp "github.com/geocoder89/memberhub/internal/http"
	"github.com/geocoder89/memberhub/internal/notifications"
	"github.com/geocoder89/memberhub/internal/observability"
	"github.com/geocoder89/memberhub/internal/repo/memory"
	"github.com/geocoder89/memberhub/internal/repo/postgres"
	"github.com/geocoder89/memberhub/internal/security"
	"github.com/geocoder89/memberhub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	return config.Config{
		Env:               "test",
		SessionCookieName: "memberhub_session",
		PublicBaseURL:     "http://members.test",
		MaxBodyBytes:      1 << 20,
	}
}

// outbox records every email the stack sends.
type outbox struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (o *outbox) Send(_ context.Context, msg notifications.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(t *testing.T) notifications.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no email sent")
	return o.msgs[len(o.msgs)-1]
}

func newStack(t *testing.T, dir auth.Directory) (*gin.Engine, *outbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	hasher := security.NewHasher(bcrypt.MinCost)
	box := &outbox{}

	svc := auth.NewService(auth.ServiceDeps{
		Directory: dir,
		Hasher:    hasher,
		Tokens:    auth.NewTokenManager("test-secret", time.Hour),
		Sessions:  session.NewMemoryStore(time.Hour),
		Log:       log,
		Prom:      prom,
	})
	resets := auth.NewResetManager(auth.ResetDeps{
		Directory: dir,
		Hasher:    hasher,
		Sender:    box,
		Log:       log,
		Prom:      prom,
	})

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Cfg:      testConfig(),
		Log:      log,
		Auth:     svc,
		Reset:    resets,
		Prom:     prom,
		Gatherer: reg,
	})
	return r, box
}

// client keeps cookies between requests like a browser would.
type client struct {
	t       *testing.T
	r       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, r http.Handler) *client {
	return &client{t: t, r: r, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// follow performs the redirect in w and returns the landing page.
func (c *client) follow(w *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	c.t.Helper()
	require.Equal(c.t, http.StatusFound, w.Code, "body=%s", w.Body.String())
	return c.get(w.Header().Get("Location"))
}

var resetLink = regexp.MustCompile(`href="http://members\.test(/reset/[0-9a-f]+)"`)

func runAccountFlows(t *testing.T, dir auth.Directory) {
	r, box := newStack(t, dir)

	// register alice
	alice := newClient(t, r)
	w := alice.post("/signup", url.Values{
		"name": {"Alice"}, "email": {"alice@example.com"}, "password": {"secret1"}, "password2": {"secret1"},
	})
	page := alice.follow(w)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "You are now registered and logged in")
	assert.Contains(t, page.Body.String(), "Welcome Alice")

	// logout, then the dashboard is gated
	page = alice.follow(alice.get("/logout"))
	assert.Contains(t, page.Body.String(), "You are logged out")
	page = alice.follow(alice.get("/dashboard"))
	assert.Contains(t, page.Body.String(), "Please log in to view that resource")

	// duplicate signup
	bob := newClient(t, r)
	w = bob.post("/signup", url.Values{
		"name": {"Bob"}, "email": {"Alice@Example.com"}, "password": {"secret1"}, "password2": {"secret1"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists")

	// wrong password
	w = bob.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"wrong1"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Email or password is incorrect.")
	_, hasSession := bob.cookies["memberhub_session"]
	assert.False(t, hasSession)

	// unknown email gets the same reset answer and sends nothing
	page = bob.follow(bob.post("/reset", url.Values{"email": {"nobody@example.com"}}))
	assert.Contains(t, page.Body.String(), "If an account with that email exists")
	box.mu.Lock()
	sent := len(box.msgs)
	box.mu.Unlock()
	assert.Zero(t, sent)

	// full reset round trip
	page = bob.follow(bob.post("/reset", url.Values{"email": {"alice@example.com"}}))
	assert.Contains(t, page.Body.String(), "If an account with that email exists")

	msg := box.last(t)
	assert.Equal(t, "alice@example.com", msg.To)
	m := resetLink.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2, "reset link not found in %q", msg.HTML)
	path := m[1]
	token := strings.TrimPrefix(path, "/reset/")

	page = bob.get(path)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `action="/reset-password/`+token+`"`)

	w = bob.post("/reset-password/"+token, url.Values{"password": {"newpass1"}, "password2": {"newpass2"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Passwords do not match")

	page = bob.follow(bob.post("/reset-password/"+token, url.Values{"password": {"newpass1"}, "password2": {"newpass1"}}))
	assert.Contains(t, page.Body.String(), "Success! Your password has been changed.")
	assert.Equal(t, "Your password has been changed", box.last(t).Subject)

	// the token is single use
	page = bob.follow(bob.get(path))
	assert.Contains(t, page.Body.String(), "Password reset token is invalid or has expired.")

	// old password fails, new one works
	w = alice.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = alice.post("/login", url.Values{"email": {"alice@example.com"}, "password": {"newpass1"}})
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	// details record then search for it
	page = alice.follow(alice.post("/details", url.Values{
		"name": {"Carol"}, "email": {"carol@example.com"}, "registration_number": {"REG-42"},
		"address": {"1 Main St"}, "phone_number": {"555-0100"},
	}))
	assert.Contains(t, page.Body.String(), "Thank you for adding your details")

	page = alice.get("/search?registration_number=REG-42")
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "carol@example.com")

	// detail-only records cannot log in
	w = bob.post("/login", url.Values{"email": {"carol@example.com"}, "password": {"anything"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountFlows_Memory(t *testing.T) {
	runAccountFlows(t, memory.NewUsersRepo())
}

func TestAccountFlows_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping postgres integration test")
	}

	require.NoError(t, db.Migrate(dsn))

	pool, err := db.NewPool(dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), `TRUNCATE users, jobs`)
	require.NoError(t, err)

	runAccountFlows(t, postgres.NewUsersRepo(pool, nil))
}

func TestRouter_RootProbesAndNotFound(t *testing.T) {
	r, _ := newStack(t, memory.NewUsersRepo())
	c := newClient(t, r)

	w := c.get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	assert.Equal(t, http.StatusOK, c.get("/healthz").Code)
	assert.Equal(t, http.StatusOK, c.get("/readyz").Code)

	w = c.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "memberhub_")

	w = c.get("/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRouter_RejectsJSONPosts(t *testing.T) {
	r, _ := newStack(t, memory.NewUsersRepo())

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_RejectsCrossSiteLogin(t *testing.T) {
	r, _ := newStack(t, memory.NewUsersRepo())

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40x.io&password=secret1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://evil.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no session may be issued")
}
