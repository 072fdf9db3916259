package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRedirect_CarriesMessagesToNextRequest(t *testing.T) {
	r := gin.New()
	r.Use(Middleware(false))
	r.GET("/set", func(ctx *gin.Context) {
		AddSuccess(ctx, "You are logged out")
		AddError(ctx, "second")
		Redirect(ctx, "/show")
	})

	var got Messages
	r.GET("/show", func(ctx *gin.Context) {
		got = Incoming(ctx)
		ctx.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/show" {
		t.Fatalf("Location = %q", loc)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("flash cookie not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/show", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if len(got.Success) != 1 || got.Success[0] != "You are logged out" {
		t.Fatalf("Success = %v", got.Success)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "second" {
		t.Fatalf("Errors = %v", got.Errors)
	}

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("flash cookie should be cleared once read")
	}
}

func TestRedirect_NoMessagesNoCookie(t *testing.T) {
	r := gin.New()
	r.Use(Middleware(false))
	r.GET("/", func(ctx *gin.Context) { Redirect(ctx, "/login") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			t.Fatalf("unexpected flash cookie %+v", c)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	if m := decode("%%%"); !m.Empty() {
		t.Fatalf("malformed base64 should decode to empty, got %+v", m)
	}
	if m := decode("bm90LWpzb24"); !m.Empty() {
		t.Fatalf("malformed json should decode to empty, got %+v", m)
	}
}

func TestIncoming_WithoutMiddleware(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	if m := Incoming(ctx); !m.Empty() {
		t.Fatalf("expected empty messages, got %+v", m)
	}
	AddError(ctx, "dropped")
}
