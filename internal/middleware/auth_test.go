package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/testsupport"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func newEngine(store *testsupport.MemoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(middleware.RequestLogger(), middleware.LoadUser(store))

	r.GET("/login/:id", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(middleware.SessionUserKey, c.Param("id"))
		if err := session.Save(); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", middleware.AuthRequired(), func(c *gin.Context) {
		user := c.MustGet(middleware.CheckUserKey).(*models.User)
		c.String(http.StatusOK, user.Username)
	})
	return r
}

func login(t *testing.T, r *gin.Engine, id string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login/"+id, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("login = %d", w.Code)
	}
	return w.Result().Cookies()
}

func me(r *gin.Engine, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoadUserFromSession(t *testing.T) {
	store := testsupport.NewMemoryStore()
	ann := store.AddUser("ann")
	r := newEngine(store)

	w := me(r, login(t, r, "1"))
	if w.Code != http.StatusOK || w.Body.String() != ann.Username {
		t.Errorf("GET /me = %d %q", w.Code, w.Body.String())
	}
}

func TestAuthRequiredWithoutSession(t *testing.T) {
	r := newEngine(testsupport.NewMemoryStore())
	if w := me(r, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("GET /me = %d, want 401", w.Code)
	}
}

func TestSessionForMissingUser(t *testing.T) {
	store := testsupport.NewMemoryStore()
	store.AddUser("ann")
	r := newEngine(store)

	if w := me(r, login(t, r, "99")); w.Code != http.StatusUnauthorized {
		t.Errorf("GET /me = %d, want 401", w.Code)
	}
}
