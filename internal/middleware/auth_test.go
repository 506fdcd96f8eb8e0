package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskflow/internal/model"
)

func newRouter(auth *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", auth.Authenticate(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentActor(c).Username)
	})
	r.GET("/reports", auth.RequireCapability(model.CapViewReports), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", auth.RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r http.Handler, path string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func TestIssueAndParseToken(t *testing.T) {
	auth := NewAuthenticator("secret", false)
	id := uuid.New()

	token, expiresAt, err := auth.IssueToken(id, "manager", model.RoleManager)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) < TokenTTL-time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.UserID != id || actor.Username != "manager" || actor.Role != model.RoleManager {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if _, err := NewAuthenticator("other", false).ParseToken(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	auth := NewAuthenticator("secret", false)
	auth.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, _, err := auth.IssueToken(uuid.New(), "staff1", model.RoleStaff)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	auth.now = time.Now
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}

func TestUnknownRoleIsRejected(t *testing.T) {
	auth := NewAuthenticator("secret", false)
	token, _, _ := auth.IssueToken(uuid.New(), "root", "superuser")
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("unknown role must be rejected")
	}
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator("secret", false)
	r := newRouter(auth)
	token, _, _ := auth.IssueToken(uuid.New(), "staff1", model.RoleStaff)

	if w := get(r, "/me", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := get(r, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Token "+token) }); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: expected 401, got %d", w.Code)
	}

	w := get(r, "/me", bearer(token))
	if w.Code != http.StatusOK || w.Body.String() != "staff1" {
		t.Fatalf("bearer: unexpected response %d %q", w.Code, w.Body.String())
	}

	w = get(r, "/me", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	})
	if w.Code != http.StatusOK || w.Body.String() != "staff1" {
		t.Fatalf("cookie: unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestRequireCapabilityAndRole(t *testing.T) {
	auth := NewAuthenticator("secret", false)
	r := newRouter(auth)
	staff, _, _ := auth.IssueToken(uuid.New(), "staff1", model.RoleStaff)
	manager, _, _ := auth.IssueToken(uuid.New(), "manager", model.RoleManager)

	cases := []struct {
		path  string
		token string
		want  int
	}{
		{"/reports", staff, http.StatusForbidden},
		{"/reports", manager, http.StatusOK},
		{"/reports", "", http.StatusUnauthorized},
		{"/admin", manager, http.StatusForbidden},
	}
	for _, tc := range cases {
		var setup func(*http.Request)
		if tc.token != "" {
			setup = bearer(tc.token)
		}
		if w := get(r, tc.path, setup); w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
	}
}
