package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/database"
	models "github.com/apimgr/ecogarden/src/server/model"
	services "github.com/apimgr/ecogarden/src/server/service"
	"github.com/apimgr/ecogarden/src/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuth(t *testing.T) (*services.AuthService, *models.UserModel) {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	users := &models.UserModel{DB: db}
	tokens := services.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour, "ecogarden")
	return &services.AuthService{Users: users, Tokens: tokens}, users
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %s", w.Body.String())
	}
	return body
}

func TestRequireAuthAndRole(t *testing.T) {
	auth, users := setupAuth(t)
	ctx := context.Background()

	user, err := users.Create(ctx, "user@ecogarden.com", "password123", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	admin, err := users.Create(ctx, "admin@ecogarden.com", "password123", []string{models.RoleAdmin}, nil)
	if err != nil {
		t.Fatal(err)
	}
	userToken, _, _ := auth.Tokens.Issue(user)
	adminToken, _, _ := auth.Tokens.Issue(admin)

	router := gin.New()
	router.GET("/me", RequireAuth(auth), func(c *gin.Context) {
		u, _ := GetCurrentUser(c)
		c.String(http.StatusOK, u.Email)
	})
	router.DELETE("/admin", RequireAuth(auth), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		method  string
		path    string
		header  string
		status  int
		message string
	}{
		{"no header", "GET", "/me", "", 401, "JWT Token not found"},
		{"wrong scheme", "GET", "/me", "Basic abc", 401, "JWT Token not found"},
		{"garbage token", "GET", "/me", "Bearer abc.def.ghi", 401, "Invalid JWT Token"},
		{"user token", "GET", "/me", "Bearer " + userToken, 200, ""},
		{"lowercase scheme", "GET", "/me", "bearer " + userToken, 200, ""},
		{"user on admin route", "DELETE", "/admin", "Bearer " + userToken, 403, "Access Denied."},
		{"admin on admin route", "DELETE", "/admin", "Bearer " + adminToken, 204, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.message != "" {
				if got := decodeError(t, w)["error"]; got != tt.message {
					t.Errorf("error = %v, want %q", got, tt.message)
				}
			}
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	router.ServeHTTP(w, req)
	if w.Body.String() != "user@ecogarden.com" {
		t.Errorf("current user = %q", w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	generated := w.Header().Get(HeaderXRequestID)
	if len(generated) != 36 || w.Body.String() != generated {
		t.Errorf("generated id = %q, body = %q", generated, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderXCorrelationID, "abc-123")
	router.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderXRequestID); got != "abc-123" {
		t.Errorf("propagated id = %q, want abc-123", got)
	}
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(2, time.Minute))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if got := decodeError(t, w)["code"]; got != "RATE_LIMITED" {
		t.Errorf("code = %v", got)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
}

func TestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(BodySizeLimitMiddleware(16))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("small")))
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/api/conseil", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/doc/index.html", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/conseil", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || !strings.HasPrefix(w.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Errorf("API headers = %v", w.Header())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/doc/index.html", nil))
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "script-src 'self'") {
		t.Errorf("doc CSP = %q", w.Header().Get("Content-Security-Policy"))
	}
}

func TestAccessLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := utils.NewLogger(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	router := gin.New()
	router.Use(AccessLogger(logger))
	router.GET("/api/conseil/:month", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/conseil/4", nil))

	data, err := os.ReadFile(filepath.Join(dir, "access.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"GET /api/conseil/4 HTTP/1.1" 200 2`) {
		t.Errorf("access.log = %q", data)
	}
}

func TestNormalizeMetricPath(t *testing.T) {
	tests := map[string]string{
		"":                  "/",
		"/api/conseil/12":   "/api/conseil/:id",
		"/api/user/3/x":     "/api/user/:id/x",
		"/api/meteo/Nantes": "/api/meteo/Nantes",
	}
	for in, want := range tests {
		if got := normalizeMetricPath(in); got != want {
			t.Errorf("normalizeMetricPath(%q) = %q, want %q", in, got, want)
		}
	}
}
