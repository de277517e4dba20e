package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/ecogarden/src/server/middleware"
	models "github.com/apimgr/ecogarden/src/server/model"
	services "github.com/apimgr/ecogarden/src/server/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

type fakeSource struct {
	resp    *services.UpstreamResponse
	err     error
	lookups []string
}

func (f *fakeSource) ByPostalCode(_ context.Context, cp string) (*services.UpstreamResponse, error) {
	f.lookups = append(f.lookups, "zip:"+cp)
	return f.resp, f.err
}

func (f *fakeSource) ByCity(_ context.Context, city string) (*services.UpstreamResponse, error) {
	f.lookups = append(f.lookups, "city:"+city)
	return f.resp, f.err
}

func weatherRouter(source ForecastSource, user *models.User) *gin.Engine {
	r := gin.New()
	setUser := func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.UserContextKey, user)
		}
	}
	h := NewWeatherHandler(source)
	r.GET("/api/meteo", setUser, h.ForUser)
	r.GET("/api/meteo/:city", setUser, h.ForCity)
	return r
}

func TestWeatherHandler_StatusPassthrough(t *testing.T) {
	for _, status := range []int{200, 400, 404, 500} {
		source := &fakeSource{resp: &services.UpstreamResponse{Status: status, Body: []byte(`{"main":{"temp":3.5}}`)}}
		w := httptest.NewRecorder()
		weatherRouter(source, nil).ServeHTTP(w, httptest.NewRequest("GET", "/api/meteo/Brest", nil))

		if w.Code != status {
			t.Errorf("status = %d, want %d", w.Code, status)
		}
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["température"] != 3.5 || body["prévisions"] != nil {
			t.Errorf("body = %v", body)
		}
		if w.Header().Get("X-Cache") != "MISS" {
			t.Errorf("X-Cache = %q", w.Header().Get("X-Cache"))
		}
	}
}

func TestWeatherHandler_UsesUserPostalCode(t *testing.T) {
	cp := "29200"
	source := &fakeSource{resp: &services.UpstreamResponse{Status: 200, Body: []byte(`{}`), Cached: true}}
	w := httptest.NewRecorder()
	weatherRouter(source, &models.User{ID: 1, Email: "a@b.fr", PostalCode: &cp}).
		ServeHTTP(w, httptest.NewRequest("GET", "/api/meteo", nil))

	if w.Code != http.StatusOK || len(source.lookups) != 1 || source.lookups[0] != "zip:29200" {
		t.Errorf("status %d, lookups %v", w.Code, source.lookups)
	}
	if w.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q", w.Header().Get("X-Cache"))
	}

	empty := ""
	source.lookups = nil
	w = httptest.NewRecorder()
	weatherRouter(source, &models.User{ID: 1, PostalCode: &empty}).
		ServeHTTP(w, httptest.NewRequest("GET", "/api/meteo", nil))
	if w.Code != http.StatusBadRequest || len(source.lookups) != 0 {
		t.Errorf("empty postal code: status %d, lookups %v", w.Code, source.lookups)
	}
}

func TestWeatherHandler_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUpstream, http.StatusBadGateway, ErrExternalService},
		{errors.New("boom"), http.StatusInternalServerError, ErrInternal},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		weatherRouter(&fakeSource{err: tt.err}, nil).ServeHTTP(w, httptest.NewRequest("GET", "/api/meteo/Brest", nil))

		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if w.Code != tt.status || body.Code != tt.code || body.Status != tt.status {
			t.Errorf("%v: got %d %+v", tt.err, w.Code, body)
		}
	}
}

func TestParseID(t *testing.T) {
	tests := map[string]bool{
		"1":   true,
		"42":  true,
		"0":   false,
		"01":  false,
		"-3":  false,
		"1.5": false,
		"abc": false,
		"":    false,
	}
	for in, ok := range tests {
		if _, got := parseID(in); got != ok {
			t.Errorf("parseID(%q) ok = %v, want %v", in, got, ok)
		}
	}
	if _, ok := parseID("99999999999999999999"); ok {
		t.Error("parseID accepted an id overflowing int64")
	}
}

func TestValidationDetails(t *testing.T) {
	cp := "123"
	err := validateStruct(CreateUserRequest{Email: "nope", Password: "short", PostalCode: &cp})
	if err == nil {
		t.Fatal("expected validation errors")
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	bindError(c, err)

	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusBadRequest || body.Code != ErrValidationFailed {
		t.Fatalf("got %d %+v", w.Code, body)
	}
	want := map[string]string{
		"email":      "This value is not a valid email address.",
		"password":   "This value is too short. It should have 8 characters or more.",
		"postalCode": "The postal code must be 5 digits.",
	}
	for field, msg := range want {
		if body.Details[field] != msg {
			t.Errorf("details[%s] = %v, want %q", field, body.Details[field], msg)
		}
	}

	if err := validateStruct(AdviceRequest{Text: "Arroser", Month: 12}); err != nil {
		t.Errorf("valid advice rejected: %v", err)
	}
}
