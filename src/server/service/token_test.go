package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apimgr/ecogarden/src/database"
	models "github.com/apimgr/ecogarden/src/server/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenService_IssueAndParse(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour, "ecogarden")
	user := &models.User{ID: 7, Email: "admin@ecogarden.com", StoredRoles: []string{models.RoleAdmin}}

	token, expires, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a JWT", token)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Errorf("expires = %v, want about one hour from now", expires)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Username != "admin@ecogarden.com" || claims.Issuer != "ecogarden" {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != models.RoleAdmin || claims.Roles[1] != models.RoleUser {
		t.Errorf("roles = %v", claims.Roles)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour, "ecogarden")
	user := &models.User{Email: "user@ecogarden.com"}

	expired := NewTokenService(testSecret, time.Hour, "ecogarden")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, _ := expired.Issue(user)

	forged := NewTokenService("another-secret-another-secret-xx", time.Hour, "ecogarden")
	forgedToken, _, _ := forged.Issue(user)

	otherIssuer := NewTokenService(testSecret, time.Hour, "someone-else")
	otherIssuerToken, _, _ := otherIssuer.Issue(user)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "user@ecogarden.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expiredToken},
		{"wrong secret", forgedToken},
		{"wrong issuer", otherIssuerToken},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := svc.Parse(expiredToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse(expired) error = %v, want ErrTokenExpired", err)
	}
	if _, err := svc.Parse(forgedToken); errors.Is(err, ErrTokenExpired) {
		t.Error("forged token must not be reported as expired")
	}
}

func newAuthService(t *testing.T) (*AuthService, *models.UserModel) {
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
	return &AuthService{Users: users, Tokens: NewTokenService(testSecret, time.Hour, "ecogarden")}, users
}

func TestAuthService_LoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	auth, users := newAuthService(t)

	u, err := users.Create(ctx, "user@ecogarden.com", "password123", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := auth.Login(ctx, "user@ecogarden.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := auth.Login(ctx, "nobody@ecogarden.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown) error = %v, want ErrInvalidCredentials", err)
	}

	token, _, err := auth.Login(ctx, "user@ecogarden.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	current, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if current.ID != u.ID {
		t.Errorf("Authenticate() user = %+v", current)
	}

	if err := users.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Authenticate() after deletion error = %v, want ErrInvalidToken", err)
	}
}
