package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

const testAdminEmail = "admin@admin.admin"

func TestAuthService_ExtractToken_BearerFirst(t *testing.T) {
	a := NewAuthService(nil, testAdminEmail)

	req := &http.Request{Header: make(http.Header), URL: &url.URL{RawQuery: "token=q"}}
	req.Header.Set("Authorization", "Bearer headerToken")

	got := a.ExtractToken(req)
	if got != "headerToken" {
		t.Fatalf("expected headerToken, got %q", got)
	}
}

func TestAuthService_ExtractToken_QueryFallback(t *testing.T) {
	a := NewAuthService(nil, testAdminEmail)

	u, _ := url.Parse("http://example.com/path?token=queryToken")
	req := &http.Request{Header: make(http.Header), URL: u}

	got := a.ExtractToken(req)
	if got != "queryToken" {
		t.Fatalf("expected queryToken, got %q", got)
	}
}

func TestAuthService_AuthenticateAdmin_Stateless(t *testing.T) {
	a := NewAuthService(nil, testAdminEmail)
	ctx := context.Background()

	token, err := a.IssueToken(ctx, testAdminEmail, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claim, err := a.AuthenticateAdmin(ctx, token)
	if err != nil {
		t.Fatalf("AuthenticateAdmin: %v", err)
	}
	if claim.Email != testAdminEmail {
		t.Fatalf("claim email mismatch: %q", claim.Email)
	}
}

func TestAuthService_AuthenticateAdmin_Failures(t *testing.T) {
	a := NewAuthService(nil, testAdminEmail)
	ctx := context.Background()

	if _, err := a.AuthenticateAdmin(ctx, "  "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("blank token: expected ErrTokenMissing, got %v", err)
	}
	if _, err := a.AuthenticateAdmin(ctx, "%%%garbage%%%"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: expected ErrTokenInvalid, got %v", err)
	}

	// 合法 token 但不是管理员身份
	userToken, err := a.IssueToken(ctx, "user@example.com", 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := a.AuthenticateAdmin(ctx, userToken); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin token: expected ErrNotAdmin, got %v", err)
	}
}

func TestAuthService_AuthenticateAdmin_Revocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthService(rdb, testAdminEmail)
	ctx := context.Background()

	token, err := a.IssueToken(ctx, testAdminEmail, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := a.AuthenticateAdmin(ctx, token); err != nil {
		t.Fatalf("fresh token must authenticate: %v", err)
	}

	if err := a.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := a.AuthenticateAdmin(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("revoked token: expected ErrTokenInvalid, got %v", err)
	}
}
