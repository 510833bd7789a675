package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestTokenService_BuildAndParse(t *testing.T) {
	s := NewTokenService(nil)

	token, err := s.BuildToken("admin@admin.admin")
	if err != nil {
		t.Fatalf("BuildToken: %v", err)
	}

	claim, err := ParseClaim(token)
	if err != nil {
		t.Fatalf("ParseClaim: %v", err)
	}
	if claim.Email != "admin@admin.admin" {
		t.Fatalf("email mismatch: %q", claim.Email)
	}
	if claim.Nonce == "" || claim.IssuedAt == 0 {
		t.Fatalf("claim missing random factor or issue time: %+v", claim)
	}

	// 随机因子保证两次签发不同
	token2, _ := s.BuildToken("admin@admin.admin")
	if token == token2 {
		t.Fatalf("tokens must differ across issues")
	}
}

func TestParseClaim_Rejects(t *testing.T) {
	cases := map[string]string{
		"not base64":    "%%%not-base64%%%",
		"not json":      base64.StdEncoding.EncodeToString([]byte("plain text")),
		"missing email": base64.StdEncoding.EncodeToString([]byte(`{"nonce":"x"}`)),
	}
	for name, token := range cases {
		if _, err := ParseClaim(token); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}

func TestTokenService_StatefulLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewTokenService(rdb)
	ctx := context.Background()

	token, err := s.BuildToken("admin@admin.admin")
	if err != nil {
		t.Fatalf("BuildToken: %v", err)
	}

	// 未入库的 token 无效
	ok, err := s.TokenExists(ctx, token)
	if err != nil || ok {
		t.Fatalf("unsaved token must not exist, ok=%v err=%v", ok, err)
	}

	if err := s.StoreToken(ctx, token, "admin@admin.admin", 0); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}
	ok, err = s.TokenExists(ctx, token)
	if err != nil || !ok {
		t.Fatalf("stored token must exist, ok=%v err=%v", ok, err)
	}

	// 过了默认 TTL 自动失效
	mr.FastForward(defaultTokenTTL + 1)
	ok, _ = s.TokenExists(ctx, token)
	if ok {
		t.Fatalf("expired token must not exist")
	}

	if err := s.StoreToken(ctx, token, "admin@admin.admin", 0); err != nil {
		t.Fatalf("StoreToken again: %v", err)
	}
	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	ok, _ = s.TokenExists(ctx, token)
	if ok {
		t.Fatalf("revoked token must not exist")
	}
}

func TestTokenService_StatelessFallback(t *testing.T) {
	s := NewTokenService(nil)
	ctx := context.Background()

	if s.Stateful() {
		t.Fatalf("nil redis must be stateless")
	}
	if err := s.StoreToken(ctx, "t", "e", 0); err != nil {
		t.Fatalf("stateless store must be a no-op, got %v", err)
	}
	// 无存储时一律视为有效（不可注销）
	ok, err := s.TokenExists(ctx, "t")
	if err != nil || !ok {
		t.Fatalf("stateless exists: ok=%v err=%v", ok, err)
	}
	if err := s.RevokeToken(ctx, "t"); err != nil {
		t.Fatalf("stateless revoke must be a no-op, got %v", err)
	}
}
