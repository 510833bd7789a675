package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// 默认 token 过期时间
	defaultTokenTTL = 7 * 24 * time.Hour
)

// Claim 管理 token 的声明内容。token 本体就是 base64(JSON)，
// 中间件据此取 email 与固定管理员身份比对。
type Claim struct {
	Email    string `json:"email"`
	Nonce    string `json:"nonce,omitempty"`
	IssuedAt int64  `json:"iat,omitempty"`
}

// TokenService 管理 token 的签发、存储与注销。
// Redis Key 设计：relay:token:{token} -> email (String, TTL)。
// Redis 未配置时签发仍可用，只是 token 不可注销（无状态校验）。
type TokenService struct {
	rdb *redis.Client
}

func NewTokenService(rdb *redis.Client) *TokenService {
	return &TokenService{rdb: rdb}
}

func (s *TokenService) tokenKey(token string) string {
	return "relay:token:" + token
}

// Stateful Redis 是否可用（决定校验是否查存储）
func (s *TokenService) Stateful() bool {
	return s != nil && s.rdb != nil
}

// BuildToken 为 email 构造一个带随机因子的 token。
func (s *TokenService) BuildToken(email string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	claim := Claim{Email: email, Nonce: hex.EncodeToString(b), IssuedAt: time.Now().Unix()}
	raw, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseClaim 解析 token 的声明。格式非法返回错误。
func ParseClaim(token string) (*Claim, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token format")
	}
	var claim Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, fmt.Errorf("invalid token format")
	}
	if claim.Email == "" {
		return nil, fmt.Errorf("token missing email field")
	}
	return &claim, nil
}

// StoreToken 保存 token -> email 映射。
func (s *TokenService) StoreToken(ctx context.Context, token, email string, ttl time.Duration) error {
	if !s.Stateful() {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return s.rdb.Set(ctx, s.tokenKey(token), email, ttl).Err()
}

// TokenExists token 是否仍然有效（在库且未过期）。
func (s *TokenService) TokenExists(ctx context.Context, token string) (bool, error) {
	if !s.Stateful() {
		return true, nil
	}
	_, err := s.rdb.Get(ctx, s.tokenKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RevokeToken 注销 token。
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	if !s.Stateful() {
		return nil
	}
	return s.rdb.Del(ctx, s.tokenKey(token)).Err()
}
