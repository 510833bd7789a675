package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrTokenMissing = errors.New("missing token")
	ErrTokenInvalid = errors.New("invalid token")
	ErrNotAdmin     = errors.New("admin permission required")
)

// AuthService 管理端鉴权核心能力，供中间件/拦截器使用。
// - 解析 token（Bearer 优先，其次 query）
// - 校验声明里的 email 是否为固定管理员身份
// - Redis 配置时额外校验 token 在库（支持注销）
type AuthService struct {
	token      *TokenService
	adminEmail string
}

func NewAuthService(rdb *redis.Client, adminEmail string) *AuthService {
	return &AuthService{token: NewTokenService(rdb), adminEmail: adminEmail}
}

// ExtractBearer 按给定的 header/query 键从请求中提取 token：
// headerKey 的 Bearer 值优先，其次 queryKey 参数。中间件与 SDK 共用这一条路径。
func ExtractBearer(r *http.Request, headerKey, queryKey string) string {
	if r == nil {
		return ""
	}

	ah := strings.TrimSpace(r.Header.Get(headerKey))
	if ah != "" {
		parts := strings.SplitN(ah, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return strings.TrimSpace(r.URL.Query().Get(queryKey))
}

// ExtractToken 用默认键位（Authorization / token）提取 token。
func (a *AuthService) ExtractToken(r *http.Request) string {
	return ExtractBearer(r, "Authorization", "token")
}

// AuthenticateAdmin 校验 token 是否属于管理员。
// 返回 ErrTokenMissing / ErrTokenInvalid / ErrNotAdmin 之一，或底层存储错误。
func (a *AuthService) AuthenticateAdmin(ctx context.Context, token string) (*Claim, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	claim, err := ParseClaim(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if claim.Email != a.adminEmail {
		return nil, ErrNotAdmin
	}

	ok, err := a.token.TokenExists(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claim, nil
}

// IssueToken 为登录成功的用户签发 token 并入库（Redis 配置时）。
func (a *AuthService) IssueToken(ctx context.Context, email string, ttl time.Duration) (string, error) {
	token, err := a.token.BuildToken(email)
	if err != nil {
		return "", err
	}
	if err := a.token.StoreToken(ctx, token, email, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// RevokeToken 注销 token。
func (a *AuthService) RevokeToken(ctx context.Context, token string) error {
	return a.token.RevokeToken(ctx, strings.TrimSpace(token))
}
