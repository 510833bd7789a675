package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/relay-sdk/response"
	"github.com/cydxin/relay-sdk/service"
)

const (
	// ContextEmailKey gin context 里保存管理员 email 的 key
	ContextEmailKey = "admin_email"
	ContextTokenKey = "token"
)

// AuthOptions 可选配置。
type AuthOptions struct {
	// HeaderKey 默认 Authorization
	HeaderKey string
	// QueryKey 默认 token
	QueryKey string
}

func (o *AuthOptions) withDefaults() AuthOptions {
	if o == nil {
		return AuthOptions{HeaderKey: "Authorization", QueryKey: "token"}
	}
	out := *o
	if out.HeaderKey == "" {
		out.HeaderKey = "Authorization"
	}
	if out.QueryKey == "" {
		out.QueryKey = "token"
	}
	return out
}

/*
	GinAdminAuthMiddleware 管理端鉴权中间件：

- 优先从 Authorization: Bearer <token> 读取
- 如果没有，再从 query 参数读取（默认 token=xxx）
- token 声明里的 email 必须是固定管理员身份；缺失/非法 401，非管理员 403

使用：admin.Use(middleware.GinAdminAuthMiddleware(authService, nil))
*/
func GinAdminAuthMiddleware(auth *service.AuthService, opt *AuthOptions) gin.HandlerFunc {
	cfg := opt.withDefaults()

	return func(c *gin.Context) {
		if auth == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Code: response.CodeInternalError,
				Msg:  "auth service is nil",
			})
			return
		}

		token := service.ExtractBearer(c.Request, cfg.HeaderKey, cfg.QueryKey)

		claim, err := auth.AuthenticateAdmin(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			code := response.CodeTokenInvalid
			if errors.Is(err, service.ErrNotAdmin) {
				status = http.StatusForbidden
				code = response.CodePermissionDeny
			}
			c.AbortWithStatusJSON(status, response.Response{
				Code: code,
				Msg:  err.Error(),
			})
			return
		}

		c.Set(ContextEmailKey, claim.Email)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}
