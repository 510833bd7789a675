package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/relay-sdk/response"
	"github.com/cydxin/relay-sdk/service"
)

const testAdminEmail = "admin@admin.admin"

func newAuthRouter(t *testing.T, auth *service.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin/ping", GinAdminAuthMiddleware(auth, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": c.GetString(ContextEmailKey)})
	})
	return r
}

func doGet(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGinAdminAuthMiddleware_MissingToken(t *testing.T) {
	r := newAuthRouter(t, service.NewAuthService(nil, testAdminEmail))

	w := doGet(r, "/admin/ping", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if resp.Code != response.CodeTokenInvalid {
		t.Fatalf("expected business code %d, got %d", response.CodeTokenInvalid, resp.Code)
	}
}

func TestGinAdminAuthMiddleware_MalformedToken(t *testing.T) {
	r := newAuthRouter(t, service.NewAuthService(nil, testAdminEmail))

	if w := doGet(r, "/admin/ping", "%%%garbage%%%"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGinAdminAuthMiddleware_NonAdminForbidden(t *testing.T) {
	auth := service.NewAuthService(nil, testAdminEmail)
	r := newAuthRouter(t, auth)

	token, err := auth.IssueToken(context.Background(), "user@example.com", 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	w := doGet(r, "/admin/ping", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != response.CodePermissionDeny {
		t.Fatalf("expected business code %d, got %d", response.CodePermissionDeny, resp.Code)
	}
}

func TestGinAdminAuthMiddleware_AdminPasses(t *testing.T) {
	auth := service.NewAuthService(nil, testAdminEmail)
	r := newAuthRouter(t, auth)

	token, err := auth.IssueToken(context.Background(), testAdminEmail, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	w := doGet(r, "/admin/ping", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["email"] != testAdminEmail {
		t.Fatalf("admin email not set in context, got %q", body["email"])
	}

	// query 参数兜底同样可用（token 是 base64，需做 URL 转义）
	if w := doGet(r, "/admin/ping?token="+url.QueryEscape(token), ""); w.Code != http.StatusOK {
		t.Fatalf("query token: expected 200, got %d", w.Code)
	}
}

func TestGinAdminAuthMiddleware_CustomKeys(t *testing.T) {
	auth := service.NewAuthService(nil, testAdminEmail)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	opt := &AuthOptions{HeaderKey: "X-Admin-Token", QueryKey: "admin_token"}
	r.GET("/admin/ping", GinAdminAuthMiddleware(auth, opt), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, err := auth.IssueToken(context.Background(), testAdminEmail, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("X-Admin-Token", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("custom header key: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/ping?admin_token="+url.QueryEscape(token), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("custom query key: expected 200, got %d", w.Code)
	}

	// 默认键位在自定义配置下不再生效
	w = doGet(r, "/admin/ping", token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("default header must be ignored, got %d", w.Code)
	}
}
