package relay_sdk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cydxin/relay-sdk/response"
	"github.com/cydxin/relay-sdk/service"
)

// -------------------- 登录（外部凭据存储） --------------------

type LoginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResp struct {
	UserID   uint64 `json:"userId"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
}

// GinHandleLogin 登录
// @Summary 邮箱密码登录
// @Description 校验凭据并签发 bearer token（Redis 配置时 token 可注销）
// @Tags 认证
// @Accept json
// @Produce json
// @Param req body LoginReq true "登录参数"
// @Success 200 {object} response.Response{data=LoginResp}
// @Failure 400 {object} response.Response "参数缺失"
// @Failure 401 {object} response.Response "用户不存在或密码错误"
// @Failure 403 {object} response.Response "用户被封禁"
// @Router /api/login [post]
func (e *RelayEngine) GinHandleLogin(ctx *gin.Context) {
	var req LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "email and password are required"))
		return
	}

	result, err := e.UserService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			ctx.JSON(http.StatusUnauthorized, response.Error(response.CodeUserNotFound, "user not found"))
		case errors.Is(err, service.ErrPasswordWrong):
			ctx.JSON(http.StatusUnauthorized, response.Error(response.CodePasswordError, "invalid password"))
		case errors.Is(err, service.ErrUserBanned):
			ctx.JSON(http.StatusForbidden, response.Error(response.CodePermissionDeny, "user is banned"))
		default:
			ctx.JSON(http.StatusInternalServerError, response.Error(response.CodeInternalError, "internal server error"))
		}
		return
	}

	token, err := e.AuthService.IssueToken(ctx.Request.Context(), result.Email, e.config.TokenTTL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, response.Error(response.CodeInternalError, "issue token failed"))
		return
	}

	ctx.JSON(http.StatusOK, response.Success(LoginResp{
		UserID:   result.UserID,
		Email:    result.Email,
		Nickname: result.Nickname,
		Token:    token,
	}))
}
