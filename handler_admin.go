package relay_sdk

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	model "github.com/cydxin/relay-sdk/models"
	"github.com/cydxin/relay-sdk/response"
)

// -------------------- 管理端（Admin）接口 --------------------
// 这些 handler 走同步请求路径，经 call 进入房间循环读写状态。
// 路由请配合 GinAdminAuthMiddleware 使用。

// adminRoom 按 query 参数 room 取房间，缺省用 DefaultRoomName。
func (e *RelayEngine) adminRoom(ctx *gin.Context) *RoomActor {
	room, err := e.Room(ctx.Query("room"))
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, response.Error(response.CodeInternalError, err.Error()))
		return nil
	}
	return room
}

// GinHandleListChannels 获取频道列表
// @Summary 频道列表
// @Description 列出房间内当前存在的频道（名称、成员数、最后活跃时间）
// @Tags 管理
// @Produce json
// @Success 200 {object} response.Response{data=[]ChannelInfo}
// @Security BearerAuth
// @Router /api/admin/channels [get]
func (e *RelayEngine) GinHandleListChannels(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	ctx.JSON(http.StatusOK, response.Success(gin.H{"channels": room.ListChannels()}))
}

// GinHandleDeleteChannel 删除频道
// @Summary 删除频道
// @Description 通知所有成员、断开其连接并移除频道
// @Tags 管理
// @Produce json
// @Param id path string true "频道 ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "频道不存在"
// @Security BearerAuth
// @Router /api/admin/channels/{id} [delete]
func (e *RelayEngine) GinHandleDeleteChannel(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	if !room.DeleteChannel(ctx.Param("id")) {
		ctx.JSON(http.StatusNotFound, response.Error(response.CodeNotFound, "channel not found"))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleListMessages 获取频道消息
// @Summary 频道消息台账
// @Tags 管理
// @Produce json
// @Param id path string true "频道 ID"
// @Success 200 {object} response.Response{data=[]Message}
// @Security BearerAuth
// @Router /api/admin/channels/{id}/messages [get]
func (e *RelayEngine) GinHandleListMessages(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	ctx.JSON(http.StatusOK, response.Success(gin.H{"messages": room.Messages(ctx.Param("id"))}))
}

// GinHandleDeleteMessage 删除单条消息
// @Summary 删除单条消息
// @Tags 管理
// @Produce json
// @Param id path string true "频道 ID"
// @Param mid path string true "消息 ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "频道不存在"
// @Security BearerAuth
// @Router /api/admin/channels/{id}/messages/{mid} [delete]
func (e *RelayEngine) GinHandleDeleteMessage(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	if !room.DeleteMessage(ctx.Param("id"), ctx.Param("mid")) {
		ctx.JSON(http.StatusNotFound, response.Error(response.CodeNotFound, "channel not found"))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleClearMessages 清空频道消息
// @Summary 清空频道消息
// @Tags 管理
// @Produce json
// @Param id path string true "频道 ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "频道不存在"
// @Security BearerAuth
// @Router /api/admin/channels/{id}/messages [delete]
func (e *RelayEngine) GinHandleClearMessages(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	if !room.ClearMessages(ctx.Param("id")) {
		ctx.JSON(http.StatusNotFound, response.Error(response.CodeNotFound, "channel not found"))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

type CreateAnnouncementReq struct {
	Target  AnnouncementTarget `json:"target"`
	Content string             `json:"content" binding:"required"`
}

// GinHandleCreateAnnouncement 发布公告
// @Summary 发布公告
// @Description target 为 "all" 或频道 ID 列表；同步广播给目标频道当前成员，不回放
// @Tags 管理
// @Accept json
// @Produce json
// @Param req body CreateAnnouncementReq true "公告内容"
// @Success 200 {object} response.Response{data=Announcement}
// @Failure 400 {object} response.Response "请求错误"
// @Security BearerAuth
// @Router /api/admin/announcements [post]
func (e *RelayEngine) GinHandleCreateAnnouncement(ctx *gin.Context) {
	var req CreateAnnouncementReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, err.Error()))
		return
	}

	room := e.adminRoom(ctx)
	if room == nil {
		return
	}

	ann := room.Announce(req.Target, req.Content)
	e.persistAnnouncement(ann)

	ctx.JSON(http.StatusOK, response.Success(ann, "announcement published"))
}

// persistAnnouncement 留存公告审计记录；失败只记日志（广播已完成）。
func (e *RelayEngine) persistAnnouncement(ann Announcement) {
	if e.config.DB == nil {
		return
	}
	raw, err := json.Marshal(ann.Target)
	if err != nil {
		logrus.Errorf("announcement target marshal: %v", err)
		return
	}
	row := model.Announcement{
		ID:        ann.ID,
		Target:    datatypes.JSON(raw),
		Content:   ann.Content,
		CreatedAt: ann.CreatedAt,
	}
	if err := e.config.DB.Create(&row).Error; err != nil {
		logrus.Errorf("announcement persist: %v", err)
	}
}

// GinHandleListViolations 获取违禁记录
// @Summary 违禁记录列表
// @Tags 管理
// @Produce json
// @Success 200 {object} response.Response{data=[]Violation}
// @Security BearerAuth
// @Router /api/admin/violations [get]
func (e *RelayEngine) GinHandleListViolations(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	ctx.JSON(http.StatusOK, response.Success(gin.H{"violations": room.Violations()}))
}

// GinHandleProcessViolation 处理违禁记录
// @Summary 标记违禁记录为已处理
// @Description 一次性流转，重复调用幂等
// @Tags 管理
// @Produce json
// @Param id path string true "违禁记录 ID"
// @Success 200 {object} response.Response{data=Violation}
// @Failure 404 {object} response.Response "记录不存在"
// @Security BearerAuth
// @Router /api/admin/violations/{id} [put]
func (e *RelayEngine) GinHandleProcessViolation(ctx *gin.Context) {
	room := e.adminRoom(ctx)
	if room == nil {
		return
	}
	v, found := room.ProcessViolation(ctx.Param("id"))
	if !found {
		ctx.JSON(http.StatusNotFound, response.Error(response.CodeNotFound, "violation not found"))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(v))
}
