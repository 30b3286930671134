package controller

import (
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PresenceController struct {
	Hub *service.PresenceHub
}

func NewPresenceController(hub *service.PresenceHub) *PresenceController {
	return &PresenceController{Hub: hub}
}

// HandleWS godoc
// @Summary 在线状态 WebSocket
// @Description 登录用户建立连接即为在线，所有连接断开后标记离线
// @Tags 在线状态
// @Success 101 "Switching Protocols"
// @Success 302 "未登录跳转登录页"
// @Router /ws/presence [get]
func (ctrl *PresenceController) HandleWS(c *gin.Context) {
	userID := util.CurrentUserID(c)
	if err := ctrl.Hub.Serve(c.Writer, c.Request, userID); err != nil {
		// Upgrade 失败时已写回错误响应
		logger.Log.Warn("Presence websocket not established", zap.Error(err), zap.Uint("userID", userID))
	}
}
