package middleware

import (
	"net/http"
	"radiography_exam/internal/config"
	"radiography_exam/internal/model"
	"radiography_exam/internal/session"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionMiddleware 为每个浏览器分配会话 ID（cookie），每次请求顺延有效期
func SessionMiddleware(cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		if err != nil || sid == "" {
			sid = model.GenerateUUID()
		} else if _, err := uuid.Parse(sid); err != nil {
			sid = model.GenerateUUID()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sid, int(cfg.TTL().Seconds()), "/", "", cfg.Secure, true)
		c.Set(util.ContextSessionKey, sid)
		c.Next()
	}
}

// LoadSessionUser 会话已登录时把用户 ID 写入上下文，读取失败按匿名处理
func LoadSessionUser(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := store.Get(c.Request.Context(), util.SessionID(c))
		if err != nil {
			logger.Log.Warn("Failed to load session", zap.Error(err))
		} else if st.LoggedIn() {
			c.Set(util.ContextSessionUserKey, st.UserID)
		}
		c.Next()
	}
}

// RequireLogin 未登录跳转登录页，需在 LoadSessionUser 之后
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if util.CurrentUserID(c) == 0 {
			util.Redirect(c, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}
