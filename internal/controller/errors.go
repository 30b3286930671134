package controller

import (
	"errors"
	"net/http"
	"radiography_exam/internal/session"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 将业务错误映射为 HTTP 状态码，未知错误记日志后返回 500
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotAvailable):
		util.NotFoundMsg(ctx, "test not available")
	case errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrResultNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.NotFoundMsg(ctx, err.Error())
	case errors.Is(err, util.ErrTestFull),
		errors.Is(err, util.ErrUserDisabled),
		errors.Is(err, util.ErrPermissionDenied):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrTestTitleTaken),
		errors.Is(err, util.ErrEmailRegistered):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrInvalidAnswer),
		errors.Is(err, util.ErrInvalidAccessLimit),
		errors.Is(err, util.ErrUnsupportedImport),
		errors.Is(err, util.ErrInvalidFileType):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, session.ErrSessionBusy):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrNoQuestions),
		errors.Is(err, util.ErrResultNotSaved):
		logger.Log.Error("Test finalization failed", zap.Error(err), zap.String("path", ctx.FullPath()))
		util.Error(ctx, http.StatusInternalServerError, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}
