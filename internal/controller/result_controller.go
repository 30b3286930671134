package controller

import (
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ExamService *service.ExamService
}

func NewResultController(examService *service.ExamService) *ResultController {
	return &ResultController{ExamService: examService}
}

// MyResults godoc
// @Summary 我的成绩
// @Description 当前登录用户的全部成绩，最新在前
// @Tags 成绩
// @Produce json
// @Success 200 {object} util.Response{data=[]model.Result} "成功"
// @Success 302 "未登录跳转登录页"
// @Router /user/results [get]
func (c *ResultController) MyResults(ctx *gin.Context) {
	results, err := c.ExamService.ResultsForUser(ctx.Request.Context(), util.CurrentUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}
