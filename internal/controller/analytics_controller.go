package controller

import (
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"

	"github.com/gin-gonic/gin"
)

// AnalyticsController 管理端统计与数据重置
type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// @Summary 概览
// @Description 用户、试卷、题目、成绩总数，平均分与前五名
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.Dashboard}
// @Router /api/admin/analytics/dashboard [get]
func (c *AnalyticsController) GetDashboard(ctx *gin.Context) {
	d, err := c.AnalyticsService.Dashboard(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// @Summary 用户统计
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.UserSummary}
// @Router /api/admin/analytics/users [get]
func (c *AnalyticsController) GetUsers(ctx *gin.Context) {
	users, err := c.AnalyticsService.UserSummaries(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, users)
}

// @Summary 单个用户统计
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response{data=service.UserDetail}
// @Failure 404 {object} util.Response
// @Router /api/admin/analytics/users/{id} [get]
func (c *AnalyticsController) GetUser(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.AnalyticsService.UserDetail(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 试卷统计
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.TestAnalytics}
// @Router /api/admin/analytics/tests [get]
func (c *AnalyticsController) GetTests(ctx *gin.Context) {
	tests, err := c.AnalyticsService.TestSummaries(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// @Summary 单个试卷统计
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetail}
// @Failure 404 {object} util.Response
// @Router /api/admin/analytics/tests/{id} [get]
func (c *AnalyticsController) GetTest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.AnalyticsService.TestDetail(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 试卷下每个用户的最近成绩
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=[]model.Result}
// @Router /api/admin/analytics/tests/{id}/latest [get]
func (c *AnalyticsController) GetTestLatest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	results, err := c.AnalyticsService.LatestPerUser(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// @Summary 实时在线用户
// @Description 最近 3 分钟内有请求的用户
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.LiveUser}
// @Router /api/admin/analytics/live-users [get]
func (c *AnalyticsController) GetLiveUsers(ctx *gin.Context) {
	users, err := c.AnalyticsService.LiveUsers(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, users)
}

// @Summary 实时作答进度
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.LiveProgressRow}
// @Router /api/admin/analytics/live-progress [get]
func (c *AnalyticsController) GetLiveProgress(ctx *gin.Context) {
	rows, err := c.AnalyticsService.LiveProgress(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary 清空成绩与进度
// @Tags 数据重置
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/admin/reset/results [post]
func (c *AnalyticsController) ResetResults(ctx *gin.Context) {
	if err := c.AnalyticsService.ResetResults(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 删除全部学员
// @Description 管理员账号保留，学员的成绩与进度一并删除
// @Tags 数据重置
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ResetReport}
// @Router /api/admin/reset/users [post]
func (c *AnalyticsController) ResetUsers(ctx *gin.Context) {
	report, err := c.AnalyticsService.ResetUsers(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 清零选项计票
// @Tags 数据重置
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/admin/reset/votes [post]
func (c *AnalyticsController) ResetVotes(ctx *gin.Context) {
	if err := c.AnalyticsService.ResetVotes(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
