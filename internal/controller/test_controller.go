package controller

import (
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"

	"github.com/gin-gonic/gin"
)

// TestController 管理端试卷接口
type TestController struct {
	TestService *service.TestService
}

func NewTestController(testService *service.TestService) *TestController {
	return &TestController{TestService: testService}
}

// ListTests godoc
// @Summary 试卷列表
// @Tags 试卷管理
// @Produce json
// @Security ApiKeyAuth
// @Param active query bool false "仅启用的试卷"
// @Success 200 {object} util.Response{data=[]service.TestSummary} "成功"
// @Router /api/admin/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	tests, err := c.TestService.List(ctx.Request.Context(), util.IsTruthy(ctx.Query("active")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// GetTest godoc
// @Summary 试卷详情
// @Tags 试卷管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=model.Test} "成功"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/admin/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	test, err := c.TestService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// CreateTest godoc
// @Summary 创建试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.TestRequest true "试卷"
// @Success 201 {object} util.Response{data=model.Test} "创建成功"
// @Failure 409 {object} util.Response "标题重复"
// @Router /api/admin/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.TestService.Create(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// UpdateTest godoc
// @Summary 更新试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param body body service.TestRequest true "试卷"
// @Success 200 {object} util.Response{data=model.Test} "成功"
// @Router /api/admin/tests/{id} [put]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.TestService.Update(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// ToggleTest godoc
// @Summary 启用/停用试卷
// @Tags 试卷管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=model.Test} "成功"
// @Router /api/admin/tests/{id}/toggle [post]
func (c *TestController) ToggleTest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	test, err := c.TestService.Toggle(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// UpdateAccess godoc
// @Summary 设置参加人数限制
// @Description mode=infinite 不限人数；mode=limited 需 maxUsers>=1。修改后已占用的名额清零
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param body body service.AccessRequest true "限制"
// @Success 200 {object} util.Response{data=model.Test} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Router /api/admin/tests/{id}/access [post]
func (c *TestController) UpdateAccess(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req service.AccessRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.TestService.UpdateAccess(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// DeleteTest godoc
// @Summary 删除试卷及其题目
// @Tags 试卷管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/admin/tests/{id} [delete]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := c.TestService.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
