package controller

import (
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
	UserService *service.UserService
	TestService *service.TestService
}

func NewAuthController(authService *service.AuthService, userService *service.UserService, testService *service.TestService) *AuthController {
	return &AuthController{
		AuthService: authService,
		UserService: userService,
		TestService: testService,
	}
}

// TokenRequest API 登录
// swagger:model TokenRequest
type TokenRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Login godoc
// @Summary 邮箱登录
// @Description 首次登录自动创建账号，资料随登录更新；停用账号拒绝登录
// @Tags 认证
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "账号已停用"
// @Router /login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req service.LoginRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, created, err := c.AuthService.Login(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if err := c.AuthService.StartSession(ctx.Request.Context(), util.SessionID(ctx), user); err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"user": user, "created": created})
}

// Logout godoc
// @Summary 退出登录
// @Tags 认证
// @Produce json
// @Success 200 {object} util.Response "成功"
// @Router /logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	if err := c.AuthService.Logout(ctx.Request.Context(), util.SessionID(ctx)); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// TestCenter godoc
// @Summary 可参加的试卷
// @Tags 认证
// @Produce json
// @Success 200 {object} util.Response{data=[]service.TestSummary} "成功"
// @Success 302 "未登录跳转登录页"
// @Router /test-center [get]
func (c *AuthController) TestCenter(ctx *gin.Context) {
	user, err := c.AuthService.CurrentUser(ctx.Request.Context(), util.SessionID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if user == nil {
		util.Redirect(ctx, "/login")
		return
	}
	tests, err := c.TestService.List(ctx.Request.Context(), true)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"user": user, "tests": tests})
}

// Register godoc
// @Summary 创建用户
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "用户信息"
// @Success 201 {object} util.Response{data=model.User} "创建成功"
// @Failure 409 {object} util.Response "邮箱已注册"
// @Router /api/users [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user, err := c.AuthService.Register(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// Token godoc
// @Summary 获取 API 令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body TokenRequest true "邮箱"
// @Success 200 {object} util.Response "成功"
// @Failure 403 {object} util.Response "账号已停用"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/login [post]
func (c *AuthController) Token(ctx *gin.Context) {
	var req TokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	token, user, err := c.AuthService.IssueToken(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"token": token, "user": user})
}

// UserCount godoc
// @Summary 用户总数
// @Tags 认证
// @Produce json
// @Success 200 {object} util.Response "成功"
// @Router /api/user-count [get]
func (c *AuthController) UserCount(ctx *gin.Context) {
	count, err := c.UserService.Count(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"count": count})
}
