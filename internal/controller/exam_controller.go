package controller

import (
	"errors"
	"fmt"
	"net/url"
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExamController 作答流程：取题、自动保存、提交与交卷
type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// SubmitQuestionRequest 表单或 JSON 提交
// swagger:model SubmitQuestionRequest
type SubmitQuestionRequest struct {
	TestID     uint   `json:"testId" form:"testId"`
	QuestionID uint   `json:"questionId" form:"questionId"`
	Index      int    `json:"index" form:"index"`
	Answer     string `json:"answer" form:"answer"`
	ElapsedSec string `json:"elapsedSec" form:"elapsedSec"`
	Marked     string `json:"marked" form:"marked"`
	Feedback   string `json:"feedback" form:"feedback"`
}

// AutosaveRequest 后台保存答案
// swagger:model AutosaveRequest
type AutosaveRequest struct {
	TestID     uint   `json:"testId" binding:"required"`
	QuestionID uint   `json:"questionId" binding:"required"`
	Chosen     string `json:"chosen"`
	ElapsedSec *int   `json:"elapsedSec"`
	Marked     *bool  `json:"marked"`
}

// ExitRequest 退出作答
// swagger:model ExitRequest
type ExitRequest struct {
	TestID uint `json:"testId" form:"testId" binding:"required"`
}

func optionalBool(s string) *bool {
	if s == "" {
		return nil
	}
	b := util.IsTruthy(s)
	return &b
}

func finalizeURL(testID uint) string {
	return fmt.Sprintf("/submit-test-final/%d", testID)
}

func questionURL(testID uint, index int, extra url.Values) string {
	q := url.Values{}
	q.Set("index", strconv.Itoa(index))
	for k, v := range extra {
		q[k] = v
	}
	return fmt.Sprintf("/start-test/%d?%s", testID, q.Encode())
}

// recordTransit 记录导航参数中携带的上一题答案；无效答案只记日志
func (c *ExamController) recordTransit(ctx *gin.Context, in service.AnswerInput) error {
	_, err := c.ExamService.RecordAnswer(ctx.Request.Context(), util.SessionID(ctx), in)
	if errors.Is(err, util.ErrInvalidAnswer) || errors.Is(err, util.ErrQuestionNotFound) {
		logger.Log.Warn("Skipping answer carried by navigation", zap.Error(err),
			zap.Uint("questionID", in.QuestionID), zap.String("raw", in.Raw))
		return nil
	}
	return err
}

// StartTest godoc
// @Summary 获取第 N 题
// @Description 渲染第 index 题（0 起始）。可携带上一题答案 prevQid/chosen/elapsedSec 一并保存；finish=1 时跳转交卷
// @Tags 作答
// @Produce json
// @Param testId path int true "试卷ID"
// @Param index query int false "题目序号" default(0)
// @Param prevQid query int false "上一题ID"
// @Param chosen query string false "上一题答案（字母或序号）"
// @Param elapsedSec query int false "上一题用时（秒）"
// @Param finish query string false "为 1 时交卷"
// @Param feedback query bool false "显示答案反馈"
// @Param selected query string false "反馈模式下的所选答案"
// @Success 200 {object} util.Response{data=service.QuestionView} "成功"
// @Success 302 "跳转交卷"
// @Failure 403 {object} util.Response "名额已满"
// @Failure 404 {object} util.Response "试卷不可用、题目不存在或序号无效"
// @Router /start-test/{testId} [get]
func (c *ExamController) StartTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "testId")
	if !ok {
		return
	}
	// 非数字序号与越界同样按题目不存在处理
	index, err := strconv.Atoi(ctx.DefaultQuery("index", "0"))
	if err != nil {
		respondError(ctx, util.ErrQuestionNotFound)
		return
	}

	if prevQid := util.MustParseUint(ctx.Query("prevQid")); prevQid != 0 && ctx.Query("chosen") != "" {
		err := c.recordTransit(ctx, service.AnswerInput{
			TestID:         testID,
			QuestionID:     prevQid,
			Raw:            ctx.Query("chosen"),
			ElapsedSeconds: util.ParseOptionalInt(ctx.Query("elapsedSec")),
		})
		if err != nil {
			respondError(ctx, err)
			return
		}
	}

	if util.IsTruthy(ctx.Query("finish")) {
		util.Redirect(ctx, finalizeURL(testID))
		return
	}

	view, err := c.ExamService.LoadQuestion(ctx.Request.Context(), util.SessionID(ctx), testID, index, service.ViewOptions{
		Feedback: util.IsTruthy(ctx.Query("feedback")),
		Selected: ctx.Query("selected"),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// SubmitQuestion godoc
// @Summary 提交当前题并前进
// @Description 保存答案后跳转下一题；最后一题跳转交卷；feedback=true 时跳转本题反馈
// @Tags 作答
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param body body SubmitQuestionRequest true "答案"
// @Success 302 "跳转"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /submit-question [post]
func (c *ExamController) SubmitQuestion(ctx *gin.Context) {
	var req SubmitQuestionRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	c.submit(ctx, req)
}

// SubmitQuestionByPath godoc
// @Summary 提交指定题目并前进
// @Tags 作答
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param testId path int true "试卷ID"
// @Param qid path int true "题目ID"
// @Param body body SubmitQuestionRequest false "答案"
// @Success 302 "跳转"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /submit-question/{testId}/{qid} [post]
func (c *ExamController) SubmitQuestionByPath(ctx *gin.Context) {
	var req SubmitQuestionRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	testID, ok := parseID(ctx, "testId")
	if !ok {
		return
	}
	qid, ok := parseID(ctx, "qid")
	if !ok {
		return
	}
	req.TestID, req.QuestionID = testID, qid
	c.submit(ctx, req)
}

func (c *ExamController) submit(ctx *gin.Context, req SubmitQuestionRequest) {
	if req.TestID == 0 || req.QuestionID == 0 {
		util.BadRequest(ctx, "testId and questionId are required")
		return
	}

	out, err := c.ExamService.RecordAnswer(ctx.Request.Context(), util.SessionID(ctx), service.AnswerInput{
		TestID:         req.TestID,
		QuestionID:     req.QuestionID,
		Raw:            req.Answer,
		ElapsedSeconds: util.ParseOptionalInt(req.ElapsedSec),
		Marked:         optionalBool(req.Marked),
	})
	if err != nil && !errors.Is(err, util.ErrInvalidAnswer) {
		respondError(ctx, err)
		return
	}

	if util.IsTruthy(req.Feedback) {
		extra := url.Values{"feedback": {"true"}}
		if out != nil && out.Letter != "" {
			extra.Set("selected", out.Letter)
		}
		util.Redirect(ctx, questionURL(req.TestID, req.Index, extra))
		return
	}

	total, err := c.ExamService.TestLength(ctx.Request.Context(), req.TestID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if req.Index+1 >= total {
		util.Redirect(ctx, finalizeURL(req.TestID))
		return
	}
	util.Redirect(ctx, questionURL(req.TestID, req.Index+1, nil))
}

// SaveAnswer godoc
// @Summary 后台保存答案
// @Description 不跳转的自动保存；无效答案不写入，saved=false
// @Tags 作答
// @Accept json
// @Produce json
// @Param body body AutosaveRequest true "答案"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/test-progress/answer [post]
func (c *ExamController) SaveAnswer(ctx *gin.Context) {
	var req AutosaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.ExamService.RecordAnswer(ctx.Request.Context(), util.SessionID(ctx), service.AnswerInput{
		TestID:         req.TestID,
		QuestionID:     req.QuestionID,
		Raw:            req.Chosen,
		ElapsedSeconds: req.ElapsedSec,
		Marked:         req.Marked,
	})
	if err != nil && !errors.Is(err, util.ErrInvalidAnswer) {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"ok":    true,
		"saved": out.Saved,
		"sessionCounts": gin.H{
			"answers": out.Answers,
			"times":   out.Times,
		},
	})
}

// ExitTest godoc
// @Summary 退出作答
// @Tags 作答
// @Accept json
// @Produce json
// @Param body body ExitRequest true "试卷"
// @Success 200 {object} util.Response "成功"
// @Router /api/test-progress/exit [post]
func (c *ExamController) ExitTest(ctx *gin.Context) {
	var req ExitRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ExamService.Exit(ctx.Request.Context(), util.SessionID(ctx), req.TestID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"ok": true})
}

// FinalizeTest godoc
// @Summary 交卷
// @Description 判分并保存成绩，清空会话中的作答，跳转成绩页
// @Tags 作答
// @Produce json
// @Param testId path int true "试卷ID"
// @Success 302 "跳转成绩页"
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 500 {object} util.Response "成绩保存失败"
// @Router /submit-test-final/{testId} [get]
func (c *ExamController) FinalizeTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "testId")
	if !ok {
		return
	}
	result, err := c.ExamService.Finalize(ctx.Request.Context(), util.SessionID(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Redirect(ctx, fmt.Sprintf("/user/performance/%d", result.TestID))
}

// Performance godoc
// @Summary 最近一次成绩
// @Description 当前会话（或登录用户）在该试卷上的最近成绩及明细
// @Tags 成绩
// @Produce json
// @Param testId path int true "试卷ID"
// @Success 200 {object} util.Response{data=model.Result} "成功"
// @Failure 404 {object} util.Response "没有成绩"
// @Router /user/performance/{testId} [get]
func (c *ExamController) Performance(ctx *gin.Context) {
	testID, ok := parseID(ctx, "testId")
	if !ok {
		return
	}
	result, err := c.ExamService.LatestResult(ctx.Request.Context(), util.SessionID(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
