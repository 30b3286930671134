package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"radiography_exam/internal/service"
	"radiography_exam/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxImageSize = 20 << 20

// QuestionController 管理端题目接口
type QuestionController struct {
	QuestionService *service.QuestionService
	ImportService   *service.ImportService
}

func NewQuestionController(questionService *service.QuestionService, importService *service.ImportService) *QuestionController {
	return &QuestionController{QuestionService: questionService, ImportService: importService}
}

// ListQuestions godoc
// @Summary 试卷下的题目
// @Tags 题目管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=[]model.Question} "成功"
// @Router /api/admin/tests/{id}/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	questions, err := c.QuestionService.ListByTest(ctx.Request.Context(), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// CreateQuestion godoc
// @Summary 新增题目
// @Description 正确答案可填字母、序号或选项原文，保存为字母
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "正确答案无效"
// @Router /api/admin/tests/{id}/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.QuestionService.Create(ctx.Request.Context(), testID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// GetQuestion godoc
// @Summary 题目详情
// @Tags 题目管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/admin/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	q, err := c.QuestionService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/admin/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.QuestionService.Update(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 题目管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/admin/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := c.QuestionService.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageSize))
}

// UploadImages godoc
// @Summary 上传题目图片
// @Description 表单字段 images 可多个，labels 与之一一对应；同时生成缩略图
// @Tags 题目管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param images formData file true "图片"
// @Param labels formData string false "图片标签"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 400 {object} util.Response "文件无效"
// @Router /api/admin/questions/{id}/images [post]
func (c *QuestionController) UploadImages(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		util.BadRequest(ctx, "multipart form is required")
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		util.BadRequest(ctx, "images are required")
		return
	}

	uploads := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageSize {
			util.BadRequest(ctx, "image too large: "+fh.Filename)
			return
		}
		// 声明了非图片类型的直接拒绝，内容仍由存储层按字节校验
		if ct := fh.Header.Get("Content-Type"); ct != "" && ct != util.MimeOctetStream && !util.IsImage(ct) {
			respondError(ctx, fmt.Errorf("%w: %s", util.ErrInvalidFileType, ct))
			return
		}
		data, err := readUpload(fh)
		if err != nil {
			util.LogInternalError(ctx, err)
			return
		}
		uploads = append(uploads, service.ImageUpload{Name: fh.Filename, Data: data})
	}

	q, err := c.QuestionService.AddImages(ctx.Request.Context(), id, uploads, form.Value["labels"])
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// RemoveImage godoc
// @Summary 删除题目图片
// @Tags 题目管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param index path int true "图片序号"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/admin/questions/{id}/images/{index} [delete]
func (c *QuestionController) RemoveImage(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		util.BadRequest(ctx, "invalid index")
		return
	}
	q, err := c.QuestionService.RemoveImage(ctx.Request.Context(), id, index)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// ImportQuestions godoc
// @Summary 批量导入题目
// @Description 上传 .xlsx 或 .csv，表头 Question, A, B, C, D[, E…], Correct Answer, Category, Explanation。任何一行出错则不写入；dryRun=true 只校验
// @Tags 题目管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param file formData file true "表格文件"
// @Param dryRun query bool false "只校验"
// @Success 200 {object} util.Response{data=service.ImportReport} "成功"
// @Failure 400 {object} util.Response "文件类型不支持"
// @Router /api/admin/tests/{id}/import [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer f.Close()

	report, err := c.ImportService.Import(ctx.Request.Context(), testID, f, file.Filename, util.IsTruthy(ctx.Query("dryRun")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// QuestionStats godoc
// @Summary 题目选项统计
// @Tags 统计
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=[]service.QuestionStat} "成功"
// @Router /api/admin/tests/{id}/question-stats [get]
func (c *QuestionController) QuestionStats(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	stats, err := c.QuestionService.Stats(ctx.Request.Context(), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
