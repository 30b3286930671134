package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"radiography_exam/pkg/monitoring"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validate = validator.New()

// QuestionDraft 表格中的一行
type QuestionDraft struct {
	Row           int      `json:"row"`
	Title         string   `json:"title" validate:"required,max=2000"`
	Choices       []string `json:"choices" validate:"min=2,max=8,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	Category      string   `json:"category" validate:"max=100"`
	Explanation   string   `json:"explanation"`
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportReport struct {
	TestID   uint       `json:"testId"`
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	DryRun   bool       `json:"dryRun"`
	Errors   []RowError `json:"errors"`
}

var choiceColumns = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// ImportService 从 xlsx/csv 批量导入题目
type ImportService struct {
	Questions *repository.QuestionRepository
	Tests     *repository.TestRepository
	MaxRows   int
}

func NewImportService(questions *repository.QuestionRepository, tests *repository.TestRepository, maxRows int) *ImportService {
	return &ImportService{Questions: questions, Tests: tests, MaxRows: maxRows}
}

// readRows 读出首个工作表（或 csv）的全部行
func readRows(r io.Reader, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		return f.GetRows(sheets[0])
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		return cr.ReadAll()
	}
	return nil, util.ErrUnsupportedImport
}

type headerMap map[string]int

func mapHeader(row []string) headerMap {
	h := headerMap{}
	for i, cell := range row {
		key := strings.ToLower(strings.TrimSpace(cell))
		switch key {
		case "question", "title", "prompt":
			h["question"] = i
		case "correct answer", "correct", "answer", "correctanswer":
			h["correct"] = i
		case "category":
			h["category"] = i
		case "explanation":
			h["explanation"] = i
		default:
			for _, col := range choiceColumns {
				if key == strings.ToLower(col) || key == "choice "+strings.ToLower(col) || key == "option "+strings.ToLower(col) {
					h[col] = i
				}
			}
		}
	}
	return h
}

func (h headerMap) cell(row []string, key string) string {
	i, ok := h[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseSpreadsheet 解析为题目草稿；首行为表头，空行跳过。
// 行号与表格一致（表头为第 1 行）。
func ParseSpreadsheet(r io.Reader, filename string) ([]QuestionDraft, []RowError, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, []RowError{{Row: 1, Message: "file is empty"}}, nil
	}

	h := mapHeader(rows[0])
	if _, ok := h["question"]; !ok {
		return nil, []RowError{{Row: 1, Message: "missing Question column"}}, nil
	}
	if _, ok := h["correct"]; !ok {
		return nil, []RowError{{Row: 1, Message: "missing Correct Answer column"}}, nil
	}

	var drafts []QuestionDraft
	var rowErrs []RowError
	for i, row := range rows[1:] {
		line := i + 2
		if blankRow(row) {
			continue
		}
		d := QuestionDraft{
			Row:           line,
			Title:         h.cell(row, "question"),
			CorrectAnswer: h.cell(row, "correct"),
			Category:      h.cell(row, "category"),
			Explanation:   h.cell(row, "explanation"),
		}
		// 选项按列顺序读取，遇到空列停止
		for _, col := range choiceColumns {
			text := h.cell(row, col)
			if text == "" {
				break
			}
			d.Choices = append(d.Choices, text)
		}

		if err := validate.Struct(d); err != nil {
			rowErrs = append(rowErrs, RowError{Row: line, Message: describeValidation(err)})
			continue
		}
		letter, err := correctLetterFor(d.CorrectAnswer, d.Choices)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: line, Message: fmt.Sprintf("correct answer %q does not match any choice", d.CorrectAnswer)})
			continue
		}
		d.CorrectAnswer = letter
		if d.Category == "" {
			d.Category = "General"
		}
		drafts = append(drafts, d)
	}
	return drafts, rowErrs, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// Import 有任何行出错时整批不写入；dryRun 只做校验
func (s *ImportService) Import(ctx context.Context, testID uint, r io.Reader, filename string, dryRun bool) (*ImportReport, error) {
	if _, err := s.Tests.FindByID(ctx, testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}

	drafts, rowErrs, err := ParseSpreadsheet(r, filename)
	if err != nil {
		return nil, err
	}
	report := &ImportReport{TestID: testID, Total: len(drafts) + len(rowErrs), DryRun: dryRun, Errors: rowErrs}
	if report.Errors == nil {
		report.Errors = []RowError{}
	}
	if s.MaxRows > 0 && len(drafts) > s.MaxRows {
		report.Errors = append(report.Errors, RowError{Message: fmt.Sprintf("too many rows: %d exceeds limit %d", len(drafts), s.MaxRows)})
	}
	monitoring.ImportedRows.WithLabelValues("invalid").Add(float64(len(rowErrs)))

	if len(report.Errors) > 0 || dryRun || len(drafts) == 0 {
		return report, nil
	}

	questions := make([]model.Question, len(drafts))
	for i, d := range drafts {
		questions[i] = model.Question{
			TestID:           testID,
			Title:            d.Title,
			Choices:          d.Choices,
			CorrectAnswer:    d.CorrectAnswer,
			Category:         d.Category,
			Explanation:      d.Explanation,
			ChoiceVoteCounts: make([]int, len(d.Choices)),
		}
	}
	if err := s.Questions.CreateBatch(ctx, questions); err != nil {
		return nil, err
	}
	report.Imported = len(questions)
	monitoring.ImportedRows.WithLabelValues("imported").Add(float64(len(questions)))
	logger.Log.Info("Questions imported", zap.Uint("testID", testID), zap.Int("count", len(questions)), zap.String("file", filename))
	return report, nil
}
