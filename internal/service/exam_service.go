package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/session"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"radiography_exam/pkg/monitoring"
	"radiography_exam/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExamService 负责作答流程：取题、记录答案、交卷判分
type ExamService struct {
	Tests     *repository.TestRepository
	Questions *repository.QuestionRepository
	Results   *repository.ResultRepository
	Progress  *ProgressService
	Access    *AccessService
	Sessions  session.Store
	Now       func() time.Time
}

func NewExamService(
	tests *repository.TestRepository,
	questions *repository.QuestionRepository,
	results *repository.ResultRepository,
	progress *ProgressService,
	access *AccessService,
	sessions session.Store,
) *ExamService {
	return &ExamService{
		Tests:     tests,
		Questions: questions,
		Results:   results,
		Progress:  progress,
		Access:    access,
		Sessions:  sessions,
		Now:       time.Now,
	}
}

type ViewOptions struct {
	Feedback bool
	Selected string
}

type ChoiceView struct {
	Letter      string `json:"letter"`
	Text        string `json:"text"`
	Votes       int    `json:"votes,omitempty"`
	Percent     int    `json:"percent,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

type ImageView struct {
	URL          string `json:"url"`
	Label        string `json:"label"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type FeedbackView struct {
	Selected      string `json:"selected"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
	TotalVotes    int    `json:"totalVotes"`
}

type QuestionView struct {
	TestID          uint          `json:"testId"`
	TestTitle       string        `json:"testTitle"`
	TimeLimit       int           `json:"timeLimit"`
	QuestionID      uint          `json:"questionId"`
	Index           int           `json:"index"`
	Total           int           `json:"total"`
	IsLastQuestion  bool          `json:"isLastQuestion"`
	ProgressPercent int           `json:"progressPercent"`
	Prompt          string        `json:"prompt"`
	Category        string        `json:"category"`
	Choices         []ChoiceView  `json:"choices"`
	Images          []ImageView   `json:"images"`
	PreviousAnswer  string        `json:"previousAnswer,omitempty"`
	Marked          bool          `json:"marked"`
	TestStartTime   int64         `json:"testStartTime,omitempty"`
	Feedback        *FeedbackView `json:"feedback,omitempty"`
}

type AnswerInput struct {
	TestID         uint
	QuestionID     uint
	Raw            string
	ElapsedSeconds *int
	Marked         *bool
}

type RecordOutcome struct {
	Saved     bool   `json:"saved"`
	Letter    string `json:"letter,omitempty"`
	TimeSpent int    `json:"timeSpent"`
	Answers   int    `json:"answers"`
	Times     int    `json:"times"`
}

func (s *ExamService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *ExamService) availableTest(ctx context.Context, testID uint) (*model.Test, error) {
	test, err := s.Tests.FindByID(ctx, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotAvailable
	}
	if err != nil {
		return nil, err
	}
	if !test.IsActive {
		return nil, util.ErrTestNotAvailable
	}
	return test, nil
}

// LoadQuestion 返回第 index 题（0 起始）。index 为 0 且尚未开始时开始新的作答。
func (s *ExamService) LoadQuestion(ctx context.Context, sid string, testID uint, index int, opts ViewOptions) (*QuestionView, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ExamService.LoadQuestion")
	defer span.End()
	span.SetAttributes(attribute.Int64("test.id", int64(testID)), attribute.Int("question.index", index))

	test, err := s.availableTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	questions, err := s.Questions.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(questions) {
		return nil, util.ErrQuestionNotFound
	}
	q := questions[index]
	now := s.now()

	st, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
		if err := s.Access.Reserve(ctx, test, HolderFor(st.UserID, sid)); err != nil {
			return err
		}
		if index == 0 && (!st.HasAttempt() || st.AttemptTestID != testID) {
			if st.HasAttempt() {
				logger.Log.Info("Abandoning previous attempt for new test",
					zap.Uint("previousTestID", st.AttemptTestID), zap.Uint("testID", testID))
				st.ClearAttempt()
			}
			st.BeginAttempt(testID, now)
		}
		st.QuestionStartTime = now.UnixMilli()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if st.LoggedIn() {
		if err := s.Progress.Touch(ctx, st.UserID, testID, index, len(questions)); err != nil {
			monitoring.AdvisoryWriteFailures.WithLabelValues("progress").Inc()
			logger.Log.Warn("Failed to update test progress", zap.Error(err),
				zap.Uint("userID", st.UserID), zap.Uint("testID", testID))
		}
	}

	view := buildQuestionView(test, &q, index, len(questions), st)
	if opts.Feedback {
		selected := view.PreviousAnswer
		if letter, ok := NormalizeAnswer(opts.Selected, len(q.Choices)); ok {
			selected = letter
		}
		view.Feedback = buildFeedback(&q, selected, view.Choices)
	}
	return view, nil
}

func buildQuestionView(test *model.Test, q *model.Question, index, total int, st *session.State) *QuestionView {
	view := &QuestionView{
		TestID:          test.ID,
		TestTitle:       test.Title,
		TimeLimit:       test.TimeLimit,
		QuestionID:      q.ID,
		Index:           index,
		Total:           total,
		IsLastQuestion:  index+1 >= total,
		ProgressPercent: int(math.Round(float64(index+1) * 100 / float64(total))),
		Prompt:          q.Title,
		Category:        q.Category,
		Choices:         make([]ChoiceView, len(q.Choices)),
		Images:          make([]ImageView, len(q.ImageURLs)),
		TestStartTime:   st.TestStartTime,
		Marked:          st.Marked[session.Key(q.ID)],
	}
	if prev, ok := st.Answer(q.ID); ok {
		view.PreviousAnswer = prev
	}
	for i, text := range q.Choices {
		view.Choices[i] = ChoiceView{Letter: LetterAt(i), Text: text}
	}
	for i, url := range q.ImageURLs {
		img := ImageView{URL: url, Label: q.LabelAt(i)}
		if i < len(q.ThumbnailURLs) {
			img.ThumbnailURL = q.ThumbnailURLs[i]
		}
		view.Images[i] = img
	}
	return view
}

// buildFeedback 反馈模式：正确答案、解析与各选项的选择比例
func buildFeedback(q *model.Question, selected string, choices []ChoiceView) *FeedbackView {
	counts := q.VoteCounts()
	total := 0
	for _, c := range counts {
		total += c
	}
	for i := range choices {
		choices[i].Votes = counts[i]
		if total > 0 {
			choices[i].Percent = int(math.Round(float64(counts[i]) * 100 / float64(total)))
		}
		if i < len(q.OptionExplanations) {
			choices[i].Explanation = q.OptionExplanations[i]
		}
	}
	correct := ResolveCorrectLetter(q.CorrectAnswer, q.Choices)
	return &FeedbackView{
		Selected:      selected,
		CorrectAnswer: correct,
		IsCorrect:     selected != "" && selected == correct,
		Explanation:   q.Explanation,
		TotalVotes:    total,
	}
}

// RecordAnswer 规范化并写入会话；计票为尽力而为，失败只记日志。
// 无法规范化的答案返回 ErrInvalidAnswer 且不修改会话。
func (s *ExamService) RecordAnswer(ctx context.Context, sid string, in AnswerInput) (*RecordOutcome, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ExamService.RecordAnswer")
	defer span.End()
	span.SetAttributes(attribute.Int64("question.id", int64(in.QuestionID)))

	q, err := s.Questions.FindByID(ctx, in.QuestionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	if in.TestID != 0 && q.TestID != in.TestID {
		return nil, util.ErrQuestionNotFound
	}

	out := &RecordOutcome{}

	if in.Raw == "" && in.Marked != nil {
		st, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
			st.SetMarked(q.ID, *in.Marked)
			return nil
		})
		if err != nil {
			return nil, err
		}
		out.Answers, out.Times = len(st.Answers), len(st.QuestionTimes)
		return out, nil
	}

	letter, ok := NormalizeAnswer(in.Raw, len(q.Choices))
	if !ok {
		monitoring.AnswersRecorded.WithLabelValues("invalid").Inc()
		logger.Log.Warn("Discarding unparseable answer",
			zap.Uint("questionID", q.ID), zap.String("raw", in.Raw), zap.Int("choices", len(q.Choices)))
		return out, util.ErrInvalidAnswer
	}

	now := s.now()
	st, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
		seconds := st.ElapsedSince(now)
		if in.ElapsedSeconds != nil {
			seconds = *in.ElapsedSeconds
		}
		st.SetAnswer(q.ID, letter, seconds)
		if in.Marked != nil {
			st.SetMarked(q.ID, *in.Marked)
		}
		return nil
	})
	if err != nil {
		monitoring.AnswersRecorded.WithLabelValues("error").Inc()
		return nil, err
	}
	monitoring.AnswersRecorded.WithLabelValues("saved").Inc()

	out.Saved = true
	out.Letter = letter
	out.TimeSpent = st.TimeSpent(q.ID)
	out.Answers, out.Times = len(st.Answers), len(st.QuestionTimes)

	if idx := LetterIndex(letter); idx >= 0 && idx < len(q.Choices) {
		if err := s.Questions.IncrementVote(ctx, q.ID, idx); err != nil {
			monitoring.AdvisoryWriteFailures.WithLabelValues("vote").Inc()
			logger.Log.Warn("Failed to increment choice vote count", zap.Error(err),
				zap.Uint("questionID", q.ID), zap.String("letter", letter))
		}
	}
	return out, nil
}

// TestLength 题目数量，用于提交后判断是否已到最后一题
func (s *ExamService) TestLength(ctx context.Context, testID uint) (int, error) {
	n, err := s.Questions.CountByTest(ctx, testID)
	return int(n), err
}

// Finalize 判分并保存成绩，随后清空会话中的作答数据。
// 同一会话重复交卷且没有新的作答时返回上一次的成绩。
func (s *ExamService) Finalize(ctx context.Context, sid string, testID uint) (*model.Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ExamService.Finalize")
	defer span.End()
	span.SetAttributes(attribute.Int64("test.id", int64(testID)))

	test, err := s.Tests.FindByID(ctx, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}

	questions, err := s.Questions.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		monitoring.ResultsFinalized.WithLabelValues("no_questions").Inc()
		return nil, util.ErrNoQuestions
	}

	st, err := s.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}

	// 会话中的作答属于另一份试卷时，本次交卷不使用其 attempt id 与计时，也不清除它
	ownAttempt := st.AttemptTestID == 0 || st.AttemptTestID == test.ID

	if (!ownAttempt || st.AttemptID == "") && !answeredAny(questions, st) {
		if resultID, ok := st.LastResult(test.ID); ok {
			if prev, err := s.Results.FindByID(ctx, resultID); err == nil {
				monitoring.ResultsFinalized.WithLabelValues("replayed").Inc()
				return prev, nil
			}
		}
	}

	report := Grade(questions, st)
	result := &model.Result{
		TestID:          test.ID,
		UserID:          st.UserIDPtr(),
		Score:           report.Score,
		TotalQuestions:  report.Total,
		CorrectAnswers:  report.Correct,
		DetailedResults: report.Details,
	}
	if ownAttempt {
		result.TimeTaken = ElapsedSeconds(st.TestStartTime, s.now().UnixMilli())
	}
	if ownAttempt && st.AttemptID != "" {
		attemptID := st.AttemptID
		result.AttemptID = &attemptID
	}

	if err := s.Results.Create(ctx, result); err != nil {
		// 并发交卷：同一 attempt 已有成绩
		if result.AttemptID != nil {
			if existing, lookupErr := s.Results.FindByAttemptID(ctx, *result.AttemptID); lookupErr == nil {
				monitoring.ResultsFinalized.WithLabelValues("replayed").Inc()
				return existing, nil
			}
		}
		monitoring.ResultsFinalized.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", util.ErrResultNotSaved, err)
	}
	monitoring.ResultsFinalized.WithLabelValues("saved").Inc()
	monitoring.ResultScore.Observe(float64(result.Score))

	if _, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
		if ownAttempt {
			st.ClearAttempt()
		} else {
			st.ForgetAnswers(questionIDs(questions))
		}
		st.RememberResult(test.ID, result.ID)
		return nil
	}); err != nil {
		logger.Log.Error("Result saved but session could not be cleared", zap.Error(err),
			zap.Uint("resultID", result.ID))
	}

	if st.LoggedIn() {
		if err := s.Progress.Complete(ctx, st.UserID, test.ID); err != nil {
			monitoring.AdvisoryWriteFailures.WithLabelValues("progress").Inc()
			logger.Log.Warn("Failed to mark progress completed", zap.Error(err), zap.Uint("userID", st.UserID))
		}
	}

	logger.Log.Info("Test finalized",
		zap.Uint("testID", test.ID),
		zap.Uint("resultID", result.ID),
		zap.Int("score", result.Score),
		zap.Int("timeTaken", result.TimeTaken))
	return result, nil
}

// Exit 主动退出作答：进度标记为 exited 并丢弃会话中的答案
func (s *ExamService) Exit(ctx context.Context, sid string, testID uint) error {
	st, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
		if st.AttemptTestID == testID || st.AttemptTestID == 0 {
			st.ClearAttempt()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if st.LoggedIn() {
		if err := s.Progress.Exit(ctx, st.UserID, testID); err != nil {
			logger.Log.Warn("Failed to mark progress exited", zap.Error(err), zap.Uint("userID", st.UserID))
		}
	}
	return nil
}

// LatestResult 当前会话最近一次交卷的成绩，登录用户回退到该用户最近的成绩
func (s *ExamService) LatestResult(ctx context.Context, sid string, testID uint) (*model.Result, error) {
	st, err := s.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if id, ok := st.LastResult(testID); ok {
		result, err := s.Results.FindByID(ctx, id)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if st.LoggedIn() {
		result, err := s.Results.LatestForUserTest(ctx, st.UserID, testID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, util.ErrResultNotFound
}

// ResultsForUser 用户的全部成绩，最新在前
func (s *ExamService) ResultsForUser(ctx context.Context, userID uint) ([]model.Result, error) {
	return s.Results.ListByUser(ctx, userID)
}

func questionIDs(questions []model.Question) []uint {
	ids := make([]uint, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
	}
	return ids
}

func answeredAny(questions []model.Question, st *session.State) bool {
	for i := range questions {
		if _, ok := st.Answer(questions[i].ID); ok {
			return true
		}
	}
	return false
}
