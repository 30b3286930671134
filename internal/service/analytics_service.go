package service

import (
	"context"
	"errors"
	"math"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const liveUserWindow = 3 * time.Minute

type Dashboard struct {
	TotalUsers     int64         `json:"totalUsers"`
	ActiveUsers    int64         `json:"activeUsers"`
	OnlineUsers    int64         `json:"onlineUsers"`
	TotalTests     int64         `json:"totalTests"`
	ActiveTests    int64         `json:"activeTests"`
	TotalQuestions int64         `json:"totalQuestions"`
	TotalResults   int64         `json:"totalResults"`
	AverageScore   int           `json:"averageScore"`
	TopUsers       []UserSummary `json:"topUsers"`
}

type UserSummary struct {
	UserID       uint       `json:"userId"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"isActive"`
	IsOnline     bool       `json:"isOnline"`
	TestsTaken   int64      `json:"testsTaken"`
	AverageScore int        `json:"averageScore"`
	BestScore    int        `json:"bestScore"`
	LastAttempt  *time.Time `json:"lastAttempt"`
	LastActive   *time.Time `json:"lastActive"`
}

type UserDetail struct {
	User    *model.User    `json:"user"`
	Summary UserSummary    `json:"summary"`
	Results []model.Result `json:"results"`
}

type TestAnalytics struct {
	TestID       uint       `json:"testId"`
	Title        string     `json:"title"`
	IsActive     bool       `json:"isActive"`
	Attempts     int64      `json:"attempts"`
	AverageScore int        `json:"averageScore"`
	BestScore    int        `json:"bestScore"`
	LastAttempt  *time.Time `json:"lastAttempt"`
}

type TestDetail struct {
	Test      *model.Test    `json:"test"`
	Summary   TestAnalytics  `json:"summary"`
	Results   []model.Result `json:"results"`
	Questions []QuestionStat `json:"questions"`
}

type LiveUser struct {
	UserID     uint       `json:"userId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	IsOnline   bool       `json:"isOnline"`
	LastActive *time.Time `json:"lastActive"`
}

type LiveProgressRow struct {
	UserID    uint      `json:"userId"`
	UserName  string    `json:"userName"`
	TestID    uint      `json:"testId"`
	TestTitle string    `json:"testTitle"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ResetReport struct {
	UsersDeleted int `json:"usersDeleted"`
}

// AnalyticsService 管理端统计与数据重置
type AnalyticsService struct {
	Analytics  *repository.AnalyticsRepository
	Users      *repository.UserRepository
	Tests      *repository.TestRepository
	Questions  *QuestionService
	Results    *repository.ResultRepository
	Progress   *ProgressService
	ProgressDB *repository.ProgressRepository
	LiveWindow time.Duration
	Now        func() time.Time
}

func NewAnalyticsService(
	analytics *repository.AnalyticsRepository,
	users *repository.UserRepository,
	tests *repository.TestRepository,
	questions *QuestionService,
	results *repository.ResultRepository,
	progress *ProgressService,
	progressRepo *repository.ProgressRepository,
	liveWindow time.Duration,
) *AnalyticsService {
	return &AnalyticsService{
		Analytics:  analytics,
		Users:      users,
		Tests:      tests,
		Questions:  questions,
		Results:    results,
		Progress:   progress,
		ProgressDB: progressRepo,
		LiveWindow: liveWindow,
		Now:        time.Now,
	}
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

// lastAttemptTimes 按 lastResultId 批量取创建时间
func (s *AnalyticsService) lastAttemptTimes(ctx context.Context, aggs []repository.ResultAggregate) (map[uint]*time.Time, error) {
	ids := make([]uint, 0, len(aggs))
	for _, a := range aggs {
		ids = append(ids, a.LastResultID)
	}
	results, err := s.Analytics.ResultsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	times := make(map[uint]*time.Time, len(results))
	for i := range results {
		t := results[i].CreatedAt
		times[results[i].ID] = &t
	}
	return times, nil
}

func (s *AnalyticsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	var err error
	if d.TotalUsers, err = s.Users.Count(ctx); err != nil {
		return nil, err
	}
	if d.ActiveUsers, err = s.Users.CountWhere(ctx, "is_active = ?", true); err != nil {
		return nil, err
	}
	if d.OnlineUsers, err = s.Users.CountWhere(ctx, "is_online = ?", true); err != nil {
		return nil, err
	}
	if d.TotalTests, err = s.Tests.Count(ctx, false); err != nil {
		return nil, err
	}
	if d.ActiveTests, err = s.Tests.Count(ctx, true); err != nil {
		return nil, err
	}
	if d.TotalQuestions, err = s.Questions.Questions.Count(ctx); err != nil {
		return nil, err
	}
	if d.TotalResults, err = s.Results.Count(ctx); err != nil {
		return nil, err
	}
	avg, err := s.Analytics.AverageScore(ctx)
	if err != nil {
		return nil, err
	}
	d.AverageScore = roundScore(avg)

	users, err := s.UserSummaries(ctx)
	if err != nil {
		return nil, err
	}
	// 至少作答过一次才进入排行
	ranked := make([]UserSummary, 0, len(users))
	for _, u := range users {
		if u.TestsTaken > 0 {
			ranked = append(ranked, u)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AverageScore != ranked[j].AverageScore {
			return ranked[i].AverageScore > ranked[j].AverageScore
		}
		return ranked[i].TestsTaken > ranked[j].TestsTaken
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	d.TopUsers = ranked
	return d, nil
}

// UserSummaries 全部用户及其作答统计
func (s *AnalyticsService) UserSummaries(ctx context.Context) ([]UserSummary, error) {
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	aggs, err := s.Analytics.ByUser(ctx)
	if err != nil {
		return nil, err
	}
	times, err := s.lastAttemptTimes(ctx, aggs)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint]repository.ResultAggregate, len(aggs))
	for _, a := range aggs {
		byUser[a.Key] = a
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		sum := UserSummary{
			UserID:     u.ID,
			Name:       u.Name,
			Email:      u.Email,
			IsActive:   u.IsActive,
			IsOnline:   u.IsOnline,
			LastActive: u.LastActive,
		}
		if a, ok := byUser[u.ID]; ok {
			sum.TestsTaken = a.Attempts
			sum.AverageScore = roundScore(a.AverageScore)
			sum.BestScore = a.BestScore
			sum.LastAttempt = times[a.LastResultID]
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *AnalyticsService) UserDetail(ctx context.Context, userID uint) (*UserDetail, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	results, err := s.Results.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{
		User:    user,
		Results: results,
		Summary: UserSummary{
			UserID:     user.ID,
			Name:       user.Name,
			Email:      user.Email,
			IsActive:   user.IsActive,
			IsOnline:   user.IsOnline,
			LastActive: user.LastActive,
			TestsTaken: int64(len(results)),
		},
	}
	if len(results) > 0 {
		total := 0
		for _, r := range results {
			total += r.Score
			if r.Score > detail.Summary.BestScore {
				detail.Summary.BestScore = r.Score
			}
		}
		detail.Summary.AverageScore = roundScore(float64(total) / float64(len(results)))
		last := results[0].CreatedAt
		detail.Summary.LastAttempt = &last
	}
	return detail, nil
}

func (s *AnalyticsService) TestSummaries(ctx context.Context) ([]TestAnalytics, error) {
	tests, err := s.Tests.List(ctx, false)
	if err != nil {
		return nil, err
	}
	aggs, err := s.Analytics.ByTest(ctx)
	if err != nil {
		return nil, err
	}
	times, err := s.lastAttemptTimes(ctx, aggs)
	if err != nil {
		return nil, err
	}
	byTest := make(map[uint]repository.ResultAggregate, len(aggs))
	for _, a := range aggs {
		byTest[a.Key] = a
	}

	out := make([]TestAnalytics, 0, len(tests))
	for _, t := range tests {
		ta := TestAnalytics{TestID: t.ID, Title: t.Title, IsActive: t.IsActive}
		if a, ok := byTest[t.ID]; ok {
			ta.Attempts = a.Attempts
			ta.AverageScore = roundScore(a.AverageScore)
			ta.BestScore = a.BestScore
			ta.LastAttempt = times[a.LastResultID]
		}
		out = append(out, ta)
	}
	return out, nil
}

func (s *AnalyticsService) TestDetail(ctx context.Context, testID uint) (*TestDetail, error) {
	test, err := s.Tests.FindByID(ctx, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	results, err := s.Results.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Questions.Stats(ctx, testID)
	if err != nil {
		return nil, err
	}

	detail := &TestDetail{
		Test:      test,
		Results:   results,
		Questions: stats,
		Summary:   TestAnalytics{TestID: test.ID, Title: test.Title, IsActive: test.IsActive, Attempts: int64(len(results))},
	}
	if len(results) > 0 {
		total := 0
		for _, r := range results {
			total += r.Score
			if r.Score > detail.Summary.BestScore {
				detail.Summary.BestScore = r.Score
			}
		}
		detail.Summary.AverageScore = roundScore(float64(total) / float64(len(results)))
		last := results[0].CreatedAt
		detail.Summary.LastAttempt = &last
	}
	return detail, nil
}

// LatestPerUser 每个用户在该测试上的最近一次成绩，按分数降序
func (s *AnalyticsService) LatestPerUser(ctx context.Context, testID uint) ([]model.Result, error) {
	if _, err := s.Tests.FindByID(ctx, testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return s.Analytics.LatestPerUser(ctx, testID)
}

// LiveUsers 最近 3 分钟内有请求的用户
func (s *AnalyticsService) LiveUsers(ctx context.Context) ([]LiveUser, error) {
	users, err := s.Users.ListActiveSince(ctx, s.Now().Add(-liveUserWindow))
	if err != nil {
		return nil, err
	}
	out := make([]LiveUser, 0, len(users))
	for _, u := range users {
		out = append(out, LiveUser{UserID: u.ID, Name: u.Name, Email: u.Email, IsOnline: u.IsOnline, LastActive: u.LastActive})
	}
	return out, nil
}

func (s *AnalyticsService) LiveProgress(ctx context.Context) ([]LiveProgressRow, error) {
	rows, err := s.Progress.LiveProgress(ctx, s.LiveWindow)
	if err != nil {
		return nil, err
	}
	out := make([]LiveProgressRow, 0, len(rows))
	for i := range rows {
		p := &rows[i]
		row := LiveProgressRow{
			UserID:    p.UserID,
			TestID:    p.TestID,
			Index:     p.Index,
			Total:     p.Total,
			Percent:   p.Percent(),
			UpdatedAt: p.UpdatedAt,
		}
		if p.User != nil {
			row.UserName = p.User.Name
		}
		if p.Test != nil {
			row.TestTitle = p.Test.Title
		}
		out = append(out, row)
	}
	return out, nil
}

// ResetResults 清空成绩与进度
func (s *AnalyticsService) ResetResults(ctx context.Context) error {
	if err := s.Results.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.ProgressDB.DeleteAll(ctx); err != nil {
		return err
	}
	logger.Log.Warn("All results and progress were reset")
	return nil
}

// ResetUsers 删除全部学员及其成绩和进度，管理员保留
func (s *AnalyticsService) ResetUsers(ctx context.Context) (*ResetReport, error) {
	ids, err := s.Users.DeleteStudents(ctx)
	if err != nil {
		return nil, err
	}
	logger.Log.Warn("Student accounts were reset", zap.Int("count", len(ids)))
	return &ResetReport{UsersDeleted: len(ids)}, nil
}

func (s *AnalyticsService) ResetVotes(ctx context.Context) error {
	if err := s.Questions.ResetVotes(ctx); err != nil {
		return err
	}
	logger.Log.Warn("Choice vote counts were reset")
	return nil
}
