package session

import (
	"radiography_exam/internal/model"
	"strconv"
	"time"
)

// State 一个浏览器会话的服务端数据
type State struct {
	UserID   uint   `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
	Role     string `json:"role,omitempty"`

	AttemptID     string `json:"attemptId,omitempty"`
	AttemptTestID uint   `json:"attemptTestId,omitempty"`

	// 题目ID -> 规范化后的字母
	Answers map[string]string `json:"answers,omitempty"`
	// 题目ID -> 作答秒数
	QuestionTimes map[string]int  `json:"questionTimes,omitempty"`
	Marked        map[string]bool `json:"marked,omitempty"`

	TestStartTime     int64 `json:"testStartTime,omitempty"` // epoch ms
	QuestionStartTime int64 `json:"questionStartTime,omitempty"`

	// 试卷ID -> 最近一次交卷生成的成绩ID
	LastResults map[string]uint `json:"lastResults,omitempty"`
}

func Key(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *State) LoggedIn() bool {
	return s.UserID != 0
}

// UserIDPtr 匿名会话返回 nil
func (s *State) UserIDPtr() *uint {
	if s.UserID == 0 {
		return nil
	}
	id := s.UserID
	return &id
}

func (s *State) HasAttempt() bool {
	return s.TestStartTime != 0
}

// BeginAttempt 开始新的作答，生成 attempt id
func (s *State) BeginAttempt(testID uint, now time.Time) {
	s.AttemptID = model.GenerateUUID()
	s.AttemptTestID = testID
	s.TestStartTime = now.UnixMilli()
}

func (s *State) Answer(questionID uint) (string, bool) {
	letter, ok := s.Answers[Key(questionID)]
	return letter, ok
}

func (s *State) SetAnswer(questionID uint, letter string, seconds int) {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	if s.QuestionTimes == nil {
		s.QuestionTimes = make(map[string]int)
	}
	if seconds < 0 {
		seconds = 0
	}
	s.Answers[Key(questionID)] = letter
	s.QuestionTimes[Key(questionID)] = seconds
}

func (s *State) TimeSpent(questionID uint) int {
	return s.QuestionTimes[Key(questionID)]
}

func (s *State) SetMarked(questionID uint, marked bool) {
	if !marked {
		delete(s.Marked, Key(questionID))
		return
	}
	if s.Marked == nil {
		s.Marked = make(map[string]bool)
	}
	s.Marked[Key(questionID)] = true
}

// ElapsedSince 从 QuestionStartTime 推算当前题目用时（秒）
func (s *State) ElapsedSince(now time.Time) int {
	if s.QuestionStartTime == 0 {
		return 0
	}
	sec := (now.UnixMilli() - s.QuestionStartTime) / 1000
	if sec < 0 {
		return 0
	}
	return int(sec)
}

// ClearAttempt 交卷后清除与作答相关的全部键
func (s *State) ClearAttempt() {
	s.AttemptID = ""
	s.AttemptTestID = 0
	s.Answers = nil
	s.QuestionTimes = nil
	s.Marked = nil
	s.TestStartTime = 0
	s.QuestionStartTime = 0
}

// ForgetAnswers 只移除给定题目的答案、用时与标记
func (s *State) ForgetAnswers(questionIDs []uint) {
	for _, id := range questionIDs {
		k := Key(id)
		delete(s.Answers, k)
		delete(s.QuestionTimes, k)
		delete(s.Marked, k)
	}
}

func (s *State) RememberResult(testID, resultID uint) {
	if s.LastResults == nil {
		s.LastResults = make(map[string]uint)
	}
	s.LastResults[Key(testID)] = resultID
}

func (s *State) LastResult(testID uint) (uint, bool) {
	id, ok := s.LastResults[Key(testID)]
	return id, ok && id != 0
}
