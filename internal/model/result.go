package model

import "gorm.io/datatypes"

// DetailedResult 单题判分明细
type DetailedResult struct {
	QuestionID     uint   `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
	SelectedText   string `json:"selectedText"`
	CorrectAnswer  string `json:"correctAnswer"`
	CorrectText    string `json:"correctText"`
	IsCorrect      bool   `json:"isCorrect"`
	TimeSpent      int    `json:"timeSpent"`
}

// swagger:model Result
type Result struct {
	BaseModel
	TestID          uint                                `gorm:"index;not null" json:"testId"`
	UserID          *uint                               `gorm:"index" json:"userId"`
	AttemptID       *string                             `gorm:"size:36;uniqueIndex" json:"attemptId,omitempty"`
	Score           int                                 `gorm:"not null" json:"score"`
	TotalQuestions  int                                 `gorm:"not null" json:"totalQuestions"`
	CorrectAnswers  int                                 `gorm:"not null" json:"correctAnswers"`
	DetailedResults datatypes.JSONSlice[DetailedResult] `json:"detailedResults"`
	TimeTaken       int                                 `gorm:"default:0" json:"timeTaken"` // 秒

	Test *Test `gorm:"foreignKey:TestID" json:"test,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Result) TableName() string {
	return "results"
}
