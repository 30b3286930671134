package model

import "time"

type ProgressStatus string

const (
	ProgressActive    ProgressStatus = "active"
	ProgressCompleted ProgressStatus = "completed"
	ProgressExited    ProgressStatus = "exited"
)

// TestProgress 每个 (用户, 试卷) 一行，仅用于实时看板
type TestProgress struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_progress_user_test" json:"userId"`
	TestID    uint           `gorm:"not null;uniqueIndex:idx_progress_user_test" json:"testId"`
	Index     int            `gorm:"column:question_index;default:0" json:"index"`
	Total     int            `gorm:"default:0" json:"total"`
	Status    ProgressStatus `gorm:"size:20;default:'active';index" json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `gorm:"index" json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Test *Test `gorm:"foreignKey:TestID" json:"test,omitempty"`
}

func (TestProgress) TableName() string {
	return "test_progress"
}

// Percent 当前进度百分比
func (p *TestProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}
