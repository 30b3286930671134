package model

import "time"

// swagger:model Test
type Test struct {
	BaseModel
	Title        string     `gorm:"size:255;uniqueIndex;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Category     string     `gorm:"size:100;default:'General'" json:"category"`
	TimeLimit    int        `gorm:"default:60" json:"timeLimit"` // 分钟，仅提示
	IsActive     bool       `gorm:"default:true" json:"isActive"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	MaxUsers     int        `gorm:"default:0" json:"maxUsers"`
	IsOpenAccess bool       `gorm:"default:true" json:"isOpenAccess"`
}

func (Test) TableName() string {
	return "tests"
}

// LimitsAttempts 非开放且设置了名额上限时需要占位
func (t *Test) LimitsAttempts() bool {
	return !t.IsOpenAccess && t.MaxUsers > 0
}
