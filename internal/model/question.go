package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// swagger:model Question
type Question struct {
	BaseModel
	TestID             uint                        `gorm:"index;not null" json:"testId"`
	Title              string                      `gorm:"type:text;not null" json:"title"`
	Choices            datatypes.JSONSlice[string] `json:"choices"`
	CorrectAnswer      string                      `gorm:"size:255;not null" json:"correctAnswer"`
	Explanation        string                      `gorm:"type:text" json:"explanation"`
	OptionExplanations datatypes.JSONSlice[string] `json:"optionExplanations"`
	Category           string                      `gorm:"size:100;default:'General'" json:"category"`
	ImageURLs          datatypes.JSONSlice[string] `json:"imageUrls"`
	ImageLabels        datatypes.JSONSlice[string] `json:"imageLabels"`
	ThumbnailURLs      datatypes.JSONSlice[string] `json:"thumbnailUrls"`
	ChoiceVoteCounts   datatypes.JSONSlice[int]    `json:"choiceVoteCounts"`
	VoteVersion        int                         `gorm:"default:0;not null" json:"-"`
	AssignedAt         *time.Time                  `json:"assignedAt"`
}

func (Question) TableName() string {
	return "questions"
}

// VoteCounts 返回与 Choices 等长的计票数组，长度不一致时按零重建
func (q *Question) VoteCounts() []int {
	if len(q.ChoiceVoteCounts) == len(q.Choices) {
		counts := make([]int, len(q.ChoiceVoteCounts))
		copy(counts, q.ChoiceVoteCounts)
		return counts
	}
	return make([]int, len(q.Choices))
}

// LabelAt 返回第 i 张图片的标签，缺省为 "Image A"、"Image B"…
func (q *Question) LabelAt(i int) string {
	if i < len(q.ImageLabels) && q.ImageLabels[i] != "" {
		return q.ImageLabels[i]
	}
	return fmt.Sprintf("Image %c", 'A'+rune(i%26))
}

// Labels 返回与 ImageURLs 一一对应的标签
func (q *Question) Labels() []string {
	labels := make([]string, len(q.ImageURLs))
	for i := range q.ImageURLs {
		labels[i] = q.LabelAt(i)
	}
	return labels
}
