package service

import (
	"math"
	"radiography_exam/internal/model"
	"radiography_exam/internal/session"
)

type GradeReport struct {
	Total   int
	Correct int
	Score   int
	Details []model.DetailedResult
}

// Grade 按题目顺序逐题比对，调用方保证 questions 非空
func Grade(questions []model.Question, st *session.State) GradeReport {
	report := GradeReport{
		Total:   len(questions),
		Details: make([]model.DetailedResult, 0, len(questions)),
	}

	for _, q := range questions {
		selected, _ := st.Answer(q.ID)
		correct := ResolveCorrectLetter(q.CorrectAnswer, q.Choices)
		isCorrect := selected != "" && selected == correct
		if isCorrect {
			report.Correct++
		}
		report.Details = append(report.Details, model.DetailedResult{
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			SelectedText:   ChoiceText(selected, q.Choices),
			CorrectAnswer:  correct,
			CorrectText:    ChoiceText(correct, q.Choices),
			IsCorrect:      isCorrect,
			TimeSpent:      st.TimeSpent(q.ID),
		})
	}

	if report.Total > 0 {
		report.Score = int(math.Round(float64(report.Correct) / float64(report.Total) * 100))
	}
	return report
}

// ElapsedSeconds 从作答开始到 nowMillis 的整秒数，未开始时为 0
func ElapsedSeconds(startMillis, nowMillis int64) int {
	if startMillis == 0 || nowMillis <= startMillis {
		return 0
	}
	return int((nowMillis - startMillis) / 1000)
}
