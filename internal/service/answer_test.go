package service

import (
	"testing"

	"radiography_exam/internal/model"
	"radiography_exam/internal/session"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		raw     string
		choices int
		want    string
		ok      bool
	}{
		{"C", 4, "C", true},
		{"b", 4, "B", true},
		{" d ", 4, "D", true},
		{"z", 4, "Z", true},
		{"0", 4, "A", true},
		{"3", 4, "D", true},
		{"4", 4, "D", true},
		{"2", 2, "B", true},
		{"5", 4, "", false},
		{"-1", 4, "", false},
		{"", 4, "", false},
		{"AB", 4, "", false},
		{"maybe", 4, "", false},
		{"1.5", 4, "", false},
	}

	for _, tc := range tests {
		got, ok := NormalizeAnswer(tc.raw, tc.choices)
		assert.Equal(t, tc.ok, ok, "NormalizeAnswer(%q, %d)", tc.raw, tc.choices)
		assert.Equal(t, tc.want, got, "NormalizeAnswer(%q, %d)", tc.raw, tc.choices)
	}
}

func TestResolveCorrectLetter(t *testing.T) {
	choices := []string{"Lateral", "Oblique", "AP", "PA"}

	tests := []struct {
		correct string
		want    string
	}{
		{"C", "C"},
		{"c", "C"},
		{"2", "C"},
		{"AP", "C"},
		{" oblique ", "B"},
		{"Axial", ""},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ResolveCorrectLetter(tc.correct, choices), "ResolveCorrectLetter(%q)", tc.correct)
	}
}

func TestLetterHelpers(t *testing.T) {
	assert.Equal(t, "A", LetterAt(0))
	assert.Equal(t, "H", LetterAt(7))
	assert.Equal(t, 2, LetterIndex("c"))
	assert.Equal(t, -1, LetterIndex("10"))
	assert.Equal(t, -1, LetterIndex(""))
	assert.Equal(t, "PA", ChoiceText("D", []string{"Lateral", "Oblique", "AP", "PA"}))
	assert.Equal(t, "", ChoiceText("E", []string{"Lateral", "Oblique", "AP", "PA"}))
}

func gradingQuestions() []model.Question {
	choices := []string{"Lateral", "Oblique", "AP", "PA"}
	qs := []model.Question{
		{Choices: choices, CorrectAnswer: "A"},
		{Choices: choices, CorrectAnswer: "1"},
		{Choices: choices, CorrectAnswer: "AP"},
		{Choices: choices, CorrectAnswer: "D"},
	}
	for i := range qs {
		qs[i].ID = uint(i + 1)
	}
	return qs
}

func TestGrade(t *testing.T) {
	st := &session.State{}
	st.SetAnswer(1, "A", 10)
	st.SetAnswer(2, "B", 20)
	st.SetAnswer(3, "D", 5)

	report := Grade(gradingQuestions(), st)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Correct)
	assert.Equal(t, 50, report.Score)
	assert.Len(t, report.Details, 4)

	assert.True(t, report.Details[0].IsCorrect)
	assert.Equal(t, "Lateral", report.Details[0].SelectedText)
	assert.Equal(t, 10, report.Details[0].TimeSpent)

	assert.Equal(t, "B", report.Details[1].CorrectAnswer)
	assert.Equal(t, "Oblique", report.Details[1].CorrectText)

	assert.False(t, report.Details[2].IsCorrect)
	assert.Equal(t, "C", report.Details[2].CorrectAnswer)

	// 未作答
	assert.Equal(t, "", report.Details[3].SelectedAnswer)
	assert.False(t, report.Details[3].IsCorrect)
	assert.Equal(t, 0, report.Details[3].TimeSpent)
}

func TestGradeRoundsScore(t *testing.T) {
	qs := gradingQuestions()[:3]
	st := &session.State{}
	st.SetAnswer(1, "A", 1)
	st.SetAnswer(2, "B", 1)

	report := Grade(qs, st)
	assert.Equal(t, 67, report.Score)

	st = &session.State{}
	st.SetAnswer(1, "A", 1)
	assert.Equal(t, 33, Grade(qs, st).Score)
}

func TestElapsedSeconds(t *testing.T) {
	assert.Equal(t, 0, ElapsedSeconds(0, 5000))
	assert.Equal(t, 0, ElapsedSeconds(5000, 4000))
	assert.Equal(t, 90, ElapsedSeconds(1_000, 91_999))
}
