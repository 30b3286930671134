package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/util"
	"strings"

	"gorm.io/gorm"
)

type QuestionRequest struct {
	Title              string   `json:"title" binding:"required"`
	Choices            []string `json:"choices" binding:"required,min=2,max=8,dive,required"`
	CorrectAnswer      string   `json:"correctAnswer" binding:"required"`
	Explanation        string   `json:"explanation"`
	OptionExplanations []string `json:"optionExplanations"`
	Category           string   `json:"category" binding:"omitempty,max=100"`
	ImageLabels        []string `json:"imageLabels"`
	ChoiceVoteCounts   []int    `json:"choiceVoteCounts"`
}

type ImageUpload struct {
	Name string
	Data []byte
}

type ChoiceStat struct {
	Letter  string `json:"letter"`
	Text    string `json:"text"`
	Votes   int    `json:"votes"`
	Percent int    `json:"percent"`
}

type QuestionStat struct {
	QuestionID    uint         `json:"questionId"`
	Title         string       `json:"title"`
	CorrectAnswer string       `json:"correctAnswer"`
	TotalVotes    int          `json:"totalVotes"`
	CorrectRate   int          `json:"correctRate"`
	Choices       []ChoiceStat `json:"choices"`
}

// QuestionService 题目管理
type QuestionService struct {
	Questions *repository.QuestionRepository
	Tests     *repository.TestRepository
	Storage   *StorageService
}

func NewQuestionService(questions *repository.QuestionRepository, tests *repository.TestRepository, storage *StorageService) *QuestionService {
	return &QuestionService{Questions: questions, Tests: tests, Storage: storage}
}

func (s *QuestionService) Get(ctx context.Context, id uint) (*model.Question, error) {
	q, err := s.Questions.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return q, err
}

func (s *QuestionService) ListByTest(ctx context.Context, testID uint) ([]model.Question, error) {
	if _, err := s.Tests.FindByID(ctx, testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return s.Questions.ListByTest(ctx, testID)
}

// correctLetterFor 正确答案必须落在选项范围内
func correctLetterFor(correct string, choices []string) (string, error) {
	letter := ResolveCorrectLetter(correct, choices)
	if idx := LetterIndex(letter); idx < 0 || idx >= len(choices) {
		return "", fmt.Errorf("%w: correct answer %q does not match any choice", util.ErrInvalidAnswer, correct)
	}
	return letter, nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func (s *QuestionService) Create(ctx context.Context, testID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.Tests.FindByID(ctx, testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	choices := trimAll(req.Choices)
	letter, err := correctLetterFor(req.CorrectAnswer, choices)
	if err != nil {
		return nil, err
	}
	q := &model.Question{
		TestID:             testID,
		Title:              strings.TrimSpace(req.Title),
		Choices:            choices,
		CorrectAnswer:      letter,
		Explanation:        req.Explanation,
		OptionExplanations: req.OptionExplanations,
		Category:           req.Category,
		ChoiceVoteCounts:   make([]int, len(choices)),
	}
	if q.Category == "" {
		q.Category = "General"
	}
	if err := s.Questions.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update 覆盖式编辑；计票仅在长度与选项一致时采用
func (s *QuestionService) Update(ctx context.Context, id uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	choices := trimAll(req.Choices)
	letter, err := correctLetterFor(req.CorrectAnswer, choices)
	if err != nil {
		return nil, err
	}

	q.Title = strings.TrimSpace(req.Title)
	q.Choices = choices
	q.CorrectAnswer = letter
	q.Explanation = req.Explanation
	q.OptionExplanations = req.OptionExplanations
	if req.Category != "" {
		q.Category = req.Category
	}
	if len(req.ChoiceVoteCounts) == len(choices) {
		q.ChoiceVoteCounts = req.ChoiceVoteCounts
	}
	if req.ImageLabels != nil {
		labels := make([]string, len(q.ImageURLs))
		for i := range labels {
			if i < len(req.ImageLabels) && strings.TrimSpace(req.ImageLabels[i]) != "" {
				labels[i] = strings.TrimSpace(req.ImageLabels[i])
			} else {
				labels[i] = q.LabelAt(i)
			}
		}
		q.ImageLabels = labels
	}

	if err := s.Questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.Questions.Delete(ctx, id)
}

// AddImages 上传图片并追加到题目，标签缺省为 "Image A"…
func (s *QuestionService) AddImages(ctx context.Context, id uint, uploads []ImageUpload, labels []string) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	urls := append([]string{}, q.ImageURLs...)
	thumbs := make([]string, len(urls))
	copy(thumbs, q.ThumbnailURLs)
	current := q.Labels()

	for i, up := range uploads {
		stored, err := s.Storage.SaveQuestionImage(ctx, q.ID, up.Name, up.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", up.Name, err)
		}
		urls = append(urls, stored.URL)
		thumbs = append(thumbs, stored.ThumbnailURL)
		label := ""
		if i < len(labels) {
			label = strings.TrimSpace(labels[i])
		}
		if label == "" {
			label = fmt.Sprintf("Image %c", 'A'+rune((len(urls)-1)%26))
		}
		current = append(current, label)
	}

	q.ImageURLs = urls
	q.ThumbnailURLs = thumbs
	q.ImageLabels = current
	if err := s.Questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// RemoveImage 按下标移除图片，对应标签与缩略图一起移除
func (s *QuestionService) RemoveImage(ctx context.Context, id uint, index int) (*model.Question, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(q.ImageURLs) {
		return nil, util.ErrQuestionNotFound
	}
	labels := q.Labels()
	thumbs := make([]string, len(q.ImageURLs))
	copy(thumbs, q.ThumbnailURLs)

	q.ImageURLs = append(append([]string{}, q.ImageURLs[:index]...), q.ImageURLs[index+1:]...)
	q.ImageLabels = append(append([]string{}, labels[:index]...), labels[index+1:]...)
	q.ThumbnailURLs = append(append([]string{}, thumbs[:index]...), thumbs[index+1:]...)
	if err := s.Questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Stats 每道题各选项的选择人数与比例
func (s *QuestionService) Stats(ctx context.Context, testID uint) ([]QuestionStat, error) {
	questions, err := s.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	stats := make([]QuestionStat, 0, len(questions))
	for _, q := range questions {
		counts := q.VoteCounts()
		total := 0
		for _, c := range counts {
			total += c
		}
		stat := QuestionStat{
			QuestionID:    q.ID,
			Title:         q.Title,
			CorrectAnswer: ResolveCorrectLetter(q.CorrectAnswer, q.Choices),
			TotalVotes:    total,
			Choices:       make([]ChoiceStat, len(q.Choices)),
		}
		for i, text := range q.Choices {
			cs := ChoiceStat{Letter: LetterAt(i), Text: text, Votes: counts[i]}
			if total > 0 {
				cs.Percent = int(math.Round(float64(counts[i]) * 100 / float64(total)))
			}
			stat.Choices[i] = cs
		}
		if idx := LetterIndex(stat.CorrectAnswer); idx >= 0 && idx < len(counts) && total > 0 {
			stat.CorrectRate = int(math.Round(float64(counts[idx]) * 100 / float64(total)))
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (s *QuestionService) ResetVotes(ctx context.Context) error {
	return s.Questions.ResetVotes(ctx)
}
