package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"radiography_exam/internal/config"
	"radiography_exam/internal/middleware"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/service"
	"radiography_exam/internal/session"
	"radiography_exam/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type examClient struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newExamRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)

	sessions := session.NewRedisStore(rdb, 30*time.Minute)
	progressRepo := repository.NewProgressRepository(db)
	exam := service.NewExamService(
		repository.NewTestRepository(db),
		repository.NewQuestionRepository(db),
		repository.NewResultRepository(db),
		service.NewProgressService(progressRepo, 30*time.Minute),
		service.NewAccessService(rdb, true),
		sessions,
	)
	ctrl := NewExamController(exam)
	users := service.NewUserService(repository.NewUserRepository(db))

	router := gin.New()
	web := router.Group("/")
	web.Use(
		middleware.SessionMiddleware(config.SessionConfig{CookieName: "rad_sid", TTLMinutes: 30}),
		middleware.LoadSessionUser(sessions),
		middleware.ActivityMiddleware(users),
	)
	web.GET("/start-test/:testId", ctrl.StartTest)
	web.POST("/submit-question", ctrl.SubmitQuestion)
	web.GET("/submit-test-final/:testId", ctrl.FinalizeTest)
	web.GET("/user/performance/:testId", ctrl.Performance)
	web.POST("/api/test-progress/answer", ctrl.SaveAnswer)
	return router, db
}

func (c *examClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "rad_sid" {
			c.cookie = ck
		}
	}
	return w
}

func (c *examClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *examClient) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *examClient) postJSON(path string, body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestExamFlowOverHTTP(t *testing.T) {
	router, db := newExamRouter(t)
	test, qs := testutil.SeedTest(t, db, "Chest", "A", "B", "C")
	client := &examClient{t: t, router: router}
	base := fmt.Sprintf("/start-test/%d", test.ID)

	w := client.get(base + "?index=0")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, client.cookie)
	var view service.QuestionView
	decode(t, w, &view)
	assert.Equal(t, qs[0].ID, view.QuestionID)
	assert.Equal(t, 3, view.Total)
	assert.Len(t, view.Choices, 4)

	// 表单提交后前进到下一题
	w = client.postForm("/submit-question", url.Values{
		"testId":     {fmt.Sprint(test.ID)},
		"questionId": {fmt.Sprint(qs[0].ID)},
		"index":      {"0"},
		"answer":     {"a"},
		"elapsedSec": {"20"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, base+"?index=1", w.Header().Get("Location"))

	// 导航携带上一题答案并直接交卷
	w = client.get(fmt.Sprintf("%s?index=2&prevQid=%d&chosen=%s&elapsedSec=15&finish=1", base, qs[1].ID, "1"))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/submit-test-final/%d", test.ID), w.Header().Get("Location"))

	w = client.get(fmt.Sprintf("/submit-test-final/%d", test.ID))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/user/performance/%d", test.ID), w.Header().Get("Location"))

	w = client.get(fmt.Sprintf("/user/performance/%d", test.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var result model.Result
	decode(t, w, &result)
	assert.Equal(t, 67, result.Score)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 2, result.CorrectAnswers)
	require.Len(t, result.DetailedResults, 3)
	assert.Equal(t, 20, result.DetailedResults[0].TimeSpent)
	assert.Equal(t, "B", result.DetailedResults[1].SelectedAnswer)
	assert.Equal(t, 15, result.DetailedResults[1].TimeSpent)
	assert.False(t, result.DetailedResults[2].IsCorrect)
}

func TestNavigationAutosaveRoundTrip(t *testing.T) {
	router, db := newExamRouter(t)
	test, qs := testutil.SeedTest(t, db, "Pelvis", "A", "B", "C", "D")
	client := &examClient{t: t, router: router}
	base := fmt.Sprintf("/start-test/%d", test.ID)

	w := client.get(base + "?index=0")
	require.Equal(t, http.StatusOK, w.Code)

	// 每次导航携带上一题答案，最后一题答错
	chosen := []string{"A", "1", "c", "A"}
	for i := 1; i < len(qs); i++ {
		w = client.get(fmt.Sprintf("%s?index=%d&prevQid=%d&chosen=%s&elapsedSec=%d", base, i, qs[i-1].ID, chosen[i-1], 10*i))
		require.Equal(t, http.StatusOK, w.Code)
		var view service.QuestionView
		decode(t, w, &view)
		assert.Equal(t, qs[i].ID, view.QuestionID)
	}
	w = client.get(fmt.Sprintf("%s?index=3&prevQid=%d&chosen=%s&elapsedSec=40&finish=1", base, qs[3].ID, chosen[3]))
	require.Equal(t, http.StatusFound, w.Code)

	w = client.get(fmt.Sprintf("/submit-test-final/%d", test.ID))
	require.Equal(t, http.StatusFound, w.Code)

	var stored model.Result
	require.NoError(t, db.Where("test_id = ?", test.ID).First(&stored).Error)
	assert.Equal(t, 3, stored.CorrectAnswers)
	assert.Equal(t, 75, stored.Score)
	assert.Equal(t, 4, stored.TotalQuestions)
	require.Len(t, stored.DetailedResults, 4)
	for i, d := range stored.DetailedResults {
		assert.Equal(t, qs[i].ID, d.QuestionID)
		assert.Equal(t, 10*(i+1), d.TimeSpent)
	}
	assert.False(t, stored.DetailedResults[3].IsCorrect)
	assert.Equal(t, "A", stored.DetailedResults[3].SelectedAnswer)
}

func TestSubmitLastQuestionRedirectsToFinalize(t *testing.T) {
	router, db := newExamRouter(t)
	test, qs := testutil.SeedTest(t, db, "Spine", "D")
	client := &examClient{t: t, router: router}

	w := client.postForm("/submit-question", url.Values{
		"testId":     {fmt.Sprint(test.ID)},
		"questionId": {fmt.Sprint(qs[0].ID)},
		"index":      {"0"},
		"answer":     {"not a letter"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/submit-test-final/%d", test.ID), w.Header().Get("Location"))

	w = client.postForm("/submit-question", url.Values{
		"testId":     {fmt.Sprint(test.ID)},
		"questionId": {fmt.Sprint(qs[0].ID)},
		"index":      {"0"},
		"answer":     {"D"},
		"feedback":   {"true"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/start-test/%d?feedback=true&index=0&selected=D", test.ID), w.Header().Get("Location"))
}

func TestAutosave(t *testing.T) {
	router, db := newExamRouter(t)
	test, qs := testutil.SeedTest(t, db, "Knee", "B")
	client := &examClient{t: t, router: router}

	w := client.postJSON("/api/test-progress/answer", gin.H{"testId": test.ID, "questionId": qs[0].ID, "chosen": "b", "elapsedSec": 7})
	require.Equal(t, http.StatusOK, w.Code)
	var saved struct {
		Saved         bool `json:"saved"`
		SessionCounts struct {
			Answers int `json:"answers"`
			Times   int `json:"times"`
		} `json:"sessionCounts"`
	}
	decode(t, w, &saved)
	assert.True(t, saved.Saved)
	assert.Equal(t, 1, saved.SessionCounts.Answers)

	w = client.postJSON("/api/test-progress/answer", gin.H{"testId": test.ID, "questionId": qs[0].ID, "chosen": "maybe"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &saved)
	assert.False(t, saved.Saved)
	assert.Equal(t, 1, saved.SessionCounts.Answers)

	w = client.postJSON("/api/test-progress/answer", gin.H{"testId": test.ID, "questionId": 9999, "chosen": "A"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = client.postJSON("/api/test-progress/answer", gin.H{"chosen": "A"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnavailableTest(t *testing.T) {
	router, db := newExamRouter(t)
	test, _ := testutil.SeedTest(t, db, "Hidden", "A")
	require.NoError(t, db.Model(test).Update("is_active", false).Error)
	client := &examClient{t: t, router: router}

	w := client.get(fmt.Sprintf("/start-test/%d", test.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "test not available", env.Message)

	w = client.get("/user/performance/0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNonNumericIndexIsNotFound(t *testing.T) {
	router, db := newExamRouter(t)
	test, _ := testutil.SeedTest(t, db, "Skull", "A", "B")
	client := &examClient{t: t, router: router}

	for _, index := range []string{"abc", "1.5", "2"} {
		w := client.get(fmt.Sprintf("/start-test/%d?index=%s", test.ID, index))
		assert.Equal(t, http.StatusNotFound, w.Code, index)
		assert.Equal(t, "question not found", decode(t, w, nil).Message, index)
	}
}
