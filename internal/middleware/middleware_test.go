package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"radiography_exam/internal/config"
	"radiography_exam/internal/model"
	"radiography_exam/internal/session"
	"radiography_exam/internal/testutil"
	"radiography_exam/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret-0123456789abcdef"

type touchRecorder struct {
	ids []uint
}

func (r *touchRecorder) TouchActivity(_ context.Context, userID uint) error {
	r.ids = append(r.ids, userID)
	return nil
}

func TestSessionCookieIsIssuedAndReused(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb, _ := testutil.NewRedis(t)
	store := session.NewRedisStore(rdb, time.Hour)
	activity := &touchRecorder{}

	router := gin.New()
	router.Use(SessionMiddleware(config.SessionConfig{CookieName: "rad_sid", TTLMinutes: 30}), LoadSessionUser(store), ActivityMiddleware(activity))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sid": util.SessionID(c), "user": util.CurrentUserID(c)})
	})
	router.GET("/members", RequireLogin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	sid := cookies[0].Value
	_, err := uuid.Parse(sid)
	require.NoError(t, err)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1800, cookies[0].MaxAge)

	// 非法 cookie 重新分配
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "rad_sid", Value: "../../etc"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "../../etc", w.Result().Cookies()[0].Value)

	// 未登录访问受限页面跳转登录
	req = httptest.NewRequest(http.MethodGet, "/members", nil)
	req.AddCookie(&http.Cookie{Name: "rad_sid", Value: sid})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Empty(t, activity.ids)

	_, err = store.Update(context.Background(), sid, func(st *session.State) error {
		st.UserID = 42
		return nil
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/members", nil)
	req.AddCookie(&http.Cookie{Name: "rad_sid", Value: sid})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uint{42}, activity.ids)
	assert.Equal(t, sid, w.Result().Cookies()[0].Value)
}

func TestAuthAndRoleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", AuthMiddleware(secret), RoleMiddleware(model.Admin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	call := func(token string, viaQuery bool) int {
		path := "/admin"
		if viaQuery && token != "" {
			path += "?token=" + token
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if !viaQuery && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	admin, err := util.GenerateJWT(&model.User{Role: model.Admin}, secret, time.Hour)
	require.NoError(t, err)
	student, err := util.GenerateJWT(&model.User{Role: model.Student}, secret, time.Hour)
	require.NoError(t, err)
	forged, err := util.GenerateJWT(&model.User{Role: model.Admin}, "another-secret-another-secret-000", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, call(admin, false))
	assert.Equal(t, http.StatusNoContent, call(admin, true))
	assert.Equal(t, http.StatusForbidden, call(student, false))
	assert.Equal(t, http.StatusUnauthorized, call(forged, false))
	assert.Equal(t, http.StatusUnauthorized, call("", false))
}
