package service

import (
	"context"
	"testing"
	"time"

	"radiography_exam/internal/config"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/session"
	"radiography_exam/internal/testutil"
	"radiography_exam/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *UserService) {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	cfg := &config.Config{
		JWT:  config.JWTConfig{Secret: "test-secret-test-secret-test-secret", ExpireTime: time.Hour},
		Auth: config.AuthConfig{AdminEmails: []string{"Admin@Clinic.org"}},
	}
	users := repository.NewUserRepository(db)
	return NewAuthService(users, session.NewRedisStore(rdb, time.Hour), cfg), NewUserService(users)
}

func TestLoginCreatesAccountOnFirstVisit(t *testing.T) {
	auth, _ := newAuthService(t)
	ctx := context.Background()

	user, created, err := auth.Login(ctx, LoginRequest{Email: "Jo@Example.com", Country: "NZ", ExamDate: "2026-06-01"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "jo@example.com", user.Email)
	assert.Equal(t, "Jo", user.Name)
	assert.Equal(t, model.Student, user.Role)
	require.NotNil(t, user.ExamDate)

	again, created, err := auth.Login(ctx, LoginRequest{Email: "jo@example.com", Name: "Jo Smith"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Jo Smith", again.Name)
	assert.Equal(t, "NZ", again.Country)
}

func TestLoginAssignsAdminRole(t *testing.T) {
	auth, _ := newAuthService(t)
	user, _, err := auth.Login(context.Background(), LoginRequest{Email: "admin@clinic.org"})
	require.NoError(t, err)
	assert.Equal(t, model.Admin, user.Role)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	auth, users := newAuthService(t)
	ctx := context.Background()

	user, _, err := auth.Login(ctx, LoginRequest{Email: "kim@example.com"})
	require.NoError(t, err)
	toggled, err := users.Toggle(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	_, _, err = auth.Login(ctx, LoginRequest{Email: "kim@example.com"})
	assert.ErrorIs(t, err, util.ErrUserDisabled)

	_, _, err = auth.IssueToken(ctx, "kim@example.com")
	assert.ErrorIs(t, err, util.ErrUserDisabled)
}

func TestSessionLifecycle(t *testing.T) {
	auth, _ := newAuthService(t)
	ctx := context.Background()

	user, _, err := auth.Login(ctx, LoginRequest{Email: "sam@example.com"})
	require.NoError(t, err)

	// 登录前的作答保留
	_, err = auth.Sessions.Update(ctx, "sid", func(st *session.State) error {
		st.SetAnswer(3, "B", 4)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, auth.StartSession(ctx, "sid", user))

	current, err := auth.CurrentUser(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)

	st, err := auth.Sessions.Get(ctx, "sid")
	require.NoError(t, err)
	letter, _ := st.Answer(3)
	assert.Equal(t, "B", letter)

	require.NoError(t, auth.Logout(ctx, "sid"))
	current, err = auth.CurrentUser(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRegisterAndIssueToken(t *testing.T) {
	auth, _ := newAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, LoginRequest{Email: "lee@example.com", Name: "Lee"})
	require.NoError(t, err)

	_, err = auth.Register(ctx, LoginRequest{Email: "LEE@example.com"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	token, issued, err := auth.IssueToken(ctx, "lee@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, issued.ID)

	claims, err := util.ParseJWT(token, auth.Cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	_, _, err = auth.IssueToken(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
