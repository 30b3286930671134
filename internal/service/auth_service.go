package service

import (
	"context"
	"errors"
	"radiography_exam/internal/config"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/session"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Name     string `json:"name" form:"name" binding:"omitempty,max=100"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Country  string `json:"country" form:"country" binding:"omitempty,max=100"`
	State    string `json:"state" form:"state" binding:"omitempty,max=100"`
	ExamDate string `json:"examDate" form:"examDate"`
}

// AuthService 仅凭邮箱登录，会话保存用户身份；API 客户端使用 JWT
type AuthService struct {
	UserRepo *repository.UserRepository
	Sessions session.Store
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, sessions session.Store, cfg *config.Config) *AuthService {
	return &AuthService{UserRepo: userRepo, Sessions: sessions, Cfg: cfg}
}

func (s *AuthService) roleFor(email string) model.UserRole {
	if s.Cfg.Auth.IsAdminEmail(email) {
		return model.Admin
	}
	return model.Student
}

func (s *AuthService) newUser(req LoginRequest) (*model.User, error) {
	examDate, err := util.ParseDate(req.ExamDate)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.Split(req.Email, "@")[0]
	}
	return &model.User{
		Name:     name,
		Email:    req.Email,
		Role:     s.roleFor(req.Email),
		IsActive: true,
		Country:  req.Country,
		State:    req.State,
		ExamDate: examDate,
	}, nil
}

// Login 首次登录自动建号；已停用账号拒绝登录。返回用户及是否新建。
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*model.User, bool, error) {
	user, err := s.UserRepo.FindByEmail(ctx, req.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.newUser(req)
		if err != nil {
			return nil, false, err
		}
		if err := s.UserRepo.Create(ctx, user); err != nil {
			return nil, false, err
		}
		logger.Log.Info("New user registered", zap.Uint("userID", user.ID), zap.String("email", user.Email))
		return user, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !user.IsActive {
		return nil, false, util.ErrUserDisabled
	}

	fields := map[string]interface{}{}
	if req.Name != "" && req.Name != user.Name {
		fields["name"] = req.Name
	}
	if req.Country != "" {
		fields["country"] = req.Country
	}
	if req.State != "" {
		fields["state"] = req.State
	}
	if d, err := util.ParseDate(req.ExamDate); err == nil && d != nil {
		fields["exam_date"] = d
	}
	if role := s.roleFor(user.Email); role == model.Admin && user.Role != model.Admin {
		fields["role"] = role
	}
	if len(fields) > 0 {
		if err := s.UserRepo.UpdateFields(ctx, user.ID, fields); err != nil {
			return nil, false, err
		}
		if user, err = s.UserRepo.FindByID(ctx, user.ID); err != nil {
			return nil, false, err
		}
	}
	logger.Log.Info("User logged in", zap.Uint("userID", user.ID))
	return user, false, nil
}

// StartSession 将用户写入会话，保留会话中已有的作答数据
func (s *AuthService) StartSession(ctx context.Context, sid string, user *model.User) error {
	_, err := s.Sessions.Update(ctx, sid, func(st *session.State) error {
		st.UserID = user.ID
		st.UserName = user.Name
		st.Role = string(user.Role)
		return nil
	})
	return err
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Sessions.Delete(ctx, sid)
}

// CurrentUser 会话中的用户，未登录或已停用返回 nil
func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*model.User, error) {
	st, err := s.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !st.LoggedIn() {
		return nil, nil
	}
	user, err := s.UserRepo.FindByID(ctx, st.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return user, nil
}

// Register 供 API 创建账号，邮箱已存在时报错
func (s *AuthService) Register(ctx context.Context, req LoginRequest) (*model.User, error) {
	if _, err := s.UserRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// IssueToken 已有账号凭邮箱换取 JWT
func (s *AuthService) IssueToken(ctx context.Context, email string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, util.ErrUserNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, util.ErrUserDisabled
	}
	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
