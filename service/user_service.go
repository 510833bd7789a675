package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/cydxin/relay-sdk/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPasswordWrong = errors.New("invalid password")
	ErrUserBanned    = errors.New("user is banned")
)

// UserService 登录凭据校验（外部凭据存储的薄封装，仅登录接口使用）。
type UserService struct {
	*Service
}

func NewUserService(base *Service) *UserService {
	return &UserService{Service: base}
}

// LoginResult 登录成功后的用户信息
type LoginResult struct {
	UserID   uint64 `json:"userId"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// Login 按邮箱+密码校验用户。
// 封禁用户返回 ErrUserBanned，密码错误与用户不存在分别返回对应错误。
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrPasswordWrong
	}

	var u models.User
	err := s.DB.WithContext(ctx).
		Where("email = ? AND is_del = 0", email).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !verifyPassword(password, u.Salt, u.Password) {
		return nil, ErrPasswordWrong
	}
	if u.Status == models.UserStatusBanned {
		return nil, ErrUserBanned
	}

	return &LoginResult{
		UserID:   u.UserID,
		Email:    u.Email,
		Nickname: nicknameOf(u.Email),
	}, nil
}

// CreateUser 创建本地用户，密码按 bcrypt 存储（Salt 留空）。
func (s *UserService) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrPasswordWrong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := models.User{Email: email, Password: string(hash)}
	if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// verifyPassword 兼容两种散列：
// - 历史数据（cloud-mail 导入）：base64(SHA-256(salt + password))
// - 本服务创建的用户：bcrypt，Salt 为空
func verifyPassword(password, salt, stored string) bool {
	if salt != "" {
		sum := sha256.Sum256([]byte(salt + password))
		return base64.StdEncoding.EncodeToString(sum[:]) == stored
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// nicknameOf 邮箱本地部分作为昵称
func nicknameOf(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
