package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

const (
	// bcryptCost 沿用原系統的雜湊強度
	bcryptCost = 12
	// defaultTokenTTL Token 預設有效期
	defaultTokenTTL = 7 * 24 * time.Hour
)

// AuthConfig 簽發 Token 的設定
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// Claims 驗證通過後取得的身份
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// AuthUseCase 註冊、登入與 Token 簽發/驗證
type AuthUseCase struct {
	users  UserStore
	cfg    AuthConfig
	logger *zap.Logger
}

func NewAuthUseCase(users UserStore, cfg AuthConfig, logger *zap.Logger) *AuthUseCase {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthUseCase{
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// Register 註冊新使用者並簽發 Token
// Email 重複回傳 ErrEmailTaken
func (u *AuthUseCase) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", err
	}

	user := domain.NewUser(email, string(hash), firstName, lastName)
	if err := u.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := u.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	u.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)
	return user, token, nil
}

// Login 驗證帳密並簽發 Token
// 為避免帳號探測，使用者不存在與密碼錯誤一律回傳 ErrInvalidCredentials
func (u *AuthUseCase) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := u.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive {
		return nil, "", domain.ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		u.logger.Warn("failed login attempt", zap.String("email", email))
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := u.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	u.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)
	return user, token, nil
}

// issueToken 簽發 HS256 JWT
func (u *AuthUseCase) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(u.cfg.TokenTTL).Unix(),
	})
	return token.SignedString([]byte(u.cfg.Secret))
}

// Refresh 以既有 Token 換發新 Token
// 已過期的 Token 也可換發，但簽章必須有效；身份沿用 Token 內的 claims
func (u *AuthUseCase) Refresh(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(u.cfg.Secret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return "", domain.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", domain.ErrInvalidCredentials
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return u.issueToken(&domain.User{ID: sub, Email: email, Role: role})
}

// Verify 驗證 Token 並取出身份
func (u *AuthUseCase) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(u.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, domain.ErrInvalidCredentials
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &Claims{UserID: sub, Email: email, Role: role}, nil
}
