package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// UserUpdate 部分更新：nil 代表該欄位不變
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Role      *string
	IsActive  *bool
}

// UserUseCase 使用者資料的查詢與維護
// 本人只能改自己的姓名；角色與啟用狀態的變更保留給管理者路徑，
// 管理者身份由 HTTP 層的 middleware 把關
type UserUseCase struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserUseCase(users UserStore, logger *zap.Logger) *UserUseCase {
	return &UserUseCase{
		users:  users,
		logger: logger,
	}
}

// Profile 取得本人資料
func (u *UserUseCase) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return u.users.GetUserByID(ctx, userID)
}

// UpdateProfile 更新本人姓名
func (u *UserUseCase) UpdateProfile(ctx context.Context, userID string, firstName, lastName *string) (*domain.User, error) {
	return u.Update(ctx, userID, UserUpdate{FirstName: firstName, LastName: lastName})
}

// List 列出所有使用者，新到舊
func (u *UserUseCase) List(ctx context.Context) ([]*domain.User, error) {
	return u.users.ListUsers(ctx)
}

// Get 取得指定使用者
func (u *UserUseCase) Get(ctx context.Context, id string) (*domain.User, error) {
	return u.users.GetUserByID(ctx, id)
}

// Update 套用部分更新
// 未知的角色值直接拒絕；email 與密碼雜湊不在此路徑
func (u *UserUseCase) Update(ctx context.Context, id string, patch UserUpdate) (*domain.User, error) {
	if patch.Role != nil {
		switch *patch.Role {
		case domain.RoleUser, domain.RoleAdmin:
		default:
			return nil, domain.ErrInvalidRole
		}
	}

	user, err := u.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	user.UpdatedAt = time.Now().UTC()

	if err := u.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	u.logger.Info("user updated",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.Bool("is_active", user.IsActive),
	)
	return user, nil
}

// Delete 刪除使用者
func (u *UserUseCase) Delete(ctx context.Context, id string) error {
	if err := u.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	u.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}
