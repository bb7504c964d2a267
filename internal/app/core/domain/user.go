package domain

import (
	"time"

	"github.com/google/uuid"
)

// 使用者角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 使用者，帳戶的擁有者
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser 建立新使用者，預設 user 角色且為啟用狀態
func NewUser(email, passwordHash, firstName, lastName string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
