package domain

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus 帳戶狀態
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

// 預設開戶參數
const (
	DefaultAccountType = "savings"
	DefaultCurrency    = "USD"
)

// Account 帳戶
//
// 不變量:
//   - Balance 永遠等於所有已入帳交易的總和 (存款加、提款減)
//   - Balance 永遠 >= 0，不允許透支
//   - Balance 只由 Posting Engine 在帳戶鎖之下修改
type Account struct {
	ID            string
	OwnerID       string
	AccountNumber string
	AccountType   string
	Currency      string
	Status        AccountStatus
	Balance       decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount 建立新帳戶，餘額 0.00、狀態 active
func NewAccount(ownerID, accountType, currency string) *Account {
	if accountType == "" {
		accountType = DefaultAccountType
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now().UTC()
	return &Account{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		AccountNumber: NewAccountNumber(),
		AccountType:   accountType,
		Currency:      currency,
		Status:        AccountStatusActive,
		Balance:       decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanTransitionTo 檢查帳戶狀態轉換是否合法
// active <-> suspended 可互轉；closed 為終態，且只有餘額為零時可關閉
func (a *Account) CanTransitionTo(next AccountStatus) error {
	switch next {
	case AccountStatusActive, AccountStatusSuspended:
		if a.Status == AccountStatusClosed {
			return ErrInvalidStatusChange
		}
		return nil
	case AccountStatusClosed:
		if !a.Balance.IsZero() {
			return ErrAccountNotEmpty
		}
		return nil
	default:
		return ErrInvalidStatusChange
	}
}

// NewAccountNumber 產生帳號編號，格式 ACC<毫秒時間戳><隨機尾碼>
// 尾碼取自 UUID，碰撞機率極低；真正的唯一性仍由儲存層 unique constraint 把關
func NewAccountNumber() string {
	u := uuid.New()
	return "ACC" + millisString() + hex.EncodeToString(u[:3])
}
