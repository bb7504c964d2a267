package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// PostingUnit 一次入帳的 unit of work
// 只在 PostingStore.WithinPosting 的 callback 範圍內有效；
// callback 回傳 nil 時整批提交，回傳錯誤時整批回滾
type PostingUnit interface {
	// Account 取得已鎖定的帳戶 (同帳戶的其他入帳會被擋在鎖外)
	Account() (*domain.Account, error)
	// AppendTransaction 追加交易紀錄
	// reference number 唯一性由儲存層 constraint 把關，重複回傳 ErrDuplicateReference
	AppendTransaction(tran *domain.Transaction) error
	// UpdateBalance 改寫帳戶餘額，只能在同一 unit of work 內呼叫
	UpdateBalance(balance decimal.Decimal) error
}

// PostingStore 提供交易性的入帳範圍
// 鎖的等待時間有上限，逾時回傳 ErrLockTimeout；
// 不論成功、驗證失敗或儲存層錯誤，鎖在離開 callback 時一定釋放
type PostingStore interface {
	WithinPosting(ctx context.Context, accountID string, fn func(PostingUnit) error) error
}

// AccountStore 帳戶存取
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionLedger 交易查詢 (寫入只發生在 PostingUnit 內)
type TransactionLedger interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactionsByAccount 依建立時間新到舊排序
	ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error)
	// ListTransactionsByOwner 跨該使用者所有帳戶，新到舊排序
	ListTransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Transaction, error)
}

// UserStore 使用者存取
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// ListUsers 依建立時間新到舊排序
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

// Store 完整儲存介面，由 mysql 與 memory adapter 實作
type Store interface {
	PostingStore
	AccountStore
	TransactionLedger
	UserStore
}

// EventPublisher 入帳事件發布 (side channel，不影響入帳正確性)
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}
