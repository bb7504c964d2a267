package domain

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus 交易狀態
// 核心入帳為同步流程，成功的交易一律以 completed 寫入；
// pending/failed 保留給外部批次匯入等場景
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction 交易紀錄 (ledger entry)
// 一旦 completed 即不可變更，只會追加、不會修改或刪除
type Transaction struct {
	ID              string
	AccountID       string
	Type            TransactionType
	Amount          decimal.Decimal
	Currency        string
	Description     string
	ReferenceNumber string
	Status          TransactionStatus
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// PostingRequest 一筆入帳請求
// 由外部協作層 (HTTP adapter) 組裝並先行驗證；
// 擁有者、帳戶狀態、幣別等與帳戶相關的檢查仍由 Posting Engine 在鎖內重新把關
type PostingRequest struct {
	AccountID   string
	CallerID    string
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    string // 可留空，留空時以帳戶幣別入帳
	Description string
	// ReferenceNumber 可留空，由系統產生；
	// 呼叫端自帶 reference 時，重複送出會被拒絕而不是重複入帳
	ReferenceNumber string
}

// Validate 驗證請求本身的形狀 (不涉及帳戶狀態)
func (r *PostingRequest) Validate() error {
	switch r.Type {
	case TransactionTypeDeposit, TransactionTypeWithdrawal:
	default:
		return ErrInvalidTransactionType
	}
	// 金額必須為正，且不可帶有兩位小數以外的值 (避免入帳後餘額出現無法表示的尾差)
	// 以數值比較而非表示法比較："10.000" 是合法的兩位小數金額
	if !r.Amount.IsPositive() || !r.Amount.Equal(r.Amount.Round(2)) {
		return ErrInvalidAmount
	}
	r.Amount = r.Amount.Round(2)
	return nil
}

// NewReferenceNumber 產生交易 reference number，格式 TXN<毫秒時間戳><隨機尾碼>
// 時間戳加亂數在高併發下仍可能碰撞，唯一性以儲存層 unique constraint 為準；
// 碰撞時由 Posting Engine 重新產生再試
func NewReferenceNumber() string {
	u := uuid.New()
	return "TXN" + millisString() + hex.EncodeToString(u[:4])
}

func millisString() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
