package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// maxAccountNumberRetries 帳號編號碰撞時的重試次數上限
const maxAccountNumberRetries = 3

// defaultListLimit 交易清單的預設筆數上限
const defaultListLimit = 100

// AccountUseCase 帳戶生命週期與查詢
// 不碰餘額：餘額只由 PostingEngine 修改
type AccountUseCase struct {
	accounts AccountStore
	ledger   TransactionLedger
	logger   *zap.Logger
}

// BalanceSnapshot 餘額查詢結果
type BalanceSnapshot struct {
	Balance  decimal.Decimal
	Currency string
	AsOf     time.Time
}

func NewAccountUseCase(accounts AccountStore, ledger TransactionLedger, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		accounts: accounts,
		ledger:   ledger,
		logger:   logger,
	}
}

// Open 開戶，餘額 0.00、狀態 active
// accountType / currency 留空時採用預設值 (savings / USD)
func (u *AccountUseCase) Open(ctx context.Context, ownerID, accountType, currency string) (*domain.Account, error) {
	for attempt := 0; ; attempt++ {
		account := domain.NewAccount(ownerID, accountType, currency)
		err := u.accounts.CreateAccount(ctx, account)
		if errors.Is(err, domain.ErrDuplicateAccountNumber) && attempt+1 < maxAccountNumberRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		u.logger.Info("account created",
			zap.String("account_id", account.ID),
			zap.String("owner_id", ownerID),
			zap.String("account_number", account.AccountNumber),
		)
		return account, nil
	}
}

// Get 取得帳戶，非擁有者回傳 ErrForbidden
func (u *AccountUseCase) Get(ctx context.Context, callerID, accountID string) (*domain.Account, error) {
	account, err := u.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != callerID {
		return nil, domain.ErrForbidden
	}
	return account, nil
}

// List 列出呼叫者的所有帳戶
func (u *AccountUseCase) List(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	return u.accounts.ListAccountsByOwner(ctx, ownerID)
}

// UpdateStatus 變更帳戶狀態
// active <-> suspended 可互轉；closed 只在餘額為零時允許且為終態
func (u *AccountUseCase) UpdateStatus(ctx context.Context, callerID, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	account, err := u.Get(ctx, callerID, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.CanTransitionTo(status); err != nil {
		return nil, err
	}
	if err := u.accounts.UpdateAccountStatus(ctx, accountID, status); err != nil {
		return nil, err
	}
	account.Status = status
	u.logger.Info("account status updated",
		zap.String("account_id", accountID),
		zap.String("status", string(status)),
	)
	return account, nil
}

// Delete 刪除帳戶，只有擁有者且餘額為零時允許
// 交易紀錄隨帳戶一併移除 (儲存層 cascade)
func (u *AccountUseCase) Delete(ctx context.Context, callerID, accountID string) error {
	account, err := u.Get(ctx, callerID, accountID)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return domain.ErrAccountNotEmpty
	}
	if err := u.accounts.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	u.logger.Info("account deleted",
		zap.String("account_id", accountID),
		zap.String("owner_id", callerID),
	)
	return nil
}

// Balance 查詢餘額
func (u *AccountUseCase) Balance(ctx context.Context, callerID, accountID string) (*BalanceSnapshot, error) {
	account, err := u.Get(ctx, callerID, accountID)
	if err != nil {
		return nil, err
	}
	return &BalanceSnapshot{
		Balance:  account.Balance,
		Currency: account.Currency,
		AsOf:     account.UpdatedAt,
	}, nil
}

// AccountTransactions 列出帳戶的交易，新到舊
func (u *AccountUseCase) AccountTransactions(ctx context.Context, callerID, accountID string, limit int) ([]*domain.Transaction, error) {
	if _, err := u.Get(ctx, callerID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return u.ledger.ListTransactionsByAccount(ctx, accountID, limit)
}

// UserTransactions 列出呼叫者所有帳戶的交易，新到舊
func (u *AccountUseCase) UserTransactions(ctx context.Context, ownerID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return u.ledger.ListTransactionsByOwner(ctx, ownerID, limit)
}

// Transaction 取得單筆交易，透過所屬帳戶檢查擁有者
func (u *AccountUseCase) Transaction(ctx context.Context, callerID, transactionID string) (*domain.Transaction, error) {
	tran, err := u.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if _, err := u.Get(ctx, callerID, tran.AccountID); err != nil {
		// 帳戶已被刪除時交易也不應存在，一律視為 Forbidden / NotFound
		return nil, err
	}
	return tran, nil
}
