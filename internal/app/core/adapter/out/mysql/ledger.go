package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	sqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// MySQL error numbers
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// sqlUser 對應 users 表
type sqlUser struct {
	ID           string `gorm:"primaryKey;type:char(36)"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"column:password_hash;size:255"`
	FirstName    string `gorm:"column:first_name;size:100"`
	LastName     string `gorm:"column:last_name;size:100"`
	Role         string `gorm:"size:20"`
	IsActive     bool   `gorm:"column:is_active"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (*sqlUser) TableName() string { return "users" }

// sqlAccount 對應 accounts 表
type sqlAccount struct {
	ID            string          `gorm:"primaryKey;type:char(36)"`
	OwnerID       string          `gorm:"column:owner_id;type:char(36);index"`
	AccountNumber string          `gorm:"column:account_number;size:50;uniqueIndex"`
	AccountType   string          `gorm:"column:account_type;size:50"`
	Currency      string          `gorm:"size:3"`
	Status        string          `gorm:"size:20;index"`
	Balance       decimal.Decimal `gorm:"type:decimal(15,2)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (*sqlAccount) TableName() string { return "accounts" }

// sqlTransaction 對應 transactions 表
// reference_number 的 unique index 是整個 idempotency 設計的根基
type sqlTransaction struct {
	ID              string          `gorm:"primaryKey;type:char(36)"`
	AccountID       string          `gorm:"column:account_id;type:char(36);index:idx_transactions_account_created,priority:1"`
	Type            string          `gorm:"column:transaction_type;size:50"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2)"`
	Currency        string          `gorm:"size:3"`
	Description     string          `gorm:"type:text"`
	ReferenceNumber string          `gorm:"column:reference_number;size:100;uniqueIndex"`
	Status          string          `gorm:"size:20"`
	CreatedAt       time.Time       `gorm:"index:idx_transactions_account_created,priority:2"`
	ProcessedAt     *time.Time
}

func (*sqlTransaction) TableName() string { return "transactions" }

// Ledger MySQL 實作的儲存層
type Ledger struct {
	client   *mysql.Client
	lockWait time.Duration
}

func NewLedger(client *mysql.Client, lockWait time.Duration) *Ledger {
	return &Ledger{
		client:   client,
		lockWait: lockWait,
	}
}

// AutoMigrate 建立資料表與索引
func (l *Ledger) AutoMigrate() error {
	return l.client.DB().AutoMigrate(&sqlUser{}, &sqlAccount{}, &sqlTransaction{})
}

// ---- PostingStore ----

// WithinPosting 以資料庫交易包住一次入帳
// SELECT ... FOR UPDATE 把同帳戶的入帳序列化；
// commit/rollback 由 gorm 的 Transaction closure 保證
func (l *Ledger) WithinPosting(ctx context.Context, accountID string, fn func(usecase.PostingUnit) error) error {
	// Connection 釘住單一連線：session 變數只影響這次入帳，
	// 歸還連線池前還原成全域預設，不外洩到其他查詢
	err := l.client.DB().WithContext(ctx).Connection(func(conn *gorm.DB) error {
		// 控制等待帳戶鎖的上限，逾時由 1205 轉成 ErrLockTimeout
		if l.lockWait > 0 {
			secs := int(l.lockWait.Seconds())
			if secs < 1 {
				secs = 1
			}
			if err := conn.Exec("SET SESSION innodb_lock_wait_timeout = ?", secs).Error; err != nil {
				return err
			}
			defer conn.Exec("SET SESSION innodb_lock_wait_timeout = DEFAULT")
		}
		return conn.Transaction(func(tx *gorm.DB) error {
			return fn(&postingUnit{tx: tx, accountID: accountID})
		})
	})
	return translateError(err)
}

type postingUnit struct {
	tx        *gorm.DB
	accountID string
}

// Account 以悲觀鎖取得帳戶 row
func (u *postingUnit) Account() (*domain.Account, error) {
	var row sqlAccount
	err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", u.accountID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return accountToDomain(&row), nil
}

func (u *postingUnit) AppendTransaction(tran *domain.Transaction) error {
	row := transactionFromDomain(tran)
	// 不先查再插：唯一性交給 unique constraint，避免 check 與 insert 之間的 race
	return translateError(u.tx.Create(row).Error)
}

func (u *postingUnit) UpdateBalance(balance decimal.Decimal) error {
	res := u.tx.Model(&sqlAccount{}).
		Where("id = ?", u.accountID).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ---- AccountStore ----

func (l *Ledger) CreateAccount(ctx context.Context, account *domain.Account) error {
	err := l.client.DB().WithContext(ctx).Create(accountFromDomain(account)).Error
	if isDuplicateEntry(err) {
		return domain.ErrDuplicateAccountNumber
	}
	return translateError(err)
}

func (l *Ledger) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var row sqlAccount
	err := l.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return accountToDomain(&row), nil
}

func (l *Ledger) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	var rows []sqlAccount
	err := l.client.DB().WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, accountToDomain(&rows[i]))
	}
	return out, nil
}

func (l *Ledger) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	res := l.client.DB().WithContext(ctx).Model(&sqlAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount 刪除帳戶並 cascade 其交易紀錄
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&sqlTransaction{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&sqlAccount{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAccountNotFound
		}
		return nil
	})
	return translateError(err)
}

// ---- TransactionLedger ----

func (l *Ledger) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var row sqlTransaction
	err := l.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return transactionToDomain(&row), nil
}

func (l *Ledger) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	err := l.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return transactionsToDomain(rows), nil
}

func (l *Ledger) ListTransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	err := l.client.DB().WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Where("accounts.owner_id = ?", ownerID).
		Order("transactions.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return transactionsToDomain(rows), nil
}

// ---- UserStore ----

func (l *Ledger) CreateUser(ctx context.Context, user *domain.User) error {
	err := l.client.DB().WithContext(ctx).Create(userFromDomain(user)).Error
	if isDuplicateEntry(err) {
		return domain.ErrEmailTaken
	}
	return translateError(err)
}

func (l *Ledger) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row sqlUser
	err := l.client.DB().WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return userToDomain(&row), nil
}

func (l *Ledger) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var row sqlUser
	err := l.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return userToDomain(&row), nil
}

func (l *Ledger) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var rows []sqlUser
	err := l.client.DB().WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, userToDomain(&rows[i]))
	}
	return out, nil
}

// UpdateUser 只更新可變欄位，email 與密碼雜湊不在此路徑
func (l *Ledger) UpdateUser(ctx context.Context, user *domain.User) error {
	res := l.client.DB().WithContext(ctx).Model(&sqlUser{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       user.Role,
			"is_active":  user.IsActive,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (l *Ledger) DeleteUser(ctx context.Context, id string) error {
	res := l.client.DB().WithContext(ctx).Where("id = ?", id).Delete(&sqlUser{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ---- error translation / converters ----

// domainErrors fn 內部已分類過的錯誤，原樣往上傳
var domainErrors = []error{
	domain.ErrAccountNotFound,
	domain.ErrForbidden,
	domain.ErrAccountNotActive,
	domain.ErrInvalidAmount,
	domain.ErrInvalidTransactionType,
	domain.ErrCurrencyMismatch,
	domain.ErrInsufficientBalance,
	domain.ErrDuplicateReference,
	domain.ErrTransactionNotFound,
	domain.ErrLockTimeout,
}

// translateError 把 driver 層錯誤轉成 domain 錯誤分類
// 1062 -> 重複 reference；1205/1213 -> 鎖逾時 (可重試)；
// 其餘一律視為儲存層失效
func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, de := range domainErrors {
		if errors.Is(err, de) {
			return err
		}
	}
	var myErr *sqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDuplicateEntry:
			return domain.ErrDuplicateReference
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return domain.ErrLockTimeout
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func isDuplicateEntry(err error) bool {
	var myErr *sqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func accountToDomain(row *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		AccountNumber: row.AccountNumber,
		AccountType:   row.AccountType,
		Currency:      row.Currency,
		Status:        domain.AccountStatus(row.Status),
		Balance:       row.Balance,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func accountFromDomain(a *domain.Account) *sqlAccount {
	return &sqlAccount{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		AccountNumber: a.AccountNumber,
		AccountType:   a.AccountType,
		Currency:      a.Currency,
		Status:        string(a.Status),
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func transactionToDomain(row *sqlTransaction) *domain.Transaction {
	return &domain.Transaction{
		ID:              row.ID,
		AccountID:       row.AccountID,
		Type:            domain.TransactionType(row.Type),
		Amount:          row.Amount,
		Currency:        row.Currency,
		Description:     row.Description,
		ReferenceNumber: row.ReferenceNumber,
		Status:          domain.TransactionStatus(row.Status),
		CreatedAt:       row.CreatedAt,
		ProcessedAt:     row.ProcessedAt,
	}
}

func transactionFromDomain(t *domain.Transaction) *sqlTransaction {
	return &sqlTransaction{
		ID:              t.ID,
		AccountID:       t.AccountID,
		Type:            string(t.Type),
		Amount:          t.Amount,
		Currency:        t.Currency,
		Description:     t.Description,
		ReferenceNumber: t.ReferenceNumber,
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt,
		ProcessedAt:     t.ProcessedAt,
	}
}

func transactionsToDomain(rows []sqlTransaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, transactionToDomain(&rows[i]))
	}
	return out
}

func userToDomain(row *sqlUser) *domain.User {
	return &domain.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Role:         row.Role,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func userFromDomain(u *domain.User) *sqlUser {
	return &sqlUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

var _ usecase.Store = (*Ledger)(nil)
