package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// defaultLockWait 等待帳戶鎖的預設上限
const defaultLockWait = 3 * time.Second

// WAL 紀錄類型
const (
	recordAccountCreated = "account_created"
	recordAccountStatus  = "account_status"
	recordAccountDeleted = "account_deleted"
	recordPosting        = "posting"
)

// walRecord WAL 的一筆紀錄，依 Kind 決定哪些欄位有值
type walRecord struct {
	Kind        string               `json:"kind"`
	Account     *domain.Account      `json:"account,omitempty"`
	AccountID   string               `json:"account_id,omitempty"`
	Status      domain.AccountStatus `json:"status,omitempty"`
	Transaction *domain.Transaction  `json:"transaction,omitempty"`
	NewBalance  *decimal.Decimal     `json:"new_balance,omitempty"`
}

// Ledger 純記憶體實作的儲存層
//
// 結構:
//
//	mu: 保護所有狀態 map
//	locks: 每帳戶一條容量 1 的 channel 作為帳戶鎖，跨帳戶入帳互不阻塞
//	references: reference number 唯一性索引，等同資料庫的 unique constraint
//	journal: 可選的 WAL，重啟時重放重建狀態 (可為 nil)
type Ledger struct {
	mu             sync.RWMutex
	accounts       map[string]*domain.Account
	accountNumbers map[string]string // account number -> account id
	transactions   map[string]*domain.Transaction
	byAccount      map[string][]*domain.Transaction // append 順序 = 入帳順序
	references     map[string]string                // reference number -> transaction id
	users          map[string]*domain.User
	emails         map[string]string // email -> user id

	lockMu sync.Mutex
	locks  map[string]chan struct{}

	lockWait time.Duration
	journal  *wal.WAL

	// commitHook 測試用：注入 commit 階段的失敗以驗證原子性
	commitHook func() error
}

// NewLedger 建立記憶體儲存層
// journal 非 nil 時先重放既有紀錄重建狀態
func NewLedger(journal *wal.WAL, lockWait time.Duration) (*Ledger, error) {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	l := &Ledger{
		accounts:       make(map[string]*domain.Account),
		accountNumbers: make(map[string]string),
		transactions:   make(map[string]*domain.Transaction),
		byAccount:      make(map[string][]*domain.Transaction),
		references:     make(map[string]string),
		users:          make(map[string]*domain.User),
		emails:         make(map[string]string),
		locks:          make(map[string]chan struct{}),
		lockWait:       lockWait,
		journal:        journal,
	}
	if journal != nil {
		if err := l.recover(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// SetCommitHook 測試用：在 commit 套用狀態之前呼叫，回傳錯誤可模擬
// 「交易紀錄已寫、餘額未寫」的中途失敗，驗證兩者都不可被觀察到
func (l *Ledger) SetCommitHook(hook func() error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitHook = hook
}

// recover 重放 WAL 重建帳本狀態 (建構時單執行緒，不需要鎖)
func (l *Ledger) recover() error {
	return l.journal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		l.apply(&rec)
		return nil
	})
}

// apply 套用一筆 WAL 紀錄到狀態 map，呼叫端需持有 l.mu (或在建構期)
func (l *Ledger) apply(rec *walRecord) {
	switch rec.Kind {
	case recordAccountCreated:
		a := *rec.Account
		l.accounts[a.ID] = &a
		l.accountNumbers[a.AccountNumber] = a.ID
	case recordAccountStatus:
		if a, ok := l.accounts[rec.AccountID]; ok {
			a.Status = rec.Status
			a.UpdatedAt = time.Now().UTC()
		}
	case recordAccountDeleted:
		l.dropAccount(rec.AccountID)
	case recordPosting:
		t := *rec.Transaction
		l.transactions[t.ID] = &t
		l.byAccount[t.AccountID] = append(l.byAccount[t.AccountID], &t)
		l.references[t.ReferenceNumber] = t.ID
		if a, ok := l.accounts[t.AccountID]; ok && rec.NewBalance != nil {
			a.Balance = *rec.NewBalance
			a.UpdatedAt = t.CreatedAt
		}
	}
}

// journalWrite 寫 WAL；失敗時整筆操作視為未發生
func (l *Ledger) journalWrite(rec *walRecord) error {
	if l.journal == nil {
		return nil
	}
	if err := l.journal.Write(rec); err != nil {
		return domain.ErrStorageUnavailable
	}
	return nil
}

// ---- PostingStore ----

// accountLock 取得 (必要時建立) 帳戶鎖
func (l *Ledger) accountLock(accountID string) chan struct{} {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	lock, ok := l.locks[accountID]
	if !ok {
		lock = make(chan struct{}, 1)
		l.locks[accountID] = lock
	}
	return lock
}

// withAccountLock 在帳戶鎖之下執行 fn，等待上限為 lockWait
// 帳戶列的所有異動 (入帳、狀態變更、刪除) 都必須走這裡，
// 否則入帳的驗證與 commit 之間可能被其他異動插隊
func (l *Ledger) withAccountLock(ctx context.Context, accountID string, fn func() error) error {
	lock := l.accountLock(accountID)
	timer := time.NewTimer(l.lockWait)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return domain.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()
	return fn()
}

// WithinPosting 在帳戶鎖之下執行一次入帳 unit of work
// fn 回傳 nil 才提交；鎖在離開時一定釋放
func (l *Ledger) WithinPosting(ctx context.Context, accountID string, fn func(usecase.PostingUnit) error) error {
	// 取鎖前尊重取消；一旦進入 unit of work 就讓它跑完或整批回滾
	if err := ctx.Err(); err != nil {
		return err
	}

	return l.withAccountLock(ctx, accountID, func() error {
		unit := &postingUnit{ledger: l, accountID: accountID}
		if err := fn(unit); err != nil {
			return err
		}
		return l.commit(unit)
	})
}

// postingUnit 暫存本次入帳的寫入，commit 時一次套用
type postingUnit struct {
	ledger    *Ledger
	accountID string
	staged    *domain.Transaction
	balance   *decimal.Decimal
}

func (u *postingUnit) Account() (*domain.Account, error) {
	u.ledger.mu.RLock()
	defer u.ledger.mu.RUnlock()
	a, ok := u.ledger.accounts[u.accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (u *postingUnit) AppendTransaction(tran *domain.Transaction) error {
	u.ledger.mu.RLock()
	defer u.ledger.mu.RUnlock()
	if _, dup := u.ledger.references[tran.ReferenceNumber]; dup {
		return domain.ErrDuplicateReference
	}
	cp := *tran
	u.staged = &cp
	return nil
}

func (u *postingUnit) UpdateBalance(balance decimal.Decimal) error {
	u.balance = &balance
	return nil
}

// commit 一次性套用暫存的交易與餘額；任一步失敗則什麼都不套用
func (l *Ledger) commit(u *postingUnit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.commitHook != nil {
		if err := l.commitHook(); err != nil {
			return domain.ErrStorageUnavailable
		}
	}
	if u.staged == nil || u.balance == nil {
		return nil
	}
	// 帳戶在入帳途中消失時不可落下孤兒交易
	if _, ok := l.accounts[u.accountID]; !ok {
		return domain.ErrAccountNotFound
	}
	// 不同帳戶的入帳不共用帳戶鎖，reference 唯一性要在這裡做最終檢查
	if _, dup := l.references[u.staged.ReferenceNumber]; dup {
		return domain.ErrDuplicateReference
	}

	rec := &walRecord{
		Kind:        recordPosting,
		Transaction: u.staged,
		NewBalance:  u.balance,
	}
	if err := l.journalWrite(rec); err != nil {
		return err
	}
	l.apply(rec)
	return nil
}

// ---- AccountStore ----

func (l *Ledger) CreateAccount(ctx context.Context, account *domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.accountNumbers[account.AccountNumber]; dup {
		return domain.ErrDuplicateAccountNumber
	}
	cp := *account
	rec := &walRecord{Kind: recordAccountCreated, Account: &cp}
	if err := l.journalWrite(rec); err != nil {
		return err
	}
	l.apply(rec)
	return nil
}

func (l *Ledger) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (l *Ledger) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Account, 0)
	for _, a := range l.accounts {
		if a.OwnerID == ownerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateAccountStatus 狀態變更與入帳共用帳戶鎖，不可插在入帳中途
func (l *Ledger) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	return l.withAccountLock(ctx, id, func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.accounts[id]; !ok {
			return domain.ErrAccountNotFound
		}
		rec := &walRecord{Kind: recordAccountStatus, AccountID: id, Status: status}
		if err := l.journalWrite(rec); err != nil {
			return err
		}
		l.apply(rec)
		return nil
	})
}

// DeleteAccount 刪除同樣要等帳戶鎖：進行中的入帳先落地，之後才 cascade
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	return l.withAccountLock(ctx, id, func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.accounts[id]; !ok {
			return domain.ErrAccountNotFound
		}
		rec := &walRecord{Kind: recordAccountDeleted, AccountID: id}
		if err := l.journalWrite(rec); err != nil {
			return err
		}
		l.apply(rec)
		return nil
	})
}

// dropAccount 移除帳戶與其所有交易 (cascade)，呼叫端需持有 l.mu
func (l *Ledger) dropAccount(id string) {
	a, ok := l.accounts[id]
	if !ok {
		return
	}
	delete(l.accountNumbers, a.AccountNumber)
	delete(l.accounts, id)
	for _, t := range l.byAccount[id] {
		delete(l.transactions, t.ID)
		delete(l.references, t.ReferenceNumber)
	}
	delete(l.byAccount, id)
}

// ---- TransactionLedger ----

func (l *Ledger) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *Ledger) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.byAccount[accountID]
	out := make([]*domain.Transaction, 0, limit)
	// append 順序即入帳順序，倒著走就是新到舊
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (l *Ledger) ListTransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Transaction, 0)
	for accountID, a := range l.accounts {
		if a.OwnerID != ownerID {
			continue
		}
		for _, t := range l.byAccount[accountID] {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- UserStore ----

func (l *Ledger) CreateUser(ctx context.Context, user *domain.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.emails[user.Email]; dup {
		return domain.ErrEmailTaken
	}
	cp := *user
	l.users[cp.ID] = &cp
	l.emails[cp.Email] = cp.ID
	return nil
}

func (l *Ledger) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.emails[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *l.users[id]
	return &cp, nil
}

func (l *Ledger) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (l *Ledger) ListUsers(ctx context.Context) ([]*domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.User, 0, len(l.users))
	for _, u := range l.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateUser 覆寫使用者欄位 (email 不在更新範圍，索引不動)
func (l *Ledger) UpdateUser(ctx context.Context, user *domain.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	l.users[cp.ID] = &cp
	return nil
}

func (l *Ledger) DeleteUser(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(l.emails, u.Email)
	delete(l.users, id)
	return nil
}

var _ usecase.Store = (*Ledger)(nil)
