package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func newAccountFixture(t *testing.T) (*usecase.AccountUseCase, *usecase.PostingEngine, *memory.Ledger) {
	t.Helper()
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	logger := zap.NewNop()
	return usecase.NewAccountUseCase(store, store, logger),
		usecase.NewPostingEngine(store, nil, logger),
		store
}

func deposit(t *testing.T, engine *usecase.PostingEngine, accountID, caller, amount string) {
	t.Helper()
	_, err := engine.Post(context.Background(), &domain.PostingRequest{
		AccountID: accountID,
		CallerID:  caller,
		Type:      domain.TransactionTypeDeposit,
		Amount:    decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func TestOpenDefaults(t *testing.T) {
	accounts, _, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)

	assert.Equal(t, ownerID, account.OwnerID)
	assert.Equal(t, domain.DefaultAccountType, account.AccountType)
	assert.Equal(t, domain.DefaultCurrency, account.Currency)
	assert.Equal(t, domain.AccountStatusActive, account.Status)
	assert.True(t, account.Balance.IsZero())
	assert.Regexp(t, `^ACC\d+`, account.AccountNumber)
}

func TestOpenExplicitTypeAndCurrency(t *testing.T) {
	accounts, _, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "checking", "TWD")
	require.NoError(t, err)
	assert.Equal(t, "checking", account.AccountType)
	assert.Equal(t, "TWD", account.Currency)
}

func TestGetOwnership(t *testing.T) {
	accounts, _, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)

	got, err := accounts.Get(context.Background(), ownerID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = accounts.Get(context.Background(), "intruder", account.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = accounts.Get(context.Background(), ownerID, "no-such-account")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestListOnlyOwnAccounts(t *testing.T) {
	accounts, _, _ := newAccountFixture(t)

	_, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	_, err = accounts.Open(context.Background(), ownerID, "checking", "")
	require.NoError(t, err)
	_, err = accounts.Open(context.Background(), "someone-else", "", "")
	require.NoError(t, err)

	list, err := accounts.List(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, ownerID, a.OwnerID)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	accounts, engine, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)

	// active -> suspended -> active
	got, err := accounts.UpdateStatus(context.Background(), ownerID, account.ID, domain.AccountStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusSuspended, got.Status)

	_, err = accounts.UpdateStatus(context.Background(), ownerID, account.ID, domain.AccountStatusActive)
	require.NoError(t, err)

	// 有餘額不可關閉
	deposit(t, engine, account.ID, ownerID, "10.00")
	_, err = accounts.UpdateStatus(context.Background(), ownerID, account.ID, domain.AccountStatusClosed)
	assert.ErrorIs(t, err, domain.ErrAccountNotEmpty)

	// 歸零後可關閉，closed 為終態
	_, err = engine.Post(context.Background(), &domain.PostingRequest{
		AccountID: account.ID,
		CallerID:  ownerID,
		Type:      domain.TransactionTypeWithdrawal,
		Amount:    decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	_, err = accounts.UpdateStatus(context.Background(), ownerID, account.ID, domain.AccountStatusClosed)
	require.NoError(t, err)
	_, err = accounts.UpdateStatus(context.Background(), ownerID, account.ID, domain.AccountStatusActive)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusChange)

	// 非擁有者不可變更狀態
	_, err = accounts.UpdateStatus(context.Background(), "intruder", account.ID, domain.AccountStatusSuspended)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteRequiresZeroBalance(t *testing.T) {
	accounts, engine, store := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	deposit(t, engine, account.ID, ownerID, "5.00")

	err = accounts.Delete(context.Background(), ownerID, account.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotEmpty)

	_, err = engine.Post(context.Background(), &domain.PostingRequest{
		AccountID: account.ID,
		CallerID:  ownerID,
		Type:      domain.TransactionTypeWithdrawal,
		Amount:    decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	tranID := func() string {
		entries, err := store.ListTransactionsByAccount(context.Background(), account.ID, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		return entries[0].ID
	}()

	require.NoError(t, accounts.Delete(context.Background(), ownerID, account.ID))

	// 帳戶與交易一併消失 (cascade)
	_, err = store.GetAccount(context.Background(), account.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = store.GetTransaction(context.Background(), tranID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestBalanceSnapshot(t *testing.T) {
	accounts, engine, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	deposit(t, engine, account.ID, ownerID, "123.45")

	snap, err := accounts.Balance(context.Background(), ownerID, account.ID)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, domain.DefaultCurrency, snap.Currency)
	assert.False(t, snap.AsOf.IsZero())

	_, err = accounts.Balance(context.Background(), "intruder", account.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAccountTransactionsOrderAndLimit(t *testing.T) {
	accounts, engine, _ := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	for _, amount := range []string{"1.00", "2.00", "3.00"} {
		deposit(t, engine, account.ID, ownerID, amount)
	}

	entries, err := accounts.AccountTransactions(context.Background(), ownerID, account.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// 新到舊
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("3.00")))
	assert.True(t, entries[2].Amount.Equal(decimal.RequireFromString("1.00")))

	limited, err := accounts.AccountTransactions(context.Background(), ownerID, account.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = accounts.AccountTransactions(context.Background(), "intruder", account.ID, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUserTransactionsSpanAccounts(t *testing.T) {
	accounts, engine, _ := newAccountFixture(t)

	first, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	second, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)

	deposit(t, engine, first.ID, ownerID, "1.00")
	deposit(t, engine, second.ID, ownerID, "2.00")

	entries, err := accounts.UserTransactions(context.Background(), ownerID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	other, err := accounts.UserTransactions(context.Background(), "someone-else", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTransactionLookupOwnership(t *testing.T) {
	accounts, engine, store := newAccountFixture(t)

	account, err := accounts.Open(context.Background(), ownerID, "", "")
	require.NoError(t, err)
	deposit(t, engine, account.ID, ownerID, "9.99")

	entries, err := store.ListTransactionsByAccount(context.Background(), account.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := accounts.Transaction(context.Background(), ownerID, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, got.ID)

	_, err = accounts.Transaction(context.Background(), "intruder", entries[0].ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = accounts.Transaction(context.Background(), ownerID, "no-such-transaction")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
