package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// maxReferenceRetries 系統產生的 reference number 碰撞時的重新產生次數上限
const maxReferenceRetries = 3

// PostingEngine 入帳引擎，帳戶餘額唯一的寫入者
//
// 入帳流程 (全部在同一 unit of work 內，全有或全無):
//  1. 取得帳戶鎖 (同帳戶序列化，跨帳戶並行)
//  2. 擁有者 / 狀態 / 幣別 / 金額檢查
//  3. 計算新餘額，提款不足直接中止 (不允許透支、不做部分提款)
//  4. 追加 completed 交易紀錄 + 改寫餘額
//  5. 提交；任一步失敗則整批回滾，不會觀察到半套狀態
type PostingEngine struct {
	store  PostingStore
	events EventPublisher // 可為 nil
	logger *zap.Logger
}

// PostingResult 入帳成功的回傳值
type PostingResult struct {
	Transaction *domain.Transaction
	NewBalance  decimal.Decimal
}

// PostingEvent 每筆成功入帳對外發布的事件
type PostingEvent struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ReferenceNumber string          `json:"reference_number"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

func NewPostingEngine(store PostingStore, events EventPublisher, logger *zap.Logger) *PostingEngine {
	return &PostingEngine{
		store:  store,
		events: events,
		logger: logger,
	}
}

// Post 對指定帳戶入帳一筆交易
//
// 回傳:
//
//	*PostingResult: 已入帳的交易與最新餘額
//	error: 錯誤分類見 domain/errors.go；只有 ErrLockTimeout 與
//	       ErrStorageUnavailable 適合由呼叫端重試
func (e *PostingEngine) Post(ctx context.Context, req *domain.PostingRequest) (*PostingResult, error) {
	if err := req.Validate(); err != nil {
		e.logAttempt(req, req.ReferenceNumber, nil, err)
		return nil, err
	}

	// 呼叫端自帶 reference 時不得重新產生：碰撞即視為重複送出
	callerRef := req.ReferenceNumber != ""
	ref := req.ReferenceNumber

	for attempt := 0; ; attempt++ {
		if ref == "" {
			ref = domain.NewReferenceNumber()
		}

		result, err := e.postOnce(ctx, req, ref)
		if errors.Is(err, domain.ErrDuplicateReference) {
			if callerRef {
				err = domain.ErrDuplicatePosting
				e.logAttempt(req, ref, nil, err)
				return nil, err
			}
			// 系統產生的 reference 撞上 unique constraint，換一個再試
			if attempt+1 >= maxReferenceRetries {
				e.logAttempt(req, ref, nil, domain.ErrStorageUnavailable)
				return nil, domain.ErrStorageUnavailable
			}
			ref = ""
			continue
		}

		e.logAttempt(req, ref, result, err)
		if err != nil {
			return nil, err
		}
		e.publish(ctx, result)
		return result, nil
	}
}

// postOnce 執行一次完整的入帳 unit of work
func (e *PostingEngine) postOnce(ctx context.Context, req *domain.PostingRequest, ref string) (*PostingResult, error) {
	var result *PostingResult

	err := e.store.WithinPosting(ctx, req.AccountID, func(unit PostingUnit) error {
		account, err := unit.Account()
		if err != nil {
			return err
		}
		// 授權在鎖內重新檢查：餘額異動絕不能歸因到非擁有者
		if account.OwnerID != req.CallerID {
			return domain.ErrForbidden
		}
		if account.Status != domain.AccountStatusActive {
			return domain.ErrAccountNotActive
		}
		if req.Currency != "" && req.Currency != account.Currency {
			return domain.ErrCurrencyMismatch
		}

		var newBalance decimal.Decimal
		switch req.Type {
		case domain.TransactionTypeDeposit:
			newBalance = account.Balance.Add(req.Amount)
		case domain.TransactionTypeWithdrawal:
			newBalance = account.Balance.Sub(req.Amount)
			if newBalance.IsNegative() {
				return domain.ErrInsufficientBalance
			}
		default:
			return domain.ErrInvalidTransactionType
		}

		now := time.Now().UTC()
		tran := &domain.Transaction{
			ID:              uuid.NewString(),
			AccountID:       account.ID,
			Type:            req.Type,
			Amount:          req.Amount,
			Currency:        account.Currency,
			Description:     req.Description,
			ReferenceNumber: ref,
			Status:          domain.TransactionStatusCompleted,
			CreatedAt:       now,
			ProcessedAt:     &now,
		}

		// 交易紀錄與餘額必須在同一 unit of work 內落地
		if err := unit.AppendTransaction(tran); err != nil {
			return err
		}
		if err := unit.UpdateBalance(newBalance); err != nil {
			return err
		}

		result = &PostingResult{Transaction: tran, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// logAttempt 每次入帳嘗試 (成功或任一種失敗) 都留下一筆結構化紀錄
func (e *PostingEngine) logAttempt(req *domain.PostingRequest, ref string, result *PostingResult, err error) {
	fields := []zap.Field{
		zap.String("account_id", req.AccountID),
		zap.String("caller_id", req.CallerID),
		zap.String("type", string(req.Type)),
		zap.String("amount", req.Amount.String()),
		zap.String("reference_number", ref),
	}
	if err != nil {
		e.logger.Warn("posting rejected", append(fields, zap.Error(err))...)
		return
	}
	e.logger.Info("posting completed", append(fields,
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("new_balance", result.NewBalance.String()),
	)...)
}

func (e *PostingEngine) publish(ctx context.Context, result *PostingResult) {
	if e.events == nil {
		return
	}
	event := PostingEvent{
		TransactionID:   result.Transaction.ID,
		AccountID:       result.Transaction.AccountID,
		Type:            string(result.Transaction.Type),
		Amount:          result.Transaction.Amount,
		Currency:        result.Transaction.Currency,
		ReferenceNumber: result.Transaction.ReferenceNumber,
		NewBalance:      result.NewBalance,
		OccurredAt:      *result.Transaction.ProcessedAt,
	}
	// 事件發布失敗只記 log，不影響已提交的入帳
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("publish posting event failed",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}
