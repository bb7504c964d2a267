package domain

import "errors"

var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrForbidden 呼叫者不是帳戶擁有者
	ErrForbidden = errors.New("forbidden")

	// ErrAccountNotActive 帳戶非 active 狀態，不可入帳
	ErrAccountNotActive = errors.New("account is not active")

	// ErrInvalidAmount 金額必須為正數，且最多兩位小數
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTransactionType 交易類型必須為 deposit 或 withdrawal
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrCurrencyMismatch 交易幣別與帳戶幣別不符
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateReference 儲存層偵測到 reference number 重複 (unique constraint)
	ErrDuplicateReference = errors.New("duplicate reference number")

	// ErrDuplicatePosting 呼叫端以同一 reference number 重複送出，不可重試
	ErrDuplicatePosting = errors.New("duplicate posting")

	// ErrLockTimeout 等待帳戶鎖逾時，屬可重試錯誤
	ErrLockTimeout = errors.New("lock wait timeout")

	// ErrStorageUnavailable 儲存層暫時失效，整個 unit of work 已回滾，可換新 reference 重試
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateAccountNumber 帳號編號重複
	ErrDuplicateAccountNumber = errors.New("duplicate account number")

	// ErrAccountNotEmpty 帳戶餘額不為零，不可關閉或刪除
	ErrAccountNotEmpty = errors.New("account balance is not zero")

	// ErrInvalidStatusChange 不允許的帳戶狀態轉換
	ErrInvalidStatusChange = errors.New("invalid status change")

	// ErrTransactionNotFound 找不到交易
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUserNotFound 找不到使用者
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken Email 已被註冊
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials 帳號或密碼錯誤
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserDisabled 使用者已被停用
	ErrUserDisabled = errors.New("user disabled")

	// ErrInvalidRole 未知的使用者角色
	ErrInvalidRole = errors.New("invalid role")
)
