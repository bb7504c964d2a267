package http

import (
	"errors"
	"net/http"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// statusOf 把 domain 錯誤對應到 HTTP 狀態碼與對外訊息
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrAccountNotActive):
		return http.StatusBadRequest, "Account is not active"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, domain.ErrInvalidTransactionType):
		return http.StatusBadRequest, "Invalid transaction type"
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest, "Currency mismatch"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest, "Insufficient balance"
	case errors.Is(err, domain.ErrAccountNotEmpty):
		return http.StatusBadRequest, "Cannot close or delete account with non-zero balance"
	case errors.Is(err, domain.ErrInvalidStatusChange):
		return http.StatusBadRequest, "Invalid status change"
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, "Invalid role"
	case errors.Is(err, domain.ErrDuplicatePosting):
		return http.StatusConflict, "Duplicate posting"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "A user with this email already exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Email or password is incorrect"
	case errors.Is(err, domain.ErrUserDisabled):
		return http.StatusForbidden, "This account has been disabled"
	case errors.Is(err, domain.ErrDuplicateAccountNumber):
		// 連續撞上帳號編號 unique constraint，換個時機重試即可
		return http.StatusServiceUnavailable, "Could not allocate an account number, please retry"
	case errors.Is(err, domain.ErrLockTimeout):
		return http.StatusServiceUnavailable, "Account is busy, please retry"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "Storage unavailable, please retry"
	default:
		return http.StatusInternalServerError, ""
	}
}
