package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// ---- auth ----

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, token, err := s.auth.Register(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    userView(user),
		"token":   token,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    userView(user),
		"token":   token,
	})
}

// logout JWT 無狀態，登出由客戶端丟棄 Token
func (s *Server) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// refreshToken 以 Authorization header 內的舊 Token 換發新 Token
func (s *Server) refreshToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	token, err := s.auth.Refresh(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed",
		"token":   token,
	})
}

// verifyToken 檢查 Token 是否有效；無效回 {valid: false} 而非錯誤
func (s *Server) verifyToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
		return
	}
	claims, err := s.auth.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":    claims.UserID,
			"email": claims.Email,
			"role":  claims.Role,
		},
	})
}

// ---- users ----

func (s *Server) getCurrentUser(c *gin.Context) {
	user, err := s.users.Profile(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userDetailView(user))
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (s *Server) updateCurrentUser(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := s.users.UpdateProfile(c.Request.Context(), callerID(c), req.FirstName, req.LastName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    userView(user),
	})
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	views := make([]gin.H, 0, len(users))
	for _, u := range users {
		views = append(views, userDetailView(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": views, "total": len(views)})
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userDetailView(user))
}

type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
}

func (s *Server) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := s.users.Update(c.Request.Context(), c.Param("id"), usecase.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    userDetailView(user),
	})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// ---- accounts ----

type createAccountRequest struct {
	AccountType string `json:"accountType"`
	Currency    string `json:"currency"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	account, err := s.accounts.Open(c.Request.Context(), callerID(c), req.AccountType, req.Currency)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"account": accountView(account),
	})
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.accounts.List(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	views := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views, "total": len(views)})
}

func (s *Server) getAccount(c *gin.Context) {
	account, err := s.accounts.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountView(account))
}

type updateAccountRequest struct {
	Status domain.AccountStatus `json:"status" binding:"required"`
}

func (s *Server) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	account, err := s.accounts.UpdateStatus(c.Request.Context(), callerID(c), c.Param("id"), req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Account updated successfully",
		"account": accountView(account),
	})
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.accounts.Delete(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (s *Server) getBalance(c *gin.Context) {
	snapshot, err := s.accounts.Balance(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":  snapshot.Balance,
		"currency": snapshot.Currency,
		"asOf":     snapshot.AsOf,
	})
}

// ---- transactions ----

type createTransactionRequest struct {
	AccountID       string          `json:"accountId" binding:"required"`
	TransactionType string          `json:"transactionType" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"referenceNumber"`
}

func (s *Server) createTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := s.engine.Post(c.Request.Context(), &domain.PostingRequest{
		AccountID:       req.AccountID,
		CallerID:        callerID(c),
		Type:            domain.TransactionType(req.TransactionType),
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Transaction completed successfully",
		"transaction": transactionView(result.Transaction),
		"newBalance":  result.NewBalance,
	})
}

func (s *Server) listUserTransactions(c *gin.Context) {
	transactions, err := s.accounts.UserTransactions(c.Request.Context(), callerID(c), queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionListView(transactions))
}

func (s *Server) listAccountTransactions(c *gin.Context) {
	transactions, err := s.accounts.AccountTransactions(c.Request.Context(), callerID(c), c.Param("id"), queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionListView(transactions))
}

func (s *Server) getTransaction(c *gin.Context) {
	tran, err := s.accounts.Transaction(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionView(tran))
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}

// ---- views ----

func userView(u *domain.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"role":      u.Role,
	}
}

func userDetailView(u *domain.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"email":     u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"role":      u.Role,
		"isActive":  u.IsActive,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

func accountView(a *domain.Account) gin.H {
	return gin.H{
		"id":            a.ID,
		"accountNumber": a.AccountNumber,
		"accountType":   a.AccountType,
		"balance":       a.Balance,
		"currency":      a.Currency,
		"status":        a.Status,
		"createdAt":     a.CreatedAt,
		"updatedAt":     a.UpdatedAt,
	}
}

func transactionView(t *domain.Transaction) gin.H {
	return gin.H{
		"id":              t.ID,
		"accountId":       t.AccountID,
		"transactionType": t.Type,
		"amount":          t.Amount,
		"currency":        t.Currency,
		"description":     t.Description,
		"referenceNumber": t.ReferenceNumber,
		"status":          t.Status,
		"createdAt":       t.CreatedAt,
		"processedAt":     t.ProcessedAt,
	}
}

func transactionListView(transactions []*domain.Transaction) gin.H {
	views := make([]gin.H, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, transactionView(t))
	}
	return gin.H{"transactions": views, "total": len(views)}
}

// writeError 錯誤分類對應到 HTTP 狀態碼
// 只有 503 的兩類適合呼叫端重試 (鎖逾時需換時機，儲存層失效需換 reference)
func (s *Server) writeError(c *gin.Context, err error) {
	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("unhandled error", zap.Error(err))
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
