package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Server HTTP adapter (driving adapter)
// 只做請求解析、身份驗證與錯誤轉換；商業規則全部在 usecase 層
type Server struct {
	engine   *usecase.PostingEngine
	accounts *usecase.AccountUseCase
	auth     *usecase.AuthUseCase
	users    *usecase.UserUseCase
	logger   *zap.Logger
	router   *gin.Engine
}

func NewServer(engine *usecase.PostingEngine, accounts *usecase.AccountUseCase, auth *usecase.AuthUseCase, users *usecase.UserUseCase, logger *zap.Logger) *Server {
	s := &Server{
		engine:   engine,
		accounts: accounts,
		auth:     auth,
		users:    users,
		logger:   logger,
	}
	s.router = s.buildRouter()
	return s
}

// Router 回傳底層 handler，供 http.Server 或測試使用
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.POST("/auth/logout", s.logout)
	api.POST("/auth/refresh", s.refreshToken)
	api.GET("/auth/verify", s.verifyToken)

	authed := api.Group("", authRequired(s.auth))
	authed.GET("/users/me", s.getCurrentUser)
	authed.PUT("/users/me", s.updateCurrentUser)

	admin := authed.Group("/users", adminRequired())
	admin.GET("", s.listUsers)
	admin.GET("/:id", s.getUser)
	admin.PUT("/:id", s.updateUser)
	admin.DELETE("/:id", s.deleteUser)
	authed.GET("/accounts", s.listAccounts)
	authed.POST("/accounts", s.createAccount)
	authed.GET("/accounts/:id", s.getAccount)
	authed.PUT("/accounts/:id", s.updateAccount)
	authed.DELETE("/accounts/:id", s.deleteAccount)
	authed.GET("/accounts/:id/balance", s.getBalance)
	authed.GET("/accounts/:id/transactions", s.listAccountTransactions)
	authed.POST("/transactions", s.createTransaction)
	authed.GET("/transactions", s.listUserTransactions)
	authed.GET("/transactions/:id", s.getTransaction)

	return router
}
