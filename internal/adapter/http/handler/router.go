package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	Gateway        ports.PaymentGateway
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	users := r.Group("/users")
	{
		users.POST("/register", authHandler.Register)
		users.POST("/login", authHandler.Login)
	}

	// Provider redirect and webhook endpoints. These arrive from the outside
	// world without a JWT; the webhook carries its own HMAC signature.
	paymentHandler := NewPaymentHandler(deps.LedgerSvc, deps.Gateway, deps.Logger)
	payment := r.Group("/payment")
	{
		payment.GET("/success", paymentHandler.Success)
		payment.GET("/cancel", paymentHandler.Cancel)
	}
	r.POST("/webhook", paymentHandler.Webhook)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)

	wallets := r.Group("/wallets")
	{
		wallets.POST("/fund", jwtAuth, walletHandler.Fund)
		wallets.GET("/balance", jwtAuth, walletHandler.GetBalance)
		wallets.GET("/transactions/:user_id", walletHandler.GetTransactions)
	}

	transactions := r.Group("/transactions", jwtAuth)
	{
		transactions.POST("/p2p", walletHandler.TransferP2P)
	}

	return r
}
