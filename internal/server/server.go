// Package server assembles the services and the gin router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "giftledger/internal/docs" // Import swagger docs
	"giftledger/internal/events"
	"giftledger/internal/handlers"
	"giftledger/internal/ledger"
	"giftledger/internal/locks"
	"giftledger/internal/middleware"
	"giftledger/internal/models"
	"giftledger/internal/services"
)

// Services groups every service the router depends on.
type Services struct {
	Users     services.UserServicer
	Accounts  services.AccountServicer
	Transfers services.TransferServicer
	Budgets   services.BudgetServicer
	Expiry    services.ExpiryServicer
	Reconcile services.ReconcileServicer
	Audit     services.AuditServicer
}

// NewServices builds both books over one lock table and wires the services.
func NewServices(db *gorm.DB, settings services.AccountSettings, publisher events.Publisher, opts ...ledger.Option) Services {
	opts = append([]ledger.Option{ledger.WithLocks(locks.NewKeyed()), ledger.WithPublisher(publisher)}, opts...)
	accounts := ledger.NewBook[models.Account](db, opts...)
	budgets := ledger.NewBook[models.Budget](db, opts...)

	return Services{
		Users:     services.NewUserService(db),
		Accounts:  services.NewAccountService(db, accounts, settings),
		Transfers: services.NewTransferService(db, accounts),
		Budgets:   services.NewBudgetService(db, budgets),
		Expiry:    services.NewExpiryService(db, accounts, settings),
		Reconcile: services.NewReconcileService(db),
		Audit:     services.NewAuditService(db),
	}
}

// Options configures the router.
type Options struct {
	JWTSecret      []byte
	InternalAPIKey string
}

// NewRouter registers every route.
func NewRouter(svc Services, opts Options) *gin.Engine {
	apiHandler := handlers.NewAPIHandler(svc.Accounts, svc.Transfers, svc.Users, svc.Audit)
	accountHandler := handlers.NewAccountHandler(svc.Accounts, svc.Users, svc.Audit)
	transferHandler := handlers.NewTransferHandler(svc.Transfers, svc.Users, svc.Audit)
	budgetHandler := handlers.NewBudgetHandler(svc.Budgets, svc.Users, svc.Audit)
	userHandler := handlers.NewUserHandler(svc.Users, svc.Audit)
	opsHandler := handlers.NewOpsHandler(svc.Expiry, svc.Reconcile)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	internal := router.Group("/api/internal", middleware.InternalAuthMiddleware(opts.InternalAPIKey))
	internal.POST("/expire", opsHandler.CloseExpired)
	internal.GET("/reconcile", opsHandler.Reconcile)

	v1 := router.Group(handlers.APIBasePath, middleware.AuthMiddleware(opts.JWTSecret))

	// Public API
	v1.POST("/accounts", apiHandler.CreateAccount)
	v1.GET("/accounts/:code", apiHandler.GetAccount)
	v1.POST("/accounts/:code/redemptions", apiHandler.Redeem)
	v1.POST("/accounts/:code/refunds", apiHandler.Refund)
	v1.GET("/transfers/:reference", apiHandler.GetTransfer)
	v1.POST("/transfers/:reference/reverse", apiHandler.ReverseTransfer)
	v1.DELETE("/transfers/:reference", apiHandler.DeleteTransfer)

	// Dashboard
	dashboard := v1.Group("/dashboard")
	dashboard.GET("/accounts", accountHandler.SearchAccounts)
	dashboard.POST("/accounts", accountHandler.CreateAccount)
	dashboard.GET("/accounts/:id", accountHandler.GetAccount)
	dashboard.PUT("/accounts/:id", accountHandler.UpdateAccount)
	dashboard.POST("/accounts/:id/freeze", accountHandler.FreezeAccount)
	dashboard.POST("/accounts/:id/thaw", accountHandler.ThawAccount)
	dashboard.POST("/accounts/:id/close", accountHandler.CloseAccount)
	dashboard.POST("/accounts/:id/top-up", accountHandler.TopUp)
	dashboard.GET("/accounts/:id/transfers", accountHandler.AccountTransfers)
	dashboard.GET("/accounts/:id/history", accountHandler.AccountHistory)
	dashboard.GET("/transfers", transferHandler.ListTransfers)
	dashboard.POST("/transfers", transferHandler.CreateTransfer)
	dashboard.GET("/transfers/:id", transferHandler.GetTransfer)
	dashboard.POST("/transfers/:id/reverse", transferHandler.ReverseTransfer)

	// Budgets
	budgets := v1.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.ListBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.POST("/:id/close", budgetHandler.CloseBudget)
	budgets.GET("/:id/transfers", budgetHandler.BudgetTransfers)
	v1.POST("/budget-transfers", budgetHandler.CreateTransfer)
	v1.POST("/budget-transfers/:id/reverse", budgetHandler.ReverseTransfer)

	// Users
	v1.POST("/users", userHandler.CreateUser)
	v1.DELETE("/users/:id", userHandler.DeleteUser)

	return router
}
