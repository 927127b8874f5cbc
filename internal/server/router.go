package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "payout-core/docs/swagger"
	"payout-core/internal/handler"
	"payout-core/pkg/monitor"
	"payout-core/pkg/validator"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Wallet   *handler.WalletHandler
	Payment  *handler.PaymentHandler
	Payout   *handler.PayoutHandler
	Platform *handler.PlatformHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	monitor.Init()
	validator.Init()

	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	registerWalletRoutes(api, h)
	registerAdminRoutes(api, h)

	return r
}

func registerWalletRoutes(api *gin.RouterGroup, h Handlers) {
	wallets := api.Group("/wallets")
	{
		wallets.POST("", h.Wallet.CreateWallet)
		wallets.GET("/:id/summary", h.Wallet.GetSummary)
		wallets.GET("/:id/earnings", h.Wallet.GetEarnings)
		wallets.GET("/:id/stats", h.Wallet.GetStats)
		wallets.PUT("/:id/payout-method", h.Wallet.UpdatePayoutMethod)
		wallets.POST("/:id/payouts", h.Wallet.RequestPayout)
		wallets.GET("/:id/payouts", h.Wallet.ListPayouts)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/subscription", h.Payment.ProcessSubscriptionPayment)
		payments.POST("/intents", h.Payment.CreatePaymentIntent)
	}
}

func registerAdminRoutes(api *gin.RouterGroup, h Handlers) {
	// 可以在这里添加 AdminAuth 中间件
	admin := api.Group("/admin")
	{
		admin.GET("/payout-jobs", h.Payout.ListJobs)
		admin.POST("/payout-jobs", h.Payout.ScheduleJob)
		admin.GET("/payout-jobs/:id", h.Payout.GetJob)
		admin.POST("/payout-jobs/:id/process", h.Payout.ProcessJob)
		admin.POST("/payout-jobs/:id/retry", h.Payout.RetryJob)
		admin.GET("/eligible-creators", h.Payout.EligibleCreators)
		admin.POST("/payout-check", h.Payout.RunCheck)
		admin.POST("/payout-requests/:id/complete", h.Payout.CompleteRequest)
		admin.POST("/payout-requests/:id/fail", h.Payout.FailRequest)
	}

	plat := admin.Group("/platform")
	{
		plat.GET("/dashboard", h.Platform.Dashboard)
		plat.GET("/accounts", h.Platform.ListAccounts)
		plat.PUT("/accounts", h.Platform.UpsertAccount)
		plat.PUT("/accounts/:id", h.Platform.UpdateAccount)
		plat.POST("/stripe-connect", h.Platform.SetupStripeConnect)
		plat.GET("/stripe-connect", h.Platform.GetStripeConnect)
		plat.GET("/fee", h.Platform.GetFee)
		plat.PUT("/fee", h.Platform.SetFee)
		plat.GET("/processor-balance", h.Platform.ProcessorBalance)
		plat.POST("/batch-payouts", h.Platform.BatchPayouts)
	}
}
