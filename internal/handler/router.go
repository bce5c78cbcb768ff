package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		reservations := api.Group("/reservations")
		{
			reservations.POST("/reserve", h.Reserve)
			reservations.POST("/submit", h.Submit)
			reservations.POST("/review", RequireAdmin(), h.Review)
			reservations.POST("/cancel", h.Cancel)
			reservations.GET("/detail", h.GetReservation)
			reservations.GET("/list", h.ListReservations)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/transactions", h.ListTransactions)
			wallet.GET("/reconcile", h.Reconcile)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/deposit", h.DepositCallback)
			webhooks.POST("/withdrawal", h.WithdrawalCallback)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("/create", RequireAdmin(), h.CreateCampaign)
			campaigns.POST("/status", RequireAdmin(), h.UpdateCampaignStatus)
			campaigns.POST("/quote", h.Quote)
			campaigns.GET("/detail", h.GetCampaign)
			campaigns.GET("/list", h.ListCampaigns)
		}
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
