package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campaignledger/internal/service"
	"campaignledger/pkg/response"
)

// Handler exposes the services over HTTP.
type Handler struct {
	campaignService    *service.CampaignService
	reservationService *service.ReservationService
	walletService      *service.WalletService
	logger             *zap.Logger
}

func NewHandler(campaigns *service.CampaignService, reservations *service.ReservationService, wallet *service.WalletService, logger *zap.Logger) *Handler {
	return &Handler{
		campaignService:    campaigns,
		reservationService: reservations,
		walletService:      wallet,
		logger:             logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, key+" is required")
		return 0, false
	}
	return v, true
}

func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
