package handler

import (
	"github.com/gin-gonic/gin"

	"campaignledger/internal/service"
	"campaignledger/pkg/response"
)

type CampaignStatusRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	Status     string `json:"status" binding:"required,oneof=ACTIVE PAUSED COMPLETED active paused completed"`
}

type QuoteRequest struct {
	PayoutPerCreatorMinor int64 `json:"payout_per_creator_minor" binding:"required,gt=0"`
	CreatorCount          int   `json:"creator_count" binding:"required,gt=0"`
}

// CreateCampaign opens a campaign, optionally charging its budget to the brand.
// POST /api/v1/campaigns/create (admin)
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	resp, err := h.campaignService.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// UpdateCampaignStatus pauses, resumes or completes a campaign.
// POST /api/v1/campaigns/status (admin)
func (h *Handler) UpdateCampaignStatus(c *gin.Context) {
	var req CampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	campaign, err := h.campaignService.UpdateCampaignStatus(c.Request.Context(), req.CampaignID, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, campaign)
}

// Quote prices a campaign without creating it.
// POST /api/v1/campaigns/quote
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	quote, err := h.campaignService.Quote(req.PayoutPerCreatorMinor, req.CreatorCount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, quote)
}

// GetCampaign returns a campaign with its remaining slots.
// GET /api/v1/campaigns/detail?id=xxx
func (h *Handler) GetCampaign(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.ParamError(c, "id is required")
		return
	}

	detail, err := h.campaignService.GetCampaign(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, detail)
}

// ListCampaigns pages campaigns, optionally by status.
// GET /api/v1/campaigns/list?status=active&page=1&page_size=20
func (h *Handler) ListCampaigns(c *gin.Context) {
	page, pageSize := paging(c)

	list, total, err := h.campaignService.ListCampaigns(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}
