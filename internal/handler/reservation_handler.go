package handler

import (
	"github.com/gin-gonic/gin"

	"campaignledger/internal/service"
	"campaignledger/pkg/response"
)

// Reserve takes a campaign slot for a creator.
// POST /api/v1/reservations/reserve
func (h *Handler) Reserve(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reservation, err := h.reservationService.Reserve(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"reservation":                reservation,
		"slot_release_bound_seconds": int64(h.reservationService.SlotReleaseBound().Seconds()),
	})
}

// Submit attaches the creator's content to an active reservation.
// POST /api/v1/reservations/submit
func (h *Handler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reservation, err := h.reservationService.Submit(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, reservation)
}

// Review approves or rejects a submitted reservation.
// POST /api/v1/reservations/review (admin)
func (h *Handler) Review(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reservation, err := h.reservationService.Review(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, reservation)
}

// Cancel releases a creator's active reservation.
// POST /api/v1/reservations/cancel
func (h *Handler) Cancel(c *gin.Context) {
	var req service.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	reservation, err := h.reservationService.Cancel(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, reservation)
}

// GetReservation returns one reservation.
// GET /api/v1/reservations/detail?id=xxx
func (h *Handler) GetReservation(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.ParamError(c, "id is required")
		return
	}

	reservation, err := h.reservationService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, reservation)
}

// ListReservations pages a creator's reservations.
// GET /api/v1/reservations/list?creator_id=xxx&status=active&page=1&page_size=20
func (h *Handler) ListReservations(c *gin.Context) {
	creatorID, ok := queryInt64(c, "creator_id")
	if !ok {
		return
	}
	page, pageSize := paging(c)

	list, total, err := h.reservationService.ListByCreator(c.Request.Context(), creatorID, c.Query("status"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}
