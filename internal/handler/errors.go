package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campaignledger/internal/service"
	"campaignledger/pkg/response"
)

var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrCampaignNotFound, response.CodeCampaignNotFound},
	{service.ErrCampaignClosed, response.CodeCampaignClosed},
	{service.ErrQuotaExceeded, response.CodeQuotaExceeded},
	{service.ErrAlreadyReserved, response.CodeAlreadyReserved},
	{service.ErrReservationNotFound, response.CodeReservationNotFound},
	{service.ErrReservationExpired, response.CodeReservationExpired},
	{service.ErrReservationNotActive, response.CodeReservationNotActive},
	{service.ErrCampaignStatus, response.CodeCampaignStatusConflict},
	{service.ErrUnauthorized, response.CodeForbidden},
	{service.ErrInsufficientBalance, response.CodeInsufficientBalance},
	{service.ErrBelowMinimum, response.CodeBelowMinimum},
	{service.ErrAboveMaximum, response.CodeAboveMaximum},
	{service.ErrTransactionNotFound, response.CodeTransactionNotFound},
	{service.ErrTransactionSettled, response.CodeTransactionSettled},
	{service.ErrTransientConflict, response.CodeTransientConflict},
	{service.ErrInvalidArgument, response.CodeParamError},
}

// writeError answers with the business code of err. Anything unrecognised is
// logged and reported as a server error without its details.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			response.Fail(c, ec.code, err.Error())
			return
		}
	}
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	response.ServerError(c, "internal error")
}
