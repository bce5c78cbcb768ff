package handler

import (
	"github.com/gin-gonic/gin"

	"campaignledger/pkg/response"
)

type AmountRequest struct {
	UserID      int64 `json:"user_id" binding:"required,gt=0"`
	AmountMinor int64 `json:"amount_minor" binding:"required,gt=0"`
}

// GatewayCallback is what the payment gateway posts once a deposit or a
// withdrawal is settled on its side.
type GatewayCallback struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Outcome       string `json:"outcome" binding:"required,oneof=succeeded failed"`
}

// Deposit opens a pending deposit for the gateway to confirm.
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	trans, err := h.walletService.Deposit(c.Request.Context(), req.UserID, req.AmountMinor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, trans)
}

// Withdraw reserves funds for a pending payout.
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	trans, err := h.walletService.Withdraw(c.Request.Context(), req.UserID, req.AmountMinor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, trans)
}

// GetBalance returns the wallet of a user.
// GET /api/v1/wallet/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	account, err := h.walletService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, account)
}

// ListTransactions pages a user's ledger entries.
// GET /api/v1/wallet/transactions?user_id=xxx&type=deposit&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := paging(c)

	list, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, c.Query("type"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

// Reconcile checks the stored wallet against its ledger.
// GET /api/v1/wallet/reconcile?user_id=xxx
func (h *Handler) Reconcile(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	report, err := h.walletService.Reconcile(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, report)
}

// DepositCallback settles a deposit with the gateway's outcome.
// POST /api/v1/webhooks/deposit
func (h *Handler) DepositCallback(c *gin.Context) {
	var req GatewayCallback
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	trans, err := h.walletService.ConfirmDeposit(c.Request.Context(), req.TransactionID, req.Outcome)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, trans)
}

// WithdrawalCallback settles a withdrawal with the processor's outcome.
// POST /api/v1/webhooks/withdrawal
func (h *Handler) WithdrawalCallback(c *gin.Context) {
	var req GatewayCallback
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	trans, err := h.walletService.ConfirmWithdrawal(c.Request.Context(), req.TransactionID, req.Outcome)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, trans)
}
