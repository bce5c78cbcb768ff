package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Business errors travel in the envelope with HTTP 200. Only the admin guard
// answers with a real 403 status.
const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeForbidden   = 403
	CodeServerError = 500
)

// Reservation engine codes.
const (
	CodeCampaignNotFound       = 2001
	CodeCampaignClosed         = 2002
	CodeQuotaExceeded          = 2003
	CodeAlreadyReserved        = 2004
	CodeReservationNotFound    = 2005
	CodeReservationExpired     = 2006
	CodeReservationNotActive   = 2007
	CodeCampaignStatusConflict = 2008
)

// Wallet ledger codes.
const (
	CodeInsufficientBalance = 3001
	CodeBelowMinimum        = 3002
	CodeAboveMaximum        = 3003
	CodeTransactionNotFound = 3004
	CodeTransactionSettled  = 3005
	CodeTransientConflict   = 3006
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page is the data of every list endpoint.
type Page struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Paged(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, Page{List: list, Total: total, Page: page, PageSize: pageSize})
}

func Fail(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Fail(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Fail(c, CodeServerError, message)
}

func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: message,
	})
}
