package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/models"
	"giftledger/internal/services"
	"giftledger/internal/validation"
)

// APIBasePath prefixes every public resource URL.
const APIBasePath = "/api/v1"

var (
	createAccountPipeline = validation.Pipeline{
		Fields: []validation.Field{
			{Name: "start_date", Required: true, Clean: validation.Timestamp},
			{Name: "end_date", Required: true, Clean: validation.Timestamp},
			{Name: "amount", Required: true, Clean: validation.Amount},
			{Name: "name", Clean: validation.Text},
			{Name: "description", Clean: validation.Text},
		},
		Checks: []validation.Check{validation.DateRange("start_date", "end_date")},
	}

	movementPipeline = validation.Pipeline{
		Fields: []validation.Field{
			{Name: "amount", Required: true, Clean: validation.Amount},
			{Name: "order_number", Required: true, Clean: validation.Text},
		},
	}

	reversePipeline = validation.Pipeline{
		Fields: []validation.Field{
			{Name: "order_number", Required: true, Clean: validation.Text},
		},
	}
)

// APIHandler serves the public JSON API used by point-of-sale systems.
// Accounts are addressed by code and transfers by reference.
type APIHandler struct {
	accountService  services.AccountServicer
	transferService services.TransferServicer
	userService     services.UserServicer
	auditService    services.AuditServicer
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	accountService services.AccountServicer,
	transferService services.TransferServicer,
	userService services.UserServicer,
	auditService services.AuditServicer,
) *APIHandler {
	return &APIHandler{
		accountService:  accountService,
		transferService: transferService,
		userService:     userService,
		auditService:    auditService,
	}
}

// clean reads the request body and runs it through p.
func clean(c *gin.Context, p validation.Pipeline) (validation.Values, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedRequest, err)
	}
	return p.Run(c.GetHeader("Content-Type"), body)
}

func accountURL(code string) string {
	return fmt.Sprintf("%s/accounts/%s", APIBasePath, code)
}

func transferURL(reference string) string {
	return fmt.Sprintf("%s/transfers/%s", APIBasePath, reference)
}

// CreateAccount creates an account loaded from the bank account.
// @Summary     Create an account
// @Description Create an account with an activity window and load the amount from the bank account
// @Tags        api
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body object true "start_date, end_date, amount and optional name, description"
// @Success     201 {object} PublicAccountResponse "Account created, Location points to it"
// @Failure     400 {object} ErrorResponse "Malformed request"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Router      /accounts [post]
func (h *APIHandler) CreateAccount(c *gin.Context) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}

	values, err := clean(c, createAccountPipeline)
	if err != nil {
		respondWithError(c, err)
		return
	}
	amount := values.Decimal("amount")
	if !amount.IsPositive() {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidAmount, "Amount must be positive"))
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), services.CreateAccountInput{
		Name:          values.String("name"),
		Description:   values.String("description"),
		StartDate:     values.Time("start_date"),
		EndDate:       values.Time("end_date"),
		InitialAmount: amount,
		User:          user,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, "CREATE_ACCOUNT", services.ResourceAccount, account.ID, c.ClientIP(),
		map[string]interface{}{"code": deref(account.Code), "amount": amount.StringFixed(2)})

	c.Header("Location", accountURL(deref(account.Code)))
	c.JSON(http.StatusCreated, h.publicAccount(deref(account.Code), account.StartDate, account.EndDate,
		amount.StringFixed(2), string(account.Status)))
}

// GetAccount returns an account by code.
// @Summary     Get an account
// @Tags        api
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Account code"
// @Success     200 {object} PublicAccountResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /accounts/{code} [get]
func (h *APIHandler) GetAccount(c *gin.Context) {
	ctx := c.Request.Context()
	account, err := h.accountService.GetAccountByCode(ctx, c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	balance, err := h.accountService.Balance(ctx, account.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.publicAccount(deref(account.Code), account.StartDate, account.EndDate,
		balance.StringFixed(2), string(account.Status)))
}

// Redeem debits an account in favour of the redemptions account.
// @Summary     Redeem from an account
// @Tags        api
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Account code"
// @Param       request body object true "amount and order_number"
// @Success     201 {object} PublicTransferResponse "Location points to the transfer"
// @Failure     400 {object} ErrorResponse "Malformed request"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /accounts/{code}/redemptions [post]
func (h *APIHandler) Redeem(c *gin.Context) {
	h.movement(c, "REDEEM", h.accountService.Redeem)
}

// Refund credits an account from the redemptions account.
// @Summary     Refund to an account
// @Tags        api
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Account code"
// @Param       request body object true "amount and order_number"
// @Success     201 {object} PublicTransferResponse "Location points to the transfer"
// @Failure     400 {object} ErrorResponse "Malformed request"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /accounts/{code}/refunds [post]
func (h *APIHandler) Refund(c *gin.Context) {
	h.movement(c, "REFUND", h.accountService.Refund)
}

type movementFn func(ctx context.Context, code string, amount decimal.Decimal, orderNumber string, user *models.User) (*models.Transfer, error)

func (h *APIHandler) movement(c *gin.Context, action string, move movementFn) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}
	values, err := clean(c, movementPipeline)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transfer, err := move(c.Request.Context(), c.Param("code"), values.Decimal("amount"), values.String("order_number"), user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, action, services.ResourceTransfer, transfer.ID, c.ClientIP(),
		map[string]interface{}{"code": c.Param("code"), "order_number": values.String("order_number")})

	h.respondWithTransfer(c, transfer.ID)
}

// GetTransfer returns a transfer by reference.
// @Summary     Get a transfer
// @Tags        api
// @Produce     json
// @Security    BearerAuth
// @Param       reference path string true "Transfer reference"
// @Success     200 {object} PublicTransferResponse
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /transfers/{reference} [get]
func (h *APIHandler) GetTransfer(c *gin.Context) {
	id, err := parseReference(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	detail, err := h.transferService.GetTransfer(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicTransfer(detail))
}

// ReverseTransfer books the compensating transfer.
// @Summary     Reverse a transfer
// @Tags        api
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       reference path string true "Transfer reference"
// @Param       request body object true "order_number"
// @Success     201 {object} PublicTransferResponse "Location points to the reversal"
// @Failure     400 {object} ErrorResponse "Malformed request"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /transfers/{reference}/reverse [post]
func (h *APIHandler) ReverseTransfer(c *gin.Context) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parseReference(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	values, err := clean(c, reversePipeline)
	if err != nil {
		respondWithError(c, err)
		return
	}

	reversal, err := h.transferService.Reverse(c.Request.Context(), id, values.String("order_number"), user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, "REVERSE_TRANSFER", services.ResourceTransfer, reversal.ID, c.ClientIP(),
		map[string]interface{}{"original": id})

	h.respondWithTransfer(c, reversal.ID)
}

// DeleteTransfer always refuses: the ledger is append-only.
// @Summary     Delete a transfer
// @Tags        api
// @Produce     json
// @Security    BearerAuth
// @Param       reference path string true "Transfer reference"
// @Failure     403 {object} ErrorResponse "Deletion forbidden"
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /transfers/{reference} [delete]
func (h *APIHandler) DeleteTransfer(c *gin.Context) {
	id, err := parseReference(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.transferService.DeleteTransfer(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) respondWithTransfer(c *gin.Context, id uint) {
	detail, err := h.transferService.GetTransfer(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	resp := toPublicTransfer(detail)
	c.Header("Location", transferURL(resp.Reference))
	c.JSON(http.StatusCreated, resp)
}

func (h *APIHandler) publicAccount(code string, start, end *time.Time, balance, status string) PublicAccountResponse {
	url := accountURL(code)
	return PublicAccountResponse{
		Code:           code,
		StartDate:      formatDatePtr(start),
		EndDate:        formatDatePtr(end),
		Balance:        balance,
		Status:         status,
		RedemptionsURL: url + "/redemptions",
		RefundsURL:     url + "/refunds",
	}
}
