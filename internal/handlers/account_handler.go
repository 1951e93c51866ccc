package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"giftledger/internal/models"
	"giftledger/internal/pagination"
	"giftledger/internal/services"
)

// AccountHandler serves the dashboard account pages.
type AccountHandler struct {
	accountService services.AccountServicer
	userService    services.UserServicer
	auditService   services.AuditServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer, userService services.UserServicer, auditService services.AuditServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService, userService: userService, auditService: auditService}
}

// SearchAccountsQuery holds the dashboard search criteria.
type SearchAccountsQuery struct {
	pagination.PageRequest
	Name   string `form:"name" binding:"max=128"`
	Code   string `form:"code" binding:"omitempty,holder_code"`
	Status string `form:"status" binding:"omitempty,account_status"`
}

// CreateAccountRequest represents the request payload for creating an account
type CreateAccountRequest struct {
	Name          string  `json:"name" binding:"max=128"`
	Code          string  `json:"code" binding:"omitempty,holder_code"`
	Description   string  `json:"description" binding:"max=512"`
	Category      string  `json:"category" binding:"max=64"`
	StartDate     *string `json:"start_date" binding:"omitempty,date"`
	EndDate       *string `json:"end_date" binding:"omitempty,date"`
	CreditLimit   *string `json:"credit_limit" binding:"omitempty,money"`
	Unlimited     bool    `json:"unlimited"`
	InitialAmount string  `json:"initial_amount" binding:"required,money"`
}

// UpdateAccountRequest represents the request payload for updating an account.
// Omitted fields are left unchanged.
type UpdateAccountRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=128"`
	Description *string `json:"description" binding:"omitempty,max=512"`
	Category    *string `json:"category" binding:"omitempty,max=64"`
	StartDate   *string `json:"start_date" binding:"omitempty,date"`
	EndDate     *string `json:"end_date" binding:"omitempty,date"`
	CreditLimit *string `json:"credit_limit" binding:"omitempty,money"`
	Unlimited   *bool   `json:"unlimited"`
}

// AmountRequest carries a single amount.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required,money"`
}

// SearchAccounts lists accounts matching the search criteria.
// @Summary     Search accounts
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       name query string false "Name contains"
// @Param       code query string false "Exact code"
// @Param       status query string false "Open, Frozen or Closed"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[AccountResponse]
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /dashboard/accounts [get]
func (h *AccountHandler) SearchAccounts(c *gin.Context) {
	var q SearchAccountsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	q.Defaults()

	result, err := h.accountService.SearchAccounts(c.Request.Context(), models.HolderSearch{
		Name:   q.Name,
		Code:   q.Code,
		Status: models.Status(q.Status),
	}, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toAccountResponses))
}

// CreateAccount creates an account loaded from the bank account. The
// initial amount must lie within the configured bounds.
// @Summary     Create an account
// @Tags        dashboard
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAccountRequest true "Account details"
// @Success     201 {object} AccountResponse "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     409 {object} ErrorResponse "Duplicate code or name"
// @Router      /dashboard/accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in := services.CreateAccountInput{
		Name:                req.Name,
		Code:                req.Code,
		Description:         req.Description,
		Category:            req.Category,
		Unlimited:           req.Unlimited,
		User:                user,
		EnforceInitialRange: true,
	}
	if in.InitialAmount, err = parseAmount(req.InitialAmount); err != nil {
		respondWithError(c, err)
		return
	}
	if in.CreditLimit, err = parseOptionalAmount(req.CreditLimit); err != nil {
		respondWithError(c, err)
		return
	}
	if in.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		respondWithError(c, err)
		return
	}
	if in.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, "CREATE_ACCOUNT", services.ResourceAccount, account.ID, c.ClientIP(),
		map[string]interface{}{"code": deref(account.Code), "initial_amount": req.InitialAmount})

	c.JSON(http.StatusCreated, gin.H{"account": toAccountResponse(account, nil)})
}

// GetAccount returns an account with its balance derived from the ledger.
// @Summary     Get an account
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Success     200 {object} AccountResponse
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id} [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	account, err := h.accountService.GetAccount(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	balance, err := h.accountService.Balance(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": toAccountResponse(account, &balance)})
}

// UpdateAccount changes the descriptive fields, the window or the limit.
// @Summary     Update an account
// @Tags        dashboard
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Param       request body UpdateAccountRequest true "Fields to change"
// @Success     200 {object} AccountResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id} [put]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in := services.UpdateAccountInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Unlimited:   req.Unlimited,
	}
	if in.CreditLimit, err = parseOptionalAmount(req.CreditLimit); err != nil {
		respondWithError(c, err)
		return
	}
	if in.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		respondWithError(c, err)
		return
	}
	if in.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.UpdateAccount(c.Request.Context(), id, in)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, "UPDATE_ACCOUNT", services.ResourceAccount, id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"account": toAccountResponse(account, nil)})
}

// FreezeAccount suspends an open account.
// @Summary     Freeze an account
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Success     200 {object} AccountResponse
// @Failure     403 {object} ErrorResponse "Status change not allowed"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/freeze [post]
func (h *AccountHandler) FreezeAccount(c *gin.Context) {
	h.transition(c, "FREEZE_ACCOUNT", h.accountService.Freeze)
}

// ThawAccount reopens a frozen account.
// @Summary     Thaw an account
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Success     200 {object} AccountResponse
// @Failure     403 {object} ErrorResponse "Status change not allowed"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/thaw [post]
func (h *AccountHandler) ThawAccount(c *gin.Context) {
	h.transition(c, "THAW_ACCOUNT", h.accountService.Thaw)
}

// CloseAccount closes an account whose balance is zero.
// @Summary     Close an account
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Success     200 {object} AccountResponse
// @Failure     403 {object} ErrorResponse "Balance not zero"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/close [post]
func (h *AccountHandler) CloseAccount(c *gin.Context) {
	h.transition(c, "CLOSE_ACCOUNT", h.accountService.Close)
}

type accountTransition func(ctx context.Context, id uint) (*models.Account, error)

func (h *AccountHandler) transition(c *gin.Context, action string, apply accountTransition) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	account, err := apply(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, action, services.ResourceAccount, id, c.ClientIP(),
		map[string]interface{}{"status": string(account.Status)})
	c.JSON(http.StatusOK, gin.H{"account": toAccountResponse(account, nil)})
}

// TopUp loads an account from the bank account.
// @Summary     Top up an account
// @Tags        dashboard
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Param       request body AmountRequest true "Amount"
// @Success     201 {object} TransferResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/top-up [post]
func (h *AccountHandler) TopUp(c *gin.Context) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transfer, err := h.accountService.TopUp(c.Request.Context(), id, amount, user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, "TOP_UP_ACCOUNT", services.ResourceAccount, id, c.ClientIP(),
		map[string]interface{}{"amount": amount.StringFixed(2), "transfer_id": transfer.ID})
	c.JSON(http.StatusCreated, gin.H{"transfer": toTransferResponse(transfer)})
}

// AccountTransfers lists the transfers touching an account, newest first.
// @Summary     List account transfers
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[TransferResponse]
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/transfers [get]
func (h *AccountHandler) AccountTransfers(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	page.Defaults()

	result, err := h.accountService.AccountTransfers(c.Request.Context(), id, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toTransferResponses))
}

// AccountHistory lists the audit entries of an account, newest first.
// @Summary     Account audit history
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Account ID"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[AuditResponse]
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/accounts/{id}/history [get]
func (h *AccountHandler) AccountHistory(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.accountService.GetAccount(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}
	result, err := h.auditService.History(ctx, services.ResourceAccount, id, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toAuditResponses))
}
