package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giftledger/internal/models"
	"giftledger/internal/pagination"
	"giftledger/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	userService   services.UserServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, userService services.UserServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, userService: userService, auditService: auditService}
}

// CreateBudgetRequest represents the request body for creating a budget.
type CreateBudgetRequest struct {
	Name             string  `json:"name" binding:"max=128"`
	Code             string  `json:"code" binding:"omitempty,holder_code"`
	StartDate        *string `json:"start_date" binding:"omitempty,date"`
	EndDate          *string `json:"end_date" binding:"omitempty,date"`
	CreditLimit      *string `json:"credit_limit" binding:"omitempty,money"`
	Unlimited        bool    `json:"unlimited"`
	PrimaryUserID    *uint   `json:"primary_user_id" binding:"omitempty,min=1"`
	SecondaryUserIDs []uint  `json:"secondary_user_ids" binding:"omitempty,dive,min=1"`
}

// UpdateBudgetRequest represents the request body for updating a budget.
// A present secondary_user_ids replaces the member list.
type UpdateBudgetRequest struct {
	Name             *string `json:"name" binding:"omitempty,max=128"`
	StartDate        *string `json:"start_date" binding:"omitempty,date"`
	EndDate          *string `json:"end_date" binding:"omitempty,date"`
	CreditLimit      *string `json:"credit_limit" binding:"omitempty,money"`
	Unlimited        *bool   `json:"unlimited"`
	PrimaryUserID    *uint   `json:"primary_user_id" binding:"omitempty,min=1"`
	SecondaryUserIDs []uint  `json:"secondary_user_ids" binding:"omitempty,dive,min=1"`
}

// ListBudgetsQuery holds the budget list filters. mine keeps the budgets the
// caller can use.
type ListBudgetsQuery struct {
	pagination.PageRequest
	Mine   bool   `form:"mine"`
	Active bool   `form:"active"`
	Status string `form:"status" binding:"omitempty,budget_status"`
}

// CreateBudget handles POST /budgets.
// @Summary     Create a budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} BudgetResponse "Created budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     409 {object} ErrorResponse "Duplicate code or name"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in := services.CreateBudgetInput{
		Name:             req.Name,
		Code:             req.Code,
		Unlimited:        req.Unlimited,
		PrimaryUserID:    req.PrimaryUserID,
		SecondaryUserIDs: req.SecondaryUserIDs,
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

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", services.ResourceBudget, budget.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "code": deref(budget.Code)})

	c.JSON(http.StatusCreated, gin.H{"budget": toBudgetResponse(budget, nil)})
}

// ListBudgets handles GET /budgets.
// @Summary     List budgets
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       mine query bool false "Only budgets the caller can use"
// @Param       active query bool false "Only open budgets inside their window"
// @Param       status query string false "Open or Closed"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[BudgetResponse] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /budgets [get]
func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListBudgetsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	q.Defaults()

	filter := services.BudgetFilter{ActiveOnly: q.Active, Status: models.Status(q.Status)}
	if q.Mine {
		filter.UserID = &userID
	}

	result, err := h.budgetService.ListBudgets(c.Request.Context(), filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toBudgetResponses))
}

// GetBudget handles GET /budgets/:id.
// @Summary     Get a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Budget ID"
// @Success     200 {object} BudgetResponse "Budget with derived balance"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	budget, err := h.budgetService.GetBudget(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	balance, err := h.budgetService.Balance(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": toBudgetResponse(budget, &balance)})
}

// UpdateBudget handles PUT /budgets/:id.
// @Summary     Update a budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Fields to change"
// @Success     200 {object} BudgetResponse "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
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

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	in := services.UpdateBudgetInput{
		Name:             req.Name,
		Unlimited:        req.Unlimited,
		PrimaryUserID:    req.PrimaryUserID,
		SecondaryUserIDs: req.SecondaryUserIDs,
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

	budget, err := h.budgetService.UpdateBudget(c.Request.Context(), id, in)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, "UPDATE_BUDGET", services.ResourceBudget, id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"budget": toBudgetResponse(budget, nil)})
}

// CloseBudget handles POST /budgets/:id/close.
// @Summary     Close a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Budget ID"
// @Success     200 {object} BudgetResponse "Closed budget"
// @Failure     403 {object} ErrorResponse "Balance not zero"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/close [post]
func (h *BudgetHandler) CloseBudget(c *gin.Context) {
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
	budget, err := h.budgetService.Close(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, "CLOSE_BUDGET", services.ResourceBudget, id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"budget": toBudgetResponse(budget, nil)})
}

// BudgetTransfers handles GET /budgets/:id/transfers.
// @Summary     List budget transfers
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Budget ID"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[TransferResponse] "Paginated transfers"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/transfers [get]
func (h *BudgetHandler) BudgetTransfers(c *gin.Context) {
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

	result, err := h.budgetService.BudgetTransfers(c.Request.Context(), id, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toTransferResponses))
}

// CreateTransfer handles POST /budget-transfers. The caller must be able to
// use the source budget unless it is shared.
// @Summary     Transfer between budgets
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransferRequest true "Transfer details"
// @Success     201 {object} TransferResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budget-transfers [post]
func (h *BudgetHandler) CreateTransfer(c *gin.Context) {
	user, err := currentUser(c, h.userService)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transfer, err := h.budgetService.Transfer(c.Request.Context(), services.TransferInput{
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Amount:        amount,
		OrderNumber:   req.OrderNumber,
		Description:   req.Description,
		User:          user,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, "CREATE_BUDGET_TRANSFER", services.ResourceTransfer, transfer.ID, c.ClientIP(),
		map[string]interface{}{"source_id": req.SourceID, "destination_id": req.DestinationID, "amount": req.Amount})
	c.JSON(http.StatusCreated, gin.H{"transfer": toTransferResponse(transfer)})
}

// ReverseTransfer handles POST /budget-transfers/:id/reverse.
// @Summary     Reverse a budget transfer
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transfer ID"
// @Param       request body ReverseTransferRequest false "Order number"
// @Success     201 {object} TransferResponse
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /budget-transfers/{id}/reverse [post]
func (h *BudgetHandler) ReverseTransfer(c *gin.Context) {
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
	var req ReverseTransferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	reversal, err := h.budgetService.Reverse(c.Request.Context(), id, req.OrderNumber, user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, "REVERSE_BUDGET_TRANSFER", services.ResourceTransfer, reversal.ID, c.ClientIP(),
		map[string]interface{}{"original": id})
	c.JSON(http.StatusCreated, gin.H{"transfer": toTransferResponse(reversal)})
}
