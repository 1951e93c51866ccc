package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giftledger/internal/pagination"
	"giftledger/internal/services"
)

// TransferHandler serves the dashboard transfer pages.
type TransferHandler struct {
	transferService services.TransferServicer
	userService     services.UserServicer
	auditService    services.AuditServicer
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferService services.TransferServicer, userService services.UserServicer, auditService services.AuditServicer) *TransferHandler {
	return &TransferHandler{transferService: transferService, userService: userService, auditService: auditService}
}

// ListTransfersQuery holds the transfer list filters.
type ListTransfersQuery struct {
	pagination.PageRequest
	OrderNumber string  `form:"order_number" binding:"max=128"`
	FromDate    *string `form:"from_date" binding:"omitempty,date"`
	ToDate      *string `form:"to_date" binding:"omitempty,date"`
}

// CreateTransferRequest represents a manual transfer between two holders.
type CreateTransferRequest struct {
	SourceID      uint   `json:"source_id" binding:"required"`
	DestinationID uint   `json:"destination_id" binding:"required"`
	Amount        string `json:"amount" binding:"required,money"`
	OrderNumber   string `json:"order_number" binding:"max=128"`
	Description   string `json:"description" binding:"max=256"`
}

// ReverseTransferRequest carries the order number of a reversal.
type ReverseTransferRequest struct {
	OrderNumber string `json:"order_number" binding:"max=128"`
}

// TransferDetailResponse is a transfer with both holders resolved.
type TransferDetailResponse struct {
	Transfer    TransferResponse  `json:"transfer"`
	Source      *AccountResponse  `json:"source,omitempty"`
	Destination *AccountResponse  `json:"destination,omitempty"`
	Parent      *TransferResponse `json:"parent,omitempty"`
}

// ListTransfers lists account transfers, newest first.
// @Summary     List transfers
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       order_number query string false "Order number"
// @Param       from_date query string false "Created on or after (YYYY-MM-DD)"
// @Param       to_date query string false "Created before (YYYY-MM-DD)"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[TransferResponse]
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /dashboard/transfers [get]
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	var q ListTransfersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	q.Defaults()

	filter := services.TransferFilter{OrderNumber: q.OrderNumber}
	var err error
	if filter.FromDate, err = parseOptionalDate(q.FromDate); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.ToDate, err = parseOptionalDate(q.ToDate); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transferService.ListTransfers(c.Request.Context(), filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(result, toTransferResponses))
}

// GetTransfer returns a transfer with its accounts and parent.
// @Summary     Get a transfer
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transfer ID"
// @Success     200 {object} TransferDetailResponse
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /dashboard/transfers/{id} [get]
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	detail, err := h.transferService.GetTransfer(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := TransferDetailResponse{Transfer: toTransferResponse(detail.Transfer)}
	if detail.Source != nil {
		src := toAccountResponse(detail.Source, nil)
		resp.Source = &src
	}
	if detail.Destination != nil {
		dst := toAccountResponse(detail.Destination, nil)
		resp.Destination = &dst
	}
	if detail.Parent != nil {
		parent := toTransferResponse(detail.Parent)
		resp.Parent = &parent
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTransfer moves money between two accounts.
// @Summary     Create a transfer
// @Tags        dashboard
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransferRequest true "Transfer details"
// @Success     201 {object} TransferResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /dashboard/transfers [post]
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
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

	transfer, err := h.transferService.Transfer(c.Request.Context(), services.TransferInput{
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
	h.auditService.Log(user.ID, "CREATE_TRANSFER", services.ResourceTransfer, transfer.ID, c.ClientIP(),
		map[string]interface{}{"source_id": req.SourceID, "destination_id": req.DestinationID, "amount": req.Amount})
	c.JSON(http.StatusCreated, gin.H{"transfer": toTransferResponse(transfer)})
}

// ReverseTransfer books the compensating transfer.
// @Summary     Reverse a transfer
// @Tags        dashboard
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transfer ID"
// @Param       request body ReverseTransferRequest false "Order number"
// @Success     201 {object} TransferResponse
// @Failure     403 {object} ErrorResponse "Business rule violated"
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /dashboard/transfers/{id}/reverse [post]
func (h *TransferHandler) ReverseTransfer(c *gin.Context) {
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

	reversal, err := h.transferService.Reverse(c.Request.Context(), id, req.OrderNumber, user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, "REVERSE_TRANSFER", services.ResourceTransfer, reversal.ID, c.ClientIP(),
		map[string]interface{}{"original": id})
	c.JSON(http.StatusCreated, gin.H{"transfer": toTransferResponse(reversal)})
}
