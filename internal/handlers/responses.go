package handlers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"giftledger/internal/models"
	"giftledger/internal/money"
	"giftledger/internal/services"
)

const dateLayout = "2006-01-02"

// AccountResponse represents an account in the dashboard API.
type AccountResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name,omitempty"`
	Code        string    `json:"code,omitempty"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Balance     string    `json:"balance"`
	CreditLimit *string   `json:"credit_limit"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BudgetResponse represents a budget.
type BudgetResponse struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name,omitempty"`
	Code             string    `json:"code,omitempty"`
	Status           string    `json:"status"`
	Balance          string    `json:"balance"`
	CreditLimit      *string   `json:"credit_limit"`
	StartDate        string    `json:"start_date,omitempty"`
	EndDate          string    `json:"end_date,omitempty"`
	PrimaryUserID    *uint     `json:"primary_user_id,omitempty"`
	SecondaryUserIDs []uint    `json:"secondary_user_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// TransferResponse represents a transfer in the dashboard and budget APIs.
type TransferResponse struct {
	ID            uint      `json:"id"`
	Reference     string    `json:"reference"`
	Book          string    `json:"book"`
	SourceID      uint      `json:"source_id"`
	DestinationID uint      `json:"destination_id"`
	Amount        string    `json:"amount"`
	OrderNumber   string    `json:"order_number,omitempty"`
	Description   string    `json:"description,omitempty"`
	Username      string    `json:"username,omitempty"`
	ParentID      *uint     `json:"parent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublicAccountResponse is the account view of the public API.
type PublicAccountResponse struct {
	Code           string  `json:"code"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Balance        string  `json:"balance"`
	Status         string  `json:"status"`
	RedemptionsURL string  `json:"redemptions_url"`
	RefundsURL     string  `json:"refunds_url"`
}

// PublicTransferResponse is the transfer view of the public API.
type PublicTransferResponse struct {
	Reference       string    `json:"reference"`
	SourceCode      *string   `json:"source_code"`
	SourceName      *string   `json:"source_name"`
	DestinationCode *string   `json:"destination_code"`
	DestinationName *string   `json:"destination_name"`
	Amount          string    `json:"amount"`
	Datetime        time.Time `json:"datetime"`
	OrderNumber     *string   `json:"order_number"`
	Description     *string   `json:"description"`
	ParentReference *string   `json:"parent_reference"`
}

// balance overrides the cached column when the derived value is known.
func toAccountResponse(a *models.Account, balance *decimal.Decimal) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Name:        deref(a.Name),
		Code:        deref(a.Code),
		Status:      string(a.Status),
		Description: a.Description,
		Category:    a.Category,
		Balance:     balanceString(a.Balance, balance),
		CreditLimit: limitString(a.CreditLimit),
		StartDate:   formatDate(a.StartDate),
		EndDate:     formatDate(a.EndDate),
		CreatedAt:   a.CreatedAt,
	}
}

func toAccountResponses(accounts []models.Account) []AccountResponse {
	out := make([]AccountResponse, len(accounts))
	for i := range accounts {
		out[i] = toAccountResponse(&accounts[i], nil)
	}
	return out
}

func toBudgetResponse(b *models.Budget, balance *decimal.Decimal) BudgetResponse {
	secondary := make([]uint, len(b.SecondaryUsers))
	for i, u := range b.SecondaryUsers {
		secondary[i] = u.ID
	}
	return BudgetResponse{
		ID:               b.ID,
		Name:             deref(b.Name),
		Code:             deref(b.Code),
		Status:           string(b.Status),
		Balance:          balanceString(b.Balance, balance),
		CreditLimit:      limitString(b.CreditLimit),
		StartDate:        formatDate(b.StartDate),
		EndDate:          formatDate(b.EndDate),
		PrimaryUserID:    b.PrimaryUserID,
		SecondaryUserIDs: secondary,
		CreatedAt:        b.CreatedAt,
	}
}

func toBudgetResponses(budgets []models.Budget) []BudgetResponse {
	out := make([]BudgetResponse, len(budgets))
	for i := range budgets {
		out[i] = toBudgetResponse(&budgets[i], nil)
	}
	return out
}

func toTransferResponse(t *models.Transfer) TransferResponse {
	return TransferResponse{
		ID:            t.ID,
		Reference:     t.Reference(),
		Book:          string(t.Book),
		SourceID:      t.SourceID,
		DestinationID: t.DestinationID,
		Amount:        money.Format(t.Amount),
		OrderNumber:   deref(t.OrderNumber),
		Description:   deref(t.Description),
		Username:      t.Username,
		ParentID:      t.ParentID,
		CreatedAt:     t.CreatedAt,
	}
}

func toTransferResponses(transfers []models.Transfer) []TransferResponse {
	out := make([]TransferResponse, len(transfers))
	for i := range transfers {
		out[i] = toTransferResponse(&transfers[i])
	}
	return out
}

// AuditResponse is one audit entry of a resource.
type AuditResponse struct {
	ID        uint            `json:"id"`
	Action    string          `json:"action"`
	UserID    *uint           `json:"user_id"`
	IPAddress string          `json:"ip_address,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAuditResponses(entries []models.AuditLog) []AuditResponse {
	out := make([]AuditResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditResponse{
			ID:        e.ID,
			Action:    e.Action,
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
			CreatedAt: e.CreatedAt,
		}
		if e.Changes != "" {
			out[i].Changes = json.RawMessage(e.Changes)
		}
	}
	return out
}

func toPublicTransfer(d *services.TransferDetail) PublicTransferResponse {
	resp := PublicTransferResponse{
		Reference:   d.Transfer.Reference(),
		Amount:      money.Format(d.Transfer.Amount),
		Datetime:    d.Transfer.CreatedAt,
		OrderNumber: d.Transfer.OrderNumber,
		Description: d.Transfer.Description,
	}
	if d.Source != nil {
		resp.SourceCode, resp.SourceName = d.Source.Code, d.Source.Name
	}
	if d.Destination != nil {
		resp.DestinationCode, resp.DestinationName = d.Destination.Code, d.Destination.Name
	}
	if d.Parent != nil {
		ref := d.Parent.Reference()
		resp.ParentReference = &ref
	}
	return resp
}

func balanceString(cached int64, derived *decimal.Decimal) string {
	if derived != nil {
		return derived.StringFixed(money.Places)
	}
	return money.Format(cached)
}

// limitString renders nil for unlimited credit.
func limitString(limit *int64) *string {
	if limit == nil {
		return nil
	}
	s := money.Format(*limit)
	return &s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
