// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"giftledger/internal/models"
	"giftledger/internal/money"
)

var holderCodeRegex = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// DateLayouts are the formats accepted by the date tag, most specific first.
var DateLayouts = []string{time.RFC3339, "2006-01-02"}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("account_status", validateAccountStatus)
	_ = v.RegisterValidation("budget_status", validateBudgetStatus)
	_ = v.RegisterValidation("holder_code", validateHolderCode)
	_ = v.RegisterValidation("date", validateDate)
}

// validateMoney accepts a non-negative decimal string with at most two places.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := money.Parse(fl.Field().String())
	return err == nil && !d.IsNegative()
}

func validateAccountStatus(fl validator.FieldLevel) bool {
	switch models.Status(fl.Field().String()) {
	case models.StatusOpen, models.StatusFrozen, models.StatusClosed:
		return true
	}
	return false
}

func validateBudgetStatus(fl validator.FieldLevel) bool {
	switch models.Status(fl.Field().String()) {
	case models.StatusOpen, models.StatusClosed:
		return true
	}
	return false
}

func validateHolderCode(fl validator.FieldLevel) bool {
	return holderCodeRegex.MatchString(fl.Field().String())
}

func validateDate(fl validator.FieldLevel) bool {
	_, ok := ParseDate(fl.Field().String())
	return ok
}

// ParseDate parses s with the first matching layout in DateLayouts.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
