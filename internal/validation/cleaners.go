package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/money"

	"github.com/shopspring/decimal"
)

// naiveLayouts are accepted by the parser only to report a missing zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Amount accepts a JSON string or number with at most two decimal places.
// Negative values are rejected here; zero is left to the transfer engine.
func Amount(name string, raw any) (any, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case string:
		d, err = money.Parse(v)
	case float64:
		d = decimal.NewFromFloat(v)
	case json.Number:
		d, err = money.Parse(v.String())
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err == nil && !money.HasValidPrecision(d) {
		err = fmt.Errorf("more than %d decimal places", money.Places)
	}
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidAmount, err, "'%v' is not a valid amount", raw)
	}
	if d.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "Amount must be positive")
	}
	return d, nil
}

// Timestamp accepts an RFC 3339 timestamp. Timestamps without zone
// information are rejected.
func Timestamp(name string, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
			fmt.Sprintf("'%s' must be a string", name))
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
				fmt.Sprintf("%s must include timezone information", label(name)))
		}
	}
	return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
		fmt.Sprintf("'%s' is not a valid date", s))
}

// Text accepts a JSON string or number and returns it trimmed.
func Text(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return decimal.NewFromFloat(v).String(), nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
		fmt.Sprintf("'%s' must be a string", name))
}

// DateRange rejects a start after the end when both are present.
func DateRange(start, end string) Check {
	return func(v Values) error {
		s, e := v.Time(start), v.Time(end)
		if s != nil && e != nil && s.After(*e) {
			return apperrors.WithMessage(apperrors.ErrInvalidDateRange, "Start date must be before end date")
		}
		return nil
	}
}

// label turns "start_date" into "Start date".
func label(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
