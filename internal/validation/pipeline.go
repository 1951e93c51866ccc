// Package validation cleans the JSON payloads of the public API. A Pipeline
// is an ordered table of fields, each with an optional cleaning function,
// followed by cross-field checks. Structural problems are reported as
// MALFORMED_REQUEST; the cleaners and checks choose their own error.
package validation

import (
	"fmt"
	"mime"
	"time"

	apperrors "giftledger/internal/errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

// Cleaner converts a raw JSON value into its typed form.
type Cleaner func(name string, raw any) (any, error)

// Field describes one payload key.
type Field struct {
	Name     string
	Required bool
	Clean    Cleaner
}

// Check validates relations between cleaned fields.
type Check func(v Values) error

// Pipeline validates a JSON object field by field, then runs the checks.
type Pipeline struct {
	Fields []Field
	Checks []Check
}

// Values holds the cleaned payload.
type Values map[string]any

// Has reports whether the field was present in the payload.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// String returns a cleaned string field, or "" when absent.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Decimal returns a cleaned amount field, or zero when absent.
func (v Values) Decimal(name string) decimal.Decimal {
	d, _ := v[name].(decimal.Decimal)
	return d
}

// Time returns a cleaned timestamp field, or nil when absent.
func (v Values) Time(name string) *time.Time {
	t, ok := v[name].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// Run validates a request body. contentType is the raw Content-Type header.
func (p Pipeline) Run(contentType string, body []byte) (Values, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != binding.MIMEJSON {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
			"Requests must have Content-Type 'application/json'")
	}

	var payload map[string]any
	if err := binding.JSON.BindBody(body, &payload); err != nil || payload == nil {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest, "JSON payload could not be decoded")
	}

	values := make(Values, len(p.Fields))
	for _, f := range p.Fields {
		raw, ok := payload[f.Name]
		if !ok {
			if f.Required {
				return nil, apperrors.WithMessage(apperrors.ErrMalformedRequest,
					fmt.Sprintf("Mandatory field '%s' is missing from JSON payload", f.Name))
			}
			continue
		}
		if f.Clean == nil {
			values[f.Name] = raw
			continue
		}
		cleaned, err := f.Clean(f.Name, raw)
		if err != nil {
			return nil, err
		}
		values[f.Name] = cleaned
	}

	for _, check := range p.Checks {
		if err := check(values); err != nil {
			return nil, err
		}
	}
	return values, nil
}
