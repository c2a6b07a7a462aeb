package payment

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const validStatus = "VALID"

var amountTolerance = decimal.New(1, -2)

// ValidationResult is the subset of the validation API reply the decision needs.
type ValidationResult struct {
	Status string
	Amount decimal.Decimal
	TranID string
	ValID  string
}

// Outcome classifies a verification; it doubles as the metrics label.
type Outcome string

const (
	OutcomeValid          Outcome = "valid"
	OutcomeInvalidStatus  Outcome = "invalid_status"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	OutcomeError          Outcome = "error"
)

// CheckValidation accepts a result only when the status is VALID
// (case-insensitive) and the amount is within 0.01 of expected.
func CheckValidation(res ValidationResult, expected float64) Outcome {
	if strings.ToUpper(res.Status) != validStatus {
		return OutcomeInvalidStatus
	}
	if res.Amount.Sub(fromFloat(expected)).Abs().GreaterThan(amountTolerance) {
		return OutcomeAmountMismatch
	}
	return OutcomeValid
}

// ParseAmount reads a gateway amount given as a JSON string or number.
// Anything unparsable counts as zero.
func ParseAmount(v interface{}) decimal.Decimal {
	switch a := v.(type) {
	case json.Number:
		return parseDecimal(string(a))
	case string:
		return parseDecimal(a)
	case float64:
		return fromFloat(a)
	case int:
		return decimal.NewFromInt(int64(a))
	case int64:
		return decimal.NewFromInt(a)
	default:
		return decimal.Zero
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func stringField(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return string(s)
	default:
		return ""
	}
}

func newValidationResult(raw map[string]interface{}) ValidationResult {
	return ValidationResult{
		Status: stringField(raw["status"]),
		Amount: ParseAmount(raw["amount"]),
		TranID: stringField(raw["tran_id"]),
		ValID:  stringField(raw["val_id"]),
	}
}

// Notification is one gateway callback (IPN) as received.
type Notification struct {
	OrderID uint
	ValID   string
	TranID  string
	Status  string
	Amount  string
	Payload json.RawMessage
}
