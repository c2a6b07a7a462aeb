// internal/payment/payment.go
package payment

import (
	"context"

	"shopbd-be/internal/order"
)

type Gateway interface {
	// InitiatePayment opens a gateway session for the order and returns the
	// gateway's JSON reply untouched.
	InitiatePayment(ctx context.Context, baseURL string, o *order.Order) (map[string]interface{}, error)
	// VerifyPayment asks the validation API whether valID is a genuine
	// payment of expectedAmount. It never fails: any problem yields false.
	VerifyPayment(ctx context.Context, valID string, expectedAmount float64) bool
}
