package payment

import "errors"

var (
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrMalformedGatewayResponse = errors.New("malformed payment gateway response")
)
