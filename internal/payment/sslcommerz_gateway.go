package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopbd-be/internal/config"
	"shopbd-be/internal/logger"
	"shopbd-be/internal/metrics"
	"shopbd-be/internal/order"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

var (
	utf8BOM         = []byte("\xef\xbb\xbf")
	errNoJSONObject = errors.New("response does not contain a JSON object")
)

type sslcommerzGateway struct {
	cfg        config.SSLCommerzConfig
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

// ----------------- Constructor -----------------

func NewSSLCommerzGateway(cfg config.SSLCommerzConfig) Gateway {
	if cfg.StoreID == "" || cfg.StorePassword == "" {
		logger.L().Warn("SSLCommerz store credentials are empty")
	}
	if cfg.InitiateTimeout <= 0 {
		cfg.InitiateTimeout = 15 * time.Second
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = 10 * time.Second
	}

	return &sslcommerzGateway{
		cfg:        cfg,
		httpClient: &http.Client{},
		sleep:      sleepCtx,
	}
}

// ----------------- InitiatePayment -----------------

func (s *sslcommerzGateway) InitiatePayment(
	ctx context.Context,
	baseURL string,
	o *order.Order,
) (map[string]interface{}, error) {

	log := logger.ForOrder(ctx, o.ID).With(zap.Float64("amount", o.TotalCost()))
	form := BuildPaymentRequest(s.cfg, baseURL, o)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.InitiateTimeout)
	defer cancel()

	timer := metrics.StartTimer()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PaymentURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log.Info("Sending payment request to SSLCommerz")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		timer.ObserveGateway("initiate", "unavailable")
		log.Error("SSLCommerz request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		timer.ObserveGateway("initiate", "unavailable")
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("%w: read response: %w", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		timer.ObserveGateway("initiate", "unavailable")
		log.Error("SSLCommerz returned server error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	data, err := decodeObject(body)
	if err != nil {
		timer.ObserveGateway("initiate", "malformed")
		log.Error("Failed decoding SSLCommerz response",
			zap.Error(err),
			zap.ByteString("response", body),
		)
		return nil, fmt.Errorf("%w: %w", ErrMalformedGatewayResponse, err)
	}

	timer.ObserveGateway("initiate", "ok")
	log.Info("SSLCommerz session created",
		zap.String("status", stringField(data["status"])),
		zap.String("session_key", stringField(data["sessionkey"])),
	)

	return data, nil
}

// ----------------- VerifyPayment -----------------

func (s *sslcommerzGateway) VerifyPayment(ctx context.Context, valID string, expectedAmount float64) (valid bool) {
	log := logger.FromCtx(ctx).With(
		zap.String("val_id", valID),
		zap.Float64("expected_amount", expectedAmount),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("SSLCommerz verification error", zap.Any("panic", r))
			countVerification(OutcomeError)
			valid = false
		}
	}()

	if strings.TrimSpace(valID) == "" {
		log.Warn("SSLCommerz verification error", zap.String("reason", "empty val_id"))
		countVerification(OutcomeError)
		return false
	}

	timer := metrics.StartTimer()
	res, err := s.validate(ctx, valID)
	if err != nil {
		timer.ObserveGateway("validate", "error")
		log.Warn("SSLCommerz verification error", zap.Error(err))
		countVerification(OutcomeError)
		return false
	}
	timer.ObserveGateway("validate", "ok")

	outcome := CheckValidation(res, expectedAmount)
	countVerification(outcome)

	if outcome != OutcomeValid {
		log.Warn("SSLCommerz payment rejected",
			zap.String("reason", string(outcome)),
			zap.String("status", res.Status),
			zap.String("amount", res.Amount.String()),
			zap.String("tran_id", res.TranID),
		)
		return false
	}

	log.Info("SSLCommerz payment validated", zap.String("tran_id", res.TranID))
	return true
}

// validate queries the validation API, retrying transient failures with
// exponential backoff. Malformed replies are not retried.
func (s *sslcommerzGateway) validate(ctx context.Context, valID string) (ValidationResult, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.VerifyRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.RetryBackoff<<(attempt-1)); err != nil {
				return ValidationResult{}, fmt.Errorf("retry aborted: %w (last error: %v)", err, lastErr)
			}
			logger.FromCtx(ctx).Debug("retrying SSLCommerz validation",
				zap.String("val_id", valID),
				zap.Int("attempt", attempt+1),
				zap.NamedError("last_error", lastErr),
			)
		}

		res, err := s.validateOnce(ctx, valID)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !errors.Is(err, ErrGatewayUnavailable) {
			break
		}
	}

	return ValidationResult{}, lastErr
}

func (s *sslcommerzGateway) validateOnce(ctx context.Context, valID string) (ValidationResult, error) {
	endpoint, err := url.Parse(s.cfg.ValidationURL)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("invalid validation url: %w", err)
	}

	q := endpoint.Query()
	q.Set("val_id", valID)
	q.Set("store_id", s.cfg.StoreID)
	q.Set("store_passwd", s.cfg.StorePassword)
	q.Set("format", "json")
	endpoint.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ValidateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: read response: %w", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return ValidationResult{}, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	raw, err := unmarshalObject(body)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: http %d: %w", ErrMalformedGatewayResponse, resp.StatusCode, err)
	}

	return newValidationResult(raw), nil
}

// ----------------- Helpers -----------------

// decodeObject parses a JSON object body. When the strict parse fails it
// retries on the outermost {...} span, which tolerates a BOM, stray
// whitespace or a short text/HTML wrapper around the payload.
func decodeObject(body []byte) (map[string]interface{}, error) {
	data, err := unmarshalObject(body)
	if err == nil {
		return data, nil
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(body), utf8BOM))
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: %v", errNoJSONObject, err)
	}

	return unmarshalObject(trimmed[start : end+1])
}

func unmarshalObject(b []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}
	if data == nil {
		return nil, errNoJSONObject
	}

	return data, nil
}

func countVerification(o Outcome) {
	metrics.PaymentVerificationsTotal.WithLabelValues(string(o)).Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
