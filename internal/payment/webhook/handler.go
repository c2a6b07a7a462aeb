package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shopbd-be/internal/events"
	"shopbd-be/internal/logger"
	"shopbd-be/internal/notification"
	"shopbd-be/internal/order"
	"shopbd-be/internal/payment"
	"shopbd-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// callbackForm is what the gateway posts back to the success and IPN routes.
type callbackForm struct {
	ValID  string `validate:"required,max=128"`
	TranID string `validate:"omitempty,numeric"`
	Status string `validate:"max=32"`
	Amount string `validate:"omitempty,numeric"`
}

// Handler serves the gateway callback routes for one order.
type Handler struct {
	orders   order.Repository
	gateway  payment.Gateway
	payments payment.Repository
	notifier notification.Notifier
	events   events.Publisher
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(
	orders order.Repository,
	gateway payment.Gateway,
	payments payment.Repository,
	notifier notification.Notifier,
	publisher events.Publisher,
) *Handler {
	return &Handler{
		orders:   orders,
		gateway:  gateway,
		payments: payments,
		notifier: notifier,
		events:   publisher,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Register mounts the callback routes. The trailing slash is part of the
// URLs handed to the gateway.
func (h *Handler) Register(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/start/{order_id}/", h.Start)
		r.Post("/success/{order_id}/", h.Success)
		r.Post("/fail/{order_id}/", h.Fail)
		r.Post("/cancel/{order_id}/", h.Cancel)
		r.Post("/notify/{order_id}/", h.Notify)
	})
}

// ----------------- Start -----------------

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	if o.Paid {
		utils.WriteJSONError(w, order.ErrOrderPaid.Error(), http.StatusConflict)
		return
	}

	resp, err := h.gateway.InitiatePayment(r.Context(), payment.BaseURL(r), o)
	switch {
	case errors.Is(err, payment.ErrMalformedGatewayResponse):
		utils.WriteJSONError(w, "invalid response from payment gateway", http.StatusBadGateway)
		return
	case err != nil:
		utils.WriteJSONError(w, payment.ErrGatewayUnavailable.Error(), http.StatusBadGateway)
		return
	}

	utils.WriteJSON(w, http.StatusOK, resp)
}

// ----------------- Success -----------------

func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	log := logger.ForOrder(r.Context(), o.ID)

	if o.Paid {
		writeOutcome(w, http.StatusOK, o.ID, "paid")
		return
	}

	form, err := h.parseCallback(r)
	if err != nil {
		log.Warn("invalid success callback", zap.Error(err))
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !matchesOrder(form.TranID, o.ID) {
		log.Warn("tran_id does not match order", zap.String("tran_id", form.TranID))
		utils.WriteJSONError(w, "transaction does not belong to this order", http.StatusBadRequest)
		return
	}

	if !h.gateway.VerifyPayment(r.Context(), form.ValID, o.TotalCost()) {
		utils.WriteJSONError(w, "payment verification failed", http.StatusPaymentRequired)
		return
	}

	if _, err := h.confirmPaid(r.Context(), o, form.ValID); err != nil {
		log.Error("failed to mark order as paid", zap.String("val_id", form.ValID), zap.Error(err))
		utils.WriteJSONError(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	writeOutcome(w, http.StatusOK, o.ID, "paid")
}

// ----------------- Fail / Cancel -----------------

func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	_ = r.ParseForm()
	logger.ForOrder(r.Context(), orderID).Info("payment failed at gateway",
		zap.String("tran_id", r.FormValue("tran_id")),
		zap.String("status", r.FormValue("status")),
		zap.String("error", r.FormValue("error")),
	)

	writeOutcome(w, http.StatusOK, orderID, "failed")
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	if o.Paid {
		utils.WriteJSONError(w, order.ErrOrderPaid.Error(), http.StatusConflict)
		return
	}

	err := h.orders.UpdateStatus(r.Context(), o.ID, order.StatusCanceled)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		// paid in the meantime
		utils.WriteJSONError(w, order.ErrOrderPaid.Error(), http.StatusConflict)
		return
	case err != nil:
		logger.ForOrder(r.Context(), o.ID).Error("failed to cancel order", zap.Error(err))
		utils.WriteJSONError(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	logger.ForOrder(r.Context(), o.ID).Info("payment canceled by buyer")
	writeOutcome(w, http.StatusOK, o.ID, string(order.StatusCanceled))
}

// ----------------- Notify (IPN) -----------------

// Notify handles the gateway's server-to-server notification. Anything the
// gateway cannot fix by resending is acknowledged with 200.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := orderIDParam(r)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log := logger.ForOrder(ctx, orderID)

	form, err := h.parseCallback(r)
	if err != nil {
		log.Warn("invalid payment notification", zap.Error(err))
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log = log.With(zap.String("val_id", form.ValID))

	n := &payment.Notification{
		OrderID: orderID,
		ValID:   form.ValID,
		TranID:  form.TranID,
		Status:  form.Status,
		Amount:  form.Amount,
		Payload: formPayload(r),
	}
	notificationID, duplicate, err := h.payments.SaveNotification(ctx, n)
	if err != nil {
		log.Error("failed to store payment notification", zap.Error(err))
		utils.WriteJSONError(w, "failed to store notification", http.StatusInternalServerError)
		return
	}
	if duplicate {
		log.Info("duplicate payment notification")
		writeOutcome(w, http.StatusOK, orderID, "duplicate")
		return
	}

	ignore := func(reason string) {
		log.Warn("payment notification ignored", zap.String("reason", reason))
		if err := h.payments.MarkNotificationFailed(ctx, notificationID, reason); err != nil {
			log.Error("failed to record notification outcome", zap.Error(err))
		}
		writeOutcome(w, http.StatusOK, orderID, "ignored")
	}

	o, err := h.orders.GetByID(ctx, orderID)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		ignore("order not found")
		return
	case err != nil:
		log.Error("failed to load order", zap.Error(err))
		utils.WriteJSONError(w, "failed to load order", http.StatusInternalServerError)
		return
	}

	if !matchesOrder(form.TranID, o.ID) {
		ignore("tran_id mismatch")
		return
	}
	if form.Status != "" && !strings.EqualFold(form.Status, "VALID") && !strings.EqualFold(form.Status, "VALIDATED") {
		ignore("gateway status " + form.Status)
		return
	}

	outcome := "paid"
	if o.Paid {
		outcome = "already_paid"
	} else {
		if !h.gateway.VerifyPayment(ctx, form.ValID, o.TotalCost()) {
			ignore("verification failed")
			return
		}

		changed, err := h.confirmPaid(ctx, o, form.ValID)
		if err != nil {
			log.Error("failed to mark order as paid", zap.Error(err))
			if mErr := h.payments.MarkNotificationFailed(ctx, notificationID, err.Error()); mErr != nil {
				log.Error("failed to record notification outcome", zap.Error(mErr))
			}
			utils.WriteJSONError(w, "failed to update order", http.StatusInternalServerError)
			return
		}
		if !changed {
			outcome = "already_paid"
		}
	}

	if err := h.payments.MarkNotificationProcessed(ctx, notificationID, outcome); err != nil {
		log.Error("failed to record notification outcome", zap.Error(err))
	}
	writeOutcome(w, http.StatusOK, orderID, outcome)
}

// ----------------- Helpers -----------------

// confirmPaid records the payment and, when this call flipped the order,
// sends the confirmation email and the order.paid event. Neither of those
// can fail the payment.
func (h *Handler) confirmPaid(ctx context.Context, o *order.Order, valID string) (bool, error) {
	log := logger.ForOrder(ctx, o.ID)

	changed, err := h.orders.MarkAsPaid(ctx, o.ID)
	if err != nil {
		return false, err
	}
	if !changed {
		log.Info("order already marked as paid")
		return false, nil
	}

	o.Paid = true
	o.Status = order.StatusPaid
	log.Info("order marked as paid", zap.String("val_id", valID), zap.Float64("amount", o.TotalCost()))

	if err := h.notifier.SendOrderConfirmation(ctx, o); err != nil {
		log.Warn("order confirmation not delivered", zap.Error(err))
	}

	evt := events.OrderPaidEvent{
		Event:   events.EventOrderPaid,
		OrderID: o.ID,
		Amount:  o.TotalCost(),
		ValID:   valID,
		PaidAt:  h.now().UTC(),
	}
	if err := h.events.PublishOrderPaid(ctx, evt); err != nil {
		log.Warn("order.paid event not published", zap.Error(err))
	}

	return true, nil
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	orderID, err := orderIDParam(r)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		return nil, false
	case err != nil:
		logger.ForOrder(r.Context(), orderID).Error("failed to load order", zap.Error(err))
		utils.WriteJSONError(w, "failed to load order", http.StatusInternalServerError)
		return nil, false
	}

	return o, true
}

func (h *Handler) parseCallback(r *http.Request) (*callbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}

	form := &callbackForm{
		ValID:  strings.TrimSpace(r.FormValue("val_id")),
		TranID: strings.TrimSpace(r.FormValue("tran_id")),
		Status: strings.TrimSpace(r.FormValue("status")),
		Amount: strings.TrimSpace(r.FormValue("amount")),
	}

	if err := h.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid %s: failed %q check", fieldName(verrs[0].Field()), verrs[0].Tag())
		}
		return nil, err
	}

	return form, nil
}

func fieldName(f string) string {
	switch f {
	case "ValID":
		return "val_id"
	case "TranID":
		return "tran_id"
	default:
		return strings.ToLower(f)
	}
}

func orderIDParam(r *http.Request) (uint, error) {
	id, err := utils.ToUint(chi.URLParam(r, "order_id"))
	if err != nil || id == 0 {
		return 0, errors.New("invalid order id")
	}
	return id, nil
}

// matchesOrder reports whether the gateway transaction id (when sent)
// refers to orderID.
func matchesOrder(tranID string, orderID uint) bool {
	return tranID == "" || tranID == strconv.FormatUint(uint64(orderID), 10)
}

func formPayload(r *http.Request) json.RawMessage {
	flat := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if k == "store_passwd" || len(v) == 0 {
			continue
		}
		flat[k] = v[0]
	}

	b, err := json.Marshal(flat)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func writeOutcome(w http.ResponseWriter, code int, orderID uint, status string) {
	utils.WriteJSON(w, code, map[string]interface{}{
		"order_id": orderID,
		"status":   status,
	})
}
