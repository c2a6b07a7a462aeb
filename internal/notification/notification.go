package notification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strconv"

	"shopbd-be/internal/order"

	"github.com/shopspring/decimal"
)

const (
	confirmationTemplate = "templates/order_confirmation.html"
	currency             = "BDT"
)

//go:embed "templates"
var FS embed.FS

var ErrNotificationDeliveryFailed = errors.New("order notification delivery failed")

var confirmationTmpl = template.Must(template.ParseFS(FS, confirmationTemplate))

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
}

// Subject is the confirmation email subject line for an order.
func Subject(o *order.Order) string {
	return fmt.Sprintf("Order Confirmation - Order #%d", o.ID)
}

type itemView struct {
	Product  string
	Price    string
	Quantity int
	Cost     string
}

type confirmationView struct {
	OrderID    uint
	Name       string
	Address    string
	City       string
	PostalCode string
	Items      []itemView
	Total      string
	Currency   string
}

// RenderConfirmation renders the HTML body of the confirmation email.
func RenderConfirmation(o *order.Order) (string, error) {
	view := confirmationView{
		OrderID:    o.ID,
		Name:       o.FullName(),
		Address:    o.Address,
		City:       o.City,
		PostalCode: o.PostalCode,
		Total:      strconv.FormatFloat(o.TotalCost(), 'f', 2, 64),
		Currency:   currency,
	}
	for _, item := range o.Items {
		view.Items = append(view.Items, itemView{
			Product:  item.Product.Name,
			Price:    decimal.NewFromFloat(item.Price).StringFixed(2),
			Quantity: item.Quantity,
			Cost:     item.Cost().StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
