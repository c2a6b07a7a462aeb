package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

type Order struct {
	ID         uint
	FirstName  string
	LastName   string
	Email      string
	Address    string
	City       string
	PostalCode string
	Paid       bool
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Items      []OrderItem
}

type OrderItem struct {
	ID        uint
	OrderID   uint
	ProductID uint
	Price     float64
	Quantity  int
	Product   Product
}

type Product struct {
	ID   uint
	Name string
}

// Cost is price times quantity for a single line.
func (i OrderItem) Cost() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalCost sums the line costs exactly and returns the result in currency units.
func (o *Order) TotalCost() float64 {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Cost())
	}
	return total.Round(2).InexactFloat64()
}

func (o *Order) FullName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}
