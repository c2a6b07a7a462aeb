package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{
	"id", "first_name", "last_name", "email", "address", "city", "postal_code",
	"paid", "status", "created_at", "updated_at",
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	created := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, first_name, .* FROM orders WHERE id = \$1`).
			WithArgs(uint(7)).
			WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
				7, "Rahim", "Uddin", "rahim@example.com", "House 1, Road 2", "Dhaka", "1207",
				false, "pending", created, created,
			))

		mock.ExpectQuery(`SELECT oi.id, .* FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.order_id = \$1`).
			WithArgs(uint(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "price", "quantity", "name"}).
				AddRow(1, 7, 11, 200.00, 2, "Jamdani Saree").
				AddRow(2, 7, 12, 100.00, 1, "Nakshi Kantha"))

		o, err := repo.GetByID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, uint(7), o.ID)
		assert.Equal(t, StatusPending, o.Status)
		assert.False(t, o.Paid)
		assert.Len(t, o.Items, 2)
		assert.Equal(t, "Jamdani Saree", o.Items[0].Product.Name)
		assert.Equal(t, uint(11), o.Items[0].Product.ID)
		assert.Equal(t, 500.00, o.TotalCost())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, first_name, .* FROM orders`).
			WithArgs(uint(99)).
			WillReturnRows(sqlmock.NewRows(orderColumns))

		o, err := repo.GetByID(ctx, 99)
		assert.Nil(t, o)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("ItemsQueryError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, first_name, .* FROM orders`).
			WithArgs(uint(7)).
			WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
				7, "Rahim", "Uddin", "rahim@example.com", "", "Dhaka", "1207",
				false, "pending", created, created,
			))
		mock.ExpectQuery(`SELECT oi.id, .* FROM order_items`).
			WillReturnError(errors.New("db down"))

		_, err := repo.GetByID(ctx, 7)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestRepository_MarkAsPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Updated", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET paid = TRUE, status = \$2, updated_at = NOW\(\) WHERE id = \$1 AND paid = FALSE`).
			WithArgs(uint(7), StatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := repo.MarkAsPaid(ctx, 7)
		assert.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET paid = TRUE`).
			WithArgs(uint(7), StatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := repo.MarkAsPaid(ctx, 7)
		assert.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET paid = TRUE`).
			WillReturnError(errors.New("deadlock"))

		_, err := repo.MarkAsPaid(ctx, 7)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$2, updated_at = NOW\(\) WHERE id = \$1 AND paid = FALSE`).
			WithArgs(uint(7), StatusCanceled).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateStatus(ctx, 7, StatusCanceled))
	})

	t.Run("PaidOrMissing", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status`).
			WithArgs(uint(8), StatusCanceled).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateStatus(ctx, 8, StatusCanceled), ErrOrderNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
