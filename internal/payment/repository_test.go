package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_SaveNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	n := &Notification{
		OrderID: 42,
		ValID:   "v-1",
		TranID:  "42",
		Status:  "VALID",
		Amount:  "500.00",
		Payload: []byte(`{"val_id":"v-1"}`),
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_notifications`).
			WithArgs(n.OrderID, n.ValID, n.TranID, n.Status, n.Amount, []byte(n.Payload)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		id, isDup, err := repo.SaveNotification(ctx, n)
		assert.NoError(t, err)
		assert.False(t, isDup)
		assert.Equal(t, int64(10), id)
	})

	t.Run("Duplicate", func(t *testing.T) {
		// already processed: the conditional upsert returns no row
		mock.ExpectQuery(`INSERT INTO payment_notifications .* ON CONFLICT \(val_id\)`).
			WillReturnError(sql.ErrNoRows)

		id, isDup, err := repo.SaveNotification(ctx, n)
		assert.NoError(t, err)
		assert.True(t, isDup)
		assert.Equal(t, int64(0), id)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		bare := &Notification{OrderID: 1, ValID: "v-2"}
		mock.ExpectQuery(`INSERT INTO payment_notifications`).
			WithArgs(uint(1), "v-2", "", "", "", []byte(`{}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		id, _, err := repo.SaveNotification(ctx, bare)
		assert.NoError(t, err)
		assert.Equal(t, int64(11), id)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_notifications`).
			WillReturnError(errors.New("db error"))

		_, isDup, err := repo.SaveNotification(ctx, n)
		assert.Error(t, err)
		assert.False(t, isDup)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_NotificationUpdates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := int64(1)

	t.Run("MarkProcessed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_notifications SET processed_at = NOW\(\), outcome = \$2`).
			WithArgs(id, "paid").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkNotificationProcessed(ctx, id, "paid")
		assert.NoError(t, err)
	})

	t.Run("MarkProcessed_Error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_notifications SET processed_at`).
			WithArgs(id, "paid").
			WillReturnError(errors.New("db error"))

		err := repo.MarkNotificationProcessed(ctx, id, "paid")
		assert.Error(t, err)
	})

	t.Run("MarkFailed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_notifications SET process_error = \$2 WHERE id = \$1`).
			WithArgs(id, "verification failed").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkNotificationFailed(ctx, id, "verification failed")
		assert.NoError(t, err)
	})

	t.Run("MarkFailed_Error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_notifications SET process_error = \$2 WHERE id = \$1`).
			WithArgs(id, "verification failed").
			WillReturnError(errors.New("db error"))

		err := repo.MarkNotificationFailed(ctx, id, "verification failed")
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
