package payment

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	SaveNotification(ctx context.Context, n *Notification) (notificationID int64, isDuplicate bool, err error)
	MarkNotificationProcessed(ctx context.Context, notificationID int64, outcome string) error
	MarkNotificationFailed(ctx context.Context, notificationID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// SaveNotification stores an IPN keyed by val_id. A val_id that was already
// processed is reported as a duplicate; one that was stored but never finished
// is handed back for another attempt.
func (r *repository) SaveNotification(ctx context.Context, n *Notification) (int64, bool, error) {
	const q = `
	INSERT INTO payment_notifications (
		order_id,
		val_id,
		tran_id,
		status,
		amount,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (val_id)
	DO UPDATE SET received_at = NOW()
	WHERE payment_notifications.processed_at IS NULL
	RETURNING id;
	`

	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		n.OrderID,
		n.ValID,
		n.TranID,
		n.Status,
		n.Amount,
		[]byte(payload),
	).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkNotificationProcessed(ctx context.Context, notificationID int64, outcome string) error {
	const q = `
	UPDATE payment_notifications
	SET processed_at = NOW(), outcome = $2, process_error = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, notificationID, outcome)
	return err
}

func (r *repository) MarkNotificationFailed(ctx context.Context, notificationID int64, reason string) error {
	const q = `
	UPDATE payment_notifications
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, notificationID, reason)
	return err
}
