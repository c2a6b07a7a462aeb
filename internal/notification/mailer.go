package notification

import (
	"context"
	"fmt"
	"time"

	"shopbd-be/internal/config"
	"shopbd-be/internal/logger"
	"shopbd-be/internal/metrics"
	"shopbd-be/internal/order"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// Dialer is the part of *mail.Dialer the mailer needs.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type Mailer struct {
	dialer Dialer
	from   string
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 10 * time.Second
	return NewMailerWithDialer(d, cfg.From)
}

func NewMailerWithDialer(d Dialer, from string) *Mailer {
	return &Mailer{dialer: d, from: from}
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	log := logger.ForOrder(ctx, o.ID)

	if o.Email == "" {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: order has no email address", ErrNotificationDeliveryFailed)
	}

	body, err := RenderConfirmation(o)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error("Failed rendering confirmation email", zap.Error(err))
		return fmt.Errorf("%w: render: %w", ErrNotificationDeliveryFailed, err)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", o.Email)
	msg.SetHeader("Subject", Subject(o))
	msg.SetBody("text/plain", "")
	msg.AddAlternative("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error("Failed sending confirmation email", zap.String("to", o.Email), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotificationDeliveryFailed, err)
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	log.Info("Order confirmation email sent", zap.String("to", o.Email))
	return nil
}

// LogNotifier stands in for SMTP in development: it only logs.
type LogNotifier struct{}

func (LogNotifier) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	metrics.NotificationsTotal.WithLabelValues("logged").Inc()
	logger.ForOrder(ctx, o.ID).Info("Order confirmation (not sent, SMTP disabled)",
		zap.String("to", o.Email),
		zap.String("subject", Subject(o)),
	)
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		return LogNotifier{}
	}
	return NewMailer(cfg)
}
