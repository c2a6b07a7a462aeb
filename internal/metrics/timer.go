package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveGateway records the elapsed time for a gateway operation.
func (t *Timer) ObserveGateway(operation, outcome string) {
	t.observe(GatewayRequestDuration.WithLabelValues(operation, outcome))
}

func (t *Timer) observe(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
