package settlement

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/parimutuel-settlement/internal/engine"
)

// Metrics agrupa os contadores do serviço.
type Metrics struct {
	Operations *prometheus.CounterVec
	PaidOut    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_operations_total",
			Help: "operações por resultado (ok ou código de erro)",
		}, []string{"op", "result"}),
		PaidOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_paid_out_base_units_total",
			Help: "unidades base transferidas do vault (payout, refund, fee)",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.Operations, m.PaidOut)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if code := engine.CodeOf(err); code != "" {
			result = string(code)
		}
	}
	m.Operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) paid(kind string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.PaidOut.WithLabelValues(kind).Add(float64(amount))
}
